package homie

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultBaseTopic is the topic prefix used when none is configured,
// per the Homie 3.0.0 convention.
const DefaultBaseTopic = "homie/"

// HomieSpecVersion is the convention version this engine implements,
// published as the device's $homie attribute.
const HomieSpecVersion = "3.0.0"

var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidID reports whether s is a legal device_id/node_id/property_id:
// non-empty, lowercase alphanumeric-or-hyphen, no slash, no leading $.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

var arraySegmentPattern = regexp.MustCompile(`^([a-z0-9-]+)_([0-9]+)$`)

// NodeRef is a node segment as it appears on the wire: a base id and,
// if the segment matches the `<base>_<n>` shape, a candidate array
// index. Whether the index is meaningful depends on whether the
// device has actually declared the node as arrayed — the topic codec
// is context-free and reports both readings for the caller to resolve.
type NodeRef struct {
	Raw            string
	BaseID         string
	Index          int64
	HasIndexSuffix bool
}

// ParseNodeSegment splits a wire node segment into its base id and,
// when present, its `_<idx>` suffix.
func ParseNodeSegment(seg string) NodeRef {
	if m := arraySegmentPattern.FindStringSubmatch(seg); m != nil {
		idx, err := strconv.ParseInt(m[2], 10, 64)
		if err == nil {
			return NodeRef{Raw: seg, BaseID: m[1], Index: idx, HasIndexSuffix: true}
		}
	}
	return NodeRef{Raw: seg, BaseID: seg}
}

// FormatNodeSegment builds the wire segment for a node id, appending
// `_<idx>` when arrayed is true.
func FormatNodeSegment(nodeID string, idx int64, arrayed bool) string {
	if !arrayed {
		return nodeID
	}
	return fmt.Sprintf("%s_%d", nodeID, idx)
}

// TopicKind discriminates the shapes a parsed Topic can take.
type TopicKind int

const (
	// TopicBroadcast is $broadcast/<level>.
	TopicBroadcast TopicKind = iota
	// TopicDeviceAttr is <device>/$<attr>.
	TopicDeviceAttr
	// TopicNodeAttr is <device>/<node>[_<idx>]/$<attr>.
	TopicNodeAttr
	// TopicPropertyAttr is <device>/<node>[_<idx>]/<prop>/$<attr>.
	TopicPropertyAttr
	// TopicPropertyValue is <device>/<node>[_<idx>]/<prop>.
	TopicPropertyValue
	// TopicPropertySet is <device>/<node>[_<idx>]/<prop>/set.
	TopicPropertySet
)

// Topic is a parsed Homie topic, stripped of its base prefix.
type Topic struct {
	Kind TopicKind

	BroadcastLevel string

	Device   string
	Node     NodeRef
	Attr     string // attribute name including leading '$', e.g. "$name", "$fw/name"
	Property string
}

// ParseTopic parses topic against base (e.g. "homie/"). It returns an
// error for any topic that doesn't start with base, contains an empty
// segment, or doesn't match one of the recognized shapes. Parsing
// never panics and never partially mutates caller state — it is purely
// informational.
func ParseTopic(base, topic string) (Topic, error) {
	if !strings.HasPrefix(topic, base) {
		return Topic{}, fmt.Errorf("homie: topic %q does not start with base %q", topic, base)
	}
	rest := topic[len(base):]
	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return Topic{}, fmt.Errorf("homie: topic %q has an empty segment", topic)
		}
	}

	if parts[0] == "$broadcast" {
		if len(parts) != 2 {
			return Topic{}, fmt.Errorf("homie: malformed broadcast topic %q", topic)
		}
		return Topic{Kind: TopicBroadcast, BroadcastLevel: parts[1]}, nil
	}

	if len(parts) < 2 {
		return Topic{}, fmt.Errorf("homie: malformed topic %q", topic)
	}
	device := parts[0]
	if strings.HasPrefix(device, "$") {
		return Topic{}, fmt.Errorf("homie: malformed topic %q: device id cannot start with '$'", topic)
	}
	tail := parts[1:]

	if strings.HasPrefix(tail[0], "$") {
		return Topic{
			Kind:   TopicDeviceAttr,
			Device: device,
			Attr:   strings.Join(tail, "/"),
		}, nil
	}

	node := ParseNodeSegment(tail[0])
	tail = tail[1:]
	if len(tail) == 0 {
		return Topic{}, fmt.Errorf("homie: malformed topic %q: missing node attribute or property", topic)
	}

	if strings.HasPrefix(tail[0], "$") {
		return Topic{
			Kind:   TopicNodeAttr,
			Device: device,
			Node:   node,
			Attr:   strings.Join(tail, "/"),
		}, nil
	}

	property := tail[0]
	tail = tail[1:]
	switch {
	case len(tail) == 0:
		return Topic{
			Kind:     TopicPropertyValue,
			Device:   device,
			Node:     node,
			Property: property,
		}, nil
	case len(tail) == 1 && tail[0] == "set":
		return Topic{
			Kind:     TopicPropertySet,
			Device:   device,
			Node:     node,
			Property: property,
		}, nil
	case strings.HasPrefix(tail[0], "$"):
		return Topic{
			Kind:     TopicPropertyAttr,
			Device:   device,
			Node:     node,
			Property: property,
			Attr:     strings.Join(tail, "/"),
		}, nil
	default:
		return Topic{}, fmt.Errorf("homie: malformed topic %q: unexpected arity", topic)
	}
}

// FormatBroadcastTopic builds $broadcast/<level> under base.
func FormatBroadcastTopic(base, level string) string {
	return base + "$broadcast/" + level
}

// FormatDeviceAttrTopic builds <device>/<attr> under base, where attr
// already carries its leading '$' (e.g. "$name", "$fw/name").
func FormatDeviceAttrTopic(base, device, attr string) string {
	return base + device + "/" + attr
}

// FormatNodeAttrTopic builds <device>/<nodeSeg>/<attr> under base.
func FormatNodeAttrTopic(base, device, nodeSeg, attr string) string {
	return base + device + "/" + nodeSeg + "/" + attr
}

// FormatPropertyTopic builds <device>/<nodeSeg>/<prop> under base.
func FormatPropertyTopic(base, device, nodeSeg, property string) string {
	return base + device + "/" + nodeSeg + "/" + property
}

// FormatPropertyAttrTopic builds <device>/<nodeSeg>/<prop>/<attr> under
// base, where attr already carries its leading '$'.
func FormatPropertyAttrTopic(base, device, nodeSeg, property, attr string) string {
	return base + device + "/" + nodeSeg + "/" + property + "/" + attr
}

// FormatPropertySetTopic builds <device>/<nodeSeg>/<prop>/set under base.
func FormatPropertySetTopic(base, device, nodeSeg, property string) string {
	return base + device + "/" + nodeSeg + "/" + property + "/set"
}

// FormatSetWildcard builds <base><device>/+/+/set, the topic the
// device publisher subscribes to for incoming commands.
func FormatSetWildcard(base, device string) string {
	return base + device + "/+/+/set"
}

// FormatDiscoverWildcard builds <base>#, the topic the controller
// subscribes to.
func FormatDiscoverWildcard(base string) string {
	return base + "#"
}

// ParseArrayRange decodes a $array payload of the form "<lo>-<hi>".
func ParseArrayRange(payload string) (lo, hi int64, err error) {
	parts := strings.SplitN(payload, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("homie: malformed $array payload %q", payload)
	}
	lo, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("homie: malformed $array payload %q: %w", payload, err)
	}
	hi, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("homie: malformed $array payload %q: %w", payload, err)
	}
	if lo < 0 || hi < 0 || lo > hi {
		return 0, 0, fmt.Errorf("homie: invalid $array range %q", payload)
	}
	return lo, hi, nil
}

// FormatArrayRange encodes lo-hi as a $array payload.
func FormatArrayRange(lo, hi int64) string {
	return fmt.Sprintf("%d-%d", lo, hi)
}

// FormatStatsIntervalSeconds converts a millisecond interval to the
// decimal-seconds wire representation used by $stats/interval.
func FormatStatsIntervalSeconds(intervalMs int64) string {
	return strconv.FormatInt(intervalMs/1000, 10)
}

// ParseStatsIntervalSeconds converts a $stats/interval wire payload
// (decimal seconds) to a millisecond interval.
func ParseStatsIntervalSeconds(payload string) (int64, error) {
	seconds, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("homie: malformed $stats/interval payload %q: %w", payload, err)
	}
	return seconds * 1000, nil
}
