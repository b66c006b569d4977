package homie

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DevicePublisher is the device role of the engine: it publishes the
// retained description of every device it owns, in a fixed canonical
// order, and routes incoming /set commands to the matching property's
// setter.
type DevicePublisher struct {
	mu          sync.Mutex
	opts        options
	session     Session
	devices     map[string]Device
	deviceOrder []string
	subscribed  map[string]bool
	closed      bool

	NoopEventHandler
}

// NewDevicePublisher creates a publisher bound to session. It installs
// itself as the session's event handler; callers add devices with
// AddDevice and then call Open to request the connection.
func NewDevicePublisher(session Session, opts ...Option) *DevicePublisher {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	p := &DevicePublisher{
		opts:       o,
		session:    session,
		devices:    make(map[string]Device),
		subscribed: make(map[string]bool),
	}
	session.SetEventHandler(p)
	return p
}

// AddDevice registers a device to be published. If the session is
// already connected, the device's full tree is published immediately;
// otherwise it is published on the next OnConnect.
func (p *DevicePublisher) AddDevice(ctx context.Context, d Device) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrDevicePublisherClosed
	}
	if _, exists := p.devices[d.ID()]; exists {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID())
	}
	p.devices[d.ID()] = d
	p.deviceOrder = append(p.deviceOrder, d.ID())
	connected := p.session.IsConnected()
	p.mu.Unlock()

	if connected {
		return p.publishDevice(ctx, d)
	}
	return nil
}

// Open requests the session connect with a Last-Will-and-Testament
// that publishes $state=lost, retained, for the first device added.
// At least one device must be added first. The LWT payload is always
// "lost" at QoS 1, retained.
func (p *DevicePublisher) Open(ctx context.Context) error {
	p.mu.Lock()
	if len(p.deviceOrder) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("homie: Open called before any device was added")
	}
	willDevice := p.deviceOrder[0]
	base := p.opts.baseTopic
	p.mu.Unlock()

	willTopic := FormatDeviceAttrTopic(base, willDevice, "$state")
	return p.session.OpenWithWill(ctx, willTopic, StateLost.String(), 1, true)
}

// Close publishes $state=disconnected for every owned device and
// unsubscribes their /set wildcards. After Close, AddDevice fails.
func (p *DevicePublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.OnClosing()
	return nil
}

// NotifyPropertyChanged republishes the current value of a property.
// For an arrayed node this republishes every index. Unresolved ids are
// silently ignored.
func (p *DevicePublisher) NotifyPropertyChanged(ctx context.Context, deviceID, nodeID, propertyID string) error {
	base, node, prop, ok := p.resolve(deviceID, nodeID, propertyID)
	if !ok {
		return nil
	}
	if !node.IsArray() {
		return p.session.Publish(ctx, FormatPropertyTopic(base, deviceID, nodeID, propertyID), prop.Value(), 1, true)
	}
	lo, hi := node.ArrayRange()
	for i := lo; i <= hi; i++ {
		seg := FormatNodeSegment(nodeID, i, true)
		if err := p.session.Publish(ctx, FormatPropertyTopic(base, deviceID, seg, propertyID), prop.ValueAt(i), 1, true); err != nil {
			return err
		}
	}
	return nil
}

// NotifyPropertyChangedAt republishes a single array index of a
// property. Unresolved ids, a non-arrayed node, or an out-of-range
// index are silently ignored.
func (p *DevicePublisher) NotifyPropertyChangedAt(ctx context.Context, deviceID, nodeID, propertyID string, idx int64) error {
	base, node, prop, ok := p.resolve(deviceID, nodeID, propertyID)
	if !ok || !node.IsArray() {
		return nil
	}
	lo, hi := node.ArrayRange()
	if idx < lo || idx > hi {
		return nil
	}
	seg := FormatNodeSegment(nodeID, idx, true)
	return p.session.Publish(ctx, FormatPropertyTopic(base, deviceID, seg, propertyID), prop.ValueAt(idx), 1, true)
}

// RepublishStat republishes a single $stats/<id> value, e.g. after a
// periodic uptime tick.
func (p *DevicePublisher) RepublishStat(ctx context.Context, deviceID, statID string) error {
	p.mu.Lock()
	d, ok := p.devices[deviceID]
	base := p.opts.baseTopic
	p.mu.Unlock()
	if !ok {
		return nil
	}
	for _, s := range d.Stats() {
		if s.ID() == statID {
			return p.session.Publish(ctx, FormatDeviceAttrTopic(base, deviceID, "$stats/"+statID), s.Value(), 1, true)
		}
	}
	return nil
}

func (p *DevicePublisher) resolve(deviceID, nodeID, propertyID string) (base string, node Node, prop Property, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, exists := p.devices[deviceID]
	if !exists {
		return "", nil, nil, false
	}
	n, exists := d.Node(nodeID)
	if !exists {
		return "", nil, nil, false
	}
	pr, exists := n.Property(propertyID)
	if !exists {
		return "", nil, nil, false
	}
	return p.opts.baseTopic, n, pr, true
}

// OnConnect implements EventHandler. It republishes every owned
// device's full tree, in order. A reconnect is treated identically to
// a first connect: the republish is idempotent.
func (p *DevicePublisher) OnConnect(sessionPresent, isReconnect bool) {
	p.mu.Lock()
	devices := make([]Device, 0, len(p.deviceOrder))
	for _, id := range p.deviceOrder {
		devices = append(devices, p.devices[id])
	}
	p.mu.Unlock()

	ctx := context.Background()
	for _, d := range devices {
		if err := p.publishDevice(ctx, d); err != nil {
			p.opts.logger.Warn("homie: device publish failed", "device", d.ID(), "error", err)
		}
	}
}

// OnMessage implements EventHandler, routing incoming /set commands.
func (p *DevicePublisher) OnMessage(topic, payload string) {
	p.mu.Lock()
	base := p.opts.baseTopic
	p.mu.Unlock()

	t, err := ParseTopic(base, topic)
	if err != nil {
		p.opts.logger.Debug("homie: dropping malformed topic", "topic", topic, "error", err)
		return
	}
	if t.Kind != TopicPropertySet {
		return
	}
	p.mu.Lock()
	d, ok := p.devices[t.Device]
	p.mu.Unlock()
	if !ok {
		return
	}
	dispatchSet(d, t, payload, p.opts.logger)
}

// OnClosing implements EventHandler. It publishes $state=disconnected
// for every device, then unsubscribes each device's set wildcard.
func (p *DevicePublisher) OnClosing() {
	p.mu.Lock()
	base := p.opts.baseTopic
	devices := make([]string, len(p.deviceOrder))
	copy(devices, p.deviceOrder)
	p.mu.Unlock()

	ctx := context.Background()
	for _, id := range devices {
		topic := FormatDeviceAttrTopic(base, id, "$state")
		if err := p.session.Publish(ctx, topic, StateDisconnected.String(), 1, true); err != nil {
			p.opts.logger.Warn("homie: failed to publish disconnected state", "device", id, "error", err)
		}
	}
	for _, id := range devices {
		if err := p.session.Unsubscribe(ctx, FormatSetWildcard(base, id)); err != nil {
			p.opts.logger.Warn("homie: failed to unsubscribe", "device", id, "error", err)
		}
	}
}

// publishDevice emits the full retained description of d in the fixed
// canonical order the convention requires.
func (p *DevicePublisher) publishDevice(ctx context.Context, d Device) error {
	p.mu.Lock()
	base := p.opts.baseTopic
	p.mu.Unlock()

	id := d.ID()
	pub := func(attr, value string) error {
		return p.session.Publish(ctx, FormatDeviceAttrTopic(base, id, attr), value, 1, true)
	}

	// 1. $state=init
	if err := pub("$state", StateInit.String()); err != nil {
		return err
	}

	// 2. $homie
	if err := pub("$homie", HomieSpecVersion); err != nil {
		return err
	}

	// 3. $name, $localip, $mac, $fw/name, $fw/version
	for _, kv := range [][2]string{
		{"$name", d.Name()},
		{"$localip", d.LocalIP()},
		{"$mac", d.MAC()},
		{"$fw/name", d.FirmwareName()},
		{"$fw/version", d.FirmwareVersion()},
	} {
		if err := pub(kv[0], kv[1]); err != nil {
			return err
		}
	}

	validNodes, arrayErr := p.validNodes(d)

	// 4. $nodes
	nodeNames := make([]string, 0, len(validNodes))
	for _, n := range validNodes {
		if n.IsArray() {
			nodeNames = append(nodeNames, n.ID()+"[]")
		} else {
			nodeNames = append(nodeNames, n.ID())
		}
	}
	if err := pub("$nodes", strings.Join(nodeNames, ",")); err != nil {
		return err
	}

	// 5. $implementation
	if err := pub("$implementation", d.Implementation()); err != nil {
		return err
	}

	// 6. $stats, $stats/interval, $stats/<id>
	stats := d.Stats()
	statIDs := make([]string, 0, len(stats))
	for _, s := range stats {
		statIDs = append(statIDs, s.ID())
	}
	if err := pub("$stats", strings.Join(statIDs, ",")); err != nil {
		return err
	}
	if err := pub("$stats/interval", FormatStatsIntervalSeconds(d.StatsIntervalMs())); err != nil {
		return err
	}
	for _, s := range stats {
		if err := pub("$stats/"+s.ID(), s.Value()); err != nil {
			return err
		}
	}

	// 7. per-node blocks
	for _, n := range validNodes {
		if err := p.publishNode(ctx, base, id, n); err != nil {
			return err
		}
	}

	// 8. subscribe to <base><device>/+/+/set
	wildcard := FormatSetWildcard(base, id)
	if err := p.session.Subscribe(ctx, wildcard, 1); err != nil {
		return err
	}
	p.mu.Lock()
	p.subscribed[id] = true
	p.mu.Unlock()

	// 9. $state=<real state>
	if err := pub("$state", d.State().String()); err != nil {
		return err
	}
	return arrayErr
}

// validNodes filters out nodes whose array range is inconsistent
// (hi < lo), logging and refusing to emit the broken subtree rather
// than publish a malformed $array attribute. The rest of the device's
// tree still publishes; err, if non-nil, wraps ErrInvalidArrayRange
// once per skipped node so the caller can observe and act on it
// instead of it being visible only in logs.
func (p *DevicePublisher) validNodes(d Device) (nodes []Node, err error) {
	all := d.Nodes()
	out := make([]Node, 0, len(all))
	var errs []error
	for _, n := range all {
		if n.IsArray() {
			lo, hi := n.ArrayRange()
			if hi < lo {
				p.opts.logger.Warn("homie: skipping node with invalid array range", "device", d.ID(), "node", n.ID(), "lo", lo, "hi", hi)
				errs = append(errs, fmt.Errorf("%w: device=%s node=%s range=%d-%d", ErrInvalidArrayRange, d.ID(), n.ID(), lo, hi))
				continue
			}
		}
		out = append(out, n)
	}
	return out, errors.Join(errs...)
}

func (p *DevicePublisher) publishNode(ctx context.Context, base, deviceID string, n Node) error {
	nodeID := n.ID()
	pubNode := func(attr, value string) error {
		return p.session.Publish(ctx, FormatNodeAttrTopic(base, deviceID, nodeID, attr), value, 1, true)
	}

	// 7a.
	if err := pubNode("$name", n.Name()); err != nil {
		return err
	}
	if err := pubNode("$type", n.Type()); err != nil {
		return err
	}

	// 7b.
	props := n.Properties()
	propIDs := make([]string, 0, len(props))
	for _, pr := range props {
		propIDs = append(propIDs, pr.ID())
	}
	if err := pubNode("$properties", strings.Join(propIDs, ",")); err != nil {
		return err
	}

	var lo, hi int64
	arrayed := n.IsArray()
	if arrayed {
		lo, hi = n.ArrayRange()
		// 7c.
		if err := pubNode("$array", FormatArrayRange(lo, hi)); err != nil {
			return err
		}
		for i := lo; i <= hi; i++ {
			if name, ok := n.NameAt(i); ok {
				seg := FormatNodeSegment(nodeID, i, true)
				topic := FormatNodeAttrTopic(base, deviceID, seg, "$name")
				if err := p.session.Publish(ctx, topic, name, 1, true); err != nil {
					return err
				}
			}
		}
	}

	// 7d.
	for _, pr := range props {
		if err := p.publishProperty(ctx, base, deviceID, nodeID, pr, arrayed, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

func (p *DevicePublisher) publishProperty(ctx context.Context, base, deviceID, nodeID string, pr Property, arrayed bool, lo, hi int64) error {
	pubAttr := func(attr, value string) error {
		return p.session.Publish(ctx, FormatPropertyAttrTopic(base, deviceID, nodeID, pr.ID(), attr), value, 1, true)
	}

	for _, kv := range [][2]string{
		{"$name", pr.Name()},
		{"$settable", boolWire(pr.Settable())},
		{"$unit", pr.Unit()},
		{"$datatype", pr.Datatype().String()},
		{"$format", pr.Format()},
	} {
		if err := pubAttr(kv[0], kv[1]); err != nil {
			return err
		}
	}

	if !arrayed {
		topic := FormatPropertyTopic(base, deviceID, nodeID, pr.ID())
		return p.session.Publish(ctx, topic, pr.Value(), 1, true)
	}
	for i := lo; i <= hi; i++ {
		seg := FormatNodeSegment(nodeID, i, true)
		topic := FormatPropertyTopic(base, deviceID, seg, pr.ID())
		if err := p.session.Publish(ctx, topic, pr.ValueAt(i), 1, true); err != nil {
			return err
		}
	}
	return nil
}

func boolWire(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var _ EventHandler = (*DevicePublisher)(nil)
