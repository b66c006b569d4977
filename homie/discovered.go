package homie

import (
	"strings"
	"sync"
)

// declaredNodeRef is one entry of a device's parsed $nodes list.
type declaredNodeRef struct {
	id      string
	arrayed bool
}

// DiscoveredProperty is the controller-side reconstruction of a
// property, built incrementally from retained traffic. It satisfies a
// read-only accessor shape mirroring homie.Property, plus an opaque
// Attribute escape hatch for extension attributes not otherwise typed.
type DiscoveredProperty struct {
	mu sync.RWMutex

	id         string
	name       string
	settable   bool
	unit       string
	datatype   Datatype
	format     string
	value      string
	arrayValue map[int64]string
	attrs      map[string]string

	seenName     bool
	seenDatatype bool
}

func newDiscoveredProperty(id string) *DiscoveredProperty {
	return &DiscoveredProperty{
		id:         id,
		arrayValue: make(map[int64]string),
		attrs:      make(map[string]string),
	}
}

// ID implements the Property accessor shape.
func (p *DiscoveredProperty) ID() string { return p.id }

// Name implements the Property accessor shape.
func (p *DiscoveredProperty) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Settable implements the Property accessor shape.
func (p *DiscoveredProperty) Settable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settable
}

// Unit implements the Property accessor shape.
func (p *DiscoveredProperty) Unit() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unit
}

// Datatype implements the Property accessor shape.
func (p *DiscoveredProperty) Datatype() Datatype {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.datatype
}

// Format implements the Property accessor shape.
func (p *DiscoveredProperty) Format() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.format
}

// Value returns the current non-arrayed value.
func (p *DiscoveredProperty) Value() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// ValueAt returns the current value at a given array index.
func (p *DiscoveredProperty) ValueAt(idx int64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.arrayValue[idx]
}

// Attribute reads an extension attribute not covered by the typed
// accessors, keyed by its bare wire name (e.g. "$color-mode").
func (p *DiscoveredProperty) Attribute(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.attrs[key]
	return v, ok
}

func (p *DiscoveredProperty) applyAttr(attr, payload string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch attr {
	case "$name":
		p.name = payload
		p.seenName = true
	case "$settable":
		p.settable = payload == "true"
	case "$unit":
		p.unit = payload
	case "$datatype":
		p.datatype = ParseDatatype(payload)
		p.seenDatatype = true
	case "$format":
		p.format = payload
	default:
		p.attrs[attr] = payload
	}
}

func (p *DiscoveredProperty) setValue(payload string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = payload
}

func (p *DiscoveredProperty) setValueAt(idx int64, payload string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrayValue[idx] = payload
}

func (p *DiscoveredProperty) complete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seenName && p.seenDatatype
}

// DiscoveredNode is the controller-side reconstruction of a node.
type DiscoveredNode struct {
	mu sync.RWMutex

	id       string
	name     string
	nameAt   map[int64]string
	nodeType string
	array    bool
	lo, hi   int64

	propOrder     []string
	props         map[string]*DiscoveredProperty
	declaredProps []string
	attrs         map[string]string

	// declaredArrayed reflects how the owning device's $nodes listed
	// this node (a "[]" suffix), independent of whether this node's
	// own $array attribute has arrived yet. Completeness requires both
	// to agree: a node declared arrayed is not complete until its
	// $array attribute is observed too.
	declaredArrayed bool

	seenName       bool
	seenType       bool
	seenProperties bool
}

func newDiscoveredNode(id string) *DiscoveredNode {
	return &DiscoveredNode{
		id:     id,
		nameAt: make(map[int64]string),
		props:  make(map[string]*DiscoveredProperty),
		attrs:  make(map[string]string),
	}
}

// ID implements the Node accessor shape.
func (n *DiscoveredNode) ID() string { return n.id }

// Name implements the Node accessor shape.
func (n *DiscoveredNode) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// NameAt implements the Node accessor shape.
func (n *DiscoveredNode) NameAt(idx int64) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	name, ok := n.nameAt[idx]
	return name, ok
}

// Type implements the Node accessor shape.
func (n *DiscoveredNode) Type() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nodeType
}

// IsArray implements the Node accessor shape.
func (n *DiscoveredNode) IsArray() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.array
}

// ArrayRange implements the Node accessor shape.
func (n *DiscoveredNode) ArrayRange() (int64, int64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lo, n.hi
}

// Properties returns the node's properties in enumeration order.
func (n *DiscoveredNode) Properties() []*DiscoveredProperty {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*DiscoveredProperty, 0, len(n.propOrder))
	for _, id := range n.propOrder {
		out = append(out, n.props[id])
	}
	return out
}

// Property looks up a property by id.
func (n *DiscoveredNode) Property(id string) (*DiscoveredProperty, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.props[id]
	return p, ok
}

// Attribute reads an extension attribute.
func (n *DiscoveredNode) Attribute(key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[key]
	return v, ok
}

func (n *DiscoveredNode) getOrCreateProperty(id string) *DiscoveredProperty {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.props[id]
	if !ok {
		p = newDiscoveredProperty(id)
		n.props[id] = p
		n.propOrder = append(n.propOrder, id)
	}
	return p
}

func (n *DiscoveredNode) setNameAt(idx int64, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nameAt[idx] = name
}

func (n *DiscoveredNode) markDeclaredArrayed(arrayed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.declaredArrayed = arrayed
}

func (n *DiscoveredNode) applyAttr(attr, payload string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch attr {
	case "$name":
		n.name = payload
		n.seenName = true
	case "$type":
		n.nodeType = payload
		n.seenType = true
	case "$properties":
		ids := splitCSV(payload)
		n.declaredProps = ids
		n.seenProperties = true
	case "$array":
		lo, hi, err := ParseArrayRange(payload)
		if err == nil {
			n.array = true
			n.lo, n.hi = lo, hi
		}
	default:
		n.attrs[attr] = payload
	}
}

func (n *DiscoveredNode) complete() bool {
	n.mu.RLock()
	ok := n.seenName && n.seenType && n.seenProperties
	declaredArrayed := n.declaredArrayed
	// lo <= hi is already guaranteed by ParseArrayRange before n.array is
	// ever set true; arrayObserved is just n.array.
	arrayObserved := n.array
	declared := append([]string(nil), n.declaredProps...)
	n.mu.RUnlock()
	if !ok {
		return false
	}
	if declaredArrayed && !arrayObserved {
		return false
	}
	for _, id := range declared {
		p, exists := n.Property(id)
		if !exists || !p.complete() {
			return false
		}
	}
	return true
}

// DiscoveredDevice is the controller-side reconstruction of a device,
// assembled incrementally from retained traffic until it is
// structurally complete and observed at $state=ready.
type DiscoveredDevice struct {
	mu sync.RWMutex

	id              string
	name            string
	state           DeviceState
	localip         string
	mac             string
	fwName          string
	fwVersion       string
	implementation  string
	statsIntervalMs int64

	statOrder []string
	stats     map[string]string

	nodeOrder     []string
	nodes         map[string]*DiscoveredNode
	declaredNodes []declaredNodeRef
	attrs         map[string]string

	seenHomie bool
	seenName  bool
	seenState bool
	seenNodes bool

	discovered bool
}

func newDiscoveredDevice(id string) *DiscoveredDevice {
	return &DiscoveredDevice{
		id:     id,
		state:  StateUnknown,
		stats:  make(map[string]string),
		nodes:  make(map[string]*DiscoveredNode),
		attrs:  make(map[string]string),
	}
}

// ID implements the Device accessor shape.
func (d *DiscoveredDevice) ID() string { return d.id }

// Name implements the Device accessor shape.
func (d *DiscoveredDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// State implements the Device accessor shape.
func (d *DiscoveredDevice) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LocalIP implements the Device accessor shape.
func (d *DiscoveredDevice) LocalIP() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.localip
}

// MAC implements the Device accessor shape.
func (d *DiscoveredDevice) MAC() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mac
}

// FirmwareName implements the Device accessor shape.
func (d *DiscoveredDevice) FirmwareName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fwName
}

// FirmwareVersion implements the Device accessor shape.
func (d *DiscoveredDevice) FirmwareVersion() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fwVersion
}

// Implementation implements the Device accessor shape.
func (d *DiscoveredDevice) Implementation() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.implementation
}

// StatsIntervalMs implements the Device accessor shape.
func (d *DiscoveredDevice) StatsIntervalMs() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.statsIntervalMs
}

// Stat returns the raw value observed under $stats/<id>.
func (d *DiscoveredDevice) Stat(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.stats[id]
	return v, ok
}

// StatIDs returns the ids listed in the device's $stats attribute, in
// the order they were declared.
func (d *DiscoveredDevice) StatIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.statOrder))
	copy(out, d.statOrder)
	return out
}

// Nodes returns the device's nodes in enumeration order.
func (d *DiscoveredDevice) Nodes() []*DiscoveredNode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*DiscoveredNode, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id])
	}
	return out
}

// Node looks up a node by id.
func (d *DiscoveredDevice) Node(id string) (*DiscoveredNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return n, ok
}

// Attribute reads an extension device attribute.
func (d *DiscoveredDevice) Attribute(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.attrs[key]
	return v, ok
}

// Discovered reports whether this device has completed assembly and
// been observed at $state=ready at least once.
func (d *DiscoveredDevice) Discovered() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.discovered
}

// declaredNodeIDs returns the ids and arrayed-ness parsed from the most
// recently observed $nodes attribute.
func (d *DiscoveredDevice) declaredNodeIDs() []declaredNodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]declaredNodeRef(nil), d.declaredNodes...)
}

func (d *DiscoveredDevice) getOrCreateNode(id string) *DiscoveredNode {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok {
		n = newDiscoveredNode(id)
		d.nodes[id] = n
		d.nodeOrder = append(d.nodeOrder, id)
	}
	return n
}

func (d *DiscoveredDevice) applyAttr(attr, payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case attr == "$homie":
		d.seenHomie = true
	case attr == "$name":
		d.name = payload
		d.seenName = true
	case attr == "$state":
		d.state = ParseDeviceState(payload)
		d.seenState = true
	case attr == "$localip":
		d.localip = payload
	case attr == "$mac":
		d.mac = payload
	case attr == "$fw/name":
		d.fwName = payload
	case attr == "$fw/version":
		d.fwVersion = payload
	case attr == "$implementation":
		d.implementation = payload
	case attr == "$nodes":
		d.declaredNodes = parseNodesList(payload)
		d.seenNodes = true
	case attr == "$stats":
		d.statOrder = splitCSV(payload)
	case attr == "$stats/interval":
		if ms, err := ParseStatsIntervalSeconds(payload); err == nil {
			d.statsIntervalMs = ms
		}
	case strings.HasPrefix(attr, "$stats/"):
		id := strings.TrimPrefix(attr, "$stats/")
		if _, known := d.stats[id]; !known {
			d.statOrder = appendUnique(d.statOrder, id)
		}
		d.stats[id] = payload
	default:
		d.attrs[attr] = payload
	}
}

func (d *DiscoveredDevice) complete() bool {
	d.mu.RLock()
	ok := d.seenHomie && d.seenName && d.seenState && d.seenNodes
	declared := append([]declaredNodeRef(nil), d.declaredNodes...)
	d.mu.RUnlock()
	if !ok {
		return false
	}
	for _, ref := range declared {
		n, exists := d.Node(ref.id)
		if !exists || !n.complete() {
			return false
		}
	}
	return true
}

func (d *DiscoveredDevice) isReady() bool {
	return d.State() == StateReady
}

func parseNodesList(payload string) []declaredNodeRef {
	if payload == "" {
		return nil
	}
	ids := splitCSV(payload)
	out := make([]declaredNodeRef, 0, len(ids))
	for _, id := range ids {
		arrayed := strings.HasSuffix(id, "[]")
		if arrayed {
			id = strings.TrimSuffix(id, "[]")
		}
		out = append(out, declaredNodeRef{id: id, arrayed: arrayed})
	}
	return out
}

func splitCSV(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ",")
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
