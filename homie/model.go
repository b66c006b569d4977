package homie

import "sync"

// Device is the device-role model the engine publishes. Implementations
// are supplied by the user; BasicDevice is a ready-made convenience
// implementation that keeps extension attributes in an open map.
type Device interface {
	ID() string
	Name() string
	State() DeviceState
	LocalIP() string
	MAC() string
	FirmwareName() string
	FirmwareVersion() string
	Implementation() string
	StatsIntervalMs() int64
	Nodes() []Node
	Node(id string) (Node, bool)
	Stats() []Stat
	// Attribute returns an extension attribute not covered by the
	// accessors above. Keys are bare names without a leading '$'.
	Attribute(key string) (string, bool)
}

// Node is a device-role node: a named, typed group of properties,
// optionally instantiated as an array.
type Node interface {
	ID() string
	Name() string
	// NameAt returns the per-index name override for an arrayed node,
	// if the model supplies one. ok is false when no override exists
	// for idx; the publisher then emits no <node>_<idx>/$name for it.
	NameAt(idx int64) (name string, ok bool)
	Type() string
	IsArray() bool
	ArrayRange() (lo, hi int64)
	Properties() []Property
	Property(id string) (Property, bool)
	Attribute(key string) (string, bool)
}

// Property is a device-role property: a typed, optionally settable
// value, addressed per array index when its node is arrayed.
type Property interface {
	ID() string
	Name() string
	Settable() bool
	Unit() string
	Datatype() Datatype
	Format() string

	// Value returns the current value of a non-arrayed property.
	Value() string
	// SetValue is invoked by the command dispatcher on an incoming
	// /set for a non-arrayed property.
	SetValue(value string)
	// ValueAt / SetValueAt are the arrayed-node counterparts.
	ValueAt(idx int64) string
	SetValueAt(idx int64, value string)

	Attribute(key string) (string, bool)
}

// Stat is a device-role $stats/<id> entry.
type Stat interface {
	ID() string
	Value() string
}

// BasicStat is a trivial Stat backed by a mutable string, suitable for
// counters like uptime.
type BasicStat struct {
	mu    sync.RWMutex
	id    string
	value string
}

// NewBasicStat creates a stat with an initial value.
func NewBasicStat(id, value string) *BasicStat {
	return &BasicStat{id: id, value: value}
}

// ID implements Stat.
func (s *BasicStat) ID() string { return s.id }

// Value implements Stat.
func (s *BasicStat) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// SetValue updates the stat's value.
func (s *BasicStat) SetValue(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

// BasicProperty is an open-attribute-map Property implementation.
type BasicProperty struct {
	mu         sync.RWMutex
	id         string
	name       string
	settable   bool
	unit       string
	datatype   Datatype
	format     string
	value      string
	arrayValue map[int64]string
	attrs      map[string]string
	setter     func(value string)
	setterAt   func(idx int64, value string)
}

// NewBasicProperty creates a property with the given id, name and
// datatype. The value and the remaining metadata are set with the
// With* methods.
func NewBasicProperty(id, name string, datatype Datatype) *BasicProperty {
	return &BasicProperty{
		id:         id,
		name:       name,
		datatype:   datatype,
		arrayValue: make(map[int64]string),
		attrs:      make(map[string]string),
	}
}

// WithSettable marks the property settable or not.
func (p *BasicProperty) WithSettable(settable bool) *BasicProperty {
	p.settable = settable
	return p
}

// WithUnit sets the $unit attribute.
func (p *BasicProperty) WithUnit(unit string) *BasicProperty {
	p.unit = unit
	return p
}

// WithFormat sets the $format attribute.
func (p *BasicProperty) WithFormat(format string) *BasicProperty {
	p.format = format
	return p
}

// WithValue sets the initial non-arrayed value.
func (p *BasicProperty) WithValue(value string) *BasicProperty {
	p.value = value
	return p
}

// WithValueAt sets the initial value for a given array index.
func (p *BasicProperty) WithValueAt(idx int64, value string) *BasicProperty {
	p.arrayValue[idx] = value
	return p
}

// WithSetter installs the callback invoked for non-indexed /set
// commands. If unset, SetValue stores the raw payload directly.
func (p *BasicProperty) WithSetter(fn func(value string)) *BasicProperty {
	p.setter = fn
	return p
}

// WithSetterAt installs the callback invoked for indexed /set
// commands. If unset, SetValueAt stores the raw payload directly.
func (p *BasicProperty) WithSetterAt(fn func(idx int64, value string)) *BasicProperty {
	p.setterAt = fn
	return p
}

// ID implements Property.
func (p *BasicProperty) ID() string { return p.id }

// Name implements Property.
func (p *BasicProperty) Name() string { return p.name }

// Settable implements Property.
func (p *BasicProperty) Settable() bool { return p.settable }

// Unit implements Property.
func (p *BasicProperty) Unit() string { return p.unit }

// Datatype implements Property.
func (p *BasicProperty) Datatype() Datatype { return p.datatype }

// Format implements Property.
func (p *BasicProperty) Format() string { return p.format }

// Value implements Property.
func (p *BasicProperty) Value() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// SetValue implements Property.
func (p *BasicProperty) SetValue(value string) {
	if p.setter != nil {
		p.setter(value)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
}

// ValueAt implements Property.
func (p *BasicProperty) ValueAt(idx int64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.arrayValue[idx]
}

// SetValueAt implements Property.
func (p *BasicProperty) SetValueAt(idx int64, value string) {
	if p.setterAt != nil {
		p.setterAt(idx, value)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrayValue[idx] = value
}

// Attribute implements Property, reading an extension attribute.
func (p *BasicProperty) Attribute(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.attrs[key]
	return v, ok
}

// SetAttribute stores an extension attribute.
func (p *BasicProperty) SetAttribute(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attrs[key] = value
}

// BasicNode is an open-attribute-map Node implementation. Properties
// are stored in insertion order for deterministic publication.
type BasicNode struct {
	mu          sync.RWMutex
	id          string
	name        string
	nodeType    string
	array       bool
	lo, hi      int64
	nameAt      map[int64]string
	propOrder   []string
	props       map[string]Property
	attrs       map[string]string
}

// NewBasicNode creates a non-arrayed node.
func NewBasicNode(id, name, nodeType string) *BasicNode {
	return &BasicNode{
		id:       id,
		name:     name,
		nodeType: nodeType,
		nameAt:   make(map[int64]string),
		props:    make(map[string]Property),
		attrs:    make(map[string]string),
	}
}

// WithArray marks the node as arrayed over [lo, hi].
func (n *BasicNode) WithArray(lo, hi int64) *BasicNode {
	n.array = true
	n.lo, n.hi = lo, hi
	return n
}

// WithNameAt sets a per-index name override, published as
// <node>_<idx>/$name ahead of that index's values.
func (n *BasicNode) WithNameAt(idx int64, name string) *BasicNode {
	n.nameAt[idx] = name
	return n
}

// AddProperty appends a property to the node in enumeration order.
func (n *BasicNode) AddProperty(p Property) *BasicNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.props[p.ID()]; !exists {
		n.propOrder = append(n.propOrder, p.ID())
	}
	n.props[p.ID()] = p
	return n
}

// ID implements Node.
func (n *BasicNode) ID() string { return n.id }

// Name implements Node.
func (n *BasicNode) Name() string { return n.name }

// NameAt implements Node.
func (n *BasicNode) NameAt(idx int64) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	name, ok := n.nameAt[idx]
	return name, ok
}

// Type implements Node.
func (n *BasicNode) Type() string { return n.nodeType }

// IsArray implements Node.
func (n *BasicNode) IsArray() bool { return n.array }

// ArrayRange implements Node.
func (n *BasicNode) ArrayRange() (int64, int64) { return n.lo, n.hi }

// Properties implements Node, in insertion order.
func (n *BasicNode) Properties() []Property {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Property, 0, len(n.propOrder))
	for _, id := range n.propOrder {
		out = append(out, n.props[id])
	}
	return out
}

// Property implements Node.
func (n *BasicNode) Property(id string) (Property, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.props[id]
	return p, ok
}

// Attribute implements Node, reading an extension attribute.
func (n *BasicNode) Attribute(key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[key]
	return v, ok
}

// SetAttribute stores an extension attribute.
func (n *BasicNode) SetAttribute(key, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attrs[key] = value
}

// BasicDevice is an open-attribute-map Device implementation.
type BasicDevice struct {
	mu              sync.RWMutex
	id              string
	name            string
	state           DeviceState
	localip         string
	mac             string
	fwName          string
	fwVersion       string
	implementation  string
	statsIntervalMs int64
	nodeOrder       []string
	nodes           map[string]Node
	statOrder       []string
	stats           map[string]Stat
	attrs           map[string]string
}

// NewBasicDevice creates a device in the init state.
func NewBasicDevice(id, name string) *BasicDevice {
	return &BasicDevice{
		id:             id,
		name:           name,
		state:          StateInit,
		implementation: "homiekit",
		nodes:          make(map[string]Node),
		stats:          make(map[string]Stat),
		attrs:          make(map[string]string),
	}
}

// WithLocalIP sets the $localip attribute.
func (d *BasicDevice) WithLocalIP(ip string) *BasicDevice { d.localip = ip; return d }

// WithMAC sets the $mac attribute.
func (d *BasicDevice) WithMAC(mac string) *BasicDevice { d.mac = mac; return d }

// WithFirmware sets the $fw/name and $fw/version attributes.
func (d *BasicDevice) WithFirmware(name, version string) *BasicDevice {
	d.fwName, d.fwVersion = name, version
	return d
}

// WithImplementation sets the $implementation attribute.
func (d *BasicDevice) WithImplementation(impl string) *BasicDevice {
	d.implementation = impl
	return d
}

// WithStatsInterval sets the stats reporting interval in milliseconds.
func (d *BasicDevice) WithStatsInterval(ms int64) *BasicDevice {
	d.statsIntervalMs = ms
	return d
}

// AddNode appends a node to the device in enumeration order.
func (d *BasicDevice) AddNode(n Node) *BasicDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[n.ID()]; !exists {
		d.nodeOrder = append(d.nodeOrder, n.ID())
	}
	d.nodes[n.ID()] = n
	return d
}

// AddStat appends a stat to the device in enumeration order.
func (d *BasicDevice) AddStat(s Stat) *BasicDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.stats[s.ID()]; !exists {
		d.statOrder = append(d.statOrder, s.ID())
	}
	d.stats[s.ID()] = s
	return d
}

// SetState updates the device's lifecycle state.
func (d *BasicDevice) SetState(s DeviceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

// ID implements Device.
func (d *BasicDevice) ID() string { return d.id }

// Name implements Device.
func (d *BasicDevice) Name() string { return d.name }

// State implements Device.
func (d *BasicDevice) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LocalIP implements Device.
func (d *BasicDevice) LocalIP() string { return d.localip }

// MAC implements Device.
func (d *BasicDevice) MAC() string { return d.mac }

// FirmwareName implements Device.
func (d *BasicDevice) FirmwareName() string { return d.fwName }

// FirmwareVersion implements Device.
func (d *BasicDevice) FirmwareVersion() string { return d.fwVersion }

// Implementation implements Device.
func (d *BasicDevice) Implementation() string { return d.implementation }

// StatsIntervalMs implements Device.
func (d *BasicDevice) StatsIntervalMs() int64 { return d.statsIntervalMs }

// Nodes implements Device, in insertion order.
func (d *BasicDevice) Nodes() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Node, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id])
	}
	return out
}

// Node implements Device.
func (d *BasicDevice) Node(id string) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return n, ok
}

// Stats implements Device, in insertion order.
func (d *BasicDevice) Stats() []Stat {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Stat, 0, len(d.statOrder))
	for _, id := range d.statOrder {
		out = append(out, d.stats[id])
	}
	return out
}

// Attribute implements Device, reading an extension attribute.
func (d *BasicDevice) Attribute(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.attrs[key]
	return v, ok
}

// SetAttribute stores an extension attribute.
func (d *BasicDevice) SetAttribute(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attrs[key] = value
}
