package homie

// ControllerEventHandler receives the controller's domain-level
// observations: broadcasts, the single discovery transition per device,
// and fine-grained changes once a device has been discovered. No
// fine-grained event fires for a device still assembling; the message
// that completes assembly is absorbed into OnDeviceDiscovered.
type ControllerEventHandler interface {
	// OnBroadcast fires for every $broadcast/<level> message. It never
	// touches the device tree.
	OnBroadcast(level, payload string)

	// OnDeviceDiscovered fires exactly once per device, the moment it
	// becomes structurally complete and is observed at $state=ready. No
	// other callback fires for that device before this one.
	OnDeviceDiscovered(dev *DiscoveredDevice)

	// OnDeviceChanged fires for a device attribute (including $state)
	// observed after discovery.
	OnDeviceChanged(dev *DiscoveredDevice, attr string)

	// OnNodeChanged fires for a non-indexed node attribute observed
	// after discovery.
	OnNodeChanged(node *DiscoveredNode, attr string)
	// OnNodeChangedAt fires for a per-index node attribute (currently
	// only $name overrides) observed after discovery.
	OnNodeChangedAt(node *DiscoveredNode, idx int64, attr string)

	// OnPropertyChanged fires for property metadata observed after
	// discovery.
	OnPropertyChanged(prop *DiscoveredProperty, attr string)
	// OnPropertyChangedAt is the arrayed-node counterpart.
	OnPropertyChangedAt(prop *DiscoveredProperty, idx int64, attr string)

	// OnPropertyValueChanged fires for every non-arrayed property value
	// message observed after discovery; the payload is not compared
	// with the previously stored value.
	OnPropertyValueChanged(prop *DiscoveredProperty, value string)
	// OnPropertyValueChangedAt is the arrayed-node counterpart.
	OnPropertyValueChangedAt(prop *DiscoveredProperty, idx int64, value string)
}

// NoopControllerEventHandler implements ControllerEventHandler with
// no-ops, so embedders only override the callbacks they care about.
type NoopControllerEventHandler struct{}

func (NoopControllerEventHandler) OnBroadcast(level, payload string)         {}
func (NoopControllerEventHandler) OnDeviceDiscovered(dev *DiscoveredDevice)  {}
func (NoopControllerEventHandler) OnDeviceChanged(dev *DiscoveredDevice, attr string) {}
func (NoopControllerEventHandler) OnNodeChanged(node *DiscoveredNode, attr string)    {}
func (NoopControllerEventHandler) OnNodeChangedAt(node *DiscoveredNode, idx int64, attr string) {
}
func (NoopControllerEventHandler) OnPropertyChanged(prop *DiscoveredProperty, attr string) {}
func (NoopControllerEventHandler) OnPropertyChangedAt(prop *DiscoveredProperty, idx int64, attr string) {
}
func (NoopControllerEventHandler) OnPropertyValueChanged(prop *DiscoveredProperty, value string) {}
func (NoopControllerEventHandler) OnPropertyValueChangedAt(prop *DiscoveredProperty, idx int64, value string) {
}

var _ ControllerEventHandler = NoopControllerEventHandler{}
