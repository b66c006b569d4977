package homie

import (
	"context"
	"sync"
)

// Controller is the controller role of the engine: it subscribes to
// the whole convention namespace, incrementally reconstructs the
// device tree from retained traffic, and fans out discovery and
// change events once each device is structurally complete and
// observed at $state=ready.
type Controller struct {
	mu      sync.Mutex
	opts    options
	session Session
	handler ControllerEventHandler

	devices     map[string]*DiscoveredDevice
	deviceOrder []string
	closed      bool

	NoopEventHandler
}

// NewController creates a controller bound to session. It installs
// itself as the session's event handler; callers call Open to request
// the connection and SetEventHandler to receive domain events.
func NewController(session Session, opts ...Option) *Controller {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	c := &Controller{
		opts:    o,
		session: session,
		handler: NoopControllerEventHandler{},
		devices: make(map[string]*DiscoveredDevice),
	}
	session.SetEventHandler(c)
	return c
}

// SetEventHandler installs the sink for domain-level events. Passing
// nil restores the no-op handler.
func (c *Controller) SetEventHandler(h ControllerEventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		h = NoopControllerEventHandler{}
	}
	c.handler = h
}

// Open requests the session connect without a Last-Will-and-Testament:
// the controller role never publishes.
func (c *Controller) Open(ctx context.Context) error {
	return c.session.Open(ctx)
}

// Close unsubscribes the controller's discover-wildcard subscription,
// the one subscription OnConnect ever registers. It is idempotent:
// calling it again is a no-op.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	base := c.opts.baseTopic
	c.mu.Unlock()

	return c.session.Unsubscribe(ctx, FormatDiscoverWildcard(base))
}

// GetDiscoveredDevices returns a snapshot of every device that has
// reached complete-and-ready at least once, in the order first added.
func (c *Controller) GetDiscoveredDevices() []*DiscoveredDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*DiscoveredDevice, 0, len(c.deviceOrder))
	for _, id := range c.deviceOrder {
		if d := c.devices[id]; d.Discovered() {
			out = append(out, d)
		}
	}
	return out
}

// GetDiscoveredDevice looks up a discovered device by id. ok is false
// both when the id is unknown and when it is still assembling.
func (c *Controller) GetDiscoveredDevice(id string) (*DiscoveredDevice, bool) {
	c.mu.Lock()
	d, exists := c.devices[id]
	c.mu.Unlock()
	if !exists || !d.Discovered() {
		return nil, false
	}
	return d, true
}

// Snapshot returns every device the controller has observed, including
// ones still assembling, keyed by id. It supplements the live,
// discovered-only accessors above for diagnostics and tests.
func (c *Controller) Snapshot() map[string]*DiscoveredDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*DiscoveredDevice, len(c.devices))
	for id, d := range c.devices {
		out[id] = d
	}
	return out
}

func (c *Controller) getOrCreateDevice(id string) *DiscoveredDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[id]
	if !ok {
		d = newDiscoveredDevice(id)
		c.devices[id] = d
		c.deviceOrder = append(c.deviceOrder, id)
	}
	return d
}

// OnConnect implements EventHandler: it (re)subscribes to the whole
// namespace. A reconnect simply resubscribes; retained messages are
// redelivered by the broker and re-ingested idempotently.
func (c *Controller) OnConnect(sessionPresent, isReconnect bool) {
	c.mu.Lock()
	base := c.opts.baseTopic
	c.mu.Unlock()

	if err := c.session.Subscribe(context.Background(), FormatDiscoverWildcard(base), 1); err != nil {
		c.opts.logger.Warn("homie: controller subscribe failed", "error", err)
	}
}

// OnMessage implements EventHandler, ingesting one piece of retained
// or live traffic.
func (c *Controller) OnMessage(topic, payload string) {
	c.mu.Lock()
	base := c.opts.baseTopic
	c.mu.Unlock()

	t, err := ParseTopic(base, topic)
	if err != nil {
		c.opts.logger.Debug("homie: dropping malformed topic", "topic", topic, "error", err)
		return
	}

	switch t.Kind {
	case TopicBroadcast:
		c.handler.OnBroadcast(t.BroadcastLevel, payload)
	case TopicDeviceAttr:
		c.ingestDeviceAttr(t, payload)
	case TopicNodeAttr:
		c.ingestNodeAttr(t, payload)
	case TopicPropertyAttr:
		c.ingestPropertyAttr(t, payload)
	case TopicPropertyValue:
		c.ingestPropertyValue(t, payload)
	case TopicPropertySet:
		// /set commands are controller->device traffic the controller
		// itself originates; it never consumes them.
	}
}

// checkDiscovery promotes dev to discovered the first time it is both
// structurally complete and observed at $state=ready, emitting exactly
// one OnDeviceDiscovered. It returns whether dev was already discovered
// before this call. The ingest methods do not use that result: each
// reads dev.Discovered() itself before applying the attribute and fires
// a fine-grained change event only if that was true, so the very
// message that completes assembly is absorbed into the discovery
// event, never double-reported.
func (c *Controller) checkDiscovery(dev *DiscoveredDevice) (wasDiscovered bool) {
	dev.mu.Lock()
	wasDiscovered = dev.discovered
	dev.mu.Unlock()

	if wasDiscovered {
		return true
	}
	if dev.isReady() && dev.complete() {
		dev.mu.Lock()
		dev.discovered = true
		dev.mu.Unlock()
		c.handler.OnDeviceDiscovered(dev)
	}
	return wasDiscovered
}

func (c *Controller) ingestDeviceAttr(t Topic, payload string) {
	dev := c.getOrCreateDevice(t.Device)
	wasDiscovered := dev.Discovered()
	dev.applyAttr(t.Attr, payload)
	if t.Attr == "$nodes" {
		for _, ref := range dev.declaredNodeIDs() {
			dev.getOrCreateNode(ref.id).markDeclaredArrayed(ref.arrayed)
		}
	}
	c.checkDiscovery(dev)
	if wasDiscovered {
		c.handler.OnDeviceChanged(dev, t.Attr)
	}
}

func (c *Controller) ingestNodeAttr(t Topic, payload string) {
	dev := c.getOrCreateDevice(t.Device)
	node := dev.getOrCreateNode(t.Node.BaseID)
	wasDiscovered := dev.Discovered()

	if t.Node.HasIndexSuffix {
		if t.Attr == "$name" {
			node.setNameAt(t.Node.Index, payload)
		}
		c.checkDiscovery(dev)
		if wasDiscovered && t.Attr == "$name" {
			c.handler.OnNodeChangedAt(node, t.Node.Index, t.Attr)
		}
		return
	}

	node.applyAttr(t.Attr, payload)
	c.checkDiscovery(dev)
	if wasDiscovered {
		c.handler.OnNodeChanged(node, t.Attr)
	}
}

func (c *Controller) ingestPropertyAttr(t Topic, payload string) {
	dev := c.getOrCreateDevice(t.Device)
	node := dev.getOrCreateNode(t.Node.BaseID)
	prop := node.getOrCreateProperty(t.Property)
	wasDiscovered := dev.Discovered()

	prop.applyAttr(t.Attr, payload)
	c.checkDiscovery(dev)

	if !wasDiscovered {
		return
	}
	if t.Node.HasIndexSuffix {
		c.handler.OnPropertyChangedAt(prop, t.Node.Index, t.Attr)
	} else {
		c.handler.OnPropertyChanged(prop, t.Attr)
	}
}

func (c *Controller) ingestPropertyValue(t Topic, payload string) {
	dev := c.getOrCreateDevice(t.Device)
	node := dev.getOrCreateNode(t.Node.BaseID)
	prop := node.getOrCreateProperty(t.Property)
	wasDiscovered := dev.Discovered()

	if t.Node.HasIndexSuffix {
		prop.setValueAt(t.Node.Index, payload)
		c.checkDiscovery(dev)
		if wasDiscovered {
			c.handler.OnPropertyValueChangedAt(prop, t.Node.Index, payload)
		}
		return
	}

	prop.setValue(payload)
	c.checkDiscovery(dev)
	if wasDiscovered {
		c.handler.OnPropertyValueChanged(prop, payload)
	}
}

var _ EventHandler = (*Controller)(nil)
