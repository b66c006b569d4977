package homie

import "context"

// Session is the abstract MQTT session port the engine consumes. The
// engine never dials a broker; it calls these methods and reacts to
// the events delivered through EventHandler. See pahosession for a
// binding against github.com/eclipse/paho.mqtt.golang and homietest
// for an in-memory fake.
type Session interface {
	// SetEventHandler installs the callback sink. Passing nil clears
	// it.
	SetEventHandler(h EventHandler)

	// Open connects without a Last-Will-and-Testament (controller
	// role).
	Open(ctx context.Context) error

	// OpenWithWill connects with a retained LWT (device role): the
	// broker publishes willPayload to willTopic at willQoS, retained
	// per willRetain, if the session drops uncleanly.
	OpenWithWill(ctx context.Context, willTopic, willPayload string, willQoS byte, willRetain bool) error

	// Publish sends payload to topic. The engine always calls this
	// with qos=1, retain=true — it never originates unretained
	// traffic.
	Publish(ctx context.Context, topic, payload string, qos byte, retain bool) error

	Subscribe(ctx context.Context, topic string, qos byte) error
	Unsubscribe(ctx context.Context, topic string) error

	IsConnected() bool
}

// EventHandler receives the lifecycle and message events a Session
// delivers. Implementations (DevicePublisher, Controller) embed
// NoopEventHandler so they only need to override what they use.
type EventHandler interface {
	// OnConnect fires when the session becomes usable. isReconnect is
	// true for every connect after the first; the engine treats
	// reconnects as idempotent full republish/resubscribe.
	OnConnect(sessionPresent, isReconnect bool)
	// OnMessage fires for every incoming message on a subscribed
	// topic.
	OnMessage(topic, payload string)
	// OnClosing fires once, synchronously, as the last chance to
	// publish a graceful shutdown before the session goes down.
	OnClosing()
	// OnClosed fires once the session has fully closed.
	OnClosed()
	// OnOffline fires when the session drops unexpectedly (not via
	// OnClosing).
	OnOffline()
}

// NoopEventHandler implements EventHandler with no-ops, so embedders
// only override the callbacks they care about.
type NoopEventHandler struct{}

// OnConnect implements EventHandler.
func (NoopEventHandler) OnConnect(sessionPresent, isReconnect bool) {}

// OnMessage implements EventHandler.
func (NoopEventHandler) OnMessage(topic, payload string) {}

// OnClosing implements EventHandler.
func (NoopEventHandler) OnClosing() {}

// OnClosed implements EventHandler.
func (NoopEventHandler) OnClosed() {}

// OnOffline implements EventHandler.
func (NoopEventHandler) OnOffline() {}
