// Package pahosession binds the homie engine's abstract Session port to
// github.com/eclipse/paho.mqtt.golang.
package pahosession

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jbonachera/homiekit/homie"
)

// Session adapts a paho MQTT client to homie.Session. The underlying
// paho client is only constructed once Open or OpenWithWill is called,
// since paho requires the will (if any) to be present on
// mqtt.ClientOptions before mqtt.NewClient.
type Session struct {
	opts          *mqtt.ClientOptions
	client        mqtt.Client
	handler       homie.EventHandler
	everConnected bool
}

// Option configures a Session before it connects.
type Option func(*mqtt.ClientOptions)

// WithBroker adds a broker URL (e.g. "tcp://localhost:1883").
func WithBroker(url string) Option {
	return func(o *mqtt.ClientOptions) { o.AddBroker(url) }
}

// WithCredentials sets the username/password used to authenticate.
func WithCredentials(username, password string) Option {
	return func(o *mqtt.ClientOptions) {
		o.SetUsername(username)
		o.SetPassword(password)
	}
}

// WithClientID overrides the generated client id.
func WithClientID(id string) Option {
	return func(o *mqtt.ClientOptions) { o.SetClientID(id) }
}

// WithTLSConfig installs a custom *tls.Config, e.g. for broker
// certificate pinning.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *mqtt.ClientOptions) { o.SetTLSConfig(cfg) }
}

// New builds a Session. Callers must call Open or OpenWithWill before
// Publish/Subscribe will do anything useful.
func New(opts ...Option) *Session {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.SetClientID("homiekit-" + uuid.NewString())
	// OrderMatters defaults to true in paho, and the engine's publish
	// ordering invariants (spec §4.2, §5) depend on QoS 1 messages
	// reaching the broker in call order, so it is left at its default
	// rather than disabled for throughput.
	clientOpts.SetAutoReconnect(true)
	for _, apply := range opts {
		apply(clientOpts)
	}
	return &Session{opts: clientOpts}
}

// SetEventHandler implements homie.Session.
func (s *Session) SetEventHandler(h homie.EventHandler) {
	s.handler = h
}

// Open implements homie.Session: connects without a will (controller
// role).
func (s *Session) Open(ctx context.Context) error {
	s.wireCallbacks()
	s.client = mqtt.NewClient(s.opts)
	return s.connect(ctx)
}

// OpenWithWill implements homie.Session: connects with a binary LWT
// (device role).
func (s *Session) OpenWithWill(ctx context.Context, willTopic, willPayload string, willQoS byte, willRetain bool) error {
	s.opts.SetBinaryWill(willTopic, []byte(willPayload), willQoS, willRetain)
	s.wireCallbacks()
	s.client = mqtt.NewClient(s.opts)
	return s.connect(ctx)
}

func (s *Session) wireCallbacks() {
	s.opts.SetOnConnectHandler(func(c mqtt.Client) {
		isReconnect := s.everConnected
		s.everConnected = true
		if s.handler != nil {
			s.handler.OnConnect(false, isReconnect)
		}
	})
	s.opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		if s.handler != nil {
			s.handler.OnOffline()
		}
	})
	s.opts.SetDefaultPublishHandler(func(c mqtt.Client, msg mqtt.Message) {
		if s.handler != nil {
			s.handler.OnMessage(msg.Topic(), string(msg.Payload()))
		}
	})
}

func (s *Session) connect(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	token := s.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("pahosession: connect: %w", err)
	}
	return nil
}

// Publish implements homie.Session.
func (s *Session) Publish(ctx context.Context, topic, payload string, qos byte, retain bool) error {
	return waitToken(ctx, s.client.Publish(topic, qos, retain, payload))
}

// Subscribe implements homie.Session.
func (s *Session) Subscribe(ctx context.Context, topic string, qos byte) error {
	return waitToken(ctx, s.client.Subscribe(topic, qos, nil))
}

// Unsubscribe implements homie.Session.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	return waitToken(ctx, s.client.Unsubscribe(topic))
}

// waitToken blocks until token completes or ctx is done, whichever
// comes first, so a caller's cancellation always aborts the wait
// instead of blocking on a stalled broker.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected implements homie.Session.
func (s *Session) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

var _ homie.Session = (*Session)(nil)
