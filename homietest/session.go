// Package homietest provides an in-memory fake of homie.Session for
// exercising DevicePublisher and Controller without a broker: a
// recording fake that captures publishes/subscribes and lets the test
// drive connect/message/closing events directly.
package homietest

import (
	"context"
	"sync"

	"github.com/jbonachera/homiekit/homie"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
}

// Session is a homie.Session fake backed by in-memory slices/sets. It
// never talks to a broker: tests call Deliver/Connect/Closing directly
// to drive the engine under test, and assert against Published/
// Subscriptions afterward.
type Session struct {
	mu sync.Mutex

	handler homie.EventHandler

	Published     []Message
	Subscriptions map[string]byte
	connected     bool

	willTopic   string
	willPayload string
	willQoS     byte
	willRetain  bool
	hadWill     bool
}

// NewSession creates an unconnected fake session.
func NewSession() *Session {
	return &Session{Subscriptions: make(map[string]byte)}
}

// SetEventHandler implements homie.Session.
func (s *Session) SetEventHandler(h homie.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Open implements homie.Session.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// OpenWithWill implements homie.Session, recording the requested LWT
// for test assertions via Will().
func (s *Session) OpenWithWill(ctx context.Context, willTopic, willPayload string, willQoS byte, willRetain bool) error {
	s.mu.Lock()
	s.connected = true
	s.willTopic, s.willPayload, s.willQoS, s.willRetain = willTopic, willPayload, willQoS, willRetain
	s.hadWill = true
	s.mu.Unlock()
	return nil
}

// Will returns the Last-Will-and-Testament requested via OpenWithWill.
func (s *Session) Will() (topic, payload string, qos byte, retain bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.willTopic, s.willPayload, s.willQoS, s.willRetain, s.hadWill
}

// Publish implements homie.Session, recording the message.
func (s *Session) Publish(ctx context.Context, topic, payload string, qos byte, retain bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = append(s.Published, Message{Topic: topic, Payload: payload, QoS: qos, Retain: retain})
	return nil
}

// Subscribe implements homie.Session, recording the subscription.
func (s *Session) Subscribe(ctx context.Context, topic string, qos byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscriptions[topic] = qos
	return nil
}

// Unsubscribe implements homie.Session, removing the recorded
// subscription.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Subscriptions, topic)
	return nil
}

// IsConnected implements homie.Session.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect drives the engine's on_connect callback, as if the session
// just came up (or reconnected).
func (s *Session) Connect(sessionPresent, isReconnect bool) {
	s.mu.Lock()
	s.connected = true
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnConnect(sessionPresent, isReconnect)
	}
}

// Deliver drives the engine's on_message callback with an inbound
// topic/payload, as if it arrived from the broker.
func (s *Session) Deliver(topic, payload string) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnMessage(topic, payload)
	}
}

// Closing drives the engine's on_closing callback, giving it a last
// chance to publish before Closed/Offline.
func (s *Session) Closing() {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnClosing()
	}
}

// Offline drives the engine's on_offline callback, as if the
// connection dropped unexpectedly.
func (s *Session) Offline() {
	s.mu.Lock()
	s.connected = false
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnOffline()
	}
}

// Reset clears recorded publishes/subscriptions between scenarios
// within the same test, without discarding the installed handler.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = nil
	s.Subscriptions = make(map[string]byte)
}

var _ homie.Session = (*Session)(nil)
