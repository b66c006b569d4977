package homie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceStateWireRoundTrip(t *testing.T) {
	cases := map[DeviceState]string{
		StateInit:         "init",
		StateReady:        "ready",
		StateDisconnected: "disconnected",
		StateSleeping:     "sleeping",
		StateLost:         "lost",
		StateAlert:        "alert",
	}
	for state, wire := range cases {
		assert.Equal(t, wire, state.String())
		assert.Equal(t, state, ParseDeviceState(wire))
	}
}

func TestParseDeviceStateUnknownFallsBack(t *testing.T) {
	assert.Equal(t, StateUnknown, ParseDeviceState("booting"))
	assert.Equal(t, "unknown", StateUnknown.String())
}

func TestDatatypeWireRoundTrip(t *testing.T) {
	cases := map[Datatype]string{
		DatatypeInteger: "integer",
		DatatypeFloat:   "float",
		DatatypeBoolean: "boolean",
		DatatypeString:  "string",
		DatatypeEnum:    "enum",
		DatatypeColor:   "color",
	}
	for dt, wire := range cases {
		assert.Equal(t, wire, dt.String())
		assert.Equal(t, dt, ParseDatatype(wire))
	}
}

func TestParseDatatypeUnknownFallsBack(t *testing.T) {
	assert.Equal(t, DatatypeUnknown, ParseDatatype("json"))
}
