package homie

// DeviceState is the device lifecycle state published under $state.
type DeviceState int

// Device lifecycle states, per the Homie 3.0.0 convention.
const (
	StateUnknown DeviceState = iota
	StateInit
	StateReady
	StateDisconnected
	StateSleeping
	StateLost
	StateAlert
)

var deviceStateToWire = map[DeviceState]string{
	StateInit:         "init",
	StateReady:        "ready",
	StateDisconnected: "disconnected",
	StateSleeping:     "sleeping",
	StateLost:         "lost",
	StateAlert:        "alert",
}

var wireToDeviceState = func() map[string]DeviceState {
	m := make(map[string]DeviceState, len(deviceStateToWire))
	for state, wire := range deviceStateToWire {
		m[wire] = state
	}
	return m
}()

// String formats a DeviceState as its wire representation. An unknown
// state formats as "unknown" — the engine never originates this string
// on a real publish, but it keeps String total.
func (s DeviceState) String() string {
	if wire, ok := deviceStateToWire[s]; ok {
		return wire
	}
	return "unknown"
}

// ParseDeviceState decodes a wire string into a DeviceState. Unrecognized
// strings decode to StateUnknown rather than an error: controllers may
// observe ecosystem extensions or devices mid-transition and must not
// fail ingest over it.
func ParseDeviceState(wire string) DeviceState {
	if state, ok := wireToDeviceState[wire]; ok {
		return state
	}
	return StateUnknown
}

// Datatype is a property's declared value type, published under
// $datatype.
type Datatype int

// Property datatypes, per the Homie 3.0.0 convention.
const (
	DatatypeUnknown Datatype = iota
	DatatypeInteger
	DatatypeFloat
	DatatypeBoolean
	DatatypeString
	DatatypeEnum
	DatatypeColor
)

var datatypeToWire = map[Datatype]string{
	DatatypeInteger: "integer",
	DatatypeFloat:   "float",
	DatatypeBoolean: "boolean",
	DatatypeString:  "string",
	DatatypeEnum:    "enum",
	DatatypeColor:   "color",
}

var wireToDatatype = func() map[string]Datatype {
	m := make(map[string]Datatype, len(datatypeToWire))
	for dt, wire := range datatypeToWire {
		m[wire] = dt
	}
	return m
}()

// String formats a Datatype as its wire representation.
func (d Datatype) String() string {
	if wire, ok := datatypeToWire[d]; ok {
		return wire
	}
	return "unknown"
}

// ParseDatatype decodes a wire string into a Datatype, falling back to
// DatatypeUnknown for anything not in the table.
func ParseDatatype(wire string) Datatype {
	if dt, ok := wireToDatatype[wire]; ok {
		return dt
	}
	return DatatypeUnknown
}
