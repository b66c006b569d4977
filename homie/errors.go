package homie

import "errors"

// ErrDevicePublisherClosed is returned by DevicePublisher methods called
// after Close.
var ErrDevicePublisherClosed = errors.New("homie: device publisher is closed")

// ErrDeviceExists is returned by AddDevice when a device with the same
// id has already been added to the publisher.
var ErrDeviceExists = errors.New("homie: device already added")

// ErrInvalidArrayRange is returned when a node reports an array range
// with hi < lo; the publisher refuses to emit the subtree rather than
// publish an inconsistent $array attribute.
var ErrInvalidArrayRange = errors.New("homie: invalid array range")
