// Package homie implements the Homie 3.0.0 convention over MQTT.
//
// It covers both roles of the convention: the device role, which
// publishes a device's topology and telemetry as retained MQTT messages
// and accepts writes to settable properties, and the controller role,
// which reconstructs the device tree from an MQTT stream and surfaces
// discovery and change events.
//
// The package never dials a broker itself. Both DevicePublisher and
// Controller are driven through the Session interface, an abstraction
// over whatever MQTT client the caller already has. See the
// pahosession subpackage for a binding against
// github.com/eclipse/paho.mqtt.golang, and homietest for an in-memory
// fake suited to unit tests.
//
// # Device role
//
//	pub := homie.NewDevicePublisher(session, homie.WithBaseTopic("homie/"))
//	pub.AddDevice(ctx, myDevice)
//	pub.Open(ctx)
//	// The session's connect event triggers pub.OnConnect, which
//	// publishes the full tree and subscribes to <base><device>/+/+/set.
//	pub.NotifyPropertyChanged(ctx, "testdevice", "testnode", "intensity")
//
// # Controller role
//
//	ctrl := homie.NewController(session, homie.WithBaseTopic("homie/"))
//	ctrl.SetEventHandler(myHandler)
//	ctrl.Open(ctx)
//	// The session's connect event triggers ctrl.OnConnect, which subscribes to
//	// <base>#; discovered devices surface through myHandler and
//	// ctrl.GetDiscoveredDevices().
package homie
