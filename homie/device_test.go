package homie_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbonachera/homiekit/homie"
	"github.com/jbonachera/homiekit/homietest"
)

// minimalDevice builds a minimal device model: no nodes, one stat.
func minimalDevice() *homie.BasicDevice {
	d := homie.NewBasicDevice("testdevice", "Testdevice").
		WithLocalIP("10.0.0.1").
		WithMAC("AA:BB:CC:DD:EE:FF").
		WithFirmware("Firmwarename", "0.0.1").
		WithImplementation("homie-cpp").
		WithStatsInterval(60000)
	d.AddStat(homie.NewBasicStat("uptime", "0"))
	d.SetState(homie.StateReady)
	return d
}

func TestScenarioA_MinimalDevice(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)

	require.NoError(t, pub.AddDevice(context.Background(), minimalDevice()))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)

	topic, payload, qos, retain, hadWill := session.Will()
	assert.True(t, hadWill)
	assert.Equal(t, "homie/testdevice/$state", topic)
	assert.Equal(t, "lost", payload)
	assert.Equal(t, byte(1), qos)
	assert.True(t, retain)

	want := []homietest.Message{
		{Topic: "homie/testdevice/$state", Payload: "init", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$homie", Payload: "3.0.0", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$name", Payload: "Testdevice", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$localip", Payload: "10.0.0.1", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$mac", Payload: "AA:BB:CC:DD:EE:FF", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$fw/name", Payload: "Firmwarename", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$fw/version", Payload: "0.0.1", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$nodes", Payload: "", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$implementation", Payload: "homie-cpp", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$stats", Payload: "uptime", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$stats/interval", Payload: "60", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$stats/uptime", Payload: "0", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/$state", Payload: "ready", QoS: 1, Retain: true},
	}
	require.Equal(t, want, session.Published)
	assert.Equal(t, map[string]byte{"homie/testdevice/+/+/set": 1}, session.Subscriptions)

	session.Reset()
	require.NoError(t, pub.Close(context.Background()))
	assert.Equal(t, []homietest.Message{
		{Topic: "homie/testdevice/$state", Payload: "disconnected", QoS: 1, Retain: true},
	}, session.Published)
	assert.Empty(t, session.Subscriptions)
}

// scenarioBDevice builds scenario B: one node, one settable property.
func scenarioBDevice() *homie.BasicDevice {
	d := minimalDevice()
	prop := homie.NewBasicProperty("intensity", "Intensity", homie.DatatypeInteger).
		WithSettable(true).
		WithUnit("%").
		WithFormat("0:100").
		WithValue("100")
	node := homie.NewBasicNode("testnode", "Testnode", "light").AddProperty(prop)
	d.AddNode(node)
	return d
}

func TestScenarioB_OneNodeOneProperty(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)
	require.NoError(t, pub.AddDevice(context.Background(), scenarioBDevice()))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)

	expectedTail := []homietest.Message{
		{Topic: "homie/testdevice/testnode/$name", Payload: "Testnode", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/$type", Payload: "light", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/$properties", Payload: "intensity", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity/$name", Payload: "Intensity", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity/$settable", Payload: "true", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity/$unit", Payload: "%", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity/$datatype", Payload: "integer", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity/$format", Payload: "0:100", QoS: 1, Retain: true},
		{Topic: "homie/testdevice/testnode/intensity", Payload: "100", QoS: 1, Retain: true},
	}
	require.GreaterOrEqual(t, len(session.Published), len(expectedTail)+1)
	got := session.Published[len(session.Published)-len(expectedTail)-1 : len(session.Published)-1]
	assert.Equal(t, expectedTail, got)
	assert.Equal(t, "$state", lastAttr(session.Published))
}

func lastAttr(msgs []homietest.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	m := msgs[len(msgs)-1]
	parts := splitLast(m.Topic)
	return parts
}

func splitLast(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}

// scenarioCDevice builds an arrayed-node device whose property value
// at index idx is 100-idx.
func scenarioCDevice() (*homie.BasicDevice, *homie.BasicProperty) {
	d := minimalDevice()
	prop := homie.NewBasicProperty("intensity", "Intensity", homie.DatatypeInteger).
		WithSettable(true).
		WithUnit("%").
		WithFormat("0:100")
	for i := int64(1); i <= 3; i++ {
		prop.WithValueAt(i, strconv.FormatInt(100-i, 10))
	}
	node := homie.NewBasicNode("testnode", "Testnode", "light").
		WithArray(1, 3).
		AddProperty(prop)
	d.AddNode(node)
	return d, prop
}

func TestScenarioC_ArrayedNode(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)
	d, _ := scenarioCDevice()
	require.NoError(t, pub.AddDevice(context.Background(), d))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)

	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/$nodes", Payload: "testnode[]", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode/$array", Payload: "1-3", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_1/intensity", Payload: "99", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_2/intensity", Payload: "98", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_3/intensity", Payload: "97", QoS: 1, Retain: true})
}

func assertContains(t *testing.T, msgs []homietest.Message, want homietest.Message) {
	t.Helper()
	for _, m := range msgs {
		if m == want {
			return
		}
	}
	t.Fatalf("expected to find %+v in %+v", want, msgs)
}

func TestScenarioD_NotifyAfterSet(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)
	d, prop := scenarioCDevice()
	require.NoError(t, pub.AddDevice(context.Background(), d))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)
	session.Reset()

	prop.WithValueAt(1, "19")
	prop.WithValueAt(2, "18")
	prop.WithValueAt(3, "17")

	require.NoError(t, pub.NotifyPropertyChanged(context.Background(), "testdevice", "testnode", "intensity"))
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_1/intensity", Payload: "19", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_2/intensity", Payload: "18", QoS: 1, Retain: true})
	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/testnode_3/intensity", Payload: "17", QoS: 1, Retain: true})

	session.Reset()
	require.NoError(t, pub.NotifyPropertyChangedAt(context.Background(), "testdevice", "testnode", "intensity", 2))
	require.Len(t, session.Published, 1)
	assert.Equal(t, "homie/testdevice/testnode_2/intensity", session.Published[0].Topic)
	assert.Equal(t, "18", session.Published[0].Payload)
}

func TestSettableDispatchRoutesToSetter(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)
	var got string
	prop := homie.NewBasicProperty("intensity", "Intensity", homie.DatatypeInteger).
		WithSettable(true).
		WithValue("100").
		WithSetter(func(v string) { got = v })
	node := homie.NewBasicNode("testnode", "Testnode", "light").AddProperty(prop)
	d := minimalDevice()
	d.AddNode(node)
	require.NoError(t, pub.AddDevice(context.Background(), d))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)

	session.Deliver("homie/testdevice/testnode/intensity/set", "42")
	assert.Equal(t, "42", got)
}

func TestSettableDispatchDropsUnknownProperty(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)
	require.NoError(t, pub.AddDevice(context.Background(), minimalDevice()))
	require.NoError(t, pub.Open(context.Background()))
	session.Connect(false, false)

	assert.NotPanics(t, func() {
		session.Deliver("homie/testdevice/unknownnode/unknownprop/set", "42")
	})
}

// TestInvalidArrayRangeIsObservable asserts that a node with hi < lo
// is skipped but still surfaces as an ErrInvalidArrayRange to the
// caller, not just a log line.
func TestInvalidArrayRangeIsObservable(t *testing.T) {
	session := homietest.NewSession()
	pub := homie.NewDevicePublisher(session)

	d := minimalDevice()
	broken := homie.NewBasicNode("brokennode", "Brokennode", "light").WithArray(3, 1)
	good := homie.NewBasicNode("goodnode", "Goodnode", "light")
	d.AddNode(broken)
	d.AddNode(good)

	require.NoError(t, session.Open(context.Background()))
	err := pub.AddDevice(context.Background(), d)
	require.Error(t, err)
	assert.ErrorIs(t, err, homie.ErrInvalidArrayRange)

	assertContains(t, session.Published, homietest.Message{Topic: "homie/testdevice/goodnode/$name", Payload: "Goodnode", QoS: 1, Retain: true})
	for _, m := range session.Published {
		assert.NotContains(t, m.Topic, "brokennode")
	}
}
