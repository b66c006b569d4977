package homie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopicBroadcast(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/$broadcast/alert")
	require.NoError(t, err)
	assert.Equal(t, TopicBroadcast, tp.Kind)
	assert.Equal(t, "alert", tp.BroadcastLevel)
}

func TestParseTopicDeviceAttr(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/$fw/name")
	require.NoError(t, err)
	assert.Equal(t, TopicDeviceAttr, tp.Kind)
	assert.Equal(t, "testdevice", tp.Device)
	assert.Equal(t, "$fw/name", tp.Attr)
}

func TestParseTopicNodeAttr(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode/$type")
	require.NoError(t, err)
	assert.Equal(t, TopicNodeAttr, tp.Kind)
	assert.Equal(t, "testnode", tp.Node.Raw)
	assert.Equal(t, "$type", tp.Attr)
}

func TestParseTopicNodeAttrIndexed(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode_1/$name")
	require.NoError(t, err)
	assert.Equal(t, TopicNodeAttr, tp.Kind)
	assert.True(t, tp.Node.HasIndexSuffix)
	assert.Equal(t, "testnode", tp.Node.BaseID)
	assert.Equal(t, int64(1), tp.Node.Index)
}

func TestParseTopicPropertyValue(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode/intensity")
	require.NoError(t, err)
	assert.Equal(t, TopicPropertyValue, tp.Kind)
	assert.Equal(t, "intensity", tp.Property)
}

func TestParseTopicPropertyValueIndexed(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode_2/intensity")
	require.NoError(t, err)
	assert.Equal(t, TopicPropertyValue, tp.Kind)
	assert.True(t, tp.Node.HasIndexSuffix)
	assert.Equal(t, int64(2), tp.Node.Index)
}

func TestParseTopicPropertyAttr(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode/intensity/$datatype")
	require.NoError(t, err)
	assert.Equal(t, TopicPropertyAttr, tp.Kind)
	assert.Equal(t, "intensity", tp.Property)
	assert.Equal(t, "$datatype", tp.Attr)
}

func TestParseTopicPropertySet(t *testing.T) {
	tp, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode/intensity/set")
	require.NoError(t, err)
	assert.Equal(t, TopicPropertySet, tp.Kind)
}

func TestParseTopicRejectsWrongPrefix(t *testing.T) {
	_, err := ParseTopic(DefaultBaseTopic, "other/testdevice/$name")
	assert.Error(t, err)
}

func TestParseTopicRejectsEmptySegment(t *testing.T) {
	_, err := ParseTopic(DefaultBaseTopic, "homie/testdevice//intensity")
	assert.Error(t, err)
}

func TestParseTopicRejectsBroadcastWithoutLevel(t *testing.T) {
	_, err := ParseTopic(DefaultBaseTopic, "homie/$broadcast")
	assert.Error(t, err)
}

func TestParseTopicRejectsBadArity(t *testing.T) {
	_, err := ParseTopic(DefaultBaseTopic, "homie/testdevice/testnode/intensity/set/extra")
	assert.Error(t, err)
}

func TestParseNodeSegment(t *testing.T) {
	ref := ParseNodeSegment("testnode_3")
	assert.True(t, ref.HasIndexSuffix)
	assert.Equal(t, "testnode", ref.BaseID)
	assert.Equal(t, int64(3), ref.Index)

	plain := ParseNodeSegment("testnode")
	assert.False(t, plain.HasIndexSuffix)
	assert.Equal(t, "testnode", plain.BaseID)
}

func TestFormatNodeSegment(t *testing.T) {
	assert.Equal(t, "testnode", FormatNodeSegment("testnode", 1, false))
	assert.Equal(t, "testnode_1", FormatNodeSegment("testnode", 1, true))
}

func TestArrayRangeRoundTrip(t *testing.T) {
	lo, hi, err := ParseArrayRange("1-3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lo)
	assert.Equal(t, int64(3), hi)
	assert.Equal(t, "1-3", FormatArrayRange(lo, hi))
}

func TestArrayRangeRejectsInverted(t *testing.T) {
	_, _, err := ParseArrayRange("3-1")
	assert.Error(t, err)
}

func TestStatsIntervalRoundTrip(t *testing.T) {
	assert.Equal(t, "60", FormatStatsIntervalSeconds(60000))
	ms, err := ParseStatsIntervalSeconds("60")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), ms)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("testdevice"))
	assert.True(t, ValidID("test-device-2"))
	assert.False(t, ValidID("Testdevice"))
	assert.False(t, ValidID("test/device"))
	assert.False(t, ValidID(""))
}
