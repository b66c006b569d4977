package homie

import "log/slog"

// dispatchSet resolves and invokes the setter for an incoming
// <device>/<node>[_<idx>]/<prop>/set command. Any resolution failure
// is a silent drop: the convention's retained traffic can carry stale
// commands after a topology change, and the engine must not fail the
// broker connection over it.
func dispatchSet(device Device, t Topic, payload string, logger *slog.Logger) {
	ref := t.Node

	if ref.HasIndexSuffix {
		node, ok := device.Node(ref.BaseID)
		if !ok || !node.IsArray() {
			logger.Debug("homie: dropping set for unknown/non-array node", "node", ref.Raw)
			return
		}
		lo, hi := node.ArrayRange()
		if ref.Index < lo || ref.Index > hi {
			logger.Debug("homie: dropping set with out-of-range index", "node", ref.BaseID, "index", ref.Index)
			return
		}
		prop, ok := node.Property(t.Property)
		if !ok || !prop.Settable() {
			logger.Debug("homie: dropping set for unknown/non-settable property", "property", t.Property)
			return
		}
		prop.SetValueAt(ref.Index, payload)
		return
	}

	node, ok := device.Node(ref.Raw)
	if !ok || node.IsArray() {
		logger.Debug("homie: dropping set for unknown/array node", "node", ref.Raw)
		return
	}
	prop, ok := node.Property(t.Property)
	if !ok || !prop.Settable() {
		logger.Debug("homie: dropping set for unknown/non-settable property", "property", t.Property)
		return
	}
	prop.SetValue(payload)
}
