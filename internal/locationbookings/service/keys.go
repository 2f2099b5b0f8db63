package service

import (
	"resledger/pkg/model"
	"time"
)

// BuildSourceKey returns the "Kind::Name" identity of source.
func BuildSourceKey(source model.SourceRef) string {
	return model.NewSourceRef(source.Kind, source.Name).Key()
}

// BuildSlotKeySingle keys the one booking a single-instance source holds on a location.
func BuildSlotKeySingle(sourceKey, location string) string {
	return model.JoinKey(sourceKey, location)
}

// BuildSlotKeyInstance keys one occurrence of a multi-instance source. The window
// is encoded in UTC so the key does not depend on the caller's zone.
func BuildSlotKeyInstance(sourceKey, location string, from, to time.Time) string {
	return model.JoinKey(
		sourceKey,
		location,
		normalizeTime(from).Format(time.RFC3339),
		normalizeTime(to).Format(time.RFC3339),
	)
}
