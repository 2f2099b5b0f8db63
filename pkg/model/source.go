package model

import "strings"

// Known source kinds. The set is open: callers may pass any kind they own.
const (
	SourceMeeting      = "Meeting"
	SourceStudentGroup = "Student Group"
	SourceSchoolEvent  = "School Event"
)

const keySeparator = "::"

// SourceRef identifies the domain object that owns a set of bookings.
type SourceRef struct {
	Kind string `json:"kind" bson:"source_kind" validate:"required,max=140"`
	Name string `json:"name" bson:"source_name" validate:"required,max=140"`
}

func NewSourceRef(kind, name string) SourceRef {
	return SourceRef{Kind: strings.TrimSpace(kind), Name: strings.TrimSpace(name)}
}

func (s SourceRef) IsZero() bool {
	return s.Kind == "" && s.Name == ""
}

// Key is the stable string identity of the source, "Kind::Name".
func (s SourceRef) Key() string {
	return s.Kind + keySeparator + s.Name
}

func (s SourceRef) String() string {
	return s.Kind + " " + s.Name
}

// JoinKey joins key parts with the separator used by source and slot keys.
func JoinKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}
