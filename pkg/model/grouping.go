package model

import "time"

const (
	GroupingActive   = "active"
	GroupingInactive = "inactive"
)

// Grouping is an abstract recurring commitment, for example a teaching group,
// whose schedule rows are materialized into concrete bookings.
type Grouping struct {
	ID           string        `json:"id" bson:"_id"`
	Name         string        `json:"name" bson:"name"`
	Kind         string        `json:"kind" bson:"kind"`
	School       string        `json:"school,omitempty" bson:"school,omitempty"`
	AcademicYear string        `json:"academic_year,omitempty" bson:"academic_year,omitempty"`
	Term         string        `json:"term,omitempty" bson:"term,omitempty"`
	Status       string        `json:"status" bson:"status"`
	PeriodStart  time.Time     `json:"period_start" bson:"period_start"`
	PeriodEnd    time.Time     `json:"period_end" bson:"period_end"`
	Rows         []ScheduleRow `json:"rows" bson:"rows"`
	Blocks       []BlockTime   `json:"blocks,omitempty" bson:"blocks,omitempty"`
}

// Source returns the reference under which the grouping's bookings are stored.
func (g *Grouping) Source() SourceRef {
	kind := g.Kind
	if kind == "" {
		kind = SourceStudentGroup
	}
	return SourceRef{Kind: kind, Name: g.ID}
}

// ScheduleRow is one (rotation day, block) entry of a recurring schedule.
type ScheduleRow struct {
	RotationDay int    `json:"rotation_day" bson:"rotation_day"`
	BlockNumber int    `json:"block_number" bson:"block_number"`
	Instructor  string `json:"instructor,omitempty" bson:"instructor,omitempty"`
	Employee    string `json:"employee,omitempty" bson:"employee,omitempty"`
	Location    string `json:"location,omitempty" bson:"location,omitempty"`
}

// BlockTime gives the wall-clock bounds of a block on a rotation day.
type BlockTime struct {
	RotationDay int    `json:"rotation_day" bson:"rotation_day"`
	BlockNumber int    `json:"block_number" bson:"block_number"`
	Start       string `json:"start" bson:"start"`
	End         string `json:"end" bson:"end"`
}

// Slot is one concrete occurrence of a grouping's recurring pattern.
type Slot struct {
	RotationDay int       `json:"rotation_day"`
	BlockNumber int       `json:"block_number"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
}

// GroupingFilter selects groupings for bulk reconciliation.
type GroupingFilter struct {
	School       string
	AcademicYear string
	ActiveOnly   bool
}
