package model

import (
	"time"
)

// Booking types carried on employee bookings. They are display tags only and
// never suppress a conflict.
const (
	BookingTypeTeaching = "Teaching"
	BookingTypeMeeting  = "Meeting"
	BookingTypeEvent    = "Event"
	BookingTypeDuty     = "Duty"
	BookingTypeOther    = "Other"
)

// Occupancy types carried on location bookings.
const (
	OccupancyTeaching = "Teaching"
	OccupancyMeeting  = "Meeting"
	OccupancyEvent    = "Event"
	OccupancyOther    = "Other"
)

// EmployeeBooking is a concrete commitment of a staff member.
type EmployeeBooking struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty"`
	Employee           string    `json:"employee" bson:"employee" validate:"required,max=140"`
	From               time.Time `json:"from_datetime" bson:"from_datetime" validate:"required"`
	To                 time.Time `json:"to_datetime" bson:"to_datetime" validate:"required,gtfield=From"`
	Source             SourceRef `json:"source" bson:",inline"`
	BookingType        string    `json:"booking_type" bson:"booking_type" validate:"required,max=60"`
	BlocksAvailability bool      `json:"blocks_availability" bson:"blocks_availability"`
	Location           string    `json:"location,omitempty" bson:"location,omitempty" validate:"required_if=BookingType Teaching,max=140"`
	School             string    `json:"school,omitempty" bson:"school,omitempty"`
	AcademicYear       string    `json:"academic_year,omitempty" bson:"academic_year,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	ModifiedBy         string    `json:"modified_by,omitempty" bson:"modified_by,omitempty"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

// SameBooking reports whether b and o describe the same occupation. IDs and
// audit fields are ignored.
func (b *EmployeeBooking) SameBooking(o *EmployeeBooking) bool {
	return b.Employee == o.Employee &&
		b.From.Equal(o.From) &&
		b.To.Equal(o.To) &&
		b.Source == o.Source &&
		b.BookingType == o.BookingType &&
		b.BlocksAvailability == o.BlocksAvailability &&
		b.Location == o.Location &&
		b.School == o.School &&
		b.AcademicYear == o.AcademicYear
}

// LocationBooking is a concrete occupation of a place. SlotKey is its identity.
type LocationBooking struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	Location      string    `json:"location" bson:"location" validate:"required,max=140"`
	From          time.Time `json:"from_datetime" bson:"from_datetime" validate:"required"`
	To            time.Time `json:"to_datetime" bson:"to_datetime" validate:"required,gtfield=From"`
	OccupancyType string    `json:"occupancy_type" bson:"occupancy_type" validate:"required,max=60"`
	Source        SourceRef `json:"source" bson:",inline"`
	SlotKey       string    `json:"slot_key" bson:"slot_key" validate:"required,max=512"`
	School        string    `json:"school,omitempty" bson:"school,omitempty"`
	AcademicYear  string    `json:"academic_year,omitempty" bson:"academic_year,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	ModifiedBy    string    `json:"modified_by,omitempty" bson:"modified_by,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// SameBooking reports whether b and o describe the same occupation. IDs and
// audit fields are ignored.
func (b *LocationBooking) SameBooking(o *LocationBooking) bool {
	return b.SlotKey == o.SlotKey &&
		b.Location == o.Location &&
		b.From.Equal(o.From) &&
		b.To.Equal(o.To) &&
		b.OccupancyType == o.OccupancyType &&
		b.Source == o.Source &&
		b.School == o.School &&
		b.AcademicYear == o.AcademicYear
}

// EmployeeSlot is the identity of an employee booking inside one source during
// window-bounded reconciliation.
type EmployeeSlot struct {
	Employee string
	From     time.Time
	To       time.Time
}

func (s EmployeeSlot) Key() string {
	return JoinKey(s.Employee, s.From.UTC().Format(time.RFC3339), s.To.UTC().Format(time.RFC3339))
}
