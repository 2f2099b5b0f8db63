package model

import (
	"fmt"
	"time"
)

const (
	ResourceEmployee = "employee"
	ResourceLocation = "location"
)

// Conflict describes one existing booking that collides with a requested window.
type Conflict struct {
	ResourceType string    `json:"resource_type"`
	Resource     string    `json:"resource"`
	BookedOn     string    `json:"booked_on"`
	SourceKind   string    `json:"source_kind"`
	SourceName   string    `json:"source_name"`
	BookingType  string    `json:"booking_type,omitempty"`
	From         time.Time `json:"from_datetime"`
	To           time.Time `json:"to_datetime"`
}

// Window renders the conflicting interval for people, e.g. "Mon 2024-09-02 09:00-10:00".
func (c Conflict) Window() string {
	if c.From.Year() == c.To.Year() && c.From.YearDay() == c.To.YearDay() {
		return fmt.Sprintf("%s-%s", c.From.Format("Mon 2006-01-02 15:04"), c.To.Format("15:04"))
	}
	return fmt.Sprintf("%s to %s", c.From.Format("Mon 2006-01-02 15:04"), c.To.Format("Mon 2006-01-02 15:04"))
}

func (c Conflict) String() string {
	on := c.Resource
	if c.BookedOn != "" && c.BookedOn != c.Resource {
		on = fmt.Sprintf("%s (booked on %s)", c.Resource, c.BookedOn)
	}
	return fmt.Sprintf("%s %s: %s %s, %s", c.ResourceType, on, c.SourceKind, c.SourceName, c.Window())
}

func EmployeeConflict(b *EmployeeBooking) Conflict {
	return Conflict{
		ResourceType: ResourceEmployee,
		Resource:     b.Employee,
		BookedOn:     b.Employee,
		SourceKind:   b.Source.Kind,
		SourceName:   b.Source.Name,
		BookingType:  b.BookingType,
		From:         b.From,
		To:           b.To,
	}
}

// LocationConflict reports b against the requested location; BookedOn keeps the
// location actually booked, which may be a parent or child of requested.
func LocationConflict(requested string, b *LocationBooking) Conflict {
	return Conflict{
		ResourceType: ResourceLocation,
		Resource:     requested,
		BookedOn:     b.Location,
		SourceKind:   b.Source.Kind,
		SourceName:   b.Source.Name,
		BookingType:  b.OccupancyType,
		From:         b.From,
		To:           b.To,
	}
}
