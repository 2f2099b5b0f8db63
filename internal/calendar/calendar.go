// Package calendar renders ledger bookings as iCalendar feeds.
package calendar

import (
	"fmt"
	"io"
	"resledger/pkg/model"
	"time"

	ical "github.com/arran4/golang-ical"
)

const (
	productID = "-//resledger//bookings//EN"
	uidDomain = "resledger"
)

// EmployeeCalendar builds a feed of one employee's bookings. Soft bookings are
// marked transparent so calendar clients do not show them as busy.
func EmployeeCalendar(employee string, bookings []*model.EmployeeBooking, stamp time.Time) *ical.Calendar {
	cal := newCalendar("Bookings of " + employee)
	for _, b := range bookings {
		ev := addEvent(cal, "employee", b.ID, b.From, b.To, stamp)
		ev.SetSummary(fmt.Sprintf("%s: %s", b.BookingType, b.Source.Name))
		ev.SetDescription(b.Source.String())
		if b.Location != "" {
			ev.SetLocation(b.Location)
		}
		if !b.BlocksAvailability {
			ev.SetTimeTransparency(ical.TransparencyTransparent)
		}
		if !b.UpdatedAt.IsZero() {
			ev.SetModifiedAt(b.UpdatedAt)
		}
	}
	return cal
}

func LocationCalendar(location string, bookings []*model.LocationBooking, stamp time.Time) *ical.Calendar {
	cal := newCalendar("Bookings of " + location)
	for _, b := range bookings {
		ev := addEvent(cal, "location", b.ID, b.From, b.To, stamp)
		ev.SetSummary(fmt.Sprintf("%s: %s", b.OccupancyType, b.Source.Name))
		ev.SetDescription(b.Source.String())
		ev.SetLocation(b.Location)
		if !b.UpdatedAt.IsZero() {
			ev.SetModifiedAt(b.UpdatedAt)
		}
	}
	return cal
}

// Write serializes cal to w.
func Write(w io.Writer, cal *ical.Calendar) error {
	return cal.SerializeTo(w)
}

func newCalendar(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	return cal
}

func addEvent(cal *ical.Calendar, kind, id string, from, to, stamp time.Time) *ical.VEvent {
	ev := cal.AddEvent(fmt.Sprintf("%s-%s@%s", kind, id, uidDomain))
	ev.SetDtStampTime(stamp.UTC())
	ev.SetStartAt(from.UTC())
	ev.SetEndAt(to.UTC())
	return ev
}
