package handler

import (
	"net/http"
	"strings"
	"time"

	"resledger/internal/calendar"
	httputil "resledger/pkg/http"

	ical "github.com/arran4/golang-ical"
	"github.com/julienschmidt/httprouter"
)

const (
	calendarSuffix   = ".ics"
	calendarLookback = 30 * 24 * time.Hour
	calendarAhead    = 180 * 24 * time.Hour
)

func (h *LedgerHandler) EmployeeCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	employee := strings.TrimSuffix(ps.ByName("file"), calendarSuffix)

	start, end, err := h.calendarWindow(r)
	if err != nil {
		h.writeError(w, "EmployeeCalendar", err)
		return
	}

	bookings, err := h.employees.ListForEmployee(r.Context(), employee, start, end)
	if err != nil {
		h.writeError(w, "EmployeeCalendar", err)
		return
	}

	h.writeCalendar(w, "EmployeeCalendar", calendar.EmployeeCalendar(employee, bookings, h.now()))
}

func (h *LedgerHandler) LocationCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	location := strings.TrimSuffix(ps.ByName("file"), calendarSuffix)

	start, end, err := h.calendarWindow(r)
	if err != nil {
		h.writeError(w, "LocationCalendar", err)
		return
	}
	includeChildren, err := httputil.QueryBool(r, "include_children")
	if err != nil {
		h.writeError(w, "LocationCalendar", err)
		return
	}

	bookings, err := h.locations.ListForLocation(r.Context(), location, start, end, includeChildren != nil && *includeChildren)
	if err != nil {
		h.writeError(w, "LocationCalendar", err)
		return
	}

	h.writeCalendar(w, "LocationCalendar", calendar.LocationCalendar(location, bookings, h.now()))
}

// calendarWindow defaults to the last 30 and the next 180 days.
func (h *LedgerHandler) calendarWindow(r *http.Request) (time.Time, time.Time, error) {
	loc := h.cfg.TimeLocation()
	now := h.now()

	start, ok, err := httputil.QueryTime(r, "start", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		start = now.Add(-calendarLookback)
	}
	end, ok, err := httputil.QueryTime(r, "end", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		end = now.Add(calendarAhead)
	}
	return start, end, nil
}

func (h *LedgerHandler) writeCalendar(w http.ResponseWriter, handler string, cal *ical.Calendar) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := calendar.Write(w, cal); err != nil {
		h.cfg.Log.Error("failed to write calendar", "handler", handler, "operation", "Write", "error", err)
	}
}
