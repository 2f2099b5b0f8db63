package http

import (
	"net/http"
	apperrors "resledger/pkg/errors"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// QueryTime parses an RFC3339 timestamp or a YYYY-MM-DD date, the latter as
// midnight in loc. A missing parameter returns the zero time and ok=false.
func QueryTime(r *http.Request, name string, loc *time.Location) (t time.Time, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, apperrors.InvalidInput("invalid " + name + " parameter: " + raw)
}

// RequiredWindow reads the start and end parameters, both mandatory.
func RequiredWindow(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	start, ok, err := QueryTime(r, "start", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("start parameter is required")
	}
	end, ok, err := QueryTime(r, "end", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("end parameter is required")
	}
	return start, end, nil
}

// QueryBool parses an optional boolean parameter. A missing parameter returns nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter: " + raw)
	}
	return &v, nil
}
