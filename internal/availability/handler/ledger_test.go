package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	empservice "resledger/internal/employeebookings/service"
	"resledger/internal/guard"
	locservice "resledger/internal/locationbookings/service"
	"resledger/internal/reconciler"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/logger"
	"resledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockEmployeeLedger struct {
	empservice.EmployeeBookingService
	findConflictsFunc   func(ctx context.Context, q empservice.ConflictQuery) ([]*model.EmployeeBooking, error)
	listForEmployeeFunc func(ctx context.Context, employee string, start, end time.Time) ([]*model.EmployeeBooking, error)
}

func (m *mockEmployeeLedger) FindConflicts(ctx context.Context, q empservice.ConflictQuery) ([]*model.EmployeeBooking, error) {
	if m.findConflictsFunc != nil {
		return m.findConflictsFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockEmployeeLedger) ListForEmployee(ctx context.Context, employee string, start, end time.Time) ([]*model.EmployeeBooking, error) {
	if m.listForEmployeeFunc != nil {
		return m.listForEmployeeFunc(ctx, employee, start, end)
	}
	return nil, nil
}

type mockLocationLedger struct {
	locservice.LocationBookingService
	findConflictsFunc   func(ctx context.Context, q locservice.ConflictQuery) ([]*model.LocationBooking, error)
	listForLocationFunc func(ctx context.Context, location string, start, end time.Time, includeChildren bool) ([]*model.LocationBooking, error)
}

func (m *mockLocationLedger) FindConflicts(ctx context.Context, q locservice.ConflictQuery) ([]*model.LocationBooking, error) {
	if m.findConflictsFunc != nil {
		return m.findConflictsFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockLocationLedger) ListForLocation(ctx context.Context, location string, start, end time.Time, includeChildren bool) ([]*model.LocationBooking, error) {
	if m.listForLocationFunc != nil {
		return m.listForLocationFunc(ctx, location, start, end, includeChildren)
	}
	return nil, nil
}

type mockReconciler struct {
	reconcileFunc    func(ctx context.Context, groupingID string, opts reconciler.Options) (*reconciler.Report, error)
	reconcileAllFunc func(ctx context.Context, filter model.GroupingFilter, opts reconciler.Options) (*reconciler.BulkReport, error)
}

func (m *mockReconciler) Reconcile(ctx context.Context, groupingID string, opts reconciler.Options) (*reconciler.Report, error) {
	if m.reconcileFunc != nil {
		return m.reconcileFunc(ctx, groupingID, opts)
	}
	return &reconciler.Report{GroupingID: groupingID}, nil
}

func (m *mockReconciler) ReconcileAll(ctx context.Context, filter model.GroupingFilter, opts reconciler.Options) (*reconciler.BulkReport, error) {
	if m.reconcileAllFunc != nil {
		return m.reconcileAllFunc(ctx, filter, opts)
	}
	return &reconciler.BulkReport{}, nil
}

type mockGuard struct {
	checkFunc   func(ctx context.Context, c guard.Commitment) error
	bookFunc    func(ctx context.Context, c guard.Commitment, opts guard.BookOptions) (*guard.BookResult, error)
	releaseFunc func(ctx context.Context, source model.SourceRef, actor string) (*guard.ReleaseResult, error)
}

func (m *mockGuard) Check(ctx context.Context, c guard.Commitment) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, c)
	}
	return nil
}

func (m *mockGuard) Book(ctx context.Context, c guard.Commitment, opts guard.BookOptions) (*guard.BookResult, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, c, opts)
	}
	return &guard.BookResult{}, nil
}

func (m *mockGuard) Release(ctx context.Context, source model.SourceRef, actor string) (*guard.ReleaseResult, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, source, actor)
	}
	return &guard.ReleaseResult{}, nil
}

type testServer struct {
	employees  *mockEmployeeLedger
	locations  *mockLocationLedger
	reconciler *mockReconciler
	guard      *mockGuard
	router     *httprouter.Router
}

var testNow = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestServer() *testServer {
	s := &testServer{
		employees:  &mockEmployeeLedger{},
		locations:  &mockLocationLedger{},
		reconciler: &mockReconciler{},
		guard:      &mockGuard{},
		router:     httprouter.New(),
	}
	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		Location: time.UTC,
	}
	h := NewLedgerHandler(s.employees, s.locations, s.reconciler, s.guard, cfg)
	h.now = func() time.Time { return testNow }
	h.RegisterRoutes(s.router)
	return s
}

func (s *testServer) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	wrapper := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.NewDecoder(rec.Body).Decode(&wrapper); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestEmployeeAvailability_ReportsConflicts(t *testing.T) {
	s := newTestServer()

	var received empservice.ConflictQuery
	s.employees.findConflictsFunc = func(ctx context.Context, q empservice.ConflictQuery) ([]*model.EmployeeBooking, error) {
		received = q
		return []*model.EmployeeBooking{{
			ID:          "b1",
			Employee:    q.Employee,
			BookingType: model.BookingTypeMeeting,
			Source:      model.NewSourceRef(model.SourceMeeting, "M7"),
			From:        time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC),
			To:          time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC),
		}}, nil
	}

	rec := s.do(http.MethodGet,
		"/api/v1/availability/employees/E1?start=2025-09-01T09:00:00Z&end=2025-09-01T10:00:00Z&include_soft=true&exclude_kind=Meeting&exclude_id=M1",
		"", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if received.Employee != "E1" || !received.IncludeSoft {
		t.Errorf("unexpected query: %+v", received)
	}
	if received.ExcludeSource == nil || received.ExcludeSource.Key() != "Meeting::M1" {
		t.Errorf("expected exclusion Meeting::M1, got %v", received.ExcludeSource)
	}

	var got EmployeeAvailability
	decodeData(t, rec, &got)
	if got.Free {
		t.Error("expected employee to be busy")
	}
	if len(got.Conflicts) != 1 || got.Conflicts[0].SourceName != "M7" {
		t.Errorf("unexpected conflicts: %+v", got.Conflicts)
	}
}

func TestEmployeeAvailability_InvalidQueryParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "missing start", query: "end=2025-09-02"},
		{name: "missing end", query: "start=2025-09-01"},
		{name: "malformed start", query: "start=yesterday&end=2025-09-02"},
		{name: "malformed include_soft", query: "start=2025-09-01&end=2025-09-02&include_soft=maybe"},
		{name: "half an exclusion", query: "start=2025-09-01&end=2025-09-02&exclude_kind=Meeting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			called := false
			s.employees.findConflictsFunc = func(ctx context.Context, q empservice.ConflictQuery) ([]*model.EmployeeBooking, error) {
				called = true
				return nil, nil
			}

			rec := s.do(http.MethodGet, "/api/v1/availability/employees/E1?"+tt.query, "", nil)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
			if called {
				t.Error("service must not be called for invalid input")
			}
		})
	}
}

func TestLocationAvailability_DateWindowAndChildren(t *testing.T) {
	s := newTestServer()

	var received locservice.ConflictQuery
	s.locations.findConflictsFunc = func(ctx context.Context, q locservice.ConflictQuery) ([]*model.LocationBooking, error) {
		received = q
		return nil, nil
	}

	rec := s.do(http.MethodGet, "/api/v1/availability/locations/Library?start=2025-09-01&end=2025-09-02&include_children=true", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !received.IncludeChildren || received.Location != "Library" {
		t.Errorf("unexpected query: %+v", received)
	}
	if !received.Start.Equal(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)) ||
		!received.End.Equal(time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window %s..%s", received.Start, received.End)
	}

	var got LocationAvailability
	decodeData(t, rec, &got)
	if !got.Free || len(got.Conflicts) != 0 {
		t.Errorf("expected free location, got %+v", got)
	}
}

func TestReconcileGrouping_PassesOptions(t *testing.T) {
	s := newTestServer()

	var receivedID string
	var received reconciler.Options
	s.reconciler.reconcileFunc = func(ctx context.Context, groupingID string, opts reconciler.Options) (*reconciler.Report, error) {
		receivedID, received = groupingID, opts
		return &reconciler.Report{GroupingID: groupingID, LocationInserted: 10, EmployeeInserted: 10}, nil
	}

	rec := s.do(http.MethodPost, "/api/v1/reconcile/groupings/G1?window_start=2025-09-10&strict=false", "",
		map[string]string{ActorHeader: "alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if receivedID != "G1" || received.Actor != "alice" {
		t.Errorf("unexpected call: id=%s opts=%+v", receivedID, received)
	}
	if received.WindowStart == nil || !received.WindowStart.Equal(time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window start %v", received.WindowStart)
	}
	if received.WindowEnd != nil {
		t.Errorf("expected no window end, got %v", received.WindowEnd)
	}
	if received.StrictLocation == nil || *received.StrictLocation {
		t.Errorf("expected strict=false override, got %v", received.StrictLocation)
	}

	var got reconciler.Report
	decodeData(t, rec, &got)
	if got.LocationInserted != 10 {
		t.Errorf("expected 10 location inserts, got %d", got.LocationInserted)
	}
}

func TestReconcileGrouping_StrictFailure(t *testing.T) {
	s := newTestServer()
	strictErr := apperrors.StrictLocation("Location Hall is not bookable", map[string]any{"locations": []string{"Hall"}})
	s.reconciler.reconcileFunc = func(ctx context.Context, groupingID string, opts reconciler.Options) (*reconciler.Report, error) {
		return nil, strictErr
	}

	rec := s.do(http.MethodPost, "/api/v1/reconcile/groupings/G1", "", nil)

	if rec.Code != strictErr.StatusCode() {
		t.Errorf("expected status %d, got %d", strictErr.StatusCode(), rec.Code)
	}
	var body apperrors.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if body.Code != strictErr.Code {
		t.Errorf("expected code %s, got %s", strictErr.Code, body.Code)
	}
}

func TestReconcileAll_ReportsPerGroupingOutcome(t *testing.T) {
	s := newTestServer()

	var received model.GroupingFilter
	s.reconciler.reconcileAllFunc = func(ctx context.Context, filter model.GroupingFilter, opts reconciler.Options) (*reconciler.BulkReport, error) {
		received = filter
		return &reconciler.BulkReport{
			Results: []reconciler.GroupingResult{
				{GroupingID: "G1", Report: &reconciler.Report{GroupingID: "G1", LocationInserted: 4, LocationDeleted: 1}},
				{GroupingID: "G2", Err: errors.New("boom")},
			},
			Succeeded: 1,
			Failed:    1,
		}, nil
	}

	rec := s.do(http.MethodPost, "/api/v1/reconcile?school=North&academic_year=2025-26", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if received.School != "North" || received.AcademicYear != "2025-26" || !received.ActiveOnly {
		t.Errorf("unexpected filter: %+v", received)
	}

	var got BulkResponse
	decodeData(t, rec, &got)
	if got.Succeeded != 1 || got.Failed != 1 || got.Upserted != 4 || got.Deleted != 1 {
		t.Errorf("unexpected totals: %+v", got)
	}
	if len(got.Results) != 2 || got.Results[1].Error != "boom" || got.Results[0].Error != "" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
}

func TestCheckCommitment(t *testing.T) {
	conflict := model.Conflict{
		ResourceType: model.ResourceEmployee,
		Resource:     "E1",
		BookedOn:     "E1",
		SourceKind:   model.SourceMeeting,
		SourceName:   "M2",
		From:         time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC),
		To:           time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC),
	}

	tests := []struct {
		name           string
		body           string
		checkErr       error
		expectHTTPCode int
	}{
		{
			name:           "free",
			body:           `{"source_kind":"Meeting","source_name":"M1","employees":["E1"],"start":"2025-09-01T09:00:00Z","end":"2025-09-01T10:00:00Z"}`,
			expectHTTPCode: http.StatusOK,
		},
		{
			name:           "conflict",
			body:           `{"source_kind":"Meeting","source_name":"M1","employees":["E1"],"start":"2025-09-01T09:00:00Z","end":"2025-09-01T10:00:00Z"}`,
			checkErr:       apperrors.SchedulingConflict([]model.Conflict{conflict}),
			expectHTTPCode: http.StatusConflict,
		},
		{
			name:           "malformed body",
			body:           `{"source_kind":`,
			expectHTTPCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			var received guard.Commitment
			s.guard.checkFunc = func(ctx context.Context, c guard.Commitment) error {
				received = c
				return tt.checkErr
			}

			rec := s.do(http.MethodPost, "/api/v1/commitments/check", tt.body, nil)

			if rec.Code != tt.expectHTTPCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectHTTPCode, rec.Code, rec.Body.String())
			}
			if tt.expectHTTPCode == http.StatusOK && (received.Source.Key() != "Meeting::M1" || len(received.Employees) != 1) {
				t.Errorf("unexpected commitment: %+v", received)
			}
		})
	}
}

func TestBookCommitment_PassesOptions(t *testing.T) {
	s := newTestServer()

	var received guard.BookOptions
	s.guard.bookFunc = func(ctx context.Context, c guard.Commitment, opts guard.BookOptions) (*guard.BookResult, error) {
		received = opts
		return &guard.BookResult{
			LocationBookingID:  "lb1",
			EmployeeBookingIDs: map[string]string{"E1": "eb1"},
		}, nil
	}

	body := `{"source_kind":"Meeting","source_name":"M1","location":"R1","employees":["E1"],` +
		`"start":"2025-09-01T09:00:00Z","end":"2025-09-01T10:00:00Z","booking_type":"Meeting","school":"North"}`
	rec := s.do(http.MethodPut, "/api/v1/commitments", body, map[string]string{ActorHeader: "bob"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if received.Actor != "bob" || received.School != "North" || received.BookingType != model.BookingTypeMeeting {
		t.Errorf("unexpected options: %+v", received)
	}

	var got guard.BookResult
	decodeData(t, rec, &got)
	if got.LocationBookingID != "lb1" || got.EmployeeBookingIDs["E1"] != "eb1" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestReleaseSource(t *testing.T) {
	s := newTestServer()

	var received model.SourceRef
	var actor string
	s.guard.releaseFunc = func(ctx context.Context, source model.SourceRef, a string) (*guard.ReleaseResult, error) {
		received, actor = source, a
		return &guard.ReleaseResult{LocationDeleted: 1, EmployeeDeleted: 2}, nil
	}

	rec := s.do(http.MethodDelete, "/api/v1/sources/Student%20Group/G1", "", map[string]string{ActorHeader: "alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if received.Key() != "Student Group::G1" || actor != "alice" {
		t.Errorf("unexpected release: %s by %s", received.Key(), actor)
	}

	var got guard.ReleaseResult
	decodeData(t, rec, &got)
	if got.LocationDeleted != 1 || got.EmployeeDeleted != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestEmployeeCalendar_ServesICS(t *testing.T) {
	s := newTestServer()

	var receivedEmployee string
	var receivedStart, receivedEnd time.Time
	s.employees.listForEmployeeFunc = func(ctx context.Context, employee string, start, end time.Time) ([]*model.EmployeeBooking, error) {
		receivedEmployee, receivedStart, receivedEnd = employee, start, end
		return []*model.EmployeeBooking{{
			ID:                 "eb1",
			Employee:           employee,
			BookingType:        model.BookingTypeTeaching,
			BlocksAvailability: true,
			Source:             model.NewSourceRef(model.SourceStudentGroup, "G1"),
			From:               time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
			To:                 time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		}}, nil
	}

	rec := s.do(http.MethodGet, "/api/v1/calendar/employees/E1.ics", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %q", ct)
	}
	if receivedEmployee != "E1" {
		t.Errorf("expected .ics suffix trimmed, got %q", receivedEmployee)
	}
	if !receivedStart.Equal(testNow.Add(-calendarLookback)) || !receivedEnd.Equal(testNow.Add(calendarAhead)) {
		t.Errorf("unexpected default window %s..%s", receivedStart, receivedEnd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "UID:employee-eb1@resledger") {
		t.Errorf("unexpected calendar body:\n%s", body)
	}
}

func TestLocationCalendar_ServiceError(t *testing.T) {
	s := newTestServer()
	s.locations.listForLocationFunc = func(ctx context.Context, location string, start, end time.Time, includeChildren bool) ([]*model.LocationBooking, error) {
		return nil, apperrors.Internal("Failed to list location bookings", errors.New("db down"))
	}

	rec := s.do(http.MethodGet, "/api/v1/calendar/locations/R1.ics?start=2025-09-01&end=2025-10-01", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}
