package reconciler

import (
	"context"
	emprepo "resledger/internal/employeebookings/repository"
	empservice "resledger/internal/employeebookings/service"
	empvalidator "resledger/internal/employeebookings/validator"
	locrepo "resledger/internal/locationbookings/repository"
	locservice "resledger/internal/locationbookings/service"
	locvalidator "resledger/internal/locationbookings/validator"
	"resledger/pkg/config"
	"resledger/pkg/db/gormdb/gormtest"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/kafka"
	"resledger/pkg/logger"
	"resledger/pkg/model"
	"resledger/pkg/timetable"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGroupings struct {
	mu        sync.Mutex
	groupings map[string]*model.Grouping
}

func (f *fakeGroupings) put(g *model.Grouping) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupings[g.ID] = g
}

func (f *fakeGroupings) Grouping(ctx context.Context, id string) (*model.Grouping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groupings[id]
	if !ok {
		return nil, apperrors.NotFoundWithID("Grouping", id)
	}
	cp := *g
	cp.Rows = append([]model.ScheduleRow(nil), g.Rows...)
	return &cp, nil
}

func (f *fakeGroupings) ListGroupings(ctx context.Context, filter model.GroupingFilter) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, g := range f.groupings {
		if filter.AcademicYear != "" && g.AcademicYear != filter.AcademicYear {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeSlots struct {
	mu    sync.Mutex
	slots map[string][]model.Slot
}

func (f *fakeSlots) set(groupingID string, slots []model.Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[groupingID] = slots
}

func (f *fakeSlots) Slots(ctx context.Context, groupingID string, windowStart, windowEnd time.Time) (timetable.Iterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return timetable.FromSlice(f.slots[groupingID]), nil
}

type fakeInstructors struct {
	mu        sync.Mutex
	employees map[string]string
	calls     int
}

func (f *fakeInstructors) EmployeeFor(ctx context.Context, instructor string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.employees[instructor], nil
}

type fakeLocations map[string]bool

func (f fakeLocations) IsBookable(ctx context.Context, location string) (bool, error) {
	return f[location], nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.ReconciledEvent
}

func (f *fakePublisher) PublishReconciled(ctx context.Context, ev kafka.ReconciledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type testEnv struct {
	rec         *Reconciler
	cfg         *config.Config
	groupings   *fakeGroupings
	slots       *fakeSlots
	instructors *fakeInstructors
	publisher   *fakePublisher
	employees   empservice.EmployeeBookingService
	locations   locservice.LocationBookingService
	empStore    emprepo.EmployeeBookingRepository
	locStore    locrepo.LocationBookingRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := gormtest.Open(t, &emprepo.EmployeeBookingRow{}, &locrepo.LocationBookingRow{})
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:            log,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		StrictLocation: true,
		BulkWorkers:    2,
		Location:       time.UTC,
	}

	env := &testEnv{
		cfg:         cfg,
		groupings:   &fakeGroupings{groupings: map[string]*model.Grouping{}},
		slots:       &fakeSlots{slots: map[string][]model.Slot{}},
		instructors: &fakeInstructors{employees: map[string]string{}},
		publisher:   &fakePublisher{},
		empStore:    emprepo.NewGormEmployeeBookingRepository(db),
		locStore:    locrepo.NewGormLocationBookingRepository(db),
	}
	env.employees = empservice.NewEmployeeBookingService(env.empStore, empvalidator.NewEmployeeBookingValidator(log), cfg)
	env.locations = locservice.NewLocationBookingService(env.locStore, locvalidator.NewLocationBookingValidator(log), nil, cfg)
	env.rec = New(env.deps(), cfg)
	return env
}

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		Groupings:      e.groupings,
		Slots:          e.slots,
		Instructors:    e.instructors,
		Locations:      fakeLocations{"R1": true, "R2": true, "Hall": false},
		EmployeeLedger: e.employees,
		LocationLedger: e.locations,
		Publisher:      e.publisher,
	}
}

func (e *testEnv) locationRows(t *testing.T, source model.SourceRef) []*model.LocationBooking {
	t.Helper()
	rows, err := e.locStore.FindBySource(context.Background(), source)
	require.NoError(t, err)
	return rows
}

func (e *testEnv) employeeRows(t *testing.T, source model.SourceRef) []*model.EmployeeBooking {
	t.Helper()
	rows, err := e.empStore.FindBySource(context.Background(), source, "")
	require.NoError(t, err)
	return rows
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(date, hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", date+" "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

var septemberMondays = []string{"2025-09-01", "2025-09-08", "2025-09-15", "2025-09-22", "2025-09-29"}

// mondaySlots returns ten (day 1, block 1) slots: a morning and an afternoon
// occurrence on every Monday of September 2025.
func mondaySlots() []model.Slot {
	var slots []model.Slot
	for _, d := range septemberMondays {
		slots = append(slots,
			model.Slot{RotationDay: 1, BlockNumber: 1, Start: at(d, "09:00"), End: at(d, "10:00")},
			model.Slot{RotationDay: 1, BlockNumber: 1, Start: at(d, "13:00"), End: at(d, "14:00")},
		)
	}
	return slots
}

func septemberGrouping(id string, rows ...model.ScheduleRow) *model.Grouping {
	return &model.Grouping{
		ID:           id,
		Name:         id,
		Kind:         model.SourceStudentGroup,
		School:       "North",
		AcademicYear: "2025-2026",
		Status:       model.GroupingActive,
		PeriodStart:  day("2025-09-01"),
		PeriodEnd:    day("2025-09-30"),
		Rows:         rows,
	}
}

func ptr[T any](v T) *T {
	return &v
}
