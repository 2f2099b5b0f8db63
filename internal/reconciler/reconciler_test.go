package reconciler

import (
	"context"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/model"
	"resledger/pkg/timetable"
	"sort"
	"testing"
	"time"

	empservice "resledger/internal/employeebookings/service"
	locservice "resledger/internal/locationbookings/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_MaterializesEverySlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	report, err := env.rec.Reconcile(ctx, "G1", Options{Actor: "scheduler"})
	require.NoError(t, err)

	assert.Equal(t, 10, report.SlotsSeen)
	assert.Equal(t, 10, report.LocationInserted)
	assert.Equal(t, 10, report.EmployeeInserted)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, int64(0), report.Deleted())
	assert.Equal(t, day("2025-09-01"), report.Window.Start)
	assert.Equal(t, day("2025-10-01"), report.Window.End)

	locRows := env.locationRows(t, g.Source())
	empRows := env.employeeRows(t, g.Source())
	require.Len(t, locRows, 10)
	require.Len(t, empRows, 10)
	for _, b := range locRows {
		assert.Equal(t, "R1", b.Location)
		assert.Equal(t, model.OccupancyTeaching, b.OccupancyType)
		assert.Equal(t, "scheduler", b.CreatedBy)
		assert.Equal(t, locservice.BuildSlotKeyInstance(g.Source().Key(), "R1", b.From, b.To), b.SlotKey)
	}
	for _, b := range empRows {
		assert.Equal(t, "E1", b.Employee)
		assert.Equal(t, "R1", b.Location)
		assert.True(t, b.BlocksAvailability)
	}
}

func TestReconcile_RemovingScheduleRowDeletesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	_, err := env.rec.Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)

	env.groupings.put(septemberGrouping("G1"))
	report, err := env.rec.Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Upserted())
	assert.Equal(t, int64(10), report.Deleted())
	assert.Equal(t, int64(10), report.EmployeeDeleted)
	assert.Empty(t, env.locationRows(t, g.Source()))
	assert.Empty(t, env.employeeRows(t, g.Source()))
}

func TestReconcile_SecondRunOnlyUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	_, err := env.rec.Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)
	before := env.locationRows(t, g.Source())

	report, err := env.rec.Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Upserted())
	assert.Equal(t, 0, report.LocationInserted)
	assert.Equal(t, 10, report.LocationUpdated)
	assert.Equal(t, 0, report.EmployeeInserted)
	assert.Equal(t, 10, report.EmployeeUpdated)
	assert.Equal(t, int64(0), report.Deleted())
	assert.Equal(t, int64(0), report.EmployeeDeleted)

	after := env.locationRows(t, g.Source())
	assert.ElementsMatch(t, identities(before), identities(after))
}

func identities(rows []*model.LocationBooking) []string {
	out := make([]string, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.ID+"|"+b.SlotKey+"|"+b.Location+"|"+b.From.String()+"|"+b.To.String())
	}
	sort.Strings(out)
	return out
}

// strictGrouping has a second block whose row names no location, and the
// enumerator does not supply one either.
func strictGrouping(env *testEnv) *model.Grouping {
	g := septemberGrouping("G5",
		model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"},
		model.ScheduleRow{RotationDay: 1, BlockNumber: 2, Employee: "E2"},
	)
	env.groupings.put(g)

	slots := mondaySlots()[:9]
	slots = append(slots, model.Slot{RotationDay: 1, BlockNumber: 2, Start: at("2025-09-29", "15:00"), End: at("2025-09-29", "16:00")})
	env.slots.set("G5", slots)
	return g
}

func TestReconcile_StrictLocationFailsBeforeAnyUpsert(t *testing.T) {
	env := newTestEnv(t)
	g := strictGrouping(env)

	_, err := env.rec.Reconcile(context.Background(), "G5", Options{StrictLocation: ptr(true)})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStrictLocation))

	assert.Empty(t, env.locationRows(t, g.Source()))
	assert.Empty(t, env.employeeRows(t, g.Source()))
	assert.Empty(t, env.publisher.events)
}

func TestReconcile_LenientLocationSkipsInvalidSlot(t *testing.T) {
	env := newTestEnv(t)
	g := strictGrouping(env)

	report, err := env.rec.Reconcile(context.Background(), "G5", Options{StrictLocation: ptr(false)})
	require.NoError(t, err)

	assert.Equal(t, 10, report.SlotsSeen)
	assert.Equal(t, 9, report.LocationInserted)
	assert.Equal(t, 9, report.EmployeeInserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, env.locationRows(t, g.Source()), 9)
}

func TestReconcile_NonBookableLocationIsStrictFailure(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "Hall"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	_, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStrictLocation))
}

func TestReconcile_CleanupStaysInsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	g.PeriodEnd = day("2025-10-31")
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())
	source := g.Source()

	october := func(loc, date string) {
		start, end := at(date, "09:00"), at(date, "10:00")
		_, err := env.locations.Upsert(ctx, locservice.UpsertRequest{
			Location:      loc,
			Start:         start,
			End:           end,
			OccupancyType: model.OccupancyTeaching,
			Source:        source,
			SlotKey:       locservice.BuildSlotKeyInstance(source.Key(), loc, start, end),
		})
		require.NoError(t, err)
		_, err = env.employees.Upsert(ctx, empservice.UpsertRequest{
			Employee:     "E1",
			Start:        start,
			End:          end,
			Source:       source,
			BookingType:  model.BookingTypeTeaching,
			Location:     loc,
			UniqueBySlot: true,
		})
		require.NoError(t, err)
	}
	october("R1", "2025-10-06")
	october("R2", "2025-09-10") // stale, inside the window

	report, err := env.rec.Reconcile(ctx, "G1", Options{
		WindowStart: ptr(day("2025-09-01")),
		WindowEnd:   ptr(day("2025-09-30")),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Deleted())
	assert.Equal(t, int64(1), report.EmployeeDeleted)

	rows := env.locationRows(t, source)
	require.Len(t, rows, 11)
	var outside int
	for _, b := range rows {
		if b.From.Month() == time.October {
			outside++
		}
		assert.NotEqual(t, "R2", b.Location)
	}
	assert.Equal(t, 1, outside)
	assert.Len(t, env.employeeRows(t, source), 11)
}

type recordingLocationLedger struct {
	locservice.LocationBookingService
	ops *[]string
}

func (r recordingLocationLedger) UpsertDetailed(ctx context.Context, req locservice.UpsertRequest) (locservice.UpsertResult, error) {
	*r.ops = append(*r.ops, "upsert")
	return r.LocationBookingService.UpsertDetailed(ctx, req)
}

func (r recordingLocationLedger) DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keep []string) (int64, error) {
	*r.ops = append(*r.ops, "delete")
	return r.LocationBookingService.DeleteForSourceInWindow(ctx, source, start, end, keep)
}

type recordingEmployeeLedger struct {
	empservice.EmployeeBookingService
	ops *[]string
}

func (r recordingEmployeeLedger) UpsertDetailed(ctx context.Context, req empservice.UpsertRequest) (empservice.UpsertResult, error) {
	*r.ops = append(*r.ops, "upsert")
	return r.EmployeeBookingService.UpsertDetailed(ctx, req)
}

func (r recordingEmployeeLedger) DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keep []model.EmployeeSlot) (int64, error) {
	*r.ops = append(*r.ops, "delete")
	return r.EmployeeBookingService.DeleteForSourceInWindow(ctx, source, start, end, keep)
}

func TestReconcile_UpsertsPrecedeDeletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())
	_, err := env.rec.Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)

	// Move the room so every old row becomes obsolete.
	env.groupings.put(septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R2"}))

	var ops []string
	deps := env.deps()
	deps.LocationLedger = recordingLocationLedger{LocationBookingService: env.locations, ops: &ops}
	deps.EmployeeLedger = recordingEmployeeLedger{EmployeeBookingService: env.employees, ops: &ops}
	report, err := New(deps, env.cfg).Reconcile(ctx, "G1", Options{})
	require.NoError(t, err)

	firstDelete := len(ops)
	for i, op := range ops {
		if op == "delete" {
			firstDelete = i
			break
		}
	}
	for _, op := range ops[firstDelete:] {
		assert.Equal(t, "delete", op)
	}
	assert.Equal(t, 20, firstDelete)

	assert.Equal(t, int64(10), report.Deleted())
	rows := env.locationRows(t, g.Source())
	require.Len(t, rows, 10)
	for _, b := range rows {
		assert.Equal(t, "R2", b.Location)
	}
	assert.Len(t, env.employeeRows(t, g.Source()), 10)
}

func TestReconcile_ResolvesInstructorOncePerRun(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Instructor: "I1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())
	env.instructors.employees["I1"] = "E7"

	report, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, env.instructors.calls)
	assert.Equal(t, 10, report.EmployeeInserted)
	for _, b := range env.employeeRows(t, g.Source()) {
		assert.Equal(t, "E7", b.Employee)
	}
}

func TestReconcile_UnresolvedAssigneeBooksLocationOnly(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Instructor: "unknown", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	report, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, report.LocationInserted)
	assert.Equal(t, 0, report.EmployeeInserted)
	assert.Empty(t, env.employeeRows(t, g.Source()))
}

func TestReconcile_ExplicitEmployeeWinsOverInstructor(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Instructor: "I1", Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots()[:1])
	env.instructors.employees["I1"] = "E7"

	_, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)

	rows := env.employeeRows(t, g.Source())
	require.Len(t, rows, 1)
	assert.Equal(t, "E1", rows[0].Employee)
	assert.Equal(t, 0, env.instructors.calls)
}

func TestReconcile_SlotLocationOverridesRow(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	slot := mondaySlots()[0]
	slot.Location = "R2"
	env.slots.set("G1", []model.Slot{slot})

	_, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)

	rows := env.locationRows(t, g.Source())
	require.Len(t, rows, 1)
	assert.Equal(t, "R2", rows[0].Location)
}

func TestReconcile_SlotWithoutScheduleRowIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", []model.Slot{
		mondaySlots()[0],
		{RotationDay: 3, BlockNumber: 4, Start: at("2025-09-03", "09:00"), End: at("2025-09-03", "10:00")},
	})

	report, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.SlotsSeen)
	assert.Equal(t, 1, report.Upserted())
	assert.Equal(t, 1, report.Skipped)
}

func TestReconcile_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	env.groupings.put(g)
	env.slots.set("G1", mondaySlots())

	_, err := env.rec.Reconcile(context.Background(), "G1", Options{Actor: "ops"})
	require.NoError(t, err)

	require.Len(t, env.publisher.events, 1)
	ev := env.publisher.events[0]
	assert.Equal(t, "G1", ev.GroupingID)
	assert.Equal(t, g.Source().Key(), ev.Source)
	assert.Equal(t, 10, ev.LocationInserted)
	assert.Equal(t, "ops", ev.Actor)
}

func TestReconcile_WindowErrors(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1")
	g.PeriodStart, g.PeriodEnd = time.Time{}, time.Time{}
	env.groupings.put(g)

	_, err := env.rec.Reconcile(context.Background(), "G1", Options{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = env.rec.Reconcile(context.Background(), "G1", Options{
		WindowStart: ptr(day("2025-09-10")),
		WindowEnd:   ptr(day("2025-09-01")),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = env.rec.Reconcile(context.Background(), "missing", Options{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestReconcile_WithWeeklyEnumerator(t *testing.T) {
	env := newTestEnv(t)
	g := septemberGrouping("G1", model.ScheduleRow{RotationDay: 1, BlockNumber: 1, Employee: "E1", Location: "R1"})
	g.Blocks = []model.BlockTime{{RotationDay: 1, BlockNumber: 1, Start: "09:00", End: "10:00"}}
	env.groupings.put(g)

	deps := env.deps()
	deps.Slots = timetable.NewWeeklyEnumerator(env.groupings, time.UTC)
	rec := New(deps, &config.Config{Log: env.cfg.Log, StrictLocation: true, Location: time.UTC})

	report, err := rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)
	assert.Equal(t, len(septemberMondays), report.LocationInserted)
	assert.Equal(t, len(septemberMondays), report.EmployeeInserted)

	again, err := rec.Reconcile(context.Background(), "G1", Options{})
	require.NoError(t, err)
	assert.Equal(t, len(septemberMondays), again.LocationUpdated)
	assert.Equal(t, int64(0), again.Deleted())
}
