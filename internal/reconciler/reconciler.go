// Package reconciler materializes recurring groupings into concrete bookings
// on the employee and location ledgers.
package reconciler

import (
	"context"
	"fmt"
	empservice "resledger/internal/employeebookings/service"
	locservice "resledger/internal/locationbookings/service"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/interval"
	"resledger/pkg/kafka"
	"resledger/pkg/model"
	"resledger/pkg/obs"
	"resledger/pkg/sanitizer"
	"resledger/pkg/timetable"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type GroupingSource interface {
	Grouping(ctx context.Context, id string) (*model.Grouping, error)
	ListGroupings(ctx context.Context, filter model.GroupingFilter) ([]string, error)
}

// SlotEnumerator yields every concrete occurrence of a grouping between two
// dates, both inclusive.
type SlotEnumerator interface {
	Slots(ctx context.Context, groupingID string, windowStart, windowEnd time.Time) (timetable.Iterator, error)
}

type InstructorResolver interface {
	EmployeeFor(ctx context.Context, instructor string) (string, error)
}

type LocationDirectory interface {
	IsBookable(ctx context.Context, location string) (bool, error)
}

type EventPublisher interface {
	PublishReconciled(ctx context.Context, ev kafka.ReconciledEvent) error
}

type Dependencies struct {
	Groupings      GroupingSource
	Slots          SlotEnumerator
	Instructors    InstructorResolver
	Locations      LocationDirectory
	EmployeeLedger empservice.EmployeeBookingService
	LocationLedger locservice.LocationBookingService
	// Publisher is optional.
	Publisher EventPublisher
}

// Options narrow one run. Nil window bounds default to the grouping's period
// and a nil StrictLocation defaults to the configured value.
type Options struct {
	WindowStart    *time.Time
	WindowEnd      *time.Time
	StrictLocation *bool
	Actor          string
}

type Reconciler struct {
	deps Dependencies
	cfg  *config.Config
}

func New(deps Dependencies, cfg *config.Config) *Reconciler {
	return &Reconciler{deps: deps, cfg: cfg}
}

// plan is the validated target set of one run. It is complete before the
// first write.
type plan struct {
	locations []locservice.UpsertRequest
	employees []empservice.UpsertRequest
	slotsSeen int
	skipped   int
}

// Reconcile upserts every target booking of the grouping and only then
// deletes the source's bookings inside the window that are no longer targets.
// A strict location failure returns before any write.
func (r *Reconciler) Reconcile(ctx context.Context, groupingID string, opts Options) (*Report, error) {
	ctx, span := obs.Tracer().Start(ctx, "reconciler.Reconcile",
		trace.WithAttributes(attribute.String("grouping.id", groupingID)),
	)
	defer span.End()

	report, err := r.reconcile(ctx, groupingID, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetAttributes(
		attribute.Int("reconcile.slots_seen", report.SlotsSeen),
		attribute.Int("reconcile.upserted", report.Upserted()),
		attribute.Int64("reconcile.deleted", report.Deleted()),
		attribute.Int("reconcile.skipped", report.Skipped),
	)
	return report, nil
}

func (r *Reconciler) reconcile(ctx context.Context, groupingID string, opts Options) (*Report, error) {
	g, err := r.deps.Groupings.Grouping(ctx, groupingID)
	if err != nil {
		return nil, err
	}

	first, last, err := r.window(g, opts)
	if err != nil {
		return nil, err
	}
	start, end := interval.DayWindow(first, last, r.cfg.TimeLocation())
	report := &Report{GroupingID: g.ID, Window: Window{Start: start, End: end}}

	strict := r.cfg.StrictLocation
	if opts.StrictLocation != nil {
		strict = *opts.StrictLocation
	}

	p := &plan{}
	if len(g.Rows) > 0 {
		p, err = r.plan(ctx, g, first, last, strict, opts.Actor)
		if err != nil {
			r.cfg.Log.Warn("Reconciliation aborted during planning",
				"grouping_id", g.ID,
				"strict_location", strict,
				"error", err,
			)
			return report, err
		}
	}
	report.SlotsSeen = p.slotsSeen
	report.Skipped = p.skipped

	for _, req := range p.locations {
		res, err := r.deps.LocationLedger.UpsertDetailed(ctx, req)
		if err != nil {
			return report, err
		}
		if res.Created {
			report.LocationInserted++
		} else {
			report.LocationUpdated++
		}
	}
	for _, req := range p.employees {
		res, err := r.deps.EmployeeLedger.UpsertDetailed(ctx, req)
		if err != nil {
			return report, err
		}
		if res.Created {
			report.EmployeeInserted++
		} else {
			report.EmployeeUpdated++
		}
	}

	source := g.Source()
	keepSlotKeys := make([]string, 0, len(p.locations))
	for _, req := range p.locations {
		keepSlotKeys = append(keepSlotKeys, req.SlotKey)
	}
	report.LocationDeleted, err = r.deps.LocationLedger.DeleteForSourceInWindow(ctx, source, start, end, keepSlotKeys)
	if err != nil {
		return report, err
	}

	keepEmployees := make([]model.EmployeeSlot, 0, len(p.employees))
	for _, req := range p.employees {
		keepEmployees = append(keepEmployees, model.EmployeeSlot{Employee: req.Employee, From: req.Start, To: req.End})
	}
	report.EmployeeDeleted, err = r.deps.EmployeeLedger.DeleteForSourceInWindow(ctx, source, start, end, keepEmployees)
	if err != nil {
		return report, err
	}

	r.cfg.Log.Info("Grouping reconciled",
		"grouping_id", g.ID,
		"window_start", start,
		"window_end", end,
		"slots_seen", report.SlotsSeen,
		"location_inserted", report.LocationInserted,
		"location_updated", report.LocationUpdated,
		"employee_inserted", report.EmployeeInserted,
		"employee_updated", report.EmployeeUpdated,
		"location_deleted", report.LocationDeleted,
		"employee_deleted", report.EmployeeDeleted,
		"skipped", report.Skipped,
	)
	r.publish(ctx, source, report, opts.Actor)
	return report, nil
}

// window returns the inclusive date range of the run.
func (r *Reconciler) window(g *model.Grouping, opts Options) (time.Time, time.Time, error) {
	first, last := g.PeriodStart, g.PeriodEnd
	if opts.WindowStart != nil {
		first = *opts.WindowStart
	}
	if opts.WindowEnd != nil {
		last = *opts.WindowEnd
	}
	if first.IsZero() || last.IsZero() {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(
			fmt.Sprintf("Grouping %s has no period; a reconciliation window is required", g.ID))
	}
	firstDay, _ := interval.DayWindow(first, first, r.cfg.TimeLocation())
	lastDay, _ := interval.DayWindow(last, last, r.cfg.TimeLocation())
	if lastDay.Before(firstDay) {
		return time.Time{}, time.Time{}, apperrors.Validation("Reconciliation window ends before it starts", map[string]any{
			"window_start": first,
			"window_end":   last,
		})
	}
	return first, last, nil
}

type rowKey struct {
	rotationDay int
	blockNumber int
}

func (r *Reconciler) plan(ctx context.Context, g *model.Grouping, first, last time.Time, strict bool, actor string) (*plan, error) {
	rows := make(map[rowKey][]model.ScheduleRow, len(g.Rows))
	for _, row := range g.Rows {
		k := rowKey{row.RotationDay, row.BlockNumber}
		rows[k] = append(rows[k], row)
	}

	it, err := r.deps.Slots.Slots(ctx, g.ID, first, last)
	if err != nil {
		return nil, apperrors.Internal("Failed to enumerate grouping slots", err)
	}

	source := g.Source()
	sourceKey := locservice.BuildSourceKey(source)
	lookups := newRunCache(r.deps.Instructors, r.deps.Locations)
	p := &plan{}
	seenSlots := map[string]struct{}{}
	seenEmployees := map[string]struct{}{}

	for {
		slot, ok := it.Next(ctx)
		if !ok {
			break
		}
		p.slotsSeen++

		matched := rows[rowKey{slot.RotationDay, slot.BlockNumber}]
		if len(matched) == 0 {
			p.skipped++
			continue
		}
		if !interval.Valid(slot.Start, slot.End) {
			r.cfg.Log.Warn("Slot with empty window skipped",
				"grouping_id", g.ID,
				"rotation_day", slot.RotationDay,
				"block_number", slot.BlockNumber,
				"start", slot.Start,
			)
			p.skipped++
			continue
		}

		for _, row := range matched {
			location := sanitizer.NormalizeName(slot.Location)
			if location == "" {
				location = sanitizer.NormalizeName(row.Location)
			}

			bookable, err := lookups.bookable(ctx, location)
			if err != nil {
				return nil, err
			}
			if !bookable {
				if strict {
					return nil, apperrors.StrictLocation(
						fmt.Sprintf("Slot day %d block %d at %s has no bookable location", slot.RotationDay, slot.BlockNumber, slot.Start.Format(time.RFC3339)),
						map[string]any{
							"grouping_id":  g.ID,
							"rotation_day": slot.RotationDay,
							"block_number": slot.BlockNumber,
							"start":        slot.Start,
							"location":     location,
						})
				}
				p.skipped++
				continue
			}

			slotKey := locservice.BuildSlotKeyInstance(sourceKey, location, slot.Start, slot.End)
			if _, dup := seenSlots[slotKey]; !dup {
				seenSlots[slotKey] = struct{}{}
				p.locations = append(p.locations, locservice.UpsertRequest{
					Location:      location,
					Start:         slot.Start,
					End:           slot.End,
					OccupancyType: model.OccupancyTeaching,
					Source:        source,
					SlotKey:       slotKey,
					School:        g.School,
					AcademicYear:  g.AcademicYear,
					Actor:         actor,
				})
			}

			employee, err := lookups.employee(ctx, row)
			if err != nil {
				return nil, err
			}
			if employee == "" {
				continue
			}
			key := model.EmployeeSlot{Employee: employee, From: slot.Start, To: slot.End}.Key()
			if _, dup := seenEmployees[key]; dup {
				continue
			}
			seenEmployees[key] = struct{}{}
			p.employees = append(p.employees, empservice.UpsertRequest{
				Employee:     employee,
				Start:        slot.Start,
				End:          slot.End,
				Source:       source,
				BookingType:  model.BookingTypeTeaching,
				Location:     location,
				School:       g.School,
				AcademicYear: g.AcademicYear,
				UniqueBySlot: true,
				Actor:        actor,
			})
		}
	}
	if err := it.Err(); err != nil {
		return nil, apperrors.Internal("Failed to enumerate grouping slots", err)
	}
	return p, nil
}

func (r *Reconciler) publish(ctx context.Context, source model.SourceRef, report *Report, actor string) {
	if r.deps.Publisher == nil {
		return
	}
	err := r.deps.Publisher.PublishReconciled(ctx, kafka.ReconciledEvent{
		GroupingID:       report.GroupingID,
		Source:           source.Key(),
		WindowStart:      report.Window.Start,
		WindowEnd:        report.Window.End,
		SlotsSeen:        report.SlotsSeen,
		LocationInserted: report.LocationInserted,
		LocationUpdated:  report.LocationUpdated,
		EmployeeInserted: report.EmployeeInserted,
		EmployeeUpdated:  report.EmployeeUpdated,
		LocationDeleted:  report.LocationDeleted,
		EmployeeDeleted:  report.EmployeeDeleted,
		Skipped:          report.Skipped,
		Actor:            actor,
	})
	if err != nil {
		r.cfg.Log.Warn("Failed to publish reconciliation event",
			"grouping_id", report.GroupingID,
			"error", err,
		)
	}
}
