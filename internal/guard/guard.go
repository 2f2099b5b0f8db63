// Package guard checks and books commitments that own a single booking, such
// as a meeting that occupies one room and a set of participants.
package guard

import (
	"context"
	empservice "resledger/internal/employeebookings/service"
	locservice "resledger/internal/locationbookings/service"
	"resledger/pkg/config"
	"resledger/pkg/db"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/interval"
	"resledger/pkg/kafka"
	"resledger/pkg/model"
	"resledger/pkg/sanitizer"
	"time"
)

type InstructorResolver interface {
	EmployeeFor(ctx context.Context, instructor string) (string, error)
}

type EventPublisher interface {
	PublishReleased(ctx context.Context, ev kafka.ReleasedEvent) error
}

type Dependencies struct {
	EmployeeLedger empservice.EmployeeBookingService
	LocationLedger locservice.LocationBookingService
	Instructors    InstructorResolver
	// Tx and Publisher are optional.
	Tx        db.TransactionManager
	Publisher EventPublisher
}

// Commitment is the booking a domain object is about to save. Its own prior
// bookings, found by Source, never conflict with it. A location is always
// checked together with its descendants and ancestors.
type Commitment struct {
	Source             model.SourceRef
	Location           string
	Employees          []string
	Instructors        []string
	Start              time.Time
	End                time.Time
	AllowDoubleBooking bool
}

type BookOptions struct {
	OccupancyType string
	BookingType   string
	School        string
	AcademicYear  string
	Actor         string
}

type BookResult struct {
	LocationBookingID  string            `json:"location_booking_id,omitempty"`
	EmployeeBookingIDs map[string]string `json:"employee_booking_ids"`
	Removed            int64             `json:"removed"`
}

type ReleaseResult struct {
	LocationDeleted int64 `json:"location_deleted"`
	EmployeeDeleted int64 `json:"employee_deleted"`
}

type Guard struct {
	deps Dependencies
	cfg  *config.Config
}

func New(deps Dependencies, cfg *config.Config) *Guard {
	if deps.Tx == nil {
		deps.Tx = db.NewNoopTransactionManager()
	}
	return &Guard{deps: deps, cfg: cfg}
}

// Check asserts that the location and every participant are free, and reports
// all violations in one SchedulingConflict.
func (g *Guard) Check(ctx context.Context, c Commitment) error {
	if err := validateCommitment(c); err != nil {
		return err
	}
	c.Source = model.NewSourceRef(c.Source.Kind, c.Source.Name)
	participants, err := g.participants(ctx, c)
	if err != nil {
		return err
	}
	return g.check(ctx, c, participants)
}

func (g *Guard) check(ctx context.Context, c Commitment, participants []string) error {
	if c.AllowDoubleBooking {
		return nil
	}

	exclude := c.Source
	var conflicts []model.Conflict

	if location := sanitizer.NormalizeName(c.Location); location != "" {
		err := g.deps.LocationLedger.AssertFree(ctx, locservice.ConflictQuery{
			Location:        location,
			Start:           c.Start,
			End:             c.End,
			IncludeChildren: true,
			ExcludeSource:   &exclude,
		}, false)
		if found := apperrors.Conflicts(err); found != nil {
			conflicts = append(conflicts, found...)
		} else if err != nil {
			return err
		}
	}

	for _, employee := range participants {
		err := g.deps.EmployeeLedger.AssertFree(ctx, employee, c.Start, c.End, &exclude, false)
		if found := apperrors.Conflicts(err); found != nil {
			conflicts = append(conflicts, found...)
		} else if err != nil {
			return err
		}
	}

	if len(conflicts) > 0 {
		return apperrors.SchedulingConflict(conflicts)
	}
	return nil
}

// Book checks the commitment and stores its bookings in one transaction: one
// location booking keyed by source and location, one employee booking per
// participant, and removal of rows left by earlier versions of the commitment.
func (g *Guard) Book(ctx context.Context, c Commitment, opts BookOptions) (*BookResult, error) {
	if err := validateCommitment(c); err != nil {
		return nil, err
	}
	c.Source = model.NewSourceRef(c.Source.Kind, c.Source.Name)
	c.Location = sanitizer.NormalizeName(c.Location)
	if opts.OccupancyType == "" {
		opts.OccupancyType = model.OccupancyMeeting
	}
	if opts.BookingType == "" {
		opts.BookingType = model.BookingTypeMeeting
	}

	result := &BookResult{EmployeeBookingIDs: map[string]string{}}
	err := g.deps.Tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		participants, err := g.participants(ctx, c)
		if err != nil {
			return err
		}
		if err := g.check(ctx, c, participants); err != nil {
			return err
		}

		var keep []string
		if c.Location != "" {
			slotKey := locservice.BuildSlotKeySingle(locservice.BuildSourceKey(c.Source), c.Location)
			id, err := g.deps.LocationLedger.Upsert(ctx, locservice.UpsertRequest{
				Location:      c.Location,
				Start:         c.Start,
				End:           c.End,
				OccupancyType: opts.OccupancyType,
				Source:        c.Source,
				SlotKey:       slotKey,
				School:        opts.School,
				AcademicYear:  opts.AcademicYear,
				Actor:         opts.Actor,
			})
			if err != nil {
				return err
			}
			result.LocationBookingID = id
			keep = append(keep, slotKey)
		}

		for _, employee := range participants {
			id, err := g.deps.EmployeeLedger.Upsert(ctx, empservice.UpsertRequest{
				Employee:     employee,
				Start:        c.Start,
				End:          c.End,
				Source:       c.Source,
				BookingType:  opts.BookingType,
				Location:     c.Location,
				School:       opts.School,
				AcademicYear: opts.AcademicYear,
				Actor:        opts.Actor,
			})
			if err != nil {
				return err
			}
			result.EmployeeBookingIDs[employee] = id
		}

		removed, err := g.removeStale(ctx, c, keep, participants)
		if err != nil {
			return err
		}
		result.Removed = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.cfg.Log.Info("Commitment booked",
		"source", c.Source.Key(),
		"location", c.Location,
		"participants", len(result.EmployeeBookingIDs),
		"removed", result.Removed,
	)
	return result, nil
}

// removeStale deletes the location rows of a previous location and the
// bookings of participants who left.
func (g *Guard) removeStale(ctx context.Context, c Commitment, keepSlotKeys []string, participants []string) (int64, error) {
	var removed int64

	existing, err := g.deps.LocationLedger.ListForSource(ctx, c.Source)
	if err != nil {
		return 0, err
	}
	if len(existing) > len(keepSlotKeys) {
		start, end := c.Start, c.End
		for _, b := range existing {
			if b.From.Before(start) {
				start = b.From
			}
			if b.To.After(end) {
				end = b.To
			}
		}
		n, err := g.deps.LocationLedger.DeleteForSourceInWindow(ctx, c.Source, start, end, keepSlotKeys)
		if err != nil {
			return 0, err
		}
		removed += n
	}

	present := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		present[p] = struct{}{}
	}
	booked, err := g.deps.EmployeeLedger.ListForSource(ctx, c.Source)
	if err != nil {
		return 0, err
	}
	gone := map[string]struct{}{}
	for _, b := range booked {
		if _, ok := present[b.Employee]; !ok {
			gone[b.Employee] = struct{}{}
		}
	}
	for employee := range gone {
		n, err := g.deps.EmployeeLedger.DeleteForSource(ctx, c.Source, employee)
		if err != nil {
			return 0, err
		}
		removed += n
	}
	return removed, nil
}

// Release removes every booking of a cancelled or deleted source from both
// ledgers.
func (g *Guard) Release(ctx context.Context, source model.SourceRef, actor string) (*ReleaseResult, error) {
	source = model.NewSourceRef(source.Kind, source.Name)
	if source.Kind == "" || source.Name == "" {
		return nil, apperrors.InvalidInput("Source kind and name are required")
	}

	result := &ReleaseResult{}
	err := g.deps.Tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		if result.LocationDeleted, err = g.deps.LocationLedger.DeleteForSource(ctx, source); err != nil {
			return err
		}
		result.EmployeeDeleted, err = g.deps.EmployeeLedger.DeleteForSource(ctx, source, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	if g.deps.Publisher != nil {
		err := g.deps.Publisher.PublishReleased(ctx, kafka.ReleasedEvent{
			Source:          source.Key(),
			LocationDeleted: result.LocationDeleted,
			EmployeeDeleted: result.EmployeeDeleted,
			Actor:           actor,
		})
		if err != nil {
			g.cfg.Log.Warn("Failed to publish release event", "source", source.Key(), "error", err)
		}
	}
	return result, nil
}

// participants returns the explicit employees plus the employees linked to
// the instructors, without duplicates. Unlinked instructors book nobody.
func (g *Guard) participants(ctx context.Context, c Commitment) ([]string, error) {
	out := append([]string{}, c.Employees...)
	for _, in := range sanitizer.NormalizeNames(c.Instructors) {
		if g.deps.Instructors == nil {
			break
		}
		e, err := g.deps.Instructors.EmployeeFor(ctx, in)
		if err != nil {
			return nil, apperrors.Internal("Failed to resolve instructor "+in, err)
		}
		out = append(out, e)
	}
	return sanitizer.NormalizeNames(out), nil
}

func validateCommitment(c Commitment) error {
	if sanitizer.NormalizeName(c.Source.Kind) == "" || sanitizer.NormalizeName(c.Source.Name) == "" {
		return apperrors.InvalidInput("Source kind and name are required")
	}
	if !interval.Valid(c.Start, c.End) {
		return apperrors.Validation("Commitment must end after it starts", map[string]any{
			"from_datetime": c.Start,
			"to_datetime":   c.End,
		})
	}
	return nil
}
