package service

import (
	"context"
	"errors"
	employeeerrors "resledger/internal/employeebookings/errors"
	"resledger/internal/employeebookings/repository"
	"resledger/internal/employeebookings/validator"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/interval"
	"resledger/pkg/model"
	"resledger/pkg/sanitizer"
	"time"
)

type ConflictQuery struct {
	Employee      string
	Start         time.Time
	End           time.Time
	IncludeSoft   bool
	ExcludeSource *model.SourceRef
}

// UpsertRequest describes the desired state of one employee booking. A window
// with End <= Start asks for this source's bookings of Employee to be removed.
type UpsertRequest struct {
	Employee           string
	Start              time.Time
	End                time.Time
	Source             model.SourceRef
	BookingType        string
	BlocksAvailability *bool
	Location           string
	School             string
	AcademicYear       string
	// UniqueBySlot keys the row by (employee, source, from, to) instead of
	// (employee, source). Sources that produce many windows must set it.
	UniqueBySlot bool
	Actor        string
}

type UpsertResult struct {
	ID      string
	Created bool
	Deleted int64
}

type EmployeeBookingService interface {
	FindConflicts(ctx context.Context, q ConflictQuery) ([]*model.EmployeeBooking, error)
	IsFree(ctx context.Context, employee string, start, end time.Time, exclude *model.SourceRef) (bool, error)
	AssertFree(ctx context.Context, employee string, start, end time.Time, exclude *model.SourceRef, allowDoubleBooking bool) error
	Upsert(ctx context.Context, req UpsertRequest) (string, error)
	UpsertDetailed(ctx context.Context, req UpsertRequest) (UpsertResult, error)
	DeleteForSource(ctx context.Context, source model.SourceRef, employee string) (int64, error)
	DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keep []model.EmployeeSlot) (int64, error)
	ListForSource(ctx context.Context, source model.SourceRef) ([]*model.EmployeeBooking, error)
	ListForEmployee(ctx context.Context, employee string, start, end time.Time) ([]*model.EmployeeBooking, error)
}

type employeeBookingService struct {
	repo      repository.EmployeeBookingRepository
	validator *validator.EmployeeBookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewEmployeeBookingService(
	repo repository.EmployeeBookingRepository,
	validator *validator.EmployeeBookingValidator,
	cfg *config.Config,
) EmployeeBookingService {
	return &employeeBookingService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *employeeBookingService) FindConflicts(ctx context.Context, q ConflictQuery) ([]*model.EmployeeBooking, error) {
	employee := sanitizer.NormalizeName(q.Employee)
	if employee == "" {
		return nil, apperrors.InvalidInput("Employee cannot be empty")
	}
	start, end := normalizeTime(q.Start), normalizeTime(q.End)
	if !interval.Valid(start, end) {
		return nil, nil
	}

	candidates, err := s.repo.FindOverlapping(ctx, repository.OverlapFilter{
		Employee:      employee,
		Start:         start,
		End:           end,
		IncludeSoft:   q.IncludeSoft,
		ExcludeSource: q.ExcludeSource,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to query employee bookings",
			"employee", employee,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to query employee bookings", err)
	}

	conflicts := make([]*model.EmployeeBooking, 0, len(candidates))
	for _, b := range candidates {
		if !q.IncludeSoft && !b.BlocksAvailability {
			continue
		}
		if q.ExcludeSource != nil && b.Source == *q.ExcludeSource {
			continue
		}
		if interval.Overlaps(b.From, b.To, start, end) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func (s *employeeBookingService) IsFree(ctx context.Context, employee string, start, end time.Time, exclude *model.SourceRef) (bool, error) {
	conflicts, err := s.FindConflicts(ctx, ConflictQuery{
		Employee:      employee,
		Start:         start,
		End:           end,
		ExcludeSource: exclude,
	})
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

func (s *employeeBookingService) AssertFree(ctx context.Context, employee string, start, end time.Time, exclude *model.SourceRef, allowDoubleBooking bool) error {
	if allowDoubleBooking {
		return nil
	}

	conflicts, err := s.FindConflicts(ctx, ConflictQuery{
		Employee:      employee,
		Start:         start,
		End:           end,
		ExcludeSource: exclude,
	})
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}

	out := make([]model.Conflict, 0, len(conflicts))
	for _, b := range conflicts {
		out = append(out, model.EmployeeConflict(b))
	}
	s.cfg.Log.Info("Employee scheduling conflict detected",
		"employee", employee,
		"from", start,
		"to", end,
		"conflicts", len(out),
	)
	return apperrors.SchedulingConflict(out)
}

func (s *employeeBookingService) Upsert(ctx context.Context, req UpsertRequest) (string, error) {
	result, err := s.UpsertDetailed(ctx, req)
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *employeeBookingService) UpsertDetailed(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	req.Employee = sanitizer.NormalizeName(req.Employee)
	req.Source = model.NewSourceRef(req.Source.Kind, req.Source.Name)
	if req.Employee == "" || req.Source.Kind == "" || req.Source.Name == "" {
		s.cfg.Log.Warn("Employee booking upsert rejected", "employee", req.Employee, "source", req.Source.Key())
		return UpsertResult{}, apperrors.Validation("Employee and source are required", map[string]any{
			"employee": req.Employee,
			"source":   req.Source,
		})
	}

	start, end := normalizeTime(req.Start), normalizeTime(req.End)
	if !interval.Valid(start, end) {
		deleted, err := s.repo.DeleteBySource(ctx, req.Source, req.Employee)
		if err != nil {
			s.cfg.Log.Error("Failed to clear employee booking", "employee", req.Employee, "source", req.Source.Key(), "error", err)
			return UpsertResult{}, apperrors.Internal("Failed to clear employee booking", err)
		}
		if deleted > 0 {
			s.cfg.Log.Info("Employee booking cleared by empty window",
				"employee", req.Employee,
				"source", req.Source.Key(),
				"deleted", deleted,
			)
		}
		return UpsertResult{Deleted: deleted}, nil
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	booking := &model.EmployeeBooking{
		Employee:           req.Employee,
		From:               start,
		To:                 end,
		Source:             req.Source,
		BookingType:        req.BookingType,
		BlocksAvailability: req.BlocksAvailability == nil || *req.BlocksAvailability,
		Location:           sanitizer.NormalizeName(req.Location),
		School:             req.School,
		AcademicYear:       req.AcademicYear,
		CreatedBy:          req.Actor,
		ModifiedBy:         req.Actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.validate(booking); err != nil {
		return UpsertResult{}, err
	}

	lookup := repository.Lookup{Employee: booking.Employee, Source: booking.Source}
	if req.UniqueBySlot {
		lookup.From, lookup.To = &booking.From, &booking.To
	}

	existing, err := s.repo.FindOne(ctx, lookup)
	switch {
	case err == nil:
		return s.update(ctx, existing, booking)
	case !errors.Is(err, employeeerrors.ErrNotFound):
		s.cfg.Log.Error("Failed to look up employee booking", "employee", booking.Employee, "source", booking.Source.Key(), "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to look up employee booking", err)
	}

	err = s.repo.Insert(ctx, booking)
	if err == nil {
		s.cfg.Log.Debug("Employee booking created",
			"id", booking.ID,
			"employee", booking.Employee,
			"source", booking.Source.Key(),
			"from", booking.From,
			"to", booking.To,
		)
		return UpsertResult{ID: booking.ID, Created: true}, nil
	}
	if !errors.Is(err, employeeerrors.ErrDuplicateKey) {
		s.cfg.Log.Error("Failed to create employee booking", "employee", booking.Employee, "source", booking.Source.Key(), "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to create employee booking", err)
	}

	// Another writer inserted the same slot first: update that row once.
	s.cfg.Log.Debug("Employee booking insert raced, updating existing row",
		"employee", booking.Employee,
		"source", booking.Source.Key(),
	)
	existing, err = s.repo.FindOne(ctx, repository.Lookup{
		Employee: booking.Employee,
		Source:   booking.Source,
		From:     &booking.From,
		To:       &booking.To,
	})
	if err != nil {
		return UpsertResult{}, apperrors.Internal("Failed to recover from concurrent employee booking insert", err)
	}
	return s.update(ctx, existing, booking)
}

// update rewrites existing with booking. A row that already matches is left
// untouched, so its audit fields keep their values.
func (s *employeeBookingService) update(ctx context.Context, existing, booking *model.EmployeeBooking) (UpsertResult, error) {
	id := existing.ID
	if existing.SameBooking(booking) {
		*booking = *existing
		return UpsertResult{ID: id}, nil
	}
	if err := s.repo.Update(ctx, id, booking); err != nil {
		s.cfg.Log.Error("Failed to update employee booking", "id", id, "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to update employee booking", err)
	}
	booking.ID = id
	return UpsertResult{ID: id}, nil
}

func (s *employeeBookingService) DeleteForSource(ctx context.Context, source model.SourceRef, employee string) (int64, error) {
	if source.Kind == "" || source.Name == "" {
		return 0, apperrors.InvalidInput("Source kind and name are required")
	}

	deleted, err := s.repo.DeleteBySource(ctx, source, sanitizer.NormalizeName(employee))
	if err != nil {
		s.cfg.Log.Error("Failed to delete employee bookings", "source", source.Key(), "employee", employee, "error", err)
		return 0, apperrors.Internal("Failed to delete employee bookings", err)
	}

	s.cfg.Log.Info("Employee bookings deleted for source",
		"source", source.Key(),
		"employee", employee,
		"deleted", deleted,
	)
	return deleted, nil
}

func (s *employeeBookingService) DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keep []model.EmployeeSlot) (int64, error) {
	if source.Kind == "" || source.Name == "" {
		return 0, apperrors.InvalidInput("Source kind and name are required")
	}
	start, end = normalizeTime(start), normalizeTime(end)
	if !interval.Valid(start, end) {
		return 0, nil
	}

	rows, err := s.repo.FindBySourceWithin(ctx, source, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to list employee bookings for cleanup", "source", source.Key(), "error", err)
		return 0, apperrors.Internal("Failed to list employee bookings", err)
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		k.From, k.To = normalizeTime(k.From), normalizeTime(k.To)
		keepSet[k.Key()] = struct{}{}
	}

	var stale []string
	for _, b := range rows {
		if !interval.Within(b.From, b.To, start, end) {
			continue
		}
		slot := model.EmployeeSlot{Employee: b.Employee, From: b.From, To: b.To}
		if _, ok := keepSet[slot.Key()]; ok {
			continue
		}
		stale = append(stale, b.ID)
	}

	deleted, err := s.repo.DeleteByIDs(ctx, stale)
	if err != nil {
		s.cfg.Log.Error("Failed to delete stale employee bookings", "source", source.Key(), "error", err)
		return 0, apperrors.Internal("Failed to delete stale employee bookings", err)
	}
	return deleted, nil
}

func (s *employeeBookingService) ListForSource(ctx context.Context, source model.SourceRef) ([]*model.EmployeeBooking, error) {
	bookings, err := s.repo.FindBySource(ctx, source, "")
	if err != nil {
		return nil, apperrors.Internal("Failed to list employee bookings", err)
	}
	return bookings, nil
}

func (s *employeeBookingService) ListForEmployee(ctx context.Context, employee string, start, end time.Time) ([]*model.EmployeeBooking, error) {
	return s.FindConflicts(ctx, ConflictQuery{
		Employee:    employee,
		Start:       start,
		End:         end,
		IncludeSoft: true,
	})
}

func (s *employeeBookingService) validate(booking *model.EmployeeBooking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Employee booking validation failed", "employee", booking.Employee, "error", err)
		return apperrors.Validation("Employee booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// normalizeTime stores instants in UTC at second precision so that equality
// lookups by window match across stores.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
