package service

import (
	"context"
	"errors"
	locationerrors "resledger/internal/locationbookings/errors"
	"resledger/internal/locationbookings/repository"
	"resledger/internal/locationbookings/validator"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/interval"
	"resledger/pkg/model"
	"resledger/pkg/sanitizer"
	"time"
)

// LocationTreeProvider supplies the current location hierarchy.
type LocationTreeProvider interface {
	LocationTree(ctx context.Context) (*interval.Tree, error)
}

type ConflictQuery struct {
	Location        string
	Start           time.Time
	End             time.Time
	IncludeChildren bool
	ExcludeSource   *model.SourceRef
}

type UpsertRequest struct {
	Location      string
	Start         time.Time
	End           time.Time
	OccupancyType string
	Source        model.SourceRef
	SlotKey       string
	School        string
	AcademicYear  string
	Actor         string
}

type UpsertResult struct {
	ID      string
	Created bool
}

type LocationBookingService interface {
	FindConflicts(ctx context.Context, q ConflictQuery) ([]*model.LocationBooking, error)
	IsFree(ctx context.Context, q ConflictQuery) (bool, error)
	AssertFree(ctx context.Context, q ConflictQuery, allowDoubleBooking bool) error
	Upsert(ctx context.Context, req UpsertRequest) (string, error)
	UpsertDetailed(ctx context.Context, req UpsertRequest) (UpsertResult, error)
	DeleteForSource(ctx context.Context, source model.SourceRef) (int64, error)
	DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keepSlotKeys []string) (int64, error)
	ListForSource(ctx context.Context, source model.SourceRef) ([]*model.LocationBooking, error)
	ListForLocation(ctx context.Context, location string, start, end time.Time, includeChildren bool) ([]*model.LocationBooking, error)
}

type locationBookingService struct {
	repo      repository.LocationBookingRepository
	validator *validator.LocationBookingValidator
	tree      LocationTreeProvider
	cfg       *config.Config
	now       func() time.Time
}

// NewLocationBookingService builds the ledger service. A nil tree treats every
// location as a standalone node.
func NewLocationBookingService(
	repo repository.LocationBookingRepository,
	validator *validator.LocationBookingValidator,
	tree LocationTreeProvider,
	cfg *config.Config,
) LocationBookingService {
	return &locationBookingService{
		repo:      repo,
		validator: validator,
		tree:      tree,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *locationBookingService) FindConflicts(ctx context.Context, q ConflictQuery) ([]*model.LocationBooking, error) {
	location := sanitizer.NormalizeName(q.Location)
	if location == "" {
		return nil, apperrors.InvalidInput("Location cannot be empty")
	}
	start, end := normalizeTime(q.Start), normalizeTime(q.End)
	if !interval.Valid(start, end) {
		return nil, nil
	}

	var tree *interval.Tree
	if s.tree != nil {
		t, err := s.tree.LocationTree(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to load location tree", "location", location, "error", err)
			return nil, apperrors.Internal("Failed to load location tree", err)
		}
		tree = t
	}
	scope := interval.ConflictScope(tree, location, q.IncludeChildren)

	candidates, err := s.repo.FindOverlapping(ctx, repository.OverlapFilter{
		Locations:     scope,
		Start:         start,
		End:           end,
		ExcludeSource: q.ExcludeSource,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to query location bookings",
			"location", location,
			"scope", scope,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to query location bookings", err)
	}

	inScope := make(map[string]struct{}, len(scope))
	for _, l := range scope {
		inScope[l] = struct{}{}
	}

	conflicts := make([]*model.LocationBooking, 0, len(candidates))
	for _, b := range candidates {
		if _, ok := inScope[b.Location]; !ok {
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

func (s *locationBookingService) IsFree(ctx context.Context, q ConflictQuery) (bool, error) {
	conflicts, err := s.FindConflicts(ctx, q)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

func (s *locationBookingService) AssertFree(ctx context.Context, q ConflictQuery, allowDoubleBooking bool) error {
	if allowDoubleBooking {
		return nil
	}

	conflicts, err := s.FindConflicts(ctx, q)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}

	requested := sanitizer.NormalizeName(q.Location)
	out := make([]model.Conflict, 0, len(conflicts))
	for _, b := range conflicts {
		out = append(out, model.LocationConflict(requested, b))
	}
	s.cfg.Log.Info("Location scheduling conflict detected",
		"location", requested,
		"from", q.Start,
		"to", q.End,
		"conflicts", len(out),
	)
	return apperrors.SchedulingConflict(out)
}

func (s *locationBookingService) Upsert(ctx context.Context, req UpsertRequest) (string, error) {
	result, err := s.UpsertDetailed(ctx, req)
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *locationBookingService) UpsertDetailed(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	start, end := normalizeTime(req.Start), normalizeTime(req.End)
	if !interval.Valid(start, end) {
		s.cfg.Log.Warn("Location booking upsert rejected", "slot_key", req.SlotKey, "error", locationerrors.ErrInvalidTimeRange)
		return UpsertResult{}, apperrors.Validation(locationerrors.ErrInvalidTimeRange.Error(), map[string]any{
			"from_datetime": start,
			"to_datetime":   end,
		})
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	booking := &model.LocationBooking{
		Location:      sanitizer.NormalizeName(req.Location),
		From:          start,
		To:            end,
		OccupancyType: req.OccupancyType,
		Source:        model.NewSourceRef(req.Source.Kind, req.Source.Name),
		SlotKey:       req.SlotKey,
		School:        req.School,
		AcademicYear:  req.AcademicYear,
		CreatedBy:     req.Actor,
		ModifiedBy:    req.Actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Location booking validation failed", "slot_key", booking.SlotKey, "error", err)
		return UpsertResult{}, apperrors.Validation("Location booking validation failed", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindBySlotKey(ctx, booking.SlotKey)
	switch {
	case err == nil:
		return s.update(ctx, existing, booking)
	case !errors.Is(err, locationerrors.ErrNotFound):
		s.cfg.Log.Error("Failed to look up location booking", "slot_key", booking.SlotKey, "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to look up location booking", err)
	}

	err = s.repo.Insert(ctx, booking)
	if err == nil {
		s.cfg.Log.Debug("Location booking created",
			"id", booking.ID,
			"location", booking.Location,
			"slot_key", booking.SlotKey,
		)
		return UpsertResult{ID: booking.ID, Created: true}, nil
	}
	if !errors.Is(err, locationerrors.ErrDuplicateKey) {
		s.cfg.Log.Error("Failed to create location booking", "slot_key", booking.SlotKey, "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to create location booking", err)
	}

	s.cfg.Log.Debug("Location booking insert raced, updating existing row", "slot_key", booking.SlotKey)
	existing, err = s.repo.FindBySlotKey(ctx, booking.SlotKey)
	if err != nil {
		return UpsertResult{}, apperrors.Internal("Failed to recover from concurrent location booking insert", err)
	}
	return s.update(ctx, existing, booking)
}

// update rewrites existing with booking. A row that already matches is left
// untouched, so its audit fields keep their values.
func (s *locationBookingService) update(ctx context.Context, existing, booking *model.LocationBooking) (UpsertResult, error) {
	id := existing.ID
	if existing.SameBooking(booking) {
		*booking = *existing
		return UpsertResult{ID: id}, nil
	}
	if err := s.repo.Update(ctx, id, booking); err != nil {
		s.cfg.Log.Error("Failed to update location booking", "id", id, "error", err)
		return UpsertResult{}, apperrors.Internal("Failed to update location booking", err)
	}
	booking.ID = id
	return UpsertResult{ID: id}, nil
}

func (s *locationBookingService) DeleteForSource(ctx context.Context, source model.SourceRef) (int64, error) {
	if source.Kind == "" || source.Name == "" {
		return 0, apperrors.InvalidInput("Source kind and name are required")
	}

	deleted, err := s.repo.DeleteBySource(ctx, source)
	if err != nil {
		s.cfg.Log.Error("Failed to delete location bookings", "source", source.Key(), "error", err)
		return 0, apperrors.Internal("Failed to delete location bookings", err)
	}

	s.cfg.Log.Info("Location bookings deleted for source",
		"source", source.Key(),
		"deleted", deleted,
	)
	return deleted, nil
}

func (s *locationBookingService) DeleteForSourceInWindow(ctx context.Context, source model.SourceRef, start, end time.Time, keepSlotKeys []string) (int64, error) {
	if source.Kind == "" || source.Name == "" {
		return 0, apperrors.InvalidInput("Source kind and name are required")
	}
	start, end = normalizeTime(start), normalizeTime(end)
	if !interval.Valid(start, end) {
		return 0, nil
	}

	rows, err := s.repo.FindBySourceWithin(ctx, source, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to list location bookings for cleanup", "source", source.Key(), "error", err)
		return 0, apperrors.Internal("Failed to list location bookings", err)
	}

	keep := make(map[string]struct{}, len(keepSlotKeys))
	for _, k := range keepSlotKeys {
		keep[k] = struct{}{}
	}

	var stale []string
	for _, b := range rows {
		if !interval.Within(b.From, b.To, start, end) {
			continue
		}
		if _, ok := keep[b.SlotKey]; ok {
			continue
		}
		stale = append(stale, b.ID)
	}

	deleted, err := s.repo.DeleteByIDs(ctx, stale)
	if err != nil {
		s.cfg.Log.Error("Failed to delete stale location bookings", "source", source.Key(), "error", err)
		return 0, apperrors.Internal("Failed to delete stale location bookings", err)
	}
	return deleted, nil
}

func (s *locationBookingService) ListForSource(ctx context.Context, source model.SourceRef) ([]*model.LocationBooking, error) {
	bookings, err := s.repo.FindBySource(ctx, source)
	if err != nil {
		return nil, apperrors.Internal("Failed to list location bookings", err)
	}
	return bookings, nil
}

func (s *locationBookingService) ListForLocation(ctx context.Context, location string, start, end time.Time, includeChildren bool) ([]*model.LocationBooking, error) {
	return s.FindConflicts(ctx, ConflictQuery{
		Location:        location,
		Start:           start,
		End:             end,
		IncludeChildren: includeChildren,
	})
}

// normalizeTime stores instants in UTC at second precision.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
