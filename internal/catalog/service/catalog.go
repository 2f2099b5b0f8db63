// Package service adapts the catalog store to the collaborator contracts of
// the reconciler and the location ledger.
package service

import (
	"context"
	"errors"
	catalogerrors "resledger/internal/catalog/errors"
	"resledger/internal/catalog/repository"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/interval"
	"resledger/pkg/model"
)

type Catalog struct {
	repo repository.CatalogRepository
	cfg  *config.Config
}

func NewCatalog(repo repository.CatalogRepository, cfg *config.Config) *Catalog {
	return &Catalog{repo: repo, cfg: cfg}
}

// Grouping returns the grouping with its schedule rows. A missing grouping is
// a NotFound AppError.
func (c *Catalog) Grouping(ctx context.Context, id string) (*model.Grouping, error) {
	g, err := c.repo.FindGrouping(ctx, id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrGroupingNotFound) {
			return nil, apperrors.NotFoundWithID("Grouping", id)
		}
		c.cfg.Log.Error("Failed to load grouping", "grouping_id", id, "error", err)
		return nil, apperrors.Internal("Failed to load grouping", err)
	}
	return g, nil
}

func (c *Catalog) ListGroupings(ctx context.Context, filter model.GroupingFilter) ([]string, error) {
	ids, err := c.repo.ListGroupingIDs(ctx, filter)
	if err != nil {
		c.cfg.Log.Error("Failed to list groupings", "school", filter.School, "academic_year", filter.AcademicYear, "error", err)
		return nil, apperrors.Internal("Failed to list groupings", err)
	}
	return ids, nil
}

// EmployeeFor resolves an instructor to its employee. Unknown instructors and
// instructors without a linked employee resolve to "".
func (c *Catalog) EmployeeFor(ctx context.Context, instructor string) (string, error) {
	if instructor == "" {
		return "", nil
	}
	in, err := c.repo.FindInstructor(ctx, instructor)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrInstructorNotFound) {
			return "", nil
		}
		return "", apperrors.Internal("Failed to resolve instructor", err)
	}
	return in.Employee, nil
}

// IsBookable reports whether location exists and accepts bookings.
func (c *Catalog) IsBookable(ctx context.Context, location string) (bool, error) {
	if location == "" {
		return false, nil
	}
	locations, err := c.repo.ListLocations(ctx)
	if err != nil {
		return false, apperrors.Internal("Failed to load locations", err)
	}
	for _, loc := range locations {
		if loc.ID == location {
			return loc.Bookable, nil
		}
	}
	return false, nil
}

func (c *Catalog) LocationTree(ctx context.Context) (*interval.Tree, error) {
	locations, err := c.repo.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	return interval.NewTree(locations), nil
}
