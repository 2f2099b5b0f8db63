package repository

import (
	"context"
	"resledger/pkg/model"
	"testing"
	"time"
)

type countingRepository struct {
	CatalogRepository
	instructorCalls int
	locationCalls   int
}

func (r *countingRepository) FindInstructor(ctx context.Context, id string) (*model.Instructor, error) {
	r.instructorCalls++
	return &model.Instructor{ID: id, Employee: "E-" + id}, nil
}

func (r *countingRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	r.locationCalls++
	return []model.Location{{ID: "R1", Bookable: true}}, nil
}

func (r *countingRepository) SaveLocation(ctx context.Context, loc *model.Location) error {
	return nil
}

func TestCached_MemoisesLookups(t *testing.T) {
	next := &countingRepository{}
	repo := NewCached(next, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in, err := repo.FindInstructor(ctx, "INS-1")
		if err != nil || in.Employee != "E-INS-1" {
			t.Fatalf("FindInstructor() = %+v, %v", in, err)
		}
		if _, err := repo.ListLocations(ctx); err != nil {
			t.Fatalf("ListLocations() error = %v", err)
		}
	}
	if next.instructorCalls != 1 || next.locationCalls != 1 {
		t.Errorf("expected one call each, got instructors=%d locations=%d", next.instructorCalls, next.locationCalls)
	}

	if err := repo.SaveLocation(ctx, &model.Location{ID: "R2"}); err != nil {
		t.Fatalf("SaveLocation() error = %v", err)
	}
	if _, err := repo.ListLocations(ctx); err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if next.locationCalls != 2 {
		t.Errorf("save should evict locations, calls=%d", next.locationCalls)
	}
}

func TestCached_ZeroTTLDisablesCache(t *testing.T) {
	next := &countingRepository{}
	if repo := NewCached(next, 0); repo != CatalogRepository(next) {
		t.Errorf("zero TTL should return the wrapped repository")
	}
}
