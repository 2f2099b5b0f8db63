package repository

import (
	"context"
	"resledger/pkg/model"
	"time"

	"github.com/patrickmn/go-cache"
)

const locationsKey = "locations"

type cachedCatalogRepository struct {
	CatalogRepository
	store *cache.Cache
}

// NewCached keeps instructor and location lookups for ttl. Groupings are always
// read through, and saves evict the affected entries.
func NewCached(next CatalogRepository, ttl time.Duration) CatalogRepository {
	if ttl <= 0 {
		return next
	}
	return &cachedCatalogRepository{
		CatalogRepository: next,
		store:             cache.New(ttl, 2*ttl),
	}
}

func (r *cachedCatalogRepository) FindInstructor(ctx context.Context, id string) (*model.Instructor, error) {
	key := "instructor:" + id
	if v, ok := r.store.Get(key); ok {
		in := v.(model.Instructor)
		return &in, nil
	}

	in, err := r.CatalogRepository.FindInstructor(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store.SetDefault(key, *in)
	return in, nil
}

func (r *cachedCatalogRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	if v, ok := r.store.Get(locationsKey); ok {
		cached := v.([]model.Location)
		out := make([]model.Location, len(cached))
		copy(out, cached)
		return out, nil
	}

	locations, err := r.CatalogRepository.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	stored := make([]model.Location, len(locations))
	copy(stored, locations)
	r.store.SetDefault(locationsKey, stored)
	return locations, nil
}

func (r *cachedCatalogRepository) SaveInstructor(ctx context.Context, in *model.Instructor) error {
	r.store.Delete("instructor:" + in.ID)
	return r.CatalogRepository.SaveInstructor(ctx, in)
}

func (r *cachedCatalogRepository) SaveLocation(ctx context.Context, loc *model.Location) error {
	r.store.Delete(locationsKey)
	return r.CatalogRepository.SaveLocation(ctx, loc)
}
