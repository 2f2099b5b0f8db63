package repository

import (
	"context"
	"errors"
	"fmt"
	catalogerrors "resledger/internal/catalog/errors"
	"resledger/pkg/config"
	"resledger/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	GroupingsCollection   = "Groupings"
	InstructorsCollection = "Instructors"
	LocationsCollection   = "Locations"
)

// CatalogRepository reads and maintains the records the ledgers are
// materialized from: groupings with their schedule rows, instructors and the
// location hierarchy.
type CatalogRepository interface {
	FindGrouping(ctx context.Context, id string) (*model.Grouping, error)
	ListGroupingIDs(ctx context.Context, filter model.GroupingFilter) ([]string, error)
	FindInstructor(ctx context.Context, id string) (*model.Instructor, error)
	ListLocations(ctx context.Context) ([]model.Location, error)

	SaveGrouping(ctx context.Context, g *model.Grouping) error
	SaveInstructor(ctx context.Context, in *model.Instructor) error
	SaveLocation(ctx context.Context, loc *model.Location) error
}

type mongoCatalogRepository struct {
	cfg         *config.Config
	db          *mongo.Database
	groupings   *mongo.Collection
	instructors *mongo.Collection
	locations   *mongo.Collection
}

func NewMongoCatalogRepository(cfg *config.Config) CatalogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCatalogRepository{
		cfg:         cfg,
		db:          db,
		groupings:   db.Collection(GroupingsCollection),
		instructors: db.Collection(InstructorsCollection),
		locations:   db.Collection(LocationsCollection),
	}
}

func (r *mongoCatalogRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoCatalogRepository) FindGrouping(ctx context.Context, id string) (*model.Grouping, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var g model.Grouping
	if err := r.groupings.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrGroupingNotFound
		}
		return nil, fmt.Errorf("failed to find grouping: %w", err)
	}
	return &g, nil
}

func (r *mongoCatalogRepository) ListGroupingIDs(ctx context.Context, f model.GroupingFilter) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if f.School != "" {
		filter["school"] = f.School
	}
	if f.AcademicYear != "" {
		filter["academic_year"] = f.AcademicYear
	}
	if f.ActiveOnly {
		filter["status"] = model.GroupingActive
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.groupings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list groupings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode groupings: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *mongoCatalogRepository) FindInstructor(ctx context.Context, id string) (*model.Instructor, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var in model.Instructor
	if err := r.instructors.FindOne(ctx, bson.M{"_id": id}).Decode(&in); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrInstructorNotFound
		}
		return nil, fmt.Errorf("failed to find instructor: %w", err)
	}
	return &in, nil
}

func (r *mongoCatalogRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.locations.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []model.Location
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}
	return locations, nil
}

func (r *mongoCatalogRepository) SaveGrouping(ctx context.Context, g *model.Grouping) error {
	if g.ID == "" {
		return catalogerrors.ErrInvalidGrouping
	}
	return r.replace(ctx, r.groupings, g.ID, g)
}

func (r *mongoCatalogRepository) SaveInstructor(ctx context.Context, in *model.Instructor) error {
	return r.replace(ctx, r.instructors, in.ID, in)
}

func (r *mongoCatalogRepository) SaveLocation(ctx context.Context, loc *model.Location) error {
	return r.replace(ctx, r.locations, loc.ID, loc)
}

func (r *mongoCatalogRepository) replace(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s %q: %w", coll.Name(), id, err)
	}
	return nil
}
