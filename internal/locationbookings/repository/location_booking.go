package repository

import (
	"context"
	"errors"
	"fmt"
	locationerrors "resledger/internal/locationbookings/errors"
	"resledger/pkg/config"
	"resledger/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "LocationBookings"
)

// OverlapFilter selects rows on any of Locations by the coarse range condition
// from < End AND to > Start.
type OverlapFilter struct {
	Locations     []string
	Start         time.Time
	End           time.Time
	ExcludeSource *model.SourceRef
}

type LocationBookingRepository interface {
	Insert(ctx context.Context, booking *model.LocationBooking) error
	Update(ctx context.Context, id string, booking *model.LocationBooking) error
	FindBySlotKey(ctx context.Context, slotKey string) (*model.LocationBooking, error)
	FindOverlapping(ctx context.Context, filter OverlapFilter) ([]*model.LocationBooking, error)
	FindBySource(ctx context.Context, source model.SourceRef) ([]*model.LocationBooking, error)
	FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.LocationBooking, error)
	DeleteBySource(ctx context.Context, source model.SourceRef) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type mongoLocationBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoLocationBookingRepository(cfg *config.Config) LocationBookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLocationBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoLocationBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoLocationBookingRepository) Insert(ctx context.Context, booking *model.LocationBooking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.ID = ""
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", locationerrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to create location booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLocationBookingRepository) Update(ctx context.Context, id string, booking *model.LocationBooking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", locationerrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"location":       booking.Location,
			"from_datetime":  booking.From,
			"to_datetime":    booking.To,
			"occupancy_type": booking.OccupancyType,
			"source_kind":    booking.Source.Kind,
			"source_name":    booking.Source.Name,
			"school":         booking.School,
			"academic_year":  booking.AcademicYear,
			"modified_by":    booking.ModifiedBy,
			"updated_at":     booking.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update location booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return locationerrors.ErrNotFound
	}
	return nil
}

func (r *mongoLocationBookingRepository) FindBySlotKey(ctx context.Context, slotKey string) (*model.LocationBooking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.LocationBooking
	err := r.collection.FindOne(ctx, bson.M{"slot_key": slotKey}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, locationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find location booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoLocationBookingRepository) FindOverlapping(ctx context.Context, f OverlapFilter) ([]*model.LocationBooking, error) {
	if len(f.Locations) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"location":      bson.M{"$in": f.Locations},
		"from_datetime": bson.M{"$lt": f.End},
		"to_datetime":   bson.M{"$gt": f.Start},
	}
	if f.ExcludeSource != nil {
		filter["$nor"] = bson.A{bson.M{
			"source_kind": f.ExcludeSource.Kind,
			"source_name": f.ExcludeSource.Name,
		}}
	}
	return r.find(ctx, filter)
}

func (r *mongoLocationBookingRepository) FindBySource(ctx context.Context, source model.SourceRef) ([]*model.LocationBooking, error) {
	return r.find(ctx, bson.M{"source_kind": source.Kind, "source_name": source.Name})
}

func (r *mongoLocationBookingRepository) FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.LocationBooking, error) {
	return r.find(ctx, bson.M{
		"source_kind":   source.Kind,
		"source_name":   source.Name,
		"from_datetime": bson.M{"$gte": start},
		"to_datetime":   bson.M{"$lte": end},
	})
}

func (r *mongoLocationBookingRepository) DeleteBySource(ctx context.Context, source model.SourceRef) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"source_kind": source.Kind, "source_name": source.Name})
	if err != nil {
		return 0, fmt.Errorf("failed to delete location bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoLocationBookingRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", locationerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete location bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoLocationBookingRepository) find(ctx context.Context, filter bson.M) ([]*model.LocationBooking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "from_datetime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find location bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.LocationBooking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode location bookings: %w", err)
	}
	return bookings, nil
}
