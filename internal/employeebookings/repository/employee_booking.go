package repository

import (
	"context"
	"errors"
	"fmt"
	employeeerrors "resledger/internal/employeebookings/errors"
	"resledger/pkg/config"
	"resledger/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "EmployeeBookings"
)

// Lookup identifies the row an upsert targets. From and To are only matched
// when both are set.
type Lookup struct {
	Employee string
	Source   model.SourceRef
	From     *time.Time
	To       *time.Time
}

// OverlapFilter selects rows of one employee by the coarse range condition
// from < End AND to > Start.
type OverlapFilter struct {
	Employee      string
	Start         time.Time
	End           time.Time
	IncludeSoft   bool
	ExcludeSource *model.SourceRef
}

type EmployeeBookingRepository interface {
	Insert(ctx context.Context, booking *model.EmployeeBooking) error
	Update(ctx context.Context, id string, booking *model.EmployeeBooking) error
	FindOne(ctx context.Context, lookup Lookup) (*model.EmployeeBooking, error)
	FindOverlapping(ctx context.Context, filter OverlapFilter) ([]*model.EmployeeBooking, error)
	FindBySource(ctx context.Context, source model.SourceRef, employee string) ([]*model.EmployeeBooking, error)
	FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.EmployeeBooking, error)
	DeleteBySource(ctx context.Context, source model.SourceRef, employee string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type mongoEmployeeBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoEmployeeBookingRepository(cfg *config.Config) EmployeeBookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoEmployeeBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged with a no-op cancel function, as
// wrapping it would detach the operation from the transaction.
func (r *mongoEmployeeBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoEmployeeBookingRepository) Insert(ctx context.Context, booking *model.EmployeeBooking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.ID = ""
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", employeeerrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to create employee booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoEmployeeBookingRepository) Update(ctx context.Context, id string, booking *model.EmployeeBooking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", employeeerrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"from_datetime":       booking.From,
			"to_datetime":         booking.To,
			"booking_type":        booking.BookingType,
			"blocks_availability": booking.BlocksAvailability,
			"location":            booking.Location,
			"school":              booking.School,
			"academic_year":       booking.AcademicYear,
			"modified_by":         booking.ModifiedBy,
			"updated_at":          booking.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", employeeerrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to update employee booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return employeeerrors.ErrNotFound
	}
	return nil
}

func (r *mongoEmployeeBookingRepository) FindOne(ctx context.Context, lookup Lookup) (*model.EmployeeBooking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"employee":    lookup.Employee,
		"source_kind": lookup.Source.Kind,
		"source_name": lookup.Source.Name,
	}
	if lookup.From != nil && lookup.To != nil {
		filter["from_datetime"] = *lookup.From
		filter["to_datetime"] = *lookup.To
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "from_datetime", Value: 1}})

	var booking model.EmployeeBooking
	err := r.collection.FindOne(ctx, filter, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, employeeerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find employee booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoEmployeeBookingRepository) FindOverlapping(ctx context.Context, f OverlapFilter) ([]*model.EmployeeBooking, error) {
	filter := bson.M{
		"employee":      f.Employee,
		"from_datetime": bson.M{"$lt": f.End},
		"to_datetime":   bson.M{"$gt": f.Start},
	}
	if !f.IncludeSoft {
		filter["blocks_availability"] = true
	}
	if f.ExcludeSource != nil {
		filter["$nor"] = bson.A{bson.M{
			"source_kind": f.ExcludeSource.Kind,
			"source_name": f.ExcludeSource.Name,
		}}
	}
	return r.find(ctx, filter)
}

func (r *mongoEmployeeBookingRepository) FindBySource(ctx context.Context, source model.SourceRef, employee string) ([]*model.EmployeeBooking, error) {
	return r.find(ctx, sourceFilter(source, employee))
}

func (r *mongoEmployeeBookingRepository) FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.EmployeeBooking, error) {
	filter := sourceFilter(source, "")
	filter["from_datetime"] = bson.M{"$gte": start}
	filter["to_datetime"] = bson.M{"$lte": end}
	return r.find(ctx, filter)
}

func (r *mongoEmployeeBookingRepository) DeleteBySource(ctx context.Context, source model.SourceRef, employee string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, sourceFilter(source, employee))
	if err != nil {
		return 0, fmt.Errorf("failed to delete employee bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoEmployeeBookingRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", employeeerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete employee bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoEmployeeBookingRepository) find(ctx context.Context, filter bson.M) ([]*model.EmployeeBooking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "from_datetime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find employee bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.EmployeeBooking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode employee bookings: %w", err)
	}
	return bookings, nil
}

func sourceFilter(source model.SourceRef, employee string) bson.M {
	filter := bson.M{
		"source_kind": source.Kind,
		"source_name": source.Name,
	}
	if employee != "" {
		filter["employee"] = employee
	}
	return filter
}
