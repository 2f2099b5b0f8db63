package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"resledger/internal/migrations/mongo/validators"
	"resledger/pkg/logger"
)

var (
	EmployeeBookingsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "employee", Value: 1},
				{Key: "source_kind", Value: 1},
				{Key: "source_name", Value: 1},
				{Key: "from_datetime", Value: 1},
				{Key: "to_datetime", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("ux_employee_booking_slot"),
		},
		{Keys: bson.D{{Key: "employee", Value: 1}, {Key: "from_datetime", Value: 1}}},
		{Keys: bson.D{{Key: "source_kind", Value: 1}, {Key: "source_name", Value: 1}}},
	}

	LocationBookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slot_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_location_booking_slot_key"),
		},
		{Keys: bson.D{{Key: "location", Value: 1}, {Key: "from_datetime", Value: 1}}},
		{Keys: bson.D{{Key: "source_kind", Value: 1}, {Key: "source_name", Value: 1}}},
	}

	GroupingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "school", Value: 1},
			{Key: "academic_year", Value: 1},
			{Key: "status", Value: 1},
		}},
	}

	InstructorsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "employee", Value: 1}}},
	}

	LocationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "parent_id", Value: 1}}},
	}
)

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() []collectionDef {
	return []collectionDef{
		{Name: "EmployeeBookings", Indexes: EmployeeBookingsIndexes, Validator: validators.EmployeeBookingValidator},
		{Name: "LocationBookings", Indexes: LocationBookingsIndexes, Validator: validators.LocationBookingValidator},
		{Name: "Groupings", Indexes: GroupingsIndexes, Validator: validators.GroupingValidator},
		{Name: "Instructors", Indexes: InstructorsIndexes, Validator: validators.InstructorValidator},
		{Name: "Locations", Indexes: LocationsIndexes, Validator: validators.LocationValidator},
	}
}

// RunMigration creates the ledger and catalog collections with their
// validators and indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for _, def := range collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
