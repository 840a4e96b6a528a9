// Package mongo creates the agenda collections with their JSON-schema
// validators and indexes. Running it again updates validators in place and
// leaves existing indexes alone.
package mongo

import (
	"context"
	"fmt"
	"sort"

	availabilityrepo "agenda/internal/availabilities/repository"
	bookingrepo "agenda/internal/bookings/repository"
	"agenda/internal/migrations/mongo/validators"
	mongostore "agenda/internal/storage/mongo"
	"agenda/pkg/lock"
	"agenda/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ownerKeys = bson.D{{Key: "owner.type", Value: 1}, {Key: "owner.id", Value: 1}}

func withOwner(keys ...bson.E) bson.D {
	return append(append(bson.D{}, ownerKeys...), keys...)
}

var (
	AvailabilitiesIndexes = []mongo.IndexModel{
		{Keys: withOwner(bson.E{Key: "start_date", Value: 1}, bson.E{Key: "start_time", Value: 1})},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: withOwner(bson.E{Key: "state", Value: 1}, bson.E{Key: "confirmed_time", Value: 1})},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "requested_times", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	OccurrencesIndexes = []mongo.IndexModel{
		{Keys: withOwner(bson.E{Key: "start", Value: 1}, bson.E{Key: "end", Value: 1})},
		{Keys: withOwner(bson.E{Key: "availability_ids", Value: 1})},
	}

	TimeSlotsIndexes = []mongo.IndexModel{
		{Keys: withOwner(bson.E{Key: "start", Value: 1}, bson.E{Key: "end", Value: 1})},
		{Keys: bson.D{{Key: "busy", Value: 1}, {Key: "end", Value: 1}}},
	}

	OwnerLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		availabilityrepo.CollectionName: {
			Indexes:   AvailabilitiesIndexes,
			Validator: validators.AvailabilityValidator,
		},
		bookingrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		mongostore.OccurrencesCollection: {
			Indexes:   OccurrencesIndexes,
			Validator: validators.OccurrenceValidator,
		},
		mongostore.TimeSlotsCollection: {
			Indexes:   TimeSlotsIndexes,
			Validator: validators.TimeSlotValidator,
		},
		lock.OwnerLocksCollection: {
			Indexes:   OwnerLocksIndexes,
			Validator: validators.OwnerLockValidator,
		},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	defs := collections()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully", "collections", len(names))
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

	log.Info("Collection exists, updating validator", "collection", name)
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
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", len(models))
	return nil
}
