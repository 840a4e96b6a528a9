// Package mongo stores occurrences and time slots in MongoDB and serves
// them, together with the availability repository, to the schedule engine.
package mongo

import (
	"context"
	"fmt"
	"time"

	"agenda/internal/availabilities/repository"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	OccurrencesCollection = "Availability_occurrences"
	TimeSlotsCollection   = "Time_slots"
)

type Store struct {
	cfg            *config.Config
	availabilities repository.AvailabilityRepository
	occurrences    *mongo.Collection
	slots          *mongo.Collection
	tx             *mongotx.Transactor
}

func NewStore(cfg *config.Config, availabilities repository.AvailabilityRepository) *Store {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &Store{
		cfg:            cfg,
		availabilities: availabilities,
		occurrences:    db.Collection(OccurrencesCollection),
		slots:          db.Collection(TimeSlotsCollection),
		tx:             mongotx.NewTransactor(cfg.Client.Mongo),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

func (s *Store) ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	return s.availabilities.ListAvailabilities(ctx, owner)
}

// spanFilter matches owner's records that overlap or touch span.
func spanFilter(owner model.OwnerRef, span timespan.TimeSpan) bson.M {
	return bson.M{
		"owner.type": owner.Type,
		"owner.id":   owner.ID,
		"start":      bson.M{"$lte": span.End},
		"end":        bson.M{"$gte": span.Start},
	}
}

var byStart = options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})

func (s *Store) ListOccurrences(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.AvailabilityOccurrence, error) {
	return s.findOccurrences(ctx, spanFilter(owner, span))
}

func (s *Store) ListOccurrencesByAvailability(ctx context.Context, owner model.OwnerRef, availabilityID string) ([]model.AvailabilityOccurrence, error) {
	return s.findOccurrences(ctx, bson.M{
		"owner.type":       owner.Type,
		"owner.id":         owner.ID,
		"availability_ids": availabilityID,
	})
}

func (s *Store) findOccurrences(ctx context.Context, filter bson.M) ([]model.AvailabilityOccurrence, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	cursor, err := s.occurrences.Find(ctx, filter, byStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer cursor.Close(ctx)

	var occurrences []model.AvailabilityOccurrence
	if err = cursor.All(ctx, &occurrences); err != nil {
		return nil, fmt.Errorf("failed to decode occurrences: %w", err)
	}
	return occurrences, nil
}

func (s *Store) InsertOccurrences(ctx context.Context, occurrences []model.AvailabilityOccurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, len(occurrences))
	for i := range occurrences {
		docs[i] = occurrences[i]
	}
	if _, err := s.occurrences.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert occurrences: %w", err)
	}
	return nil
}

func (s *Store) DeleteOccurrences(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if _, err := s.occurrences.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete occurrences: %w", err)
	}
	return nil
}

func (s *Store) ListTimeSlots(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.TimeSlot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	cursor, err := s.slots.Find(ctx, spanFilter(owner, span), byStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode time slots: %w", err)
	}
	return slots, nil
}

func (s *Store) InsertTimeSlots(ctx context.Context, slots []model.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, len(slots))
	for i := range slots {
		docs[i] = slots[i]
	}
	if _, err := s.slots.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert time slots: %w", err)
	}
	return nil
}

func (s *Store) DeleteTimeSlots(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if _, err := s.slots.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete time slots: %w", err)
	}
	return nil
}

func (s *Store) ListOwners(ctx context.Context) ([]model.OwnerRef, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{"owner": 1}}},
		{{Key: "$unionWith", Value: bson.M{
			"coll":     repository.CollectionName,
			"pipeline": bson.A{bson.M{"$project": bson.M{"owner": 1}}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$owner"}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.type", Value: 1}, {Key: "_id.id", Value: 1}}}},
	}
	cursor, err := s.slots.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Owner model.OwnerRef `bson:"_id"`
	}
	if err = cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode owners: %w", err)
	}
	owners := make([]model.OwnerRef, len(groups))
	for i, g := range groups {
		owners[i] = g.Owner
	}
	return owners, nil
}

func (s *Store) DeleteGenerated(ctx context.Context) (int64, error) {
	var total int64
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.occurrences.DeleteMany(ctx, bson.M{})
		if err != nil {
			return err
		}
		total += res.DeletedCount
		res, err = s.slots.DeleteMany(ctx, bson.M{"busy": false})
		if err != nil {
			return err
		}
		total += res.DeletedCount
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete generated records: %w", err)
	}
	return total, nil
}

func (s *Store) DeleteFreeSlotsBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	res, err := s.slots.DeleteMany(ctx, bson.M{"busy": false, "end": bson.M{"$lte": t}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old free slots: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.cfg.Client.Mongo.Ping(ctx, nil)
}
