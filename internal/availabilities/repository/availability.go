package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilitieserrors "agenda/internal/availabilities/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availabilities"
)

type AvailabilityRepository interface {
	Create(ctx context.Context, availability *model.Availability) error
	FindByID(ctx context.Context, id string) (*model.Availability, error)
	FindByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, error)
	CountByOwner(ctx context.Context, owner model.OwnerRef) (int64, error)
	// ListAvailabilities returns every availability of owner.
	ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error)
	Update(ctx context.Context, availability *model.Availability) error
	Delete(ctx context.Context, id string) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func ownerFilter(owner model.OwnerRef) bson.M {
	return bson.M{"owner.type": owner.Type, "owner.id": owner.ID}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", availabilitieserrors.ErrInvalidID, id)
	}
	return nil
}

func (r *mongoAvailabilityRepository) Create(ctx context.Context, availability *model.Availability) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if availability.ID == "" {
		availability.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	availability.CreatedAt = now
	availability.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, availability); err != nil {
		return fmt.Errorf("failed to create availability: %w", err)
	}
	return nil
}

func (r *mongoAvailabilityRepository) FindByID(ctx context.Context, id string) (*model.Availability, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var availability model.Availability
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&availability)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilitieserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability: %w", err)
	}
	return &availability, nil
}

func (r *mongoAvailabilityRepository) FindByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, ownerFilter(owner), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availabilities: %w", err)
	}
	defer cursor.Close(ctx)

	var availabilities []*model.Availability
	if err = cursor.All(ctx, &availabilities); err != nil {
		return nil, fmt.Errorf("failed to decode availabilities: %w", err)
	}
	return availabilities, nil
}

func (r *mongoAvailabilityRepository) CountByOwner(ctx context.Context, owner model.OwnerRef) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, ownerFilter(owner))
	if err != nil {
		return 0, fmt.Errorf("failed to count availabilities: %w", err)
	}
	return count, nil
}

func (r *mongoAvailabilityRepository) ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, ownerFilter(owner), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	defer cursor.Close(ctx)

	var availabilities []model.Availability
	if err = cursor.All(ctx, &availabilities); err != nil {
		return nil, fmt.Errorf("failed to decode availabilities: %w", err)
	}
	return availabilities, nil
}

func (r *mongoAvailabilityRepository) Update(ctx context.Context, availability *model.Availability) error {
	if err := validID(availability.ID); err != nil {
		return err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	availability.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"start_date":  availability.StartDate,
			"start_time":  availability.StartTime,
			"end_time":    availability.EndTime,
			"recurrence":  availability.Recurrence,
			"timezone":    availability.TimeZone,
			"recur_until": availability.RecurUntil,
			"updated_at":  availability.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": availability.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	if result.MatchedCount == 0 {
		return availabilitieserrors.ErrNotFound
	}
	return nil
}

func (r *mongoAvailabilityRepository) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	if result.DeletedCount == 0 {
		return availabilitieserrors.ErrNotFound
	}
	return nil
}
