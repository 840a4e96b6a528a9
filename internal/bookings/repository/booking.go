package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "agenda/internal/bookings/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// Filter narrows a booking search. From and To match bookings with a
// requested time in [From, To).
type Filter struct {
	Owner model.OwnerRef
	State model.BookingState
	From  *time.Time
	To    *time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Find(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Update(ctx context.Context, booking *model.Booking) error
	Delete(ctx context.Context, id string) error
	// FindReserved returns bookings of owner whose reserved span overlaps
	// or touches span.
	FindReserved(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]*model.Booking, error)
	// FindPendingBefore returns pending bookings whose every requested
	// time started before t.
	FindPendingBefore(ctx context.Context, t time.Time, limit int) ([]*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) Find(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, buildSearchFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func buildSearchFilter(f Filter) bson.M {
	filter := bson.M{
		"owner.type": f.Owner.Type,
		"owner.id":   f.Owner.ID,
	}
	if f.State != "" {
		filter["state"] = f.State
	}

	if f.From != nil || f.To != nil {
		match := bson.M{}
		if f.From != nil {
			match["$gte"] = *f.From
		}
		if f.To != nil {
			match["$lt"] = *f.To
		}
		filter["requested_times"] = bson.M{"$elemMatch": match}
	}
	return filter
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	if err := validID(booking.ID); err != nil {
		return err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"label":           booking.Label,
		"state":           booking.State,
		"requested_times": booking.RequestedTimes,
		"duration_min":    booking.DurationMin,
		"allow_overlap":   booking.AllowOverlap,
		"updated_at":      booking.UpdatedAt,
	}
	unset := bson.M{}
	if booking.ConfirmedTime != nil {
		set["confirmed_time"] = *booking.ConfirmedTime
	} else {
		unset["confirmed_time"] = ""
	}
	if booking.PaddingMin != nil {
		set["padding_min"] = *booking.PaddingMin
	} else {
		unset["padding_min"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": booking.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) FindReserved(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"owner.type": owner.Type,
		"owner.id":   owner.ID,
		"state":      bson.M{"$in": ReservedStates()},
		"confirmed_time": bson.M{
			"$gte": span.Start.Add(-model.MaxDurationMin * time.Minute),
			"$lte": span.End,
		},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "confirmed_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find reserved bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return Touching(bookings, span), nil
}

func (r *mongoBookingRepository) FindPendingBefore(ctx context.Context, t time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"state":           model.BookingPending,
		"requested_times": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$gt": t}}},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}
