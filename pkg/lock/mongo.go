package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const OwnerLocksCollection = "Owner_locks"

// Mongo keeps one document per held key. The unique _id makes insertion the
// acquisition; a TTL index on expires_at reaps locks whose holder died.
type Mongo struct {
	collection *mongo.Collection
	ttl        time.Duration
	retryWait  time.Duration
	log        *logger.Logger
}

func NewMongo(db *mongo.Database, ttl time.Duration, log *logger.Logger) *Mongo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Mongo{
		collection: db.Collection(OwnerLocksCollection),
		ttl:        ttl,
		retryWait:  DefaultRetryWait,
		log:        log,
	}
}

func (m *Mongo) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()

	for {
		now := time.Now().UTC()
		doc := &model.OwnerLock{
			ID:        key,
			Token:     token,
			ExpiresAt: now.Add(m.ttl),
			CreatedAt: now,
		}
		_, err := m.collection.InsertOne(ctx, doc)
		if err == nil {
			break
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		// The TTL monitor runs about once a minute, so clear stale holders
		// here rather than wait for it.
		if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}); err != nil {
			return nil, fmt.Errorf("failed to clear expired lock %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-time.After(m.retryWait):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := m.collection.DeleteOne(releaseCtx, bson.M{"_id": key, "token": token})
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				m.log.Warn("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
