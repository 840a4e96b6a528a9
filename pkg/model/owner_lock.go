package model

import "time"

// OwnerLock is the advisory lock held while an owner's schedule is being
// rewritten. Token identifies the holder so only it can release the lock.
type OwnerLock struct {
	ID        string    `bson:"_id" json:"id"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
