// Package mongo holds the transaction and timeout helpers shared by the
// Mongo repositories and the Mongo schedule store.
package mongo

import (
	"context"
	"fmt"
	"time"

	apperrors "agenda/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Transactor runs a unit of work in one multi-document transaction.
type Transactor struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactor reads from a snapshot and commits with majority write
// concern, so a regeneration sees one consistent view of an owner.
func NewTransactor(client *mongo.Client) *Transactor {
	return &Transactor{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()),
	}
}

// WithinTx runs fn in a new transaction, or in the caller's transaction
// when ctx already carries a session. The driver retries fn on transient
// transaction errors, so fn must be safe to run again.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if session := mongo.SessionFromContext(ctx); session != nil {
		return fn(mongo.NewSessionContext(ctx, session))
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, t.opts)
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	return fmt.Errorf("transaction failed: %w", err)
}

// WithTimeout bounds ctx by timeout unless ctx is a session context, which
// cannot be wrapped without leaving the transaction. An earlier deadline on
// ctx is kept.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}
