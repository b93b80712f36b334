package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Runner executes fn as one unit of work. Repositories called with the ctx
// handed to fn join the surrounding transaction.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner runs fn inside a MongoDB transaction (requires a replica set).
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

func (t *TxRunner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// DirectRunner calls fn without a transaction, for standalone servers.
type DirectRunner struct{}

func (DirectRunner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
