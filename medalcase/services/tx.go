package services

import (
	"context"

	"github.com/uptrace/bun"
)

// TxRunner abstracts transaction execution so services can be tested
// against fakes. The bun.IDB handed to fn is the transaction; all
// repository calls inside fn must go through it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error
}

type bunTxRunner struct {
	db *bun.DB
}

func NewTxRunner(db *bun.DB) TxRunner {
	return &bunTxRunner{db: db}
}

func (r *bunTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}
