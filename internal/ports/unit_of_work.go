package ports

import "context"

// Tx is an opaque transaction handle. Infrastructure owns the concrete type
// (*gorm.DB for the record store).
type Tx interface{}

// UnitOfWork wraps a lot write and its outbox row in one transaction.
// Returning an error from fn rolls back; nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns nil outside a unit of work.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
