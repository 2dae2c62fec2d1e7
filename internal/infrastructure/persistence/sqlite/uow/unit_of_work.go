package uow

import (
	"context"

	"gorm.io/gorm"

	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with a gorm transaction stored in
// the context, where repositories pick it up.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx runs fn in a transaction. A call nested inside another unit of work
// joins the outer transaction. Errors from fn come back unchanged; failures
// to begin or commit are reported as ports.ErrStoreUnavailable.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errs.Mark(ports.ErrStoreUnavailable, tx.Error, "begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(ports.WithTxContext(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return errs.Mark(ports.ErrStoreUnavailable, err, "commit transaction")
	}
	committed = true
	return nil
}
