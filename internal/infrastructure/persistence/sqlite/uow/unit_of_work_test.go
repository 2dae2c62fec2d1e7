package uow

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"agritrace/internal/infrastructure/persistence/sqlite/model"
	"agritrace/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate kv: %v", err)
	}
	return db
}

func insertKV(ctx context.Context, key string) error {
	tx, ok := ports.TxFromContext(ctx).(*gorm.DB)
	if !ok {
		return errors.New("no transaction in context")
	}
	return tx.Create(&model.KV{Key: key, Value: "v", UpdatedAt: "t"}).Error
}

func countKV(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&model.KV{}).Count(&n).Error; err != nil {
		t.Fatalf("count kv: %v", err)
	}
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := setupDB(t)
	u := NewUnitOfWork(db)
	ctx := context.Background()

	if err := u.WithTx(ctx, func(txCtx context.Context) error {
		return insertKV(txCtx, "a")
	}); err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	errAbort := errors.New("abort")
	err := u.WithTx(ctx, func(txCtx context.Context) error {
		if err := insertKV(txCtx, "b"); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) || errors.Is(err, ports.ErrStoreUnavailable) {
		t.Fatalf("WithTx() error = %v, want fn error unchanged", err)
	}

	if got := countKV(t, db); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestWithTxNestedJoinsOuter(t *testing.T) {
	db := setupDB(t)
	u := NewUnitOfWork(db)

	err := u.WithTx(context.Background(), func(outer context.Context) error {
		if err := u.WithTx(outer, func(inner context.Context) error {
			if ports.TxFromContext(inner) != ports.TxFromContext(outer) {
				t.Fatal("nested WithTx opened a new transaction")
			}
			return insertKV(inner, "nested")
		}); err != nil {
			return err
		}
		return errors.New("roll back everything")
	})
	if err == nil {
		t.Fatal("WithTx() error = nil")
	}
	if got := countKV(t, db); got != 0 {
		t.Fatalf("rows = %d, want 0 after outer rollback", got)
	}
}
