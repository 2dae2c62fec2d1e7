package cache

import (
	"context"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"agritrace/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate kv: %v", err)
	}

	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "relay_cursor:default", "12", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "relay_cursor:default")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "12" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "relay_cursor:default", "13", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, _, err = cache.Get(ctx, "relay_cursor:default")
	if err != nil || value != "13" {
		t.Fatalf("Get() after update = %q, %v", value, err)
	}

	if err := cache.Delete(ctx, "relay_cursor:default"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = cache.Get(ctx, "relay_cursor:default")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheListPrefix(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	for key, value := range map[string]string{
		"anchor:LOT_1:1": "a",
		"anchor:LOT_1:2": "b",
		"anchor:LOTX1:1": "c",
		"relay_cursor:x": "9",
	} {
		if err := cache.Set(ctx, key, value, 0); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	got, err := cache.ListPrefix(ctx, "anchor:LOT_1:")
	if err != nil {
		t.Fatalf("ListPrefix() error = %v", err)
	}
	if len(got) != 2 || got["anchor:LOT_1:1"] != "a" || got["anchor:LOT_1:2"] != "b" {
		t.Fatalf("ListPrefix() = %v", got)
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, ""); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
	if _, err := cache.ListPrefix(ctx, " "); err == nil {
		t.Fatalf("ListPrefix() expected error for empty prefix")
	}
}
