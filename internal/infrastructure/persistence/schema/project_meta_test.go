package schema

import (
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestRecordVersionIsIdempotent(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "meta.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := RecordVersion(db); err != nil {
			t.Fatalf("RecordVersion() #%d error = %v", i, err)
		}
	}

	got, err := StoredVersion(db)
	if err != nil {
		t.Fatalf("StoredVersion() error = %v", err)
	}
	if got != Version {
		t.Fatalf("StoredVersion() = %q, want %q", got, Version)
	}

	var count int64
	if err := db.Model(&ProjectMeta{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}
