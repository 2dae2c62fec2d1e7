package schema

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Version is bumped whenever a table in the record store changes shape.
const Version = "4"

const versionKey = "schema_version"

type ProjectMeta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (ProjectMeta) TableName() string {
	return "project_meta"
}

// RecordVersion migrates project_meta and stores the current schema version.
func RecordVersion(db *gorm.DB) error {
	if err := db.AutoMigrate(&ProjectMeta{}); err != nil {
		return err
	}
	row := ProjectMeta{Key: versionKey, Value: Version}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// StoredVersion returns the recorded schema version, or "" before init-db.
func StoredVersion(db *gorm.DB) (string, error) {
	var row ProjectMeta
	err := db.Where("key = ?", versionKey).Limit(1).Find(&row).Error
	if err != nil {
		return "", err
	}
	return row.Value, nil
}
