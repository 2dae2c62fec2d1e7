package model

import "gorm.io/datatypes"

// Lot stores one produce lot. History is the source of truth; Status is a
// projection of its last entry, rewritten in the same update.
type Lot struct {
	LotID        string         `gorm:"column:lot_id;type:text;primaryKey"`
	ProduceName  string         `gorm:"column:produce_name;type:text;not null"`
	Origin       string         `gorm:"column:origin;type:text;not null"`
	PlantingDate string         `gorm:"column:planting_date;type:text;not null"`
	HarvestDate  string         `gorm:"column:harvest_date;type:text;not null;index"`
	ItemCount    int            `gorm:"column:item_count;not null"`
	FarmerID     string         `gorm:"column:farmer_id;type:text;not null;index"`
	FarmerName   string         `gorm:"column:farmer_name;type:text;not null"`
	Status       string         `gorm:"column:status;type:text;not null;index"`
	History      datatypes.JSON `gorm:"column:history;not null"`
	Certificates datatypes.JSON `gorm:"column:certificates"`
	Version      uint64         `gorm:"column:version;not null;default:1"`
	CreatedAt    string         `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string         `gorm:"column:updated_at;type:text;not null"`
}

func (Lot) TableName() string {
	return "lots"
}
