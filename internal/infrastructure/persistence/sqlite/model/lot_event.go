package model

type LotEvent struct {
	EventID     uint64 `gorm:"column:event_id;primaryKey;autoIncrement"`
	LotID       string `gorm:"column:lot_id;type:text;not null;uniqueIndex:idx_lot_events_lot_seq"`
	Seq         int    `gorm:"column:seq;not null;uniqueIndex:idx_lot_events_lot_seq"`
	Status      string `gorm:"column:status;type:text;not null"`
	Actor       string `gorm:"column:actor;type:text;not null"`
	Location    string `gorm:"column:location;type:text;not null"`
	OccurredAt  string `gorm:"column:occurred_at;type:text;not null"`
	PayloadJSON string `gorm:"column:payload_json;type:text;not null"`
	// PublishedAt stays empty until the relay has handed the row to the broker.
	PublishedAt string `gorm:"column:published_at;type:text;not null;default:'';index:idx_lot_events_published"`
}

func (LotEvent) TableName() string {
	return "lot_events"
}
