package model

// All lists every table AutoMigrate manages, in dependency order.
func All() []any {
	return []any{
		&Lot{},
		&LotEvent{},
		&Feedback{},
		&KV{},
	}
}
