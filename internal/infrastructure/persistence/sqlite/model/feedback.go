package model

type Feedback struct {
	FeedbackID string `gorm:"column:feedback_id;type:text;primaryKey"`
	LotID      string `gorm:"column:lot_id;type:text;not null;index"`
	Text       string `gorm:"column:feedback_text;type:text;not null"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
}

func (Feedback) TableName() string {
	return "feedback"
}
