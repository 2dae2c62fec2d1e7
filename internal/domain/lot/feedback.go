package lot

import (
	"strings"
	"time"
)

// MaxFeedbackLength bounds a single consumer comment, in bytes.
const MaxFeedbackLength = 4000

// Feedback is a consumer comment tied to a lot id. The lot is not required
// to exist.
type Feedback struct {
	ID        string
	LotID     string
	Text      string
	CreatedAt string
}

func NewFeedback(id string, lotID string, text string, at time.Time) (Feedback, error) {
	verr := &ValidationError{}

	lotID = strings.TrimSpace(lotID)
	if lotID == "" {
		verr.add("lotId", "is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		verr.add("feedbackText", "is required")
	}
	if len(text) > MaxFeedbackLength {
		verr.add("feedbackText", "is too long")
	}
	if strings.TrimSpace(id) == "" {
		verr.add("id", "is required")
	}

	if err := verr.orNil(); err != nil {
		return Feedback{}, err
	}

	return Feedback{
		ID:        strings.TrimSpace(id),
		LotID:     lotID,
		Text:      text,
		CreatedAt: formatTimestamp(at),
	}, nil
}
