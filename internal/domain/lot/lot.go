package lot

type HistoryEvent struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
	Actor     string `json:"actor"`
}

type FarmerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Certificate is a named document reference attached to a lot. It is not
// validated beyond having a name and a storage key.
type Certificate struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	UploadedAt  string `json:"uploadedAt"`
}

type Metadata struct {
	ProduceName  string
	Origin       string
	PlantingDate string
	HarvestDate  string
	ItemCount    int
}

// Lot is one traceable batch of produce. History is authoritative; the
// current status is always the status of its last entry.
type Lot struct {
	ID           string
	ProduceName  string
	Origin       string
	PlantingDate string
	HarvestDate  string
	ItemCount    int
	Farmer       FarmerRef
	Certificates []Certificate
	History      []HistoryEvent
	Version      uint64
	CreatedAt    string
	UpdatedAt    string
}

func (l Lot) CurrentStatus() (Status, error) {
	return CurrentStatus(l)
}

// CurrentStatus projects the status of the last history entry.
func CurrentStatus(l Lot) (Status, error) {
	if len(l.History) == 0 {
		return "", ErrEmptyHistory
	}
	return l.History[len(l.History)-1].Status, nil
}

// LastEvent returns the most recent history entry.
func (l Lot) LastEvent() (HistoryEvent, bool) {
	if len(l.History) == 0 {
		return HistoryEvent{}, false
	}
	return l.History[len(l.History)-1], true
}

func (l Lot) HasCertificate(name string) bool {
	for _, cert := range l.Certificates {
		if cert.Name == name {
			return true
		}
	}
	return false
}

func cloneHistory(in []HistoryEvent) []HistoryEvent {
	out := make([]HistoryEvent, len(in), len(in)+1)
	copy(out, in)
	return out
}
