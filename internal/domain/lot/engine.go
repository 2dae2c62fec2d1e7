package lot

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const dateLayout = "2006-01-02"

type AdvanceRequest struct {
	Requested Status
	Actor     string
	Role      Role
	Location  string
	At        time.Time
}

// Advance validates one custody transition and returns the history to
// persist: the old history with exactly one event appended. The input lot is
// never modified.
//
// A role is rejected with ErrUnauthorizedRole when it triggers neither the
// requested transition nor the lot's pending one. A role that is a legitimate
// actor for either, but asks for anything other than the single successor of
// the current status, gets ErrInvalidTransition. Requests that name no
// transition target on a terminal lot are plain invalid transitions.
func Advance(l Lot, req AdvanceRequest) ([]HistoryEvent, error) {
	current, err := CurrentStatus(l)
	if err != nil {
		return nil, err
	}

	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		verr := &ValidationError{}
		verr.add("actor", "is required")
		return nil, verr
	}

	targetRole, targetKnown := RequiredRole(req.Requested)
	pendingRole, hasPending := PendingRole(current)
	authorized := (targetKnown && targetRole == req.Role) || (hasPending && pendingRole == req.Role)
	if !authorized && (targetKnown || hasPending) {
		return nil, fmt.Errorf("%w: role %q cannot move lot %s from %q to %q", ErrUnauthorizedRole, req.Role, l.ID, current, req.Requested)
	}

	next, ok := NextStatus(current)
	if !ok || next != req.Requested {
		return nil, fmt.Errorf("%w: lot %s is %q, requested %q", ErrInvalidTransition, l.ID, current, req.Requested)
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = DefaultLocation(next)
	}

	history := cloneHistory(l.History)
	history = append(history, HistoryEvent{
		Status:    next,
		Timestamp: formatTimestamp(req.At),
		Location:  location,
		Actor:     actor,
	})
	return history, nil
}

// Register builds a brand-new lot whose history holds the single Registered
// event, located at the lot origin.
func Register(id string, farmer FarmerRef, meta Metadata, at time.Time) (Lot, error) {
	verr := &ValidationError{}

	id = strings.TrimSpace(id)
	switch {
	case id == "":
		verr.add("id", "is required")
	case strings.ContainsAny(id, `/\`) || strings.Contains(id, ".."):
		verr.add("id", "must not contain path separators or ..")
	case strings.IndexFunc(id, unicode.IsSpace) >= 0:
		verr.add("id", "must not contain whitespace")
	}

	farmer.ID = strings.TrimSpace(farmer.ID)
	farmer.Name = strings.TrimSpace(farmer.Name)
	if farmer.ID == "" && farmer.Name == "" {
		verr.add("farmer", "is required")
	}
	if farmer.ID == "" {
		farmer.ID = farmer.Name
	}
	if farmer.Name == "" {
		farmer.Name = farmer.ID
	}

	meta.ProduceName = strings.TrimSpace(meta.ProduceName)
	if meta.ProduceName == "" {
		verr.add("produceName", "is required")
	}
	meta.Origin = strings.TrimSpace(meta.Origin)
	if meta.Origin == "" {
		verr.add("origin", "is required")
	}

	planting, plantingOK := parseDate(meta.PlantingDate)
	if !plantingOK {
		verr.add("plantingDate", "must be a date (YYYY-MM-DD or RFC3339)")
	}
	harvest, harvestOK := parseDate(meta.HarvestDate)
	if !harvestOK {
		verr.add("harvestDate", "must be a date (YYYY-MM-DD or RFC3339)")
	}
	if plantingOK && harvestOK && harvest.Before(planting) {
		verr.add("harvestDate", "must not be before plantingDate")
	}

	if meta.ItemCount < 1 {
		verr.add("itemCount", "must be >= 1")
	}

	if err := verr.orNil(); err != nil {
		return Lot{}, err
	}

	timestamp := formatTimestamp(at)
	return Lot{
		ID:           id,
		ProduceName:  meta.ProduceName,
		Origin:       meta.Origin,
		PlantingDate: strings.TrimSpace(meta.PlantingDate),
		HarvestDate:  strings.TrimSpace(meta.HarvestDate),
		ItemCount:    meta.ItemCount,
		Farmer:       farmer,
		History: []HistoryEvent{{
			Status:    StatusRegistered,
			Timestamp: timestamp,
			Location:  meta.Origin,
			Actor:     farmer.Name,
		}},
		CreatedAt: timestamp,
		UpdatedAt: timestamp,
	}, nil
}

func parseDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

func formatTimestamp(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Format(time.RFC3339Nano)
}
