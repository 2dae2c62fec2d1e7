package lot

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusRegistered             Status = "Registered"
	StatusInTransitToDistributor Status = "In-Transit to Distributor"
	StatusReceivedByDistributor  Status = "Received by Distributor"
	StatusInTransitToRetailer    Status = "In-Transit to Retailer"
	StatusReceivedByRetailer     Status = "Received by Retailer"
	StatusAvailableForPurchase   Status = "Available for Purchase"
)

type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleAdmin       Role = "admin"
)

type transition struct {
	next            Status
	role            Role
	defaultLocation string
}

// transitions maps each status to its single allowed successor.
// Available for Purchase is terminal and has no entry.
var transitions = map[Status]transition{
	StatusRegistered:             {next: StatusInTransitToDistributor, role: RoleFarmer, defaultLocation: "En route to Distributor"},
	StatusInTransitToDistributor: {next: StatusReceivedByDistributor, role: RoleDistributor, defaultLocation: "Distributor Hub"},
	StatusReceivedByDistributor:  {next: StatusInTransitToRetailer, role: RoleDistributor, defaultLocation: "En route to Retailer"},
	StatusInTransitToRetailer:    {next: StatusReceivedByRetailer, role: RoleRetailer, defaultLocation: "Retail Store"},
	StatusReceivedByRetailer:     {next: StatusAvailableForPurchase, role: RoleRetailer, defaultLocation: "Retail Store"},
}

var orderedStatuses = []Status{
	StatusRegistered,
	StatusInTransitToDistributor,
	StatusReceivedByDistributor,
	StatusInTransitToRetailer,
	StatusReceivedByRetailer,
	StatusAvailableForPurchase,
}

// Statuses returns the lifecycle states in custody order.
func Statuses() []Status {
	out := make([]Status, len(orderedStatuses))
	copy(out, orderedStatuses)
	return out
}

// ParseStatus accepts the canonical name (case-insensitive) or its slug,
// e.g. "in-transit-to-distributor".
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	for _, status := range orderedStatuses {
		if strings.EqualFold(trimmed, string(status)) || strings.EqualFold(trimmed, status.Slug()) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) Valid() bool {
	for _, status := range orderedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s Status) Slug() string {
	return strings.ToLower(strings.ReplaceAll(string(s), " ", "-"))
}

func (s Status) IsTerminal() bool {
	return s == StatusAvailableForPurchase
}

// NextStatus returns the single allowed successor of s.
func NextStatus(s Status) (Status, bool) {
	t, ok := transitions[s]
	if !ok {
		return "", false
	}
	return t.next, true
}

// RequiredRole returns the role that triggers the transition into target.
// Registered is never a transition target.
func RequiredRole(target Status) (Role, bool) {
	for _, t := range transitions {
		if t.next == target {
			return t.role, true
		}
	}
	return "", false
}

// PendingRole returns the role expected to act next on a lot sitting in s.
func PendingRole(s Status) (Role, bool) {
	t, ok := transitions[s]
	if !ok {
		return "", false
	}
	return t.role, true
}

// DefaultLocation is used when the actor does not supply a location for the
// transition into target.
func DefaultLocation(target Status) string {
	for _, t := range transitions {
		if t.next == target {
			return t.defaultLocation
		}
	}
	return ""
}

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleFarmer:
		return RoleFarmer, nil
	case RoleDistributor:
		return RoleDistributor, nil
	case RoleRetailer:
		return RoleRetailer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}
