package lots

import (
	"context"
	"fmt"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

// DashboardLot is a lot as shown on a role dashboard. ShippedBy is the actor
// of the latest history entry.
type DashboardLot struct {
	Lot       lot.Lot
	Status    lot.Status
	ShippedBy string
}

type FarmerDashboard struct {
	Lots      []DashboardLot
	Total     int
	InTransit int
}

type DistributorDashboard struct {
	Incoming       []DashboardLot
	Inventory      []DashboardLot
	InventoryValue int
}

type RetailerDashboard struct {
	Incoming []DashboardLot
	OnShelf  []DashboardLot
}

// Dashboard holds exactly one role view, chosen by the actor's role.
type Dashboard struct {
	Role        lot.Role
	Farmer      *FarmerDashboard
	Distributor *DistributorDashboard
	Retailer    *RetailerDashboard
}

func (s *Service) Dashboard(ctx context.Context, actor ports.Actor) (Dashboard, error) {
	if err := s.ready(ctx); err != nil {
		return Dashboard{}, err
	}

	out := Dashboard{Role: actor.Role}
	switch actor.Role {
	case lot.RoleFarmer:
		mine, err := s.repo.ListLots(ctx, ports.LotFilter{FarmerID: actor.ID})
		if err != nil {
			return Dashboard{}, err
		}
		view := &FarmerDashboard{Lots: dashboardLots(mine), Total: len(mine)}
		view.InTransit = len(lot.Query(mine, lot.Filter{Statuses: []lot.Status{lot.StatusInTransitToDistributor}}))
		out.Farmer = view
	case lot.RoleDistributor:
		all, err := s.repo.ListLots(ctx, ports.LotFilter{})
		if err != nil {
			return Dashboard{}, err
		}
		inventory := lot.Query(all, lot.Filter{Statuses: []lot.Status{lot.StatusReceivedByDistributor}})
		view := &DistributorDashboard{
			Incoming:  dashboardLots(lot.Query(all, lot.Filter{Statuses: []lot.Status{lot.StatusInTransitToDistributor}})),
			Inventory: dashboardLots(inventory),
		}
		for _, item := range inventory {
			view.InventoryValue += item.ItemCount
		}
		out.Distributor = view
	case lot.RoleRetailer:
		all, err := s.repo.ListLots(ctx, ports.LotFilter{})
		if err != nil {
			return Dashboard{}, err
		}
		out.Retailer = &RetailerDashboard{
			Incoming: dashboardLots(lot.Query(all, lot.Filter{Statuses: []lot.Status{lot.StatusInTransitToRetailer}})),
			OnShelf: dashboardLots(lot.Query(all, lot.Filter{Statuses: []lot.Status{
				lot.StatusReceivedByRetailer,
				lot.StatusAvailableForPurchase,
			}})),
		}
	default:
		return Dashboard{}, fmt.Errorf("%w: role %q has no dashboard", lot.ErrUnauthorizedRole, actor.Role)
	}
	return out, nil
}

func dashboardLots(in []lot.Lot) []DashboardLot {
	out := make([]DashboardLot, 0, len(in))
	for _, l := range in {
		item := DashboardLot{Lot: l}
		if last, ok := l.LastEvent(); ok {
			item.Status = last.Status
			item.ShippedBy = last.Actor
		}
		out = append(out, item)
	}
	return out
}
