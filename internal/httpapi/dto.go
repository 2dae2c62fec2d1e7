package httpapi

import (
	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

type errorResponse struct {
	Error  string           `json:"error"`
	Fields []lot.FieldError `json:"fields,omitempty"`
}

type sessionRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Wallet string `json:"wallet"`
	Role   string `json:"role"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
	Actor     ports.Actor `json:"actor"`
}

type registerLotRequest struct {
	ID           string `json:"id"`
	ProduceName  string `json:"produceName"`
	Origin       string `json:"origin"`
	PlantingDate string `json:"plantingDate"`
	HarvestDate  string `json:"harvestDate"`
	ItemCount    int    `json:"itemCount"`
}

type advanceLotRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}

type feedbackRequest struct {
	FeedbackText string `json:"feedbackText"`
}

type contractRequest struct {
	ProduceDetails       string `json:"produceDetails"`
	TrackingRequirements string `json:"trackingRequirements"`
}

type lotResponse struct {
	ID            string             `json:"id"`
	ProduceName   string             `json:"produceName"`
	Origin        string             `json:"origin"`
	PlantingDate  string             `json:"plantingDate"`
	HarvestDate   string             `json:"harvestDate"`
	ItemCount     int                `json:"itemCount"`
	Farmer        lot.FarmerRef      `json:"farmer"`
	CurrentStatus lot.Status         `json:"currentStatus"`
	History       []lot.HistoryEvent `json:"history"`
	Certificates  []lot.Certificate  `json:"certificates"`
	Version       uint64             `json:"version"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
}

type statusResponse struct {
	LotID  string     `json:"lotId"`
	Status lot.Status `json:"status"`
}

type feedbackResponse struct {
	ID           string `json:"id"`
	LotID        string `json:"lotId"`
	FeedbackText string `json:"feedbackText"`
	CreatedAt    string `json:"createdAt"`
}

type traceResponse struct {
	Lot         lotResponse           `json:"lot"`
	Feedback    []feedbackResponse    `json:"feedback"`
	Anchors     []ports.AnchorReceipt `json:"anchors"`
	LastEventID uint64                `json:"lastEventId"`
}

type dashboardLotResponse struct {
	lotResponse
	ShippedBy string `json:"shippedBy,omitempty"`
}

type dashboardResponse struct {
	Role           lot.Role               `json:"role"`
	Lots           []dashboardLotResponse `json:"lots,omitempty"`
	Total          *int                   `json:"total,omitempty"`
	InTransit      *int                   `json:"inTransit,omitempty"`
	Incoming       []dashboardLotResponse `json:"incoming,omitempty"`
	Inventory      []dashboardLotResponse `json:"inventory,omitempty"`
	InventoryValue *int                   `json:"inventoryValue,omitempty"`
	OnShelf        []dashboardLotResponse `json:"onShelf,omitempty"`
}

type streamMessage struct {
	Type  string        `json:"type"`
	Trace traceResponse `json:"trace"`
}

func toLotResponse(l lot.Lot) lotResponse {
	status, _ := lot.CurrentStatus(l)
	certs := l.Certificates
	if certs == nil {
		certs = []lot.Certificate{}
	}
	return lotResponse{
		ID:            l.ID,
		ProduceName:   l.ProduceName,
		Origin:        l.Origin,
		PlantingDate:  l.PlantingDate,
		HarvestDate:   l.HarvestDate,
		ItemCount:     l.ItemCount,
		Farmer:        l.Farmer,
		CurrentStatus: status,
		History:       l.History,
		Certificates:  certs,
		Version:       l.Version,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func toLotResponses(in []lot.Lot) []lotResponse {
	out := make([]lotResponse, 0, len(in))
	for _, l := range in {
		out = append(out, toLotResponse(l))
	}
	return out
}

func toFeedbackResponse(fb lot.Feedback) feedbackResponse {
	return feedbackResponse{ID: fb.ID, LotID: fb.LotID, FeedbackText: fb.Text, CreatedAt: fb.CreatedAt}
}

func toTraceResponse(view lots.TraceView) traceResponse {
	feedback := make([]feedbackResponse, 0, len(view.Feedback))
	for _, fb := range view.Feedback {
		feedback = append(feedback, toFeedbackResponse(fb))
	}
	anchors := view.Anchors
	if anchors == nil {
		anchors = []ports.AnchorReceipt{}
	}
	return traceResponse{
		Lot:         toLotResponse(view.Lot),
		Feedback:    feedback,
		Anchors:     anchors,
		LastEventID: view.LastEventID,
	}
}

func toDashboardLots(in []lots.DashboardLot) []dashboardLotResponse {
	out := make([]dashboardLotResponse, 0, len(in))
	for _, item := range in {
		out = append(out, dashboardLotResponse{lotResponse: toLotResponse(item.Lot), ShippedBy: item.ShippedBy})
	}
	return out
}

func toDashboardResponse(d lots.Dashboard) dashboardResponse {
	out := dashboardResponse{Role: d.Role}
	switch {
	case d.Farmer != nil:
		out.Lots = toDashboardLots(d.Farmer.Lots)
		out.Total = &d.Farmer.Total
		out.InTransit = &d.Farmer.InTransit
	case d.Distributor != nil:
		out.Incoming = toDashboardLots(d.Distributor.Incoming)
		out.Inventory = toDashboardLots(d.Distributor.Inventory)
		out.InventoryValue = &d.Distributor.InventoryValue
	case d.Retailer != nil:
		out.Incoming = toDashboardLots(d.Retailer.Incoming)
		out.OnShelf = toDashboardLots(d.Retailer.OnShelf)
	}
	return out
}
