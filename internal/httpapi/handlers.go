package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"agritrace/internal/domain/lot"
	"agritrace/internal/infrastructure/session"
	"agritrace/internal/usecase/lots"
)

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	actor, err := session.NewActor(req.Name, req.Email, req.Wallet, req.Role)
	if err != nil {
		writeErrorStatus(w, r, http.StatusBadRequest, err)
		return
	}
	token, expiresAt, err := s.sessions.Issue(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Actor:     actor,
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, actorFrom(r))
}

func (s *server) handleRegisterLot(w http.ResponseWriter, r *http.Request) {
	var req registerLotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.lots.RegisterLot(r.Context(), actorFrom(r), lots.RegisterLotInput{
		ID:           req.ID,
		ProduceName:  req.ProduceName,
		Origin:       req.Origin,
		PlantingDate: req.PlantingDate,
		HarvestDate:  req.HarvestDate,
		ItemCount:    req.ItemCount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotResponse(created))
}

// handleListLots accepts repeated or comma-separated ?status= values and an
// optional ?farmer= id.
func (s *server) handleListLots(w http.ResponseWriter, r *http.Request) {
	var statuses []string
	for _, value := range r.URL.Query()["status"] {
		statuses = append(statuses, strings.Split(value, ",")...)
	}

	found, err := s.lots.QueryLots(r.Context(), lots.LotQuery{
		Statuses: statuses,
		FarmerID: r.URL.Query().Get("farmer"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotResponses(found))
}

func (s *server) handleGetLot(w http.ResponseWriter, r *http.Request) {
	found, err := s.lots.GetLot(r.Context(), chi.URLParam(r, "lotID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotResponse(found))
}

func (s *server) handleLotStatus(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")
	status, err := s.lots.CurrentStatus(r.Context(), lotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{LotID: lotID, Status: status})
}

func (s *server) handleAdvanceLot(w http.ResponseWriter, r *http.Request) {
	var req advanceLotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.lots.AdvanceLot(r.Context(), actorFrom(r), lots.AdvanceLotInput{
		LotID:    chi.URLParam(r, "lotID"),
		Status:   req.Status,
		Location: req.Location,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotResponse(updated))
}

func (s *server) handleAttachCertificate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCertificateBody)
	if err := r.ParseMultipartForm(maxCertificateBody); err != nil {
		writeError(w, r, &lot.ValidationError{Fields: []lot.FieldError{{Field: "file", Message: "must be a multipart upload under 10 MiB"}}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &lot.ValidationError{Fields: []lot.FieldError{{Field: "file", Message: "is required"}}})
		return
	}
	defer file.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	cert, err := s.lots.AttachCertificate(r.Context(), actorFrom(r), lots.AttachCertificateInput{
		LotID:       chi.URLParam(r, "lotID"),
		Name:        name,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cert)
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.lots.Dashboard(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(view))
}

// handleGenerateContract reports upstream model failures as 502.
func (s *server) handleGenerateContract(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	draft, err := s.lots.GenerateContract(r.Context(), actorFrom(r), lots.GenerateContractInput{
		ProduceDetails:       req.ProduceDetails,
		TrackingRequirements: req.TrackingRequirements,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError && !errors.Is(err, r.Context().Err()) {
			status = http.StatusBadGateway
		}
		writeErrorStatus(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
