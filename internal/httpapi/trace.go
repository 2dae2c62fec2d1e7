package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
)

const (
	feedbackRequiredMessage = "Feedback text and Lot ID are required."
	streamWriteWait         = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Trace pages are public; any origin may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *server) handleTrace(w http.ResponseWriter, r *http.Request) {
	view, err := s.lots.Trace(r.Context(), chi.URLParam(r, "lotID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTraceResponse(view))
}

func (s *server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, feedbackRequiredMessage)
		return
	}

	fb, err := s.lots.SubmitFeedback(r.Context(), chi.URLParam(r, "lotID"), req.FeedbackText)
	if err != nil {
		if errors.Is(err, lot.ErrValidation) {
			writeMessage(w, http.StatusBadRequest, feedbackRequiredMessage)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackResponse(fb))
}

// handleCertificate redirects to a presigned URL when the blob store has one
// and streams the document otherwise.
func (s *server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	content, err := s.lots.OpenCertificate(r.Context(), chi.URLParam(r, "lotID"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if content.URL != "" {
		http.Redirect(w, r, content.URL, http.StatusFound)
		return
	}
	defer content.Body.Close()

	contentType := content.Info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if content.Info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, content.Body)
}

// handleTraceStream sends the trace once on connect, then again every time a
// new outbox event lands for the lot.
func (s *server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")
	view, err := s.lots.Trace(r.Context(), lotID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logCtx := logging.WithAttrs(r.Context(),
		slog.String("component", "httpapi.stream"),
		slog.String("lot_id", lotID),
	)

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(kind string, trace traceResponse) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(streamMessage{Type: kind, Trace: trace})
	}
	if err := send("snapshot", toTraceResponse(view)); err != nil {
		return
	}
	lastEventID := view.LastEventID

	ticker := time.NewTicker(s.streamPoll)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}

		events, err := s.lots.LotEventsAfter(r.Context(), lotID, lastEventID)
		if err != nil {
			logging.Warn(logCtx, "trace stream poll failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		if len(events) == 0 {
			continue
		}

		view, err := s.lots.Trace(r.Context(), lotID)
		if err != nil {
			logging.Warn(logCtx, "trace stream reload failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		if err := send("update", toTraceResponse(view)); err != nil {
			return
		}
		lastEventID = events[len(events)-1].EventID
		if view.LastEventID > lastEventID {
			lastEventID = view.LastEventID
		}
	}
}
