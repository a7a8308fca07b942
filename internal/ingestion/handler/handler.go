// Package handler exposes document writes over HTTP. Writes are published
// to Kafka and applied asynchronously by the indexer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/middleware"
)

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes builds the ingestion mux:
//
//	POST   /api/v1/documents        {"op": "insert", "doc_id": 1, "columns": [...]}
//	DELETE /api/v1/documents/{id}
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	return middleware.RequestID(mux)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var ev ingestion.DocumentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.Op == "" {
		ev.Op = ingestion.OpPut
	}
	h.publish(w, r, &ev)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	docid, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an unsigned integer")
		return
	}
	h.publish(w, r, &ingestion.DocumentEvent{Op: ingestion.OpDelete, DocID: docid})
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request, ev *ingestion.DocumentEvent) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := validator.ValidateEvent(ev); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.publisher.Publish(ctx, ev); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("publishing document event failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("document event accepted", "op", ev.Op, "doc_id", ev.DocID)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"doc_id": ev.DocID,
		"op":     ev.Op,
		"status": "accepted",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
