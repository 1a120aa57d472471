package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oncallhq/mattersend/internal/alert"
	"github.com/oncallhq/mattersend/internal/alias"
	"github.com/oncallhq/mattersend/internal/dispatch"
	"github.com/oncallhq/mattersend/internal/mattermost"
)

// EventDispatcher runs the notification pipeline for one status event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event alert.StatusEvent, responders, dutyOfficers []string) error
}

// Handlers serves the event ingestion and alias admin endpoints.
type Handlers struct {
	dispatcher EventDispatcher
	aliases    *alias.Store
}

func NewHandlers(dispatcher EventDispatcher, aliases *alias.Store) *Handlers {
	return &Handlers{dispatcher: dispatcher, aliases: aliases}
}

// eventRequest is the payload the host monitoring system POSTs per status
// transition.
type eventRequest struct {
	alert.StatusEvent
	Responders   []string `json:"responders,omitempty"`
	DutyOfficers []string `json:"duty_officers,omitempty"`
}

// PostEvent runs the dispatch pipeline synchronously for one transition.
// Delivery failures surface as 502 so the host's alerting framework can
// apply its retry policy.
func (h *Handlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Service == "" {
		respondError(w, http.StatusBadRequest, "service is required")
		return
	}
	if !req.Current.Valid() || !req.Previous.Valid() {
		respondError(w, http.StatusBadRequest, "current_status and previous_status must be PASSING, WARNING, ERROR or CRITICAL")
		return
	}

	err := h.dispatcher.Dispatch(r.Context(), req.StatusEvent, req.Responders, req.DutyOfficers)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
	case errors.Is(err, dispatch.ErrConfiguration):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		var apiErr *mattermost.APIError
		if errors.As(err, &apiErr) {
			slog.Error("status message delivery failed",
				"service", req.Service,
				"upstream_status", apiErr.StatusCode,
				"upstream_body", apiErr.Body,
			)
		} else {
			slog.Error("status message delivery failed", "service", req.Service, "error", err)
		}
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

// PutAlias creates or replaces the chat alias for a user.
func (h *Handlers) PutAlias(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	var req struct {
		Alias string `json:"alias"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.aliases.Set(r.Context(), userID, req.Alias); err != nil {
		if errors.Is(err, alias.ErrValidation) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("alias write failed", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save alias")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAlias returns the configured alias for a user.
func (h *Handlers) GetAlias(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	a, err := h.aliases.Get(r.Context(), userID)
	if errors.Is(err, alias.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no alias configured")
		return
	}
	if err != nil {
		slog.Error("alias read failed", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read alias")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "alias": a})
}

// DeleteAlias removes a user's alias. Unconfigured users are a no-op.
func (h *Handlers) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	if err := h.aliases.Delete(r.Context(), userID); err != nil {
		slog.Error("alias delete failed", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete alias")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
