package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tablebook/internal/models"
	"tablebook/internal/utils"
	"tablebook/internal/waitlist"
)

type Handler struct {
	Manager *waitlist.Manager
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/waitlist", h.Join)
	r.Get("/waitlist/estimate", h.Estimate)
	r.Post("/waitlist/{entryId}/action", h.Act)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.WaitlistJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.Manager.Join(r.Context(), req)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryId")

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.Manager.Act(r.Context(), id, req.Action)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	partySize, err := strconv.Atoi(r.URL.Query().Get("party_size"))
	if err != nil || partySize < 1 {
		writeError(w, http.StatusBadRequest, "party_size is required")
		return
	}
	position, err := strconv.Atoi(r.URL.Query().Get("position"))
	if err != nil || position < 1 {
		position = 1
	}

	estimate, err := h.Manager.Estimate(r.Context(), partySize, position)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(utils.ErrorResponse(message, message))
}

func writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, waitlist.ErrDuplicateEntry):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, waitlist.ErrInvalidAction):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, waitlist.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, waitlist.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
