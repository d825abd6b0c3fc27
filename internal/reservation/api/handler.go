package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tablebook/internal/auth"
	"tablebook/internal/models"
	"tablebook/internal/qr"
	"tablebook/internal/reservation"
	"tablebook/internal/schedule"
	"tablebook/internal/utils"
)

// OverrideLister is the staff-facing read path for upcoming schedule
// exceptions.
type OverrideLister interface {
	ListDayOverrides(ctx context.Context, fromDate string) ([]models.DayOverride, error)
}

type Handler struct {
	Service   *reservation.Service
	QR        *qr.Generator
	Tokens    *auth.ManageTokens
	Overrides OverrideLister
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/availability", h.GetAvailability)
	r.Get("/schedule/hours", h.GetHours)
	r.Get("/schedule/overrides", h.ListOverrides)
	r.Post("/reservations", h.CreateReservation)
	r.Get("/reservations/{code}", h.GetReservation)
	r.Get("/reservations/{code}/qr", h.GetCheckinQR)
	r.Get("/reservations/{code}/manage-link", h.GetManageLink)
	r.Post("/reservations/{reservationId}/action", h.ActOnReservation)
	r.Post("/reservations/self-service/cancel", h.SelfServiceCancel)
	r.Post("/reservations/expire-counters", h.ExpireCounterOffers)
}

// GetHours returns the resolved operating window for a date after any
// override is applied, so staff tooling does not re-implement the merge.
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	hours, err := h.Service.Resolver.ResolveHours(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"date":   date,
		"closed": hours.Closed,
	}
	if !hours.Closed {
		resp["open"] = hours.Open.String()
		resp["close"] = hours.Close.String()
		if hours.MaxCovers > 0 {
			resp["max_covers"] = hours.MaxCovers
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if from == "" {
		from = time.Now().In(h.Service.Settings.Location()).Format("2006-01-02")
	}

	overrides, err := h.Overrides.ListDayOverrides(r.Context(), from)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":      from,
		"overrides": overrides,
	})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	partySize, err := strconv.Atoi(r.URL.Query().Get("party_size"))
	if date == "" || err != nil {
		writeError(w, http.StatusBadRequest, "date and party_size are required")
		return
	}

	resp, err := h.Service.GetAvailability(r.Context(), date, partySize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.Service.RequestReservation(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	res, err := h.Service.GetByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ActOnReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationId")

	var req models.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Service.ActOnReservation(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SelfServiceCancel lets a guest cancel through a signed manage link.
func (h *Handler) SelfServiceCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	reservationID, _, err := h.Tokens.Verify(req.Token)
	if err != nil {
		writeError(w, http.StatusForbidden, "Invalid or expired link")
		return
	}

	res, err := h.Service.ActOnReservation(r.Context(), reservationID, models.ActionRequest{Action: string(reservation.ActionCancel)})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetCheckinQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	res, err := h.Service.GetByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	png, err := h.QR.GenerateCheckinQR(*res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) GetManageLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	res, err := h.Service.GetByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := h.Tokens.Issue(res.ID, res.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue manage link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ExpireCounterOffers is the hook for the external periodic trigger.
func (h *Handler) ExpireCounterOffers(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.ExpireCounterOffers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
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

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *reservation.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, reservation.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrCounterExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrInvalidPartySize), errors.Is(err, reservation.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
