// internal/registration/handler.go
package registration

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swimclub/internal/billing"
	"swimclub/internal/httputil"
	"swimclub/internal/membership"
)

var statuses = httputil.StatusMap{
	ErrRateLimited:               http.StatusTooManyRequests,
	membership.ErrInvalidMember:  http.StatusBadRequest,
	membership.ErrDuplicateEmail: http.StatusConflict,
	billing.ErrInvalidAmount:     http.StatusBadRequest,
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/members", h.handleRegister)
}

type registerResponse struct {
	Member      membership.Member `json:"member"`
	Description string            `json:"description"`
	Bill        billing.Billing   `json:"bill"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	member, bill, err := h.service.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			w.Header().Set("Retry-After", "60")
		}
		statuses.Write(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		Member:      member,
		Description: membership.Describe(member),
		Bill:        bill,
	})
}
