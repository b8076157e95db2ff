// internal/report/handler.go
package report

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"swimclub/internal/billing"
	"swimclub/internal/httputil"
	"swimclub/internal/membership"
)

var statuses = httputil.StatusMap{
	membership.ErrMemberNotFound: http.StatusNotFound,
	ErrUnknownFilter:             http.StatusBadRequest,
}

type Handler struct {
	service Service
	members membership.Finder
}

func NewHandler(service Service, members membership.Finder) *Handler {
	return &Handler{service: service, members: members}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/reports/expected", h.handleExpected)
	r.Get("/reports/members", h.handleMembersByStatus)
	r.Get("/reports/dashboard", h.handleDashboard)
	r.Get("/members/{memberID}/status", h.handleMemberStatus)
	r.Get("/members/{memberID}/fee", h.handleMemberFee)
}

func (h *Handler) allMembers(w http.ResponseWriter, r *http.Request) ([]membership.Member, bool) {
	members, err := h.members.FindAll(r.Context())
	if err != nil {
		statuses.Write(w, err)
		return nil, false
	}
	return members, true
}

func (h *Handler) handleExpected(w http.ResponseWriter, r *http.Request) {
	members, ok := h.allMembers(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total_expected": h.service.TotalExpected(members),
		"members":        len(members),
	})
}

// handleMembersByStatus accepts either a member payment status
// (ALL_BILLS_PAID, ...) or a bill status (NOT_PAID, ...).
func (h *Handler) handleMembersByStatus(w http.ResponseWriter, r *http.Request) {
	raw := strings.ToUpper(r.URL.Query().Get("status"))
	if raw == "" {
		httputil.WriteBadRequest(w, "status is required")
		return
	}

	members, ok := h.allMembers(w, r)
	if !ok {
		return
	}
	if status, ok := billing.ParseMemberPaymentStatus(raw); ok {
		httputil.WriteJSON(w, http.StatusOK, h.service.MembersWithStatus(r.Context(), members, status))
		return
	}
	if status, ok := billing.ParseBillingStatus(raw); ok {
		httputil.WriteJSON(w, http.StatusOK, h.service.MembersWithBillStatus(r.Context(), members, status))
		return
	}
	httputil.WriteBadRequest(w, "unknown status "+raw)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	members, ok := h.allMembers(w, r)
	if !ok {
		return
	}
	lines, err := h.service.Dashboard(r.Context(), members, r.URL.Query().Get("filter"))
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lines)
}

func (h *Handler) handleMemberStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	status, err := h.service.StatusOf(r.Context(), id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"member_id": id, "status": status})
}

func (h *Handler) handleMemberFee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	fee, err := h.service.FeeFor(r.Context(), id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"member_id": id, "fee": fee})
}
