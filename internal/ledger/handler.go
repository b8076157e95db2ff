// internal/ledger/handler.go
package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"swimclub/internal/billing"
	"swimclub/internal/httputil"
)

var statuses = httputil.StatusMap{
	billing.ErrInvalidAmount:   http.StatusBadRequest,
	billing.ErrInvalidBilling:  http.StatusBadRequest,
	billing.ErrBillNotFound:    http.StatusNotFound,
	billing.ErrPaymentNotFound: http.StatusNotFound,
	billing.ErrMemberNotFound:  http.StatusNotFound,
}

type Handler struct {
	service Service
	history History
}

// NewHandler serves the ledger. history may be nil, in which case the
// history route is not mounted.
func NewHandler(service Service, history History) *Handler {
	return &Handler{service: service, history: history}
}

// Routes mounts the bill and payment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/bills", h.handleListBills)
	r.Post("/bills/refresh-overdue", h.handleRefreshOverdue)
	r.Get("/bills/{billID}", h.handleGetBill)
	r.Post("/bills/{billID}/payments", h.handleApplyPayment)
	r.Get("/payments", h.handleListPayments)
	r.Get("/payments/{paymentID}", h.handleGetPayment)

	r.Get("/members/{memberID}/bills", h.handleMemberBills)
	r.Get("/members/{memberID}/payments", h.handleMemberPayments)
	if h.history != nil {
		r.Get("/members/{memberID}/history", h.handleMemberHistory)
	}
}

type paymentRequest struct {
	Amount   float64   `json:"amount"`
	MemberID uuid.UUID `json:"member_id"`
}

func (h *Handler) handleListBills(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.FindAllBills())
}

func (h *Handler) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, ok := billID(w, r)
	if !ok {
		return
	}
	bill, err := h.service.FindBill(id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bill)
}

func (h *Handler) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := billID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.MemberID == uuid.Nil {
		httputil.WriteBadRequest(w, "member_id is required")
		return
	}

	outcome, err := h.service.ApplyPayment(r.Context(), id, req.Amount, req.MemberID)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, outcome)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.FindAllPayments())
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequest(w, "invalid payment ID")
		return
	}
	payment, err := h.service.FindPayment(id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleRefreshOverdue(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.RefreshOverdue(r.Context())
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) handleMemberBills(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.FindBillsByMember(id))
}

func (h *Handler) handleMemberPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.FindPaymentsByMember(id))
}

func (h *Handler) handleMemberHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	events, err := h.history.History(r.Context(), id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func billID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequest(w, "invalid bill ID")
		return 0, false
	}
	return id, true
}
