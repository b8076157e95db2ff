// internal/membership/handler.go
package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"swimclub/internal/httputil"
)

var statuses = httputil.StatusMap{
	ErrMemberNotFound: http.StatusNotFound,
	ErrDuplicateEmail: http.StatusConflict,
	ErrInvalidMember:  http.StatusBadRequest,
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the member directory reads and removal. Registration is
// served separately because it also issues the first bill.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/members", h.handleListMembers)
	r.Get("/members/{memberID}", h.handleGetMember)
	r.Delete("/members/{memberID}", h.handleDeleteMember)
}

type memberView struct {
	Member
	Description string `json:"description"`
}

func view(m Member) memberView {
	return memberView{Member: m, Description: Describe(m)}
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.FindAll(r.Context())
	if err != nil {
		statuses.Write(w, err)
		return
	}
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, view(m))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	member, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view(*member))
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.MemberID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		statuses.Write(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
