package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swimclub/internal/billing"
	"swimclub/internal/eventstore"
)

type stubHistory struct {
	events []eventstore.Event
}

func (s stubHistory) History(context.Context, uuid.UUID) ([]eventstore.Event, error) {
	return s.events, nil
}

func newTestRouter(t *testing.T, history History) (http.Handler, Service, *billing.FixedClock) {
	t.Helper()
	svc, clock := newTestLedger(t)
	r := chi.NewRouter()
	NewHandler(svc, history).Routes(r)
	return r, svc, clock
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerApplyPayment(t *testing.T) {
	router, svc, _ := newTestRouter(t, nil)
	member := uuid.New()
	bill := issue(t, svc, member, 1000)

	rec := do(t, router, http.MethodPost, "/bills/1/payments", `{"amount": 400, "member_id": "`+member.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var outcome billing.PaymentOutcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
	assert.Equal(t, billing.StatusPartiallyPaid, outcome.Status)
	assert.Equal(t, 600.0, outcome.MissingAmount)
	assert.Equal(t, bill.ID, outcome.Payment.BillingID)

	rec = do(t, router, http.MethodPost, "/bills/1/payments", `{"amount": 600, "member_id": "`+member.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	outcome = billing.PaymentOutcome{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
	assert.Equal(t, billing.StatusPaid, outcome.Status)
	require.NotNil(t, outcome.NextBill)
	assert.Equal(t, int64(2), outcome.NextBill.ID)
}

func TestHandlerApplyPaymentErrors(t *testing.T) {
	router, svc, _ := newTestRouter(t, nil)
	member := uuid.New()
	issue(t, svc, member, 1000)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"invalid bill id", "/bills/abc/payments", `{"amount": 1, "member_id": "` + member.String() + `"}`, http.StatusBadRequest},
		{"malformed body", "/bills/1/payments", `{`, http.StatusBadRequest},
		{"missing member", "/bills/1/payments", `{"amount": 1}`, http.StatusBadRequest},
		{"non-positive amount", "/bills/1/payments", `{"amount": 0, "member_id": "` + member.String() + `"}`, http.StatusBadRequest},
		{"unknown bill", "/bills/7/payments", `{"amount": 1, "member_id": "` + member.String() + `"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHandlerReads(t *testing.T) {
	router, svc, _ := newTestRouter(t, nil)
	member := uuid.New()
	issue(t, svc, member, 500)
	_, err := svc.ApplyPayment(context.Background(), 1, 100, member)
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/bills/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var bill billing.Billing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bill))
	assert.Equal(t, 100.0, bill.AmountPaid)

	rec = do(t, router, http.MethodGet, "/bills/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/bills", "")
	var bills []billing.Billing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bills))
	assert.Len(t, bills, 1)

	rec = do(t, router, http.MethodGet, "/members/"+member.String()+"/payments", "")
	var payments []billing.Payment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payments))
	assert.Len(t, payments, 1)

	rec = do(t, router, http.MethodGet, "/payments/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/payments/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/members/"+uuid.New().String()+"/bills", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/members/not-a-uuid/bills", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRefreshOverdue(t *testing.T) {
	router, svc, clock := newTestRouter(t, nil)
	issue(t, svc, uuid.New(), 500)
	clock.Advance(400)

	rec := do(t, router, http.MethodPost, "/bills/refresh-overdue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated": 1}`, rec.Body.String())
}

func TestHandlerHistory(t *testing.T) {
	member := uuid.New()

	router, _, _ := newTestRouter(t, nil)
	rec := do(t, router, http.MethodGet, "/members/"+member.String()+"/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "history is not mounted without a journal")

	router, _, _ = newTestRouter(t, stubHistory{events: []eventstore.Event{{EventType: EventBillIssued, Version: 1}}})
	rec = do(t, router, http.MethodGet, "/members/"+member.String()+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []eventstore.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, EventBillIssued, events[0].EventType)
}
