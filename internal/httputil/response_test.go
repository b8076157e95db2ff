package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMissing = errors.New("missing")
	errBad     = errors.New("bad")
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]int{"id": 1}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id": 1}`, rec.Body.String())
}

func TestStatusMap(t *testing.T) {
	statuses := StatusMap{
		errMissing: http.StatusNotFound,
		errBad:     http.StatusBadRequest,
	}

	assert.Equal(t, http.StatusNotFound, statuses.Status(fmt.Errorf("bill 3: %w", errMissing)))
	assert.Equal(t, http.StatusBadRequest, statuses.Status(errBad))
	assert.Equal(t, http.StatusInternalServerError, statuses.Status(errors.New("boom")))

	rec := httptest.NewRecorder()
	statuses.Write(rec, fmt.Errorf("bill 3: %w", errMissing))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "bill 3: missing"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	statuses.Write(rec, errors.New("pq: connection refused to 10.0.0.5"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal Server Error"}`, rec.Body.String())
}

func TestMemberID(t *testing.T) {
	id := uuid.New()
	r := chi.NewRouter()
	r.Get("/members/{memberID}", func(w http.ResponseWriter, r *http.Request) {
		got, ok := MemberID(w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"id": got.String()})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/42", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "invalid member ID"}`, rec.Body.String())
}
