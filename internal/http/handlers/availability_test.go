package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/tenancy"
)

type stubChecker struct {
	decision availability.Decision
	err      error
	lastReq  availability.Request
}

func (s *stubChecker) CheckAvailability(_ context.Context, req availability.Request) (availability.Decision, error) {
	s.lastReq = req
	return s.decision, s.err
}

func postAvailability(t *testing.T, h *AvailabilityHandler, orgID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/availability/check", bytes.NewReader(payload))
	if orgID != "" {
		req = req.WithContext(tenancy.WithOrgID(req.Context(), orgID))
	}
	rec := httptest.NewRecorder()
	h.Check(rec, req)
	return rec
}

func validBody() map[string]any {
	return map[string]any{
		"provider_id":   uuid.New().String(),
		"start_time":    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"procedure_ids": []string{uuid.New().String()},
	}
}

func TestAvailabilityCheckAvailable(t *testing.T) {
	checker := &stubChecker{decision: availability.Decision{Available: true}}
	h := NewAvailabilityHandler(checker, time.Second, nil)

	rec := postAvailability(t, h, "org-1", validBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	assert.Empty(t, resp.ConflictMessage)
	assert.Equal(t, "org-1", checker.lastReq.OrgID)
}

func TestAvailabilityCheckConflictIsStillHTTP200(t *testing.T) {
	checker := &stubChecker{decision: availability.Decision{
		ConflictMessage: "provider already booked 10:00–11:00",
	}}
	h := NewAvailabilityHandler(checker, time.Second, nil)

	rec := postAvailability(t, h, "org-1", validBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Equal(t, "provider already booked 10:00–11:00", resp.ConflictMessage)
}

func TestAvailabilityCheckFailsClosed(t *testing.T) {
	checker := &stubChecker{err: availability.ErrAvailabilityUnknown}
	h := NewAvailabilityHandler(checker, time.Second, nil)

	rec := postAvailability(t, h, "org-1", validBody())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not verify availability")
}

func TestAvailabilityCheckUnknownProcedure(t *testing.T) {
	checker := &stubChecker{err: catalog.ErrUnknownProcedure}
	h := NewAvailabilityHandler(checker, time.Second, nil)

	rec := postAvailability(t, h, "org-1", validBody())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAvailabilityCheckValidation(t *testing.T) {
	checker := &stubChecker{decision: availability.Decision{Available: true}}
	h := NewAvailabilityHandler(checker, time.Second, nil)

	t.Run("missing org context", func(t *testing.T) {
		rec := postAvailability(t, h, "", validBody())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing provider", func(t *testing.T) {
		body := validBody()
		delete(body, "provider_id")
		rec := postAvailability(t, h, "org-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty procedures", func(t *testing.T) {
		body := validBody()
		body["procedure_ids"] = []string{}
		rec := postAvailability(t, h, "org-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/availability/check", bytes.NewReader([]byte("{")))
		req = req.WithContext(tenancy.WithOrgID(req.Context(), "org-1"))
		rec := httptest.NewRecorder()
		h.Check(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
