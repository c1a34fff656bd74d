package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/tenancy"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// AvailabilityChecker is the service behind the availability endpoint.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, req availability.Request) (availability.Decision, error)
}

// AvailabilityHandler serves the advisory slot check consumed by the booking
// form and the drag orchestrator.
type AvailabilityHandler struct {
	svc     AvailabilityChecker
	timeout time.Duration
	logger  *logging.Logger
}

// NewAvailabilityHandler creates the handler.
func NewAvailabilityHandler(svc AvailabilityChecker, timeout time.Duration, logger *logging.Logger) *AvailabilityHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{svc: svc, timeout: timeout, logger: logger}
}

type availabilityRequest struct {
	ProviderID       uuid.UUID   `json:"provider_id"`
	StartTime        time.Time   `json:"start_time"`
	ProcedureIDs     []uuid.UUID `json:"procedure_ids"`
	ExcludeBookingID uuid.UUID   `json:"exclude_booking_id,omitempty"`
}

type availabilityResponse struct {
	Available       bool   `json:"available"`
	ConflictMessage string `json:"conflict_message,omitempty"`
}

// Check handles POST /api/v1/availability/check.
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProviderID == uuid.Nil || req.StartTime.IsZero() || len(req.ProcedureIDs) == 0 {
		writeError(w, http.StatusBadRequest, "provider_id, start_time and procedure_ids are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dec, err := h.svc.CheckAvailability(ctx, availability.Request{
		OrgID:            orgID,
		ProviderID:       req.ProviderID,
		StartTime:        req.StartTime,
		ProcedureIDs:     req.ProcedureIDs,
		ExcludeBookingID: req.ExcludeBookingID,
	})
	switch {
	case errors.Is(err, catalog.ErrUnknownProcedure):
		writeError(w, http.StatusUnprocessableEntity, "unknown procedure selected")
		return
	case errors.Is(err, availability.ErrAvailabilityUnknown):
		// Fail closed: never report a slot as free when the check failed.
		writeError(w, http.StatusServiceUnavailable, "could not verify availability, try again")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		Available:       dec.Available,
		ConflictMessage: dec.ConflictMessage,
	})
}
