package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
	"github.com/clinicdesk/clinicdesk/internal/tenancy"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// BookingService is the write/read surface behind the booking endpoints.
type BookingService interface {
	Create(ctx context.Context, orgID string, input schedule.CreateInput) (*schedule.Booking, error)
	Update(ctx context.Context, orgID string, id uuid.UUID, input schedule.UpdateInput) (*schedule.Booking, error)
	Get(ctx context.Context, orgID string, id uuid.UUID) (*schedule.Booking, error)
	ListForProviderWindow(ctx context.Context, orgID string, providerID uuid.UUID, from, to time.Time) ([]schedule.Booking, error)
}

// BookingsHandler serves booking CRUD for the calendar views.
type BookingsHandler struct {
	svc    BookingService
	logger *logging.Logger
}

// NewBookingsHandler creates the handler.
func NewBookingsHandler(svc BookingService, logger *logging.Logger) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	PatientID    uuid.UUID   `json:"patient_id"`
	ProviderID   uuid.UUID   `json:"provider_id"`
	ProcedureIDs []uuid.UUID `json:"procedure_ids"`
	StartTime    time.Time   `json:"start_time"`
	Notes        string      `json:"notes,omitempty"`
}

type updateBookingRequest struct {
	StartTime    *time.Time  `json:"start_time,omitempty"`
	Status       *string     `json:"status,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	ProcedureIDs []uuid.UUID `json:"procedure_ids,omitempty"`
}

// Create handles POST /api/v1/bookings.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil || req.StartTime.IsZero() || len(req.ProcedureIDs) == 0 {
		writeError(w, http.StatusBadRequest, "patient_id, provider_id, start_time and procedure_ids are required")
		return
	}

	b, err := h.svc.Create(r.Context(), orgID, schedule.CreateInput{
		PatientID:    req.PatientID,
		ProviderID:   req.ProviderID,
		ProcedureIDs: req.ProcedureIDs,
		StartTime:    req.StartTime,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Update handles PATCH /api/v1/bookings/{id}. Fields are optional; a drag
// reschedule sends only start_time.
func (h *BookingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := schedule.UpdateInput{
		StartTime:    req.StartTime,
		Notes:        req.Notes,
		ProcedureIDs: req.ProcedureIDs,
	}
	if req.Status != nil {
		status := schedule.Status(*req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		input.Status = &status
	}

	b, err := h.svc.Update(r.Context(), orgID, id, input)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Get handles GET /api/v1/bookings/{id}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	b, err := h.svc.Get(r.Context(), orgID, id)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListForProvider handles GET /api/v1/providers/{id}/bookings?from=&to=.
func (h *BookingsHandler) ListForProvider(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}
	providerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil || !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	bookings, err := h.svc.ListForProviderWindow(r.Context(), orgID, providerID, from, to)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	if bookings == nil {
		bookings = []schedule.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *BookingsHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, schedule.ErrCommitConflict):
		writeError(w, http.StatusConflict, "slot was taken by another session, pick a different time")
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "status change not allowed")
	case errors.Is(err, catalog.ErrUnknownProcedure):
		writeError(w, http.StatusUnprocessableEntity, "unknown procedure selected")
	default:
		h.logger.Error("booking request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
