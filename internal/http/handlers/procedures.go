package handlers

import (
	"context"
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/internal/tenancy"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// CatalogReader lists the procedure catalog.
type CatalogReader interface {
	ListByOrg(ctx context.Context, orgID string) ([]catalog.Procedure, error)
}

// ProceduresHandler serves the read-only procedure catalog.
type ProceduresHandler struct {
	cat    CatalogReader
	logger *logging.Logger
}

// NewProceduresHandler creates the handler.
func NewProceduresHandler(cat CatalogReader, logger *logging.Logger) *ProceduresHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProceduresHandler{cat: cat, logger: logger}
}

// List handles GET /api/v1/procedures.
func (h *ProceduresHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing org context")
		return
	}
	procs, err := h.cat.ListByOrg(r.Context(), orgID)
	if err != nil {
		h.logger.Error("catalog list failed", "org_id", orgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if procs == nil {
		procs = []catalog.Procedure{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"procedures": procs})
}
