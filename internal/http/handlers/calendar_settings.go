package handlers

import "net/http"

// CalendarSettings is the client bootstrap payload: the grid geometry the
// slot mapper renders against, plus the debounce the booking form applies
// before firing an availability check.
type CalendarSettings struct {
	ColumnWidth          int `json:"column_width"`
	RowHeight            int `json:"row_height"`
	HeaderOffset         int `json:"header_offset"`
	SlotMinutes          int `json:"slot_minutes"`
	ValidationDebounceMS int `json:"validation_debounce_ms"`
}

// CalendarSettingsHandler serves the calendar settings snapshot. The values
// are fixed at startup from configuration.
type CalendarSettingsHandler struct {
	settings CalendarSettings
}

// NewCalendarSettingsHandler creates the handler.
func NewCalendarSettingsHandler(settings CalendarSettings) *CalendarSettingsHandler {
	return &CalendarSettingsHandler{settings: settings}
}

// Get handles GET /api/v1/calendar/settings.
func (h *CalendarSettingsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settings)
}
