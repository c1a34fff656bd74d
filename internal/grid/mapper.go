// Package grid maps between calendar-grid pixel geometry and (day, time)
// coordinates. Purely geometric; it knows nothing about conflicts.
package grid

import "time"

// Geometry parameterizes the weekly calendar grid: column width and row
// height in pixels, the header band above the first slot row, the ordered
// displayed days, and the ordered displayed slot times (offsets from
// midnight).
type Geometry struct {
	ColumnWidth  int
	RowHeight    int
	HeaderOffset int
	Days         []time.Time
	SlotTimes    []time.Duration
}

// Slot is one (day, time) cell on the grid.
type Slot struct {
	DayIndex  int
	SlotIndex int
}

// Point is a pixel position relative to the grid origin.
type Point struct {
	X int
	Y int
}

// Mapper converts between pixel positions and slots for one rendered grid.
// Stateless; safe for concurrent use.
type Mapper struct {
	geo Geometry
}

// NewMapper creates a mapper for the given geometry.
func NewMapper(geo Geometry) *Mapper {
	return &Mapper{geo: geo}
}

// PositionToSlot resolves a pixel position to the slot under it. Returns
// false when the position is outside the displayed grid; a drop there is a
// no-op, not an error.
func (m *Mapper) PositionToSlot(x, y int) (Slot, bool) {
	if m.geo.ColumnWidth <= 0 || m.geo.RowHeight <= 0 {
		return Slot{}, false
	}
	if x < 0 || y < m.geo.HeaderOffset {
		return Slot{}, false
	}
	dayIdx := x / m.geo.ColumnWidth
	slotIdx := (y - m.geo.HeaderOffset) / m.geo.RowHeight
	if dayIdx >= len(m.geo.Days) || slotIdx >= len(m.geo.SlotTimes) {
		return Slot{}, false
	}
	return Slot{DayIndex: dayIdx, SlotIndex: slotIdx}, true
}

// SlotToPosition returns the top-left pixel of a slot's cell. Inverse of
// PositionToSlot for any in-range slot.
func (m *Mapper) SlotToPosition(s Slot) Point {
	return Point{
		X: s.DayIndex * m.geo.ColumnWidth,
		Y: m.geo.HeaderOffset + s.SlotIndex*m.geo.RowHeight,
	}
}

// SlotStart returns the absolute instant a slot begins.
func (m *Mapper) SlotStart(s Slot) time.Time {
	day := m.geo.Days[s.DayIndex]
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(m.geo.SlotTimes[s.SlotIndex])
}

// SlotForTime finds the grid slot a booking start falls in. Returns false
// when the instant is outside the displayed days or slot range.
func (m *Mapper) SlotForTime(t time.Time) (Slot, bool) {
	for di, day := range m.geo.Days {
		local := t.In(day.Location())
		if day.Year() != local.Year() || day.YearDay() != local.YearDay() {
			continue
		}
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		offset := local.Sub(midnight)
		for si, slotTime := range m.geo.SlotTimes {
			if slotTime == offset {
				return Slot{DayIndex: di, SlotIndex: si}, true
			}
		}
		return Slot{}, false
	}
	return Slot{}, false
}
