package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReminderBand selects scheduled appointments starting in (After, Until] that
// still miss at least one of Keys. The first band of a scan includes After itself.
type ReminderBand struct {
	After        time.Time
	Until        time.Time
	IncludeAfter bool
	Keys         []string
}

func (b ReminderBand) contains(start time.Time) bool {
	if start.After(b.Until) {
		return false
	}
	if b.IncludeAfter {
		return !start.Before(b.After)
	}
	return start.After(b.After)
}

// ReminderScan is one page of the reminder scan: appointments matching any band,
// ordered by (start_time, id), strictly after the cursor when one is set.
type ReminderScan struct {
	Bands       []ReminderBand
	CursorStart time.Time
	CursorID    uuid.UUID
	Limit       int
}

func (q ReminderScan) HasCursor() bool {
	return q.CursorID != uuid.Nil
}

// Matches reports whether a is pending in q, ignoring the cursor and limit
func (q ReminderScan) Matches(a *Appointment) bool {
	if !a.IsScheduled() {
		return false
	}
	for _, band := range q.Bands {
		if !band.contains(a.StartTime) {
			continue
		}
		for _, key := range band.Keys {
			if !a.HasReminder(key) {
				return true
			}
		}
	}
	return false
}

// AfterCursor reports whether a sorts after the cursor
func (q ReminderScan) AfterCursor(a *Appointment) bool {
	if !q.HasCursor() {
		return true
	}
	if !a.StartTime.Equal(q.CursorStart) {
		return a.StartTime.After(q.CursorStart)
	}
	return a.ID.String() > q.CursorID.String()
}
