package models

import "time"

// EventType names a circulation event reported to analytics.
type EventType string

const (
	EventHoldReady   EventType = "circulation_manager_hold_ready"
	EventHoldExpired EventType = "circulation_manager_hold_expired"
)

// CirculationEvent records a hold state transition by reference. It is
// produced inside a locked transaction and consumed once, after commit, by the
// event collector.
type CirculationEvent struct {
	Type          EventType
	LibraryID     int64
	LicensePoolID int64
	PatronID      int64
	HoldID        int64
	OccurredAt    time.Time
}

// NewHoldEvent builds an event for a transition of hold h.
func NewHoldEvent(eventType EventType, h Hold, at time.Time) CirculationEvent {
	return CirculationEvent{
		Type:          eventType,
		LibraryID:     h.LibraryID,
		LicensePoolID: h.LicensePoolID,
		PatronID:      h.PatronID,
		HoldID:        h.ID,
		OccurredAt:    at,
	}
}

// ResolvedEvent is a CirculationEvent with its entities re-loaded in the
// delivering transaction. Patron is nil when the patron row is gone.
type ResolvedEvent struct {
	Type        EventType
	Library     Library
	LicensePool LicensePool
	Patron      *Patron
	OccurredAt  time.Time
}
