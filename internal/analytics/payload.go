// Package analytics delivers resolved circulation events to reporting
// backends: the process log, Kafka, or a Postgres outbox relayed to Kafka.
package analytics

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"circulation/internal/odl/models"
)

// Payload is the JSON document published for one circulation event.
type Payload struct {
	ID                    string    `json:"id"`
	Type                  string    `json:"type"`
	OccurredAt            time.Time `json:"occurred_at"`
	LibraryID             int64     `json:"library_id"`
	LibraryShortName      string    `json:"library_short_name"`
	LicensePoolID         int64     `json:"license_pool_id"`
	LicensePoolIdentifier string    `json:"license_pool_identifier"`
	CollectionID          int64     `json:"collection_id"`
	PatronID              *int64    `json:"patron_id,omitempty"`
	LicensesOwned         int       `json:"licenses_owned"`
	LicensesAvailable     int       `json:"licenses_available"`
	LicensesReserved      int       `json:"licenses_reserved"`
	PatronsInHoldQueue    int       `json:"patrons_in_hold_queue"`
}

// NewPayload snapshots the event with a fresh ID.
func NewPayload(e models.ResolvedEvent) Payload {
	p := Payload{
		ID:                    uuid.NewString(),
		Type:                  string(e.Type),
		OccurredAt:            e.OccurredAt.UTC(),
		LibraryID:             e.Library.ID,
		LibraryShortName:      e.Library.ShortName,
		LicensePoolID:         e.LicensePool.ID,
		LicensePoolIdentifier: e.LicensePool.Identifier,
		CollectionID:          e.LicensePool.CollectionID,
		LicensesOwned:         e.LicensePool.LicensesOwned,
		LicensesAvailable:     e.LicensePool.LicensesAvailable,
		LicensesReserved:      e.LicensePool.LicensesReserved,
		PatronsInHoldQueue:    e.LicensePool.PatronsInHoldQueue,
	}
	if e.Patron != nil {
		id := e.Patron.ID
		p.PatronID = &id
	}
	return p
}

// Key partitions events by license pool so one title's events stay ordered.
func (p Payload) Key() string {
	return strconv.FormatInt(p.LicensePoolID, 10)
}

// Marshal encodes the payload.
func (p Payload) Marshal() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(p)
}
