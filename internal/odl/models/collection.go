package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrReservationPeriodNotConfigured stops a collection's pass before any write.
var ErrReservationPeriodNotConfigured = errors.New("reservation period not configured")

// Protocols handled by the ODL reconciliation tasks.
const (
	ProtocolODL  = "ODL"
	ProtocolODL2 = "ODL 2.0"
)

// Collection is a distributor integration owned by one or more libraries.
type Collection struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Protocol string `db:"protocol"`
	// DefaultReservationPeriod is the number of whole days a ready hold stays reserved.
	DefaultReservationPeriod *int `db:"default_reservation_period"`
}

// ReservationPeriod converts the configured day count into a duration.
func (c Collection) ReservationPeriod() (time.Duration, error) {
	if c.DefaultReservationPeriod == nil {
		return 0, fmt.Errorf("collection %d: %w", c.ID, ErrReservationPeriodNotConfigured)
	}
	days := *c.DefaultReservationPeriod
	if days <= 0 {
		return 0, fmt.Errorf("collection %d: non-positive period %d: %w", c.ID, days, ErrReservationPeriodNotConfigured)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// Library owns patrons and subscribes to collections.
type Library struct {
	ID        int64  `db:"id"`
	ShortName string `db:"short_name"`
	Name      string `db:"name"`
}

// Patron is a library user who can place holds.
type Patron struct {
	ID                      int64  `db:"id"`
	LibraryID               int64  `db:"library_id"`
	AuthorizationIdentifier string `db:"authorization_identifier"`
}
