// Package swap lets a superuser exchange schedule assignments between
// reservations. The selected reservations' (date, timeslot) pairs form a
// fixed pool; every reservation must end up on exactly one pair from that
// pool, so the overall schedule occupancy is unchanged.
package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

// Assignment places one reservation onto a slot drawn from the pool.
type Assignment struct {
	ReservationID int64
	Date          string
	TimeslotID    int64
	FieldID       int64
}

// Change records one applied move for auditing and notification.
type Change struct {
	Before store.ReservationDetail
	After  Assignment
}

var (
	ErrNotBijective   = errors.New("assignments must redistribute exactly the selected slots")
	ErrUnknownTarget  = errors.New("assignment references a reservation outside the selection")
	ErrMissingTargets = errors.New("every selected reservation needs an assignment")
)

type Exchanger struct {
	db *db.DB
}

func NewExchanger(database *db.DB) *Exchanger {
	return &Exchanger{db: database}
}

type slotKey struct {
	date       string
	timeslotID int64
}

// Exchange validates that the assignments are a bijection over the selected
// reservations' slots and applies them in one transaction. Assignments that
// leave a reservation on its current slot are validated but not rewritten.
func (e *Exchanger) Exchange(ctx context.Context, assignments []Assignment, actor store.Team) ([]Change, error) {
	if len(assignments) < 2 {
		return nil, errors.New("need at least two reservations to swap")
	}

	ids := make([]int64, 0, len(assignments))
	byID := make(map[int64]Assignment, len(assignments))
	for _, a := range assignments {
		if _, dup := byID[a.ReservationID]; dup {
			return nil, fmt.Errorf("reservation %d assigned twice", a.ReservationID)
		}
		byID[a.ReservationID] = a
		ids = append(ids, a.ReservationID)
	}

	var changes []Change
	err := e.db.RunInTx(ctx, func(txdb *db.DB) error {
		q := txdb.Queries

		selected, err := q.ListReservationsByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load reservations: %w", err)
		}
		if len(selected) != len(assignments) {
			return ErrMissingTargets
		}

		// The pool of slots being redistributed is the selection's own slots.
		pool := make(map[slotKey]int, len(selected))
		fields := make(map[slotKey]int64, len(selected))
		for _, r := range selected {
			key := slotKey{date: r.Date, timeslotID: r.TimeslotID}
			pool[key]++
			fields[key] = r.FieldID
		}
		for _, a := range assignments {
			key := slotKey{date: a.Date, timeslotID: a.TimeslotID}
			if pool[key] == 0 {
				return ErrNotBijective
			}
			pool[key]--
			if fieldID, ok := fields[key]; !ok || fieldID != a.FieldID {
				return ErrNotBijective
			}
		}

		for _, r := range selected {
			target, ok := byID[r.ID]
			if !ok {
				return ErrUnknownTarget
			}
			if target.Date == r.Date && target.TimeslotID == r.TimeslotID {
				continue
			}
			if err := q.UpdateReservationSlot(ctx, r.ID, target.Date, target.TimeslotID, target.FieldID); err != nil {
				return fmt.Errorf("move reservation %d: %w", r.ID, err)
			}
			if err := q.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
				ActorID:   actor.ID,
				ActorName: actor.FullName(),
				Action:    store.AuditChange,
				Object:    fmt.Sprintf("reservation %d", r.ID),
				Message:   fmt.Sprintf("swapped from %s slot %d to %s slot %d", r.Date, r.TimeslotID, target.Date, target.TimeslotID),
			}); err != nil {
				return fmt.Errorf("audit swap: %w", err)
			}
			changes = append(changes, Change{Before: r, After: target})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
