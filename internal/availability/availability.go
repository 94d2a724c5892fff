// Package availability computes which timeslots a team may legally book on
// a date, and re-checks those rules at commit time. The listing shown during
// the wizard is advisory only; CheckConflicts inside the commit transaction
// is the authoritative race backstop.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
)

var (
	// ErrSlotTaken means an active reservation already occupies the
	// (date, timeslot) pair.
	ErrSlotTaken = errors.New("timeslot already reserved")
	// ErrTournamentConflict means an active tournament at the field covers
	// the date.
	ErrTournamentConflict = errors.New("tournament in progress at this field")
)

type Resolver struct {
	queries  *store.Queries
	settings *settings.Store
}

func NewResolver(queries *store.Queries, settingsStore *settings.Store) *Resolver {
	return &Resolver{queries: queries, settings: settingsStore}
}

// WithQueries rebinds the resolver to another query handle, typically one
// bound to a transaction.
func (r *Resolver) WithQueries(queries *store.Queries) *Resolver {
	return &Resolver{queries: queries, settings: r.settings}
}

// Query describes one availability lookup. A zero TeamID skips the
// field-authorization rule (superusers may book anywhere). KeepTimeslotID,
// when non-zero, is always included so an edit can keep its current slot.
type Query struct {
	TeamID         int64
	Date           string
	KeepTimeslotID int64
}

// Available returns the bookable slots for the query, ordered by field name
// (numeric-aware, so "Field 2" sorts before "Field 10") then start time.
func (r *Resolver) Available(ctx context.Context, q Query) ([]store.AvailableSlot, error) {
	slots, err := r.queries.ListAvailableTimeSlots(ctx, q.TeamID, q.Date, q.KeepTimeslotID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].FieldName != slots[j].FieldName {
			return naturalLess(slots[i].FieldName, slots[j].FieldName)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots, nil
}

// naturalLess compares strings with embedded digit runs as numbers.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			aNum, aRest := splitDigits(a)
			bNum, bRest := splitDigits(b)
			if aNum != bNum {
				return lessNumeric(aNum, bNum)
			}
			a, b = aRest, bRest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// lessNumeric compares two digit strings by value without overflow concerns.
func lessNumeric(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// FieldSlots groups available slots under their field for presentation.
type FieldSlots struct {
	FieldID   int64
	FieldName string
	Slots     []store.AvailableSlot
}

// GroupByField buckets slots by field, preserving the query order.
func GroupByField(slots []store.AvailableSlot) []FieldSlots {
	var grouped []FieldSlots
	for _, slot := range slots {
		if n := len(grouped); n > 0 && grouped[n-1].FieldID == slot.FieldID {
			grouped[n-1].Slots = append(grouped[n-1].Slots, slot)
			continue
		}
		grouped = append(grouped, FieldSlots{
			FieldID:   slot.FieldID,
			FieldName: slot.FieldName,
			Slots:     []store.AvailableSlot{slot},
		})
	}
	return grouped
}

// CreateCustomSlot creates a one-off inactive timeslot at a field and links
// it to every active slot there whose interval intersects [start, end).
// The overlap links are what let the availability rules block standard-slot
// bookings that would collide with this ad-hoc one.
func (r *Resolver) CreateCustomSlot(ctx context.Context, fieldID int64, startTime, endTime string) (store.TimeSlot, error) {
	if startTime >= endTime {
		return store.TimeSlot{}, fmt.Errorf("start time %s must be before end time %s", startTime, endTime)
	}

	slot, err := r.queries.CreateTimeSlot(ctx, store.CreateTimeSlotParams{
		FieldID:   fieldID,
		StartTime: startTime,
		EndTime:   endTime,
		Active:    false,
	})
	if err != nil {
		return store.TimeSlot{}, fmt.Errorf("create custom timeslot: %w", err)
	}

	overlapping, err := r.queries.ListOverlappingActiveSlots(ctx, fieldID, startTime, endTime)
	if err != nil {
		return store.TimeSlot{}, fmt.Errorf("find overlapping timeslots: %w", err)
	}
	for _, other := range overlapping {
		if err := r.queries.AddTimeSlotOverlap(ctx, slot.ID, other.ID); err != nil {
			return store.TimeSlot{}, fmt.Errorf("link overlapping timeslot: %w", err)
		}
	}

	return slot, nil
}

// CheckConflicts re-validates a booking immediately before it is written:
// no other active reservation on (date, timeslot), and no active tournament
// covering the date at the field. excludeReservationID skips the reservation
// being edited.
func (r *Resolver) CheckConflicts(ctx context.Context, date string, timeslotID, fieldID, excludeReservationID int64) error {
	taken, err := r.queries.ActiveReservationExists(ctx, date, timeslotID, excludeReservationID)
	if err != nil {
		return fmt.Errorf("check reservation conflict: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}

	conflict, err := r.queries.TournamentConflictExists(ctx, date, fieldID)
	if err != nil {
		return fmt.Errorf("check tournament conflict: %w", err)
	}
	if conflict {
		return ErrTournamentConflict
	}
	return nil
}

// ReservationBlocked reports whether the weekly block window forbids
// creating or editing a reservation on resvDate. Once the window opens
// (Monday + BLOCK_START_DAY days at BLOCK_START_TIME), dates before the next
// Monday are locked for non-superusers.
func (r *Resolver) ReservationBlocked(ctx context.Context, now time.Time, resvDate time.Time, superuser bool) bool {
	if superuser {
		return false
	}

	dayDelta := r.settings.GetInt(ctx, settings.KeyBlockStartDay, 0)
	startClock := r.settings.Get(ctx, settings.KeyBlockStartTime, settings.DefaultBlockStartTime)
	clock, err := time.Parse("15:04:05", startClock)
	if err != nil {
		clock, _ = time.Parse("15:04:05", settings.DefaultBlockStartTime)
	}

	monday := dates.MondayAtOrBefore(now)
	blockStart := monday.AddDate(0, 0, dayDelta).
		Add(time.Duration(clock.Hour())*time.Hour +
			time.Duration(clock.Minute())*time.Minute +
			time.Duration(clock.Second())*time.Second)

	nextMonday := dates.NextMonday(now)

	return dates.Day(resvDate).Before(nextMonday) && !now.Before(blockStart)
}
