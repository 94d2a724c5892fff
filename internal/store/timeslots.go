package store

import "context"

const timeslotColumns = "id, field_id, start_time, end_time, active"

func scanTimeSlot(row interface{ Scan(...any) error }) (TimeSlot, error) {
	var ts TimeSlot
	err := row.Scan(&ts.ID, &ts.FieldID, &ts.StartTime, &ts.EndTime, &ts.Active)
	return ts, err
}

func (q *Queries) GetTimeSlot(ctx context.Context, id int64) (TimeSlot, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+timeslotColumns+" FROM timeslots WHERE id = ?", id)
	return scanTimeSlot(row)
}

func (q *Queries) queryTimeSlots(ctx context.Context, query string, args ...any) ([]TimeSlot, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []TimeSlot
	for rows.Next() {
		ts, err := scanTimeSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, ts)
	}
	return slots, rows.Err()
}

func (q *Queries) ListTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	return q.queryTimeSlots(ctx, "SELECT "+timeslotColumns+" FROM timeslots ORDER BY field_id, start_time")
}

func (q *Queries) ListTimeSlotsByField(ctx context.Context, fieldID int64) ([]TimeSlot, error) {
	return q.queryTimeSlots(ctx,
		"SELECT "+timeslotColumns+" FROM timeslots WHERE field_id = ? ORDER BY start_time", fieldID)
}

type CreateTimeSlotParams struct {
	FieldID   int64
	StartTime string
	EndTime   string
	Active    bool
}

func (q *Queries) CreateTimeSlot(ctx context.Context, arg CreateTimeSlotParams) (TimeSlot, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO timeslots (field_id, start_time, end_time, active) VALUES (?, ?, ?, ?)",
		arg.FieldID, arg.StartTime, arg.EndTime, arg.Active)
	if err != nil {
		return TimeSlot{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return TimeSlot{}, err
	}
	return q.GetTimeSlot(ctx, id)
}

func (q *Queries) SetTimeSlotActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE timeslots SET active = ? WHERE id = ?", active, id)
	return err
}

// AddTimeSlotOverlap records that two slots intersect in time. The relation
// is symmetric, so both directions are stored.
func (q *Queries) AddTimeSlotOverlap(ctx context.Context, a, b int64) error {
	if _, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO timeslot_overlaps (timeslot_id, overlaps_id) VALUES (?, ?)", a, b); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO timeslot_overlaps (timeslot_id, overlaps_id) VALUES (?, ?)", b, a)
	return err
}

// ListOverlappingActiveSlots returns the active slots at a field whose
// [start, end) interval intersects the given one. HH:MM strings compare
// correctly as text.
func (q *Queries) ListOverlappingActiveSlots(ctx context.Context, fieldID int64, startTime, endTime string) ([]TimeSlot, error) {
	return q.queryTimeSlots(ctx,
		"SELECT "+timeslotColumns+" FROM timeslots WHERE active = 1 AND field_id = ? AND start_time < ? AND end_time > ?",
		fieldID, endTime, startTime)
}

func (q *Queries) ListInactiveTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	return q.queryTimeSlots(ctx, "SELECT "+timeslotColumns+" FROM timeslots WHERE active = 0")
}

func (q *Queries) CountTimeSlotReservations(ctx context.Context, timeslotID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE timeslot_id = ?", timeslotID).Scan(&n)
	return n, err
}

func (q *Queries) DeleteTimeSlot(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM timeslots WHERE id = ?", id)
	return err
}
