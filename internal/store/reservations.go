package store

import (
	"context"
	"fmt"
	"strings"
)

const reservationColumns = "id, game_number, game_opponent, date, approved, active, team_id, field_id, gametype_id, timeslot_id, age, gender"

func scanReservation(row interface{ Scan(...any) error }) (Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.GameNumber, &r.GameOpponent, &r.Date, &r.Approved, &r.Active,
		&r.TeamID, &r.FieldID, &r.GametypeID, &r.TimeslotID, &r.Age, &r.Gender)
	return r, err
}

func (q *Queries) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	return scanReservation(row)
}

const reservationDetailQuery = `
SELECT r.id, r.game_number, r.game_opponent, r.date, r.approved, r.active,
       r.team_id, r.field_id, r.gametype_id, r.timeslot_id, r.age, r.gender,
       t.name, t.description, f.name, g.name, ts.start_time, ts.end_time
FROM reservations r
JOIN teams t ON t.id = r.team_id
JOIN fields f ON f.id = r.field_id
JOIN gametypes g ON g.id = r.gametype_id
JOIN timeslots ts ON ts.id = r.timeslot_id`

func scanReservationDetail(row interface{ Scan(...any) error }) (ReservationDetail, error) {
	var d ReservationDetail
	err := row.Scan(&d.ID, &d.GameNumber, &d.GameOpponent, &d.Date, &d.Approved, &d.Active,
		&d.TeamID, &d.FieldID, &d.GametypeID, &d.TimeslotID, &d.Age, &d.Gender,
		&d.TeamName, &d.TeamDescription, &d.FieldName, &d.GametypeName, &d.StartTime, &d.EndTime)
	return d, err
}

func (q *Queries) GetReservationDetail(ctx context.Context, id int64) (ReservationDetail, error) {
	row := q.db.QueryRowContext(ctx, reservationDetailQuery+" WHERE r.id = ?", id)
	return scanReservationDetail(row)
}

func (q *Queries) queryReservationDetails(ctx context.Context, query string, args ...any) ([]ReservationDetail, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []ReservationDetail
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

const reservationOrder = " ORDER BY r.date, f.name, ts.start_time"

// ListTeamReservations returns a team's active reservations dated at or
// after fromDate.
func (q *Queries) ListTeamReservations(ctx context.Context, teamID int64, fromDate string) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+" WHERE r.active = 1 AND r.team_id = ? AND r.date >= ?"+reservationOrder,
		teamID, fromDate)
}

// ListManagedReservations returns active reservations for every team a
// manager oversees, dated at or after fromDate.
func (q *Queries) ListManagedReservations(ctx context.Context, managerID int64, fromDate string) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+
			" WHERE r.active = 1 AND r.date >= ? AND r.team_id IN (SELECT team_id FROM manager_teams WHERE manager_id = ?)"+
			reservationOrder,
		fromDate, managerID)
}

// ListApprovedReservationsInRange returns approved active reservations with
// dates in [startDate, endDate].
func (q *Queries) ListApprovedReservationsInRange(ctx context.Context, startDate, endDate string) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+" WHERE r.active = 1 AND r.approved = 1 AND r.date >= ? AND r.date <= ?"+reservationOrder,
		startDate, endDate)
}

// ListApprovedReservationsFrom returns approved active reservations dated at
// or after fromDate.
func (q *Queries) ListApprovedReservationsFrom(ctx context.Context, fromDate string) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+" WHERE r.active = 1 AND r.approved = 1 AND r.date >= ?"+reservationOrder,
		fromDate)
}

// ListPendingReservations returns active reservations awaiting approval.
func (q *Queries) ListPendingReservations(ctx context.Context) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+" WHERE r.active = 1 AND r.approved = 0"+reservationOrder)
}

// ListReservationsBefore returns every reservation, active or not, dated
// strictly before the cutoff. Used by the archival sweep.
func (q *Queries) ListReservationsBefore(ctx context.Context, cutoff string) ([]ReservationDetail, error) {
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+" WHERE r.date < ?"+reservationOrder, cutoff)
}

// ListReservationsByIDs returns the reservations for the given ids, in
// detail form. Used by the swap resolver.
func (q *Queries) ListReservationsByIDs(ctx context.Context, ids []int64) ([]ReservationDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return q.queryReservationDetails(ctx,
		reservationDetailQuery+fmt.Sprintf(" WHERE r.id IN (%s)", placeholders)+reservationOrder, args...)
}

type CreateReservationParams struct {
	GameNumber   int64
	GameOpponent string
	Date         string
	Approved     bool
	TeamID       int64
	FieldID      int64
	GametypeID   int64
	TimeslotID   int64
	Age          string
	Gender       string
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO reservations (game_number, game_opponent, date, approved, team_id, field_id, gametype_id, timeslot_id, age, gender)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.GameNumber, arg.GameOpponent, arg.Date, arg.Approved,
		arg.TeamID, arg.FieldID, arg.GametypeID, arg.TimeslotID, arg.Age, arg.Gender)
	if err != nil {
		return Reservation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Reservation{}, err
	}
	return q.GetReservation(ctx, id)
}

type UpdateReservationParams struct {
	ID           int64
	GameNumber   int64
	GameOpponent string
	Date         string
	Approved     bool
	TeamID       int64
	FieldID      int64
	GametypeID   int64
	TimeslotID   int64
	Age          string
	Gender       string
}

func (q *Queries) UpdateReservation(ctx context.Context, arg UpdateReservationParams) (Reservation, error) {
	_, err := q.db.ExecContext(ctx,
		`UPDATE reservations SET game_number = ?, game_opponent = ?, date = ?, approved = ?,
		 team_id = ?, field_id = ?, gametype_id = ?, timeslot_id = ?, age = ?, gender = ?
		 WHERE id = ?`,
		arg.GameNumber, arg.GameOpponent, arg.Date, arg.Approved,
		arg.TeamID, arg.FieldID, arg.GametypeID, arg.TimeslotID, arg.Age, arg.Gender, arg.ID)
	if err != nil {
		return Reservation{}, err
	}
	return q.GetReservation(ctx, arg.ID)
}

func (q *Queries) SetReservationApproved(ctx context.Context, id int64, approved bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE reservations SET approved = ? WHERE id = ?", approved, id)
	return err
}

func (q *Queries) SetReservationActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE reservations SET active = ? WHERE id = ?", active, id)
	return err
}

// UpdateReservationSlot overwrites only the schedule assignment of a
// reservation, leaving team and game metadata untouched.
func (q *Queries) UpdateReservationSlot(ctx context.Context, id int64, date string, timeslotID, fieldID int64) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE reservations SET date = ?, timeslot_id = ?, field_id = ? WHERE id = ?",
		date, timeslotID, fieldID, id)
	return err
}

// ActiveReservationExists reports whether an active reservation other than
// excludeID occupies (date, timeslot). This is the commit-time race check.
func (q *Queries) ActiveReservationExists(ctx context.Context, date string, timeslotID, excludeID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE active = 1 AND date = ? AND timeslot_id = ? AND id != ?",
		date, timeslotID, excludeID).Scan(&n)
	return n > 0, err
}

func (q *Queries) DeleteReservationsBefore(ctx context.Context, cutoff string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM reservations WHERE date < ?", cutoff)
	return err
}

// AvailableSlot is a bookable timeslot with its field name for grouping.
type AvailableSlot struct {
	TimeSlot
	FieldName string
}

// ListAvailableTimeSlots computes the legal timeslot choices for a team on a
// date. A teamID of zero skips the field-authorization clause (superusers).
// keepTimeslotID is always included so an edit can keep its current slot.
func (q *Queries) ListAvailableTimeSlots(ctx context.Context, teamID int64, date string, keepTimeslotID int64) ([]AvailableSlot, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT ts.id, ts.field_id, ts.start_time, ts.end_time, ts.active, f.name
		 FROM timeslots ts
		 JOIN fields f ON f.id = ts.field_id
		 WHERE (
		     ts.active = 1
		     AND f.active = 1
		     AND (? = 0 OR EXISTS (
		         SELECT 1 FROM field_teams ft WHERE ft.field_id = ts.field_id AND ft.team_id = ?))
		     AND NOT EXISTS (
		         SELECT 1 FROM reservations r
		         WHERE r.active = 1 AND r.date = ? AND r.timeslot_id = ts.id)
		     AND NOT EXISTS (
		         SELECT 1 FROM reservations r
		         JOIN timeslot_overlaps o ON o.overlaps_id = r.timeslot_id
		         WHERE o.timeslot_id = ts.id AND r.active = 1 AND r.date = ?)
		     AND NOT EXISTS (
		         SELECT 1 FROM tournaments t
		         JOIN tournament_fields tf ON tf.tournament_id = t.id
		         WHERE tf.field_id = ts.field_id AND t.active = 1
		           AND t.start_date <= ? AND t.end_date >= ?)
		 ) OR ts.id = ?
		 ORDER BY f.name, ts.start_time`,
		teamID, teamID, date, date, date, date, keepTimeslotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []AvailableSlot
	for rows.Next() {
		var s AvailableSlot
		if err := rows.Scan(&s.ID, &s.FieldID, &s.StartTime, &s.EndTime, &s.Active, &s.FieldName); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
