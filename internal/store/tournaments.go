package store

import (
	"context"
	"database/sql"
)

const tournamentColumns = "id, name, start_date, end_date, gametype_id, active"

func scanTournament(row interface{ Scan(...any) error }) (Tournament, error) {
	var t Tournament
	err := row.Scan(&t.ID, &t.Name, &t.StartDate, &t.EndDate, &t.GametypeID, &t.Active)
	return t, err
}

func (q *Queries) GetTournament(ctx context.Context, id int64) (Tournament, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+tournamentColumns+" FROM tournaments WHERE id = ?", id)
	return scanTournament(row)
}

func (q *Queries) queryTournaments(ctx context.Context, query string, args ...any) ([]Tournament, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tournaments []Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (q *Queries) ListActiveTournaments(ctx context.Context) ([]Tournament, error) {
	return q.queryTournaments(ctx,
		"SELECT "+tournamentColumns+" FROM tournaments WHERE active = 1 ORDER BY start_date")
}

// ListActiveTournamentsInRange returns active tournaments whose date range
// intersects [startDate, endDate].
func (q *Queries) ListActiveTournamentsInRange(ctx context.Context, startDate, endDate string) ([]Tournament, error) {
	return q.queryTournaments(ctx,
		"SELECT "+tournamentColumns+" FROM tournaments WHERE active = 1 AND start_date <= ? AND end_date >= ? ORDER BY start_date",
		endDate, startDate)
}

type CreateTournamentParams struct {
	Name       string
	StartDate  string
	EndDate    string
	GametypeID sql.NullInt64
	FieldIDs   []int64
}

func (q *Queries) CreateTournament(ctx context.Context, arg CreateTournamentParams) (Tournament, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO tournaments (name, start_date, end_date, gametype_id) VALUES (?, ?, ?, ?)",
		arg.Name, arg.StartDate, arg.EndDate, arg.GametypeID)
	if err != nil {
		return Tournament{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Tournament{}, err
	}
	for _, fieldID := range arg.FieldIDs {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO tournament_fields (tournament_id, field_id) VALUES (?, ?)", id, fieldID); err != nil {
			return Tournament{}, err
		}
	}
	return q.GetTournament(ctx, id)
}

func (q *Queries) SetTournamentActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE tournaments SET active = ? WHERE id = ?", active, id)
	return err
}

// TournamentConflictExists reports whether an active tournament at the field
// covers the given date.
func (q *Queries) TournamentConflictExists(ctx context.Context, date string, fieldID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tournaments t
		 JOIN tournament_fields tf ON tf.tournament_id = t.id
		 WHERE t.active = 1 AND tf.field_id = ? AND t.start_date <= ? AND t.end_date >= ?`,
		fieldID, date, date).Scan(&n)
	return n > 0, err
}

// TournamentFieldNames returns the names of a tournament's fields, ordered.
func (q *Queries) TournamentFieldNames(ctx context.Context, tournamentID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT f.name FROM fields f
		 JOIN tournament_fields tf ON tf.field_id = f.id
		 WHERE tf.tournament_id = ? ORDER BY f.name`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (q *Queries) ListInactiveTournaments(ctx context.Context) ([]Tournament, error) {
	return q.queryTournaments(ctx, "SELECT "+tournamentColumns+" FROM tournaments WHERE active = 0")
}

func (q *Queries) DeleteTournament(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM tournaments WHERE id = ?", id)
	return err
}
