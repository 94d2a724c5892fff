package store

import (
	"context"
	"database/sql"
	"time"
)

// DeleteExpiredTokens removes every token issued before the cutoff. Called
// as the lazy sweep at the start of each acquisition attempt.
func (q *Queries) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM reservation_tokens WHERE issued < ?", cutoff)
	return err
}

func scanToken(row interface{ Scan(...any) error }) (ReservationToken, error) {
	var t ReservationToken
	err := row.Scan(&t.ID, &t.TeamID, &t.Issued, &t.HoldDate)
	return t, err
}

// GetTeamToken returns the team's token for the given hold date (nil means
// the global hold), or sql.ErrNoRows.
func (q *Queries) GetTeamToken(ctx context.Context, teamID int64, holdDate sql.NullString) (ReservationToken, error) {
	if holdDate.Valid {
		row := q.db.QueryRowContext(ctx,
			"SELECT id, team_id, issued, hold_date FROM reservation_tokens WHERE team_id = ? AND hold_date = ?",
			teamID, holdDate.String)
		return scanToken(row)
	}
	row := q.db.QueryRowContext(ctx,
		"SELECT id, team_id, issued, hold_date FROM reservation_tokens WHERE team_id = ? AND hold_date IS NULL",
		teamID)
	return scanToken(row)
}

const tokenWithHolderColumns = `rt.id, rt.team_id, rt.issued, rt.hold_date, t.name, t.description`

func scanTokenWithHolder(row interface{ Scan(...any) error }) (TokenWithHolder, error) {
	var t TokenWithHolder
	err := row.Scan(&t.ID, &t.TeamID, &t.Issued, &t.HoldDate, &t.HolderName, &t.HolderDescription)
	return t, err
}

// FindBlockingToken returns a token held for the exact date or a global
// token, whichever exists, or sql.ErrNoRows.
func (q *Queries) FindBlockingToken(ctx context.Context, holdDate string) (TokenWithHolder, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+tokenWithHolderColumns+` FROM reservation_tokens rt
		 JOIN teams t ON t.id = rt.team_id
		 WHERE rt.hold_date = ? OR rt.hold_date IS NULL
		 ORDER BY rt.issued LIMIT 1`, holdDate)
	return scanTokenWithHolder(row)
}

// FindAnyToken returns any outstanding token, or sql.ErrNoRows. Used by
// block-all acquisition, which contends with every hold.
func (q *Queries) FindAnyToken(ctx context.Context) (TokenWithHolder, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+tokenWithHolderColumns+` FROM reservation_tokens rt
		 JOIN teams t ON t.id = rt.team_id
		 ORDER BY rt.issued LIMIT 1`)
	return scanTokenWithHolder(row)
}

func (q *Queries) CreateToken(ctx context.Context, teamID int64, issued time.Time, holdDate sql.NullString) (ReservationToken, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO reservation_tokens (team_id, issued, hold_date) VALUES (?, ?, ?)",
		teamID, issued, holdDate)
	if err != nil {
		return ReservationToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ReservationToken{}, err
	}
	row := q.db.QueryRowContext(ctx,
		"SELECT id, team_id, issued, hold_date FROM reservation_tokens WHERE id = ?", id)
	return scanToken(row)
}

// DeleteTeamTokens releases every token a team holds.
func (q *Queries) DeleteTeamTokens(ctx context.Context, teamID int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM reservation_tokens WHERE team_id = ?", teamID)
	return err
}

func (q *Queries) CountTokens(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservation_tokens").Scan(&n)
	return n, err
}
