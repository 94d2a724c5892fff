package store

import "context"

type InsertArchivedReservationParams struct {
	GameNumber   int64
	GameOpponent string
	Date         string
	Approved     bool
	Team         string
	Location     string
	Gametype     string
	StartTime    string
	EndTime      string
	Deleted      bool
	Age          string
	Gender       string
}

func (q *Queries) InsertArchivedReservation(ctx context.Context, arg InsertArchivedReservationParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO archived_reservations
		 (game_number, game_opponent, date, approved, team, location, gametype, start_time, end_time, deleted, age, gender)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.GameNumber, arg.GameOpponent, arg.Date, arg.Approved, arg.Team, arg.Location,
		arg.Gametype, arg.StartTime, arg.EndTime, arg.Deleted, arg.Age, arg.Gender)
	return err
}

type InsertArchivedTournamentParams struct {
	Name      string
	StartDate string
	EndDate   string
	Gametype  string
	Locations string
}

func (q *Queries) InsertArchivedTournament(ctx context.Context, arg InsertArchivedTournamentParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO archived_tournaments (name, start_date, end_date, gametype, locations) VALUES (?, ?, ?, ?, ?)",
		arg.Name, arg.StartDate, arg.EndDate, arg.Gametype, arg.Locations)
	return err
}

func (q *Queries) ListArchivedReservations(ctx context.Context) ([]ArchivedReservation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, game_number, game_opponent, date, approved, team, location, gametype,
		        start_time, end_time, deleted, age, gender
		 FROM archived_reservations ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archived []ArchivedReservation
	for rows.Next() {
		var a ArchivedReservation
		if err := rows.Scan(&a.ID, &a.GameNumber, &a.GameOpponent, &a.Date, &a.Approved, &a.Team,
			&a.Location, &a.Gametype, &a.StartTime, &a.EndTime, &a.Deleted, &a.Age, &a.Gender); err != nil {
			return nil, err
		}
		archived = append(archived, a)
	}
	return archived, rows.Err()
}

func (q *Queries) ListArchivedTournaments(ctx context.Context) ([]ArchivedTournament, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, start_date, end_date, gametype, locations FROM archived_tournaments ORDER BY start_date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archived []ArchivedTournament
	for rows.Next() {
		var a ArchivedTournament
		if err := rows.Scan(&a.ID, &a.Name, &a.StartDate, &a.EndDate, &a.Gametype, &a.Locations); err != nil {
			return nil, err
		}
		archived = append(archived, a)
	}
	return archived, rows.Err()
}
