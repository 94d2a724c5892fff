package store

import "context"

// Fields, gametypes, and timeslots are the soft-deletable catalog entities
// referenced by reservations and tournaments. Deactivation hides them from
// new bookings; the cleanup sweep hard-deletes them once unreferenced.

func scanField(row interface{ Scan(...any) error }) (Field, error) {
	var f Field
	err := row.Scan(&f.ID, &f.Name, &f.Active)
	return f, err
}

func (q *Queries) GetField(ctx context.Context, id int64) (Field, error) {
	row := q.db.QueryRowContext(ctx, "SELECT id, name, active FROM fields WHERE id = ?", id)
	return scanField(row)
}

func (q *Queries) queryFields(ctx context.Context, query string, args ...any) ([]Field, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (q *Queries) ListFields(ctx context.Context) ([]Field, error) {
	return q.queryFields(ctx, "SELECT id, name, active FROM fields ORDER BY name")
}

func (q *Queries) ListActiveFields(ctx context.Context) ([]Field, error) {
	return q.queryFields(ctx, "SELECT id, name, active FROM fields WHERE active = 1 ORDER BY name")
}

func (q *Queries) CreateField(ctx context.Context, name string) (Field, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO fields (name) VALUES (?)", name)
	if err != nil {
		return Field{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Field{}, err
	}
	return q.GetField(ctx, id)
}

func (q *Queries) RenameField(ctx context.Context, id int64, name string) error {
	_, err := q.db.ExecContext(ctx, "UPDATE fields SET name = ? WHERE id = ?", name, id)
	return err
}

func (q *Queries) SetFieldActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE fields SET active = ? WHERE id = ?", active, id)
	return err
}

// SetFieldTeams replaces the set of teams authorized to book a field.
func (q *Queries) SetFieldTeams(ctx context.Context, fieldID int64, teamIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM field_teams WHERE field_id = ?", fieldID); err != nil {
		return err
	}
	for _, teamID := range teamIDs {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO field_teams (field_id, team_id) VALUES (?, ?)", fieldID, teamID); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) AddFieldTeam(ctx context.Context, fieldID, teamID int64) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO field_teams (field_id, team_id) VALUES (?, ?)", fieldID, teamID)
	return err
}

func (q *Queries) ListInactiveFields(ctx context.Context) ([]Field, error) {
	return q.queryFields(ctx, "SELECT id, name, active FROM fields WHERE active = 0")
}

// CountFieldReferences counts live reservation and tournament references to a field.
func (q *Queries) CountFieldReferences(ctx context.Context, fieldID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM reservations WHERE field_id = ?)
		      + (SELECT COUNT(*) FROM tournament_fields WHERE field_id = ?)`,
		fieldID, fieldID).Scan(&n)
	return n, err
}

func (q *Queries) DeleteField(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", id)
	return err
}

func scanGameType(row interface{ Scan(...any) error }) (GameType, error) {
	var g GameType
	err := row.Scan(&g.ID, &g.Name, &g.Active)
	return g, err
}

func (q *Queries) GetGameType(ctx context.Context, id int64) (GameType, error) {
	row := q.db.QueryRowContext(ctx, "SELECT id, name, active FROM gametypes WHERE id = ?", id)
	return scanGameType(row)
}

func (q *Queries) queryGameTypes(ctx context.Context, query string, args ...any) ([]GameType, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gametypes []GameType
	for rows.Next() {
		g, err := scanGameType(rows)
		if err != nil {
			return nil, err
		}
		gametypes = append(gametypes, g)
	}
	return gametypes, rows.Err()
}

func (q *Queries) ListGameTypes(ctx context.Context) ([]GameType, error) {
	return q.queryGameTypes(ctx, "SELECT id, name, active FROM gametypes ORDER BY name")
}

func (q *Queries) ListActiveGameTypes(ctx context.Context) ([]GameType, error) {
	return q.queryGameTypes(ctx, "SELECT id, name, active FROM gametypes WHERE active = 1 ORDER BY name")
}

func (q *Queries) CreateGameType(ctx context.Context, name string) (GameType, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO gametypes (name) VALUES (?)", name)
	if err != nil {
		return GameType{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return GameType{}, err
	}
	return q.GetGameType(ctx, id)
}

func (q *Queries) RenameGameType(ctx context.Context, id int64, name string) error {
	_, err := q.db.ExecContext(ctx, "UPDATE gametypes SET name = ? WHERE id = ?", name, id)
	return err
}

func (q *Queries) SetGameTypeActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE gametypes SET active = ? WHERE id = ?", active, id)
	return err
}

// SetGameTypeTeams replaces the set of teams permitted to use a gametype.
func (q *Queries) SetGameTypeTeams(ctx context.Context, gametypeID int64, teamIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM gametype_teams WHERE gametype_id = ?", gametypeID); err != nil {
		return err
	}
	for _, teamID := range teamIDs {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO gametype_teams (gametype_id, team_id) VALUES (?, ?)", gametypeID, teamID); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) ListInactiveGameTypes(ctx context.Context) ([]GameType, error) {
	return q.queryGameTypes(ctx, "SELECT id, name, active FROM gametypes WHERE active = 0")
}

// CountGameTypeReferences counts live reservation and tournament references
// to a gametype.
func (q *Queries) CountGameTypeReferences(ctx context.Context, gametypeID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM reservations WHERE gametype_id = ?)
		      + (SELECT COUNT(*) FROM tournaments WHERE gametype_id = ?)`,
		gametypeID, gametypeID).Scan(&n)
	return n, err
}

func (q *Queries) DeleteGameType(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM gametypes WHERE id = ?", id)
	return err
}
