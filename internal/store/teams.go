package store

import (
	"context"
)

const teamColumns = "id, name, description, email, password_hash, role, age, gender, active"

func scanTeam(row interface{ Scan(...any) error }) (Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Email, &t.PasswordHash, &t.Role, &t.Age, &t.Gender, &t.Active)
	return t, err
}

func (q *Queries) GetTeam(ctx context.Context, id int64) (Team, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM teams WHERE id = ?", id)
	return scanTeam(row)
}

func (q *Queries) GetTeamByName(ctx context.Context, name string) (Team, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM teams WHERE name = ?", name)
	return scanTeam(row)
}

func (q *Queries) queryTeams(ctx context.Context, query string, args ...any) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ListActiveTeams returns active team-role accounts ordered by name.
func (q *Queries) ListActiveTeams(ctx context.Context) ([]Team, error) {
	return q.queryTeams(ctx, "SELECT "+teamColumns+" FROM teams WHERE active = 1 AND role = ? ORDER BY name", RoleTeam)
}

func (q *Queries) ListTeams(ctx context.Context) ([]Team, error) {
	return q.queryTeams(ctx, "SELECT "+teamColumns+" FROM teams ORDER BY name")
}

// ListManagedTeams returns the active teams overseen by a manager.
func (q *Queries) ListManagedTeams(ctx context.Context, managerID int64) ([]Team, error) {
	return q.queryTeams(ctx,
		"SELECT "+prefixedTeamColumns+" FROM teams t JOIN manager_teams mt ON mt.team_id = t.id WHERE mt.manager_id = ? AND t.active = 1 ORDER BY t.name",
		managerID)
}

const prefixedTeamColumns = "t.id, t.name, t.description, t.email, t.password_hash, t.role, t.age, t.gender, t.active"

// IsManagerOf reports whether managerID oversees teamID.
func (q *Queries) IsManagerOf(ctx context.Context, managerID, teamID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM manager_teams WHERE manager_id = ? AND team_id = ?",
		managerID, teamID).Scan(&n)
	return n > 0, err
}

type CreateTeamParams struct {
	Name         string
	Description  string
	Email        string
	PasswordHash string
	Role         string
	Age          string
	Gender       string
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO teams (name, description, email, password_hash, role, age, gender) VALUES (?, ?, ?, ?, ?, ?, ?)",
		arg.Name, arg.Description, arg.Email, arg.PasswordHash, arg.Role, arg.Age, arg.Gender)
	if err != nil {
		return Team{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Team{}, err
	}
	return q.GetTeam(ctx, id)
}

type UpdateTeamParams struct {
	ID          int64
	Name        string
	Description string
	Email       string
	Role        string
	Age         string
	Gender      string
}

func (q *Queries) UpdateTeam(ctx context.Context, arg UpdateTeamParams) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE teams SET name = ?, description = ?, email = ?, role = ?, age = ?, gender = ? WHERE id = ?",
		arg.Name, arg.Description, arg.Email, arg.Role, arg.Age, arg.Gender, arg.ID)
	return err
}

func (q *Queries) UpdateTeamPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, "UPDATE teams SET password_hash = ? WHERE id = ?", passwordHash, id)
	return err
}

func (q *Queries) SetTeamActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, "UPDATE teams SET active = ? WHERE id = ?", active, id)
	return err
}

// SetManagerTeams replaces the set of teams a manager oversees.
func (q *Queries) SetManagerTeams(ctx context.Context, managerID int64, teamIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM manager_teams WHERE manager_id = ?", managerID); err != nil {
		return err
	}
	for _, teamID := range teamIDs {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO manager_teams (manager_id, team_id) VALUES (?, ?)", managerID, teamID); err != nil {
			return err
		}
	}
	return nil
}

// ListSuperuserEmails returns the non-empty email addresses of active superusers.
func (q *Queries) ListSuperuserEmails(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT email FROM teams WHERE active = 1 AND role = ? AND email != ''", RoleSuperuser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// ListInactiveTeams returns deactivated team accounts, for garbage collection.
func (q *Queries) ListInactiveTeams(ctx context.Context) ([]Team, error) {
	return q.queryTeams(ctx, "SELECT "+teamColumns+" FROM teams WHERE active = 0")
}

func (q *Queries) CountTeamReservations(ctx context.Context, teamID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE team_id = ?", teamID).Scan(&n)
	return n, err
}

func (q *Queries) DeleteTeam(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM teams WHERE id = ?", id)
	return err
}
