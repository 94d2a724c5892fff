package store

import (
	"database/sql"
	"time"
)

// Team doubles as the user record: a team account, a manager overseeing
// several teams, or a superuser.
type Team struct {
	ID           int64
	Name         string
	Description  string
	Email        string
	PasswordHash string
	Role         string
	Age          string
	Gender       string
	Active       bool
}

const (
	RoleTeam      = "team"
	RoleManager   = "manager"
	RoleSuperuser = "superuser"
)

// FullName returns the team name with its description, when one exists.
func (t Team) FullName() string {
	if t.Description != "" {
		return t.Name + " (" + t.Description + ")"
	}
	return t.Name
}

type Field struct {
	ID     int64
	Name   string
	Active bool
}

type GameType struct {
	ID     int64
	Name   string
	Active bool
}

type TimeSlot struct {
	ID        int64
	FieldID   int64
	StartTime string // HH:MM
	EndTime   string // HH:MM
	Active    bool
}

type Tournament struct {
	ID         int64
	Name       string
	StartDate  string // YYYY-MM-DD
	EndDate    string // YYYY-MM-DD
	GametypeID sql.NullInt64
	Active     bool
}

type Reservation struct {
	ID           int64
	GameNumber   int64
	GameOpponent string
	Date         string // YYYY-MM-DD
	Approved     bool
	Active       bool
	TeamID       int64
	FieldID      int64
	GametypeID   int64
	TimeslotID   int64
	Age          string
	Gender       string
}

// ReservationDetail is a reservation joined with its catalog rows for
// display, export, and archival.
type ReservationDetail struct {
	Reservation
	TeamName        string
	TeamDescription string
	FieldName       string
	GametypeName    string
	StartTime       string
	EndTime         string
}

// TeamFullName mirrors Team.FullName for the denormalized row.
func (d ReservationDetail) TeamFullName() string {
	if d.TeamDescription != "" {
		return d.TeamName + " (" + d.TeamDescription + ")"
	}
	return d.TeamName
}

type ArchivedReservation struct {
	ID           int64
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

type ArchivedTournament struct {
	ID        int64
	Name      string
	StartDate string
	EndDate   string
	Gametype  string
	Locations string
}

// ReservationToken is the single-holder lock row. A null HoldDate is a
// global (block-all) hold.
type ReservationToken struct {
	ID       int64
	TeamID   int64
	Issued   time.Time
	HoldDate sql.NullString
}

// TokenWithHolder carries the holder's display name for contention messages.
type TokenWithHolder struct {
	ReservationToken
	HolderName        string
	HolderDescription string
}

func (t TokenWithHolder) HolderFullName() string {
	if t.HolderDescription != "" {
		return t.HolderName + " (" + t.HolderDescription + ")"
	}
	return t.HolderName
}

type WebsiteSetting struct {
	ID          int64
	Key         string
	Value       string
	Description string
}

type AuditEntry struct {
	ID        int64
	ActorID   int64
	ActorName string
	Action    string
	Object    string
	Message   string
	CreatedAt time.Time
}

const (
	AuditCreate = "create"
	AuditChange = "change"
	AuditDelete = "delete"
)
