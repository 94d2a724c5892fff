package testutil

import (
	"context"
	"testing"

	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

// SeedTeam creates an active team account with a throwaway password hash.
func SeedTeam(t *testing.T, database *db.DB, name, role string) store.Team {
	t.Helper()
	team, err := database.Queries.CreateTeam(context.Background(), store.CreateTeamParams{
		Name:         name,
		Description:  "",
		Email:        name + "@example.com",
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceho",
		Role:         role,
		Age:          "U12",
		Gender:       "boys",
	})
	if err != nil {
		t.Fatalf("seed team %s: %v", name, err)
	}
	return team
}

// SeedField creates an active field and authorizes the given teams on it.
func SeedField(t *testing.T, database *db.DB, name string, teamIDs ...int64) store.Field {
	t.Helper()
	ctx := context.Background()
	field, err := database.Queries.CreateField(ctx, name)
	if err != nil {
		t.Fatalf("seed field %s: %v", name, err)
	}
	for _, id := range teamIDs {
		if err := database.Queries.AddFieldTeam(ctx, field.ID, id); err != nil {
			t.Fatalf("authorize team %d on field %s: %v", id, name, err)
		}
	}
	return field
}

// SeedGameType creates an active gametype.
func SeedGameType(t *testing.T, database *db.DB, name string) store.GameType {
	t.Helper()
	gametype, err := database.Queries.CreateGameType(context.Background(), name)
	if err != nil {
		t.Fatalf("seed gametype %s: %v", name, err)
	}
	return gametype
}

// SeedTimeSlot creates an active timeslot on a field.
func SeedTimeSlot(t *testing.T, database *db.DB, fieldID int64, start, end string) store.TimeSlot {
	t.Helper()
	slot, err := database.Queries.CreateTimeSlot(context.Background(), store.CreateTimeSlotParams{
		FieldID:   fieldID,
		StartTime: start,
		EndTime:   end,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("seed timeslot %s-%s: %v", start, end, err)
	}
	return slot
}

// SeedReservation creates an active reservation.
func SeedReservation(t *testing.T, database *db.DB, team store.Team, field store.Field, gametype store.GameType, slot store.TimeSlot, date string, approved bool) store.Reservation {
	t.Helper()
	resv, err := database.Queries.CreateReservation(context.Background(), store.CreateReservationParams{
		GameNumber:   100,
		GameOpponent: "Visitors",
		Date:         date,
		Approved:     approved,
		TeamID:       team.ID,
		FieldID:      field.ID,
		GametypeID:   gametype.ID,
		TimeslotID:   slot.ID,
		Age:          team.Age,
		Gender:       team.Gender,
	})
	if err != nil {
		t.Fatalf("seed reservation on %s: %v", date, err)
	}
	return resv
}
