package csvexport_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/tfrey42/pitchside/internal/csvexport"
	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/testutil"
)

func weekOf(t *testing.T, start, end string) dates.Bounds {
	t.Helper()
	parse := func(value string) time.Time {
		parsed, err := time.Parse(dates.DayLayout, value)
		if err != nil {
			t.Fatalf("parse %s: %v", value, err)
		}
		return parsed
	}
	return dates.Bounds{Start: parse(start), End: parse(end)}
}

func TestWriteEmitsApprovedGamesAndTournamentDays(t *testing.T) {
	database := testutil.NewTestDB(t)
	exporter := csvexport.NewExporter(database.Queries)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, database, "League")
	north := testutil.SeedField(t, database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, database, north.ID, "09:00", "10:30")

	testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-09-01", true)
	// Pending and out-of-range games are excluded.
	testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-09-02", false)
	testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-09-20", true)

	// Runs past the window end; its days get clamped.
	if _, err := database.Queries.CreateTournament(ctx, store.CreateTournamentParams{
		Name: "Harvest Cup", StartDate: "2026-09-03", EndDate: "2026-09-10",
		FieldIDs: []int64{north.ID},
	}); err != nil {
		t.Fatalf("create tournament: %v", err)
	}

	var buf bytes.Buffer
	if err := exporter.Write(ctx, &buf, weekOf(t, "2026-08-29", "2026-09-04")); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	// Header, one approved game, two tournament days (09-03, 09-04).
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4:\n%v", len(rows), rows)
	}
	if rows[0][0] != "GameNum" || len(rows[0]) != 13 {
		t.Fatalf("header = %v", rows[0])
	}

	game := rows[1]
	if game[0] != "100" || game[1] != "09/01/2026" || game[2] != "09:00" {
		t.Errorf("game row = %v", game)
	}
	if game[5] != "Male" || game[6] != "North" || game[7] != "Alpha" || game[8] != "Visitors" {
		t.Errorf("game row = %v", game)
	}

	if rows[2][1] != "09/03/2026" || rows[2][9] != "Tournament" || rows[2][7] != "Harvest Cup" {
		t.Errorf("first tournament row = %v", rows[2])
	}
	if rows[3][1] != "09/04/2026" {
		t.Errorf("second tournament row = %v", rows[3])
	}
}

func TestGirlsGamesAreLabelledFemale(t *testing.T) {
	database := testutil.NewTestDB(t)
	exporter := csvexport.NewExporter(database.Queries)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, database, "League")
	north := testutil.SeedField(t, database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, database, north.ID, "09:00", "10:30")

	if _, err := database.Queries.CreateReservation(ctx, store.CreateReservationParams{
		GameNumber: 5, GameOpponent: "Visitors", Date: "2026-09-01", Approved: true,
		TeamID: alpha.ID, FieldID: north.ID, GametypeID: gametype.ID, TimeslotID: slot.ID,
		Age: "U14", Gender: "girls",
	}); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	var buf bytes.Buffer
	if err := exporter.Write(ctx, &buf, weekOf(t, "2026-08-29", "2026-09-04")); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[1][5] != "Female" {
		t.Errorf("gender label = %q, want Female", rows[1][5])
	}
}
