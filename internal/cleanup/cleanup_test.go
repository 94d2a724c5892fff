package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/tfrey42/pitchside/internal/cleanup"
	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/testutil"
)

func newRunner(t *testing.T) (*cleanup.Runner, *db.DB, *settings.Store) {
	t.Helper()
	database := testutil.NewTestDB(t)
	siteCfg := settings.NewStore(database.Queries)
	return cleanup.NewRunner(database, siteCfg), database, siteCfg
}

// Tuesday; the week's Saturday start is 2026-08-29.
var now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func TestRunArchivesPastReservations(t *testing.T) {
	runner, database, _ := newRunner(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, database, "League")
	north := testutil.SeedField(t, database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, database, north.ID, "09:00", "10:30")

	past := testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-08-25", true)
	cancelled := testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-08-26", true)
	if err := database.Queries.SetReservationActive(ctx, cancelled.ID, false); err != nil {
		t.Fatalf("deactivate reservation: %v", err)
	}
	current := testutil.SeedReservation(t, database, alpha, north, gametype, slot, "2026-09-02", true)

	report, ran, err := runner.Run(ctx, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("sweep did not run")
	}
	if report.ArchivedReservations != 2 {
		t.Errorf("archived reservations = %d, want 2", report.ArchivedReservations)
	}

	// Originals are gone; the current week's reservation survives.
	if _, err := database.Queries.GetReservation(ctx, past.ID); err == nil {
		t.Error("archived reservation still present")
	}
	if _, err := database.Queries.GetReservation(ctx, current.ID); err != nil {
		t.Errorf("current reservation lost: %v", err)
	}

	archived, err := database.Queries.ListArchivedReservations(ctx)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("archive rows = %d, want 2", len(archived))
	}
	for _, row := range archived {
		switch row.Date {
		case "2026-08-25":
			if row.Deleted {
				t.Error("kept reservation archived as deleted")
			}
			if row.Team != alpha.FullName() {
				t.Errorf("archived team = %q, want %q", row.Team, alpha.FullName())
			}
			if row.Location != north.Name || row.StartTime != slot.StartTime {
				t.Errorf("archived slot = %s %s", row.Location, row.StartTime)
			}
		case "2026-08-26":
			if !row.Deleted {
				t.Error("cancelled reservation not flagged deleted")
			}
		default:
			t.Errorf("unexpected archive date %s", row.Date)
		}
	}
}

func TestRunIsGatedOnLastCleanDate(t *testing.T) {
	runner, _, siteCfg := newRunner(t)
	ctx := context.Background()

	if _, ran, err := runner.Run(ctx, now); err != nil || !ran {
		t.Fatalf("first run: ran=%v err=%v", ran, err)
	}
	if got := siteCfg.Get(ctx, settings.KeyLastCleanDate, ""); got != now.Format(dates.DisplayLayout) {
		t.Errorf("LAST_CLEAN_DATE = %q, want %q", got, now.Format(dates.DisplayLayout))
	}

	// Same week: no second sweep.
	if _, ran, err := runner.Run(ctx, now.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("second run: %v", err)
	} else if ran {
		t.Error("sweep ran twice in one week")
	}

	// Next week: due again.
	if _, ran, err := runner.Run(ctx, now.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("next-week run: %v", err)
	} else if !ran {
		t.Error("sweep not due the following week")
	}
}

func TestRunArchivesInactiveTournaments(t *testing.T) {
	runner, database, _ := newRunner(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	north := testutil.SeedField(t, database, "North", alpha.ID)
	east := testutil.SeedField(t, database, "East", alpha.ID)

	ended, err := database.Queries.CreateTournament(ctx, store.CreateTournamentParams{
		Name: "Spring Cup", StartDate: "2026-04-10", EndDate: "2026-04-12",
		FieldIDs: []int64{north.ID, east.ID},
	})
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	if err := database.Queries.SetTournamentActive(ctx, ended.ID, false); err != nil {
		t.Fatalf("deactivate tournament: %v", err)
	}
	upcoming, err := database.Queries.CreateTournament(ctx, store.CreateTournamentParams{
		Name: "Fall Cup", StartDate: "2026-10-10", EndDate: "2026-10-11",
		FieldIDs: []int64{north.ID},
	})
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}

	report, ran, err := runner.Run(ctx, now)
	if err != nil || !ran {
		t.Fatalf("run: ran=%v err=%v", ran, err)
	}
	if report.ArchivedTournaments != 1 {
		t.Errorf("archived tournaments = %d, want 1", report.ArchivedTournaments)
	}

	if _, err := database.Queries.GetTournament(ctx, ended.ID); err == nil {
		t.Error("archived tournament still present")
	}
	if _, err := database.Queries.GetTournament(ctx, upcoming.ID); err != nil {
		t.Errorf("active tournament lost: %v", err)
	}

	archived, err := database.Queries.ListArchivedTournaments(ctx)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("archive rows = %d, want 1", len(archived))
	}
	if archived[0].Locations != "East, North" && archived[0].Locations != "North, East" {
		t.Errorf("archived locations = %q", archived[0].Locations)
	}
}

func TestRunCollectsUnreferencedCatalogRows(t *testing.T) {
	runner, database, _ := newRunner(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	keptType := testutil.SeedGameType(t, database, "League")
	deadType := testutil.SeedGameType(t, database, "Friendly")
	north := testutil.SeedField(t, database, "North", alpha.ID)
	busyField := testutil.SeedField(t, database, "Busy", alpha.ID)
	slot := testutil.SeedTimeSlot(t, database, busyField.ID, "09:00", "10:30")
	idleSlot := testutil.SeedTimeSlot(t, database, north.ID, "12:00", "13:30")

	// The busy field keeps a current-week reservation, so it must survive
	// even when deactivated.
	testutil.SeedReservation(t, database, alpha, busyField, keptType, slot, "2026-09-02", true)

	for _, deactivate := range []func() error{
		func() error { return database.Queries.SetGameTypeActive(ctx, deadType.ID, false) },
		func() error { return database.Queries.SetTimeSlotActive(ctx, idleSlot.ID, false) },
		func() error { return database.Queries.SetFieldActive(ctx, north.ID, false) },
		func() error { return database.Queries.SetFieldActive(ctx, busyField.ID, false) },
	} {
		if err := deactivate(); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
	}

	report, ran, err := runner.Run(ctx, now)
	if err != nil || !ran {
		t.Fatalf("run: ran=%v err=%v", ran, err)
	}
	if report.DeletedGameTypes != 1 {
		t.Errorf("deleted gametypes = %d, want 1", report.DeletedGameTypes)
	}
	if report.DeletedTimeSlots != 1 {
		t.Errorf("deleted timeslots = %d, want 1", report.DeletedTimeSlots)
	}
	// North loses its only timeslot in the same sweep and becomes deletable;
	// Busy is still referenced by a reservation and its slot.
	if report.DeletedFields != 1 {
		t.Errorf("deleted fields = %d, want 1", report.DeletedFields)
	}

	if _, err := database.Queries.GetField(ctx, busyField.ID); err != nil {
		t.Errorf("referenced field deleted: %v", err)
	}
	if _, err := database.Queries.GetGameType(ctx, keptType.ID); err != nil {
		t.Errorf("active gametype deleted: %v", err)
	}
}
