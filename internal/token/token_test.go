package token_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/testutil"
	"github.com/tfrey42/pitchside/internal/token"
)

func nullDate(value string) sql.NullString {
	return sql.NullString{String: value, Valid: true}
}

func TestAcquireAndRelease(t *testing.T) {
	database := testutil.NewTestDB(t)
	manager := token.NewManager(database, settings.NewStore(database.Queries))
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, database, "Beta", store.RoleTeam)

	if err := manager.Acquire(ctx, alpha.ID, "2026-09-05", false); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Same holder, same date: idempotent.
	if err := manager.Acquire(ctx, alpha.ID, "2026-09-05", false); err != nil {
		t.Fatalf("re-entrant acquire: %v", err)
	}

	// Another team on the same date is blocked and learns who holds it.
	err := manager.Acquire(ctx, beta.ID, "2026-09-05", false)
	var blocked *token.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.HolderID != alpha.ID {
		t.Errorf("blocked holder = %d, want %d", blocked.HolderID, alpha.ID)
	}
	if blocked.MinutesLeft <= 0 || blocked.MinutesLeft > settings.DefaultTokenTimeout {
		t.Errorf("minutes left = %d, want within (0, %d]", blocked.MinutesLeft, settings.DefaultTokenTimeout)
	}

	// A different date is free.
	if err := manager.Acquire(ctx, beta.ID, "2026-09-06", false); err != nil {
		t.Fatalf("acquire different date: %v", err)
	}

	if err := manager.Release(ctx, alpha.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := manager.Acquire(ctx, beta.ID, "2026-09-05", false); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestAcquireRepointsHoldToNewDate(t *testing.T) {
	database := testutil.NewTestDB(t)
	manager := token.NewManager(database, settings.NewStore(database.Queries))
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, database, "Beta", store.RoleTeam)
	gamma := testutil.SeedTeam(t, database, "Gamma", store.RoleTeam)

	if err := manager.Acquire(ctx, alpha.ID, "2026-09-05", false); err != nil {
		t.Fatalf("acquire first date: %v", err)
	}
	if err := manager.Acquire(ctx, alpha.ID, "2026-09-06", false); err != nil {
		t.Fatalf("acquire second date: %v", err)
	}

	// One row per team: the old hold is gone, not stacked.
	n, err := database.Queries.CountTokens(ctx)
	if err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if n != 1 {
		t.Errorf("token count = %d, want 1", n)
	}

	// The abandoned date is free again; the new one is held.
	if err := manager.Acquire(ctx, beta.ID, "2026-09-05", false); err != nil {
		t.Fatalf("acquire abandoned date: %v", err)
	}
	err = manager.Acquire(ctx, gamma.ID, "2026-09-06", false)
	var blocked *token.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError on the moved date, got %v", err)
	}
	if blocked.HolderID != alpha.ID {
		t.Errorf("holder = %d, want %d", blocked.HolderID, alpha.ID)
	}
}

func TestExpiredTokenIsSwept(t *testing.T) {
	database := testutil.NewTestDB(t)
	manager := token.NewManager(database, settings.NewStore(database.Queries))
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, database, "Beta", store.RoleTeam)

	// Plant a token issued beyond the timeout.
	stale := time.Now().UTC().Add(-time.Duration(settings.DefaultTokenTimeout+1) * time.Minute)
	if _, err := database.Queries.CreateToken(ctx, alpha.ID, stale, nullDate("2026-09-05")); err != nil {
		t.Fatalf("plant stale token: %v", err)
	}

	if err := manager.Acquire(ctx, beta.ID, "2026-09-05", false); err != nil {
		t.Fatalf("acquire over stale token: %v", err)
	}

	// The stale row must be gone, not merely outvoted.
	n, err := database.Queries.CountTokens(ctx)
	if err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if n != 1 {
		t.Errorf("token count = %d, want 1", n)
	}
}

func TestGlobalHoldBlocksEveryDate(t *testing.T) {
	database := testutil.NewTestDB(t)
	manager := token.NewManager(database, settings.NewStore(database.Queries))
	ctx := context.Background()

	admin := testutil.SeedTeam(t, database, "Admin", store.RoleSuperuser)
	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)

	if err := manager.Acquire(ctx, admin.ID, "", true); err != nil {
		t.Fatalf("acquire global hold: %v", err)
	}

	err := manager.Acquire(ctx, alpha.ID, "2026-09-05", false)
	var blocked *token.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError under global hold, got %v", err)
	}

	// The reverse also holds: an outstanding date token blocks a new
	// global hold.
	if err := manager.Release(ctx, admin.ID); err != nil {
		t.Fatalf("release global hold: %v", err)
	}
	if err := manager.Acquire(ctx, alpha.ID, "2026-09-05", false); err != nil {
		t.Fatalf("acquire date token: %v", err)
	}
	err = manager.Acquire(ctx, admin.ID, "", true)
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError acquiring global hold, got %v", err)
	}
}

func TestAcquireRequiresDate(t *testing.T) {
	database := testutil.NewTestDB(t)
	manager := token.NewManager(database, settings.NewStore(database.Queries))

	alpha := testutil.SeedTeam(t, database, "Alpha", store.RoleTeam)
	if err := manager.Acquire(context.Background(), alpha.ID, "", false); err == nil {
		t.Fatal("expected error for empty hold date")
	}
}
