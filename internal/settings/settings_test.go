package settings_test

import (
	"context"
	"testing"

	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/testutil"
)

func TestGetFallsBackWhenUnset(t *testing.T) {
	database := testutil.NewTestDB(t)
	siteCfg := settings.NewStore(database.Queries)
	ctx := context.Background()

	if got := siteCfg.Get(ctx, "NO_SUCH_KEY", "fallback"); got != "fallback" {
		t.Errorf("Get = %q, want fallback", got)
	}
	if got := siteCfg.GetInt(ctx, "NO_SUCH_KEY", 42); got != 42 {
		t.Errorf("GetInt = %d, want 42", got)
	}
}

func TestSetUpserts(t *testing.T) {
	database := testutil.NewTestDB(t)
	siteCfg := settings.NewStore(database.Queries)
	ctx := context.Background()

	if err := siteCfg.Set(ctx, settings.KeyBlockStartDay, "3"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := siteCfg.GetInt(ctx, settings.KeyBlockStartDay, 0); got != 3 {
		t.Errorf("GetInt = %d, want 3", got)
	}

	// Overwrite, not duplicate.
	if err := siteCfg.Set(ctx, settings.KeyBlockStartDay, "4"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := siteCfg.GetInt(ctx, settings.KeyBlockStartDay, 0); got != 4 {
		t.Errorf("GetInt after overwrite = %d, want 4", got)
	}

	all, err := siteCfg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := 0
	for _, s := range all {
		if s.Key == settings.KeyBlockStartDay {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("rows for key = %d, want 1", seen)
	}
}

func TestGetIntIgnoresMalformedValue(t *testing.T) {
	database := testutil.NewTestDB(t)
	siteCfg := settings.NewStore(database.Queries)
	ctx := context.Background()

	if err := siteCfg.Set(ctx, settings.KeyTokenTimeout, "soon"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := siteCfg.GetInt(ctx, settings.KeyTokenTimeout, settings.DefaultTokenTimeout); got != settings.DefaultTokenTimeout {
		t.Errorf("GetInt = %d, want default %d", got, settings.DefaultTokenTimeout)
	}
}
