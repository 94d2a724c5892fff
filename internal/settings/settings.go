// Package settings exposes the website_settings table as a typed
// configuration store. Values are re-fetched on every call: they can change
// between requests and the table is shared mutable state.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/store"
)

// Keys for the runtime-tunable settings.
const (
	KeyTokenTimeout       = "RESERVATION_TOKEN_TIMEOUT"
	KeyLastCleanDate      = "LAST_CLEAN_DATE"
	KeyBlockStartDay      = "BLOCK_START_DAY"
	KeyBlockStartTime     = "BLOCK_START_TIME"
	KeyCalendarRangeStart = "CALENDAR_RANGE_START"
	KeyCalendarRangeEnd   = "CALENDAR_RANGE_END"
)

// Defaults used when a key has never been set.
const (
	DefaultTokenTimeout   = 10
	DefaultLastCleanDate  = "01/01/2016"
	DefaultBlockStartTime = "08:00:00"
)

type Store struct {
	queries *store.Queries
}

func NewStore(queries *store.Queries) *Store {
	return &Store{queries: queries}
}

// WithQueries rebinds the store to another query handle, typically one bound
// to a transaction.
func (s *Store) WithQueries(queries *store.Queries) *Store {
	return &Store{queries: queries}
}

// Get returns the setting's value, or fallback if the key has never been set.
func (s *Store) Get(ctx context.Context, key, fallback string) string {
	setting, err := s.queries.GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("key", key).Msg("Failed to read website setting")
		}
		return fallback
	}
	return setting.Value
}

// GetInt returns the setting parsed as an integer, or fallback when the key
// is absent or malformed.
func (s *Store) GetInt(ctx context.Context, key string, fallback int) int {
	value := s.Get(ctx, key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Website setting is not an integer")
		return fallback
	}
	return n
}

// Set upserts the setting.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.queries.UpsertSetting(ctx, key, value, "")
}

// List returns all settings for the admin surface.
func (s *Store) List(ctx context.Context) ([]store.WebsiteSetting, error) {
	return s.queries.ListSettings(ctx)
}
