// Package token implements the reservation token lock: a single-holder
// mutual exclusion record over "making a reservation for date D", or over
// the whole system for block-all operations. The relational store is the
// only serialization point; every acquisition runs inside one transaction
// so two requests cannot both observe "no token" and both create one.
package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
)

// BlockedError reports a failed acquisition: someone else holds a
// conflicting token.
type BlockedError struct {
	HolderID    int64
	HolderName  string
	MinutesLeft int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s is currently making a reservation (about %d minute(s) left)", e.HolderName, e.MinutesLeft)
}

type Manager struct {
	db       *db.DB
	settings *settings.Store
}

func NewManager(database *db.DB, settingsStore *settings.Store) *Manager {
	return &Manager{db: database, settings: settingsStore}
}

// Timeout returns the configured token lifetime.
func (m *Manager) Timeout(ctx context.Context) time.Duration {
	minutes := m.settings.GetInt(ctx, settings.KeyTokenTimeout, settings.DefaultTokenTimeout)
	return time.Duration(minutes) * time.Minute
}

// Acquire attempts to take the token for holdDate ("" plus blockAll=true
// means the global hold). Outdated tokens are swept first; re-entry by the
// current holder is idempotent, and a hold on a different date is re-pointed
// so a team never holds two tokens. On contention it returns a *BlockedError
// carrying the holder and the minutes remaining on their token.
func (m *Manager) Acquire(ctx context.Context, teamID int64, holdDate string, blockAll bool) error {
	if !blockAll && holdDate == "" {
		return errors.New("hold date is required")
	}

	now := time.Now().UTC()
	timeoutMinutes := m.settings.GetInt(ctx, settings.KeyTokenTimeout, settings.DefaultTokenTimeout)

	return m.db.RunInTx(ctx, func(txdb *db.DB) error {
		q := txdb.Queries

		// Lazy expiry sweep, in the same transaction as the acquire attempt.
		cutoff := now.Add(-time.Duration(timeoutMinutes) * time.Minute)
		if err := q.DeleteExpiredTokens(ctx, cutoff); err != nil {
			return fmt.Errorf("sweep expired tokens: %w", err)
		}

		hold := sql.NullString{String: holdDate, Valid: !blockAll}

		// Idempotent re-entry for the current holder.
		if _, err := q.GetTeamToken(ctx, teamID, hold); err == nil {
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check held token: %w", err)
		}

		var open store.TokenWithHolder
		var err error
		if blockAll {
			// A block-all hold contends with every outstanding token.
			open, err = q.FindAnyToken(ctx)
		} else {
			// An exact-date token or a global token blocks this date.
			open, err = q.FindBlockingToken(ctx, holdDate)
		}
		if err == nil {
			return &BlockedError{
				HolderID:    open.TeamID,
				HolderName:  open.HolderFullName(),
				MinutesLeft: minutesLeft(timeoutMinutes, now, open.Issued),
			}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check open tokens: %w", err)
		}

		// Re-point rather than accumulate: any hold the team still has on
		// another date goes away with the new acquisition.
		if err := q.DeleteTeamTokens(ctx, teamID); err != nil {
			return fmt.Errorf("release previous token: %w", err)
		}
		if _, err := q.CreateToken(ctx, teamID, now, hold); err != nil {
			return fmt.Errorf("create token: %w", err)
		}
		return nil
	})
}

// Release deletes every token the team holds. Safe to call when none exist.
func (m *Manager) Release(ctx context.Context, teamID int64) error {
	return m.db.Queries.DeleteTeamTokens(ctx, teamID)
}

func minutesLeft(timeoutMinutes int, now, issued time.Time) int {
	left := timeoutMinutes - int(now.Sub(issued).Minutes())
	if left < 0 {
		return 0
	}
	return left
}
