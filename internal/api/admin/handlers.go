// Package admin is the superuser surface: account and catalog management,
// tournaments, settings, the swap tool, audit history, and operational
// actions like clearing stuck tokens or forcing the weekly cleanup.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/availability"
	"github.com/tfrey42/pitchside/internal/cleanup"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/swap"
)

var (
	database  *db.DB
	queries   *store.Queries
	siteCfg   *settings.Store
	resolver  *availability.Resolver
	exchanger *swap.Exchanger
	sweeper   *cleanup.Runner
)

func InitHandlers(d *db.DB, s *settings.Store, r *availability.Resolver, e *swap.Exchanger, c *cleanup.Runner) {
	database = d
	queries = d.Queries
	siteCfg = s
	resolver = r
	exchanger = e
	sweeper = c
}

// requireSuperuser gates every admin handler.
func requireSuperuser(w http.ResponseWriter, r *http.Request) (*store.Team, bool) {
	user, err := authz.RequireRole(r.Context(), store.RoleSuperuser)
	if err != nil {
		if errors.Is(err, authz.ErrUnauthenticated) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		} else {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "superuser required"})
		}
		return nil, false
	}
	return user, true
}

func audit(r *http.Request, q *store.Queries, actor *store.Team, action, object, message string) error {
	return q.InsertAuditEntry(r.Context(), store.InsertAuditEntryParams{
		ActorID:   actor.ID,
		ActorName: actor.FullName(),
		Action:    action,
		Object:    object,
		Message:   message,
	})
}

// HandleAuditLog returns the most recent audit entries.
func HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	entries, err := queries.ListRecentAuditEntries(r.Context(), 200)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, map[string]any{
			"id":         e.ID,
			"actor":      e.ActorName,
			"action":     e.Action,
			"object":     e.Object,
			"message":    e.Message,
			"created_at": e.CreatedAt.Format(time.RFC3339),
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleRunCleanup forces a cleanup check outside the schedule.
func HandleRunCleanup(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	report, ran, err := sweeper.Run(r.Context(), time.Now())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"ran":                   ran,
		"archived_reservations": report.ArchivedReservations,
		"archived_tournaments":  report.ArchivedTournaments,
		"deleted_gametypes":     report.DeletedGameTypes,
		"deleted_timeslots":     report.DeletedTimeSlots,
		"deleted_fields":        report.DeletedFields,
		"deleted_teams":         report.DeletedTeams,
	})
}

// HandleClearTokens deletes every reservation token. Used when a stale hold
// is blocking everyone.
func HandleClearTokens(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		holders, err := txdb.Queries.ListTeams(r.Context())
		if err != nil {
			return err
		}
		for _, holder := range holders {
			if err := txdb.Queries.DeleteTeamTokens(r.Context(), holder.ID); err != nil {
				return err
			}
		}
		return audit(r, txdb.Queries, user, store.AuditDelete, "reservation_tokens", "cleared all tokens")
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Msg("Reservation tokens cleared")
	w.WriteHeader(http.StatusNoContent)
}

// HandleListArchivedReservations returns the reservation archive.
func HandleListArchivedReservations(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	archived, err := queries.ListArchivedReservations(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(archived))
	for _, a := range archived {
		payload = append(payload, map[string]any{
			"id":            a.ID,
			"game_number":   a.GameNumber,
			"game_opponent": a.GameOpponent,
			"date":          a.Date,
			"approved":      a.Approved,
			"team":          a.Team,
			"location":      a.Location,
			"gametype":      a.Gametype,
			"start_time":    a.StartTime,
			"end_time":      a.EndTime,
			"deleted":       a.Deleted,
			"age":           a.Age,
			"gender":        a.Gender,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleListArchivedTournaments returns the tournament archive.
func HandleListArchivedTournaments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	archived, err := queries.ListArchivedTournaments(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(archived))
	for _, a := range archived {
		payload = append(payload, map[string]any{
			"id":         a.ID,
			"name":       a.Name,
			"start_date": a.StartDate,
			"end_date":   a.EndDate,
			"gametype":   a.Gametype,
			"locations":  a.Locations,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}
