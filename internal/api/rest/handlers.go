// Package rest serves the read-mostly widget endpoints: the public weekly
// schedule, the catalog lists the booking forms need, the sidebar toggle,
// and the crew-assignment CSV export.
package rest

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/csvexport"
	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
)

var (
	queries  *store.Queries
	siteCfg  *settings.Store
	sessions *session.Store
	exporter *csvexport.Exporter
)

func InitHandlers(q *store.Queries, s *settings.Store, sess *session.Store, e *csvexport.Exporter) {
	queries = q
	siteCfg = s
	sessions = sess
	exporter = e
}

// weekBounds resolves the display window: explicit query params win,
// otherwise the configured calendar range around today.
func weekBounds(r *http.Request) (dates.Bounds, error) {
	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")
	if startParam != "" && endParam != "" {
		start, err := time.Parse(dates.DayLayout, startParam)
		if err != nil {
			return dates.Bounds{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid start date"}
		}
		end, err := time.Parse(dates.DayLayout, endParam)
		if err != nil {
			return dates.Bounds{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid end date"}
		}
		if end.Before(start) {
			return dates.Bounds{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "end date precedes start date"}
		}
		return dates.Bounds{Start: start, End: end}, nil
	}

	startBound := siteCfg.GetInt(r.Context(), settings.KeyCalendarRangeStart, -1)
	endBound := siteCfg.GetInt(r.Context(), settings.KeyCalendarRangeEnd, 6)
	return dates.WeekBounds(time.Now(), startBound, endBound), nil
}

// HandleSchedule returns the approved schedule for the display window. This
// is the public calendar; it needs no login.
func HandleSchedule(w http.ResponseWriter, r *http.Request) {
	bounds, err := weekBounds(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	details, err := queries.ListApprovedReservationsInRange(r.Context(),
		bounds.Start.Format(dates.DayLayout), bounds.End.Format(dates.DayLayout))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	tournaments, err := queries.ListActiveTournamentsInRange(r.Context(),
		bounds.Start.Format(dates.DayLayout), bounds.End.Format(dates.DayLayout))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	games := make([]map[string]any, 0, len(details))
	for _, d := range details {
		games = append(games, map[string]any{
			"id":          d.ID,
			"date":        d.Date,
			"start_time":  d.StartTime,
			"end_time":    d.EndTime,
			"field":       d.FieldName,
			"team":        d.TeamFullName(),
			"opponent":    d.GameOpponent,
			"game_number": d.GameNumber,
			"gametype":    d.GametypeName,
		})
	}
	tournamentList := make([]map[string]any, 0, len(tournaments))
	for _, t := range tournaments {
		fieldNames, err := queries.TournamentFieldNames(r.Context(), t.ID)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		tournamentList = append(tournamentList, map[string]any{
			"id":         t.ID,
			"name":       t.Name,
			"start_date": t.StartDate,
			"end_date":   t.EndDate,
			"fields":     fieldNames,
		})
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"start":       bounds.Start.Format(dates.DayLayout),
		"end":         bounds.End.Format(dates.DayLayout),
		"games":       games,
		"tournaments": tournamentList,
	})
}

// HandleScheduleDetail returns one approved game for the calendar popup.
func HandleScheduleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	detail, err := queries.GetReservationDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "game not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if !detail.Active || !detail.Approved {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "game not found"})
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":          detail.ID,
		"date":        detail.Date,
		"start_time":  detail.StartTime,
		"end_time":    detail.EndTime,
		"field":       detail.FieldName,
		"team":        detail.TeamFullName(),
		"opponent":    detail.GameOpponent,
		"game_number": detail.GameNumber,
		"gametype":    detail.GametypeName,
		"age":         detail.Age,
		"gender":      detail.Gender,
	})
}

// HandleCatalog returns the active fields and gametypes for the booking
// forms.
func HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if _, err := authz.RequireUser(r.Context()); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}

	fields, err := queries.ListActiveFields(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	gametypes, err := queries.ListActiveGameTypes(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	fieldList := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		fieldList = append(fieldList, map[string]any{"id": f.ID, "name": f.Name})
	}
	gametypeList := make([]map[string]any, 0, len(gametypes))
	for _, g := range gametypes {
		gametypeList = append(gametypeList, map[string]any{"id": g.ID, "name": g.Name})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"fields":    fieldList,
		"gametypes": gametypeList,
	})
}

// HandleListTeams returns the active teams with their upcoming approved
// games, for the public team roster widget.
func HandleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := queries.ListActiveTeams(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	today := time.Now().Format(dates.DayLayout)
	payload := make([]map[string]any, 0, len(teams))
	for _, team := range teams {
		games, err := upcomingApprovedGames(r, team.ID, today)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		payload = append(payload, map[string]any{
			"id":     team.ID,
			"name":   team.FullName(),
			"age":    team.Age,
			"gender": team.Gender,
			"games":  games,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleGetTeam returns one active team with its upcoming approved games.
func HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	team, err := queries.GetTeam(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "team not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if !team.Active || team.Role != store.RoleTeam {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "team not found"})
		return
	}

	games, err := upcomingApprovedGames(r, team.ID, time.Now().Format(dates.DayLayout))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":          team.ID,
		"name":        team.FullName(),
		"description": team.Description,
		"age":         team.Age,
		"gender":      team.Gender,
		"games":       games,
	})
}

func upcomingApprovedGames(r *http.Request, teamID int64, fromDate string) ([]map[string]any, error) {
	details, err := queries.ListTeamReservations(r.Context(), teamID, fromDate)
	if err != nil {
		return nil, err
	}
	games := make([]map[string]any, 0, len(details))
	for _, d := range details {
		if !d.Approved {
			continue
		}
		games = append(games, map[string]any{
			"id":          d.ID,
			"date":        d.Date,
			"start_time":  d.StartTime,
			"end_time":    d.EndTime,
			"field":       d.FieldName,
			"opponent":    d.GameOpponent,
			"game_number": d.GameNumber,
			"gametype":    d.GametypeName,
		})
	}
	return games, nil
}

// HandleListTournaments returns the active tournaments for the public widget.
func HandleListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := queries.ListActiveTournaments(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(tournaments))
	for _, t := range tournaments {
		fieldNames, err := queries.TournamentFieldNames(r.Context(), t.ID)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		payload = append(payload, map[string]any{
			"id":         t.ID,
			"name":       t.Name,
			"start_date": t.StartDate,
			"end_date":   t.EndDate,
			"fields":     fieldNames,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleGetTournament returns one active tournament.
func HandleGetTournament(w http.ResponseWriter, r *http.Request) {
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	tournament, err := queries.GetTournament(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "tournament not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if !tournament.Active {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "tournament not found"})
		return
	}
	fieldNames, err := queries.TournamentFieldNames(r.Context(), tournament.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         tournament.ID,
		"name":       tournament.Name,
		"start_date": tournament.StartDate,
		"end_date":   tournament.EndDate,
		"fields":     fieldNames,
	})
}

// HandleDashboard summarizes the display window for the landing page:
// approved games per gametype, tournaments, and (for superusers) the
// approval backlog.
func HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}

	bounds, err := weekBounds(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	start := bounds.Start.Format(dates.DayLayout)
	end := bounds.End.Format(dates.DayLayout)

	details, err := queries.ListApprovedReservationsInRange(r.Context(), start, end)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	tournaments, err := queries.ListActiveTournamentsInRange(r.Context(), start, end)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	perGametype := map[string]int{}
	for _, d := range details {
		perGametype[d.GametypeName]++
	}

	payload := map[string]any{
		"start":         start,
		"end":           end,
		"games":         len(details),
		"games_by_type": perGametype,
		"tournaments":   len(tournaments),
	}
	if authz.IsSuperuser(user) {
		pending, err := queries.ListPendingReservations(r.Context())
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		payload["pending_approvals"] = len(pending)
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleToggleSidebar flips the session's sidebar preference.
func HandleToggleSidebar(w http.ResponseWriter, r *http.Request) {
	sess, err := sessions.FromRequest(r)
	if err != nil || sess == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}
	hidden := sessions.ToggleSidebar(sess)
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"sidebar_hidden": hidden})
}

// HandleExportCSV streams the crew assignment sheet for the display window.
func HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	if _, err := authz.RequireRole(r.Context(), store.RoleSuperuser); err != nil {
		if errors.Is(err, authz.ErrUnauthenticated) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		} else {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "superuser required"})
		}
		return
	}

	bounds, err := weekBounds(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	filename := fmt.Sprintf("schedule_%s.csv", bounds.Start.Format(dates.DayLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := exporter.Write(r.Context(), w, bounds); err != nil {
		// Headers are already out; all we can do is log.
		log.Ctx(r.Context()).Error().Err(err).Msg("CSV export failed mid-stream")
	}
}
