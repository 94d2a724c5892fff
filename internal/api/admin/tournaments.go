package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

// HandleListTournaments returns active tournaments with their fields.
func HandleListTournaments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
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
		entry := map[string]any{
			"id":         t.ID,
			"name":       t.Name,
			"start_date": t.StartDate,
			"end_date":   t.EndDate,
			"fields":     fieldNames,
		}
		if t.GametypeID.Valid {
			entry["gametype_id"] = t.GametypeID.Int64
		}
		payload = append(payload, entry)
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type tournamentRequest struct {
	Name       string  `json:"name"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	GametypeID int64   `json:"gametype_id"`
	FieldIDs   []int64 `json:"field_ids"`
}

// HandleCreateTournament reserves whole fields for a date range. Existing
// reservations on those fields are untouched; the availability rules simply
// stop offering the fields for the duration.
func HandleCreateTournament(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	var req tournamentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "name is required"})
		return
	}
	if len(req.FieldIDs) == 0 {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "at least one field is required"})
		return
	}
	start, err := time.Parse(dates.DayLayout, req.StartDate)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid start date"})
		return
	}
	end, err := time.Parse(dates.DayLayout, req.EndDate)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid end date"})
		return
	}
	if end.Before(start) {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "end date precedes start date"})
		return
	}

	gametypeID := sql.NullInt64{Int64: req.GametypeID, Valid: req.GametypeID != 0}

	// Blocking off whole fields must not race an in-flight booking.
	if !holdBlockAll(w, r, user.ID) {
		return
	}
	defer func() {
		_ = tokenManager.Release(r.Context(), user.ID)
	}()

	var tournament store.Tournament
	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		var err error
		tournament, err = q.CreateTournament(r.Context(), store.CreateTournamentParams{
			Name:       req.Name,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			GametypeID: gametypeID,
			FieldIDs:   req.FieldIDs,
		})
		if err != nil {
			return err
		}
		return audit(r, q, user, store.AuditCreate, "tournament", req.Name)
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         tournament.ID,
		"name":       tournament.Name,
		"start_date": tournament.StartDate,
		"end_date":   tournament.EndDate,
	})
}

// HandleDeactivateTournament ends a tournament early. The archival sweep
// moves it to the archive.
func HandleDeactivateTournament(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		tournament, err := q.GetTournament(r.Context(), id)
		if err != nil {
			return err
		}
		if err := q.SetTournamentActive(r.Context(), id, false); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditDelete, "tournament", tournament.Name)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "tournament not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
