package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

// HandleListFields returns every field with its timeslots.
func HandleListFields(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	fields, err := queries.ListFields(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		slots, err := queries.ListTimeSlotsByField(r.Context(), f.ID)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		slotList := make([]map[string]any, 0, len(slots))
		for _, s := range slots {
			slotList = append(slotList, map[string]any{
				"id":         s.ID,
				"start_time": s.StartTime,
				"end_time":   s.EndTime,
				"active":     s.Active,
			})
		}
		payload = append(payload, map[string]any{
			"id":        f.ID,
			"name":      f.Name,
			"active":    f.Active,
			"timeslots": slotList,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type fieldRequest struct {
	Name    string  `json:"name"`
	TeamIDs []int64 `json:"team_ids"`
}

// HandleCreateField creates a field and grants the listed teams access.
func HandleCreateField(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "name is required"})
		return
	}

	var field store.Field
	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		var err error
		field, err = q.CreateField(r.Context(), req.Name)
		if err != nil {
			return err
		}
		if err := q.SetFieldTeams(r.Context(), field.ID, req.TeamIDs); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditCreate, "field", req.Name)
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{"id": field.ID, "name": field.Name})
}

// HandleUpdateField renames a field and replaces its authorized teams.
func HandleUpdateField(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req fieldRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "name is required"})
		return
	}

	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		if _, err := q.GetField(r.Context(), id); err != nil {
			return err
		}
		if err := q.RenameField(r.Context(), id, req.Name); err != nil {
			return err
		}
		if err := q.SetFieldTeams(r.Context(), id, req.TeamIDs); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditChange, "field", req.Name)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "field not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeactivateField retires a field from new bookings.
func HandleDeactivateField(w http.ResponseWriter, r *http.Request) {
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
		field, err := q.GetField(r.Context(), id)
		if err != nil {
			return err
		}
		if err := q.SetFieldActive(r.Context(), id, false); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditDelete, "field", field.Name)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "field not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListGameTypes returns the gametype catalog.
func HandleListGameTypes(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	gametypes, err := queries.ListGameTypes(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(gametypes))
	for _, g := range gametypes {
		payload = append(payload, map[string]any{"id": g.ID, "name": g.Name, "active": g.Active})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type gametypeRequest struct {
	Name    string  `json:"name"`
	TeamIDs []int64 `json:"team_ids"`
}

// HandleCreateGameType creates a gametype and grants the listed teams use.
func HandleCreateGameType(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	var req gametypeRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "name is required"})
		return
	}

	var gametype store.GameType
	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		var err error
		gametype, err = q.CreateGameType(r.Context(), req.Name)
		if err != nil {
			return err
		}
		if err := q.SetGameTypeTeams(r.Context(), gametype.ID, req.TeamIDs); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditCreate, "gametype", req.Name)
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{"id": gametype.ID, "name": gametype.Name})
}

// HandleDeactivateGameType retires a gametype.
func HandleDeactivateGameType(w http.ResponseWriter, r *http.Request) {
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
		gametype, err := q.GetGameType(r.Context(), id)
		if err != nil {
			return err
		}
		if err := q.SetGameTypeActive(r.Context(), id, false); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditDelete, "gametype", gametype.Name)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "gametype not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type timeslotRequest struct {
	FieldID   int64  `json:"field_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Custom    bool   `json:"custom"`
}

// HandleCreateTimeSlot adds a slot to a field. A custom slot is created
// inactive with overlap links so it can host a one-off booking without
// joining the standard grid.
func HandleCreateTimeSlot(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	var req timeslotRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	if !clockPattern.MatchString(req.StartTime) || !clockPattern.MatchString(req.EndTime) {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "times must be HH:MM"})
		return
	}
	if req.StartTime >= req.EndTime {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "start time must be before end time"})
		return
	}

	var slot store.TimeSlot
	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		if _, err := q.GetField(r.Context(), req.FieldID); err != nil {
			return err
		}
		var err error
		if req.Custom {
			slot, err = resolver.WithQueries(q).CreateCustomSlot(r.Context(), req.FieldID, req.StartTime, req.EndTime)
		} else {
			slot, err = q.CreateTimeSlot(r.Context(), store.CreateTimeSlotParams{
				FieldID:   req.FieldID,
				StartTime: req.StartTime,
				EndTime:   req.EndTime,
				Active:    true,
			})
			if err != nil {
				return err
			}
			// Standard slots also need overlap links against ad-hoc ones.
			overlapping, oerr := q.ListOverlappingActiveSlots(r.Context(), req.FieldID, req.StartTime, req.EndTime)
			if oerr != nil {
				return oerr
			}
			for _, other := range overlapping {
				if other.ID == slot.ID {
					continue
				}
				if oerr := q.AddTimeSlotOverlap(r.Context(), slot.ID, other.ID); oerr != nil {
					return oerr
				}
			}
		}
		if err != nil {
			return err
		}
		return audit(r, q, user, store.AuditCreate, "timeslot", req.StartTime+"-"+req.EndTime)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "field not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         slot.ID,
		"field_id":   slot.FieldID,
		"start_time": slot.StartTime,
		"end_time":   slot.EndTime,
		"active":     slot.Active,
	})
}

// HandleDeactivateTimeSlot retires a slot from new bookings.
func HandleDeactivateTimeSlot(w http.ResponseWriter, r *http.Request) {
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
		slot, err := q.GetTimeSlot(r.Context(), id)
		if err != nil {
			return err
		}
		if err := q.SetTimeSlotActive(r.Context(), id, false); err != nil {
			return err
		}
		return audit(r, q, user, store.AuditDelete, "timeslot", slot.StartTime+"-"+slot.EndTime)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "timeslot not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
