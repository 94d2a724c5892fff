// Package editor drives the multi-step reservation wizard. The draft lives
// in the session; the reservation token is held from the moment a date is
// chosen until the draft commits or is cancelled.
package editor

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/availability"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/email"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/token"
	"github.com/tfrey42/pitchside/internal/wizard"
)

var (
	database *db.DB
	queries  *store.Queries
	sessions *session.Store
	tokens   *token.Manager
	resolver *availability.Resolver
	notifier *email.Notifier
)

func InitHandlers(d *db.DB, s *session.Store, t *token.Manager, r *availability.Resolver, n *email.Notifier) {
	database = d
	queries = d.Queries
	sessions = s
	tokens = t
	resolver = r
	notifier = n
}

// requireSession returns the caller's team and session or writes an error.
func requireSession(w http.ResponseWriter, r *http.Request) (*store.Team, *session.Session, bool) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return nil, nil, false
	}
	sess, err := sessions.FromRequest(r)
	if err != nil || sess == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return nil, nil, false
	}
	return user, sess, true
}

// canActFor reports whether the caller may create or edit reservations for
// the team.
func canActFor(r *http.Request, user *store.Team, teamID int64) (bool, error) {
	switch user.Role {
	case store.RoleSuperuser:
		return true, nil
	case store.RoleManager:
		return queries.IsManagerOf(r.Context(), user.ID, teamID)
	default:
		return user.ID == teamID, nil
	}
}

type startRequest struct {
	TeamID int64 `json:"team_id"`
}

// HandleStart begins a new reservation draft. Teams book for themselves;
// managers and superusers pass the team they are booking for.
func HandleStart(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req startRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	if req.TeamID == 0 {
		req.TeamID = user.ID
	}

	allowed, err := canActFor(r, user, req.TeamID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !allowed {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "not permitted to book for this team"})
		return
	}

	team, err := queries.GetTeam(r.Context(), req.TeamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "team not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if team.Role != store.RoleTeam {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "reservations belong to team accounts"})
		return
	}

	sessions.SetDraft(sess, wizard.NewDraft(team))
	writeDraft(w, sessions.Draft(sess))
}

// HandleStartEdit begins editing an existing reservation.
func HandleStartEdit(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resv, err := queries.GetReservationDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "reservation not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	if !resv.Active {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusGone, Message: "reservation was deleted"})
		return
	}

	allowed, err := canActFor(r, user, resv.TeamID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !allowed {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "not permitted to edit this reservation"})
		return
	}

	if blocked := blockedDate(r, user, resv.Date); blocked != nil {
		apiutil.WriteError(w, r, *blocked)
		return
	}

	// Hold the token for the reservation's current date up front so nobody
	// races the edit.
	if err := acquire(r, user, resv.Date); err != nil {
		writeTokenError(w, r, err)
		return
	}

	sessions.SetDraft(sess, wizard.EditDraft(resv))
	writeDraft(w, sessions.Draft(sess))
}

type gameInfoRequest struct {
	GameNumber   int64  `json:"game_number"`
	GameOpponent string `json:"game_opponent"`
	GametypeID   int64  `json:"gametype_id"`
	Date         string `json:"date"`
	Age          string `json:"age"`
	Gender       string `json:"gender"`
}

// HandleGameInfo records step one and takes the reservation token for the
// chosen date.
func HandleGameInfo(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return
	}

	var req gameInfoRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}

	if blocked := blockedDate(r, user, req.Date); blocked != nil {
		apiutil.WriteError(w, r, *blocked)
		return
	}

	if err := draft.ApplyGameInfo(wizard.GameInfo{
		GameNumber:   req.GameNumber,
		GameOpponent: req.GameOpponent,
		GametypeID:   req.GametypeID,
		Date:         req.Date,
		Age:          req.Age,
		Gender:       req.Gender,
	}); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	// A date change re-points the hold; Acquire drops the old date itself.
	if err := acquire(r, user, draft.Date); err != nil {
		draft.Back()
		writeTokenError(w, r, err)
		return
	}

	sessions.SetDraft(sess, draft)
	writeDraft(w, draft)
}

// HandleSlots lists the bookable slots for the draft's date, grouped by
// field.
func HandleSlots(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil || draft.Date == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return
	}

	if !reacquire(w, r, user, draft) {
		return
	}

	slots, err := resolver.Available(r.Context(), draftQuery(user, draft))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	grouped := availability.GroupByField(slots)
	payload := make([]map[string]any, 0, len(grouped))
	for _, g := range grouped {
		slotList := make([]map[string]any, 0, len(g.Slots))
		for _, s := range g.Slots {
			slotList = append(slotList, map[string]any{
				"timeslot_id": s.ID,
				"start_time":  s.StartTime,
				"end_time":    s.EndTime,
			})
		}
		payload = append(payload, map[string]any{
			"field_id":   g.FieldID,
			"field_name": g.FieldName,
			"slots":      slotList,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type slotRequest struct {
	TimeslotID int64 `json:"timeslot_id"`
	FieldID    int64 `json:"field_id"`
}

// HandleSlot records the chosen slot. Edits commit immediately; new
// reservations move on to review.
func HandleSlot(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return
	}

	var req slotRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}

	if !reacquire(w, r, user, draft) {
		return
	}

	// The choice must come from the availability listing; a hand-crafted
	// request must not book an inactive, unauthorized, or overlapped slot.
	slots, err := resolver.Available(r.Context(), draftQuery(user, draft))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	offered := false
	for _, s := range slots {
		if s.ID == req.TimeslotID && s.FieldID == req.FieldID {
			offered = true
			break
		}
	}
	if !offered {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "timeslot is not available"})
		return
	}

	if err := draft.ApplySlot(req.TimeslotID, req.FieldID); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	if draft.Ready() {
		commitDraft(w, r, user, sess, draft)
		return
	}

	sessions.SetDraft(sess, draft)
	writeDraft(w, draft)
}

// HandleConfirm finishes the review step of a new reservation and commits.
func HandleConfirm(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return
	}

	if !reacquire(w, r, user, draft) {
		return
	}

	if err := draft.Confirm(); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	commitDraft(w, r, user, sess, draft)
}

// HandleBack steps the wizard backwards.
func HandleBack(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return
	}
	draft.Back()
	sessions.SetDraft(sess, draft)
	writeDraft(w, draft)
}

// HandleCancel abandons the draft and releases the token.
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	sessions.SetDraft(sess, nil)
	if err := tokens.Release(r.Context(), user.ID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDraft returns the current draft for page reloads.
func HandleDraft(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	draft := sessions.Draft(sess)
	if draft == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "no reservation in progress"})
		return
	}
	writeDraft(w, draft)
}

// commitDraft writes the finished draft inside one transaction, re-checking
// conflicts against the live tables first.
func commitDraft(w http.ResponseWriter, r *http.Request, user *store.Team, sess *session.Session, draft *wizard.Draft) {
	if !draft.Ready() {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "reservation is not complete"})
		return
	}
	if blocked := blockedDate(r, user, draft.Date); blocked != nil {
		apiutil.WriteError(w, r, *blocked)
		return
	}
	// The token may have been reaped while the draft sat in review.
	if !reacquire(w, r, user, draft) {
		return
	}

	// Superuser bookings skip the approval queue.
	approved := authz.IsSuperuser(user)

	var saved store.Reservation
	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		checker := resolver.WithQueries(q)

		if err := checker.CheckConflicts(r.Context(), draft.Date, draft.TimeslotID, draft.FieldID, draft.ReservationID); err != nil {
			return err
		}

		var err error
		if draft.Mode == wizard.ModeEdit {
			saved, err = q.UpdateReservation(r.Context(), store.UpdateReservationParams{
				ID:           draft.ReservationID,
				GameNumber:   draft.GameNumber,
				GameOpponent: draft.GameOpponent,
				Date:         draft.Date,
				Approved:     approved,
				TeamID:       draft.TeamID,
				FieldID:      draft.FieldID,
				GametypeID:   draft.GametypeID,
				TimeslotID:   draft.TimeslotID,
				Age:          draft.Age,
				Gender:       draft.Gender,
			})
		} else {
			saved, err = q.CreateReservation(r.Context(), store.CreateReservationParams{
				GameNumber:   draft.GameNumber,
				GameOpponent: draft.GameOpponent,
				Date:         draft.Date,
				Approved:     approved,
				TeamID:       draft.TeamID,
				FieldID:      draft.FieldID,
				GametypeID:   draft.GametypeID,
				TimeslotID:   draft.TimeslotID,
				Age:          draft.Age,
				Gender:       draft.Gender,
			})
		}
		if err != nil {
			return err
		}

		action := store.AuditCreate
		if draft.Mode == wizard.ModeEdit {
			action = store.AuditChange
		}
		return q.InsertAuditEntry(r.Context(), store.InsertAuditEntryParams{
			ActorID:   user.ID,
			ActorName: user.FullName(),
			Action:    action,
			Object:    "reservation",
			Message:   draft.Date + " timeslot " + strconv.FormatInt(draft.TimeslotID, 10),
		})
	})
	if err != nil {
		if errors.Is(err, availability.ErrSlotTaken) || errors.Is(err, availability.ErrTournamentConflict) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: err.Error()})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}

	sessions.SetDraft(sess, nil)
	if err := tokens.Release(r.Context(), user.ID); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to release reservation token")
	}

	if detail, err := queries.GetReservationDetail(r.Context(), saved.ID); err == nil && !approved {
		if draft.Mode == wizard.ModeEdit {
			notifier.ReservationChanged(r.Context(), detail)
		} else {
			notifier.ReservationCreated(r.Context(), detail)
		}
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":       saved.ID,
		"date":     saved.Date,
		"approved": saved.Approved,
	})
}

func acquire(r *http.Request, user *store.Team, date string) error {
	return tokens.Acquire(r.Context(), user.ID, date, false)
}

// reacquire re-asserts the draft's hold on every step past game info. The
// token can expire mid-wizard and pass to someone else; re-entry by the
// current holder is free, anything else surfaces the new holder.
func reacquire(w http.ResponseWriter, r *http.Request, user *store.Team, draft *wizard.Draft) bool {
	if draft.Date == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "no reservation in progress"})
		return false
	}
	if err := acquire(r, user, draft.Date); err != nil {
		writeTokenError(w, r, err)
		return false
	}
	return true
}

// draftQuery is the availability lookup for the draft's date and team.
func draftQuery(user *store.Team, draft *wizard.Draft) availability.Query {
	q := availability.Query{TeamID: draft.TeamID, Date: draft.Date}
	if authz.IsSuperuser(user) {
		q.TeamID = 0 // superusers see every field
	}
	if draft.Mode == wizard.ModeEdit {
		q.KeepTimeslotID = draft.TimeslotID
	}
	return q
}

func writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	var blocked *token.BlockedError
	if errors.As(err, &blocked) {
		_ = apiutil.WriteJSON(w, http.StatusConflict, map[string]any{
			"error":        blocked.Error(),
			"holder":       blocked.HolderName,
			"minutes_left": blocked.MinutesLeft,
		})
		return
	}
	apiutil.WriteError(w, r, err)
}

// blockedDate returns an error when the weekly block window forbids touching
// the date.
func blockedDate(r *http.Request, user *store.Team, date string) *apiutil.HandlerError {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return &apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid date"}
	}
	if resolver.ReservationBlocked(r.Context(), time.Now(), parsed, authz.IsSuperuser(user)) {
		return &apiutil.HandlerError{Status: http.StatusForbidden, Message: "reservations for this week are locked"}
	}
	return nil
}

func writeDraft(w http.ResponseWriter, draft *wizard.Draft) {
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"mode":           draft.Mode,
		"step":           draft.Step,
		"reservation_id": draft.ReservationID,
		"team_id":        draft.TeamID,
		"game_number":    draft.GameNumber,
		"game_opponent":  draft.GameOpponent,
		"gametype_id":    draft.GametypeID,
		"date":           draft.Date,
		"timeslot_id":    draft.TimeslotID,
		"field_id":       draft.FieldID,
		"age":            draft.Age,
		"gender":         draft.Gender,
	})
}
