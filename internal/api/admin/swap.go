package admin

import (
	"errors"
	"net/http"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/email"
	"github.com/tfrey42/pitchside/internal/swap"
	"github.com/tfrey42/pitchside/internal/token"
)

var (
	tokenManager *token.Manager
	notifier     *email.Notifier
)

// InitSwapHandlers wires the extra dependencies the swap tool needs.
func InitSwapHandlers(t *token.Manager, n *email.Notifier) {
	tokenManager = t
	notifier = n
}

// holdBlockAll takes the global reservation hold for the caller, writing a
// 409 with the current holder on contention. The caller must Release.
func holdBlockAll(w http.ResponseWriter, r *http.Request, teamID int64) bool {
	if err := tokenManager.Acquire(r.Context(), teamID, "", true); err != nil {
		var blocked *token.BlockedError
		if errors.As(err, &blocked) {
			_ = apiutil.WriteJSON(w, http.StatusConflict, map[string]any{
				"error":        blocked.Error(),
				"holder":       blocked.HolderName,
				"minutes_left": blocked.MinutesLeft,
			})
			return false
		}
		apiutil.WriteError(w, r, err)
		return false
	}
	return true
}

type swapRequest struct {
	Assignments []struct {
		ReservationID int64  `json:"reservation_id"`
		Date          string `json:"date"`
		TimeslotID    int64  `json:"timeslot_id"`
		FieldID       int64  `json:"field_id"`
	} `json:"assignments"`
}

// HandleSwap exchanges the slots of the selected reservations. The whole
// system is held with a block-all token while the exchange runs so no
// booking can slip between validation and the writes.
func HandleSwap(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}

	var req swapRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}

	assignments := make([]swap.Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, swap.Assignment{
			ReservationID: a.ReservationID,
			Date:          a.Date,
			TimeslotID:    a.TimeslotID,
			FieldID:       a.FieldID,
		})
	}

	if !holdBlockAll(w, r, user.ID) {
		return
	}
	defer func() {
		_ = tokenManager.Release(r.Context(), user.ID)
	}()

	changes, err := exchanger.Exchange(r.Context(), assignments, *user)
	if err != nil {
		switch {
		case errors.Is(err, swap.ErrNotBijective),
			errors.Is(err, swap.ErrUnknownTarget),
			errors.Is(err, swap.ErrMissingTargets):
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		default:
			apiutil.WriteError(w, r, err)
		}
		return
	}

	for _, change := range changes {
		notifier.ReservationMoved(r.Context(), change.Before, change.After.Date)
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"moved": len(changes)})
}
