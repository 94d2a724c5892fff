// Package reservations serves the reservation listings and the lifecycle
// actions outside the wizard: deletion and approval.
package reservations

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/email"
	"github.com/tfrey42/pitchside/internal/store"
)

var (
	database *db.DB
	queries  *store.Queries
	notifier *email.Notifier
)

func InitHandlers(d *db.DB, n *email.Notifier) {
	database = d
	queries = d.Queries
	notifier = n
}

func reservationPayload(d store.ReservationDetail) map[string]any {
	return map[string]any{
		"id":            d.ID,
		"game_number":   d.GameNumber,
		"game_opponent": d.GameOpponent,
		"date":          d.Date,
		"approved":      d.Approved,
		"team_id":       d.TeamID,
		"team":          d.TeamFullName(),
		"field":         d.FieldName,
		"gametype":      d.GametypeName,
		"start_time":    d.StartTime,
		"end_time":      d.EndTime,
		"age":           d.Age,
		"gender":        d.Gender,
	}
}

func writeList(w http.ResponseWriter, details []store.ReservationDetail) {
	payload := make([]map[string]any, 0, len(details))
	for _, d := range details {
		payload = append(payload, reservationPayload(d))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

// HandleListMine returns the caller's upcoming reservations: a team sees its
// own, a manager sees its teams', a superuser sees everything pending or
// approved from today on.
func HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}

	today := time.Now().Format(dates.DayLayout)
	var details []store.ReservationDetail
	switch user.Role {
	case store.RoleSuperuser:
		details, err = queries.ListApprovedReservationsFrom(r.Context(), today)
	case store.RoleManager:
		details, err = queries.ListManagedReservations(r.Context(), user.ID, today)
	default:
		details, err = queries.ListTeamReservations(r.Context(), user.ID, today)
	}
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeList(w, details)
}

// HandleListPending returns unapproved reservations for the approval queue.
func HandleListPending(w http.ResponseWriter, r *http.Request) {
	if _, err := authz.RequireRole(r.Context(), store.RoleSuperuser); err != nil {
		writeAuthzError(w, r, err)
		return
	}
	details, err := queries.ListPendingReservations(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeList(w, details)
}

// HandleGet returns one reservation.
func HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	detail, err := queries.GetReservationDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "reservation not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}

	allowed, err := mayTouch(r, user, detail.TeamID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !allowed {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "not permitted"})
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, reservationPayload(detail))
}

// HandleDelete soft-deletes a reservation. The row stays for the archival
// sweep; availability treats the slot as free immediately.
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	detail, err := queries.GetReservationDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "reservation not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}

	allowed, err := mayTouch(r, user, detail.TeamID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !allowed {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "not permitted to delete this reservation"})
		return
	}

	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		if err := txdb.Queries.SetReservationActive(r.Context(), id, false); err != nil {
			return err
		}
		return txdb.Queries.InsertAuditEntry(r.Context(), store.InsertAuditEntryParams{
			ActorID:   user.ID,
			ActorName: user.FullName(),
			Action:    store.AuditDelete,
			Object:    "reservation",
			Message:   detail.Date + " " + detail.FieldName + " " + detail.StartTime,
		})
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	notifier.ReservationDeleted(r.Context(), detail, *user)
	w.WriteHeader(http.StatusNoContent)
}

// HandleApprove approves a pending reservation and tells the team.
func HandleApprove(w http.ResponseWriter, r *http.Request) {
	setApproval(w, r, true)
}

// HandleUnapprove sends a reservation back to the pending queue.
func HandleUnapprove(w http.ResponseWriter, r *http.Request) {
	setApproval(w, r, false)
}

func setApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	user, err := authz.RequireRole(r.Context(), store.RoleSuperuser)
	if err != nil {
		writeAuthzError(w, r, err)
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	detail, err := queries.GetReservationDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "reservation not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}

	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		if err := txdb.Queries.SetReservationApproved(r.Context(), id, approved); err != nil {
			return err
		}
		return txdb.Queries.InsertAuditEntry(r.Context(), store.InsertAuditEntryParams{
			ActorID:   user.ID,
			ActorName: user.FullName(),
			Action:    store.AuditChange,
			Object:    "reservation",
			Message:   approvalMessage(detail, approved),
		})
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if approved {
		detail.Approved = true
		notifier.ReservationApproved(r.Context(), detail)
	}
	w.WriteHeader(http.StatusNoContent)
}

func approvalMessage(d store.ReservationDetail, approved bool) string {
	if approved {
		return "approved " + d.Date + " " + d.FieldName
	}
	return "unapproved " + d.Date + " " + d.FieldName
}

// mayTouch mirrors the wizard's act-for rule for read and delete.
func mayTouch(r *http.Request, user *store.Team, teamID int64) (bool, error) {
	switch user.Role {
	case store.RoleSuperuser:
		return true, nil
	case store.RoleManager:
		return queries.IsManagerOf(r.Context(), user.ID, teamID)
	default:
		return user.ID == teamID, nil
	}
}

func writeAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authz.ErrUnauthenticated) {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}
	apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "superuser required"})
}
