package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/auth"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

func teamPayload(t store.Team) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"name":        t.Name,
		"description": t.Description,
		"email":       t.Email,
		"role":        t.Role,
		"age":         t.Age,
		"gender":      t.Gender,
		"active":      t.Active,
	}
}

// HandleListTeams returns every account, active and not.
func HandleListTeams(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	teams, err := queries.ListTeams(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(teams))
	for _, t := range teams {
		payload = append(payload, teamPayload(t))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type teamRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	Age         string  `json:"age"`
	Gender      string  `json:"gender"`
	ManagedIDs  []int64 `json:"managed_team_ids"`
}

func (req *teamRequest) validate(creating bool) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apiutil.FieldError{Field: "name", Reason: "is required"}
	}
	switch req.Role {
	case store.RoleTeam, store.RoleManager, store.RoleSuperuser:
	default:
		return apiutil.FieldError{Field: "role", Reason: "must be team, manager, or superuser"}
	}
	if creating && len(req.Password) < 8 {
		return apiutil.FieldError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return nil
}

// HandleCreateTeam creates an account of any role.
func HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}

	var req teamRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	if err := req.validate(true); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var team store.Team
	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		var err error
		team, err = q.CreateTeam(r.Context(), store.CreateTeamParams{
			Name:         req.Name,
			Description:  req.Description,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         req.Role,
			Age:          req.Age,
			Gender:       req.Gender,
		})
		if err != nil {
			return err
		}
		if req.Role == store.RoleManager && len(req.ManagedIDs) > 0 {
			if err := q.SetManagerTeams(r.Context(), team.ID, req.ManagedIDs); err != nil {
				return err
			}
		}
		return audit(r, q, user, store.AuditCreate, "team", req.Name)
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, teamPayload(team))
}

// HandleUpdateTeam edits an account's profile; password changes are separate.
func HandleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req teamRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	if err := req.validate(false); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	err = database.RunInTx(r.Context(), func(txdb *db.DB) error {
		q := txdb.Queries
		if _, err := q.GetTeam(r.Context(), id); err != nil {
			return err
		}
		if err := q.UpdateTeam(r.Context(), store.UpdateTeamParams{
			ID:          id,
			Name:        req.Name,
			Description: req.Description,
			Email:       req.Email,
			Role:        req.Role,
			Age:         req.Age,
			Gender:      req.Gender,
		}); err != nil {
			return err
		}
		if req.Password != "" {
			if len(req.Password) < 8 {
				return apiutil.HandlerError{Status: http.StatusBadRequest, Message: "password must be at least 8 characters"}
			}
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				return err
			}
			if err := q.UpdateTeamPassword(r.Context(), id, hash); err != nil {
				return err
			}
		}
		if req.Role == store.RoleManager {
			if err := q.SetManagerTeams(r.Context(), id, req.ManagedIDs); err != nil {
				return err
			}
		}
		return audit(r, q, user, store.AuditChange, "team", req.Name)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "team not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeactivateTeam retires an account. The row survives until the
// cleanup sweep finds it unreferenced.
func HandleDeactivateTeam(w http.ResponseWriter, r *http.Request) {
	setTeamActive(w, r, false)
}

// HandleActivateTeam restores a deactivated account.
func HandleActivateTeam(w http.ResponseWriter, r *http.Request) {
	setTeamActive(w, r, true)
}

func setTeamActive(w http.ResponseWriter, r *http.Request, active bool) {
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
		team, err := q.GetTeam(r.Context(), id)
		if err != nil {
			return err
		}
		if err := q.SetTeamActive(r.Context(), id, active); err != nil {
			return err
		}
		action := store.AuditDelete
		message := "deactivated " + team.Name
		if active {
			action = store.AuditChange
			message = "reactivated " + team.Name
		}
		return audit(r, q, user, action, "team", message)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "team not found"})
			return
		}
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
