package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/ratelimit"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/store"
)

var (
	queries    *store.Queries
	sessions   *session.Store
	limiter    *ratelimit.Limiter
	trustProxy bool
)

func InitHandlers(q *store.Queries, s *session.Store, l *ratelimit.Limiter, proxied bool) {
	queries = q
	sessions = s
	limiter = l
	trustProxy = proxied
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleLogin authenticates a team by name and password and opens a session.
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "name and password are required"})
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy)
	if result := limiter.CheckLogin(req.Name, ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded(req.Name, ip, result.Reason)
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusTooManyRequests, Message: "too many login attempts"})
		return
	}

	team, err := queries.GetTeamByName(r.Context(), req.Name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, err)
			return
		}
		limiter.RecordFailure(req.Name, ip)
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "invalid credentials"})
		return
	}

	if !team.Active || !VerifyPassword(team.PasswordHash, req.Password) {
		if lockedOut := limiter.RecordFailure(req.Name, ip); lockedOut {
			logger.Warn().Str("team", req.Name).Msg("Login lockout triggered")
		}
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "invalid credentials"})
		return
	}

	limiter.ResetAttempts(req.Name)

	if _, err := sessions.Create(w, team.ID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().Int64("team_id", team.ID).Str("role", team.Role).Msg("Team logged in")
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":   team.ID,
		"name": team.Name,
		"role": team.Role,
	})
}

// HandleLogout ends the session.
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessions.Clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

// HandleChangePassword lets the logged-in team change its own password.
func HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "login required"})
		return
	}

	var req changePasswordRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	if len(req.New) < 8 {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "new password must be at least 8 characters"})
		return
	}
	if !VerifyPassword(user.PasswordHash, req.Current) {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "current password is incorrect"})
		return
	}

	hash, err := HashPassword(req.New)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := queries.UpdateTeamPassword(r.Context(), user.ID, hash); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	log.Ctx(r.Context()).Info().Int64("team_id", user.ID).Msg("Password changed")
	w.WriteHeader(http.StatusNoContent)
}
