// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api"
	"github.com/tfrey42/pitchside/internal/api/admin"
	"github.com/tfrey42/pitchside/internal/api/auth"
	"github.com/tfrey42/pitchside/internal/api/editor"
	"github.com/tfrey42/pitchside/internal/api/reservations"
	"github.com/tfrey42/pitchside/internal/api/rest"
	"github.com/tfrey42/pitchside/internal/availability"
	"github.com/tfrey42/pitchside/internal/cleanup"
	"github.com/tfrey42/pitchside/internal/config"
	"github.com/tfrey42/pitchside/internal/csvexport"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/email"
	"github.com/tfrey42/pitchside/internal/ratelimit"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/swap"
	"github.com/tfrey42/pitchside/internal/token"
)

// app holds the wired application graph.
type app struct {
	cfg      *config.Config
	database *db.DB
	sessions *session.Store
	sweeper  *cleanup.Runner
}

func newApp(cfg *config.Config, database *db.DB) (*app, error) {
	queries := database.Queries
	siteCfg := settings.NewStore(queries)
	sessions := session.NewStore(0, cfg.App.Environment != "development")
	tokens := token.NewManager(database, siteCfg)
	resolver := availability.NewResolver(queries, siteCfg)
	exchanger := swap.NewExchanger(database)
	sweeper := cleanup.NewRunner(database, siteCfg)
	exporter := csvexport.NewExporter(queries)
	limiter := ratelimit.New(nil)

	var sender email.Sender
	if cfg.Email.Enabled {
		ses, err := email.NewSESClient(
			cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey,
			cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			return nil, fmt.Errorf("configure email: %w", err)
		}
		sender = ses
	}
	notifier := email.NewNotifier(queries, sender, cfg.Email.SubjectPrefix)

	auth.InitHandlers(queries, sessions, limiter, cfg.App.Environment != "development")
	editor.InitHandlers(database, sessions, tokens, resolver, notifier)
	reservations.InitHandlers(database, notifier)
	admin.InitHandlers(database, siteCfg, resolver, exchanger, sweeper)
	admin.InitSwapHandlers(tokens, notifier)
	rest.InitHandlers(queries, siteCfg, sessions, exporter)

	return &app{
		cfg:      cfg,
		database: database,
		sessions: sessions,
		sweeper:  sweeper,
	}, nil
}

// runCleanup is the scheduler entry point for the weekly archival sweep.
func (a *app) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, ran, err := a.sweeper.Run(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("Scheduled cleanup failed")
	} else if !ran {
		log.Debug().Msg("Scheduled cleanup skipped, already ran this week")
	}
}

func (a *app) httpServer() *http.Server {
	router := http.NewServeMux()
	registerRoutes(router)

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithCleanup(a.sweeper, time.Hour),
		api.WithAuth(a.sessions, a.database.Queries),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("POST /api/v1/auth/password", auth.HandleChangePassword)

	// Public schedule widgets
	mux.HandleFunc("GET /api/v1/schedule", rest.HandleSchedule)
	mux.HandleFunc("GET /api/v1/schedule/{id}", rest.HandleScheduleDetail)
	mux.HandleFunc("GET /api/v1/teams", rest.HandleListTeams)
	mux.HandleFunc("GET /api/v1/teams/{id}", rest.HandleGetTeam)
	mux.HandleFunc("GET /api/v1/tournaments", rest.HandleListTournaments)
	mux.HandleFunc("GET /api/v1/tournaments/{id}", rest.HandleGetTournament)
	mux.HandleFunc("GET /api/v1/catalog", rest.HandleCatalog)
	mux.HandleFunc("GET /api/v1/dashboard", rest.HandleDashboard)
	mux.HandleFunc("POST /api/v1/sidebar/toggle", rest.HandleToggleSidebar)
	mux.HandleFunc("GET /api/v1/export/csv", rest.HandleExportCSV)
	// Navigate-away ping from the wizard pages.
	mux.HandleFunc("GET /api/v1/tokens/clear", editor.HandleCancel)

	// Reservation listings and lifecycle
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleListMine)
	mux.HandleFunc("GET /api/v1/reservations/pending", reservations.HandleListPending)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleGet)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", reservations.HandleDelete)
	mux.HandleFunc("POST /api/v1/reservations/{id}/approve", reservations.HandleApprove)
	mux.HandleFunc("POST /api/v1/reservations/{id}/unapprove", reservations.HandleUnapprove)

	// Reservation wizard
	mux.HandleFunc("POST /api/v1/reservations/wizard/start", editor.HandleStart)
	mux.HandleFunc("POST /api/v1/reservations/{id}/edit", editor.HandleStartEdit)
	mux.HandleFunc("GET /api/v1/reservations/wizard", editor.HandleDraft)
	mux.HandleFunc("POST /api/v1/reservations/wizard/gameinfo", editor.HandleGameInfo)
	mux.HandleFunc("GET /api/v1/reservations/wizard/slots", editor.HandleSlots)
	mux.HandleFunc("POST /api/v1/reservations/wizard/slot", editor.HandleSlot)
	mux.HandleFunc("POST /api/v1/reservations/wizard/confirm", editor.HandleConfirm)
	mux.HandleFunc("POST /api/v1/reservations/wizard/back", editor.HandleBack)
	mux.HandleFunc("POST /api/v1/reservations/wizard/cancel", editor.HandleCancel)

	// Admin: accounts
	mux.HandleFunc("GET /api/v1/admin/teams", admin.HandleListTeams)
	mux.HandleFunc("POST /api/v1/admin/teams", admin.HandleCreateTeam)
	mux.HandleFunc("PUT /api/v1/admin/teams/{id}", admin.HandleUpdateTeam)
	mux.HandleFunc("DELETE /api/v1/admin/teams/{id}", admin.HandleDeactivateTeam)
	mux.HandleFunc("POST /api/v1/admin/teams/{id}/activate", admin.HandleActivateTeam)

	// Admin: catalog
	mux.HandleFunc("GET /api/v1/admin/fields", admin.HandleListFields)
	mux.HandleFunc("POST /api/v1/admin/fields", admin.HandleCreateField)
	mux.HandleFunc("PUT /api/v1/admin/fields/{id}", admin.HandleUpdateField)
	mux.HandleFunc("DELETE /api/v1/admin/fields/{id}", admin.HandleDeactivateField)
	mux.HandleFunc("GET /api/v1/admin/gametypes", admin.HandleListGameTypes)
	mux.HandleFunc("POST /api/v1/admin/gametypes", admin.HandleCreateGameType)
	mux.HandleFunc("DELETE /api/v1/admin/gametypes/{id}", admin.HandleDeactivateGameType)
	mux.HandleFunc("POST /api/v1/admin/timeslots", admin.HandleCreateTimeSlot)
	mux.HandleFunc("DELETE /api/v1/admin/timeslots/{id}", admin.HandleDeactivateTimeSlot)

	// Admin: tournaments
	mux.HandleFunc("GET /api/v1/admin/tournaments", admin.HandleListTournaments)
	mux.HandleFunc("POST /api/v1/admin/tournaments", admin.HandleCreateTournament)
	mux.HandleFunc("DELETE /api/v1/admin/tournaments/{id}", admin.HandleDeactivateTournament)

	// Admin: operations
	mux.HandleFunc("GET /api/v1/admin/settings", admin.HandleListSettings)
	mux.HandleFunc("PUT /api/v1/admin/settings", admin.HandleUpsertSetting)
	mux.HandleFunc("POST /api/v1/admin/swap", admin.HandleSwap)
	mux.HandleFunc("GET /api/v1/admin/audit", admin.HandleAuditLog)
	mux.HandleFunc("POST /api/v1/admin/cleanup", admin.HandleRunCleanup)
	mux.HandleFunc("DELETE /api/v1/admin/tokens", admin.HandleClearTokens)
	mux.HandleFunc("GET /api/v1/admin/archive/reservations", admin.HandleListArchivedReservations)
	mux.HandleFunc("GET /api/v1/admin/archive/tournaments", admin.HandleListArchivedTournaments)
}
