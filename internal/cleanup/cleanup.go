// Package cleanup implements the weekly archival sweep: reservations from
// finished weeks move to the archive tables, deactivated tournaments are
// archived, and deactivated catalog rows are hard-deleted once nothing
// references them. The whole sweep runs in one transaction and is gated on
// LAST_CLEAN_DATE so concurrent triggers run it at most once per week.
package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
)

// Report summarizes one sweep for logging.
type Report struct {
	ArchivedReservations int
	ArchivedTournaments  int
	DeletedGameTypes     int
	DeletedTimeSlots     int
	DeletedFields        int
	DeletedTeams         int
}

type Runner struct {
	db       *db.DB
	settings *settings.Store
}

func NewRunner(database *db.DB, settingsStore *settings.Store) *Runner {
	return &Runner{db: database, settings: settingsStore}
}

// Run performs the sweep if it has not yet run this week. It returns whether
// the sweep actually ran.
func (r *Runner) Run(ctx context.Context, now time.Time) (Report, bool, error) {
	weekStart := dates.WeekStart(now)

	lastCleanRaw := r.settings.Get(ctx, settings.KeyLastCleanDate, settings.DefaultLastCleanDate)
	lastClean, err := time.Parse(dates.DisplayLayout, lastCleanRaw)
	if err != nil {
		log.Warn().Str("value", lastCleanRaw).Msg("Unparseable last clean date, forcing sweep")
		lastClean = time.Time{}
	}
	if !lastClean.Before(weekStart) {
		return Report{}, false, nil
	}

	var report Report
	err = r.db.RunInTx(ctx, func(txdb *db.DB) error {
		q := txdb.Queries
		cutoff := weekStart.Format(dates.DayLayout)

		if err := r.archiveReservations(ctx, q, cutoff, &report); err != nil {
			return err
		}
		if err := r.archiveTournaments(ctx, q, &report); err != nil {
			return err
		}
		if err := r.collectCatalog(ctx, q, &report); err != nil {
			return err
		}

		return r.settings.WithQueries(q).Set(ctx, settings.KeyLastCleanDate, now.Format(dates.DisplayLayout))
	})
	if err != nil {
		return Report{}, false, err
	}

	log.Info().
		Int("reservations", report.ArchivedReservations).
		Int("tournaments", report.ArchivedTournaments).
		Int("gametypes", report.DeletedGameTypes).
		Int("timeslots", report.DeletedTimeSlots).
		Int("fields", report.DeletedFields).
		Int("teams", report.DeletedTeams).
		Msg("Weekly cleanup finished")
	return report, true, nil
}

// archiveReservations copies every reservation dated before the cutoff into
// the archive, denormalized, then deletes the originals. Inactive rows are
// archived too, flagged as deleted.
func (r *Runner) archiveReservations(ctx context.Context, q *store.Queries, cutoff string, report *Report) error {
	old, err := q.ListReservationsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list past reservations: %w", err)
	}
	for _, resv := range old {
		err := q.InsertArchivedReservation(ctx, store.InsertArchivedReservationParams{
			GameNumber:   resv.GameNumber,
			GameOpponent: resv.GameOpponent,
			Date:         resv.Date,
			Approved:     resv.Approved,
			Team:         resv.TeamFullName(),
			Location:     resv.FieldName,
			Gametype:     resv.GametypeName,
			StartTime:    resv.StartTime,
			EndTime:      resv.EndTime,
			Deleted:      !resv.Active,
			Age:          resv.Age,
			Gender:       resv.Gender,
		})
		if err != nil {
			return fmt.Errorf("archive reservation %d: %w", resv.ID, err)
		}
	}
	if err := q.DeleteReservationsBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("delete past reservations: %w", err)
	}
	report.ArchivedReservations = len(old)
	return nil
}

// archiveTournaments moves deactivated tournaments into the archive with
// their gametype and field names flattened to text.
func (r *Runner) archiveTournaments(ctx context.Context, q *store.Queries, report *Report) error {
	inactive, err := q.ListInactiveTournaments(ctx)
	if err != nil {
		return fmt.Errorf("list inactive tournaments: %w", err)
	}
	for _, t := range inactive {
		gametype := ""
		if t.GametypeID.Valid {
			g, err := q.GetGameType(ctx, t.GametypeID.Int64)
			if err != nil {
				return fmt.Errorf("resolve tournament gametype: %w", err)
			}
			gametype = g.Name
		}
		fieldNames, err := q.TournamentFieldNames(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("resolve tournament fields: %w", err)
		}
		err = q.InsertArchivedTournament(ctx, store.InsertArchivedTournamentParams{
			Name:      t.Name,
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			Gametype:  gametype,
			Locations: strings.Join(fieldNames, ", "),
		})
		if err != nil {
			return fmt.Errorf("archive tournament %d: %w", t.ID, err)
		}
		if err := q.DeleteTournament(ctx, t.ID); err != nil {
			return fmt.Errorf("delete tournament %d: %w", t.ID, err)
		}
	}
	report.ArchivedTournaments = len(inactive)
	return nil
}

// collectCatalog hard-deletes deactivated catalog rows no live row references.
// Gametypes and timeslots go before fields so their removal cannot leave a
// field referenced; teams go last.
func (r *Runner) collectCatalog(ctx context.Context, q *store.Queries, report *Report) error {
	gametypes, err := q.ListInactiveGameTypes(ctx)
	if err != nil {
		return fmt.Errorf("list inactive gametypes: %w", err)
	}
	for _, g := range gametypes {
		n, err := q.CountGameTypeReferences(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("count gametype references: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := q.DeleteGameType(ctx, g.ID); err != nil {
			return fmt.Errorf("delete gametype %d: %w", g.ID, err)
		}
		report.DeletedGameTypes++
	}

	timeslots, err := q.ListInactiveTimeSlots(ctx)
	if err != nil {
		return fmt.Errorf("list inactive timeslots: %w", err)
	}
	for _, ts := range timeslots {
		n, err := q.CountTimeSlotReservations(ctx, ts.ID)
		if err != nil {
			return fmt.Errorf("count timeslot references: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := q.DeleteTimeSlot(ctx, ts.ID); err != nil {
			return fmt.Errorf("delete timeslot %d: %w", ts.ID, err)
		}
		report.DeletedTimeSlots++
	}

	fields, err := q.ListInactiveFields(ctx)
	if err != nil {
		return fmt.Errorf("list inactive fields: %w", err)
	}
	for _, f := range fields {
		n, err := q.CountFieldReferences(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("count field references: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := q.DeleteField(ctx, f.ID); err != nil {
			return fmt.Errorf("delete field %d: %w", f.ID, err)
		}
		report.DeletedFields++
	}

	teams, err := q.ListInactiveTeams(ctx)
	if err != nil {
		return fmt.Errorf("list inactive teams: %w", err)
	}
	for _, t := range teams {
		n, err := q.CountTeamReservations(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("count team reservations: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := q.DeleteTeam(ctx, t.ID); err != nil {
			return fmt.Errorf("delete team %d: %w", t.ID, err)
		}
		report.DeletedTeams++
	}

	return nil
}
