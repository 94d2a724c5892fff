// Package csvexport renders the approved weekly schedule in the officiating
// crew assignment format: one row per approved game, followed by one row per
// tournament day.
package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/store"
)

var header = []string{
	"GameNum", "GameDate", "GameTime", "GameAge", "GameLevel", "Gender",
	"Location", "HomeTeam", "AwayTeam", "GameDescription", "CrewSize",
	"CrewDescription", "Notes",
}

type Exporter struct {
	queries *store.Queries
}

func NewExporter(queries *store.Queries) *Exporter {
	return &Exporter{queries: queries}
}

// Write emits the approved reservations and active tournaments whose dates
// fall in [bounds.Start, bounds.End].
func (e *Exporter) Write(ctx context.Context, w io.Writer, bounds dates.Bounds) error {
	start := bounds.Start.Format(dates.DayLayout)
	end := bounds.End.Format(dates.DayLayout)

	reservations, err := e.queries.ListApprovedReservationsInRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list approved reservations: %w", err)
	}
	tournaments, err := e.queries.ListActiveTournamentsInRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list tournaments: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range reservations {
		row := []string{
			fmt.Sprintf("%d", r.GameNumber),
			displayDate(r.Date),
			r.StartTime,
			r.Age,
			r.GametypeName,
			genderLabel(r.Gender),
			r.FieldName,
			r.TeamFullName(),
			r.GameOpponent,
			"", "", "", "",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	for _, t := range tournaments {
		if err := e.writeTournament(ctx, cw, t, bounds); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeTournament emits one row per tournament day inside the export bounds.
func (e *Exporter) writeTournament(ctx context.Context, cw *csv.Writer, t store.Tournament, bounds dates.Bounds) error {
	fieldNames, err := e.queries.TournamentFieldNames(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("tournament fields: %w", err)
	}
	location := ""
	if len(fieldNames) > 0 {
		location = fieldNames[0]
		for _, name := range fieldNames[1:] {
			location += ", " + name
		}
	}

	startDate, err := time.Parse(dates.DayLayout, t.StartDate)
	if err != nil {
		return fmt.Errorf("tournament %d start date: %w", t.ID, err)
	}
	endDate, err := time.Parse(dates.DayLayout, t.EndDate)
	if err != nil {
		return fmt.Errorf("tournament %d end date: %w", t.ID, err)
	}
	if startDate.Before(bounds.Start) {
		startDate = bounds.Start
	}
	if endDate.After(bounds.End) {
		endDate = bounds.End
	}

	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		row := []string{
			"",
			day.Format(dates.DisplayLayout),
			"", "", "", "",
			location,
			t.Name,
			"",
			"Tournament",
			"", "", "",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func genderLabel(gender string) string {
	if gender == "girls" {
		return "Female"
	}
	return "Male"
}

func displayDate(stored string) string {
	t, err := time.Parse(dates.DayLayout, stored)
	if err != nil {
		return stored
	}
	return t.Format(dates.DisplayLayout)
}
