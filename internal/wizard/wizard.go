// Package wizard holds the multi-step reservation editor state. A draft
// lives in the server-side session between steps; nothing touches the
// reservations table until the final commit.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/tfrey42/pitchside/internal/dates"
	"github.com/tfrey42/pitchside/internal/store"
)

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

type Step int

const (
	StepGameInfo Step = iota + 1
	StepTimeslot
	StepReview
	StepDone
)

// Draft is the in-progress reservation. TeamID is the team being booked for,
// which for managers and superusers differs from the logged-in account.
type Draft struct {
	Mode          Mode
	Step          Step
	ReservationID int64 // zero for a new reservation
	TeamID        int64
	GameNumber    int64
	GameOpponent  string
	GametypeID    int64
	Date          string // YYYY-MM-DD
	TimeslotID    int64
	FieldID       int64
	Age           string
	Gender        string
}

// NewDraft starts a fresh reservation for a team, seeding age and gender
// from the team record.
func NewDraft(team store.Team) *Draft {
	return &Draft{
		Mode:   ModeNew,
		Step:   StepGameInfo,
		TeamID: team.ID,
		Age:    team.Age,
		Gender: team.Gender,
	}
}

// EditDraft starts an edit of an existing reservation, pre-filled from it.
func EditDraft(resv store.ReservationDetail) *Draft {
	return &Draft{
		Mode:          ModeEdit,
		Step:          StepGameInfo,
		ReservationID: resv.ID,
		TeamID:        resv.TeamID,
		GameNumber:    resv.GameNumber,
		GameOpponent:  resv.GameOpponent,
		GametypeID:    resv.GametypeID,
		Date:          resv.Date,
		TimeslotID:    resv.TimeslotID,
		FieldID:       resv.FieldID,
		Age:           resv.Age,
		Gender:        resv.Gender,
	}
}

// GameInfo is the first step's input.
type GameInfo struct {
	GameNumber   int64
	GameOpponent string
	GametypeID   int64
	Date         string
	Age          string
	Gender       string
}

// ApplyGameInfo validates and records the first step, advancing the draft to
// timeslot selection.
func (d *Draft) ApplyGameInfo(in GameInfo) error {
	if d.Step != StepGameInfo {
		return fmt.Errorf("unexpected step %d", d.Step)
	}
	if in.GameNumber <= 0 {
		return errors.New("game number must be positive")
	}
	if in.GametypeID == 0 {
		return errors.New("game type is required")
	}
	if _, err := time.Parse(dates.DayLayout, in.Date); err != nil {
		return fmt.Errorf("invalid date %q", in.Date)
	}

	// Changing the date invalidates a previously chosen slot.
	if in.Date != d.Date {
		d.TimeslotID = 0
		d.FieldID = 0
	}

	d.GameNumber = in.GameNumber
	d.GameOpponent = in.GameOpponent
	d.GametypeID = in.GametypeID
	d.Date = in.Date
	d.Age = in.Age
	d.Gender = in.Gender
	d.Step = StepTimeslot
	return nil
}

// ApplySlot records the chosen timeslot. New reservations go on to review;
// edits skip review and are ready to commit.
func (d *Draft) ApplySlot(timeslotID, fieldID int64) error {
	if d.Step != StepTimeslot {
		return fmt.Errorf("unexpected step %d", d.Step)
	}
	if timeslotID == 0 || fieldID == 0 {
		return errors.New("timeslot is required")
	}
	d.TimeslotID = timeslotID
	d.FieldID = fieldID
	if d.Mode == ModeEdit {
		d.Step = StepDone
	} else {
		d.Step = StepReview
	}
	return nil
}

// Confirm finishes the review step.
func (d *Draft) Confirm() error {
	if d.Step != StepReview {
		return fmt.Errorf("unexpected step %d", d.Step)
	}
	d.Step = StepDone
	return nil
}

// Back moves one step towards the start, never past the first step.
func (d *Draft) Back() {
	if d.Step > StepGameInfo {
		d.Step--
	}
}

// Ready reports whether the draft has passed every step and may be written.
func (d *Draft) Ready() bool {
	return d.Step == StepDone && d.TimeslotID != 0 && d.FieldID != 0 && d.Date != ""
}
