package wizard

import (
	"testing"

	"github.com/tfrey42/pitchside/internal/store"
)

func validInfo() GameInfo {
	return GameInfo{
		GameNumber:   42,
		GameOpponent: "Visitors",
		GametypeID:   7,
		Date:         "2026-09-05",
		Age:          "U12",
		Gender:       "boys",
	}
}

func TestNewReservationWalksEveryStep(t *testing.T) {
	draft := NewDraft(store.Team{ID: 3, Age: "U14", Gender: "girls"})
	if draft.Step != StepGameInfo {
		t.Fatalf("initial step = %d", draft.Step)
	}
	if draft.Age != "U14" || draft.Gender != "girls" {
		t.Errorf("draft not seeded from team: %s/%s", draft.Age, draft.Gender)
	}

	if err := draft.ApplyGameInfo(validInfo()); err != nil {
		t.Fatalf("apply game info: %v", err)
	}
	if draft.Step != StepTimeslot {
		t.Fatalf("step after game info = %d", draft.Step)
	}
	if draft.Ready() {
		t.Error("draft ready before a slot is chosen")
	}

	if err := draft.ApplySlot(11, 5); err != nil {
		t.Fatalf("apply slot: %v", err)
	}
	if draft.Step != StepReview {
		t.Fatalf("new reservation should go to review, step = %d", draft.Step)
	}

	if err := draft.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !draft.Ready() {
		t.Error("confirmed draft not ready")
	}
}

func TestEditSkipsReview(t *testing.T) {
	draft := EditDraft(store.ReservationDetail{
		Reservation: store.Reservation{
			ID: 9, TeamID: 3, GameNumber: 42, GametypeID: 7,
			Date: "2026-09-05", TimeslotID: 11, FieldID: 5,
			Age: "U12", Gender: "boys",
		},
	})
	if draft.Mode != ModeEdit || draft.ReservationID != 9 {
		t.Fatalf("edit draft = %+v", draft)
	}

	if err := draft.ApplyGameInfo(validInfo()); err != nil {
		t.Fatalf("apply game info: %v", err)
	}
	if err := draft.ApplySlot(11, 5); err != nil {
		t.Fatalf("apply slot: %v", err)
	}
	if draft.Step != StepDone {
		t.Fatalf("edit should skip review, step = %d", draft.Step)
	}
	if !draft.Ready() {
		t.Error("edit draft not ready after slot choice")
	}
}

func TestDateChangeClearsChosenSlot(t *testing.T) {
	draft := EditDraft(store.ReservationDetail{
		Reservation: store.Reservation{
			ID: 9, TeamID: 3, Date: "2026-09-05", TimeslotID: 11, FieldID: 5,
		},
	})

	info := validInfo()
	info.Date = "2026-09-12"
	if err := draft.ApplyGameInfo(info); err != nil {
		t.Fatalf("apply game info: %v", err)
	}
	if draft.TimeslotID != 0 || draft.FieldID != 0 {
		t.Errorf("slot survived date change: timeslot=%d field=%d", draft.TimeslotID, draft.FieldID)
	}

	// Same date keeps the slot.
	draft = EditDraft(store.ReservationDetail{
		Reservation: store.Reservation{
			ID: 9, TeamID: 3, Date: "2026-09-05", TimeslotID: 11, FieldID: 5,
		},
	})
	if err := draft.ApplyGameInfo(validInfo()); err != nil {
		t.Fatalf("apply game info: %v", err)
	}
	if draft.TimeslotID != 11 {
		t.Errorf("slot lost on unchanged date: %d", draft.TimeslotID)
	}
}

func TestApplyGameInfoValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GameInfo)
	}{
		{"zero game number", func(in *GameInfo) { in.GameNumber = 0 }},
		{"missing gametype", func(in *GameInfo) { in.GametypeID = 0 }},
		{"bad date", func(in *GameInfo) { in.Date = "09/05/2026" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := NewDraft(store.Team{ID: 3})
			info := validInfo()
			tc.mutate(&info)
			if err := draft.ApplyGameInfo(info); err == nil {
				t.Error("expected validation error")
			}
			if draft.Step != StepGameInfo {
				t.Errorf("step advanced on invalid input: %d", draft.Step)
			}
		})
	}
}

func TestStepOrderIsEnforced(t *testing.T) {
	draft := NewDraft(store.Team{ID: 3})
	if err := draft.ApplySlot(11, 5); err == nil {
		t.Error("slot accepted before game info")
	}
	if err := draft.Confirm(); err == nil {
		t.Error("confirm accepted before review")
	}
}

func TestBackNeverPassesFirstStep(t *testing.T) {
	draft := NewDraft(store.Team{ID: 3})
	if err := draft.ApplyGameInfo(validInfo()); err != nil {
		t.Fatalf("apply game info: %v", err)
	}
	draft.Back()
	if draft.Step != StepGameInfo {
		t.Fatalf("step after back = %d", draft.Step)
	}
	draft.Back()
	if draft.Step != StepGameInfo {
		t.Fatalf("back went past the first step: %d", draft.Step)
	}
}
