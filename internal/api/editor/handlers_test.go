package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/availability"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/email"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/settings"
	"github.com/tfrey42/pitchside/internal/store"
	"github.com/tfrey42/pitchside/internal/testutil"
	"github.com/tfrey42/pitchside/internal/token"
)

type env struct {
	database *db.DB
	sessions *session.Store
	tokens   *token.Manager
	cookies  map[int64][]*http.Cookie
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database := testutil.NewTestDB(t)
	siteCfg := settings.NewStore(database.Queries)
	sess := session.NewStore(time.Hour, false)
	tok := token.NewManager(database, siteCfg)
	InitHandlers(database, sess, tok,
		availability.NewResolver(database.Queries, siteCfg),
		email.NewNotifier(database.Queries, nil, ""))
	return &env{
		database: database,
		sessions: sess,
		tokens:   tok,
		cookies:  make(map[int64][]*http.Cookie),
	}
}

// login opens (once) and returns the team's session cookie. The draft lives
// on the session, so requests within a test must share it.
func (e *env) login(t *testing.T, team store.Team) []*http.Cookie {
	t.Helper()
	if cookies, ok := e.cookies[team.ID]; ok {
		return cookies
	}
	rec := httptest.NewRecorder()
	if _, err := e.sessions.Create(rec, team.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	e.cookies[team.ID] = rec.Result().Cookies()
	return e.cookies[team.ID]
}

// call runs a handler as the given team, with its session cookie attached.
func (e *env) call(t *testing.T, handler http.HandlerFunc, team store.Team, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, target, reader)
	for _, cookie := range e.login(t, team) {
		r.AddCookie(cookie)
	}
	r = r.WithContext(authz.ContextWithUser(r.Context(), &team))

	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}

func decodeDraft(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

// futureDate is far enough out that the weekly block window never applies.
func futureDate() string {
	return time.Now().AddDate(0, 0, 14).Format("2006-01-02")
}

func TestWizardBooksAReservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	north := testutil.SeedField(t, e.database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, e.database, north.ID, "09:00", "10:30")
	date := futureDate()

	rec := e.call(t, HandleStart, alpha, http.MethodPost, "/wizard/start", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if draft := decodeDraft(t, rec); draft["step"] != float64(1) {
		t.Fatalf("step after start = %v", draft["step"])
	}

	rec = e.call(t, HandleGameInfo, alpha, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 17, "game_opponent": "Visitors",
		"gametype_id": gametype.ID, "date": date,
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}

	// The booking token is now held for the date.
	if n, err := e.database.Queries.CountTokens(ctx); err != nil || n != 1 {
		t.Fatalf("tokens after gameinfo = %d (err %v), want 1", n, err)
	}

	rec = e.call(t, HandleSlots, alpha, http.MethodGet, "/wizard/slots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("slots: %d %s", rec.Code, rec.Body.String())
	}
	var fields []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &fields); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(fields) != 1 || fields[0]["field_name"] != "North" {
		t.Fatalf("slots payload = %s", rec.Body.String())
	}

	rec = e.call(t, HandleSlot, alpha, http.MethodPost, "/wizard/slot", map[string]any{
		"timeslot_id": slot.ID, "field_id": north.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
	}
	if draft := decodeDraft(t, rec); draft["step"] != float64(3) {
		t.Fatalf("new reservation should reach review, step = %v", draft["step"])
	}

	rec = e.call(t, HandleConfirm, alpha, http.MethodPost, "/wizard/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	result := decodeDraft(t, rec)
	if result["approved"] != false {
		t.Error("team booking should await approval")
	}

	// The reservation exists and the token is released.
	id := int64(result["id"].(float64))
	saved, err := e.database.Queries.GetReservation(ctx, id)
	if err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if saved.Date != date || saved.TimeslotID != slot.ID || saved.TeamID != alpha.ID {
		t.Errorf("saved reservation = %+v", saved)
	}
	if n, _ := e.database.Queries.CountTokens(ctx); n != 0 {
		t.Errorf("tokens after commit = %d, want 0", n)
	}
}

func TestSuperuserBookingIsPreApproved(t *testing.T) {
	e := newEnv(t)

	admin := testutil.SeedTeam(t, e.database, "Admin", store.RoleSuperuser)
	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	north := testutil.SeedField(t, e.database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, e.database, north.ID, "09:00", "10:30")

	rec := e.call(t, HandleStart, admin, http.MethodPost, "/wizard/start", map[string]any{"team_id": alpha.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleGameInfo, admin, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 9, "gametype_id": gametype.ID, "date": futureDate(),
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleSlot, admin, http.MethodPost, "/wizard/slot", map[string]any{
		"timeslot_id": slot.ID, "field_id": north.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleConfirm, admin, http.MethodPost, "/wizard/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	if result := decodeDraft(t, rec); result["approved"] != true {
		t.Error("superuser booking should be pre-approved")
	}
}

func TestCommitRejectsRacedSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, e.database, "Beta", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	north := testutil.SeedField(t, e.database, "North", alpha.ID, beta.ID)
	slot := testutil.SeedTimeSlot(t, e.database, north.ID, "09:00", "10:30")
	date := futureDate()

	toReview := func(team store.Team) {
		rec := e.call(t, HandleStart, team, http.MethodPost, "/wizard/start", map[string]any{})
		if rec.Code != http.StatusOK {
			t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
		}
		rec = e.call(t, HandleGameInfo, team, http.MethodPost, "/wizard/gameinfo", map[string]any{
			"game_number": 3, "gametype_id": gametype.ID, "date": date,
			"age": "U12", "gender": "boys",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
		}
		rec = e.call(t, HandleSlot, team, http.MethodPost, "/wizard/slot", map[string]any{
			"timeslot_id": slot.ID, "field_id": north.ID,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
		}
	}

	// Beta reaches review, then its token gets reaped and Alpha books the
	// same slot.
	toReview(beta)
	if err := e.tokens.Release(ctx, beta.ID); err != nil {
		t.Fatalf("release beta token: %v", err)
	}
	toReview(alpha)
	if rec := e.call(t, HandleConfirm, alpha, http.MethodPost, "/wizard/confirm", nil); rec.Code != http.StatusOK {
		t.Fatalf("alpha confirm: %d %s", rec.Code, rec.Body.String())
	}

	// Beta's stale draft must fail the commit-time conflict check.
	if rec := e.call(t, HandleConfirm, beta, http.MethodPost, "/wizard/confirm", nil); rec.Code != http.StatusConflict {
		t.Fatalf("raced booking: %d %s, want 409", rec.Code, rec.Body.String())
	}
}

func TestConfirmRequiresLiveToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, e.database, "Beta", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	north := testutil.SeedField(t, e.database, "North", alpha.ID)
	slot := testutil.SeedTimeSlot(t, e.database, north.ID, "09:00", "10:30")
	date := futureDate()

	rec := e.call(t, HandleStart, alpha, http.MethodPost, "/wizard/start", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleGameInfo, alpha, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 3, "gametype_id": gametype.ID, "date": date,
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleSlot, alpha, http.MethodPost, "/wizard/slot", map[string]any{
		"timeslot_id": slot.ID, "field_id": north.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
	}

	// The token expires while Alpha sits on the review page, and Beta takes
	// the date for itself.
	if err := e.tokens.Release(ctx, alpha.ID); err != nil {
		t.Fatalf("release alpha token: %v", err)
	}
	if err := e.tokens.Acquire(ctx, beta.ID, date, false); err != nil {
		t.Fatalf("beta acquire: %v", err)
	}

	rec = e.call(t, HandleConfirm, alpha, http.MethodPost, "/wizard/confirm", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("confirm without token: %d %s, want 409", rec.Code, rec.Body.String())
	}
	if payload := decodeDraft(t, rec); payload["holder"] != "Beta" {
		t.Errorf("holder = %v, want Beta", payload["holder"])
	}

	// Nothing was written.
	pending, err := e.database.Queries.ListPendingReservations(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending reservations = %d, want 0", len(pending))
	}
}

func TestSlotChoiceMustBeAvailable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, e.database, "Beta", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	south := testutil.SeedField(t, e.database, "South", beta.ID)
	southSlot := testutil.SeedTimeSlot(t, e.database, south.ID, "09:00", "10:30")

	// Retired slots are just as off-limits as unauthorized fields.
	if err := e.database.Queries.SetTimeSlotActive(ctx, southSlot.ID, false); err != nil {
		t.Fatalf("deactivate slot: %v", err)
	}

	rec := e.call(t, HandleStart, alpha, http.MethodPost, "/wizard/start", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleGameInfo, alpha, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 3, "gametype_id": gametype.ID, "date": futureDate(),
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}

	// A hand-crafted slot choice outside the availability listing is refused.
	rec = e.call(t, HandleSlot, alpha, http.MethodPost, "/wizard/slot", map[string]any{
		"timeslot_id": southSlot.ID, "field_id": south.ID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("slot outside listing: %d %s, want 400", rec.Code, rec.Body.String())
	}

	// The draft is still parked on the timeslot step.
	rec = e.call(t, HandleDraft, alpha, http.MethodGet, "/wizard", nil)
	if draft := decodeDraft(t, rec); draft["step"] != float64(2) {
		t.Errorf("step after rejected slot = %v, want 2", draft["step"])
	}
}

func TestTokenContentionSurfacesHolder(t *testing.T) {
	e := newEnv(t)

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	beta := testutil.SeedTeam(t, e.database, "Beta", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	date := futureDate()

	step := func(team store.Team) *httptest.ResponseRecorder {
		rec := e.call(t, HandleStart, team, http.MethodPost, "/wizard/start", map[string]any{})
		if rec.Code != http.StatusOK {
			t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
		}
		return e.call(t, HandleGameInfo, team, http.MethodPost, "/wizard/gameinfo", map[string]any{
			"game_number": 3, "gametype_id": gametype.ID, "date": date,
			"age": "U12", "gender": "boys",
		})
	}

	if rec := step(alpha); rec.Code != http.StatusOK {
		t.Fatalf("alpha gameinfo: %d %s", rec.Code, rec.Body.String())
	}
	rec := step(beta)
	if rec.Code != http.StatusConflict {
		t.Fatalf("beta gameinfo: %d, want 409", rec.Code)
	}
	payload := decodeDraft(t, rec)
	if payload["holder"] != "Alpha" {
		t.Errorf("holder = %v, want Alpha", payload["holder"])
	}
	if minutes, ok := payload["minutes_left"].(float64); !ok || minutes <= 0 {
		t.Errorf("minutes_left = %v", payload["minutes_left"])
	}
}

func TestCancelReleasesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")

	rec := e.call(t, HandleStart, alpha, http.MethodPost, "/wizard/start", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.call(t, HandleGameInfo, alpha, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 3, "gametype_id": gametype.ID, "date": futureDate(),
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.call(t, HandleCancel, alpha, http.MethodPost, "/wizard/cancel", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d", rec.Code)
	}
	if n, _ := e.database.Queries.CountTokens(ctx); n != 0 {
		t.Errorf("tokens after cancel = %d, want 0", n)
	}
}

func TestEditSkipsReviewAndCommitsOnSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alpha := testutil.SeedTeam(t, e.database, "Alpha", store.RoleTeam)
	gametype := testutil.SeedGameType(t, e.database, "League")
	north := testutil.SeedField(t, e.database, "North", alpha.ID)
	morning := testutil.SeedTimeSlot(t, e.database, north.ID, "09:00", "10:30")
	noon := testutil.SeedTimeSlot(t, e.database, north.ID, "12:00", "13:30")
	date := futureDate()

	resv := testutil.SeedReservation(t, e.database, alpha, north, gametype, morning, date, true)

	rec := e.callWithPathID(t, HandleStartEdit, alpha, http.MethodPost,
		fmt.Sprintf("/reservations/%d/edit", resv.ID), nil, resv.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("start edit: %d %s", rec.Code, rec.Body.String())
	}
	if draft := decodeDraft(t, rec); draft["mode"] != "edit" {
		t.Fatalf("mode = %v", draft["mode"])
	}

	rec = e.call(t, HandleGameInfo, alpha, http.MethodPost, "/wizard/gameinfo", map[string]any{
		"game_number": 17, "game_opponent": "Visitors",
		"gametype_id": gametype.ID, "date": date,
		"age": "U12", "gender": "boys",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("gameinfo: %d %s", rec.Code, rec.Body.String())
	}

	// Choosing the new slot commits immediately; no review step for edits.
	rec = e.call(t, HandleSlot, alpha, http.MethodPost, "/wizard/slot", map[string]any{
		"timeslot_id": noon.ID, "field_id": north.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
	}

	moved, err := e.database.Queries.GetReservation(ctx, resv.ID)
	if err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if moved.TimeslotID != noon.ID {
		t.Errorf("timeslot = %d, want %d", moved.TimeslotID, noon.ID)
	}
	if moved.Approved {
		t.Error("edited reservation should drop back to pending")
	}
}

// callWithPathID is call with a {id} path value set on the request.
func (e *env) callWithPathID(t *testing.T, handler http.HandlerFunc, team store.Team, method, target string, body any, id int64) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, target, bytes.NewReader(nil))
	for _, cookie := range e.login(t, team) {
		r.AddCookie(cookie)
	}
	r.SetPathValue("id", fmt.Sprintf("%d", id))
	r = r.WithContext(authz.ContextWithUser(r.Context(), &team))

	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}
