package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tfrey42/pitchside/internal/wizard"
)

func requestWithCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	return r
}

func TestCreateAndLookup(t *testing.T) {
	store := NewStore(time.Hour, false)
	rec := httptest.NewRecorder()

	sess, err := store.Create(rec, 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.TeamID != 7 {
		t.Fatalf("team id = %d", sess.TeamID)
	}

	got, err := store.FromRequest(requestWithCookie(t, rec))
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if got == nil || got.Token != sess.Token {
		t.Fatal("session not found by cookie")
	}

	// No cookie means no session, not an error.
	got, err = store.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("from bare request: %v", err)
	}
	if got != nil {
		t.Fatal("session returned without a cookie")
	}
}

func TestCreateEvictsPreviousSession(t *testing.T) {
	store := NewStore(time.Hour, false)

	first := httptest.NewRecorder()
	if _, err := store.Create(first, 7); err != nil {
		t.Fatalf("first create: %v", err)
	}
	second := httptest.NewRecorder()
	if _, err := store.Create(second, 7); err != nil {
		t.Fatalf("second create: %v", err)
	}

	got, err := store.FromRequest(requestWithCookie(t, first))
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if got != nil {
		t.Fatal("old session survived a second login")
	}
}

func TestExpiredSessionIsRejected(t *testing.T) {
	store := NewStore(time.Hour, false)
	rec := httptest.NewRecorder()
	sess, err := store.Create(rec, 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sess.ExpiresAt = time.Now().Add(-time.Minute)

	got, err := store.FromRequest(requestWithCookie(t, rec))
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if got != nil {
		t.Fatal("expired session returned")
	}
}

func TestClearEndsSession(t *testing.T) {
	store := NewStore(time.Hour, false)
	rec := httptest.NewRecorder()
	if _, err := store.Create(rec, 7); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := requestWithCookie(t, rec)
	clearRec := httptest.NewRecorder()
	store.Clear(clearRec, r)

	got, err := store.FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if got != nil {
		t.Fatal("session survived clear")
	}

	cookies := clearRec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge != -1 {
		t.Error("clear did not expire the cookie")
	}
}

func TestDraftAndSidebarState(t *testing.T) {
	store := NewStore(time.Hour, false)
	rec := httptest.NewRecorder()
	sess, err := store.Create(rec, 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if store.Draft(sess) != nil {
		t.Error("fresh session has a draft")
	}
	draft := &wizard.Draft{Mode: wizard.ModeNew, Step: wizard.StepGameInfo, TeamID: 7}
	store.SetDraft(sess, draft)
	if store.Draft(sess) != draft {
		t.Error("draft not stored")
	}
	store.SetDraft(sess, nil)
	if store.Draft(sess) != nil {
		t.Error("draft not cleared")
	}

	if !store.ToggleSidebar(sess) {
		t.Error("first toggle should hide the sidebar")
	}
	if store.ToggleSidebar(sess) {
		t.Error("second toggle should show it again")
	}
}
