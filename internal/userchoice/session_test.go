package userchoice

import (
	"context"
	"testing"
	"time"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

func TestCreateSessionThenGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "reading group", "user-1", "doc-1", "de", "en", DefaultSessionExpiry)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.Status != model.SessionActive {
		t.Fatalf("expected new session to be ACTIVE, got %s", session.Status)
	}

	got, err := store.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Name != "reading group" {
		t.Fatalf("expected name to round-trip, got %q", got.Name)
	}
}

func TestRecordSessionChoice_IncrementsCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "s", "user-1", "doc-1", "de", "en", DefaultSessionExpiry)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := store.RecordSessionChoice(ctx, session.SessionID, model.ChoicePreserve); err != nil {
		t.Fatalf("RecordSessionChoice failed: %v", err)
	}
	if err := store.RecordSessionChoice(ctx, session.SessionID, model.ChoiceTranslate); err != nil {
		t.Fatalf("RecordSessionChoice failed: %v", err)
	}

	got, err := store.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Counts.Preserve != 1 || got.Counts.Translate != 1 || got.Counts.Total != 2 {
		t.Fatalf("expected counters to reflect both recorded choices, got %+v", got.Counts)
	}
}

func TestRecordSessionChoice_RejectsExpiredSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "s", "user-1", "doc-1", "de", "en", -time.Hour)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := store.ExpireSweep(ctx); err != nil {
		t.Fatalf("ExpireSweep failed: %v", err)
	}

	if err := store.RecordSessionChoice(ctx, session.SessionID, model.ChoicePreserve); err == nil {
		t.Fatalf("expected an error recording a choice on an expired session")
	}
}

func TestExpireSweep_MarksPastExpirySessionsExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, "s", "user-1", "doc-1", "de", "en", -time.Minute); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	n, err := store.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("ExpireSweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 session expired, got %d", n)
	}
}
