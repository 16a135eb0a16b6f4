package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 3 {
		t.Errorf("version = %d, want 3 (init + review log + reason)", result.Version)
	}
}

func TestViewStateRoundTrip(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.GetViewState(KeyFilter); err != nil || ok {
		t.Fatalf("GetViewState on empty db = ok %v, err %v", ok, err)
	}

	if err := db.SetViewState(KeyFilter, "scoreMin=30"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetViewState(KeyFilter, "scoreMin=40&sort=score_desc"); err != nil {
		t.Fatal(err)
	}

	got, ok, err := db.GetViewState(KeyFilter)
	if err != nil || !ok {
		t.Fatalf("GetViewState ok=%v err=%v", ok, err)
	}
	if got != "scoreMin=40&sort=score_desc" {
		t.Errorf("value = %q, want the latest write", got)
	}
}

func TestCredentialLifecycle(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.LoadCredential(); err != nil || ok {
		t.Fatalf("LoadCredential on empty db = ok %v, err %v", ok, err)
	}

	if err := db.SaveCredential(Credential{Token: "a", Username: "mod1"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCredential(Credential{Token: "b", Username: "mod2"}); err != nil {
		t.Fatal(err)
	}

	c, ok, err := db.LoadCredential()
	if err != nil || !ok {
		t.Fatalf("LoadCredential ok=%v err=%v", ok, err)
	}
	if c.Token != "b" || c.Username != "mod2" || c.TokenType != "bearer" {
		t.Errorf("credential = %+v, want token b for mod2", c)
	}
	if c.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	if err := db.DeleteCredential(); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteCredential(); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, ok, _ := db.LoadCredential(); ok {
		t.Error("credential still present after delete")
	}
}

func TestReviewLogNewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.UnixMilli(1_700_000_000_000)

	err := db.AppendReviews([]ReviewEntry{
		{MessageID: 1, Outcome: OutcomeReviewed, ReviewedAt: base},
		{MessageID: 2, Outcome: OutcomeFailed, Detail: "not found", ReviewedAt: base.Add(time.Second)},
		{MessageID: 3, Outcome: OutcomeReviewed, Reason: "spam link", ReviewedAt: base.Add(2 * time.Second)},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentReviews(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].MessageID != 3 || got[1].MessageID != 2 {
		t.Errorf("order = %d,%d, want 3,2", got[0].MessageID, got[1].MessageID)
	}
	if got[0].Reason != "spam link" {
		t.Errorf("reason = %q, want %q", got[0].Reason, "spam link")
	}
	if got[1].Outcome != OutcomeFailed || got[1].Detail != "not found" {
		t.Errorf("entry = %+v", got[1])
	}

	if err := db.AppendReviews(nil); err != nil {
		t.Errorf("empty append: %v", err)
	}
}
