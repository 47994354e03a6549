//go:build integration

package audit_test

import (
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/audit"
)

func setupPostgres(t *testing.T) *audit.PostgresLedger {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Exec(ctx, "DELETE FROM audit_log WHERE idx > 0"); err != nil {
		t.Fatalf("clean audit_log: %v", err)
	}
	return audit.NewPostgresLedger(db, zap.NewNop())
}

func TestPostgresLedger_appendAndVerify(t *testing.T) {
	l := setupPostgres(t)

	e1, err := audit.RecordRulePack(ctx, l, "seed", audit.RulePackSummary{Features: []string{"entropy"}})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, audit.ActionJudgeOverride, audit.SystemActor, "id-1", map[string]string{"verdict": "true_positive"})
	if err != nil {
		t.Fatal(err)
	}
	if e1.Index != 1 || e2.PrevHash != e1.Hash {
		t.Errorf("unexpected chain: %+v %+v", e1, e2)
	}

	if err := l.Verify(ctx); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	got, err := l.Get(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hash != e2.Hash || !got.Timestamp.Equal(e2.Timestamp) {
		t.Errorf("round trip mismatch: %+v vs %+v", got, e2)
	}

	page, err := l.List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 {
		t.Errorf("expected 3 entries, got %d", len(page))
	}
	if _, err := l.Get(ctx, 99); err != audit.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
