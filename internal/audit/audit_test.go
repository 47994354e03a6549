package audit_test

import (
	"context"
	"testing"

	"github.com/jmerrifield20/SecretTriage/internal/audit"
)

var ctx = context.Background()

func TestNewMemoryLedger_genesisEntry(t *testing.T) {
	l := audit.NewMemoryLedger()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	e, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Action != audit.ActionGenesis || e.Hash != audit.GenesisHash {
		t.Errorf("unexpected genesis entry: %+v", e)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := audit.NewMemoryLedger()

	e1, err := l.Append(ctx, audit.ActionRulesApplied, "seed", "abc", map[string]int{"heuristics": 5})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, audit.ActionJudgeOverride, audit.SystemActor, "some-id", nil)
	if err != nil {
		t.Fatal(err)
	}
	if e1.Index != 1 || e2.Index != 2 {
		t.Errorf("indexes: got %d, %d", e1.Index, e2.Index)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want %q", e2.PrevHash, e1.Hash)
	}

	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != e2.Hash {
		t.Errorf("root: got %q, want %q", root, e2.Hash)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestAppend_unmarshalablePayload(t *testing.T) {
	l := audit.NewMemoryLedger()
	if _, err := l.Append(ctx, "x", "y", "z", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if n, _ := l.Len(ctx); n != 1 {
		t.Errorf("failed append must not add an entry, len=%d", n)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := audit.NewMemoryLedger()
	for _, idx := range []int{-1, 1} {
		if _, err := l.Get(ctx, idx); err != audit.ErrNotFound {
			t.Errorf("Get(%d): expected ErrNotFound, got %v", idx, err)
		}
	}
}

func TestGet_returnsCopy(t *testing.T) {
	l := audit.NewMemoryLedger()
	if _, err := l.Append(ctx, audit.ActionRulesApplied, "seed", "abc", nil); err != nil {
		t.Fatal(err)
	}
	e, _ := l.Get(ctx, 1)
	e.Actor = "mallory"

	if err := l.Verify(ctx); err != nil {
		t.Errorf("mutating a returned entry broke the chain: %v", err)
	}
}

func TestList_paging(t *testing.T) {
	l := audit.NewMemoryLedger()
	for i := 0; i < 4; i++ {
		if _, err := l.Append(ctx, audit.ActionRulesApplied, "seed", "s", i); err != nil {
			t.Fatal(err)
		}
	}

	page, err := l.List(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Index != 1 || page[1].Index != 2 {
		t.Errorf("unexpected page: %+v", page)
	}

	tail, _ := l.List(ctx, 4, 10)
	if len(tail) != 1 || tail[0].Index != 4 {
		t.Errorf("unexpected tail: %+v", tail)
	}

	past, _ := l.List(ctx, 50, 10)
	if past == nil || len(past) != 0 {
		t.Errorf("expected empty non-nil page, got %#v", past)
	}
}

func TestRecordRulePack_subjectIsStable(t *testing.T) {
	l := audit.NewMemoryLedger()
	sum := audit.RulePackSummary{Features: []string{"entropy"}, Heuristics: []string{"low_entropy"}}

	e1, err := audit.RecordRulePack(ctx, l, "seed", sum)
	if err != nil {
		t.Fatal(err)
	}
	e2, _ := audit.RecordRulePack(ctx, l, "seed", sum)
	if e1.Action != audit.ActionRulesApplied {
		t.Errorf("action: got %q", e1.Action)
	}
	if e1.Subject == "" || e1.Subject != e2.Subject {
		t.Errorf("subjects differ: %q vs %q", e1.Subject, e2.Subject)
	}
	if e1.DataHash != e2.DataHash {
		t.Error("same payload produced different data hashes")
	}

	other, _ := audit.RecordRulePack(ctx, l, "seed", audit.RulePackSummary{Features: []string{"length"}})
	if other.Subject == e1.Subject {
		t.Error("different packs share a subject")
	}
}
