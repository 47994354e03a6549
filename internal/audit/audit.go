// Package audit keeps a tamper-evident, hash-chained log of decisions that
// change how findings are triaged: rule pack applications and verdicts where
// the external judge overrode the heuristics.
//
// The chain starts with a genesis entry whose Hash is GenesisHash. Every later
// entry stores the hash of its predecessor, so editing or dropping a row is
// caught by Verify.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GenesisHash is the hash of entry 0.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Actions recorded in the log.
const (
	ActionGenesis       = "genesis"
	ActionRulesApplied  = "rules.applied"
	ActionJudgeOverride = "judge.override"
)

// SystemActor is the actor of entries written by the service itself.
const SystemActor = "triaged"

// ErrNotFound is returned by Get for an index past the tip.
var ErrNotFound = errors.New("audit entry not found")

// Entry is one record in the chain.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	// Subject names what the entry is about: a rule pack digest or a
	// classification ID.
	Subject  string `json:"subject"`
	DataHash string `json:"data_hash"`
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Ledger is the append-only audit log.
type Ledger interface {
	// Append chains a new entry. payload is JSON-encoded and only its
	// SHA-256 is kept.
	Append(ctx context.Context, action, actor, subject string, payload any) (*Entry, error)
	Get(ctx context.Context, index int) (*Entry, error)
	// List returns up to limit entries starting at offset, oldest first.
	List(ctx context.Context, offset, limit int) ([]*Entry, error)
	// Len includes the genesis entry.
	Len(ctx context.Context) (int, error)
	Verify(ctx context.Context) error
	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}

// hashEntry must never be called on the genesis entry.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Action, e.Actor, e.Subject, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// verifyChain checks entries, which must start at the genesis entry.
func verifyChain(entries []*Entry) error {
	for i, curr := range entries {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		if curr.PrevHash != entries[i-1].Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
	}
	return nil
}

// Digest returns a short, stable identifier for payload, used as the Subject
// of rule pack entries.
func Digest(payload []byte) string {
	return sha256Sum(payload)[:16]
}

// RulePackSummary is the payload recorded when a rule pack is applied.
type RulePackSummary struct {
	Features   []string `json:"features"`
	Heuristics []string `json:"heuristics"`
}

// RecordRulePack appends an ActionRulesApplied entry whose subject is the
// digest of the applied names.
func RecordRulePack(ctx context.Context, l Ledger, actor string, sum RulePackSummary) (*Entry, error) {
	raw, err := json.Marshal(sum)
	if err != nil {
		return nil, fmt.Errorf("marshal rule pack summary: %w", err)
	}
	return l.Append(ctx, ActionRulesApplied, actor, Digest(raw), sum)
}
