package audit

import (
	"path/filepath"
	"testing"

	"tradeagent/internal/ledger"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestDecisionRoundTrip(t *testing.T) {
	l := openTestLog(t)
	err := l.RecordDecision(DecisionEntry{
		CycleID:    "cycle-1",
		ActionKind: "swap",
		Target:     "SOL→USDC",
		Confidence: 0.65,
		Allow:      true,
		Rule:       "none",
		Reason:     "within policy limits",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	err = l.RecordDecision(DecisionEntry{
		CycleID: "cycle-2", ActionKind: "swap", Confidence: 0.55,
		Allow: false, Rule: "low_confidence", Reason: "confidence 0.55 below threshold 0.60",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := l.RecentDecisions(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(got))
	}
	if got[0].CycleID != "cycle-2" || got[0].Allow {
		t.Fatalf("newest first expected, got %+v", got[0])
	}
	if got[1].Rule != "none" || !got[1].Allow {
		t.Fatalf("unexpected decision: %+v", got[1])
	}
}

func TestTransactionArchiveDedupes(t *testing.T) {
	l := openTestLog(t)
	rec := ledger.TransactionRecord{ID: "tx-1", Kind: "swap", AmountSOL: 0.05, Signature: "sig"}

	// Mirrored at commit time, then archived again at prune time.
	if err := l.RecordTransaction("cycle-1", rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.ArchiveTransactions([]ledger.TransactionRecord{rec}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	n, err := l.TransactionCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 archived transaction after dedupe, got %d", n)
	}
}

func TestPromotionRecord(t *testing.T) {
	l := openTestLog(t)
	err := l.RecordPromotion(PromotionEntry{
		CycleID:   "cycle-1",
		Path:      "tools/indicator.go",
		Verified:  true,
		Stage:     "promoted",
		Reference: "push succeeded",
	})
	if err != nil {
		t.Fatalf("record promotion: %v", err)
	}
}
