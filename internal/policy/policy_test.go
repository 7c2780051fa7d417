package policy

import (
	"testing"

	"tradeagent/internal/config"
	"tradeagent/internal/ledger"
	"tradeagent/internal/plan"
)

func testPolicy() config.Policy {
	return config.Policy{
		ConfidenceThreshold: 0.6,
		MaxSOLPerTx:         0.1,
		DailySpendCapSOL:    0.5,
		MinBalanceFloorSOL:  0.1,
		MaxLOCDelta:         200,
		AllowedDomains:      []string{"coindesk.com", "cointelegraph.com"},
		WritableRoots:       []string{"tools", "experiments"},
	}
}

func swapAction(amount, confidence float64) plan.Action {
	return plan.Action{
		Kind:       plan.KindSwap,
		FromToken:  "SOL",
		ToToken:    "USDC",
		AmountSOL:  amount,
		Confidence: confidence,
	}
}

func emptySnap() ledger.Snapshot {
	return ledger.Snapshot{Balances: map[string]float64{}}
}

func TestConfidenceGateDominates(t *testing.T) {
	cfg := testPolicy()
	// Low confidence wins regardless of every other parameter, malformed
	// shapes included.
	actions := []plan.Action{
		swapAction(0.05, 0.55),
		{Kind: plan.KindTransfer, Target: "short", AmountSOL: -1, Confidence: 0.1},
		{Kind: "launch_rocket", Confidence: 0.59},
		{Kind: plan.KindNoop, Confidence: 0},
	}
	for _, a := range actions {
		d := Evaluate(a, emptySnap(), cfg)
		if d.Allow {
			t.Fatalf("low-confidence action allowed: %+v", a)
		}
		if d.Rule != RuleLowConfidence {
			t.Fatalf("expected low_confidence for %+v, got %s (%s)", a, d.Rule, d.Reason)
		}
		if d.Reason == "" {
			t.Fatal("denial must carry a reason")
		}
	}
}

func TestMalformedActionsDenyNotError(t *testing.T) {
	cfg := testPolicy()
	actions := []plan.Action{
		{Kind: "mystery", Confidence: 0.9},
		{Kind: plan.KindSwap, FromToken: "SOL", ToToken: "SOL", AmountSOL: 0.01, Confidence: 0.9},
		{Kind: plan.KindSwap, FromToken: "SOL", ToToken: "USDC", AmountSOL: 0, Confidence: 0.9},
		{Kind: plan.KindTransfer, Target: "tooshort", AmountSOL: 0.01, Confidence: 0.9},
		{Kind: plan.KindExtendCode, Target: "", Code: "package x", Confidence: 0.9},
		{Kind: plan.KindScrape, Target: "", Confidence: 0.9},
		{Kind: plan.KindNoop, Confidence: 1.5},
	}
	for _, a := range actions {
		d := Evaluate(a, emptySnap(), cfg)
		if d.Allow || d.Rule != RuleMalformedAction {
			t.Fatalf("expected malformed_action for %+v, got %+v", a, d)
		}
	}
}

func TestPerTxCap(t *testing.T) {
	d := Evaluate(swapAction(0.11, 0.9), emptySnap(), testPolicy())
	if d.Allow || d.Rule != RulePerTxCap {
		t.Fatalf("expected per_tx_cap, got %+v", d)
	}
}

func TestDailyCapMonotonicOrderSensitive(t *testing.T) {
	cfg := testPolicy()
	snap := emptySnap()

	// Five 0.1 swaps against a 0.5 cap: all allowed. The sixth crosses.
	for i := 0; i < 5; i++ {
		d := Evaluate(swapAction(0.1, 0.9), snap, cfg)
		if !d.Allow {
			t.Fatalf("swap %d within cap denied: %+v", i, d)
		}
		snap.DailySpendSOL += 0.1
	}
	d := Evaluate(swapAction(0.1, 0.9), snap, cfg)
	if d.Allow || d.Rule != RuleDailyCap {
		t.Fatalf("first cap-crossing action must be denied with daily_cap, got %+v", d)
	}
}

func TestDailyCapUsesSnapshotNotZero(t *testing.T) {
	snap := emptySnap()
	snap.DailySpendSOL = 0.45
	d := Evaluate(swapAction(0.1, 0.9), snap, testPolicy())
	if d.Allow || d.Rule != RuleDailyCap {
		t.Fatalf("0.45+0.1 > 0.5 must deny, got %+v", d)
	}
}

func TestBalanceFloorMainnetOnly(t *testing.T) {
	cfg := testPolicy()
	snap := emptySnap()
	snap.Balances["SOL"] = 0.15

	// Devnet: floor does not apply.
	if d := Evaluate(swapAction(0.1, 0.9), snap, cfg); !d.Allow {
		t.Fatalf("devnet swap should pass, got %+v", d)
	}

	snap.Mainnet = true
	d := Evaluate(swapAction(0.1, 0.9), snap, cfg)
	if d.Allow || d.Rule != RuleBalanceFloor {
		t.Fatalf("mainnet swap leaving 0.05 < floor 0.1 must deny, got %+v", d)
	}

	// Swapping into SOL does not drain SOL.
	in := plan.Action{Kind: plan.KindSwap, FromToken: "USDC", ToToken: "SOL",
		AmountSOL: 0.1, Confidence: 0.9}
	if d := Evaluate(in, snap, cfg); !d.Allow {
		t.Fatalf("swap into SOL should pass the floor, got %+v", d)
	}
}

func TestScrapeDomainAllowlist(t *testing.T) {
	cfg := testPolicy()
	cases := []struct {
		url   string
		allow bool
	}{
		{"https://coindesk.com/markets", true},
		{"https://coindesk.com:443/markets", true},
		{"https://COINDESK.com", true},
		{"https://evil.example.com", false},
		{"https://coindesk.com.evil.example", false},
	}
	for _, c := range cases {
		a := plan.Action{Kind: plan.KindScrape, Target: c.url, Confidence: 0.9}
		d := Evaluate(a, emptySnap(), cfg)
		if d.Allow != c.allow {
			t.Fatalf("%s: expected allow=%v, got %+v", c.url, c.allow, d)
		}
		if !c.allow && d.Rule != RuleDomainNotAllowed {
			t.Fatalf("%s: expected domain_not_allowed, got %s", c.url, d.Rule)
		}
	}
}

func TestEmptyAllowlistDeniesEverything(t *testing.T) {
	cfg := testPolicy()
	cfg.AllowedDomains = nil
	a := plan.Action{Kind: plan.KindScrape, Target: "https://coindesk.com", Confidence: 0.9}
	d := Evaluate(a, emptySnap(), cfg)
	if d.Allow || d.Rule != RuleDomainNotAllowed {
		t.Fatalf("empty allowlist must deny, got %+v", d)
	}
}

func TestExtendCodeBudgetAndPaths(t *testing.T) {
	cfg := testPolicy()
	base := plan.Action{Kind: plan.KindExtendCode, Code: "package tools\n", Confidence: 0.9}

	over := base
	over.Target = "tools/indicator.go"
	over.LineDelta = 201
	if d := Evaluate(over, emptySnap(), cfg); d.Rule != RuleLOCBudget {
		t.Fatalf("expected loc_budget, got %+v", d)
	}

	escapes := []string{
		"../core/policy.go",
		"tools/../core/policy.go",
		"/etc/passwd",
		"core/agent.go",
		"toolsuite/x.go",
	}
	for _, p := range escapes {
		a := base
		a.Target = p
		a.LineDelta = 10
		d := Evaluate(a, emptySnap(), cfg)
		if d.Allow || d.Rule != RulePathEscape {
			t.Fatalf("%s: expected path_escape, got %+v", p, d)
		}
	}

	ok := base
	ok.Target = "experiments/momentum/signal.go"
	ok.LineDelta = 150
	if d := Evaluate(ok, emptySnap(), cfg); !d.Allow {
		t.Fatalf("in-tree path within budget should pass, got %+v", d)
	}
}

func TestEndToEndSwapScenarios(t *testing.T) {
	cfg := testPolicy()
	snap := emptySnap()

	// confidence 0.65, amount 0.05, caps 0.1 / 0.5, spend 0.0 → Allow.
	if d := Evaluate(swapAction(0.05, 0.65), snap, cfg); !d.Allow {
		t.Fatalf("expected allow, got %+v", d)
	}

	// Same shape at confidence 0.55 → Deny(low_confidence).
	d := Evaluate(swapAction(0.05, 0.55), snap, cfg)
	if d.Allow || d.Rule != RuleLowConfidence {
		t.Fatalf("expected low_confidence deny, got %+v", d)
	}
}

func TestFreeActionsIgnoreSpendRules(t *testing.T) {
	cfg := testPolicy()
	snap := emptySnap()
	snap.DailySpendSOL = 0.5 // cap exhausted

	free := []plan.Action{
		{Kind: plan.KindAnalyze, Target: "SOLUSDT", Confidence: 0.9},
		{Kind: plan.KindReviewHistory, Target: "10", Confidence: 0.9},
		{Kind: plan.KindNoop, Confidence: 0.9},
	}
	for _, a := range free {
		if d := Evaluate(a, snap, cfg); !d.Allow {
			t.Fatalf("free action blocked by spend rules: %+v → %+v", a, d)
		}
	}
}
