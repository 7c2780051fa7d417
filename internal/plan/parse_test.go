package plan

import "testing"

func TestParseStrictJSON(t *testing.T) {
	raw := `{"action_type": "swap", "target": "", "params": {"from_token": "sol", "to_token": "usdc", "amount_sol": 0.05}, "confidence": 0.65, "reason": "overbought"}`

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Action.Kind != KindSwap {
		t.Fatalf("expected swap, got %s", p.Action.Kind)
	}
	if p.Action.FromToken != "SOL" || p.Action.ToToken != "USDC" {
		t.Fatalf("tokens not normalized: %s → %s", p.Action.FromToken, p.Action.ToToken)
	}
	if p.Action.AmountSOL != 0.05 {
		t.Fatalf("expected amount 0.05, got %v", p.Action.AmountSOL)
	}
	if p.Action.SlippageBps != 50 {
		t.Fatalf("expected default slippage 50, got %d", p.Action.SlippageBps)
	}
	if p.Action.Confidence != 0.65 {
		t.Fatalf("expected confidence 0.65, got %v", p.Action.Confidence)
	}
}

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is my decision:\n```json\n{\"action_type\": \"scrape\", \"target\": \"https://coindesk.com\", \"confidence\": 0.8, \"reason\": \"gather news\"}\n```\nGood luck!"

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Action.Kind != KindScrape {
		t.Fatalf("expected scrape, got %s", p.Action.Kind)
	}
	if p.Action.Target != "https://coindesk.com" {
		t.Fatalf("unexpected target %q", p.Action.Target)
	}
}

func TestParseGarbage(t *testing.T) {
	for _, raw := range []string{"", "I refuse to answer.", "{broken", `{"target": "x"}`} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseUnknownKindSurvivesParse(t *testing.T) {
	// Unknown kinds parse fine; the policy gate denies them as malformed.
	p, err := Parse(`{"action_type": "launch_rocket", "confidence": 0.9}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Action.Kind.Known() {
		t.Fatal("launch_rocket should not be a known kind")
	}
}

func TestNoopPlan(t *testing.T) {
	p := Noop("llm call failed")
	if p.Action.Kind != KindNoop || p.Action.Confidence != 0 {
		t.Fatalf("degraded plan must be noop with zero confidence, got %+v", p.Action)
	}
}

func TestKindSpends(t *testing.T) {
	if !KindTransfer.Spends() || !KindSwap.Spends() {
		t.Fatal("transfer and swap spend")
	}
	if KindScrape.Spends() || KindNoop.Spends() || KindExtendCode.Spends() {
		t.Fatal("free kinds must not spend")
	}
}
