package replay

import (
	"os"
	"path/filepath"
	"testing"
)

const testFixture = `{
  "description": "policy regression cases",
  "config": {
    "confidence_threshold": 0.6,
    "max_sol_per_tx": 0.1,
    "daily_spend_cap_sol": 0.5,
    "min_balance_floor_sol": 0.1,
    "max_loc_delta": 200,
    "allowed_domains": ["coindesk.com"],
    "writable_roots": ["tools"]
  },
  "cases": [
    {
      "name": "confident swap under caps",
      "action": {"kind": "swap", "from_token": "SOL", "to_token": "USDC", "amount_sol": 0.05, "confidence": 0.65},
      "snapshot": {"daily_spend_sol": 0.0},
      "want": {"allow": true, "rule": "none"}
    },
    {
      "name": "same swap below threshold",
      "action": {"kind": "swap", "from_token": "SOL", "to_token": "USDC", "amount_sol": 0.05, "confidence": 0.55},
      "snapshot": {"daily_spend_sol": 0.0},
      "want": {"allow": false, "rule": "low_confidence"}
    },
    {
      "name": "transfer over per-tx cap",
      "action": {"kind": "transfer", "target": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", "amount_sol": 0.2, "confidence": 0.9},
      "snapshot": {"daily_spend_sol": 0.0},
      "want": {"allow": false, "rule": "per_tx_cap"}
    },
    {
      "name": "scrape off allowlist",
      "action": {"kind": "scrape", "target": "https://evil.example/prices", "confidence": 0.9},
      "snapshot": {},
      "want": {"allow": false, "rule": "domain_not_allowed"}
    },
    {
      "name": "code path escape",
      "action": {"kind": "extend_code", "target": "../secrets.go", "code": "package tools\n", "line_delta": 5, "confidence": 0.9},
      "snapshot": {},
      "want": {"allow": false, "rule": "path_escape"}
    }
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.json")
	if err := os.WriteFile(path, []byte(testFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayMatchesExpectations(t *testing.T) {
	f, err := LoadFixture(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	results, summary := Replay(f)
	if summary.Total != 5 || summary.Mismatches != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Allows != 1 || summary.Denies != 4 {
		t.Fatalf("allows/denies = %d/%d", summary.Allows, summary.Denies)
	}
	for _, r := range results {
		if !r.Match {
			t.Errorf("case %q: got allow=%v rule=%s, want rule=%s", r.Name, r.Allow, r.Rule, r.WantRule)
		}
	}
	if summary.ByRule["low_confidence"] != 1 {
		t.Fatalf("ByRule = %+v", summary.ByRule)
	}
}

func TestReplayCountsMismatches(t *testing.T) {
	f, err := LoadFixture(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	f.Cases[0].Want.Allow = false // deliberately wrong
	_, summary := Replay(f)
	if summary.Mismatches != 1 {
		t.Fatalf("mismatches = %d", summary.Mismatches)
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o644)
	if _, err := LoadFixture(bad); err == nil {
		t.Fatal("bad json accepted")
	}
	empty := filepath.Join(t.TempDir(), "empty.json")
	os.WriteFile(empty, []byte(`{"cases": []}`), 0o644)
	if _, err := LoadFixture(empty); err == nil {
		t.Fatal("empty fixture accepted")
	}
}
