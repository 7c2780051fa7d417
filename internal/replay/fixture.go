package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"tradeagent/internal/config"
	"tradeagent/internal/ledger"
	"tradeagent/internal/plan"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a policy replay fixture:
// a shared policy config plus a series of recorded decision cases.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig mirrors config.Policy with JSON tags.
type FixtureConfig struct {
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	MaxSOLPerTx         float64  `json:"max_sol_per_tx"`
	DailySpendCapSOL    float64  `json:"daily_spend_cap_sol"`
	MinBalanceFloorSOL  float64  `json:"min_balance_floor_sol"`
	MaxLOCDelta         int      `json:"max_loc_delta"`
	AllowedDomains      []string `json:"allowed_domains"`
	WritableRoots       []string `json:"writable_roots"`
}

// FixtureAction mirrors plan.Action with JSON tags.
type FixtureAction struct {
	Kind        string  `json:"kind"`
	Target      string  `json:"target"`
	AmountSOL   float64 `json:"amount_sol"`
	FromToken   string  `json:"from_token"`
	ToToken     string  `json:"to_token"`
	SlippageBps int     `json:"slippage_bps"`
	Code        string  `json:"code"`
	LineDelta   int     `json:"line_delta"`
	Confidence  float64 `json:"confidence"`
}

// FixtureSnapshot mirrors ledger.Snapshot with JSON tags.
type FixtureSnapshot struct {
	DailySpendSOL float64            `json:"daily_spend_sol"`
	Balances      map[string]float64 `json:"balances"`
	Mainnet       bool               `json:"mainnet"`
}

// FixtureCase is one recorded decision with its expected outcome.
type FixtureCase struct {
	Name     string          `json:"name"`
	Action   FixtureAction   `json:"action"`
	Snapshot FixtureSnapshot `json:"snapshot"`
	Want     FixtureWant     `json:"want"`
}

// FixtureWant captures the expected decision per case.
type FixtureWant struct {
	Allow bool   `json:"allow"`
	Rule  string `json:"rule"`
}

// #endregion fixture-types

// #region fixture-load

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s has no cases", path)
	}
	return &f, nil
}

// #endregion fixture-load

// #region fixture-convert

// PolicyConfig converts fixture config to the engine's config type.
func (f *Fixture) PolicyConfig() config.Policy {
	return config.Policy{
		ConfidenceThreshold: f.Config.ConfidenceThreshold,
		MaxSOLPerTx:         f.Config.MaxSOLPerTx,
		DailySpendCapSOL:    f.Config.DailySpendCapSOL,
		MinBalanceFloorSOL:  f.Config.MinBalanceFloorSOL,
		MaxLOCDelta:         f.Config.MaxLOCDelta,
		AllowedDomains:      f.Config.AllowedDomains,
		WritableRoots:       f.Config.WritableRoots,
	}
}

func (c FixtureCase) action() plan.Action {
	return plan.Action{
		Kind:        plan.Kind(c.Action.Kind),
		Target:      c.Action.Target,
		AmountSOL:   c.Action.AmountSOL,
		FromToken:   c.Action.FromToken,
		ToToken:     c.Action.ToToken,
		SlippageBps: c.Action.SlippageBps,
		Code:        c.Action.Code,
		LineDelta:   c.Action.LineDelta,
		Confidence:  c.Action.Confidence,
	}
}

func (c FixtureCase) snapshot() ledger.Snapshot {
	return ledger.Snapshot{
		DailySpendSOL: c.Snapshot.DailySpendSOL,
		Balances:      c.Snapshot.Balances,
		Mainnet:       c.Snapshot.Mainnet,
	}
}

// #endregion fixture-convert
