package replay

import (
	"tradeagent/internal/policy"
)

// #region types

// Result captures the outcome of replaying one case through the
// policy engine.
type Result struct {
	Name     string
	Allow    bool
	Rule     string
	Reason   string
	Match    bool // decision matched the fixture's expectation
	WantRule string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total      int
	Allows     int
	Denies     int
	Mismatches int
	ByRule     map[string]int
}

// #endregion types

// #region replay

// Replay runs every fixture case through the policy engine and compares
// decisions against expectations. Purely in-memory: no ledger, no
// collaborators, deterministic for a given fixture.
func Replay(f *Fixture) ([]Result, Summary) {
	cfg := f.PolicyConfig()
	results := make([]Result, 0, len(f.Cases))
	summary := Summary{ByRule: map[string]int{}}

	for _, c := range f.Cases {
		d := policy.Evaluate(c.action(), c.snapshot(), cfg)
		r := Result{
			Name:     c.Name,
			Allow:    d.Allow,
			Rule:     string(d.Rule),
			Reason:   d.Reason,
			WantRule: c.Want.Rule,
			Match:    d.Allow == c.Want.Allow && (c.Want.Rule == "" || string(d.Rule) == c.Want.Rule),
		}
		results = append(results, r)

		summary.Total++
		if d.Allow {
			summary.Allows++
		} else {
			summary.Denies++
		}
		summary.ByRule[string(d.Rule)]++
		if !r.Match {
			summary.Mismatches++
		}
	}
	return results, summary
}

// #endregion replay
