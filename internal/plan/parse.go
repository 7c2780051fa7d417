package plan

// #region imports
import (
	"encoding/json"
	"fmt"
	"strings"
)

// #endregion imports

// #region wire

// planWire mirrors the JSON contract the reasoner is instructed to emit:
// {"action_type": ..., "target": ..., "params": {...}, "confidence": ..., "reason": ...}
type planWire struct {
	ActionType string          `json:"action_type"`
	Target     string          `json:"target"`
	Params     json.RawMessage `json:"params"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
}

type paramsWire struct {
	AmountSOL     float64 `json:"amount_sol"`
	FromToken     string  `json:"from_token"`
	ToToken       string  `json:"to_token"`
	SlippageBps   int     `json:"slippage_bps"`
	Code          string  `json:"code"`
	CommitMessage string  `json:"commit_message"`
}

// #endregion wire

// #region parse

// Parse turns raw reasoner output into a Plan. The output is untrusted:
// strict JSON is tried first, then the outermost brace span (models wrap
// JSON in prose or fences). Any failure returns an error; the caller
// degrades to Noop rather than aborting the cycle.
func Parse(raw string) (Plan, error) {
	var wire planWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		span, ok := braceSpan(raw)
		if !ok {
			return Plan{}, fmt.Errorf("no JSON object in reasoner output")
		}
		if err := json.Unmarshal([]byte(span), &wire); err != nil {
			return Plan{}, fmt.Errorf("parse reasoner output: %w", err)
		}
	}

	var params paramsWire
	if len(wire.Params) > 0 {
		// Params errors are tolerated; missing amounts surface as
		// malformed_action at the gate, not as a parse failure.
		_ = json.Unmarshal(wire.Params, &params)
	}

	action := Action{
		Kind:        Kind(strings.TrimSpace(wire.ActionType)),
		Target:      strings.TrimSpace(wire.Target),
		AmountSOL:   params.AmountSOL,
		FromToken:   strings.ToUpper(strings.TrimSpace(params.FromToken)),
		ToToken:     strings.ToUpper(strings.TrimSpace(params.ToToken)),
		SlippageBps: params.SlippageBps,
		Code:        params.Code,
		CommitMsg:   params.CommitMessage,
		Confidence:  wire.Confidence,
	}
	if action.Kind == "" {
		return Plan{}, fmt.Errorf("reasoner output has no action_type")
	}
	if action.Kind == KindSwap && action.SlippageBps == 0 {
		action.SlippageBps = 50
	}
	return Plan{Action: action, Rationale: wire.Reason}, nil
}

// braceSpan returns the outermost {...} span of s.
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// #endregion parse
