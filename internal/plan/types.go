package plan

// #region kind

// Kind enumerates the action variants a plan may propose.
type Kind string

const (
	KindTransfer      Kind = "transfer"       // send SOL to an address; the only action that spends directly
	KindSwap          Kind = "swap"           // exchange one token for another via the DEX collaborator
	KindScrape        Kind = "scrape"         // fetch a URL; free
	KindAnalyze       Kind = "analyze"        // fetch fresh klines for a symbol; free
	KindReviewHistory Kind = "review_history" // re-read own past actions; free
	KindExtendCode    Kind = "extend_code"    // propose a capability patch through the sandbox
	KindNoop          Kind = "noop"
)

// Known reports whether k is one of the recognised kinds.
func (k Kind) Known() bool {
	switch k {
	case KindTransfer, KindSwap, KindScrape, KindAnalyze, KindReviewHistory, KindExtendCode, KindNoop:
		return true
	}
	return false
}

// Spends reports whether the kind moves value on-chain.
func (k Kind) Spends() bool {
	return k == KindTransfer || k == KindSwap
}

// #endregion kind

// #region action

// Action is a single proposed operation awaiting policy approval.
// Immutable once proposed: it is either Executed, Denied, or Errored.
type Action struct {
	Kind        Kind
	Target      string // address, URL, symbol, count, or file path depending on Kind
	AmountSOL   float64
	FromToken   string
	ToToken     string
	SlippageBps int
	Code        string // extend_code: full proposed file content
	CommitMsg   string // extend_code: commit message for promotion
	LineDelta   int    // extend_code: proposed minus existing line count, set before the gate
	Confidence  float64
}

// Plan is the structured output of one REASON step.
type Plan struct {
	Action    Action
	Rationale string
}

// Noop returns the degraded plan used when reasoning fails or its output
// cannot be trusted.
func Noop(rationale string) Plan {
	return Plan{
		Action:    Action{Kind: KindNoop, Confidence: 0},
		Rationale: rationale,
	}
}

// #endregion action
