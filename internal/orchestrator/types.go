package orchestrator

// #region imports
import (
	"context"

	"tradeagent/internal/audit"
	"tradeagent/internal/ledger"
	"tradeagent/internal/plan"
	"tradeagent/internal/policy"
	"tradeagent/internal/reason"
	"tradeagent/internal/sandbox"
)

// #endregion

// #region collaborators

// PerceptionSource contributes one observation chunk per cycle.
type PerceptionSource interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

// Reasoner turns cycle context into a proposed plan.
type Reasoner interface {
	Propose(ctx context.Context, in reason.Input) (plan.Plan, error)
}

// Wallet is the on-chain surface: balance reads for perception and
// reconciliation, transfers for execution.
type Wallet interface {
	Balance(ctx context.Context) (float64, error)
	Send(ctx context.Context, dest string, amountSOL float64) (string, error)
}

// Swapper executes token swaps and returns a signature.
type Swapper interface {
	Swap(ctx context.Context, from, to string, amountSOL float64, slippageBps int) (string, error)
}

// Scraper fetches page text for allowed domains.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Analyzer renders a market summary for one symbol.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, interval string) (string, error)
}

// Sandboxer runs the self-modification pipeline. Delta reports the line
// change a proposal would cause, for policy evaluation before any file
// is touched.
type Sandboxer interface {
	Delta(path, content string) (int, error)
	Apply(ctx context.Context, prop sandbox.Proposal) (sandbox.Result, error)
}

// Pricer exposes the last observed quote price per symbol, when the
// market source has one.
type Pricer interface {
	LastPrice(symbol string) (float64, bool)
}

// Auditor mirrors decisions and outcomes into the append-only log.
type Auditor interface {
	RecordDecision(e audit.DecisionEntry) error
	RecordTransaction(cycleID string, rec ledger.TransactionRecord) error
	RecordPromotion(e audit.PromotionEntry) error
}

// #endregion collaborators

// #region results

// ActionStatus classifies what happened to the cycle's plan.
type ActionStatus string

const (
	StatusExecuted ActionStatus = "executed"
	StatusDenied   ActionStatus = "denied"
	StatusErrored  ActionStatus = "errored"
	StatusDryRun   ActionStatus = "dry_run"
)

// ActionResult is the ACT phase outcome carried into REFLECT.
type ActionResult struct {
	Status    ActionStatus
	Detail    string // scrape text, analysis, sandbox diagnostic, error text
	Signature string // on-chain signature for spends
}

// CycleResult summarizes one full cycle for callers and tests.
type CycleResult struct {
	CycleID    string
	Plan       plan.Plan
	Decision   policy.Decision
	Action     ActionResult
	Reflection string
}

// #endregion results
