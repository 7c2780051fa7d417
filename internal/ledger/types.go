package ledger

import "time"

// #region records

// TransactionRecord is one executed or attempted on-chain action.
// Append-only: never mutated after creation. Every record carries either a
// signature or an explicit error tag, never neither.
type TransactionRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Target     string    `json:"target,omitempty"`
	AmountSOL  float64   `json:"amount_sol,omitempty"`
	AmountUSD  float64   `json:"amount_usd,omitempty"`
	PriceUSD   float64   `json:"price_usd,omitempty"` // realized price if available
	Chain      string    `json:"chain,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	Error      string    `json:"error,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Reflection is one cycle's free-text summary of plan and result.
type Reflection struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// DriftRecord captures divergence between an externally observed balance
// and the internally tracked one. Never auto-corrects tracked state.
type DriftRecord struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Token    string    `json:"token"`
	Observed float64   `json:"observed"`
	Tracked  float64   `json:"tracked"`
	Delta    float64   `json:"delta"`
	Resolved bool      `json:"resolved"`
}

// Position is the tracked holding of one token.
type Position struct {
	Amount       float64 `json:"amount"`
	CostBasisUSD float64 `json:"cost_basis_usd"`
}

// Benchmark anchors performance comparison against buy-and-hold from the
// first observed portfolio value.
type Benchmark struct {
	StartDate         string             `json:"start_date,omitempty"`
	StartPortfolioUSD float64            `json:"start_portfolio_usd,omitempty"`
	StartPrices       map[string]float64 `json:"start_prices,omitempty"`
}

// #endregion records

// #region document

// Document is the full persisted state. A reader always sees a complete
// document: writes go through a temp file and an atomic rename.
type Document struct {
	DailySpendSOL  float64             `json:"daily_spend_sol"`
	DailySpendDate string              `json:"daily_spend_date"`
	Positions      map[string]Position `json:"positions"`
	TransactionLog []TransactionRecord `json:"transaction_log"`
	Reflections    []Reflection        `json:"reflections"`
	DriftRecords   []DriftRecord       `json:"drift_records"`
	Benchmark      Benchmark           `json:"benchmark"`
}

func defaultDocument() Document {
	return Document{
		Positions: map[string]Position{},
	}
}

// #endregion document

// #region snapshot

// Snapshot is the policy engine's read-only view of the ledger, taken
// immediately before evaluation. DailySpendSOL already reflects a pending
// daily reset: a stale DailySpendDate reads as zero spend without the reset
// being persisted (the reset lands with the cycle's single commit).
type Snapshot struct {
	DailySpendSOL float64
	Date          string
	ResetPending  bool
	Balances      map[string]float64
	Mainnet       bool
}

// Balance returns the tracked amount for token, zero if untracked.
func (s Snapshot) Balance(token string) float64 {
	return s.Balances[token]
}

// #endregion snapshot
