package orchestrator

// #region imports
import (
	"log"
	"math"

	"github.com/google/uuid"

	"tradeagent/internal/ledger"
)

// #endregion

// driftTolerance is the absolute SOL delta below which observed and
// tracked balances count as matching.
const driftTolerance = 0.001

// #region reconcile

// reconcile compares the on-chain SOL balance against the tracked
// position after this cycle's changes. Divergence past tolerance is
// logged as a drift record; positions are never auto-corrected. When a
// previously drifted token is back within tolerance, its open records
// are marked resolved.
func (o *Orchestrator) reconcile(doc *ledger.Document, observed float64) {
	tracked := doc.Positions["SOL"].Amount
	delta := observed - tracked

	if math.Abs(delta) <= driftTolerance {
		for i := range doc.DriftRecords {
			if doc.DriftRecords[i].Token == "SOL" && !doc.DriftRecords[i].Resolved {
				doc.DriftRecords[i].Resolved = true
				log.Printf("[ORCH] drift %s resolved", doc.DriftRecords[i].ID)
			}
		}
		return
	}

	// Don't pile up a new record every cycle for the same standing gap.
	for _, d := range doc.DriftRecords {
		if d.Token == "SOL" && !d.Resolved && math.Abs(d.Delta-delta) <= driftTolerance {
			return
		}
	}

	rec := ledger.DriftRecord{
		ID:       uuid.NewString(),
		Created:  o.now().UTC(),
		Token:    "SOL",
		Observed: observed,
		Tracked:  tracked,
		Delta:    delta,
	}
	doc.DriftRecords = append(doc.DriftRecords, rec)
	log.Printf("[ORCH] drift detected on SOL: observed %.6f vs tracked %.6f (delta %+.6f)",
		observed, tracked, delta)
}

// #endregion reconcile
