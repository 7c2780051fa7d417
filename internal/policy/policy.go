package policy

// #region imports
import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"tradeagent/internal/config"
	"tradeagent/internal/ledger"
	"tradeagent/internal/plan"
)

// #endregion imports

// #region evaluate

// Evaluate is the sole authority deciding whether a proposed action may be
// executed. Pure function: no side effects, no I/O. The snapshot must come
// from a ledger read performed immediately before this call — the daily-cap
// check is only as good as the freshness of its input.
//
// Rules run in precedence order; the first failing rule wins.
func Evaluate(action plan.Action, snap ledger.Snapshot, cfg config.Policy) Decision {
	// 1. Confidence gate. Checked before shape validation so that a timid
	// proposal is always reported as low_confidence, whatever else is
	// wrong with it.
	if action.Confidence < cfg.ConfidenceThreshold {
		return denied(RuleLowConfidence, fmt.Sprintf(
			"confidence %.2f below threshold %.2f", action.Confidence, cfg.ConfidenceThreshold))
	}

	if reason := malformed(action); reason != "" {
		return denied(RuleMalformedAction, reason)
	}

	// 2. Per-transaction cap.
	if action.Kind.Spends() && action.AmountSOL > cfg.MaxSOLPerTx {
		return denied(RulePerTxCap, fmt.Sprintf(
			"amount %.6f SOL exceeds per-tx cap %.6f", action.AmountSOL, cfg.MaxSOLPerTx))
	}

	// 3. Daily cap, against the freshly reloaded spend counter.
	if action.Kind.Spends() {
		projected := snap.DailySpendSOL + action.AmountSOL
		if projected > cfg.DailySpendCapSOL {
			return denied(RuleDailyCap, fmt.Sprintf(
				"projected daily spend %.6f SOL exceeds cap %.6f", projected, cfg.DailySpendCapSOL))
		}
	}

	// 4. Balance floor, mainnet only: never drain SOL below the floor.
	if snap.Mainnet && spendsSOL(action) {
		remaining := snap.Balance("SOL") - action.AmountSOL
		if remaining < cfg.MinBalanceFloorSOL {
			return denied(RuleBalanceFloor, fmt.Sprintf(
				"would leave %.6f SOL, below floor %.6f", remaining, cfg.MinBalanceFloorSOL))
		}
	}

	// 5. Scrape domain allowlist. The list is fixed at startup; an empty
	// list denies everything.
	if action.Kind == plan.KindScrape {
		domain, err := scrapeDomain(action.Target)
		if err != nil {
			return denied(RuleMalformedAction, fmt.Sprintf("unparsable scrape target: %v", err))
		}
		if !domainAllowed(domain, cfg.AllowedDomains) {
			return denied(RuleDomainNotAllowed, fmt.Sprintf(
				"domain %q is not in the allowed scrape list", domain))
		}
	}

	// 6. Code-change budget and writable-subtree containment.
	if action.Kind == plan.KindExtendCode {
		if abs(action.LineDelta) > cfg.MaxLOCDelta {
			return denied(RuleLOCBudget, fmt.Sprintf(
				"line delta %+d exceeds budget %d", action.LineDelta, cfg.MaxLOCDelta))
		}
		if !PathInsideRoots(action.Target, cfg.WritableRoots) {
			return denied(RulePathEscape, fmt.Sprintf(
				"path %q resolves outside writable subtrees %v", action.Target, cfg.WritableRoots))
		}
	}

	return allowed()
}

// #endregion evaluate

// #region malformed

// malformed returns a non-empty reason when the action cannot be evaluated
// meaningfully. The engine never errors on bad input; it denies.
func malformed(action plan.Action) string {
	if !action.Kind.Known() {
		return fmt.Sprintf("unknown action kind %q", action.Kind)
	}
	if action.Confidence < 0 || action.Confidence > 1 {
		return fmt.Sprintf("confidence %v outside [0,1]", action.Confidence)
	}
	switch action.Kind {
	case plan.KindTransfer:
		if action.AmountSOL <= 0 {
			return "transfer amount must be positive"
		}
		if len(action.Target) < 32 {
			return fmt.Sprintf("destination %q does not look like a valid address", action.Target)
		}
	case plan.KindSwap:
		if action.AmountSOL <= 0 {
			return "swap amount must be positive"
		}
		if action.FromToken == "" || action.ToToken == "" {
			return "swap requires from_token and to_token"
		}
		if action.FromToken == action.ToToken {
			return "swap from_token and to_token must differ"
		}
	case plan.KindScrape:
		if action.Target == "" {
			return "scrape requires a target URL"
		}
	case plan.KindExtendCode:
		if action.Target == "" {
			return "extend_code requires a target path"
		}
		if action.Code == "" {
			return "extend_code requires proposed content"
		}
	}
	return ""
}

// #endregion malformed

// #region helpers

func spendsSOL(action plan.Action) bool {
	if action.Kind == plan.KindTransfer {
		return true
	}
	return action.Kind == plan.KindSwap && action.FromToken == "SOL"
}

func scrapeDomain(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", target)
	}
	return host, nil
}

func domainAllowed(domain string, allowed []string) bool {
	for _, a := range allowed {
		if domain == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// PathInsideRoots reports whether target, after canonicalization, stays
// inside one of the allowed writable subtrees. Absolute paths and any
// cleaned path that climbs out of the repo are rejected outright. Exported
// because the sandbox re-validates this check defensively.
func PathInsideRoots(target string, roots []string) bool {
	if target == "" || filepath.IsAbs(target) {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(target))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return false
	}
	for _, root := range roots {
		r := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(root)), "/")
		if r == "" || r == "." {
			continue
		}
		if clean == r || strings.HasPrefix(clean, r+"/") {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// #endregion helpers
