package policy

// #region rule

// Rule identifies which limit produced a decision.
type Rule string

const (
	RuleNone             Rule = "none"
	RuleLowConfidence    Rule = "low_confidence"
	RuleMalformedAction  Rule = "malformed_action"
	RulePerTxCap         Rule = "per_tx_cap"
	RuleDailyCap         Rule = "daily_cap"
	RuleBalanceFloor     Rule = "balance_floor"
	RuleDomainNotAllowed Rule = "domain_not_allowed"
	RuleLOCBudget        Rule = "loc_budget"
	RulePathEscape       Rule = "path_escape"
)

// #endregion rule

// #region decision

// Decision is the output of one policy evaluation. Produced synchronously
// from a snapshot; every denial carries a non-empty reason.
type Decision struct {
	Allow  bool
	Rule   Rule
	Reason string
}

func allowed() Decision {
	return Decision{Allow: true, Rule: RuleNone, Reason: "within policy limits"}
}

func denied(rule Rule, reason string) Decision {
	return Decision{Allow: false, Rule: rule, Reason: reason}
}

// #endregion decision
