package sandbox

// #region proposal

// Status tracks a proposal through its lifecycle. The pipeline exclusively
// owns transitions; no other component mutates a proposal mid-flight.
type Status string

const (
	StatusProposed   Status = "proposed"
	StatusRejected   Status = "rejected" // denied before any file was touched
	StatusApplied    Status = "applied"  // written in place, verification pending
	StatusPromoted   Status = "promoted"
	StatusRolledBack Status = "rolled_back"
)

// Proposal is a proposed capability patch: full replacement content for one
// path inside the writable subtrees.
type Proposal struct {
	Path          string
	Content       string
	CommitMessage string
}

// Result is the terminal outcome of one pipeline run.
type Result struct {
	Status     Status
	Stage      string // failing or final stage: "path", "budget", "parse", "lint", "test", "publish"
	Diagnostic string
	Reference  string // publish reference when promoted
	LineDelta  int
}

// #endregion proposal

// #region verify-result

// VerifyResult is the verification gate's pass/fail plus diagnostic text.
type VerifyResult struct {
	Passed     bool
	Stage      string
	Diagnostic string
}

// #endregion verify-result
