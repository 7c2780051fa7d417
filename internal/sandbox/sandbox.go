package sandbox

// #region imports
import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tradeagent/internal/config"
	"tradeagent/internal/policy"
)

// #endregion imports

// #region publisher

// Publisher pushes a promoted patch to the external version-control
// collaborator. Credentials are supplied by the implementation at publish
// time only and never persisted.
type Publisher interface {
	Publish(ctx context.Context, paths []string, message string) (string, error)
}

// #endregion publisher

// #region pipeline

// Pipeline is the only path by which the agent's own capability code may
// change: validate → snapshot → apply → verify → promote-or-rollback.
type Pipeline struct {
	baseDir   string
	cfg       config.Policy
	verifier  Verifier
	publisher Publisher

	mu     sync.Mutex
	active bool
}

// New creates a pipeline rooted at baseDir. verifier and publisher must be
// non-nil.
func New(baseDir string, cfg config.Policy, verifier Verifier, publisher Publisher) *Pipeline {
	return &Pipeline{
		baseDir:   baseDir,
		cfg:       cfg,
		verifier:  verifier,
		publisher: publisher,
	}
}

// #endregion pipeline

// #region delta

// Delta reports the line change applying content at path would cause,
// without touching the tree. Used by the policy gate ahead of Apply.
func (p *Pipeline) Delta(path, content string) (int, error) {
	target := filepath.Join(p.baseDir, filepath.FromSlash(path))
	existing := ""
	if raw, err := os.ReadFile(target); err == nil {
		existing = string(raw)
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return countLines(content) - countLines(existing), nil
}

// #endregion delta

// #region apply

// Apply runs the full pipeline for one proposal and returns its terminal
// state. Exactly one proposal may be in flight at a time; a second call
// before the first reaches a terminal state errors without touching files.
func (p *Pipeline) Apply(ctx context.Context, prop Proposal) (Result, error) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return Result{}, fmt.Errorf("sandbox: a proposal is already in flight")
	}
	p.active = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
	}()

	log.Printf("[SANDBOX] proposal: %s (%d chars)", prop.Path, len(prop.Content))

	// 1. Re-validate path containment and line budget defensively, before
	// any file is modified. The policy gate checked these already, but for
	// this safety-critical step the gate is advisory, not authoritative.
	if !policy.PathInsideRoots(prop.Path, p.cfg.WritableRoots) {
		return Result{
			Status:     StatusRejected,
			Stage:      "path",
			Diagnostic: fmt.Sprintf("path %q escapes writable subtrees %v", prop.Path, p.cfg.WritableRoots),
		}, nil
	}
	target := filepath.Join(p.baseDir, filepath.FromSlash(prop.Path))

	snap, err := takeSnapshot(target)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot %s: %w", prop.Path, err)
	}
	delta := countLines(prop.Content) - countLines(string(snap.content))
	if abs(delta) > p.cfg.MaxLOCDelta {
		return Result{
			Status:     StatusRejected,
			Stage:      "budget",
			Diagnostic: fmt.Sprintf("line delta %+d exceeds budget %d", delta, p.cfg.MaxLOCDelta),
			LineDelta:  delta,
		}, nil
	}
	log.Printf("[SANDBOX] line delta %+d (budget %d)", delta, p.cfg.MaxLOCDelta)

	// 2–3. Snapshot taken above; apply the proposed content in place.
	snap.createdDirs = missingDirs(filepath.Dir(target))
	if err := writeTarget(target, prop.Content); err != nil {
		return Result{}, fmt.Errorf("apply %s: %w", prop.Path, err)
	}
	log.Printf("[SANDBOX] wrote %s", prop.Path)

	// 4. Verification gate. First failure stops the pipeline.
	verdict := p.verifier.Verify(ctx, prop.Path, prop.Content)
	if !verdict.Passed {
		log.Printf("[SANDBOX] verification failed at %s: %s", verdict.Stage, verdict.Diagnostic)
		if err := snap.restore(target); err != nil {
			return Result{}, fmt.Errorf("rollback %s: %w", prop.Path, err)
		}
		log.Printf("[SANDBOX] rolled back %s", prop.Path)
		return Result{
			Status:     StatusRolledBack,
			Stage:      verdict.Stage,
			Diagnostic: verdict.Diagnostic,
			LineDelta:  delta,
		}, nil
	}

	// 5. Promote: publish through version control. A publish failure also
	// rolls the working tree back so the tree never diverges from what was
	// published.
	ref, err := p.publisher.Publish(ctx, []string{prop.Path}, prop.CommitMessage)
	if err != nil {
		log.Printf("[SANDBOX] publish failed, rolling back: %v", err)
		if rerr := snap.restore(target); rerr != nil {
			return Result{}, fmt.Errorf("rollback after publish failure: %w", rerr)
		}
		return Result{
			Status:     StatusRolledBack,
			Stage:      "publish",
			Diagnostic: err.Error(),
			LineDelta:  delta,
		}, nil
	}

	log.Printf("[SANDBOX] promoted %s → %s", prop.Path, ref)
	return Result{
		Status:    StatusPromoted,
		Stage:     "publish",
		Reference: ref,
		LineDelta: delta,
	}, nil
}

// #endregion apply

// #region snapshot

// snapshot captures the exact pre-patch state of one path for restoration.
type snapshot struct {
	existed     bool
	content     []byte
	mode        os.FileMode
	createdDirs []string // directories created for the patch, deepest first
}

func takeSnapshot(target string) (*snapshot, error) {
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return &snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	return &snapshot{existed: true, content: data, mode: info.Mode()}, nil
}

// restore puts the target back bit-identical to the snapshot: rewrite the
// prior bytes, or remove the created file and any directories created for
// it.
func (s *snapshot) restore(target string) error {
	if s.existed {
		return os.WriteFile(target, s.content, s.mode.Perm())
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, dir := range s.createdDirs {
		// Best effort: only empty created directories are removed.
		os.Remove(dir)
	}
	return nil
}

func writeTarget(target, content string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(content), 0o644)
}

// missingDirs lists the not-yet-existing ancestors of dir, deepest first,
// so a rollback can remove exactly what the patch created.
func missingDirs(dir string) []string {
	var missing []string
	for d := dir; d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
	}
	return missing
}

// #endregion snapshot

// #region helpers

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// #endregion helpers
