package gitops

// #region imports
import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"tradeagent/internal/config"
)

// #endregion imports

// #region publisher

// Publisher stages, commits, and pushes promoted patches. The token is
// injected into the remote URL only for the push and scrubbed from any
// error output; it is never written anywhere durable.
type Publisher struct {
	cfg config.Git
	dir string
}

// NewPublisher creates a publisher operating on the repository at dir.
func NewPublisher(cfg config.Git, dir string) *Publisher {
	return &Publisher{cfg: cfg, dir: dir}
}

// Publish stages exactly the declared paths, commits, and pushes.
// Returns a short reference string on success.
func (p *Publisher) Publish(ctx context.Context, paths []string, message string) (string, error) {
	if message == "" {
		message = "agent: extend capability code"
	}

	// Stage only the declared files, never the whole tree.
	args := append([]string{"add", "--"}, paths...)
	if err := p.run(ctx, args...); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	if err := p.run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	ref, err := p.runOut(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}

	remote := fmt.Sprintf("https://%s@github.com/%s.git", p.cfg.Token, p.cfg.Repo)
	if err := p.run(ctx, "push", remote, p.cfg.Branch); err != nil {
		return "", fmt.Errorf("git push: %w", err)
	}
	log.Printf("[GIT] pushed %s to %s %s", ref, p.cfg.Repo, p.cfg.Branch)
	return ref, nil
}

// run executes a git subcommand, capturing output and scrubbing the token
// from anything that could surface in logs or errors.
func (p *Publisher) run(ctx context.Context, args ...string) error {
	_, err := p.runOut(ctx, args...)
	return err
}

func (p *Publisher) runOut(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %s", err, p.scrub(out.String()))
	}
	return p.scrub(out.String()), nil
}

func (p *Publisher) scrub(s string) string {
	if p.cfg.Token == "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.ReplaceAll(s, p.cfg.Token, "***"))
}

// #endregion publisher
