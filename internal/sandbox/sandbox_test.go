package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradeagent/internal/config"
)

type fakeVerifier struct {
	result  VerifyResult
	gate    chan struct{} // when non-nil, Verify blocks until closed
	entered chan struct{} // when non-nil, signalled once Verify starts
	calls   int
}

func (f *fakeVerifier) Verify(ctx context.Context, path, content string) VerifyResult {
	f.calls++
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.result
}

type fakePublisher struct {
	ref   string
	err   error
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, paths []string, message string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

func testPipeline(t *testing.T, v Verifier, pub Publisher) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default().Policy
	if v == nil {
		v = &fakeVerifier{result: VerifyResult{Passed: true, Stage: "test"}}
	}
	if pub == nil {
		pub = &fakePublisher{ref: "push succeeded"}
	}
	return New(dir, cfg, v, pub), dir
}

func TestPathEscapeRejectedBeforeAnyWrite(t *testing.T) {
	p, dir := testPipeline(t, nil, nil)

	res, err := p.Apply(context.Background(), Proposal{
		Path:    "tools/../core/agent.go",
		Content: "package core\n",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusRejected || res.Stage != "path" {
		t.Fatalf("expected path rejection, got %+v", res)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejection must not touch the tree, found %v", entries)
	}
}

func TestBudgetRejectedBeforeAnyWrite(t *testing.T) {
	p, dir := testPipeline(t, nil, nil)

	big := strings.Repeat("// line\n", 300)
	res, err := p.Apply(context.Background(), Proposal{
		Path:    "tools/huge.go",
		Content: "package tools\n" + big,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusRejected || res.Stage != "budget" {
		t.Fatalf("expected budget rejection, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "tools", "huge.go")); !os.IsNotExist(err) {
		t.Fatal("budget rejection must not create the file")
	}
}

func TestRollbackRestoresExistingFileByteIdentical(t *testing.T) {
	v := &fakeVerifier{result: VerifyResult{Stage: "test", Diagnostic: "RunTool failed"}}
	pub := &fakePublisher{}
	p, dir := testPipeline(t, v, pub)

	original := []byte("package tools\n\n// the original\nfunc Keep() {}\n")
	target := filepath.Join(dir, "tools", "keep.go")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, original, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := p.Apply(context.Background(), Proposal{
		Path:    "tools/keep.go",
		Content: "package tools\n\nfunc Broken() {}\n",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusRolledBack || res.Stage != "test" {
		t.Fatalf("expected rollback at test stage, got %+v", res)
	}
	after, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read after rollback: %v", err)
	}
	if !bytes.Equal(after, original) {
		t.Fatalf("rollback not byte-identical:\n%q\n%q", after, original)
	}
	if pub.calls != 0 {
		t.Fatal("failed verification must never publish")
	}
}

func TestRollbackRemovesCreatedFileAndDirs(t *testing.T) {
	v := &fakeVerifier{result: VerifyResult{Stage: "lint", Diagnostic: "bad import"}}
	p, dir := testPipeline(t, v, nil)

	res, err := p.Apply(context.Background(), Proposal{
		Path:    "experiments/momentum/signal.go",
		Content: "package momentum\n",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusRolledBack {
		t.Fatalf("expected rollback, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "experiments")); !os.IsNotExist(err) {
		t.Fatal("created directories must be removed on rollback")
	}
}

func TestPromoteOnPass(t *testing.T) {
	pub := &fakePublisher{ref: "push succeeded"}
	p, dir := testPipeline(t, nil, pub)

	content := "package tools\n\nfunc Mean(xs []float64) float64 { return 0 }\n"
	res, err := p.Apply(context.Background(), Proposal{
		Path:          "tools/mean.go",
		Content:       content,
		CommitMessage: "add mean helper",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusPromoted || res.Reference != "push succeeded" {
		t.Fatalf("expected promotion, got %+v", res)
	}
	if pub.calls != 1 {
		t.Fatalf("expected exactly one publish, got %d", pub.calls)
	}
	after, err := os.ReadFile(filepath.Join(dir, "tools", "mean.go"))
	if err != nil || string(after) != content {
		t.Fatalf("promoted content must remain in place: %v %q", err, after)
	}
}

func TestPublishFailureRollsBack(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("remote rejected")}
	p, dir := testPipeline(t, nil, pub)

	res, err := p.Apply(context.Background(), Proposal{
		Path:    "tools/x.go",
		Content: "package tools\n",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusRolledBack || res.Stage != "publish" {
		t.Fatalf("expected publish rollback, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "tools", "x.go")); !os.IsNotExist(err) {
		t.Fatal("file must be removed after publish rollback")
	}
}

func TestSecondProposalBlockedWhileFirstInFlight(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	v := &fakeVerifier{result: VerifyResult{Passed: true, Stage: "test"}, gate: gate, entered: entered}
	p, _ := testPipeline(t, v, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.Apply(context.Background(), Proposal{Path: "tools/a.go", Content: "package tools\n"})
		firstDone <- err
	}()

	// Wait for the first proposal to reach verification.
	<-entered

	if _, err := p.Apply(context.Background(), Proposal{Path: "tools/b.go", Content: "package tools\n"}); err == nil {
		t.Fatal("second proposal must be refused while the first is in flight")
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first proposal: %v", err)
	}
}

func TestGoVerifierStages(t *testing.T) {
	v := GoVerifier{}
	ctx := context.Background()

	res := v.Verify(ctx, "tools/bad.go", "package tools\nfunc {")
	if res.Passed || res.Stage != "parse" {
		t.Fatalf("expected parse failure, got %+v", res)
	}

	res = v.Verify(ctx, "tools/net.go", "package tools\n\nimport \"net/http\"\n\nvar c = http.DefaultClient\n")
	if res.Passed || res.Stage != "lint" {
		t.Fatalf("expected lint failure, got %+v", res)
	}

	good := "package tools\n\nimport \"strings\"\n\nfunc RunTool(input string) (string, error) {\n\treturn strings.ToUpper(input), nil\n}\n"
	res = v.Verify(ctx, "tools/upper.go", good)
	if !res.Passed {
		t.Fatalf("expected pass, got %+v", res)
	}

	failing := "package tools\n\nimport \"fmt\"\n\nfunc RunTool(input string) (string, error) {\n\treturn \"\", fmt.Errorf(\"always broken\")\n}\n"
	res = v.Verify(ctx, "tools/broken.go", failing)
	if res.Passed || res.Stage != "test" {
		t.Fatalf("expected test failure, got %+v", res)
	}
}
