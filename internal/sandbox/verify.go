package sandbox

// #region imports
import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// #endregion imports

// #region verifier

// Verifier is the verification gate: pass/fail plus a short diagnostic.
// Abstracted so tests can substitute deterministic outcomes.
type Verifier interface {
	Verify(ctx context.Context, path, content string) VerifyResult
}

// GoVerifier verifies proposed Go tool code without invoking the toolchain:
// a parse stage, an import lint, then an interpreted smoke run. Generated
// tools are restricted to side-effect-free stdlib imports; anything that
// reaches the network, the filesystem, or a subprocess fails lint before it
// is ever executed.
type GoVerifier struct{}

// forbidden packages: anything granting I/O or process control.
var forbiddenImports = map[string]string{
	"os":        "filesystem access",
	"os/exec":   "command execution",
	"net":       "network access",
	"net/http":  "network access",
	"syscall":   "system calls",
	"unsafe":    "unsafe operations",
	"plugin":    "dynamic loading",
	"os/signal": "signal handling",
}

// Verify runs the gate stages in order; the first failure stops the run.
func (GoVerifier) Verify(ctx context.Context, path, content string) VerifyResult {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.AllErrors)
	if err != nil {
		return VerifyResult{Stage: "parse", Diagnostic: trim(err.Error())}
	}

	for _, imp := range file.Imports {
		pkg := strings.Trim(imp.Path.Value, `"`)
		if why, bad := forbiddenImports[pkg]; bad {
			return VerifyResult{
				Stage:      "lint",
				Diagnostic: fmt.Sprintf("import %q not permitted in generated tools (%s)", pkg, why),
			}
		}
	}

	if res := smokeRun(ctx, content); !res.Passed {
		return res
	}
	return VerifyResult{Passed: true, Stage: "test", Diagnostic: "all gates passed"}
}

// #endregion verifier

// #region smoke

// smokeRun evaluates the proposed code in a yaegi interpreter and, when the
// conventional RunTool entrypoint exists, invokes it once with empty input.
// Panics inside interpreted code are converted to failures.
func smokeRun(ctx context.Context, content string) (res VerifyResult) {
	defer func() {
		if r := recover(); r != nil {
			res = VerifyResult{Stage: "test", Diagnostic: fmt.Sprintf("smoke run panicked: %v", r)}
		}
	}()

	done := make(chan VerifyResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- VerifyResult{Stage: "test", Diagnostic: fmt.Sprintf("smoke run panicked: %v", r)}
			}
		}()
		done <- interpret(content)
	}()

	select {
	case <-ctx.Done():
		return VerifyResult{Stage: "test", Diagnostic: "smoke run timed out"}
	case res = <-done:
		return res
	}
}

func interpret(content string) VerifyResult {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return VerifyResult{Stage: "test", Diagnostic: fmt.Sprintf("interpreter init: %v", err)}
	}
	if _, err := i.Eval(asMain(content)); err != nil {
		return VerifyResult{Stage: "test", Diagnostic: trim(err.Error())}
	}

	entry, err := i.Eval("main.RunTool")
	if err != nil {
		// No entrypoint is fine: the file only declares helpers.
		return VerifyResult{Passed: true, Stage: "test"}
	}
	run, ok := entry.Interface().(func(string) (string, error))
	if !ok {
		return VerifyResult{
			Stage:      "test",
			Diagnostic: "RunTool has wrong signature, want func(string) (string, error)",
		}
	}
	if _, err := run(""); err != nil {
		return VerifyResult{Stage: "test", Diagnostic: fmt.Sprintf("RunTool(\"\") failed: %v", err)}
	}
	return VerifyResult{Passed: true, Stage: "test"}
}

// asMain rewrites the package clause so the interpreter can evaluate tool
// files declared under their own package names.
func asMain(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "package ") {
			lines[i] = "package main"
			return strings.Join(lines, "\n")
		}
	}
	return "package main\n\n" + content
}

func trim(s string) string {
	const max = 400
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

// #endregion smoke
