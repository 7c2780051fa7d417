package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"tradeagent/internal/replay"
)

// #endregion

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to a policy replay fixture (JSON)")
	jsonOut := flag.Bool("json", false, "output results as JSON")
	verbose := flag.Bool("v", false, "print every case, not just mismatches")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture cases.json [--json] [--v]")
		os.Exit(2)
	}

	fixture, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	results, summary := replay.Replay(fixture)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Results []replay.Result `json:"results"`
			Summary replay.Summary  `json:"summary"`
		}{results, summary}); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, r := range results {
			if !r.Match {
				fmt.Printf("MISMATCH %-30s got allow=%v rule=%s, want rule=%s\n", r.Name, r.Allow, r.Rule, r.WantRule)
			} else if *verbose {
				verdict := "ALLOW"
				if !r.Allow {
					verdict = "deny:" + r.Rule
				}
				fmt.Printf("ok       %-30s %s\n", r.Name, verdict)
			}
		}
		fmt.Printf("%d cases: %d allow, %d deny, %d mismatch\n",
			summary.Total, summary.Allows, summary.Denies, summary.Mismatches)
	}

	if summary.Mismatches > 0 {
		os.Exit(1)
	}
}

// #endregion
