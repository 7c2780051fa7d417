package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"tradeagent/internal/audit"
	"tradeagent/internal/config"
	"tradeagent/internal/ledger"
)

// #endregion

// #region main

func main() {
	memPath := flag.String("memory", "agent_memory.json", "path to the ledger document")
	dbPath := flag.String("db", "", "path to the audit db; decisions are skipped when empty")
	last := flag.Int("last", 10, "show N most recent transactions and decisions")
	jsonOut := flag.Bool("json", false, "output the raw document as JSON")
	flag.Parse()

	store := ledger.NewStore(*memPath, config.Default().Memory)
	doc, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load ledger: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printDocument(doc, *last)

	if *dbPath != "" {
		if err := printDecisions(*dbPath, *last); err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion

// #region render

func printDocument(doc ledger.Document, last int) {
	fmt.Printf("daily spend: %.6f SOL (%s)\n", doc.DailySpendSOL, doc.DailySpendDate)

	fmt.Println("\npositions:")
	if len(doc.Positions) == 0 {
		fmt.Println("  (none)")
	}
	for token, pos := range doc.Positions {
		fmt.Printf("  %-6s %+.6f\n", token, pos.Amount)
	}

	fmt.Printf("\ntransactions (%d total):\n", len(doc.TransactionLog))
	txs := doc.TransactionLog
	if len(txs) > last {
		txs = txs[len(txs)-last:]
	}
	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]
		line := fmt.Sprintf("  %s %-10s %-20s %.6f SOL", t.Timestamp.Format("2006-01-02 15:04"), t.Kind, t.Target, t.AmountSOL)
		if t.Error != "" {
			line += " FAILED: " + t.Error
		}
		fmt.Println(line)
	}

	open := 0
	for _, d := range doc.DriftRecords {
		if !d.Resolved {
			open++
		}
	}
	fmt.Printf("\ndrift records: %d (%d unresolved)\n", len(doc.DriftRecords), open)
	for _, d := range doc.DriftRecords {
		mark := "resolved"
		if !d.Resolved {
			mark = "OPEN"
		}
		fmt.Printf("  %s %s observed=%.6f tracked=%.6f delta=%+.6f [%s]\n",
			d.Created.Format("2006-01-02"), d.Token, d.Observed, d.Tracked, d.Delta, mark)
	}

	if n := len(doc.Reflections); n > 0 {
		fmt.Printf("\nlast reflection (%s): %s\n", doc.Reflections[n-1].Date, doc.Reflections[n-1].Text)
	}
}

func printDecisions(dbPath string, last int) error {
	auditLog, err := audit.Open(dbPath)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	decisions, err := auditLog.RecentDecisions(last)
	if err != nil {
		return err
	}
	fmt.Printf("\npolicy decisions (last %d):\n", len(decisions))
	for _, d := range decisions {
		verdict := "ALLOW"
		if !d.Allow {
			verdict = "deny:" + d.Rule
		}
		fmt.Printf("  %s %-12s conf=%.2f %s\n", d.CreatedAt.Format("2006-01-02 15:04"), d.ActionKind, d.Confidence, verdict)
	}
	return nil
}

// #endregion
