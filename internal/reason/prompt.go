package reason

// #region prompts
import (
	"fmt"
	"strings"

	"tradeagent/internal/ledger"
)

const systemPrompt = `You are an autonomous trading agent operating a Solana wallet.
Each cycle you receive market observations, your recent transaction history,
your current balance, and today's spend so far. Decide on exactly one action.

Respond with a single JSON object and nothing else:

{
  "action_type": "transfer" | "swap" | "scrape" | "analyze" | "review_history" | "extend_code" | "noop",
  "target": "<address, URL, symbol, or file path depending on action_type>",
  "params": {
    "amount_sol": <number, for transfer/swap>,
    "from_token": "<symbol, for swap>",
    "to_token": "<symbol, for swap>",
    "slippage_bps": <integer, optional, for swap>,
    "code": "<full file contents, for extend_code>",
    "commit_message": "<short message, for extend_code>"
  },
  "confidence": <number between 0 and 1>,
  "reason": "<one or two sentences>"
}

Rules:
- Every action is checked against a policy engine; denied actions waste a cycle,
  so prefer a cheap information action over a borderline trade.
- Express confidence honestly. Low confidence on a spend means the spend is blocked.
- For extend_code the target must be a relative path inside the writable roots
  and the code must be a complete, parseable Go file.
- When nothing is worth doing, return a noop with your reasoning.`

func userPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("=== OBSERVATIONS ===\n")
	if len(in.Observations) == 0 {
		b.WriteString("(no observations this cycle)\n")
	}
	for _, o := range in.Observations {
		b.WriteString(o)
		b.WriteString("\n")
	}
	b.WriteString("\n=== WALLET ===\n")
	if in.BalanceSOL < 0 {
		b.WriteString("balance: unavailable (RPC check failed)\n")
	} else {
		fmt.Fprintf(&b, "balance: %.6f SOL\n", in.BalanceSOL)
	}
	fmt.Fprintf(&b, "spent today: %.6f SOL\n", in.DailySpendSOL)
	if len(in.DriftWarnings) > 0 {
		b.WriteString("\n=== DRIFT WARNINGS ===\n")
		for _, w := range in.DriftWarnings {
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	if in.BenchmarkNote != "" {
		b.WriteString("\n=== BENCHMARK ===\n")
		b.WriteString(in.BenchmarkNote)
		b.WriteString("\n")
	}
	b.WriteString("\n=== RECENT HISTORY ===\n")
	if in.History == "" {
		b.WriteString("(no prior transactions)\n")
	} else {
		b.WriteString(in.History)
	}
	b.WriteString("\nDecide on one action and respond with the JSON object.")
	return b.String()
}

// FormatHistory renders transaction records newest-first as compact lines
// for the model context and the review_history action.
func FormatHistory(recs []ledger.TransactionRecord) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s %s %s", r.Timestamp.UTC().Format("2006-01-02 15:04"), r.Kind, r.Target)
		if r.AmountSOL > 0 {
			fmt.Fprintf(&b, " %.4f SOL", r.AmountSOL)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, " FAILED: %s", r.Error)
		} else if r.Signature != "" {
			fmt.Fprintf(&b, " sig=%s", shorten(r.Signature))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func shorten(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:12] + "…"
}

// #endregion prompts
