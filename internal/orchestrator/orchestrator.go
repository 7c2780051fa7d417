package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradeagent/internal/audit"
	"tradeagent/internal/config"
	"tradeagent/internal/ledger"
	"tradeagent/internal/plan"
	"tradeagent/internal/policy"
	"tradeagent/internal/reason"
	"tradeagent/internal/sandbox"
)

// #endregion

const (
	historyDepth    = 10
	reflectionLimit = 600
)

// #region orchestrator-struct

// Orchestrator drives one PERCEIVE → REASON → ACT → REFLECT cycle over
// the wired collaborators. The ledger is read at cycle boundaries and
// written exactly once, at REFLECT.
type Orchestrator struct {
	cfg   *config.AppConfig
	store *ledger.Store

	sources   []PerceptionSource
	reasoner  Reasoner
	wallet    Wallet
	swapper   Swapper
	scraper   Scraper
	analyzer  Analyzer
	sandboxer Sandboxer
	pricer    Pricer
	auditor   Auditor

	now func() time.Time
}

// Deps bundles the collaborators. wallet, swapper, scraper, analyzer,
// sandboxer, pricer, and auditor may be nil; the matching actions then
// error instead of executing.
type Deps struct {
	Sources   []PerceptionSource
	Reasoner  Reasoner
	Wallet    Wallet
	Swapper   Swapper
	Scraper   Scraper
	Analyzer  Analyzer
	Sandboxer Sandboxer
	Pricer    Pricer
	Auditor   Auditor
}

func New(cfg *config.AppConfig, store *ledger.Store, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		sources:   deps.Sources,
		reasoner:  deps.Reasoner,
		wallet:    deps.Wallet,
		swapper:   deps.Swapper,
		scraper:   deps.Scraper,
		analyzer:  deps.Analyzer,
		sandboxer: deps.Sandboxer,
		pricer:    deps.Pricer,
		auditor:   deps.Auditor,
		now:       time.Now,
	}
}

// #endregion

// #region run

// Run executes one full cycle. Collaborator failures degrade the cycle
// (noop plan, errored action); only configuration and ledger corruption
// are fatal.
func (o *Orchestrator) Run(ctx context.Context) (CycleResult, error) {
	cycleID := uuid.NewString()
	log.Printf("[ORCH] ═══ cycle %s ═══", cycleID)

	// PERCEIVE
	log.Printf("[ORCH] ═══ PERCEIVE ═══")
	observations := o.perceive(ctx)

	// REASON
	log.Printf("[ORCH] ═══ REASON ═══")
	balance := o.readBalance(ctx)
	snap, err := o.store.Snapshot()
	if err != nil {
		return CycleResult{}, fmt.Errorf("ledger snapshot: %w", err)
	}
	p := o.reasonPhase(ctx, observations, balance, snap)

	// Policy gate on a fresh snapshot so the daily total reflects any
	// concurrent writer.
	if p.Action.Kind == plan.KindExtendCode && o.sandboxer != nil {
		if d, derr := o.sandboxer.Delta(p.Action.Target, p.Action.Code); derr == nil {
			p.Action.LineDelta = d
		}
	}
	fresh, err := o.store.Snapshot()
	if err != nil {
		return CycleResult{}, fmt.Errorf("ledger snapshot: %w", err)
	}
	fresh.Mainnet = o.cfg.Solana.Mainnet
	if balance >= 0 {
		fresh.Balances = map[string]float64{"SOL": balance}
	}
	decision := policy.Evaluate(p.Action, fresh, o.cfg.Policy)
	o.recordDecision(cycleID, p, decision)

	// ACT
	log.Printf("[ORCH] ═══ ACT ═══")
	var result ActionResult
	if !decision.Allow {
		log.Printf("[ORCH] denied by policy (%s): %s", decision.Rule, decision.Reason)
		result = ActionResult{Status: StatusDenied, Detail: decision.Reason}
	} else {
		result = o.execute(ctx, cycleID, p)
	}

	// REFLECT
	log.Printf("[ORCH] ═══ REFLECT ═══")
	observed, haveObserved := o.observedBalance(ctx)
	reflection := reflectText(p, decision, result)
	var txRec *ledger.TransactionRecord
	err = o.store.Commit(func(doc *ledger.Document) {
		txRec = o.applyOutcome(doc, cycleID, p, result)
		doc.Reflections = append(doc.Reflections, ledger.Reflection{
			Date: o.now().UTC().Format("2006-01-02"),
			Text: reflection,
		})
		if haveObserved {
			o.reconcile(doc, observed)
		}
		o.ensureBenchmark(doc, balance)
	})
	if err != nil {
		return CycleResult{}, fmt.Errorf("ledger commit: %w", err)
	}
	if txRec != nil && o.auditor != nil {
		if aerr := o.auditor.RecordTransaction(cycleID, *txRec); aerr != nil {
			log.Printf("[ORCH] audit transaction failed: %v", aerr)
		}
	}
	log.Printf("[ORCH] cycle %s done: %s", cycleID, result.Status)

	return CycleResult{
		CycleID:    cycleID,
		Plan:       p,
		Decision:   decision,
		Action:     result,
		Reflection: reflection,
	}, nil
}

// #endregion run

// #region perceive

func (o *Orchestrator) perceive(ctx context.Context) []string {
	var chunks []string
	for _, src := range o.sources {
		fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		chunk, err := src.Fetch(fctx)
		cancel()
		if err != nil {
			log.Printf("[ORCH] source %s failed: %v", src.Name(), err)
			chunks = append(chunks, fmt.Sprintf("[%s] unavailable: %v", src.Name(), err))
			continue
		}
		chunks = append(chunks, fmt.Sprintf("[%s]\n%s", src.Name(), strings.TrimSpace(chunk)))
	}
	return chunks
}

func (o *Orchestrator) readBalance(ctx context.Context) float64 {
	if o.wallet == nil {
		return -1
	}
	bctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	bal, err := o.wallet.Balance(bctx)
	if err != nil {
		log.Printf("[ORCH] balance check failed: %v", err)
		return -1
	}
	return bal
}

// #endregion perceive

// #region reason

func (o *Orchestrator) reasonPhase(ctx context.Context, observations []string, balance float64, snap ledger.Snapshot) plan.Plan {
	recs, err := o.store.RecentTransactions(historyDepth)
	if err != nil {
		log.Printf("[ORCH] history read failed: %v", err)
	}
	drift, err := o.store.UnresolvedDrift()
	if err != nil {
		log.Printf("[ORCH] drift read failed: %v", err)
	}
	var warnings []string
	for _, d := range drift {
		warnings = append(warnings, fmt.Sprintf(
			"unresolved drift on %s: observed %.6f vs tracked %.6f (delta %+.6f)",
			d.Token, d.Observed, d.Tracked, d.Delta))
	}

	in := reason.Input{
		Observations:  observations,
		History:       reason.FormatHistory(recs),
		BalanceSOL:    balance,
		DailySpendSOL: snap.DailySpendSOL,
		DriftWarnings: warnings,
	}
	rctx, cancel := context.WithTimeout(ctx, o.cfg.LLM.Timeout)
	defer cancel()
	p, err := o.reasoner.Propose(rctx, in)
	if err != nil {
		log.Printf("[ORCH] reasoner failed, degrading to noop: %v", err)
		return plan.Noop(fmt.Sprintf("reasoner unavailable: %v", err))
	}
	return p
}

// #endregion reason

// #region act

func (o *Orchestrator) execute(ctx context.Context, cycleID string, p plan.Plan) ActionResult {
	a := p.Action
	ectx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	switch a.Kind {
	case plan.KindNoop:
		return ActionResult{Status: StatusExecuted, Detail: "noop"}

	case plan.KindTransfer:
		if o.cfg.DryRun {
			return ActionResult{Status: StatusDryRun, Detail: fmt.Sprintf("dry run: transfer %.6f SOL to %s", a.AmountSOL, a.Target)}
		}
		if o.wallet == nil {
			return ActionResult{Status: StatusErrored, Detail: "no wallet configured"}
		}
		sig, err := o.wallet.Send(ectx, a.Target, a.AmountSOL)
		if err != nil {
			return ActionResult{Status: StatusErrored, Detail: err.Error()}
		}
		return ActionResult{Status: StatusExecuted, Signature: sig}

	case plan.KindSwap:
		if o.cfg.DryRun {
			return ActionResult{Status: StatusDryRun, Detail: fmt.Sprintf("dry run: swap %.6f %s → %s", a.AmountSOL, a.FromToken, a.ToToken)}
		}
		if o.swapper == nil {
			return ActionResult{Status: StatusErrored, Detail: "no swapper configured"}
		}
		sig, err := o.swapper.Swap(ectx, a.FromToken, a.ToToken, a.AmountSOL, a.SlippageBps)
		if err != nil {
			return ActionResult{Status: StatusErrored, Detail: err.Error()}
		}
		return ActionResult{Status: StatusExecuted, Signature: sig}

	case plan.KindScrape:
		if o.scraper == nil {
			return ActionResult{Status: StatusErrored, Detail: "no scraper configured"}
		}
		text, err := o.scraper.Scrape(ectx, a.Target)
		if err != nil {
			return ActionResult{Status: StatusErrored, Detail: err.Error()}
		}
		return ActionResult{Status: StatusExecuted, Detail: text}

	case plan.KindAnalyze:
		if o.analyzer == nil {
			return ActionResult{Status: StatusErrored, Detail: "no analyzer configured"}
		}
		summary, err := o.analyzer.Analyze(ectx, a.Target, "1h")
		if err != nil {
			return ActionResult{Status: StatusErrored, Detail: err.Error()}
		}
		return ActionResult{Status: StatusExecuted, Detail: summary}

	case plan.KindReviewHistory:
		n := historyDepth
		if v, err := strconv.Atoi(a.Target); err == nil && v > 0 {
			n = v
		}
		recs, err := o.store.RecentTransactions(n)
		if err != nil {
			return ActionResult{Status: StatusErrored, Detail: err.Error()}
		}
		return ActionResult{Status: StatusExecuted, Detail: reason.FormatHistory(recs)}

	case plan.KindExtendCode:
		return o.extendCode(ectx, cycleID, a)
	}
	return ActionResult{Status: StatusErrored, Detail: fmt.Sprintf("unhandled action %q", a.Kind)}
}

func (o *Orchestrator) extendCode(ctx context.Context, cycleID string, a plan.Action) ActionResult {
	if o.sandboxer == nil {
		return ActionResult{Status: StatusErrored, Detail: "no sandbox configured"}
	}
	res, err := o.sandboxer.Apply(ctx, sandbox.Proposal{
		Path:          a.Target,
		Content:       a.Code,
		CommitMessage: a.CommitMsg,
	})
	if err != nil {
		return ActionResult{Status: StatusErrored, Detail: err.Error()}
	}
	if o.auditor != nil {
		if aerr := o.auditor.RecordPromotion(audit.PromotionEntry{
			CycleID:    cycleID,
			Path:       a.Target,
			Verified:   res.Status == sandbox.StatusPromoted,
			Stage:      string(res.Status),
			Reference:  res.Reference,
			Diagnostic: res.Diagnostic,
		}); aerr != nil {
			log.Printf("[ORCH] audit promotion failed: %v", aerr)
		}
	}
	detail := fmt.Sprintf("%s at %s", res.Status, res.Stage)
	if res.Diagnostic != "" {
		detail += ": " + res.Diagnostic
	}
	if res.Status == sandbox.StatusPromoted {
		return ActionResult{Status: StatusExecuted, Detail: detail, Signature: res.Reference}
	}
	return ActionResult{Status: StatusErrored, Detail: detail}
}

// #endregion act

// #region reflect

// applyOutcome folds the cycle's spend, position changes, and
// transaction record into the document, returning the record so it can
// be mirrored to the audit log after the commit lands. Only executed
// spends move the daily total; failed spends are recorded with their
// error so history shows them.
func (o *Orchestrator) applyOutcome(doc *ledger.Document, cycleID string, p plan.Plan, result ActionResult) *ledger.TransactionRecord {
	a := p.Action
	if !a.Kind.Spends() || result.Status == StatusDenied || result.Status == StatusDryRun {
		return nil
	}

	rec := ledger.TransactionRecord{
		ID:         cycleID,
		Timestamp:  o.now().UTC(),
		Kind:       string(a.Kind),
		Target:     a.Target,
		AmountSOL:  a.AmountSOL,
		Chain:      chainName(o.cfg.Solana.Mainnet),
		Signature:  result.Signature,
		Confidence: a.Confidence,
		Rationale:  p.Rationale,
	}
	if a.Kind == plan.KindSwap {
		rec.Target = a.FromToken + "→" + a.ToToken
	}
	if price, ok := o.lastPrice("SOLUSDT"); ok {
		rec.PriceUSD = price
		rec.AmountUSD = a.AmountSOL * price
	}
	if result.Status == StatusErrored {
		rec.Error = result.Detail
		doc.TransactionLog = append(doc.TransactionLog, rec)
		return &rec
	}

	doc.DailySpendSOL += a.AmountSOL
	switch a.Kind {
	case plan.KindTransfer:
		adjustPosition(doc, "SOL", -a.AmountSOL)
	case plan.KindSwap:
		adjustPosition(doc, a.FromToken, -a.AmountSOL)
		adjustPosition(doc, a.ToToken, a.AmountSOL)
	}
	doc.TransactionLog = append(doc.TransactionLog, rec)
	return &rec
}

func adjustPosition(doc *ledger.Document, token string, deltaSOL float64) {
	if doc.Positions == nil {
		doc.Positions = map[string]ledger.Position{}
	}
	pos := doc.Positions[token]
	pos.Amount += deltaSOL
	doc.Positions[token] = pos
}

// observedBalance re-reads the wallet after the action so reconciliation
// compares against post-trade reality.
func (o *Orchestrator) observedBalance(ctx context.Context) (float64, bool) {
	if o.wallet == nil {
		return 0, false
	}
	bctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	bal, err := o.wallet.Balance(bctx)
	if err != nil {
		log.Printf("[ORCH] reconciliation skipped, balance check failed: %v", err)
		return 0, false
	}
	return bal, true
}

func (o *Orchestrator) ensureBenchmark(doc *ledger.Document, balance float64) {
	if doc.Benchmark.StartDate != "" || balance < 0 {
		return
	}
	price, ok := o.lastPrice("SOLUSDT")
	if !ok {
		return
	}
	doc.Benchmark = ledger.Benchmark{
		StartDate:         o.now().UTC().Format("2006-01-02"),
		StartPortfolioUSD: balance * price,
		StartPrices:       map[string]float64{"SOL": price},
	}
	log.Printf("[ORCH] benchmark anchored: %.2f USD at %.2f/SOL", doc.Benchmark.StartPortfolioUSD, price)
}

func (o *Orchestrator) lastPrice(symbol string) (float64, bool) {
	if o.pricer == nil {
		return 0, false
	}
	return o.pricer.LastPrice(symbol)
}

func reflectText(p plan.Plan, decision policy.Decision, result ActionResult) string {
	text := fmt.Sprintf("plan=%s conf=%.2f | %s | outcome=%s",
		p.Action.Kind, p.Action.Confidence, p.Rationale, result.Status)
	if !decision.Allow {
		text += fmt.Sprintf(" rule=%s", decision.Rule)
	}
	if result.Signature != "" {
		text += " sig=" + result.Signature
	}
	if len(text) > reflectionLimit {
		text = text[:reflectionLimit]
	}
	return text
}

func (o *Orchestrator) recordDecision(cycleID string, p plan.Plan, d policy.Decision) {
	if o.auditor == nil {
		return
	}
	err := o.auditor.RecordDecision(audit.DecisionEntry{
		CycleID:    cycleID,
		ActionKind: string(p.Action.Kind),
		Target:     p.Action.Target,
		Confidence: p.Action.Confidence,
		Allow:      d.Allow,
		Rule:       string(d.Rule),
		Reason:     d.Reason,
	})
	if err != nil {
		log.Printf("[ORCH] audit decision failed: %v", err)
	}
}

func chainName(mainnet bool) string {
	if mainnet {
		return "mainnet"
	}
	return "devnet"
}

// #endregion reflect
