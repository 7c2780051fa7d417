package main

// #region imports
import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeagent/internal/audit"
	"tradeagent/internal/browser"
	"tradeagent/internal/config"
	"tradeagent/internal/gitops"
	"tradeagent/internal/ledger"
	"tradeagent/internal/market"
	"tradeagent/internal/news"
	"tradeagent/internal/orchestrator"
	"tradeagent/internal/reason"
	"tradeagent/internal/sandbox"
	"tradeagent/internal/swap"
	"tradeagent/internal/wallet"
)

// #endregion

// #region main

func main() {
	dryRun := flag.Bool("dry-run", false, "evaluate and decide but execute no spends")
	interval := flag.Duration("interval", 0, "run a cycle every interval; 0 runs once and exits")
	baseDir := flag.String("base-dir", ".", "working tree root for self-modification")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	store := ledger.NewStore(cfg.Memory.Path, cfg.Memory)
	auditLog, err := audit.Open(cfg.Memory.AuditDBPath)
	if err != nil {
		log.Fatalf("audit db: %v", err)
	}
	defer auditLog.Close()
	store.SetArchiver(auditLog)

	// Corrupt memory is fatal before any action is considered.
	if _, err := store.Load(); err != nil {
		log.Fatalf("ledger: %v", err)
	}

	w, err := wallet.NewClient(cfg.Solana, cfg.FetchTimeout)
	if err != nil {
		log.Fatalf("wallet: %v", err)
	}
	log.Printf("[AGENT] wallet %s on %s (dry-run=%v)", w.Address(), cfg.Solana.RPCURL, cfg.DryRun)

	mkt := market.NewClient(cfg.FetchTimeout)
	src := market.NewSource(mkt, []string{"SOLUSDT", "BTCUSDT", "ETHUSDT"}, "1h")
	headlines := news.NewSource(news.DefaultConfig())

	pipeline := sandbox.New(*baseDir, cfg.Policy, sandbox.GoVerifier{},
		gitops.NewPublisher(cfg.Git, *baseDir))

	o := orchestrator.New(&cfg, store, orchestrator.Deps{
		Sources:   []orchestrator.PerceptionSource{src, headlines},
		Reasoner:  reason.NewClient(cfg.LLM),
		Wallet:    w,
		Swapper:   swap.New(cfg.Solana, w, cfg.FetchTimeout),
		Scraper:   browser.NewScraper(cfg.FetchTimeout),
		Analyzer:  mkt,
		Sandboxer: pipeline,
		Pricer:    src,
		Auditor:   auditLog,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *interval <= 0 {
		if err := runCycle(ctx, o); err != nil {
			log.Fatalf("cycle: %v", err)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if err := runCycle(ctx, o); err != nil {
			log.Fatalf("cycle: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Println("[AGENT] shutting down")
			return
		case <-ticker.C:
		}
	}
}

func runCycle(ctx context.Context, o *orchestrator.Orchestrator) error {
	res, err := o.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cycle %s: %s %s → %s\n",
		res.CycleID, res.Plan.Action.Kind, res.Plan.Action.Target, res.Action.Status)
	return nil
}

// #endregion
