package main

// #region imports
import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"tradeagent/internal/config"
	"tradeagent/internal/wallet"
)

// #endregion

// #region main

// checkbalance verifies connectivity and key material without touching
// the ledger: load config, derive the address, read the balance.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	w, err := wallet.NewClient(cfg.Solana, cfg.FetchTimeout)
	if err != nil {
		log.Fatalf("wallet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	bal, err := w.Balance(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance check failed: %v\n", err)
		os.Exit(1)
	}

	network := "devnet"
	if cfg.Solana.Mainnet {
		network = "mainnet"
	}
	fmt.Printf("address: %s\nnetwork: %s\nbalance: %.6f SOL\n", w.Address(), network, bal)
}

// #endregion
