package swap

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradeagent/internal/config"
)

// #endregion imports

const defaultBaseURL = "https://api.jup.ag"

// mints maps the token symbols the reasoner speaks to mainnet mint
// addresses. Unknown symbols fail the swap before any network call.
var mints = map[string]string{
	"SOL":  "So11111111111111111111111111111111111111112",
	"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"USDT": "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"JUP":  "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
}

// #region client

// Signer is the wallet surface the swap flow needs: the fee-payer
// address for the quote and a way to sign and submit the returned
// transaction.
type Signer interface {
	Address() string
	SignAndSend(ctx context.Context, txBase64 string) (string, error)
}

// Client executes token swaps through the Jupiter aggregator.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	signer  Signer
	mainnet bool
}

func New(cfg config.Solana, signer Signer, timeout time.Duration) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  cfg.JupiterKey,
		httpc:   &http.Client{Timeout: timeout},
		signer:  signer,
		mainnet: cfg.Mainnet,
	}
}

// Swap trades amountSOL worth of from into to. Off mainnet the
// aggregator has no liquidity, so the swap is acknowledged with a mock
// signature instead of submitting anything.
func (c *Client) Swap(ctx context.Context, from, to string, amountSOL float64, slippageBps int) (string, error) {
	fromMint, ok := mints[strings.ToUpper(from)]
	if !ok {
		return "", fmt.Errorf("unknown token %q", from)
	}
	toMint, ok := mints[strings.ToUpper(to)]
	if !ok {
		return "", fmt.Errorf("unknown token %q", to)
	}
	if !c.mainnet {
		sig := "DEVNET-MOCK-" + uuid.NewString()
		log.Printf("[SWAP] devnet: acknowledging %s→%s %.6f without submitting, sig=%s", from, to, amountSOL, sig)
		return sig, nil
	}

	quote, err := c.quote(ctx, fromMint, toMint, uint64(amountSOL*1e9), slippageBps)
	if err != nil {
		return "", err
	}
	txB64, err := c.buildTransaction(ctx, quote)
	if err != nil {
		return "", err
	}
	sig, err := c.signer.SignAndSend(ctx, txB64)
	if err != nil {
		return "", fmt.Errorf("submit swap: %w", err)
	}
	log.Printf("[SWAP] %s→%s %.6f sig=%s", from, to, amountSOL, sig)
	return sig, nil
}

// #endregion client

// #region jupiter

// quote returns the raw quote object; it is passed back verbatim to the
// swap endpoint, so nothing beyond transport errors is interpreted here.
func (c *Client) quote(ctx context.Context, fromMint, toMint string, lamports uint64, slippageBps int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", fromMint)
	q.Set("outputMint", toMint)
	q.Set("amount", strconv.FormatUint(lamports, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/swap/v1/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return body, nil
}

func (c *Client) buildTransaction(ctx context.Context, quote json.RawMessage) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"quoteResponse":             quote,
		"userPublicKey":             c.signer.Address(),
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/swap/v1/swap", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("build swap transaction: %w", err)
	}
	var out struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}
	return out.SwapTransaction, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// #endregion jupiter
