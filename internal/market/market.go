package market

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// #endregion imports

const defaultBaseURL = "https://api.binance.com"

// #region client

// Candle is one OHLCV bar from the klines endpoint.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Client reads public market data. No API key is needed for the
// endpoints used here.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Klines fetches up to limit recent candles for symbol at the given
// interval ("1h", "4h", "1d", ...).
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("klines %s: status %d: %s", symbol, resp.StatusCode, body)
	}

	// Each kline is a heterogeneous JSON array; fields 1-5 are the
	// OHLCV strings.
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("klines %s: decode: %w", symbol, err)
	}
	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			continue
		}
		c := Candle{OpenTime: time.UnixMilli(openMs).UTC()}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		ok := true
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if ok {
			candles = append(candles, c)
		}
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("klines %s: empty response", symbol)
	}
	return candles, nil
}

// Summary fetches candles and renders the compact analysis used both as
// a perception chunk and as the analyze action's result.
func (c *Client) Summary(ctx context.Context, symbol, interval string) (string, error) {
	candles, err := c.Klines(ctx, symbol, interval, 50)
	if err != nil {
		return "", err
	}
	return Summarize(symbol, interval, candles), nil
}

// Analyze satisfies the orchestrator's analyzer collaborator.
func (c *Client) Analyze(ctx context.Context, symbol, interval string) (string, error) {
	if interval == "" {
		interval = "1h"
	}
	return c.Summary(ctx, symbol, interval)
}

// #endregion client

// #region indicators

// Summarize condenses candles into one line the model can consume
// without burning context on raw series.
func Summarize(symbol, interval string, candles []Candle) string {
	last := candles[len(candles)-1]
	out := fmt.Sprintf("%s %s close=%.4f", symbol, interval, last.Close)
	if len(candles) >= 2 {
		prev := candles[len(candles)-2]
		if prev.Close > 0 {
			out += fmt.Sprintf(" chg=%+.2f%%", (last.Close-prev.Close)/prev.Close*100)
		}
	}
	if v, ok := sma(candles, 20); ok {
		out += fmt.Sprintf(" sma20=%.4f", v)
	}
	if v, ok := rsi(candles, 14); ok {
		out += fmt.Sprintf(" rsi14=%.1f", v)
	}
	out += fmt.Sprintf(" vol=%.0f", last.Volume)
	return out
}

func sma(candles []Candle, n int) (float64, bool) {
	if len(candles) < n {
		return 0, false
	}
	var sum float64
	for _, c := range candles[len(candles)-n:] {
		sum += c.Close
	}
	return sum / float64(n), true
}

func rsi(candles []Candle, n int) (float64, bool) {
	if len(candles) < n+1 {
		return 0, false
	}
	var gain, loss float64
	window := candles[len(candles)-n-1:]
	for i := 1; i < len(window); i++ {
		d := window[i].Close - window[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

// #endregion indicators

// #region source

// Source adapts the client into a perception source over a fixed symbol
// set and caches the last close per symbol for the pricer.
type Source struct {
	client   *Client
	symbols  []string
	interval string
	last     map[string]float64
}

func NewSource(client *Client, symbols []string, interval string) *Source {
	return &Source{
		client:   client,
		symbols:  symbols,
		interval: interval,
		last:     make(map[string]float64),
	}
}

func (s *Source) Name() string { return "market" }

// Fetch returns one summary line per symbol. A symbol that fails is
// reported inline so the cycle still sees the rest.
func (s *Source) Fetch(ctx context.Context) (string, error) {
	out := ""
	var lastErr error
	for _, sym := range s.symbols {
		candles, err := s.client.Klines(ctx, sym, s.interval, 50)
		if err != nil {
			lastErr = err
			out += fmt.Sprintf("%s: unavailable (%v)\n", sym, err)
			continue
		}
		s.last[sym] = candles[len(candles)-1].Close
		out += Summarize(sym, s.interval, candles) + "\n"
	}
	if out == "" && lastErr != nil {
		return "", lastErr
	}
	return out, nil
}

// LastPrice reports the most recent close seen for symbol, if any.
func (s *Source) LastPrice(symbol string) (float64, bool) {
	v, ok := s.last[symbol]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// #endregion source
