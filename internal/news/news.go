package news

// #region imports
import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"tradeagent/internal/browser"
)

// #endregion imports

// #region types

// Headline holds a single feed item.
type Headline struct {
	Title   string
	Snippet string
	URL     string
}

// Config holds news feed parameters.
type Config struct {
	Feeds      []string
	MaxPerFeed int
	Timeout    time.Duration
	Enabled    bool
}

// #endregion types

// #region config

// DefaultConfig returns default news configuration.
// Reads from env vars: NEWS_ENABLED, NEWS_FEEDS (comma-separated RSS
// URLs), NEWS_MAX_PER_FEED, NEWS_TIMEOUT.
func DefaultConfig() Config {
	cfg := Config{
		Feeds:      []string{"https://www.coindesk.com/arc/outboundfeeds/rss/"},
		MaxPerFeed: 3,
		Timeout:    10 * time.Second,
		Enabled:    true,
	}
	if v := os.Getenv("NEWS_ENABLED"); v != "" {
		cfg.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("NEWS_FEEDS"); v != "" {
		cfg.Feeds = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Feeds = append(cfg.Feeds, f)
			}
		}
	}
	if v := os.Getenv("NEWS_MAX_PER_FEED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPerFeed = n
		}
	}
	if v := os.Getenv("NEWS_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// #endregion config

// #region source

// Source pulls recent headlines from RSS feeds as a perception input.
type Source struct {
	cfg   Config
	httpc *http.Client
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg, httpc: &http.Client{Timeout: cfg.Timeout}}
}

func (s *Source) Name() string { return "news" }

// Fetch returns formatted headlines from every configured feed. A feed
// that fails is skipped; the fetch only errors when nothing came back.
func (s *Source) Fetch(ctx context.Context) (string, error) {
	if !s.cfg.Enabled {
		return "(news disabled)", nil
	}
	var all []Headline
	var lastErr error
	for _, feed := range s.cfg.Feeds {
		items, err := s.fetchFeed(ctx, feed)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > s.cfg.MaxPerFeed {
			items = items[:s.cfg.MaxPerFeed]
		}
		all = append(all, items...)
	}
	if len(all) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("all feeds failed: %w", lastErr)
		}
		return "(no headlines)", nil
	}
	return FormatAsEvidence(all), nil
}

func (s *Source) fetchFeed(ctx context.Context, feedURL string) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tradeagent/1.0")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	return parseRSS(body)
}

// #endregion source

// #region rss

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseRSS(body []byte) ([]Headline, error) {
	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}
	out := make([]Headline, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		h := Headline{
			Title:   strings.TrimSpace(item.Title),
			Snippet: snippet(item.Description),
			URL:     strings.TrimSpace(item.Link),
		}
		if h.Title != "" {
			out = append(out, h)
		}
	}
	return out, nil
}

// snippet strips any embedded markup from the description and bounds it.
func snippet(desc string) string {
	text := browser.ExtractText(desc)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// #endregion rss

// #region format

// FormatAsEvidence converts headlines to a string suitable for the
// observation context.
func FormatAsEvidence(headlines []Headline) string {
	if len(headlines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[News Headlines]\n")
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h.Title)
		if h.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", h.Snippet)
		}
		if h.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", h.URL)
		}
	}
	return b.String()
}

// #endregion format
