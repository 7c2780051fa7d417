package browser

// #region imports
import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
)

// #endregion imports

// maxPageText caps the text handed back to the reasoner; pages past this
// add token cost without adding signal.
const maxPageText = 8000

// #region scraper

// Scraper fetches page text for the scrape action. It drives a headless
// browser so JS-rendered pages work, and degrades to a plain HTTP fetch
// when no browser can be launched (containers without Chromium).
type Scraper struct {
	timeout time.Duration
	httpc   *http.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		timeout: timeout,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Scrape returns the visible text of the page at url. Domain policy is
// enforced by the caller before this is reached.
func (s *Scraper) Scrape(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.rendered(ctx, url)
	if err != nil {
		log.Printf("[SCRAPE] headless fetch failed, falling back to static: %v", err)
		text, err = s.static(ctx, url)
		if err != nil {
			return "", fmt.Errorf("scrape %s: %w", url, err)
		}
	}
	return clip(text, maxPageText), nil
}

func (s *Scraper) rendered(ctx context.Context, url string) (string, error) {
	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer b.Close()

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	res, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return res.Value.Str(), nil
}

func (s *Scraper) static(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "tradeagent/1.0")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return ExtractText(string(body)), nil
}

// #endregion scraper

// #region text

// ExtractText strips tags from an HTML document, skipping script and
// style subtrees, and collapses the result to whitespace-joined text.
func ExtractText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(truncated)"
}

// #endregion text
