package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"jefferson/internal/config"
)

const scraperUserAgent = "jefferson-news/1.0"

// Scraper pulls headlines from configured county news outlets. One
// failing outlet never aborts the county; its error is logged and the
// rest proceed.
type Scraper struct {
	cfg        config.NewsConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewScraper builds a scraper with the given per-request timeout.
func NewScraper(cfg config.NewsConfig, timeout time.Duration, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// ScrapeCounty fetches headlines from every configured outlet for the
// county, a few outlets at a time. Unknown counties return an error
// rather than an empty slice.
func (s *Scraper) ScrapeCounty(ctx context.Context, county string) ([]Article, error) {
	sources, ok := s.cfg.Sources[county]
	if !ok {
		return nil, fmt.Errorf("no news sources configured for county %q", county)
	}

	var (
		mu       sync.Mutex
		articles []Article
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			found, err := s.scrapeSource(gctx, county, src)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("scrape failed",
					zap.String("county", county),
					zap.String("source", src.Name),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			articles = append(articles, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return articles, err
	}
	return articles, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, county string, src config.NewsSource) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	headlines := extractHeadlines(doc, src.URL)
	limit := s.cfg.ArticlesPerSource
	if limit > 0 && len(headlines) > limit {
		headlines = headlines[:limit]
	}

	fetched := s.now()
	articles := make([]Article, 0, len(headlines))
	for _, h := range headlines {
		articles = append(articles, Article{
			ID:        uuid.NewString(),
			County:    county,
			Source:    src.Name,
			Title:     h.title,
			URL:       h.url,
			FetchedAt: fetched,
		})
	}
	return articles, nil
}

type headline struct {
	title string
	url   string
}

// extractHeadlines pulls linked headings from parsed HTML. It looks for
// anchors inside h1/h2/h3 elements and anchors that directly wrap a
// heading, deduplicating by resolved URL.
func extractHeadlines(doc *html.Node, baseURL string) []headline {
	base, _ := url.Parse(baseURL)
	seen := make(map[string]bool)
	var headlines []headline

	add := func(title, href string) {
		title = collapseSpace(title)
		if len(title) < 15 || href == "" {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		headlines = append(headlines, headline{title: title, url: resolved})
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3":
				if a := findAnchor(n); a != nil {
					add(textContent(n), attrValue(a, "href"))
				}
			case "a":
				if h := findHeading(n); h != nil {
					add(textContent(h), attrValue(n, "href"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return headlines
}

func findAnchor(n *html.Node) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == "a" {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return found
}

func findHeading(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "h1" || c.Data == "h2" || c.Data == "h3") {
			return c
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.TrimSpace(sb.String())
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
