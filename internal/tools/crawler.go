package tools

// crawler.go defines the page-crawling tool. Pages are fetched politely
// (rate-limited per domain), run through readability extraction, and returned
// as plain text the model can digest.

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"

	"github.com/uplift-ai/uplift/internal/log"
)

// CrawlPageName is the registered name of the crawling tool. The "crawl"
// substring drives the stream layer's user-facing phrasing.
const CrawlPageName = "crawl_page"

// MaxPageChars caps the extracted text handed back to the model.
const MaxPageChars = 8_000

// maxBodyBytes caps the downloaded response body.
const maxBodyBytes = 2 << 20

// CrawlInput is the model-facing input schema.
type CrawlInput struct {
	URL string `json:"url" jsonschema_description:"Absolute http(s) URL of the page to read"`
}

// CrawlerOptions tunes fetch politeness.
type CrawlerOptions struct {
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
}

// Crawler holds dependencies for the crawl handler.
type Crawler struct {
	opts   CrawlerOptions
	logger log.Logger
}

// NewCrawler creates a Crawler toolset.
func NewCrawler(opts CrawlerOptions, logger log.Logger) (*Crawler, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Crawler{opts: opts, logger: logger}, nil
}

// RegisterCrawler registers the crawl tool with genkit and returns it for
// provider aggregation.
func RegisterCrawler(g *genkit.Genkit, ct *Crawler) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if ct == nil {
		return nil, fmt.Errorf("Crawler is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, CrawlPageName,
			"Fetch one web page and return its readable text content. "+
				"Use it to read release notes, changelogs or documentation pages "+
				"referenced in an answer. Only public http(s) URLs are allowed.",
			WithEvents(CrawlPageName, ct.CrawlPage)),
	}, nil
}

// CrawlPage fetches the page and extracts its readable text.
func (c *Crawler) CrawlPage(ctx *ai.ToolContext, input CrawlInput) (Result, error) {
	c.logger.Info("CrawlPage called", "url", input.URL)

	target, err := checkURL(input.URL)
	if err != nil {
		return errorResult(ErrCodeValidation, err.Error()), nil
	}

	body, err := c.fetch(input.URL)
	if err != nil {
		c.logger.Warn("CrawlPage fetch failed", "url", input.URL, "error", err)
		return errorResult(ErrCodeExecution, fmt.Sprintf("fetching page: %v", err)), nil
	}

	title, text := extractReadable(body, target)
	if text == "" {
		return errorResult(ErrCodeExecution, "page contained no readable text"), nil
	}
	if len(text) > MaxPageChars {
		text = text[:MaxPageChars]
	}

	c.logger.Info("CrawlPage succeeded", "url", input.URL, "text_length", len(text))
	return successResult(map[string]any{
		"url":   input.URL,
		"title": title,
		"text":  text,
	}), nil
}

// fetch downloads the page body with per-domain rate limiting.
func (c *Crawler) fetch(rawURL string) ([]byte, error) {
	collector := colly.NewCollector(
		colly.MaxBodySize(maxBodyBytes),
	)
	collector.SetRequestTimeout(c.opts.Timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.opts.Parallelism,
		Delay:       c.opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configuring rate limit: %w", err)
	}

	var body []byte
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}

// checkURL rejects non-http schemes and obvious internal targets.
func checkURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q, only http(s) is allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return nil, fmt.Errorf("internal hosts are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
		return nil, fmt.Errorf("internal addresses are not allowed")
	}
	return u, nil
}

// extractReadable runs readability extraction with a raw HTML fallback.
func extractReadable(body []byte, pageURL *url.URL) (title, text string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.Title, collapseWhitespace(article.TextContent)
	}

	// Readability gave up; fall back to stripping tags ourselves.
	if doc, qErr := goquery.NewDocumentFromReader(bytes.NewReader(body)); qErr == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return title, collapseWhitespace(textFromHTML(body))
}

// textFromHTML walks the parse tree collecting text nodes, skipping script,
// style and similar non-content elements.
func textFromHTML(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	skip := map[string]bool{"script": true, "style": true, "noscript": true, "head": true}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
