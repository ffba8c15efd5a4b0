// Package collyscraper implements campaign.Scraper using gocolly.
package collyscraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	ExcerptChars int
}

// Archive holds the optional snapshot sink. When nil, fetched pages are
// parsed and discarded.
type Archive struct {
	Store       campaign.BlobStore
	Hasher      campaign.Hasher
	Prefix      string
	ContentType string
}

// Scraper fetches a single product page and extracts best-effort metadata.
// It never fails outward: every error collapses to campaign.DefaultMetadata.
type Scraper struct {
	cfg           Config
	archive       *Archive
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Scraper. archive may be nil to disable snapshotting.
func New(cfg Config, archive *Archive, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	// Product pages are fetched one-off on user request; robots.txt
	// handling stays with the crawler use case, not this one.
	c.IgnoreRobotsTxt = true

	return &Scraper{
		cfg:           cfg,
		archive:       archive,
		logger:        logger,
		baseCollector: c,
	}
}

// Scrape fetches the page and extracts title, description, and a short text
// excerpt. On any failure it logs and returns the default record.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) campaign.PageMetadata {
	meta, err := s.fetchAndExtract(ctx, rawURL)
	if err != nil {
		s.logger.Warn("scrape failed, using default metadata",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		metrics.ObserveScrape(rawURL, "default")
		return campaign.DefaultMetadata()
	}
	metrics.ObserveScrape(rawURL, "ok")
	return meta
}

func (s *Scraper) fetchAndExtract(ctx context.Context, rawURL string) (campaign.PageMetadata, error) {
	body, err := s.fetchBody(ctx, rawURL)
	if err != nil {
		return campaign.PageMetadata{}, err
	}
	s.archiveSnapshot(ctx, rawURL, body)
	return s.extract(body)
}

// fetchBody executes a single HTTP GET using Colly.
func (s *Scraper) fetchBody(ctx context.Context, rawURL string) ([]byte, error) {
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	timeout := s.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("scrape canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch failed: %w", fetchErr)
		}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}

// extract pulls title, description, and a text excerpt out of the HTML.
// Preference order follows the page's own metadata before falling back to
// visible content.
func (s *Scraper) extract(body []byte) (campaign.PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return campaign.PageMetadata{}, fmt.Errorf("parse html: %w", err)
	}

	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = metaContent(doc, `meta[name="og:title"]`)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = campaign.DefaultProductName
	}

	desc := metaContent(doc, `meta[property="og:description"]`)
	if desc == "" {
		desc = metaContent(doc, `meta[name="description"]`)
	}

	return campaign.PageMetadata{
		Title:       title,
		Description: desc,
		Text:        s.excerpt(doc),
	}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// excerpt returns the page's visible text truncated to the configured
// number of characters.
func (s *Scraper) excerpt(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if text == "" {
		return ""
	}
	limit := s.cfg.ExcerptChars
	if limit <= 0 {
		limit = 500
	}
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return strings.TrimSpace(string(runes))
}

// archiveSnapshot writes the raw page to the blob store, keyed by host and
// content digest. Best effort: failures are logged and never surfaced.
func (s *Scraper) archiveSnapshot(ctx context.Context, rawURL string, body []byte) {
	if s.archive == nil || s.archive.Store == nil {
		return
	}
	digest, err := s.archive.Hasher.Hash(body)
	if err != nil {
		s.logger.Warn("snapshot digest failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	key := path.Join(s.archive.Prefix, snapshotHost(rawURL), digest+".html")
	uri, err := s.archive.Store.PutObject(ctx, key, s.archive.ContentType, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("snapshot archive failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	s.logger.Debug("page snapshot archived", zap.String("url", rawURL), zap.String("uri", uri))
}

func snapshotHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
