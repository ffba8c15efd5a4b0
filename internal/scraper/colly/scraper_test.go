package collyscraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/hash/sha256"
	"github.com/adpage/campaign-generator/internal/metrics"
	memoryStorage "github.com/adpage/campaign-generator/internal/storage/memory"
)

func init() {
	metrics.Init()
}

func newTestScraper() *Scraper {
	return New(Config{
		UserAgent:    "test-agent",
		Timeout:      2 * time.Second,
		ExcerptChars: 500,
	}, nil, zap.NewNop())
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapePrefersOpenGraphTags(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<!DOCTYPE html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="Aurora Lamp">
<meta property="og:description" content="A lamp that follows the sunrise.">
<meta name="description" content="generic description">
</head><body><p>Morning light, every morning.</p></body></html>`)

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Equal(t, "Aurora Lamp", meta.Title)
	require.Equal(t, "A lamp that follows the sunrise.", meta.Description)
	require.Contains(t, meta.Text, "Morning light, every morning.")
}

func TestScrapeFallsBackToTitleElement(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head><title> Plain Title </title></head><body>hello</body></html>`)

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Equal(t, "Plain Title", meta.Title)
	require.Equal(t, "", meta.Description)
}

func TestScrapeFallsBackToDefaultTitle(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head></head><body>no metadata here</body></html>`)

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Equal(t, campaign.DefaultProductName, meta.Title)
}

func TestScrapeTruncatesExcerpt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 300)
	srv := serveHTML(t, "<html><body>"+long+"</body></html>")

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.LessOrEqual(t, len([]rune(meta.Text)), 500)
	require.NotEmpty(t, meta.Text)
}

func TestScrapeExcludesScriptText(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><body><script>var secret = "nope";</script><p>visible</p></body></html>`)

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Contains(t, meta.Text, "visible")
	require.NotContains(t, meta.Text, "secret")
}

func TestScrapeNeverFailsOutward(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // guarantee a connection error

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Equal(t, campaign.DefaultMetadata(), meta)
}

func TestScrapeDefaultsOnNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	t.Cleanup(srv.Close)

	meta := newTestScraper().Scrape(context.Background(), srv.URL)

	require.Equal(t, campaign.DefaultMetadata(), meta)
}

func TestScrapeArchivesSnapshot(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Archived</title></head><body>content</body></html>`
	srv := serveHTML(t, html)

	blobs := memoryStorage.NewBlobStore()
	s := New(Config{Timeout: 2 * time.Second, ExcerptChars: 500}, &Archive{
		Store:       blobs,
		Hasher:      sha256.New(),
		Prefix:      "snapshots",
		ContentType: "text/html; charset=utf-8",
	}, zap.NewNop())

	meta := s.Scrape(context.Background(), srv.URL)

	require.Equal(t, "Archived", meta.Title)
	keys := blobs.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "snapshots/"))
	require.True(t, strings.HasSuffix(keys[0], ".html"))
	require.Equal(t, html, string(blobs.Get(keys[0])))
}
