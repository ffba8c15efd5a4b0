package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/metrics"
)

func init() {
	metrics.Init()
}

type stubScraper struct {
	meta campaign.PageMetadata
}

func (s *stubScraper) Scrape(context.Context, string) campaign.PageMetadata {
	return s.meta
}

type stubCompleter struct {
	response string
	err      error
	prompt   string
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func newGenerator(meta campaign.PageMetadata, completer *stubCompleter) *Generator {
	return New(&stubScraper{meta: meta}, completer, zap.NewNop())
}

func TestGenerateParsesFencedJSON(t *testing.T) {
	completer := &stubCompleter{response: "```json\n{\"productName\": \"Widget\", \"productDescription\": \"A widget.\", \"adCopy\": \"Buy it.\", \"keywords\": [\"a\"], \"celebrityEndorsement\": \"Great!\", \"features\": [\"fast\"]}\n```"}
	gen := newGenerator(campaign.PageMetadata{Title: "Widget"}, completer)

	c, err := gen.Generate(context.Background(), "https://shop.example/widget")
	require.NoError(t, err)

	require.Equal(t, "https://shop.example/widget", c.OriginalURL)
	require.Equal(t, "Widget", c.ProductName)
	require.Equal(t, "A widget.", c.ProductDescription)
	require.Equal(t, "Buy it.", c.GeneratedContent.AdCopy)
	require.Equal(t, []string{"a"}, c.GeneratedContent.Keywords)
	require.Equal(t, "Great!", c.GeneratedContent.CelebrityEndorsement)
	require.Equal(t, []string{"fast"}, c.GeneratedContent.Features)
}

func TestGenerateAppliesDefaults(t *testing.T) {
	completer := &stubCompleter{response: `{"adCopy": "Copy"}`}
	gen := newGenerator(campaign.DefaultMetadata(), completer)

	c, err := gen.Generate(context.Background(), "https://shop.example/x")
	require.NoError(t, err)

	require.Equal(t, campaign.DefaultProductName, c.ProductName)
	require.Empty(t, c.ProductDescription)
	require.NotNil(t, c.GeneratedContent.Keywords)
	require.NotNil(t, c.GeneratedContent.Features)
	require.Empty(t, c.GeneratedContent.Keywords)
}

func TestGenerateRejectsNonJSON(t *testing.T) {
	completer := &stubCompleter{response: "Sorry, I cannot help with that."}
	gen := newGenerator(campaign.DefaultMetadata(), completer)

	_, err := gen.Generate(context.Background(), "https://shop.example/x")
	require.Error(t, err)
}

func TestGeneratePropagatesCompleterError(t *testing.T) {
	completer := &stubCompleter{err: errors.New("model unavailable")}
	gen := newGenerator(campaign.DefaultMetadata(), completer)

	_, err := gen.Generate(context.Background(), "https://shop.example/x")
	require.ErrorContains(t, err, "model unavailable")
}

func TestGeneratePromptContainsScrapedMetadata(t *testing.T) {
	completer := &stubCompleter{response: `{"productName": "X"}`}
	meta := campaign.PageMetadata{Title: "Super Bottle", Description: "Keeps drinks cold."}
	gen := newGenerator(meta, completer)

	_, err := gen.Generate(context.Background(), "https://shop.example/bottle")
	require.NoError(t, err)

	require.Contains(t, completer.prompt, "URL: https://shop.example/bottle")
	require.Contains(t, completer.prompt, "Title: Super Bottle")
	require.Contains(t, completer.prompt, "Description: Keeps drinks cold.")
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", 600)

	got := truncate(long, 500)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 500, utf8.RuneCountInString(got))

	short := "héllo"
	require.Equal(t, short, truncate(short, 500))
}

func TestCleanModelOutput(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"control chars", "{\"a\":\"b\x00c\x1f\"}", `{"a":"bc"}`},
		{"keeps newlines", "{\n\"a\":1\n}", "{\n\"a\":1\n}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CleanModelOutput(tc.in))
		})
	}
}
