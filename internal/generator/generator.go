// Package generator turns a product URL into a stored-ready campaign by
// combining scraped page metadata with model-generated ad content.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/metrics"
)

const promptTemplate = `You are an expert digital marketer creating a D2C landing page.
URL: %s
Title: %s
Description: %s

Generate compelling D2C ad content in JSON format. Make sure all text is properly escaped for JSON.
{
    "productName": "product name",
    "productDescription": "2-3 sentences",
    "adCopy": "3 compelling paragraphs about the product",
    "keywords": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"],
    "celebrityEndorsement": "A celebrity quote endorsement",
    "features": ["feature1", "feature2", "feature3", "feature4"]
}

IMPORTANT: Return ONLY valid JSON with no newlines in strings, no control characters, and proper escaping.`

// payload is the JSON shape the model is asked to return.
type payload struct {
	ProductName          string   `json:"productName"`
	ProductDescription   string   `json:"productDescription"`
	AdCopy               string   `json:"adCopy"`
	Keywords             []string `json:"keywords"`
	CelebrityEndorsement string   `json:"celebrityEndorsement"`
	Features             []string `json:"features"`
}

// Generator orchestrates scraping and completion into a campaign.
type Generator struct {
	scraper   campaign.Scraper
	completer campaign.Completer
	logger    *zap.Logger
}

// New creates a campaign generator.
func New(scraper campaign.Scraper, completer campaign.Completer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		scraper:   scraper,
		completer: completer,
		logger:    logger,
	}
}

// Generate scrapes the URL, prompts the model, and parses the result into a
// campaign. The returned campaign has no ID or creation time; the store
// assigns both on insert.
func (g *Generator) Generate(ctx context.Context, url string) (campaign.Campaign, error) {
	meta := g.scraper.Scrape(ctx, url)
	prompt := buildPrompt(url, meta)

	start := time.Now()
	raw, err := g.completer.Complete(ctx, prompt)
	metrics.ObserveCompletion(time.Since(start), err)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("complete prompt: %w", err)
	}

	cleaned := CleanModelOutput(raw)

	var body payload
	if err := json.Unmarshal([]byte(cleaned), &body); err != nil {
		g.logger.Warn("model returned unparseable content",
			zap.String("url", url),
			zap.String("content", truncate(cleaned, 500)),
			zap.Error(err),
		)
		return campaign.Campaign{}, fmt.Errorf("parse model output: %w", err)
	}

	name := body.ProductName
	if name == "" {
		name = campaign.DefaultProductName
	}

	content := campaign.GeneratedContent{
		AdCopy:               body.AdCopy,
		Keywords:             body.Keywords,
		CelebrityEndorsement: body.CelebrityEndorsement,
		Features:             body.Features,
	}
	content.Normalize()

	return campaign.Campaign{
		OriginalURL:        url,
		ProductName:        name,
		ProductDescription: body.ProductDescription,
		GeneratedContent:   content,
	}, nil
}

func buildPrompt(url string, meta campaign.PageMetadata) string {
	return fmt.Sprintf(promptTemplate, url, meta.Title, meta.Description)
}

// CleanModelOutput strips markdown code fences and control characters that
// models commonly emit around JSON responses.
func CleanModelOutput(raw string) string {
	content := strings.TrimSpace(raw)
	content = stripFence(content)
	return stripControlChars(content)
}

func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	parts := strings.Split(content, "```")
	if len(parts) < 2 {
		return content
	}
	inner := strings.TrimSpace(parts[1])
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

// stripControlChars removes control characters other than tab, newline, and
// carriage return, which break json.Unmarshal when left unescaped.
func stripControlChars(content string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, content)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
