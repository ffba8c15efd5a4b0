// Package campaign defines core types shared across subsystems.
package campaign

import "time"

// DefaultProductName is used whenever a page or the model yields no name.
const DefaultProductName = "Product"

// GeneratedContent holds the model-produced copy for one campaign. All four
// fields are always present; absent model output becomes the zero value
// (empty string or empty slice), never nil, so consumers skip nil checks.
type GeneratedContent struct {
	AdCopy               string   `json:"adCopy"`
	Keywords             []string `json:"keywords"`
	CelebrityEndorsement string   `json:"celebrityEndorsement"`
	Features             []string `json:"features"`
}

// Normalize replaces nil slices with empty ones so the record always has
// the full shape, both on the wire and after a store round trip.
func (c *GeneratedContent) Normalize() {
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.Features == nil {
		c.Features = []string{}
	}
}

// Campaign pairs an input URL with generated marketing copy. A campaign is
// immutable once stored: ID and CreatedAt are assigned by the store on
// insert and never change.
type Campaign struct {
	ID                 int64            `json:"id"`
	OriginalURL        string           `json:"originalUrl"`
	ProductName        string           `json:"productName"`
	ProductDescription string           `json:"productDescription"`
	GeneratedContent   GeneratedContent `json:"generatedContent"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// PageMetadata is the best-effort result of scraping a product page.
type PageMetadata struct {
	Title       string
	Description string
	Text        string
}

// DefaultMetadata is what the scraper yields when a page cannot be read.
func DefaultMetadata() PageMetadata {
	return PageMetadata{Title: DefaultProductName}
}
