package crawler

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/flightdealworker/internal/offer"
)

// Crawler interface defines the contract for flight deal crawlers
type Crawler interface {
	// FetchOffers retrieves the source page and extracts offers from it
	FetchOffers(ctx context.Context) ([]offer.Offer, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetProvider returns the provider name for the crawler
	GetProvider() string
}

// Page is a retrieved document ready for extraction
type Page struct {
	URL       string
	HTML      []byte
	Doc       *goquery.Document
	FetchedAt time.Time

	// Expander is set when the page was rendered by a browser that can reveal hidden listings
	Expander Expander
}

// Source retrieves the deals page
type Source interface {
	Fetch(ctx context.Context) (*Page, error)
}

// Expander re-renders a page after clicking its "show more" controls and returns the resulting HTML
type Expander interface {
	Expand(ctx context.Context) ([]byte, error)
}

// Strategy extracts offers from a page in one particular way
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page *Page) ([]offer.Offer, error)
}

// CrawlerConfig contains configuration for a crawler
type CrawlerConfig struct {
	URL       string
	CacheKey  string
	BlockTime int
	Provider  string

	// Destinations is the caller-supplied recognised destination list, in priority order
	Destinations []string
	RequirePrice bool

	// MinPrice and MaxPrice bound extracted prices; zero disables a bound
	MinPrice int
	MaxPrice int

	// Selectors are tried in order by the structured strategy
	Selectors []string

	// RequestsPerMinute bounds retrieval; zero disables the limiter
	RequestsPerMinute int

	UseBrowser bool
	BrowserURL string
}
