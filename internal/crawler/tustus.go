package crawler

import (
	"context"
	"time"

	"sjsage522/flightdealworker/config"
	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/services/cache"
)

// FlightCrawler retrieves a deals page and runs the extraction chain over it
type FlightCrawler struct {
	*BaseCrawler
	source Source
	chain  *Chain
	log    *logger.Logger
}

// NewFlightCrawler builds a crawler from config. It renders through the
// browser when UseBrowser is set and falls back to plain HTTP otherwise.
func NewFlightCrawler(cfg CrawlerConfig, cacheSvc cache.CacheService) *FlightCrawler {
	base := &BaseCrawler{
		URL:       cfg.URL,
		CacheKey:  cfg.CacheKey,
		CacheSvc:  cacheSvc,
		BlockTime: time.Duration(cfg.BlockTime) * time.Second,
		Provider:  cfg.Provider,
		Limiter:   newLimiter(cfg.RequestsPerMinute),
	}

	var source Source = NewHTTPSource(base)
	if cfg.UseBrowser {
		source = NewBrowserSource(base, NewBrowserFetcher(cfg.BrowserURL))
	}

	log := logger.ForCrawler(cfg.Provider)
	extractor := NewExtractor(cfg.Destinations, cfg.RequirePrice)
	extractor.MinPrice, extractor.MaxPrice = cfg.MinPrice, cfg.MaxPrice

	return &FlightCrawler{
		BaseCrawler: base,
		source:      source,
		chain:       NewChain(extractor, cfg.Selectors, log),
		log:         log,
	}
}

// WithSource replaces the retrieval source, used by tests and alternative front ends
func (c *FlightCrawler) WithSource(source Source) *FlightCrawler {
	c.source = source
	return c
}

// FetchOffers implements Crawler
func (c *FlightCrawler) FetchOffers(ctx context.Context) ([]offer.Offer, error) {
	page, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	offers, method := c.chain.Run(ctx, page)
	if method == "" {
		c.log.Info().Str("url", page.URL).Msg("No offers found by any extraction strategy")
		return nil, nil
	}

	c.log.Info().
		Str("method", method).
		Int("offers", len(offers)).
		Msg("Extracted offers")
	return offers, nil
}

// GetName returns the crawler's name for logging
func (c *FlightCrawler) GetName() string {
	return c.Provider + "Crawler"
}

// CreateCrawler creates the deals-page crawler from the application config
func CreateCrawler(cfg *config.Config, cacheSvc cache.CacheService) Crawler {
	return NewFlightCrawler(CrawlerConfig{
		URL:               cfg.TustusURL,
		CacheKey:          "tustus_rate_limited",
		BlockTime:         int(cfg.BlockTime / time.Second),
		Provider:          "Tustus",
		Destinations:      cfg.RecognisedDestinations(),
		RequirePrice:      cfg.RequirePrice,
		MinPrice:          cfg.ExtractMinPrice,
		MaxPrice:          cfg.ExtractMaxPrice,
		Selectors:         DefaultSelectors,
		RequestsPerMinute: cfg.RequestsPerMinute,
		UseBrowser:        cfg.UseBrowser,
		BrowserURL:        cfg.BrowserURL,
	}, cacheSvc)
}
