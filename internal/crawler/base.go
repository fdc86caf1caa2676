package crawler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/flightdealworker/helpers"
	crawlerrors "sjsage522/flightdealworker/pkg/errors"
	"sjsage522/flightdealworker/services/cache"
)

// BaseCrawler provides retrieval guards shared by all sources
type BaseCrawler struct {
	URL       string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Provider  string
	Limiter   *rate.Limiter
}

// newLimiter allows requestsPerMinute with a burst of one; zero means unlimited
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// guard fails fast while the source is blocked and waits for the rate limiter
func (c *BaseCrawler) guard(ctx context.Context) error {
	if c.isBlocked() {
		return crawlerrors.NewRateLimit(c.Provider, c.BlockTime)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return crawlerrors.NewRetrieval(c.Provider, "rate limiter wait", err)
		}
	}
	return nil
}

func (c *BaseCrawler) isBlocked() bool {
	if c.CacheSvc == nil || c.CacheKey == "" {
		return false
	}
	_, err := c.CacheSvc.Get(c.CacheKey)
	return err == nil
}

// markBlocked stops retrieval for BlockTime
func (c *BaseCrawler) markBlocked() {
	if c.CacheSvc == nil || c.CacheKey == "" || c.BlockTime <= 0 {
		return
	}
	seconds := strconv.Itoa(int(c.BlockTime / time.Second))
	_ = c.CacheSvc.Set(c.CacheKey, []byte(seconds), c.BlockTime)
}

// fetchWithCache fetches the URL over HTTP, honouring the block marker and rate limiter
func (c *BaseCrawler) fetchWithCache(ctx context.Context) (io.Reader, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}

	utf8Body, err := helpers.FetchWithRandomHeaders(ctx, c.URL)
	if err != nil {
		if errors.Is(err, helpers.ErrBlocked) {
			c.markBlocked()
			return nil, crawlerrors.New(crawlerrors.ErrorTypeRateLimit, c.Provider, "source refused the request", err)
		}
		return nil, crawlerrors.NewRetrieval(c.Provider, "fetch page", err)
	}

	return utf8Body, nil
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, crawlerrors.NewParsing(c.Provider, "parse HTML", err)
	}
	return doc, nil
}

// GetProvider returns the provider name
func (c *BaseCrawler) GetProvider() string {
	return c.Provider
}

// HTTPSource retrieves the page with a plain HTTP request
type HTTPSource struct {
	*BaseCrawler
	now func() time.Time
}

// NewHTTPSource creates an HTTP source guarded by base
func NewHTTPSource(base *BaseCrawler) *HTTPSource {
	return &HTTPSource{BaseCrawler: base, now: time.Now}
}

// Fetch implements Source
func (s *HTTPSource) Fetch(ctx context.Context) (*Page, error) {
	reader, err := s.fetchWithCache(ctx)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, crawlerrors.NewRetrieval(s.Provider, "read body", err)
	}

	return s.newPage(body)
}

func (s *HTTPSource) newPage(body []byte) (*Page, error) {
	doc, err := s.createDocument(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Page{URL: s.URL, HTML: body, Doc: doc, FetchedAt: s.now()}, nil
}
