package crawler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

// mockSource serves a fixed page
type mockSource struct {
	page  *Page
	err   error
	calls int
}

func (m *mockSource) Fetch(ctx context.Context) (*Page, error) {
	m.calls++
	return m.page, m.err
}

// mockExpander returns fixed HTML
type mockExpander struct {
	html  string
	err   error
	calls int
}

func (m *mockExpander) Expand(ctx context.Context) ([]byte, error) {
	m.calls++
	return []byte(m.html), m.err
}

// stubStrategy returns fixed offers
type stubStrategy struct {
	name   string
	offers []offer.Offer
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(ctx context.Context, page *Page) ([]offer.Offer, error) {
	s.calls++
	return s.offers, s.err
}

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPage(t *testing.T, html string) *Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &Page{URL: "https://deals.example/home", HTML: []byte(html), Doc: doc, FetchedAt: testTime}
}
