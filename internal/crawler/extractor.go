package crawler

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"sjsage522/flightdealworker/internal/offer"
)

// DefaultMaxFragmentRunes bounds fragment length; longer texts are page containers, not offers
const DefaultMaxFragmentRunes = 500

// Plausible ticket prices; numbers outside are days, counts or phone digits
const (
	DefaultMinPrice = 100
	DefaultMaxPrice = 3000
)

// Extractor turns a text fragment into at most one offer
type Extractor struct {
	Destinations     []DestinationMatcher
	Prices           []PriceMatcher
	Dates            []DateMatcher
	RequirePrice     bool
	MaxFragmentRunes int

	// MinPrice and MaxPrice bound accepted prices inclusively; zero disables a bound
	MinPrice int
	MaxPrice int
}

// NewExtractor builds an extractor with the caller's destination list first and the fallback cities after it
func NewExtractor(destinations []string, requirePrice bool) *Extractor {
	return &Extractor{
		Destinations: []DestinationMatcher{
			{Name: "primary", Names: destinations},
			{Name: "fallback", Names: FallbackDestinations},
		},
		Prices:           DefaultPriceMatchers,
		Dates:            DefaultDateMatchers,
		RequirePrice:     requirePrice,
		MaxFragmentRunes: DefaultMaxFragmentRunes,
		MinPrice:         DefaultMinPrice,
		MaxPrice:         DefaultMaxPrice,
	}
}

// Extract parses fragment into an offer observed at now. It reports false when
// the fragment is empty, too long, names no destination, or lacks a required price.
func (e *Extractor) Extract(fragment string, now time.Time) (offer.Offer, bool) {
	text := NormalizeText(fragment)
	if text == "" {
		return offer.Offer{}, false
	}
	if e.MaxFragmentRunes > 0 && utf8.RuneCountInString(text) > e.MaxFragmentRunes {
		return offer.Offer{}, false
	}

	destination, ok := e.matchDestination(text)
	if !ok {
		return offer.Offer{}, false
	}

	spans := dateSpans(text, e.Dates)
	price := e.matchPrice(maskSpans(text, spans))
	if price == nil && e.RequirePrice {
		return offer.Offer{}, false
	}

	return offer.Offer{
		Destination: destination,
		Price:       price,
		Dates:       spanTexts(text, spans),
		RawText:     offer.Truncate(text, offer.MaxRawTextRunes),
		ObservedAt:  now,
	}, true
}

// matchPrice returns the first in-range price, trying matchers in order
func (e *Extractor) matchPrice(text string) *int {
	for _, m := range e.Prices {
		v, ok := m.Match(text)
		if !ok || !e.priceInRange(v) {
			continue
		}
		return offer.PriceOf(v)
	}
	return nil
}

func (e *Extractor) priceInRange(v int) bool {
	if e.MinPrice > 0 && v < e.MinPrice {
		return false
	}
	return e.MaxPrice <= 0 || v <= e.MaxPrice
}

func (e *Extractor) matchDestination(text string) (string, bool) {
	for _, m := range e.Destinations {
		if name, ok := m.Match(text); ok {
			return name, true
		}
	}
	return "", false
}

// KnownNames returns every destination name the extractor recognises, without duplicates
func (e *Extractor) KnownNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range e.Destinations {
		for _, name := range m.Names {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// NormalizeText applies NFC and collapses whitespace runs to single spaces
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
