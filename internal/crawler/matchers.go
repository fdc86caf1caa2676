package crawler

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"sjsage522/flightdealworker/internal/offer"
)

// DestinationMatcher finds the first listed destination contained in a text
type DestinationMatcher struct {
	Name  string
	Names []string
}

// Match returns the first name, in list order, that occurs in text. Matching is exact and case-sensitive.
func (m DestinationMatcher) Match(text string) (string, bool) {
	for _, name := range m.Names {
		if name != "" && strings.Contains(text, name) {
			return name, true
		}
	}
	return "", false
}

// FallbackDestinations are common city names checked after the caller's list
var FallbackDestinations = []string{
	"ברלין", "פריז", "לונדון", "רומא", "מדריד", "אמסטרדם",
	"פראג", "ויאנה", "ברצלונה", "מילאנו", "ליסבון", "אתונה",
	"Berlin", "Paris", "London", "Rome", "Madrid", "Amsterdam",
	"Prague", "Vienna", "Barcelona", "Milan", "Lisbon", "Athens",
}

// PriceMatcher extracts a price from the first capture group of Pattern
type PriceMatcher struct {
	Name    string
	Pattern *regexp.Regexp
}

// Match returns the integer price found by the pattern
func (m PriceMatcher) Match(text string) (int, bool) {
	sub := m.Pattern.FindStringSubmatch(text)
	if len(sub) < 2 {
		return 0, false
	}
	return parsePrice(sub[1])
}

// parsePrice strips thousands separators and converts to int
func parsePrice(raw string) (int, bool) {
	digits := strings.NewReplacer(",", "", ".", "").Replace(raw)
	v, err := strconv.Atoi(digits)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// priceNumber accepts 1,299 / 1.299 / 599
const priceNumber = `(\d{1,3}(?:[,.]\d{3})+|\d{1,6})`

// DefaultPriceMatchers are tried in order; the first match decides the price
var DefaultPriceMatchers = []PriceMatcher{
	{Name: "ils_suffix", Pattern: regexp.MustCompile(priceNumber + `\s*(?:₪|ש"ח|ש״ח|שח|שקל)`)},
	{Name: "currency_prefix", Pattern: regexp.MustCompile(`[₪$€]\s*` + priceNumber)},
	{Name: "currency_suffix", Pattern: regexp.MustCompile(`(?i)` + priceNumber + `\s*(?:\$|€|USD\b|EUR\b)`)},
	{Name: "hebrew_from", Pattern: regexp.MustCompile(`(?:החל\s*)?מ-?\s*` + priceNumber)},
	{Name: "english_from", Pattern: regexp.MustCompile(`(?i)\bfrom\s+` + priceNumber)},
}

// DateMatcher finds raw date tokens
type DateMatcher struct {
	Name    string
	Pattern *regexp.Regexp

	// WholeWord rejects matches glued to another Hebrew letter, so מאי never matches inside מאיר.
	// A single leading ב ("in") is allowed.
	WholeWord bool
}

// DefaultDateMatchers are applied in order; an earlier matcher wins overlapping spans
var DefaultDateMatchers = buildDateMatchers()

func buildDateMatchers() []DateMatcher {
	var hebrew, english []string
	for _, name := range offer.MonthNames() {
		if name[0] < 0x80 {
			english = append(english, regexp.QuoteMeta(name))
		} else {
			hebrew = append(hebrew, regexp.QuoteMeta(name))
		}
	}
	months := strings.Join(append(append([]string{}, hebrew...), english...), "|")

	// bare English months only in full form, short forms collide with ordinary words
	var englishFull []string
	for _, name := range english {
		if len(name) > 3 {
			englishFull = append(englishFull, name)
		}
	}

	return []DateMatcher{
		{Name: "numeric", Pattern: regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-](?:\d{4}|\d{2})\b`)},
		{Name: "named", Pattern: regexp.MustCompile(`(?i)\b\d{1,2}\s*ב?(?:` + months + `)\s*\d{4}\b`)},
		{Name: "hebrew_month", Pattern: regexp.MustCompile(`(?:` + strings.Join(hebrew, "|") + `)`), WholeWord: true},
		{Name: "english_month", Pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(englishFull, "|") + `)\b`)},
	}
}

type span struct{ start, end int }

// spanTexts returns the trimmed text of each span
func spanTexts(text string, spans []span) []string {
	dates := make([]string, 0, len(spans))
	for _, s := range spans {
		dates = append(dates, strings.TrimSpace(text[s.start:s.end]))
	}
	return dates
}

// dateSpans returns the byte ranges of non-overlapping date tokens, sorted by position
func dateSpans(text string, matchers []DateMatcher) []span {
	var taken []span

	overlaps := func(s span) bool {
		for _, t := range taken {
			if s.start < t.end && t.start < s.end {
				return true
			}
		}
		return false
	}

	for _, m := range matchers {
		for _, loc := range m.Pattern.FindAllStringIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if m.WholeWord && !standsAlone(text, s) {
				continue
			}
			if !overlaps(s) {
				taken = append(taken, s)
			}
		}
	}

	sort.Slice(taken, func(i, j int) bool { return taken[i].start < taken[j].start })
	return taken
}

func isHebrewLetter(r rune) bool {
	return r >= 'א' && r <= 'ת'
}

// standsAlone reports whether s has no Hebrew letter on either side, allowing one leading ב
func standsAlone(text string, s span) bool {
	if next, _ := utf8.DecodeRuneInString(text[s.end:]); isHebrewLetter(next) {
		return false
	}
	prev, size := utf8.DecodeLastRuneInString(text[:s.start])
	if !isHebrewLetter(prev) {
		return true
	}
	if prev != 'ב' {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(text[:s.start-size])
	return !isHebrewLetter(before)
}

// maskSpans blanks the given byte ranges so later matchers cannot read digits inside them
func maskSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, s := range spans {
		for i := s.start; i < s.end; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
