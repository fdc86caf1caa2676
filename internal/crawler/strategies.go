package crawler

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	gohtml "golang.org/x/net/html"

	"sjsage522/flightdealworker/internal/diff"
	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/logger"
)

// Strategy names, also recorded on each offer
const (
	MethodStructured = "structured"
	MethodFulltext   = "fulltext"
	MethodExpanded   = "expanded"
	MethodAttributes = "attributes"
)

// DefaultSelectors are the listing containers tried by the structured strategy
var DefaultSelectors = []string{
	".flight-item",
	".flight",
	".trip",
	".offer",
	".deal",
	"[class*='flight']",
	"[class*='trip']",
	"[class*='offer']",
	".card",
	".product",
}

// keywords mark elements worth reading when no listing selector matches
var keywords = []string{"₪", "שח", "טיסה", "יעד"}

const maxKeywordElements = 20

// fulltextSegmentRunes bounds how far past a destination mention a segment reaches
const fulltextSegmentRunes = 200

// StructuredStrategy reads the elements of the first selector that matches anything
type StructuredStrategy struct {
	Extractor *Extractor
	Selectors []string
}

func (s *StructuredStrategy) Name() string { return MethodStructured }

func (s *StructuredStrategy) Extract(ctx context.Context, page *Page) ([]offer.Offer, error) {
	if page.Doc == nil {
		return nil, fmt.Errorf("page has no document")
	}

	var elements *goquery.Selection
	for _, selector := range s.Selectors {
		found := page.Doc.Find(selector)
		if found.Length() > 0 {
			elements = found
			break
		}
	}
	if elements == nil {
		elements = keywordElements(page.Doc)
	}

	var offers []offer.Offer
	elements.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		if o, ok := s.Extractor.Extract(sel.Text(), page.FetchedAt); ok {
			offers = append(offers, o)
		}
		return true
	})
	return offers, ctx.Err()
}

// keywordElements finds elements whose own text mentions a price or flight keyword
func keywordElements(doc *goquery.Document) *goquery.Selection {
	found := doc.Find("body *").FilterFunction(func(i int, sel *goquery.Selection) bool {
		if goquery.NodeName(sel) == "script" || goquery.NodeName(sel) == "style" {
			return false
		}
		own := ownText(sel)
		for _, kw := range keywords {
			if strings.Contains(own, kw) {
				return true
			}
		}
		return false
	})
	if found.Length() > maxKeywordElements {
		found = found.Slice(0, maxKeywordElements)
	}
	return found
}

// ownText returns the text of sel's direct text children
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == gohtml.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

// FulltextStrategy segments the visible page text at each destination mention
type FulltextStrategy struct {
	Extractor *Extractor
}

func (s *FulltextStrategy) Name() string { return MethodFulltext }

func (s *FulltextStrategy) Extract(ctx context.Context, page *Page) ([]offer.Offer, error) {
	if page.Doc == nil {
		return nil, fmt.Errorf("page has no document")
	}

	body := page.Doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	text := NormalizeText(body.Text())
	if text == "" {
		return nil, nil
	}

	var offers []offer.Offer
	for _, segment := range segmentText(text, s.Extractor.KnownNames()) {
		if ctx.Err() != nil {
			return offers, ctx.Err()
		}
		if o, ok := s.Extractor.Extract(segment, page.FetchedAt); ok {
			offers = append(offers, o)
		}
	}
	return offers, nil
}

// segmentText cuts text into pieces that each start at a destination mention
// and end before the next mention, capped at fulltextSegmentRunes.
func segmentText(text string, names []string) []string {
	type mention struct{ start, end int }
	var mentions []mention
	for _, name := range names {
		for offset := 0; ; {
			idx := strings.Index(text[offset:], name)
			if idx < 0 {
				break
			}
			start := offset + idx
			mentions = append(mentions, mention{start, start + len(name)})
			offset = start + len(name)
		}
	}
	if len(mentions) == 0 {
		return nil
	}

	// longer names win when two mentions start at the same place
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].start != mentions[j].start {
			return mentions[i].start < mentions[j].start
		}
		return mentions[i].end > mentions[j].end
	})

	var starts []int
	lastEnd := -1
	for _, m := range mentions {
		if m.start < lastEnd {
			continue
		}
		starts = append(starts, m.start)
		lastEnd = m.end
	}

	segments := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segment := []rune(text[start:end])
		if len(segment) > fulltextSegmentRunes {
			segment = segment[:fulltextSegmentRunes]
		}
		segments = append(segments, strings.TrimSpace(string(segment)))
	}
	return segments
}

// ExpandedStrategy asks the page's browser to reveal hidden listings and re-runs
// the inner strategies on the expanded document.
type ExpandedStrategy struct {
	Inner []Strategy
}

func (s *ExpandedStrategy) Name() string { return MethodExpanded }

func (s *ExpandedStrategy) Extract(ctx context.Context, page *Page) ([]offer.Offer, error) {
	if page.Expander == nil {
		return nil, nil
	}

	expanded, err := page.Expander.Expand(ctx)
	if err != nil {
		return nil, fmt.Errorf("expand page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse expanded page: %w", err)
	}

	inner := &Page{URL: page.URL, HTML: expanded, Doc: doc, FetchedAt: page.FetchedAt}
	for _, strategy := range s.Inner {
		offers, err := strategy.Extract(ctx, inner)
		if err != nil {
			return nil, err
		}
		if len(offers) > 0 {
			return offers, nil
		}
	}
	return nil, nil
}

// AttributeStrategy reads offer text that pages keep in attributes such as title, alt and data-*
type AttributeStrategy struct {
	Extractor *Extractor
	policy    *bluemonday.Policy
}

// NewAttributeStrategy creates an attribute strategy that strips markup from attribute values
func NewAttributeStrategy(extractor *Extractor) *AttributeStrategy {
	return &AttributeStrategy{Extractor: extractor, policy: bluemonday.StrictPolicy()}
}

func (s *AttributeStrategy) Name() string { return MethodAttributes }

func (s *AttributeStrategy) Extract(ctx context.Context, page *Page) ([]offer.Offer, error) {
	if page.Doc == nil {
		return nil, fmt.Errorf("page has no document")
	}
	policy := s.policy
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}

	var offers []offer.Offer
	page.Doc.Find("*").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		for _, attr := range sel.Nodes[0].Attr {
			if !isTextAttribute(attr.Key) || strings.TrimSpace(attr.Val) == "" {
				continue
			}
			text := html.UnescapeString(policy.Sanitize(attr.Val))
			if o, ok := s.Extractor.Extract(text, page.FetchedAt); ok {
				offers = append(offers, o)
			}
		}
		return true
	})
	return offers, ctx.Err()
}

func isTextAttribute(key string) bool {
	switch key {
	case "title", "alt", "aria-label":
		return true
	}
	return strings.HasPrefix(key, "data-")
}

// Chain runs strategies in order and returns the first non-empty result
type Chain struct {
	Strategies []Strategy
	log        *logger.Logger
}

// NewChain builds the default strategy order for an extractor
func NewChain(extractor *Extractor, selectors []string, log *logger.Logger) *Chain {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	structured := &StructuredStrategy{Extractor: extractor, Selectors: selectors}
	fulltext := &FulltextStrategy{Extractor: extractor}

	return &Chain{
		Strategies: []Strategy{
			structured,
			fulltext,
			&ExpandedStrategy{Inner: []Strategy{structured, fulltext}},
			NewAttributeStrategy(extractor),
		},
		log: log,
	}
}

// Run extracts offers from page. It returns the de-duplicated offers and the
// name of the strategy that produced them, or an empty name when none did.
func (c *Chain) Run(ctx context.Context, page *Page) ([]offer.Offer, string) {
	for _, strategy := range c.Strategies {
		if ctx.Err() != nil {
			return nil, ""
		}

		offers, err := strategy.Extract(ctx, page)
		if err != nil {
			if c.log != nil {
				c.log.Warn().Err(err).Str("strategy", strategy.Name()).Msg("Extraction strategy failed")
			}
			continue
		}
		if len(offers) == 0 {
			if c.log != nil {
				c.log.Debug().Str("strategy", strategy.Name()).Msg("Extraction strategy found nothing")
			}
			continue
		}

		offers = Dedupe(offers)
		for i := range offers {
			offers[i].URL = page.URL
			offers[i].Method = strategy.Name()
		}
		return offers, strategy.Name()
	}
	return nil, ""
}

// Dedupe drops offers repeating an earlier signature and price, keeping order
func Dedupe(offers []offer.Offer) []offer.Offer {
	seen := make(map[string]struct{}, len(offers))
	unique := make([]offer.Offer, 0, len(offers))
	for _, o := range offers {
		key := diff.Signature(o) + "|"
		if o.Price != nil {
			key += strconv.Itoa(*o.Price)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, o)
	}
	return unique
}
