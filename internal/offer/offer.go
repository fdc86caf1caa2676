package offer

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxRawTextRunes bounds the stored source snippet
const MaxRawTextRunes = 200

// Offer represents one scraped flight deal
type Offer struct {
	Destination string    `json:"destination"`
	Price       *int      `json:"price"`
	Dates       []string  `json:"dates"`
	RawText     string    `json:"full_text"`
	ObservedAt  time.Time `json:"scraped_at"`
	URL         string    `json:"url,omitempty"`
	Method      string    `json:"method,omitempty"`
}

// HasPrice reports whether the source published a price
func (o Offer) HasPrice() bool {
	return o.Price != nil
}

// PriceValue returns the price, or 0 when absent
func (o Offer) PriceValue() int {
	if o.Price == nil {
		return 0
	}
	return *o.Price
}

// PriceOf returns a pointer suitable for Offer.Price
func PriceOf(v int) *int {
	return &v
}

// Clone returns a deep copy so callers never share the dates slice or price pointer
func (o Offer) Clone() Offer {
	c := o
	if o.Price != nil {
		c.Price = PriceOf(*o.Price)
	}
	if o.Dates != nil {
		c.Dates = append([]string(nil), o.Dates...)
	}
	return c
}

// Truncate cuts s to at most n runes, appending "..." when cut
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
