package diff

import (
	"sort"
	"strings"

	"sjsage522/flightdealworker/internal/offer"
)

// DefaultDropThreshold is the smallest price drop, in currency units, worth reporting
const DefaultDropThreshold = 50

const (
	fieldSep = "\x1f"
	dateSep  = "\x1e"
)

// Options controls change tracking
type Options struct {
	TrackPriceChanges bool
	DropThreshold     int
}

// DefaultOptions tracks price drops of at least DefaultDropThreshold
func DefaultOptions() Options {
	return Options{TrackPriceChanges: true, DropThreshold: DefaultDropThreshold}
}

// PriceChange describes an offer now cheaper than anything seen before for its destination
type PriceChange struct {
	Destination   string      `json:"destination"`
	PreviousPrice int         `json:"previous_price"`
	CurrentPrice  int         `json:"current_price"`
	Discount      int         `json:"discount"`
	Offer         offer.Offer `json:"flight_data"`
}

// Result is the outcome of comparing two offer sets
type Result struct {
	New     []offer.Offer
	Changed []PriceChange
}

// Empty reports whether there is nothing to notify about
func (r Result) Empty() bool {
	return len(r.New) == 0 && len(r.Changed) == 0
}

// Signature identifies an offer by destination and dates. Price is excluded
// and date order does not matter.
func Signature(o offer.Offer) string {
	dates := make([]string, len(o.Dates))
	for i, d := range o.Dates {
		dates[i] = strings.TrimSpace(d)
	}
	sort.Strings(dates)
	return destinationKey(o) + fieldSep + strings.Join(dates, dateSep)
}

// Diff returns the current offers whose signature is absent from prior and,
// when tracking is on, the offers priced at least DropThreshold below the
// cheapest prior price for their destination. Neither input is modified.
func Diff(current, prior []offer.Offer, opts Options) Result {
	seen := make(map[string]struct{}, len(prior))
	for _, o := range prior {
		seen[Signature(o)] = struct{}{}
	}

	var result Result
	for _, o := range current {
		if _, ok := seen[Signature(o)]; !ok {
			result.New = append(result.New, o.Clone())
		}
	}

	if opts.TrackPriceChanges {
		result.Changed = priceDrops(current, prior, opts.DropThreshold)
	}
	return result
}

// destinationKey groups offers the same way Signature does
func destinationKey(o offer.Offer) string {
	return strings.TrimSpace(o.Destination)
}

func priceDrops(current, prior []offer.Offer, threshold int) []PriceChange {
	minPrior := make(map[string]int)
	for _, o := range prior {
		key := destinationKey(o)
		if key == "" || o.Price == nil {
			continue
		}
		if p, ok := minPrior[key]; !ok || *o.Price < p {
			minPrior[key] = *o.Price
		}
	}

	var changes []PriceChange
	for _, o := range current {
		if o.Price == nil {
			continue
		}
		key := destinationKey(o)
		previous, ok := minPrior[key]
		if !ok {
			continue
		}
		if discount := previous - *o.Price; discount > 0 && discount >= threshold {
			changes = append(changes, PriceChange{
				Destination:   key,
				PreviousPrice: previous,
				CurrentPrice:  *o.Price,
				Discount:      discount,
				Offer:         o.Clone(),
			})
		}
	}
	return changes
}
