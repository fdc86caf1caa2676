package filter

import (
	"time"

	"sjsage522/flightdealworker/internal/offer"
)

// Reason explains why an offer was excluded
type Reason string

const (
	ReasonAccepted      Reason = ""
	ReasonNoDestination Reason = "no_destination"
	ReasonDenied        Reason = "denied"
	ReasonNotAllowed    Reason = "not_allowed"
	ReasonStale         Reason = "stale"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonAboveMaxPrice Reason = "above_max_price"
)

// Config holds the relevance rules
type Config struct {
	Allowlist        map[string]struct{}
	Denylist         map[string]struct{}
	RequireAllowlist bool

	// MaxAge drops offers observed longer ago than this; zero disables the check
	MaxAge time.Duration

	MinDaysAdvance int
	MaxDaysAdvance int

	// MaxPrice drops priced offers above this value; zero disables the check
	MaxPrice int

	// Location decides what "today" means for the date window
	Location *time.Location
}

// DefaultConfig returns the built-in rules: 24h freshness and a 0..365 day window
func DefaultConfig() Config {
	return Config{
		Allowlist:      map[string]struct{}{},
		Denylist:       map[string]struct{}{},
		MaxAge:         24 * time.Hour,
		MinDaysAdvance: 0,
		MaxDaysAdvance: 365,
		Location:       time.Local,
	}
}

// Set builds a lookup set from names
func Set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Accept applies the rules in order and reports the first one that excludes o
func Accept(o offer.Offer, cfg Config, now time.Time) (bool, Reason) {
	if o.Destination == "" {
		return false, ReasonNoDestination
	}
	if _, denied := cfg.Denylist[o.Destination]; denied {
		return false, ReasonDenied
	}
	if cfg.RequireAllowlist {
		if _, allowed := cfg.Allowlist[o.Destination]; !allowed {
			return false, ReasonNotAllowed
		}
	}
	if cfg.MaxAge > 0 && !o.ObservedAt.IsZero() && now.Sub(o.ObservedAt) > cfg.MaxAge {
		return false, ReasonStale
	}
	if len(o.Dates) > 0 && !inWindow(o.Dates, cfg, now) {
		return false, ReasonOutsideWindow
	}
	if cfg.MaxPrice > 0 && o.Price != nil && *o.Price > cfg.MaxPrice {
		return false, ReasonAboveMaxPrice
	}
	return true, ReasonAccepted
}

// inWindow reports whether some parseable date falls within the advance window.
// Offers whose dates all fail to parse are kept.
func inWindow(dates []string, cfg Config, now time.Time) bool {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	earliest := today.AddDate(0, 0, cfg.MinDaysAdvance)
	latest := today.AddDate(0, 0, cfg.MaxDaysAdvance)

	parsed := 0
	for _, token := range dates {
		d, ok := offer.ParseDate(token, loc)
		if !ok {
			continue
		}
		parsed++
		if !d.Before(earliest) && !d.After(latest) {
			return true
		}
	}
	return parsed == 0
}

// Apply returns the accepted offers in their original order
func Apply(offers []offer.Offer, cfg Config, now time.Time) []offer.Offer {
	accepted := make([]offer.Offer, 0, len(offers))
	for _, o := range offers {
		if ok, _ := Accept(o, cfg, now); ok {
			accepted = append(accepted, o)
		}
	}
	return accepted
}

// Partition is like Apply but also counts exclusions per reason
func Partition(offers []offer.Offer, cfg Config, now time.Time) ([]offer.Offer, map[Reason]int) {
	accepted := make([]offer.Offer, 0, len(offers))
	rejected := make(map[Reason]int)
	for _, o := range offers {
		ok, reason := Accept(o, cfg, now)
		if !ok {
			rejected[reason]++
			continue
		}
		accepted = append(accepted, o)
	}
	return accepted, rejected
}
