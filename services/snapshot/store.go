package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/pkg/errors"
)

// Snapshot is the persisted result of the last completed check cycle
type Snapshot struct {
	Flights           []offer.Offer `json:"flights"`
	NewFlights        []offer.Offer `json:"new_flights"`
	LastCheck         *time.Time    `json:"last_check"`
	TotalFlightsFound int           `json:"total_flights_found"`
	NewFlightsCount   int           `json:"new_flights_count"`
	RunID             string        `json:"run_id,omitempty"`
}

// Stats summarises a snapshot for status output and emails
type Stats struct {
	TotalTracked int        `json:"total_flights_tracked"`
	LastCheck    *time.Time `json:"last_check"`
	Destinations []string   `json:"destinations_found"`
	MinPrice     *int       `json:"min_price"`
	MaxPrice     *int       `json:"max_price"`
	AveragePrice float64    `json:"average_price"`
}

// Store reads and writes the snapshot file
type Store struct {
	path string
	loc  *time.Location
	log  *logger.Logger
}

// NewStore creates a store for the file at path
func NewStore(path string) *Store {
	return &Store{path: path, loc: time.Local, log: logger.ForStore()}
}

// WithLocation sets the zone used for stored timestamps that carry no UTC offset
func (s *Store) WithLocation(loc *time.Location) *Store {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted snapshot. A missing file yields an empty
// snapshot; a corrupt one is logged and also yields an empty snapshot.
func (s *Store) Load() Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error().Err(err).Str("path", s.path).Msg("Failed to read snapshot")
		}
		return Snapshot{}
	}

	snap, err := decodeSnapshot(data, s.loc)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Snapshot is corrupt, starting from empty")
		return Snapshot{}
	}

	s.log.Debug().Int("flights", len(snap.Flights)).Msg("Loaded snapshot")
	return snap
}

// Save replaces the snapshot with records. The file is written to a temporary
// sibling, synced and renamed so a failed save leaves the previous file intact.
func (s *Store) Save(records, newRecords []offer.Offer, now time.Time, runID string) error {
	if records == nil {
		records = []offer.Offer{}
	}
	if newRecords == nil {
		newRecords = []offer.Offer{}
	}
	checked := now
	snap := Snapshot{
		Flights:           records,
		NewFlights:        newRecords,
		LastCheck:         &checked,
		TotalFlightsFound: len(records),
		NewFlightsCount:   len(newRecords),
		RunID:             runID,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return errors.NewPersistence(s.path, "encode snapshot", err)
	}

	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}

	s.log.Info().
		Int("flights", len(records)).
		Int("new_flights", len(newRecords)).
		Msg("Saved snapshot")
	return nil
}

// offerFields drops Offer's methods so storedOffer can shadow scraped_at
type offerFields offer.Offer

// storedOffer reads scraped_at as text so offset-less timestamps parse in the store's zone
type storedOffer struct {
	offerFields
	ObservedAt string `json:"scraped_at"`
}

type storedSnapshot struct {
	Flights           []storedOffer `json:"flights"`
	NewFlights        []storedOffer `json:"new_flights"`
	LastCheck         *string       `json:"last_check"`
	TotalFlightsFound int           `json:"total_flights_found"`
	NewFlightsCount   int           `json:"new_flights_count"`
	RunID             string        `json:"run_id"`
}

func decodeSnapshot(data []byte, loc *time.Location) (Snapshot, error) {
	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return Snapshot{}, err
	}

	flights, err := decodeOffers(stored.Flights, loc)
	if err != nil {
		return Snapshot{}, err
	}
	newFlights, err := decodeOffers(stored.NewFlights, loc)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Flights:           flights,
		NewFlights:        newFlights,
		TotalFlightsFound: stored.TotalFlightsFound,
		NewFlightsCount:   stored.NewFlightsCount,
		RunID:             stored.RunID,
	}
	if stored.LastCheck != nil && *stored.LastCheck != "" {
		checked, err := offer.ParseTimestamp(*stored.LastCheck, loc)
		if err != nil {
			return Snapshot{}, fmt.Errorf("last_check: %w", err)
		}
		snap.LastCheck = &checked
	}
	return snap, nil
}

func decodeOffers(stored []storedOffer, loc *time.Location) ([]offer.Offer, error) {
	if stored == nil {
		return nil, nil
	}
	offers := make([]offer.Offer, 0, len(stored))
	for i, so := range stored {
		o := offer.Offer(so.offerFields)
		if so.ObservedAt != "" {
			observed, err := offer.ParseTimestamp(so.ObservedAt, loc)
			if err != nil {
				return nil, fmt.Errorf("record %d scraped_at: %w", i, err)
			}
			o.ObservedAt = observed
		}
		offers = append(offers, o)
	}
	return offers, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewPersistence(path, "create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewPersistence(path, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.NewPersistence(path, "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewPersistence(path, "close temp file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.NewPersistence(path, "chmod temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewPersistence(path, "replace snapshot", err)
	}
	committed = true
	return nil
}

// ComputeStats summarises the tracked offers of snap
func ComputeStats(snap Snapshot) Stats {
	stats := Stats{
		TotalTracked: len(snap.Flights),
		LastCheck:    snap.LastCheck,
		Destinations: []string{},
	}

	seen := make(map[string]struct{})
	sum, count := 0, 0
	for _, o := range snap.Flights {
		if o.Destination != "" {
			if _, ok := seen[o.Destination]; !ok {
				seen[o.Destination] = struct{}{}
				stats.Destinations = append(stats.Destinations, o.Destination)
			}
		}
		if o.Price == nil {
			continue
		}
		p := *o.Price
		if stats.MinPrice == nil || p < *stats.MinPrice {
			stats.MinPrice = offer.PriceOf(p)
		}
		if stats.MaxPrice == nil || p > *stats.MaxPrice {
			stats.MaxPrice = offer.PriceOf(p)
		}
		sum += p
		count++
	}
	sort.Strings(stats.Destinations)
	if count > 0 {
		stats.AveragePrice = float64(sum) / float64(count)
	}
	return stats
}

// Stats loads the snapshot and summarises it
func (s *Store) Stats() Stats {
	return ComputeStats(s.Load())
}
