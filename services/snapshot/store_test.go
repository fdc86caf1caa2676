package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/pkg/errors"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOffers() []offer.Offer {
	return []offer.Offer{
		{
			Destination: "ברלין",
			Price:       offer.PriceOf(599),
			Dates:       []string{"15/03/2025"},
			RawText:     "טיסה לברלין 599₪ 15/03/2025",
			ObservedAt:  now,
			URL:         "https://deals.example/home",
			Method:      "structured",
		},
		{
			Destination: "אתונה",
			Dates:       []string{},
			RawText:     "טיסות לאתונה <בקרוב>",
			ObservedAt:  now,
		},
		{
			Destination: "פריז",
			Price:       offer.PriceOf(850),
			Dates:       []string{"20/04/2025", "27/04/2025"},
			ObservedAt:  now,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "flights_data.json"))
	records := sampleOffers()

	require.NoError(t, store.Save(records, records[2:], now, "run-1"))

	snap := store.Load()
	require.Len(t, snap.Flights, 3)
	assert.Equal(t, records, snap.Flights)
	assert.Equal(t, records[2:], snap.NewFlights)
	assert.Equal(t, 3, snap.TotalFlightsFound)
	assert.Equal(t, 1, snap.NewFlightsCount)
	assert.Equal(t, "run-1", snap.RunID)
	require.NotNil(t, snap.LastCheck)
	assert.True(t, now.Equal(*snap.LastCheck))
	assert.Nil(t, snap.Flights[1].Price)
}

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights_data.json")
	store := NewStore(path)

	require.NoError(t, store.Save(sampleOffers(), nil, now, "run-1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"destination": "ברלין"`, "non-ASCII is written as is")
	assert.Contains(t, text, `<בקרוב>`, "HTML characters are not escaped")
	assert.Contains(t, text, `"last_check": "2025-03-01T12:00:00Z"`)
	assert.Contains(t, text, `"new_flights": []`)
	assert.Contains(t, text, `"price": null`)
	assert.Contains(t, text, "\n  \"flights\"", "indented")
}

func TestSaveEmptySet(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "flights_data.json"))
	require.NoError(t, store.Save(sampleOffers(), nil, now, "run-1"))

	require.NoError(t, store.Save(nil, nil, now.Add(time.Hour), "run-2"))
	snap := store.Load()
	assert.Empty(t, snap.Flights)
	assert.Equal(t, 0, snap.TotalFlightsFound)
	assert.Equal(t, "run-2", snap.RunID)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	snap := store.Load()
	assert.Empty(t, snap.Flights)
	assert.Nil(t, snap.LastCheck)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flights": [{"destination": "ברלין"`), 0o644))

	snap := NewStore(path).Load()
	assert.Empty(t, snap.Flights)
}

func TestLoadOriginalFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "flights": [
    {"destination": "ברלין", "price": 599, "dates": ["15/03/2025"], "full_text": "ברלין 599₪",
     "scraped_at": "2025-03-01T10:00:00.123456", "url": "https://www.tustus.co.il/Arkia/Home", "method": "simple_scraper"},
    {"destination": "פריז", "price": null, "dates": [], "full_text": "פריז",
     "scraped_at": "2025-03-01T10:00:01"}
  ],
  "new_flights": [],
  "last_check": "2025-03-01T10:00:05.654321",
  "total_flights_found": 2,
  "new_flights_count": 0
}`), 0o644))

	zone := time.FixedZone("IST", 2*60*60)
	snap := NewStore(path).WithLocation(zone).Load()
	require.Len(t, snap.Flights, 2)
	assert.Equal(t, 599, *snap.Flights[0].Price)
	assert.Equal(t, "simple_scraper", snap.Flights[0].Method)
	assert.True(t, time.Date(2025, 3, 1, 10, 0, 0, 123456000, zone).Equal(snap.Flights[0].ObservedAt))
	assert.True(t, time.Date(2025, 3, 1, 10, 0, 1, 0, zone).Equal(snap.Flights[1].ObservedAt))
	assert.Nil(t, snap.Flights[1].Price)
	require.NotNil(t, snap.LastCheck)
	assert.True(t, time.Date(2025, 3, 1, 10, 0, 5, 654321000, zone).Equal(*snap.LastCheck))
	assert.Equal(t, 2, snap.TotalFlightsFound)
	assert.Empty(t, snap.RunID)
}

func TestLoadOffsetTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "flights": [{"destination": "רומא", "price": 700, "dates": [], "full_text": "רומא 700₪", "scraped_at": "2025-03-01T10:00:00+02:00"}],
  "last_check": null
}`), 0o644))

	snap := NewStore(path).WithLocation(time.UTC).Load()
	require.Len(t, snap.Flights, 1)
	assert.True(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC).Equal(snap.Flights[0].ObservedAt))
	assert.Nil(t, snap.LastCheck)
}

func TestLoadUnreadableTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "flights": [{"destination": "רומא", "price": 700, "scraped_at": "last tuesday"}],
  "last_check": "2025-03-01T10:00:05"
}`), 0o644))

	snap := NewStore(path).Load()
	assert.Empty(t, snap.Flights)
	assert.Nil(t, snap.LastCheck)
}

func TestSaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flights_data.json")
	store := NewStore(path)
	require.NoError(t, store.Save(sampleOffers(), nil, now, "run-1"))

	// a directory in the way of the rename makes the save fail
	blocked := NewStore(filepath.Join(dir, "missing-dir", "flights_data.json"))
	err := blocked.Save(sampleOffers()[:1], nil, now, "run-2")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))

	snap := store.Load()
	assert.Len(t, snap.Flights, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestComputeStats(t *testing.T) {
	checked := now
	stats := ComputeStats(Snapshot{Flights: sampleOffers(), LastCheck: &checked})

	assert.Equal(t, 3, stats.TotalTracked)
	assert.Equal(t, []string{"אתונה", "ברלין", "פריז"}, stats.Destinations)
	require.NotNil(t, stats.MinPrice)
	assert.Equal(t, 599, *stats.MinPrice)
	assert.Equal(t, 850, *stats.MaxPrice)
	assert.InDelta(t, 724.5, stats.AveragePrice, 0.001)

	empty := ComputeStats(Snapshot{})
	assert.Nil(t, empty.MinPrice)
	assert.Zero(t, empty.AveragePrice)
	assert.Empty(t, empty.Destinations)
}
