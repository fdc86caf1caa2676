package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/flightdealworker/internal/offer"
)

func newOffer(destination string, price int, dates ...string) offer.Offer {
	return offer.Offer{
		Destination: destination,
		Price:       offer.PriceOf(price),
		Dates:       dates,
		ObservedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func destinations(offers []offer.Offer) []string {
	var out []string
	for _, o := range offers {
		out = append(out, o.Destination)
	}
	return out
}

func TestSignature(t *testing.T) {
	a := newOffer("ברלין", 599, "15/03/2025")
	b := newOffer("ברלין", 450, "15/03/2025")

	assert.Equal(t, Signature(a), Signature(a))
	assert.Equal(t, Signature(a), Signature(b), "price must not affect the signature")

	c := newOffer("ברלין", 599, "16/03/2025")
	assert.NotEqual(t, Signature(a), Signature(c))

	d := newOffer("פריז", 599, "15/03/2025")
	assert.NotEqual(t, Signature(a), Signature(d))

	// date order within a record does not matter
	e := newOffer("רומא", 700, "01/05/2025", "08/05/2025")
	f := newOffer("רומא", 700, "08/05/2025", "01/05/2025")
	assert.Equal(t, Signature(e), Signature(f))

	// field boundaries are unambiguous
	g := offer.Offer{Destination: "a", Dates: []string{"b"}}
	h := offer.Offer{Destination: "a" + fieldSep + "b"}
	assert.NotEqual(t, Signature(g), Signature(h))
}

func TestDiffReportsOnlyUnseenOffers(t *testing.T) {
	prior := []offer.Offer{newOffer("ברלין", 599, "15/03/2025")}
	current := []offer.Offer{
		newOffer("ברלין", 599, "15/03/2025"),
		newOffer("פריז", 700, "20/03/2025"),
	}

	result := Diff(current, prior, DefaultOptions())
	assert.Equal(t, []string{"פריז"}, destinations(result.New))
	assert.Empty(t, result.Changed)
}

func TestDiffPriceDropOnKnownOffer(t *testing.T) {
	prior := []offer.Offer{newOffer("ברלין", 599, "15/03/2025")}
	current := []offer.Offer{newOffer("ברלין", 450, "15/03/2025")}

	result := Diff(current, prior, DefaultOptions())
	assert.Empty(t, result.New, "same destination and dates is the same offer")
	require.Len(t, result.Changed, 1)
	assert.Equal(t, "ברלין", result.Changed[0].Destination)
	assert.Equal(t, 599, result.Changed[0].PreviousPrice)
	assert.Equal(t, 450, result.Changed[0].CurrentPrice)
	assert.Equal(t, 149, result.Changed[0].Discount)

	// tracking disabled
	result = Diff(current, prior, Options{TrackPriceChanges: false, DropThreshold: 50})
	assert.Empty(t, result.New)
	assert.Empty(t, result.Changed)
	assert.True(t, result.Empty())
}

func TestDiffPriceDropThreshold(t *testing.T) {
	prior := []offer.Offer{
		newOffer("רומא", 800, "01/05/2025"),
		newOffer("רומא", 700, "08/05/2025"),
	}

	tests := []struct {
		name    string
		price   int
		changed bool
	}{
		{"exactly threshold", 650, true},
		{"below threshold", 651, false},
		{"price increase", 900, false},
		{"large drop", 400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := []offer.Offer{newOffer("רומא", tt.price, "15/05/2025")}
			result := Diff(current, prior, DefaultOptions())
			if tt.changed {
				require.Len(t, result.Changed, 1)
				assert.Equal(t, 700, result.Changed[0].PreviousPrice, "compares against the cheapest prior price")
			} else {
				assert.Empty(t, result.Changed)
			}
		})
	}
}

func TestDiffPriceDropTrimsDestination(t *testing.T) {
	prior := []offer.Offer{newOffer(" ברלין ", 599, "15/03/2025")}
	current := []offer.Offer{newOffer("ברלין", 450, "15/03/2025")}

	result := Diff(current, prior, DefaultOptions())
	assert.Empty(t, result.New)
	require.Len(t, result.Changed, 1)
	assert.Equal(t, "ברלין", result.Changed[0].Destination)
	assert.Equal(t, 599, result.Changed[0].PreviousPrice)

	// padded current against a clean prior groups the same way
	result = Diff([]offer.Offer{newOffer("ברלין\t", 450, "20/03/2025")}, []offer.Offer{newOffer("ברלין", 599, "15/03/2025")}, DefaultOptions())
	require.Len(t, result.Changed, 1)
	assert.Equal(t, 149, result.Changed[0].Discount)

	// whitespace-only destinations never group
	result = Diff([]offer.Offer{newOffer("  ", 100)}, []offer.Offer{newOffer(" ", 900)}, DefaultOptions())
	assert.Empty(t, result.Changed)
}

func TestDiffIgnoresMissingPrices(t *testing.T) {
	prior := []offer.Offer{{Destination: "ברלין", Dates: []string{"15/03/2025"}}}
	current := []offer.Offer{newOffer("ברלין", 100, "16/03/2025")}

	result := Diff(current, prior, DefaultOptions())
	assert.Empty(t, result.Changed)
	assert.Len(t, result.New, 1)

	result = Diff([]offer.Offer{{Destination: "ברלין"}}, []offer.Offer{newOffer("ברלין", 500)}, DefaultOptions())
	assert.Empty(t, result.Changed)
}

func TestDiffOrderIndependent(t *testing.T) {
	prior := []offer.Offer{
		newOffer("ברלין", 599, "15/03/2025"),
		newOffer("אתונה", 399, "02/04/2025"),
	}
	current := []offer.Offer{
		newOffer("ברלין", 599, "15/03/2025"),
		newOffer("פריז", 700, "20/03/2025"),
		newOffer("אתונה", 399, "02/04/2025"),
		newOffer("פראג", 450, "10/04/2025"),
	}

	expected := destinations(Diff(current, prior, DefaultOptions()).New)

	reversedCurrent := make([]offer.Offer, len(current))
	for i := range current {
		reversedCurrent[len(current)-1-i] = current[i]
	}
	reversedPrior := []offer.Offer{prior[1], prior[0]}

	actual := destinations(Diff(reversedCurrent, reversedPrior, DefaultOptions()).New)
	assert.ElementsMatch(t, expected, actual)
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	prior := []offer.Offer{newOffer("ברלין", 599, "15/03/2025")}
	current := []offer.Offer{newOffer("ברלין", 450, "15/03/2025"), newOffer("פריז", 700)}

	result := Diff(current, prior, DefaultOptions())
	require.Len(t, result.New, 1)
	result.New[0].Dates = append(result.New[0].Dates, "mutated")
	*result.Changed[0].Offer.Price = 1

	assert.Equal(t, 450, *current[0].Price)
	assert.Empty(t, current[1].Dates)
	assert.Equal(t, 599, *prior[0].Price)
}

func TestDiffEmptyPrior(t *testing.T) {
	current := []offer.Offer{newOffer("ברלין", 599), newOffer("פריז", 700)}

	result := Diff(current, nil, DefaultOptions())
	assert.Len(t, result.New, 2)
	assert.Empty(t, result.Changed)

	assert.True(t, Diff(nil, nil, DefaultOptions()).Empty())
}

func TestDiffFirstRunReportsEverything(t *testing.T) {
	current := []offer.Offer{newOffer("Berlin", 599, "15/03/2024")}

	result := Diff(current, nil, DefaultOptions())
	require.Len(t, result.New, 1)
	assert.Equal(t, "Berlin", result.New[0].Destination)
	assert.Equal(t, 599, *result.New[0].Price)
	assert.Equal(t, []string{"15/03/2024"}, result.New[0].Dates)
}

func TestDiffUnchangedOfferWithoutPrice(t *testing.T) {
	paris := offer.Offer{Destination: "Paris", Dates: []string{"20/04/2024"}}

	result := Diff([]offer.Offer{paris}, []offer.Offer{paris}, DefaultOptions())
	assert.Empty(t, result.New)
	assert.Empty(t, result.Changed)
}
