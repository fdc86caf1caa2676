/*
Package notifier renders check-cycle results and delivers them over the
configured channels.
*/
package notifier

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/flightdealworker/internal/diff"
	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/services/snapshot"
)

// Notification is everything a message is rendered from
type Notification struct {
	New       []offer.Offer
	Changed   []diff.PriceChange
	Stats     snapshot.Stats
	CheckedAt time.Time
	SourceURL string
	Interval  time.Duration
}

// Empty reports whether there is nothing worth sending
func (n Notification) Empty() bool {
	return len(n.New) == 0 && len(n.Changed) == 0
}

// RenderedMessage is a ready-to-send message
type RenderedMessage struct {
	Subject string
	HTML    string
	Text    string
}

// Channel delivers a rendered message somewhere
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg *RenderedMessage, n Notification) error
}

// Dispatcher renders a notification once and fans it out to every channel
type Dispatcher struct {
	renderer *Renderer
	channels []Channel
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over channels
func NewDispatcher(renderer *Renderer, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		channels: channels,
		log:      logger.ForNotifier(),
	}
}

// Channels returns the configured channel names
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

// Notify delivers n to all channels. It reports false without error when
// there was nothing to send. Channel failures are joined; there is no retry.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) (bool, error) {
	msg, ok, err := d.renderer.Render(n)
	if err != nil {
		return false, err
	}
	if !ok {
		d.log.Debug().Msg("Nothing to notify")
		return false, nil
	}
	if len(d.channels) == 0 {
		d.log.Warn().Str("subject", msg.Subject).Msg("No delivery channel configured")
		return true, nil
	}

	errs := make([]error, len(d.channels))
	var g errgroup.Group
	for i, c := range d.channels {
		i, c := i, c
		g.Go(func() error {
			if err := c.Deliver(ctx, msg, n); err != nil {
				d.log.Error().Err(err).Str("channel", c.Name()).Msg("Delivery failed")
				errs[i] = err
				return err
			}
			d.log.Info().Str("channel", c.Name()).Str("subject", msg.Subject).Msg("Notification delivered")
			return nil
		})
	}
	g.Wait()

	return true, errors.Join(errs...)
}

// SampleNotification is a fixed notification used to test delivery
func SampleNotification(now time.Time, sourceURL string, interval time.Duration) Notification {
	berlin := offer.Offer{
		Destination: "ברלין",
		Price:       offer.PriceOf(599),
		Dates:       []string{"15/03/2024", "22/03/2024"},
		RawText:     "טיסה לברלין במחיר מעולה! כולל מזוודה ועוד הטבות.",
		ObservedAt:  now,
		URL:         sourceURL,
	}
	paris := offer.Offer{
		Destination: "פריז",
		Price:       offer.PriceOf(650),
		Dates:       []string{"20/04/2024"},
		RawText:     "פריז 650₪ 20/04/2024",
		ObservedAt:  now,
		URL:         sourceURL,
	}

	checked := now
	return Notification{
		New: []offer.Offer{berlin},
		Changed: []diff.PriceChange{{
			Destination:   paris.Destination,
			PreviousPrice: 850,
			CurrentPrice:  650,
			Discount:      200,
			Offer:         paris,
		}},
		Stats: snapshot.Stats{
			TotalTracked: 25,
			LastCheck:    &checked,
			Destinations: []string{"ברלין", "פריז"},
		},
		CheckedAt: now,
		SourceURL: sourceURL,
		Interval:  interval,
	}
}
