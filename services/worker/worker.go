package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sjsage522/flightdealworker/config"
	"sjsage522/flightdealworker/internal/crawler"
	"sjsage522/flightdealworker/internal/diff"
	"sjsage522/flightdealworker/internal/filter"
	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/pkg/errors"
	"sjsage522/flightdealworker/services/metrics"
	"sjsage522/flightdealworker/services/notifier"
	"sjsage522/flightdealworker/services/snapshot"
)

// Store is the snapshot persistence the worker needs
type Store interface {
	Load() snapshot.Snapshot
	Save(records, newRecords []offer.Offer, now time.Time, runID string) error
}

// Notifier delivers a notification, reporting false when nothing was sent
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) (bool, error)
}

// Options controls one check cycle
type Options struct {
	Filter        filter.Config
	Diff          diff.Options
	PersistPolicy string
	Interval      time.Duration
	SourceURL     string
}

// OptionsFromConfig derives cycle options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Filter: cfg.FilterConfig(),
		Diff: diff.Options{
			TrackPriceChanges: !cfg.IgnorePriceChanges,
			DropThreshold:     cfg.PriceDropThreshold,
		},
		PersistPolicy: cfg.PersistPolicy,
		Interval:      cfg.CheckInterval,
		SourceURL:     cfg.TustusURL,
	}
}

// CycleResult summarises one check cycle
type CycleResult struct {
	RunID        string
	Extracted    int
	Relevant     int
	Dropped      map[filter.Reason]int
	New          []offer.Offer
	Changed      []diff.PriceChange
	Notified     bool
	Persisted    bool
	RetrievalErr error
}

// Worker runs check cycles against a single snapshot
type Worker struct {
	crawler  crawler.Crawler
	store    Store
	notifier Notifier
	metrics  *metrics.Metrics
	opts     Options
	log      *logger.Logger
	now      func() time.Time
	newRunID func() string
}

// NewWorker creates a new worker
func NewWorker(
	c crawler.Crawler,
	store Store,
	n Notifier,
	m *metrics.Metrics,
	opts Options,
) *Worker {
	if m == nil {
		m = metrics.New()
	}
	return &Worker{
		crawler:  c,
		store:    store,
		notifier: n,
		metrics:  m,
		opts:     opts,
		log:      logger.ForWorker(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Start runs a cycle immediately and then on every interval tick until ctx
// is done. Cycles never overlap; an in-flight cycle finishes before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().
		Dur("interval", w.opts.Interval).
		Str("persist_policy", w.opts.PersistPolicy).
		Msg("Starting flight deal worker")

	w.runLogged(ctx)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return nil
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *Worker) runLogged(ctx context.Context) {
	start := time.Now()
	result, err := w.RunCycle(ctx)
	elapsed := time.Since(start)

	if err != nil {
		w.log.Error().Err(err).Dur("elapsed", elapsed).Msg("Check cycle failed")
		return
	}
	w.log.Info().
		Str("run_id", result.RunID).
		Int("extracted", result.Extracted).
		Int("relevant", result.Relevant).
		Int("new", len(result.New)).
		Int("price_drops", len(result.Changed)).
		Bool("notified", result.Notified).
		Dur("elapsed", elapsed).
		Msg("Check cycle completed")
}

// RunCycle performs one retrieve, filter, diff, persist and notify pass.
// Retrieval failures are not errors: the cycle yields zero records and the
// snapshot is left untouched. Persistence and notification failures are
// returned after the persist policy has been applied.
func (w *Worker) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	now := w.now()
	result := &CycleResult{RunID: w.newRunID()}
	log := w.log.WithFields(logger.Fields{"run_id": result.RunID, "crawler": w.crawler.GetName()})

	prior := w.store.Load()

	offers, err := w.crawler.FetchOffers(ctx)
	if err != nil {
		log.Warn().Err(err).Bool("retryable", errors.IsRetryable(err)).Msg("Retrieval failed, no records this cycle")
		result.RetrievalErr = err
		w.metrics.ObserveCycle(metrics.ResultRetrievalError, time.Since(start), now)
		return result, nil
	}
	result.Extracted = len(offers)
	w.metrics.OffersExtracted.Add(float64(len(offers)))

	relevant, dropped := filter.Partition(offers, w.opts.Filter, now)
	result.Relevant = len(relevant)
	result.Dropped = dropped
	w.metrics.ObserveFiltered(dropped)

	changes := diff.Diff(relevant, prior.Flights, w.opts.Diff)
	result.New = changes.New
	result.Changed = changes.Changed
	w.metrics.NewOffers.Add(float64(len(changes.New)))
	w.metrics.PriceDrops.Add(float64(len(changes.Changed)))

	checked := now
	n := notifier.Notification{
		New:       changes.New,
		Changed:   changes.Changed,
		Stats:     snapshot.ComputeStats(snapshot.Snapshot{Flights: relevant, LastCheck: &checked}),
		CheckedAt: now,
		SourceURL: w.opts.SourceURL,
		Interval:  w.opts.Interval,
	}

	save := func() error {
		if err := w.store.Save(relevant, changes.New, now, result.RunID); err != nil {
			log.Error().Err(err).Msg("Failed to save snapshot, previous snapshot kept")
			w.metrics.ObserveCycle(metrics.ResultPersistError, time.Since(start), now)
			return err
		}
		result.Persisted = true
		return nil
	}

	if w.opts.PersistPolicy == config.PersistPersistFirst {
		if err := save(); err != nil {
			return result, err
		}
		if err := w.notify(ctx, n, result); err != nil {
			log.Error().Err(err).Msg("Notification failed, it will not be resent")
			w.metrics.ObserveCycle(metrics.ResultNotifyError, time.Since(start), now)
			return result, err
		}
	} else {
		if err := w.notify(ctx, n, result); err != nil {
			log.Error().Err(err).Msg("Notification failed, snapshot not saved so the next cycle retries")
			w.metrics.ObserveCycle(metrics.ResultNotifyError, time.Since(start), now)
			return result, err
		}
		if err := save(); err != nil {
			return result, err
		}
	}

	w.metrics.ObserveCycle(metrics.ResultOK, time.Since(start), now)
	return result, nil
}

func (w *Worker) notify(ctx context.Context, n notifier.Notification, result *CycleResult) error {
	if n.Empty() {
		w.metrics.ObserveNotification("skipped")
		return nil
	}
	sent, err := w.notifier.Notify(ctx, n)
	if err != nil {
		w.metrics.ObserveNotification("failed")
		return err
	}
	if sent {
		result.Notified = true
		w.metrics.ObserveNotification("sent")
	} else {
		w.metrics.ObserveNotification("skipped")
	}
	return nil
}

// Status summarises the persisted snapshot
func (w *Worker) Status() snapshot.Stats {
	return snapshot.ComputeStats(w.store.Load())
}
