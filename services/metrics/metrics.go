package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/flightdealworker/internal/filter"
	"sjsage522/flightdealworker/logger"
)

// Cycle results
const (
	ResultOK             = "ok"
	ResultRetrievalError = "retrieval_error"
	ResultPersistError   = "persist_error"
	ResultNotifyError    = "notify_error"
)

// Metrics holds the check cycle collectors on their own registry
type Metrics struct {
	Registry *prometheus.Registry

	Cycles          *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	OffersExtracted prometheus.Counter
	OffersFiltered  *prometheus.CounterVec
	NewOffers       prometheus.Counter
	PriceDrops      prometheus.Counter
	Notifications   *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "cycles_total", Help: "Check cycles by result."},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightdeal", Name: "cycle_duration_seconds",
			Help:    "Check cycle duration seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		OffersExtracted: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "offers_extracted_total", Help: "Offers extracted from the source page."},
		),
		OffersFiltered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "offers_filtered_total", Help: "Offers dropped by the relevance filter."},
			[]string{"reason"},
		),
		NewOffers: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "new_offers_total", Help: "Offers not present in the previous snapshot."},
		),
		PriceDrops: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "price_drops_total", Help: "Price drops reported."},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "flightdeal", Name: "notifications_total", Help: "Notification attempts by status."},
			[]string{"status"}, // sent|failed|skipped
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "flightdeal", Name: "last_success_timestamp_seconds", Help: "Unix time of the last successful cycle."},
		),
	}
	m.Registry.MustRegister(
		m.Cycles, m.CycleDuration, m.OffersExtracted, m.OffersFiltered,
		m.NewOffers, m.PriceDrops, m.Notifications, m.LastSuccess,
	)
	return m
}

// ObserveCycle records the outcome of one check cycle
func (m *Metrics) ObserveCycle(result string, dur time.Duration, at time.Time) {
	m.Cycles.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(dur.Seconds())
	if result == ResultOK {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveFiltered adds the per-reason drop counts from the filter
func (m *Metrics) ObserveFiltered(dropped map[filter.Reason]int) {
	for reason, n := range dropped {
		m.OffersFiltered.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// ObserveNotification counts a notification attempt
func (m *Metrics) ObserveNotification(status string) {
	m.Notifications.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	log := logger.ForMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
