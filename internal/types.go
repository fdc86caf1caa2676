package internal

import (
	"context"

	"sjsage522/flightdealworker/config"
	"sjsage522/flightdealworker/internal/crawler"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/services/cache"
	"sjsage522/flightdealworker/services/metrics"
	"sjsage522/flightdealworker/services/notifier"
	"sjsage522/flightdealworker/services/publisher"
	"sjsage522/flightdealworker/services/snapshot"
	"sjsage522/flightdealworker/services/worker"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache      cache.CacheService
	Publisher  publisher.Publisher
	Crawler    crawler.Crawler
	Store      *snapshot.Store
	Dispatcher *notifier.Dispatcher
	Metrics    *metrics.Metrics
}

// NewDependencies wires the services described by cfg. Optional backends
// (memcache, redis, SMTP) are left out when not configured.
func NewDependencies(ctx context.Context, cfg *config.Config) *Dependencies {
	log := logger.Default

	deps := &Dependencies{
		Cache:   cache.New(cfg.MemcacheAddr),
		Store:   snapshot.NewStore(cfg.DataFile).WithLocation(cfg.Location),
		Metrics: metrics.New(),
	}
	if cfg.MemcacheAddr != "" {
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using memcache for retrieval state")
	}
	deps.Crawler = crawler.CreateCrawler(cfg, deps.Cache)

	var channels []notifier.Channel
	if cfg.Email.HasCredentials() {
		channels = append(channels, notifier.NewEmailChannel(cfg.Email))
	} else {
		log.Warn().Msg("Email credentials or mailing list not configured, email delivery disabled")
	}

	if cfg.RedisAddr != "" {
		pub := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := pub.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis not reachable yet, stream delivery will retry each cycle")
		}
		deps.Publisher = pub
		channels = append(channels, notifier.NewStreamChannel(pub))
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Publishing deals to Redis stream")
	}

	deps.Dispatcher = notifier.NewDispatcher(notifier.NewRenderer(cfg.Location), channels...)
	return deps
}

// Worker builds the check-cycle worker over these dependencies
func (d *Dependencies) Worker(cfg *config.Config) *worker.Worker {
	return worker.NewWorker(d.Crawler, d.Store, d.Dispatcher, d.Metrics, worker.OptionsFromConfig(cfg))
}

// Close releases network clients
func (d *Dependencies) Close() error {
	if d.Publisher != nil {
		return d.Publisher.Close()
	}
	return nil
}
