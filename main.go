package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/flightdealworker/config"
	"sjsage522/flightdealworker/internal"
	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/services/notifier"
	"sjsage522/flightdealworker/services/snapshot"
)

func main() {
	runOnce := flag.Bool("run-once", false, "run a single check cycle and exit")
	continuous := flag.Bool("continuous", true, "check on every interval until stopped")
	status := flag.Bool("status", false, "print statistics for the saved snapshot and exit")
	testEmail := flag.Bool("test-email", false, "send a sample notification email and exit")
	configPath := flag.String("config", "", "optional YAML config file (defaults to CONFIG_FILE)")
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch {
	case *status:
		printStatus(snapshot.NewStore(cfg.DataFile).WithLocation(cfg.Location).Stats())
		return
	case *testEmail:
		if err := sendTestEmail(cfg); err != nil {
			log.Error().Err(err).Msg("Test email failed")
			os.Exit(1)
		}
		log.Info().Strs("recipients", cfg.Email.MailingList).Msg("Test email sent")
		return
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("url", cfg.TustusURL).
		Dur("check_interval", cfg.CheckInterval).
		Msg("Starting application")

	// Set up context cancelled by SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := internal.NewDependencies(ctx, cfg)
	defer deps.Close()

	deps.Metrics.Serve(ctx, cfg.MetricsAddr)
	w := deps.Worker(cfg)

	if *runOnce || !*continuous {
		result, err := w.RunCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Check cycle failed")
			os.Exit(1)
		}
		log.Info().
			Str("run_id", result.RunID).
			Int("relevant", result.Relevant).
			Int("new", len(result.New)).
			Int("price_drops", len(result.Changed)).
			Msg("Check cycle completed")
		return
	}

	if err := w.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

func printStatus(stats snapshot.Stats) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func sendTestEmail(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := notifier.SampleNotification(time.Now(), cfg.TustusURL, cfg.CheckInterval)
	msg, _, err := notifier.NewRenderer(cfg.Location).Render(n)
	if err != nil {
		return err
	}
	return notifier.NewEmailChannel(cfg.Email).Deliver(ctx, msg, n)
}
