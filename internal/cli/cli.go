package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Roald87/GraceDB/internal/bot"
	"github.com/Roald87/GraceDB/internal/config"
	"github.com/Roald87/GraceDB/internal/detector"
	"github.com/Roald87/GraceDB/internal/events"
	"github.com/Roald87/GraceDB/internal/gracedb"
	"github.com/Roald87/GraceDB/internal/imagecache"
	"github.com/Roald87/GraceDB/internal/logging"
	"github.com/Roald87/GraceDB/internal/skymap"
	"github.com/Roald87/GraceDB/internal/subscribers"
	"github.com/Roald87/GraceDB/internal/telegram"
	"github.com/Roald87/GraceDB/internal/voevent"
	"github.com/Roald87/GraceDB/internal/webhook"
)

const (
	ExitSuccess = 0
	ExitError   = 1

	shutdownTimeout = 10 * time.Second
)

var (
	flagDataDir         string
	flagListenAddr      string
	flagRefreshInterval time.Duration
	flagPretty          bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gracebot",
		Short: "Telegram bot announcing gravitational wave event candidates",
		Long: `A Telegram bot that announces gravitational wave event candidates
from GraceDB. It keeps an enriched event cache up to date, serves user
commands over a webhook and fans alert notices out to subscribers.`,
		RunE: runServe,
	}

	// Flags override the corresponding environment variables.
	cmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Data directory for subscriber state and images")
	cmd.Flags().StringVar(&flagListenAddr, "listen-addr", "", "Address the webhook server listens on")
	cmd.Flags().DurationVar(&flagRefreshInterval, "refresh-interval", 0, "Delay between event database refreshes")
	cmd.Flags().BoolVar(&flagPretty, "pretty", false, "Human-readable log output instead of JSON")

	return cmd
}

// runServe wires the application together and serves until interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if flagDataDir != "" {
		dir, err := config.ExpandHome(flagDataDir)
		if err != nil {
			return err
		}
		cfg.DataDir = dir
	}
	if flagListenAddr != "" {
		cfg.ListenAddr = flagListenAddr
	}
	if flagRefreshInterval > 0 {
		cfg.RefreshInterval = flagRefreshInterval
	}

	var log zerolog.Logger
	if flagPretty {
		log = logging.NewConsole(os.Stderr, cfg.LogLevel)
	} else {
		log = logging.New(os.Stderr, cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, store, tg, err := buildBot(cfg, log)
	if err != nil {
		return err
	}

	// First fill of the event cache. A failure here is not fatal; the
	// periodic refresh will retry.
	if err := store.UpdateAll(ctx); err != nil {
		log.Error().Err(err).Msg("initial event refresh failed")
	}
	go store.RunPeriodicRefresh(ctx, cfg.RefreshInterval)

	if cfg.WebhookURL != "" {
		url := strings.TrimRight(cfg.WebhookURL, "/") + "/" + cfg.WebhookSecret
		if err := tg.SetWebhook(ctx, url); err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}
		log.Info().Str("url", cfg.WebhookURL).Msg("webhook registered")
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: webhook.NewServer(cfg.WebhookSecret, b, log).Handler(),
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening for updates")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving webhook: %w", err)
	}
	return nil
}

// buildBot constructs the bot and its collaborators from configuration.
func buildBot(cfg *config.Config, log zerolog.Logger) (*bot.Bot, *events.Store, *telegram.Client, error) {
	api := gracedb.NewClient(cfg.GraceDBURL, log)
	resolver := voevent.NewResolver(api, log)
	enricher := skymap.NewEnricher(api, log)
	store := events.NewStore(api, resolver, enricher, cfg.SearchQuery, log)

	pictures, err := imagecache.New(cfg.ImageDir(), api, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing image cache: %w", err)
	}

	subs, err := subscribers.Open[int64](cfg.SubscribersPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening subscriber set: %w", err)
	}
	announced, err := subscribers.Open[string](cfg.AnnouncedPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening announce ledger: %w", err)
	}

	tg, err := telegram.NewClient(cfg.BotToken)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing telegram client: %w", err)
	}

	b := bot.New(store, pictures, subs, announced, tg, detector.New(), log)
	return b, store, tg, nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
