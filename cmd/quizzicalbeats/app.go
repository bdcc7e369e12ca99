package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quizzicalbeats/quizzicalbeats/internal/aggregate"
	"github.com/quizzicalbeats/quizzicalbeats/internal/config"
	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/database"
	"github.com/quizzicalbeats/quizzicalbeats/internal/event"
	"github.com/quizzicalbeats/quizzicalbeats/internal/export"
	"github.com/quizzicalbeats/quizzicalbeats/internal/importer"
	"github.com/quizzicalbeats/quizzicalbeats/internal/logging"
	"github.com/quizzicalbeats/quizzicalbeats/internal/reconcile"
	"github.com/quizzicalbeats/quizzicalbeats/internal/round"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/acrcloud"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/deezer"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/lastfm"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/musicbrainz"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/oracle"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source/spotify"
)

// app holds the wired services behind every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sql.DB
	store      *corpus.Store
	rounds     *round.Service
	registry   *source.Registry
	aggregator *aggregate.Aggregator
	importer   *importer.Importer
	exporter   *export.Service
	bus        *event.Bus

	logCloser io.Closer
}

func configPathOrDefault(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("QB_CONFIG_PATH"); v != "" {
		return v
	}
	return "/data/config.yaml"
}

// newApp loads configuration and wires the full service graph. ctx bounds
// the genre table watcher; it should outlive the command.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPathOrDefault(configPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	table := reconcile.DefaultTable()
	if path := cfg.Genres.TranslationPath; path != "" {
		loaded, err := reconcile.LoadTable(path)
		if err != nil {
			logger.Warn("loading genre translation table, using defaults",
				slog.String("path", path), slog.Any("error", err))
		} else {
			table = loaded
			if err := table.Watch(ctx, path, logger); err != nil {
				logger.Warn("watching genre translation table",
					slog.String("path", path), slog.Any("error", err))
			}
		}
	}

	limiters := source.NewRateLimiterMap()
	registry := source.NewRegistry()
	registry.Register(acrcloud.New(cfg.Sources.ACRCloud.Token, limiters, logger))
	registry.Register(musicbrainz.New(limiters, logger))
	registry.Register(spotify.New(cfg.Sources.Spotify.ClientID, cfg.Sources.Spotify.ClientSecret, limiters, logger))
	registry.Register(deezer.New(limiters, logger))
	registry.Register(lastfm.New(cfg.Sources.LastFM.APIKey, limiters, logger))
	if cfg.Sources.Oracle.Endpoint != "" {
		registry.Register(oracle.New(cfg.Sources.Oracle.Endpoint, cfg.Sources.Oracle.APIKey,
			cfg.Sources.Oracle.Model, limiters, logger))
	}

	bus := event.NewBus(logger, 256)
	go bus.Start()
	subscribeLogging(bus, logger)

	store := corpus.NewStore(db, logger)
	rounds := round.NewService(db, logger)
	aggregator := aggregate.New(registry, reconcile.New(table), logger, cfg.Aggregation.SourceTimeout)
	imp := importer.New(registry, aggregator, store, bus, logger)
	exporter := export.NewService(store, rounds, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      store,
		rounds:     rounds,
		registry:   registry,
		aggregator: aggregator,
		importer:   imp,
		exporter:   exporter,
		bus:        bus,
		logCloser:  logCloser,
	}, nil
}

func (a *app) close() {
	a.bus.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.Error("closing database", "error", err)
	}
	if a.logCloser != nil {
		a.logCloser.Close() //nolint:errcheck
	}
}

// subscribeLogging attaches a log-only handler to every event type.
func subscribeLogging(bus *event.Bus, logger *slog.Logger) {
	for _, t := range []event.Type{
		event.SongImported, event.ImportCompleted,
		event.RoundCreated, event.RoundDeleted,
	} {
		eventType := t
		bus.Subscribe(eventType, func(e event.Event) {
			logger.Info("event", slog.String("type", string(eventType)), slog.Any("data", e.Data))
		})
	}
}
