package api

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/cache"
	"github.com/ade-signal-mcp-server/internal/config"
	"github.com/ade-signal-mcp-server/internal/database"
	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
	"github.com/ade-signal-mcp-server/internal/reference"
	"github.com/ade-signal-mcp-server/internal/service"
	"github.com/ade-signal-mcp-server/pkg/external"
)

// Pipeline bundles the analyzer with the resources released on shutdown.
type Pipeline struct {
	Analyzer *service.Analyzer
	closers  []func() error
}

// Close releases pipeline resources.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewLogger builds the process logger from the logging configuration.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if strings.ToLower(cfg.Format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}

// BuildPipeline assembles the analyzer described by the configuration: the
// reference table from its configured source, the entity source, the severity
// classifier and the tiered prediction cache.
func BuildPipeline(ctx context.Context, configManager *config.Manager, logger *logrus.Logger, m *metrics.Metrics) (*Pipeline, error) {
	cfg := configManager.GetConfig()
	pipeline := &Pipeline{}

	table, err := loadReference(ctx, configManager, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	lexicons, err := service.LoadLexicons(cfg.Pipeline.LexiconFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	var source domain.EntitySource
	switch cfg.Pipeline.EntitySource {
	case "dictionary":
		source = service.NewDictionaryEntitySource(lexicons)
	default:
		nerClient, err := external.NewNERClient(cfg.ExternalModel.NER, logger, m)
		if err != nil {
			return nil, err
		}
		source = nerClient
	}

	classifier, err := external.NewSeverityClient(cfg.ExternalModel.Classifier, logger, m)
	if err != nil {
		return nil, err
	}

	var remote domain.PredictionCache
	if cfg.Cache.RedisURL != "" {
		redisCache, err := external.NewRedisPredictionCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis prediction cache unavailable, using memory cache only")
		} else {
			remote = redisCache
			pipeline.closers = append(pipeline.closers, redisCache.Close)
		}
	}

	predictionCache, err := cache.NewTieredCache(cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.DefaultTTL), remote, logger, m)
	if err != nil {
		pipeline.Close()
		return nil, err
	}

	analyzer, err := service.NewAnalyzer(logger, service.AnalyzerDeps{
		EntitySource: source,
		Classifier:   classifier,
		Reference:    table,
		Lexicons:     lexicons,
		Cache:        predictionCache,
		Metrics:      m,
	}, cfg.Pipeline)
	if err != nil {
		pipeline.Close()
		return nil, err
	}

	pipeline.Analyzer = analyzer
	return pipeline, nil
}

// loadReference reads the reference table into memory. Stores are closed once
// the table is loaded.
func loadReference(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (*reference.Table, error) {
	cfg := configManager.GetConfig()

	switch cfg.Reference.Source {
	case "sqlite":
		store, err := reference.NewSQLiteStore(cfg.Reference.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return reference.LoadTable(ctx, store, logger)

	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := runMigrations(ctx, configManager, logger); err != nil {
				return nil, err
			}
		}
		store, err := reference.NewPostgresStoreFromURL(
			configManager.GetDatabaseURL(),
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return reference.LoadTable(ctx, store, logger)

	default:
		records, err := reference.LoadCSVFile(cfg.Reference.CSVPath)
		if err != nil {
			return nil, err
		}
		table, err := reference.NewTable(records)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"path":  cfg.Reference.CSVPath,
			"drugs": table.Len(),
		}).Info("Reference table loaded")
		return table, nil
	}
}

func runMigrations(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), configManager.GetConfig().Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}
