package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/ai"
	"github.com/spigell/jobintel/internal/ai/gemini"
	"github.com/spigell/jobintel/internal/batchmatch"
	"github.com/spigell/jobintel/internal/budget"
	"github.com/spigell/jobintel/internal/dedup"
	"github.com/spigell/jobintel/internal/filtering"
	"github.com/spigell/jobintel/internal/jobsource"
	"github.com/spigell/jobintel/internal/logger"
	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/normalize"
	"github.com/spigell/jobintel/internal/queue"
	"github.com/spigell/jobintel/internal/ratelimit"
	"github.com/spigell/jobintel/internal/scraping"
	"github.com/spigell/jobintel/internal/secrets"
	"github.com/spigell/jobintel/internal/store"
	"github.com/spigell/jobintel/internal/store/memory"
	"github.com/spigell/jobintel/internal/store/mongo"
	"github.com/spigell/jobintel/internal/store/postgres"
)

// services holds the long-lived collaborators built from the config.
// Fields are created lazily by the helpers below.
type services struct {
	cfg    *Config
	logger *zap.Logger

	store   store.Store
	redis   *redis.Client
	tracker *budget.Tracker
}

// setup builds the logger and decodes the config. Failures here are fatal
// in the same way for every command.
func setup(ctx context.Context) *services {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	l.Debug("starting", zap.String("app", app), zap.String("version", version),
		zap.String("store", config.Store.Backend),
		zap.String("budget", config.Budget.Backend),
	)

	return &services{cfg: config, logger: l}
}

func (s *services) Close(ctx context.Context) {
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Warn("closing store", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}

func (s *services) Store(ctx context.Context) (store.Store, error) {
	if s.store != nil {
		return s.store, nil
	}

	var (
		st  store.Store
		err error
	)
	switch s.cfg.Store.Backend {
	case "postgres":
		var pg *postgres.Store
		pg, err = postgres.Open(ctx, s.cfg.Store.Postgres.URL, s.cfg.Store.Postgres.MaxConns, s.logger)
		if err == nil {
			if err = pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close(ctx)
			}
		}
		st = pg
	case "mongo":
		st, err = mongo.Open(ctx, s.cfg.Store.Mongo.URI, s.cfg.Store.Mongo.Database, s.logger)
	default:
		s.logger.Warn("using in-memory store, nothing is kept after exit")
		st = memory.New()
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", s.cfg.Store.Backend, err)
	}

	s.store = st
	return st, nil
}

func (s *services) Redis(ctx context.Context) (*redis.Client, error) {
	if s.redis != nil {
		return s.redis, nil
	}
	if s.cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is not configured")
	}

	client, err := queue.Connect(ctx, s.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	s.redis = client
	return client, nil
}

func (s *services) Queue(ctx context.Context) (*queue.Queue, error) {
	client, err := s.Redis(ctx)
	if err != nil {
		return nil, err
	}
	return queue.New(client, s.cfg.Redis.QueueKey, s.logger.With(zap.String("component", "queue"))), nil
}

func (s *services) Tracker(ctx context.Context) (*budget.Tracker, error) {
	if s.tracker != nil {
		return s.tracker, nil
	}

	var counter budget.Counter
	if s.cfg.Budget.Backend == "redis" {
		client, err := s.Redis(ctx)
		if err != nil {
			return nil, fmt.Errorf("budget counter: %w", err)
		}
		counter = budget.NewRedisCounter(client, s.cfg.Redis.BudgetPrefix)
	} else {
		s.logger.Warn("budget backend is memory, usage is per process only", zap.String("hint", "set budget.backend to redis"))
		counter = budget.NewMemoryCounter()
	}

	s.tracker = budget.NewTracker(counter, budget.Config{
		MonthlyLimit: s.cfg.Budget.MonthlyLimit,
		WarningRatio: s.cfg.Budget.WarningRatio,
	}, s.logger.With(zap.String("component", "budget")))
	return s.tracker, nil
}

// Source builds the job provider client. Its calls go through the rate
// limiter and are charged to the budget tracker.
func (s *services) Source(ctx context.Context) (*jobsource.Client, error) {
	tracker, err := s.Tracker(ctx)
	if err != nil {
		return nil, err
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "job source api key",
		Value: s.cfg.Source.APIKey,
		File:  s.cfg.Source.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set source.api-key-file or JOBINTEL_SOURCE_API_KEY)", err)
	}

	limiter := ratelimit.New(tracker, ratelimit.Config{
		RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
		RetryDelays:       s.cfg.RateLimit.RetryDelays,
	}, s.logger.With(zap.String("component", "ratelimit")))

	return jobsource.New(jobsource.Config{
		BaseURL:        s.cfg.Source.BaseURL,
		APIKey:         apiKey,
		Country:        s.cfg.Country,
		UserAgent:      s.cfg.Source.UserAgent,
		Timeout:        s.cfg.Source.Timeout,
		MaxRetries:     s.cfg.Source.MaxRetries,
		RetryBaseDelay: s.cfg.Source.RetryBaseDelay,
	}, limiter, s.logger.With(zap.String("component", "jobsource"))), nil
}

func (s *services) Normalizer() (*normalize.Normalizer, error) {
	var vocab *normalize.Vocabulary
	if s.cfg.Normalize.VocabularyFile != "" {
		var err error
		if vocab, err = normalize.LoadVocabulary(s.cfg.Normalize.VocabularyFile); err != nil {
			return nil, err
		}
	}
	return normalize.New(normalize.Config{
		Expiry:     s.cfg.Normalize.Expiry,
		IDStrategy: normalize.IDStrategy(s.cfg.Normalize.IDStrategy),
		Vocabulary: vocab,
	}), nil
}

func (s *services) Dedup(ctx context.Context) (*dedup.Engine, error) {
	st, err := s.Store(ctx)
	if err != nil {
		return nil, err
	}
	return dedup.New(st, dedup.Policy(s.cfg.Dedup.Policy), s.logger.With(zap.String("component", "dedup"))), nil
}

func (s *services) Orchestrator(ctx context.Context) (*scraping.Orchestrator, error) {
	st, err := s.Store(ctx)
	if err != nil {
		return nil, err
	}

	tracker, err := s.Tracker(ctx)
	if err != nil {
		return nil, err
	}

	source, err := s.Source(ctx)
	if err != nil {
		return nil, err
	}

	normalizer, err := s.Normalizer()
	if err != nil {
		return nil, err
	}

	engine, err := s.Dedup(ctx)
	if err != nil {
		return nil, err
	}

	return scraping.New(scraping.Config{
		Buckets:     s.cfg.Scrape.Buckets,
		Country:     s.cfg.Country,
		PageSize:    s.cfg.Scrape.PageSize,
		BucketDelay: s.cfg.Scrape.BucketDelay,
	}, scraping.Deps{
		Source:     source,
		Budget:     tracker,
		Normalizer: normalizer,
		Dedup:      engine,
		Sessions:   st,
	}, s.logger), nil
}

func (s *services) Matcher(ctx context.Context, minScore int) (*batchmatch.Service, error) {
	st, err := s.Store(ctx)
	if err != nil {
		return nil, err
	}

	if minScore <= 0 {
		minScore = s.cfg.Matching.MinimumScore
	}

	return batchmatch.New(st, st, matching.New(matching.Config{
		CountryKeywords: s.cfg.Matching.CountryKeywords,
	}), batchmatch.Config{
		Filters: filtering.Config{
			ExcludedCompanies: s.cfg.Matching.ExcludedCompanies,
			MinimumScore:      minScore,
		},
		JobLimit:    s.cfg.Matching.JobLimit,
		Concurrency: s.cfg.Matching.Concurrency,
	}, s.logger.With(zap.String("component", "matching"))), nil
}

func (s *services) Extractor(ctx context.Context) (ai.ProfileExtractor, error) {
	cfg := s.cfg.AI.Gemini

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model)
	if err != nil {
		return nil, err
	}

	return gemini.NewExtractor(generator, s.logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	), cfg.MaxLogLength), nil
}
