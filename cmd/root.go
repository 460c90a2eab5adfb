package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobintel/internal/budget"
	"github.com/spigell/jobintel/internal/dedup"
	"github.com/spigell/jobintel/internal/jobsource"
	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/normalize"
	"github.com/spigell/jobintel/internal/scheduler"
	"github.com/spigell/jobintel/internal/scraping"
)

const (
	app       = "jobintel"
	envPrefix = "JOBINTEL"
)

type Config struct {
	Country   string          `mapstructure:"country" validate:"required,len=2"`
	Source    SourceConfig    `mapstructure:"source"`
	RateLimit RateLimitConfig `mapstructure:"rate-limit"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AI        AIConfig        `mapstructure:"ai"`
}

type SourceConfig struct {
	BaseURL        string        `mapstructure:"base-url" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	UserAgent      string        `mapstructure:"user-agent"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries     int           `mapstructure:"max-retries" validate:"gte=0"`
	RetryBaseDelay time.Duration `mapstructure:"retry-base-delay" validate:"gte=0"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64         `mapstructure:"requests-per-second" validate:"gt=0"`
	RetryDelays       []time.Duration `mapstructure:"retry-delays"`
}

type BudgetConfig struct {
	Backend      string  `mapstructure:"backend" validate:"oneof=memory redis"`
	MonthlyLimit int     `mapstructure:"monthly-limit" validate:"gte=0"`
	WarningRatio float64 `mapstructure:"warning-ratio" validate:"gt=0,lte=1"`
}

type NormalizeConfig struct {
	Expiry         time.Duration `mapstructure:"expiry" validate:"gt=0"`
	IDStrategy     string        `mapstructure:"id-strategy" validate:"oneof=random fingerprint"`
	VocabularyFile string        `mapstructure:"vocabulary-file"`
}

type DedupConfig struct {
	Policy string `mapstructure:"policy" validate:"oneof=isolated atomic"`
}

type ScrapeConfig struct {
	Buckets     []scraping.Bucket    `mapstructure:"buckets" validate:"dive"`
	PageSize    int                  `mapstructure:"page-size" validate:"gte=1,lte=100"`
	BucketDelay time.Duration        `mapstructure:"bucket-delay" validate:"gte=0"`
	Schedules   []scheduler.Schedule `mapstructure:"schedules" validate:"dive"`
	Backlog     int                  `mapstructure:"backlog" validate:"gte=0"`
}

type MatchingConfig struct {
	MinimumScore      int      `mapstructure:"minimum-score" validate:"gte=0,lte=100"`
	CountryKeywords   []string `mapstructure:"country-keywords"`
	ExcludedCompanies []string `mapstructure:"excluded-companies"`
	JobLimit          int      `mapstructure:"job-limit" validate:"gte=0"`
	Concurrency       int      `mapstructure:"concurrency" validate:"gte=0"`
}

type StoreConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=memory postgres mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max-conns" validate:"gte=0"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	QueueKey     string `mapstructure:"queue-key"`
	BudgetPrefix string `mapstructure:"budget-prefix"`
}

type AIConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobintel scrapes job boards into a deduplicated store and matches jobs to user profiles",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobintel.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("country", jobsource.DefaultCountry)
	v.SetDefault("source.base-url", jobsource.DefaultBaseURL)
	v.SetDefault("source.max-retries", 3)
	v.SetDefault("source.retry-base-delay", "2s")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("rate-limit.requests-per-second", 1.0)
	v.SetDefault("rate-limit.retry-delays", []string{"2s", "4s", "8s"})
	v.SetDefault("budget.backend", "memory")
	v.SetDefault("budget.monthly-limit", budget.DefaultMonthlyLimit)
	v.SetDefault("budget.warning-ratio", budget.DefaultWarningRatio)
	v.SetDefault("normalize.expiry", normalize.DefaultExpiry.String())
	v.SetDefault("normalize.id-strategy", string(normalize.IDRandom))
	v.SetDefault("dedup.policy", string(dedup.PolicyIsolated))
	v.SetDefault("scrape.page-size", scraping.DefaultPageSize)
	v.SetDefault("scrape.bucket-delay", scraping.DefaultBucketDelay.String())
	v.SetDefault("matching.minimum-score", matching.DefaultMinimumScore)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.postgres.max-conns", 10)
	v.SetDefault("store.mongo.database", app)
	v.SetDefault("ai.gemini.max-log-length", 200)

	// Keys without a real default still need registering so that
	// environment overrides reach Unmarshal.
	for _, key := range []string{
		"source.api-key",
		"source.api-key-file",
		"source.user-agent",
		"normalize.vocabulary-file",
		"matching.country-keywords",
		"matching.excluded-companies",
		"store.postgres.url",
		"store.mongo.uri",
		"redis.url",
		"redis.queue-key",
		"redis.budget-prefix",
		"ai.gemini.api-key",
		"ai.gemini.api-key-file",
		"ai.gemini.model",
	} {
		v.SetDefault(key, "")
	}
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Store.Backend == "postgres" && config.Store.Postgres.URL == "" {
		return nil, fmt.Errorf("invalid config: store.postgres.url is required for the postgres backend")
	}
	if config.Store.Backend == "mongo" && config.Store.Mongo.URI == "" {
		return nil, fmt.Errorf("invalid config: store.mongo.uri is required for the mongo backend")
	}
	if config.Budget.Backend == "redis" && config.Redis.URL == "" {
		return nil, fmt.Errorf("invalid config: redis.url is required for the redis budget backend")
	}

	return &config, nil
}
