package jobsource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/utils"
)

const (
	DefaultBaseURL  = "https://api.openwebninja.com"
	DefaultCountry  = "in"
	DefaultSource   = "openwebninja"
	defaultPageSize = 50
	userAgent       = "jobintel/1.0"
	searchPath      = "/api/v1/jobs/search"
	detailPath      = "/api/v1/jobs/detail"
)

// Limiter runs provider calls under the rate limit and monthly budget.
type Limiter interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

type Config struct {
	BaseURL        string
	APIKey         string
	Country        string
	UserAgent      string
	Source         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Query is one search request against the provider.
type Query struct {
	Text     string
	Country  string
	Location string
	Page     int
	PageSize int
}

// SearchResult is a page of loosely mapped postings.
type SearchResult struct {
	Jobs     []model.RawJobPosting
	Total    int
	Page     int
	PageSize int
}

type Client struct {
	apiKey  string
	country string
	source  string
	limiter Limiter
	logger  *zap.Logger

	maxRetries     int
	retryBaseDelay time.Duration
	wait           func(ctx context.Context, d time.Duration) error

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(cfg Config, limiter Limiter, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:         cfg.APIKey,
		country:        cfg.Country,
		source:         cfg.Source,
		limiter:        limiter,
		logger:         logger,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		wait:           utils.WaitFor,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		UserAgent: cfg.UserAgent,
		APIURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Country is the region used when a query does not set one.
func (c *Client) Country() string {
	return c.country
}

// SearchJobs issues one search call through the limiter.
func (c *Client) SearchJobs(ctx context.Context, q Query) (*SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if q.Country == "" {
		q.Country = c.country
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("query", q.Text)
	params.Set("country", q.Country)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Location != "" {
		params.Set("location", q.Location)
	}

	var result *SearchResult
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var response searchResponse
		if err := c.getJSON(ctx, c.APIURL+searchPath, params, &response); err != nil {
			return err
		}

		result = &SearchResult{
			Jobs:     c.mapPostings(response.Jobs),
			Total:    response.Total,
			Page:     response.Page,
			PageSize: response.PageSize,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	c.logger.Debug("search finished",
		zap.String("query", q.Text),
		zap.String("country", q.Country),
		zap.Int("jobs", len(result.Jobs)),
		zap.Int("total", result.Total),
	)

	return result, nil
}

// GetJob fetches a single posting by its provider id.
func (c *Client) GetJob(ctx context.Context, id string) (*model.RawJobPosting, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("jobId", id)

	var raw map[string]any
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, c.APIURL+detailPath, params, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	// Mapping runs after the call is recorded against the budget.
	posting, err := c.mapPosting(raw)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return &posting, nil
}

type searchResponse struct {
	Jobs     []map[string]any `json:"jobs"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}
