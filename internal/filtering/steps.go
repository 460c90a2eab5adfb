package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/model"
)

type activeFilter struct{}

// NewActive creates a filter that removes inactive and expired jobs.
func NewActive() Filter {
	return &activeFilter{}
}

func (f *activeFilter) Name() string { return "active" }

func (f *activeFilter) Disable(string) {}

func (f *activeFilter) IsEnabled() bool { return true }

func (f *activeFilter) Validate(*Config) error { return nil }

func (f *activeFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	excluded := m.Exclude(func(r matching.Ranked) bool {
		return r.Job.Status != model.JobStatusActive || !r.Job.IsActive || (!deps.Now.IsZero() && r.Job.Expired(deps.Now))
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding inactive jobs",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(excluded), Left: m.Len()}, nil
}

type domainsFilter struct {
	disabled bool
	reason   string
	domains  []model.Domain
}

// NewDomains creates a filter that keeps jobs in the profile's target
// domains. Jobs without a detected domain are kept.
func NewDomains() Filter {
	return &domainsFilter{}
}

func (f *domainsFilter) Name() string { return "domains" }

func (f *domainsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *domainsFilter) IsEnabled() bool { return !f.disabled }

func (f *domainsFilter) Validate(*Config) error { return nil }

func (f *domainsFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if deps.Profile == nil {
		return m, Step{}, fmt.Errorf("profile is required")
	}

	f.domains = deps.Profile.TargetDomains
	if len(f.domains) == 0 {
		return m, Step{Initial: initial, Left: initial}, nil
	}

	wanted := make(map[model.Domain]bool, len(f.domains))
	for _, d := range f.domains {
		wanted[d] = true
	}

	excluded := m.Exclude(func(r matching.Ranked) bool {
		return r.Job.Domain != "" && !wanted[r.Job.Domain]
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding jobs outside target domains",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(excluded), Left: m.Len()}, nil
}

func (f *domainsFilter) Status() Status {
	details := map[string]string{}
	if len(f.domains) > 0 {
		names := make([]string, 0, len(f.domains))
		for _, d := range f.domains {
			names = append(names, string(d))
		}
		details["domains"] = strings.Join(names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type companiesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that removes jobs of companies
// configured in the config. Names are compared case-insensitively.
func NewExcludedCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.ExcludedCompanies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if len(f.companies) == 0 {
		return m, Step{Initial: initial, Dropped: 0, Left: m.Len()}, nil
	}

	excluded := m.Exclude(func(r matching.Ranked) bool {
		company := r.Job.NormalizedCompany
		if company == "" {
			company = strings.ToLower(strings.TrimSpace(r.Job.CompanyName))
		}
		for _, c := range f.companies {
			if company == c {
				return true
			}
		}
		return false
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding jobs by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(excluded), Left: m.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type minimumScoreFilter struct {
	minimum int
}

// NewMinimumScore creates a filter that drops matches below the configured
// score.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Disable(string) {}

func (f *minimumScoreFilter) IsEnabled() bool { return true }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = matching.DefaultMinimumScore
	if cfg == nil {
		return nil
	}
	if cfg.MinimumScore < 0 || cfg.MinimumScore > 100 {
		return fmt.Errorf("minimum score must be between 0 and 100, got %d", cfg.MinimumScore)
	}
	if cfg.MinimumScore > 0 {
		f.minimum = cfg.MinimumScore
	}
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	m.Items = matching.FilterByMinimumScore(m.Items, f.minimum)
	dropped := initial - m.Len()

	if deps.Logger != nil && dropped > 0 {
		deps.Logger.Info("excluding low scored matches",
			zap.Int("minimum_score", f.minimum),
			zap.Int("dropped", dropped),
			zap.Int("jobs_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: dropped, Left: m.Len()}, nil
}

func (f *minimumScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"minimum_score": strconv.Itoa(f.minimum)},
	}
}
