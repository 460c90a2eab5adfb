package batchmatch

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/filtering"
	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store/memory"
)

var now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *memory.Store) {
	t.Helper()
	jobs := []model.NormalizedJob{
		{Title: "Backend Engineer", CompanyName: "Acme", TechStack: []string{"Go", "PostgreSQL"}, Domain: model.DomainSoftware, Location: "Pune, India"},
		{Title: "Data Scientist", CompanyName: "Globex", TechStack: []string{"Python"}, Domain: model.DomainData, Location: "Delhi, India"},
		{Title: "Go Developer", CompanyName: "Initech", TechStack: []string{"Go"}, Domain: model.DomainSoftware, Location: "Berlin"},
		{Title: "Accountant", CompanyName: "Umbrella", Domain: model.DomainNonTech, Location: "London"},
	}
	for i, n := range jobs {
		n.ExternalJobID = "ext-" + strconv.Itoa(i)
		n.IsActive = true
		n.ExpiryDate = now.Add(24 * time.Hour)
		if _, err := s.Insert(context.Background(), model.NewJob(n, now)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func profile() model.UserProfile {
	years := 3.0
	return model.UserProfile{
		TargetRoles:     []string{"backend engineer", "go developer"},
		TargetLocations: []string{"Pune"},
		TargetDomains:   []model.Domain{model.DomainSoftware},
		ExperienceYears: &years,
		SkillsRating:    map[string]int{"go": 5, "postgresql": 4},
	}
}

func TestMatchUser_RanksFiltersAndSaves(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	svc := NewWithClock(s, s, matching.New(matching.Config{}), Config{
		Filters: filtering.Config{ExcludedCompanies: []string{"initech"}},
	}, zap.NewNop(), func() time.Time { return now })

	report, err := svc.MatchUser(ctx, "u1", profile())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Considered)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "Backend Engineer", report.Matches[0].Job.Title)
	assert.Equal(t, 1, report.Saved)
	require.Len(t, report.Steps, 4)
	assert.Equal(t, "domains", report.Steps[1].Name)
	assert.Equal(t, 2, report.Steps[1].Dropped)

	saved, err := s.ListMatches(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, report.Matches[0].Job.ID, saved[0].JobID)
	assert.Equal(t, matching.ClassifyMatch(saved[0].Score.TotalScore), saved[0].MatchType)
	assert.Equal(t, model.MatchStatusMatched, saved[0].Status)
}

func TestMatchUser_AnonymousDoesNotSave(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	svc := NewWithClock(s, s, matching.New(matching.Config{}), Config{}, nil, func() time.Time { return now })

	p := profile()
	p.TargetDomains = nil
	report, err := svc.MatchUser(ctx, "", p)
	require.NoError(t, err)
	assert.Zero(t, report.Saved)
	assert.Len(t, report.Steps, 3, "domains step is disabled")
}

func TestMatchUser_ReportsFilterSettings(t *testing.T) {
	s := memory.New()
	seed(t, s)

	svc := NewWithClock(s, nil, matching.New(matching.Config{}), Config{
		Filters: filtering.Config{ExcludedCompanies: []string{" Initech "}, MinimumScore: 40},
	}, zap.NewNop(), func() time.Time { return now })

	p := profile()
	p.TargetDomains = nil
	report, err := svc.MatchUser(context.Background(), "", p)
	require.NoError(t, err)

	require.Len(t, report.Filters, 4)
	byName := map[string]filtering.Status{}
	for _, st := range report.Filters {
		byName[st.Name] = st
	}

	domains := byName["domains"]
	assert.False(t, domains.Enabled)
	assert.Equal(t, "profile has no target domains", domains.Reason)
	assert.Equal(t, "initech", byName["excluded_companies"].Details["companies"])
	assert.Equal(t, "40", byName["minimum_score"].Details["minimum_score"])
	assert.True(t, byName["minimum_score"].Enabled)
}

type listerMock struct {
	mock.Mock
}

func (m *listerMock) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	args := m.Called(ctx, now, limit)
	jobs, _ := args.Get(0).([]*model.Job)
	return jobs, args.Error(1)
}

func TestMatchUser_ListError(t *testing.T) {
	lister := &listerMock{}
	lister.On("ListActive", mock.Anything, now, 25).Return(nil, errors.New("db down"))

	svc := NewWithClock(lister, nil, matching.New(matching.Config{}), Config{JobLimit: 25}, zap.NewNop(), func() time.Time { return now })

	_, err := svc.MatchUser(context.Background(), "u1", profile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	lister.AssertExpectations(t)
}

func TestMatchUsers_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	svc := NewWithClock(s, s, matching.New(matching.Config{}), Config{Concurrency: 2}, zap.NewNop(), func() time.Time { return now })

	reqs := []UserProfileRequest{
		{UserID: "a", Profile: profile()},
		{UserID: "b", Profile: model.UserProfile{TargetRoles: []string{"data scientist"}, TargetDomains: []model.Domain{model.DomainData}, SkillsRating: map[string]int{"python": 5}}},
		{UserID: "c", Profile: profile()},
	}

	reports, err := svc.MatchUsers(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, reqs[i].UserID, r.UserID)
	}
	require.NotEmpty(t, reports[1].Matches)
	assert.Equal(t, "Data Scientist", reports[1].Matches[0].Job.Title)

	saved, err := s.ListMatches(ctx, "c", 0)
	require.NoError(t, err)
	assert.Len(t, saved, len(reports[2].Matches))
}
