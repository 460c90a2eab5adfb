package filtering

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/model"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func ranked(id string, score int, mutate func(*model.Job)) matching.Ranked {
	job := &model.Job{
		ID:     id,
		Status: model.JobStatusActive,
		NormalizedJob: model.NormalizedJob{
			CompanyName:       "Acme",
			NormalizedCompany: "acme",
			IsActive:          true,
			Domain:            model.DomainSoftware,
			ExpiryDate:        now.Add(time.Hour),
		},
	}
	if mutate != nil {
		mutate(job)
	}
	return matching.Ranked{Job: job, Score: model.MatchScore{TotalScore: score}}
}

func ids(m *Matches) []string {
	out := []string{}
	for _, r := range m.Items {
		out = append(out, r.Job.ID)
	}
	return out
}

func TestRunDefaultFilters(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	m := NewMatches([]matching.Ranked{
		ranked("keep", 90, nil),
		ranked("expired", 88, func(j *model.Job) { j.ExpiryDate = now.Add(-time.Hour) }),
		ranked("inactive", 87, func(j *model.Job) { j.Status = model.JobStatusInactive }),
		ranked("data", 86, func(j *model.Job) { j.Domain = model.DomainData }),
		ranked("no-domain", 70, func(j *model.Job) { j.Domain = "" }),
		ranked("globex", 85, func(j *model.Job) { j.CompanyName = "Globex"; j.NormalizedCompany = "globex" }),
		ranked("low", 40, nil),
	})

	profile := &model.UserProfile{TargetDomains: []model.Domain{model.DomainSoftware}}
	cfg := &Config{ExcludedCompanies: []string{" GLOBEX "}}

	out, steps, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core), Profile: profile, Now: now}, Default(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"keep", "no-domain"}
	got := ids(out)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected matches: %v", got)
	}

	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	expected := []Step{
		{Name: "active", Initial: 7, Dropped: 2, Left: 5},
		{Name: "domains", Initial: 5, Dropped: 1, Left: 4},
		{Name: "excluded_companies", Initial: 4, Dropped: 1, Left: 3},
		{Name: "minimum_score", Initial: 3, Dropped: 1, Left: 2},
	}
	for i, step := range steps {
		if step != expected[i] {
			t.Fatalf("step %d: expected %+v, got %+v", i, expected[i], step)
		}
	}

	if logs.FilterMessage("filter step").Len() != 4 {
		t.Fatalf("expected a log entry per step")
	}
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	steps := Default()
	DisableByName(steps, "domains", "profile has no target domains")

	m := NewMatches([]matching.Ranked{
		ranked("data", 90, func(j *model.Job) { j.Domain = model.DomainData }),
	})
	profile := &model.UserProfile{TargetDomains: []model.Domain{model.DomainQA}}

	out, executed, err := Run(context.Background(), &Config{}, Deps{Profile: profile, Now: now}, steps, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("expected the job to survive, got %d", out.Len())
	}
	for _, step := range executed {
		if step.Name == "domains" {
			t.Fatalf("disabled step was executed")
		}
	}

	statuses := Describe(steps)
	if statuses[1].Name != "domains" || statuses[1].Enabled || statuses[1].Reason == "" {
		t.Fatalf("unexpected status: %+v", statuses[1])
	}
}

func TestMinimumScoreValidation(t *testing.T) {
	m := NewMatches([]matching.Ranked{ranked("a", 60, nil), ranked("b", 75, nil)})

	_, _, err := Run(context.Background(), &Config{MinimumScore: 101}, Deps{}, []Filter{NewMinimumScore()}, m)
	if err == nil {
		t.Fatalf("expected validation error")
	}

	f := NewMinimumScore()
	out, _, err := Run(context.Background(), &Config{MinimumScore: 70}, Deps{}, []Filter{f}, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(out); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected matches: %v", got)
	}
	if status := Describe([]Filter{f})[0]; status.Details["minimum_score"] != "70" {
		t.Fatalf("unexpected status details: %v", status.Details)
	}
}

func TestDomainsRequiresProfile(t *testing.T) {
	m := NewMatches([]matching.Ranked{ranked("a", 60, nil)})
	if _, _, err := Run(context.Background(), nil, Deps{}, []Filter{NewDomains()}, m); err == nil {
		t.Fatalf("expected error without profile")
	}
}
