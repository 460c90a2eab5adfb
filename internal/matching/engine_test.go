package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/normalize"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestCalculateMatch_EndToEnd(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	n := normalize.NewWithClock(normalize.Config{}, func() time.Time { return now }, func() string { return "x" })

	job := n.Normalize(model.RawJobPosting{
		ExternalID:  "ext-1",
		Title:       "Senior Backend Engineer",
		Company:     "Acme",
		Description: "5+ years Node.js AWS Docker",
	}, "software")

	profile := model.UserProfile{
		TargetRoles:     []string{"backend engineer"},
		ExperienceYears: ptrF(6),
		SkillsRating:    map[string]int{"Node.js": 5, "AWS": 4},
	}

	score := New(Config{}).CalculateMatch(profile, job)

	assert.Equal(t, 20, score.RoleScore)
	assert.Equal(t, 10, score.ExperienceScore)
	assert.Equal(t, 27, score.SkillScore)
	assert.Equal(t, []string{"Docker"}, score.SkillGaps)
	assert.Equal(t, 10, score.LevelScore)
	assert.Equal(t, 7, score.LocationScore)
	assert.Equal(t, 3, score.WorkModeScore)
	assert.Equal(t, 77, score.TotalScore)
	assert.Contains(t, score.MatchReasons, "Perfect role match")
	assert.Len(t, score.Breakdown, 6)
}

func TestCalculateMatch_SubScoresSumToTotal(t *testing.T) {
	e := New(Config{})
	profiles := []model.UserProfile{
		{},
		{
			TargetRoles:        []string{"data engineer", "analyst"},
			TargetLocations:    []string{"Pune"},
			ExperienceYears:    ptrF(0),
			CareerLevel:        model.LevelFresher,
			WorkModePreference: model.WorkModeRemote,
			SkillsRating:       map[string]int{"python": 3, "sql": 4, "spark": 2},
		},
		{
			TargetRoles:        []string{"Go developer"},
			TargetLocations:    []string{"Berlin"},
			ExperienceYears:    ptrF(12),
			CareerLevel:        model.LevelLead,
			WorkModePreference: model.WorkModeOnsite,
			SkillsRating:       map[string]int{"go": 5, "kubernetes": 5, "postgres": 4},
		},
	}
	jobs := []model.NormalizedJob{
		{Title: "Data Engineer", TechStack: []string{"Python", "SQL"}, Requirements: []string{"python and sql and spark"}, Location: "Pune, India", WorkMode: model.WorkModeRemote, CareerLevel: model.LevelJunior, ExperienceRequired: ptrI(1)},
		{Title: "Senior Go Developer", TechStack: []string{"Go", "Kubernetes", "PostgreSQL", "Redis"}, Location: "Bengaluru, India", WorkMode: model.WorkModeHybrid, CareerLevel: model.LevelSenior, ExperienceRequired: ptrI(5)},
		{Title: "HR Manager", Location: "London", WorkMode: model.WorkModeOnsite},
	}

	for _, p := range profiles {
		for _, j := range jobs {
			s := e.CalculateMatch(p, j)
			sum := s.SkillScore + s.RoleScore + s.LevelScore + s.ExperienceScore + s.LocationScore + s.WorkModeScore
			assert.LessOrEqual(t, s.TotalScore, 100)
			if sum < 100 {
				assert.Equal(t, sum, s.TotalScore)
			}
			assert.NotEmpty(t, s.MatchReasons)
			assert.Equal(t, s, e.CalculateMatch(p, j), "deterministic")
		}
	}
}

func TestSkillScore(t *testing.T) {
	tests := []struct {
		name         string
		skills       map[string]int
		stack        []string
		requirements []string
		want         int
		gaps         []string
	}{
		{name: "no tech stack is neutral", skills: map[string]int{"go": 1}, want: 20, gaps: []string{}},
		{name: "substring both ways", skills: map[string]int{"react": 4, "PostgreSQL": 3}, stack: []string{"React Native", "Postgres"}, want: 40, gaps: []string{}},
		{name: "requirements count again", skills: map[string]int{"go": 4}, stack: []string{"Go", "Docker", "AWS", "Redis"}, requirements: []string{"strong go skills"}, want: 20, gaps: []string{"Docker", "AWS", "Redis"}},
		{name: "capped at forty", skills: map[string]int{"go": 4}, stack: []string{"Go"}, requirements: []string{"go"}, want: 40, gaps: []string{}},
		{name: "blank skills ignored", skills: map[string]int{" ": 5}, stack: []string{"Go"}, want: 0, gaps: []string{"Go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, gaps := skillScore(tt.skills, tt.stack, tt.requirements)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.gaps, gaps)
		})
	}
}

func TestRoleScore(t *testing.T) {
	tests := []struct {
		title string
		roles []string
		want  int
	}{
		{"Backend Engineer", nil, 15},
		{"Backend Engineer", []string{" "}, 15},
		{"Senior Backend Engineer", []string{"backend engineer"}, 20},
		{"Backend Developer", []string{"backend engineer"}, 12},
		{"Frontend Developer", []string{"frontend"}, 20},
		{"Data Analyst", []string{"data engineer", "analyst"}, 20},
		{"QA Lead", []string{"qa automation"}, 12},
		{"HR Manager", []string{"software engineer"}, 5},
		{"", []string{"software engineer"}, 12},
		{"   ", []string{"software engineer"}, 12},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, roleScore(tt.title, tt.roles).score, "%s %v", tt.title, tt.roles)
	}
}

func TestLevelScore(t *testing.T) {
	assert.Equal(t, 15, levelScore(model.LevelMid, model.LevelMid).score)
	assert.Equal(t, 12, levelScore(model.LevelMid, model.LevelSenior).score)
	assert.Equal(t, 8, levelScore(model.LevelFresher, model.LevelLead).score)
	assert.Equal(t, 10, levelScore("", model.LevelLead).score)
	assert.Equal(t, 10, levelScore(model.LevelJunior, "principal").score)
}

func TestExperienceScore(t *testing.T) {
	assert.Equal(t, 7, experienceScore(nil, ptrI(3)).score)
	assert.Equal(t, 7, experienceScore(ptrF(3), nil).score)
	assert.Equal(t, 10, experienceScore(ptrF(0), ptrI(0)).score)
	assert.Equal(t, 10, experienceScore(ptrF(5), ptrI(5)).score)
	assert.Equal(t, 6, experienceScore(ptrF(4), ptrI(5)).score)
	assert.Equal(t, 6, experienceScore(ptrF(4.5), ptrI(5)).score)
	assert.Equal(t, 2, experienceScore(ptrF(0), ptrI(2)).score)
}

func TestLocationScore(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, 7, e.locationScore("", []string{"Pune"}).score)
	assert.Equal(t, 7, e.locationScore("Pune", nil).score)
	assert.Equal(t, 10, e.locationScore("Pune, Maharashtra", []string{"pune"}).score)
	assert.Equal(t, 8, e.locationScore("Chennai, India", []string{"Pune"}).score)
	assert.Equal(t, 3, e.locationScore("Berlin, Germany", []string{"Pune"}).score)

	de := New(Config{CountryKeywords: []string{" Germany "}})
	assert.Equal(t, 8, de.locationScore("Berlin, Germany", []string{"Munich"}).score)
	assert.Equal(t, 3, de.locationScore("Chennai, India", []string{"Munich"}).score)
}

func TestWorkModeScore(t *testing.T) {
	assert.Equal(t, 3, workModeScore("", model.WorkModeRemote).score)
	assert.Equal(t, 3, workModeScore(model.WorkModeRemote, "").score)
	assert.Equal(t, 5, workModeScore(model.WorkModeRemote, model.WorkModeRemote).score)
	assert.Equal(t, 4, workModeScore(model.WorkModeHybrid, model.WorkModeOnsite).score)
	assert.Equal(t, 1, workModeScore(model.WorkModeOnsite, model.WorkModeRemote).score)
}

func TestMatchReasonsFiller(t *testing.T) {
	s := New(Config{}).CalculateMatch(model.UserProfile{
		TargetRoles:     []string{"chef"},
		TargetLocations: []string{"Paris"},
	}, model.NormalizedJob{Title: "Accountant", Location: "Berlin"})

	assert.Equal(t, []string{"Potential opportunity"}, s.MatchReasons)
}

func TestMatchToMultipleJobs_StableDescending(t *testing.T) {
	e := New(Config{})
	profile := model.UserProfile{TargetRoles: []string{"go developer"}}

	jobs := []*model.Job{
		{ID: "1", NormalizedJob: model.NormalizedJob{Title: "Accountant"}},
		{ID: "2", NormalizedJob: model.NormalizedJob{Title: "Go Developer"}},
		{ID: "3", NormalizedJob: model.NormalizedJob{Title: "Cook"}},
		{ID: "4", NormalizedJob: model.NormalizedJob{Title: "Senior Go Developer"}},
	}

	ranked := e.MatchToMultipleJobs(profile, jobs)
	require.Len(t, ranked, 4)

	ids := []string{}
	for _, r := range ranked {
		ids = append(ids, r.Job.ID)
	}
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids)

	filtered := FilterByMinimumScore(ranked, ranked[0].Score.TotalScore)
	assert.Len(t, filtered, 2)
	assert.Empty(t, FilterByMinimumScore(ranked, 101))
}

func TestClassifyMatch(t *testing.T) {
	assert.Equal(t, model.MatchExcellent, ClassifyMatch(80))
	assert.Equal(t, model.MatchGood, ClassifyMatch(79))
	assert.Equal(t, model.MatchGood, ClassifyMatch(65))
	assert.Equal(t, model.MatchOkay, ClassifyMatch(50))
	assert.Equal(t, model.MatchPoor, ClassifyMatch(49))
}
