// Package matching scores jobs against a user profile with six additive
// factors: skill 40, role 20, level 15, experience 10, location 10 and
// work mode 5.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/jobintel/internal/model"
)

const (
	maxSkill      = 40
	maxRole       = 20
	maxLevel      = 15
	maxExperience = 10
	maxLocation   = 10
	maxWorkMode   = 5
	maxTotal      = 100

	DefaultMinimumScore = 50
)

var defaultCountryKeywords = []string{"india", "indian"}

type Config struct {
	// CountryKeywords mark a job location as inside the target country.
	CountryKeywords []string
}

// Engine is stateless after construction and safe for concurrent use.
type Engine struct {
	countryKeywords []string
}

func New(cfg Config) *Engine {
	keywords := make([]string, 0, len(cfg.CountryKeywords))
	for _, k := range cfg.CountryKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		keywords = defaultCountryKeywords
	}
	return &Engine{countryKeywords: keywords}
}

// Ranked is a job with its score.
type Ranked struct {
	Job   *model.Job
	Score model.MatchScore
}

type factor struct {
	score       int
	explanation string
}

// CalculateMatch is pure: equal inputs give equal scores.
func (e *Engine) CalculateMatch(p model.UserProfile, job model.NormalizedJob) model.MatchScore {
	skill, matched, gaps := skillScore(p.SkillsRating, job.TechStack, job.Requirements)
	role := roleScore(job.Title, p.TargetRoles)
	level := levelScore(p.CareerLevel, job.CareerLevel)
	exp := experienceScore(p.ExperienceYears, job.ExperienceRequired)
	loc := e.locationScore(job.Location, p.TargetLocations)
	mode := workModeScore(job.WorkMode, p.WorkModePreference)

	total := skill + role.score + level.score + exp.score + loc.score + mode.score
	if total > maxTotal {
		total = maxTotal
	}

	breakdown := []string{
		fmt.Sprintf("Skill match: %d/%d (matched %d of %d)", skill, maxSkill, matched, len(job.TechStack)),
		fmt.Sprintf("Role match: %d/%d (%s)", role.score, maxRole, role.explanation),
		fmt.Sprintf("Level match: %d/%d (%s)", level.score, maxLevel, level.explanation),
		fmt.Sprintf("Experience: %d/%d (%s)", exp.score, maxExperience, exp.explanation),
		fmt.Sprintf("Location: %d/%d (%s)", loc.score, maxLocation, loc.explanation),
		fmt.Sprintf("Work mode: %d/%d (%s)", mode.score, maxWorkMode, mode.explanation),
	}

	var reasons []string
	if skill >= 30 {
		reasons = append(reasons, "Strong skill alignment")
	}
	if role.score == maxRole {
		reasons = append(reasons, "Perfect role match")
	}
	if mode.score == maxWorkMode {
		reasons = append(reasons, "Work mode preference match")
	}
	if loc.score >= 8 {
		reasons = append(reasons, "Location preference match")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Potential opportunity")
	}

	return model.MatchScore{
		TotalScore:      total,
		SkillScore:      skill,
		RoleScore:       role.score,
		LevelScore:      level.score,
		ExperienceScore: exp.score,
		LocationScore:   loc.score,
		WorkModeScore:   mode.score,
		Breakdown:       breakdown,
		MatchReasons:    reasons,
		SkillGaps:       gaps,
	}
}

// skillScore counts a tech stack entry as matched when it and a user skill
// contain one another, and then counts every user skill found in the
// requirements text once more. Both counts go against the tech stack size.
func skillScore(skills map[string]int, techStack, requirements []string) (score, matched int, gaps []string) {
	gaps = []string{}
	if len(techStack) == 0 {
		return maxSkill / 2, 0, gaps
	}

	names := make([]string, 0, len(skills))
	for s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			names = append(names, s)
		}
	}
	sort.Strings(names)

	for _, tech := range techStack {
		t := strings.ToLower(tech)
		found := false
		for _, s := range names {
			if strings.Contains(s, t) || strings.Contains(t, s) {
				found = true
				break
			}
		}
		if found {
			matched++
		} else {
			gaps = append(gaps, tech)
		}
	}

	reqText := strings.ToLower(strings.Join(requirements, " "))
	for _, s := range names {
		if strings.Contains(reqText, s) {
			matched++
		}
	}

	score = int(math.Round(float64(matched) / float64(len(techStack)) * maxSkill))
	if score > maxSkill {
		score = maxSkill
	}
	return score, matched, gaps
}

func roleScore(title string, roles []string) factor {
	t := strings.ToLower(strings.TrimSpace(title))
	// An empty title has an empty first word, which every role contains.
	var firstWord string
	if words := strings.Fields(t); len(words) > 0 {
		firstWord = words[0]
	}

	best := 0
	for _, role := range roles {
		r := strings.ToLower(strings.TrimSpace(role))
		if r == "" {
			continue
		}
		if strings.Contains(t, r) {
			best = maxRole
			break
		}
		roleWord := strings.Fields(r)[0]
		if strings.Contains(t, roleWord) || strings.Contains(r, firstWord) {
			best = max(best, 12)
		}
	}

	switch best {
	case 0:
		if len(nonBlank(roles)) == 0 {
			return factor{15, "no target roles specified"}
		}
		return factor{5, "no role match: " + title}
	case maxRole:
		return factor{best, "exact role match"}
	default:
		return factor{best, "partial role match: " + title}
	}
}

func levelScore(user, job model.CareerLevel) factor {
	u, uok := user.Ordinal()
	j, jok := job.Ordinal()
	if !uok || !jok {
		return factor{10, "level information not available"}
	}

	diff := u - j
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return factor{maxLevel, "perfect level match"}
	case 1:
		return factor{12, fmt.Sprintf("level: user=%s, job=%s", user, job)}
	default:
		return factor{8, fmt.Sprintf("level: user=%s, job=%s", user, job)}
	}
}

// experienceScore treats nil as missing; zero years is a real value.
func experienceScore(userYears *float64, required *int) factor {
	if userYears == nil || required == nil {
		return factor{7, "experience information not available"}
	}

	years := strconv.FormatFloat(*userYears, 'f', -1, 64)
	diff := *userYears - float64(*required)
	switch {
	case diff >= 0:
		return factor{maxExperience, fmt.Sprintf("sufficient experience: user=%syrs, required=%dyrs", years, *required)}
	case diff >= -1:
		return factor{6, fmt.Sprintf("close to requirement: user=%syrs, required=%dyrs", years, *required)}
	default:
		return factor{2, fmt.Sprintf("below requirement: user=%syrs, required=%dyrs", years, *required)}
	}
}

func (e *Engine) locationScore(location string, targets []string) factor {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return factor{7, "job location not specified"}
	}

	targets = nonBlank(targets)
	if len(targets) == 0 {
		return factor{7, "no location preferences set"}
	}

	for _, target := range targets {
		if strings.Contains(loc, strings.ToLower(target)) {
			return factor{maxLocation, "location match: " + location}
		}
	}
	for _, k := range e.countryKeywords {
		if strings.Contains(loc, k) {
			return factor{8, "in target country: " + location}
		}
	}
	return factor{3, "location mismatch: " + location}
}

func workModeScore(job, preference model.WorkMode) factor {
	if job == "" {
		return factor{3, "work mode not specified"}
	}
	if preference == "" {
		return factor{3, "no work mode preference"}
	}

	j := strings.ToLower(string(job))
	if j == strings.ToLower(string(preference)) {
		return factor{maxWorkMode, "work mode match: " + j}
	}
	if model.WorkMode(j) == model.WorkModeHybrid {
		return factor{4, "flexible option: hybrid"}
	}
	return factor{1, fmt.Sprintf("mismatch: job=%s, preference=%s", job, preference)}
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// MatchToMultipleJobs scores every job and sorts by total score, highest
// first. Jobs with equal scores keep their input order.
func (e *Engine) MatchToMultipleJobs(p model.UserProfile, jobs []*model.Job) []Ranked {
	ranked := make([]Ranked, 0, len(jobs))
	for _, job := range jobs {
		ranked = append(ranked, Ranked{Job: job, Score: e.CalculateMatch(p, job.NormalizedJob)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.TotalScore > ranked[j].Score.TotalScore
	})
	return ranked
}

// FilterByMinimumScore keeps matches scoring at least minimum.
func FilterByMinimumScore(ranked []Ranked, minimum int) []Ranked {
	out := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Score.TotalScore >= minimum {
			out = append(out, r)
		}
	}
	return out
}

func ClassifyMatch(total int) model.MatchType {
	switch {
	case total >= 80:
		return model.MatchExcellent
	case total >= 65:
		return model.MatchGood
	case total >= DefaultMinimumScore:
		return model.MatchOkay
	default:
		return model.MatchPoor
	}
}
