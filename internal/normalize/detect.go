package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/jobintel/internal/model"
)

var experiencePattern = regexp.MustCompile(`(?i)(\d+)\s*\+?\s*(?:years?|yrs?)`)

func lower(s string) string {
	return strings.ToLower(s)
}

// blob pads text so space-delimited variants can match at the edges.
func blob(text string) string {
	return " " + lower(text) + " "
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DetectTechStack returns every technology with a variant present in text,
// in vocabulary order.
func (v *Vocabulary) DetectTechStack(text string) []string {
	text = blob(text)
	found := make([]string, 0)
	seen := make(map[string]struct{})
	for _, category := range v.TechStack {
		for _, t := range category.Technologies {
			if _, ok := seen[t.Name]; ok {
				continue
			}
			if containsAny(text, t.variants()) {
				seen[t.Name] = struct{}{}
				found = append(found, t.Name)
			}
		}
	}
	return found
}

// DetectCareerLevel returns the first level whose keywords occur in text, or
// the default level.
func (v *Vocabulary) DetectCareerLevel(text string) model.CareerLevel {
	text = blob(text)
	for _, rule := range v.CareerLevels {
		if containsAny(text, rule.Keywords) {
			return rule.Level
		}
	}
	return v.DefaultLevel
}

// DetectDomain returns the first matching domain or "" when none match.
func (v *Vocabulary) DetectDomain(text string) model.Domain {
	text = blob(text)
	for _, rule := range v.Domains {
		if containsAny(text, rule.Keywords) {
			return rule.Domain
		}
	}
	return ""
}

// DetectWorkMode returns the first matching work mode or "" when none match.
func (v *Vocabulary) DetectWorkMode(text string) model.WorkMode {
	text = blob(text)
	for _, rule := range v.WorkModes {
		if containsAny(text, rule.Keywords) {
			return rule.Mode
		}
	}
	return ""
}

// IsBatchEligible reports whether the posting targets campus hiring.
func (v *Vocabulary) IsBatchEligible(text string, level model.CareerLevel) bool {
	if level == model.LevelFresher {
		return true
	}
	return containsAny(blob(text), v.CampusKeywords)
}

// ExtractExperience returns the first "<n> years" figure in text.
func ExtractExperience(text string) *int {
	m := experiencePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// Parse quality weights.
const (
	pointsTitle       = 15
	pointsCompany     = 15
	pointsDescription = 15
	pointsTechStack   = 15
	pointsCareerLevel = 15
	pointsDomain      = 15
	pointsURL         = 10
	maxQualityPoints  = pointsTitle + pointsCompany + pointsDescription + pointsTechStack +
		pointsCareerLevel + pointsDomain + pointsURL

	minDescriptionLength = 100
)

// QualityInput lists what parse quality is scored on.
type QualityInput struct {
	HasTitle       bool
	HasCompany     bool
	Description    string
	TechStackCount int
	CareerLevel    model.CareerLevel
	Domain         model.Domain
	HasURL         bool
}

// ScoreParseQuality returns the quality bucket and a 0..100 confidence.
// Postings without a title or company are always low quality.
func ScoreParseQuality(in QualityInput) (model.ParseQuality, int) {
	score := 0
	if in.HasTitle {
		score += pointsTitle
	}
	if in.HasCompany {
		score += pointsCompany
	}
	if len(in.Description) > minDescriptionLength {
		score += pointsDescription
	}
	if in.TechStackCount > 0 {
		score += pointsTechStack
	}
	if in.CareerLevel != "" {
		score += pointsCareerLevel
	}
	if in.Domain != "" {
		score += pointsDomain
	}
	if in.HasURL {
		score += pointsURL
	}

	confidence := int(math.Round(float64(score) / float64(maxQualityPoints) * 100))

	switch {
	case !in.HasTitle || !in.HasCompany:
		return model.QualityLow, confidence
	case confidence >= 80:
		return model.QualityHigh, confidence
	case confidence >= 50:
		return model.QualityMedium, confidence
	default:
		return model.QualityLow, confidence
	}
}
