package jobsource

import (
	"strings"

	"github.com/spigell/jobintel/internal/model"
)

// The provider-side guesses are intentionally coarse. Canonical inference
// happens during normalization.
var domainHints = []struct {
	domain   model.Domain
	keywords []string
}{
	{model.DomainMobile, []string{"mobile", "ios", "android"}},
	{model.DomainData, []string{"data", "machine learning", " ml ", " ai "}},
	{model.DomainCloud, []string{"devops", "cloud", "infra", "sre"}},
	{model.DomainQA, []string{"qa", "test"}},
	{model.DomainSoftware, []string{"developer", "engineer", "programmer"}},
}

var techHints = []string{
	"javascript", "typescript", "python", "java", "c++", "c#", "golang", "rust", "kotlin", "swift",
	"react", "vue", "angular", "svelte", "next.js",
	"node.js", "express", "django", "flask", "fastapi", "spring boot", "laravel", "rails",
	"mongodb", "postgresql", "mysql", "redis", "elasticsearch",
	"aws", "gcp", "azure", "docker", "kubernetes", "jenkins",
}

func guessDomain(title string) model.Domain {
	text := " " + strings.ToLower(title) + " "
	for _, hint := range domainHints {
		for _, kw := range hint.keywords {
			if strings.Contains(text, kw) {
				return hint.domain
			}
		}
	}
	return ""
}

func guessTechStack(description string) []string {
	text := strings.ToLower(description)
	var found []string
	for _, tech := range techHints {
		if strings.Contains(text, tech) {
			found = append(found, tech)
		}
	}
	return found
}

func guessWorkMode(text string) model.WorkMode {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "remote"):
		return model.WorkModeRemote
	case strings.Contains(text, "hybrid"):
		return model.WorkModeHybrid
	case strings.Contains(text, "on-site"), strings.Contains(text, "onsite"), strings.Contains(text, "office"):
		return model.WorkModeOnsite
	}
	return ""
}
