package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spigell/jobintel/internal/model"
)

// Technology is a canonical name and the lower-case variants that identify it.
// When Variants is empty the lower-cased name is used.
type Technology struct {
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants,omitempty"`
}

// TechCategory groups technologies for reporting.
type TechCategory struct {
	Name         string       `yaml:"name"`
	Technologies []Technology `yaml:"technologies"`
}

// LevelRule maps keywords to a career level. Rules are checked in order.
type LevelRule struct {
	Level    model.CareerLevel `yaml:"level"`
	Keywords []string          `yaml:"keywords"`
}

type DomainRule struct {
	Domain   model.Domain `yaml:"domain"`
	Keywords []string     `yaml:"keywords"`
}

type WorkModeRule struct {
	Mode     model.WorkMode `yaml:"mode"`
	Keywords []string       `yaml:"keywords"`
}

// Vocabulary holds every keyword table used for inference. Blobs are padded
// with a space on each side, so variants may use spaces as word boundaries.
type Vocabulary struct {
	TechStack      []TechCategory    `yaml:"tech-stack"`
	CareerLevels   []LevelRule       `yaml:"career-levels"`
	DefaultLevel   model.CareerLevel `yaml:"default-level"`
	Domains        []DomainRule      `yaml:"domains"`
	WorkModes      []WorkModeRule    `yaml:"work-modes"`
	CampusKeywords []string          `yaml:"campus-keywords"`
}

func tech(name string, variants ...string) Technology {
	return Technology{Name: name, Variants: variants}
}

// DefaultVocabulary returns the built-in tables.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		TechStack: []TechCategory{
			{Name: "frontend", Technologies: []Technology{
				tech("React"), tech("Vue"), tech("Angular"), tech("Next.js"), tech("Svelte"),
				tech("Ember", "ember.js", " ember "), tech("TypeScript"), tech("JavaScript"),
			}},
			{Name: "backend", Technologies: []Technology{
				tech("Node.js", "node.js", "nodejs"), tech("Python"), tech("Java"),
				tech("Go", "golang", " go ", " go,", " go/", "(go)"), tech("Rust"), tech("PHP"), tech("C#"),
				tech("Ruby"), tech("Express"), tech("Django"), tech("Spring"),
			}},
			{Name: "database", Technologies: []Technology{
				tech("MongoDB"), tech("PostgreSQL", "postgresql", "postgres"), tech("MySQL"), tech("Redis"),
				tech("DynamoDB"), tech("Cassandra"), tech("Firebase"), tech("Mongoose"),
			}},
			{Name: "cloud", Technologies: []Technology{
				tech("AWS"), tech("Azure"), tech("GCP"), tech("Heroku"), tech("DigitalOcean"),
				tech("Linode"), tech("Lambda"),
			}},
			{Name: "devops", Technologies: []Technology{
				tech("Docker"), tech("Kubernetes"), tech("Jenkins"), tech("GitLab CI"),
				tech("GitHub Actions"), tech("Terraform"), tech("Ansible"),
			}},
			{Name: "mobile", Technologies: []Technology{
				tech("React Native"), tech("Flutter"), tech("Ionic"), tech("Swift"), tech("Kotlin"),
				tech("Expo", " expo "),
			}},
		},
		CareerLevels: []LevelRule{
			{model.LevelFresher, []string{"fresher", "graduate", "entry level", "no experience required", "0 experience"}},
			{model.LevelJunior, []string{"junior developer", "junior engineer", "1 year", "2 year", "entry level"}},
			{model.LevelMid, []string{"mid level", "mid-level", "intermediate", "3 year", "4 year", "5 year"}},
			{model.LevelSenior, []string{"senior developer", "senior engineer", "lead", "5+ year", "6 year", "7 year", "10+ year"}},
			{model.LevelLead, []string{"technical lead", "engineering lead", "architect", "staff engineer"}},
		},
		DefaultLevel: model.LevelJunior,
		Domains: []DomainRule{
			{model.DomainSoftware, []string{"software engineer", "developer", "backend", "frontend", "full stack", "web developer"}},
			{model.DomainData, []string{"data engineer", "data scientist", "analytics", "ml engineer", "ai engineer", "analytics engineer"}},
			{model.DomainCloud, []string{"cloud engineer", "devops", "aws", "azure", "gcp", "kubernetes", "docker", "infrastructure"}},
			{model.DomainMobile, []string{"mobile developer", "react native", "flutter", "ios", "android", "app developer"}},
			{model.DomainQA, []string{"qa engineer", "test engineer", "automation tester", "quality assurance", "qa automation"}},
			{model.DomainNonTech, []string{"product manager", "sales", "marketing", "operations", " hr ", "business analyst"}},
		},
		WorkModes: []WorkModeRule{
			{model.WorkModeRemote, []string{"remote", "work from home", "wfh", "virtual"}},
			{model.WorkModeOnsite, []string{"onsite", "on-site", "office", "in-office"}},
			{model.WorkModeHybrid, []string{"hybrid", "flexible"}},
		},
		CampusKeywords: []string{"batch", "placement drive", "campus", "engineering student", "final year"},
	}
}

func (t Technology) variants() []string {
	if len(t.Variants) > 0 {
		return t.Variants
	}
	return []string{lower(t.Name)}
}

// LoadVocabulary reads tables from a YAML file. Sections missing from the
// file keep their built-in values.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}

	v := DefaultVocabulary()
	if len(override.TechStack) > 0 {
		v.TechStack = override.TechStack
	}
	if len(override.CareerLevels) > 0 {
		v.CareerLevels = override.CareerLevels
	}
	if override.DefaultLevel != "" {
		v.DefaultLevel = override.DefaultLevel
	}
	if len(override.Domains) > 0 {
		v.Domains = override.Domains
	}
	if len(override.WorkModes) > 0 {
		v.WorkModes = override.WorkModes
	}
	if len(override.CampusKeywords) > 0 {
		v.CampusKeywords = override.CampusKeywords
	}

	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Validate rejects tables referring to unknown categories.
func (v *Vocabulary) Validate() error {
	if !v.DefaultLevel.Valid() {
		return fmt.Errorf("unknown default level %q", v.DefaultLevel)
	}
	for _, r := range v.CareerLevels {
		if !r.Level.Valid() {
			return fmt.Errorf("unknown career level %q", r.Level)
		}
	}
	for _, r := range v.Domains {
		if !r.Domain.Valid() {
			return fmt.Errorf("unknown domain %q", r.Domain)
		}
	}
	for _, r := range v.WorkModes {
		if !r.Mode.Valid() {
			return fmt.Errorf("unknown work mode %q", r.Mode)
		}
	}
	return nil
}
