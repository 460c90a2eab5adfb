// Package profile loads user profiles from YAML or JSON files.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobintel/internal/model"
)

var validate = validator.New()

// Load reads a profile file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*model.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	p, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and normalizes a profile. Unknown fields are rejected.
func Parse(data []byte, isJSON bool) (*model.UserProfile, error) {
	var p model.UserProfile
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := Normalize(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Normalize canonicalizes enum values and skill names in place and checks
// the result.
func Normalize(p *model.UserProfile) error {
	p.TargetRoles = trimAll(p.TargetRoles)
	p.TargetLocations = trimAll(p.TargetLocations)
	p.TargetTechStack = trimAll(p.TargetTechStack)

	domains := make([]model.Domain, 0, len(p.TargetDomains))
	for _, d := range p.TargetDomains {
		parsed := model.ParseDomain(string(d))
		if parsed == "" {
			return fmt.Errorf("unknown target domain %q", d)
		}
		domains = append(domains, parsed)
	}
	p.TargetDomains = domains

	if p.CareerLevel != "" {
		level := model.ParseCareerLevel(string(p.CareerLevel))
		if level == "" {
			return fmt.Errorf("unknown career level %q", p.CareerLevel)
		}
		p.CareerLevel = level
	}

	if p.WorkModePreference != "" {
		mode := model.ParseWorkMode(string(p.WorkModePreference))
		if mode == "" {
			return fmt.Errorf("unknown work mode %q", p.WorkModePreference)
		}
		p.WorkModePreference = mode
	}

	if len(p.SkillsRating) > 0 {
		skills := make(map[string]int, len(p.SkillsRating))
		for name, rating := range p.SkillsRating {
			skills[strings.ToLower(strings.TrimSpace(name))] = rating
		}
		p.SkillsRating = skills
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if len(p.TargetRoles) == 0 && len(p.SkillsRating) == 0 {
		return fmt.Errorf("profile needs target roles or skills")
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
