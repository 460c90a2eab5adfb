package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/ai"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

//go:embed profile_prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	minSkillRating      = 1
	maxSkillRating      = 5
)

var _ ai.ProfileExtractor = (*Extractor)(nil)

type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (e *Extractor) ExtractProfile(ctx context.Context, resume string) (*model.UserProfile, error) {
	resume = strings.TrimSpace(resume)
	if resume == "" {
		return nil, errors.New("resume text must not be empty")
	}

	prompt := buildPrompt(resume)

	e.logger.Debug("gemini profile extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini profile extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return parseProfile(raw)
}

func buildPrompt(resume string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{RESUME}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{RESUME}}", resume)
}

func parseProfile(raw string) (*model.UserProfile, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	p := &model.UserProfile{
		TargetRoles:        coerceStrings(data["targetRoles"]),
		TargetLocations:    coerceStrings(data["targetLocations"]),
		TargetTechStack:    coerceStrings(data["targetTechStack"]),
		CareerLevel:        model.ParseCareerLevel(coerceString(data["careerLevel"])),
		WorkModePreference: model.ParseWorkMode(coerceString(data["workModePreference"])),
		SkillsRating:       map[string]int{},
	}

	for _, d := range coerceStrings(data["targetDomains"]) {
		if domain := model.ParseDomain(d); domain != "" {
			p.TargetDomains = append(p.TargetDomains, domain)
		}
	}

	if years := coerceFloat(data["experienceYears"]); !math.IsNaN(years) && years >= 0 {
		p.ExperienceYears = &years
	}

	if skills, ok := data["skillsRating"].(map[string]any); ok {
		for name, v := range skills {
			name = strings.ToLower(strings.TrimSpace(name))
			rating := coerceFloat(v)
			if name == "" || math.IsNaN(rating) {
				continue
			}
			p.SkillsRating[name] = min(max(int(math.Round(rating)), minSkillRating), maxSkillRating)
		}
	}

	if len(p.TargetRoles) == 0 && len(p.SkillsRating) == 0 {
		return nil, errors.New("gemini response has neither target roles nor skills")
	}

	return p, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// coerceStrings accepts a JSON array or a comma separated string.
func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return utils.SplitList([]string{val})
	default:
		return nil
	}
}
