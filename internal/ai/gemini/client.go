package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/jobintel/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
)

var sleep = utils.WaitFor

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models     contentModels
	modelName  string
	retries    int
	retryDelay time.Duration
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model), nil
}

func newGenerator(models contentModels, model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{
		models:     models,
		modelName:  model,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
// JSON mode asks the model for an application/json response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var config *genai.GenerateContentConfig
	if jsonMode {
		config = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	delay := g.retryDelay
	for attempt := 0; ; attempt++ {
		resp, err = g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
		if err == nil {
			break
		}
		if attempt >= g.retries || !temporary(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return "", fmt.Errorf("generate content: %w", serr)
		}
		delay *= 2
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// temporary reports whether the API error is worth retrying: rate limiting
// and server side failures.
func temporary(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}
