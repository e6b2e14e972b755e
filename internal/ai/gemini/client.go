package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/nanny-match/internal/ai"
	"github.com/spigell/nanny-match/internal/logger"
)

const (
	defaultModel    = "gemini-2.5-flash"
	jsonContentType = "application/json"
)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based
// interactions. It performs exactly one call per prompt.
type Generator struct {
	models    modelsAPI
	modelName string
	schema    *genai.Schema
	logger    *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
// When schema is non-nil the model is asked for application/json output
// shaped by it.
func NewGenerator(ctx context.Context, apiKey, model string, schema *genai.Schema, log *zap.Logger) (*Generator, error) {
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

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		models:    client.Models,
		modelName: model,
		schema:    schema,
		logger:    logger.WithCommonFields(log, ai.ProviderGemini, model),
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the concatenated
// textual parts of the response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var config *genai.GenerateContentConfig
	if g.schema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: jsonContentType,
			ResponseSchema:   g.schema,
		}
	}

	g.logger.Debug("gemini generate content", zap.Int("prompt_length", utf8.RuneCountInString(prompt)))

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
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

// MatchResultSchema describes {matchScore: int, recommendations: string[3]}.
func MatchResultSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"matchScore": {
				Type:        genai.TypeInteger,
				Description: "Overall compatibility from 0 to 100.",
			},
			"recommendations": {
				Type:        genai.TypeArray,
				Description: "Exactly three short recommendations for the family.",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"matchScore", "recommendations"},
	}
}
