// Package gemini scores decisions with Google's Gemini models. It implements
// analysis.Gateway directly and also backs the local scoring server.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/media"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator is the part of the genai client the scorer uses.
// *genai.Models implements it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Scorer talks to Gemini.
type Scorer struct {
	gen   Generator
	model string
	log   zerolog.Logger
}

var _ analysis.Gateway = (*Scorer)(nil)

// New creates a Scorer backed by the Gemini API.
func New(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*Scorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return NewWithGenerator(client.Models, model, logger), nil
}

// NewWithGenerator creates a Scorer around an existing generator.
func NewWithGenerator(gen Generator, model string, logger zerolog.Logger) *Scorer {
	if model == "" {
		model = DefaultModel
	}
	return &Scorer{gen: gen, model: model, log: logger}
}

// Model returns the model name.
func (s *Scorer) Model() string {
	return s.model
}

// analysisSchema constrains the model's answer to the analyze response shape.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"result": {
			Type:        genai.TypeString,
			Description: "Brief qualitative analysis of the financial, time and health impacts.",
		},
		"isOngoingActivity": {
			Type:        genai.TypeBoolean,
			Description: "True when the decision is an activity repeated over time, such as a daily habit.",
		},
	},
	Required:         []string{"result", "isOngoingActivity"},
	PropertyOrdering: []string{"result", "isOngoingActivity"},
}

// AnalyzeText asks the model for an analysis and an ongoing-activity
// classification.
func (s *Scorer) AnalyzeText(ctx context.Context, text string) (analysis.Result, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(analysis.AnalysisPrompt(text), genai.RoleUser),
	}

	resp, err := s.gen.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	})
	if err != nil {
		return analysis.Result{}, classify(err)
	}

	raw := strings.TrimSpace(resp.Text())
	s.log.Debug().Ctx(ctx).Int("bytes", len(raw)).Msg("gemini analysis")

	var out analysis.AnalyzeResponse
	if err := json.Unmarshal([]byte(stripFence(raw)), &out); err != nil {
		return analysis.Result{}, analysis.ServerErrorf("model returned invalid JSON: %v", err)
	}
	return out.Normalize()
}

// VerifyImage sends the photo with the verification prompt.
func (s *Scorer) VerifyImage(ctx context.Context, image, prompt string) (analysis.Verification, error) {
	mime, data, err := media.ParseDataURI(image)
	if err != nil {
		return analysis.Verification{}, fmt.Errorf("%w: verification image: %w", analysis.ErrServer, err)
	}
	if !media.IsImage(mime) {
		return analysis.Verification{}, fmt.Errorf("%w: verification image: %w: %s", analysis.ErrServer, media.ErrNotImage, mime)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mime),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := s.gen.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return analysis.Verification{}, classify(err)
	}

	s.log.Debug().Ctx(ctx).Str("mime", mime).Int("image_bytes", len(data)).Msg("gemini verification")
	return analysis.VerifyResponse{Result: strings.TrimSpace(resp.Text())}.Normalize()
}

// classify maps API errors to ErrServer and everything else to ErrNetwork.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return analysis.NetworkError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return analysis.ServerErrorf("gemini %d %s: %s", apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return analysis.NetworkError(err)
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	s, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
