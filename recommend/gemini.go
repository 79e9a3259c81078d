package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/raushankrgupta/fashionfit/models"
)

const promptTemplate = `
Analyze this virtual try-on image for a %s user.
Evaluate the fit, color contrast with the visible skin tone, and overall aesthetic.
Return a score (0-100) and a helpful fashion advice message.
`

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for a JSON score.
type Gemini struct {
	model  generator
	client *genai.Client
}

// NewGemini creates the client and configures structured JSON output.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":    {Type: genai.TypeNumber},
			"feedback": {Type: genai.TypeString},
		},
		Required: []string{"score", "feedback"},
	}

	return &Gemini{model: model, client: client}, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gemini) Evaluate(ctx context.Context, png []byte, gender models.Gender) (models.AIRecommendation, error) {
	who := string(gender)
	if !gender.IsSet() {
		who = "style-conscious"
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(fmt.Sprintf(promptTemplate, who)),
		genai.ImageData("png", png),
	)
	if err != nil {
		return models.AIRecommendation{}, fmt.Errorf("failed to generate content: %w", err)
	}

	return Parse(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String()
}
