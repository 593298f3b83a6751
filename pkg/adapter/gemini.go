package adapter

import (
	"context"
	"encoding/json"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Provider is the external generation provider boundary. Failures are
// surfaced as ErrProvider, never substituted with a fabricated answer.
type Provider interface {
	Generate(ctx context.Context, prompt string) (*model.Generation, error)
}

// Gemini is the combined generation + embedding contract implemented by
// the Vertex AI client.
type Gemini interface {
	Provider
	Embed(ctx context.Context, text string, dim int32) ([]float32, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// generationSchema constrains the model to a JSON object carrying the
// answer text and a self-reported confidence.
var generationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer": {
			Type:        genai.TypeString,
			Description: "The answer to the question, grounded in the provided documents",
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "Confidence in the answer between 0.0 and 1.0",
		},
	},
	Required: []string{"answer", "confidence"},
}

// Generate runs one structured generation call.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (*model.Generation, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   generationSchema,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(model.ErrProvider, "generation request failed", goerr.V("cause", err.Error()))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.Wrap(model.ErrProvider, "empty response from model")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	var out struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, goerr.Wrap(model.ErrProvider, "malformed structured response", goerr.V("raw", text))
	}

	return &model.Generation{
		Text:       out.Answer,
		Confidence: clamp01(out.Confidence),
	}, nil
}

// Embed generates a vector of the requested dimensionality.
func (g *GeminiClient) Embed(ctx context.Context, text string, dim int32) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, goerr.Wrap(model.ErrProvider, "embedding request failed", goerr.V("cause", err.Error()))
	}
	if len(resp.Embeddings) == 0 {
		return nil, goerr.Wrap(model.ErrProvider, "empty embedding response")
	}

	return resp.Embeddings[0].Values, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
