package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is the abstraction over a single language-model provider
type Client interface {
	// Generate produces free-text output for a prompt
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON produces output constrained to JSON where the provider
	// supports it; callers still run the response through ParseProviderResult.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	// Model returns the provider model identifier for auditability
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a provider client for a spec
func NewClient(ctx context.Context, spec ProviderSpec) (Client, error) {
	switch spec.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, spec)
	default:
		return nil, fmt.Errorf("unsupported provider %q", spec.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client
func NewGeminiClient(ctx context.Context, spec ProviderSpec) (*GeminiClient, error) {
	if spec.APIKey == "" {
		return nil, fmt.Errorf("API key is required for provider %s", spec.Name)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(spec.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: spec.Model}, nil
}

// Generate produces free-text output for a prompt
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.4)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractTextFromResponse(resp)
}

// GenerateJSON produces JSON-constrained output for a prompt
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1) // low temperature keeps scores stable
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// Model returns the configured model identifier
func (c *GeminiClient) Model() string {
	return c.model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var out string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", fmt.Errorf("no text parts in response")
	}
	return out, nil
}
