package snapfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

const (
	// AI backends supported by the categorizer.
	AIBackendOpenAI    = "openai"
	AIBackendAnthropic = "anthropic"
	AIBackendGemini    = "gemini"

	categorizeRequestTimeout = 30 * time.Second
	categorizerMaxTokens     = 512
)

const categorizeSystemPrompt = `You are an asset classification assistant for a personal net-worth tracker.
You are given one holding extracted from a financial statement and the list of
valid (asset_class, asset_subclass) pairs. Pick the single best matching pair.

You must output a JSON object, no Markdown, no extra text.
Required JSON fields:
- asset_class: string, one of the provided classes
- asset_subclass: string, one of the provided subclasses for that class
- confidence: number between 0 and 1
- risk_level: string (low/medium/high)
- expected_return_percentage: number (annualized, conservative estimate)

Rules:
- The (asset_class, asset_subclass) pair MUST be one of the provided pairs.
- If nothing fits well, use the closest "other" pair with low confidence.`

// AICategorizerOptions configures the AI-backed categorizer.
type AICategorizerOptions struct {
	Backend string // openai | anthropic | gemini
	BaseURL string // OpenAI-compatible or Gemini endpoint; ignored for Anthropic
	APIKey  string
	Model   string
	Logger  *slog.Logger
}

// AICategorizer implements Categorizer over an LLM backend.
type AICategorizer struct {
	opts   AICategorizerOptions
	logger *slog.Logger
}

// NewAICategorizer validates the options and builds a categorizer.
func NewAICategorizer(opts AICategorizerOptions) (*AICategorizer, error) {
	opts.Backend = strings.ToLower(strings.TrimSpace(opts.Backend))
	if opts.Backend == "" {
		opts.Backend = AIBackendOpenAI
	}
	switch opts.Backend {
	case AIBackendOpenAI, AIBackendAnthropic, AIBackendGemini:
	default:
		return nil, fmt.Errorf("unsupported ai backend: %s", opts.Backend)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AICategorizer{opts: opts, logger: logger}, nil
}

type categorizePromptInput struct {
	Name          string     `json:"name"`
	CurrentValue  Amount     `json:"current_value"`
	Quantity      *float64   `json:"quantity,omitempty"`
	PurchasePrice *Amount    `json:"purchase_price,omitempty"`
	SourceFile    string     `json:"source_file,omitempty"`
	ValidPairs    [][]string `json:"valid_pairs"`
}

// Categorize implements Categorizer.
func (a *AICategorizer) Categorize(ctx context.Context, asset RawAsset, taxonomy []TaxonomyPair) (*Categorization, error) {
	ctx, cancel := context.WithTimeout(ctx, categorizeRequestTimeout)
	defer cancel()

	input := categorizePromptInput{
		Name:          asset.Name,
		CurrentValue:  asset.CurrentValue,
		Quantity:      asset.Quantity,
		PurchasePrice: asset.PurchasePrice,
		SourceFile:    asset.SourceFile,
	}
	for _, p := range taxonomy {
		input.ValidPairs = append(input.ValidPairs, []string{p.AssetClass, p.AssetSubclass})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal categorize input: %w", err)
	}
	userPrompt := "Classify this holding:\n" + string(payload)

	var content string
	switch a.opts.Backend {
	case AIBackendAnthropic:
		content, err = a.completeAnthropic(ctx, userPrompt)
	case AIBackendGemini:
		content, err = a.completeGemini(ctx, userPrompt)
	default:
		content, err = a.completeOpenAI(ctx, userPrompt)
	}
	if err != nil {
		return nil, err
	}

	var result Categorization
	if err := json.Unmarshal([]byte(cleanupModelJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("parse categorization: %w", err)
	}
	if result.AssetClass == "" || result.AssetSubclass == "" {
		return nil, fmt.Errorf("categorization missing class fields")
	}
	return &result, nil
}

func (a *AICategorizer) completeOpenAI(ctx context.Context, userPrompt string) (string, error) {
	clientOpts := []openaioption.RequestOption{openaioption.WithAPIKey(a.opts.APIKey)}
	if baseURL := strings.TrimSpace(a.opts.BaseURL); baseURL != "" {
		clientOpts = append(clientOpts, openaioption.WithBaseURL(baseURL))
	}
	client := openai.NewClient(clientOpts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(categorizeSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("ai response content is empty")
	}
	return content, nil
}

func (a *AICategorizer) completeAnthropic(ctx context.Context, userPrompt string) (string, error) {
	client := anthropic.NewClient(anthropicoption.WithAPIKey(a.opts.APIKey))

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.opts.Model),
		MaxTokens: categorizerMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: categorizeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message failed: %w", err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		content.WriteString(block.Text)
	}
	result := strings.TrimSpace(content.String())
	if result == "" {
		return "", fmt.Errorf("ai response content is empty")
	}
	return result, nil
}

func (a *AICategorizer) completeGemini(ctx context.Context, userPrompt string) (string, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  a.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(a.opts.BaseURL); baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return "", fmt.Errorf("create gemini client failed: %w", err)
	}

	requestConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: categorizeSystemPrompt}},
		},
		Temperature:      genai.Ptr(float32(0)),
		MaxOutputTokens:  categorizerMaxTokens,
		ResponseMIMEType: "application/json",
	}
	response, err := client.Models.GenerateContent(ctx, a.opts.Model, genai.Text(userPrompt), requestConfig)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	content := strings.TrimSpace(response.Text())
	if content == "" {
		return "", fmt.Errorf("ai response content is empty")
	}
	return content, nil
}

// cleanupModelJSON strips Markdown fences and leading/trailing prose that
// models sometimes wrap around JSON output.
func cleanupModelJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
				lines = lines[:len(lines)-1]
			}
			trimmed = strings.Join(lines, "\n")
		}
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		trimmed = trimmed[start : end+1]
	}
	return strings.TrimSpace(trimmed)
}
