package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mira/outfitadvisor/internal/domain"
	"github.com/mira/outfitadvisor/internal/prompts"
)

// CompletionService asks a vision-capable completion model for clothing
// suggestions. The reply is a JSON object with the three option keys; key
// presence is validated by the caller, not here.
type CompletionService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// CompletionConfig holds configuration for the completion service.
type CompletionConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewCompletionService creates a completion client for an OpenAI-compatible
// chat completions endpoint.
func NewCompletionService(cfg *CompletionConfig) *CompletionService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	return &CompletionService{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (s *CompletionService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GetOptions sends the garment image and the user question to the model and
// parses the reply into three labeled options. A reply that is not valid
// JSON fails with domain.ErrMalformedResponse; transport and API failures
// fail with domain.ErrUpstream.
func (s *CompletionService) GetOptions(ctx context.Context, imageData []byte, question string) (*domain.RecommendationOptions, error) {
	base64Image := base64.StdEncoding.EncodeToString(imageData)
	dataURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64Image)

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.StylistSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					chatImageContent{
						Type:     "image_url",
						ImageURL: chatImageURL{URL: dataURL},
					},
					chatTextContent{
						Type: "text",
						Text: prompts.StylistUserPrompt(question),
					},
				},
			},
		},
		MaxTokens:      300,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, fmt.Errorf("%w: completion API call failed: %v", domain.ErrUpstream, err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: completion API HTTP %d: %s", domain.ErrUpstream, httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: completion API HTTP %d: %s", domain.ErrUpstream, httpResp.StatusCode(), string(httpResp.Body()))
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%w: completion API error: %s", domain.ErrUpstream, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion response", domain.ErrUpstream)
	}

	return parseOptions(resp.Choices[0].Message.Content)
}

// parseOptions decodes the model reply into RecommendationOptions. Models
// occasionally wrap JSON in markdown fences despite the json_object response
// format, so fences are stripped before decoding.
func parseOptions(content string) (*domain.RecommendationOptions, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var options domain.RecommendationOptions
	if err := json.Unmarshal([]byte(cleaned), &options); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return &options, nil
}
