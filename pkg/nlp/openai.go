package nlp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/donbr/graphrag-platform/pkg/types"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIClient implements Client against the OpenAI chat API or any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(apiKey string, config Config) *OpenAIClient {
	if config.Model == "" {
		config.Model = defaultChatModel
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: convertMessages(messages),
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyChatError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from API")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, NewEmptyResponseError("model returned empty content")
	}

	response := &types.Response{
		Content:      content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

// Close is a no-op for the HTTP-backed client.
func (c *OpenAIClient) Close() error {
	return nil
}

func convertMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func classifyChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return NewRateLimitError(apiErr.Message)
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
