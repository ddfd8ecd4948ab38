package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultOpenAIModel = openai.GPT4oMini

var llmTracer = otel.Tracer("chatcommerce.internal.analysis.llm")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements LLMClient with the OpenAI chat completions API.
type OpenAIClient struct {
	client chatClient
	model  string
}

// NewOpenAIClient builds a client from an API key.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("analysis: openai api key is required")
	}
	return NewOpenAIClientWith(openai.NewClient(apiKey), model), nil
}

// NewOpenAIClientWith wraps an existing chat client.
func NewOpenAIClientWith(client chatClient, model string) *OpenAIClient {
	if client == nil {
		panic("analysis: openai chat client cannot be nil")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{client: client, model: model}
}

// Complete implements LLMClient.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	ctx, span := llmTracer.Start(ctx, "analysis.openai")
	defer span.End()

	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: block})
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content})
		case ChatRoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})
		case ChatRoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content})
		default:
			return LLMResponse{}, fmt.Errorf("analysis: unsupported role %q", msg.Role)
		}
	}

	completion := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		completion.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		completion.Temperature = req.Temperature
	}
	if req.TopP > 0 {
		completion.TopP = req.TopP
	}

	resp, err := c.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		span.RecordError(err)
		return LLMResponse{}, fmt.Errorf("analysis: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("analysis: openai returned no choices")
		span.RecordError(err)
		return LLMResponse{}, err
	}
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("chatcommerce.llm.model", model),
			attribute.Int("chatcommerce.llm.total_tokens", resp.Usage.TotalTokens),
		)
	}

	choice := resp.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
