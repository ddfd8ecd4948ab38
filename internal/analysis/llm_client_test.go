package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatClient struct {
	response openai.ChatCompletionResponse
	err      error
	lastReq  openai.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return s.response, nil
}

func TestOpenAIClientComplete(t *testing.T) {
	stub := &stubChatClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  {\"intent\":\"greeting\"}  "},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client := NewOpenAIClientWith(stub, "")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System:      []string{"system prompt", "  "},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "hello"}},
		MaxTokens:   500,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"greeting"}`, resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.EqualValues(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, defaultOpenAIModel, stub.lastReq.Model)
	assert.Equal(t, 500, stub.lastReq.MaxTokens)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, stub.lastReq.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, stub.lastReq.Messages[1].Role)
}

func TestOpenAIClientErrors(t *testing.T) {
	_, err := NewOpenAIClientWith(&stubChatClient{err: errors.New("rate limited")}, "gpt-4o").
		Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "rate limited")

	_, err = NewOpenAIClientWith(&stubChatClient{}, "gpt-4o").
		Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "no choices")

	_, err = NewOpenAIClientWith(&stubChatClient{}, "gpt-4o").
		Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: "tool", Content: "hi"}}})
	assert.ErrorContains(t, err, "unsupported role")

	_, err = NewOpenAIClient("", "")
	assert.Error(t, err)
}

type stubConverse struct {
	out     *bedrockruntime.ConverseOutput
	err     error
	lastReq *bedrockruntime.ConverseInput
}

func (s *stubConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastReq = params
	return s.out, s.err
}

func TestBedrockClientComplete(t *testing.T) {
	stub := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " {\"intent\":\"support\"} "}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(7), OutputTokens: aws.Int32(3), TotalTokens: aws.Int32(10)},
	}}
	client := NewBedrockClient(stub, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System:      []string{"classify"},
		Messages:    []ChatMessage{{Role: ChatRoleSystem, Content: "extra"}, {Role: ChatRoleUser, Content: "help"}},
		MaxTokens:   500,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"support"}`, resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.EqualValues(t, 10, resp.Usage.TotalTokens)

	require.NotNil(t, stub.lastReq)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(stub.lastReq.ModelId))
	assert.Len(t, stub.lastReq.System, 2)
	assert.Len(t, stub.lastReq.Messages, 1)
	assert.EqualValues(t, 500, aws.ToInt32(stub.lastReq.InferenceConfig.MaxTokens))
}

func TestBedrockClientRequiresModelAndText(t *testing.T) {
	_, err := NewBedrockClient(&stubConverse{}, "").Complete(context.Background(), LLMRequest{})
	assert.ErrorContains(t, err, "model id is required")

	empty := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{}},
	}}
	_, err = NewBedrockClient(empty, "m").Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "no text content")

	assert.Panics(t, func() { NewBedrockClient(nil, "m") })
}

func TestFallbackLLMClient(t *testing.T) {
	primaryErr := errors.New("primary down")
	primary := &stubLLM{err: primaryErr}
	secondary := &stubLLM{resp: LLMResponse{Text: "ok"}}

	resp, err := NewFallbackLLMClient(primary, secondary, nil).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, secondary.calls)

	_, err = NewFallbackLLMClient(primary, nil, nil).Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, primaryErr)

	fallbackErr := errors.New("secondary down")
	_, err = NewFallbackLLMClient(primary, &stubLLM{err: fallbackErr}, nil).Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, fallbackErr)

	healthy := &stubLLM{resp: LLMResponse{Text: "primary"}}
	unused := &stubLLM{}
	resp, err = NewFallbackLLMClient(healthy, unused, nil).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, unused.calls)
}
