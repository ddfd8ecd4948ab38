package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	resp    LLMResponse
	err     error
	lastReq LLMRequest
	calls   int
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return s.resp, nil
}

func TestLLMAnalyzerNormalizesModelOutput(t *testing.T) {
	client := &stubLLM{resp: LLMResponse{Text: `Sure! {"intent":"PURCHASE_INTENT","sentiment":"happy","confidence":1.7,
		"urgencyIndicators":[" Today "],
		"buyingSignals":["buy now",{"category":"price_conscious","keyword":"Discount"},"random words"],
		"contactInfo":{"name":"Ana","phone":"0917 123 4567","email":""},
		"orderDetails":{"quantity":"3","variant":"","address":""},
		"mentionedProducts":["tea tree oil"]} hope that helps`}}

	a, err := NewLLMAnalyzer(client, "", nil).Analyze(context.Background(), "I want the diffuser too", testBusiness())
	require.NoError(t, err)

	assert.Equal(t, IntentPurchase, a.Intent)
	assert.Equal(t, SentimentNeutral, a.Sentiment)
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, SourceLLM, a.Source)
	assert.Equal(t, []string{"today"}, a.UrgencyIndicators)
	assert.Equal(t, []BuyingSignal{
		{Category: SignalPurchaseReady, Keyword: "buy now"},
		{Category: SignalPriceConscious, Keyword: "discount"},
	}, a.BuyingSignals)
	require.NotNil(t, a.ContactInfo)
	assert.Equal(t, "Ana", a.ContactInfo.Name)
	assert.Equal(t, "+639171234567", a.ContactInfo.Phone)
	require.NotNil(t, a.OrderDetails)
	assert.Equal(t, 3, a.OrderDetails.Quantity)

	require.Len(t, a.MentionedProducts, 2)
	assert.Equal(t, "tea", a.MentionedProducts[0].ID)
	assert.Equal(t, "dif", a.MentionedProducts[1].ID)

	assert.Equal(t, analysisSystemPrompt, client.lastReq.System[0])
	assert.Contains(t, client.lastReq.System[1], "Lavender Oil")
	assert.EqualValues(t, 500, client.lastReq.MaxTokens)
	assert.InDelta(t, 0.1, float64(client.lastReq.Temperature), 1e-6)
	require.Len(t, client.lastReq.Messages, 1)
	assert.Contains(t, client.lastReq.Messages[0].Content, "I want the diffuser too")
}

func TestLLMAnalyzerDropsEmptyBlocks(t *testing.T) {
	client := &stubLLM{resp: LLMResponse{Text: `{"intent":"greeting","sentiment":"positive","confidence":0.9,"contactInfo":{"name":"","phone":"","email":""},"orderDetails":{"quantity":null}}`}}

	a, err := NewLLMAnalyzer(client, "", nil).Analyze(context.Background(), "hello!", testBusiness())
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, a.Intent)
	assert.Nil(t, a.ContactInfo)
	assert.Nil(t, a.OrderDetails)
	assert.Empty(t, a.MentionedProducts)
}

func TestLLMAnalyzerFailuresWrapAnalysisFailed(t *testing.T) {
	upstream := errors.New("503 from provider")
	_, err := NewLLMAnalyzer(&stubLLM{err: upstream}, "", nil).Analyze(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorIs(t, err, upstream)

	_, err = NewLLMAnalyzer(&stubLLM{resp: LLMResponse{Text: "I cannot answer that"}}, "", nil).Analyze(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrAnalysisFailed)

	_, err = NewLLMAnalyzer(&stubLLM{resp: LLMResponse{Text: `{"intent": }`}}, "", nil).Analyze(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestNewLLMAnalyzerPanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { NewLLMAnalyzer(nil, "", nil) })
}
