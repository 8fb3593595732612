package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockCompleteMapsRolesAndUsage(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " Palpitations "}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(2), TotalTokens: aws.Int32(14)},
	}}
	client := NewBedrockLLMClient(api)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:  "anthropic.test",
		System: []string{"be brief", " "},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "extra rule"},
			{Role: ChatRoleUser, Content: "my heart flutters"},
		},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Palpitations", resp.Text)
	assert.Equal(t, int32(14), resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	require.NotNil(t, api.input)
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1)
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{}).Complete(context.Background(), LLMRequest{})
	assert.Error(t, err)
}

func TestBedrockCompleteRejectsUnknownRole(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{}).Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.Error(t, err)
}

func TestBedrockCompleteWrapsAPIError(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{err: errors.New("throttled")}).Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestFallbackClient(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("down")}
	secondary := &scriptedLLM{replies: []string{"ok"}}
	c := NewFallbackLLMClient(primary, secondary, nil)

	resp, err := c.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	_, err = NewFallbackLLMClient(primary, nil, nil).Complete(context.Background(), LLMRequest{})
	assert.Error(t, err)
}
