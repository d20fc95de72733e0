package llm

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

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(4),
			TotalTokens:  aws.Int32(16),
		},
	}
}

func TestBedrockClientComplete(t *testing.T) {
	api := &fakeConverse{out: textOutput("  {\"phone\":\"555\"}  ")}
	client := NewBedrockClient(api, "anthropic.test-model")

	resp, err := client.Complete(context.Background(), Request{
		System: []string{"extract fields", " "},
		Messages: []Message{
			{Role: RoleSystem, Content: "json only"},
			{Role: RoleUser, Content: "my phone is 555"},
		},
		MaxTokens:   256,
		Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"phone":"555"}`, resp.Text)
	assert.Equal(t, int32(16), resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.test-model", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1)
	require.NotNil(t, api.input.InferenceConfig)
	assert.Equal(t, int32(256), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockClientRequestModelOverrides(t *testing.T) {
	api := &fakeConverse{out: textOutput("ok")}
	client := NewBedrockClient(api, "default-model")
	_, err := client.Complete(context.Background(), Request{
		Model:       "override-model",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "override-model", aws.ToString(api.input.ModelId))
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockClientErrors(t *testing.T) {
	ctx := context.Background()
	msgs := []Message{{Role: RoleUser, Content: "hi"}}

	_, err := NewBedrockClient(&fakeConverse{}, "").Complete(ctx, Request{Messages: msgs})
	assert.Error(t, err, "missing model id")

	_, err = NewBedrockClient(&fakeConverse{out: textOutput("x")}, "m").Complete(ctx, Request{Messages: []Message{{Role: "tool", Content: "x"}}})
	assert.Error(t, err, "unsupported role")

	_, err = NewBedrockClient(&fakeConverse{out: textOutput("x")}, "m").Complete(ctx, Request{})
	assert.Error(t, err, "no messages")

	boom := errors.New("throttled")
	_, err = NewBedrockClient(&fakeConverse{err: boom}, "m").Complete(ctx, Request{Messages: msgs})
	assert.ErrorIs(t, err, boom)

	_, err = NewBedrockClient(&fakeConverse{out: textOutput("   ")}, "m").Complete(ctx, Request{Messages: msgs})
	assert.Error(t, err, "blank text")

	_, err = NewBedrockClient(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "m").Complete(ctx, Request{Messages: msgs})
	assert.Error(t, err, "missing output")
}

func TestNewBedrockClientPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewBedrockClient(nil, "m") })
}
