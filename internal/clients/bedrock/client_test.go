package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	lastConverse *bedrockruntime.ConverseInput
	lastInvoke   *bedrockruntime.InvokeModelInput
	converseOut  *bedrockruntime.ConverseOutput
	invokeOut    *bedrockruntime.InvokeModelOutput
	err          error
}

func (f *fakeRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastConverse = params
	return f.converseOut, f.err
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInvoke = params
	return f.invokeOut, f.err
}

func TestConverse(t *testing.T) {
	fake := &fakeRuntime{
		converseOut: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: `{"institutional_bias":"NEUTRAL"}`},
					},
				},
			},
			Usage: &types.TokenUsage{
				InputTokens:  aws.Int32(120),
				OutputTokens: aws.Int32(15),
			},
		},
	}
	client := NewClientWithAPI(fake, zerolog.Nop())

	resp, err := client.Converse(context.Background(), ModelHaiku, "system prompt", "classify this", 200, 0.1)
	require.NoError(t, err)
	assert.Equal(t, `{"institutional_bias":"NEUTRAL"}`, resp.Content)
	assert.Equal(t, ModelHaiku, resp.Model)
	assert.Equal(t, int32(120), resp.InputTokens)
	assert.Equal(t, int32(15), resp.OutputTokens)

	require.NotNil(t, fake.lastConverse)
	assert.Equal(t, ModelHaiku, *fake.lastConverse.ModelId)
	require.Len(t, fake.lastConverse.System, 1)
	sys, ok := fake.lastConverse.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "system prompt", sys.Value)
}

func TestConverse_Unavailable(t *testing.T) {
	client := NewClient(context.Background(), "us-east-1", "", "", false, zerolog.Nop())
	assert.False(t, client.Available())

	_, err := client.Converse(context.Background(), ModelHaiku, "", "prompt", 100, 0)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbed(t *testing.T) {
	fake := &fakeRuntime{
		invokeOut: &bedrockruntime.InvokeModelOutput{
			Body: []byte(`{"embedding":[0.1,0.2,0.3]}`),
		},
	}
	client := NewClientWithAPI(fake, zerolog.Nop())

	vec, err := client.Embed(context.Background(), "Market conditions on 2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)

	require.NotNil(t, fake.lastInvoke)
	assert.Equal(t, ModelTitanEmbed, *fake.lastInvoke.ModelId)
	assert.Contains(t, string(fake.lastInvoke.Body), `"dimensions":512`)
	assert.Contains(t, string(fake.lastInvoke.Body), `"normalize":true`)
}

func TestEmbed_EmptyVector(t *testing.T) {
	fake := &fakeRuntime{
		invokeOut: &bedrockruntime.InvokeModelOutput{Body: []byte(`{"embedding":[]}`)},
	}
	client := NewClientWithAPI(fake, zerolog.Nop())

	_, err := client.Embed(context.Background(), "text")
	assert.Error(t, err)
}
