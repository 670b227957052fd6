// Package bedrock wraps the AWS Bedrock runtime for the two LLM touchpoints
// (flow classification, sequence analysis) and Titan text embeddings.
//
// The client is optional at runtime: when disabled or misconfigured every
// call returns ErrUnavailable and callers fall back to their rule-based
// paths. Nothing in the scoring pipeline blocks on an LLM.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"
)

// Model identifiers. Haiku handles the fast flow classification, Nova the
// cheaper sequence narration, Titan the fingerprint embeddings.
const (
	ModelHaiku      = "us.anthropic.claude-3-5-haiku-20241022-v1:0"
	ModelNovaPro    = "amazon.nova-pro-v1:0"
	ModelNovaMicro  = "amazon.nova-micro-v1:0"
	ModelTitanEmbed = "amazon.titan-embed-text-v2:0"
)

// EmbeddingDim is the Titan output dimension requested for fingerprints.
const EmbeddingDim = 512

// ErrUnavailable is returned by every call when the client is disabled.
var ErrUnavailable = errors.New("bedrock client not initialized")

// runtimeAPI is the slice of the Bedrock runtime SDK we use.
// Narrowed to an interface so tests can substitute a fake.
type runtimeAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes Bedrock models.
type Client struct {
	api runtimeAPI
	log zerolog.Logger
}

// NewClient creates a Bedrock client. An explicit key pair pins static
// credentials; empty keys fall through to the default chain. When enabled
// is false or the AWS config cannot be loaded, the returned client reports
// unavailable rather than erroring at construction; the server runs fine
// without it.
func NewClient(ctx context.Context, region, accessKey, secretKey string, enabled bool, log zerolog.Logger) *Client {
	logger := log.With().Str("client", "bedrock").Logger()

	if !enabled {
		logger.Info().Msg("Bedrock disabled, LLM calls will use fallbacks")
		return &Client{log: logger}
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
		awsconfig.WithRetryMaxAttempts(3),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("AWS config load failed, LLM calls will use fallbacks")
		return &Client{log: logger}
	}

	return &Client{
		api: bedrockruntime.NewFromConfig(cfg),
		log: logger,
	}
}

// NewClientWithAPI creates a client with a provided runtime API (for testing).
func NewClientWithAPI(api runtimeAPI, log zerolog.Logger) *Client {
	return &Client{api: api, log: log.With().Str("client", "bedrock").Logger()}
}

// Available reports whether model calls can be attempted.
func (c *Client) Available() bool {
	return c.api != nil
}

// Response is the outcome of a Converse call.
type Response struct {
	Content      string
	Model        string
	InputTokens  int32
	OutputTokens int32
	LatencyMs    int64
}

// Converse sends a single-turn prompt to a model and returns the text reply.
func (c *Client) Converse(ctx context.Context, modelID, system, prompt string, maxTokens int32, temperature float32) (*Response, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	start := time.Now()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("converse failed for %s: %w", modelID, err)
	}

	resp := &Response{
		Model:     modelID,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				resp.Content = text.Value
				break
			}
		}
	}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.InputTokens = *out.Usage.InputTokens
		}
		if out.Usage.OutputTokens != nil {
			resp.OutputTokens = *out.Usage.OutputTokens
		}
	}

	c.log.Debug().
		Str("model", modelID).
		Int32("input_tokens", resp.InputTokens).
		Int32("output_tokens", resp.OutputTokens).
		Int64("latency_ms", resp.LatencyMs).
		Msg("Converse completed")

	return resp, nil
}

// Embed returns a normalized EmbeddingDim-dimensional Titan embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	body, err := json.Marshal(map[string]interface{}{
		"inputText":  text,
		"dimensions": EmbeddingDim,
		"normalize":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(ModelTitanEmbed),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("embed invocation failed: %w", err)
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contained no vector")
	}
	return parsed.Embedding, nil
}
