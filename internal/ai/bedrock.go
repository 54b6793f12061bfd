package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockConfig holds the AWS settings for the Bedrock runtime
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ModelID         string
}

// ModelInvoker is the subset of the Bedrock runtime client used here
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient invokes Anthropic models hosted on AWS Bedrock
type BedrockClient struct {
	invoker ModelInvoker
	modelID string
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
	System           string           `json:"system,omitempty"`
}

type bedrockResponse struct {
	Content []bedrockContent `json:"content"`
}

// NewBedrockClient loads AWS configuration with static credentials and creates the runtime client
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewBedrockClientWithInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID), nil
}

// NewBedrockClientWithInvoker wraps an existing invoker
func NewBedrockClientWithInvoker(invoker ModelInvoker, modelID string) *BedrockClient {
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &BedrockClient{invoker: invoker, modelID: modelID}
}

// Name returns the provider identifier
func (b *BedrockClient) Name() string {
	return ProviderBedrock
}

// Complete invokes the model with the Anthropic Messages body and returns the first text block
func (b *BedrockClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContent{{Type: "text", Text: req.Prompt}}},
		},
		System: req.SystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := b.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", b.wrapError(err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

// wrapError turns a Bedrock API failure into a ProviderError when a status is available
func (b *BedrockClient) wrapError(err error) error {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		msg := err.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.ErrorMessage()
		}
		return classifyStatus(ProviderBedrock, respErr.HTTPStatusCode(), msg)
	}
	return fmt.Errorf("bedrock invoke failed: %w", err)
}
