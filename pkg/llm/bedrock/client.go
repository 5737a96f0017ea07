// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bedrock implements the ChatProvider interface against AWS
// Bedrock's Converse API.
package bedrock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/teradata-labs/spool/pkg/llm"
	llmtypes "github.com/teradata-labs/spool/pkg/llm/types"
)

const (
	// DefaultModelID uses Claude Sonnet 4.5 with a cross-region inference
	// profile (us.* prefix).
	DefaultModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	// DefaultRegion is used when neither config nor environment name one.
	DefaultRegion = "us-west-2"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
)

// Client implements the ChatProvider interface for AWS Bedrock.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	rateLimiter *llm.RateLimiter
}

// Config holds configuration for the Bedrock client.
type Config struct {
	Region            string // Default: AWS_DEFAULT_REGION, then us-west-2
	AccessKeyID       string // Optional: if not using IAM role/profile
	SecretAccessKey   string // Optional: if not using IAM role/profile
	SessionToken      string // Optional: for temporary credentials
	Profile           string // Optional: AWS profile name from ~/.aws/config
	ModelID           string // Default: AWS_BEDROCK_MODEL_ID, then Claude Sonnet 4.5
	RateLimiterConfig llm.RateLimiterConfig
}

// NewClient creates a new Bedrock client. Credentials resolve from explicit
// keys, a named profile, or the default chain, in that order.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		if envModel := os.Getenv("AWS_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else {
			cfg.ModelID = DefaultModelID
		}
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultRegion
		}
	}

	var (
		awsCfg aws.Config
		err    error
	)
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	case cfg.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var rateLimiter *llm.RateLimiter
	if cfg.RateLimiterConfig.Enabled {
		rateLimiter = llm.NewRateLimiter(cfg.RateLimiterConfig)
	}

	return &Client{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.ModelID,
		rateLimiter: rateLimiter,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "bedrock"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.modelID
}

// Chat sends a conversation through the Converse API and returns the
// response. System messages become system content blocks.
func (c *Client) Chat(ctx context.Context, messages []llmtypes.Message, opts *llmtypes.Options) (*llmtypes.Response, error) {
	startTime := time.Now()

	var systemBlocks []bedrocktypes.SystemContentBlock
	converseMessages := make([]bedrocktypes.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				systemBlocks = append(systemBlocks, &bedrocktypes.SystemContentBlockMemberText{Value: msg.Content})
			}
		case "user", "assistant":
			role := bedrocktypes.ConversationRoleUser
			if msg.Role == "assistant" {
				role = bedrocktypes.ConversationRoleAssistant
			}
			converseMessages = append(converseMessages, bedrocktypes.Message{
				Role:    role,
				Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: msg.Content}},
			})
		}
	}
	if len(converseMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}

	inference := &bedrocktypes.InferenceConfiguration{
		MaxTokens: aws.Int32(DefaultMaxTokens),
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			inference.MaxTokens = aws.Int32(int32(opts.MaxTokens))
		}
		if opts.Temperature > 0 {
			inference.Temperature = aws.Float32(float32(opts.Temperature))
		}
		if opts.TopP > 0 {
			inference.TopP = aws.Float32(float32(opts.TopP))
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        converseMessages,
		InferenceConfig: inference,
	}
	if len(systemBlocks) > 0 {
		input.System = systemBlocks
	}

	var output *bedrockruntime.ConverseOutput
	var err error
	if c.rateLimiter != nil {
		result, rlErr := c.rateLimiter.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return c.client.Converse(ctx, input)
		})
		if rlErr != nil {
			return nil, fmt.Errorf("bedrock converse failed: %w", rlErr)
		}
		output = result.(*bedrockruntime.ConverseOutput)
	} else {
		output, err = c.client.Converse(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("bedrock converse failed: %w", err)
		}
	}

	var contentText string
	if output.Output != nil {
		if o, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage); ok {
			for _, block := range o.Value.Content {
				if b, ok := block.(*bedrocktypes.ContentBlockMemberText); ok {
					contentText += b.Value
				}
			}
		}
	}

	usage := llmtypes.Usage{}
	if output.Usage != nil {
		usage.InputTokens = int(aws.ToInt32(output.Usage.InputTokens))
		usage.OutputTokens = int(aws.ToInt32(output.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(output.Usage.TotalTokens))
	}

	return &llmtypes.Response{
		Content:    contentText,
		Model:      c.modelID,
		StopReason: string(output.StopReason),
		Usage:      usage,
		Metadata: map[string]interface{}{
			"latency_ms": time.Since(startTime).Milliseconds(),
		},
	}, nil
}

// Ensure Client implements ChatProvider.
var _ llmtypes.ChatProvider = (*Client)(nil)
