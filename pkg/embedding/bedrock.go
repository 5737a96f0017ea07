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
package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockConfig holds AWS configuration for the Titan embedding provider.
type BedrockConfig struct {
	Region          string // Required: AWS region (e.g., us-east-1, us-west-2)
	AccessKeyID     string // Optional: if not using IAM role/profile
	SecretAccessKey string // Optional: if not using IAM role/profile
	SessionToken    string // Optional: for temporary credentials
	Profile         string // Optional: AWS profile name from ~/.aws/config
}

// DefaultBedrockRegion is used when no region is configured.
const DefaultBedrockRegion = "us-west-2"

// BedrockProvider generates embeddings through Amazon Titan models on
// Bedrock via InvokeModel.
type BedrockProvider struct {
	client *bedrockruntime.Client
}

// NewBedrockProvider creates a Bedrock embedding provider. Credentials are
// resolved from explicit keys, a named profile, or the default chain, in
// that order.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultBedrockRegion
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

	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

// Name implements Provider.
func (p *BedrockProvider) Name() string { return "bedrock" }

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed implements Provider via Bedrock InvokeModel with the Titan
// embedding request shape.
func (p *BedrockProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed for %s: %w", model, err)
	}

	var result titanEmbedResponse
	if err := json.Unmarshal(out.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock response for model %s carried no embedding", model)
	}
	return result.Embedding, nil
}
