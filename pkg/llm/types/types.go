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

// Package types holds the chat types shared by the LLM provider
// subpackages. Keeping them here lets pkg/llm and its providers import
// them without a cycle.
package types

import "context"

// Message is a single turn in a conversation.
type Message struct {
	// Role is the message sender (system, user, assistant).
	Role string

	// Content is the message text.
	Content string
}

// Options tunes a single chat call. Zero values mean provider defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a completed chat call.
type Response struct {
	// Content is the text response.
	Content string

	// Model is the model that produced the response.
	Model string

	// StopReason indicates why generation stopped.
	StopReason string

	// Usage tracks token usage.
	Usage Usage

	// Metadata contains provider-specific metadata.
	Metadata map[string]interface{}
}

// ChatProvider is the interface analysis runs against. Providers are
// single-shot text in, text out; tool calling and streaming are out of
// scope here.
type ChatProvider interface {
	// Chat sends a conversation and returns the response.
	Chat(ctx context.Context, messages []Message, opts *Options) (*Response, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// ModelManager is implemented by providers that can report and install
// models locally (Ollama). Hosted providers do not implement it.
type ModelManager interface {
	// IsAvailable reports whether the configured model is ready to serve.
	IsAvailable(ctx context.Context) bool

	// Pull downloads the configured model.
	Pull(ctx context.Context) error
}

// SupportsModelManagement checks if a provider can manage its own models.
func SupportsModelManagement(provider ChatProvider) (ModelManager, bool) {
	mm, ok := provider.(ModelManager)
	return mm, ok
}
