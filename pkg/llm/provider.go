package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ChunkHandler receives each non-empty partial-text record of a streaming
// generation, in production order.
type ChunkHandler func(chunk string)

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model, non-streaming, and returns
	// the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// GenerateStream sends a single prompt and invokes onChunk for every
	// partial record. It returns the accumulated text. When ctx is
	// cancelled mid-stream it returns the partial accumulation together
	// with ctx.Err(), so callers can tell an aborted generation from a
	// completed one.
	GenerateStream(ctx context.Context, prompt string, onChunk ChunkHandler, options ...Option) (string, error)
}
