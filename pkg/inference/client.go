// Package inference wraps an OpenAI-compatible chat-completions endpoint
// (spec §6) behind a small streaming interface, measuring time-to-first-token
// the way spec §4.5's inference tier requires. Modeled on tarsy's
// agent.LLMClient / Chunk interface (pkg/agent/llm_client.go), adapted from
// a gRPC sidecar call to a direct github.com/sashabaranov/go-openai call.
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/milton/pkg/config"
	"github.com/codeready-toolchain/milton/pkg/milerr"
)

// ErrUnavailable is returned when the inference backend cannot be reached
// at all (connection refused, DNS failure, etc.) — spec §7's InferenceUnavailable.
var ErrUnavailable = fmt.Errorf("%w: inference backend unreachable", milerr.ErrInferenceUnavailable)

// ErrTimeout is returned when a call exceeds its configured timeout —
// spec §7's InferenceTimeout.
var ErrTimeout = fmt.Errorf("%w: inference call timed out", milerr.ErrInferenceTimeout)

// Message is a single chat turn.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Chunk is one piece of a streaming completion.
type Chunk struct {
	Content string
	Done    bool
}

// Result is the outcome of a completed streaming call, including the
// TTFT measurement spec §4.5's inference tier needs.
type Result struct {
	Text          string
	TTFT          time.Duration
	TotalDuration time.Duration
	TotalTokens   int
}

// Client calls the configured OpenAI-compatible backend.
type Client struct {
	oa      *openai.Client
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// New builds a Client from InferenceConfig.
func New(cfg config.InferenceConfig) *Client {
	oaCfg := openai.DefaultConfig(os.Getenv(cfg.APIKeyEnv))
	oaCfg.BaseURL = cfg.BaseURL
	return &Client{
		oa:      openai.NewClientWithConfig(oaCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		log:     slog.With("component", "inference"),
	}
}

// Stream sends messages and streams the response, invoking onChunk for each
// non-empty delta. Returns the assembled Result once the stream closes.
func (c *Client) Stream(ctx context.Context, messages []Message, onChunk func(Chunk)) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	start := time.Now()
	stream, err := c.oa.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		c.log.Warn("inference stream create failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer stream.Close()

	var (
		text        string
		ttft        time.Duration
		gotFirst    bool
		totalTokens int
	)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if !gotFirst {
			ttft = time.Since(start)
			gotFirst = true
		}
		text += delta
		totalTokens++
		if onChunk != nil {
			onChunk(Chunk{Content: delta})
		}
	}

	if onChunk != nil {
		onChunk(Chunk{Done: true})
	}

	return &Result{
		Text:          text,
		TTFT:          ttft,
		TotalDuration: time.Since(start),
		TotalTokens:   totalTokens,
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
