// Package ai explains captured HTTP exchanges with an OpenAI-compatible model.
package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	altai "github.com/sashabaranov/go-openai"

	"proxylog/internal/util"
	"proxylog/internal/util/logx"
)

var ErrDisabled = errors.New("openai disabled")

// maxPrompt bounds the exchange text sent to the model.
const maxPrompt = 24 << 10

const systemPrompt = "You are an HTTP debugging assistant. Given a request and its response as captured by a proxy, " +
	"explain in a few short sentences what happened, and point out errors, suspicious headers or payload problems. " +
	"Plain text only, no markdown."

type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
}

// NewOpenAIClient returns a client; an empty apiKey yields a client whose
// calls fail with ErrDisabled.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{apiKey: apiKey, baseURL: baseURL, model: model, timeout: timeout}
}

func (c *OpenAIClient) Enabled() bool { return c != nil && c.apiKey != "" }

// Explain describes an exchange. parts are rendered HTTP messages, usually the
// request and its paired response; credentials are redacted before sending.
func (c *OpenAIClient) Explain(ctx context.Context, parts ...string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	prompt := buildExplainPrompt(parts)
	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	out, err := c.call(ctx2, prompt)
	if err != nil {
		logx.Warnf("ai: explain failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	logx.Infof("ai: explained exchange (%d bytes prompt) in %s", len(prompt), time.Since(start).Round(time.Millisecond))
	return strings.TrimSpace(out), nil
}

func (c *OpenAIClient) call(ctx context.Context, prompt string) (string, error) {
	cfg := altai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cli := altai.NewClientWithConfig(cfg)
	resp, err := cli.CreateChatCompletion(ctx, altai.ChatCompletionRequest{
		Model: c.model,
		Messages: []altai.ChatCompletionMessage{
			{Role: altai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: altai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildExplainPrompt(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(util.RedactHTTP(p))
	}
	s := b.String()
	if len(s) > maxPrompt {
		s = s[:maxPrompt] + "\n[truncated]"
	}
	return s
}
