package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nvandessel/foresight/internal/config"
)

const (
	openAIDefaultModel  = "gpt-4o-mini"
	defaultTargetLang   = "English"
	defaultTransTimeout = 10 * time.Second
)

// ErrEmptyTranslation is returned when the model answers with no text.
var ErrEmptyTranslation = errors.New("empty translation")

// OpenAI translates through an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client  *openai.Client
	model   string
	target  string
	timeout time.Duration
}

// NewOpenAI creates an OpenAI translator. Empty model, target language and
// timeout fall back to gpt-4o-mini, English and 10s.
func NewOpenAI(cfg config.TranslationConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	target := cfg.TargetLanguage
	if target == "" {
		target = defaultTargetLang
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTransTimeout
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		target:  target,
		timeout: timeout,
	}
}

// Available returns true.
func (o *OpenAI) Available() bool {
	return true
}

// Translate asks the model for a plain translation of text. Blank text is
// returned as is without a call.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(o.target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrEmptyTranslation)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

func systemPrompt(target string) string {
	return fmt.Sprintf("Translate the user's text into %s. "+
		"Reply with the translation only, without quotes or commentary. "+
		"If the text is already in %s, repeat it unchanged.", target, target)
}
