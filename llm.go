package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// TextCapability is the remote text-transformation dependency. Transform
// rewrites text under the given instruction and returns the rewritten text.
// Failures are classified as *TransientError (retryable) or *FatalError
// (fall back immediately).
type TextCapability interface {
	Transform(ctx context.Context, text, instruction string) (string, error)
}

// NewTextCapability builds the provider-specific capability from config.
// The client is constructed here and injected into the Transformer so tests
// can substitute a double that never touches the network.
func NewTextCapability(cfg Config) TextCapability {
	switch cfg.LLMProvider {
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return &openAICapability{apiKey: cfg.OpenAIAPIKey, model: model, baseURL: openAIBaseURL}
	default:
		model := cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return &anthropicCapability{apiKey: cfg.AnthropicAPIKey, model: model}
	}
}

// --- Anthropic ---

type anthropicCapability struct {
	apiKey string
	model  string
}

func (c *anthropicCapability) Transform(ctx context.Context, text, instruction string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: instruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", classifyAnthropicError(err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", &FatalError{Err: fmt.Errorf("no text content in Anthropic response")}
}

func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if retryableStatus(apierr.StatusCode) {
			return &TransientError{Err: fmt.Errorf("Anthropic API error: %w", err)}
		}
		return &FatalError{Err: fmt.Errorf("Anthropic API error: %w", err)}
	}
	// Timeouts and transport failures are worth another attempt.
	return &TransientError{Err: fmt.Errorf("Anthropic API error: %w", err)}
}

// --- OpenAI ---

const openAIBaseURL = "https://api.openai.com"

type openAICapability struct {
	apiKey  string
	model   string
	baseURL string
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAICapability) Transform(ctx context.Context, text, instruction string) (string, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: text},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &FatalError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &FatalError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", &TransientError{Err: fmt.Errorf("OpenAI API error: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if retryableStatus(resp.StatusCode) {
		return "", &TransientError{Err: fmt.Errorf("OpenAI API status %d: %s", resp.StatusCode, truncateForLog(string(respBody)))}
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", &FatalError{Err: fmt.Errorf("parsing OpenAI response: %w", err)}
	}

	if openAIResp.Error != nil {
		log.Printf("llm openai api error: %s", openAIResp.Error.Message)
		return "", &FatalError{Err: fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)}
	}

	if len(openAIResp.Choices) == 0 {
		return "", &FatalError{Err: fmt.Errorf("no choices in OpenAI response")}
	}

	log.Printf("llm openai response size=%d", len(openAIResp.Choices[0].Message.Content))
	return strings.TrimSpace(openAIResp.Choices[0].Message.Content), nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

func truncateForLog(s string) string {
	if len(s) > 512 {
		return s[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
	}
	return s
}
