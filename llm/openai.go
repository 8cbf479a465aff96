// Package llm provides a CompletionProvider backed by any OpenAI-compatible
// chat-completions endpoint (OpenAI, Ollama, llama.cpp, vLLM, and most
// hosted gateways).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/sift"
)

// OpenAI calls a chat-completions API. It implements
// sift.CompletionProvider.
type OpenAI struct {
	Endpoint string // base URL, e.g. https://api.openai.com or http://localhost:11434
	APIKey   string
	Model    string
	// CostPerCall is attributed to every completion; endpoints that report
	// token usage are not required.
	CostPerCall float64

	client *http.Client
}

// NewOpenAI constructs a client. Endpoint defaults to the OpenAI API.
func NewOpenAI(endpoint, apiKey, model string) *OpenAI {
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	return &OpenAI{
		Endpoint: strings.TrimRight(endpoint, "/"),
		APIKey:   apiKey,
		Model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// NewOpenAIWithClient constructs a client using the supplied HTTP client.
func NewOpenAIWithClient(endpoint, apiKey, model string, client *http.Client) *OpenAI {
	c := NewOpenAI(endpoint, apiKey, model)
	c.client = client
	return c
}

// Complete sends one system+user exchange and returns the generated text.
func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string) (sift.Completion, error) {
	if strings.TrimSpace(o.Model) == "" {
		return sift.Completion{}, errors.New("llm: model is not configured")
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return sift.Completion{}, err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint+"/v1/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return sift.Completion{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		if o.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.APIKey)
		}

		resp, err = o.client.Do(req)
		if err != nil {
			return sift.Completion{}, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		select {
		case <-ctx.Done():
			return sift.Completion{}, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sift.Completion{}, fmt.Errorf("llm http %d", resp.StatusCode)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return sift.Completion{}, err
	}
	if len(response.Choices) == 0 {
		return sift.Completion{}, errors.New("llm: response contained no choices")
	}

	return sift.Completion{
		Text: response.Choices[0].Message.Content,
		Cost: o.CostPerCall,
	}, nil
}
