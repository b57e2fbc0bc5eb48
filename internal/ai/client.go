// Package ai drafts cover letters for stored postings through a hosted or
// local language model.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khrees2412/jobsift/internal/config"
	"github.com/khrees2412/jobsift/pkg/models"
)

const (
	defaultOpenAIURL    = "https://api.openai.com"
	defaultAnthropicURL = "https://api.anthropic.com"
	defaultOllamaURL    = "http://localhost:11434"

	anthropicVersion = "2023-06-01"
	maxDescription   = 6000
)

// ErrMissingKey is returned when a hosted provider has no API key
var ErrMissingKey = errors.New("api key not configured")

// Request is everything a provider needs to draft one letter
type Request struct {
	Title       string
	Company     string
	Location    string
	Description string
	Applicant   string
}

// RequestFor builds a request from a stored posting
func RequestFor(p *models.Posting, applicant string) Request {
	return Request{
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		Description: p.Description,
		Applicant:   applicant,
	}
}

// Generator drafts cover letters
type Generator interface {
	GenerateCoverLetter(ctx context.Context, req Request) (string, error)
}

// Client talks to one provider
type Client struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	http     *http.Client
}

// NewClient picks the provider named in the config
func NewClient(cfg *config.Config) (*Client, error) {
	c := &Client{
		provider: cfg.AIProvider,
		model:    cfg.DefaultModel,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}

	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: %w. Run: jobsift config set openai_key YOUR_KEY", ErrMissingKey)
		}
		c.apiKey, c.baseURL = cfg.OpenAIKey, defaultOpenAIURL
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: %w. Run: jobsift config set anthropic_key YOUR_KEY", ErrMissingKey)
		}
		c.apiKey, c.baseURL = cfg.AnthropicKey, defaultAnthropicURL
		if c.model == "" {
			c.model = "claude-3-5-sonnet-20241022"
		}
	case "ollama":
		c.baseURL = cfg.OllamaURL
		if c.baseURL == "" {
			c.baseURL = defaultOllamaURL
		}
		if c.model == "" {
			c.model = "llama3.2"
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s. Available: openai, anthropic, ollama", cfg.AIProvider)
	}
	return c, nil
}

// WithBaseURL points the client at a different endpoint
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// GenerateCoverLetter drafts a letter with the configured provider
func (c *Client) GenerateCoverLetter(ctx context.Context, req Request) (string, error) {
	prompt := buildPrompt(req)

	var (
		text string
		err  error
	)
	switch c.provider {
	case "openai":
		text, err = c.openAI(ctx, prompt)
	case "anthropic":
		text, err = c.anthropic(ctx, prompt)
	case "ollama":
		text, err = c.ollama(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported AI provider: %s", c.provider)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.provider, err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("%s: empty response", c.provider)
	}
	return text, nil
}

func buildPrompt(req Request) string {
	description := req.Description
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}
	applicant := req.Applicant
	if applicant == "" {
		applicant = "(no background provided)"
	}

	return fmt.Sprintf(`Generate a professional cover letter for the following job application.

Job Details:
- Title: %s
- Company: %s
- Location: %s
- Description: %s

Applicant Background:
%s

Write a compelling, personalized cover letter that:
1. Demonstrates enthusiasm for the role and company
2. Highlights relevant experience from the applicant's background
3. Is 3-4 paragraphs long
4. Does not include placeholders like [Your Name] or [Date]

Return only the cover letter text, no additional commentary.`,
		req.Title, req.Company, req.Location, description, applicant)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) openAI(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":       c.model,
		"messages":    []chatMessage{{Role: "user", Content: prompt}},
		"temperature": 0.7,
		"max_tokens":  1000,
	}
	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.post(ctx, "/v1/chat/completions", headers, body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errors.New("unexpected response format: no choices")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) anthropic(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":      c.model,
		"max_tokens": 1024,
		"messages":   []chatMessage{{Role: "user", Content: prompt}},
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{"x-api-key": c.apiKey, "anthropic-version": anthropicVersion}
	if err := c.post(ctx, "/v1/messages", headers, body, &result); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("unexpected response format: no text content")
	}
	return sb.String(), nil
}

func (c *Client) ollama(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	var result struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", nil, body, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
