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

	"shoppro/backend/internal/domain"
)

var (
	// ErrUnavailable means no API key is configured.
	ErrUnavailable = errors.New("ai assistant not configured")
	// ErrBadResponse means the model answered but not in a usable shape.
	ErrBadResponse = errors.New("ai response unusable")
)

const defaultModel = "gemini-2.5-flash"

// Client calls the Gemini REST API directly over HTTP.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com",
		http:    &http.Client{Timeout: 25 * time.Second},
	}
}

func (c *Client) Enabled() bool { return true }

type generateRequest struct {
	Contents []content         `json:"contents"`
	Config   *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

const extractPrompt = `Parse the following text into a list of invoice items. Extract description, quantity, and price for each item. If quantity is not specified, assume 1. If price is not specified, use 0. Respond ONLY with a JSON array of objects with fields "description" (string), "quantity" (number), "price" (number).

Text:
%s`

// ExtractItems asks the model for a JSON array of rows and tolerates the
// usual misbehavior: markdown fences, prose around the array, or plain
// garbage all come back as ErrBadResponse.
func (c *Client) ExtractItems(ctx context.Context, text string) ([]domain.ExtractedItem, error) {
	raw, err := c.generate(ctx, fmt.Sprintf(extractPrompt, text), "application/json")
	if err != nil {
		return nil, err
	}

	var rows []domain.ExtractedItem
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return rows, nil
}

// GenerateNote drafts a short closing note. Quotations get validity wording,
// invoices get a thank-you with payment terms.
func (c *Client) GenerateNote(ctx context.Context, req domain.NoteRequest) (string, error) {
	var prompt string
	if req.DocType == domain.DocTypeQuotation {
		prompt = fmt.Sprintf(
			"Write a short, professional note for a price quotation sent to %s. Mention that the quotation is valid for 30 days and that we look forward to their business. Keep it under 3 sentences. Respond with the note text only.",
			clientOrFallback(req.ClientName))
	} else {
		prompt = fmt.Sprintf(
			"Write a short, professional thank-you note for an invoice sent to %s. Mention payment is appreciated within the stated terms. Keep it under 3 sentences. Respond with the note text only.",
			clientOrFallback(req.ClientName))
	}

	note, err := c.generate(ctx, prompt, "")
	if err != nil {
		return "", err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return "", fmt.Errorf("%w: empty note", ErrBadResponse)
	}
	return note, nil
}

func clientOrFallback(name string) string {
	if strings.TrimSpace(name) == "" {
		return "a valued customer"
	}
	return name
}

func (c *Client) generate(ctx context.Context, prompt, mimeType string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if mimeType != "" {
		reqBody.Config = &generationConfig{ResponseMIMEType: mimeType}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// extractJSONArray strips markdown fences and any prose around the first
// top-level JSON array, since models wrap output despite instructions.
func extractJSONArray(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
