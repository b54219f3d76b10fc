package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Message represents a message in the chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ScoreRequest is one open-ended response to assess
type ScoreRequest struct {
	Task     string // "writing" or "speaking"
	Prompt   string
	Response string
	Criteria []string
}

// Assessment is the scorer's verdict
type Assessment struct {
	OverallBand float64            `json:"overall_band"`
	Criteria    map[string]float64 `json:"criteria"`
	Feedback    string             `json:"feedback"`
}

const systemPrompt = "You are a certified IELTS examiner. Score the candidate strictly against the official band descriptors. " +
	"Reply with a single JSON object: {\"overall_band\": number, \"criteria\": {criterion: number}, \"feedback\": string}. " +
	"Bands range from 0 to 9 in steps of 0.5."

// Score asks the model for an IELTS band assessment
func (c *Client) Score(ctx context.Context, sr ScoreRequest) (*Assessment, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	prompt := fmt.Sprintf(
		"IELTS %s task.\n\nTask prompt:\n%s\n\nCandidate response:\n%s\n\nScore these criteria: %s.",
		sr.Task, sr.Prompt, sr.Response, strings.Join(sr.Criteria, "; "),
	)

	request := ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var response ChatResponse
	err = c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(requestData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &response)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	return parseAssessment(response.Choices[0].Message.Content)
}

// parseAssessment extracts the JSON object from the model's reply
func parseAssessment(content string) (*Assessment, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var a Assessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("failed to parse assessment: %w", err)
	}
	if a.Criteria == nil {
		a.Criteria = map[string]float64{}
	}
	return &a, nil
}
