// Package ai calls the hosted AI functions used for math-answer comparison and
// question extraction from previous year papers.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/logger"
)

const (
	compareFunction = "compare-math-answers"
	extractFunction = "extract-pyq-questions"

	maxErrorBody = 512
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Function string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai %s: status %d: %s", e.Function, e.Status, e.Body)
}

// ExtractedQuestion is a question as returned by the extraction function.
// Number is the raw label printed on the paper, e.g. "Q.12".
type ExtractedQuestion struct {
	Number  string   `json:"number"`
	Kind    string   `json:"kind"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

type compareRequest struct {
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	QuestionText  string `json:"questionText,omitempty"`
}

type compareResponse struct {
	IsEquivalent bool   `json:"isEquivalent"`
	Reasoning    string `json:"reasoning,omitempty"`
}

type extractRequest struct {
	Text          string `json:"text"`
	ExpectedCount int    `json:"expectedCount,omitempty"`
}

type extractResponse struct {
	Questions []ExtractedQuestion `json:"questions"`
}

// Client talks to the AI functions. A nil *Client is valid and reports every
// call as unavailable.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// CompareMathAnswers asks the model whether user and correct denote the same
// answer to question.
func (c *Client) CompareMathAnswers(ctx context.Context, user, correct, question string) (bool, error) {
	var out compareResponse
	err := c.call(ctx, compareFunction, compareRequest{
		UserAnswer:    user,
		CorrectAnswer: correct,
		QuestionText:  question,
	}, &out)
	if err != nil {
		return false, err
	}
	c.log.Debug("ai answer comparison", "equivalent", out.IsEquivalent, "reasoning", out.Reasoning)
	return out.IsEquivalent, nil
}

// ExtractQuestions sends the parsed text of a paper and returns the questions
// the model recovered. expected is a hint and may be zero.
func (c *Client) ExtractQuestions(ctx context.Context, text string, expected int) ([]ExtractedQuestion, error) {
	var out extractResponse
	if err := c.call(ctx, extractFunction, extractRequest{Text: text, ExpectedCount: expected}, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (c *Client) call(ctx context.Context, function string, in, out interface{}) error {
	if c == nil || c.baseURL == "" {
		return apierr.ErrRemoteUnavailable
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ai %s: encode request: %w", function, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+function, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ai %s: build request: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ai %s: %w", function, err)
	}
	defer resp.Body.Close()
	c.log.Debug("ai call", "function", function, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Function: function, Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("ai %s: empty response body", function)
		}
		return fmt.Errorf("ai %s: decode response: %w", function, err)
	}
	return nil
}
