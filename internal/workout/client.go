package workout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gym-iot-backend/internal/models"
)

// User-facing messages returned by the workout endpoints
const (
	MsgNoGoals        = "Please select at least one fitness goal"
	MsgNoLevel        = "Please select your fitness level"
	MsgNoFrequency    = "Please select your weekly gym frequency"
	MsgNoAPIKey       = "API key is not configured. Please contact support."
	MsgBadRequest     = "Invalid request to AI service. Please check your inputs."
	MsgAuthFailed     = "API authentication failed. Please contact support."
	MsgQuotaExceeded  = "AI service quota exceeded. Please try again later."
	MsgUnavailable    = "AI service is currently unavailable. Please try again later."
	MsgNoResponse     = "No response from AI service. Please check your connection."
	MsgGenerateFailed = "Failed to generate workout plan. Please try again."
)

// Error carries the HTTP status and message to return to the caller
type Error struct {
	Status  int
	Message string
	Outcome string // Short label for metrics
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx response from the generative API
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generative API returned %d: %s", e.StatusCode, e.Body)
}

// Config holds configuration for the generative API client
type Config struct {
	APIKey      string
	URL         string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		URL:         "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-flash:generateContent",
		Timeout:     25 * time.Second,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
}

// Client proxies workout plan requests to the generative API
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new client. A nil httpClient uses a default one.
func NewClient(config Config, httpClient *http.Client) *Client {
	defaults := DefaultConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{config: config, httpClient: httpClient}
}

// Validate checks the request fields in the order the form presents them
func Validate(req models.WorkoutRequest) error {
	switch {
	case len(req.Goals) == 0:
		return &Error{Status: http.StatusBadRequest, Message: MsgNoGoals, Outcome: "invalid"}
	case strings.TrimSpace(req.Level) == "":
		return &Error{Status: http.StatusBadRequest, Message: MsgNoLevel, Outcome: "invalid"}
	case strings.TrimSpace(req.Frequency) == "":
		return &Error{Status: http.StatusBadRequest, Message: MsgNoFrequency, Outcome: "invalid"}
	}
	return nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate validates the request and asks the generative API for a plan.
// Every failure is returned as an *Error.
func (c *Client) Generate(ctx context.Context, req models.WorkoutRequest) (string, error) {
	if err := Validate(req); err != nil {
		return "", err
	}
	if c.config.APIKey == "" {
		log.Println("Workout: GEMINI_API_KEY is not configured")
		return "", &Error{Status: http.StatusInternalServerError, Message: MsgNoAPIKey, Outcome: "no_api_key"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	plan, err := c.call(ctx, buildPrompt(req))
	if err != nil {
		log.Printf("Workout: error generating workout plan: %v", err)
		return "", classify(err)
	}
	return plan, nil
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.config.Temperature,
			MaxOutputTokens: c.config.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.config.URL + "?key=" + url.QueryEscape(c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// keep the API key out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.config.URL
		}
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("invalid response format from generative API")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// classify maps a call failure to the message shown to the user. Timeouts
// count as a generic failure, not a missing response.
func classify(err error) *Error {
	out := &Error{Status: http.StatusInternalServerError, Message: MsgGenerateFailed, Outcome: "failed", Err: err}

	var upstream *UpstreamError
	var urlErr *url.Error
	switch {
	case errors.As(err, &upstream):
		switch {
		case upstream.StatusCode == http.StatusBadRequest:
			out.Message, out.Outcome = MsgBadRequest, "bad_request"
		case upstream.StatusCode == http.StatusUnauthorized || upstream.StatusCode == http.StatusForbidden:
			out.Message, out.Outcome = MsgAuthFailed, "auth"
		case upstream.StatusCode == http.StatusTooManyRequests:
			out.Message, out.Outcome = MsgQuotaExceeded, "quota"
		case upstream.StatusCode >= 500:
			out.Message, out.Outcome = MsgUnavailable, "unavailable"
		}
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &urlErr) && urlErr.Timeout():
		out.Outcome = "timeout"
	case errors.As(err, &urlErr):
		out.Message, out.Outcome = MsgNoResponse, "no_response"
	}
	return out
}

func buildPrompt(req models.WorkoutRequest) string {
	return fmt.Sprintf("Create a personalized %s workout plan for a %s athlete focusing on %s. "+
		"Include warm-up exercises, main workout exercises with sets and reps, and cool-down exercises. "+
		"Format the workout plan with proper sections and tables where appropriate.",
		req.Frequency, req.Level, strings.Join(req.Goals, ", "))
}
