// Package sora talks to the Azure OpenAI Sora video generation jobs API.
// It owns no job state: every call is a single request/response exchange.
package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

const (
	// DefaultAPIVersion is sent as the api-version query parameter
	DefaultAPIVersion = "2024-12-01-preview"
	// DefaultModel names the deployment jobs are submitted to
	DefaultModel = "sora"
	// DefaultTimeout bounds a single provider HTTP call
	DefaultTimeout = 30 * time.Second

	// Frame size used when a resolution string cannot be parsed.
	DefaultWidth  = 1920
	DefaultHeight = 1080

	jobsPath = "/openai/v1/video/generations/jobs"

	// maxErrorBody caps how much of a provider error body ends up in messages.
	maxErrorBody = 4 * 1024
)

// Status is a provider job status, normalised to the four values the tracker understands
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Output is one produced artifact
type Output struct {
	URL string
}

// Snapshot is the provider's view of a job at poll time
type Snapshot struct {
	Status        Status
	Outputs       []Output
	ErrorMessage  string
	RevisedPrompt string
}

// SubmitRequest is the domain input translated into a provider job
type SubmitRequest struct {
	Prompt     string
	Resolution string
	Duration   int
}

// Config holds provider connection settings
type Config struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the Sora jobs API adapter
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type createJobRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Height    string `json:"height"`
	Width     string `json:"width"`
	NSeconds  string `json:"n_seconds"`
	NVariants string `json:"n_variants"`
}

type jobResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Prompt        string `json:"prompt"`
	RevisedPrompt string `json:"revised_prompt"`
	FailureReason string `json:"failure_reason"`
	Outputs       []struct {
		URL string `json:"url"`
	} `json:"outputs"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a new provider client
func NewClient(cfg Config) *Client {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: apiVersion,
		model:      model,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ParseResolution splits a "<width>x<height>" descriptor. Anything that does
// not parse into two positive integers falls back to 1920x1080, which the
// provider always accepts.
func ParseResolution(resolution string) (int, int) {
	w, h, ok := strings.Cut(resolution, "x")
	if !ok {
		return DefaultWidth, DefaultHeight
	}

	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return DefaultWidth, DefaultHeight
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return DefaultWidth, DefaultHeight
	}

	return width, height
}

// Submit creates a provider job and returns its id
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	width, height := ParseResolution(req.Resolution)

	body, err := json.Marshal(createJobRequest{
		Model:     c.model,
		Prompt:    req.Prompt,
		Height:    strconv.Itoa(height),
		Width:     strconv.Itoa(width),
		NSeconds:  strconv.Itoa(req.Duration),
		NVariants: "1",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode job request: %w", err)
	}

	var decoded jobResponse
	if err := c.do(ctx, http.MethodPost, c.jobsURL(""), body, &decoded); err != nil {
		return "", err
	}

	if decoded.ID == "" {
		return "", fmt.Errorf("%w: no job ID returned from API", domain.ErrTransport)
	}

	c.logger.Debug("Provider job submitted",
		slog.String("remote_job_id", decoded.ID),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("duration", req.Duration),
	)

	return decoded.ID, nil
}

// Poll fetches the current state of a provider job
func (c *Client) Poll(ctx context.Context, remoteJobID string) (Snapshot, error) {
	var decoded jobResponse
	if err := c.do(ctx, http.MethodGet, c.jobsURL(remoteJobID), nil, &decoded); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		RevisedPrompt: decoded.RevisedPrompt,
	}
	if snap.RevisedPrompt == "" {
		snap.RevisedPrompt = decoded.Prompt
	}
	for _, o := range decoded.Outputs {
		snap.Outputs = append(snap.Outputs, Output{URL: o.URL})
	}
	if decoded.Error != nil {
		snap.ErrorMessage = decoded.Error.Message
	}
	if snap.ErrorMessage == "" {
		snap.ErrorMessage = decoded.FailureReason
	}

	status, ok := normalizeStatus(decoded.Status)
	if !ok {
		return snap, fmt.Errorf("%w: %q", domain.ErrUnknownProviderState, decoded.Status)
	}
	snap.Status = status

	if status == StatusFailed && snap.ErrorMessage == "" {
		snap.ErrorMessage = "Job failed"
		if strings.EqualFold(decoded.Status, "cancelled") {
			snap.ErrorMessage = "Job cancelled"
		}
	}

	return snap, nil
}

// normalizeStatus maps the provider's status vocabulary onto the four
// statuses the tracker drives on.
func normalizeStatus(status string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending":
		return StatusPending, true
	case "running", "queued", "preprocessing", "processing", "in_progress":
		return StatusRunning, true
	case "succeeded":
		return StatusSucceeded, true
	case "failed", "cancelled":
		return StatusFailed, true
	default:
		return "", false
	}
}

func (c *Client) jobsURL(remoteJobID string) string {
	u := c.endpoint + jobsPath
	if remoteJobID != "" {
		u += "/" + url.PathEscape(remoteJobID)
	}
	return u + "?" + url.Values{"api-version": {c.apiVersion}}.Encode()
}

// do runs one request bounded by the client timeout and decodes a JSON body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", domain.ErrTransport, err)
	}

	return nil
}
