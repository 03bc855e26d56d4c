// Package jobclient is a small client for the job API: submit work, poll
// status, or block until a job reaches a terminal state. Internal services
// and tools use it instead of hand-rolling HTTP against the API.
package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrJobNotFound is returned when the API does not know the job ID
	ErrJobNotFound = errors.New("job not found")

	// ErrWaitTimeout is returned when Wait's ceiling elapses before the job
	// reaches a terminal state. The job keeps running server-side.
	ErrWaitTimeout = errors.New("timed out waiting for job")
)

const (
	defaultPollInterval = 2 * time.Second
	maxTransportBackoff = 30 * time.Second
)

// APIError is a non-success response from the job API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request could plausibly
// succeed. Server errors and throttling are temporary; any other 4xx is a
// permanent answer about this request.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

// Config holds jobclient settings
type Config struct {
	BaseURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client talks to the job API
type Client struct {
	baseURL      string
	pollInterval time.Duration
	httpc        *http.Client
	logger       *slog.Logger
}

// NewClient creates a job API client
func NewClient(cfg *Config) *Client {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: interval,
		httpc:        httpc,
		logger:       logger,
	}
}

// SubmitRequest is the job submission payload
type SubmitRequest struct {
	UserID      string          `json:"user_id"`
	JobType     string          `json:"job_type"`
	Input       json.RawMessage `json:"input"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// JobError is the structured failure reason on a failed job
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatus is the polling view of a job
type JobStatus struct {
	JobID       string          `json:"job_id"`
	UserID      string          `json:"user_id"`
	JobType     string          `json:"job_type"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	Result      json.RawMessage `json:"result"`
	Error       *JobError       `json:"error"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
}

// Terminal reports whether the job has finished, successfully or not
func (s *JobStatus) Terminal() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// Submit creates a job and returns its ID
func (c *Client) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", apiError("submit", resp)
	}

	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}

	return created.JobID, nil
}

// Status fetches the current state of a job
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("status", resp)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}

// Wait polls until the job reaches a terminal state or maxWait elapses.
// Transport errors and temporary API errors back the poll interval off
// instead of aborting, since a briefly unreachable API says nothing about
// the job itself. A permanent API rejection aborts immediately: polling a
// request the server has definitively refused cannot succeed.
func (c *Client) Wait(ctx context.Context, jobID string, maxWait time.Duration) (*JobStatus, error) {
	deadline := time.Now().Add(maxWait)
	interval := c.pollInterval

	for {
		status, err := c.Status(ctx, jobID)
		switch {
		case err == nil:
			if status.Terminal() {
				return status, nil
			}
			interval = c.pollInterval
		case errors.Is(err, ErrJobNotFound):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return nil, err
			}
			c.logger.Warn("Job status poll failed, backing off",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			interval = nextBackoff(interval)
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, fmt.Errorf("%w %s after %s", ErrWaitTimeout, jobID, maxWait)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxTransportBackoff {
		next = maxTransportBackoff
	}
	return next
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
