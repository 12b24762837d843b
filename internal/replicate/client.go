// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replicate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the Replicate API.
const (
	// DefaultBaseURL is the base URL for the Replicate API.
	DefaultBaseURL = "https://api.replicate.com/v1"

	// DefaultTimeout is the timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// TokenPrefix is the fixed tag every Replicate API token starts with.
	TokenPrefix = "r8_"

	// TokenLength is the exact length of a Replicate API token.
	TokenLength = 40

	// DefaultUserAgent identifies the client to the API.
	DefaultUserAgent = "replichat/1.0"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; stream lifetime is bounded by the
	// caller's context and the remote service.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
)

// Error variables for common Replicate errors.
var (
	// ErrNotConfigured indicates the API token is not set.
	ErrNotConfigured = errors.New("replicate API token not configured")

	// ErrAuthFailed indicates the token was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInsufficientCredits indicates the account cannot pay for the prediction.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrModelNotFound indicates the endpoint does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInvalidInput indicates the model rejected the input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidEndpoint indicates an endpoint reference not shaped "owner/name".
	ErrInvalidEndpoint = errors.New("invalid model endpoint")

	// ErrNoStreamURL indicates the prediction does not support streaming.
	ErrNoStreamURL = errors.New("prediction has no stream URL")
)

// APIError represents an error response from the Replicate API that does not
// map to one of the sentinel errors.
type APIError struct {
	Status int
	Title  string
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("replicate error [%s] (HTTP %d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("replicate error (HTTP %d): %s", e.Status, e.Detail)
}

// problemResponse is the problem-details body Replicate returns on errors.
type problemResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// =============================================================================
// PREDICTION TYPES
// =============================================================================

// PredictionURLs are the follow-up URLs returned with a prediction.
type PredictionURLs struct {
	Get    string `json:"get"`
	Cancel string `json:"cancel"`
	Stream string `json:"stream"`
}

// Prediction is the prediction resource returned by the create call.
type Prediction struct {
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	Version   string          `json:"version"`
	Status    string          `json:"status"`
	Input     map[string]any  `json:"input"`
	Error     json.RawMessage `json:"error,omitempty"`
	URLs      PredictionURLs  `json:"urls"`
	CreatedAt string          `json:"created_at"`
}

// predictionRequest is the create-prediction body.
type predictionRequest struct {
	Input  map[string]any `json:"input"`
	Stream bool           `json:"stream"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the Replicate predictions API.
// A Client is safe for concurrent use once configured.
type Client struct {
	token           string
	baseURL         string
	userAgent       string
	httpClient      *http.Client
	streamingClient *http.Client
	limiter         *rate.Limiter
	debug           bool
}

// NewClient creates a client for the given API token. An empty token still
// yields a client, but every call fails with ErrNotConfigured.
func NewClient(token string) *Client {
	return &Client{
		token:           strings.TrimSpace(token),
		baseURL:         DefaultBaseURL,
		userAgent:       DefaultUserAgent,
		httpClient:      sharedHTTPClient,
		streamingClient: sharedStreamingClient,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithHTTPClient sets the client used for non-streaming requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithStreamingClient sets the client used to read event streams.
func (c *Client) WithStreamingClient(hc *http.Client) *Client {
	if hc != nil {
		c.streamingClient = hc
	}
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithRateLimit caps how often predictions are created. A non-positive rps
// removes the limit. Waiting honors the request context.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithDebug enables request logging through the standard logger.
func (c *Client) WithDebug(enabled bool) *Client {
	c.debug = enabled
	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured reports whether a token is set.
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// TokenMasked returns a display form of the token that exposes no part of it.
func (c *Client) TokenMasked() string {
	return MaskToken(c.token)
}

// =============================================================================
// LOGGING
// =============================================================================

// logRequest logs method and path only. Headers carry the token.
func (c *Client) logRequest(req *http.Request) {
	if c.debug {
		log.Printf("API Request: %s %s", req.Method, req.URL.Path)
	}
}

func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	if c.debug {
		log.Printf("API Response: %d (%v)", resp.StatusCode, duration)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// =============================================================================
// PREDICTIONS
// =============================================================================

// CreatePrediction creates a streaming prediction on an "owner/name" model
// endpoint.
func (c *Client) CreatePrediction(ctx context.Context, endpoint string, input map[string]any) (*Prediction, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	owner, name, ok := strings.Cut(endpoint, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	bodyBytes, err := json.Marshal(predictionRequest{Input: input, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := fmt.Sprintf("%s/models/%s/%s/predictions", c.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var pred Prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w", err)
	}
	return &pred, nil
}

// Stream creates a prediction and opens its event stream. The caller must
// Close the returned stream.
func (c *Client) Stream(ctx context.Context, endpoint string, input map[string]any) (*Stream, error) {
	pred, err := c.CreatePrediction(ctx, endpoint, input)
	if err != nil {
		return nil, err
	}
	if pred.URLs.Stream == "" {
		return nil, ErrNoStreamURL
	}
	return c.OpenStream(ctx, pred)
}

// OpenStream connects to the event stream of an existing prediction.
func (c *Client) OpenStream(ctx context.Context, pred *Prediction) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Stream, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	c.logRequest(req)
	resp, err := c.streamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, readErr := readResponse(resp)
		if readErr != nil {
			return nil, readErr
		}
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	return newStream(ctx, pred.ID, resp.Body), nil
}

// readResponse reads a body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var problem problemResponse
	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &problem); err == nil && (problem.Detail != "" || problem.Title != "") {
		detail = problem.Detail
	}

	var sentinel error
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrAuthFailed
	case http.StatusPaymentRequired:
		sentinel = ErrInsufficientCredits
	case http.StatusNotFound:
		sentinel = ErrModelNotFound
	case http.StatusUnprocessableEntity:
		sentinel = ErrInvalidInput
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return &APIError{Status: statusCode, Title: problem.Title, Detail: detail}
	}

	if detail == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// =============================================================================
// TOKEN HELPERS
// =============================================================================

// ValidateToken checks the token format: the "r8_" tag and a total length of
// 40. It does not contact the API; the service is the real authority.
func ValidateToken(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && len(token) == TokenLength
}

// MaskToken returns a display form of a token: its length and a short
// SHA-256 fingerprint, never any of its characters.
func MaskToken(token string) string {
	if token == "" {
		return "[not set]"
	}
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(token), hex.EncodeToString(h[:4]))
}
