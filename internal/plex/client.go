// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package plex implements the Plex Media Server API client Nuntius polls
// for active playback sessions, plus the extractor that normalizes raw
// session metadata into the canonical model.
//
// Client features:
//   - X-Plex-Token authentication on every request
//   - Automatic rate limit handling with exponential backoff (HTTP 429)
//   - JSON response parsing
//   - Optional TLS verification skip for self-signed server certificates
package plex

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
)

// Client handles communication with the Plex Media Server API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an authenticated Plex API client from configuration.
// The base URL is normalized to have no trailing slash.
func NewClient(cfg *config.PlexConfig) *Client {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}
	if !cfg.VerifyTLS {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-in for self-signed PMS certs
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// ListSessions retrieves all active playback sessions from the server.
//
// Endpoint: GET /status/sessions
func (c *Client) ListSessions(ctx context.Context) (*SessionsResponse, error) {
	var sessionsResp SessionsResponse
	if err := c.doJSONRequest(ctx, "/status/sessions", &sessionsResp); err != nil {
		return nil, err
	}
	return &sessionsResp, nil
}

// Identity retrieves server identity information.
//
// Endpoint: GET /identity
func (c *Client) Identity(ctx context.Context) (*IdentityResponse, error) {
	var identityResp IdentityResponse
	if err := c.doJSONRequest(ctx, "/identity", &identityResp); err != nil {
		return nil, err
	}
	return &identityResp, nil
}

// Ping verifies connectivity and token validity against the server.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Identity(ctx)
	return err
}

// requestConfig holds configuration for building HTTP requests
type requestConfig struct {
	method     string
	path       string
	query      url.Values
	acceptJSON bool
	expectOK   bool // if true, check for 200 OK status
}

// doRequest is a helper that executes a standard Plex API request and decodes the response
func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result interface{}) error {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, cfg.path)

	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	// Add authentication
	req.Header.Set("X-Plex-Token", c.token)

	// Add Accept header for JSON responses
	if cfg.acceptJSON {
		req.Header.Set("Accept", "application/json")
	}

	// Add query parameters
	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	// Execute request with rate limiting
	resp, err := c.doRequestWithRateLimit(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Check status code
	if cfg.expectOK && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Decode response if result pointer provided
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// doJSONRequest is a convenience wrapper for JSON API requests
func (c *Client) doJSONRequest(ctx context.Context, path string, result interface{}) error {
	return c.doRequest(ctx, requestConfig{
		method:     http.MethodGet,
		path:       path,
		acceptJSON: true,
		expectOK:   true,
	}, result)
}

// doRequestWithRateLimit executes an HTTP request with automatic retry on
// rate limiting (HTTP 429):
//   - Max 5 retry attempts
//   - Exponential backoff: 1s, 2s, 4s, 8s, 16s
//   - Respects Retry-After header (RFC 6585) if present
//   - Only retries on HTTP 429 (Too Many Requests)
func (c *Client) doRequestWithRateLimit(req *http.Request) (*http.Response, error) {
	const maxRetries = 5
	baseDelay := 1 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		// Success - return response
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited - close response and retry
		resp.Body.Close()

		// Last attempt failed - return error
		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries", maxRetries)
		}

		// Calculate retry delay (exponential backoff)
		retryDelay := baseDelay * (1 << attempt)

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				retryDelay = seconds
			}
		}

		logging.Warn().Dur("retry_delay", retryDelay).Int("attempt", attempt+1).Int("max_retries", maxRetries).Msg("Plex API rate limited (HTTP 429), retrying")

		// Wait before retrying
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("unreachable code: retry loop should return or error")
}
