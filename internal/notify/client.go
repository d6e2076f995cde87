// Package notify submits emergency payloads to the external notification
// endpoint and validates its responses.
package notify

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

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/models"
)

// Protocol errors. The distinction matters to the user-facing layer:
// a rejection suggests retrying may not help, a garbage response
// suggests the backend is unhealthy.
var (
	// ErrRejected - the endpoint answered with a JSON error body.
	ErrRejected = errors.New("server rejected request")
	// ErrInvalidResponse - non-success status with a non-JSON body.
	ErrInvalidResponse = errors.New("server returned an invalid response")
	// ErrInvalidFormat - success status but the body is not well-formed
	// JSON of the expected content type. Treated as a protocol error,
	// never as a silent success.
	ErrInvalidFormat = errors.New("server returned invalid response format")
)

// Result is the parsed success response. The endpoint returns at least
// an identifier for the created emergency record.
type Result struct {
	ID        string          `json:"id"`
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Emergency json.RawMessage `json:"emergency,omitempty"`
	Hospital  json.RawMessage `json:"hospital,omitempty"`
}

// Client posts escalation payloads to a single configured endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      zerolog.Logger
}

// New creates a notification client.
func New(endpoint string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Submit posts the payload and validates the response. Success requires
// an HTTP 2xx status, a JSON content type, and a decodable body.
func (c *Client) Submit(ctx context.Context, payload *models.EscalationPayload) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit notification: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if !isJSON {
			c.log.Error().Int("status", resp.StatusCode).
				Str("body", truncate(string(raw), 200)).
				Msg("Non-JSON error response from notification endpoint")
			return nil, fmt.Errorf("%w (status %d)", ErrInvalidResponse, resp.StatusCode)
		}
		var errBody struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = fmt.Sprintf("%s: %s", msg, errBody.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	if !isJSON {
		c.log.Error().Str("contentType", resp.Header.Get("Content-Type")).
			Str("body", truncate(string(raw), 200)).
			Msg("Expected JSON success response")
		return nil, ErrInvalidFormat
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
