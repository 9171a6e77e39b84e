// Package dispatch sends booking batches to the remote append-only
// event store through its repository-dispatch endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"venueboard/internal/models"
	"venueboard/internal/secrets"

	"github.com/rs/zerolog"
)

// ErrNoCredential means the bearer token is absent from the secret
// store. The job fails closed: no rows are touched.
var ErrNoCredential = errors.New("dispatch credential missing")

// Error is a failed dispatch outcome, classified so the sync job can
// tell a retryable infrastructure hiccup from a rejected payload.
type Error struct {
	StatusCode int
	Body       string
	Transient  bool
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("dispatch: %v", e.cause)
	}
	return fmt.Sprintf("dispatch: remote returned %d", e.StatusCode)
}

func (e *Error) Unwrap() error { return e.cause }

// IsTransient reports whether err is a dispatch error worth retrying.
func IsTransient(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Transient
}

type envelope struct {
	EventType     string      `json:"event_type"`
	ClientPayload interface{} `json:"client_payload"`
}

type batchPayload struct {
	Batch []models.BookingRecord `json:"batch"`
}

// Client posts dispatch envelopes, reading the bearer token from the
// secret store at call time. The token is never stored or logged.
type Client struct {
	url        string
	tokenKey   string
	store      secrets.Store
	httpClient *http.Client
	logger     *zerolog.Logger
}

func NewClient(url, tokenKey string, store secrets.Store, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		tokenKey:   tokenKey,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SendBatch dispatches the whole batch as one request. A nil return
// means the remote accepted every record.
func (c *Client) SendBatch(ctx context.Context, batch []models.BookingRecord) error {
	return c.send(ctx, envelope{
		EventType:     models.EventTypeBatch,
		ClientPayload: batchPayload{Batch: batch},
	})
}

// SendOne dispatches a single record under the new_booking event type.
func (c *Client) SendOne(ctx context.Context, rec models.BookingRecord) error {
	return c.send(ctx, envelope{
		EventType:     models.EventTypeSingle,
		ClientPayload: rec,
	})
}

func (c *Client) send(ctx context.Context, env envelope) error {
	token, err := c.store.Get(c.tokenKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoCredential, c.tokenKey)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return &Error{cause: fmt.Errorf("encode envelope: %w", err), Transient: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Error{cause: err, Transient: false}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures are always worth another cycle.
		return &Error{cause: err, Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// The remote's rejection body is diagnostic gold; log it verbatim.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if c.logger != nil {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("dispatch rejected")
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Transient:  transientStatus(resp.StatusCode),
	}
}

// transientStatus treats server-side and throttling responses as
// retryable; anything else non-2xx is a payload problem.
func transientStatus(code int) bool {
	switch {
	case code >= 500:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}
