// Package remote is the HTTP client for the session-history API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/fitito/internal/models"
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Retryable reports whether retrying the same request may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests
}

// Client calls the session-history API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	attempts int
	backoff  time.Duration
}

// NewClient creates a Client for baseURL. Write endpoints send apiKey in X-API-Key.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   1,
	}
}

// WithRetry makes every request try up to attempts times, sleeping backoff,
// 2*backoff, ... between tries. Only transport errors and temporary statuses
// are retried; every endpoint is an idempotent PUT, GET or DELETE.
func (c *Client) WithRetry(attempts int, backoff time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = attempts
	c.backoff = backoff
	return c
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when out is non-nil. A 404 is returned as *StatusError like any
// other non-2xx status.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return lastErr
			}
		}
		lastErr = c.doOnce(ctx, method, path, params, body, out)
		if lastErr == nil || !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("remote: decode %s: %w", path, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

func historyPath(profileID int, rest ...string) string {
	p := "/api/v1/session-history/" + strconv.Itoa(profileID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// UpsertSessionHistory writes a completed session. The server upserts by
// (profile, session date, session id), so repeated delivery is an overwrite.
func (c *Client) UpsertSessionHistory(ctx context.Context, p *models.SessionHistoryPayload) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/session-history", nil, p, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetSessionHistory returns the record for (profileID, date), or nil when the
// remote has none.
func (c *Client) GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	var rec models.SessionHistoryRecord
	err := c.do(ctx, http.MethodGet, historyPath(profileID, date), nil, nil, &rec)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSessionHistory returns records with start <= session_date <= end.
// Empty bounds are left to the server's defaults.
func (c *Client) ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	params := url.Values{}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}
	var recs []models.SessionHistoryRecord
	if err := c.do(ctx, http.MethodGet, historyPath(profileID), params, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteSessionHistory removes one record by its remote id.
func (c *Client) DeleteSessionHistory(ctx context.Context, profileID int, id int64) error {
	return c.do(ctx, http.MethodDelete, historyPath(profileID, "id", strconv.FormatInt(id, 10)), nil, nil, nil)
}

// DeleteTodaySessionHistory removes the record for the server's current date.
func (c *Client) DeleteTodaySessionHistory(ctx context.Context, profileID int) error {
	return c.do(ctx, http.MethodDelete, historyPath(profileID, "today"), nil, nil, nil)
}

// DeleteSessionHistoryByDate removes the record for date.
func (c *Client) DeleteSessionHistoryByDate(ctx context.Context, profileID int, date string) error {
	return c.do(ctx, http.MethodDelete, historyPath(profileID, date), nil, nil, nil)
}

// PutTrainingSession mirrors an in-progress session snapshot.
func (c *Client) PutTrainingSession(ctx context.Context, s *models.TrainingSession) error {
	return c.do(ctx, http.MethodPut, "/api/v1/training-sessions/"+s.ID.String(), nil, s, nil)
}

// PutRoutineWeekDay replaces the planned configuration of one routine day.
func (c *Client) PutRoutineWeekDay(ctx context.Context, p *models.RoutineWeekPayload) error {
	path := fmt.Sprintf("/api/v1/routine-weeks/%d/days/%d", p.RoutineWeekID, p.DayOfWeek)
	return c.do(ctx, http.MethodPut, path, nil, p, nil)
}
