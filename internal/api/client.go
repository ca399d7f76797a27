// Package api is the HTTP client for the test and result endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/taketest/internal/model"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to the backend on behalf of one user. It satisfies
// session.TestProvider and session.ResultProvider.
type Client struct {
	base   *url.URL
	http   *http.Client
	userID string
	token  string
	lang   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLanguage sets Accept-Language on every request.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// New creates a client for the backend at baseURL.
func New(baseURL, userID string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		userID: userID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CheckSubmission reports whether userID already submitted testID.
func (c *Client) CheckSubmission(ctx context.Context, userID, testID string) (bool, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("testId", testID)
	var status model.SubmissionStatus
	if err := c.do(ctx, http.MethodGet, "/api/results/check", q, nil, &status); err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return status.Submitted, nil
}

// FetchTest retrieves a test for taking. Answer keys are never included.
func (c *Client) FetchTest(ctx context.Context, testID string) (*model.Test, error) {
	var t model.Test
	path := "/api/tests/" + url.PathEscape(testID) + "/take"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &t); err != nil {
		return nil, fmt.Errorf("fetch test: %w", err)
	}
	return &t, nil
}

// SubmitResult posts the answers and returns the new result's ID.
func (c *Client) SubmitResult(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	var res model.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/results", nil, req, &res); err != nil {
		return nil, fmt.Errorf("submit result: %w", err)
	}
	return &res, nil
}

// GetResult retrieves a stored result.
func (c *Client) GetResult(ctx context.Context, id string) (*model.Result, error) {
	var r model.Result
	if err := c.do(ctx, http.MethodGet, "/api/results/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &r, nil
}

// ListTests lists the tests available on the server.
func (c *Client) ListTests(ctx context.Context) ([]model.TestSummary, error) {
	var tests []model.TestSummary
	if err := c.do(ctx, http.MethodGet, "/api/tests", nil, nil, &tests); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env ErrorBody
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		se.Code = env.Error.Code
		se.Message = env.Error.Message
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}
