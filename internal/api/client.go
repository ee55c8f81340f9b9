// Package api is the HTTP client for the assistant backend. All business
// logic lives behind that REST/SSE API; this package only shapes requests,
// decodes responses, and hands the chat-streaming response body to the
// stream package untouched.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// RateLimitMessage is the backend's distinguished error message for a user
// who exhausted the daily message quota. Submission stays blocked until a
// later stream reports remaining attempts again.
const RateLimitMessage = "Daily message limit reached"

const defaultExportFilename = "qa_dataset.jsonl"

// Error is a non-2xx backend response. Message and Detail come from the JSON
// error body; both may be empty when the body was missing or malformed.
type Error struct {
	Status  int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	default:
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
}

// RateLimited reports whether this error is the daily-limit rejection.
func (e *Error) RateLimited() bool { return e.Message == RateLimitMessage }

// Client talks to the assistant backend on behalf of one signed-in browser
// session. The underlying cookie jar carries the backend's auth cookie, so
// every request is credentialed.
type Client struct {
	rest   *resty.Client
	base   string
	logger *slog.Logger
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, logger *slog.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	rest := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	return &Client{
		rest:   rest,
		base:   base,
		logger: logger.With(slog.String("module", "api")),
	}
}

// Cookies returns the backend cookies currently held for this client, so a
// browser session can be persisted across restarts.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.base)
	if err != nil || c.rest.GetClient().Jar == nil {
		return nil
	}
	return c.rest.GetClient().Jar.Cookies(u)
}

// SetCookies seeds the client with previously persisted backend cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.rest.SetCookies(cookies)
}

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func responseError(resp *resty.Response) error {
	var body errorBody
	// A missing or invalid JSON body degrades to the bare status code.
	_ = json.Unmarshal(resp.Body(), &body)
	return &Error{Status: resp.StatusCode(), Message: body.Message, Detail: body.Detail}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}
