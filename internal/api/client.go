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
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/model"
)

// CSRFHeader carries the anti-forgery token on every POST.
const CSRFHeader = "X-CSRFToken"

// AuthError indicates that the API rejected the session (401/403).
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.URL, e.Body,
	)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Client is a thin HTTP client for the consumer notification API.
// It resolves the configured endpoints against the base URL, attaches the
// CSRF token to writes and decodes JSON. Requests are never retried.
type Client struct {
	baseURL    *url.URL
	endpoints  model.EndpointsConfig
	namespace  string
	tokens     TokenProvider
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, e.g. to install a cookie
// jar carrying the session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenProvider sets the source of the CSRF token.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) { c.tokens = tp }
}

// WithNamespace scopes the count and mark-all-read calls to a namespace.
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(
	baseURL string,
	endpoints model.EndpointsConfig,
	opts ...Option,
) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:   u,
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the parsed API root.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// UnreadCount fetches the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	target, err := c.resolve(c.endpoints.UnreadCount)
	if err != nil {
		return 0, err
	}
	if c.namespace != "" {
		q := target.Query()
		q.Set("namespace", c.namespace)
		target.RawQuery = q.Encode()
	}

	var resp CountResponse
	if err := c.do(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Notifications fetches the collection shown by the given view.
func (c *Client) Notifications(
	ctx context.Context,
	view model.ViewSelection,
) ([]model.Notification, error) {
	endpoint := c.endpoints.UnreadNotifications
	if view == model.ViewAll {
		endpoint = c.endpoints.AllNotifications
	}

	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var resp []UserNotification
	if err := c.do(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}

	notifications := make([]model.Notification, 0, len(resp))
	for _, un := range resp {
		notifications = append(notifications, un.ToModel())
	}
	return notifications, nil
}

// MarkAllRead marks every notification (in the namespace, if set) as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	target, err := c.resolve(c.endpoints.MarkAllRead)
	if err != nil {
		return err
	}

	form := url.Values{}
	if c.namespace != "" {
		form.Set("namespace", c.namespace)
	}
	body := &requestBody{
		contentType: "application/x-www-form-urlencoded",
		data:        []byte(form.Encode()),
	}
	return c.do(ctx, http.MethodPost, target, body, nil)
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	target, err := c.resolve(
		strings.TrimRight(c.endpoints.MarkOneRead, "/") + "/" + strconv.FormatInt(id, 10),
	)
	if err != nil {
		return err
	}

	data, err := json.Marshal(MarkRequest{MarkAs: "read"})
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	body := &requestBody{contentType: "application/json", data: data}
	return c.do(ctx, http.MethodPost, target, body, nil)
}

// RendererTemplates fetches the renderer key to template URL mapping.
func (c *Client) RendererTemplates(ctx context.Context) (map[string]string, error) {
	target, err := c.resolve(c.endpoints.RendererTemplates)
	if err != nil {
		return nil, err
	}

	resp := make(map[string]string)
	if err := c.do(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Text fetches a raw text resource such as a renderer template body.
func (c *Client) Text(ctx context.Context, ref string) (string, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, target, nil, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// resolve turns an absolute URL or a path into a URL under the base.
func (c *Client) resolve(ref string) (*url.URL, error) {
	if ref == "" {
		return nil, errors.New("endpoint is not configured")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(u), nil
}

// requestBody is an encoded request payload.
type requestBody struct {
	contentType string
	data        []byte
}

// do is the core HTTP method that builds the request, attaches the CSRF
// token to writes, maps error statuses and decodes the response.
// A *bytes.Buffer result receives the raw body.
func (c *Client) do(
	ctx context.Context,
	method string,
	target *url.URL,
	body *requestBody,
	result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if _, raw := result.(*bytes.Buffer); !raw {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if method != http.MethodGet {
		// Django-style CSRF checks also want a same-origin referer.
		req.Header.Set("Referer", c.baseURL.String()+"/")
		c.attachCSRF(ctx, req, target)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        target.Path,
			Body:       errorMessage(respBody),
		}
	}

	switch out := result.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		out.Write(respBody)
		return nil
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w",
			method, target.Path, err,
		)
	}

	return nil
}

// attachCSRF sets the CSRF header. A missing token is not an error here:
// the request is sent without it and the server decides.
func (c *Client) attachCSRF(ctx context.Context, req *http.Request, target *url.URL) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.CSRFToken(ctx, target)
	if err != nil {
		c.log.Warn("csrf token unavailable", zap.Error(err))
		return
	}
	if token != "" {
		req.Header.Set(CSRFHeader, token)
	}
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte) string {
	var er ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		if er.Details != "" {
			return er.Message + ": " + er.Details
		}
		return er.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
