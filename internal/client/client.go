// Package client is a typed HTTP client for the analysis API.
//
// The bearer token is supplied explicitly with WithToken; the client never
// reads credentials from the environment.
package client

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sheetlens/internal/model"
)

const defaultTimeout = 30 * time.Second

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// APIError is a non-2xx response decoded from the standard error payload.
type APIError struct {
	Status    int
	RequestID string
	Code      string
	Message   string
	Fields    map[string]string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(" %v", e.Fields)
	}
	return msg
}

// Is lets callers match on ErrUnauthorized, ErrNotFound and ErrValidation.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Code == "VALIDATION_ERROR"
	}
	return false
}

// SaveRequest is the body of a save.
type SaveRequest struct {
	FileName     string             `json:"fileName,omitempty"`
	Data         model.Dataset      `json:"data"`
	ChartType    model.ChartType    `json:"chartType"`
	SelectedAxes model.SelectedAxes `json:"selectedAxes"`
}

// Download is the JSON form of a download.
type Download struct {
	FileName string        `json:"fileName"`
	Columns  []string      `json:"columns"`
	Data     model.Dataset `json:"data"`
}

// Export points at an archived workbook.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Page is one page of recent analyses.
type Page struct {
	Items []model.AnalysisSummary
	Total int
}

// Client calls the analysis API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the API rooted at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Save stores a new analysis.
func (c *Client) Save(ctx context.Context, req SaveRequest) (*model.Analysis, error) {
	var a model.Analysis
	if err := c.doJSON(ctx, http.MethodPost, "/api/analysis", nil, req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Recent lists the caller's analyses, most recent first. Zero limit uses the server default.
func (c *Client) Recent(ctx context.Context, limit, offset int) (*Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/analysis/recent", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{}
	if err := json.NewDecoder(resp.Body).Decode(&page.Items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	page.Total, _ = strconv.Atoi(resp.Header.Get("X-Total-Count"))
	return page, nil
}

// Get returns one analysis.
func (c *Client) Get(ctx context.Context, id string) (*model.Analysis, error) {
	var a model.Analysis
	if err := c.doJSON(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Download returns an analysis' rows.
func (c *Client) Download(ctx context.Context, id string) (*Download, error) {
	var d Download
	if err := c.doJSON(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(id)+"/download", nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Workbook returns an analysis encoded as xlsx by the server.
func (c *Client) Workbook(ctx context.Context, id string) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(id)+"/download", url.Values{"format": {"xlsx"}})
}

// Chart returns the server-rendered PNG chart. Zero sizes use the server default.
func (c *Client) Chart(ctx context.Context, id string, width, height int) ([]byte, error) {
	q := url.Values{}
	if width > 0 {
		q.Set("width", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("height", strconv.Itoa(height))
	}
	return c.raw(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(id)+"/chart.png", q)
}

// Export archives an analysis in object storage.
func (c *Client) Export(ctx context.Context, id string) (*Export, error) {
	var e Export
	if err := c.doJSON(ctx, http.MethodPost, "/api/analysis/"+url.PathEscape(id)+"/export", nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) raw(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	resp, err := c.do(ctx, method, path, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return b, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, in, out any) error {
	resp, err := c.do(ctx, method, path, q, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses; any other
// status is returned as an *APIError with the body closed.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in any) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var payload struct {
		RequestID string `json:"request_id"`
		Error     struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &payload) == nil && payload.Error.Code != "" {
		apiErr.RequestID = payload.RequestID
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
		apiErr.Fields = payload.Error.Fields
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}
