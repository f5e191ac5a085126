// Package veracode is a client of the platform REST API used before and
// after the scans: applications, identity, collections and the
// composition analysis workspaces.
package veracode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// APIError is returned for responses with an unexpected status code.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status code: %d, body: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	baseURL *url.URL
	client  *http.Client
	region  Region
}

type Option func(*Client)

// WithBaseURL overrides the regional endpoint, useful for tests and proxies.
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient returns the client for the region of the credentials. The
// proxy is taken from the environment variables.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds.ID == "" || creds.Secret == "" {
		return nil, errors.New("api key id and secret are required")
	}
	region := RegionOf(creds.ID)
	baseURL, err := url.Parse(region.APIURL())
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: baseURL,
		region:  region,
		client: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: signer{
				base:  http.DefaultTransport,
				creds: creds,
				now:   time.Now,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Region() Region {
	return c.region
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends the request with a JSON body and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (*http.Response, []byte, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.DebugContext(ctx, "api request", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response of %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}
	return resp, raw, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	resp, raw, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("failed to parse response content type header: %w", err)
		}
		if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
			return fmt.Errorf("expected `application/json` content type, got: %s", mediaType)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding json response of %s %s: %w", method, path, err)
	}
	return nil
}

type page struct {
	Page struct {
		Number     int `json:"number"`
		TotalPages int `json:"total_pages"`
	} `json:"page"`
}

// getAll reads every page of a listing. decode receives the raw page body.
func (c *Client) getAll(ctx context.Context, path string, query url.Values, decode func([]byte) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("size", "100")
	for n := 0; ; n++ {
		query.Set("page", strconv.Itoa(n))
		_, raw, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}
		if err := decode(raw); err != nil {
			return fmt.Errorf("decoding json response of GET %s: %w", path, err)
		}
		var p page
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding json response of GET %s: %w", path, err)
		}
		if n+1 >= p.Page.TotalPages {
			return nil
		}
	}
}
