package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/session"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	userAgent = "KYC-Console/1.0"

	// DefaultMaxResponseBytes caps what is read from the backend, blobs included.
	DefaultMaxResponseBytes = 32 << 20
)

// Blob is a binary payload such as a stored face image.
type Blob struct {
	Data        []byte
	ContentType string
}

// Client performs calls against the backend and always answers with a Result.
type Client struct {
	creds   *session.Credentials
	http    *http.Client
	timeout time.Duration
	maxBody int64
}

// Option configures a Client.
type Option func(*Client)

// WithRequestTimeout overrides the per-call deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxResponseBytes overrides the response body cap.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// New creates a client bound to the shared credential context.
func New(creds *session.Credentials, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 16 << 10,
	}

	c := &Client{
		creds:   creds,
		timeout: DefaultTimeout,
		maxBody: DefaultMaxResponseBytes,
		http: &http.Client{
			Transport: transport,
			// The deadline is owned by WithTimeout so that expiry is reported as 408.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials exposes the shared credential context.
func (c *Client) Credentials() *session.Credentials { return c.creds }

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) Result {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	res, _ := c.do(ctx, http.MethodGet, path, nil, "")
	return res
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body any) Result {
	b, err := json.Marshal(body)
	if err != nil {
		return Failure(fmt.Sprintf("encode request: %v", err), StatusNetworkError, Meta{})
	}
	res, _ := c.do(ctx, http.MethodPost, path, b, "application/json")
	return res
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) Result {
	res, _ := c.do(ctx, http.MethodDelete, path, nil, "")
	return res
}

// PostMultipart sends a finished multipart form. Exactly one request is made.
func (c *Client) PostMultipart(ctx context.Context, path string, form *Multipart) Result {
	body, contentType, err := form.Close()
	if err != nil {
		return Failure(fmt.Sprintf("build multipart payload: %v", err), StatusNetworkError, Meta{})
	}
	res, _ := c.do(ctx, http.MethodPost, path, body, contentType)
	return res
}

// GetBlob fetches a binary resource. Failures are normalized like any other call.
func (c *Client) GetBlob(ctx context.Context, path string) (Blob, Result) {
	res, raw := c.do(ctx, http.MethodGet, path, nil, "")
	if !res.OK() {
		return Blob{}, res
	}
	return Blob{Data: raw.Body, ContentType: raw.Header.Get("Content-Type")}, Success(nil, res.Status, res.Meta)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (Result, RawResponse) {
	start := time.Now()
	target := c.resolve(path)
	requestID := uuid.NewString()

	var raw RawResponse
	res := WithTimeout(ctx, c.timeout, func(ctx context.Context) (Result, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return Failure(fmt.Sprintf("invalid request: %v", err), StatusNetworkError, Meta{}), nil
		}
		req.Header.Set("Accept", "application/json, */*")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set(headerRequestID, requestID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		gen := c.creds.Apply(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return Result{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return Result{}, err
		}
		if int64(len(data)) > c.maxBody {
			// a truncated body would decode as a different payload
			return Failure(fmt.Sprintf("response body exceeds %d bytes", c.maxBody), http.StatusBadGateway,
				Meta{RequestID: requestID}), nil
		}
		raw = RawResponse{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Header:     resp.Header,
			Body:       data,
		}
		if raw.Header.Get(headerRequestID) == "" {
			raw.Header.Set(headerRequestID, requestID)
		}
		return Normalize(raw, func() { c.creds.NotifyUnauthorized(gen) }), nil
	})
	if res.Meta.RequestID == "" {
		res.Meta.RequestID = requestID
	}

	entry := logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      res.Status,
		"kind":        res.Kind(),
		"request_id":  res.Meta.RequestID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if res.OK() {
		entry.Debug("backend call completed")
	} else {
		entry.WithField("error", res.Error).Warn("backend call failed")
	}
	return res, raw
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.creds.BaseURL() + "/" + strings.TrimLeft(path, "/")
}
