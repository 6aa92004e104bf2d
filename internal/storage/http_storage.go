package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/sirupsen/logrus"
)

const httpAttempts = 3

// HTTPSource downloads inputs over http(s) with bounded retries.
type HTTPSource struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPSource creates a fetcher that reads at most maxBytes per input.
func NewHTTPSource(maxBytes int64) *HTTPSource {
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff:  time.Second,
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func (h *HTTPSource) WithBackoff(d time.Duration) *HTTPSource {
	h.backoff = d
	return h
}

// Fetch retries transport errors and 5xx answers up to three times.
// 4xx answers are final.
func (h *HTTPSource) Fetch(ctx context.Context, location string) (Object, error) {
	var lastErr error
	for attempt := 0; attempt < httpAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Object{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		obj, retry, err := h.fetchOnce(ctx, location)
		if err == nil {
			return obj, nil
		}
		lastErr = err
		if !retry {
			break
		}
		logger.WithFields(logrus.Fields{"attempt": attempt + 1, "location": location}).
			WithError(err).Debug("Input download failed, retrying")
	}
	return Object{}, fmt.Errorf("failed to fetch input after %d attempts: %w", httpAttempts, lastErr)
}

func (h *HTTPSource) fetchOnce(ctx context.Context, location string) (Object, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Object{}, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, video/*, */*")
	req.Header.Set("User-Agent", "KYC-Console/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return Object{}, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Object{}, false, fmt.Errorf("%w: status code 404", ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Object{}, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return Object{}, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Object{}, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return Object{}, false, err
	}
	return Object{
		Name:        path.Base(req.URL.Path),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, false, nil
}
