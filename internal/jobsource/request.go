package jobsource

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/ratelimit"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %s", e.Status)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ratelimit.Permanent(err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return classifyStatus(resp)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return ratelimit.Permanent(fmt.Errorf("reading gzip body: %w", err))
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return ratelimit.Permanent(fmt.Errorf("decoding response: %w", err))
	}

	return nil
}

// request sends req, retrying throttling statuses, timeouts and connection
// resets with exponential delays. Once these retries are used up the error
// is marked permanent so callers do not multiply them.
func (c *Client) request(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		c.logger.Debug("make request", zap.String("path", req.URL.Path), zap.Int("attempt", attempt+1))

		resp, err := c.HTTPClient.Do(req)
		if !shouldRetry(req.Context(), resp, err) {
			return resp, err
		}

		if attempt >= c.maxRetries {
			if err != nil {
				return nil, ratelimit.Permanent(err)
			}
			defer resp.Body.Close()
			return nil, ratelimit.Permanent(classifyStatus(resp))
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		delay := c.retryBaseDelay * time.Duration(1<<attempt)
		c.logger.Debug("retrying request",
			zap.String("path", req.URL.Path),
			zap.Duration("delay", delay),
			zap.NamedError("reason", retryReason(resp, err)),
		)

		if werr := c.wait(req.Context(), delay); werr != nil {
			return nil, werr
		}
	}
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func shouldRetry(ctx context.Context, resp *http.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, io.ErrUnexpectedEOF)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryReason(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	return classifyStatus(resp)
}

func classifyStatus(resp *http.Response) error {
	err := &StatusError{Code: resp.StatusCode, Status: resp.Status}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return ratelimit.Permanent(err)
	}
	return err
}
