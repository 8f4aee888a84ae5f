// Package httpfetch normalizes HTTP transport failures into the typed
// extract-error taxonomy shared by every source adapter.
package httpfetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/domain/models"
)

// Get performs a GET and returns the full body, collapsing every failure mode
// to a *models.ExtractError. It never returns a truncated document.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, *models.ExtractError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewExtractError(models.ExtractDecode, "build request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		e := models.NewExtractError(models.ExtractRateLimited, "rate limited by %s", url)
		e.Status = resp.StatusCode
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, e
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := models.NewExtractError(models.ExtractHTTPStatus, "unexpected status from %s", url)
		e.Status = resp.StatusCode
		return nil, e
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewExtractError(models.ExtractDecode, "read body: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, models.NewExtractError(models.ExtractDecode, "malformed JSON from %s", url)
	}
	return body, nil
}

func classifyTransport(err error) *models.ExtractError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewExtractError(models.ExtractTimeout, "%v", err)
	}
	// Connection-level failures share the status kind with code 0; the
	// taxonomy is closed and these recover the same way.
	e := models.NewExtractError(models.ExtractHTTPStatus, "transport: %v", err)
	return e
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
