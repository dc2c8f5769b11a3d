package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ttsync/internal/faults"
	"ttsync/internal/logging"
)

type response struct {
	finalURL *url.URL
	header   http.Header
	body     []byte
}

type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTPError %d (%s)", e.StatusCode, http.StatusText(e.StatusCode))
}

// getWithRetry performs the GET, retrying transient failures. The request is
// detached from ctx cancellation so an interrupt never cuts a download short;
// the client timeout still bounds it.
func (e *Engine) getWithRetry(ctx context.Context, logger *slog.Logger, rawURL string) (*response, error) {
	attempts := e.opts.Retries + 1
	reqCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		resp, err := e.getOnce(reqCtx, rawURL)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		if attempt >= attempts {
			return nil, faults.Wrap(faults.ErrRetryExhausted, "fetch", rawURL,
				fmt.Sprintf("gave up after %d attempts", attempts), err)
		}
		logger.Warn("transient fetch failure; retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(err),
			logging.String(logging.FieldEventType, "fetch_retry"),
			logging.String(logging.FieldErrorHint, "slow host; raise fetch.timeout_seconds if this repeats"),
			logging.String(logging.FieldImpact, "download delayed"),
		)
		e.sleeper(e.backoffDelay(attempt))
	}
}

func (e *Engine) getOnce(ctx context.Context, rawURL string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &httpStatusError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return &response{finalURL: final, header: resp.Header, body: body}, nil
}

// isTransient reports whether err is a timeout or an incomplete read.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// failureReason renders a non-transient request error as a missing-record
// reason.
func failureReason(err error) string {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("URLError (%s)", urlErr.Err)
	}
	return fmt.Sprintf("URLError (%s)", err)
}

// wrongContentType builds the reason for a rejected response. HTML error pages
// (typical for removed Google Drive files) contribute their title.
func wrongContentType(contentType string, body []byte) string {
	reason := fmt.Sprintf("Wrong content type (%s)", contentType)
	if !strings.HasPrefix(strings.ToLower(contentType), "text/html") {
		return reason
	}
	if title := pageTitle(body); title != "" {
		reason += ": " + title
	}
	return reason
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func (e *Engine) backoffDelay(attempt int) time.Duration {
	if e.retryBaseDelay <= 0 {
		return 0
	}
	delay := e.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if e.retryMaxDelay > 0 && delay > e.retryMaxDelay/2 {
			return e.retryMaxDelay
		}
		delay *= 2
	}
	if e.retryMaxDelay > 0 && delay > e.retryMaxDelay {
		return e.retryMaxDelay
	}
	return delay
}
