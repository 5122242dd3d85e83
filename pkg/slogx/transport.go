package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/idx"
)

// RequestIDHeader is stamped on every outgoing request so gateway logs can be
// matched with ours.
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that tags outgoing requests with a request
// ID and logs each exchange at debug level.
type Transport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper

	// Logger receives the request log lines; the context logger or
	// slog.Default() when nil.
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	reqID := req.Header.Get(RequestIDHeader)
	if _, err := idx.Parse(reqID); err != nil {
		reqID = idx.New().String()
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, reqID)

	logger := FromContext(req.Context(), t.Logger).With(
		"req_id", reqID,
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		logger.Debug("gateway_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("gateway_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
