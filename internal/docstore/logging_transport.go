package docstore

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sipico/docstore-token-broker/internal/logging"
)

// LoggingTransport wraps an http.RoundTripper and logs all control-plane
// exchanges at debug level. Authorization headers and resource tokens in
// response bodies are masked before logging.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var reqBodyBytes []byte
	if req.Body != nil {
		var err error
		reqBodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		// Restore body for transport
		req.Body = io.NopCloser(bytes.NewReader(reqBodyBytes))
	}

	reqHeaders := make(map[string]string)
	for k, v := range req.Header {
		reqHeaders[k] = logging.MaskHeader(k, strings.Join(v, ", "))
	}

	t.Logger.Debug("control-plane request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", reqHeaders,
		"body", string(logging.MaskJSONBody(reqBodyBytes, logging.WireBodyAllowlist)),
	)

	resp, err := t.transport().RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.Debug("control-plane request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(respBodyBytes))

	t.Logger.Debug("control-plane response",
		"method", req.Method,
		"url", req.URL.String(),
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"body", string(logging.MaskJSONBody(respBodyBytes, logging.WireBodyAllowlist)),
	)

	return resp, nil
}

func (t *LoggingTransport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}
