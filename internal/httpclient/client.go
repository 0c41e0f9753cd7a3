package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/logger"
)

// LoggingRoundTripper logs every call and stamps static headers (e.g. the API token) on the way out.
type LoggingRoundTripper struct {
	Proxied http.RoundTripper
	Headers map[string]string
	Log     *zap.Logger
}

func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	log := lrt.Log
	if log == nil {
		log = logger.Named("http")
	}
	next := lrt.Proxied
	if next == nil {
		next = http.DefaultTransport
	}

	if len(lrt.Headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range lrt.Headers {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	log.Debug("request started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
	)

	resp, err := next.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		log.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	log.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, nil
}

// NewClient returns an http.Client that logs through zap and sends headers with every request.
func NewClient(timeout time.Duration, headers map[string]string) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: http.DefaultTransport,
			Headers: headers,
		},
		Timeout: timeout,
	}
}
