package cms

import (
	"net/http"
	"time"
)

// Logger is the subset of echo.Logger the client writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}

// loggingRoundTripper logs every outbound request with its status and duration.
type loggingRoundTripper struct {
	inner http.RoundTripper
	log   Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.inner.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		l.log.Errorf("cms: %s %s failed after %s: %v", req.Method, redact(req), duration, err)
		return nil, err
	}
	l.log.Debugf("cms: %s %s -> %d (%s)", req.Method, redact(req), resp.StatusCode, duration)
	return resp, nil
}

// redact drops the access token from logged URLs.
func redact(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NewHTTPClient returns an http.Client with request logging. A zero timeout
// means 10 seconds.
func NewHTTPClient(timeout time.Duration, log Logger) *http.Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = nopLogger{}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{inner: http.DefaultTransport, log: log},
	}
}
