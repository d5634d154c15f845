package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultPort    = 8080
	DefaultPath    = "/configure"
	DefaultTimeout = 5 * time.Second

	scheme = "http"
)

// HTTPChecker issues one GET to http://<host>:<port><path>.
type HTTPChecker struct {
	Client *http.Client
	Port   int
	Path   string
}

func NewHTTPChecker(port int, path string, timeout time.Duration) *HTTPChecker {
	if port <= 0 {
		port = DefaultPort
	}
	if path == "" {
		path = DefaultPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
		Port:   port,
		Path:   path,
	}
}

// URL returns the probe target for host.
func (h *HTTPChecker) URL(host string) string {
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(h.Port)) + h.Path
}

func (h *HTTPChecker) Check(ctx context.Context, host string) CheckResult {
	target := h.URL(host)
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Host: host, URL: target, Outcome: NoResponse, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Host: host, URL: target, Outcome: NoResponse, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	out := NoResponse
	if resp.StatusCode == http.StatusOK {
		out = Responded
	}
	return CheckResult{
		Host:       host,
		URL:        target,
		Outcome:    out,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
		Message:    resp.Status,
	}
}
