package probe

import "context"

// Outcome classifies a single probe.
type Outcome int

const (
	// NoResponse covers refused connections, timeouts, DNS failures and any
	// status other than 200.
	NoResponse Outcome = iota
	// Responded means the configure page answered 200 without auth.
	Responded
)

func (o Outcome) String() string {
	if o == Responded {
		return "responded"
	}
	return "no_response"
}

// CheckResult holds the outcome of a single probe.
//
// StatusCode is 0 for transport errors.
type CheckResult struct {
	Host       string  `json:"host"`
	URL        string  `json:"url"`
	Outcome    Outcome `json:"outcome"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
	Message    string  `json:"message"`
}

func (r CheckResult) Vulnerable() bool { return r.Outcome == Responded }

// Checker probes one host.
type Checker interface {
	Check(ctx context.Context, host string) CheckResult
}
