package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/hosts"
	"github.com/hamed0406/jenkinsprobe/internal/probe"
)

// --- fakes ---

// roundTripFunc is a mock transport for the real HTTPChecker.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func status(code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

// mockChecker builds an HTTPChecker whose transport answers per host.
func mockChecker(timeout time.Duration, byHost func(r *http.Request) (*http.Response, error)) *probe.HTTPChecker {
	chk := probe.NewHTTPChecker(probe.DefaultPort, probe.DefaultPath, timeout)
	chk.Client.Transport = roundTripFunc(byHost)
	return chk
}

// hangUntilCancelled blocks like an unresponsive host.
func hangUntilCancelled(r *http.Request) (*http.Response, error) {
	<-r.Context().Done()
	return nil, r.Context().Err()
}

type countingChecker struct {
	inFlight int64
	peak     int64
	calls    int64
	delay    time.Duration
}

func (c *countingChecker) Check(ctx context.Context, host string) probe.CheckResult {
	atomic.AddInt64(&c.calls, 1)
	n := atomic.AddInt64(&c.inFlight, 1)
	for {
		p := atomic.LoadInt64(&c.peak)
		if n <= p || atomic.CompareAndSwapInt64(&c.peak, p, n) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt64(&c.inFlight, -1)
	return probe.CheckResult{Host: host, Outcome: probe.Responded, StatusCode: 200}
}

type panicChecker struct{}

func (panicChecker) Check(ctx context.Context, host string) probe.CheckResult {
	if host == "boom" {
		panic("bad host")
	}
	return probe.CheckResult{Host: host, Outcome: probe.Responded, StatusCode: 200}
}

// deafChecker ignores its context entirely.
type deafChecker struct{ sleep time.Duration }

func (d deafChecker) Check(ctx context.Context, host string) probe.CheckResult {
	time.Sleep(d.sleep)
	return probe.CheckResult{Host: host, Outcome: probe.Responded, StatusCode: 200}
}

func assertPartition(t *testing.T, p domain.Partition, all hosts.Set, wantVuln ...string) {
	t.Helper()
	if p.Total() != all.Len() {
		t.Fatalf("partition covers %d hosts, want %d", p.Total(), all.Len())
	}
	for h := range all {
		if p.Vulnerable.Contains(h) == p.Protected.Contains(h) {
			t.Fatalf("host %q must be in exactly one group", h)
		}
	}
	if p.Vulnerable.Len() != len(wantVuln) {
		t.Fatalf("want vulnerable %v, got %v", wantVuln, p.Vulnerable.Sorted())
	}
	for _, h := range wantVuln {
		if !p.Vulnerable.Contains(h) {
			t.Fatalf("want %q vulnerable, got %v", h, p.Vulnerable.Sorted())
		}
	}
}

// --- tests ---

func TestEngine_EmptyInput(t *testing.T) {
	e := New(zap.NewNop(), &countingChecker{}, Options{})
	p, err := e.Run(context.Background(), hosts.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.Vulnerable.Len() != 0 || p.Protected.Len() != 0 {
		t.Fatalf("want empty groups, got %+v", p.Groups())
	}
}

func TestEngine_AllSuccess(t *testing.T) {
	chk := mockChecker(time.Second, func(r *http.Request) (*http.Response, error) {
		return status(200), nil
	})
	all := hosts.FromLines([]string{"10.0.0.1", "10.0.0.2"})

	p, err := New(zap.NewNop(), chk, Options{}).Run(context.Background(), all)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertPartition(t, p, all, "10.0.0.1", "10.0.0.2")
}

func TestEngine_Mixed(t *testing.T) {
	chk := mockChecker(100*time.Millisecond, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Hostname() {
		case "a":
			return status(200), nil
		case "b":
			return status(403), nil
		default:
			return hangUntilCancelled(r)
		}
	})
	all := hosts.FromLines([]string{"a", "b", "c"})

	p, err := New(zap.NewNop(), chk, Options{Timeout: 100 * time.Millisecond}).Run(context.Background(), all)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertPartition(t, p, all, "a")
	if !p.Protected.Contains("b") || !p.Protected.Contains("c") {
		t.Fatalf("want b and c protected, got %v", p.Protected.Sorted())
	}
}

func TestEngine_TransportErrorsAreProtected(t *testing.T) {
	chk := mockChecker(time.Second, func(r *http.Request) (*http.Response, error) {
		if r.URL.Hostname() == "refused" {
			return nil, errors.New("connect: connection refused")
		}
		return status(500), nil
	})
	all := hosts.FromLines([]string{"refused", "broken"})

	p, err := New(zap.NewNop(), chk, Options{}).Run(context.Background(), all)
	if err != nil {
		t.Fatalf("per-host failures must not surface: %v", err)
	}
	assertPartition(t, p, all)
}

func TestEngine_Idempotent(t *testing.T) {
	chk := mockChecker(time.Second, func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Hostname(), "1") {
			return status(200), nil
		}
		return status(401), nil
	})
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("host-%d", i))
	}
	all := hosts.FromLines(lines)
	e := New(zap.NewNop(), chk, Options{Concurrency: 7})

	first, err := e.Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	a, b := first.Vulnerable.Sorted(), second.Vulnerable.Sorted()
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Fatalf("runs disagree: %v vs %v", a, b)
	}
	assertPartition(t, first, all, a...)
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	chk := &countingChecker{delay: 5 * time.Millisecond}
	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, fmt.Sprintf("10.0.%d.1", i))
	}
	all := hosts.FromLines(lines)

	const limit = 4
	p, err := New(zap.NewNop(), chk, Options{Concurrency: limit}).Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	if peak := atomic.LoadInt64(&chk.peak); peak > limit {
		t.Fatalf("peak in-flight %d exceeds bound %d", peak, limit)
	}
	if calls := atomic.LoadInt64(&chk.calls); calls != int64(all.Len()) {
		t.Fatalf("want each host probed once, got %d calls for %d hosts", calls, all.Len())
	}
	if p.Vulnerable.Len() != all.Len() {
		t.Fatalf("want all vulnerable, got %d", p.Vulnerable.Len())
	}
}

func TestEngine_TimeoutEnforced(t *testing.T) {
	const timeout = 50 * time.Millisecond
	chk := mockChecker(time.Minute, hangUntilCancelled)
	all := hosts.FromLines([]string{"slow"})

	start := time.Now()
	p, err := New(zap.NewNop(), chk, Options{Timeout: timeout}).Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took > timeout+time.Second {
		t.Fatalf("engine blocked %s, timeout was %s", took, timeout)
	}
	assertPartition(t, p, all)
}

func TestEngine_TimeoutWithDeafChecker(t *testing.T) {
	const timeout = 30 * time.Millisecond
	all := hosts.FromLines([]string{"x"})

	start := time.Now()
	p, err := New(zap.NewNop(), deafChecker{sleep: 2 * time.Second}, Options{Timeout: timeout}).Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("engine waited on a checker past its timeout: %s", took)
	}
	assertPartition(t, p, all)
}

func TestEngine_PanicIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	all := hosts.FromLines([]string{"ok", "boom"})

	p, err := New(zap.New(core), panicChecker{}, Options{}).Run(context.Background(), all)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertPartition(t, p, all, "ok")
	if logs.FilterMessage("probe_panic").Len() != 1 {
		t.Fatalf("want one probe_panic log, got %v", logs.All())
	}
}

func TestEngine_CancelledContextIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	all := hosts.FromLines([]string{"a", "b", "c"})
	_, err := New(zap.NewNop(), &countingChecker{}, Options{Concurrency: 1}).Run(ctx, all)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestEngine_OnProbeCalledPerHost(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]probe.Outcome{}
	chk := mockChecker(time.Second, func(r *http.Request) (*http.Response, error) {
		if r.URL.Hostname() == "open" {
			return status(200), nil
		}
		return status(404), nil
	})
	e := New(zap.NewNop(), chk, Options{OnProbe: func(r probe.CheckResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[r.Host] = r.Outcome
	}})

	if _, err := e.Run(context.Background(), hosts.FromLines([]string{"open", "closed"})); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen["open"] != probe.Responded || seen["closed"] != probe.NoResponse {
		t.Fatalf("unexpected callbacks: %v", seen)
	}
}

func TestEngine_LogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	chk := mockChecker(time.Second, func(r *http.Request) (*http.Response, error) { return status(200), nil })

	if _, err := New(zap.New(core), chk, Options{}).Run(context.Background(), hosts.FromLines([]string{"a"})); err != nil {
		t.Fatal(err)
	}
	fin := logs.FilterMessage("scan_finished").All()
	if len(fin) != 1 || fin[0].ContextMap()["unsecured"] != int64(1) {
		t.Fatalf("unexpected scan_finished entries: %v", fin)
	}
}

func TestEngine_BoundHoldsWhenCheckerIgnoresTimeout(t *testing.T) {
	// each check outlives its timeout by far and never looks at ctx
	chk := &countingChecker{delay: 40 * time.Millisecond}
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("deaf-%d", i))
	}
	all := hosts.FromLines(lines)

	const limit = 2
	p, err := New(zap.NewNop(), chk, Options{Concurrency: limit, Timeout: 5 * time.Millisecond}).Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	assertPartition(t, p, all)

	// abandoned checks outlive Run; let them finish before reading counters
	deadline := time.Now().Add(2 * time.Second)
	for (atomic.LoadInt64(&chk.calls) < int64(all.Len()) || atomic.LoadInt64(&chk.inFlight) > 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if peak := atomic.LoadInt64(&chk.peak); peak > limit {
		t.Fatalf("peak outstanding checks %d exceeds bound %d", peak, limit)
	}
	if calls := atomic.LoadInt64(&chk.calls); calls != int64(all.Len()) {
		t.Fatalf("want each host checked once, got %d calls for %d hosts", calls, all.Len())
	}
}

func TestEngine_TimedOutHostKeepsURL(t *testing.T) {
	chk := mockChecker(time.Minute, hangUntilCancelled)
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("10.1.0.%d", i))
	}

	var mu sync.Mutex
	urls := map[string]string{}
	e := New(zap.NewNop(), chk, Options{Timeout: 20 * time.Millisecond, OnProbe: func(r probe.CheckResult) {
		mu.Lock()
		defer mu.Unlock()
		urls[r.Host] = r.URL
	}})
	if _, err := e.Run(context.Background(), hosts.FromLines(lines)); err != nil {
		t.Fatal(err)
	}

	if len(urls) != len(lines) {
		t.Fatalf("want %d callbacks, got %d", len(lines), len(urls))
	}
	for h, u := range urls {
		if want := "http://" + h + ":8080/configure"; u != want {
			t.Fatalf("host %s reported url %q, want %q", h, u, want)
		}
	}
}
