package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/hosts"
	"github.com/hamed0406/jenkinsprobe/internal/probe"
)

const (
	DefaultConcurrency = 50
	DefaultTimeout     = probe.DefaultTimeout
)

type Options struct {
	Concurrency int
	Timeout     time.Duration
	// OnProbe is called once per host as soon as its probe resolves.
	// It runs on the probe goroutine and must be safe for concurrent use.
	OnProbe func(probe.CheckResult)
}

// Engine fans a host set out over a bounded number of concurrent probes.
type Engine struct {
	Logger      *zap.Logger
	Checker     probe.Checker
	Concurrency int
	Timeout     time.Duration
	OnProbe     func(probe.CheckResult)
}

func New(logger *zap.Logger, checker probe.Checker, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{
		Logger:      logger,
		Checker:     checker,
		Concurrency: opts.Concurrency,
		Timeout:     opts.Timeout,
		OnProbe:     opts.OnProbe,
	}
}

// Run probes every host exactly once and blocks until every host is
// classified. A check abandoned at its timeout keeps its slot until it
// returns, so at most Concurrency checks are ever outstanding.
// Per-host failures only affect classification. An error is returned when a
// probe slot cannot be acquired, i.e. ctx was cancelled mid-dispatch; probes
// already in flight are still awaited first.
func (e *Engine) Run(ctx context.Context, set hosts.Set) (domain.Partition, error) {
	start := time.Now()
	e.Logger.Info("scan_started",
		zap.Int("hosts", set.Len()),
		zap.Int("concurrency", e.Concurrency),
		zap.Duration("timeout", e.Timeout),
	)

	sem := semaphore.NewWeighted(int64(e.Concurrency))
	vulnerable := make(hosts.Set)
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		dispatchErr error
	)

	for _, h := range set.Sorted() {
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchErr = fmt.Errorf("acquire probe slot for %s: %w", h, err)
			break
		}
		wg.Add(1)
		go func(host string) {
			defer wg.Done()

			out := e.probe(ctx, host, func() { sem.Release(1) })
			if out.Vulnerable() {
				mu.Lock()
				vulnerable[host] = struct{}{}
				mu.Unlock()
			}
			if e.OnProbe != nil {
				e.OnProbe(out)
			}
		}(h)
	}

	wg.Wait()

	if dispatchErr != nil {
		e.Logger.Error("scan_acquire_error", zap.Error(dispatchErr))
		return domain.Partition{}, dispatchErr
	}

	p := domain.NewPartition(set, vulnerable)
	e.Logger.Info("scan_finished",
		zap.Int("unsecured", p.Vulnerable.Len()),
		zap.Int("secured", p.Protected.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return p, nil
}

// urlBuilder is implemented by checkers that can name their target, so a
// timed-out host is still reported with its URL.
type urlBuilder interface {
	URL(host string) string
}

// probe runs one check under the per-probe timeout. A checker that ignores
// its context or panics still resolves to NoResponse. release frees the
// worker slot once Check has really returned, which may be after the host
// was already classified.
func (e *Engine) probe(ctx context.Context, host string, release func()) probe.CheckResult {
	cctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var target string
	if ub, ok := e.Checker.(urlBuilder); ok {
		target = ub.URL(host)
	}

	done := make(chan probe.CheckResult, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				e.Logger.Error("probe_panic", zap.String("host", host), zap.Any("panic", r))
				done <- probe.CheckResult{Host: host, Outcome: probe.NoResponse, Message: fmt.Sprint("panic: ", r)}
			}
		}()
		done <- e.Checker.Check(cctx, host)
	}()

	var out probe.CheckResult
	select {
	case out = <-done:
	case <-cctx.Done():
		select {
		case out = <-done:
		default:
			out = probe.CheckResult{Host: host, Outcome: probe.NoResponse, Message: cctx.Err().Error()}
		}
	}
	if out.Host == "" {
		out.Host = host
	}
	if out.URL == "" {
		out.URL = target
	}

	e.Logger.Debug("probe_checked",
		zap.String("host", host),
		zap.String("url", out.URL),
		zap.String("outcome", out.Outcome.String()),
		zap.Int("status", out.StatusCode),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)
	return out
}
