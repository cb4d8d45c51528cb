// Package metrics implements the concurrent performance engine: atomic
// per-message counters with CAS min/max latency tracking, periodic
// human-readable snapshots and an optional Prometheus mirror.
package metrics

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Performance accumulates per-message latency, byte and error counts
// from multiple goroutines. Every counter is independently atomic;
// there is no joint lock, so a concurrent snapshot may observe a count
// that does not exactly match the sum/min/max at that instant. That is
// fine for monitoring and is the documented contract.
type Performance struct {
	messages   atomic.Int64
	errors     atomic.Int64
	latencySum atomic.Int64 // nanoseconds
	latencyMin atomic.Int64 // nanoseconds, MaxInt64 until first record
	latencyMax atomic.Int64 // nanoseconds
	bytes      atomic.Int64

	startNanos   atomic.Int64 // unix nanos, 0 while not started
	lastLogNanos atomic.Int64
	lastCount    atomic.Int64
	running      atomic.Bool

	logger log.Logger
	mirror *promMirror
}

// Option configures a Performance engine.
type Option func(*Performance)

// WithRegistry mirrors the engine's counters into the given Prometheus
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(p *Performance) {
		p.mirror = newPromMirror(reg)
	}
}

// NewPerformance builds an idle engine. Call Start before recording.
func NewPerformance(logger log.Logger, opts ...Option) *Performance {
	p := &Performance{logger: logger}
	p.latencyMin.Store(math.MaxInt64)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start records the run start timestamp and resets the log checkpoint.
func (p *Performance) Start() {
	now := time.Now().UnixNano()
	p.startNanos.Store(now)
	p.lastLogNanos.Store(now)
	p.running.Store(true)
	p.logger.Info("performance metrics started")
}

// Stop marks the engine stopped. Counters are never reset mid-run.
func (p *Performance) Stop() {
	p.running.Store(false)
	p.logger.Info("performance metrics stopped")
}

// Running reports whether Start has been called without a later Stop.
func (p *Performance) Running() bool { return p.running.Load() }

// RecordMessage counts one injected message and folds its latency into
// the running sum, min and max.
func (p *Performance) RecordMessage(latency time.Duration) {
	ns := latency.Nanoseconds()
	p.messages.Add(1)
	p.latencySum.Add(ns)

	for {
		cur := p.latencyMin.Load()
		if ns >= cur || p.latencyMin.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := p.latencyMax.Load()
		if ns <= cur || p.latencyMax.CompareAndSwap(cur, ns) {
			break
		}
	}

	if p.mirror != nil {
		p.mirror.messages.Inc()
		p.mirror.latency.Observe(latency.Seconds())
	}
}

// RecordMessageSize counts one message plus its size in bytes.
func (p *Performance) RecordMessageSize(latency time.Duration, size int) {
	p.RecordMessage(latency)
	p.bytes.Add(int64(size))
	if p.mirror != nil {
		p.mirror.bytes.Add(float64(size))
	}
}

// RecordError counts one failed injection.
func (p *Performance) RecordError() {
	p.errors.Add(1)
	if p.mirror != nil {
		p.mirror.errors.Inc()
	}
}

// MessageCount returns the total messages recorded so far.
func (p *Performance) MessageCount() int64 { return p.messages.Load() }

// ErrorCount returns the total errors recorded so far.
func (p *Performance) ErrorCount() int64 { return p.errors.Load() }

// ByteCount returns the total bytes recorded so far.
func (p *Performance) ByteCount() int64 { return p.bytes.Load() }

// AverageLatency returns the mean recorded latency, zero when nothing
// was recorded.
func (p *Performance) AverageLatency() time.Duration {
	n := p.messages.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(p.latencySum.Load() / n)
}

// MinLatency returns the smallest recorded latency, zero when nothing
// was recorded.
func (p *Performance) MinLatency() time.Duration {
	v := p.latencyMin.Load()
	if v == math.MaxInt64 {
		return 0
	}
	return time.Duration(v)
}

// MaxLatency returns the largest recorded latency.
func (p *Performance) MaxLatency() time.Duration {
	return time.Duration(p.latencyMax.Load())
}

// LogMetrics emits one snapshot line: instantaneous rate since the last
// checkpoint, average rate, latency stats and data throughput. It is a
// no-op before Start.
func (p *Performance) LogMetrics() {
	if !p.running.Load() {
		return
	}

	now := time.Now().UnixNano()
	msgs := p.messages.Load()
	errs := p.errors.Load()
	bytes := p.bytes.Load()

	totalSec := float64(now-p.startNanos.Load()) / 1e9
	intervalSec := float64(now-p.lastLogNanos.Load()) / 1e9

	intervalMsgs := msgs - p.lastCount.Load()
	currentRate := 0.0
	if intervalSec > 0 {
		currentRate = float64(intervalMsgs) / intervalSec
	}
	averageRate := 0.0
	if totalSec > 0 {
		averageRate = float64(msgs) / totalSec
	}

	dataMB := float64(bytes) / (1024 * 1024)
	dataRate := 0.0
	if totalSec > 0 {
		dataRate = dataMB / totalSec
	}

	p.logger.Info("metrics",
		"messages", msgs,
		"rate_current", fmt.Sprintf("%.0f/s", currentRate),
		"rate_avg", fmt.Sprintf("%.0f/s", averageRate),
		"latency_avg_ms", fmt.Sprintf("%.2f", durationMillis(p.AverageLatency())),
		"latency_min_ms", fmt.Sprintf("%.2f", durationMillis(p.MinLatency())),
		"latency_max_ms", fmt.Sprintf("%.2f", durationMillis(p.MaxLatency())),
		"data_mb", fmt.Sprintf("%.2f", dataMB),
		"data_rate", fmt.Sprintf("%.2f MB/s", dataRate),
		"errors", errs,
		"runtime", formatRuntime(time.Duration(now-p.startNanos.Load())))

	p.lastLogNanos.Store(now)
	p.lastCount.Store(msgs)
}

// PrintFinalReport prints the whole-run summary, including the success
// rate. It is a no-op if the engine was never started.
func (p *Performance) PrintFinalReport() {
	start := p.startNanos.Load()
	if start == 0 {
		return
	}

	totalSec := float64(time.Now().UnixNano()-start) / 1e9
	msgs := p.messages.Load()
	errs := p.errors.Load()
	dataMB := float64(p.bytes.Load()) / (1024 * 1024)

	throughput := 0.0
	dataRate := 0.0
	if totalSec > 0 {
		throughput = float64(msgs) / totalSec
		dataRate = dataMB / totalSec
	}
	successRate := 100.0
	if msgs+errs > 0 {
		successRate = float64(msgs) * 100 / float64(msgs+errs)
	}

	fmt.Println("\n=== FINAL PERFORMANCE REPORT ===")
	fmt.Printf("Total runtime: %.3f sec\n", totalSec)
	fmt.Printf("Messages processed: %d\n", msgs)
	fmt.Printf("Data processed: %.2f MB\n", dataMB)
	fmt.Printf("Average throughput: %.2f messages/sec\n", throughput)
	fmt.Printf("Average data rate: %.2f MB/sec\n", dataRate)
	fmt.Println("Latency statistics:")
	fmt.Printf("  - Average: %.2f ms\n", durationMillis(p.AverageLatency()))
	fmt.Printf("  - Minimum: %.2f ms\n", durationMillis(p.MinLatency()))
	fmt.Printf("  - Maximum: %.2f ms\n", durationMillis(p.MaxLatency()))
	fmt.Printf("Total errors: %d\n", errs)
	fmt.Printf("Success rate: %.2f%%\n", successRate)
	fmt.Println("================================")
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func formatRuntime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
