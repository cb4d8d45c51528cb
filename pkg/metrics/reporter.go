package metrics

import (
	"context"
	"time"
)

// RunReporter logs a snapshot every interval until ctx is cancelled.
// It is the periodic reporter goroutine; cancellation is the injection
// pipeline telling it the run is over.
func (p *Performance) RunReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.LogMetrics()
		case <-ctx.Done():
			return
		}
	}
}
