package inject

import (
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/message"
	"github.com/luxfi/fixinject/pkg/metrics"
)

// Processor ties one message's journey together: time the injection,
// record the latency, then sleep to hold the target rate.
type Processor struct {
	cfg      *config.Config
	injector *Injector
	perf     *metrics.Performance
	logger   log.Logger
}

// NewProcessor builds a Processor around an injector and a metrics
// engine.
func NewProcessor(cfg *config.Config, injector *Injector, perf *metrics.Performance, logger log.Logger) *Processor {
	return &Processor{cfg: cfg, injector: injector, perf: perf, logger: logger}
}

// Process injects one message, records metrics and applies the
// per-message rate delay. Injection failures are logged and counted,
// never propagated — one bad message must not stop the replay.
func (p *Processor) Process(m message.Message) {
	start := time.Now()
	if err := p.injector.Inject(m); err != nil {
		p.logger.Error("failed to inject message", "error", err)
		p.perf.RecordError()
		return
	}
	p.perf.RecordMessageSize(time.Since(start), m.Len())

	if d := p.delay(); d > 0 {
		time.Sleep(d)
	}
}

// delay is the coarse fixed-delay limiter: floor(1000/rate)
// milliseconds per message, zero when the rate is unlimited. It does
// not compensate for drift from slow writes; a slow peer simply
// throttles the pipeline further.
func (p *Processor) delay() time.Duration {
	if p.cfg.Rate <= 0 {
		return 0
	}
	return time.Duration(1000/p.cfg.Rate) * time.Millisecond
}
