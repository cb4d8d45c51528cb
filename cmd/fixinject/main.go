// fixinject streams pre-recorded protocol messages from files into a
// TCP endpoint at a controlled rate. With --server it runs the capture
// server used to validate delivery instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/fixinject/pkg/capture"
	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/ingest"
	"github.com/luxfi/fixinject/pkg/inject"
	"github.com/luxfi/fixinject/pkg/metrics"
	"github.com/luxfi/fixinject/pkg/protocol"
)

var (
	inputPath       = flag.String("file", "", "input file, directory or .gz file")
	host            = flag.String("host", config.DefaultHost, "target host")
	port            = flag.Int("port", config.DefaultPort, "target port")
	rate            = flag.Int("rate", config.DefaultRate, "injection rate in messages/sec (0 = unlimited)")
	protocolName    = flag.String("protocol", config.DefaultProtocol, "message protocol")
	headerLength    = flag.Int("header-length", config.DefaultHeaderLength, "header length in bytes for BYTE_HEADER_XML")
	extensions      = flag.String("extensions", config.DefaultExtensions, "comma-separated list of recognized file extensions")
	recursive       = flag.Bool("recursive", true, "recurse into subdirectories")
	maxDepth        = flag.Int("max-depth", config.DefaultMaxDepth, "maximum recursion depth")
	bufferSize      = flag.Int("buffer-size", config.DefaultBufferSize, "read/write buffer size in bytes")
	socketTimeout   = flag.Duration("socket-timeout", config.DefaultSocketTimeout, "socket dial/write timeout")
	batching        = flag.Bool("batching", false, "coalesce messages into batched writes")
	batchSize       = flag.Int("batch-size", config.DefaultBatchSize, "messages per batch")
	validation      = flag.Bool("validate", false, "only inject protocol-valid messages")
	metricsEnabled  = flag.Bool("metrics", true, "track and report performance metrics")
	metricsInterval = flag.Duration("metrics-interval", config.DefaultMetricsInterval, "interval between metrics snapshots")
	metricsPort     = flag.Int("metrics-port", 0, "prometheus endpoint port (0 = disabled)")
	serverMode      = flag.Bool("server", false, "run the capture server instead of injecting")
	outputDir       = flag.String("output", "output", "capture server output directory")
	logLevel        = flag.String("log-level", "info", "log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	level, _ := log.ToLevel(*logLevel)
	logger := log.NewTestLogger(level)

	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if cfg.ServerMode {
		err = runServer(ctx, cfg, logger)
	} else {
		err = runInjector(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func buildConfig() *config.Config {
	cfg := config.Default()
	cfg.InputPath = *inputPath
	cfg.Extensions = config.ParseExtensions(*extensions)
	cfg.Recursive = *recursive
	cfg.MaxDepth = *maxDepth
	cfg.Host = *host
	cfg.Port = *port
	cfg.SocketTimeout = *socketTimeout
	cfg.Rate = *rate
	cfg.BufferSize = *bufferSize
	cfg.Batching = *batching
	cfg.BatchSize = *batchSize
	cfg.Protocol = *protocolName
	cfg.HeaderLength = *headerLength
	cfg.Validation = *validation
	cfg.Metrics = *metricsEnabled
	cfg.MetricsInterval = *metricsInterval
	cfg.MetricsPort = *metricsPort
	cfg.ServerMode = *serverMode
	cfg.OutputDir = *outputDir
	cfg.LogLevel = *logLevel
	return cfg
}

func runServer(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	server, err := capture.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	return server.Serve(ctx)
}

func runInjector(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	// Resolve the protocol before touching the network so unknown
	// names fail fast.
	registry := protocol.Default(logger)
	handler, err := registry.Resolve(cfg.Protocol)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(registry.Names(), ", "))
	}

	var perfOpts []metrics.Option
	if cfg.MetricsPort > 0 {
		perfOpts = append(perfOpts, metrics.WithRegistry(prometheus.NewRegistry()))
	}
	perf := metrics.NewPerformance(logger, perfOpts...)
	if cfg.MetricsPort > 0 {
		perf.StartServer(cfg.MetricsPort, logger)
	}

	logStartupInfo(cfg, logger)

	if cfg.Metrics {
		perf.Start()
	}

	injector := inject.NewInjector(cfg, logger)
	if err := injector.Connect(ctx); err != nil {
		return err
	}
	// Best-effort cleanup on an interrupt: Close drains any queued
	// batch before releasing the socket.
	go func() {
		<-ctx.Done()
		injector.Close()
	}()

	reader := ingest.NewReader(cfg, handler, logger)
	processor := inject.NewProcessor(cfg, injector, perf, logger)

	reporterCtx, cancelReporter := context.WithCancel(ctx)
	defer cancelReporter()
	if cfg.Metrics {
		go perf.RunReporter(reporterCtx, cfg.MetricsInterval)
	}

	readErr := reader.ReadMessages(processor.Process)

	if err := injector.FlushPending(); err != nil {
		logger.Error("failed to flush pending batch", "error", err)
		perf.RecordError()
	}
	cancelReporter()
	injector.Close()

	if readErr != nil {
		return readErr
	}

	logger.Info("injection completed")
	if cfg.Metrics {
		perf.Stop()
		perf.PrintFinalReport()
	}
	return nil
}

func logStartupInfo(cfg *config.Config, logger log.Logger) {
	logger.Info("starting message injector",
		"protocol", cfg.Protocol,
		"input", cfg.InputPath,
		"target", cfg.Addr(),
		"rate", cfg.Rate)
	if cfg.Protocol == "BYTE_HEADER_XML" {
		logger.Info("binary framing", "header_length", cfg.HeaderLength)
	}
	if cfg.Batching {
		logger.Info("batching enabled", "batch_size", cfg.BatchSize)
	}
}
