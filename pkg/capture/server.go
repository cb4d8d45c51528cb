// Package capture implements the validation-side test harness: a TCP
// server that reassembles line-delimited protocol messages from any
// number of concurrent clients and appends each valid one to a
// per-connection log file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/message"
)

// acceptPollInterval bounds how long the accept loop blocks so a
// shutdown is observed promptly.
const acceptPollInterval = time.Second

var addrSanitizer = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Server accepts injector connections and persists what they send. The
// Go runtime's netpoller is the readiness layer: one goroutine per
// connection parks on read-readiness, the accept loop polls with a
// bounded deadline.
type Server struct {
	cfg    *config.Config
	logger log.Logger

	listener  *net.TCPListener
	outputDir string

	messages atomic.Int64
	bytes    atomic.Int64

	stopping atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer builds a capture server, creating the output directory if
// needed.
func NewServer(cfg *config.Config, logger log.Logger) (*Server, error) {
	dir := cfg.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		outputDir: dir,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Start binds the listening socket. Bind failure is fatal to the run.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln.(*net.TCPListener)
	s.logger.Info("capture server started",
		"addr", s.listener.Addr().String(),
		"output", s.outputDir)
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until Stop is called or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("capture server not started")
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for !s.stopping.Load() {
		if err := s.listener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			break
		}
		conn, err := s.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.stopping.Load() {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.logger.Info("client connected", "remote", conn.RemoteAddr().String())
		s.track(conn)
		s.wg.Add(1)
		go s.handleConn(conn)
	}

	s.wg.Wait()
	return nil
}

func (s *Server) track(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

// handleConn reads the client's byte stream until disconnect. Each read
// is processed on its own; a failing client never affects the others.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	buf := make([]byte, s.cfg.BufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.bytes.Add(int64(n))
			s.processData(string(buf[:n]), remote)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected", "remote", remote)
			} else if !s.stopping.Load() {
				s.logger.Error("error reading from client", "remote", remote, "error", err)
			}
			return
		}
	}
}

// processData splits one read's buffer into lines and persists each
// valid message. The buffer is split independently per read — partial
// lines are not carried across reads, so a line spanning two reads
// arrives as two fragments.
func (s *Server) processData(data, remote string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !message.WellFormedTagValue(line) {
			s.logger.Warn("invalid message received", "remote", remote, "prefix", truncate(line, 100))
			continue
		}
		m := message.NewTagValue(line)
		if err := s.saveMessage(m, remote); err != nil {
			s.logger.Error("failed to persist message", "remote", remote, "error", err)
			continue
		}
		if count := s.messages.Add(1); count%1000 == 0 {
			s.logger.Info("capture progress",
				"messages", count,
				"data_mb", fmt.Sprintf("%.2f", float64(s.bytes.Load())/(1024*1024)))
		}
	}
}

// saveMessage appends one record to the client's log file, falling back
// to the shared per-run file when the primary write fails.
func (s *Server) saveMessage(m *message.TagValue, remote string) error {
	now := time.Now()
	stamp := now.Format("2006-01-02_15-04-05")
	client := addrSanitizer.ReplaceAllString(remote, "_")

	entry := fmt.Sprintf("[%s] %s | %s\n",
		now.Format("2006-01-02 15:04:05.000"), m.String(), m.Raw())

	primary := filepath.Join(s.outputDir, fmt.Sprintf("fix-messages_%s_%s.txt", stamp, client))
	if err := appendLine(primary, entry); err != nil {
		s.logger.Error("failed to write message file, using fallback", "path", primary, "error", err)
		fallback := filepath.Join(s.outputDir, fmt.Sprintf("fix-messages_%s.txt", stamp))
		return appendLine(fallback, entry)
	}
	return nil
}

func appendLine(path, entry string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

// Stats returns the aggregate message and byte counts.
func (s *Server) Stats() (messages, bytes int64) {
	return s.messages.Load(), s.bytes.Load()
}

// Stop is idempotent: it closes the listener and all client
// connections and logs the aggregate statistics.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		if s.listener != nil {
			s.listener.Close()
		}

		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()

		s.logger.Info("capture server stopped",
			"messages", s.messages.Load(),
			"data_mb", fmt.Sprintf("%.2f", float64(s.bytes.Load())/(1024*1024)),
			"output", s.outputDir)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
