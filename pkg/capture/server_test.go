package capture

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fixinject/pkg/config"
)

const validFIX = "8=FIX.4.2\x019=40\x0135=A\x0149=S\x0156=T\x01"

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.OutputDir = t.TempDir()

	s, err := NewServer(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	go func() { _ = s.Serve(context.Background()) }()
	t.Cleanup(s.Stop)
	return s, s.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func waitForMessages(t *testing.T, s *Server, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		msgs, _ := s.Stats()
		return msgs >= want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServerPersistsValidMessages(t *testing.T) {
	s, addr := startServer(t)
	conn := dial(t, addr)

	_, err := conn.Write([]byte(validFIX + "\n"))
	require.NoError(t, err)

	waitForMessages(t, s, 1)

	files := outputFiles(t, s.outputDir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "fix-messages_"))

	data, err := os.ReadFile(filepath.Join(s.outputDir, files[0]))
	require.NoError(t, err)
	record := string(data)
	assert.Contains(t, record, validFIX)
	assert.Contains(t, record, "TagValue{")
	assert.True(t, strings.HasPrefix(record, "["))
}

func TestServerDropsInvalidLines(t *testing.T) {
	s, addr := startServer(t)
	conn := dial(t, addr)

	_, err := conn.Write([]byte("this is not a message\n" + validFIX + "\n"))
	require.NoError(t, err)

	waitForMessages(t, s, 1)
	msgs, bytes := s.Stats()
	assert.Equal(t, int64(1), msgs)
	assert.Positive(t, bytes)
}

func TestServerSplitsEachReadIndependently(t *testing.T) {
	// A message split across two writes arrives as two fragments: no
	// partial-line state is carried between reads. Neither fragment is
	// well-formed on its own, so nothing is persisted.
	s, _ := startServer(t)

	half := len(validFIX) / 2
	s.processData(validFIX[:half], "test-client")
	s.processData(validFIX[half:]+"\n", "test-client")

	msgs, _ := s.Stats()
	assert.Equal(t, int64(0), msgs)
	assert.Empty(t, outputFiles(t, s.outputDir))

	// The intended semantics would need cross-read buffering: the same
	// bytes in one read parse fine.
	s.processData(validFIX+"\n", "test-client")
	msgs, _ = s.Stats()
	assert.Equal(t, int64(1), msgs)
}

func TestServerMultipleMessagesPerRead(t *testing.T) {
	s, _ := startServer(t)

	s.processData(validFIX+"\n"+validFIX+"\n"+validFIX+"\n", "test-client")

	msgs, _ := s.Stats()
	assert.Equal(t, int64(3), msgs)
}

func TestServerDisconnectIsolation(t *testing.T) {
	s, addr := startServer(t)

	first := dial(t, addr)
	second := dial(t, addr)

	_, err := first.Write([]byte(validFIX + "\n"))
	require.NoError(t, err)
	waitForMessages(t, s, 1)
	require.NoError(t, first.Close())

	// The surviving connection keeps working.
	_, err = second.Write([]byte(validFIX + "\n"))
	require.NoError(t, err)
	waitForMessages(t, s, 2)
}

func TestServerPerClientFiles(t *testing.T) {
	s, addr := startServer(t)

	first := dial(t, addr)
	second := dial(t, addr)

	_, err := first.Write([]byte(validFIX + "\n"))
	require.NoError(t, err)
	_, err = second.Write([]byte(validFIX + "\n"))
	require.NoError(t, err)

	waitForMessages(t, s, 2)
	assert.Len(t, outputFiles(t, s.outputDir), 2)
}

func TestServerStopIdempotent(t *testing.T) {
	s, _ := startServer(t)
	s.Stop()
	s.Stop()

	msgs, bytes := s.Stats()
	assert.Zero(t, msgs)
	assert.Zero(t, bytes)
}

func TestServerAddrSanitization(t *testing.T) {
	assert.Equal(t, "127.0.0.1_9999", addrSanitizer.ReplaceAllString("127.0.0.1:9999", "_"))
	assert.Equal(t, "___1__9999", addrSanitizer.ReplaceAllString("[::1]:9999", "_"))
}
