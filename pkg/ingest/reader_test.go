package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/message"
	"github.com/luxfi/fixinject/pkg/protocol"
)

const validFIX = "8=FIX.4.2\x019=40\x0135=A\x0149=S\x0156=T\x01"

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

func newTestReader(t *testing.T, cfg *config.Config) *Reader {
	t.Helper()
	logger := testLogger()
	handler, err := protocol.Default(logger).Resolve(cfg.Protocol)
	require.NoError(t, err)
	return NewReader(cfg, handler, logger)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, r *Reader) []message.Message {
	t.Helper()
	var got []message.Message
	require.NoError(t, r.ReadMessages(func(m message.Message) { got = append(got, m) }))
	return got
}

func TestReadMessagesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.txt")
	write(t, path, validFIX+"\n"+validFIX+"\n"+validFIX+"\n")

	cfg := config.Default()
	cfg.InputPath = path
	got := collect(t, newTestReader(t, cfg))

	require.Len(t, got, 3)
	for _, m := range got {
		assert.Equal(t, []byte(validFIX), m.Bytes())
	}
}

func TestReadMessagesMissingPath(t *testing.T) {
	cfg := config.Default()
	cfg.InputPath = filepath.Join(t.TempDir(), "does-not-exist")

	err := newTestReader(t, cfg).ReadMessages(func(message.Message) {})
	assert.Error(t, err)
}

func TestReadMessagesGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	for i := 0; i < 3; i++ {
		_, err = gz.Write([]byte(validFIX + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.InputPath = path
	got := collect(t, newTestReader(t, cfg))

	// Same count and order as the uncompressed equivalent.
	require.Len(t, got, 3)
	for _, m := range got {
		assert.Equal(t, []byte(validFIX), m.Bytes())
	}
}

func TestDirectoryOrderingIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "c.txt"), validFIX+"\n")
	write(t, filepath.Join(dir, "a.txt"), validFIX+"\n")
	write(t, filepath.Join(dir, "b.fix"), validFIX+"\n")

	for _, recursive := range []bool{false, true} {
		cfg := config.Default()
		cfg.InputPath = dir
		cfg.Recursive = recursive
		r := newTestReader(t, cfg)

		first, err := r.collectFiles(dir)
		require.NoError(t, err)
		second, err := r.collectFiles(dir)
		require.NoError(t, err)

		assert.Equal(t, first, second, "recursive=%v", recursive)
		require.Len(t, first, 3)
		assert.Equal(t, "a.txt", filepath.Base(first[0]))
		assert.Equal(t, "b.fix", filepath.Base(first[1]))
		assert.Equal(t, "c.txt", filepath.Base(first[2]))
	}
}

func TestDirectoryExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "keep.fix"), validFIX+"\n")
	write(t, filepath.Join(dir, "skip.tmp"), validFIX+"\n")

	cfg := config.Default()
	cfg.InputPath = dir
	cfg.Recursive = false
	r := newTestReader(t, cfg)

	files, err := r.collectFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.fix", filepath.Base(files[0]))
}

func TestRecursiveWalkRespectsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "top.txt"), validFIX+"\n")
	write(t, filepath.Join(dir, "sub", "mid.txt"), validFIX+"\n")
	write(t, filepath.Join(dir, "sub", "deeper", "deep.txt"), validFIX+"\n")

	cfg := config.Default()
	cfg.InputPath = dir
	cfg.Recursive = true
	cfg.MaxDepth = 2
	r := newTestReader(t, cfg)

	files, err := r.collectFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "mid.txt", filepath.Base(files[0]))
	assert.Equal(t, "top.txt", filepath.Base(files[1]))
}

func TestRecursiveWalkSortsByFullPath(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "z", "1.txt"), validFIX+"\n")
	write(t, filepath.Join(dir, "a", "2.txt"), validFIX+"\n")

	cfg := config.Default()
	cfg.InputPath = dir
	cfg.Recursive = true
	r := newTestReader(t, cfg)

	files, err := r.collectFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "2.txt", filepath.Base(files[0]))
	assert.Equal(t, "1.txt", filepath.Base(files[1]))
}

func TestDirectoryReplayOrderAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	msgA := "8=FIX.4.2\x019=40\x0135=A\x0149=S1\x0156=T\x01"
	msgB := "8=FIX.4.2\x019=40\x0135=B\x0149=S2\x0156=T\x01"
	write(t, filepath.Join(dir, "01-first.txt"), msgA+"\n")
	write(t, filepath.Join(dir, "02-second.txt"), msgB+"\n")

	cfg := config.Default()
	cfg.InputPath = dir
	got := collect(t, newTestReader(t, cfg))

	require.Len(t, got, 2)
	assert.Equal(t, []byte(msgA), got[0].Bytes())
	assert.Equal(t, []byte(msgB), got[1].Bytes())
}

func TestValidationGate(t *testing.T) {
	dir := t.TempDir()
	partial := "8=FIX.4.2\x0135=A\x01"
	path := filepath.Join(dir, "mixed.txt")
	write(t, path, validFIX+"\n"+partial+"\n")

	cfg := config.Default()
	cfg.InputPath = path
	assert.Len(t, collect(t, newTestReader(t, cfg)), 2)

	cfg = config.Default()
	cfg.InputPath = path
	cfg.Validation = true
	assert.Len(t, collect(t, newTestReader(t, cfg)), 1)
}

func TestBinaryDirectoryDispatch(t *testing.T) {
	dir := t.TempDir()
	header := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "msg.bin"), append(header, []byte("hello")...), 0o644))

	cfg := config.Default()
	cfg.InputPath = dir
	cfg.Protocol = "BYTE_HEADER_XML"
	cfg.HeaderLength = 4
	got := collect(t, newTestReader(t, cfg))

	require.Len(t, got, 1)
	fb, ok := got[0].(*message.FramedBinary)
	require.True(t, ok)
	assert.Equal(t, header, fb.Header())
	assert.Equal(t, "hello", fb.Payload())
}

func TestCountMessages(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), validFIX+"\n"+validFIX+"\n")
	write(t, filepath.Join(dir, "b.txt"), validFIX+"\n")

	cfg := config.Default()
	cfg.InputPath = dir
	n, err := newTestReader(t, cfg).CountMessages()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
