// Package ingest turns a file or directory tree into an ordered stream
// of parsed messages. Ingestion is single-threaded and synchronous: the
// consumer callback blocks the reader, which is the pipeline's natural
// backpressure.
package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/fileutil"
	"github.com/luxfi/fixinject/pkg/message"
	"github.com/luxfi/fixinject/pkg/protocol"
)

// Reader streams messages from the configured input path using the
// resolved protocol handler.
type Reader struct {
	cfg     *config.Config
	handler protocol.Handler
	logger  log.Logger
	opts    protocol.ReadOptions
}

// NewReader builds a Reader for the given configuration and handler.
func NewReader(cfg *config.Config, handler protocol.Handler, logger log.Logger) *Reader {
	return &Reader{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		opts: protocol.ReadOptions{
			BufferSize:   cfg.BufferSize,
			Validate:     cfg.Validation,
			HeaderLength: cfg.HeaderLength,
		},
	}
}

// ReadMessages feeds every accepted message from the input path into
// emit, in deterministic order. A missing input path is fatal; per-file
// read failures inside a directory are logged and skipped.
func (r *Reader) ReadMessages(emit func(message.Message)) error {
	info, err := os.Stat(r.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("input path %s: %w", r.cfg.InputPath, err)
	}
	if info.IsDir() {
		return r.readDirectory(r.cfg.InputPath, emit)
	}
	return r.readFile(r.cfg.InputPath, emit)
}

// CountMessages runs a full read pass counting accepted messages
// without forwarding them anywhere.
func (r *Reader) CountMessages() (int64, error) {
	var n int64
	err := r.ReadMessages(func(message.Message) { n++ })
	return n, err
}

func (r *Reader) readDirectory(dir string, emit func(message.Message)) error {
	files, err := r.collectFiles(dir)
	if err != nil {
		return err
	}
	r.logger.Info("found input files", "dir", dir, "count", len(files), "recursive", r.cfg.Recursive)

	for _, f := range files {
		if err := r.readFile(f, emit); err != nil {
			r.logger.Error("failed to read file, skipping", "path", f, "error", err)
		}
	}
	r.logger.Info("finished reading directory", "dir", dir)
	return nil
}

// collectFiles returns the candidate files under dir in the replay
// order contract: non-recursive listings sort by file name, recursive
// walks sort by full path. Two calls over the same tree produce the
// same order.
func (r *Reader) collectFiles(dir string) ([]string, error) {
	var files []string

	if r.cfg.Recursive {
		root := filepath.Clean(dir)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				r.logger.Warn("walk error, skipping entry", "path", path, "error", err)
				return nil
			}
			depth := r.depth(root, path)
			if d.IsDir() {
				if depth >= r.cfg.MaxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && r.matchesExtension(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
		sort.Strings(files)
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && r.matchesExtension(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

func (r *Reader) depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// matchesExtension checks the file name against the union of the
// protocol handler's extensions and the configured extension list.
func (r *Reader) matchesExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range r.handler.Extensions() {
		if strings.HasSuffix(lower, "."+strings.ToLower(ext)) {
			return true
		}
	}
	for _, ext := range r.cfg.Extensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// readFile dispatches one file by extension: gzip streams go through
// the shared line path beneath the compression layer, everything else
// is the protocol handler's business.
func (r *Reader) readFile(path string, emit func(message.Message)) error {
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return r.readGzipFile(path, emit)
	}
	return r.handler.ReadFile(path, r.opts, emit)
}

func (r *Reader) readGzipFile(path string, emit func(message.Message)) error {
	return fileutil.ReadGzipFile(path, r.logger, func(line string) {
		s := strings.TrimSpace(line)
		if s == "" {
			return
		}
		m, err := r.handler.ParseText(s)
		if err != nil {
			r.logger.Warn("failed to parse message from gzip", "path", path, "error", err)
			return
		}
		if !r.cfg.Validation || m.Valid() {
			emit(m)
		}
	})
}
