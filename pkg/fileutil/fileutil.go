// Package fileutil holds the low-level file readers shared by the
// protocol handlers and the ingestion engine: chunked line splitting,
// gzip streams and fixed-header binary framing.
package fileutil

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/luxfi/log"
)

const progressEvery = 1024 * 1024 // bytes between progress logs

// ReadLines consumes r in bufSize chunks and emits each line. Both '\n'
// and '\r' terminate a line, consecutive terminators emit nothing, and
// a trailing unterminated line is emitted at EOF. Lines are handed to
// emit untrimmed.
func ReadLines(r io.Reader, bufSize int, emit func(line string)) error {
	if bufSize <= 0 {
		bufSize = 8192
	}
	buf := make([]byte, bufSize)
	line := make([]byte, 0, 256)

	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' || b == '\r' {
				if len(line) > 0 {
					emit(string(line))
					line = line[:0]
				}
				continue
			}
			line = append(line, b)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	if len(line) > 0 {
		emit(string(line))
	}
	return nil
}

// ReadTextFile streams a file through ReadLines, logging progress every
// megabyte.
func ReadTextFile(path string, bufSize int, logger log.Logger, emit func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	total := int64(0)
	if fi, err := f.Stat(); err == nil {
		total = fi.Size()
	}

	cr := &countingReader{r: f, total: total, logger: logger, path: path}
	return ReadLines(cr, bufSize, emit)
}

type countingReader struct {
	r      io.Reader
	read   int64
	total  int64
	mark   int64
	logger log.Logger
	path   string
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read-c.mark >= progressEvery {
		c.mark = c.read
		if c.total > 0 {
			c.logger.Debug("reading file",
				"path", c.path,
				"percent", fmt.Sprintf("%.1f", float64(c.read)*100/float64(c.total)),
				"bytes", c.read)
		}
	}
	return n, err
}

// ReadGzipFile decompresses a gzip stream and emits each line, logging
// progress every 10000 lines.
func ReadGzipFile(path string, logger log.Logger, emit func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip %s: %w", path, err)
	}
	defer gz.Close()

	logger.Info("reading compressed file", "path", path)

	var lines int64
	err = ReadLines(gz, 0, func(line string) {
		lines++
		emit(line)
		if lines%10000 == 0 {
			logger.Debug("reading compressed file", "path", path, "lines", lines)
		}
	})
	if err != nil {
		return err
	}
	logger.Info("finished compressed file", "path", path, "lines", lines)
	return nil
}

// ReadBinaryFile consumes a file in bufSize chunks into an assembly
// buffer and carves fixed-header messages out of it: once the buffer
// holds more than headerLen bytes, everything buffered so far is
// emitted as one message. There is no length field beyond the header,
// so end-of-message is wherever the current chunk ends; in practice one
// binary file carries one message per drain.
func ReadBinaryFile(path string, bufSize, headerLen int, logger log.Logger, emit func(data []byte)) error {
	if bufSize <= 0 {
		bufSize = 8192
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	logger.Info("reading binary file", "path", path)

	buf := make([]byte, bufSize)
	assembly := make([]byte, 0, bufSize)

	drain := func() {
		if len(assembly) > headerLen {
			out := make([]byte, len(assembly))
			copy(out, assembly)
			emit(out)
			assembly = assembly[:0]
		}
	}

	for {
		n, err := f.Read(buf)
		if n > 0 {
			assembly = append(assembly, buf[:n]...)
			drain()
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	drain()
	return nil
}
