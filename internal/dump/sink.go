package dump

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// Sink is the unified write interface the encoder writes through; it is
// oblivious to whether the bytes end up plain or gzip-compressed on disk.
type Sink interface {
	io.Writer
	Close() error
}

type plainSink struct {
	file *os.File
	w    *bufio.Writer
}

// NewPlainSink opens path for writing and wraps it in a buffered writer.
func NewPlainSink(path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &plainSink{file: f, w: bufio.NewWriter(f)}, nil
}

func (s *plainSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *plainSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

type gzipSink struct {
	file *os.File
	gz   *gzip.Writer
}

// NewGzipSink opens path (expected to end in .gz) for writing and wraps it
// in a gzip writer. compress/gzip is stdlib rather than a third-party
// compression package — see DESIGN.md.
func NewGzipSink(path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &gzipSink{file: f, gz: gzip.NewWriter(f)}, nil
}

func (s *gzipSink) Write(p []byte) (int, error) { return s.gz.Write(p) }

func (s *gzipSink) Close() error {
	if err := s.gz.Close(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// OpenSink creates the appropriate Sink for path, gzip-wrapping when
// compress is true. Callers are expected to have already appended the
// ".gz" suffix to path when compress is true.
func OpenSink(path string, compress bool) (Sink, error) {
	if compress {
		return NewGzipSink(path)
	}
	return NewPlainSink(path)
}
