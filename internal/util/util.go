// Package util provides small file helpers shared by the scenario, trace and
// storage packages.
package util

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// SafeName replaces characters that are awkward in file names and strips
// surrounding whitespace and quotes.
func SafeName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_")
	return r.Replace(s)
}

// IsGzip reports whether the header bytes start with the gzip magic number.
func IsGzip(header []byte) bool {
	return len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b
}

// OpenReader wraps r with a gzip reader when the stream is gzip compressed.
// The returned close function must be called when done; it does not close r.
func OpenReader(r io.Reader) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)
	header, _ := br.Peek(2)
	if !IsGzip(header) {
		return br, func() error { return nil }, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return gz, gz.Close, nil
}

// ReadCloser pairs a decompressing reader with the underlying file.
type ReadCloser struct {
	io.Reader
	closers []func() error
}

// Close closes the decompressor first, then the file.
func (rc *ReadCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenFile opens path for reading, transparently decompressing gzip content.
func OpenFile(path string) (*ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, closeFn, err := OpenReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &ReadCloser{Reader: r, closers: []func() error{closeFn, f.Close}}, nil
}

// WriteCloser is a file writer that optionally gzips its output.
type WriteCloser struct {
	io.Writer
	closers []func() error
}

// Close flushes the compressor, if any, and closes the file.
func (wc *WriteCloser) Close() error {
	var first error
	for _, c := range wc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CreateFile creates path, wrapping it in a gzip writer when compress is set.
func CreateFile(path string, compress bool) (*WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !compress {
		return &WriteCloser{Writer: f, closers: []func() error{f.Close}}, nil
	}
	gz := gzip.NewWriter(f)
	return &WriteCloser{Writer: gz, closers: []func() error{gz.Close, f.Close}}, nil
}
