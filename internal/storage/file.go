// Package storage provides positioned file I/O for the key-value log.
// It wraps buffered reads and writes around a log file while tracking
// the current byte offset, so callers can use offsets as record
// identities without re-statting the file.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Writer appends to the log file through a buffer while tracking the
// byte offset at which the next write lands. After open the position
// equals the file's end-of-file offset.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	pos  int64
}

// NewWriter opens the log file at path in create-if-missing append mode
// and positions the writer at end-of-file.
func NewWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file at %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file at %s: %w", path, err)
	}

	slog.Debug("storage: log writer opened",
		"path", path,
		"size", stat.Size())

	return &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
		pos:  stat.Size(),
	}, nil
}

// Write appends data through the buffer and advances the position by
// the number of bytes written.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.pos += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write to log at offset %d: %w", w.pos, err)
	}
	return n, nil
}

// Position returns the offset at which the next write will land.
func (w *Writer) Position() int64 {
	return w.pos
}

// Flush drains the write buffer to the file. It must be called before
// any read that depends on freshly appended bytes.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}
	return nil
}

// Close flushes any buffered data and closes the file handle.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Reader reads the log file through its own buffered handle,
// independent of any writer over the same path. Seeking resets the
// buffer so reads after a seek start at the requested offset.
type Reader struct {
	file *os.File
	buf  *bufio.Reader
	pos  int64
}

// NewReader opens a read-only handle on the log file at path,
// positioned at offset zero.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file at %s: %w", path, err)
	}

	return &Reader{
		file: file,
		buf:  bufio.NewReader(file),
	}, nil
}

// Read fills p from the current position and advances it by the number
// of bytes read.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.buf.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seek moves the reader to an absolute offset, discarding any buffered
// bytes.
func (r *Reader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek log to offset %d: %w", offset, err)
	}
	r.buf.Reset(r.file)
	r.pos = offset
	return nil
}

// Position returns the offset of the next byte to be read.
func (r *Reader) Position() int64 {
	return r.pos
}

// Close closes the read handle.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
