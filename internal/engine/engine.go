// Package engine implements the log-structured key-value storage
// engine. State lives in a single append-only log file of serialized
// commands; an in-memory index maps each live key to the byte range of
// its latest Set record. When enough of the log is shadowed by
// overwrites and removals, the engine compacts it by rewriting only the
// live records.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jassi-singh/kvs/internal/format"
	"github.com/jassi-singh/kvs/internal/storage"
)

// DefaultCompactionThreshold is the number of shadowed bytes that
// triggers a compaction pass after a Set.
const DefaultCompactionThreshold int64 = 8008135

// defaultLogFileName is used when Open is given a directory.
const defaultLogFileName = "default_log_file.txt"

// Engine is a persistent key-value store over one log file. It owns
// the file exclusively through two independent handles: a positioned
// append writer and a positioned reader. Not safe for concurrent use.
type Engine struct {
	path      string
	writer    *storage.Writer
	reader    *storage.Reader
	enc       *format.Encoder
	index     *Index
	dirt      int64
	threshold int64
	closed    bool
}

// Open opens the log at path, creating it if absent, and replays it to
// rebuild the index. An empty path means the current working directory;
// a directory path selects a fixed filename inside it.
func Open(path string) (*Engine, error) {
	return OpenWithThreshold(path, DefaultCompactionThreshold)
}

// OpenWithThreshold is Open with an explicit compaction threshold.
func OpenWithThreshold(path string, threshold int64) (*Engine, error) {
	logPath, err := resolveLogPath(path)
	if err != nil {
		return nil, err
	}

	writer, err := storage.NewWriter(logPath)
	if err != nil {
		return nil, err
	}
	reader, err := storage.NewReader(logPath)
	if err != nil {
		writer.Close()
		return nil, err
	}

	e := &Engine{
		path:      logPath,
		writer:    writer,
		reader:    reader,
		enc:       format.NewEncoder(writer),
		index:     NewIndex(),
		threshold: threshold,
	}

	if err := e.replay(); err != nil {
		writer.Close()
		reader.Close()
		return nil, err
	}

	slog.Info("engine: opened",
		"path", logPath,
		"keys", e.index.Len(),
		"size", e.writer.Position())
	return e, nil
}

// resolveLogPath normalizes the configured path to a log file path.
func resolveLogPath(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		path = wd
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(path, defaultLogFileName), nil
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("failed to stat log path %s: %w", path, err)
	}
	return path, nil
}

// replay scans the log from offset zero and rebuilds the index. For
// each Set the byte range [prev, next) is recorded, later records
// overwriting earlier ones; each Rm deletes its key. Request-only
// variants in the log are skipped. Recovered shadowing is not charged
// to the dirt counter.
func (e *Engine) replay() error {
	if err := e.reader.Seek(0); err != nil {
		return err
	}

	dec := format.NewDecoder(e.reader)
	var prev int64
	for {
		var cmd format.Command
		err := dec.Decode(&cmd)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to replay log at offset %d: %w", prev, err)
		}
		next := dec.InputOffset()

		switch {
		case cmd.Set != nil:
			e.index.Put(cmd.Set.Key, Position{Start: prev, Length: next - prev})
		case cmd.Rm != nil:
			e.index.Delete(cmd.Rm.Key)
		}
		prev = next
	}

	slog.Debug("engine: replay complete",
		"keys", e.index.Len(),
		"end_offset", prev)
	return nil
}

// Set appends a Set record for key and updates the index. Overwriting
// an existing key charges the shadowed record's length to the dirt
// counter; crossing the threshold runs a compaction pass.
func (e *Engine) Set(key, value string) error {
	if e.closed {
		return ErrClosed
	}

	start := e.writer.Position()
	if err := e.enc.Encode(format.NewSet(key, value)); err != nil {
		return err
	}
	if err := e.writer.Flush(); err != nil {
		return err
	}

	pos := Position{Start: start, Length: e.writer.Position() - start}
	if prior, ok := e.index.Put(key, pos); ok {
		e.dirt += prior.Length
	}

	slog.Debug("engine: set",
		"key", key,
		"offset", pos.Start,
		"length", pos.Length,
		"dirt", e.dirt)

	if e.dirt >= e.threshold {
		if err := e.compact(); err != nil {
			return fmt.Errorf("failed to compact log: %w", err)
		}
		e.dirt = 0
	}
	return nil
}

// Get returns the value for key, reading its latest Set record back
// out of the log. The second return is false when the key is absent.
func (e *Engine) Get(key string) (string, bool, error) {
	if e.closed {
		return "", false, ErrClosed
	}

	pos, ok := e.index.Get(key)
	if !ok {
		slog.Debug("engine: get miss", "key", key)
		return "", false, nil
	}

	cmd, err := e.readRecord(pos)
	if err != nil {
		return "", false, err
	}
	if cmd.Set == nil {
		return "", false, fmt.Errorf("record for key %q at offset %d: %w", key, pos.Start, ErrInvalidLogRecord)
	}
	return cmd.Set.Value, true, nil
}

// Remove deletes key. Absent keys fail with ErrKeyNotFound before any
// I/O; otherwise an Rm record is appended and flushed. Both the
// removed entry's record and the tombstone itself become dirt.
func (e *Engine) Remove(key string) error {
	if e.closed {
		return ErrClosed
	}

	prior, ok := e.index.Delete(key)
	if !ok {
		return ErrKeyNotFound
	}

	start := e.writer.Position()
	if err := e.enc.Encode(format.NewRm(key)); err != nil {
		return err
	}
	if err := e.writer.Flush(); err != nil {
		return err
	}
	e.dirt += prior.Length + (e.writer.Position() - start)

	slog.Debug("engine: remove",
		"key", key,
		"dirt", e.dirt)
	return nil
}

// Close flushes and releases both file handles. The engine accepts no
// operations afterwards.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	slog.Info("engine: closing",
		"path", e.path,
		"keys", e.index.Len())

	werr := e.writer.Close()
	rerr := e.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Len returns the number of live keys.
func (e *Engine) Len() int {
	return e.index.Len()
}

// Path returns the resolved log file path.
func (e *Engine) Path() string {
	return e.path
}

// readRecord flushes pending writes, seeks the reader to the record's
// start, and decodes exactly one record from its byte range.
func (e *Engine) readRecord(pos Position) (format.Command, error) {
	if err := e.writer.Flush(); err != nil {
		return format.Command{}, err
	}
	if err := e.reader.Seek(pos.Start); err != nil {
		return format.Command{}, err
	}
	return format.DecodeOne(io.LimitReader(e.reader, pos.Length))
}

// compact rewrites the log so it contains only the live Set records.
// The surviving records are read out through the index, written to a
// temporary file in sorted key order, and the temporary file is renamed
// over the log. Both handles are then reopened against the new file,
// writer first, and every index entry gets its new start offset.
func (e *Engine) compact() error {
	slog.Info("engine: compaction started",
		"path", e.path,
		"keys", e.index.Len(),
		"dirt", e.dirt,
		"size", e.writer.Position())

	type survivor struct {
		key string
		cmd format.Command
	}
	keys := e.index.Keys()
	survivors := make([]survivor, 0, len(keys))
	for _, key := range keys {
		pos, _ := e.index.Get(key)
		cmd, err := e.readRecord(pos)
		if err != nil {
			return err
		}
		if cmd.Set == nil {
			return fmt.Errorf("record for key %q at offset %d: %w", key, pos.Start, ErrInvalidLogRecord)
		}
		survivors = append(survivors, survivor{key: key, cmd: cmd})
	}

	tmpPath := e.path + ".compact"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear stale compaction file %s: %w", tmpPath, err)
	}
	tmp, err := storage.NewWriter(tmpPath)
	if err != nil {
		return err
	}

	enc := format.NewEncoder(tmp)
	rewritten := make(map[string]Position, len(survivors))
	for _, s := range survivors {
		start := tmp.Position()
		if err := enc.Encode(s.cmd); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		rewritten[s.key] = Position{Start: start, Length: tmp.Position() - start}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Retire the old handles before the rename replaces the file they
	// point at.
	if err := e.writer.Close(); err != nil {
		return err
	}
	if err := e.reader.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, e.path); err != nil {
		return fmt.Errorf("failed to replace log with compacted file: %w", err)
	}

	e.writer, err = storage.NewWriter(e.path)
	if err != nil {
		return err
	}
	e.reader, err = storage.NewReader(e.path)
	if err != nil {
		return err
	}
	e.enc = format.NewEncoder(e.writer)

	for key, pos := range rewritten {
		e.index.Put(key, pos)
	}

	slog.Info("engine: compaction complete",
		"keys", e.index.Len(),
		"size", e.writer.Position())
	return nil
}
