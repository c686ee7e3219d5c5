package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jassi-singh/kvs/internal/format"
)

func openTemp(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "kvs.log"))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSetGet(t *testing.T) {
	e := openTemp(t)

	require.NoError(t, e.Set("a", "1"))

	value, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)

	_, ok, err = e.Get("b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetOverwrite(t *testing.T) {
	e := openTemp(t)

	require.NoError(t, e.Set("key_1", "value_A"))
	require.NoError(t, e.Set("key_1", "value_B"))

	value, ok, err := e.Get("key_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value_B", value)
	require.Equal(t, 1, e.Len())
}

func TestReopenDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("a", "2"))
	require.NoError(t, e.Close())

	e, err = Open(path)
	require.NoError(t, err)
	defer e.Close()

	value, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}

func TestRemove(t *testing.T) {
	e := openTemp(t)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Remove("a"))

	_, ok, err := e.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, e.Remove("a"), ErrKeyNotFound)
}

func TestRemoveOnEmptyStore(t *testing.T) {
	e := openTemp(t)
	require.ErrorIs(t, e.Remove("missing"), ErrKeyNotFound)
}

func TestRemoveSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Remove("a"))
	require.NoError(t, e.Close())

	e, err = Open(path)
	require.NoError(t, err)
	defer e.Close()

	_, ok, err := e.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReplayDeterminism(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Set("a", "3"))
	require.NoError(t, e.Remove("b"))
	require.NoError(t, e.Close())

	e, err = Open(path)
	require.NoError(t, err)
	defer e.Close()

	value, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", value)

	_, ok, err = e.Get("b")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, e.Len())
}

func TestReplaySkipsRequestOnlyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")
	log := `{"Get":{"key":"a"}}{"Set":{"key":"a","value":"1"}}`
	require.NoError(t, os.WriteFile(path, []byte(log), 0644))

	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	value, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)
}

func TestOpenDirectoryUsesDefaultFile(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	require.Equal(t, filepath.Join(dir, defaultLogFileName), e.Path())
	require.NoError(t, e.Set("a", "1"))

	_, err = os.Stat(filepath.Join(dir, defaultLogFileName))
	require.NoError(t, err)
}

func TestOpenMalformedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"Set":{"key":"a","value":"1"}}garbage`), 0644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestGetRejectsNonSetRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")
	record := `{"Rm":{"key":"a"}}`
	require.NoError(t, os.WriteFile(path, []byte(record), 0644))

	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	// Simulate a corrupted index pointing a key at a tombstone.
	e.index.Put("a", Position{Start: 0, Length: int64(len(record))})

	_, _, err = e.Get("a")
	require.ErrorIs(t, err, ErrInvalidLogRecord)
}

func TestCompactionShrinksLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := OpenWithThreshold(path, 512)
	require.NoError(t, err)
	defer e.Close()

	var total int64
	for i := 0; i < 200; i++ {
		value := fmt.Sprintf("v%04d", i)
		require.NoError(t, e.Set("k", value))
		total += int64(len(value))
	}

	value, ok, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v0199", value)

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Less(t, stat.Size(), total, "log should be smaller than the value bytes written")
	// Bounded by the threshold plus the records appended since the
	// last pass, not by the number of overwrites.
	require.Less(t, stat.Size(), int64(1024))
}

func TestCompactionPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := OpenWithThreshold(path, 256)
	require.NoError(t, err)

	want := make(map[string]string)
	for round := 0; round < 20; round++ {
		for k := 0; k < 10; k++ {
			key := fmt.Sprintf("key_%d", k)
			value := fmt.Sprintf("value_%d_%d", k, round)
			require.NoError(t, e.Set(key, value))
			want[key] = value
		}
	}
	require.NoError(t, e.Remove("key_0"))
	delete(want, "key_0")

	verify := func(e *Engine) {
		require.Equal(t, len(want), e.Len())
		for key, wantValue := range want {
			value, ok, err := e.Get(key)
			require.NoError(t, err)
			require.True(t, ok, "key %s", key)
			require.Equal(t, wantValue, value, "key %s", key)
		}
		_, ok, err := e.Get("key_0")
		require.NoError(t, err)
		require.False(t, ok)
	}

	verify(e)
	require.NoError(t, e.Close())

	e, err = OpenWithThreshold(path, 256)
	require.NoError(t, err)
	defer e.Close()
	verify(e)
}

func TestCompactedLogReplays(t *testing.T) {
	// The rewritten log must itself be a valid record stream: replay
	// it and keep appending.
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := OpenWithThreshold(path, 128)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, e.Set("a", fmt.Sprintf("v%d", i)))
		require.NoError(t, e.Set("b", fmt.Sprintf("w%d", i)))
	}
	require.NoError(t, e.Close())

	e, err = OpenWithThreshold(path, 128)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("c", "new"))
	for key, wantValue := range map[string]string{"a": "v49", "b": "w49", "c": "new"} {
		value, ok, err := e.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, wantValue, value)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")
	e, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.ErrorIs(t, e.Set("a", "1"), ErrClosed)
	_, _, err = e.Get("a")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, e.Remove("a"), ErrClosed)
	require.NoError(t, e.Close())
}

func TestWriterPositionMatchesLogEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.log")

	e, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Close())

	stat, err := os.Stat(path)
	require.NoError(t, err)

	e, err = Open(path)
	require.NoError(t, err)
	defer e.Close()

	// A record appended after reopen must land exactly at the old end
	// of file, or replay offsets would drift.
	require.NoError(t, e.Set("c", "3"))
	pos, ok := e.index.Get("c")
	require.True(t, ok)
	require.Equal(t, stat.Size(), pos.Start)

	cmd, err := e.readRecord(pos)
	require.NoError(t, err)
	require.NotNil(t, cmd.Set)
	require.Equal(t, format.SetCommand{Key: "c", Value: "3"}, *cmd.Set)
}
