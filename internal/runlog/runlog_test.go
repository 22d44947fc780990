package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestStore_LatestByModTime tests that the newest log wins by mtime, not by
// the timestamp embedded in its name.
func TestStore_LatestByModTime(t *testing.T) {
	dir := t.TempDir()
	older := writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", "new name, old content\n")
	newer := writeLog(t, dir, "nr-softmodem_2026-08-29_090000.log", "old name, fresh content\n")
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, time.Now(), time.Now()))

	got, err := NewStore(dir, "nr-softmodem").Latest()
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

// TestStore_NoLogs tests the missing-logs error.
func TestStore_NoLogs(t *testing.T) {
	_, err := NewStore(t.TempDir(), "nr-softmodem").Latest()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoLogs), "expected ErrNoLogs, got %v", err)
}

// TestStore_IgnoresForeignFiles tests that unrelated files in the log
// directory never match.
func TestStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "actions.jsonl", "{}\n")
	writeLog(t, dir, "nr-cuup_2026-08-30_120000.log", "wrong process\n")
	want := writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", "right process\n")

	got, err := NewStore(dir, "nr-softmodem").Latest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestTail_LineClamping tests the request bounds: non-positive requests get
// the default, oversized requests get the cap.
func TestTail_LineClamping(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 1500; i++ {
		fmt.Fprintf(&b, "line %04d\n", i)
	}
	writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", b.String())
	store := NewStore(dir, "nr-softmodem")

	tests := []struct {
		request   int
		wantCount int
		wantFirst string
	}{
		{0, 100, "line 1400"},
		{-5, 100, "line 1400"},
		{10, 10, "line 1490"},
		{1000, 1000, "line 0500"},
		{5000, 1000, "line 0500"},
	}
	for _, test := range tests {
		res, err := store.Tail(test.request)
		require.NoError(t, err, "request %d", test.request)
		assert.Len(t, res.Lines, test.wantCount, "request %d", test.request)
		assert.Equal(t, test.wantFirst, res.Lines[0], "request %d", test.request)
		assert.Equal(t, "line 1499", res.Lines[len(res.Lines)-1], "request %d", test.request)
		assert.False(t, res.Windowed)
	}
}

// TestTail_LargeFileWindow tests that files over the size threshold are read
// through the fixed tail window and flagged as such.
func TestTail_LargeFileWindow(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; b.Len() < windowThreshold+windowBytes; i++ {
		fmt.Fprintf(&b, "phy frame %08d slot stats ok\n", i)
	}
	b.WriteString("final line\n")
	writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", b.String())

	res, err := NewStore(dir, "nr-softmodem").Tail(50)
	require.NoError(t, err)
	assert.True(t, res.Windowed)
	assert.Len(t, res.Lines, 50)
	assert.Equal(t, "final line", res.Lines[len(res.Lines)-1])
	assert.Greater(t, res.SizeBytes, int64(windowThreshold))
}

// TestTail_EmptyLog tests that an empty log yields zero lines, not an error.
func TestTail_EmptyLog(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", "")

	res, err := NewStore(dir, "nr-softmodem").Tail(10)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
}

// TestTailFile_TrailingNewlineHandling tests that the trailing newline does
// not produce a phantom empty line.
func TestTailFile_TrailingNewlineHandling(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "nr-softmodem_2026-08-30_120000.log", "a\nb\nc\n")

	res, err := TailFile(path, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Lines)
}
