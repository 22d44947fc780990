// Package runlog locates and tails the radio process run logs written at
// start time. Logs can grow past a gigabyte on a chatty PHY, so the tail
// reads a bounded window from the end instead of the whole file.
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoLogs means no run log matching the pattern exists or is readable.
var ErrNoLogs = errors.New("RUNLOG_NOT_FOUND")

const (
	defaultLines = 100
	maxLines     = 1000

	// Files larger than windowThreshold are read through a tail window of
	// windowBytes from the end.
	windowThreshold = 1 << 20 // 1 MB
	windowBytes     = 50 * 1024
)

// TailResult carries the tail lines plus enough metadata for an operator to
// judge how stale and how partial the view is.
type TailResult struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"sizeBytes"`
	ModTime   time.Time `json:"modTime"`
	Requested int       `json:"requestedLines"`
	Lines     []string  `json:"lines"`
	Windowed  bool      `json:"windowed"`
}

// Store finds run logs for one executable under a log directory.
type Store struct {
	dir     string
	pattern string
}

// NewStore creates a run log store. pattern is the executable base name the
// start path prefixes its logs with.
func NewStore(dir, pattern string) *Store {
	return &Store{dir: dir, pattern: pattern}
}

// Latest returns the most recently modified run log, by mtime rather than
// the name's embedded timestamp, so a log appended to after a clock jump
// still wins.
func (s *Store) Latest() (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.pattern+"_*.log"))
	if err != nil {
		return "", fmt.Errorf("%w: bad run log pattern: %v", ErrNoLogs, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no run logs matching %s_*.log under %s", ErrNoLogs, s.pattern, s.dir)
	}

	type cand struct {
		path string
		mod  time.Time
	}
	var cands []cand
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		cands = append(cands, cand{path: m, mod: info.ModTime()})
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("%w: no readable run logs under %s", ErrNoLogs, s.dir)
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].mod.After(cands[j].mod) })
	return cands[0].path, nil
}

// Tail returns the last n lines of the latest run log. n is clamped to
// [1, 1000]; non-positive requests get the default of 100. Large files are
// tailed through a fixed window from the end, which may clip the first
// returned line mid-way; the result says when that happened.
func (s *Store) Tail(n int) (*TailResult, error) {
	path, err := s.Latest()
	if err != nil {
		return nil, err
	}
	return TailFile(path, n)
}

// TailFile tails one specific run log.
func TailFile(path string, n int) (*TailResult, error) {
	if n < 1 {
		n = defaultLines
	}
	if n > maxLines {
		n = maxLines
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLogs, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLogs, err)
	}

	res := &TailResult{
		Path:      path,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		Requested: n,
	}

	readFrom := int64(0)
	if info.Size() > windowThreshold {
		readFrom = info.Size() - windowBytes
		res.Windowed = true
	}

	buf := make([]byte, info.Size()-readFrom)
	if _, err := f.ReadAt(buf, readFrom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLogs, err)
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		res.Lines = []string{}
		return res, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	res.Lines = lines
	return res, nil
}
