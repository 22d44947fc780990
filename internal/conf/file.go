package conf

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Normalized configuration access errors.
var (
	// ErrAccess covers a missing, unreadable, or unwritable configuration file.
	ErrAccess = errors.New("CONFIG_ACCESS")

	// ErrKeyMissing means an expected key is absent from the file. The file
	// structure assumption is violated; no line is ever inserted to compensate.
	ErrKeyMissing = errors.New("CONFIG_KEY_MISSING")
)

// File is an in-memory copy of the configuration file text.
type File struct {
	path    string
	content string
}

// Load reads the configuration file into memory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccess, err)
	}
	return &File{path: path, content: string(data)}, nil
}

// Path returns the file path this File was loaded from.
func (f *File) Path() string {
	return f.path
}

// Content returns the current (possibly mutated) file text.
func (f *File) Content() string {
	return f.content
}

// getPattern matches "key = value" at line start, where value is either
// quoted or runs until a terminator/comment. First match wins.
func getPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(key) + `[ \t]*=[ \t]*("[^"]*"|[^;#\n]*)`)
}

// setPattern matches a numeric assignment for key; only numeric values are
// ever rewritten by this system.
func setPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^([ \t]*` + regexp.QuoteMeta(key) + `[ \t]*=[ \t]*)(-?\d+(?:\.\d+)?)`)
}

// Get returns the value of the first assignment of key, with surrounding
// quotes and whitespace stripped. The second result reports presence.
func (f *File) Get(key string) (string, bool) {
	m := getPattern(key).FindStringSubmatch(f.content)
	if m == nil {
		return "", false
	}
	val := strings.TrimSpace(m[1])
	if len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
		val = val[1 : len(val)-1]
	}
	return val, true
}

// Set rewrites the first numeric assignment of key to value, leaving every
// other byte of the file untouched. A key with no numeric assignment fails
// with ErrKeyMissing.
func (f *File) Set(key, value string) error {
	loc := setPattern(key).FindStringSubmatchIndex(f.content)
	if loc == nil {
		return fmt.Errorf("%w: key %q has no numeric assignment", ErrKeyMissing, key)
	}
	// loc[4:6] bound the value token (second capture group).
	f.content = f.content[:loc[4]] + value + f.content[loc[5]:]
	return nil
}
