// Package docs serves excerpts from the local 3GPP specification corpus.
// The corpus is a flat directory of pre-extracted text files, one per
// technical specification, named after the spec number (ts_38104.txt for
// TS 38.104). Responses are capped so a tool call never returns a whole
// specification.
package docs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Lookup errors.
var (
	// ErrNotFound means no corpus file matches the requested document, or a
	// requested section does not occur in it.
	ErrNotFound = errors.New("DOC_NOT_FOUND")

	// ErrAmbiguous means more than one corpus file matches the request.
	ErrAmbiguous = errors.New("DOC_AMBIGUOUS")
)

// maxExcerptBytes caps any returned content.
const maxExcerptBytes = 6000

const (
	overviewScanLines  = 500
	overviewLines      = 100
	sectionScanLines   = 200
	referenceCtxBefore = 5
	referenceCtxAfter  = 50
)

var (
	// Leader lines (dotted or dashed fillers) mark front matter and TOC.
	leaderRe = regexp.MustCompile(`\.{3,}|_{3,}|-{3,}`)

	// A major section heading: a dotted number followed by a word.
	headingRe = regexp.MustCompile(`^\d+(\.\d+)*\s+[A-Za-z]`)

	// Per-page boilerplate worth dropping from section excerpts.
	boilerplateRe = regexp.MustCompile(`ETSI|3GPP|Release|Page \d+|^\d+\s*$`)
)

// Excerpt is a bounded slice of one specification.
type Excerpt struct {
	Document  string `json:"document"`
	File      string `json:"file"`
	Section   string `json:"section,omitempty"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Library reads the specification corpus directory.
type Library struct {
	dir string
}

// NewLibrary creates a library over the corpus at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// List returns the file names of every specification in the corpus, sorted.
func (l *Library) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// find resolves a document number like "38.104" or "TS 38.104" to exactly
// one corpus file.
func (l *Library) find(document string) (string, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return "", fmt.Errorf("%w: corpus directory %s: %v", ErrNotFound, l.dir, err)
	}

	num := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(document), "TS "), ".", "")
	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+num+"*.txt"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	switch len(matches) {
	case 0:
		available, _ := l.List()
		return "", fmt.Errorf("%w: TS %s not in corpus; available: %v", ErrNotFound, document, available)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", fmt.Errorf("%w: TS %s matches %v", ErrAmbiguous, document, names)
	}
}

// Overview returns the first substantial page of a specification, skipping
// front matter and table-of-contents leader lines.
func (l *Library) Overview(document string) (*Excerpt, error) {
	path, err := l.find(document)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	lines := strings.Split(string(text), "\n")
	start := 0
	bound := len(lines)
	if bound > overviewScanLines {
		bound = overviewScanLines
	}
	for i := 0; i < bound; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if len(trimmed) > 50 && !leaderRe.MatchString(trimmed) {
			start = i
			break
		}
	}

	end := start + overviewLines
	if end > len(lines) {
		end = len(lines)
	}
	content, truncated := cap6000(strings.Join(lines[start:end], "\n"))
	return &Excerpt{
		Document:  document,
		File:      filepath.Base(path),
		Content:   content,
		Truncated: truncated,
	}, nil
}

// Section returns the body of one numbered section. The primary pass wants
// the section number at the start of a line; when that fails, the first
// in-text reference with surrounding context is returned instead.
func (l *Library) Section(document, section string) (*Excerpt, error) {
	path, err := l.find(document)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	lines := strings.Split(string(text), "\n")
	sectionStartRe := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(section) + `\s+`)

	var found []string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Leader lines are TOC entries for the section, not the section.
		if leaderRe.MatchString(trimmed) || !sectionStartRe.MatchString(trimmed) {
			continue
		}
		found = append(found, fmt.Sprintf("=== SECTION %s ===", section), line)

		stop := i + 1 + sectionScanLines
		if stop > len(lines) {
			stop = len(lines)
		}
		for j := i + 1; j < stop; j++ {
			next := strings.TrimSpace(lines[j])
			if headingRe.MatchString(next) && j > i+5 {
				break
			}
			if boilerplateRe.MatchString(next) {
				continue
			}
			found = append(found, lines[j])
		}
		break
	}

	if len(found) == 0 {
		found = referenceFallback(lines, section)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: section %s not found in TS %s", ErrNotFound, section, document)
	}

	content, truncated := cap6000(strings.Join(found, "\n"))
	return &Excerpt{
		Document:  document,
		File:      filepath.Base(path),
		Section:   section,
		Content:   content,
		Truncated: truncated,
	}, nil
}

// referenceFallback returns context around the first substantial line that
// mentions the section at all.
func referenceFallback(lines []string, section string) []string {
	for i, line := range lines {
		if !strings.Contains(line, section) || len(strings.TrimSpace(line)) <= 10 {
			continue
		}
		out := []string{fmt.Sprintf("=== FOUND REFERENCE TO SECTION %s ===", section)}
		start := i - referenceCtxBefore
		if start < 0 {
			start = 0
		}
		end := i + referenceCtxAfter
		if end > len(lines) {
			end = len(lines)
		}
		return append(out, lines[start:end]...)
	}
	return nil
}

// TOC returns the table of contents, optionally filtered to entries
// containing keyword (case-insensitive).
func (l *Library) TOC(document, keyword string) (*Excerpt, error) {
	path, err := l.find(document)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	lines := strings.Split(string(text), "\n")

	// TOC entries carry dot leaders or look like dotted headings; the block
	// starts at the "Contents" marker.
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "contents") || strings.EqualFold(trimmed, "table of contents") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		start = 0
	}

	lower := strings.ToLower(keyword)
	var entries []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !leaderRe.MatchString(trimmed) && !headingRe.MatchString(trimmed) {
			// The entry block ends at the first body paragraph, but only once
			// something was collected; stray front matter is skipped.
			if len(entries) > 0 {
				break
			}
			continue
		}
		if lower != "" && !strings.Contains(strings.ToLower(trimmed), lower) {
			continue
		}
		entries = append(entries, trimmed)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no table of contents entries%s in TS %s", ErrNotFound, keywordClause(keyword), document)
	}

	content, truncated := cap6000(strings.Join(entries, "\n"))
	return &Excerpt{
		Document:  document,
		File:      filepath.Base(path),
		Content:   content,
		Truncated: truncated,
	}, nil
}

func keywordClause(keyword string) string {
	if keyword == "" {
		return ""
	}
	return fmt.Sprintf(" containing %q", keyword)
}

// cap6000 bounds content and reports whether it was cut.
func cap6000(s string) (string, bool) {
	if len(s) <= maxExcerptBytes {
		return s, false
	}
	return s[:maxExcerptBytes] + "\n\n[Content truncated...]", true
}
