// Package matcher decides which raw export files a scan leaves out. Patterns
// are shell globs or regular expressions and are matched against both the
// relative path and the base name of a file.
package matcher

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto detects the pattern type.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher matches file paths against one pattern.
type Matcher interface {
	// Match checks if the input matches the pattern
	Match(input string) bool
	// Pattern returns the original pattern string.
	Pattern() string
	// Type returns the pattern type being used.
	Type() PatternType
}

// Options configures the matcher behavior.
type Options struct {
	// CaseInsensitive makes matching case-insensitive
	CaseInsensitive bool
}

type matcher struct {
	pattern         string
	patternType     PatternType
	compiled        *regexp.Regexp
	globPattern     string
	caseInsensitive bool
}

// New creates a Matcher. A nil opts uses case-sensitive matching.
func New(patternType PatternType, pattern string, opts *Options) (Matcher, error) {
	if opts == nil {
		opts = &Options{}
	}
	m := &matcher{
		pattern:         pattern,
		patternType:     patternType,
		caseInsensitive: opts.CaseInsensitive,
	}
	if patternType == Auto {
		m.patternType = detectPatternType(pattern)
	}

	switch m.patternType {
	case Glob:
		m.globPattern = pattern
		if m.caseInsensitive {
			m.globPattern = strings.ToLower(pattern)
		}
		if _, err := filepath.Match(m.globPattern, ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
	case Regex:
		expr := pattern
		if m.caseInsensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		m.compiled = compiled
	default:
		return nil, fmt.Errorf("unsupported pattern type: %v", patternType)
	}
	return m, nil
}

// Match reports whether the slash-separated path or its base name matches.
func (m *matcher) Match(input string) bool {
	switch m.patternType {
	case Glob:
		if m.caseInsensitive {
			input = strings.ToLower(input)
		}
		if ok, _ := path.Match(m.globPattern, input); ok {
			return true
		}
		ok, _ := path.Match(m.globPattern, path.Base(input))
		return ok
	case Regex:
		return m.compiled.MatchString(input)
	default:
		return false
	}
}

// Pattern returns the original pattern string.
func (m *matcher) Pattern() string {
	return m.pattern
}

// Type returns the pattern type being used.
func (m *matcher) Type() PatternType {
	return m.patternType
}

// detectPatternType treats a pattern with regex-only syntax as a regex and
// anything else as a glob.
func detectPatternType(pattern string) PatternType {
	regexIndicators := []string{
		"^", "$", "\\d", "\\w", "\\s", "\\D", "\\W", "\\S",
		"(?:", "(?i)", "{", "}", "+", "|", "(", ")",
	}
	for _, indicator := range regexIndicators {
		if strings.Contains(pattern, indicator) {
			return Regex
		}
	}
	return Glob
}

// MultiMatcher matches when any of its patterns does.
type MultiMatcher struct {
	matchers []Matcher
}

// NewMultiMatcher compiles every pattern with the given type and options.
func NewMultiMatcher(patterns []string, patternType PatternType, opts *Options) (*MultiMatcher, error) {
	mm := &MultiMatcher{matchers: make([]Matcher, 0, len(patterns))}
	for _, pattern := range patterns {
		m, err := New(patternType, pattern, opts)
		if err != nil {
			return nil, err
		}
		mm.matchers = append(mm.matchers, m)
	}
	return mm, nil
}

// Match returns the first pattern matching input.
func (mm *MultiMatcher) Match(input string) (string, bool) {
	if mm == nil {
		return "", false
	}
	for _, m := range mm.matchers {
		if m.Match(input) {
			return m.Pattern(), true
		}
	}
	return "", false
}

// Len returns the number of patterns.
func (mm *MultiMatcher) Len() int {
	if mm == nil {
		return 0
	}
	return len(mm.matchers)
}
