// Package cachekey holds the static table of cache keys, their TTLs and the
// content-change triggers that invalidate them.
package cachekey

import (
	"fmt"
	"strings"
)

// Segment is either a literal run of text or a named placeholder.
type Segment struct {
	Literal     string
	Placeholder string
}

// IsPlaceholder reports whether the segment is a placeholder.
func (s Segment) IsPlaceholder() bool {
	return s.Placeholder != ""
}

// Pattern is a key or trigger parsed into segments, e.g. "division:{slug}"
// is the literal "division:" followed by the placeholder "slug".
type Pattern struct {
	raw      string
	segments []Segment
}

// ParsePattern splits s into literal and placeholder segments.
func ParsePattern(s string) (Pattern, error) {
	if s == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	var segments []Segment
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if end := strings.IndexByte(rest, '}'); end >= 0 && (open < 0 || end < open) {
			return Pattern{}, fmt.Errorf("pattern %q: unexpected '}'", s)
		}
		if open < 0 {
			segments = append(segments, Segment{Literal: rest})
			break
		}
		if open > 0 {
			segments = append(segments, Segment{Literal: rest[:open]})
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return Pattern{}, fmt.Errorf("pattern %q: unclosed placeholder", s)
		}
		name := rest[:end]
		if name == "" || strings.ContainsAny(name, "{ ") {
			return Pattern{}, fmt.Errorf("pattern %q: invalid placeholder name %q", s, name)
		}
		if n := len(segments); n > 0 && segments[n-1].IsPlaceholder() {
			return Pattern{}, fmt.Errorf("pattern %q: adjacent placeholders", s)
		}
		segments = append(segments, Segment{Placeholder: name})
		rest = rest[end+1:]
	}
	return Pattern{raw: s, segments: segments}, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.raw
}

// Segments returns a copy of the parsed segments.
func (p Pattern) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// IsTemplated reports whether the pattern contains a placeholder.
func (p Pattern) IsTemplated() bool {
	for _, s := range p.segments {
		if s.IsPlaceholder() {
			return true
		}
	}
	return false
}

// Placeholders returns the distinct placeholder names in order.
func (p Pattern) Placeholders() []string {
	var out []string
	for _, s := range p.segments {
		if s.IsPlaceholder() && !contains(out, s.Placeholder) {
			out = append(out, s.Placeholder)
		}
	}
	return out
}

// Expand substitutes every placeholder with value.
func (p Pattern) Expand(value string) string {
	var b strings.Builder
	for _, s := range p.segments {
		if s.IsPlaceholder() {
			b.WriteString(value)
		} else {
			b.WriteString(s.Literal)
		}
	}
	return b.String()
}

// Matches reports whether key is an expansion of the pattern. Placeholders
// match one or more characters.
func (p Pattern) Matches(key string) bool {
	return matchSegments(p.segments, key)
}

func matchSegments(segments []Segment, key string) bool {
	if len(segments) == 0 {
		return key == ""
	}
	head := segments[0]
	if !head.IsPlaceholder() {
		if !strings.HasPrefix(key, head.Literal) {
			return false
		}
		return matchSegments(segments[1:], key[len(head.Literal):])
	}
	for i := 1; i <= len(key); i++ {
		if matchSegments(segments[1:], key[i:]) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
