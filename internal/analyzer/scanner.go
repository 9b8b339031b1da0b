package analyzer

import (
	"strings"

	"github.com/jward/pennyone/internal/syntax"
)

// Line is one source line split into its code part and a flag telling
// whether any comment text was removed from it.
type Line struct {
	Raw     string
	Code    string
	Comment bool
}

// Blank reports whether the line carries no code.
func (l Line) Blank() bool {
	return strings.TrimSpace(l.Code) == ""
}

type scanState int

const (
	stateCode scanState = iota
	stateLineComment
	stateBlockComment
	stateTriple
	stateString
)

// Scan splits src into lines with comments removed. String literals are
// tracked so comment markers inside them are kept as code.
func Scan(src string, style syntax.CommentStyle) []Line {
	if src == "" {
		return nil
	}
	rawLines := strings.Split(src, "\n")
	lines := make([]Line, 0, len(rawLines))

	var (
		state  = stateCode
		quote  byte
		triple string
		code   strings.Builder
		cmt    bool
	)
	flush := func(raw string) {
		lines = append(lines, Line{Raw: strings.TrimRight(raw, "\r"), Code: strings.TrimRight(code.String(), "\r"), Comment: cmt})
		code.Reset()
		cmt = false
	}

	for _, raw := range rawLines {
		if state == stateBlockComment || state == stateTriple {
			cmt = true
		}
		for i := 0; i < len(raw); i++ {
			rest := raw[i:]
			switch state {
			case stateCode:
				if style.TripleQuoted && (strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, `'''`)) {
					state, triple, cmt = stateTriple, rest[:3], true
					i += 2
					continue
				}
				if style.BlockStart != "" && strings.HasPrefix(rest, style.BlockStart) {
					state, cmt = stateBlockComment, true
					i += len(style.BlockStart) - 1
					continue
				}
				if hasAnyPrefix(rest, style.Line) {
					state, cmt = stateLineComment, true
					i = len(raw)
					continue
				}
				if strings.IndexByte(style.Quotes, raw[i]) >= 0 {
					state, quote = stateString, raw[i]
				}
				code.WriteByte(raw[i])
			case stateBlockComment:
				if strings.HasPrefix(rest, style.BlockEnd) {
					state = stateCode
					i += len(style.BlockEnd) - 1
				}
			case stateTriple:
				if strings.HasPrefix(rest, triple) {
					state = stateCode
					i += 2
				}
			case stateString:
				code.WriteByte(raw[i])
				if raw[i] == '\\' && i+1 < len(raw) {
					i++
					code.WriteByte(raw[i])
					continue
				}
				if raw[i] == quote {
					state = stateCode
				}
			}
		}
		switch state {
		case stateLineComment:
			state = stateCode
		case stateString:
			if quote != '`' {
				state = stateCode
			}
		}
		flush(raw)
	}
	return lines
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// CodeLines counts lines that carry code after comments are removed.
func CodeLines(lines []Line) int {
	n := 0
	for _, l := range lines {
		if !l.Blank() {
			n++
		}
	}
	return n
}

// CommentLines counts lines from which comment text was removed.
func CommentLines(lines []Line) int {
	n := 0
	for _, l := range lines {
		if l.Comment {
			n++
		}
	}
	return n
}
