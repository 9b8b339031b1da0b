package analyzer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/syntax"
)

// IntentProvider produces a short description of what a file is for.
type IntentProvider interface {
	Intent(ctx context.Context, rec model.FileRecord, src []byte) (string, error)
}

// AnomalySource produces a signal in [0,1] that lowers a file's overall
// score. Values outside the range are clamped.
type AnomalySource interface {
	Anomaly(ctx context.Context, rec model.FileRecord, src []byte) (float64, error)
}

// NoAnomaly is the default AnomalySource.
type NoAnomaly struct{}

func (NoAnomaly) Anomaly(context.Context, model.FileRecord, []byte) (float64, error) {
	return 0, nil
}

const maxIntentLen = 160

// DocCommentIntent uses the first sentence of a file's leading comment.
type DocCommentIntent struct {
	Engine *syntax.Engine
}

func (d DocCommentIntent) Intent(_ context.Context, rec model.FileRecord, src []byte) (string, error) {
	if d.Engine == nil {
		return "", nil
	}
	a, err := d.Engine.AdapterFor(rec.Path)
	if err != nil {
		return "", nil
	}
	return FirstSentence(LeadingComment(string(src), a.Comments())), nil
}

// LeadingComment returns the text of the first comment in src, skipping
// blank lines and a shebang. Only a comment that precedes any code counts.
func LeadingComment(src string, style syntax.CommentStyle) string {
	lines := strings.Split(src, "\n")
	i := 0
	for i < len(lines) {
		t := strings.TrimSpace(lines[i])
		if t == "" || (i == 0 && strings.HasPrefix(t, "#!")) {
			i++
			continue
		}
		break
	}
	if i >= len(lines) {
		return ""
	}
	first := strings.TrimSpace(lines[i])

	if style.TripleQuoted && (strings.HasPrefix(first, `"""`) || strings.HasPrefix(first, `'''`)) {
		return collectDelimited(lines[i:], first[:3], first[:3])
	}
	if style.BlockStart != "" && strings.HasPrefix(first, style.BlockStart) {
		return collectDelimited(lines[i:], style.BlockStart, style.BlockEnd)
	}

	var parts []string
	for ; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		marker := ""
		for _, m := range style.Line {
			if m != "" && strings.HasPrefix(t, m) {
				marker = m
				break
			}
		}
		if marker == "" {
			break
		}
		parts = append(parts, strings.TrimSpace(strings.TrimPrefix(t, marker)))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collectDelimited(lines []string, start, end string) string {
	var parts []string
	for j, l := range lines {
		t := strings.TrimSpace(l)
		if j == 0 {
			t = strings.TrimPrefix(t, start)
			for strings.HasPrefix(t, "*") {
				t = strings.TrimPrefix(t, "*")
			}
		}
		if k := strings.Index(t, end); k >= 0 {
			parts = append(parts, cleanDocLine(t[:k]))
			break
		}
		parts = append(parts, cleanDocLine(t))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func cleanDocLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "*")
	return strings.TrimSpace(s)
}

// FirstSentence returns text up to and including the first period that ends
// a sentence, truncated to a display-friendly length.
func FirstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for i := 0; i < len(text); i++ {
		if text[i] == '.' && (i == len(text)-1 || text[i+1] == ' ') {
			text = text[:i+1]
			break
		}
	}
	if utf8.RuneCountInString(text) > maxIntentLen {
		r := []rune(text)
		text = string(r[:maxIntentLen-3]) + "..."
	}
	return text
}
