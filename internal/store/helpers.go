package store

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/jward/pennyone/internal/model"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

const (
	maxAgentLen    = 64
	anonymousAgent = "anonymous"
)

var agentDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeAgent strips every character outside [A-Za-z0-9_-] and truncates
// to 64 characters. An empty result becomes "anonymous".
func SanitizeAgent(id string) string {
	clean := agentDisallowed.ReplaceAllString(id, "")
	if len(clean) > maxAgentLen {
		clean = clean[:maxAgentLen]
	}
	if clean == "" {
		return anonymousAgent
	}
	return clean
}

// CoerceAction maps a case-insensitive action name onto the enumeration,
// defaulting to THINK.
func CoerceAction(a string) model.Action {
	up := model.Action(strings.ToUpper(strings.TrimSpace(a)))
	for _, known := range model.Actions {
		if up == known {
			return known
		}
	}
	return model.DefaultAction
}

// summarize renders the one-line session description.
func summarize(sess model.Session, primaryTarget string) string {
	duration := sess.End.Sub(sess.Start).Round(time.Second) / time.Second
	focus := "unknown"
	if primaryTarget != "" {
		focus = path.Base(strings.ReplaceAll(primaryTarget, `\`, "/"))
	}
	return fmt.Sprintf("Agent %s performed %d actions over %ds. Primary focus: %s.",
		sess.AgentID, sess.TotalPings, int64(duration), focus)
}
