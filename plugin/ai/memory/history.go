// Package memory holds the conversation history of a dialog: the entries the
// caller passes with every turn and a sliding window kept server-side for
// callers that do not track history themselves.
package memory

import (
	"strings"
	"time"
)

// Role is the author of a history entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Entry is one message of a dialog.
type Entry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsQuestion reports whether the entry is a question asked by the bot.
func (e Entry) IsQuestion() bool {
	return e.Role == RoleBot && strings.HasSuffix(strings.TrimSpace(e.Text), "?")
}

// History is an ordered list of entries, oldest first.
type History []Entry

// UserMessages returns the user texts in order.
func (h History) UserMessages() []string {
	var out []string
	for _, e := range h {
		if e.Role == RoleUser {
			out = append(out, e.Text)
		}
	}
	return out
}

// BotQuestions returns the trimmed questions the bot has asked.
func (h History) BotQuestions() []string {
	var out []string
	for _, e := range h {
		if e.IsQuestion() {
			out = append(out, strings.TrimSpace(e.Text))
		}
	}
	return out
}

// LastBotQuestion returns the most recent bot question, if any.
func (h History) LastBotQuestion() (string, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].IsQuestion() {
			return strings.TrimSpace(h[i].Text), true
		}
	}
	return "", false
}

// SearchText builds the classifier input of a follow-up turn: the last
// maxPrevious user messages that pass keep, followed by current.
// A trailing copy of current in the history is ignored.
func (h History) SearchText(current string, maxPrevious int, keep func(string) bool) string {
	users := h.UserMessages()
	if n := len(users); n > 0 && strings.TrimSpace(users[n-1]) == strings.TrimSpace(current) {
		users = users[:n-1]
	}

	var picked []string
	for i := len(users) - 1; i >= 0 && len(picked) < maxPrevious; i-- {
		if keep != nil && !keep(users[i]) {
			continue
		}
		picked = append(picked, strings.TrimSpace(users[i]))
	}

	parts := make([]string, 0, len(picked)+1)
	for i := len(picked) - 1; i >= 0; i-- {
		parts = append(parts, picked[i])
	}
	parts = append(parts, strings.TrimSpace(current))
	return strings.Join(parts, " ")
}
