// Package session persists the state of a detection dialog between turns.
package session

import (
	"context"
	"slices"
	"time"

	"github.com/hrygo/servicefunnel/plugin/ai/address"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	"github.com/hrygo/servicefunnel/plugin/ai/problem"
)

// MaxHistoryEntries is the sliding window of history kept per dialog.
const MaxHistoryEntries = 20

// State is the lifecycle state of a dialog.
type State string

const (
	StateCollectingProblem State = "COLLECTING_PROBLEM"
	StateClarifying        State = "CLARIFYING"
	StateResolved          State = "RESOLVED"
)

// Problem is the running problem description of a dialog.
type Problem struct {
	Description string         `json:"description,omitempty"`
	Fields      problem.Fields `json:"fields"`
}

// Dialog is everything remembered about one conversation.
type Dialog struct {
	ID    string `json:"dialogId"`
	State State  `json:"state"`
	// Reason is the funnel state that led to the last clarification.
	Reason         string            `json:"reason,omitempty"`
	AskedQuestions []string          `json:"askedQuestions,omitempty"`
	Filters        extract.Filters   `json:"filters"`
	Problem        Problem           `json:"problem"`
	Address        address.Fragments `json:"address"`
	History        memory.History    `json:"history,omitempty"`
	// RetainedIDs are the candidates kept after a broad question.
	RetainedIDs []int32 `json:"retainedIds,omitempty"`
	ServiceID   int32   `json:"serviceId,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// NewDialog returns an empty dialog collecting the problem.
func NewDialog(id string) *Dialog {
	now := time.Now().Unix()
	return &Dialog{ID: id, State: StateCollectingProblem, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy, so a turn can work on the copy and commit it only on success.
func (d *Dialog) Clone() *Dialog {
	c := *d
	c.AskedQuestions = slices.Clone(d.AskedQuestions)
	c.History = slices.Clone(d.History)
	c.RetainedIDs = slices.Clone(d.RetainedIDs)
	return &c
}

// Asked reports whether the question text was already asked in this dialog.
func (d *Dialog) Asked(question string) bool {
	return slices.Contains(d.AskedQuestions, question)
}

// MarkAsked remembers a question text.
func (d *Dialog) MarkAsked(question string) {
	if question != "" && !d.Asked(question) {
		d.AskedQuestions = append(d.AskedQuestions, question)
	}
}

// AppendTurn records the user's utterance and the reply, keeping the last
// MaxHistoryEntries entries.
func (d *Dialog) AppendTurn(user, bot string, at time.Time) {
	if user != "" {
		d.History = append(d.History, memory.Entry{Role: memory.RoleUser, Text: user, Timestamp: at})
	}
	if bot != "" {
		d.History = append(d.History, memory.Entry{Role: memory.RoleBot, Text: bot, Timestamp: at})
	}
	if len(d.History) > MaxHistoryEntries {
		d.History = d.History[len(d.History)-MaxHistoryEntries:]
	}
	d.UpdatedAt = at.Unix()
}

// DialogStore persists dialogs by id.
type DialogStore interface {
	// Load returns the dialog, or a new empty dialog when the id is unknown.
	Load(ctx context.Context, dialogID string) (*Dialog, error)

	// Save stores the dialog and stamps UpdatedAt.
	Save(ctx context.Context, dialog *Dialog) error

	// Delete forgets a dialog. Deleting an unknown dialog is not an error.
	Delete(ctx context.Context, dialogID string) error

	// CleanupExpired deletes dialogs not updated within retention.
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)
}
