// Package timeout defines centralized timeout constants for funnel operations.
package timeout

import "time"

const (
	// ClassifierTimeout bounds a single fast classifier search.
	ClassifierTimeout = 3 * time.Second

	// LLMCallTimeout bounds one language model completion.
	LLMCallTimeout = 10 * time.Second

	// TurnTimeout bounds a whole detection turn, including escalation.
	TurnTimeout = 45 * time.Second

	// StoreTimeout bounds dialog memory load and save.
	StoreTimeout = 5 * time.Second

	// CatalogTTL is how long a loaded catalog snapshot is served before reload.
	CatalogTTL = 10 * time.Minute

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 80
)
