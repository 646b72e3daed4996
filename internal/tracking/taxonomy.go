// Package tracking records diagnostic events. Events are written to the
// structured log; this client has no analytics backend.
package tracking

import (
	"context"
	"log/slog"
)

// Category is the top-level grouping of an event.
type Category string

// Action identifies the event within its category.
type Action string

// Canonical categories
const (
	CategoryError       Category = "ERROR"
	CategoryInteraction Category = "INTERACTION"
	CategorySystem      Category = "SYSTEM"
)

// Canonical actions
const (
	// ActionSignIn401 is recorded when the users endpoint rejects the token.
	ActionSignIn401 Action = "ERROR_RM1"
	// ActionSignInServerFailure is recorded when the users endpoint is unavailable.
	ActionSignInServerFailure Action = "ERROR_15A"

	ActionSignIn        Action = "SIGN_IN"
	ActionSignOut       Action = "SIGN_OUT"
	ActionForceReload   Action = "FORCE_RELOAD"
	ActionStorageChange Action = "STORAGE_CHANGE"
)

// AllCategories returns all valid categories.
func AllCategories() map[Category]bool {
	return map[Category]bool{
		CategoryError:       true,
		CategoryInteraction: true,
		CategorySystem:      true,
	}
}

// IsValidCategory checks if the given category string is valid.
func IsValidCategory(c string) bool {
	return AllCategories()[Category(c)]
}

// Tracker records events to a logger.
type Tracker struct {
	logger *slog.Logger
}

// New returns a Tracker writing to logger (slog.Default when nil).
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger}
}

// TrackEvent records one event. Error-category events are logged at warn,
// everything else at debug. Events in an unknown category are dropped.
func (t *Tracker) TrackEvent(category Category, action Action, label string, value int, nonInteraction bool) {
	if !IsValidCategory(string(category)) {
		t.logger.Warn("track: unknown category", "category", string(category), "action", string(action))
		return
	}
	level := slog.LevelDebug
	if category == CategoryError {
		level = slog.LevelWarn
	}
	t.logger.Log(context.Background(), level, "track: event",
		"category", string(category),
		"action", string(action),
		"label", label,
		"value", value,
		"non_interaction", nonInteraction,
	)
}
