// Package audit keeps a bounded, append-only record of action status
// transitions. The log is diagnostic only: nothing in the core reads it to
// make decisions.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

const (
	// DefaultRecentWindow is how many entries Recent returns when the
	// caller does not say.
	DefaultRecentWindow = 50

	// maxEntries caps the in-memory log; the oldest entries are dropped
	// past this point. There is no deletion API besides Reset.
	maxEntries = 1000
)

// Log is an append-only, bounded audit log.
type Log struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{entries: make([]models.AuditEntry, 0)}
}

// Record appends one entry, stamping its id and timestamp, and returns the
// stored entry.
func (l *Log) Record(actionID string, transition models.ActionStatus, message, externalRef string) models.AuditEntry {
	entry := models.AuditEntry{
		ID:          uuid.New().String(),
		ActionID:    actionID,
		Transition:  transition,
		Message:     message,
		Timestamp:   time.Now().UTC(),
		ExternalRef: externalRef,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[len(l.entries)-maxEntries:]
	}
	l.mu.Unlock()

	zlog.Info().
		Str("action_id", actionID).
		Str("transition", string(transition)).
		Str("message", message).
		Msg("Audit entry recorded")
	return entry
}

// Recent returns the newest entries, oldest first, capped at limit
// (DefaultRecentWindow when limit <= 0).
func (l *Log) Recent(limit int) []models.AuditEntry {
	if limit <= 0 {
		limit = DefaultRecentWindow
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.AuditEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// ForAction returns every retained entry for one action, oldest first.
func (l *Log) ForAction(actionID string) []models.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.AuditEntry
	for _, e := range l.entries {
		if e.ActionID == actionID {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset clears the log. Test support only.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}
