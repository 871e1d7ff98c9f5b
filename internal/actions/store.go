// Package actions holds planned-action records through their lifecycle and
// drives the safety state machine that executes them.
package actions

import (
	"context"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Store is the persistence contract for planned actions. The reference
// implementation is in-memory with an optional JSON snapshot; handler code
// depends only on this interface so a real database can slot in.
type Store interface {
	// SavePlanned persists a new planned action, assigning an id and
	// defaulting status/risk/priority when absent. Returns the stored copy.
	SavePlanned(ctx context.Context, action *models.PlannedAction) (*models.PlannedAction, error)

	// Get returns the action by id.
	Get(ctx context.Context, id string) (*models.PlannedAction, error)

	// Approve moves a PLANNED action to APPROVED, stamping approver and
	// notes. Any other starting status returns ErrInvalidTransition.
	Approve(ctx context.Context, id, approvedBy, notes string) (*models.PlannedAction, error)

	// RecordReceipt attaches the receipt and sets the action's status from it.
	RecordReceipt(ctx context.Context, id string, receipt *models.ActionReceipt) error

	// FindByIdempotencyKey returns the first action stored under the key,
	// in insertion order, or nil when none exists.
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PlannedAction, error)

	// ListPending returns actions still awaiting execution
	// (status PLANNED or APPROVED), in insertion order.
	ListPending(ctx context.Context) ([]models.PlannedAction, error)

	// Close releases store resources and flushes any pending snapshot.
	Close() error
}

// ErrNotFound is returned when a requested record does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrInvalidTransition is returned when a lifecycle change is requested
// from a status that does not allow it.
type ErrInvalidTransition struct {
	ID   string
	From models.ActionStatus
	To   models.ActionStatus
}

func (e *ErrInvalidTransition) Error() string {
	return "action " + e.ID + " cannot move from " + string(e.From) + " to " + string(e.To)
}
