package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/audit"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/tools"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Executor drives the safety state machine. Every gate that stops an action
// records a receipt and an audit entry; an idempotent replay returns the
// original receipt untouched and records nothing.
type Executor struct {
	store Store
	tools *tools.Registry
	audit *audit.Log

	// Flag defaults from configuration. ExecContext overrides win.
	defaultFlags map[string]bool

	// Serializes executions per idempotency key so concurrent requests
	// for the same key cannot both reach the tool layer.
	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

func NewExecutor(store Store, toolReg *tools.Registry, auditLog *audit.Log, defaultFlags map[string]bool) *Executor {
	if defaultFlags == nil {
		defaultFlags = map[string]bool{}
	}
	return &Executor{
		store:        store,
		tools:        toolReg,
		audit:        auditLog,
		defaultFlags: defaultFlags,
		keys:         make(map[string]*sync.Mutex),
	}
}

// Execute runs one action through the safety gates, in order:
// idempotent replay, plan mode, approval, execution flag, per-type routing.
func (e *Executor) Execute(ctx context.Context, actionID string, execCtx models.ExecContext) (*models.ActionReceipt, error) {
	action, err := e.store.Get(ctx, actionID)
	if err != nil {
		return nil, err
	}

	if action.IdempotencyKey != "" {
		unlock := e.lockKey(action.IdempotencyKey)
		defer unlock()

		// Re-read under the lock: a concurrent execution for the same
		// key may already have settled this record.
		action, err = e.store.Get(ctx, actionID)
		if err != nil {
			return nil, err
		}
		// A terminal receipt settles the key for good: BLOCKED and FAILED
		// attempts replay the same way EXECUTED ones do. A PLANNED receipt
		// from plan mode leaves the key live.
		if prior, perr := e.store.FindByIdempotencyKey(ctx, action.IdempotencyKey); perr == nil &&
			prior != nil && prior.Receipt != nil && terminal(prior.Status) {
			log.Info().Str("actionId", actionID).Str("key", action.IdempotencyKey).Msg("Idempotent replay, returning original receipt")
			r := *prior.Receipt
			return &r, nil
		}
	}

	// Terminal states never execute again; the original receipt replays.
	if terminal(action.Status) {
		if action.Receipt != nil {
			r := *action.Receipt
			return &r, nil
		}
		return e.settle(ctx, action, models.ActionBlocked, fmt.Sprintf("Action is in terminal state %s", action.Status), "")
	}

	if execCtx.Mode != models.ModeExecute {
		return e.settle(ctx, action, models.ActionPlanned, "Plan mode - no side effects", "")
	}

	if action.RequiresApproval && action.Status != models.ActionApproved {
		return e.settle(ctx, action, models.ActionBlocked, "Approval required", "")
	}

	flags := e.resolveFlags(execCtx)
	if !flags[models.FlagExecutionEnabled] {
		return e.settle(ctx, action, models.ActionBlocked, "Execution disabled by flag", "")
	}

	return e.route(ctx, action, flags)
}

// route dispatches by action type after the common gates pass.
func (e *Executor) route(ctx context.Context, action *models.PlannedAction, flags map[string]bool) (receipt *models.ActionReceipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("actionId", action.ID).Interface("panic", r).Msg("Executor panic recovered")
			receipt, err = e.settle(ctx, action, models.ActionFailed, fmt.Sprintf("Execution panicked: %v", r), "")
		}
	}()

	switch {
	case strings.HasPrefix(action.Type, "proposal."):
		return e.settle(ctx, action, models.ActionPlanned, "Proposal only - no writes performed", "")

	case strings.HasPrefix(action.Type, "calendar."):
		if !flags[models.FlagCalendarWrites] {
			return e.settle(ctx, action, models.ActionBlocked, "Calendar writes disabled by flag", "")
		}
		return e.invokeTool(ctx, action, "calendar", "createEvent")

	case action.Type == "email.send":
		if !flags[models.FlagEmailSend] {
			return e.settle(ctx, action, models.ActionBlocked, "Email sending disabled by flag", "")
		}
		return e.invokeTool(ctx, action, "email", "send")

	case action.Type == "task.complete":
		return e.invokeTool(ctx, action, "tasks", "complete")

	default:
		return e.settle(ctx, action, models.ActionBlocked, "Unknown action type", "")
	}
}

func (e *Executor) invokeTool(ctx context.Context, action *models.PlannedAction, tool, toolAction string) (*models.ActionReceipt, error) {
	result := e.tools.Invoke(ctx, models.ToolRequest{
		Tool:   tool,
		Action: toolAction,
		Input:  action.Payload,
	})

	if !result.OK {
		msg := "Tool invocation failed"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return e.settle(ctx, action, models.ActionFailed, msg, "")
	}

	externalRef := ""
	if result.Output != nil {
		if ref, ok := result.Output["externalRef"].(string); ok {
			externalRef = ref
		}
	}
	return e.settle(ctx, action, models.ActionExecuted, fmt.Sprintf("Executed via %s/%s", tool, toolAction), externalRef)
}

// settle persists the receipt, records the audit entry, and returns the
// receipt. Every non-replay outcome funnels through here exactly once.
func (e *Executor) settle(ctx context.Context, action *models.PlannedAction, status models.ActionStatus, message, externalRef string) (*models.ActionReceipt, error) {
	receipt := &models.ActionReceipt{
		Status:      status,
		Message:     message,
		ExternalRef: externalRef,
	}
	if status == models.ActionExecuted {
		now := time.Now().UTC()
		receipt.ExecutedAt = &now
	}

	if err := e.store.RecordReceipt(ctx, action.ID, receipt); err != nil {
		return nil, err
	}
	e.audit.Record(action.ID, status, message, externalRef)

	log.Info().
		Str("actionId", action.ID).
		Str("type", action.Type).
		Str("status", string(status)).
		Msg("Action settled")

	out := *receipt
	return &out, nil
}

func (e *Executor) resolveFlags(execCtx models.ExecContext) map[string]bool {
	flags := make(map[string]bool, len(e.defaultFlags)+len(execCtx.FeatureFlags))
	for k, v := range e.defaultFlags {
		flags[k] = v
	}
	for k, v := range execCtx.FeatureFlags {
		flags[k] = v
	}
	return flags
}

// terminal reports whether the status ends an action's lifecycle.
func terminal(status models.ActionStatus) bool {
	return status == models.ActionExecuted ||
		status == models.ActionBlocked ||
		status == models.ActionFailed
}

// lockKey returns an unlock func for the per-key mutex.
func (e *Executor) lockKey(key string) func() {
	e.keysMu.Lock()
	mu, ok := e.keys[key]
	if !ok {
		mu = &sync.Mutex{}
		e.keys[key] = mu
	}
	e.keysMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
