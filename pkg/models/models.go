// Package models defines the shared data model for the assistant core:
// intent classifications, plan steps, agent outputs, planned actions,
// receipts, audit entries, and the tool contract.
package models

import (
	"fmt"
	"time"
)

// ── Intents ──────────────────────────────────────────────────

// Intent is a closed-vocabulary label for what an utterance requests.
type Intent string

const (
	IntentSchedulerBlock      Intent = "scheduler.block"
	IntentSchedulerConfirm    Intent = "scheduler.confirm"
	IntentSchedulerReschedule Intent = "scheduler.reschedule"
	IntentCoachPause          Intent = "coach.pause"
	IntentSupportLogComplete  Intent = "support.logComplete"
	IntentSupportFollowUp     Intent = "support.followUp"
	IntentUnknown             Intent = "unknown"
)

// KnownIntents lists every non-unknown intent, in rule-table order.
func KnownIntents() []Intent {
	return []Intent{
		IntentSchedulerReschedule,
		IntentSchedulerConfirm,
		IntentSchedulerBlock,
		IntentSupportFollowUp,
		IntentSupportLogComplete,
		IntentCoachPause,
	}
}

// ── Entities ─────────────────────────────────────────────────

// Well-known entity slot names. The map is open; handlers may add more.
const (
	EntityMinutes      = "minutes"
	EntityTime         = "time"
	EntityDate         = "date"
	EntityTitle        = "title"
	EntityEventID      = "eventId"
	EntityTaskID       = "taskId"
	EntityFollowUpDate = "followUpDate"
)

// IntentEntities is an open map of named slots extracted from text.
// Absence of a key means the slot was not extracted.
type IntentEntities map[string]any

// GetString returns the slot as a string, or "" when absent or not a string.
func (e IntentEntities) GetString(key string) string {
	if e == nil {
		return ""
	}
	s, _ := e[key].(string)
	return s
}

// GetInt returns the slot as an int. JSON round-trips numbers as float64,
// so both are accepted.
func (e IntentEntities) GetInt(key string) (int, bool) {
	if e == nil {
		return 0, false
	}
	switch n := e[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Has reports whether the slot is present.
func (e IntentEntities) Has(key string) bool {
	if e == nil {
		return false
	}
	_, ok := e[key]
	return ok
}

// Clone returns a shallow copy. A nil receiver clones to an empty map.
func (e IntentEntities) Clone() IntentEntities {
	out := make(IntentEntities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// MergeEntities overlays fresh on top of base: fresh wins on conflict.
// Neither input is mutated.
func MergeEntities(fresh, base IntentEntities) IntentEntities {
	out := base.Clone()
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

// ── Classification ───────────────────────────────────────────

// IntentClassification is the result of classifying one utterance.
// It is ephemeral: the core never persists it.
type IntentClassification struct {
	Intent       Intent         `json:"intent"`
	Confidence   float64        `json:"confidence"`
	Entities     IntentEntities `json:"entities"`
	Reasoning    []string       `json:"reasoning"`
	UsedFallback bool           `json:"usedFallback"`
	HumanSummary string         `json:"humanSummary"`
}

// SessionTurn is one prior turn of a conversation. Caller-owned; the core
// only reads it during referent resolution.
type SessionTurn struct {
	Text     string         `json:"text"`
	Intent   Intent         `json:"intent,omitempty"`
	Entities IntentEntities `json:"entities,omitempty"`
}

// ── Planning ─────────────────────────────────────────────────

// PlanStep is one classified segment of a (possibly multi-clause) utterance.
type PlanStep struct {
	Intent  Intent         `json:"intent"`
	Params  IntentEntities `json:"params"`
	Summary string         `json:"summary"`
}

// PlanningResult is the ordered outcome of planning an utterance.
// For non-empty input Steps has at least one entry, and
// IsMultiStep is true exactly when len(Steps) > 1.
type PlanningResult struct {
	IsMultiStep bool       `json:"isMultiStep"`
	Steps       []PlanStep `json:"steps"`
	Reasoning   []string   `json:"reasoning"`
}

// ── Agents ───────────────────────────────────────────────────

// AgentStatus is the tri-state outcome every agent handler must report.
type AgentStatus string

const (
	AgentOK      AgentStatus = "OK"
	AgentSkipped AgentStatus = "SKIPPED"
	AgentFailed  AgentStatus = "FAILED"
)

// ValidAgentStatus reports whether s is one of the contract statuses.
func ValidAgentStatus(s AgentStatus) bool {
	return s == AgentOK || s == AgentSkipped || s == AgentFailed
}

// AgentOutput is the contract every agent handler must satisfy.
// A handler error or panic is normalized to FAILED by the dispatcher.
type AgentOutput struct {
	Status   AgentStatus    `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// AgentHealth is the optional health report of an agent.
type AgentHealth struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// AgentRequest asks the dispatcher to invoke one agent with a payload.
type AgentRequest struct {
	Key     string         `json:"key"`
	Payload map[string]any `json:"payload,omitempty"`
}

// AgentResult is the dispatcher's normalized per-key outcome. The dispatcher
// produces exactly one result per requested key, regardless of whether the
// agent was registered, returned an error, or panicked.
type AgentResult struct {
	Key      string         `json:"key"`
	Success  bool           `json:"success"`
	Status   AgentStatus    `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Warning  string         `json:"warning,omitempty"`
	Error    string         `json:"error,omitempty"`
	UsedStub bool           `json:"usedStub,omitempty"`
}

// ── Planned actions ──────────────────────────────────────────

// ActionStatus is the lifecycle state of a planned action.
// PLANNED → APPROVED → {EXECUTED | BLOCKED | FAILED}; BLOCKED and FAILED
// are also reachable directly from PLANNED.
type ActionStatus string

const (
	ActionPlanned  ActionStatus = "PLANNED"
	ActionApproved ActionStatus = "APPROVED"
	ActionExecuted ActionStatus = "EXECUTED"
	ActionBlocked  ActionStatus = "BLOCKED"
	ActionFailed   ActionStatus = "FAILED"
)

// ActionRisk grades how hard an action is to undo.
type ActionRisk string

const (
	RiskLow    ActionRisk = "low"
	RiskMedium ActionRisk = "medium"
	RiskHigh   ActionRisk = "high"
)

// ActionPriority orders pending actions for review.
type ActionPriority string

const (
	PriorityLow    ActionPriority = "low"
	PriorityMedium ActionPriority = "medium"
	PriorityHigh   ActionPriority = "high"
)

// PlannedAction is a durable record of an intended side-effecting action.
type PlannedAction struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	RequiresApproval bool           `json:"requiresApproval"`
	Payload          map[string]any `json:"payload,omitempty"`
	Risk             ActionRisk     `json:"risk"`
	Priority         ActionPriority `json:"priority"`
	IdempotencyKey   string         `json:"idempotencyKey,omitempty"`
	Status           ActionStatus   `json:"status"`
	Receipt          *ActionReceipt `json:"receipt,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ActionReceipt records the outcome of one execution attempt. Idempotent
// replays return the original receipt instead of minting a new one.
type ActionReceipt struct {
	Status      ActionStatus `json:"status"`
	Message     string       `json:"message"`
	ExternalRef string       `json:"externalRef,omitempty"`
	ExecutedAt  *time.Time   `json:"executedAt,omitempty"`
}

// AuditEntry is one append-only record of an action status transition.
type AuditEntry struct {
	ID          string       `json:"id"`
	ActionID    string       `json:"actionId"`
	Transition  ActionStatus `json:"transition"`
	Message     string       `json:"message"`
	Timestamp   time.Time    `json:"timestamp"`
	ExternalRef string       `json:"externalRef,omitempty"`
}

// ── Execution context ────────────────────────────────────────

// ExecMode gates whether execution may perform real side effects at all.
type ExecMode string

const (
	ModePlan    ExecMode = "PLAN"
	ModeExecute ExecMode = "EXECUTE"
)

// Feature flag names understood by the executor. Defaults come from the
// environment; ExecContext.FeatureFlags overrides take precedence.
const (
	FlagExecutionEnabled = "executionEnabled"
	FlagCalendarWrites   = "calendarWrites"
	FlagEmailSend        = "emailSend"
)

// ExecContext carries the mode, approver, and flag overrides for one
// execution attempt.
type ExecContext struct {
	Mode         ExecMode        `json:"mode"`
	ApprovedBy   string          `json:"approvedBy,omitempty"`
	FeatureFlags map[string]bool `json:"featureFlags,omitempty"`
}

// ── Tools ────────────────────────────────────────────────────

// ToolRequest addresses one side-effecting integration by (tool, action).
type ToolRequest struct {
	Tool   string         `json:"tool"`
	Action string         `json:"action"`
	Input  map[string]any `json:"input,omitempty"`
}

// ToolError describes why a tool invocation failed.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToolResult is the normalized outcome of a tool invocation.
type ToolResult struct {
	OK     bool           `json:"ok"`
	Output map[string]any `json:"output,omitempty"`
	Error  *ToolError     `json:"error,omitempty"`
}

// ── Aggregation flow ─────────────────────────────────────────

// QAStatus is the verdict of the post-hoc QA verification pass.
type QAStatus string

const (
	QAPass     QAStatus = "PASS"
	QADegraded QAStatus = "DEGRADED"
	QAFail     QAStatus = "FAIL"
)

// FlowStatus is the overall status of one aggregation run.
type FlowStatus string

const (
	FlowOK       FlowStatus = "ok"
	FlowDegraded FlowStatus = "degraded"
	FlowFailed   FlowStatus = "failed"
)

// FlowDebug threads test-only failure injection through an aggregation run.
type FlowDebug struct {
	SkipAgents     []string `json:"skipAgents,omitempty"`
	ForceAgentFail []string `json:"forceAgentFail,omitempty"`
	ForceQAFail    bool     `json:"forceQaFail,omitempty"`
}

// FlowRequest starts one aggregation run for a user.
type FlowRequest struct {
	UserID string     `json:"userId"`
	Mode   ExecMode   `json:"mode,omitempty"`
	Debug  *FlowDebug `json:"debug,omitempty"`
}

// QAReport is what the QA verification pass produced.
type QAReport struct {
	Status       QAStatus `json:"status"`
	Reasons      []string `json:"reasons,omitempty"`
	AgentsRun    []string `json:"agentsRun,omitempty"`
	UsedRegistry bool     `json:"usedRegistry"`
}

// Insight is a titled finding surfaced by the insights or journal agents.
type Insight struct {
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
	Source string `json:"source,omitempty"`
}

// FlowResult is the aggregated artifact of one run.
type FlowResult struct {
	RunID        string                 `json:"runId"`
	Status       FlowStatus             `json:"status"`
	QA           QAReport               `json:"qa"`
	AgentResults map[string]AgentResult `json:"agentResults"`
	ActionPack   map[string]any         `json:"actionPack"`
	Insights     []Insight              `json:"insights,omitempty"`
	Error        string                 `json:"error,omitempty"`
	DurationMs   int64                  `json:"durationMs"`
}
