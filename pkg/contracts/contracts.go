// Package contracts defines the narrow interfaces the assistant core
// consumes from excluded subsystems: agents, side-effecting tools, and the
// pluggable fallback classifier.
//
// The core ships reference implementations (rule classifier, in-memory
// store, demo agents); hosts swap in real integrations by implementing
// these interfaces and wiring them through pkg/server.
package contracts

import (
	"context"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// ── Fallback classifier ─────────────────────────────────────

// FallbackClassifier is consulted when no rule matches an utterance.
// Implementations typically wrap an LLM or a statistical model. They must
// always return a classification, never an error: ambiguity is expressed
// as intent=unknown with low confidence.
type FallbackClassifier interface {
	Classify(ctx context.Context, text string) *models.IntentClassification
}

// FallbackFunc adapts a plain function to FallbackClassifier.
type FallbackFunc func(ctx context.Context, text string) *models.IntentClassification

func (f FallbackFunc) Classify(ctx context.Context, text string) *models.IntentClassification {
	return f(ctx, text)
}

// ── Tools ───────────────────────────────────────────────────

// ToolHandler performs one real-world side effect, addressed by
// (tool, action). A returned error is normalized into a failed ToolResult
// by the tool registry; handlers should prefer reporting failures inside
// the result.
type ToolHandler interface {
	Handle(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error)
}

// ToolFunc adapts a plain function to ToolHandler.
type ToolFunc func(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error)

func (f ToolFunc) Handle(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error) {
	return f(ctx, req)
}

// ── Agents ──────────────────────────────────────────────────

// AgentRunFunc is the single required behavior of an agent: run a payload,
// report a normalized output. Errors and panics are converted to FAILED
// results by the dispatcher and never abort sibling agents.
type AgentRunFunc func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error)

// AgentHealthFunc is the optional health probe of an agent.
type AgentHealthFunc func(ctx context.Context) models.AgentHealth
