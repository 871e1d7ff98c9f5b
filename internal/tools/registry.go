// Package tools routes side-effecting requests to handlers registered per
// (tool, action) pair, with an optional remote JSON-RPC delegate when no
// local handler exists.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/contracts"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Registry maps (tool, action) pairs to handlers. Registration overwrites;
// lookups never fail — Invoke normalizes every miss and error into a
// ToolResult.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]contracts.ToolHandler
	delegate *RemoteDelegate
}

// NewRegistry creates an empty tool registry. delegate may be nil.
func NewRegistry(delegate *RemoteDelegate) *Registry {
	return &Registry{
		handlers: make(map[string]contracts.ToolHandler),
		delegate: delegate,
	}
}

func handlerKey(tool, action string) string {
	return tool + ":" + action
}

// Register adds or replaces the handler for a (tool, action) pair.
func (r *Registry) Register(tool, action string, h contracts.ToolHandler) {
	r.mu.Lock()
	r.handlers[handlerKey(tool, action)] = h
	r.mu.Unlock()
	log.Info().Str("tool", tool).Str("action", action).Msg("Tool handler registered")
}

// List returns every registered (tool, action) key.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Invoke routes the request to its handler, falling back to the remote
// delegate when configured. Handler errors and panics are converted into
// failed results; Invoke itself never fails.
func (r *Registry) Invoke(ctx context.Context, req models.ToolRequest) (result *models.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = &models.ToolResult{
				OK: false,
				Error: &models.ToolError{
					Code:    "TOOL_PANIC",
					Message: fmt.Sprintf("tool handler panicked: %v", rec),
				},
			}
		}
	}()

	r.mu.RLock()
	h, ok := r.handlers[handlerKey(req.Tool, req.Action)]
	r.mu.RUnlock()

	if !ok {
		if r.delegate != nil {
			return r.delegate.Forward(ctx, req)
		}
		return &models.ToolResult{
			OK: false,
			Error: &models.ToolError{
				Code:    "TOOL_NOT_FOUND",
				Message: fmt.Sprintf("no handler for %s/%s", req.Tool, req.Action),
			},
		}
	}

	res, err := h.Handle(ctx, req)
	if err != nil {
		return &models.ToolResult{
			OK:    false,
			Error: &models.ToolError{Code: "TOOL_ERROR", Message: err.Error()},
		}
	}
	if res == nil {
		return &models.ToolResult{
			OK:    false,
			Error: &models.ToolError{Code: "TOOL_ERROR", Message: "tool handler returned no result"},
		}
	}
	return res
}
