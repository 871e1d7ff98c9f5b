// Package server provides the public entry point for initializing the
// assistant service.
//
// This package exists in pkg/ (not internal/) so host applications can
// embed the assembled server and layer their own middleware on top.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/actions"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/agents"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/api"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/api/handlers"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/audit"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/config"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/flow"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/intent"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/planner"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/sessions"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/telemetry"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/tools"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/contracts"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Server holds the assembled assistant service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the planned-action store. Exposed so hosts can flush it on
	// shutdown or wrap it in their own persistence.
	Store actions.Store

	// Config is the resolved configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// Option customizes server assembly.
type Option func(*options)

type options struct {
	fallback contracts.FallbackClassifier
	agents   []agents.Definition
}

// WithFallbackClassifier plugs a fallback intent classifier in behind the
// rule table.
func WithFallbackClassifier(fb contracts.FallbackClassifier) Option {
	return func(o *options) { o.fallback = fb }
}

// WithAgents registers extra agents on top of the built-in set. Same-key
// definitions replace the built-ins.
func WithAgents(defs ...agents.Definition) Option {
	return func(o *options) { o.agents = append(o.agents, defs...) }
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store := actions.NewMemoryStore(cfg.DataDir)
	auditLog := audit.NewLog()
	log.Info().Msg("✅ Action store initialized")

	// Tools: local demo handlers, with optional remote delegation for
	// anything not registered here.
	var delegate *tools.RemoteDelegate
	if cfg.ToolDelegateURL != "" {
		delegate = tools.NewRemoteDelegate(cfg.ToolDelegateURL)
	}
	toolReg := tools.NewRegistry(delegate)
	registerLocalTools(toolReg)
	log.Info().Msg("✅ Tool registry initialized")

	// Agents: built-ins plus host-provided overrides.
	agentReg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		agentReg.Register(def)
	}
	for _, def := range o.agents {
		agentReg.Register(def)
	}
	dispatcher := agents.NewDispatcher(agentReg, cfg.DispatchTimeout)
	log.Info().Msg("✅ Agent registry initialized")

	classifier := intent.NewClassifier(o.fallback)
	plan := planner.New(classifier)
	runner := flow.NewRunner(dispatcher)
	executor := actions.NewExecutor(store, toolReg, auditLog, cfg.FlagDefaults())
	turnStore := sessions.NewMemoryTurnStore(cfg.HistoryLimit)

	h := &handlers.Handlers{
		Classifier: classifier,
		Planner:    plan,
		Registry:   agentReg,
		Dispatcher: dispatcher,
		Flow:       runner,
		Store:      store,
		Executor:   executor,
		Audit:      auditLog,
		Tools:      toolReg,
		Sessions:   turnStore,
		Version:    cfg.Version,
	}
	router := api.NewRouter(h)

	return &Server{
		Handler:      router,
		Store:        store,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// registerLocalTools wires the demo side-effect handlers. Real deployments
// replace these via the remote delegate or their own registrations.
func registerLocalTools(reg *tools.Registry) {
	reg.Register("calendar", "createEvent", contracts.ToolFunc(func(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error) {
		return &models.ToolResult{
			OK: true,
			Output: map[string]any{
				"externalRef": "cal_" + uuid.New().String(),
				"title":       req.Input["title"],
			},
		}, nil
	}))
	reg.Register("email", "send", contracts.ToolFunc(func(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error) {
		return &models.ToolResult{
			OK: true,
			Output: map[string]any{
				"externalRef": "msg_" + uuid.New().String(),
				"subject":     req.Input["subject"],
			},
		}, nil
	}))
	reg.Register("tasks", "complete", contracts.ToolFunc(func(ctx context.Context, req models.ToolRequest) (*models.ToolResult, error) {
		taskID, _ := req.Input["taskId"].(string)
		if taskID == "" {
			return &models.ToolResult{
				OK:    false,
				Error: &models.ToolError{Code: "MISSING_TASK_ID", Message: "taskId is required"},
			}, nil
		}
		return &models.ToolResult{
			OK:     true,
			Output: map[string]any{"externalRef": "task_" + taskID, "completed": true},
		}, nil
	}))
}
