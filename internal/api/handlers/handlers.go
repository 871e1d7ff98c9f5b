// Package handlers implements the HTTP handlers for the assistant service.
// Handlers are thin: they decode, delegate to the domain packages, and
// encode; safety decisions live in the executor, not here.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/actions"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/agents"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/audit"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/flow"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/intent"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/planner"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/sessions"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/tools"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Classifier *intent.Classifier
	Planner    *planner.Planner
	Registry   *agents.Registry
	Dispatcher *agents.Dispatcher
	Flow       *flow.Runner
	Store      actions.Store
	Executor   *actions.Executor
	Audit      *audit.Log
	Tools      *tools.Registry
	Sessions   *sessions.MemoryTurnStore
	Version    string
}

// ── Conversation ─────────────────────────────────────────────

type classifyRequest struct {
	Text   string `json:"text"`
	UserID string `json:"userId,omitempty"`
}

// Classify runs one utterance through entity extraction, referent
// resolution against the user's turn history, and intent classification.
// The turn is appended to history so later referents can resolve to it.
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	var history []models.SessionTurn
	if req.UserID != "" {
		history = h.Sessions.History(req.UserID)
	}

	result := h.Classifier.ClassifyWithHistory(r.Context(), req.Text, history)

	if req.UserID != "" {
		h.Sessions.Append(req.UserID, models.SessionTurn{
			Text:     req.Text,
			Intent:   result.Intent,
			Entities: result.Entities,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

// Plan splits a possibly multi-clause utterance and classifies each
// segment.
func (h *Handlers) Plan(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	var history []models.SessionTurn
	if req.UserID != "" {
		history = h.Sessions.History(req.UserID)
	}

	result := h.Planner.Plan(r.Context(), req.Text, history, nil)

	if req.UserID != "" && len(result.Steps) > 0 {
		last := result.Steps[len(result.Steps)-1]
		h.Sessions.Append(req.UserID, models.SessionTurn{
			Text:     req.Text,
			Intent:   last.Intent,
			Entities: last.Params,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

// ── Agents ───────────────────────────────────────────────────

type dispatchRequest struct {
	Requests []models.AgentRequest `json:"requests"`
}

// DispatchAgents fans the batch out concurrently and returns one result per
// requested key.
func (h *Handlers) DispatchAgents(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Requests) == 0 {
		respondError(w, http.StatusBadRequest, "requests must not be empty")
		return
	}

	results := h.Dispatcher.Dispatch(r.Context(), req.Requests)
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListAgents returns the registered agent keys.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"agents": h.Registry.List()})
}

// RunFlow executes one aggregation run.
func (h *Handlers) RunFlow(w http.ResponseWriter, r *http.Request) {
	var req models.FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Flow.Run(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ── Actions ──────────────────────────────────────────────────

// CreateAction stores a new planned action.
func (h *Handlers) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req models.PlannedAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "type is required")
		return
	}

	stored, err := h.Store.SavePlanned(r.Context(), &req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("actionId", stored.ID).Str("type", stored.Type).Msg("Action planned")
	respondJSON(w, http.StatusCreated, stored)
}

// GetAction returns one action by id.
func (h *Handlers) GetAction(w http.ResponseWriter, r *http.Request) {
	action, err := h.Store.Get(r.Context(), chi.URLParam(r, "actionId"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, action)
}

// ListPendingActions returns actions still awaiting execution.
func (h *Handlers) ListPendingActions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Store.ListPending(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending == nil {
		pending = []models.PlannedAction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"actions": pending})
}

type approveRequest struct {
	ApprovedBy string `json:"approvedBy"`
	Notes      string `json:"notes,omitempty"`
}

// ApproveAction moves an action to APPROVED.
func (h *Handlers) ApproveAction(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ApprovedBy == "" {
		respondError(w, http.StatusBadRequest, "approvedBy is required")
		return
	}

	actionID := chi.URLParam(r, "actionId")
	action, err := h.Store.Approve(r.Context(), actionID, req.ApprovedBy, req.Notes)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.Audit.Record(actionID, models.ActionApproved, "Approved by "+req.ApprovedBy, "")
	log.Info().Str("actionId", actionID).Str("approvedBy", req.ApprovedBy).Msg("Action approved")
	respondJSON(w, http.StatusOK, action)
}

// ExecuteAction runs one action through the safety state machine.
func (h *Handlers) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	var execCtx models.ExecContext
	if err := json.NewDecoder(r.Body).Decode(&execCtx); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if execCtx.Mode == "" {
		execCtx.Mode = models.ModePlan
	}

	receipt, err := h.Executor.Execute(r.Context(), chi.URLParam(r, "actionId"), execCtx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

// ── Audit ────────────────────────────────────────────────────

// ListAudit returns recent audit entries, oldest first. ?limit= bounds the
// window; ?actionId= filters to one action.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	if actionID := r.URL.Query().Get("actionId"); actionID != "" {
		respondJSON(w, http.StatusOK, map[string]any{"entries": h.Audit.ForAction(actionID)})
		return
	}

	limit := audit.DefaultRecentWindow
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": h.Audit.Recent(limit)})
}

// ── Tools ────────────────────────────────────────────────────

// ListTools returns the locally registered tool handler keys.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tools": h.Tools.List()})
}

// InvokeTool runs one tool call through the registry. The result is always
// 200: failures are reported in the envelope, not the transport.
func (h *Handlers) InvokeTool(w http.ResponseWriter, r *http.Request) {
	var req models.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, h.Tools.Invoke(r.Context(), req))
}

// ── Health & info ────────────────────────────────────────────

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "assistant-core",
		"agents":  h.Registry.HealthReport(r.Context()),
	})
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
		"service": "assistant-core",
	})
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if _, ok := err.(*actions.ErrNotFound); ok {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if _, ok := err.(*actions.ErrInvalidTransition); ok {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
