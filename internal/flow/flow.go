// Package flow orchestrates one aggregation run: primary agents in
// parallel, an action-pack pass, then QA verification with an independent
// contract check before the verdict is trusted.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/agents"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Runner executes the aggregation flow against a dispatcher.
type Runner struct {
	dispatcher *agents.Dispatcher
}

func NewRunner(dispatcher *agents.Dispatcher) *Runner {
	return &Runner{dispatcher: dispatcher}
}

// Run executes one aggregation pass. It never returns a nil result for a
// valid request: agent failures degrade the run rather than abort it.
func (r *Runner) Run(ctx context.Context, req models.FlowRequest) (*models.FlowResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	started := time.Now()
	result := &models.FlowResult{
		RunID:        uuid.New().String(),
		AgentResults: make(map[string]models.AgentResult),
	}

	log.Info().Str("runId", result.RunID).Str("userId", req.UserID).Msg("🚀 Aggregation run started")

	// Batch 1: the four primary agents, concurrently.
	primary := make([]models.AgentRequest, 0, len(agents.PrimaryKeys()))
	for _, key := range agents.PrimaryKeys() {
		primary = append(primary, models.AgentRequest{
			Key:     key,
			Payload: r.payloadFor(key, req),
		})
	}
	for key, res := range r.dispatcher.Dispatch(ctx, primary) {
		result.AgentResults[key] = res
	}

	// Batch 2: action pack, built from whatever the primaries produced.
	packPayload := map[string]any{"userId": req.UserID}
	for _, key := range agents.PrimaryKeys() {
		if res, ok := result.AgentResults[key]; ok && res.Success {
			packPayload[key] = res.Output
		}
	}
	packResults := r.dispatcher.Dispatch(ctx, []models.AgentRequest{
		{Key: agents.KeyActionPack, Payload: packPayload},
	})
	packRes := packResults[agents.KeyActionPack]
	result.AgentResults[agents.KeyActionPack] = packRes
	if packRes.Success {
		result.ActionPack = packRes.Output
	}

	// Batch 3: QA verification over the run so far.
	agentsRun, usedRegistry, failedKeys := summarize(result.AgentResults)
	qaResults := r.dispatcher.Dispatch(ctx, []models.AgentRequest{
		{Key: agents.KeyQA, Payload: map[string]any{
			"userId":       req.UserID,
			"agentsRun":    agentsRun,
			"usedRegistry": usedRegistry,
			"failedKeys":   failedKeys,
			"forceFail":    req.Debug != nil && req.Debug.ForceQAFail,
		}},
	})
	qaRes := qaResults[agents.KeyQA]
	result.AgentResults[agents.KeyQA] = qaRes
	result.QA = parseQAReport(qaRes, agentsRun, usedRegistry)

	// Defense in depth: the QA verdict is not trusted past a broken contract.
	if violations := contractViolations(result.AgentResults, result.ActionPack); len(violations) > 0 {
		result.QA.Status = models.QAFail
		result.QA.Reasons = append(result.QA.Reasons, violations...)
	}

	result.Insights = mergeInsights(result.AgentResults)
	result.Status = deriveStatus(result.QA.Status, result.AgentResults)

	if result.QA.Status == models.QAFail {
		result.ActionPack = blockedPack(result.QA.Reasons)
	} else {
		pack := make(map[string]any, len(result.ActionPack)+1)
		for k, v := range result.ActionPack {
			pack[k] = v
		}
		pack["status"] = "ready"
		result.ActionPack = pack
	}

	result.DurationMs = time.Since(started).Milliseconds()
	log.Info().
		Str("runId", result.RunID).
		Str("status", string(result.Status)).
		Str("qa", string(result.QA.Status)).
		Int64("durationMs", result.DurationMs).
		Msg("Aggregation run finished")
	return result, nil
}

// payloadFor builds the per-agent payload, threading debug flags through.
func (r *Runner) payloadFor(key string, req models.FlowRequest) map[string]any {
	payload := map[string]any{"userId": req.UserID}
	if req.Debug == nil {
		return payload
	}
	for _, k := range req.Debug.SkipAgents {
		if k == key {
			payload["skip"] = true
		}
	}
	for _, k := range req.Debug.ForceAgentFail {
		if k == key {
			payload["forceFail"] = true
		}
	}
	return payload
}

// summarize reduces the primary+pack results to what QA needs.
func summarize(results map[string]models.AgentResult) (agentsRun []any, usedRegistry bool, failedKeys []any) {
	usedRegistry = true
	keys := append(agents.PrimaryKeys(), agents.KeyActionPack)
	for _, key := range keys {
		res, ok := results[key]
		if !ok {
			continue
		}
		if res.Success {
			agentsRun = append(agentsRun, key)
		} else {
			failedKeys = append(failedKeys, key)
		}
		if res.UsedStub {
			usedRegistry = false
		}
	}
	return agentsRun, usedRegistry, failedKeys
}

// contractViolations checks the run against the contracts QA itself cannot
// vouch for: no agent may have emitted malformed output, and the action
// pack must be a real object.
func contractViolations(results map[string]models.AgentResult, pack map[string]any) []string {
	var violations []string
	keys := append(agents.PrimaryKeys(), agents.KeyActionPack, agents.KeyQA)
	for _, key := range keys {
		if res, ok := results[key]; ok && res.Error == agents.ErrMalformedOutput {
			violations = append(violations, fmt.Sprintf("agent %s violated the output contract", key))
		}
	}
	if pack == nil {
		violations = append(violations, "action pack is missing or not an object")
	}
	return violations
}

// parseQAReport validates the QA agent's output against its contract. A
// missing, failed, or malformed report forces FAIL: the run must not look
// healthier than the verifier that vouched for it.
func parseQAReport(res models.AgentResult, agentsRun []any, usedRegistry bool) models.QAReport {
	report := models.QAReport{
		UsedRegistry: usedRegistry,
	}
	for _, k := range agentsRun {
		if s, ok := k.(string); ok {
			report.AgentsRun = append(report.AgentsRun, s)
		}
	}

	if !res.Success || res.Output == nil {
		report.Status = models.QAFail
		report.Reasons = []string{"QA agent did not produce a report"}
		return report
	}

	rawStatus, _ := res.Output["status"].(string)
	switch models.QAStatus(rawStatus) {
	case models.QAPass, models.QADegraded, models.QAFail:
		report.Status = models.QAStatus(rawStatus)
	default:
		report.Status = models.QAFail
		report.Reasons = []string{fmt.Sprintf("QA report has invalid status %q", rawStatus)}
		return report
	}

	if rawReasons, ok := res.Output["reasons"].([]any); ok {
		for _, reason := range rawReasons {
			if s, ok := reason.(string); ok {
				report.Reasons = append(report.Reasons, s)
			}
		}
	}
	return report
}

// deriveStatus folds the QA verdict and per-agent outcomes into the run
// status. A full core (brief, content, and at least one of insights or
// journal) with a PASS verdict is ok; anything useful but incomplete is
// degraded; nothing useful is failed.
func deriveStatus(qa models.QAStatus, results map[string]models.AgentResult) models.FlowStatus {
	if qa == models.QAFail {
		return models.FlowFailed
	}

	ok := func(key string) bool {
		res, found := results[key]
		return found && res.Success
	}
	coreComplete := ok(agents.KeyBrief) && ok(agents.KeyContent) &&
		(ok(agents.KeyInsights) || ok(agents.KeyJournal))
	if coreComplete {
		if qa == models.QAPass {
			return models.FlowOK
		}
		return models.FlowDegraded
	}

	for _, key := range agents.PrimaryKeys() {
		if ok(key) {
			return models.FlowDegraded
		}
	}
	return models.FlowFailed
}

// blockedPack replaces the action pack when QA fails: no proposals leave a
// run the verifier rejected.
func blockedPack(blockers []string) map[string]any {
	reasons := make([]any, 0, len(blockers))
	for _, b := range blockers {
		reasons = append(reasons, b)
	}
	return map[string]any{
		"status":   "blocked",
		"blockers": reasons,
		"safeNextSteps": []any{
			"Review the reported blockers",
			"Retry the run",
			"Proceed manually with reduced scope",
		},
	}
}

// mergeInsights collects insights from the insights and journal agents,
// deduplicating by exact title. The first occurrence wins.
func mergeInsights(results map[string]models.AgentResult) []models.Insight {
	var merged []models.Insight
	seen := make(map[string]bool)

	for _, key := range []string{agents.KeyInsights, agents.KeyJournal} {
		res, ok := results[key]
		if !ok || !res.Success || res.Output == nil {
			continue
		}
		raw, ok := res.Output["insights"].([]any)
		if !ok {
			continue
		}
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			title, _ := entry["title"].(string)
			if title == "" || seen[title] {
				continue
			}
			seen[title] = true
			body, _ := entry["body"].(string)
			merged = append(merged, models.Insight{Title: title, Body: body, Source: key})
		}
	}
	return merged
}
