package flow_test

import (
	"context"
	"testing"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/agents"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/flow"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

func newTestRunner(t *testing.T) *flow.Runner {
	t.Helper()
	reg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		reg.Register(def)
	}
	return flow.NewRunner(agents.NewDispatcher(reg, 0))
}

func TestRunRequiresUserID(t *testing.T) {
	r := newTestRunner(t)
	if _, err := r.Run(context.Background(), models.FlowRequest{}); err == nil {
		t.Fatal("Run() error = nil, want userId validation error")
	}
}

func TestRunHappyPath(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), models.FlowRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.RunID == "" {
		t.Error("RunID not assigned")
	}
	if result.Status != models.FlowOK {
		t.Errorf("Status = %s, want ok", result.Status)
	}
	if result.QA.Status != models.QAPass {
		t.Errorf("QA status = %s, want PASS, reasons %v", result.QA.Status, result.QA.Reasons)
	}
	if len(result.QA.AgentsRun) != 5 {
		t.Errorf("AgentsRun = %v, want the four primaries plus the pack", result.QA.AgentsRun)
	}
	if result.ActionPack == nil {
		t.Error("ActionPack is nil, want the pack agent's output")
	}
	if result.ActionPack["status"] != "ready" {
		t.Errorf("pack status = %v, want ready on a passing run", result.ActionPack["status"])
	}
	if len(result.Insights) == 0 {
		t.Error("Insights empty, want merged insights")
	}
	// One result per agent including QA itself.
	if len(result.AgentResults) != 6 {
		t.Errorf("len(AgentResults) = %d, want 6", len(result.AgentResults))
	}
}

func TestRunInsightsDedupeByTitle(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), models.FlowRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The built-in insights and journal agents both report "Deep work
	// slipping"; only the first occurrence survives.
	seen := map[string]int{}
	for _, in := range result.Insights {
		seen[in.Title]++
	}
	if seen["Deep work slipping"] != 1 {
		t.Errorf("duplicate title count = %d, want 1", seen["Deep work slipping"])
	}
	for _, in := range result.Insights {
		if in.Title == "Deep work slipping" && in.Source != agents.KeyInsights {
			t.Errorf("source = %s, want the insights agent to win the tie", in.Source)
		}
	}
}

func TestRunDegradedOnAgentFailure(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), models.FlowRequest{
		UserID: "u1",
		Debug:  &models.FlowDebug{ForceAgentFail: []string{agents.KeyJournal}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status != models.FlowDegraded {
		t.Errorf("Status = %s, want degraded with one failed primary", result.Status)
	}
	if result.QA.Status != models.QADegraded {
		t.Errorf("QA status = %s, want DEGRADED", result.QA.Status)
	}
}

func TestRunDegradedWhenCoreIncomplete(t *testing.T) {
	r := newTestRunner(t)

	// Brief down means the core set is incomplete even though other
	// agents succeeded.
	result, err := r.Run(context.Background(), models.FlowRequest{
		UserID: "u1",
		Debug:  &models.FlowDebug{SkipAgents: []string{agents.KeyBrief}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status != models.FlowDegraded {
		t.Errorf("Status = %s, want degraded", result.Status)
	}
}

func TestRunForcedQAFailBlocksPack(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), models.FlowRequest{
		UserID: "u1",
		Debug:  &models.FlowDebug{ForceQAFail: true},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status != models.FlowFailed {
		t.Errorf("Status = %s, want failed on QA FAIL", result.Status)
	}
	if result.QA.Status != models.QAFail {
		t.Errorf("QA status = %s, want FAIL", result.QA.Status)
	}
	if result.ActionPack["status"] != "blocked" {
		t.Errorf("pack status = %v, want blocked", result.ActionPack["status"])
	}
	steps, ok := result.ActionPack["safeNextSteps"].([]any)
	if !ok || len(steps) == 0 {
		t.Errorf("safeNextSteps = %v, want guidance when blocked", result.ActionPack["safeNextSteps"])
	}
}

func TestRunAllPrimariesFailed(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), models.FlowRequest{
		UserID: "u1",
		Debug: &models.FlowDebug{ForceAgentFail: []string{
			agents.KeyBrief, agents.KeyContent, agents.KeyInsights, agents.KeyJournal,
		}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// The pack still ran, so the run degrades rather than fails outright.
	if result.Status != models.FlowDegraded && result.Status != models.FlowFailed {
		t.Errorf("Status = %s, want degraded or failed", result.Status)
	}
	for _, key := range []string{agents.KeyBrief, agents.KeyContent, agents.KeyInsights, agents.KeyJournal} {
		if result.AgentResults[key].Success {
			t.Errorf("AgentResults[%q].Success = true, want forced failure", key)
		}
	}
}

func TestRunMalformedAgentOutputFailsQA(t *testing.T) {
	reg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		reg.Register(def)
	}
	// Break the brief agent's output contract: a nil output with a nil
	// error is normalized by the dispatcher but must still fail QA.
	reg.Register(agents.Definition{
		Key: agents.KeyBrief,
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			return nil, nil
		},
	})
	r := flow.NewRunner(agents.NewDispatcher(reg, 0))

	result, err := r.Run(context.Background(), models.FlowRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.QA.Status != models.QAFail {
		t.Errorf("QA status = %s, want FAIL on a contract violation", result.QA.Status)
	}
	if result.Status != models.FlowFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
}

func TestRunMissingPackFailsQA(t *testing.T) {
	reg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		reg.Register(def)
	}
	reg.Register(agents.Definition{
		Key: agents.KeyActionPack,
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			return &models.AgentOutput{Status: models.AgentFailed, Error: "pack build broke"}, nil
		},
	})
	r := flow.NewRunner(agents.NewDispatcher(reg, 0))

	result, err := r.Run(context.Background(), models.FlowRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.QA.Status != models.QAFail {
		t.Errorf("QA status = %s, want FAIL without an action pack", result.QA.Status)
	}
	if result.ActionPack["status"] != "blocked" {
		t.Errorf("pack status = %v, want blocked", result.ActionPack["status"])
	}
}

func TestRunUnregisteredAgentsDegradeQA(t *testing.T) {
	// Register only QA and the pack: the four primaries fall back to the
	// not-registered stub result, which must degrade the QA verdict.
	reg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		if def.Key == agents.KeyQA || def.Key == agents.KeyActionPack {
			reg.Register(def)
		}
	}
	r := flow.NewRunner(agents.NewDispatcher(reg, 0))

	result, err := r.Run(context.Background(), models.FlowRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.QA.Status != models.QADegraded {
		t.Errorf("QA status = %s, want DEGRADED when stubs were used", result.QA.Status)
	}
	if result.QA.UsedRegistry {
		t.Error("UsedRegistry = true, want false with unregistered primaries")
	}
}
