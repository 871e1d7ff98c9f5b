package agents_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/agents"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

func TestDispatchReturnsOneResultPerKey(t *testing.T) {
	reg := agents.NewRegistry()
	for _, key := range []string{"brief.generate", "content.suggest", "insights.summarize"} {
		reg.Register(okAgent(key))
	}
	d := agents.NewDispatcher(reg, 0)

	results := d.Dispatch(context.Background(), []models.AgentRequest{
		{Key: "brief.generate"},
		{Key: "content.suggest"},
		{Key: "insights.summarize"},
	})
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for key, res := range results {
		if !res.Success {
			t.Errorf("results[%q].Success = false, want true", key)
		}
		if res.Status != models.AgentOK {
			t.Errorf("results[%q].Status = %s, want OK", key, res.Status)
		}
	}
}

func TestDispatchUnregisteredAgentIsSkippedStub(t *testing.T) {
	d := agents.NewDispatcher(agents.NewRegistry(), 0)

	results := d.Dispatch(context.Background(), []models.AgentRequest{{Key: "ghost.agent"}})
	res := results["ghost.agent"]
	if res.Success {
		t.Error("Success = true for an unregistered agent")
	}
	if res.Status != models.AgentSkipped {
		t.Errorf("Status = %s, want SKIPPED", res.Status)
	}
	if !res.UsedStub {
		t.Error("UsedStub = false, want true")
	}
	if res.Warning == "" {
		t.Error("Warning is empty, want an explanation")
	}
}

func TestDispatchAgentErrorBecomesFailedResult(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(agents.Definition{
		Key: "flaky.agent",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			return nil, errors.New("upstream exploded")
		},
	})
	d := agents.NewDispatcher(reg, 0)

	res := d.Dispatch(context.Background(), []models.AgentRequest{{Key: "flaky.agent"}})["flaky.agent"]
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Status != models.AgentFailed {
		t.Errorf("Status = %s, want FAILED", res.Status)
	}
	if res.Error != "upstream exploded" {
		t.Errorf("Error = %q, want the handler's message", res.Error)
	}
}

func TestDispatchPanicIsContained(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(agents.Definition{
		Key: "panicky.agent",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			panic("boom")
		},
	})
	reg.Register(okAgent("steady.agent"))
	d := agents.NewDispatcher(reg, 0)

	results := d.Dispatch(context.Background(), []models.AgentRequest{
		{Key: "panicky.agent"},
		{Key: "steady.agent"},
	})
	if results["panicky.agent"].Status != models.AgentFailed {
		t.Errorf("panicky status = %s, want FAILED", results["panicky.agent"].Status)
	}
	if !results["steady.agent"].Success {
		t.Error("a panic in one agent broke an unrelated agent's result")
	}
}

func TestDispatchMalformedOutputFails(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(agents.Definition{
		Key: "weird.agent",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			return &models.AgentOutput{Status: "SHRUG"}, nil
		},
	})
	reg.Register(agents.Definition{
		Key: "nil.agent",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			return nil, nil
		},
	})
	d := agents.NewDispatcher(reg, 0)

	results := d.Dispatch(context.Background(), []models.AgentRequest{
		{Key: "weird.agent"},
		{Key: "nil.agent"},
	})
	for _, key := range []string{"weird.agent", "nil.agent"} {
		if results[key].Status != models.AgentFailed {
			t.Errorf("results[%q].Status = %s, want FAILED for malformed output", key, results[key].Status)
		}
	}
}

func TestDispatchTimeout(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(agents.Definition{
		Key: "slow.agent",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			select {
			case <-time.After(5 * time.Second):
				return &models.AgentOutput{Status: models.AgentOK}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	reg.Register(okAgent("fast.agent"))
	d := agents.NewDispatcher(reg, 50*time.Millisecond)

	start := time.Now()
	results := d.Dispatch(context.Background(), []models.AgentRequest{
		{Key: "slow.agent"},
		{Key: "fast.agent"},
	})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Dispatch took %v, want the batch deadline to cut it short", elapsed)
	}
	if results["slow.agent"].Status != models.AgentFailed {
		t.Errorf("slow status = %s, want FAILED after timeout", results["slow.agent"].Status)
	}
	if !results["fast.agent"].Success {
		t.Error("fast agent lost its result to the slow agent's timeout")
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := agents.NewDispatcher(agents.NewRegistry(), 0)
	results := d.Dispatch(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestBuiltinAgentsRunAndSkip(t *testing.T) {
	reg := agents.NewRegistry()
	for _, def := range agents.Builtin() {
		reg.Register(def)
	}
	d := agents.NewDispatcher(reg, 0)

	results := d.Dispatch(context.Background(), []models.AgentRequest{
		{Key: agents.KeyBrief, Payload: map[string]any{"userId": "u1"}},
		{Key: agents.KeyJournal, Payload: map[string]any{"skip": true}},
		{Key: agents.KeyContent, Payload: map[string]any{"forceFail": true}},
	})
	if !results[agents.KeyBrief].Success {
		t.Error("brief.generate failed on a plain payload")
	}
	if results[agents.KeyJournal].Status != models.AgentSkipped {
		t.Errorf("journal status = %s, want SKIPPED", results[agents.KeyJournal].Status)
	}
	if results[agents.KeyContent].Status != models.AgentFailed {
		t.Errorf("content status = %s, want FAILED", results[agents.KeyContent].Status)
	}
}
