package intent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/intent"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/contracts"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

func TestClassifyRuleMatches(t *testing.T) {
	c := intent.NewClassifier(nil)
	tests := []struct {
		text string
		want models.Intent
	}{
		{"block 30 minutes tomorrow for deep work", models.IntentSchedulerBlock},
		{"set aside an hour for review", models.IntentSchedulerBlock},
		{"confirm the standup at 9 am", models.IntentSchedulerConfirm},
		{"is the sync still on?", models.IntentSchedulerConfirm},
		{"reschedule the retro to friday", models.IntentSchedulerReschedule},
		{"move the meeting to 4 pm", models.IntentSchedulerReschedule},
		{"I need a pause", models.IntentCoachPause},
		{"mark the migration done", models.IntentSupportLogComplete},
		{"finished the deployment", models.IntentSupportLogComplete},
		{"follow up with the vendor next week", models.IntentSupportFollowUp},
		{"remind me about the invoice", models.IntentSupportFollowUp},
	}
	for _, tt := range tests {
		got := c.Classify(context.Background(), tt.text, nil)
		if got.Intent != tt.want {
			t.Errorf("Classify(%q) intent = %s, want %s", tt.text, got.Intent, tt.want)
		}
		if got.Confidence != intent.RuleConfidence {
			t.Errorf("Classify(%q) confidence = %v, want %v", tt.text, got.Confidence, intent.RuleConfidence)
		}
		if got.UsedFallback {
			t.Errorf("Classify(%q) used fallback on a rule match", tt.text)
		}
	}
}

func TestClassifyBlockUtteranceEndToEnd(t *testing.T) {
	c := intent.NewClassifier(nil)

	got := c.Classify(context.Background(), "Block 2 hours tomorrow at 4:30pm for the product review meeting", nil)
	if got.Intent != models.IntentSchedulerBlock {
		t.Fatalf("intent = %s, want scheduler.block", got.Intent)
	}
	if minutes, _ := got.Entities.GetInt(models.EntityMinutes); minutes != 120 {
		t.Errorf("minutes = %d, want 120 (2 hours)", minutes)
	}
	if date := got.Entities.GetString(models.EntityDate); date != "tomorrow" {
		t.Errorf("date = %q, want tomorrow", date)
	}
	if tm := got.Entities.GetString(models.EntityTime); tm != "4:30 pm" {
		t.Errorf("time = %q, want 4:30 pm", tm)
	}
	if title := got.Entities.GetString(models.EntityTitle); !strings.Contains(title, "product review") {
		t.Errorf("title = %q, want it to contain the noun phrase", title)
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	c := intent.NewClassifier(nil)

	// "move the meeting" could read as block-ish scheduling; reschedule
	// must win because it sits earlier in the table.
	got := c.Classify(context.Background(), "move the planning meeting and block my morning", nil)
	if got.Intent != models.IntentSchedulerReschedule {
		t.Errorf("intent = %s, want scheduler.reschedule (first match wins)", got.Intent)
	}

	// "pause the follow up task" matches both support.followUp and
	// coach.pause; the support rule is earlier.
	got = c.Classify(context.Background(), "pause the follow up task", nil)
	if got.Intent != models.IntentSupportFollowUp {
		t.Errorf("intent = %s, want support.followUp (first match wins)", got.Intent)
	}
}

func TestClassifyEmptyUtterance(t *testing.T) {
	fallbackCalled := false
	fb := contracts.FallbackFunc(func(ctx context.Context, text string) *models.IntentClassification {
		fallbackCalled = true
		return &models.IntentClassification{Intent: models.IntentCoachPause, Confidence: 0.5}
	})
	c := intent.NewClassifier(fb)

	got := c.Classify(context.Background(), "   ", nil)
	if got.Intent != models.IntentUnknown {
		t.Errorf("intent = %s, want unknown", got.Intent)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if fallbackCalled {
		t.Error("fallback was consulted for empty input")
	}
}

func TestClassifyNoRuleNoFallback(t *testing.T) {
	c := intent.NewClassifier(nil)
	got := c.Classify(context.Background(), "what is the meaning of life", nil)
	if got.Intent != models.IntentUnknown {
		t.Errorf("intent = %s, want unknown", got.Intent)
	}
	if got.UsedFallback {
		t.Error("UsedFallback = true with no fallback configured")
	}
}

func TestClassifyFallbackResolves(t *testing.T) {
	fb := contracts.FallbackFunc(func(ctx context.Context, text string) *models.IntentClassification {
		return &models.IntentClassification{
			Intent:     models.IntentSchedulerBlock,
			Confidence: 0.6,
			Entities:   models.IntentEntities{models.EntityTitle: "fallback title"},
			Reasoning:  []string{"guessed from verb"},
		}
	})
	c := intent.NewClassifier(fb)

	got := c.Classify(context.Background(), "grab some calendar space for the budget review", nil)
	if got.Intent != models.IntentSchedulerBlock {
		t.Fatalf("intent = %s, want scheduler.block", got.Intent)
	}
	if !got.UsedFallback {
		t.Error("UsedFallback = false, want true")
	}
	if got.Confidence != 0.6 {
		t.Errorf("confidence = %v, want the fallback's 0.6", got.Confidence)
	}
	// Rule-side extraction wins over the fallback's entities.
	if title := got.Entities.GetString(models.EntityTitle); title != "budget review" {
		t.Errorf("title = %q, want extraction to beat the fallback", title)
	}
	if len(got.Reasoning) == 0 || !strings.Contains(got.Reasoning[0], "delegated to fallback") {
		t.Errorf("reasoning = %v, want delegation noted first", got.Reasoning)
	}
}

func TestClassifyFallbackUnknownPropagates(t *testing.T) {
	fb := contracts.FallbackFunc(func(ctx context.Context, text string) *models.IntentClassification {
		return &models.IntentClassification{Intent: models.IntentUnknown, Reasoning: []string{"no idea"}}
	})
	c := intent.NewClassifier(fb)

	got := c.Classify(context.Background(), "what's for lunch", nil)
	if got.Intent != models.IntentUnknown {
		t.Errorf("intent = %s, want unknown", got.Intent)
	}
	if !got.UsedFallback {
		t.Error("UsedFallback = false, want true when the fallback was consulted")
	}
}

func TestClassifySummaryDegradesGracefully(t *testing.T) {
	c := intent.NewClassifier(nil)

	got := c.Classify(context.Background(), "block some time please", nil)
	want := "Block some minutes on your calendar at soon for focused work"
	if got.HumanSummary != want {
		t.Errorf("summary = %q, want %q", got.HumanSummary, want)
	}

	got = c.Classify(context.Background(), "block 30 minutes tomorrow at 3 pm for the budget review", nil)
	want = "Block 30 minutes tomorrow at 3 pm for budget review"
	if got.HumanSummary != want {
		t.Errorf("summary = %q, want %q", got.HumanSummary, want)
	}
}

func TestClassifyWithHistoryResolvesReferents(t *testing.T) {
	c := intent.NewClassifier(nil)
	history := []models.SessionTurn{
		{
			Intent: models.IntentSchedulerBlock,
			Entities: models.IntentEntities{
				models.EntityTitle: "design review",
				models.EntityDate:  "tomorrow",
			},
		},
	}

	got := c.ClassifyWithHistory(context.Background(), "move that meeting to 4 pm", history)
	if got.Intent != models.IntentSchedulerReschedule {
		t.Fatalf("intent = %s, want scheduler.reschedule", got.Intent)
	}
	if title := got.Entities.GetString(models.EntityTitle); title != "design review" {
		t.Errorf("title = %q, want referent-resolved %q", title, "design review")
	}
	if clock := got.Entities.GetString(models.EntityTime); clock != "4 pm" {
		t.Errorf("time = %q, want freshly extracted %q", clock, "4 pm")
	}
}
