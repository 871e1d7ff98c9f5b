package agents

import (
	"context"
	"fmt"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Agent keys used by the aggregation flow. The four primary agents run in
// one parallel batch; the action-pack and QA agents follow sequentially.
const (
	KeyBrief      = "brief.generate"
	KeyContent    = "content.suggest"
	KeyInsights   = "insights.summarize"
	KeyJournal    = "journal.reflect"
	KeyActionPack = "actions.pack"
	KeyQA         = "qa.verify"
)

// PrimaryKeys returns the fixed primary agent set in dispatch order.
func PrimaryKeys() []string {
	return []string{KeyBrief, KeyContent, KeyInsights, KeyJournal}
}

// Builtin returns deterministic reference agents so the demo host and the
// aggregation flow run end to end without external services. Real
// deployments replace these with registrations of their own; text quality
// is explicitly out of scope here.
func Builtin() []Definition {
	return []Definition{
		demoAgent(KeyBrief, func(payload map[string]any) map[string]any {
			return map[string]any{
				"headline": fmt.Sprintf("Daily brief for %v", payload["userId"]),
				"items": []any{
					"2 meetings on the calendar",
					"1 task due today",
				},
			}
		}),
		demoAgent(KeyContent, func(payload map[string]any) map[string]any {
			return map[string]any{
				"drafts": []any{
					map[string]any{"kind": "status-update", "body": "Weekly status draft"},
				},
			}
		}),
		demoAgent(KeyInsights, func(payload map[string]any) map[string]any {
			return map[string]any{
				"insights": []any{
					map[string]any{"title": "Meeting load trending up", "body": "30% more meetings than last week"},
					map[string]any{"title": "Deep work slipping", "body": "No focus block longer than 25 minutes"},
				},
			}
		}),
		demoAgent(KeyJournal, func(payload map[string]any) map[string]any {
			return map[string]any{
				"insights": []any{
					map[string]any{"title": "Deep work slipping", "body": "Journal entries mention constant interruptions"},
					map[string]any{"title": "Energy peaks before noon", "body": "Best entries are written in the morning"},
				},
				"prompts": []any{"What blocked you today?"},
			}
		}),
		demoAgent(KeyActionPack, func(payload map[string]any) map[string]any {
			return map[string]any{
				"summary": "Suggested actions from today's brief",
				"proposals": []any{
					map[string]any{
						"type":             "calendar.block",
						"requiresApproval": false,
						"payload":          map[string]any{"minutes": 90, "title": "focus block"},
					},
					map[string]any{
						"type":             "email.send",
						"requiresApproval": true,
						"payload":          map[string]any{"subject": "Weekly status"},
					},
				},
			}
		}),
		{Key: KeyQA, Run: runQA, Status: "builtin"},
	}
}

// demoAgent wraps a payload→output func with the shared debug handling:
// payload["skip"] yields SKIPPED, payload["forceFail"] yields FAILED.
func demoAgent(key string, build func(payload map[string]any) map[string]any) Definition {
	return Definition{
		Key:    key,
		Status: "builtin",
		Run: func(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
			if skip, _ := payload["skip"].(bool); skip {
				return &models.AgentOutput{
					Status:   models.AgentSkipped,
					Warnings: []string{"skipped via debug flag"},
				}, nil
			}
			if fail, _ := payload["forceFail"].(bool); fail {
				return &models.AgentOutput{
					Status: models.AgentFailed,
					Error:  "forced failure via debug flag",
				}, nil
			}
			return &models.AgentOutput{Status: models.AgentOK, Output: build(payload)}, nil
		},
		Health: func(ctx context.Context) models.AgentHealth {
			return models.AgentHealth{Status: "ok"}
		},
	}
}

// runQA is the built-in QA verification agent. It reports which agent keys
// ran, whether registry dispatch was used, and honors the debug-forced
// failure. The aggregation flow layers its own contract validation on top;
// this verdict alone is never trusted blindly.
func runQA(ctx context.Context, payload map[string]any) (*models.AgentOutput, error) {
	if fail, _ := payload["forceFail"].(bool); fail {
		return &models.AgentOutput{
			Status: models.AgentOK,
			Output: map[string]any{
				"status":  string(models.QAFail),
				"reasons": []any{"QA failure forced via debug flag"},
			},
		}, nil
	}

	agentsRun, _ := payload["agentsRun"].([]any)
	usedRegistry, _ := payload["usedRegistry"].(bool)
	failedKeys, _ := payload["failedKeys"].([]any)

	status := models.QAPass
	var reasons []any
	if !usedRegistry {
		status = models.QADegraded
		reasons = append(reasons, "stub runtime was used for at least one agent")
	}
	if len(failedKeys) > 0 {
		status = models.QADegraded
		reasons = append(reasons, fmt.Sprintf("%d agent(s) did not succeed", len(failedKeys)))
	}
	if len(agentsRun) == 0 {
		status = models.QAFail
		reasons = append(reasons, "no agents ran")
	}

	return &models.AgentOutput{
		Status: models.AgentOK,
		Output: map[string]any{
			"status":  string(status),
			"reasons": reasons,
		},
	}, nil
}
