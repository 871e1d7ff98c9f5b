// Package intent classifies utterances against an ordered rule table with
// a pluggable fallback classifier. Classification always returns a result,
// never an error: ambiguity is expressed as intent=unknown.
package intent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/entities"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/contracts"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// RuleConfidence is the fixed confidence assigned to every rule match.
// Rules are deterministic, so confidence carries no gradation.
const RuleConfidence = 0.9

// Classifier matches utterances against the rule table, merging extracted
// entities over caller-provided base entities.
type Classifier struct {
	fallback contracts.FallbackClassifier
}

// NewClassifier creates a classifier. fallback may be nil, in which case
// unmatched utterances classify as unknown.
func NewClassifier(fallback contracts.FallbackClassifier) *Classifier {
	return &Classifier{fallback: fallback}
}

// Classify classifies one utterance. base entities (typically referent
// resolution output) sit beneath freshly extracted entities: extraction
// wins on conflict.
func (c *Classifier) Classify(ctx context.Context, text string, base models.IntentEntities) *models.IntentClassification {
	if strings.TrimSpace(text) == "" {
		// The fallback is never consulted for empty input.
		return &models.IntentClassification{
			Intent:       models.IntentUnknown,
			Confidence:   0,
			Entities:     models.IntentEntities{},
			Reasoning:    []string{"Empty utterance"},
			HumanSummary: "I did not catch that",
		}
	}

	merged := models.MergeEntities(entities.Extract(text), base)

	if r, ok := matchRule(text); ok {
		return &models.IntentClassification{
			Intent:       r.intent,
			Confidence:   RuleConfidence,
			Entities:     merged,
			Reasoning:    []string{"Matched rule for " + string(r.intent)},
			HumanSummary: r.summary(merged),
		}
	}

	if c.fallback == nil {
		return &models.IntentClassification{
			Intent:       models.IntentUnknown,
			Confidence:   0,
			Entities:     merged,
			Reasoning:    []string{"No rule matched"},
			HumanSummary: "I could not tell what you want to do",
		}
	}

	fb := c.fallback.Classify(ctx, text)
	if fb == nil || fb.Intent == "" || fb.Intent == models.IntentUnknown {
		reasoning := []string{"No rule matched"}
		if fb != nil {
			reasoning = append(reasoning, fb.Reasoning...)
		}
		return &models.IntentClassification{
			Intent:       models.IntentUnknown,
			Confidence:   0,
			Entities:     merged,
			Reasoning:    reasoning,
			UsedFallback: true,
			HumanSummary: "I could not tell what you want to do",
		}
	}

	log.Debug().
		Str("intent", string(fb.Intent)).
		Float64("confidence", fb.Confidence).
		Msg("Fallback classifier resolved intent")

	// Rule-derived entities win over what the fallback extracted.
	combined := models.MergeEntities(merged, fb.Entities)
	reasoning := append([]string{"No rule matched, delegated to fallback"}, fb.Reasoning...)
	return &models.IntentClassification{
		Intent:       fb.Intent,
		Confidence:   fb.Confidence,
		Entities:     combined,
		Reasoning:    reasoning,
		UsedFallback: true,
		HumanSummary: summaryFor(fb.Intent, combined),
	}
}

// ClassifyWithHistory resolves referents against the session history, then
// classifies with the resolved slots as the entity base.
func (c *Classifier) ClassifyWithHistory(ctx context.Context, text string, history []models.SessionTurn) *models.IntentClassification {
	return c.Classify(ctx, text, entities.Resolve(text, history))
}
