// Package planner splits multi-clause utterances on temporal connectives and
// classifies each segment into an ordered plan-step list.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/entities"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/intent"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// connectiveRe matches the fixed temporal connective set. Bare "next" is
// only a connective after a clause boundary (comma or semicolon) so that
// date phrases like "next friday" survive splitting.
var connectiveRe = regexp.MustCompile(
	`(?i)(?:\band then\b|\band afterwards\b|\bafter that\b|\s+then\s+|[,;]\s*next\b)`)

// Planner turns one utterance into an ordered plan.
type Planner struct {
	classifier *intent.Classifier
}

// New creates a planner on top of the given classifier.
func New(classifier *intent.Classifier) *Planner {
	return &Planner{classifier: classifier}
}

// Plan splits the utterance, classifies every segment, and returns the
// ordered steps. seed, when non-nil, short-circuits reclassification of the
// first segment if that segment is the identical full text an upstream
// caller already classified.
func (p *Planner) Plan(ctx context.Context, text string, history []models.SessionTurn, seed *models.IntentClassification) *models.PlanningResult {
	segments := Split(text)
	if len(segments) == 0 {
		// Punctuation-only input still plans one step; the empty segment
		// classifies as unknown.
		segments = []string{""}
	}
	result := &models.PlanningResult{
		IsMultiStep: len(segments) > 1,
		Reasoning:   []string{fmt.Sprintf("Detected %d segment(s)", len(segments))},
	}

	for i, segment := range segments {
		var cls *models.IntentClassification
		if i == 0 && seed != nil && segment == strings.TrimSpace(text) {
			cls = seed
			result.Reasoning = append(result.Reasoning, "Reused upstream classification for first segment")
		} else {
			cls = p.classifier.Classify(ctx, segment, entities.Resolve(segment, history))
		}

		result.Steps = append(result.Steps, models.PlanStep{
			Intent:  cls.Intent,
			Params:  cls.Entities,
			Summary: cls.HumanSummary,
		})
		result.Reasoning = append(result.Reasoning, cls.Reasoning...)
	}

	return result
}

// Split divides an utterance on the connective set, trimming boundary
// punctuation and whitespace and dropping empty segments. Text with no
// connective yields a single segment.
func Split(text string) []string {
	var segments []string
	for _, raw := range connectiveRe.Split(text, -1) {
		segment := strings.Trim(raw, " \t\n,.;:!?")
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
