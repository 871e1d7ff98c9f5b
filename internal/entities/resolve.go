package entities

import (
	"regexp"
	"strings"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

var (
	eventReferentRe = regexp.MustCompile(`(?i)\bthat (meeting|call|event)\b`)
	taskReferentRe  = regexp.MustCompile(`(?i)\bthat (task|ticket|item)\b|\bmark it done\b|\bfinished it\b`)
	followUpRe      = regexp.MustCompile(`(?i)\bfollow up on that\b|\bremind me about it\b`)
	withThemRe      = regexp.MustCompile(`(?i)\bwith them\b`)
)

// Resolve fills entity slots on a new utterance from the most relevant prior
// turn. History is most-recent-last; the scan runs newest to oldest. Only
// fields actually present on the prior turn are copied, never fabricated.
//
// The caller merges the result beneath freshly extracted entities, so a
// fresh extraction always wins on conflict.
func Resolve(text string, history []models.SessionTurn) models.IntentEntities {
	out := models.IntentEntities{}
	if strings.TrimSpace(text) == "" || len(history) == 0 {
		return out
	}

	if eventReferentRe.MatchString(text) {
		if turn := latestEventTurn(history); turn != nil {
			copySlots(out, turn.Entities,
				models.EntityEventID, models.EntityTitle, models.EntityDate, models.EntityTime)
		}
	}

	if taskReferentRe.MatchString(text) {
		if turn := latestTaskTurn(history); turn != nil {
			copySlots(out, turn.Entities, models.EntityTaskID, models.EntityTitle)
		}
	}

	if followUpRe.MatchString(text) {
		if turn := latestTaskTurn(history); turn != nil {
			copySlots(out, turn.Entities, models.EntityFollowUpDate, models.EntityTitle)
		}
	}

	// "with them" only recovers a title: the event match is consulted first,
	// then the task match.
	if withThemRe.MatchString(text) && !out.Has(models.EntityTitle) {
		if turn := latestEventTurn(history); turn != nil && turn.Entities.Has(models.EntityTitle) {
			out[models.EntityTitle] = turn.Entities[models.EntityTitle]
		} else if turn := latestTaskTurn(history); turn != nil && turn.Entities.Has(models.EntityTitle) {
			out[models.EntityTitle] = turn.Entities[models.EntityTitle]
		}
	}

	return out
}

// latestEventTurn finds the most recent turn carrying an eventId or a
// scheduler.* intent.
func latestEventTurn(history []models.SessionTurn) *models.SessionTurn {
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		if turn.Entities.Has(models.EntityEventID) ||
			strings.HasPrefix(string(turn.Intent), "scheduler.") {
			return &history[i]
		}
	}
	return nil
}

// latestTaskTurn finds the most recent turn carrying a taskId or a
// support.logComplete / support.followUp intent.
func latestTaskTurn(history []models.SessionTurn) *models.SessionTurn {
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		if turn.Entities.Has(models.EntityTaskID) ||
			turn.Intent == models.IntentSupportLogComplete ||
			turn.Intent == models.IntentSupportFollowUp {
			return &history[i]
		}
	}
	return nil
}

func copySlots(dst, src models.IntentEntities, keys ...string) {
	for _, key := range keys {
		if src.Has(key) && !dst.Has(key) {
			dst[key] = src[key]
		}
	}
}
