package intent

import (
	"fmt"
	"regexp"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/entities"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// rule pairs an intent with its trigger patterns and a human summary
// template. Rules are evaluated in table order with explicit
// first-match-wins semantics; order is the tie-break for overlapping
// patterns, so reordering this table is a behavior change.
type rule struct {
	intent   models.Intent
	patterns []*regexp.Regexp
	summary  func(e models.IntentEntities) string
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

// ruleTable is the ordered decision list. Reschedule outranks confirm and
// block so "move the meeting" never reads as a new block; the support rules
// outrank coach.pause so "pause the follow up task" stays a support intent.
var ruleTable = []rule{
	{
		intent: models.IntentSchedulerReschedule,
		patterns: compile(
			`(?i)\breschedul`,
			`(?i)\bmove\b.*\b(meeting|call|event|it)\b`,
			`(?i)\bpush\b.*\b(back|later|to)\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Reschedule %s to %s",
				entities.SlotOr(e, models.EntityTitle, "the event"),
				entities.SlotOr(e, models.EntityTime, "a new time"))
		},
	},
	{
		intent: models.IntentSchedulerConfirm,
		patterns: compile(
			`(?i)\bconfirm\b`,
			`(?i)\bstill (on|happening)\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Confirm %s for %s",
				entities.SlotOr(e, models.EntityTitle, "the event"),
				entities.SlotOr(e, models.EntityTime, "soon"))
		},
	},
	{
		intent: models.IntentSchedulerBlock,
		patterns: compile(
			`(?i)\bblock\b`,
			`(?i)\bhold\b.*\btime\b`,
			`(?i)\bset aside\b`,
			`(?i)\bfocus time\b`,
			`(?i)\breserve\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Block %s minutes %s at %s for %s",
				entities.SlotOr(e, models.EntityMinutes, "some"),
				entities.SlotOr(e, models.EntityDate, "on your calendar"),
				entities.SlotOr(e, models.EntityTime, "soon"),
				entities.SlotOr(e, models.EntityTitle, "focused work"))
		},
	},
	{
		intent: models.IntentSupportFollowUp,
		patterns: compile(
			`(?i)\bfollow[- ]?up\b`,
			`(?i)\bremind me\b`,
			`(?i)\bcheck back\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Follow up about %s %s",
				entities.SlotOr(e, models.EntityTitle, "it"),
				entities.SlotOr(e, models.EntityFollowUpDate, "soon"))
		},
	},
	{
		intent: models.IntentSupportLogComplete,
		patterns: compile(
			`(?i)\bmark\b.*\b(done|complete|completed)\b`,
			`(?i)\bfinished\b`,
			`(?i)\bcompleted\b`,
			`(?i)\b(it'?s|that'?s) done\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Mark %s as complete",
				entities.SlotOr(e, models.EntityTitle, "the task"))
		},
	},
	{
		intent: models.IntentCoachPause,
		patterns: compile(
			`(?i)\bpause\b`,
			`(?i)\btake a (break|breather)\b`,
			`(?i)\bstep away\b`,
		),
		summary: func(e models.IntentEntities) string {
			return fmt.Sprintf("Pause for %s minutes",
				entities.SlotOr(e, models.EntityMinutes, "a few"))
		},
	},
}

// matchRule returns the first rule whose any pattern matches.
func matchRule(text string) (*rule, bool) {
	for i := range ruleTable {
		for _, re := range ruleTable[i].patterns {
			if re.MatchString(text) {
				return &ruleTable[i], true
			}
		}
	}
	return nil, false
}

// summaryFor renders the human summary template for a known intent.
// Unknown intents get a generic line.
func summaryFor(in models.Intent, e models.IntentEntities) string {
	for i := range ruleTable {
		if ruleTable[i].intent == in {
			return ruleTable[i].summary(e)
		}
	}
	return "I could not tell what you want to do"
}
