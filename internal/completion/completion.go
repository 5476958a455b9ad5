// Package completion computes how much of the audit checklist a set of
// answers covers. The percentage gates three things: the client's submit
// button, the server's acceptance of a "completed" visit, and PDF export.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — why two predicates?
// ────────────────────────────────────────────────────────────────────
// The client and the server must agree on what "answered" means, with one
// deliberate exception: a photo that was chosen on the device but not yet
// uploaded. While authoring, that photo represents real user intent, so the
// client counts it. The server only ever sees a stored path (or nothing), so
// from its point of view a pending upload is unanswered. Keeping the two
// predicates in the same file, side by side, is what keeps them compatible —
// do not move one without the other.
package completion

import (
	"math"
	"strings"

	"storecheck/internal/models"
)

// DefaultThreshold is the minimum completion percentage (inclusive) required
// to submit a visit or export its PDF. Overridable via configuration.
const DefaultThreshold = 80

// Percent returns the integer completion percentage in [0,100] for the given
// template, counting items with the supplied predicate. An empty template is
// vacuously 100% complete — that is documented behavior, not a bug.
// Rounding is half away from zero (math.Round), so 4/5 answered is exactly 80.
func Percent(items []models.ChecklistItem, answered func(models.ChecklistItem) bool) int {
	if len(items) == 0 {
		return 100
	}
	n := 0
	for _, it := range items {
		if answered(it) {
			n++
		}
	}
	return int(math.Round(100 * float64(n) / float64(len(items))))
}

// PayloadAnswered reports whether a wire answer counts as answered for an
// item of the given type. This is the server-side predicate: photo items
// count only when a non-empty stored path is present.
func PayloadAnswered(typ models.ItemType, a models.AnswerPayload) bool {
	switch typ {
	case models.ItemBoolean:
		return a.BooleanValue != nil
	case models.ItemText:
		return a.TextValue != nil && strings.TrimSpace(*a.TextValue) != ""
	case models.ItemNumber, models.ItemStatus:
		return a.NumberValue != nil
	case models.ItemPercentage:
		return a.PercentageValue != nil || a.NumberValue != nil
	case models.ItemPhoto:
		return a.PhotoPath != nil && strings.TrimSpace(*a.PhotoPath) != ""
	}
	return false
}

// Server computes the percentage the way the API does when gating a
// "completed" create/update or a PDF download: wire answers only, pending
// uploads invisible.
func Server(items []models.ChecklistItem, answers []models.AnswerPayload) int {
	byItem := make(map[string]models.AnswerPayload, len(answers))
	for _, a := range answers {
		byItem[a.ItemID] = a
	}
	return Percent(items, func(it models.ChecklistItem) bool {
		a, ok := byItem[it.ID]
		return ok && PayloadAnswered(it.Type, a)
	})
}

// Client computes the percentage the authoring screen shows. It matches
// Server except for the photo asymmetry: an item with a pending local
// preview (chosen but not yet uploaded) counts as answered, because the
// evaluator has done their part even without connectivity.
func Client(items []models.ChecklistItem, answers map[string]models.AnswerPayload, previews map[string]string) int {
	return Percent(items, func(it models.ChecklistItem) bool {
		if it.Type == models.ItemPhoto && strings.TrimSpace(previews[it.ID]) != "" {
			return true
		}
		a, ok := answers[it.ID]
		return ok && PayloadAnswered(it.Type, a)
	})
}
