// Package digest turns per-persona evaluation results into the final ranked
// document: exclusive item assignment, executive summary, and markdown
// rendering.
package digest

import (
	"sort"

	"sift/internal/models"
)

// MaxPerPersona caps how many items each persona section carries.
const MaxPerPersona = 5

// Selection pairs an item with the evaluation that won it a digest slot.
type Selection struct {
	Item   models.IngestedItem
	Result models.EvaluationResult
}

// PersonaOutcome is everything one persona produced for one evaluated batch:
// the batch itself plus the results. Results reference items by id, so the
// batch rides along for the join.
type PersonaOutcome struct {
	Persona string
	Items   []models.IngestedItem
	Results []models.EvaluationResult
}

// Assign resolves every accepted item to exactly one persona. An item kept
// by several personas goes to the highest-scoring one; equal scores fall to
// whichever persona comes first in personaOrder. Each persona's selections
// are sorted score-descending and capped at MaxPerPersona.
//
// Results that are not KEEP or score below 5 never reach a digest,
// regardless of what the evaluator's own gate let through.
func Assign(outcomes []PersonaOutcome, personaOrder []string) map[string][]Selection {
	rank := make(map[string]int, len(personaOrder))
	for i, name := range personaOrder {
		rank[name] = i
	}

	best := make(map[string]Selection)
	var order []string // first-seen item ids, keeps output deterministic

	for _, outcome := range outcomes {
		byID := make(map[string]models.IngestedItem, len(outcome.Items))
		for i := range outcome.Items {
			byID[outcome.Items[i].ID] = outcome.Items[i]
		}

		for _, res := range outcome.Results {
			if !res.Accepted() {
				continue
			}
			item, ok := byID[res.ItemID]
			if !ok {
				continue
			}

			current, seen := best[res.ItemID]
			if !seen {
				best[res.ItemID] = Selection{Item: item, Result: res}
				order = append(order, res.ItemID)
				continue
			}
			if res.Score > current.Result.Score ||
				(res.Score == current.Result.Score && rank[res.Persona] < rank[current.Result.Persona]) {
				best[res.ItemID] = Selection{Item: item, Result: res}
			}
		}
	}

	assigned := make(map[string][]Selection)
	for _, id := range order {
		sel := best[id]
		assigned[sel.Result.Persona] = append(assigned[sel.Result.Persona], sel)
	}

	for persona, selections := range assigned {
		sort.SliceStable(selections, func(i, j int) bool {
			return selections[i].Result.Score > selections[j].Result.Score
		})
		if len(selections) > MaxPerPersona {
			selections = selections[:MaxPerPersona]
		}
		assigned[persona] = selections
	}
	return assigned
}
