package models

// Evaluation decisions. Anything a model emits is normalized to one of these.
const (
	DecisionKeep    = "KEEP"
	DecisionDiscard = "DISCARD"
)

// EvaluationResult is one persona's verdict on one item. Results are created
// once during evaluation and never mutated afterwards.
type EvaluationResult struct {
	ItemID    string         `json:"item_id"`
	Persona   string         `json:"persona"`
	Score     float64        `json:"score"`
	Decision  string         `json:"decision"`
	Reasoning string         `json:"reasoning"`
	Details   map[string]any `json:"details,omitempty"`
}

// Accepted reports whether the result clears the terminal relevance gate
// applied before digest assignment: an explicit KEEP with a score of at
// least 5.
func (r *EvaluationResult) Accepted() bool {
	return r.Decision == DecisionKeep && r.Score >= 5
}
