package domain

type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// MatchDecision binds one inventoried file to at most one schema expectation.
// A decision is immutable; re-running validation produces a superseding
// decision rather than mutating the old one.
type MatchDecision struct {
	FileName     string         `json:"file_name"`
	Path         string         `json:"path"`
	TableID      string         `json:"table_id,omitempty"`
	ProposedName string         `json:"proposed_name,omitempty"`
	Score        float64        `json:"score"`
	Tier         ConfidenceTier `json:"tier"`
	Ambiguous    bool           `json:"ambiguous"`
	Rationale    []string       `json:"rationale,omitempty"`
	BestSheet    string         `json:"best_sheet,omitempty"`
}

// Approvable reports whether the decision may be applied without further
// human review.
func (d MatchDecision) Approvable() bool {
	return d.Tier == TierHigh && !d.Ambiguous
}

// Matched reports whether the decision carries a candidate expectation at
// medium confidence or better.
func (d MatchDecision) Matched() bool {
	return d.TableID != "" && d.Tier != TierLow
}
