package domain

type DecisionClass string

const (
	DecisionValid   DecisionClass = "valid"
	DecisionPending DecisionClass = "pending"
	DecisionInvalid DecisionClass = "invalid"
)

// Classify buckets a decision for reporting: valid (high, unambiguous),
// pending (medium, unambiguous, needs human approval), invalid otherwise.
func Classify(d MatchDecision) DecisionClass {
	switch {
	case d.Ambiguous:
		return DecisionInvalid
	case d.Tier == TierHigh:
		return DecisionValid
	case d.Tier == TierMedium:
		return DecisionPending
	default:
		return DecisionInvalid
	}
}

// ValidationReport is the complete outcome of one validation run. Content
// problems (low confidence, ambiguity, missing tables) live inside the
// report; they are never surfaced as errors.
type ValidationReport struct {
	Batch     UploadBatch     `json:"batch"`
	Decisions []MatchDecision `json:"decisions"`
	Missing   []string        `json:"missing"`
	IsValid   bool            `json:"is_valid"`
}

// DecisionForFile returns the active decision for a file name, if any.
func (r ValidationReport) DecisionForFile(fileName string) (MatchDecision, bool) {
	for _, d := range r.Decisions {
		if d.FileName == fileName {
			return d, true
		}
	}
	return MatchDecision{}, false
}
