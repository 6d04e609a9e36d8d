package pipeline

import "healthbridge/internal/domain"

// Outcome is the static verdict and advisory for one label.
type Outcome struct {
	Verdict  string
	Advisory string
	// Severity orders multi-class outcomes; nil for binary workflows.
	Severity *int
	// Positive is set for binary workflows.
	Positive *bool
}

type OutcomeTable map[domain.Label]Outcome

// Present looks label up in table. It never guesses a message.
func Present(label domain.Label, table OutcomeTable) (domain.PredictionOutcome, error) {
	o, ok := table[label]
	if !ok || o.Verdict == "" || o.Advisory == "" {
		return domain.PredictionOutcome{}, &UnmappedLabelError{Label: string(label)}
	}
	return domain.PredictionOutcome{
		Success:  true,
		Label:    label,
		Verdict:  o.Verdict,
		Advisory: o.Advisory,
		Severity: o.Severity,
		Positive: o.Positive,
	}, nil
}
