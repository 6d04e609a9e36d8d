// Package catalog holds the static questionnaire definitions: field schemas,
// encoding tables, outcome tables and the raw-label normalization of each
// workflow's classifier.
package catalog

import (
	"fmt"

	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

// Entry is one workflow definition plus the classifier-side details that
// belong to it.
type Entry struct {
	Workflow pipeline.Workflow
	// Normalize maps raw classifier output to canonical labels.
	Normalize map[string]domain.Label
	// DefaultModel is the artifact handle used when config names none.
	DefaultModel string
}

// All returns every workflow definition in menu order.
func All() []Entry {
	return []Entry{Obesity(), Depression(), Stroke(), StrokeLegacy(), DepressionLegacy()}
}

// Get returns the definition for id.
func Get(id domain.WorkflowID) (Entry, error) {
	for _, e := range All() {
		if e.Workflow.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownWorkflow, id)
}

func ptr[T any](v T) *T { return &v }

func enum(name, column, prompt string, options ...string) domain.FieldSpec {
	return domain.FieldSpec{
		Name:     name,
		Column:   column,
		Prompt:   prompt,
		Type:     domain.FieldEnum,
		Options:  options,
		Required: true,
	}
}

func number(t domain.FieldType, name, column, prompt string, min, max float64) domain.FieldSpec {
	return domain.FieldSpec{
		Name:     name,
		Column:   column,
		Prompt:   prompt,
		Type:     t,
		Min:      ptr(min),
		Max:      ptr(max),
		Required: true,
	}
}

func zeroUnset(f domain.FieldSpec) domain.FieldSpec {
	f.ZeroIsUnset = true
	return f
}

func optional(f domain.FieldSpec) domain.FieldSpec {
	f.Required = false
	return f
}

func binaryOutcomes(positiveVerdict, positiveAdvisory, negativeVerdict, negativeAdvisory string) pipeline.OutcomeTable {
	return pipeline.OutcomeTable{
		domain.LabelPositive: {Verdict: positiveVerdict, Advisory: positiveAdvisory, Positive: ptr(true)},
		domain.LabelNegative: {Verdict: negativeVerdict, Advisory: negativeAdvisory, Positive: ptr(false)},
	}
}
