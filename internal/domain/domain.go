package domain

import (
	"fmt"
	"strings"
)

// WorkflowID selects one of the prediction workflows.
type WorkflowID string

const (
	WorkflowObesity      WorkflowID = "obesity"
	WorkflowDepression   WorkflowID = "depression"
	WorkflowStroke       WorkflowID = "stroke"
	WorkflowStrokeLegacy WorkflowID = "stroke-legacy"
	// WorkflowDepressionLegacy serves models trained on Yes/No targets with
	// the Gender-first column order.
	WorkflowDepressionLegacy WorkflowID = "depression-legacy"
)

// WorkflowIDs lists every workflow in menu order.
var WorkflowIDs = []WorkflowID{WorkflowObesity, WorkflowDepression, WorkflowStroke, WorkflowStrokeLegacy, WorkflowDepressionLegacy}

// ParseWorkflowID accepts workflow ids and the menu labels of the questionnaire UI.
func ParseWorkflowID(s string) (WorkflowID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	switch key {
	case "obesity":
		return WorkflowObesity, nil
	case "depression":
		return WorkflowDepression, nil
	case "stroke", "brain stroke", "brain-stroke":
		return WorkflowStroke, nil
	case "stroke-legacy", "stroke legacy":
		return WorkflowStrokeLegacy, nil
	case "depression-legacy", "depression legacy":
		return WorkflowDepressionLegacy, nil
	}
	return "", fmt.Errorf("invalid workflow %q", s)
}

type FieldType string

const (
	FieldInteger FieldType = "integer"
	FieldFloat   FieldType = "float"
	FieldEnum    FieldType = "enum"
	FieldOrdinal FieldType = "ordinal-range"
)

// Numeric reports whether values of the type are parsed as numbers.
func (t FieldType) Numeric() bool {
	return t == FieldInteger || t == FieldFloat || t == FieldOrdinal
}

// FieldSpec describes one questionnaire input.
type FieldSpec struct {
	Name        string    `json:"name"`
	Column      string    `json:"column"`
	Prompt      string    `json:"prompt"`
	Type        FieldType `json:"type" enum:"integer,float,enum,ordinal-range"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Required    bool      `json:"required"`
	ZeroIsUnset bool      `json:"zero_is_unset,omitempty"`
	// MissingMessage replaces the generic "cannot be empty" text under the
	// per-field policy.
	MissingMessage string `json:"-"`
}

// RawInput maps field names to values as typed by the user. A blank or absent
// value is unset.
type RawInput map[string]string

// Value reports the trimmed value of a field and whether it was set.
func (r RawInput) Value(name string) (string, bool) {
	v := strings.TrimSpace(r[name])
	return v, v != ""
}

// Clone returns an independent copy.
func (r RawInput) Clone() RawInput {
	out := make(RawInput, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Label is a canonical classifier output after normalization.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
)

type FailureKind string

const (
	FailureInvalidInput FailureKind = "invalid_input"
	FailureUnavailable  FailureKind = "unavailable"
)

type Failure struct {
	Kind    FailureKind `json:"kind" enum:"invalid_input,unavailable"`
	Code    string      `json:"code"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// PredictionOutcome is what the presentation layer renders.
type PredictionOutcome struct {
	Workflow WorkflowID `json:"workflow"`
	Success  bool       `json:"success"`
	Label    Label      `json:"label,omitempty"`
	Verdict  string     `json:"verdict,omitempty"`
	Advisory string     `json:"advisory,omitempty"`
	Severity *int       `json:"severity,omitempty"`
	Positive *bool      `json:"positive,omitempty"`
	Failure  *Failure   `json:"failure,omitempty"`
}

// Prediction is the audit row stored for each prediction attempt.
type Prediction struct {
	ID          string     `json:"id"`
	Workflow    WorkflowID `json:"workflow"`
	ActorID     string     `json:"actor_id"`
	Status      string     `json:"status" enum:"succeeded,rejected,failed"`
	Label       string     `json:"label,omitempty"`
	Verdict     string     `json:"verdict,omitempty"`
	FailureCode string     `json:"failure_code,omitempty"`
	FailureText string     `json:"failure_text,omitempty"`
	InputJSON   string     `json:"input_json,omitempty"`
	Model       string     `json:"model,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	Workflow   string `json:"workflow,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
