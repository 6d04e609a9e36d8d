package pipeline

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"healthbridge/internal/domain"
)

type MissingPolicy string

const (
	// MissingPerField reports each unset field by name.
	MissingPerField MissingPolicy = "per-field"
	// MissingAggregate reports any unset field with one form-level message.
	MissingAggregate MissingPolicy = "aggregate"
)

// Schema is the ordered field list of one workflow.
type Schema struct {
	Fields           []domain.FieldSpec
	MissingPolicy    MissingPolicy
	AggregateMessage string
}

func (s Schema) Field(name string) (domain.FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldSpec{}, false
}

// Validated is a RawInput that passed Validate against a schema. Only a
// Validated input can be encoded.
type Validated struct {
	input  domain.RawInput
	schema Schema
}

func (v Validated) Input() domain.RawInput { return v.input.Clone() }

// Validate checks raw against schema in declared field order and stops at
// the first failure.
func Validate(raw domain.RawInput, schema Schema) (Validated, error) {
	for _, f := range schema.Fields {
		if err := validateField(raw, f); err != nil {
			if err.Code == CodeMissingField {
				switch {
				case schema.MissingPolicy == MissingAggregate:
					err.Message = schema.AggregateMessage
				case f.MissingMessage != "":
					err.Message = f.MissingMessage
				}
			}
			return Validated{}, err
		}
	}
	return Validated{input: raw.Clone(), schema: schema}, nil
}

func validateField(raw domain.RawInput, f domain.FieldSpec) *ValidationError {
	value, ok := raw.Value(f.Name)
	if !ok {
		if f.Required {
			return &ValidationError{Code: CodeMissingField, Field: f.Name, Label: f.Prompt}
		}
		return nil
	}
	if f.Type == domain.FieldEnum {
		if !slices.Contains(f.Options, value) {
			return &ValidationError{Code: CodeInvalidValue, Field: f.Name, Label: f.Prompt, Value: value}
		}
		return nil
	}
	n, err := parseNumber(f.Type, value)
	if err != nil {
		return &ValidationError{Code: CodeInvalidValue, Field: f.Name, Label: f.Prompt, Value: value}
	}
	if f.ZeroIsUnset && n == 0 {
		if f.Required {
			return &ValidationError{Code: CodeMissingField, Field: f.Name, Label: f.Prompt, Value: value}
		}
		return nil
	}
	if (f.Min != nil && n < *f.Min) || (f.Max != nil && n > *f.Max) {
		return &ValidationError{Code: CodeOutOfRange, Field: f.Name, Label: f.Prompt, Value: value, Min: f.Min, Max: f.Max}
	}
	return nil
}

func parseNumber(t domain.FieldType, value string) (float64, error) {
	if t == domain.FieldFloat {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%q is not a finite number", value)
		}
		return f, nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	return float64(i), err
}
