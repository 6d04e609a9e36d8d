package pipeline

import (
	"errors"
	"fmt"
	"strconv"

	"healthbridge/internal/domain"
)

var ErrUnknownWorkflow = errors.New("unknown workflow")

const (
	CodeMissingField     = "missing_field"
	CodeOutOfRange       = "out_of_range"
	CodeInvalidValue     = "invalid_value"
	CodeEncoding         = "encoding_error"
	CodeUnknownCategory  = "unknown_category"
	CodeModelUnavailable = "model_unavailable"
	CodePredict          = "predict_error"
	CodeUnmappedLabel    = "unmapped_label"
)

// ValidationError reports the first invalid field of a RawInput.
type ValidationError struct {
	Code  string
	Field string
	// Label is the field's display name; Field is used when empty.
	Label   string
	Value   string
	Min     *float64
	Max     *float64
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	name := e.Label
	if name == "" {
		name = e.Field
	}
	switch e.Code {
	case CodeMissingField:
		return fmt.Sprintf("%s cannot be empty.", name)
	case CodeOutOfRange:
		switch {
		case e.Min != nil && e.Max != nil:
			return fmt.Sprintf("%s should be between %s and %s.", name, formatBound(*e.Min), formatBound(*e.Max))
		case e.Min != nil:
			return fmt.Sprintf("%s should be at least %s.", name, formatBound(*e.Min))
		case e.Max != nil:
			return fmt.Sprintf("%s should be at most %s.", name, formatBound(*e.Max))
		}
		return fmt.Sprintf("%s is out of range.", name)
	}
	return fmt.Sprintf("%s has invalid value %q.", name, e.Value)
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodingError means a validated numeric value could not be parsed.
type EncodingError struct {
	Field string
	Value string
	Cause error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: cannot parse %q: %v", e.Field, e.Value, e.Cause)
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// UnknownCategoryError means the encoding table has no code for a schema value.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("no encoding for %s=%q", e.Field, e.Value)
}

// ModelUnavailableError means the model artifact behind a handle is not loaded.
type ModelUnavailableError struct {
	Handle string
	Cause  error
}

func (e *ModelUnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("model %s unavailable", e.Handle)
	}
	return fmt.Sprintf("model %s unavailable: %v", e.Handle, e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// PredictError wraps a failure raised by the model while classifying.
type PredictError struct {
	Cause error
}

func (e *PredictError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Cause)
}

func (e *PredictError) Unwrap() error { return e.Cause }

// UnmappedLabelError means a label has no canonical tag or no outcome entry.
type UnmappedLabelError struct {
	Label string
}

func (e *UnmappedLabelError) Error() string {
	return fmt.Sprintf("label %q has no outcome", e.Label)
}

// IsConfigDrift reports errors caused by build or deployment defects rather
// than user input.
func IsConfigDrift(err error) bool {
	var (
		uc *UnknownCategoryError
		ul *UnmappedLabelError
		mu *ModelUnavailableError
		ee *EncodingError
	)
	return errors.As(err, &uc) || errors.As(err, &ul) || errors.As(err, &mu) || errors.As(err, &ee)
}

// ErrorCode returns the stable code for a pipeline error.
func ErrorCode(err error) string {
	var (
		ve *ValidationError
		ee *EncodingError
		uc *UnknownCategoryError
		mu *ModelUnavailableError
		pe *PredictError
		ul *UnmappedLabelError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Code
	case errors.As(err, &ee):
		return CodeEncoding
	case errors.As(err, &uc):
		return CodeUnknownCategory
	case errors.As(err, &mu):
		return CodeModelUnavailable
	case errors.As(err, &pe):
		return CodePredict
	case errors.As(err, &ul):
		return CodeUnmappedLabel
	}
	return "internal_error"
}

// FailureOf converts a pipeline error into the failure shown to users. Input
// errors are attributed to a field; everything else is "could not predict".
func FailureOf(err error) *domain.Failure {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &domain.Failure{
			Kind:    domain.FailureInvalidInput,
			Code:    ve.Code,
			Field:   ve.Field,
			Message: ve.Error(),
		}
	}
	f := &domain.Failure{
		Kind:    domain.FailureUnavailable,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
	var (
		ee *EncodingError
		uc *UnknownCategoryError
	)
	if errors.As(err, &ee) {
		f.Field = ee.Field
	} else if errors.As(err, &uc) {
		f.Field = uc.Field
	}
	return f
}
