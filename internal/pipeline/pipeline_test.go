package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

func f64(v float64) *float64 { return &v }

func testSchema(policy pipeline.MissingPolicy) pipeline.Schema {
	return pipeline.Schema{
		MissingPolicy:    policy,
		AggregateMessage: "fill out all fields",
		Fields: []domain.FieldSpec{
			{Name: "age", Column: "Age", Type: domain.FieldInteger, Min: f64(1), Max: f64(100), Required: true},
			{Name: "score", Column: "Score", Type: domain.FieldOrdinal, Min: f64(0), Max: f64(5), Required: true, ZeroIsUnset: true},
			{Name: "bmi", Column: "BMI", Type: domain.FieldFloat, Min: f64(10), Max: f64(60), Required: true},
			{Name: "color", Column: "Color", Type: domain.FieldEnum, Options: []string{"red", "blue"}, Required: true},
			{Name: "note", Column: "Note", Type: domain.FieldInteger, Required: false},
		},
	}
}

func testTable() pipeline.EncodingTable {
	return pipeline.EncodingTable{
		"color": pipeline.Codes(map[string]int64{"red": 0, "blue": 1}),
	}
}

func validInput() domain.RawInput {
	return domain.RawInput{"age": "40", "score": "3", "bmi": "22.5", "color": "blue"}
}

func TestValidateReportsEarliestDeclaredField(t *testing.T) {
	raw := validInput()
	raw["bmi"] = "99"
	raw["age"] = ""
	_, err := pipeline.Validate(raw, testSchema(pipeline.MissingPerField))
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Field != "age" || ve.Code != pipeline.CodeMissingField {
		t.Fatalf("expected missing age first, got %s/%s", ve.Field, ve.Code)
	}
	if ve.Error() != "age cannot be empty." {
		t.Fatalf("unexpected message %q", ve.Error())
	}
}

func TestValidateFieldMissingMessage(t *testing.T) {
	for _, policy := range []pipeline.MissingPolicy{pipeline.MissingPerField, pipeline.MissingAggregate} {
		schema := testSchema(policy)
		schema.Fields[0].MissingMessage = "age must be a positive value."
		raw := validInput()
		raw["age"] = ""
		_, err := pipeline.Validate(raw, schema)
		var ve *pipeline.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", policy, err)
		}
		want := "age must be a positive value."
		if policy == pipeline.MissingAggregate {
			want = "fill out all fields"
		}
		if ve.Error() != want {
			t.Fatalf("%s: got %q, want %q", policy, ve.Error(), want)
		}
	}
}

func TestValidateBoundsAreInclusive(t *testing.T) {
	schema := testSchema(pipeline.MissingPerField)
	cases := []struct {
		field, value string
		ok           bool
	}{
		{"age", "1", true},
		{"age", "100", true},
		{"age", "0", false},
		{"age", "101", false},
		{"bmi", "10", true},
		{"bmi", "60", true},
		{"bmi", "9.99", false},
		{"bmi", "60.01", false},
		{"score", "5", true},
		{"score", "6", false},
	}
	for _, tc := range cases {
		raw := validInput()
		raw[tc.field] = tc.value
		_, err := pipeline.Validate(raw, schema)
		if tc.ok && err != nil {
			t.Fatalf("%s=%s: unexpected error %v", tc.field, tc.value, err)
		}
		if !tc.ok {
			var ve *pipeline.ValidationError
			if !errors.As(err, &ve) || ve.Code != pipeline.CodeOutOfRange || ve.Field != tc.field {
				t.Fatalf("%s=%s: expected out_of_range, got %v", tc.field, tc.value, err)
			}
		}
	}
}

func TestValidateZeroSentinel(t *testing.T) {
	raw := validInput()
	raw["score"] = "0"
	_, err := pipeline.Validate(raw, testSchema(pipeline.MissingPerField))
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Code != pipeline.CodeMissingField || ve.Field != "score" {
		t.Fatalf("expected zero slider treated as unset, got %v", err)
	}
}

func TestValidateAggregateMessage(t *testing.T) {
	raw := validInput()
	raw["color"] = ""
	_, err := pipeline.Validate(raw, testSchema(pipeline.MissingAggregate))
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Error() != "fill out all fields" {
		t.Fatalf("expected aggregate message, got %q", ve.Error())
	}
	if ve.Field != "color" {
		t.Fatalf("expected offending field recorded, got %q", ve.Field)
	}
	// out of range is still reported per field under the aggregate policy
	raw = validInput()
	raw["age"] = "500"
	_, err = pipeline.Validate(raw, testSchema(pipeline.MissingAggregate))
	if !errors.As(err, &ve) || ve.Code != pipeline.CodeOutOfRange {
		t.Fatalf("expected out_of_range, got %v", err)
	}
}

func TestValidateRejectsMalformedAndUnknownOption(t *testing.T) {
	for field, value := range map[string]string{"age": "forty", "bmi": "NaN", "color": "green"} {
		raw := validInput()
		raw[field] = value
		_, err := pipeline.Validate(raw, testSchema(pipeline.MissingPerField))
		var ve *pipeline.ValidationError
		if !errors.As(err, &ve) || ve.Code != pipeline.CodeInvalidValue {
			t.Fatalf("%s=%s: expected invalid_value, got %v", field, value, err)
		}
	}
}

func TestEncodeIsOrderedAndIdempotent(t *testing.T) {
	v, err := pipeline.Validate(validInput(), testSchema(pipeline.MissingPerField))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	first, err := pipeline.Encode(v, testTable())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := pipeline.Encode(v, testTable())
	if err != nil {
		t.Fatalf("encode again: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("encoding not idempotent: %v vs %v", first, second)
	}
	want := []string{"Age", "Score", "BMI", "Color", "Note"}
	got := first.Columns()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column order %v, want %v", got, want)
		}
	}
	if v, _ := first.Get("Age"); v != domain.Int(40) {
		t.Fatalf("age encoded as %v", v)
	}
	if v, _ := first.Get("BMI"); v != domain.Float(22.5) {
		t.Fatalf("bmi encoded as %v", v)
	}
	if v, _ := first.Get("Color"); v != domain.Int(1) {
		t.Fatalf("color encoded as %v", v)
	}
	if v, _ := first.Get("Note"); !v.IsNull() {
		t.Fatalf("optional unset field should be null, got %v", v)
	}
}

func TestEncodeUnknownCategory(t *testing.T) {
	v, err := pipeline.Validate(validInput(), testSchema(pipeline.MissingPerField))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, err = pipeline.Encode(v, pipeline.EncodingTable{"color": pipeline.Codes(map[string]int64{"red": 0})})
	var uc *pipeline.UnknownCategoryError
	if !errors.As(err, &uc) || uc.Field != "color" || uc.Value != "blue" {
		t.Fatalf("expected unknown category, got %v", err)
	}
	if !pipeline.IsConfigDrift(err) {
		t.Fatalf("unknown category should count as config drift")
	}
}

func TestPresentUnmappedLabel(t *testing.T) {
	table := pipeline.OutcomeTable{"a": {Verdict: "A", Advisory: "do a"}}
	out, err := pipeline.Present("a", table)
	if err != nil || out.Verdict != "A" || !out.Success {
		t.Fatalf("present a: %+v %v", out, err)
	}
	_, err = pipeline.Present("b", table)
	var ul *pipeline.UnmappedLabelError
	if !errors.As(err, &ul) || ul.Label != "b" {
		t.Fatalf("expected unmapped label, got %v", err)
	}
}

type stubPredictor struct {
	label domain.Label
	err   error
	calls int
	got   domain.FeatureRecord
}

func (s *stubPredictor) Predict(_ context.Context, r domain.FeatureRecord) (domain.Label, error) {
	s.calls++
	s.got = r
	return s.label, s.err
}

func testWorkflow() pipeline.Workflow {
	return pipeline.Workflow{
		ID:       "test",
		Schema:   testSchema(pipeline.MissingPerField),
		Encoding: testTable(),
		Outcomes: pipeline.OutcomeTable{
			domain.LabelPositive: {Verdict: "yes", Advisory: "act"},
			domain.LabelNegative: {Verdict: "no", Advisory: "relax"},
		},
		Labels: []domain.Label{domain.LabelPositive, domain.LabelNegative},
	}
}

func TestDispatcherRun(t *testing.T) {
	ctx := context.Background()
	p := &stubPredictor{label: domain.LabelPositive}
	d := pipeline.NewDispatcher()
	d.Register(testWorkflow(), p)

	res, err := d.Run(ctx, "test", validInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Err != nil || !res.Outcome.Success || res.Outcome.Verdict != "yes" || res.Outcome.Workflow != "test" {
		t.Fatalf("unexpected result %+v", res)
	}
	if p.calls != 1 || len(p.got) != 5 {
		t.Fatalf("predictor called %d times with %v", p.calls, p.got)
	}

	bad := validInput()
	bad["age"] = ""
	res, _ = d.Run(ctx, "test", bad)
	if res.Outcome.Success || res.Outcome.Failure == nil || res.Outcome.Failure.Kind != domain.FailureInvalidInput {
		t.Fatalf("expected invalid input failure, got %+v", res.Outcome)
	}
	if p.calls != 1 {
		t.Fatalf("predictor must not run on invalid input")
	}

	p.err = &pipeline.PredictError{Cause: errors.New("boom")}
	res, _ = d.Run(ctx, "test", validInput())
	if res.Outcome.Failure == nil || res.Outcome.Failure.Kind != domain.FailureUnavailable || res.Outcome.Failure.Code != pipeline.CodePredict {
		t.Fatalf("expected predict failure, got %+v", res.Outcome)
	}

	p.err = nil
	p.label = "maybe"
	res, _ = d.Run(ctx, "test", validInput())
	if res.Outcome.Failure == nil || res.Outcome.Failure.Code != pipeline.CodeUnmappedLabel {
		t.Fatalf("expected unmapped label failure, got %+v", res.Outcome)
	}

	if _, err := d.Run(ctx, "nope", validInput()); !errors.Is(err, pipeline.ErrUnknownWorkflow) {
		t.Fatalf("expected unknown workflow, got %v", err)
	}
}

func TestWorkflowCheck(t *testing.T) {
	w := testWorkflow()
	if err := w.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	w.Encoding = pipeline.EncodingTable{"color": pipeline.Codes(map[string]int64{"red": 0})}
	if err := w.Check(); err == nil {
		t.Fatalf("expected missing encoding to fail check")
	}
	w = testWorkflow()
	delete(w.Outcomes, domain.LabelNegative)
	if err := w.Check(); err == nil {
		t.Fatalf("expected missing outcome to fail check")
	}
}
