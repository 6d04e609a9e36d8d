package catalog_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"healthbridge/internal/catalog"
	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

func TestEntriesAreConsistent(t *testing.T) {
	for _, e := range catalog.All() {
		if err := e.Workflow.Check(); err != nil {
			t.Fatalf("%s: %v", e.Workflow.ID, err)
		}
		for raw, label := range e.Normalize {
			if _, err := pipeline.Present(label, e.Workflow.Outcomes); err != nil {
				t.Fatalf("%s: raw label %q normalizes to %q without outcome", e.Workflow.ID, raw, label)
			}
		}
		if e.DefaultModel == "" {
			t.Fatalf("%s: no default model", e.Workflow.ID)
		}
	}
}

// validFor fills every field with a legal value: the first option or the
// midpoint of the numeric range.
func validFor(w pipeline.Workflow) domain.RawInput {
	raw := domain.RawInput{}
	for _, f := range w.Schema.Fields {
		switch f.Type {
		case domain.FieldEnum:
			raw[f.Name] = f.Options[0]
		case domain.FieldFloat:
			raw[f.Name] = strconv.FormatFloat((*f.Min+*f.Max)/2, 'f', -1, 64)
		default:
			raw[f.Name] = strconv.Itoa(int((*f.Min + *f.Max) / 2))
		}
	}
	return raw
}

func TestEveryEnumValueEncodes(t *testing.T) {
	for _, e := range catalog.All() {
		w := e.Workflow
		for _, f := range w.Schema.Fields {
			if f.Type != domain.FieldEnum {
				continue
			}
			for _, opt := range f.Options {
				raw := validFor(w)
				raw[f.Name] = opt
				v, err := pipeline.Validate(raw, w.Schema)
				if err != nil {
					t.Fatalf("%s %s=%s: validate: %v", w.ID, f.Name, opt, err)
				}
				rec, err := pipeline.Encode(v, w.Encoding)
				if err != nil {
					t.Fatalf("%s %s=%s: encode: %v", w.ID, f.Name, opt, err)
				}
				if val, ok := rec.Get(f.Column); !ok || val.IsNull() {
					t.Fatalf("%s %s=%s: no encoded value", w.ID, f.Name, opt)
				}
			}
		}
	}
}

func TestEveryLabelResolves(t *testing.T) {
	for _, e := range catalog.All() {
		for _, l := range e.Workflow.Labels {
			out, err := pipeline.Present(l, e.Workflow.Outcomes)
			if err != nil {
				t.Fatalf("%s: %v", e.Workflow.ID, err)
			}
			if out.Verdict == "" || out.Advisory == "" {
				t.Fatalf("%s: empty outcome for %s", e.Workflow.ID, l)
			}
		}
	}
}

func strokeInput() domain.RawInput {
	return domain.RawInput{
		"age":               "45",
		"gender":            "Male",
		"hypertension":      "Yes",
		"heart_disease":     "No",
		"ever_married":      "Yes",
		"work_type":         "Private",
		"residence_type":    "Urban",
		"avg_glucose_level": "105.5",
		"bmi":               "27.3",
		"smoking_status":    "never smoked",
	}
}

func encode(t *testing.T, w pipeline.Workflow, raw domain.RawInput) domain.FeatureRecord {
	t.Helper()
	v, err := pipeline.Validate(raw, w.Schema)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	rec, err := pipeline.Encode(v, w.Encoding)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return rec
}

func TestStrokeScenario(t *testing.T) {
	cases := []struct {
		entry            catalog.Entry
		workType, smokes int64
	}{
		{catalog.Stroke(), 2, 2},
		{catalog.StrokeLegacy(), 0, 1},
	}
	for _, tc := range cases {
		rec := encode(t, tc.entry.Workflow, strokeInput())
		want := domain.FeatureRecord{
			{Column: "gender", Value: domain.Int(1)},
			{Column: "age", Value: domain.Int(45)},
			{Column: "hypertension", Value: domain.Int(1)},
			{Column: "heart_disease", Value: domain.Int(0)},
			{Column: "ever_married", Value: domain.Int(1)},
			{Column: "work_type", Value: domain.Int(tc.workType)},
			{Column: "Residence_type", Value: domain.Int(1)},
			{Column: "avg_glucose_level", Value: domain.Float(105.5)},
			{Column: "bmi", Value: domain.Float(27.3)},
			{Column: "smoking_status", Value: domain.Int(tc.smokes)},
		}
		if !rec.Equal(want) {
			t.Fatalf("%s: got %v, want %v", tc.entry.Workflow.ID, rec, want)
		}
	}
}

func TestStrokeUnknownSmokingOnlyInCanonical(t *testing.T) {
	raw := strokeInput()
	raw["smoking_status"] = "Unknown"
	encode(t, catalog.Stroke().Workflow, raw)
	_, err := pipeline.Validate(raw, catalog.StrokeLegacy().Workflow.Schema)
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Code != pipeline.CodeInvalidValue {
		t.Fatalf("legacy stroke should reject Unknown smoking status, got %v", err)
	}
}

func TestObesityAggregateMissing(t *testing.T) {
	w := catalog.Obesity().Workflow
	raw := domain.RawInput{
		"gender": "Female", "age": "23", "height": "1.62", "weight": "64",
		"family_history": "yes", "favc": "no", "fcvc": "2", "ncp": "3",
		"caec": "Sometimes", "smoke": "no", "scc": "no", "calc": "no",
		"mtrans": "Public Transportation", "ch2o": "2", "faf": "1", "tue": "1",
	}
	rec := encode(t, w, raw)
	if v, _ := rec.Get("MTRANS"); v != domain.Category("Public Transportation") {
		t.Fatalf("categorical obesity fields pass through, got %v", v)
	}
	for _, field := range []string{"gender", "weight", "tue", "ch2o"} {
		missing := raw.Clone()
		if field == "tue" || field == "ch2o" {
			missing[field] = "0"
		} else {
			missing[field] = ""
		}
		_, err := pipeline.Validate(missing, w.Schema)
		var ve *pipeline.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", field, err)
		}
		if ve.Error() != "Please fill out all fields before predicting." {
			t.Fatalf("%s: expected aggregate message, got %q", field, ve.Error())
		}
	}
}

func TestDepressionOutcomes(t *testing.T) {
	e := catalog.Depression()
	pos, err := pipeline.Present(e.Normalize["1"], e.Workflow.Outcomes)
	if err != nil {
		t.Fatalf("positive: %v", err)
	}
	if !strings.Contains(pos.Advisory, "Seek Professional Help") {
		t.Fatalf("positive advisory lacks professional help guidance: %q", pos.Advisory)
	}
	neg, err := pipeline.Present(e.Normalize["0"], e.Workflow.Outcomes)
	if err != nil {
		t.Fatalf("negative: %v", err)
	}
	if neg.Advisory != "Maintain a healthy lifestyle and well-being." {
		t.Fatalf("unexpected negative advisory %q", neg.Advisory)
	}
	if _, ok := e.Normalize["Yes"]; ok {
		t.Fatalf("Yes/No labels belong to depression-legacy")
	}
}

func depressionInput() domain.RawInput {
	return domain.RawInput{
		"age": "24", "work_pressure": "5", "job_satisfaction": "1", "work_hours": "10",
		"financial_stress": "4", "gender": "Female", "sleep_duration": "Less than 5 hours",
		"dietary_habits": "Unhealthy", "suicidal_thoughts": "Yes", "family_history": "No",
	}
}

func TestDepressionScenario(t *testing.T) {
	cases := []struct {
		entry   catalog.Entry
		columns []string
	}{
		{catalog.Depression(), []string{
			"Age", "Work Pressure", "Job Satisfaction", "Work Hours", "Financial Stress",
			"Gender", "Sleep Duration", "Dietary Habits", "Have you ever had suicidal thoughts ?",
			"Family History of Mental Illness",
		}},
		{catalog.DepressionLegacy(), []string{
			"Gender", "Age", "Work Pressure", "Job Satisfaction", "Sleep Duration",
			"Dietary Habits", "Have you ever had suicidal thoughts ?", "Work Hours",
			"Financial Stress", "Family History of Mental Illness",
		}},
	}
	for _, tc := range cases {
		rec := encode(t, tc.entry.Workflow, depressionInput())
		if got := rec.Columns(); strings.Join(got, "|") != strings.Join(tc.columns, "|") {
			t.Fatalf("%s: columns %v, want %v", tc.entry.Workflow.ID, got, tc.columns)
		}
		if v, _ := rec.Get("Age"); v != domain.Int(24) {
			t.Fatalf("%s: age encoded as %v", tc.entry.Workflow.ID, v)
		}
		if v, _ := rec.Get("Gender"); v != domain.Category("Female") {
			t.Fatalf("%s: gender encoded as %v", tc.entry.Workflow.ID, v)
		}
	}

	legacy := catalog.DepressionLegacy()
	if legacy.Normalize["Yes"] != domain.LabelPositive || legacy.Normalize["No"] != domain.LabelNegative {
		t.Fatalf("legacy model emits Yes/No")
	}
	pos, err := pipeline.Present(legacy.Normalize["Yes"], legacy.Workflow.Outcomes)
	if err != nil || pos.Verdict != "Predicted Depression Status: Yes" || !strings.Contains(pos.Advisory, "Avoid alcohol and drug use.") {
		t.Fatalf("unexpected legacy positive outcome %+v %v", pos, err)
	}
}

func TestDepressionLegacyOptionalFields(t *testing.T) {
	raw := depressionInput()
	for _, field := range []string{"job_satisfaction", "work_hours", "financial_stress"} {
		raw[field] = ""
	}
	rec := encode(t, catalog.DepressionLegacy().Workflow, raw)
	for _, column := range []string{"Job Satisfaction", "Work Hours", "Financial Stress"} {
		if v, ok := rec.Get(column); !ok || !v.IsNull() {
			t.Fatalf("%s: expected null, got %v", column, v)
		}
	}
	_, err := pipeline.Validate(raw, catalog.Depression().Workflow.Schema)
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Field != "job_satisfaction" {
		t.Fatalf("canonical depression requires job satisfaction, got %v", err)
	}
}

func TestDepressionLegacyRanges(t *testing.T) {
	w := catalog.DepressionLegacy().Workflow
	raw := depressionInput()
	raw["work_hours"] = "13"
	_, err := pipeline.Validate(raw, w.Schema)
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Code != pipeline.CodeOutOfRange || ve.Error() != "Work Hours (0-12) should be between 0 and 12." {
		t.Fatalf("expected work hours out of range, got %v", err)
	}
	raw = depressionInput()
	raw["work_pressure"] = "0"
	_, err = pipeline.Validate(raw, w.Schema)
	if !errors.As(err, &ve) || ve.Field != "work_pressure" || ve.Error() != "Please fill out all the critical fields before making a prediction." {
		t.Fatalf("zero work pressure counts as unanswered, got %v", err)
	}
}

func TestDepressionAgeMessage(t *testing.T) {
	w := catalog.Depression().Workflow
	for _, age := range []string{"", "0"} {
		raw := depressionInput()
		raw["age"] = age
		_, err := pipeline.Validate(raw, w.Schema)
		var ve *pipeline.ValidationError
		if !errors.As(err, &ve) || ve.Code != pipeline.CodeMissingField {
			t.Fatalf("age %q: expected missing field, got %v", age, err)
		}
		if ve.Error() != "Age must be a positive value." {
			t.Fatalf("age %q: unexpected message %q", age, ve.Error())
		}
	}
}

func TestDepressionPerFieldMessage(t *testing.T) {
	w := catalog.Depression().Workflow
	raw := domain.RawInput{
		"age": "30", "work_pressure": "0", "job_satisfaction": "2", "work_hours": "8",
		"financial_stress": "1", "gender": "Male", "sleep_duration": "7-8 hours",
		"dietary_habits": "Healthy", "suicidal_thoughts": "No",
	}
	_, err := pipeline.Validate(raw, w.Schema)
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Field != "family_history" || ve.Code != pipeline.CodeMissingField {
		t.Fatalf("expected family_history missing, got %v", err)
	}
}

func TestBrainStrokeMenuLabel(t *testing.T) {
	id, err := domain.ParseWorkflowID("Brain Stroke")
	if err != nil || id != domain.WorkflowStroke {
		t.Fatalf("Brain Stroke should select %s, got %s %v", domain.WorkflowStroke, id, err)
	}
	for _, e := range catalog.All() {
		if e.Workflow.ID != id && strings.Contains(e.Workflow.Title, "Brain Stroke") {
			t.Fatalf("%s is titled %q but the menu label selects %s", e.Workflow.ID, e.Workflow.Title, id)
		}
	}
	if id, _ := domain.ParseWorkflowID("Depression Legacy"); id != domain.WorkflowDepressionLegacy {
		t.Fatalf("expected depression-legacy, got %s", id)
	}
}
