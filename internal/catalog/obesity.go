package catalog

import (
	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

var (
	yesNo     = []string{"yes", "no"}
	frequency = []string{"no", "Sometimes", "Frequently", "Always"}
	transport = []string{"Walking", "Bike", "Public Transportation", "Private Transportation", "Motorbike"}
)

// Obesity levels in increasing severity.
var obesityLevels = []struct {
	label    domain.Label
	verdict  string
	advisory string
}{
	{"Insufficient_Weight", "Insufficient Weight",
		"You are underweight. Consider consulting a healthcare provider to evaluate any underlying issues and increase your calorie intake with nutrient-rich foods to achieve a healthy weight."},
	{"Normal_Weight", "Normal Weight",
		"You are in the normal weight range. Keep up with a balanced diet and regular physical activity to maintain your health."},
	{"Overweight_Level_I", "Overweight Level I",
		"You are slightly overweight. Reducing high-calorie food consumption, incorporating regular exercise, and monitoring your weight could help you achieve a healthier weight."},
	{"Overweight_Level_II", "Overweight Level II",
		"You are in the overweight category. It is advisable to seek guidance from a nutritionist or healthcare provider to develop a personalized weight management plan."},
	{"Obesity_Type_I", "Obesity Type I",
		"You are in the obesity type I category. Adopting a calorie-controlled diet and engaging in consistent physical activity are important steps. Consult a healthcare provider for further assistance."},
	{"Obesity_Type_II", "Obesity Type II",
		"You are in the obesity type II category. Professional medical advice and a structured weight loss program are strongly recommended to address health risks."},
	{"Obesity_Type_III", "Obesity Type III",
		"You are in the obesity type III category. Immediate medical intervention is necessary to manage severe obesity and associated health complications effectively."},
}

// Obesity is the seven-class weight category questionnaire. Sliders start at
// zero and a zero slider counts as unanswered.
func Obesity() Entry {
	fields := []domain.FieldSpec{
		enum("gender", "Gender", "Gender", "Female", "Male"),
		number(domain.FieldInteger, "age", "Age", "Age", 1, 120),
		number(domain.FieldFloat, "height", "Height", "Height (in meters)", 0.5, 2.5),
		number(domain.FieldFloat, "weight", "Weight", "Weight (in kg)", 10, 400),
		enum("family_history", "family_history", "Family History of Overweight", yesNo...),
		enum("favc", "FAVC", "Do you eat high caloric food frequently?", yesNo...),
		zeroUnset(number(domain.FieldOrdinal, "fcvc", "FCVC", "How often do you eat vegetables in your meals?", 0, 3)),
		zeroUnset(number(domain.FieldOrdinal, "ncp", "NCP", "How many main meals do you have daily?", 0, 6)),
		enum("caec", "CAEC", "Do you eat any food between meals?", frequency...),
		enum("smoke", "SMOKE", "Do you smoke?", yesNo...),
		enum("scc", "SCC", "Do you monitor the calories you eat daily?", yesNo...),
		enum("calc", "CALC", "How often do you drink alcohol?", frequency...),
		enum("mtrans", "MTRANS", "Which transportation do you usually use?", transport...),
		zeroUnset(number(domain.FieldOrdinal, "ch2o", "CH2O", "How much water do you drink daily? (in liters)", 0, 6)),
		zeroUnset(number(domain.FieldOrdinal, "faf", "FAF", "How often do you have physical activity in a Week?", 0, 7)),
		zeroUnset(number(domain.FieldOrdinal, "tue", "TUE", "How much time do you use technological devices daily? (in hours)", 0, 24)),
	}
	encoding := pipeline.EncodingTable{
		"gender":         pipeline.Passthrough("Female", "Male"),
		"family_history": pipeline.Passthrough(yesNo...),
		"favc":           pipeline.Passthrough(yesNo...),
		"caec":           pipeline.Passthrough(frequency...),
		"smoke":          pipeline.Passthrough(yesNo...),
		"scc":            pipeline.Passthrough(yesNo...),
		"calc":           pipeline.Passthrough(frequency...),
		"mtrans":         pipeline.Passthrough(transport...),
	}
	outcomes := pipeline.OutcomeTable{}
	normalize := map[string]domain.Label{}
	labels := make([]domain.Label, 0, len(obesityLevels))
	for i, lvl := range obesityLevels {
		outcomes[lvl.label] = pipeline.Outcome{Verdict: lvl.verdict, Advisory: lvl.advisory, Severity: ptr(i)}
		normalize[string(lvl.label)] = lvl.label
		labels = append(labels, lvl.label)
	}
	return Entry{
		Workflow: pipeline.Workflow{
			ID:    domain.WorkflowObesity,
			Title: "Obesity Prediction",
			Schema: pipeline.Schema{
				Fields:           fields,
				MissingPolicy:    pipeline.MissingAggregate,
				AggregateMessage: "Please fill out all fields before predicting.",
			},
			Encoding: encoding,
			Outcomes: outcomes,
			Labels:   labels,
		},
		Normalize:    normalize,
		DefaultModel: "models/obesity_model.yml",
	}
}
