package catalog

import (
	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

const depressionPrecautions = `### Precautions to Manage Depression:
- **Seek Professional Help:** Consult a mental health professional for advice and treatment options.
- **Exercise Regularly:** Engage in physical activities like walking, running, or yoga to boost mood and health.
- **Maintain a Healthy Diet:** Focus on nutritious foods and avoid excessive junk food and alcohol.
- **Get Adequate Sleep:** Aim for 7-9 hours of sleep per night to help maintain emotional balance.
- **Build a Support System:** Reach out to family and friends for emotional support.
- **Practice Mindfulness:** Engage in mindfulness activities like meditation or breathing exercises to reduce stress.
- **Reduce Stress:** Learn to manage stress through relaxation techniques, hobbies, or activities that promote relaxation.
- **Avoid Substance Abuse:** Limit alcohol and avoid recreational drugs to keep mental health in check.`

var (
	sleepDurations = []string{"7-8 hours", "5-6 hours", "More than 8 hours", "Less than 5 hours"}
	dietaryHabits  = []string{"Moderate", "Unhealthy", "Healthy"}
	yesNoTitle     = []string{"Yes", "No"}
)

// Depression reports each unset field by name. Work pressure and the other
// 0-5 sliders accept zero as a real answer; only age uses zero as unset.
func Depression() Entry {
	age := zeroUnset(number(domain.FieldInteger, "age", "Age", "Age", 1, 100))
	age.MissingMessage = "Age must be a positive value."
	fields := []domain.FieldSpec{
		age,
		number(domain.FieldOrdinal, "work_pressure", "Work Pressure", "Work Pressure", 0, 5),
		number(domain.FieldOrdinal, "job_satisfaction", "Job Satisfaction", "Job Satisfaction", 0, 5),
		number(domain.FieldOrdinal, "work_hours", "Work Hours", "Work Hours", 0, 15),
		number(domain.FieldOrdinal, "financial_stress", "Financial Stress", "Financial Stress", 0, 5),
		enum("gender", "Gender", "Gender", "Male", "Female"),
		enum("sleep_duration", "Sleep Duration", "Sleep Duration", sleepDurations...),
		enum("dietary_habits", "Dietary Habits", "Dietary Habits", dietaryHabits...),
		enum("suicidal_thoughts", "Have you ever had suicidal thoughts ?", "Have you ever had suicidal thoughts?", yesNoTitle...),
		enum("family_history", "Family History of Mental Illness", "Family History of Mental Illness", yesNoTitle...),
	}
	encoding := pipeline.EncodingTable{
		"gender":            pipeline.Passthrough("Male", "Female"),
		"sleep_duration":    pipeline.Passthrough(sleepDurations...),
		"dietary_habits":    pipeline.Passthrough(dietaryHabits...),
		"suicidal_thoughts": pipeline.Passthrough(yesNoTitle...),
		"family_history":    pipeline.Passthrough(yesNoTitle...),
	}
	return Entry{
		Workflow: pipeline.Workflow{
			ID:    domain.WorkflowDepression,
			Title: "Depression Prediction",
			Schema: pipeline.Schema{
				Fields:        fields,
				MissingPolicy: pipeline.MissingPerField,
			},
			Encoding: encoding,
			Outcomes: binaryOutcomes(
				"The person is likely to suffer from depression.", depressionPrecautions,
				"The person is unlikely to suffer from depression.", "Maintain a healthy lifestyle and well-being.",
			),
			Labels: []domain.Label{domain.LabelPositive, domain.LabelNegative},
		},
		Normalize: map[string]domain.Label{
			"1": domain.LabelPositive,
			"0": domain.LabelNegative,
		},
		DefaultModel: "models/depression_model.yml",
	}
}

const (
	depressionLegacyPositive = `It is important to take precautions if you are feeling depressed. Please consider the following steps:
- Seek support from a mental health professional.
- Talk to someone you trust about your feelings.
- Practice relaxation techniques such as meditation or deep breathing.
- Make sure you get adequate sleep and exercise regularly.
- Avoid alcohol and drug use.`
	depressionLegacyNegative = `You're safe, but it's important to take care of your mental health.
- Maintain a healthy work-life balance.
- Keep a balanced diet and stay active.
- Get enough sleep and manage stress.`
)

// DepressionLegacy serves the Yes/No model whose columns start with Gender.
// Job satisfaction, work hours and financial stress may be left blank and
// reach the model as nulls. Age and work pressure treat zero as unanswered.
func DepressionLegacy() Entry {
	fields := []domain.FieldSpec{
		enum("gender", "Gender", "Gender", "Male", "Female"),
		zeroUnset(number(domain.FieldInteger, "age", "Age", "Age", 1, 100)),
		zeroUnset(number(domain.FieldOrdinal, "work_pressure", "Work Pressure", "Work Pressure (0-5)", 0, 5)),
		optional(number(domain.FieldOrdinal, "job_satisfaction", "Job Satisfaction", "Job Satisfaction (0-5)", 0, 5)),
		enum("sleep_duration", "Sleep Duration", "Sleep Duration", sleepDurations...),
		enum("dietary_habits", "Dietary Habits", "Dietary Habits", dietaryHabits...),
		enum("suicidal_thoughts", "Have you ever had suicidal thoughts ?", "Have you ever had suicidal thoughts?", yesNoTitle...),
		optional(number(domain.FieldOrdinal, "work_hours", "Work Hours", "Work Hours (0-12)", 0, 12)),
		optional(number(domain.FieldOrdinal, "financial_stress", "Financial Stress", "Financial Stress (0-5)", 0, 5)),
		enum("family_history", "Family History of Mental Illness", "Family History of Mental Illness", yesNoTitle...),
	}
	encoding := pipeline.EncodingTable{
		"gender":            pipeline.Passthrough("Male", "Female"),
		"sleep_duration":    pipeline.Passthrough(sleepDurations...),
		"dietary_habits":    pipeline.Passthrough(dietaryHabits...),
		"suicidal_thoughts": pipeline.Passthrough(yesNoTitle...),
		"family_history":    pipeline.Passthrough(yesNoTitle...),
	}
	return Entry{
		Workflow: pipeline.Workflow{
			ID:    domain.WorkflowDepressionLegacy,
			Title: "Depression Prediction (Yes/No model)",
			Schema: pipeline.Schema{
				Fields:           fields,
				MissingPolicy:    pipeline.MissingAggregate,
				AggregateMessage: "Please fill out all the critical fields before making a prediction.",
			},
			Encoding: encoding,
			Outcomes: binaryOutcomes(
				"Predicted Depression Status: Yes", depressionLegacyPositive,
				"Predicted Depression Status: No", depressionLegacyNegative,
			),
			Labels: []domain.Label{domain.LabelPositive, domain.LabelNegative},
		},
		Normalize: map[string]domain.Label{
			"Yes": domain.LabelPositive,
			"No":  domain.LabelNegative,
		},
		DefaultModel: "models/depression_legacy_model.yml",
	}
}
