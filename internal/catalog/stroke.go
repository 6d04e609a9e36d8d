package catalog

import (
	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

const strokePrecautions = `### Precautions to Prevent Stroke:
- **Control High Blood Pressure:** Regularly monitor and manage your blood pressure with a healthy diet and medication if prescribed.
- **Quit Smoking:** Avoid smoking or exposure to tobacco.
- **Manage Diabetes:** Keep blood sugar levels in check through proper medication and a controlled diet.
- **Maintain Healthy Weight:** Avoid obesity through regular physical activity and a balanced diet.
- **Exercise Regularly:** Engage in moderate-intensity activities like walking, swimming, or cycling.
- **Limit Alcohol Consumption:** Avoid excessive alcohol intake.
- **Follow a Healthy Diet:** Focus on consuming vegetables, fruits, whole grains, and lean proteins while reducing salt and saturated fats.
- **Stay Hydrated:** Drink adequate water daily.
- **Regular Medical Checkups:** Visit your doctor for regular screenings and follow their advice.`

// strokeUnlikely is the negative label of models that emit display text.
const strokeUnlikely = "The person is unlikely to have a  stroke"

var strokeNormalize = map[string]domain.Label{
	"1":            domain.LabelPositive,
	"Stroke":       domain.LabelPositive,
	"0":            domain.LabelNegative,
	strokeUnlikely: domain.LabelNegative,
}

type strokeCodes struct {
	workType map[string]int64
	smoking  map[string]int64
	// smokingOrder is the option order shown to users.
	smokingOrder []string
}

// Stroke uses label-encoder codes in alphabetical order, which is what the
// stroke dataset's preprocessing produces, and accepts "Unknown" smoking status.
func Stroke() Entry {
	return strokeEntry(domain.WorkflowStroke, "Stroke Prediction", "models/brain_stroke.yml", strokeCodes{
		workType:     map[string]int64{"Govt_job": 0, "Never_worked": 1, "Private": 2, "Self-employed": 3, "children": 4},
		smoking:      map[string]int64{"Unknown": 0, "formerly smoked": 1, "never smoked": 2, "smokes": 3},
		smokingOrder: []string{"Unknown", "formerly smoked", "never smoked", "smokes"},
	})
}

// StrokeLegacy serves the stacking model trained with its own work type and
// smoking codes. It shares the field set with Stroke but nothing else.
func StrokeLegacy() Entry {
	return strokeEntry(domain.WorkflowStrokeLegacy, "Stroke Prediction (stacking model)", "models/stacking_model.yml", strokeCodes{
		workType:     map[string]int64{"Private": 0, "Self-employed": 1, "Govt_job": 2, "children": 3, "Never_worked": 4},
		smoking:      map[string]int64{"formerly smoked": 0, "never smoked": 1, "smokes": 2},
		smokingOrder: []string{"formerly smoked", "never smoked", "smokes"},
	})
}

func strokeEntry(id domain.WorkflowID, title, model string, codes strokeCodes) Entry {
	fields := []domain.FieldSpec{
		enum("gender", "gender", "Gender", "Male", "Female"),
		number(domain.FieldInteger, "age", "age", "Age", 0, 120),
		enum("hypertension", "hypertension", "Hypertension", yesNoTitle...),
		enum("heart_disease", "heart_disease", "Heart Disease", yesNoTitle...),
		enum("ever_married", "ever_married", "Ever Married", yesNoTitle...),
		enum("work_type", "work_type", "Work Type", "Private", "Self-employed", "Govt_job", "children", "Never_worked"),
		enum("residence_type", "Residence_type", "Residence Type", "Urban", "Rural"),
		number(domain.FieldFloat, "avg_glucose_level", "avg_glucose_level", "Average Glucose Level", 0, 400),
		number(domain.FieldFloat, "bmi", "bmi", "BMI", 0, 100),
		enum("smoking_status", "smoking_status", "Smoking Status", codes.smokingOrder...),
	}
	yesNoCodes := pipeline.Codes(map[string]int64{"Yes": 1, "No": 0})
	encoding := pipeline.EncodingTable{
		"gender":         pipeline.Codes(map[string]int64{"Male": 1, "Female": 0}),
		"hypertension":   yesNoCodes,
		"heart_disease":  yesNoCodes,
		"ever_married":   yesNoCodes,
		"work_type":      pipeline.Codes(codes.workType),
		"residence_type": pipeline.Codes(map[string]int64{"Urban": 1, "Rural": 0}),
		"smoking_status": pipeline.Codes(codes.smoking),
	}
	return Entry{
		Workflow: pipeline.Workflow{
			ID:    id,
			Title: title,
			Schema: pipeline.Schema{
				Fields:           fields,
				MissingPolicy:    pipeline.MissingAggregate,
				AggregateMessage: "Please fill out all fields before making a prediction.",
			},
			Encoding: encoding,
			Outcomes: binaryOutcomes(
				"The person is likely to have a stroke.", strokePrecautions,
				"The person is unlikely to have a stroke.", "Maintain a healthy lifestyle, monitor your health regularly, and consult a doctor for any concerns.",
			),
			Labels: []domain.Label{domain.LabelPositive, domain.LabelNegative},
		},
		Normalize:    strokeNormalize,
		DefaultModel: model,
	}
}
