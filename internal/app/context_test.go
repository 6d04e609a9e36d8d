package app_test

import (
	"context"
	"os"
	"testing"

	"healthbridge/internal/app"
	"healthbridge/internal/classifier"
	"healthbridge/internal/config"
	"healthbridge/internal/domain"
	"healthbridge/internal/engine"
)

func openWorkspace(t *testing.T) *app.Workspace {
	t.Helper()
	ws, err := app.Open(context.Background(), app.Options{
		Workspace: t.TempDir(),
		// Shipped sample artifacts live at the repository root.
		Loader: classifier.DefaultLoader{BaseDir: "../.."},
	})
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestShippedModelsLoad(t *testing.T) {
	ws := openWorkspace(t)
	infos, err := ws.Engine.LoadModels(context.Background(), "test")
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected three enabled workflows, got %d", len(infos))
	}
	for _, info := range infos {
		if !info.Model.Loaded {
			t.Fatalf("%s: model not loaded: %s", info.ID, info.Model.Error)
		}
	}
}

func TestShippedModelsPredict(t *testing.T) {
	ws := openWorkspace(t)
	cases := []struct {
		workflow string
		input    domain.RawInput
		label    domain.Label
	}{
		{"obesity", domain.RawInput{
			"gender": "Male", "age": "30", "height": "1.80", "weight": "120",
			"family_history": "yes", "favc": "yes", "fcvc": "2", "ncp": "3",
			"caec": "Sometimes", "smoke": "no", "scc": "no", "calc": "no",
			"mtrans": "Walking", "ch2o": "2", "faf": "1", "tue": "1",
		}, "Obesity_Type_II"},
		{"depression", domain.RawInput{
			"age": "24", "work_pressure": "5", "job_satisfaction": "1", "work_hours": "12",
			"financial_stress": "5", "gender": "Female", "sleep_duration": "Less than 5 hours",
			"dietary_habits": "Unhealthy", "suicidal_thoughts": "Yes", "family_history": "Yes",
		}, domain.LabelPositive},
		{"stroke", domain.RawInput{
			"age": "35", "gender": "Female", "hypertension": "No", "heart_disease": "No",
			"ever_married": "No", "work_type": "Private", "residence_type": "Rural",
			"avg_glucose_level": "90", "bmi": "22", "smoking_status": "never smoked",
		}, domain.LabelNegative},
	}
	for _, tc := range cases {
		t.Run(tc.workflow, func(t *testing.T) {
			out, _, err := ws.Engine.Predict(context.Background(), engine.PredictOptions{Workflow: tc.workflow, Input: tc.input})
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if !out.Success || out.Label != tc.label {
				t.Fatalf("expected %s, got %+v", tc.label, out)
			}
		})
	}
}

func TestShippedLegacyDepressionModel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	on := true
	legacy := cfg.Workflows[domain.WorkflowDepressionLegacy]
	legacy.Enabled = &on
	cfg.Workflows[domain.WorkflowDepressionLegacy] = legacy
	data, err := cfg.YAML()
	if err != nil {
		t.Fatalf("render config: %v", err)
	}
	if err := os.WriteFile(config.Path(dir), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ws, err := app.Open(context.Background(), app.Options{Workspace: dir, Loader: classifier.DefaultLoader{BaseDir: "../.."}})
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	defer ws.Close()

	// Job satisfaction and work hours are optional for this model.
	out, _, err := ws.Engine.Predict(context.Background(), engine.PredictOptions{Workflow: "depression-legacy", Input: domain.RawInput{
		"gender": "Female", "age": "24", "work_pressure": "5", "sleep_duration": "Less than 5 hours",
		"dietary_habits": "Unhealthy", "suicidal_thoughts": "Yes", "financial_stress": "5", "family_history": "Yes",
	}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !out.Success || out.Label != domain.LabelPositive || out.Verdict != "Predicted Depression Status: Yes" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("workflows:\n  diabetes: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := app.Open(context.Background(), app.Options{Workspace: dir}); err == nil {
		t.Fatalf("expected config error")
	}
}
