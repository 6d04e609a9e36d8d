package classifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"healthbridge/internal/classifier"
	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

const linearYAML = `
name: toy-linear
kind: linear
columns: [Age, Smoker]
classes: ["0", "1"]
intercepts:
  "0": 1
  "1": -3
weights:
  "1":
    Age: 0.1
    Smoker=yes: 2
`

const treeYAML = `
kind: tree
columns: [Age, Smoker]
tree:
  column: Age
  threshold: 50
  missing: left
  left:
    column: Smoker
    equals: "yes"
    left: {label: "1"}
    right: {label: "0"}
  right: {label: "1"}
`

func record(age domain.Value, smoker string) domain.FeatureRecord {
	return domain.FeatureRecord{
		{Column: "Age", Value: age},
		{Column: "Smoker", Value: domain.Category(smoker)},
	}
}

func predictOne(t *testing.T, m classifier.Model, rec domain.FeatureRecord) string {
	t.Helper()
	labels, err := m.Predict(context.Background(), rec.Columns(), [][]domain.Value{rec.Values()})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(labels) != 1 {
		t.Fatalf("expected one label, got %v", labels)
	}
	return labels[0]
}

func TestLinearArtifact(t *testing.T) {
	m, err := classifier.ParseArtifact([]byte(linearYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 0: 1 ; 1: -3 + 0.1*20 = -1
	if got := predictOne(t, m, record(domain.Int(20), "no")); got != "0" {
		t.Fatalf("young non-smoker: got %s", got)
	}
	// 1: -3 + 6 + 2 = 5
	if got := predictOne(t, m, record(domain.Int(60), "yes")); got != "1" {
		t.Fatalf("old smoker: got %s", got)
	}
}

func TestTreeArtifact(t *testing.T) {
	m, err := classifier.ParseArtifact([]byte(treeYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		age    domain.Value
		smoker string
		want   string
	}{
		{domain.Int(30), "yes", "1"},
		{domain.Int(30), "no", "0"},
		{domain.Float(50), "no", "0"},
		{domain.Float(50.5), "no", "1"},
		{domain.Null(), "no", "0"},
	}
	for _, tc := range cases {
		if got := predictOne(t, m, record(tc.age, tc.smoker)); got != tc.want {
			t.Fatalf("age=%v smoker=%s: got %s want %s", tc.age, tc.smoker, got, tc.want)
		}
	}
}

func TestArtifactRejectsColumnMismatch(t *testing.T) {
	m, err := classifier.ParseArtifact([]byte(treeYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = m.Predict(context.Background(), []string{"Smoker", "Age"}, [][]domain.Value{{domain.Category("no"), domain.Int(3)}})
	if err == nil {
		t.Fatalf("expected column order mismatch to fail")
	}
}

func TestArtifactValidation(t *testing.T) {
	bad := []string{
		"kind: linear\ncolumns: [A]\n",
		"kind: tree\ncolumns: [A]\ntree: {column: B, threshold: 1, left: {label: x}, right: {label: y}}\n",
		"kind: forest\ncolumns: [A]\n",
		"kind: linear\ncolumns: [A, A]\nclasses: [x]\n",
	}
	for _, src := range bad {
		if _, err := classifier.ParseArtifact([]byte(src)); err == nil {
			t.Fatalf("expected %q to be rejected", src)
		}
	}
}

func TestDefaultLoaderResolvesRelativeArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models", "toy.yml"), []byte(treeYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := classifier.DefaultLoader{BaseDir: dir}
	if _, err := l.Load(context.Background(), "models/toy.yml"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := l.Load(context.Background(), "models/toy.pkl"); err == nil {
		t.Fatalf("expected unsupported handle error")
	}
}

type fakeModel struct {
	labels []string
	err    error
	panic  bool
}

func (f fakeModel) Predict(context.Context, []string, [][]domain.Value) ([]string, error) {
	if f.panic {
		panic("corrupt weights")
	}
	return f.labels, f.err
}

func TestAdapterLoadFailureSticksUntilReload(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fail := true
	loader := classifier.LoaderFunc(func(context.Context, string) (classifier.Model, error) {
		calls++
		if fail {
			return nil, errors.New("file not found")
		}
		return fakeModel{labels: []string{"1"}}, nil
	})
	a := classifier.NewAdapter("models/x.yml", loader, classifier.Normalizer{"1": domain.LabelPositive})

	for i := 0; i < 3; i++ {
		_, err := a.Predict(ctx, record(domain.Int(1), "no"))
		var mu *pipeline.ModelUnavailableError
		if !errors.As(err, &mu) || mu.Handle != "models/x.yml" {
			t.Fatalf("expected model unavailable, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("failed load must not be retried per request, loader called %d times", calls)
	}
	if st := a.Status(); st.Loaded || st.Error == "" {
		t.Fatalf("unexpected status %+v", st)
	}

	fail = false
	if err := a.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	label, err := a.Predict(ctx, record(domain.Int(1), "no"))
	if err != nil || label != domain.LabelPositive {
		t.Fatalf("after reload: %s %v", label, err)
	}
	if st := a.Status(); !st.Loaded || st.Error != "" || st.LoadedAt == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func adapterFor(m classifier.Model, n classifier.Normalizer) *classifier.Adapter {
	return classifier.NewAdapter("fake", classifier.LoaderFunc(func(context.Context, string) (classifier.Model, error) {
		return m, nil
	}), n)
}

func TestAdapterPredictErrors(t *testing.T) {
	ctx := context.Background()
	rec := record(domain.Int(1), "no")
	norm := classifier.Normalizer{"1": domain.LabelPositive, "0": domain.LabelNegative}

	_, err := adapterFor(fakeModel{panic: true}, norm).Predict(ctx, rec)
	var pe *pipeline.PredictError
	if !errors.As(err, &pe) {
		t.Fatalf("expected panic recovered as predict error, got %v", err)
	}

	_, err = adapterFor(fakeModel{err: errors.New("shape mismatch")}, norm).Predict(ctx, rec)
	if !errors.As(err, &pe) {
		t.Fatalf("expected predict error, got %v", err)
	}

	_, err = adapterFor(fakeModel{labels: []string{"1", "0"}}, norm).Predict(ctx, rec)
	if !errors.As(err, &pe) {
		t.Fatalf("expected predict error for label count, got %v", err)
	}

	_, err = adapterFor(fakeModel{labels: []string{"2"}}, norm).Predict(ctx, rec)
	var ul *pipeline.UnmappedLabelError
	if !errors.As(err, &ul) || ul.Label != "2" {
		t.Fatalf("expected unmapped label, got %v", err)
	}

	label, err := adapterFor(fakeModel{labels: []string{" 0 "}}, norm).Predict(ctx, rec)
	if err != nil || label != domain.LabelNegative {
		t.Fatalf("expected negative, got %s %v", label, err)
	}

	label, err = adapterFor(fakeModel{labels: []string{"Obesity_Type_I"}}, nil).Predict(ctx, rec)
	if err != nil || label != "Obesity_Type_I" {
		t.Fatalf("nil normalizer should pass labels through, got %s %v", label, err)
	}
}

func TestRemoteModel(t *testing.T) {
	var got struct {
		Columns []string         `json:"columns"`
		Rows    [][]domain.Value `json:"rows"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"labels":[1.0]}`))
	}))
	defer srv.Close()

	m, err := classifier.DefaultLoader{}.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if label := predictOne(t, m, record(domain.Int(61), "yes")); label != "1" {
		t.Fatalf("expected label 1, got %q", label)
	}
	if len(got.Columns) != 2 || got.Columns[0] != "Age" || len(got.Rows) != 1 || got.Rows[0][0] != domain.Int(61) {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestRemoteModelErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	m, err := classifier.NewRemote(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	if _, err := m.Predict(context.Background(), []string{"Age"}, [][]domain.Value{{domain.Int(1)}}); err == nil {
		t.Fatalf("expected error status to fail")
	}
}
