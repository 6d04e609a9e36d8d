package pipeline

import (
	"context"
	"fmt"
	"slices"

	"healthbridge/internal/domain"
)

// Predictor classifies one feature record into a canonical label.
type Predictor interface {
	Predict(ctx context.Context, record domain.FeatureRecord) (domain.Label, error)
}

// Workflow bundles the static configuration of one questionnaire.
type Workflow struct {
	ID       domain.WorkflowID
	Title    string
	Schema   Schema
	Encoding EncodingTable
	Outcomes OutcomeTable
	// Labels is the documented set of canonical labels the classifier emits.
	Labels []domain.Label
}

// Check verifies the static tables agree with the schema: every enum option
// has a code and every documented label has an outcome.
func (w Workflow) Check() error {
	if len(w.Schema.Fields) == 0 {
		return fmt.Errorf("workflow %s: empty schema", w.ID)
	}
	if w.Schema.MissingPolicy == MissingAggregate && w.Schema.AggregateMessage == "" {
		return fmt.Errorf("workflow %s: aggregate missing policy needs a message", w.ID)
	}
	seen := map[string]bool{}
	for _, f := range w.Schema.Fields {
		if f.Name == "" || f.Column == "" {
			return fmt.Errorf("workflow %s: field with empty name or column", w.ID)
		}
		if seen[f.Column] {
			return fmt.Errorf("workflow %s: duplicate column %s", w.ID, f.Column)
		}
		seen[f.Column] = true
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("workflow %s: field %s has min > max", w.ID, f.Name)
		}
		if f.Type != domain.FieldEnum {
			continue
		}
		if len(f.Options) == 0 {
			return fmt.Errorf("workflow %s: enum field %s has no options", w.ID, f.Name)
		}
		for _, opt := range f.Options {
			if _, ok := w.Encoding[f.Name][opt]; !ok {
				return &UnknownCategoryError{Field: f.Name, Value: opt}
			}
		}
	}
	for _, l := range w.Labels {
		if _, err := Present(l, w.Outcomes); err != nil {
			return fmt.Errorf("workflow %s: %w", w.ID, err)
		}
	}
	return nil
}

// Result is one run of the pipeline. Outcome is always populated; Err holds
// the stage failure, if any.
type Result struct {
	Outcome domain.PredictionOutcome
	Record  domain.FeatureRecord
	Err     error
}

type entry struct {
	workflow  Workflow
	predictor Predictor
}

// Dispatcher routes a prediction to the selected workflow. Register every
// workflow before calling Run; the registry is read-only afterwards.
type Dispatcher struct {
	entries map[domain.WorkflowID]entry
	order   []domain.WorkflowID
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{entries: map[domain.WorkflowID]entry{}}
}

func (d *Dispatcher) Register(w Workflow, p Predictor) {
	if _, ok := d.entries[w.ID]; !ok {
		d.order = append(d.order, w.ID)
	}
	d.entries[w.ID] = entry{workflow: w, predictor: p}
}

// Workflows returns the registered workflows in registration order.
func (d *Dispatcher) Workflows() []Workflow {
	out := make([]Workflow, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.entries[id].workflow)
	}
	return out
}

func (d *Dispatcher) Workflow(id domain.WorkflowID) (Workflow, bool) {
	e, ok := d.entries[id]
	return e.workflow, ok
}

func (d *Dispatcher) Has(id domain.WorkflowID) bool {
	return slices.Contains(d.order, id)
}

// Run validates, encodes, predicts and presents. It returns an error only
// when id is not registered.
func (d *Dispatcher) Run(ctx context.Context, id domain.WorkflowID, raw domain.RawInput) (Result, error) {
	e, ok := d.entries[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	res := run(ctx, e.workflow, e.predictor, raw)
	res.Outcome.Workflow = id
	return res, nil
}

func run(ctx context.Context, w Workflow, p Predictor, raw domain.RawInput) Result {
	valid, err := Validate(raw, w.Schema)
	if err != nil {
		return failed(nil, err)
	}
	record, err := Encode(valid, w.Encoding)
	if err != nil {
		return failed(nil, err)
	}
	if p == nil {
		return failed(record, &ModelUnavailableError{Handle: string(w.ID)})
	}
	label, err := p.Predict(ctx, record)
	if err != nil {
		return failed(record, err)
	}
	outcome, err := Present(label, w.Outcomes)
	if err != nil {
		return failed(record, err)
	}
	return Result{Outcome: outcome, Record: record}
}

func failed(record domain.FeatureRecord, err error) Result {
	return Result{
		Outcome: domain.PredictionOutcome{Success: false, Failure: FailureOf(err)},
		Record:  record,
		Err:     err,
	}
}
