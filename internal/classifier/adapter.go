package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"healthbridge/internal/domain"
	"healthbridge/internal/pipeline"
)

// Adapter wraps one model handle behind the pipeline's Predictor contract.
// The model is loaded once and shared read-only between requests; a failed
// load sticks until Reload.
type Adapter struct {
	handle    string
	loader    Loader
	normalize Normalizer
	now       func() time.Time

	mu       sync.RWMutex
	model    Model
	loadErr  error
	loadedAt time.Time
}

// Status describes the load state of an adapter.
type Status struct {
	Handle   string `json:"handle"`
	Loaded   bool   `json:"loaded"`
	Error    string `json:"error,omitempty"`
	LoadedAt string `json:"loaded_at,omitempty" format:"date-time"`
}

func NewAdapter(handle string, loader Loader, normalize Normalizer) *Adapter {
	return &Adapter{handle: handle, loader: loader, normalize: normalize, now: time.Now}
}

func (a *Adapter) Handle() string { return a.handle }

// Load loads the model if no load was attempted yet. It returns the sticky
// load error otherwise.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil || a.loadErr != nil {
		return a.loadErr
	}
	return a.loadLocked(ctx)
}

// Reload discards the current model and loads the handle again.
func (a *Adapter) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadLocked(ctx)
}

func (a *Adapter) loadLocked(ctx context.Context) error {
	if a.loader == nil {
		a.model = nil
		a.loadErr = &pipeline.ModelUnavailableError{Handle: a.handle, Cause: fmt.Errorf("no loader")}
		return a.loadErr
	}
	m, err := a.loader.Load(ctx, a.handle)
	if err == nil && m == nil {
		err = fmt.Errorf("loader returned no model")
	}
	if err != nil {
		a.model = nil
		a.loadErr = &pipeline.ModelUnavailableError{Handle: a.handle, Cause: err}
		return a.loadErr
	}
	a.model = m
	a.loadErr = nil
	a.loadedAt = a.now().UTC()
	return nil
}

func (a *Adapter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Status{Handle: a.handle, Loaded: a.model != nil}
	if a.loadErr != nil {
		s.Error = a.loadErr.Error()
	}
	if !a.loadedAt.IsZero() && a.model != nil {
		s.LoadedAt = a.loadedAt.Format(time.RFC3339)
	}
	return s
}

func (a *Adapter) current(ctx context.Context) (Model, error) {
	a.mu.RLock()
	m, err := a.model, a.loadErr
	a.mu.RUnlock()
	if m != nil {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.model == nil {
		return nil, &pipeline.ModelUnavailableError{Handle: a.handle}
	}
	return a.model, nil
}

// Predict classifies exactly one record. Model errors and panics come back
// as *pipeline.PredictError; nothing is retried.
func (a *Adapter) Predict(ctx context.Context, record domain.FeatureRecord) (label domain.Label, err error) {
	m, err := a.current(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			label = ""
			err = &pipeline.PredictError{Cause: fmt.Errorf("model panicked: %v", r)}
		}
	}()
	labels, err := m.Predict(ctx, record.Columns(), [][]domain.Value{record.Values()})
	if err != nil {
		return "", &pipeline.PredictError{Cause: err}
	}
	if len(labels) != 1 {
		return "", &pipeline.PredictError{Cause: fmt.Errorf("model returned %d labels for 1 row", len(labels))}
	}
	raw := strings.TrimSpace(labels[0])
	canonical, ok := a.normalize.Label(raw)
	if !ok {
		return "", &pipeline.UnmappedLabelError{Label: raw}
	}
	return canonical, nil
}
