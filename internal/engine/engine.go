package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"healthbridge/internal/catalog"
	"healthbridge/internal/classifier"
	"healthbridge/internal/config"
	"healthbridge/internal/domain"
	"healthbridge/internal/engine/auth"
	"healthbridge/internal/events"
	"healthbridge/internal/pipeline"
	"healthbridge/internal/repo"
)

// ErrWorkflowDisabled is returned for workflows switched off in config.
var ErrWorkflowDisabled = errors.New("workflow disabled")

// AuditError means a prediction ran but its audit row or event was not
// written. Predict returns it alongside the computed outcome.
type AuditError struct {
	PredictionID string
	Cause        error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("record prediction %s: %v", e.PredictionID, e.Cause)
}

func (e *AuditError) Unwrap() error { return e.Cause }

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    *zap.Logger
	Now    func() time.Time

	dispatcher *pipeline.Dispatcher
	adapters   map[domain.WorkflowID]*classifier.Adapter
}

// New wires every enabled workflow of the catalog to an adapter over loader.
// Models are not loaded until LoadModels or the first prediction.
func New(db *sql.DB, cfg *config.Config, log *zap.Logger, loader classifier.Loader) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Events:     events.Writer{DB: db},
		Config:     cfg,
		Log:        log,
		Now:        time.Now,
		dispatcher: pipeline.NewDispatcher(),
		adapters:   map[domain.WorkflowID]*classifier.Adapter{},
	}
	for _, entry := range catalog.All() {
		id := entry.Workflow.ID
		wc := cfg.Workflow(id)
		if !wc.On() {
			continue
		}
		handle := wc.Model
		if handle == "" {
			handle = entry.DefaultModel
		}
		a := classifier.NewAdapter(handle, loader, classifier.Normalizer(entry.Normalize))
		e.adapters[id] = a
		e.dispatcher.Register(entry.Workflow, a)
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// resolve maps a workflow name to an enabled workflow.
func (e Engine) resolve(name string) (domain.WorkflowID, error) {
	id, err := domain.ParseWorkflowID(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", pipeline.ErrUnknownWorkflow, name)
	}
	if e.dispatcher == nil || !e.dispatcher.Has(id) {
		return "", fmt.Errorf("%w: %s", ErrWorkflowDisabled, id)
	}
	return id, nil
}

// WorkflowInfo describes one catalog workflow and its model state.
type WorkflowInfo struct {
	ID            domain.WorkflowID  `json:"id"`
	Title         string             `json:"title"`
	Enabled       bool               `json:"enabled"`
	MissingPolicy string             `json:"missing_policy"`
	Fields        []domain.FieldSpec `json:"fields"`
	Labels        []domain.Label     `json:"labels"`
	Model         *classifier.Status `json:"model,omitempty"`
}

// Workflows lists every catalog workflow, disabled ones included.
func (e Engine) Workflows() []WorkflowInfo {
	out := make([]WorkflowInfo, 0, len(domain.WorkflowIDs))
	for _, entry := range catalog.All() {
		out = append(out, e.info(entry))
	}
	return out
}

func (e Engine) Workflow(name string) (WorkflowInfo, error) {
	id, err := domain.ParseWorkflowID(name)
	if err != nil {
		return WorkflowInfo{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownWorkflow, name)
	}
	entry, err := catalog.Get(id)
	if err != nil {
		return WorkflowInfo{}, err
	}
	return e.info(entry), nil
}

func (e Engine) info(entry catalog.Entry) WorkflowInfo {
	w := entry.Workflow
	info := WorkflowInfo{
		ID:            w.ID,
		Title:         w.Title,
		MissingPolicy: string(w.Schema.MissingPolicy),
		Fields:        w.Schema.Fields,
		Labels:        w.Labels,
	}
	if a, ok := e.adapters[w.ID]; ok {
		info.Enabled = true
		st := a.Status()
		info.Model = &st
	}
	return info
}

// Handles returns the model handle of every enabled workflow.
func (e Engine) Handles() map[domain.WorkflowID]string {
	out := make(map[domain.WorkflowID]string, len(e.adapters))
	for id, a := range e.adapters {
		out[id] = a.Handle()
	}
	return out
}

type PredictOptions struct {
	Workflow string
	Input    domain.RawInput
	ActorID  string
}

// Predict runs one questionnaire through its workflow. The outcome is always
// populated for a known, enabled workflow; the error is reserved for unknown
// workflows and audit write failures; the latter come back as *AuditError
// together with the outcome.
func (e Engine) Predict(ctx context.Context, opts PredictOptions) (domain.PredictionOutcome, domain.Prediction, error) {
	id, err := e.resolve(opts.Workflow)
	if err != nil {
		return domain.PredictionOutcome{}, domain.Prediction{}, err
	}
	actor := strings.TrimSpace(opts.ActorID)
	if actor == "" {
		actor = "local-user"
	}
	start := e.now()
	res, err := e.dispatcher.Run(ctx, id, opts.Input)
	if err != nil {
		return domain.PredictionOutcome{}, domain.Prediction{}, err
	}
	outcome := res.Outcome
	p := domain.Prediction{
		ID:         uuid.NewString(),
		Workflow:   id,
		ActorID:    actor,
		Label:      string(outcome.Label),
		Verdict:    outcome.Verdict,
		Model:      e.adapters[id].Handle(),
		DurationMS: e.now().Sub(start).Milliseconds(),
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	evtType := events.PredictionSucceeded
	switch {
	case outcome.Success:
		p.Status = repo.StatusSucceeded
	case outcome.Failure != nil && outcome.Failure.Kind == domain.FailureInvalidInput:
		p.Status = repo.StatusRejected
		evtType = events.PredictionRejected
	default:
		p.Status = repo.StatusFailed
		evtType = events.PredictionFailed
	}
	if outcome.Failure != nil {
		p.FailureCode = outcome.Failure.Code
		p.FailureText = outcome.Failure.Message
	}
	e.logOutcome(p, res.Err)

	if e.Config.History.Enabled && e.Config.History.StoreInputs {
		data, err := json.Marshal(opts.Input)
		if err != nil {
			return outcome, p, &AuditError{PredictionID: p.ID, Cause: fmt.Errorf("marshal input: %w", err)}
		}
		p.InputJSON = string(data)
	}
	if err := e.record(ctx, p, evtType); err != nil {
		e.log().Error("prediction not recorded", zap.String("prediction_id", p.ID), zap.Error(err))
		return outcome, p, &AuditError{PredictionID: p.ID, Cause: err}
	}
	return outcome, p, nil
}

// logOutcome separates user mistakes from deployment defects: the first are
// routine, the second need an operator.
func (e Engine) logOutcome(p domain.Prediction, err error) {
	fields := []zap.Field{
		zap.String("prediction_id", p.ID),
		zap.String("workflow", string(p.Workflow)),
		zap.String("status", p.Status),
		zap.Int64("duration_ms", p.DurationMS),
	}
	switch {
	case err == nil:
		e.log().Info("prediction succeeded", append(fields, zap.String("label", p.Label))...)
	case pipeline.IsConfigDrift(err):
		e.log().Error("prediction failed", append(fields,
			zap.Bool("config_drift", true),
			zap.String("code", p.FailureCode),
			zap.String("model", p.Model),
			zap.Error(err))...)
	case p.Status == repo.StatusRejected:
		e.log().Info("prediction rejected", append(fields, zap.String("code", p.FailureCode), zap.String("field", fieldOf(err)))...)
	default:
		e.log().Warn("prediction failed", append(fields, zap.String("code", p.FailureCode), zap.Error(err))...)
	}
}

func fieldOf(err error) string {
	if f := pipeline.FailureOf(err); f != nil {
		return f.Field
	}
	return ""
}

func (e Engine) record(ctx context.Context, p domain.Prediction, evtType string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if e.Config.History.Enabled {
		if err := e.Repo.InsertPrediction(ctx, tx, p); err != nil {
			return err
		}
	}
	payload := events.EventPayload{"status": p.Status}
	if p.Label != "" {
		payload["label"] = p.Label
	}
	if p.FailureCode != "" {
		payload["failure_code"] = p.FailureCode
	}
	if err := e.Events.Append(ctx, tx, events.Event{
		Type:       evtType,
		Workflow:   string(p.Workflow),
		EntityKind: "prediction",
		EntityID:   p.ID,
		ActorID:    p.ActorID,
		Payload:    payload,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadModels loads every enabled workflow's model concurrently. Individual
// load failures are not returned: they stick on the adapter and show up in
// the statuses.
func (e Engine) LoadModels(ctx context.Context, actorID string) ([]WorkflowInfo, error) {
	type result struct {
		id  domain.WorkflowID
		err error
	}
	ids := make([]domain.WorkflowID, 0, len(e.adapters))
	for _, w := range e.dispatcher.Workflows() {
		ids = append(ids, w.ID)
	}
	results := make([]result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		a := e.adapters[id]
		g.Go(func() error {
			results[i] = result{id: id, err: a.Load(gctx)}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	infos := make([]WorkflowInfo, 0, len(results))
	for _, r := range results {
		if err := e.modelEvent(ctx, r.id, actorID, r.err); err != nil {
			return nil, err
		}
		info, err := e.Workflow(string(r.id))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ReloadModel discards and reloads one workflow's model.
func (e Engine) ReloadModel(ctx context.Context, name, actorID string) (WorkflowInfo, error) {
	id, err := e.resolve(name)
	if err != nil {
		return WorkflowInfo{}, err
	}
	loadErr := e.adapters[id].Reload(ctx)
	if err := e.modelEvent(ctx, id, actorID, loadErr); err != nil {
		return WorkflowInfo{}, err
	}
	info, err := e.Workflow(string(id))
	if err != nil {
		return WorkflowInfo{}, err
	}
	return info, loadErr
}

func (e Engine) modelEvent(ctx context.Context, id domain.WorkflowID, actorID string, loadErr error) error {
	handle := e.adapters[id].Handle()
	evt := events.Event{
		Type:       events.ModelLoaded,
		Workflow:   string(id),
		EntityKind: "model",
		EntityID:   handle,
		ActorID:    actorID,
		Payload:    events.EventPayload{"handle": handle},
	}
	if loadErr != nil {
		evt.Type = events.ModelUnavailable
		evt.Payload["error"] = loadErr.Error()
		e.log().Error("model unavailable", zap.String("workflow", string(id)), zap.String("model", handle), zap.Bool("config_drift", true), zap.Error(loadErr))
	} else {
		e.log().Info("model loaded", zap.String("workflow", string(id)), zap.String("model", handle))
	}
	return e.Events.Append(ctx, nil, evt)
}

// CreateAPIKey mints a random key for actorID. The plaintext key is returned
// once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name, role, createdBy string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor_id required")
	}
	if role == "" {
		role = auth.RoleService
	}
	if err := auth.ValidateRole(role); err != nil {
		return domain.APIKey{}, "", err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	plain := "hb_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		Role:      role,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Events.Append(ctx, tx, events.Event{
		Type:       events.APIKeyCreated,
		EntityKind: "api_key",
		EntityID:   key.ID,
		ActorID:    createdBy,
		Payload:    events.EventPayload{"actor_id": actorID, "role": role},
	}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}

// RevokeAPIKey deletes a key and records who lost access in the same
// transaction.
func (e Engine) RevokeAPIKey(ctx context.Context, id, revokedBy string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	key, err := e.Repo.DeleteAPIKey(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.Event{
		Type:       events.APIKeyRevoked,
		EntityKind: "api_key",
		EntityID:   id,
		ActorID:    revokedBy,
		Payload:    events.EventPayload{"actor_id": key.ActorID, "role": key.Role},
	}); err != nil {
		return err
	}
	return tx.Commit()
}
