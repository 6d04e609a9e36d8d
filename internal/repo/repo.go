package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"healthbridge/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const (
	StatusSucceeded = "succeeded"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

const predictionColumns = `id,workflow,actor_id,status,COALESCE(label,''),COALESCE(verdict,''),COALESCE(failure_code,''),COALESCE(failure_text,''),COALESCE(input_json,''),COALESCE(model,''),COALESCE(duration_ms,0),created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (domain.Prediction, error) {
	var p domain.Prediction
	err := row.Scan(&p.ID, &p.Workflow, &p.ActorID, &p.Status, &p.Label, &p.Verdict, &p.FailureCode, &p.FailureText, &p.InputJSON, &p.Model, &p.DurationMS, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// InsertPrediction stores an audit row. A nil tx writes directly to the DB.
func (r Repo) InsertPrediction(ctx context.Context, tx *sql.Tx, p domain.Prediction) error {
	if p.ID == "" {
		return errors.New("id required")
	}
	switch p.Status {
	case StatusSucceeded, StatusRejected, StatusFailed:
	default:
		return fmt.Errorf("invalid prediction status %q", p.Status)
	}
	query := `INSERT INTO predictions(id,workflow,actor_id,status,label,verdict,failure_code,failure_text,input_json,model,duration_ms,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	args := []any{p.ID, string(p.Workflow), p.ActorID, p.Status, nullable(p.Label), nullable(p.Verdict),
		nullable(p.FailureCode), nullable(p.FailureText), nullable(p.InputJSON), nullable(p.Model), p.DurationMS, p.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.DB.ExecContext(ctx, query, args...)
	}
	return err
}

func (r Repo) GetPrediction(ctx context.Context, id string) (domain.Prediction, error) {
	return scanPrediction(r.DB.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id=?`, id))
}

type PredictionFilters struct {
	Workflow        domain.WorkflowID
	Status          string
	ActorID         string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListPredictions returns predictions newest first. The cursor is the
// (created_at, id) of the last row of the previous page.
func (r Repo) ListPredictions(ctx context.Context, f PredictionFilters) ([]domain.Prediction, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Workflow != "" {
		clauses = append(clauses, "workflow=?")
		args = append(args, string(f.Workflow))
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CountPredictionsByStatus returns prediction counts per status for a
// workflow, or for all workflows when id is empty.
func (r Repo) CountPredictionsByStatus(ctx context.Context, id domain.WorkflowID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM predictions`
	var args []any
	if id != "" {
		query += ` WHERE workflow=?`
		args = append(args, string(id))
	}
	query += ` GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		res[status] = n
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

type EventFilters struct {
	Workflow   string
	Type       string
	EntityKind string
	EntityID   string
	Limit      int
	// Before pages backwards from an event id.
	Before int64
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Workflow != "" {
		clauses = append(clauses, "workflow=?")
		args = append(args, f.Workflow)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(workflow,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,COALESCE(workflow,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Workflow, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
