package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	PredictionSucceeded = "prediction.succeeded"
	PredictionRejected  = "prediction.rejected"
	PredictionFailed    = "prediction.failed"
	ModelLoaded         = "model.loaded"
	ModelUnavailable    = "model.unavailable"
	APIKeyCreated       = "apikey.created"
	APIKeyRevoked       = "apikey.revoked"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Event is one row to append; Workflow and EntityID may be empty.
type Event struct {
	Type       string
	Workflow   string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    EventPayload
}

// Append writes evt inside tx. A nil tx writes directly to the DB.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evt Event) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if evt.Type == "" || evt.EntityKind == "" {
		return fmt.Errorf("event type and entity kind are required")
	}
	if evt.ActorID == "" {
		evt.ActorID = "system"
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if evt.Payload == nil {
		evt.Payload = EventPayload{}
	}
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	query := `INSERT INTO events(ts,type,workflow,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`
	args := []any{ts, evt.Type, nullable(evt.Workflow), evt.EntityKind, nullable(evt.EntityID), evt.ActorID, string(data)}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, query, args...)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
