package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"healthbridge/internal/db"
	"healthbridge/internal/domain"
	"healthbridge/internal/events"
	"healthbridge/internal/migrate"
	"healthbridge/internal/repo"
)

func setupRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func TestPredictionsPaginateNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		wf := domain.WorkflowStroke
		status := repo.StatusSucceeded
		if i%2 == 1 {
			wf = domain.WorkflowObesity
			status = repo.StatusRejected
		}
		p := domain.Prediction{
			ID:        fmt.Sprintf("p%d", i),
			Workflow:  wf,
			ActorID:   "tester",
			Status:    status,
			Label:     "positive",
			CreatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
		if err := r.InsertPrediction(ctx, nil, p); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	page, err := r.ListPredictions(ctx, repo.PredictionFilters{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "p4" || page[1].ID != "p3" {
		t.Fatalf("unexpected first page %+v", page)
	}
	last := page[len(page)-1]
	page, err = r.ListPredictions(ctx, repo.PredictionFilters{Limit: 2, CursorCreatedAt: last.CreatedAt, CursorID: last.ID})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page) != 2 || page[0].ID != "p2" || page[1].ID != "p1" {
		t.Fatalf("unexpected second page %+v", page)
	}

	strokes, err := r.ListPredictions(ctx, repo.PredictionFilters{Workflow: domain.WorkflowStroke})
	if err != nil || len(strokes) != 3 {
		t.Fatalf("expected 3 stroke predictions, got %d %v", len(strokes), err)
	}
	counts, err := r.CountPredictionsByStatus(ctx, "")
	if err != nil || counts[repo.StatusSucceeded] != 3 || counts[repo.StatusRejected] != 2 {
		t.Fatalf("unexpected counts %v %v", counts, err)
	}

	got, err := r.GetPrediction(ctx, "p0")
	if err != nil || got.Workflow != domain.WorkflowStroke || got.Label != "positive" || got.Verdict != "" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := r.GetPrediction(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.InsertPrediction(ctx, nil, domain.Prediction{ID: "bad", Status: "maybe"}); err == nil {
		t.Fatalf("expected invalid status to be rejected")
	}
}

func TestEventsCursor(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	w := events.Writer{DB: r.DB}
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		for i, typ := range []string{events.ModelLoaded, events.PredictionSucceeded, events.PredictionRejected} {
			if err := w.Append(ctx, tx, events.Event{
				Type:       typ,
				Workflow:   "stroke",
				EntityKind: "prediction",
				EntityID:   fmt.Sprintf("p%d", i),
				Payload:    events.EventPayload{"i": i},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	latest, err := r.LatestEventID(ctx)
	if err != nil || latest != 3 {
		t.Fatalf("latest id %d %v", latest, err)
	}
	after, err := r.EventsAfter(ctx, 10, 1)
	if err != nil || len(after) != 2 || after[0].Type != events.PredictionSucceeded {
		t.Fatalf("events after: %+v %v", after, err)
	}
	if after[0].ActorID != "system" || after[0].Workflow != "stroke" {
		t.Fatalf("unexpected event %+v", after[0])
	}
	recent, err := r.LatestEvents(ctx, repo.EventFilters{Type: events.PredictionRejected})
	if err != nil || len(recent) != 1 || recent[0].EntityID != "p2" {
		t.Fatalf("latest filtered: %+v %v", recent, err)
	}
}

func TestAPIKeys(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	key := domain.APIKey{ID: "k1", ActorID: "alice", Name: "ci", Role: "clinician", KeyHash: repo.HashAPIKey(" secret "), CreatedAt: "2026-01-01T00:00:00Z"}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatalf("insert: %v", err)
	}
	plain := key
	plain.ID, plain.KeyHash = "k2", "secret"
	if err := r.InsertAPIKey(ctx, nil, plain); err == nil {
		t.Fatalf("expected unhashed key to be rejected")
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("secret"))
	if err != nil || got.ActorID != "alice" || got.Name != "ci" || got.Role != "clinician" {
		t.Fatalf("get by hash: %+v %v", got, err)
	}
	keys, err := r.ListAPIKeys(ctx, "bob")
	if err != nil || len(keys) != 0 {
		t.Fatalf("list for other actor: %+v %v", keys, err)
	}
	removed, err := r.DeleteAPIKey(ctx, nil, "k1")
	if err != nil || removed.ActorID != "alice" || removed.Role != "clinician" {
		t.Fatalf("delete: %+v %v", removed, err)
	}
	if _, err := r.DeleteAPIKey(ctx, nil, "k1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func withTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
