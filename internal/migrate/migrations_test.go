package migrate_test

import (
	"context"
	"testing"

	"healthbridge/internal/db"
	"healthbridge/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if v, err := migrate.Version(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh db version %d %v", v, err)
	}
	latest, err := migrate.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	for i := 0; i < 2; i++ {
		v, err := migrate.Migrate(ctx, conn)
		if err != nil {
			t.Fatalf("migrate #%d: %v", i, err)
		}
		if v != latest {
			t.Fatalf("migrate #%d ended at %d, want %d", i, v, latest)
		}
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO predictions(id,workflow,actor_id,status,model,created_at) VALUES ('p1','stroke','tester','succeeded','models/x.yml','2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO predictions(id,workflow,actor_id,status,created_at) VALUES ('p2','stroke','tester','maybe','2026-01-01T00:00:00Z')`); err == nil {
		t.Fatalf("status check constraint not enforced")
	}
}
