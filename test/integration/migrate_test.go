//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/schoolhealth/nurse-console/internal/platform/db"
)

func TestMigrator_UpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := db.NewMigrator(testPool, db.Migrations())

	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected no pending migrations after TestMain, applied %d", applied)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected migrations in status")
	}
	for _, st := range statuses {
		if !st.Applied || st.AppliedAt == nil {
			t.Errorf("migration %03d_%s not applied", st.Version, st.Name)
		}
	}
}

func TestCheck_ReportsHealthyPool(t *testing.T) {
	stats, err := db.Check(context.Background(), testPool)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !stats.Healthy || stats.MaxConns != 5 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
