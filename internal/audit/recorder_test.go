package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type snapshotRow struct {
	Code    string `json:"code"`
	Version int64  `json:"version"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Log{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestRecorderSerializesSnapshots(t *testing.T) {
	db := newTestDB(t)
	stamp := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	recorder := NewRecorder(func() time.Time { return stamp })

	entry := Entry{
		UserID:     7,
		EntityType: "ramp",
		EntityID:   3,
		Action:     ActionUpdate,
		Before:     snapshotRow{Code: "R1", Version: 1},
		After:      snapshotRow{Code: "R1-A", Version: 2},
	}
	if err := recorder.Record(context.Background(), db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored Log
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load audit row: %v", err)
	}
	if stored.UserID != 7 || stored.EntityType != "ramp" || stored.EntityID != 3 {
		t.Fatalf("unexpected audit row: %+v", stored)
	}
	if stored.Action != ActionUpdate {
		t.Fatalf("unexpected action: %s", stored.Action)
	}
	if !stored.CreatedAt.Equal(stamp) {
		t.Fatalf("expected clock timestamp, got %v", stored.CreatedAt)
	}

	var before snapshotRow
	if err := json.Unmarshal([]byte(stored.BeforeJSON), &before); err != nil {
		t.Fatalf("before snapshot is not valid JSON: %v", err)
	}
	if before.Code != "R1" || before.Version != 1 {
		t.Fatalf("unexpected before snapshot: %+v", before)
	}
	var after snapshotRow
	if err := json.Unmarshal([]byte(stored.AfterJSON), &after); err != nil {
		t.Fatalf("after snapshot is not valid JSON: %v", err)
	}
	if after.Code != "R1-A" || after.Version != 2 {
		t.Fatalf("unexpected after snapshot: %+v", after)
	}
}

func TestRecorderAllowsNilSnapshots(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(nil)

	if err := recorder.Record(context.Background(), db, Entry{
		UserID:     1,
		EntityType: "assignment",
		EntityID:   5,
		Action:     ActionCreate,
		After:      snapshotRow{Code: "A", Version: 1},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored Log
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load audit row: %v", err)
	}
	if stored.BeforeJSON != "" {
		t.Fatalf("creation must have no before snapshot, got %q", stored.BeforeJSON)
	}
	if stored.AfterJSON == "" {
		t.Fatalf("expected after snapshot")
	}
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	recorder := NewRecorder(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	entries := []Entry{
		{UserID: 1, EntityType: "assignment", EntityID: 10, Action: ActionCreate},
		{UserID: 2, EntityType: "assignment", EntityID: 10, Action: ActionUpdate},
		{UserID: 1, EntityType: "ramp", EntityID: 3, Action: ActionDelete},
	}
	for _, entry := range entries {
		if err := recorder.Record(context.Background(), db, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := List(context.Background(), db, Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) || !all[1].CreatedAt.After(all[2].CreatedAt) {
		t.Fatalf("expected newest first ordering: %+v", all)
	}

	assignments, err := List(context.Background(), db, Query{EntityType: "assignment", EntityID: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignment rows, got %d", len(assignments))
	}

	byUser, err := List(context.Background(), db, Query{UserID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byUser) != 1 || byUser[0].Action != ActionUpdate {
		t.Fatalf("expected the update row for user 2, got %+v", byUser)
	}

	limited, err := List(context.Background(), db, Query{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].EntityType != "assignment" {
		t.Fatalf("expected the middle row, got %+v", limited)
	}
}
