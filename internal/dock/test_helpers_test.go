package dock

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/audit"
)

// testUser mirrors the users table closely enough for foreign-key rows
// without importing the users package into dock's tests.
type testUser struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Email    string `gorm:"column:email"`
	FullName string `gorm:"column:full_name"`
}

func (testUser) TableName() string {
	return "users"
}

type captureNotifier struct {
	created   []AssignmentDetail
	updated   []AssignmentDetail
	deleted   []AssignmentDetail
	conflicts []VersionConflict
}

func (n *captureNotifier) AssignmentCreated(actor Actor, detail AssignmentDetail) {
	n.created = append(n.created, detail)
}

func (n *captureNotifier) AssignmentUpdated(actor Actor, detail AssignmentDetail) {
	n.updated = append(n.updated, detail)
}

func (n *captureNotifier) AssignmentDeleted(actor Actor, detail AssignmentDetail) {
	n.deleted = append(n.deleted, detail)
}

func (n *captureNotifier) AssignmentConflict(conflict VersionConflict) {
	n.conflicts = append(n.conflicts, conflict)
}

type fixtures struct {
	actor    Actor
	rampID   int64
	loadID   int64
	statusID int64
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *captureNotifier, fixtures) {
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

	if err := db.AutoMigrate(&testUser{}, &Ramp{}, &Load{}, &Status{}, &Assignment{}, &audit.Log{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	notifier := &captureNotifier{}
	service, err := NewService(ServiceConfig{
		Database: db,
		Recorder: audit.NewRecorder(time.Now),
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	user := testUser{Email: "operator@example.com", FullName: "Test Operator"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	ramp := Ramp{Code: "R1", Direction: DirectionInbound, Type: RampTypePrime, Version: 1}
	if err := db.Create(&ramp).Error; err != nil {
		t.Fatalf("failed to seed ramp: %v", err)
	}
	load := Load{Reference: "IB-2026-001", Direction: DirectionInbound, Version: 1}
	if err := db.Create(&load).Error; err != nil {
		t.Fatalf("failed to seed load: %v", err)
	}
	status := Status{Code: "PLANNED", Label: "Planned", Color: "#2563eb", SortOrder: 1, Version: 1}
	if err := db.Create(&status).Error; err != nil {
		t.Fatalf("failed to seed status: %v", err)
	}

	return service, db, notifier, fixtures{
		actor:    Actor{ID: user.ID, Email: user.Email},
		rampID:   ramp.ID,
		loadID:   load.ID,
		statusID: status.ID,
	}
}

func countAuditRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&audit.Log{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count audit rows: %v", err)
	}
	return count
}
