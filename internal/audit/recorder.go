package audit

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Action values stored on audit entries.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Log is the persisted audit trail entry capturing before/after snapshots
// of a mutated entity.
type Log struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"id"`
	UserID     int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	EntityType string    `gorm:"column:entity_type;size:50;not null;index" json:"entity_type"`
	EntityID   int64     `gorm:"column:entity_id;not null;index" json:"entity_id"`
	Action     string    `gorm:"column:action;size:50;not null" json:"action"`
	BeforeJSON string    `gorm:"column:before_json;type:text" json:"before_json"`
	AfterJSON  string    `gorm:"column:after_json;type:text" json:"after_json"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Log) TableName() string {
	return "audit_logs"
}

// Entry describes one mutation to record. Before and After are serialized
// to JSON; either may be nil (creation has no before, deletion no after).
type Entry struct {
	UserID     int64
	EntityType string
	EntityID   int64
	Action     string
	Before     any
	After      any
}

// Recorder writes audit entries inside the caller's transaction so a
// rolled-back write leaves no trail.
type Recorder struct {
	clock func() time.Time
}

// NewRecorder constructs a Recorder. A nil clock defaults to time.Now.
func NewRecorder(clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{clock: clock}
}

// Record persists one audit entry using the provided transaction handle.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	beforeJSON, err := marshalSnapshot(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(entry.After)
	if err != nil {
		return err
	}

	row := Log{
		UserID:     entry.UserID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
		CreatedAt:  r.clock().UTC(),
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func marshalSnapshot(snapshot any) (string, error) {
	if snapshot == nil {
		return "", nil
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Query narrows List results.
type Query struct {
	EntityType string
	EntityID   int64
	UserID     int64
	Limit      int
	Offset     int
}

const defaultListLimit = 100

// List returns audit entries, newest first.
func List(ctx context.Context, db *gorm.DB, query Query) ([]Log, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	scoped := db.WithContext(ctx).Model(&Log{})
	if query.EntityType != "" {
		scoped = scoped.Where("entity_type = ?", query.EntityType)
	}
	if query.EntityID > 0 {
		scoped = scoped.Where("entity_id = ?", query.EntityID)
	}
	if query.UserID > 0 {
		scoped = scoped.Where("user_id = ?", query.UserID)
	}

	var logs []Log
	err := scoped.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(query.Offset).
		Find(&logs).Error
	return logs, err
}
