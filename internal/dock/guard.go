package dock

import (
	"gorm.io/gorm"
)

// VersionConflict reports a rejected assignment write together with the
// authoritative state the caller needs to retry.
type VersionConflict struct {
	AssignmentID     int64
	CurrentVersion   int64
	AttemptedVersion int64
	Current          AssignmentDetail
}

// UpdateResult is the outcome of a guarded assignment update. Exactly one
// of Assignment and Conflict is populated.
type UpdateResult struct {
	Accepted   bool
	Assignment *AssignmentDetail
	Conflict   *VersionConflict
}

// EntityConflict reports a version mismatch on a lookup entity. Current
// holds the stored row so the caller can surface authoritative state.
type EntityConflict struct {
	CurrentVersion   int64
	AttemptedVersion int64
	Current          any
}

// guardedUpdate performs the atomic check-and-increment. The WHERE clause
// carries both id and expected version so no second writer can slip in
// between the check and the write; the affected row count is the success
// signal. The version column always advances by exactly one.
func guardedUpdate(tx *gorm.DB, model any, id, expectedVersion int64, updates map[string]any) (bool, error) {
	updates["version"] = gorm.Expr("version + 1")
	result := tx.Model(model).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
