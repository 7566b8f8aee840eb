package dock

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/audit"
)

// ErrStatusInUse indicates a status cannot be deleted while assignments
// still reference it.
var ErrStatusInUse = errors.New("dock: status is referenced by assignments")

const (
	entityTypeRamp   = "ramp"
	entityTypeLoad   = "load"
	entityTypeStatus = "status"
)

const (
	opCreateRamp   = "dock.create_ramp"
	opUpdateRamp   = "dock.update_ramp"
	opDeleteRamp   = "dock.delete_ramp"
	opCreateLoad   = "dock.create_load"
	opUpdateLoad   = "dock.update_load"
	opDeleteLoad   = "dock.delete_load"
	opCreateStatus = "dock.create_status"
	opUpdateStatus = "dock.update_status"
	opDeleteStatus = "dock.delete_status"
)

// RampInput carries the fields required to create a ramp.
type RampInput struct {
	Code        string
	Description string
	Direction   Direction
	Type        RampType
}

// RampPatch describes a partial ramp update.
type RampPatch struct {
	Version     int64
	Code        *string
	Description *string
	Direction   *Direction
	Type        *RampType
}

// LoadInput carries the fields required to create a load.
type LoadInput struct {
	Reference        string
	Direction        Direction
	PlannedArrival   *time.Time
	PlannedDeparture *time.Time
	Notes            string
}

// LoadPatch describes a partial load update.
type LoadPatch struct {
	Version          int64
	Reference        *string
	Direction        *Direction
	PlannedArrival   *time.Time
	PlannedDeparture *time.Time
	Notes            *string
}

// StatusInput carries the fields required to create a status.
type StatusInput struct {
	Code      string
	Label     string
	Color     string
	SortOrder int
}

// StatusPatch describes a partial status update.
type StatusPatch struct {
	Version   int64
	Code      *string
	Label     *string
	Color     *string
	SortOrder *int
}

// ListRamps returns all ramps ordered by code.
func (s *Service) ListRamps(ctx context.Context) ([]Ramp, error) {
	var ramps []Ramp
	err := s.db.WithContext(ctx).Order("code ASC").Find(&ramps).Error
	return ramps, err
}

// ListLoads returns all loads ordered by reference.
func (s *Service) ListLoads(ctx context.Context) ([]Load, error) {
	var loads []Load
	err := s.db.WithContext(ctx).Order("reference ASC").Find(&loads).Error
	return loads, err
}

// ListStatuses returns all statuses in display order.
func (s *Service) ListStatuses(ctx context.Context) ([]Status, error) {
	var statuses []Status
	err := s.db.WithContext(ctx).Order("sort_order ASC, code ASC").Find(&statuses).Error
	return statuses, err
}

// GetRamp returns one ramp by id.
func (s *Service) GetRamp(ctx context.Context, id int64) (Ramp, error) {
	return fetchRamp(s.db.WithContext(ctx), id)
}

// GetLoad returns one load by id.
func (s *Service) GetLoad(ctx context.Context, id int64) (Load, error) {
	return fetchLoad(s.db.WithContext(ctx), id)
}

// GetStatus returns one status by id.
func (s *Service) GetStatus(ctx context.Context, id int64) (Status, error) {
	return fetchStatus(s.db.WithContext(ctx), id)
}

// CreateRamp persists a ramp at version 1 and records the audit trail.
func (s *Service) CreateRamp(ctx context.Context, actor Actor, input RampInput) (Ramp, error) {
	now := s.clock().UTC()
	ramp := Ramp{
		Code:        input.Code,
		Description: input.Description,
		Direction:   input.Direction,
		Type:        input.Type,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ramp.Type == "" {
		ramp.Type = RampTypePrime
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ramp).Error; err != nil {
			return newServiceError(opCreateRamp, "insert_failed", err)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeRamp,
			EntityID:   ramp.ID,
			Action:     audit.ActionCreate,
			After:      ramp,
		})
	})
	if txErr != nil {
		return Ramp{}, txErr
	}
	return ramp, nil
}

// UpdateRamp applies a guarded ramp update. The same version semantics
// apply as for assignments even though ramps are rarely contended.
func (s *Service) UpdateRamp(ctx context.Context, actor Actor, id int64, patch RampPatch) (*Ramp, *EntityConflict, error) {
	if patch.Version <= 0 {
		return nil, nil, ErrVersionRequired
	}

	var (
		updated  Ramp
		conflict *EntityConflict
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchRamp(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": s.clock().UTC()}
		if patch.Code != nil {
			updates["code"] = *patch.Code
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Direction != nil {
			updates["direction"] = *patch.Direction
		}
		if patch.Type != nil {
			updates["type"] = *patch.Type
		}

		applied, err := guardedUpdate(tx, &Ramp{}, id, patch.Version, updates)
		if err != nil {
			return newServiceError(opUpdateRamp, "update_failed", err)
		}
		if !applied {
			current, err := fetchRamp(tx, id)
			if err != nil {
				return err
			}
			conflict = &EntityConflict{
				CurrentVersion:   current.Version,
				AttemptedVersion: patch.Version,
				Current:          current,
			}
			return nil
		}

		updated, err = fetchRamp(tx, id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeRamp,
			EntityID:   id,
			Action:     audit.ActionUpdate,
			Before:     before,
			After:      updated,
		})
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	if conflict != nil {
		return nil, conflict, nil
	}
	return &updated, nil, nil
}

// DeleteRamp removes a ramp together with the assignments bound to it.
// Each removed assignment is broadcast as deleted so boards stay in sync.
func (s *Service) DeleteRamp(ctx context.Context, actor Actor, id int64) error {
	return s.deleteWithAssignments(ctx, actor, entityTypeRamp, id, "ramp_id", opDeleteRamp, func(tx *gorm.DB) (any, error) {
		return fetchRamp(tx, id)
	}, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&Ramp{}).Error
	})
}

// CreateLoad persists a load at version 1 and records the audit trail.
func (s *Service) CreateLoad(ctx context.Context, actor Actor, input LoadInput) (Load, error) {
	now := s.clock().UTC()
	load := Load{
		Reference:        input.Reference,
		Direction:        input.Direction,
		PlannedArrival:   input.PlannedArrival,
		PlannedDeparture: input.PlannedDeparture,
		Notes:            input.Notes,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&load).Error; err != nil {
			return newServiceError(opCreateLoad, "insert_failed", err)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeLoad,
			EntityID:   load.ID,
			Action:     audit.ActionCreate,
			After:      load,
		})
	})
	if txErr != nil {
		return Load{}, txErr
	}
	return load, nil
}

// UpdateLoad applies a guarded load update.
func (s *Service) UpdateLoad(ctx context.Context, actor Actor, id int64, patch LoadPatch) (*Load, *EntityConflict, error) {
	if patch.Version <= 0 {
		return nil, nil, ErrVersionRequired
	}

	var (
		updated  Load
		conflict *EntityConflict
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchLoad(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": s.clock().UTC()}
		if patch.Reference != nil {
			updates["reference"] = *patch.Reference
		}
		if patch.Direction != nil {
			updates["direction"] = *patch.Direction
		}
		if patch.PlannedArrival != nil {
			updates["planned_arrival"] = *patch.PlannedArrival
		}
		if patch.PlannedDeparture != nil {
			updates["planned_departure"] = *patch.PlannedDeparture
		}
		if patch.Notes != nil {
			updates["notes"] = *patch.Notes
		}

		applied, err := guardedUpdate(tx, &Load{}, id, patch.Version, updates)
		if err != nil {
			return newServiceError(opUpdateLoad, "update_failed", err)
		}
		if !applied {
			current, err := fetchLoad(tx, id)
			if err != nil {
				return err
			}
			conflict = &EntityConflict{
				CurrentVersion:   current.Version,
				AttemptedVersion: patch.Version,
				Current:          current,
			}
			return nil
		}

		updated, err = fetchLoad(tx, id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeLoad,
			EntityID:   id,
			Action:     audit.ActionUpdate,
			Before:     before,
			After:      updated,
		})
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	if conflict != nil {
		return nil, conflict, nil
	}
	return &updated, nil, nil
}

// DeleteLoad removes a load together with the assignments bound to it.
func (s *Service) DeleteLoad(ctx context.Context, actor Actor, id int64) error {
	return s.deleteWithAssignments(ctx, actor, entityTypeLoad, id, "load_id", opDeleteLoad, func(tx *gorm.DB) (any, error) {
		return fetchLoad(tx, id)
	}, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&Load{}).Error
	})
}

// CreateStatus persists a status at version 1 and records the audit trail.
func (s *Service) CreateStatus(ctx context.Context, actor Actor, input StatusInput) (Status, error) {
	now := s.clock().UTC()
	status := Status{
		Code:      input.Code,
		Label:     input.Label,
		Color:     input.Color,
		SortOrder: input.SortOrder,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&status).Error; err != nil {
			return newServiceError(opCreateStatus, "insert_failed", err)
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeStatus,
			EntityID:   status.ID,
			Action:     audit.ActionCreate,
			After:      status,
		})
	})
	if txErr != nil {
		return Status{}, txErr
	}
	return status, nil
}

// UpdateStatus applies a guarded status update.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id int64, patch StatusPatch) (*Status, *EntityConflict, error) {
	if patch.Version <= 0 {
		return nil, nil, ErrVersionRequired
	}

	var (
		updated  Status
		conflict *EntityConflict
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchStatus(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": s.clock().UTC()}
		if patch.Code != nil {
			updates["code"] = *patch.Code
		}
		if patch.Label != nil {
			updates["label"] = *patch.Label
		}
		if patch.Color != nil {
			updates["color"] = *patch.Color
		}
		if patch.SortOrder != nil {
			updates["sort_order"] = *patch.SortOrder
		}

		applied, err := guardedUpdate(tx, &Status{}, id, patch.Version, updates)
		if err != nil {
			return newServiceError(opUpdateStatus, "update_failed", err)
		}
		if !applied {
			current, err := fetchStatus(tx, id)
			if err != nil {
				return err
			}
			conflict = &EntityConflict{
				CurrentVersion:   current.Version,
				AttemptedVersion: patch.Version,
				Current:          current,
			}
			return nil
		}

		updated, err = fetchStatus(tx, id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeStatus,
			EntityID:   id,
			Action:     audit.ActionUpdate,
			Before:     before,
			After:      updated,
		})
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	if conflict != nil {
		return nil, conflict, nil
	}
	return &updated, nil, nil
}

// DeleteStatus removes a status. Statuses still referenced by assignments
// are protected; the caller must reassign first.
func (s *Service) DeleteStatus(ctx context.Context, actor Actor, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchStatus(tx, id)
		if err != nil {
			return err
		}

		var referencing int64
		if err := tx.Model(&Assignment{}).Where("status_id = ?", id).Count(&referencing).Error; err != nil {
			return newServiceError(opDeleteStatus, "count_failed", err)
		}
		if referencing > 0 {
			return ErrStatusInUse
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeStatus,
			EntityID:   id,
			Action:     audit.ActionDelete,
			Before:     before,
		}); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Status{}).Error
	})
}

// deleteWithAssignments removes a lookup row and cascades over the
// assignments referencing it, auditing every removed row. Deleted events
// for the cascaded assignments fire only after the transaction commits.
func (s *Service) deleteWithAssignments(
	ctx context.Context,
	actor Actor,
	entityType string,
	id int64,
	column string,
	operation string,
	fetchBefore func(tx *gorm.DB) (any, error),
	deleteRow func(tx *gorm.DB) error,
) error {
	var removed []AssignmentDetail

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchBefore(tx)
		if err != nil {
			return err
		}

		var dependents []Assignment
		if err := tx.Where(column+" = ?", id).Find(&dependents).Error; err != nil {
			return newServiceError(operation, "dependents_query_failed", err)
		}
		for _, dependent := range dependents {
			detail, err := resolveDetail(tx, dependent)
			if err != nil {
				return err
			}
			if err := s.recorder.Record(ctx, tx, audit.Entry{
				UserID:     actor.ID,
				EntityType: entityTypeAssignment,
				EntityID:   dependent.ID,
				Action:     audit.ActionDelete,
				Before:     dependent,
			}); err != nil {
				return err
			}
			removed = append(removed, detail)
		}
		if len(dependents) > 0 {
			if err := tx.Where(column+" = ?", id).Delete(&Assignment{}).Error; err != nil {
				return newServiceError(operation, "cascade_failed", err)
			}
		}

		if err := s.recorder.Record(ctx, tx, audit.Entry{
			UserID:     actor.ID,
			EntityType: entityType,
			EntityID:   id,
			Action:     audit.ActionDelete,
			Before:     before,
		}); err != nil {
			return err
		}
		return deleteRow(tx)
	})
	if txErr != nil {
		return txErr
	}

	for _, detail := range removed {
		s.notifier.AssignmentDeleted(actor, detail)
	}
	return nil
}
