package dock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/audit"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingRecorder = errors.New("audit recorder is required")
	noOpLogger         = zap.NewNop()

	// ErrVersionRequired indicates an update was attempted without the
	// caller's last observed version. Rejected before the guard runs.
	ErrVersionRequired = errors.New("dock: version is required for updates")
)

// ServiceError wraps a failure with a stable operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "dock.service.new"
	opCreateAssignment = "dock.create_assignment"
	opUpdateAssignment = "dock.update_assignment"
	opDeleteAssignment = "dock.delete_assignment"
	opGetAssignment    = "dock.get_assignment"
	opListAssignments  = "dock.list_assignments"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

const entityTypeAssignment = "assignment"

// ServiceConfig describes the dependencies of the dock service.
type ServiceConfig struct {
	Database *gorm.DB
	Recorder *audit.Recorder
	Notifier Notifier
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the dock entities and the guarded write path.
type Service struct {
	db       *gorm.DB
	recorder *audit.Recorder
	notifier Notifier
	clock    func() time.Time
	logger   *zap.Logger
}

// NewService constructs the dock service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Recorder == nil {
		return nil, newServiceError(opServiceNew, "missing_recorder", errMissingRecorder)
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:       cfg.Database,
		recorder: cfg.Recorder,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// AssignmentInput carries the fields required to create an assignment.
type AssignmentInput struct {
	RampID   int64
	LoadID   int64
	StatusID int64
	EtaIn    *time.Time
	EtaOut   *time.Time
}

// AssignmentPatch describes a partial update. Nil pointers leave the field
// untouched. Version is the version the caller last observed.
type AssignmentPatch struct {
	Version  int64
	RampID   *int64
	LoadID   *int64
	StatusID *int64
	EtaIn    *time.Time
	EtaOut   *time.Time
}

// ListAssignments returns assignments with relations resolved, optionally
// filtered by the load's direction.
func (s *Service) ListAssignments(ctx context.Context, direction *Direction, limit, offset int) ([]AssignmentDetail, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&Assignment{})
	if direction != nil {
		query = query.
			Joins("JOIN loads ON loads.id = assignments.load_id").
			Where("loads.direction = ?", *direction)
	}

	var rows []Assignment
	if err := query.Order("assignments.created_at DESC, assignments.id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, newServiceError(opListAssignments, "query_failed", err)
	}

	details := make([]AssignmentDetail, 0, len(rows))
	for _, row := range rows {
		detail, err := resolveDetail(s.db.WithContext(ctx), row)
		if err != nil {
			return nil, newServiceError(opListAssignments, "resolve_failed", err)
		}
		details = append(details, detail)
	}
	return details, nil
}

// GetAssignment returns one assignment with its relations resolved.
func (s *Service) GetAssignment(ctx context.Context, id int64) (AssignmentDetail, error) {
	detail, err := fetchAssignmentDetail(s.db.WithContext(ctx), id)
	if err != nil {
		if IsNotFound(err) {
			return AssignmentDetail{}, err
		}
		return AssignmentDetail{}, newServiceError(opGetAssignment, "query_failed", err)
	}
	return detail, nil
}

// CreateAssignment validates references, persists the assignment at
// version 1, records the audit trail and broadcasts a created event.
func (s *Service) CreateAssignment(ctx context.Context, actor Actor, input AssignmentInput) (AssignmentDetail, error) {
	var detail AssignmentDetail

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := fetchRamp(tx, input.RampID); err != nil {
			return err
		}
		if _, err := fetchLoad(tx, input.LoadID); err != nil {
			return err
		}
		if _, err := fetchStatus(tx, input.StatusID); err != nil {
			return err
		}

		now := s.clock().UTC()
		assignment := Assignment{
			RampID:    input.RampID,
			LoadID:    input.LoadID,
			StatusID:  input.StatusID,
			EtaIn:     input.EtaIn,
			EtaOut:    input.EtaOut,
			Version:   1,
			CreatedBy: actor.ID,
			UpdatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return newServiceError(opCreateAssignment, "insert_failed", err)
		}

		entry := audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeAssignment,
			EntityID:   assignment.ID,
			Action:     audit.ActionCreate,
			After:      assignment,
		}
		if err := s.recorder.Record(ctx, tx, entry); err != nil {
			return newServiceError(opCreateAssignment, "audit_failed", err)
		}

		resolved, err := resolveDetail(tx, assignment)
		if err != nil {
			return err
		}
		detail = resolved
		return nil
	})
	if txErr != nil {
		s.logWriteError(opCreateAssignment, txErr, zap.Int64("ramp_id", input.RampID))
		return AssignmentDetail{}, txErr
	}

	s.notifier.AssignmentCreated(actor, detail)
	return detail, nil
}

// UpdateAssignment applies a guarded update. References named in the patch
// are validated before any version logic runs; the version comparison and
// increment are one atomic statement. A mismatch yields a conflict result,
// never an error, and triggers a conflict advisory broadcast.
func (s *Service) UpdateAssignment(ctx context.Context, actor Actor, id int64, patch AssignmentPatch) (UpdateResult, error) {
	if patch.Version <= 0 {
		return UpdateResult{}, ErrVersionRequired
	}

	var (
		result   UpdateResult
		conflict *VersionConflict
	)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := fetchAssignment(tx, id)
		if err != nil {
			return err
		}

		if patch.RampID != nil {
			if _, err := fetchRamp(tx, *patch.RampID); err != nil {
				return err
			}
		}
		if patch.LoadID != nil {
			if _, err := fetchLoad(tx, *patch.LoadID); err != nil {
				return err
			}
		}
		if patch.StatusID != nil {
			if _, err := fetchStatus(tx, *patch.StatusID); err != nil {
				return err
			}
		}

		updates := map[string]any{
			"updated_by": actor.ID,
			"updated_at": s.clock().UTC(),
		}
		if patch.RampID != nil {
			updates["ramp_id"] = *patch.RampID
		}
		if patch.LoadID != nil {
			updates["load_id"] = *patch.LoadID
		}
		if patch.StatusID != nil {
			updates["status_id"] = *patch.StatusID
		}
		if patch.EtaIn != nil {
			updates["eta_in"] = *patch.EtaIn
		}
		if patch.EtaOut != nil {
			updates["eta_out"] = *patch.EtaOut
		}

		applied, err := guardedUpdate(tx, &Assignment{}, id, patch.Version, updates)
		if err != nil {
			return newServiceError(opUpdateAssignment, "update_failed", err)
		}
		if !applied {
			current, err := fetchAssignmentDetail(tx, id)
			if err != nil {
				return err
			}
			conflict = &VersionConflict{
				AssignmentID:     id,
				CurrentVersion:   current.Version,
				AttemptedVersion: patch.Version,
				Current:          current,
			}
			result = UpdateResult{Accepted: false, Conflict: conflict}
			return nil
		}

		after, err := fetchAssignment(tx, id)
		if err != nil {
			return err
		}

		entry := audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeAssignment,
			EntityID:   id,
			Action:     audit.ActionUpdate,
			Before:     before,
			After:      after,
		}
		if err := s.recorder.Record(ctx, tx, entry); err != nil {
			return newServiceError(opUpdateAssignment, "audit_failed", err)
		}

		resolved, err := resolveDetail(tx, after)
		if err != nil {
			return err
		}
		result = UpdateResult{Accepted: true, Assignment: &resolved}
		return nil
	})
	if txErr != nil {
		s.logWriteError(opUpdateAssignment, txErr, zap.Int64("assignment_id", id))
		return UpdateResult{}, txErr
	}

	if result.Accepted {
		s.notifier.AssignmentUpdated(actor, *result.Assignment)
	} else if conflict != nil {
		s.notifier.AssignmentConflict(*conflict)
	}
	return result, nil
}

// DeleteAssignment removes the assignment unconditionally and broadcasts
// a deleted event. No version check applies to deletion.
func (s *Service) DeleteAssignment(ctx context.Context, actor Actor, id int64) error {
	var detail AssignmentDetail

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := fetchAssignmentDetail(tx, id)
		if err != nil {
			return err
		}
		detail = resolved

		entry := audit.Entry{
			UserID:     actor.ID,
			EntityType: entityTypeAssignment,
			EntityID:   id,
			Action:     audit.ActionDelete,
			Before:     resolved.Assignment,
		}
		if err := s.recorder.Record(ctx, tx, entry); err != nil {
			return newServiceError(opDeleteAssignment, "audit_failed", err)
		}

		if err := tx.Where("id = ?", id).Delete(&Assignment{}).Error; err != nil {
			return newServiceError(opDeleteAssignment, "delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logWriteError(opDeleteAssignment, txErr, zap.Int64("assignment_id", id))
		return txErr
	}

	s.notifier.AssignmentDeleted(actor, detail)
	return nil
}

func (s *Service) logWriteError(operation string, err error, fields ...zap.Field) {
	if IsNotFound(err) {
		return
	}
	attrs := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("dock service error", attrs...)
}
