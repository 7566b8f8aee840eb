package dock

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrAssignmentNotFound indicates the assignment id references no row.
	ErrAssignmentNotFound = errors.New("dock: assignment not found")
	// ErrRampNotFound indicates the ramp id references no row.
	ErrRampNotFound = errors.New("dock: ramp not found")
	// ErrLoadNotFound indicates the load id references no row.
	ErrLoadNotFound = errors.New("dock: load not found")
	// ErrStatusNotFound indicates the status id references no row.
	ErrStatusNotFound = errors.New("dock: status not found")
)

// IsNotFound reports whether err is one of the entity not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrRampNotFound) ||
		errors.Is(err, ErrLoadNotFound) ||
		errors.Is(err, ErrStatusNotFound)
}

func fetchRamp(tx *gorm.DB, id int64) (Ramp, error) {
	var ramp Ramp
	err := tx.Where("id = ?", id).Take(&ramp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ramp{}, ErrRampNotFound
	}
	return ramp, err
}

func fetchLoad(tx *gorm.DB, id int64) (Load, error) {
	var load Load
	err := tx.Where("id = ?", id).Take(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Load{}, ErrLoadNotFound
	}
	return load, err
}

func fetchStatus(tx *gorm.DB, id int64) (Status, error) {
	var status Status
	err := tx.Where("id = ?", id).Take(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Status{}, ErrStatusNotFound
	}
	return status, err
}

func fetchAssignment(tx *gorm.DB, id int64) (Assignment, error) {
	var assignment Assignment
	err := tx.Where("id = ?", id).Take(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return assignment, err
}

func fetchUserRef(tx *gorm.DB, id int64) (UserRef, error) {
	var ref UserRef
	err := tx.Where("id = ?", id).Take(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRef{ID: id}, nil
	}
	return ref, err
}

// resolveDetail assembles an assignment with its relations so events and
// responses carry a complete snapshot.
func resolveDetail(tx *gorm.DB, assignment Assignment) (AssignmentDetail, error) {
	detail := AssignmentDetail{Assignment: assignment}

	ramp, err := fetchRamp(tx, assignment.RampID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	detail.Ramp = ramp

	load, err := fetchLoad(tx, assignment.LoadID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	detail.Load = load

	status, err := fetchStatus(tx, assignment.StatusID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	detail.Status = status

	creator, err := fetchUserRef(tx, assignment.CreatedBy)
	if err != nil {
		return AssignmentDetail{}, err
	}
	detail.Creator = creator

	updater, err := fetchUserRef(tx, assignment.UpdatedBy)
	if err != nil {
		return AssignmentDetail{}, err
	}
	detail.Updater = updater

	return detail, nil
}

func fetchAssignmentDetail(tx *gorm.DB, id int64) (AssignmentDetail, error) {
	assignment, err := fetchAssignment(tx, id)
	if err != nil {
		return AssignmentDetail{}, err
	}
	return resolveDetail(tx, assignment)
}
