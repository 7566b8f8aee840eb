package dock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction marks whether freight moves into or out of the facility.
type Direction string

const (
	// DirectionInbound marks freight arriving at the facility.
	DirectionInbound Direction = "IB"
	// DirectionOutbound marks freight leaving the facility.
	DirectionOutbound Direction = "OB"
)

// RampType distinguishes gate-area ramps from overflow buffer ramps.
type RampType string

const (
	// RampTypePrime is a ramp in the gate area.
	RampTypePrime RampType = "PRIME"
	// RampTypeBuffer is an overflow ramp.
	RampTypeBuffer RampType = "BUFFER"
)

var (
	// ErrInvalidDirection indicates a direction value outside IB/OB.
	ErrInvalidDirection = errors.New("dock: invalid direction")
	// ErrInvalidRampType indicates a ramp type outside PRIME/BUFFER.
	ErrInvalidRampType = errors.New("dock: invalid ramp type")
)

// ParseDirection validates raw input and returns a Direction.
func ParseDirection(rawValue string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(rawValue))) {
	case DirectionInbound:
		return DirectionInbound, nil
	case DirectionOutbound:
		return DirectionOutbound, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, rawValue)
	}
}

// ParseRampType validates raw input and returns a RampType.
func ParseRampType(rawValue string) (RampType, error) {
	switch RampType(strings.ToUpper(strings.TrimSpace(rawValue))) {
	case RampTypePrime:
		return RampTypePrime, nil
	case RampTypeBuffer:
		return RampTypeBuffer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRampType, rawValue)
	}
}

// Ramp is a physical loading dock.
type Ramp struct {
	ID          int64     `gorm:"column:id;primaryKey" json:"id"`
	Code        string    `gorm:"column:code;size:50;uniqueIndex;not null" json:"code"`
	Description string    `gorm:"column:description;size:255" json:"description"`
	Direction   Direction `gorm:"column:direction;size:2;not null;index:idx_ramps_direction" json:"direction"`
	Type        RampType  `gorm:"column:type;size:10;not null;default:PRIME" json:"type"`
	Version     int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Ramp) TableName() string {
	return "ramps"
}

// Load is a truck or shipment scheduled against the facility.
type Load struct {
	ID               int64      `gorm:"column:id;primaryKey" json:"id"`
	Reference        string     `gorm:"column:reference;size:100;uniqueIndex;not null" json:"reference"`
	Direction        Direction  `gorm:"column:direction;size:2;not null;index:idx_loads_direction" json:"direction"`
	PlannedArrival   *time.Time `gorm:"column:planned_arrival" json:"planned_arrival"`
	PlannedDeparture *time.Time `gorm:"column:planned_departure" json:"planned_departure"`
	Notes            string     `gorm:"column:notes;type:text" json:"notes"`
	Version          int64      `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Load) TableName() string {
	return "loads"
}

// Status is a lookup entry describing an assignment's progress.
type Status struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Code      string    `gorm:"column:code;size:50;uniqueIndex;not null" json:"code"`
	Label     string    `gorm:"column:label;size:100;not null" json:"label"`
	Color     string    `gorm:"column:color;size:50;not null" json:"color"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	Version   int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Status) TableName() string {
	return "statuses"
}

// Assignment binds a load to a ramp with a current status. It is the
// contended entity guarded by the version column.
type Assignment struct {
	ID        int64      `gorm:"column:id;primaryKey" json:"id"`
	RampID    int64      `gorm:"column:ramp_id;not null;index" json:"ramp_id"`
	LoadID    int64      `gorm:"column:load_id;not null;index" json:"load_id"`
	StatusID  int64      `gorm:"column:status_id;not null;index:idx_assignments_status_ramp,priority:1" json:"status_id"`
	EtaIn     *time.Time `gorm:"column:eta_in" json:"eta_in"`
	EtaOut    *time.Time `gorm:"column:eta_out" json:"eta_out"`
	Version   int64      `gorm:"column:version;not null;default:1" json:"version"`
	CreatedBy int64      `gorm:"column:created_by;not null" json:"created_by"`
	UpdatedBy int64      `gorm:"column:updated_by;not null" json:"updated_by"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Assignment) TableName() string {
	return "assignments"
}

// UserRef is a read-only projection of the users table embedded in
// detail views so subscribers can render without a second fetch.
type UserRef struct {
	ID       int64  `gorm:"column:id;primaryKey" json:"id"`
	Email    string `gorm:"column:email" json:"email"`
	FullName string `gorm:"column:full_name" json:"full_name"`
}

// TableName binds the projection to the users table.
func (UserRef) TableName() string {
	return "users"
}

// AssignmentDetail is an assignment with its relations resolved.
type AssignmentDetail struct {
	Assignment
	Ramp    Ramp    `gorm:"-" json:"ramp"`
	Load    Load    `gorm:"-" json:"load"`
	Status  Status  `gorm:"-" json:"status"`
	Creator UserRef `gorm:"-" json:"creator"`
	Updater UserRef `gorm:"-" json:"updater"`
}
