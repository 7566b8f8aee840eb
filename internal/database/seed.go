package database

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/auth"
	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/users"
)

// Seed populates an empty database with a demo facility: accounts, the
// R1-R8 ramp bank split inbound/outbound, the status ladder and a day of
// loads. A database that already has users is left untouched.
func Seed(db *gorm.DB, logger *zap.Logger) error {
	var existing int64
	if err := db.Model(&users.User{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		if logger != nil {
			logger.Info("database already seeded, skipping")
		}
		return nil
	}

	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		accounts := []struct {
			email    string
			fullName string
			password string
			role     users.Role
		}{
			{"admin@dcdock.com", "Admin User", "admin123", users.RoleAdmin},
			{"operator1@dcdock.com", "John Operator", "operator123", users.RoleOperator},
			{"operator2@dcdock.com", "Jane Operator", "operator123", users.RoleOperator},
		}
		for _, account := range accounts {
			hash, err := auth.HashPassword(account.password)
			if err != nil {
				return err
			}
			user := users.User{
				Email:        account.email,
				FullName:     account.fullName,
				PasswordHash: hash,
				Role:         account.role,
				IsActive:     true,
				Version:      1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}

		ramps := []dock.Ramp{
			{Code: "R1", Description: "Ramp 1 - Inbound Loading Bay A", Direction: dock.DirectionInbound},
			{Code: "R2", Description: "Ramp 2 - Inbound Loading Bay A", Direction: dock.DirectionInbound},
			{Code: "R3", Description: "Ramp 3 - Inbound Loading Bay B", Direction: dock.DirectionInbound},
			{Code: "R4", Description: "Ramp 4 - Inbound Loading Bay B", Direction: dock.DirectionInbound, Type: dock.RampTypeBuffer},
			{Code: "R5", Description: "Ramp 5 - Outbound Bay C", Direction: dock.DirectionOutbound},
			{Code: "R6", Description: "Ramp 6 - Outbound Bay C", Direction: dock.DirectionOutbound},
			{Code: "R7", Description: "Ramp 7 - Outbound Bay D", Direction: dock.DirectionOutbound},
			{Code: "R8", Description: "Ramp 8 - Outbound Bay D", Direction: dock.DirectionOutbound, Type: dock.RampTypeBuffer},
		}
		for i := range ramps {
			ramps[i].Type = defaultRampType(ramps[i].Type)
			ramps[i].Version = 1
			ramps[i].CreatedAt = now
			ramps[i].UpdatedAt = now
			if err := tx.Create(&ramps[i]).Error; err != nil {
				return err
			}
		}

		statuses := []dock.Status{
			{Code: "PLANNED", Label: "Planned", Color: "blue", SortOrder: 1},
			{Code: "ARRIVED", Label: "Arrived", Color: "cyan", SortOrder: 2},
			{Code: "IN_PROGRESS", Label: "In Progress", Color: "yellow", SortOrder: 3},
			{Code: "DELAYED", Label: "Delayed", Color: "orange", SortOrder: 4},
			{Code: "COMPLETED", Label: "Completed", Color: "green", SortOrder: 5},
			{Code: "CANCELLED", Label: "Cancelled", Color: "red", SortOrder: 6},
		}
		for i := range statuses {
			statuses[i].Version = 1
			statuses[i].CreatedAt = now
			statuses[i].UpdatedAt = now
			if err := tx.Create(&statuses[i]).Error; err != nil {
				return err
			}
		}

		loads := []dock.Load{
			{Reference: "IB-2026-001", Direction: dock.DirectionInbound, Notes: "Electronics from Supplier A"},
			{Reference: "IB-2026-002", Direction: dock.DirectionInbound, Notes: "Furniture from Supplier B"},
			{Reference: "OB-2026-001", Direction: dock.DirectionOutbound, Notes: "Retail replenishment, Region North"},
			{Reference: "OB-2026-002", Direction: dock.DirectionOutbound, Notes: "Export container, Port of Hamburg"},
		}
		for i := range loads {
			arrival := now.Add(time.Duration(i+1) * time.Hour)
			departure := arrival.Add(2 * time.Hour)
			loads[i].PlannedArrival = &arrival
			loads[i].PlannedDeparture = &departure
			loads[i].Version = 1
			loads[i].CreatedAt = now
			loads[i].UpdatedAt = now
			if err := tx.Create(&loads[i]).Error; err != nil {
				return err
			}
		}

		if logger != nil {
			logger.Info("database seeded",
				zap.Int("users", len(accounts)),
				zap.Int("ramps", len(ramps)),
				zap.Int("statuses", len(statuses)),
				zap.Int("loads", len(loads)))
		}
		return nil
	})
}

func defaultRampType(t dock.RampType) dock.RampType {
	if t == "" {
		return dock.RampTypePrime
	}
	return t
}
