package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/dock"
)

type rampCreatePayload struct {
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
	Direction   string `json:"direction" binding:"required"`
	Type        string `json:"type"`
}

type rampUpdatePayload struct {
	Version     *int64  `json:"version" binding:"required"`
	Code        *string `json:"code"`
	Description *string `json:"description"`
	Direction   *string `json:"direction"`
	Type        *string `json:"type"`
}

type loadCreatePayload struct {
	Reference        string     `json:"reference" binding:"required"`
	Direction        string     `json:"direction" binding:"required"`
	PlannedArrival   *time.Time `json:"planned_arrival"`
	PlannedDeparture *time.Time `json:"planned_departure"`
	Notes            string     `json:"notes"`
}

type loadUpdatePayload struct {
	Version          *int64     `json:"version" binding:"required"`
	Reference        *string    `json:"reference"`
	Direction        *string    `json:"direction"`
	PlannedArrival   *time.Time `json:"planned_arrival"`
	PlannedDeparture *time.Time `json:"planned_departure"`
	Notes            *string    `json:"notes"`
}

type statusCreatePayload struct {
	Code      string `json:"code" binding:"required"`
	Label     string `json:"label" binding:"required"`
	Color     string `json:"color" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

type statusUpdatePayload struct {
	Version   *int64  `json:"version" binding:"required"`
	Code      *string `json:"code"`
	Label     *string `json:"label"`
	Color     *string `json:"color"`
	SortOrder *int    `json:"sort_order"`
}

func (h *httpHandler) handleListRamps(c *gin.Context) {
	ramps, err := h.dock.ListRamps(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list ramps", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, ramps)
}

func (h *httpHandler) handleGetRamp(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	ramp, err := h.dock.GetRamp(c.Request.Context(), id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ramp not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load ramp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, ramp)
}

func (h *httpHandler) handleCreateRamp(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request rampCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	direction, err := dock.ParseDirection(request.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
		return
	}
	rampType := dock.RampTypePrime
	if request.Type != "" {
		rampType, err = dock.ParseRampType(request.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ramp_type"})
			return
		}
	}

	ramp, err := h.dock.CreateRamp(c.Request.Context(), actor, dock.RampInput{
		Code:        request.Code,
		Description: request.Description,
		Direction:   direction,
		Type:        rampType,
	})
	if err != nil {
		h.logger.Error("failed to create ramp", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, ramp)
}

func (h *httpHandler) handleUpdateRamp(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	var request rampUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	patch := dock.RampPatch{
		Version:     *request.Version,
		Code:        request.Code,
		Description: request.Description,
	}
	if request.Direction != nil {
		direction, err := dock.ParseDirection(*request.Direction)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
			return
		}
		patch.Direction = &direction
	}
	if request.Type != nil {
		rampType, err := dock.ParseRampType(*request.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ramp_type"})
			return
		}
		patch.Type = &rampType
	}

	ramp, conflict, err := h.dock.UpdateRamp(c.Request.Context(), actor, id, patch)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ramp not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update ramp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, conflictResponsePayload{
			CurrentVersion:  conflict.CurrentVersion,
			ProvidedVersion: conflict.AttemptedVersion,
			CurrentData:     conflict.Current,
		})
		return
	}
	c.JSON(http.StatusOK, ramp)
}

func (h *httpHandler) handleDeleteRamp(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	err := h.dock.DeleteRamp(c.Request.Context(), actor, id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ramp not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete ramp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListLoads(c *gin.Context) {
	loads, err := h.dock.ListLoads(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list loads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, loads)
}

func (h *httpHandler) handleGetLoad(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	load, err := h.dock.GetLoad(c.Request.Context(), id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "load not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load load", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, load)
}

func (h *httpHandler) handleCreateLoad(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request loadCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	direction, err := dock.ParseDirection(request.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
		return
	}

	load, err := h.dock.CreateLoad(c.Request.Context(), actor, dock.LoadInput{
		Reference:        request.Reference,
		Direction:        direction,
		PlannedArrival:   request.PlannedArrival,
		PlannedDeparture: request.PlannedDeparture,
		Notes:            request.Notes,
	})
	if err != nil {
		h.logger.Error("failed to create load", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, load)
}

func (h *httpHandler) handleUpdateLoad(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	var request loadUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	patch := dock.LoadPatch{
		Version:          *request.Version,
		Reference:        request.Reference,
		PlannedArrival:   request.PlannedArrival,
		PlannedDeparture: request.PlannedDeparture,
		Notes:            request.Notes,
	}
	if request.Direction != nil {
		direction, err := dock.ParseDirection(*request.Direction)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
			return
		}
		patch.Direction = &direction
	}

	load, conflict, err := h.dock.UpdateLoad(c.Request.Context(), actor, id, patch)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "load not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update load", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, conflictResponsePayload{
			CurrentVersion:  conflict.CurrentVersion,
			ProvidedVersion: conflict.AttemptedVersion,
			CurrentData:     conflict.Current,
		})
		return
	}
	c.JSON(http.StatusOK, load)
}

func (h *httpHandler) handleDeleteLoad(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	err := h.dock.DeleteLoad(c.Request.Context(), actor, id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "load not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete load", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListStatuses(c *gin.Context) {
	statuses, err := h.dock.ListStatuses(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list statuses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (h *httpHandler) handleGetStatus(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	status, err := h.dock.GetStatus(c.Request.Context(), id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *httpHandler) handleCreateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request statusCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	status, err := h.dock.CreateStatus(c.Request.Context(), actor, dock.StatusInput{
		Code:      request.Code,
		Label:     request.Label,
		Color:     request.Color,
		SortOrder: request.SortOrder,
	})
	if err != nil {
		h.logger.Error("failed to create status", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, status)
}

func (h *httpHandler) handleUpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	var request statusUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	status, conflict, err := h.dock.UpdateStatus(c.Request.Context(), actor, id, dock.StatusPatch{
		Version:   *request.Version,
		Code:      request.Code,
		Label:     request.Label,
		Color:     request.Color,
		SortOrder: request.SortOrder,
	})
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, conflictResponsePayload{
			CurrentVersion:  conflict.CurrentVersion,
			ProvidedVersion: conflict.AttemptedVersion,
			CurrentData:     conflict.Current,
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *httpHandler) handleDeleteStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	err := h.dock.DeleteStatus(c.Request.Context(), actor, id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
		return
	}
	if errors.Is(err, dock.ErrStatusInUse) {
		c.JSON(http.StatusConflict, gin.H{"error": "status is referenced by assignments"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
