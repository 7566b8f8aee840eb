package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/dock"
)

type assignmentCreatePayload struct {
	RampID   int64      `json:"ramp_id" binding:"required"`
	LoadID   int64      `json:"load_id" binding:"required"`
	StatusID int64      `json:"status_id" binding:"required"`
	EtaIn    *time.Time `json:"eta_in"`
	EtaOut   *time.Time `json:"eta_out"`
}

// Version is a pointer so a missing version is distinguishable from zero
// and rejected before the guard ever runs.
type assignmentUpdatePayload struct {
	Version  *int64     `json:"version" binding:"required"`
	RampID   *int64     `json:"ramp_id"`
	LoadID   *int64     `json:"load_id"`
	StatusID *int64     `json:"status_id"`
	EtaIn    *time.Time `json:"eta_in"`
	EtaOut   *time.Time `json:"eta_out"`
}

type conflictResponsePayload struct {
	CurrentVersion  int64 `json:"current_version"`
	ProvidedVersion int64 `json:"provided_version"`
	CurrentData     any   `json:"current_data"`
}

func (h *httpHandler) handleListAssignments(c *gin.Context) {
	var direction *dock.Direction
	if raw := c.Query("direction"); raw != "" {
		parsed, err := dock.ParseDirection(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
			return
		}
		direction = &parsed
	}

	limit := int(parseQueryInt64(c, "limit"))
	offset := int(parseQueryInt64(c, "offset"))

	details, err := h.dock.ListAssignments(c.Request.Context(), direction, limit, offset)
	if err != nil {
		h.logger.Error("failed to list assignments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *httpHandler) handleGetAssignment(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	detail, err := h.dock.GetAssignment(c.Request.Context(), id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleCreateAssignment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request assignmentCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	detail, err := h.dock.CreateAssignment(c.Request.Context(), actor, dock.AssignmentInput{
		RampID:   request.RampID,
		LoadID:   request.LoadID,
		StatusID: request.StatusID,
		EtaIn:    request.EtaIn,
		EtaOut:   request.EtaOut,
	})
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to create assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *httpHandler) handleUpdateAssignment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	var request assignmentUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	result, err := h.dock.UpdateAssignment(c.Request.Context(), actor, id, dock.AssignmentPatch{
		Version:  *request.Version,
		RampID:   request.RampID,
		LoadID:   request.LoadID,
		StatusID: request.StatusID,
		EtaIn:    request.EtaIn,
		EtaOut:   request.EtaOut,
	})
	if errors.Is(err, dock.ErrVersionRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to update assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}

	if !result.Accepted {
		c.JSON(http.StatusConflict, conflictResponsePayload{
			CurrentVersion:  result.Conflict.CurrentVersion,
			ProvidedVersion: result.Conflict.AttemptedVersion,
			CurrentData:     result.Conflict.Current,
		})
		return
	}
	c.JSON(http.StatusOK, result.Assignment)
}

func (h *httpHandler) handleDeleteAssignment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	err := h.dock.DeleteAssignment(c.Request.Context(), actor, id)
	if dock.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func parsePathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

func parseQueryInt64(c *gin.Context, name string) int64 {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
