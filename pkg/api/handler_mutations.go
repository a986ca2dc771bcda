package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// dequeueRequest is the body of POST /api/queue/dequeue.
type dequeueRequest struct {
	Tenant  string `json:"tenant"`
	EntryID string `json:"entry_id"`
	Mode    string `json:"mode"` // "COMPLETE" or "UNDO"
	OpID    string `json:"op_id"`
}

// dequeueHandler handles POST /api/queue/dequeue. The tenant authenticated
// by requireAudience must match the body's tenant — a caller can't hold a
// token for tenant A and mutate tenant B by naming it in the body.
func (s *Server) dequeueHandler(c *echo.Context) error {
	instance := c.Request().URL.Path

	var req dequeueRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, invalidArgument(err.Error(), instance))
	}
	if req.Tenant == "" || req.EntryID == "" || req.OpID == "" {
		return writeProblem(c, invalidArgument("tenant, entry_id and op_id are required", instance))
	}
	if req.Tenant != authenticatedTenant(c) {
		return writeProblem(c, unauthorized("token not valid for this tenant", instance))
	}

	var cmd domain.Command
	switch req.Mode {
	case "COMPLETE":
		cmd = domain.Command{
			Type:          domain.CmdQueueComplete,
			OpID:          req.OpID,
			QueueComplete: &domain.QueueCompleteCommand{EntryID: req.EntryID},
		}
	case "UNDO":
		cmd = domain.Command{
			Type:        domain.CmdQueueRemove,
			OpID:        req.OpID,
			QueueRemove: &domain.QueueRemoveCommand{EntryID: req.EntryID, Reason: domain.ReasonUndo},
		}
	default:
		return writeProblem(c, invalidArgument("mode must be COMPLETE or UNDO", instance))
	}

	patches, err := s.exec.Execute(c.Request().Context(), req.Tenant, []domain.Command{cmd}, req.OpID)
	if err != nil {
		return writeProblem(c, problemError(err, instance))
	}

	var version int64
	userTodayCount := 0
	for _, p := range patches {
		version = p.Version
		if data, ok := p.Data.(domain.QueueRemovedData); ok {
			userTodayCount = data.UserTodayCount
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version": version,
		"result": map[string]any{
			"entry_id":         req.EntryID,
			"mode":             req.Mode,
			"user_today_count": userTodayCount,
		},
	})
}

// settingsUpdateRequest is the body of POST /api/settings/update.
type settingsUpdateRequest struct {
	Tenant string               `json:"tenant"`
	Patch  domain.SettingsPatch `json:"patch"`
	OpID   string               `json:"op_id"`
}

// settingsUpdateHandler handles POST /api/settings/update.
func (s *Server) settingsUpdateHandler(c *echo.Context) error {
	instance := c.Request().URL.Path

	var req settingsUpdateRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, invalidArgument(err.Error(), instance))
	}
	if req.Tenant == "" || req.OpID == "" {
		return writeProblem(c, invalidArgument("tenant and op_id are required", instance))
	}
	if req.Tenant != authenticatedTenant(c) {
		return writeProblem(c, unauthorized("token not valid for this tenant", instance))
	}

	cmd := domain.Command{
		Type:           domain.CmdSettingsUpdate,
		OpID:           req.OpID,
		SettingsUpdate: &domain.SettingsUpdateCommand{Patch: req.Patch},
	}

	patches, err := s.exec.Execute(c.Request().Context(), req.Tenant, []domain.Command{cmd}, req.OpID)
	if err != nil {
		return writeProblem(c, problemError(err, instance))
	}

	var version int64
	if len(patches) > 0 {
		version = patches[0].Version
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version": version,
		"result": map[string]any{
			"applied": req.Patch,
		},
	})
}
