package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

type sagaSummary struct {
	SagaID   string   `json:"saga_id"`
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id"`
	Steps    []string `json:"steps"`
}

func (s *Server) handleListSagas(c echo.Context) error {
	active := s.sagas.Active()
	response := map[string]any{
		"active": active,
		"count":  len(active),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write saga list: %w", err)
	}
	return nil
}

// handleGetSaga reports the immutable parts of a running saga. Progress
// fields are owned by the executing goroutine and are not exposed.
func (s *Server) handleGetSaga(c echo.Context) error {
	sagaID := c.Param("id")
	sg, ok := s.sagas.Get(sagaID)
	if !ok {
		return apperrors.NotFoundError("saga not running").WithField("saga_id", sagaID)
	}

	steps := make([]string, len(sg.Steps))
	for i, step := range sg.Steps {
		steps[i] = step.ID
	}

	summary := sagaSummary{
		SagaID:   sg.SagaID,
		TenantID: sg.TenantID.String(),
		UserID:   sg.UserID.String(),
		Steps:    steps,
	}
	if err := c.JSON(http.StatusOK, summary); err != nil {
		return fmt.Errorf("failed to write saga: %w", err)
	}
	return nil
}
