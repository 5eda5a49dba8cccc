package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/payroll-sync/internal/api/dto"
	"github.com/spec-kit/payroll-sync/internal/auth"
	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/service"
	apperrors "github.com/spec-kit/payroll-sync/pkg/util"
)

// SyncHandler exposes the ingestion endpoint.
type SyncHandler struct {
	service *service.SyncService
}

// NewSyncHandler constructs handler.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{service: syncService}
}

// Sync POST /api/v1/employees/sync.
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	records, err := dto.ParseSyncRequest(c.Body())
	if err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}

	result, err := h.service.Sync(c.UserContext(), auth.Actor(c), dto.ToDomain(records))
	if err != nil {
		return err
	}
	if result.Rejected {
		return apperrors.NewBatchRejected("duplicate employee numbers in batch; nothing was written", rejectionDetails(result))
	}
	return c.JSON(dto.NewSyncResponse(result))
}

func rejectionDetails(result *domain.SyncResult) map[string]any {
	return map[string]any{
		"total":            result.Total,
		"processed":        0,
		"created":          0,
		"updated":          0,
		"hasErrors":        true,
		"errors":           result.Errors,
		"validationErrors": result.ValidationErrors,
	}
}

// ListRuns GET /api/v1/sync-runs.
func (h *SyncHandler) ListRuns(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	runs, err := h.service.RecentRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		errs := run.Errors
		if errs == nil {
			errs = []domain.RecordError{}
		}
		items = append(items, dto.SyncRunResponse{
			ID:        run.ID,
			Actor:     run.Actor,
			StartedAt: run.StartedAt.Format(time.RFC3339),
			Total:     run.Total,
			Created:   run.Created,
			Updated:   run.Updated,
			Rejected:  run.Rejected,
			Errors:    errs,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
