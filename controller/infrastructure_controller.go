package controller

import (
	"net/http"

	"gigbook-backend/models"
	"gigbook-backend/services"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

type InfrastructureController struct {
	service services.InfrastructureServiceInterface
	logger  logger.Logger
}

func NewInfrastructureController(service services.InfrastructureServiceInterface, logger logger.Logger) *InfrastructureController {
	return &InfrastructureController{
		service: service,
		logger:  logger,
	}
}

// GetTables handles GET /api/v1/infrastructure/tables
// @Summary Describe the contact tables
// @Description Report status, item count, indexes and stream state of every contact table
// @Tags Infrastructure
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse "Table status retrieved successfully"
// @Failure 500 {object} models.APIResponse "Internal Server Error - Failed to describe tables"
// @Router /infrastructure/tables [get]
func (h *InfrastructureController) GetTables(c *gin.Context) {
	statuses, err := h.service.TableStatuses(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to describe tables: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(http.StatusInternalServerError, "Failed to describe tables", &models.APIError{
			Type:    "InfrastructureError",
			Details: err.Error(),
		}))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Table status retrieved successfully", statuses))
}

// CheckHealth handles GET /api/v1/infrastructure/health
// @Summary Check the contact tables
// @Description Healthy when every table is active with its change stream enabled
// @Tags Infrastructure
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse "Infrastructure is healthy"
// @Failure 503 {object} models.APIResponse "Service Unavailable - Infrastructure is not ready"
// @Router /infrastructure/health [get]
func (h *InfrastructureController) CheckHealth(c *gin.Context) {
	healthy, reason, err := h.service.IsHealthy(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to check infrastructure health: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(http.StatusInternalServerError, "Failed to check infrastructure health", &models.APIError{
			Type:    "InfrastructureError",
			Details: err.Error(),
		}))
		return
	}

	data := map[string]interface{}{
		"healthy": healthy,
		"reason":  reason,
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Status:  "error",
			Code:    http.StatusServiceUnavailable,
			Message: "Infrastructure is not ready",
			Data:    data,
		})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Infrastructure is healthy", data))
}

// Provision handles POST /api/v1/infrastructure/provision
// @Summary Create the missing contact tables
// @Tags Infrastructure
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse "Provisioning completed"
// @Success 202 {object} models.APIResponse "Provisioning skipped - another worker holds the lock"
// @Failure 500 {object} models.APIResponse "Internal Server Error - Provisioning failed"
// @Router /infrastructure/provision [post]
func (h *InfrastructureController) Provision(c *gin.Context) {
	result, err := h.service.Provision(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Provisioning failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(http.StatusInternalServerError, "Provisioning failed", &models.APIError{
			Type:    "InfrastructureError",
			Details: err.Error(),
		}))
		return
	}

	if result.Skipped {
		c.JSON(http.StatusAccepted, models.SuccessResponse(http.StatusAccepted, "Provisioning skipped, another worker is running", result))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Provisioning completed", result))
}
