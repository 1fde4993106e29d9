package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/services"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

const defaultReadyTimeout = 5 * time.Second

// QueryController serves reads from the caller's live tenant cache. Every read first waits
// for the cache's initial snapshot, bounded by readyTimeout.
type QueryController struct {
	queryService services.QueryServiceInterface
	readyTimeout time.Duration
	logger       logger.Logger
}

func NewQueryController(queryService services.QueryServiceInterface, readyTimeout time.Duration, logger logger.Logger) *QueryController {
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	return &QueryController{
		queryService: queryService,
		readyTimeout: readyTimeout,
		logger:       logger,
	}
}

// ready waits for the tenant cache and writes a 503 when it cannot serve
func (h *QueryController) ready(c *gin.Context) (context.Context, bool) {
	ctx := c.Request.Context()
	waitCtx, cancel := context.WithTimeout(ctx, h.readyTimeout)
	defer cancel()

	if err := h.queryService.WaitReady(waitCtx); err != nil {
		respondError(c, h.logger, "Contact cache is not ready", err)
		return nil, false
	}
	return ctx, true
}

func includeInactive(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("includeInactive"))
	return v
}

// GetOrganization handles GET /api/v1/contacts/organizations/:id
// @Summary Get an organization with its persons
// @Tags Contacts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Organization ID"
// @Param includeInactive query bool false "Include dissociated persons"
// @Success 200 {object} models.APIResponse "Organization retrieved successfully"
// @Failure 404 {object} models.APIResponse "Not Found"
// @Failure 503 {object} models.APIResponse "Service Unavailable - Cache not ready"
// @Router /contacts/organizations/{id} [get]
func (h *QueryController) GetOrganization(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	id := c.Param("id")
	view, err := h.queryService.OrganizationWithPersons(ctx, id, includeInactive(c))
	if err != nil {
		respondError(c, h.logger, "Failed to get organization", err)
		return
	}
	if view == nil {
		respondError(c, h.logger, "Organization not found", models.NewNotFoundError("organization", id))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Organization retrieved successfully", view))
}

// GetPerson handles GET /api/v1/contacts/persons/:id
func (h *QueryController) GetPerson(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	id := c.Param("id")
	view, err := h.queryService.PersonWithOrganizations(ctx, id, includeInactive(c))
	if err != nil {
		respondError(c, h.logger, "Failed to get person", err)
		return
	}
	if view == nil {
		respondError(c, h.logger, "Person not found", models.NewNotFoundError("person", id))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Person retrieved successfully", view))
}

// GetActiveContacts handles GET /api/v1/contacts/organizations/:id/contacts
func (h *QueryController) GetActiveContacts(c *gin.Context) {
	var filter models.ActiveContactsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindError(c, err)
		return
	}
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	contacts, err := h.queryService.ActiveContacts(ctx, c.Param("id"), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list active contacts", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Active contacts retrieved successfully", contacts))
}

// GetUnaffiliatedPersons handles GET /api/v1/contacts/persons/unaffiliated
func (h *QueryController) GetUnaffiliatedPersons(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	persons, err := h.queryService.UnaffiliatedPersons(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to list unaffiliated persons", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Unaffiliated persons retrieved successfully", persons))
}

// Search handles POST /api/v1/contacts/search
// @Summary Search organizations and persons
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.SearchParams true "Search parameters"
// @Success 200 {object} models.APIResponse "Search completed"
// @Router /contacts/search [post]
func (h *QueryController) Search(c *gin.Context) {
	var params models.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		bindError(c, err)
		return
	}
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	result, err := h.queryService.Search(ctx, params)
	if err != nil {
		respondError(c, h.logger, "Search failed", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Search completed", result))
}

// GetStatistics handles GET /api/v1/contacts/statistics
func (h *QueryController) GetStatistics(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	stats, err := h.queryService.Statistics(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to compute statistics", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Statistics computed successfully", stats))
}

// GetOrganizationStatistics handles GET /api/v1/contacts/organizations/:id/statistics
func (h *QueryController) GetOrganizationStatistics(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	stats, err := h.queryService.OrganizationStatistics(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to compute organization statistics", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Statistics computed successfully", stats))
}

// ListOrganizations handles GET /api/v1/contacts/organizations
func (h *QueryController) ListOrganizations(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	organizations, err := h.queryService.Organizations(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to list organizations", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Organizations retrieved successfully", organizations))
}

// ListPersons handles GET /api/v1/contacts/persons
func (h *QueryController) ListPersons(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	persons, err := h.queryService.Persons(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to list persons", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Persons retrieved successfully", persons))
}

// ListLinks handles GET /api/v1/contacts/links
func (h *QueryController) ListLinks(c *gin.Context) {
	ctx, ok := h.ready(c)
	if !ok {
		return
	}

	links, err := h.queryService.Links(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to list links", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Links retrieved successfully", links))
}

// GetCacheStatus handles GET /api/v1/contacts/cache/status. It never waits for readiness.
func (h *QueryController) GetCacheStatus(c *gin.Context) {
	statuses, err := h.queryService.Statuses(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to get cache status", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Cache status retrieved successfully", statuses))
}

// ReactivateCache handles POST /api/v1/contacts/cache/reactivate
func (h *QueryController) ReactivateCache(c *gin.Context) {
	statuses, err := h.queryService.Reactivate(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to reactivate cache", err)
		return
	}

	h.logger.Info("Tenant cache reactivated")
	c.JSON(http.StatusAccepted, models.SuccessResponse(http.StatusAccepted, "Cache reactivation started", statuses))
}
