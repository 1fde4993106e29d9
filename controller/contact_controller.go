package controller

import (
	"net/http"

	"gigbook-backend/models"
	"gigbook-backend/services"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

const associateConflictHint = "the pair is already linked: update the existing link with PATCH /contacts/links/:id"

// ContactController exposes the mutation façade. The actor comes from the request context
// populated by the auth middleware.
type ContactController struct {
	contactService services.ContactServiceInterface
	logger         logger.Logger
}

func NewContactController(contactService services.ContactServiceInterface, logger logger.Logger) *ContactController {
	return &ContactController{
		contactService: contactService,
		logger:         logger,
	}
}

// CreateOrganization handles POST /api/v1/contacts/organizations
// @Summary Create an organization
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.Organization true "Organization"
// @Success 201 {object} models.APIResponse "Organization created successfully"
// @Failure 400 {object} models.APIResponse "Bad Request - Invalid organization data"
// @Router /contacts/organizations [post]
func (h *ContactController) CreateOrganization(c *gin.Context) {
	var req models.Organization
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	organization, err := h.contactService.CreateOrganization(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to create organization", err)
		return
	}

	h.logger.Infof("Organization created: %s", organization.ID)
	c.JSON(http.StatusCreated, models.SuccessResponse(http.StatusCreated, "Organization created successfully", organization))
}

// UpdateOrganization handles PATCH /api/v1/contacts/organizations/:id
// @Summary Update an organization
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body models.OrganizationPatch true "Fields to update"
// @Success 200 {object} models.APIResponse "Organization updated successfully"
// @Failure 404 {object} models.APIResponse "Not Found"
// @Router /contacts/organizations/{id} [patch]
func (h *ContactController) UpdateOrganization(c *gin.Context) {
	var patch models.OrganizationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	organization, err := h.contactService.UpdateOrganization(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, "Failed to update organization", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Organization updated successfully", organization))
}

// SetClientStatus handles PUT /api/v1/contacts/organizations/:id/client
func (h *ContactController) SetClientStatus(c *gin.Context) {
	var req models.ClientStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	organization, err := h.contactService.SetClientStatus(c.Request.Context(), c.Param("id"), *req.IsClient)
	if err != nil {
		respondError(c, h.logger, "Failed to update client status", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Client status updated successfully", organization))
}

// UpdateOrganizationTags handles PUT /api/v1/contacts/organizations/:id/tags
func (h *ContactController) UpdateOrganizationTags(c *gin.Context) {
	var req models.TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	organization, err := h.contactService.UpdateOrganizationTags(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		respondError(c, h.logger, "Failed to update organization tags", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Organization tags updated successfully", organization))
}

// DeleteOrganization handles DELETE /api/v1/contacts/organizations/:id
// @Summary Delete an organization without links
// @Tags Contacts
// @Security BearerAuth
// @Param id path string true "Organization ID"
// @Success 200 {object} models.APIResponse "Organization deleted successfully"
// @Failure 409 {object} models.APIResponse "Conflict - Organization still has links"
// @Router /contacts/organizations/{id} [delete]
func (h *ContactController) DeleteOrganization(c *gin.Context) {
	id := c.Param("id")
	if err := h.contactService.DeleteOrganization(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "Failed to delete organization", err)
		return
	}

	h.logger.Infof("Organization deleted: %s", id)
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Organization deleted successfully", nil))
}

// CreatePerson handles POST /api/v1/contacts/persons
// @Summary Create a person
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.Person true "Person"
// @Success 201 {object} models.APIResponse "Person created successfully"
// @Failure 400 {object} models.APIResponse "Bad Request - Invalid person data"
// @Router /contacts/persons [post]
func (h *ContactController) CreatePerson(c *gin.Context) {
	var req models.Person
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	person, err := h.contactService.CreatePerson(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to create person", err)
		return
	}

	h.logger.Infof("Person created: %s", person.ID)
	c.JSON(http.StatusCreated, models.SuccessResponse(http.StatusCreated, "Person created successfully", person))
}

// UpdatePerson handles PATCH /api/v1/contacts/persons/:id
func (h *ContactController) UpdatePerson(c *gin.Context) {
	var patch models.PersonPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	person, err := h.contactService.UpdatePerson(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, "Failed to update person", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Person updated successfully", person))
}

// UpdatePersonTags handles PUT /api/v1/contacts/persons/:id/tags
func (h *ContactController) UpdatePersonTags(c *gin.Context) {
	var req models.TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	person, err := h.contactService.UpdatePersonTags(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		respondError(c, h.logger, "Failed to update person tags", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Person tags updated successfully", person))
}

// DeletePerson handles DELETE /api/v1/contacts/persons/:id
func (h *ContactController) DeletePerson(c *gin.Context) {
	id := c.Param("id")
	if err := h.contactService.DeletePerson(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "Failed to delete person", err)
		return
	}

	h.logger.Infof("Person deleted: %s", id)
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Person deleted successfully", nil))
}

// Associate handles POST /api/v1/contacts/links
// @Summary Link a person to an organization
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.AssociateRequest true "Association"
// @Success 201 {object} models.APIResponse "Link created successfully"
// @Failure 404 {object} models.APIResponse "Not Found - Organization or person missing"
// @Failure 409 {object} models.APIResponse "Conflict - An active link already exists"
// @Router /contacts/links [post]
func (h *ContactController) Associate(c *gin.Context) {
	var req models.AssociateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	link, err := h.contactService.Associate(c.Request.Context(), req.OrganizationID, req.PersonID, req.LinkDetails)
	if err != nil {
		hint := ""
		if models.IsConflict(err) {
			hint = associateConflictHint
		}
		respondErrorWithHint(c, h.logger, "Failed to link contacts", err, hint)
		return
	}

	h.logger.Infof("Link created: %s (%s - %s)", link.ID, link.OrganizationID, link.PersonID)
	c.JSON(http.StatusCreated, models.SuccessResponse(http.StatusCreated, "Link created successfully", link))
}

// BulkAssociate handles POST /api/v1/contacts/links/bulk
// @Summary Link many persons to organizations
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.BulkAssociateRequest true "Associations"
// @Success 200 {object} models.APIResponse "Bulk association completed"
// @Router /contacts/links/bulk [post]
func (h *ContactController) BulkAssociate(c *gin.Context) {
	var req models.BulkAssociateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.contactService.BulkAssociate(c.Request.Context(), req.Links)
	if err != nil {
		respondError(c, h.logger, "Failed to link contacts", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Bulk association completed", result))
}

// UpdateLink handles PATCH /api/v1/contacts/links/:id
func (h *ContactController) UpdateLink(c *gin.Context) {
	var patch models.LinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	link, err := h.contactService.UpdateLink(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, "Failed to update link", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Link updated successfully", link))
}

// Dissociate handles POST /api/v1/contacts/links/:id/dissociate
func (h *ContactController) Dissociate(c *gin.Context) {
	link, err := h.contactService.Dissociate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to dissociate contacts", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Link deactivated successfully", link))
}

// Reactivate handles POST /api/v1/contacts/links/:id/reactivate
func (h *ContactController) Reactivate(c *gin.Context) {
	link, err := h.contactService.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to reactivate link", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Link reactivated successfully", link))
}

// SetPriority handles POST /api/v1/contacts/organizations/:id/priority
// @Summary Make a person the priority contact of an organization
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body models.PriorityRequest true "Person"
// @Success 200 {object} models.APIResponse "Priority contact updated successfully"
// @Failure 404 {object} models.APIResponse "Not Found - No active link for the pair"
// @Router /contacts/organizations/{id}/priority [post]
func (h *ContactController) SetPriority(c *gin.Context) {
	var req models.PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	link, err := h.contactService.SetPriority(c.Request.Context(), c.Param("id"), req.PersonID)
	if err != nil {
		respondError(c, h.logger, "Failed to set priority contact", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Priority contact updated successfully", link))
}

// AddComment handles POST /api/v1/contacts/{organizations|persons}/:id/comments
func (h *ContactController) AddComment(kind models.ContactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		comment, err := h.contactService.AddComment(c.Request.Context(), kind, c.Param("id"), req.Content)
		if err != nil {
			respondError(c, h.logger, "Failed to add comment", err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(http.StatusCreated, "Comment added successfully", comment))
	}
}

// DeleteComment handles DELETE /api/v1/contacts/{organizations|persons}/:id/comments/:commentId
func (h *ContactController) DeleteComment(kind models.ContactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.contactService.DeleteComment(c.Request.Context(), kind, c.Param("id"), c.Param("commentId")); err != nil {
			respondError(c, h.logger, "Failed to delete comment", err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Comment deleted successfully", nil))
	}
}
