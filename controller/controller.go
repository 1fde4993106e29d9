package controller

import (
	"net/http"

	"gigbook-backend/middelware"
	"gigbook-backend/models"
	"gigbook-backend/services"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	Contact        *ContactController
	Query          *QueryController
	Infrastructure *InfrastructureController
	jwtManager     *middelware.JWTManager
	config         *models.Config
}

func NewController(container services.ServiceContainerInterface, jwtManager *middelware.JWTManager, cfg *models.Config, log logger.Logger) *Controller {
	return &Controller{
		Contact:        NewContactController(container.GetContactService(), log),
		Query:          NewQueryController(container.GetQueryService(), cfg.CacheReadyTimeout, log),
		Infrastructure: NewInfrastructureController(container.GetInfrastructureService(), log),
		jwtManager:     jwtManager,
		config:         cfg,
	}
}

// RegisterRoutes mounts every route under basePath. Contact and infrastructure routes
// require a bearer token.
func (c *Controller) RegisterRoutes(r *gin.Engine, basePath string) {
	v1 := r.Group(basePath)

	// Health check endpoint (no auth required)
	v1.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": c.config.AppVersion,
			"service": c.config.AppName,
		})
	})
	v1.POST("/auth/validate", c.jwtManager.ValidateTokenEndpoint)

	contacts := v1.Group("/contacts", c.jwtManager.AuthMiddleware())

	organizations := contacts.Group("/organizations")
	organizations.GET("", c.Query.ListOrganizations)
	organizations.POST("", c.Contact.CreateOrganization)
	organizations.GET("/:id", c.Query.GetOrganization)
	organizations.PATCH("/:id", c.Contact.UpdateOrganization)
	organizations.DELETE("/:id", c.Contact.DeleteOrganization)
	organizations.GET("/:id/statistics", c.Query.GetOrganizationStatistics)
	organizations.GET("/:id/contacts", c.Query.GetActiveContacts)
	organizations.PUT("/:id/client", c.Contact.SetClientStatus)
	organizations.PUT("/:id/tags", c.Contact.UpdateOrganizationTags)
	organizations.POST("/:id/priority", c.Contact.SetPriority)
	organizations.POST("/:id/comments", c.Contact.AddComment(models.KindOrganization))
	organizations.DELETE("/:id/comments/:commentId", c.Contact.DeleteComment(models.KindOrganization))

	persons := contacts.Group("/persons")
	persons.GET("", c.Query.ListPersons)
	persons.POST("", c.Contact.CreatePerson)
	persons.GET("/unaffiliated", c.Query.GetUnaffiliatedPersons)
	persons.GET("/:id", c.Query.GetPerson)
	persons.PATCH("/:id", c.Contact.UpdatePerson)
	persons.DELETE("/:id", c.Contact.DeletePerson)
	persons.PUT("/:id/tags", c.Contact.UpdatePersonTags)
	persons.POST("/:id/comments", c.Contact.AddComment(models.KindPerson))
	persons.DELETE("/:id/comments/:commentId", c.Contact.DeleteComment(models.KindPerson))

	links := contacts.Group("/links")
	links.GET("", c.Query.ListLinks)
	links.POST("", c.Contact.Associate)
	links.POST("/bulk", c.Contact.BulkAssociate)
	links.PATCH("/:id", c.Contact.UpdateLink)
	links.POST("/:id/dissociate", c.Contact.Dissociate)
	links.POST("/:id/reactivate", c.Contact.Reactivate)

	contacts.POST("/search", c.Query.Search)
	contacts.GET("/statistics", c.Query.GetStatistics)
	contacts.GET("/cache/status", c.Query.GetCacheStatus)
	contacts.POST("/cache/reactivate", c.Query.ReactivateCache)

	infrastructure := v1.Group("/infrastructure", c.jwtManager.AuthMiddleware())
	infrastructure.GET("/tables", c.Infrastructure.GetTables)
	infrastructure.GET("/health", c.Infrastructure.CheckHealth)
	infrastructure.POST("/provision", c.Infrastructure.Provision)
}
