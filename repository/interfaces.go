package repository

import (
	"context"

	"gigbook-backend/models"
)

// OrganizationRepositoryInterface defines the contract for the organization repository
type OrganizationRepositoryInterface interface {
	CreateOrganization(ctx context.Context, organization *models.Organization) (*models.Organization, error)
	GetOrganization(ctx context.Context, tenantID, id string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteOrganization(ctx context.Context, id string) error
	ListOrganizations(ctx context.Context, tenantID string) ([]*models.Organization, error)
}

// PersonRepositoryInterface defines the contract for the person repository
type PersonRepositoryInterface interface {
	CreatePerson(ctx context.Context, person *models.Person) (*models.Person, error)
	GetPerson(ctx context.Context, tenantID, id string) (*models.Person, error)
	UpdatePerson(ctx context.Context, id string, updates map[string]interface{}) error
	DeletePerson(ctx context.Context, id string) error
	ListPersons(ctx context.Context, tenantID string) ([]*models.Person, error)
}

// LinkRepositoryInterface defines the contract for the link repository
type LinkRepositoryInterface interface {
	CreateLink(ctx context.Context, link *models.Link, move *models.PriorityMove) (*models.Link, error)
	GetLink(ctx context.Context, tenantID, id string) (*models.Link, error)
	UpdateLink(ctx context.Context, id string, updates map[string]interface{}) error
	DeactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error
	ReactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error
	MovePriority(ctx context.Context, move models.PriorityMove) error
	ClearPriority(ctx context.Context, organizationID, keepLinkID string, linkIDs []string, updatedBy string) error
	ListLinks(ctx context.Context, tenantID string) ([]*models.Link, error)
	ListLinksByOrganization(ctx context.Context, tenantID, organizationID string) ([]*models.Link, error)
	ListLinksByPerson(ctx context.Context, tenantID, personID string) ([]*models.Link, error)
	FindActiveLink(ctx context.Context, tenantID, organizationID, personID string) (*models.Link, error)
}

// RepositoryContainerInterface defines the contract for the repository container
type RepositoryContainerInterface interface {
	GetOrganizationRepository() OrganizationRepositoryInterface
	GetPersonRepository() PersonRepositoryInterface
	GetLinkRepository() LinkRepositoryInterface
}
