package services

import (
	"context"

	"gigbook-backend/models"
)

// ContactServiceInterface defines the contract for the mutation façade
type ContactServiceInterface interface {
	CreateOrganization(ctx context.Context, organization *models.Organization) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, id string, patch models.OrganizationPatch) (*models.Organization, error)
	SetClientStatus(ctx context.Context, organizationID string, isClient bool) (*models.Organization, error)
	UpdateOrganizationTags(ctx context.Context, organizationID string, tags []string) (*models.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error

	CreatePerson(ctx context.Context, person *models.Person) (*models.Person, error)
	UpdatePerson(ctx context.Context, id string, patch models.PersonPatch) (*models.Person, error)
	UpdatePersonTags(ctx context.Context, personID string, tags []string) (*models.Person, error)
	DeletePerson(ctx context.Context, id string) error

	Associate(ctx context.Context, organizationID, personID string, details models.LinkDetails) (*models.Link, error)
	BulkAssociate(ctx context.Context, requests []models.AssociateRequest) (models.BulkResult, error)
	Dissociate(ctx context.Context, linkID string) (*models.Link, error)
	Reactivate(ctx context.Context, linkID string) (*models.Link, error)
	UpdateLink(ctx context.Context, linkID string, patch models.LinkPatch) (*models.Link, error)
	SetPriority(ctx context.Context, organizationID, personID string) (*models.Link, error)

	AddComment(ctx context.Context, kind models.ContactKind, id, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, kind models.ContactKind, id, commentID string) error
}

// QueryServiceInterface defines the contract for reads served from the live cache
type QueryServiceInterface interface {
	WaitReady(ctx context.Context) error
	OrganizationWithPersons(ctx context.Context, organizationID string, includeInactive bool) (*models.OrganizationView, error)
	PersonWithOrganizations(ctx context.Context, personID string, includeInactive bool) (*models.PersonView, error)
	ActiveContacts(ctx context.Context, organizationID string, filter models.ActiveContactsFilter) ([]models.LinkedPerson, error)
	UnaffiliatedPersons(ctx context.Context) ([]models.Person, error)
	Search(ctx context.Context, params models.SearchParams) (models.SearchResult, error)
	Statistics(ctx context.Context) (models.ContactStatistics, error)
	OrganizationStatistics(ctx context.Context, organizationID string) (models.LinkStatistics, error)
	Organizations(ctx context.Context) ([]models.Organization, error)
	Persons(ctx context.Context) ([]models.Person, error)
	Links(ctx context.Context) ([]models.Link, error)
	Statuses(ctx context.Context) ([]models.CollectionStatus, error)
	Reactivate(ctx context.Context) ([]models.CollectionStatus, error)
}

// ProvisionerInterface creates the contact tables that do not exist yet
type ProvisionerInterface interface {
	Provision(ctx context.Context) (*models.ProvisioningResult, error)
}

// InfrastructureServiceInterface defines the contract for infrastructure service
type InfrastructureServiceInterface interface {
	TableStatuses(ctx context.Context) ([]models.TableStatus, error)
	IsHealthy(ctx context.Context) (bool, string, error)
	Provision(ctx context.Context) (*models.ProvisioningResult, error)
}

// ServiceContainerInterface defines the main service container contract
type ServiceContainerInterface interface {
	GetContactService() ContactServiceInterface
	GetQueryService() QueryServiceInterface
	GetInfrastructureService() InfrastructureServiceInterface
}
