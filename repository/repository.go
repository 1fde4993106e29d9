package repository

import (
	"errors"
	"fmt"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"
)

// Index names shared with the table schema
const (
	TenantIndex       = "tenantId-index"
	OrganizationIndex = "organizationId-index"
	PersonIndex       = "personId-index"
)

// Repository implements RepositoryContainerInterface
type Repository struct {
	organization OrganizationRepositoryInterface
	person       PersonRepositoryInterface
	link         LinkRepositoryInterface
}

// NewRepository creates the repository container on top of a database client
func NewRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *Repository {
	return &Repository{
		organization: NewOrganizationRepository(db, cfg, log),
		person:       NewPersonRepository(db, cfg, log),
		link:         NewLinkRepository(db, cfg, log),
	}
}

// GetOrganizationRepository returns the organization repository
func (r *Repository) GetOrganizationRepository() OrganizationRepositoryInterface {
	return r.organization
}

// GetPersonRepository returns the person repository
func (r *Repository) GetPersonRepository() PersonRepositoryInterface {
	return r.person
}

// GetLinkRepository returns the link repository
func (r *Repository) GetLinkRepository() LinkRepositoryInterface {
	return r.link
}

// notFoundOr maps a missing key to a NotFoundError and wraps anything else
func notFoundOr(err error, entity, id, op string) error {
	if errors.Is(err, dal.ErrItemNotFound) {
		return models.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("failed to %s %s %s: %w", op, entity, id, err)
}
