package services

import (
	"gigbook-backend/cache"
	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/repository"
	"gigbook-backend/utils/logger"
)

// Service implements ServiceContainerInterface
type Service struct {
	contactService        ContactServiceInterface
	queryService          QueryServiceInterface
	infrastructureService InfrastructureServiceInterface
}

// NewService creates a new service container with all dependencies injected
func NewService(
	repoContainer repository.RepositoryContainerInterface,
	dalContainer dal.DALContainerInterface,
	caches *cache.Manager,
	provisioner ProvisionerInterface,
	logger logger.Logger,
	config *models.Config,
) ServiceContainerInterface {
	return &Service{
		contactService:        NewContactService(repoContainer, logger),
		queryService:          NewQueryService(caches, config, logger),
		infrastructureService: NewInfrastructureService(dalContainer.GetDatabaseClient(), provisioner, logger, config),
	}
}

// GetContactService returns the mutation façade
func (s *Service) GetContactService() ContactServiceInterface {
	return s.contactService
}

// GetQueryService returns the cache-backed read service
func (s *Service) GetQueryService() QueryServiceInterface {
	return s.queryService
}

// GetInfrastructureService returns the infrastructure service interface
func (s *Service) GetInfrastructureService() InfrastructureServiceInterface {
	return s.infrastructureService
}
