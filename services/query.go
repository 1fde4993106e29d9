package services

import (
	"context"

	"gigbook-backend/cache"
	"gigbook-backend/models"
	"gigbook-backend/search"
	"gigbook-backend/utils/logger"
	"gigbook-backend/views"
)

// QueryService answers reads from the live cache of the caller's tenant. Reads never
// touch the store: they see the last snapshot delivered by the subscriptions.
type QueryService struct {
	caches *cache.Manager
	search *search.Engine
	config *models.Config
	logger logger.Logger
}

func NewQueryService(caches *cache.Manager, cfg *models.Config, log logger.Logger) *QueryService {
	return &QueryService{
		caches: caches,
		search: search.NewEngine(cfg),
		config: cfg,
		logger: log,
	}
}

// tenantCache returns the cache of the caller's tenant. A cache whose subscriptions
// failed is still returned: its last snapshot stays readable and its status tells why.
func (s *QueryService) tenantCache(ctx context.Context) (*cache.TenantCache, error) {
	actor, ok := models.ActorFromContext(ctx)
	if !ok || actor.TenantID == "" {
		return nil, models.NewValidationError("tenantId", "tenant context is required")
	}
	c, err := s.caches.Get(actor.TenantID)
	if c == nil {
		return nil, err
	}
	if err != nil {
		s.logger.Warnf("Serving tenant %s from a degraded cache: %v", actor.TenantID, err)
	}
	return c, nil
}

func (s *QueryService) joinOptions(includeInactive bool) views.JoinOptions {
	return views.JoinOptions{IncludeInactive: includeInactive, Locale: s.config.SearchLocale}
}

// WaitReady blocks until every collection of the tenant delivered its initial snapshot,
// a subscription failed, or ctx ends
func (s *QueryService) WaitReady(ctx context.Context) error {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return err
	}
	return c.WaitReady(ctx)
}

// OrganizationWithPersons returns nil when the organization is not in the snapshot
func (s *QueryService) OrganizationWithPersons(ctx context.Context, organizationID string, includeInactive bool) (*models.OrganizationView, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	var view *models.OrganizationView
	c.View(func(r views.Reader) {
		view = views.OrganizationWithPersons(r, organizationID, s.joinOptions(includeInactive))
	})
	return view, nil
}

// PersonWithOrganizations returns nil when the person is not in the snapshot
func (s *QueryService) PersonWithOrganizations(ctx context.Context, personID string, includeInactive bool) (*models.PersonView, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	var view *models.PersonView
	c.View(func(r views.Reader) {
		view = views.PersonWithOrganizations(r, personID, s.joinOptions(includeInactive))
	})
	return view, nil
}

// ActiveContacts fails with a NotFoundError when the organization is not in the snapshot
func (s *QueryService) ActiveContacts(ctx context.Context, organizationID string, filter models.ActiveContactsFilter) ([]models.LinkedPerson, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	var contacts []models.LinkedPerson
	c.View(func(r views.Reader) {
		contacts = views.ActiveContacts(r, organizationID, filter, s.joinOptions(false))
	})
	if contacts == nil {
		return nil, models.NewNotFoundError("organization", organizationID)
	}
	return contacts, nil
}

func (s *QueryService) UnaffiliatedPersons(ctx context.Context) ([]models.Person, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	var persons []models.Person
	c.View(func(r views.Reader) {
		persons = views.UnaffiliatedPersons(r, s.joinOptions(false))
	})
	return persons, nil
}

func (s *QueryService) Search(ctx context.Context, params models.SearchParams) (models.SearchResult, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return models.SearchResult{}, err
	}
	var result models.SearchResult
	c.View(func(r views.Reader) {
		result = s.search.Search(r, params)
	})
	return result, nil
}

func (s *QueryService) Statistics(ctx context.Context) (models.ContactStatistics, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return models.ContactStatistics{}, err
	}
	var stats models.ContactStatistics
	c.View(func(r views.Reader) {
		stats = views.Statistics(r)
	})
	return stats, nil
}

// OrganizationStatistics fails with a NotFoundError when the organization is not in the snapshot
func (s *QueryService) OrganizationStatistics(ctx context.Context, organizationID string) (models.LinkStatistics, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return models.LinkStatistics{}, err
	}
	var (
		stats models.LinkStatistics
		found bool
	)
	c.View(func(r views.Reader) {
		if _, found = r.Organization(organizationID); found {
			stats = views.OrganizationStatistics(r, organizationID)
		}
	})
	if !found {
		return models.LinkStatistics{}, models.NewNotFoundError("organization", organizationID)
	}
	return stats, nil
}

// Organizations returns the raw organization snapshot ordered by id
func (s *QueryService) Organizations(ctx context.Context) ([]models.Organization, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	return c.Organizations(), nil
}

// Persons returns the raw person snapshot ordered by id
func (s *QueryService) Persons(ctx context.Context) ([]models.Person, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	return c.Persons(), nil
}

// Links returns the raw link snapshot ordered by id
func (s *QueryService) Links(ctx context.Context) ([]models.Link, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	return c.Links(), nil
}

// Statuses reports loading and error state per collection
func (s *QueryService) Statuses(ctx context.Context) ([]models.CollectionStatus, error) {
	c, err := s.tenantCache(ctx)
	if err != nil {
		return nil, err
	}
	return c.Statuses(), nil
}

// Reactivate reopens every subscription of the caller's tenant. It is the recovery path
// after a SubscriptionError.
func (s *QueryService) Reactivate(ctx context.Context) ([]models.CollectionStatus, error) {
	actor, ok := models.ActorFromContext(ctx)
	if !ok || actor.TenantID == "" {
		return nil, models.NewValidationError("tenantId", "tenant context is required")
	}
	c, err := s.caches.Reactivate(actor.TenantID)
	if c == nil {
		return nil, err
	}
	return c.Statuses(), err
}
