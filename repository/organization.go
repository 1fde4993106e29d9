package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils"
	"gigbook-backend/utils/logger"
)

// OrganizationRepository implements OrganizationRepositoryInterface
type OrganizationRepository struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewOrganizationRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *OrganizationRepository) table() string {
	return r.config.TableName(models.TableOrganizations)
}

func (r *OrganizationRepository) CreateOrganization(ctx context.Context, organization *models.Organization) (*models.Organization, error) {
	r.logger.Infof("Creating organization: %s", organization.Name)

	now := time.Now().UTC()
	if organization.ID == "" {
		organization.ID = utils.GenerateUUID()
	}
	if organization.Tags == nil {
		organization.Tags = []string{}
	}
	organization.CreatedAt = now
	organization.UpdatedAt = now

	if err := r.db.CreateItem(ctx, r.table(), organization); err != nil {
		r.logger.Errorf("Failed to create organization: %v", err)
		if errors.Is(err, dal.ErrItemExists) {
			return nil, models.NewConflictError(fmt.Sprintf("organization %s already exists", organization.ID))
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	r.logger.Infof("Organization created successfully: %s", organization.ID)
	return organization, nil
}

// GetOrganization returns the organization, or a NotFoundError when it is absent or
// belongs to another tenant
func (r *OrganizationRepository) GetOrganization(ctx context.Context, tenantID, id string) (*models.Organization, error) {
	if id == "" {
		return nil, models.NewValidationError("organizationId", "organization ID is required")
	}

	organization := models.Organization{}
	if err := r.db.GetItem(ctx, models.KeyLookup(r.table(), id), &organization); err != nil {
		if !errors.Is(err, dal.ErrItemNotFound) {
			r.logger.Errorf("Failed to get organization %s: %v", id, err)
		}
		return nil, notFoundOr(err, "organization", id, "get")
	}

	if organization.TenantID != tenantID {
		return nil, models.NewNotFoundError("organization", id)
	}
	return &organization, nil
}

func (r *OrganizationRepository) UpdateOrganization(ctx context.Context, id string, updates map[string]interface{}) error {
	r.logger.Infof("Updating organization %s (%d attributes)", id, len(updates))

	updates[models.AttrUpdatedAt] = time.Now().UTC()
	if err := r.db.UpdateItem(ctx, r.table(), models.AttrID, id, updates); err != nil {
		r.logger.Errorf("Failed to update organization %s: %v", id, err)
		return notFoundOr(err, "organization", id, "update")
	}
	return nil
}

func (r *OrganizationRepository) DeleteOrganization(ctx context.Context, id string) error {
	r.logger.Infof("Deleting organization: %s", id)

	if err := r.db.DeleteItem(ctx, r.table(), models.AttrID, id); err != nil {
		r.logger.Errorf("Failed to delete organization %s: %v", id, err)
		return fmt.Errorf("failed to delete organization %s: %w", id, err)
	}
	return nil
}

func (r *OrganizationRepository) ListOrganizations(ctx context.Context, tenantID string) ([]*models.Organization, error) {
	var organizations []*models.Organization
	if err := r.db.QueryByIndex(ctx, r.table(), TenantIndex, models.TenantFilter(tenantID), &organizations); err != nil {
		r.logger.Errorf("Failed to list organizations of tenant %s: %v", tenantID, err)
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return organizations, nil
}
