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

// LinkRepository implements LinkRepositoryInterface
type LinkRepository struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewLinkRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *LinkRepository {
	return &LinkRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *LinkRepository) table() string {
	return r.config.TableName(models.TableLinks)
}

func (r *LinkRepository) organizationTable() string {
	return r.config.TableName(models.TableOrganizations)
}

// guardWrite takes the guard of the link's pair
func (r *LinkRepository) guardWrite(link *models.Link) models.TransactWrite {
	return models.TransactWrite{
		Type:      models.WriteCreate,
		TableName: r.table(),
		Item: models.ActiveLinkGuard{
			ID:     models.ActiveLinkGuardID(link.TenantID, link.OrganizationID, link.PersonID),
			LinkID: link.ID,
		},
	}
}

// priorityWrites moves the organization pointer, conditioned on its current value, and
// clears the flag on the link it pointed at. withTarget also flags the new link, which
// must still be active.
func (r *LinkRepository) priorityWrites(move models.PriorityMove, withTarget bool) []models.TransactWrite {
	now := time.Now().UTC()
	var from interface{}
	if move.FromLinkID != "" {
		from = move.FromLinkID
	}
	writes := []models.TransactWrite{{
		Type:      models.WriteUpdate,
		TableName: r.organizationTable(),
		ID:        move.OrganizationID,
		Updates: map[string]interface{}{
			models.AttrPriorityLinkID: move.ToLinkID,
			models.AttrUpdatedAt:      now,
			models.AttrUpdatedBy:      move.UpdatedBy,
		},
		Expect: models.Filter{models.Eq(models.AttrPriorityLinkID, from)},
	}}
	if withTarget {
		writes = append(writes, models.TransactWrite{
			Type:      models.WriteUpdate,
			TableName: r.table(),
			ID:        move.ToLinkID,
			Updates: map[string]interface{}{
				models.AttrPriority:  true,
				models.AttrUpdatedAt: now,
				models.AttrUpdatedBy: move.UpdatedBy,
			},
			Expect: models.Filter{models.Eq(models.AttrActive, true)},
		})
	}
	if move.FromLinkID != "" && move.FromLinkID != move.ToLinkID {
		writes = append(writes, models.TransactWrite{
			Type:      models.WriteUpdate,
			TableName: r.table(),
			ID:        move.FromLinkID,
			Updates: map[string]interface{}{
				models.AttrPriority:  false,
				models.AttrUpdatedAt: now,
				models.AttrUpdatedBy: move.UpdatedBy,
			},
		})
	}
	return writes
}

// CreateLink stores a link. An active link is written together with the guard of its
// pair, so a second active link for the pair fails with a ConflictError. A non-nil move
// makes the new link the priority contact in the same transaction.
func (r *LinkRepository) CreateLink(ctx context.Context, link *models.Link, move *models.PriorityMove) (*models.Link, error) {
	r.logger.Infof("Creating link: organization %s, person %s", link.OrganizationID, link.PersonID)

	now := time.Now().UTC()
	if link.ID == "" {
		link.ID = utils.GenerateUUID()
	}
	link.CreatedAt = now
	link.UpdatedAt = now

	if !link.Active {
		if err := r.db.CreateItem(ctx, r.table(), link); err != nil {
			r.logger.Errorf("Failed to create link: %v", err)
			if errors.Is(err, dal.ErrItemExists) {
				return nil, models.NewConflictError(fmt.Sprintf("link %s already exists", link.ID))
			}
			return nil, fmt.Errorf("failed to create link: %w", err)
		}
		r.logger.Infof("Link created successfully: %s", link.ID)
		return link, nil
	}

	writes := []models.TransactWrite{
		r.guardWrite(link),
		{Type: models.WriteCreate, TableName: r.table(), Item: link},
	}
	if move != nil {
		move.ToLinkID = link.ID
		link.Priority = true
		writes = append(writes, r.priorityWrites(*move, false)...)
	}

	if err := r.db.TransactWrite(ctx, writes); err != nil {
		r.logger.Errorf("Failed to create link: %v", err)
		var failed *dal.ConditionFailedError
		if errors.As(err, &failed) {
			switch failed.Index {
			case 0:
				return nil, r.pairConflict(ctx, link)
			case 1:
				return nil, models.NewConflictError(fmt.Sprintf("link %s already exists", link.ID))
			default:
				return nil, priorityConflict(link.OrganizationID, err)
			}
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	r.logger.Infof("Link created successfully: %s", link.ID)
	return link, nil
}

// DeactivateLink applies updates to an active link and releases the guard of its pair.
// It fails with a ConflictError when the link is no longer active.
func (r *LinkRepository) DeactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error {
	r.logger.Infof("Deactivating link %s", link.ID)

	updates[models.AttrUpdatedAt] = time.Now().UTC()
	writes := []models.TransactWrite{
		{
			Type:      models.WriteUpdate,
			TableName: r.table(),
			ID:        link.ID,
			Updates:   updates,
			Expect:    models.Filter{models.Eq(models.AttrActive, true)},
		},
		{
			Type:      models.WriteDelete,
			TableName: r.table(),
			ID:        models.ActiveLinkGuardID(link.TenantID, link.OrganizationID, link.PersonID),
			Expect:    models.Filter{models.Eq(models.AttrLinkID, link.ID)},
		},
	}
	if err := r.db.TransactWrite(ctx, writes); err != nil {
		r.logger.Errorf("Failed to deactivate link %s: %v", link.ID, err)
		if errors.Is(err, dal.ErrConditionFailed) {
			return &models.Error{Type: models.ConflictError, Message: fmt.Sprintf("link %s is no longer active", link.ID), Err: err}
		}
		return fmt.Errorf("failed to deactivate link %s: %w", link.ID, err)
	}
	return nil
}

// ReactivateLink applies updates to an inactive link and takes the guard of its pair.
// Another active link for the pair is a ConflictError.
func (r *LinkRepository) ReactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error {
	r.logger.Infof("Reactivating link %s", link.ID)

	updates[models.AttrUpdatedAt] = time.Now().UTC()
	writes := []models.TransactWrite{
		r.guardWrite(link),
		{
			Type:      models.WriteUpdate,
			TableName: r.table(),
			ID:        link.ID,
			Updates:   updates,
			Expect:    models.Filter{models.Eq(models.AttrActive, false)},
		},
	}
	if err := r.db.TransactWrite(ctx, writes); err != nil {
		r.logger.Errorf("Failed to reactivate link %s: %v", link.ID, err)
		var failed *dal.ConditionFailedError
		if errors.As(err, &failed) {
			if failed.Index == 0 {
				return r.pairConflict(ctx, link)
			}
			return &models.Error{Type: models.ConflictError, Message: fmt.Sprintf("link %s is already active", link.ID), Err: err}
		}
		return fmt.Errorf("failed to reactivate link %s: %w", link.ID, err)
	}
	return nil
}

// MovePriority makes move.ToLinkID the priority contact of the organization. The write
// fails with a ConflictError when the organization pointer changed since it was read or
// the target link is no longer active.
func (r *LinkRepository) MovePriority(ctx context.Context, move models.PriorityMove) error {
	r.logger.Infof("Moving priority of organization %s from %q to %s", move.OrganizationID, move.FromLinkID, move.ToLinkID)

	if err := r.db.TransactWrite(ctx, r.priorityWrites(move, true)); err != nil {
		r.logger.Errorf("Failed to move priority of organization %s: %v", move.OrganizationID, err)
		if errors.Is(err, dal.ErrConditionFailed) {
			return priorityConflict(move.OrganizationID, err)
		}
		return fmt.Errorf("failed to move priority of organization %s: %w", move.OrganizationID, err)
	}
	return nil
}

// maxTransactWrites is the DynamoDB limit of items per transaction
const maxTransactWrites = 100

// ClearPriority clears the flag of linkIDs while the organization still points at
// keepLinkID. A moved pointer is a ConflictError and leaves the remaining links as they are.
func (r *LinkRepository) ClearPriority(ctx context.Context, organizationID, keepLinkID string, linkIDs []string, updatedBy string) error {
	r.logger.Infof("Clearing priority on %d link(s) of organization %s", len(linkIDs), organizationID)

	now := time.Now().UTC()
	for start := 0; start < len(linkIDs); start += maxTransactWrites - 1 {
		end := start + maxTransactWrites - 1
		if end > len(linkIDs) {
			end = len(linkIDs)
		}

		writes := []models.TransactWrite{{
			Type:      models.WriteUpdate,
			TableName: r.organizationTable(),
			ID:        organizationID,
			Updates: map[string]interface{}{
				models.AttrUpdatedAt: now,
				models.AttrUpdatedBy: updatedBy,
			},
			Expect: models.Filter{models.Eq(models.AttrPriorityLinkID, keepLinkID)},
		}}
		for _, id := range linkIDs[start:end] {
			writes = append(writes, models.TransactWrite{
				Type:      models.WriteUpdate,
				TableName: r.table(),
				ID:        id,
				Updates: map[string]interface{}{
					models.AttrPriority:  false,
					models.AttrUpdatedAt: now,
					models.AttrUpdatedBy: updatedBy,
				},
			})
		}

		if err := r.db.TransactWrite(ctx, writes); err != nil {
			r.logger.Errorf("Failed to clear priority of organization %s: %v", organizationID, err)
			if errors.Is(err, dal.ErrConditionFailed) {
				return priorityConflict(organizationID, err)
			}
			return fmt.Errorf("failed to clear priority of organization %s: %w", organizationID, err)
		}
	}
	return nil
}

func priorityConflict(organizationID string, err error) error {
	return &models.Error{
		Type:    models.ConflictError,
		Message: fmt.Sprintf("the priority contact of organization %s changed concurrently, retry", organizationID),
		Err:     err,
	}
}

// pairConflict names the link holding the guard of the pair when it can be read
func (r *LinkRepository) pairConflict(ctx context.Context, link *models.Link) error {
	existing, err := r.FindActiveLink(ctx, link.TenantID, link.OrganizationID, link.PersonID)
	if err != nil || existing == nil {
		return models.NewConflictError(fmt.Sprintf("person %s is already linked to organization %s", link.PersonID, link.OrganizationID))
	}
	return models.NewConflictError(fmt.Sprintf("person %s is already linked to organization %s by link %s", link.PersonID, link.OrganizationID, existing.ID))
}

// GetLink returns the link, or a NotFoundError when it is absent or belongs to another tenant
func (r *LinkRepository) GetLink(ctx context.Context, tenantID, id string) (*models.Link, error) {
	if id == "" {
		return nil, models.NewValidationError("linkId", "link ID is required")
	}

	link := models.Link{}
	if err := r.db.GetItem(ctx, models.KeyLookup(r.table(), id), &link); err != nil {
		if !errors.Is(err, dal.ErrItemNotFound) {
			r.logger.Errorf("Failed to get link %s: %v", id, err)
		}
		return nil, notFoundOr(err, "link", id, "get")
	}

	if link.TenantID != tenantID {
		return nil, models.NewNotFoundError("link", id)
	}
	return &link, nil
}

func (r *LinkRepository) UpdateLink(ctx context.Context, id string, updates map[string]interface{}) error {
	r.logger.Infof("Updating link %s (%d attributes)", id, len(updates))

	updates[models.AttrUpdatedAt] = time.Now().UTC()
	if err := r.db.UpdateItem(ctx, r.table(), models.AttrID, id, updates); err != nil {
		r.logger.Errorf("Failed to update link %s: %v", id, err)
		return notFoundOr(err, "link", id, "update")
	}
	return nil
}

func (r *LinkRepository) ListLinks(ctx context.Context, tenantID string) ([]*models.Link, error) {
	return r.query(ctx, TenantIndex, models.TenantFilter(tenantID))
}

// ListLinksByOrganization returns active and inactive links of an organization
func (r *LinkRepository) ListLinksByOrganization(ctx context.Context, tenantID, organizationID string) ([]*models.Link, error) {
	filter := models.Filter{models.Eq(models.AttrOrganizationID, organizationID), models.Eq(models.AttrTenantID, tenantID)}
	return r.query(ctx, OrganizationIndex, filter)
}

// ListLinksByPerson returns active and inactive links of a person
func (r *LinkRepository) ListLinksByPerson(ctx context.Context, tenantID, personID string) ([]*models.Link, error) {
	filter := models.Filter{models.Eq(models.AttrPersonID, personID), models.Eq(models.AttrTenantID, tenantID)}
	return r.query(ctx, PersonIndex, filter)
}

// FindActiveLink returns the active link of the pair, or nil when there is none. It reads
// the guard of the pair with a consistent read, never an index.
func (r *LinkRepository) FindActiveLink(ctx context.Context, tenantID, organizationID, personID string) (*models.Link, error) {
	guardID := models.ActiveLinkGuardID(tenantID, organizationID, personID)
	guard := models.ActiveLinkGuard{}
	if err := r.db.GetItem(ctx, models.KeyLookup(r.table(), guardID), &guard); err != nil {
		if errors.Is(err, dal.ErrItemNotFound) {
			return nil, nil
		}
		r.logger.Errorf("Failed to read guard %s: %v", guardID, err)
		return nil, fmt.Errorf("failed to find active link: %w", err)
	}

	link, err := r.GetLink(ctx, tenantID, guard.LinkID)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		r.logger.Warnf("Guard %s points at inactive link %s", guardID, link.ID)
		return nil, nil
	}
	return link, nil
}

func (r *LinkRepository) query(ctx context.Context, index string, filter models.Filter) ([]*models.Link, error) {
	var links []*models.Link
	if err := r.db.QueryByIndex(ctx, r.table(), index, filter, &links); err != nil {
		r.logger.Errorf("Failed to query links on %s: %v", index, err)
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	return links, nil
}
