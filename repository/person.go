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

// PersonRepository implements PersonRepositoryInterface
type PersonRepository struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewPersonRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *PersonRepository {
	return &PersonRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *PersonRepository) table() string {
	return r.config.TableName(models.TablePersons)
}

func (r *PersonRepository) CreatePerson(ctx context.Context, person *models.Person) (*models.Person, error) {
	r.logger.Infof("Creating person: %s", person.FullName())

	now := time.Now().UTC()
	if person.ID == "" {
		person.ID = utils.GenerateUUID()
	}
	if person.Tags == nil {
		person.Tags = []string{}
	}
	person.CreatedAt = now
	person.UpdatedAt = now

	if err := r.db.CreateItem(ctx, r.table(), person); err != nil {
		r.logger.Errorf("Failed to create person: %v", err)
		if errors.Is(err, dal.ErrItemExists) {
			return nil, models.NewConflictError(fmt.Sprintf("person %s already exists", person.ID))
		}
		return nil, fmt.Errorf("failed to create person: %w", err)
	}

	r.logger.Infof("Person created successfully: %s", person.ID)
	return person, nil
}

// GetPerson returns the person, or a NotFoundError when it is absent or
// belongs to another tenant
func (r *PersonRepository) GetPerson(ctx context.Context, tenantID, id string) (*models.Person, error) {
	if id == "" {
		return nil, models.NewValidationError("personId", "person ID is required")
	}

	person := models.Person{}
	if err := r.db.GetItem(ctx, models.KeyLookup(r.table(), id), &person); err != nil {
		if !errors.Is(err, dal.ErrItemNotFound) {
			r.logger.Errorf("Failed to get person %s: %v", id, err)
		}
		return nil, notFoundOr(err, "person", id, "get")
	}

	if person.TenantID != tenantID {
		return nil, models.NewNotFoundError("person", id)
	}
	return &person, nil
}

func (r *PersonRepository) UpdatePerson(ctx context.Context, id string, updates map[string]interface{}) error {
	r.logger.Infof("Updating person %s (%d attributes)", id, len(updates))

	updates[models.AttrUpdatedAt] = time.Now().UTC()
	if err := r.db.UpdateItem(ctx, r.table(), models.AttrID, id, updates); err != nil {
		r.logger.Errorf("Failed to update person %s: %v", id, err)
		return notFoundOr(err, "person", id, "update")
	}
	return nil
}

func (r *PersonRepository) DeletePerson(ctx context.Context, id string) error {
	r.logger.Infof("Deleting person: %s", id)

	if err := r.db.DeleteItem(ctx, r.table(), models.AttrID, id); err != nil {
		r.logger.Errorf("Failed to delete person %s: %v", id, err)
		return fmt.Errorf("failed to delete person %s: %w", id, err)
	}
	return nil
}

func (r *PersonRepository) ListPersons(ctx context.Context, tenantID string) ([]*models.Person, error) {
	var persons []*models.Person
	if err := r.db.QueryByIndex(ctx, r.table(), TenantIndex, models.TenantFilter(tenantID), &persons); err != nil {
		r.logger.Errorf("Failed to list persons of tenant %s: %v", tenantID, err)
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	return persons, nil
}
