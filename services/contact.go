package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/repository"
	"gigbook-backend/utils"
	"gigbook-backend/utils/logger"

	"github.com/go-playground/validator/v10"
)

const bulkBatchSize = 100

// ContactService is the only write path for organizations, persons and links.
// Every call is scoped to the tenant of the actor carried by ctx. Effects reach the
// live caches through their subscriptions, never by patching them directly.
type ContactService struct {
	organizationRepo repository.OrganizationRepositoryInterface
	personRepo       repository.PersonRepositoryInterface
	linkRepo         repository.LinkRepositoryInterface
	validate         *validator.Validate
	orgLocks         *keyedMutex
	logger           logger.Logger
}

func NewContactService(repoContainer repository.RepositoryContainerInterface, log logger.Logger) *ContactService {
	return &ContactService{
		organizationRepo: repoContainer.GetOrganizationRepository(),
		personRepo:       repoContainer.GetPersonRepository(),
		linkRepo:         repoContainer.GetLinkRepository(),
		validate:         validator.New(),
		orgLocks:         newKeyedMutex(),
		logger:           log,
	}
}

// actorFrom returns the tenant and user the call acts for
func actorFrom(ctx context.Context) (models.Actor, error) {
	actor, ok := models.ActorFromContext(ctx)
	if !ok || actor.TenantID == "" {
		return models.Actor{}, models.NewValidationError("tenantId", "tenant context is required")
	}
	if actor.UserID == "" {
		return models.Actor{}, models.NewValidationError("userId", "actor context is required")
	}
	return actor, nil
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return models.NewValidationError(field, field+" is required")
	}
	return nil
}

// validationError turns validator failures into a ValidationError naming the first field
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &models.Error{
			Type:    models.ValidationError,
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()),
			Err:     err,
		}
	}
	return &models.Error{Type: models.ValidationError, Message: "invalid input", Err: err}
}

func (s *ContactService) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// cleanTags trims tags and drops empty and repeated (case-insensitive) entries
func cleanTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// Organizations

func (s *ContactService) CreateOrganization(ctx context.Context, organization *models.Organization) (*models.Organization, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if organization == nil {
		return nil, models.NewValidationError("", "organization is required")
	}

	organization.ID = ""
	organization.PriorityLinkID = ""
	organization.TenantID = actor.TenantID
	organization.Name = strings.TrimSpace(organization.Name)
	organization.Tags = cleanTags(organization.Tags)
	organization.CreatedBy = actor.UserID
	organization.UpdatedBy = actor.UserID
	stampComments(organization.Comments, actor)
	if err := s.check(organization); err != nil {
		return nil, err
	}

	return s.organizationRepo.CreateOrganization(ctx, organization)
}

// UpdateOrganization merges patch into the stored organization. The write is conditional
// on the record still existing.
func (s *ContactService) UpdateOrganization(ctx context.Context, id string, patch models.OrganizationPatch) (*models.Organization, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("organizationId", id); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, models.NewValidationError("", "no fields to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Tags != nil {
		tags := cleanTags(*patch.Tags)
		patch.Tags = &tags
	}

	current, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	merged := *current
	patch.ApplyTo(&merged)
	if err := s.check(&merged); err != nil {
		return nil, err
	}

	updates := patch.Updates()
	updates[models.AttrUpdatedBy] = actor.UserID
	if err := s.organizationRepo.UpdateOrganization(ctx, id, updates); err != nil {
		return nil, err
	}

	merged.UpdatedBy = actor.UserID
	merged.UpdatedAt = time.Now().UTC()
	return &merged, nil
}

// SetClientStatus toggles the client flag of an organization
func (s *ContactService) SetClientStatus(ctx context.Context, organizationID string, isClient bool) (*models.Organization, error) {
	return s.UpdateOrganization(ctx, organizationID, models.OrganizationPatch{IsClient: &isClient})
}

// UpdateOrganizationTags replaces the tags of an organization
func (s *ContactService) UpdateOrganizationTags(ctx context.Context, organizationID string, tags []string) (*models.Organization, error) {
	return s.UpdateOrganization(ctx, organizationID, models.OrganizationPatch{Tags: &tags})
}

// DeleteOrganization removes an organization that no link references, active or not
func (s *ContactService) DeleteOrganization(ctx context.Context, id string) error {
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	if err := requireID("organizationId", id); err != nil {
		return err
	}
	if _, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, id); err != nil {
		return err
	}

	links, err := s.linkRepo.ListLinksByOrganization(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if len(links) > 0 {
		return models.NewConflictError(fmt.Sprintf("organization %s is still referenced by %d link(s)", id, len(links)))
	}

	s.logger.Infof("Deleting organization %s for tenant %s", id, actor.TenantID)
	return s.organizationRepo.DeleteOrganization(ctx, id)
}

// Persons

func (s *ContactService) CreatePerson(ctx context.Context, person *models.Person) (*models.Person, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, models.NewValidationError("", "person is required")
	}

	person.ID = ""
	person.TenantID = actor.TenantID
	person.GivenName = strings.TrimSpace(person.GivenName)
	person.FamilyName = strings.TrimSpace(person.FamilyName)
	person.Tags = cleanTags(person.Tags)
	person.CreatedBy = actor.UserID
	person.UpdatedBy = actor.UserID
	stampComments(person.Comments, actor)
	if err := s.check(person); err != nil {
		return nil, err
	}

	return s.personRepo.CreatePerson(ctx, person)
}

func (s *ContactService) UpdatePerson(ctx context.Context, id string, patch models.PersonPatch) (*models.Person, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("personId", id); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, models.NewValidationError("", "no fields to update")
	}
	if patch.Tags != nil {
		tags := cleanTags(*patch.Tags)
		patch.Tags = &tags
	}

	current, err := s.personRepo.GetPerson(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	merged := *current
	patch.ApplyTo(&merged)
	if err := s.check(&merged); err != nil {
		return nil, err
	}

	updates := patch.Updates()
	updates[models.AttrUpdatedBy] = actor.UserID
	if err := s.personRepo.UpdatePerson(ctx, id, updates); err != nil {
		return nil, err
	}

	merged.UpdatedBy = actor.UserID
	merged.UpdatedAt = time.Now().UTC()
	return &merged, nil
}

// UpdatePersonTags replaces the tags of a person
func (s *ContactService) UpdatePersonTags(ctx context.Context, personID string, tags []string) (*models.Person, error) {
	return s.UpdatePerson(ctx, personID, models.PersonPatch{Tags: &tags})
}

// DeletePerson removes a person that no link references, active or not
func (s *ContactService) DeletePerson(ctx context.Context, id string) error {
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	if err := requireID("personId", id); err != nil {
		return err
	}
	if _, err := s.personRepo.GetPerson(ctx, actor.TenantID, id); err != nil {
		return err
	}

	links, err := s.linkRepo.ListLinksByPerson(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if len(links) > 0 {
		return models.NewConflictError(fmt.Sprintf("person %s is still referenced by %d link(s)", id, len(links)))
	}

	s.logger.Infof("Deleting person %s for tenant %s", id, actor.TenantID)
	return s.personRepo.DeletePerson(ctx, id)
}

// Links

// Associate creates an active link between an organization and a person of the tenant.
// An existing active link for the pair is a ConflictError: update that link instead.
// The pair is guarded in the store, so the conflict holds across processes.
func (s *ContactService) Associate(ctx context.Context, organizationID, personID string, details models.LinkDetails) (*models.Link, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("organizationId", organizationID); err != nil {
		return nil, err
	}
	if err := requireID("personId", personID); err != nil {
		return nil, err
	}
	if err := s.check(&details); err != nil {
		return nil, err
	}

	unlock := s.orgLocks.Lock(organizationID)
	defer unlock()

	org, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, organizationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.personRepo.GetPerson(ctx, actor.TenantID, personID); err != nil {
		return nil, err
	}

	existing, err := s.linkRepo.FindActiveLink(ctx, actor.TenantID, organizationID, personID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(fmt.Sprintf("person %s is already linked to organization %s by link %s", personID, organizationID, existing.ID))
	}

	startDate := details.StartDate
	if startDate == nil {
		now := time.Now().UTC()
		startDate = &now
	}
	link := &models.Link{
		TenantID:       actor.TenantID,
		OrganizationID: organizationID,
		PersonID:       personID,
		Role:           strings.TrimSpace(details.Role),
		Active:         true,
		Priority:       details.Priority,
		Interested:     details.Interested,
		StartDate:      startDate,
		Notes:          details.Notes,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
	}

	var move *models.PriorityMove
	if details.Priority {
		move = &models.PriorityMove{
			OrganizationID: organizationID,
			FromLinkID:     org.PriorityLinkID,
			UpdatedBy:      actor.UserID,
		}
	}
	return s.linkRepo.CreateLink(ctx, link, move)
}

// BulkAssociate associates every request in batches of bulkBatchSize, the items of a
// batch concurrently. One failing item does not stop the others.
func (s *ContactService) BulkAssociate(ctx context.Context, requests []models.AssociateRequest) (models.BulkResult, error) {
	if _, err := actorFrom(ctx); err != nil {
		return models.BulkResult{}, err
	}
	if len(requests) == 0 {
		return models.BulkResult{}, models.NewValidationError("links", "at least one link is required")
	}

	links := make([]*models.Link, len(requests))
	errs := make([]error, len(requests))
	for start := 0; start < len(requests); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(requests) {
			end = len(requests)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := requests[i]
				links[i], errs[i] = s.Associate(ctx, req.OrganizationID, req.PersonID, req.LinkDetails)
			}(i)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			for i := end; i < len(requests); i++ {
				errs[i] = err
			}
			break
		}
	}

	result := models.BulkResult{Created: []string{}, Errors: []models.BulkError{}}
	for i, req := range requests {
		if errs[i] == nil {
			result.Succeeded++
			result.Created = append(result.Created, links[i].ID)
			continue
		}
		bulkErr := models.BulkError{
			Index:          i,
			OrganizationID: req.OrganizationID,
			PersonID:       req.PersonID,
			Message:        errs[i].Error(),
		}
		var typed *models.Error
		if errors.As(errs[i], &typed) {
			bulkErr.Type = typed.Type
		}
		result.Errors = append(result.Errors, bulkErr)
	}

	s.logger.Infof("Bulk association: %d created, %d failed", result.Succeeded, len(result.Errors))
	return result, nil
}

// Dissociate soft-deletes a link and releases its pair. Dissociating an inactive link
// changes nothing.
func (s *ContactService) Dissociate(ctx context.Context, linkID string) (*models.Link, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("linkId", linkID); err != nil {
		return nil, err
	}

	link, err := s.linkRepo.GetLink(ctx, actor.TenantID, linkID)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		s.logger.Debugf("Link %s is already inactive", linkID)
		return link, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		models.AttrActive:    false,
		models.AttrEndDate:   now,
		models.AttrUpdatedBy: actor.UserID,
	}
	if err := s.linkRepo.DeactivateLink(ctx, link, updates); err != nil {
		if !models.IsConflict(err) {
			return nil, err
		}
		// lost a race with another dissociation
		current, getErr := s.linkRepo.GetLink(ctx, actor.TenantID, linkID)
		if getErr != nil || current.Active {
			return nil, err
		}
		return current, nil
	}

	link.Active = false
	link.EndDate = &now
	link.UpdatedBy = actor.UserID
	link.UpdatedAt = now
	return link, nil
}

// Reactivate makes a dissociated link active again with a fresh start date and no
// priority. It fails with a ConflictError when another active link exists for the pair.
func (s *ContactService) Reactivate(ctx context.Context, linkID string) (*models.Link, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("linkId", linkID); err != nil {
		return nil, err
	}

	link, err := s.linkRepo.GetLink(ctx, actor.TenantID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Active {
		return link, nil
	}
	if _, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, link.OrganizationID); err != nil {
		return nil, err
	}
	if _, err := s.personRepo.GetPerson(ctx, actor.TenantID, link.PersonID); err != nil {
		return nil, err
	}

	unlock := s.orgLocks.Lock(link.OrganizationID)
	defer unlock()

	now := time.Now().UTC()
	updates := map[string]interface{}{
		models.AttrActive:    true,
		models.AttrPriority:  false,
		models.AttrStartDate: now,
		models.AttrEndDate:   (*time.Time)(nil),
		models.AttrUpdatedBy: actor.UserID,
	}
	if err := s.linkRepo.ReactivateLink(ctx, link, updates); err != nil {
		return nil, err
	}

	link.Active = true
	link.Priority = false
	link.StartDate = &now
	link.EndDate = nil
	link.UpdatedBy = actor.UserID
	link.UpdatedAt = now
	return link, nil
}

// UpdateLink changes role, flags, notes and dates of a link. The active flag cannot be
// set here. Setting priority moves the priority contact of the organization to the link.
func (s *ContactService) UpdateLink(ctx context.Context, linkID string, patch models.LinkPatch) (*models.Link, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("linkId", linkID); err != nil {
		return nil, err
	}
	if patch.Active != nil {
		return nil, models.NewValidationError("active", "active cannot be changed directly; use associate, dissociate or reactivate")
	}
	if patch.Role != nil {
		role := strings.TrimSpace(*patch.Role)
		patch.Role = &role
	}
	updates := patch.Updates()
	if len(updates) == 0 {
		return nil, models.NewValidationError("", "no fields to update")
	}

	link, err := s.linkRepo.GetLink(ctx, actor.TenantID, linkID)
	if err != nil {
		return nil, err
	}
	merged := *link
	patch.ApplyTo(&merged)
	if err := s.check(&merged); err != nil {
		return nil, err
	}
	if merged.StartDate != nil && merged.EndDate != nil && merged.EndDate.Before(*merged.StartDate) {
		return nil, models.NewValidationError("endDate", "endDate must not be before startDate")
	}

	if patch.Priority != nil && *patch.Priority {
		if !link.Active {
			return nil, models.NewValidationError("priority", "only an active link can be the priority contact")
		}
		unlock := s.orgLocks.Lock(link.OrganizationID)
		defer unlock()
		if err := s.movePriority(ctx, actor, link); err != nil {
			return nil, err
		}
		delete(updates, models.AttrPriority)
	}

	if len(updates) > 0 {
		updates[models.AttrUpdatedBy] = actor.UserID
		if err := s.linkRepo.UpdateLink(ctx, linkID, updates); err != nil {
			return nil, err
		}
	}

	merged.UpdatedBy = actor.UserID
	merged.UpdatedAt = time.Now().UTC()
	return &merged, nil
}

// SetPriority makes the active link between organizationID and personID the priority
// contact of the organization. Nothing is written unless that link exists.
func (s *ContactService) SetPriority(ctx context.Context, organizationID, personID string) (*models.Link, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireID("organizationId", organizationID); err != nil {
		return nil, err
	}
	if err := requireID("personId", personID); err != nil {
		return nil, err
	}

	unlock := s.orgLocks.Lock(organizationID)
	defer unlock()

	target, err := s.linkRepo.FindActiveLink(ctx, actor.TenantID, organizationID, personID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, models.NewNotFoundError("active link", organizationID+"/"+personID)
	}

	if err := s.movePriority(ctx, actor, target); err != nil {
		return nil, err
	}

	s.logger.Infof("Person %s is now the priority contact of organization %s", personID, organizationID)
	target.Priority = true
	target.UpdatedBy = actor.UserID
	target.UpdatedAt = time.Now().UTC()
	return target, nil
}

// movePriority points the organization of target at it, unless it already is the
// flagged priority contact, then clears the flag of any other active link. The caller
// holds the organization lock.
func (s *ContactService) movePriority(ctx context.Context, actor models.Actor, target *models.Link) error {
	org, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, target.OrganizationID)
	if err != nil {
		return err
	}
	if org.PriorityLinkID != target.ID || !target.Priority {
		err := s.linkRepo.MovePriority(ctx, models.PriorityMove{
			OrganizationID: target.OrganizationID,
			FromLinkID:     org.PriorityLinkID,
			ToLinkID:       target.ID,
			UpdatedBy:      actor.UserID,
		})
		if err != nil {
			return err
		}
	}
	return s.clearStrayPriority(ctx, actor, target)
}

// clearStrayPriority clears flags the pointer does not account for, such as flags
// written before organizations carried priorityLinkId
func (s *ContactService) clearStrayPriority(ctx context.Context, actor models.Actor, target *models.Link) error {
	links, err := s.linkRepo.ListLinksByOrganization(ctx, actor.TenantID, target.OrganizationID)
	if err != nil {
		return err
	}
	var stray []string
	for _, link := range links {
		if link.Active && link.Priority && link.ID != target.ID {
			stray = append(stray, link.ID)
		}
	}
	if len(stray) == 0 {
		return nil
	}

	err = s.linkRepo.ClearPriority(ctx, target.OrganizationID, target.ID, stray, actor.UserID)
	if models.IsConflict(err) {
		// a later move owns the organization now
		s.logger.Debugf("Priority of organization %s moved before stray flags were cleared", target.OrganizationID)
		return nil
	}
	return err
}

// Comments

// stampComments assigns id, author and creation time to the comments of a new record
func stampComments(comments []models.Comment, actor models.Actor) {
	now := time.Now().UTC()
	for i := range comments {
		comments[i].ID = utils.GenerateUUID()
		comments[i].Author = actor.UserID
		comments[i].CreatedAt = now
	}
}

// AddComment appends a comment to an organization or a person and persists it
func (s *ContactService) AddComment(ctx context.Context, kind models.ContactKind, id, content string) (*models.Comment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	comment := models.Comment{
		ID:        utils.GenerateUUID(),
		Content:   strings.TrimSpace(content),
		Author:    actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.check(&comment); err != nil {
		return nil, err
	}

	comments, err := s.comments(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	comments = append(comments, comment)
	if err := s.saveComments(ctx, kind, id, comments); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes one comment from an organization or a person
func (s *ContactService) DeleteComment(ctx context.Context, kind models.ContactKind, id, commentID string) error {
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	if err := requireID("commentId", commentID); err != nil {
		return err
	}

	comments, err := s.comments(ctx, actor, kind, id)
	if err != nil {
		return err
	}
	kept := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(comments) {
		return models.NewNotFoundError("comment", commentID)
	}
	return s.saveComments(ctx, kind, id, kept)
}

func (s *ContactService) comments(ctx context.Context, actor models.Actor, kind models.ContactKind, id string) ([]models.Comment, error) {
	switch kind {
	case models.KindOrganization:
		if err := requireID("organizationId", id); err != nil {
			return nil, err
		}
		org, err := s.organizationRepo.GetOrganization(ctx, actor.TenantID, id)
		if err != nil {
			return nil, err
		}
		return org.Comments, nil
	case models.KindPerson:
		if err := requireID("personId", id); err != nil {
			return nil, err
		}
		person, err := s.personRepo.GetPerson(ctx, actor.TenantID, id)
		if err != nil {
			return nil, err
		}
		return person.Comments, nil
	default:
		return nil, models.NewValidationError("kind", fmt.Sprintf("unknown contact kind %q", kind))
	}
}

func (s *ContactService) saveComments(ctx context.Context, kind models.ContactKind, id string, comments []models.Comment) error {
	if kind == models.KindOrganization {
		_, err := s.UpdateOrganization(ctx, id, models.OrganizationPatch{Comments: &comments})
		return err
	}
	_, err := s.UpdatePerson(ctx, id, models.PersonPatch{Comments: &comments})
	return err
}
