package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/repository"
	"gigbook-backend/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func testLogger() logger.Logger {
	return logger.NewLoggerWithOutput("error", "text", io.Discard)
}

func tenantContext(tenantID, userID string) context.Context {
	return models.WithActor(context.Background(), models.Actor{TenantID: tenantID, UserID: userID})
}

// ContactServiceTestSuite runs the façade against the in-memory store
type ContactServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *dal.MemoryStore
	repos    *repository.Repository
	contacts *ContactService
}

func (suite *ContactServiceTestSuite) SetupTest() {
	log := testLogger()
	cfg := &models.Config{DynamoDBTablePrefix: "test"}
	suite.ctx = tenantContext("tenant-1", "user-1")
	suite.store = dal.NewMemoryStore(log)
	suite.repos = repository.NewRepository(suite.store, cfg, log)
	suite.contacts = NewContactService(suite.repos, log)
}

func (suite *ContactServiceTestSuite) createOrganization(name string) *models.Organization {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: name, Tags: []string{"salle"}})
	require.NoError(suite.T(), err)
	return org
}

func (suite *ContactServiceTestSuite) createPerson(given, family string) *models.Person {
	person, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: given, FamilyName: family})
	require.NoError(suite.T(), err)
	return person
}

func (suite *ContactServiceTestSuite) linksOf(orgID string) map[string]*models.Link {
	links, err := suite.repos.GetLinkRepository().ListLinksByOrganization(suite.ctx, "tenant-1", orgID)
	require.NoError(suite.T(), err)
	byPerson := map[string]*models.Link{}
	for _, l := range links {
		if l.Active || byPerson[l.PersonID] == nil {
			byPerson[l.PersonID] = l
		}
	}
	return byPerson
}

func (suite *ContactServiceTestSuite) activePriorityCount(orgID string) int {
	links, err := suite.repos.GetLinkRepository().ListLinksByOrganization(suite.ctx, "tenant-1", orgID)
	require.NoError(suite.T(), err)
	count := 0
	for _, l := range links {
		if l.Active && l.Priority {
			count++
		}
	}
	return count
}

func (suite *ContactServiceTestSuite) TestMutationsRequireActor() {
	_, err := suite.contacts.CreateOrganization(context.Background(), &models.Organization{Name: "Salle X"})
	assert.True(suite.T(), models.IsValidation(err))

	_, err = suite.contacts.CreatePerson(models.WithActor(context.Background(), models.Actor{TenantID: "tenant-1"}), &models.Person{GivenName: "Jean", FamilyName: "Dupont"})
	assert.True(suite.T(), models.IsValidation(err))

	_, err = suite.contacts.Dissociate(context.Background(), "link-1")
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *ContactServiceTestSuite) TestCreateStampsTenantAndActor() {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{
		TenantID: "someone-else",
		Name:     "  Salle X ",
		Tags:     []string{"salle", " Salle", ""},
	})
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), org.ID)
	assert.Equal(suite.T(), "tenant-1", org.TenantID)
	assert.Equal(suite.T(), "Salle X", org.Name)
	assert.Equal(suite.T(), []string{"salle"}, org.Tags)
	assert.Equal(suite.T(), "user-1", org.CreatedBy)

	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Salle X", stored.Name)
}

func (suite *ContactServiceTestSuite) TestCreateIgnoresClientControlledFields() {
	stamp := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{
		ID:             "chosen-id",
		Name:           "Salle X",
		PriorityLinkID: "forged-link",
		Comments:       []models.Comment{{ID: "c-forged", Content: "Bonjour", Author: "someone-else", CreatedAt: stamp}},
	})
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), "chosen-id", org.ID)
	assert.Empty(suite.T(), org.PriorityLinkID)
	require.Len(suite.T(), org.Comments, 1)
	assert.NotEqual(suite.T(), "c-forged", org.Comments[0].ID)
	assert.Equal(suite.T(), "user-1", org.Comments[0].Author)
	assert.True(suite.T(), org.Comments[0].CreatedAt.After(stamp))
	assert.Equal(suite.T(), "Bonjour", org.Comments[0].Content)

	person, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{
		ID:         org.ID,
		GivenName:  "Jean",
		FamilyName: "Dupont",
		Comments:   []models.Comment{{ID: "c-forged", Content: "Salut", Author: "someone-else"}},
	})
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), org.ID, person.ID)
	assert.Equal(suite.T(), "user-1", person.Comments[0].Author)

	_, err = suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", "chosen-id")
	assert.True(suite.T(), models.IsNotFound(err))
}

func (suite *ContactServiceTestSuite) TestCreateValidatesRecords() {
	_, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: ""})
	require.True(suite.T(), models.IsValidation(err))
	var typed *models.Error
	require.True(suite.T(), errors.As(err, &typed))
	assert.Equal(suite.T(), "Name", typed.Field)

	_, err = suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Jean", FamilyName: "Dupont", Email: "not-an-email"})
	assert.True(suite.T(), models.IsValidation(err))

	_, err = suite.contacts.CreateOrganization(suite.ctx, nil)
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *ContactServiceTestSuite) TestUpdateOrganization() {
	org := suite.createOrganization("Salle X")
	name := "Salle Y"
	city := models.Address{City: "Lyon"}

	updated, err := suite.contacts.UpdateOrganization(suite.ctx, org.ID, models.OrganizationPatch{Name: &name, Address: &city})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Salle Y", updated.Name)
	assert.Equal(suite.T(), []string{"salle"}, updated.Tags, "fields outside the patch are kept")

	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Salle Y", stored.Name)
	assert.Equal(suite.T(), "Lyon", stored.Address.City)
	assert.Equal(suite.T(), "user-1", stored.UpdatedBy)

	_, err = suite.contacts.UpdateOrganization(suite.ctx, org.ID, models.OrganizationPatch{})
	assert.True(suite.T(), models.IsValidation(err))

	empty := ""
	_, err = suite.contacts.UpdateOrganization(suite.ctx, org.ID, models.OrganizationPatch{Name: &empty})
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *ContactServiceTestSuite) TestUpdateMissingRecordIsNotFound() {
	name := "Salle Y"
	_, err := suite.contacts.UpdateOrganization(suite.ctx, "missing", models.OrganizationPatch{Name: &name})
	assert.True(suite.T(), models.IsNotFound(err))

	org := suite.createOrganization("Salle X")
	_, err = suite.contacts.UpdateOrganization(tenantContext("tenant-2", "user-2"), org.ID, models.OrganizationPatch{Name: &name})
	assert.True(suite.T(), models.IsNotFound(err), "records of another tenant are invisible")

	given := "Jeanne"
	_, err = suite.contacts.UpdatePerson(suite.ctx, "missing", models.PersonPatch{GivenName: &given})
	assert.True(suite.T(), models.IsNotFound(err))
}

func (suite *ContactServiceTestSuite) TestUpdatePerson() {
	person := suite.createPerson("Jean", "Dupont")
	phone := "0102030405"

	updated, err := suite.contacts.UpdatePerson(suite.ctx, person.ID, models.PersonPatch{Phone: &phone})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "0102030405", updated.Phone)
	assert.Equal(suite.T(), "Dupont", updated.FamilyName)

	tagged, err := suite.contacts.UpdatePersonTags(suite.ctx, person.ID, []string{"tourneur", "TOURNEUR"})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"tourneur"}, tagged.Tags)
}

func (suite *ContactServiceTestSuite) TestAssociateRequiresBothEnds() {
	org := suite.createOrganization("Salle X")
	person := suite.createPerson("Jean", "Dupont")

	_, err := suite.contacts.Associate(suite.ctx, org.ID, "missing", models.LinkDetails{})
	assert.True(suite.T(), models.IsNotFound(err))

	_, err = suite.contacts.Associate(suite.ctx, "missing", person.ID, models.LinkDetails{})
	assert.True(suite.T(), models.IsNotFound(err))

	_, err = suite.contacts.Associate(suite.ctx, "", person.ID, models.LinkDetails{})
	assert.True(suite.T(), models.IsValidation(err))

	assert.Empty(suite.T(), suite.linksOf(org.ID))
}

func (suite *ContactServiceTestSuite) TestAssociateCreatesActiveLink() {
	org := suite.createOrganization("Salle X")
	person := suite.createPerson("Jean", "Dupont")

	link, err := suite.contacts.Associate(suite.ctx, org.ID, person.ID, models.LinkDetails{Role: "Programmateur", Interested: true})
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), link.ID)
	assert.True(suite.T(), link.Active)
	assert.False(suite.T(), link.Priority)
	assert.True(suite.T(), link.Interested)
	assert.NotNil(suite.T(), link.StartDate)
	assert.Nil(suite.T(), link.EndDate)
	assert.Equal(suite.T(), "tenant-1", link.TenantID)
	assert.Equal(suite.T(), "user-1", link.CreatedBy)
}

// Scenario D
func (suite *ContactServiceTestSuite) TestAssociateDuplicateActivePairIsConflict() {
	org := suite.createOrganization("Salle X")
	marie := suite.createPerson("Marie", "Martin")

	first, err := suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{Role: "Directrice"})
	require.NoError(suite.T(), err)

	_, err = suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{Role: "Autre"})
	require.True(suite.T(), models.IsConflict(err))
	assert.Contains(suite.T(), err.Error(), first.ID)

	links, err := suite.repos.GetLinkRepository().ListLinksByOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), links, 1, "no duplicate link is created")
}

// Scenario B
func (suite *ContactServiceTestSuite) TestSetPriorityMovesPriority() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	marie := suite.createPerson("Marie", "Martin")

	_, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)

	link, err := suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), link.Priority)

	links := suite.linksOf(org.ID)
	assert.False(suite.T(), links[jean.ID].Priority)
	assert.True(suite.T(), links[marie.ID].Priority)
	assert.Equal(suite.T(), 1, suite.activePriorityCount(org.ID))
}

func (suite *ContactServiceTestSuite) TestAssociateWithPriorityClearsPreviousPriority() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	marie := suite.createPerson("Marie", "Martin")

	_, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)

	links := suite.linksOf(org.ID)
	assert.False(suite.T(), links[jean.ID].Priority)
	assert.True(suite.T(), links[marie.ID].Priority)
}

func (suite *ContactServiceTestSuite) TestSetPriorityWithoutActiveLinkWritesNothing() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	marie := suite.createPerson("Marie", "Martin")

	_, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)

	_, err = suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	assert.True(suite.T(), models.IsNotFound(err))
	assert.True(suite.T(), suite.linksOf(org.ID)[jean.ID].Priority, "the clear phase never started")

	marieLink, err := suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, marieLink.ID)
	require.NoError(suite.T(), err)

	_, err = suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	assert.True(suite.T(), models.IsNotFound(err), "an inactive link cannot become priority")
	assert.True(suite.T(), suite.linksOf(org.ID)[jean.ID].Priority)
}

func (suite *ContactServiceTestSuite) TestConcurrentSetPriorityKeepsOnePriority() {
	org := suite.createOrganization("Salle X")
	persons := []*models.Person{}
	for i := 0; i < 5; i++ {
		p := suite.createPerson("Person", fmt.Sprintf("Number %d", i))
		_, err := suite.contacts.Associate(suite.ctx, org.ID, p.ID, models.LinkDetails{})
		require.NoError(suite.T(), err)
		persons = append(persons, p)
	}

	var wg sync.WaitGroup
	for _, p := range persons {
		wg.Add(1)
		go func(personID string) {
			defer wg.Done()
			_, err := suite.contacts.SetPriority(suite.ctx, org.ID, personID)
			assert.NoError(suite.T(), err)
		}(p.ID)
	}
	wg.Wait()

	assert.Equal(suite.T(), 1, suite.activePriorityCount(org.ID))
	assert.Equal(suite.T(), 0, suite.contacts.orgLocks.size())
}

func (suite *ContactServiceTestSuite) TestPriorityPointerFollowsPriorityContact() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	marie := suite.createPerson("Marie", "Martin")

	jeanLink, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), jeanLink.ID, stored.PriorityLinkID)

	marieLink, err := suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	require.NoError(suite.T(), err)
	stored, err = suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), marieLink.ID, stored.PriorityLinkID)

	again, err := suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	require.NoError(suite.T(), err, "setting the current priority contact again is a no-op")
	assert.True(suite.T(), again.Priority)
	assert.Equal(suite.T(), 1, suite.activePriorityCount(org.ID))
}

// Two façades over one store share no in-process locks, like two API instances.
func (suite *ContactServiceTestSuite) TestPairGuardHoldsAcrossInstances() {
	other := NewContactService(suite.repos, testLogger())
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")

	for round := 0; round < 10; round++ {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			created   []*models.Link
			conflicts int
		)
		for _, s := range []*ContactService{suite.contacts, other} {
			wg.Add(1)
			go func(s *ContactService) {
				defer wg.Done()
				link, err := s.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					assert.True(suite.T(), models.IsConflict(err), err)
					conflicts++
					return
				}
				created = append(created, link)
			}(s)
		}
		wg.Wait()

		require.Len(suite.T(), created, 1, "exactly one active link per pair")
		assert.Equal(suite.T(), 1, conflicts)
		_, err := suite.contacts.Dissociate(suite.ctx, created[0].ID)
		require.NoError(suite.T(), err)
	}
}

func (suite *ContactServiceTestSuite) TestPriorityHoldsAcrossInstances() {
	other := NewContactService(suite.repos, testLogger())
	org := suite.createOrganization("Salle X")
	persons := []*models.Person{}
	for i := 0; i < 4; i++ {
		p := suite.createPerson("Person", fmt.Sprintf("Number %d", i))
		_, err := suite.contacts.Associate(suite.ctx, org.ID, p.ID, models.LinkDetails{})
		require.NoError(suite.T(), err)
		persons = append(persons, p)
	}

	var wg sync.WaitGroup
	for i, p := range persons {
		s := suite.contacts
		if i%2 == 1 {
			s = other
		}
		wg.Add(1)
		go func(s *ContactService, personID string) {
			defer wg.Done()
			if _, err := s.SetPriority(suite.ctx, org.ID, personID); err != nil {
				assert.True(suite.T(), models.IsConflict(err), err)
			}
		}(s, p.ID)
	}
	wg.Wait()

	assert.Equal(suite.T(), 1, suite.activePriorityCount(org.ID))
	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	pointed, err := suite.repos.GetLinkRepository().GetLink(suite.ctx, "tenant-1", stored.PriorityLinkID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), pointed.Priority, "the organization points at the flagged link")
}

func (suite *ContactServiceTestSuite) TestSetPriorityClearsFlagsWithoutPointer() {
	org := suite.createOrganization("Salle X")
	links := suite.repos.GetLinkRepository()
	for _, personID := range []string{"p1", "p2"} {
		_, err := links.CreateLink(suite.ctx, &models.Link{TenantID: "tenant-1", OrganizationID: org.ID, PersonID: personID, Active: true, Priority: true}, nil)
		require.NoError(suite.T(), err)
	}
	target, err := links.CreateLink(suite.ctx, &models.Link{TenantID: "tenant-1", OrganizationID: org.ID, PersonID: "p3", Active: true}, nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 2, suite.activePriorityCount(org.ID))

	_, err = suite.contacts.SetPriority(suite.ctx, org.ID, "p3")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 1, suite.activePriorityCount(org.ID))
	assert.True(suite.T(), suite.linksOf(org.ID)["p3"].Priority)
	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), target.ID, stored.PriorityLinkID)
}

func (suite *ContactServiceTestSuite) TestBulkAssociate() {
	org := suite.createOrganization("Salle X")
	requests := []models.AssociateRequest{}
	for i := 0; i < 2*bulkBatchSize+10; i++ {
		p := suite.createPerson("Person", fmt.Sprintf("Number %d", i))
		requests = append(requests, models.AssociateRequest{OrganizationID: org.ID, PersonID: p.ID, LinkDetails: models.LinkDetails{Role: "Technicien"}})
	}
	requests[5].PersonID = "missing"
	requests[150].OrganizationID = ""

	result, err := suite.contacts.BulkAssociate(suite.ctx, requests)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), len(requests)-2, result.Succeeded)
	assert.Len(suite.T(), result.Created, len(requests)-2)
	require.Len(suite.T(), result.Errors, 2)
	assert.Equal(suite.T(), 5, result.Errors[0].Index)
	assert.Equal(suite.T(), models.NotFoundError, result.Errors[0].Type)
	assert.Equal(suite.T(), "missing", result.Errors[0].PersonID)
	assert.Equal(suite.T(), 150, result.Errors[1].Index)
	assert.Equal(suite.T(), models.ValidationError, result.Errors[1].Type)

	assert.Len(suite.T(), suite.linksOf(org.ID), len(requests)-2)

	_, err = suite.contacts.BulkAssociate(suite.ctx, nil)
	assert.True(suite.T(), models.IsValidation(err))
	_, err = suite.contacts.BulkAssociate(context.Background(), requests)
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *ContactServiceTestSuite) TestBulkAssociateStopsWhenContextEnds() {
	org := suite.createOrganization("Salle X")
	person := suite.createPerson("Jean", "Dupont")
	requests := make([]models.AssociateRequest, bulkBatchSize+1)
	for i := range requests {
		requests[i] = models.AssociateRequest{OrganizationID: org.ID, PersonID: person.ID}
	}

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()
	result, err := suite.contacts.BulkAssociate(ctx, requests)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result.Errors, len(requests)-result.Succeeded)
	last := result.Errors[len(result.Errors)-1]
	assert.Equal(suite.T(), bulkBatchSize, last.Index)
	assert.Contains(suite.T(), last.Message, context.Canceled.Error())
}

func (suite *ContactServiceTestSuite) TestDissociateIsSoftAndIdempotent() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	link, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)

	first, err := suite.contacts.Dissociate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), first.Active)
	require.NotNil(suite.T(), first.EndDate)

	second, err := suite.contacts.Dissociate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), second.Active)
	assert.WithinDuration(suite.T(), *first.EndDate, *second.EndDate, time.Second)

	stored, err := suite.repos.GetLinkRepository().GetLink(suite.ctx, "tenant-1", link.ID)
	require.NoError(suite.T(), err, "dissociated links are kept")
	assert.False(suite.T(), stored.Active)
	assert.NotNil(suite.T(), stored.EndDate)

	_, err = suite.contacts.Dissociate(suite.ctx, "missing")
	assert.True(suite.T(), models.IsNotFound(err))
}

func (suite *ContactServiceTestSuite) TestAssociateAfterDissociateCreatesNewLink() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	old, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, old.ID)
	require.NoError(suite.T(), err)

	fresh, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), old.ID, fresh.ID)

	links, err := suite.repos.GetLinkRepository().ListLinksByPerson(suite.ctx, "tenant-1", jean.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), links, 2)
}

func (suite *ContactServiceTestSuite) TestReactivate() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	link, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)

	reactivated, err := suite.contacts.Reactivate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), reactivated.Active)
	assert.False(suite.T(), reactivated.Priority)
	assert.Nil(suite.T(), reactivated.EndDate)

	stored, err := suite.repos.GetLinkRepository().GetLink(suite.ctx, "tenant-1", link.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), stored.Active)
	assert.Nil(suite.T(), stored.EndDate)
	assert.False(suite.T(), stored.Priority)
}

func (suite *ContactServiceTestSuite) TestReactivateConflictsWithNewerActiveLink() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	old, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, old.ID)
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)

	_, err = suite.contacts.Reactivate(suite.ctx, old.ID)
	assert.True(suite.T(), models.IsConflict(err))
}

func (suite *ContactServiceTestSuite) TestUpdateLink() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	marie := suite.createPerson("Marie", "Martin")
	jeanLink, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	marieLink, err := suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)

	role := "Régisseuse"
	yes := true
	updated, err := suite.contacts.UpdateLink(suite.ctx, marieLink.ID, models.LinkPatch{Role: &role, Priority: &yes})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Régisseuse", updated.Role)
	assert.True(suite.T(), updated.Priority)

	links := suite.linksOf(org.ID)
	assert.False(suite.T(), links[jean.ID].Priority)
	assert.Equal(suite.T(), "Régisseuse", links[marie.ID].Role)

	_, err = suite.contacts.UpdateLink(suite.ctx, jeanLink.ID, models.LinkPatch{Active: &yes})
	require.True(suite.T(), models.IsValidation(err))
	assert.True(suite.T(), links[jean.ID].Active)

	_, err = suite.contacts.UpdateLink(suite.ctx, jeanLink.ID, models.LinkPatch{})
	assert.True(suite.T(), models.IsValidation(err))

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)
	_, err = suite.contacts.UpdateLink(suite.ctx, jeanLink.ID, models.LinkPatch{StartDate: &start, EndDate: &end})
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *ContactServiceTestSuite) TestUpdateLinkPriorityOnInactiveLinkIsRejected() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	link, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)

	yes := true
	_, err = suite.contacts.UpdateLink(suite.ctx, link.ID, models.LinkPatch{Priority: &yes})
	assert.True(suite.T(), models.IsValidation(err))

	notes := "ancien contact"
	_, err = suite.contacts.UpdateLink(suite.ctx, link.ID, models.LinkPatch{Notes: &notes})
	assert.NoError(suite.T(), err, "inactive links stay editable")
}

func (suite *ContactServiceTestSuite) TestSetClientStatusAndTags() {
	org := suite.createOrganization("Salle X")

	updated, err := suite.contacts.SetClientStatus(suite.ctx, org.ID, true)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), updated.IsClient)

	tagged, err := suite.contacts.UpdateOrganizationTags(suite.ctx, org.ID, []string{})
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), tagged.Tags)

	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), stored.IsClient)
	assert.Empty(suite.T(), stored.Tags)

	_, err = suite.contacts.SetClientStatus(suite.ctx, "missing", true)
	assert.True(suite.T(), models.IsNotFound(err))
}

func (suite *ContactServiceTestSuite) TestDeleteRequiresNoLinks() {
	org := suite.createOrganization("Salle X")
	jean := suite.createPerson("Jean", "Dupont")
	link, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Dissociate(suite.ctx, link.ID)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), models.IsConflict(suite.contacts.DeleteOrganization(suite.ctx, org.ID)), "inactive links still reference the record")
	assert.True(suite.T(), models.IsConflict(suite.contacts.DeletePerson(suite.ctx, jean.ID)))

	lonely := suite.createPerson("Lea", "Blanc")
	require.NoError(suite.T(), suite.contacts.DeletePerson(suite.ctx, lonely.ID))
	_, err = suite.repos.GetPersonRepository().GetPerson(suite.ctx, "tenant-1", lonely.ID)
	assert.True(suite.T(), models.IsNotFound(err))

	assert.True(suite.T(), models.IsNotFound(suite.contacts.DeleteOrganization(suite.ctx, "missing")))
}

func (suite *ContactServiceTestSuite) TestComments() {
	org := suite.createOrganization("Salle X")
	person := suite.createPerson("Jean", "Dupont")

	comment, err := suite.contacts.AddComment(suite.ctx, models.KindOrganization, org.ID, "  Rappeler en mars ")
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), comment.ID)
	assert.Equal(suite.T(), "Rappeler en mars", comment.Content)
	assert.Equal(suite.T(), "user-1", comment.Author)

	_, err = suite.contacts.AddComment(suite.ctx, models.KindPerson, person.ID, "Préfère le téléphone")
	require.NoError(suite.T(), err)

	stored, err := suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stored.Comments, 1)
	assert.Equal(suite.T(), comment.ID, stored.Comments[0].ID)

	require.NoError(suite.T(), suite.contacts.DeleteComment(suite.ctx, models.KindOrganization, org.ID, comment.ID))
	stored, err = suite.repos.GetOrganizationRepository().GetOrganization(suite.ctx, "tenant-1", org.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), stored.Comments)

	assert.True(suite.T(), models.IsNotFound(suite.contacts.DeleteComment(suite.ctx, models.KindOrganization, org.ID, comment.ID)))

	_, err = suite.contacts.AddComment(suite.ctx, models.KindPerson, person.ID, "   ")
	assert.True(suite.T(), models.IsValidation(err))

	_, err = suite.contacts.AddComment(suite.ctx, models.ContactKind("venue"), org.ID, "hello")
	assert.True(suite.T(), models.IsValidation(err))
}

func TestContactServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ContactServiceTestSuite))
}

// MockLinkRepository implements the LinkRepositoryInterface for testing
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) CreateLink(ctx context.Context, link *models.Link, move *models.PriorityMove) (*models.Link, error) {
	args := m.Called(ctx, link, move)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) GetLink(ctx context.Context, tenantID, id string) (*models.Link, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) UpdateLink(ctx context.Context, id string, updates map[string]interface{}) error {
	args := m.Called(ctx, id, updates)
	return args.Error(0)
}

func (m *MockLinkRepository) DeactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error {
	args := m.Called(ctx, link, updates)
	return args.Error(0)
}

func (m *MockLinkRepository) ReactivateLink(ctx context.Context, link *models.Link, updates map[string]interface{}) error {
	args := m.Called(ctx, link, updates)
	return args.Error(0)
}

func (m *MockLinkRepository) MovePriority(ctx context.Context, move models.PriorityMove) error {
	args := m.Called(ctx, move)
	return args.Error(0)
}

func (m *MockLinkRepository) ClearPriority(ctx context.Context, organizationID, keepLinkID string, linkIDs []string, updatedBy string) error {
	args := m.Called(ctx, organizationID, keepLinkID, linkIDs, updatedBy)
	return args.Error(0)
}

func (m *MockLinkRepository) ListLinks(ctx context.Context, tenantID string) ([]*models.Link, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Link), args.Error(1)
}

func (m *MockLinkRepository) ListLinksByOrganization(ctx context.Context, tenantID, organizationID string) ([]*models.Link, error) {
	args := m.Called(ctx, tenantID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Link), args.Error(1)
}

func (m *MockLinkRepository) ListLinksByPerson(ctx context.Context, tenantID, personID string) ([]*models.Link, error) {
	args := m.Called(ctx, tenantID, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Link), args.Error(1)
}

func (m *MockLinkRepository) FindActiveLink(ctx context.Context, tenantID, organizationID, personID string) (*models.Link, error) {
	args := m.Called(ctx, tenantID, organizationID, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func TestStoreFailuresPropagateUnchanged(t *testing.T) {
	storeErr := errors.New("throughput exceeded")
	links := &MockLinkRepository{}
	links.On("GetLink", mock.Anything, "tenant-1", "link-1").Return(&models.Link{ID: "link-1", TenantID: "tenant-1", OrganizationID: "org-1", PersonID: "p-1", Active: true}, nil)
	links.On("DeactivateLink", mock.Anything, mock.Anything, mock.Anything).Return(storeErr)
	links.On("FindActiveLink", mock.Anything, "tenant-1", "org-1", "p-1").Return(nil, storeErr)

	s := &ContactService{linkRepo: links, orgLocks: newKeyedMutex(), logger: testLogger()}
	ctx := tenantContext("tenant-1", "user-1")

	_, err := s.Dissociate(ctx, "link-1")
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, models.ErrorTypeOf(err))

	_, err = s.SetPriority(ctx, "org-1", "p-1")
	assert.ErrorIs(t, err, storeErr)

	links.AssertExpectations(t)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder of key a must wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("key a was never released")
	}
	unlockB()
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 10*time.Millisecond)
}
