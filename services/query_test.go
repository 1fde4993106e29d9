package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigbook-backend/cache"
	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const eventually = 2 * time.Second

// QueryServiceTestSuite wires the façade and the read side over one in-memory store,
// so every read observes writes through the subscriptions only
type QueryServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	config   *models.Config
	store    *dal.MemoryStore
	manager  *cache.Manager
	contacts *ContactService
	queries  *QueryService
}

func (suite *QueryServiceTestSuite) SetupTest() {
	log := testLogger()
	suite.config = &models.Config{DynamoDBTablePrefix: "test", SearchLocale: "fr"}
	suite.store = dal.NewMemoryStore(log)

	var base context.Context
	base, suite.cancel = context.WithCancel(context.Background())
	manager, err := cache.NewManager(base, suite.store, suite.config, log)
	require.NoError(suite.T(), err)
	suite.manager = manager

	suite.contacts = NewContactService(repository.NewRepository(suite.store, suite.config, log), log)
	suite.queries = NewQueryService(manager, suite.config, log)
	suite.ctx = tenantContext("tenant-1", "user-1")

	waitCtx, cancel := context.WithTimeout(suite.ctx, eventually)
	defer cancel()
	require.NoError(suite.T(), suite.queries.WaitReady(waitCtx))
}

func (suite *QueryServiceTestSuite) TearDownTest() {
	suite.manager.Close()
	suite.cancel()
}

func (suite *QueryServiceTestSuite) organizationView(id string) *models.OrganizationView {
	view, err := suite.queries.OrganizationWithPersons(suite.ctx, id, false)
	require.NoError(suite.T(), err)
	return view
}

func (suite *QueryServiceTestSuite) personView(id string) *models.PersonView {
	view, err := suite.queries.PersonWithOrganizations(suite.ctx, id, false)
	require.NoError(suite.T(), err)
	return view
}

func (suite *QueryServiceTestSuite) isUnaffiliated(personID string) bool {
	persons, err := suite.queries.UnaffiliatedPersons(suite.ctx)
	require.NoError(suite.T(), err)
	for _, p := range persons {
		if p.ID == personID {
			return true
		}
	}
	return false
}

func (suite *QueryServiceTestSuite) TestReadsRequireTenant() {
	_, err := suite.queries.Search(context.Background(), models.SearchParams{})
	assert.True(suite.T(), models.IsValidation(err))

	_, err = suite.queries.Reactivate(context.Background())
	assert.True(suite.T(), models.IsValidation(err))
}

func (suite *QueryServiceTestSuite) TestStatusesAfterSnapshot() {
	statuses, err := suite.queries.Statuses(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), statuses, 3)
	for _, st := range statuses {
		assert.False(suite.T(), st.Loading, st.Collection)
		assert.Empty(suite.T(), st.Error, st.Collection)
	}
}

// Scenario A
func (suite *QueryServiceTestSuite) TestOrganizationWithoutLinks() {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: "Salle X", Tags: []string{"salle"}})
	require.NoError(suite.T(), err)

	assert.Eventually(suite.T(), func() bool { return suite.organizationView(org.ID) != nil }, eventually, 10*time.Millisecond)
	view := suite.organizationView(org.ID)
	assert.Equal(suite.T(), models.KindOrganization, view.Kind)
	assert.Equal(suite.T(), []string{"salle"}, view.Organization.Tags)
	assert.NotNil(suite.T(), view.Persons)
	assert.Empty(suite.T(), view.Persons)

	missing, err := suite.queries.OrganizationWithPersons(suite.ctx, "missing", false)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), missing)
}

// Scenarios B and C seen through the cache
func (suite *QueryServiceTestSuite) TestPriorityAndDissociationConverge() {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: "Salle X"})
	require.NoError(suite.T(), err)
	jean, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Jean", FamilyName: "Dupont"})
	require.NoError(suite.T(), err)
	marie, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Marie", FamilyName: "Martin"})
	require.NoError(suite.T(), err)

	jeanLink, err := suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Priority: true})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.SetPriority(suite.ctx, org.ID, marie.ID)
	require.NoError(suite.T(), err)

	assert.Eventually(suite.T(), func() bool {
		view := suite.organizationView(org.ID)
		return view != nil && len(view.Persons) == 2 && view.Persons[0].Person.ID == marie.ID &&
			view.Persons[0].Link.Priority && !view.Persons[1].Link.Priority
	}, eventually, 10*time.Millisecond, "the priority contact is listed first")

	_, err = suite.contacts.Dissociate(suite.ctx, jeanLink.ID)
	require.NoError(suite.T(), err)

	assert.Eventually(suite.T(), func() bool {
		view := suite.personView(jean.ID)
		return view != nil && len(view.Organizations) == 0 && suite.isUnaffiliated(jean.ID)
	}, eventually, 10*time.Millisecond)
	assert.False(suite.T(), suite.isUnaffiliated(marie.ID))

	withInactive, err := suite.queries.PersonWithOrganizations(suite.ctx, jean.ID, true)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), withInactive.Organizations, 1)
	assert.False(suite.T(), withInactive.Organizations[0].Link.Active)
	assert.NotNil(suite.T(), withInactive.Organizations[0].Link.EndDate)

	links, err := suite.queries.Links(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), links, 2, "dissociation keeps the link")
}

func (suite *QueryServiceTestSuite) TestActiveContacts() {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: "Salle X"})
	require.NoError(suite.T(), err)
	jean, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Jean", FamilyName: "Dupont"})
	require.NoError(suite.T(), err)
	marie, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Marie", FamilyName: "Martin"})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Role: "Programmateur", Interested: true})
	require.NoError(suite.T(), err)
	marieLink, err := suite.contacts.Associate(suite.ctx, org.ID, marie.ID, models.LinkDetails{Role: "Directrice"})
	require.NoError(suite.T(), err)

	assert.Eventually(suite.T(), func() bool {
		contacts, err := suite.queries.ActiveContacts(suite.ctx, org.ID, models.ActiveContactsFilter{})
		return err == nil && len(contacts) == 2
	}, eventually, 10*time.Millisecond)

	yes := true
	contacts, err := suite.queries.ActiveContacts(suite.ctx, org.ID, models.ActiveContactsFilter{Interested: &yes})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), contacts, 1)
	assert.Equal(suite.T(), jean.ID, contacts[0].Person.ID)

	_, err = suite.contacts.Dissociate(suite.ctx, marieLink.ID)
	require.NoError(suite.T(), err)
	assert.Eventually(suite.T(), func() bool {
		contacts, err := suite.queries.ActiveContacts(suite.ctx, org.ID, models.ActiveContactsFilter{Role: "directrice"})
		return err == nil && len(contacts) == 0
	}, eventually, 10*time.Millisecond, "dissociated links are never active contacts")

	_, err = suite.queries.ActiveContacts(suite.ctx, "missing", models.ActiveContactsFilter{})
	assert.True(suite.T(), models.IsNotFound(err))
}

func (suite *QueryServiceTestSuite) TestSearchAndStatistics() {
	org, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: "Festival Jazz", IsClient: true})
	require.NoError(suite.T(), err)
	jean, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Jean", FamilyName: "Dupont"})
	require.NoError(suite.T(), err)
	lea, err := suite.contacts.CreatePerson(suite.ctx, &models.Person{GivenName: "Lea", FamilyName: "Blanc"})
	require.NoError(suite.T(), err)
	_, err = suite.contacts.Associate(suite.ctx, org.ID, jean.ID, models.LinkDetails{Role: "Programmateur", Interested: true})
	require.NoError(suite.T(), err)

	assert.Eventually(suite.T(), func() bool {
		stats, err := suite.queries.Statistics(suite.ctx)
		return err == nil && stats.Organizations == 1 && stats.Persons == 2 && stats.ActiveLinks == 1
	}, eventually, 10*time.Millisecond)

	stats, err := suite.queries.Statistics(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, stats.Organizations)
	assert.Equal(suite.T(), 1, stats.UnaffiliatedPersons)
	assert.Equal(suite.T(), 1, stats.Clients)
	assert.Equal(suite.T(), 1, stats.InterestedContacts)

	result, err := suite.queries.Search(suite.ctx, models.SearchParams{Query: "programmateur"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result.Items, 1)
	assert.Equal(suite.T(), org.ID, result.Items[0].ID)

	result, err = suite.queries.Search(suite.ctx, models.SearchParams{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result.Items, 2, "affiliated persons are not listed")
	assert.Equal(suite.T(), lea.ID, result.Items[0].ID)

	orgStats, err := suite.queries.OrganizationStatistics(suite.ctx, org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, orgStats.Active)
	assert.Equal(suite.T(), 1, orgStats.ByRole["Programmateur"])

	_, err = suite.queries.OrganizationStatistics(suite.ctx, "missing")
	assert.True(suite.T(), models.IsNotFound(err))

	orgs, err := suite.queries.Organizations(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), orgs, 1)
	persons, err := suite.queries.Persons(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), persons, 2)
}

func (suite *QueryServiceTestSuite) TestTenantsAreIsolated() {
	_, err := suite.contacts.CreateOrganization(suite.ctx, &models.Organization{Name: "Salle X"})
	require.NoError(suite.T(), err)

	other := tenantContext("tenant-2", "user-2")
	waitCtx, cancel := context.WithTimeout(other, eventually)
	defer cancel()
	require.NoError(suite.T(), suite.queries.WaitReady(waitCtx))

	assert.Eventually(suite.T(), func() bool {
		orgs, err := suite.queries.Organizations(suite.ctx)
		return err == nil && len(orgs) == 1
	}, eventually, 10*time.Millisecond)

	orgs, err := suite.queries.Organizations(other)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), orgs)
}

func (suite *QueryServiceTestSuite) TestSubscriptionFailureAndReactivation() {
	suite.store.FailSubscriptions(suite.config.TableName(models.TableLinks), errors.New("stream closed"))

	assert.Eventually(suite.T(), func() bool {
		statuses, err := suite.queries.Statuses(suite.ctx)
		return err == nil && statuses[2].Error != ""
	}, eventually, 10*time.Millisecond)

	statuses, err := suite.queries.Reactivate(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), statuses, 3)

	waitCtx, cancel := context.WithTimeout(suite.ctx, eventually)
	defer cancel()
	require.NoError(suite.T(), suite.queries.WaitReady(waitCtx))

	statuses, err = suite.queries.Statuses(suite.ctx)
	require.NoError(suite.T(), err)
	for _, st := range statuses {
		assert.Empty(suite.T(), st.Error)
	}
}

func TestQueryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(QueryServiceTestSuite))
}
