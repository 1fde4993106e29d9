package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"
	"gigbook-backend/views"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestArenaIndexes(t *testing.T) {
	a := NewArena()

	assert.Equal(t, TransitionAppeared, a.PutLink(models.Link{ID: "l1", OrganizationID: "o1", PersonID: "p1", Active: true}))
	assert.Equal(t, TransitionAppeared, a.PutLink(models.Link{ID: "l2", OrganizationID: "o2", PersonID: "p1", Active: true}))
	assert.Equal(t, 2, a.ActiveLinkCount("p1"))
	assert.Len(t, a.LinksByOrganization("o1"), 1)
	assert.Len(t, a.LinksByPerson("p1"), 2)

	assert.Equal(t, TransitionDeactivated, a.PutLink(models.Link{ID: "l1", OrganizationID: "o1", PersonID: "p1", Active: false}))
	assert.Equal(t, 1, a.ActiveLinkCount("p1"))
	assert.Len(t, a.LinksByOrganization("o1"), 1, "inactive links stay indexed")

	assert.Equal(t, TransitionReactivated, a.PutLink(models.Link{ID: "l1", OrganizationID: "o1", PersonID: "p1", Active: true}))
	assert.Equal(t, TransitionUpdated, a.PutLink(models.Link{ID: "l1", OrganizationID: "o3", PersonID: "p1", Active: true, Role: "booker"}))
	assert.Empty(t, a.LinksByOrganization("o1"))
	assert.Len(t, a.LinksByOrganization("o3"), 1)
	assert.Equal(t, 2, a.ActiveLinkCount("p1"))

	assert.Equal(t, TransitionDisappeared, a.RemoveLink("l1"))
	assert.Equal(t, TransitionNone, a.RemoveLink("l1"))
	assert.Equal(t, TransitionDisappeared, a.RemoveLink("l2"))
	assert.Equal(t, 0, a.ActiveLinkCount("p1"))
	assert.Empty(t, a.LinksByPerson("p1"))
}

func TestArenaRecordsOrderedByID(t *testing.T) {
	a := NewArena()
	assert.Equal(t, TransitionAppeared, a.PutOrganization(models.Organization{ID: "b"}))
	assert.Equal(t, TransitionAppeared, a.PutOrganization(models.Organization{ID: "a"}))
	assert.Equal(t, TransitionUpdated, a.PutOrganization(models.Organization{ID: "a", Name: "Alpha"}))
	a.PutPerson(models.Person{ID: "p"})

	orgs := a.Organizations()
	require.Len(t, orgs, 2)
	assert.Equal(t, "a", orgs[0].ID)
	assert.Equal(t, "Alpha", orgs[0].Name)

	o, p, l := a.Counts()
	assert.Equal(t, []int{2, 1, 0}, []int{o, p, l})

	a.Reset()
	assert.Empty(t, a.Organizations())
	assert.Empty(t, a.Persons())
}

// TenantCacheTestSuite runs the live cache against the in-memory store
type TenantCacheTestSuite struct {
	suite.Suite
	ctx    context.Context
	cfg    *models.Config
	log    logger.Logger
	store  *dal.MemoryStore
	tenant *TenantCache
}

func (suite *TenantCacheTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.cfg = &models.Config{DynamoDBTablePrefix: "test", CacheMaxTenants: 1}
	suite.log = logger.NewLoggerWithOutput("error", "text", io.Discard)
	suite.store = dal.NewMemoryStore(suite.log)
	suite.tenant = NewTenantCache(suite.store, suite.cfg, suite.log)
}

func (suite *TenantCacheTestSuite) TearDownTest() {
	suite.tenant.Deactivate()
}

func (suite *TenantCacheTestSuite) put(coll models.Collection, item interface{}) {
	require.NoError(suite.T(), suite.store.PutItem(suite.ctx, suite.cfg.CollectionTable(coll), item))
}

func (suite *TenantCacheTestSuite) update(coll models.Collection, id string, updates map[string]interface{}) {
	require.NoError(suite.T(), suite.store.UpdateItem(suite.ctx, suite.cfg.CollectionTable(coll), models.AttrID, id, updates))
}

func (suite *TenantCacheTestSuite) seed(tenantID, suffix string) {
	suite.put(models.CollectionOrganizations, models.Organization{ID: "o" + suffix, TenantID: tenantID, Name: "Org " + suffix})
	suite.put(models.CollectionPersons, models.Person{ID: "p" + suffix, TenantID: tenantID, GivenName: "Ana", FamilyName: "Lopez"})
	suite.put(models.CollectionLinks, models.Link{ID: "l" + suffix, TenantID: tenantID, OrganizationID: "o" + suffix, PersonID: "p" + suffix, Active: true})
}

func (suite *TenantCacheTestSuite) activate(tenantID string) {
	require.NoError(suite.T(), suite.tenant.Activate(suite.ctx, tenantID))
	ctx, cancel := context.WithTimeout(suite.ctx, waitFor)
	defer cancel()
	require.NoError(suite.T(), suite.tenant.WaitReady(ctx))
}

func (suite *TenantCacheTestSuite) TestActivateLoadsSnapshot() {
	suite.seed("t1", "1")
	suite.seed("t2", "2")

	suite.activate("t1")

	assert.Equal(suite.T(), "t1", suite.tenant.TenantID())
	for _, st := range suite.tenant.Statuses() {
		assert.False(suite.T(), st.Loading, st.Collection)
		assert.Nil(suite.T(), st.Err)
	}
	require.Len(suite.T(), suite.tenant.Organizations(), 1)
	assert.Equal(suite.T(), "o1", suite.tenant.Organizations()[0].ID)
	assert.Len(suite.T(), suite.tenant.Persons(), 1)
	assert.Len(suite.T(), suite.tenant.Links(), 1)
}

func (suite *TenantCacheTestSuite) TestStatusOfInactiveCache() {
	st := suite.tenant.Status(models.CollectionLinks)
	assert.False(suite.T(), st.Loading)
	assert.Equal(suite.T(), models.CollectionLinks, st.Collection)
}

func (suite *TenantCacheTestSuite) TestDeltasConverge() {
	suite.seed("t1", "1")
	suite.activate("t1")

	suite.put(models.CollectionPersons, models.Person{ID: "p9", TenantID: "t1", GivenName: "Zoe", FamilyName: "Adam"})
	suite.put(models.CollectionLinks, models.Link{ID: "l9", TenantID: "t1", OrganizationID: "o1", PersonID: "p9", Active: true, Priority: true})

	require.Eventually(suite.T(), func() bool {
		n := 0
		suite.tenant.View(func(r views.Reader) {
			if v := views.OrganizationWithPersons(r, "o1", views.JoinOptions{}); v != nil {
				n = len(v.Persons)
			}
		})
		return n == 2
	}, waitFor, tick)

	suite.update(models.CollectionLinks, "l1", map[string]interface{}{models.AttrActive: false})
	require.Eventually(suite.T(), func() bool {
		unaffiliated := 0
		suite.tenant.View(func(r views.Reader) {
			unaffiliated = len(views.UnaffiliatedPersons(r, views.JoinOptions{}))
		})
		return unaffiliated == 1
	}, waitFor, tick)

	require.NoError(suite.T(), suite.store.DeleteItem(suite.ctx, suite.cfg.CollectionTable(models.CollectionPersons), models.AttrID, "p9"))
	require.Eventually(suite.T(), func() bool { return len(suite.tenant.Persons()) == 1 }, waitFor, tick)
}

func (suite *TenantCacheTestSuite) TestTenantSwitchDiscardsPreviousTenant() {
	suite.seed("t1", "1")
	suite.seed("t2", "2")
	suite.activate("t1")
	suite.activate("t2")

	suite.put(models.CollectionOrganizations, models.Organization{ID: "o1b", TenantID: "t1", Name: "Late write"})
	suite.put(models.CollectionOrganizations, models.Organization{ID: "o2b", TenantID: "t2", Name: "Fresh"})

	require.Eventually(suite.T(), func() bool { return len(suite.tenant.Organizations()) == 2 }, waitFor, tick)
	for _, org := range suite.tenant.Organizations() {
		assert.Equal(suite.T(), "t2", org.TenantID)
	}
	for _, coll := range models.Collections {
		assert.Equal(suite.T(), 1, suite.store.Subscribers(suite.cfg.CollectionTable(coll)))
	}
}

func (suite *TenantCacheTestSuite) TestSubscriptionErrorIsTerminalPerCollection() {
	suite.seed("t1", "1")
	suite.activate("t1")

	suite.store.FailSubscriptions(suite.cfg.CollectionTable(models.CollectionLinks), errors.New("permission denied"))

	require.Eventually(suite.T(), func() bool {
		return suite.tenant.Status(models.CollectionLinks).Err != nil
	}, waitFor, tick)
	assert.True(suite.T(), models.IsSubscription(suite.tenant.Err()))
	assert.Nil(suite.T(), suite.tenant.Status(models.CollectionOrganizations).Err)

	// Data already applied stays readable
	assert.Len(suite.T(), suite.tenant.Links(), 1)

	suite.activate("t1")
	assert.Nil(suite.T(), suite.tenant.Err())
}

func (suite *TenantCacheTestSuite) TestOnChangeListener() {
	suite.activate("t1")

	var calls int32
	remove := suite.tenant.OnChange(func(models.Collection) { atomic.AddInt32(&calls, 1) })

	suite.put(models.CollectionOrganizations, models.Organization{ID: "o1", TenantID: "t1", Name: "Olympia"})
	require.Eventually(suite.T(), func() bool { return atomic.LoadInt32(&calls) == 1 }, waitFor, tick)

	remove()
	suite.put(models.CollectionOrganizations, models.Organization{ID: "o2", TenantID: "t1", Name: "Bataclan"})
	require.Eventually(suite.T(), func() bool { return len(suite.tenant.Organizations()) == 2 }, waitFor, tick)
	assert.Equal(suite.T(), int32(1), atomic.LoadInt32(&calls))
}

func (suite *TenantCacheTestSuite) TestDeactivateClears() {
	suite.seed("t1", "1")
	suite.activate("t1")

	suite.tenant.Deactivate()
	assert.Empty(suite.T(), suite.tenant.TenantID())
	assert.Empty(suite.T(), suite.tenant.Organizations())
	assert.Equal(suite.T(), 0, suite.store.Subscribers(suite.cfg.CollectionTable(models.CollectionLinks)))
}

func (suite *TenantCacheTestSuite) TestActivateRequiresTenant() {
	assert.True(suite.T(), models.IsValidation(suite.tenant.Activate(suite.ctx, "")))
}

func (suite *TenantCacheTestSuite) TestManagerEvictsLeastRecentlyUsed() {
	suite.seed("t1", "1")
	suite.seed("t2", "2")

	manager, err := NewManager(suite.ctx, suite.store, suite.cfg, suite.log)
	require.NoError(suite.T(), err)
	defer manager.Close()

	first, err := manager.Get("t1")
	require.NoError(suite.T(), err)
	again, err := manager.Get("t1")
	require.NoError(suite.T(), err)
	assert.Same(suite.T(), first, again)

	second, err := manager.Get("t2")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, manager.Len())
	assert.Empty(suite.T(), first.TenantID(), "evicted cache is deactivated")
	assert.Equal(suite.T(), "t2", second.TenantID())

	ctx, cancel := context.WithTimeout(suite.ctx, waitFor)
	defer cancel()
	require.NoError(suite.T(), second.WaitReady(ctx))
	assert.Len(suite.T(), second.Organizations(), 1)

	reactivated, err := manager.Reactivate("t2")
	require.NoError(suite.T(), err)
	assert.Same(suite.T(), second, reactivated)

	_, err = manager.Get("")
	assert.True(suite.T(), models.IsValidation(err))
}

func TestTenantCacheTestSuite(t *testing.T) {
	suite.Run(t, new(TenantCacheTestSuite))
}

// heldSubscription is one Subscribe call of heldFeed
type heldSubscription struct {
	table    string
	tenantID string
	onChange func(dal.ChangeEvent)
	onError  func(error)
}

// heldFeed delivers nothing by itself: tests drive every subscription by hand, including
// subscriptions already cancelled.
type heldFeed struct {
	mu   sync.Mutex
	subs []heldSubscription
}

func (f *heldFeed) Subscribe(ctx context.Context, tableName string, filter models.Filter, onChange func(dal.ChangeEvent), onError func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenantID, _ := filter[0].Value.(string)
	f.subs = append(f.subs, heldSubscription{table: tableName, tenantID: tenantID, onChange: onChange, onError: onError})
	return func() {}, nil
}

// of returns the subscriptions opened for tenantID, oldest first
func (f *heldFeed) of(tenantID string) []heldSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []heldSubscription
	for _, sub := range f.subs {
		if sub.tenantID == tenantID {
			out = append(out, sub)
		}
	}
	return out
}

func syncAll(subs []heldSubscription) {
	for _, sub := range subs {
		sub.onChange(dal.ChangeEvent{Type: models.ChangeSynced})
	}
}

func newHeldCache() (*TenantCache, *heldFeed, *models.Config) {
	feed := &heldFeed{}
	cfg := &models.Config{DynamoDBTablePrefix: "test"}
	return NewTenantCache(feed, cfg, logger.NewLoggerWithOutput("error", "text", io.Discard)), feed, cfg
}

func waitInBackground(c *TenantCache) <-chan error {
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		done <- c.WaitReady(ctx)
	}()
	return done
}

func TestWaitReadyEndsWhenActivationIsReplaced(t *testing.T) {
	c, _, _ := newHeldCache()
	require.NoError(t, c.Activate(context.Background(), "t1"))
	done := waitInBackground(c)

	select {
	case <-done:
		t.Fatal("no snapshot was delivered yet")
	case <-time.After(20 * time.Millisecond):
	}

	c.Deactivate()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCacheReset)
	case <-time.After(waitFor):
		t.Fatal("waiter still blocked after deactivation")
	}

	require.NoError(t, c.Activate(context.Background(), "t1"))
	done = waitInBackground(c)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Activate(context.Background(), "t2"))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCacheReset)
	case <-time.After(waitFor):
		t.Fatal("waiter still blocked after a tenant switch")
	}
}

func TestWaitReadyFollowsReactivationOfSameTenant(t *testing.T) {
	c, feed, _ := newHeldCache()
	require.NoError(t, c.Activate(context.Background(), "t1"))
	done := waitInBackground(c)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.Activate(context.Background(), "t1"))
	subs := feed.of("t1")
	require.Len(t, subs, 2*len(models.Collections))

	syncAll(subs[:len(models.Collections)])
	select {
	case <-done:
		t.Fatal("the replaced activation cannot make the cache ready")
	case <-time.After(20 * time.Millisecond):
	}

	syncAll(subs[len(models.Collections):])
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("waiter never saw the reactivated snapshot")
	}
}

func TestLateDeliveriesOfPreviousTenantAreDropped(t *testing.T) {
	c, feed, cfg := newHeldCache()
	require.NoError(t, c.Activate(context.Background(), "t1"))
	stale := feed.of("t1")
	require.Len(t, stale, len(models.Collections))

	require.NoError(t, c.Activate(context.Background(), "t2"))
	syncAll(feed.of("t2"))
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.WaitReady(ctx))

	for _, sub := range stale {
		var item interface{}
		switch sub.table {
		case cfg.CollectionTable(models.CollectionOrganizations):
			item = models.Organization{ID: "o1", TenantID: "t1", Name: "Late"}
		case cfg.CollectionTable(models.CollectionPersons):
			item = models.Person{ID: "p1", TenantID: "t1", GivenName: "Ana", FamilyName: "Lopez"}
		default:
			item = models.Link{ID: "l1", TenantID: "t1", OrganizationID: "o1", PersonID: "p1", Active: true}
		}
		av, err := attributevalue.MarshalMap(item)
		require.NoError(t, err)
		sub.onChange(dal.ChangeEvent{Type: models.ChangeAdded, Key: "x", Item: av})
		sub.onError(errors.New("stream closed"))
	}

	assert.Equal(t, "t2", c.TenantID())
	assert.Empty(t, c.Organizations())
	assert.Empty(t, c.Persons())
	assert.Empty(t, c.Links())
	assert.NoError(t, c.Err(), "errors of the previous activation are ignored")

	av, err := attributevalue.MarshalMap(models.Organization{ID: "o2", TenantID: "t2", Name: "Fresh"})
	require.NoError(t, err)
	for _, sub := range feed.of("t2") {
		if sub.table == cfg.CollectionTable(models.CollectionOrganizations) {
			sub.onChange(dal.ChangeEvent{Type: models.ChangeAdded, Key: "o2", Item: av})
		}
	}
	require.Len(t, c.Organizations(), 1)
	assert.Equal(t, "o2", c.Organizations()[0].ID)
}


