package cache

import (
	"context"
	"errors"
	"sync"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"
	"gigbook-backend/views"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// ErrCacheReset is returned to waiters whose activation was replaced by a deactivation
// or by the activation of another tenant.
var ErrCacheReset = errors.New("tenant cache was deactivated or switched tenant")

// TenantCache mirrors one tenant's organizations, persons and links. It is fed only by
// change feed subscriptions; mutations reach it through the store.
type TenantCache struct {
	feed   dal.ChangeFeedInterface
	config *models.Config
	logger logger.Logger

	mu           sync.RWMutex
	arena        *Arena
	tenantID     string
	generation   uint64
	cancels      []func()
	status       map[models.Collection]*models.CollectionStatus
	ready        chan struct{}
	reset        chan struct{}
	listeners    map[int]func(models.Collection)
	nextListener int
}

// NewTenantCache creates an inactive cache
func NewTenantCache(feed dal.ChangeFeedInterface, cfg *models.Config, log logger.Logger) *TenantCache {
	c := &TenantCache{
		feed:      feed,
		config:    cfg,
		logger:    log,
		arena:     NewArena(),
		status:    map[models.Collection]*models.CollectionStatus{},
		listeners: map[int]func(models.Collection){},
	}
	c.ready = make(chan struct{})
	c.reset = make(chan struct{})
	return c
}

// Activate switches the cache to tenantID. Open subscriptions are cancelled first and
// deliveries still in flight for the previous activation are discarded.
func (c *TenantCache) Activate(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return models.NewValidationError("tenantId", "tenant ID is required")
	}

	c.mu.Lock()
	c.cancelLocked()
	c.generation++
	gen := c.generation
	c.arena.Reset()
	c.tenantID = tenantID
	c.renewReadyLocked()
	c.status = map[models.Collection]*models.CollectionStatus{}
	for _, coll := range models.Collections {
		c.status[coll] = &models.CollectionStatus{Collection: coll, Loading: true}
	}
	c.mu.Unlock()

	c.logger.Infof("Activating contact cache for tenant %s", tenantID)

	var errs []error
	for _, coll := range models.Collections {
		cancel, err := c.feed.Subscribe(ctx, c.config.CollectionTable(coll), models.TenantFilter(tenantID),
			c.changeHandler(gen, coll), c.errorHandler(gen, coll))
		if err != nil {
			c.errorHandler(gen, coll)(err)
			errs = append(errs, models.WrapSubscriptionError(coll, err))
			continue
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			cancel()
			return errors.Join(append(errs, context.Canceled)...)
		}
		c.cancels = append(c.cancels, cancel)
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Deactivate cancels every subscription and clears the cache
func (c *TenantCache) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tenantID != "" {
		c.logger.Infof("Deactivating contact cache for tenant %s", c.tenantID)
	}
	c.cancelLocked()
	c.generation++
	c.arena.Reset()
	c.tenantID = ""
	c.status = map[models.Collection]*models.CollectionStatus{}
	c.renewReadyLocked()
}

// renewReadyLocked starts a new activation: waiters on the previous one are woken
// through the closed reset channel.
func (c *TenantCache) renewReadyLocked() {
	close(c.reset)
	c.reset = make(chan struct{})
	c.ready = make(chan struct{})
}

func (c *TenantCache) cancelLocked() {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
}

func (c *TenantCache) changeHandler(gen uint64, coll models.Collection) func(dal.ChangeEvent) {
	return func(ev dal.ChangeEvent) {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		changed := c.applyLocked(coll, ev)
		listeners := c.listenersLocked()
		c.mu.Unlock()

		if changed {
			for _, fn := range listeners {
				fn(coll)
			}
		}
	}
}

func (c *TenantCache) errorHandler(gen uint64, coll models.Collection) func(error) {
	return func(err error) {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		subErr := models.WrapSubscriptionError(coll, err)
		c.status[coll] = &models.CollectionStatus{Collection: coll, Error: subErr.Error(), Err: subErr}
		c.checkReadyLocked()
		listeners := c.listenersLocked()
		tenantID := c.tenantID
		c.mu.Unlock()

		c.logger.WithFields(map[string]interface{}{
			"tenant":     tenantID,
			"collection": coll,
		}).Errorf("Contact subscription failed: %v", err)

		for _, fn := range listeners {
			fn(coll)
		}
	}
}

// applyLocked applies one delivery and reports whether the snapshot changed
func (c *TenantCache) applyLocked(coll models.Collection, ev dal.ChangeEvent) bool {
	if ev.Type == models.ChangeSynced {
		if st := c.status[coll]; st != nil && st.Err == nil {
			st.Loading = false
		}
		c.checkReadyLocked()
		return true
	}

	var transition Transition
	var id string
	var err error
	switch coll {
	case models.CollectionOrganizations:
		transition, id, err = c.applyOrganization(ev)
	case models.CollectionPersons:
		transition, id, err = c.applyPerson(ev)
	case models.CollectionLinks:
		transition, id, err = c.applyLink(ev)
	}
	if err != nil {
		c.logger.Errorf("Failed to decode %s change %s: %v", coll, ev.Key, err)
		return false
	}

	if transition != TransitionNone && transition != TransitionUpdated {
		c.logger.WithFields(map[string]interface{}{
			"tenant":     c.tenantID,
			"collection": coll,
			"id":         id,
		}).Debugf("Contact record %s", transition)
	}
	return transition != TransitionNone
}

func (c *TenantCache) applyOrganization(ev dal.ChangeEvent) (Transition, string, error) {
	if ev.Type == models.ChangeRemoved {
		return c.arena.RemoveOrganization(ev.Key), ev.Key, nil
	}
	var org models.Organization
	if err := attributevalue.UnmarshalMap(ev.Item, &org); err != nil {
		return TransitionNone, ev.Key, err
	}
	return c.arena.PutOrganization(org), org.ID, nil
}

func (c *TenantCache) applyPerson(ev dal.ChangeEvent) (Transition, string, error) {
	if ev.Type == models.ChangeRemoved {
		return c.arena.RemovePerson(ev.Key), ev.Key, nil
	}
	var person models.Person
	if err := attributevalue.UnmarshalMap(ev.Item, &person); err != nil {
		return TransitionNone, ev.Key, err
	}
	return c.arena.PutPerson(person), person.ID, nil
}

func (c *TenantCache) applyLink(ev dal.ChangeEvent) (Transition, string, error) {
	if ev.Type == models.ChangeRemoved {
		old, ok := c.arena.Link(ev.Key)
		if !ok {
			return TransitionNone, ev.Key, nil
		}
		before := c.arena.ActiveLinkCount(old.PersonID)
		t := c.arena.RemoveLink(ev.Key)
		c.logAffiliation(old.PersonID, before)
		return t, ev.Key, nil
	}
	var link models.Link
	if err := attributevalue.UnmarshalMap(ev.Item, &link); err != nil {
		return TransitionNone, ev.Key, err
	}
	before := c.arena.ActiveLinkCount(link.PersonID)
	t := c.arena.PutLink(link)
	c.logAffiliation(link.PersonID, before)
	return t, link.ID, nil
}

// logAffiliation reports a person switching between affiliated and unaffiliated
func (c *TenantCache) logAffiliation(personID string, activeBefore int) {
	after := c.arena.ActiveLinkCount(personID)
	if (activeBefore == 0) == (after == 0) {
		return
	}
	state := "affiliated"
	if after == 0 {
		state = "unaffiliated"
	}
	c.logger.WithFields(map[string]interface{}{
		"tenant": c.tenantID,
		"person": personID,
	}).Debugf("Person is now %s", state)
}

func (c *TenantCache) checkReadyLocked() {
	for _, coll := range models.Collections {
		st := c.status[coll]
		if st == nil || (st.Loading && st.Err == nil) {
			return
		}
	}
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
}

func (c *TenantCache) listenersLocked() []func(models.Collection) {
	out := make([]func(models.Collection), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

// TenantID returns the active tenant, or "" when inactive
func (c *TenantCache) TenantID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenantID
}

// Status returns the state of one collection
func (c *TenantCache) Status(coll models.Collection) models.CollectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if st, ok := c.status[coll]; ok {
		return *st
	}
	return models.CollectionStatus{Collection: coll}
}

// Statuses returns the state of every collection
func (c *TenantCache) Statuses() []models.CollectionStatus {
	out := make([]models.CollectionStatus, 0, len(models.Collections))
	for _, coll := range models.Collections {
		out = append(out, c.Status(coll))
	}
	return out
}

// Err returns the first subscription error, if any
func (c *TenantCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, coll := range models.Collections {
		if st, ok := c.status[coll]; ok && st.Err != nil {
			return st.Err
		}
	}
	return nil
}

// WaitReady blocks until every collection has delivered its initial snapshot or failed.
// A reactivation for the same tenant is followed. Deactivation or a switch to another
// tenant ends the wait with ErrCacheReset.
func (c *TenantCache) WaitReady(ctx context.Context) error {
	waited := ""
	for {
		c.mu.RLock()
		ready, reset, tenantID := c.ready, c.reset, c.tenantID
		c.mu.RUnlock()

		if waited != "" && tenantID != waited {
			return ErrCacheReset
		}
		waited = tenantID

		select {
		case <-ready:
			return c.Err()
		case <-reset:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// OnChange registers fn to run after every applied delivery, outside the cache lock.
// The returned func unregisters it.
func (c *TenantCache) OnChange(fn func(models.Collection)) func() {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// View runs fn against a consistent snapshot. fn must not retain the reader.
func (c *TenantCache) View(fn func(r views.Reader)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.arena)
}

// Organizations returns a copy of every organization, ordered by id
func (c *TenantCache) Organizations() []models.Organization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.arena.Organizations()
	for i := range out {
		out[i] = cloneOrganization(out[i])
	}
	return out
}

// Persons returns a copy of every person, ordered by id
func (c *TenantCache) Persons() []models.Person {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.arena.Persons()
	for i := range out {
		out[i] = clonePerson(out[i])
	}
	return out
}

// Links returns a copy of every link, ordered by id
func (c *TenantCache) Links() []models.Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arena.Links()
}
