package cache

import (
	"slices"
	"sort"

	"gigbook-backend/models"
	"gigbook-backend/views"
)

// Transition is a structural change observed while applying a delta
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionAppeared    Transition = "appeared"
	TransitionUpdated     Transition = "updated"
	TransitionDisappeared Transition = "disappeared"
	TransitionDeactivated Transition = "deactivated"
	TransitionReactivated Transition = "reactivated"
)

type idSet map[string]struct{}

// Arena holds one tenant's records indexed by id, plus the secondary indexes the
// joins need. It is not safe for concurrent use; TenantCache guards it.
type Arena struct {
	organizations map[string]models.Organization
	persons       map[string]models.Person
	links         map[string]models.Link

	linksByOrganization map[string]idSet
	linksByPerson       map[string]idSet
	activeLinks         map[string]int
}

var _ views.Reader = (*Arena)(nil)

// NewArena creates an empty arena
func NewArena() *Arena {
	a := &Arena{}
	a.Reset()
	return a
}

// Reset drops every record and index
func (a *Arena) Reset() {
	a.organizations = map[string]models.Organization{}
	a.persons = map[string]models.Person{}
	a.links = map[string]models.Link{}
	a.linksByOrganization = map[string]idSet{}
	a.linksByPerson = map[string]idSet{}
	a.activeLinks = map[string]int{}
}

func (a *Arena) PutOrganization(org models.Organization) Transition {
	_, existed := a.organizations[org.ID]
	a.organizations[org.ID] = org
	if existed {
		return TransitionUpdated
	}
	return TransitionAppeared
}

func (a *Arena) RemoveOrganization(id string) Transition {
	if _, ok := a.organizations[id]; !ok {
		return TransitionNone
	}
	delete(a.organizations, id)
	return TransitionDisappeared
}

func (a *Arena) PutPerson(person models.Person) Transition {
	_, existed := a.persons[person.ID]
	a.persons[person.ID] = person
	if existed {
		return TransitionUpdated
	}
	return TransitionAppeared
}

func (a *Arena) RemovePerson(id string) Transition {
	if _, ok := a.persons[id]; !ok {
		return TransitionNone
	}
	delete(a.persons, id)
	return TransitionDisappeared
}

// PutLink upserts a link and moves it between indexes when its ends or its state changed
func (a *Arena) PutLink(link models.Link) Transition {
	old, existed := a.links[link.ID]
	if existed {
		a.unindex(old)
	}
	a.links[link.ID] = link
	a.index(link)

	switch {
	case !existed:
		return TransitionAppeared
	case old.Active && !link.Active:
		return TransitionDeactivated
	case !old.Active && link.Active:
		return TransitionReactivated
	default:
		return TransitionUpdated
	}
}

func (a *Arena) RemoveLink(id string) Transition {
	old, ok := a.links[id]
	if !ok {
		return TransitionNone
	}
	a.unindex(old)
	delete(a.links, id)
	return TransitionDisappeared
}

func (a *Arena) index(link models.Link) {
	addToSet(a.linksByOrganization, link.OrganizationID, link.ID)
	addToSet(a.linksByPerson, link.PersonID, link.ID)
	if link.Active {
		a.activeLinks[link.PersonID]++
	}
}

func (a *Arena) unindex(link models.Link) {
	removeFromSet(a.linksByOrganization, link.OrganizationID, link.ID)
	removeFromSet(a.linksByPerson, link.PersonID, link.ID)
	if link.Active {
		a.activeLinks[link.PersonID]--
		if a.activeLinks[link.PersonID] <= 0 {
			delete(a.activeLinks, link.PersonID)
		}
	}
}

func addToSet(sets map[string]idSet, key, id string) {
	set, ok := sets[key]
	if !ok {
		set = idSet{}
		sets[key] = set
	}
	set[id] = struct{}{}
}

func removeFromSet(sets map[string]idSet, key, id string) {
	set, ok := sets[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(sets, key)
	}
}

func (a *Arena) Organization(id string) (models.Organization, bool) {
	org, ok := a.organizations[id]
	return org, ok
}

func (a *Arena) Person(id string) (models.Person, bool) {
	p, ok := a.persons[id]
	return p, ok
}

func (a *Arena) Link(id string) (models.Link, bool) {
	l, ok := a.links[id]
	return l, ok
}

func (a *Arena) Organizations() []models.Organization {
	out := make([]models.Organization, 0, len(a.organizations))
	for _, id := range sortedKeys(a.organizations) {
		out = append(out, a.organizations[id])
	}
	return out
}

func (a *Arena) Persons() []models.Person {
	out := make([]models.Person, 0, len(a.persons))
	for _, id := range sortedKeys(a.persons) {
		out = append(out, a.persons[id])
	}
	return out
}

func (a *Arena) Links() []models.Link {
	out := make([]models.Link, 0, len(a.links))
	for _, id := range sortedKeys(a.links) {
		out = append(out, a.links[id])
	}
	return out
}

func (a *Arena) LinksByOrganization(organizationID string) []models.Link {
	return a.linksIn(a.linksByOrganization[organizationID])
}

func (a *Arena) LinksByPerson(personID string) []models.Link {
	return a.linksIn(a.linksByPerson[personID])
}

func (a *Arena) ActiveLinkCount(personID string) int {
	return a.activeLinks[personID]
}

// Counts returns the number of organizations, persons and links
func (a *Arena) Counts() (organizations, persons, links int) {
	return len(a.organizations), len(a.persons), len(a.links)
}

func (a *Arena) linksIn(set idSet) []models.Link {
	out := make([]models.Link, 0, len(set))
	for _, id := range sortedKeys(set) {
		out = append(out, a.links[id])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneOrganization(org models.Organization) models.Organization {
	org.Tags = slices.Clone(org.Tags)
	org.Comments = slices.Clone(org.Comments)
	return org
}

func clonePerson(p models.Person) models.Person {
	p.Tags = slices.Clone(p.Tags)
	p.Comments = slices.Clone(p.Comments)
	return p
}
