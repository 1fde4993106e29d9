// Package views computes the derived relational views of a tenant snapshot.
// Every function is pure: it reads through a Reader and never mutates it.
// References to records not (yet) present in the snapshot are skipped.
package views

import (
	"sort"
	"strings"
	"time"

	"gigbook-backend/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Reader is a consistent, read-only snapshot of one tenant's collections.
// Slices are ordered by id.
type Reader interface {
	Organization(id string) (models.Organization, bool)
	Person(id string) (models.Person, bool)
	Link(id string) (models.Link, bool)
	Organizations() []models.Organization
	Persons() []models.Person
	Links() []models.Link
	LinksByOrganization(organizationID string) []models.Link
	LinksByPerson(personID string) []models.Link
	ActiveLinkCount(personID string) int
}

// JoinOptions tunes the joins
type JoinOptions struct {
	// IncludeInactive keeps dissociated links in the result
	IncludeInactive bool
	// Locale drives name collation; models.DefaultLocale when empty
	Locale string
}

// NewCollator returns a numeric, case and accent insensitive collator for locale.
// Collators are not safe for concurrent use.
func NewCollator(locale string) *collate.Collator {
	if locale == "" {
		locale = models.DefaultLocale
	}
	return collate.New(language.Make(locale), collate.Numeric, collate.Loose)
}

// OrganizationWithPersons joins an organization with the persons of its links.
// The priority link comes first, then persons by family and given name, then by link id.
// It returns nil when the organization is not in the snapshot.
func OrganizationWithPersons(r Reader, organizationID string, opts JoinOptions) *models.OrganizationView {
	org, ok := r.Organization(organizationID)
	if !ok {
		return nil
	}

	persons := []models.LinkedPerson{}
	for _, link := range r.LinksByOrganization(organizationID) {
		if !link.Active && !opts.IncludeInactive {
			continue
		}
		person, ok := r.Person(link.PersonID)
		if !ok {
			continue
		}
		persons = append(persons, models.LinkedPerson{
			Kind:   models.KindPerson,
			Person: person,
			Link:   link.Summary(),
		})
	}

	col := NewCollator(opts.Locale)
	sort.SliceStable(persons, func(i, j int) bool {
		a, b := persons[i], persons[j]
		if a.Link.Priority != b.Link.Priority {
			return a.Link.Priority
		}
		if c := col.CompareString(a.Person.SortName(), b.Person.SortName()); c != 0 {
			return c < 0
		}
		return a.Link.ID < b.Link.ID
	})

	return &models.OrganizationView{
		Kind:         models.KindOrganization,
		Organization: org,
		Persons:      persons,
	}
}

// ActiveContacts returns the persons actively linked to an organization whose link
// matches filter, in the order of OrganizationWithPersons. Roles compare
// case-insensitively. It returns nil when the organization is not in the snapshot.
func ActiveContacts(r Reader, organizationID string, filter models.ActiveContactsFilter, opts JoinOptions) []models.LinkedPerson {
	opts.IncludeInactive = false
	view := OrganizationWithPersons(r, organizationID, opts)
	if view == nil {
		return nil
	}

	contacts := []models.LinkedPerson{}
	for _, lp := range view.Persons {
		if filter.Priority != nil && lp.Link.Priority != *filter.Priority {
			continue
		}
		if filter.Interested != nil && lp.Link.Interested != *filter.Interested {
			continue
		}
		if filter.Role != "" && !strings.EqualFold(strings.TrimSpace(filter.Role), lp.Link.Role) {
			continue
		}
		contacts = append(contacts, lp)
	}
	return contacts
}

// PersonWithOrganizations joins a person with the organizations of its links,
// most recent start date first, undated links last, then by link id.
// It returns nil when the person is not in the snapshot.
func PersonWithOrganizations(r Reader, personID string, opts JoinOptions) *models.PersonView {
	person, ok := r.Person(personID)
	if !ok {
		return nil
	}

	organizations := []models.LinkedOrganization{}
	for _, link := range r.LinksByPerson(personID) {
		if !link.Active && !opts.IncludeInactive {
			continue
		}
		org, ok := r.Organization(link.OrganizationID)
		if !ok {
			continue
		}
		organizations = append(organizations, models.LinkedOrganization{
			Kind:         models.KindOrganization,
			Organization: org,
			Link:         link.Summary(),
		})
	}

	sort.SliceStable(organizations, func(i, j int) bool {
		a, b := organizations[i].Link, organizations[j].Link
		if c := compareStartDesc(a.StartDate, b.StartDate); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	return &models.PersonView{
		Kind:          models.KindPerson,
		Person:        person,
		Organizations: organizations,
	}
}

func compareStartDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case b.After(*a):
		return 1
	}
	return 0
}

// IsUnaffiliated reports whether the person has no active link
func IsUnaffiliated(r Reader, personID string) bool {
	return r.ActiveLinkCount(personID) == 0
}

// UnaffiliatedPersons returns the persons without any active link, by family and given name
func UnaffiliatedPersons(r Reader, opts JoinOptions) []models.Person {
	out := []models.Person{}
	for _, p := range r.Persons() {
		if IsUnaffiliated(r, p.ID) {
			out = append(out, p)
		}
	}

	col := NewCollator(opts.Locale)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].SortName(), out[j].SortName()); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Statistics summarizes the whole snapshot
func Statistics(r Reader) models.ContactStatistics {
	stats := models.ContactStatistics{LinksByRole: map[string]int{}}

	for _, org := range r.Organizations() {
		stats.Organizations++
		if org.IsClient {
			stats.Clients++
		}
	}
	for _, p := range r.Persons() {
		stats.Persons++
		if IsUnaffiliated(r, p.ID) {
			stats.UnaffiliatedPersons++
		}
	}
	for _, link := range r.Links() {
		stats.Links++
		if !link.Active {
			stats.InactiveLinks++
			continue
		}
		stats.ActiveLinks++
		if link.Priority {
			stats.PriorityContacts++
		}
		if link.Interested {
			stats.InterestedContacts++
		}
		if link.Role != "" {
			stats.LinksByRole[link.Role]++
		}
	}
	return stats
}

// OrganizationStatistics summarizes the links of one organization
func OrganizationStatistics(r Reader, organizationID string) models.LinkStatistics {
	stats := models.LinkStatistics{ByRole: map[string]int{}}
	for _, link := range r.LinksByOrganization(organizationID) {
		stats.Total++
		if !link.Active {
			stats.Inactive++
			continue
		}
		stats.Active++
		if link.Priority {
			stats.Priority++
		}
		if link.Interested {
			stats.Interested++
		}
		if link.Role != "" {
			stats.ByRole[link.Role]++
		}
	}
	return stats
}
