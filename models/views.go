package models

// ContactKind discriminates the tagged records returned by joins and search.
type ContactKind string

const (
	KindOrganization ContactKind = "organization"
	KindPerson       ContactKind = "person"
)

// OrganizationView is an organization together with its linked persons.
type OrganizationView struct {
	Kind         ContactKind    `json:"kind"`
	Organization Organization   `json:"organization"`
	Persons      []LinkedPerson `json:"persons"`
}

// LinkedPerson is a person seen through one of its links.
type LinkedPerson struct {
	Kind   ContactKind `json:"kind"`
	Person Person      `json:"person"`
	Link   LinkSummary `json:"link"`
}

// PersonView is a person together with its linked organizations.
type PersonView struct {
	Kind          ContactKind          `json:"kind"`
	Person        Person               `json:"person"`
	Organizations []LinkedOrganization `json:"organizations"`
}

// LinkedOrganization is an organization seen through one of its links.
type LinkedOrganization struct {
	Kind         ContactKind  `json:"kind"`
	Organization Organization `json:"organization"`
	Link         LinkSummary  `json:"link"`
}

// ContactStatistics summarizes the current snapshot of a tenant.
type ContactStatistics struct {
	Organizations       int            `json:"organizations"`
	Persons             int            `json:"persons"`
	Links               int            `json:"links"`
	ActiveLinks         int            `json:"activeLinks"`
	InactiveLinks       int            `json:"inactiveLinks"`
	UnaffiliatedPersons int            `json:"unaffiliatedPersons"`
	Clients             int            `json:"clients"`
	PriorityContacts    int            `json:"priorityContacts"`
	InterestedContacts  int            `json:"interestedContacts"`
	LinksByRole         map[string]int `json:"linksByRole"`
}

// LinkStatistics summarizes the links of one organization.
type LinkStatistics struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	Inactive   int            `json:"inactive"`
	Priority   int            `json:"priority"`
	Interested int            `json:"interested"`
	ByRole     map[string]int `json:"byRole"`
}
