package models

import "time"

// SortDirection orders search results.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

const (
	// DefaultSearchLimit caps results when the caller does not.
	DefaultSearchLimit = 50
	// MinQueryLength is the shortest free-text query that filters anything.
	MinQueryLength = 2
	// DefaultSortField orders results by name.
	DefaultSortField = "name"
	// DefaultLocale is used for collation when none is configured.
	DefaultLocale = "fr"
	// UnaffiliatedTag is implicitly carried by unaffiliated persons in search.
	UnaffiliatedTag = "indépendant"
)

// SearchRecord is the unified searchable projection of an organization or a person.
type SearchRecord struct {
	ID           string               `json:"id"`
	Kind         ContactKind          `json:"kind"`
	Unaffiliated bool                 `json:"unaffiliated"`
	DisplayName  string               `json:"displayName"`
	Name         string               `json:"name"`
	GivenName    string               `json:"givenName,omitempty"`
	Email        string               `json:"email,omitempty"`
	Phone        string               `json:"phone,omitempty"`
	City         string               `json:"city,omitempty"`
	Tags         []string             `json:"tags"`
	IsClient     bool                 `json:"isClient"`
	Roles        []string             `json:"roles,omitempty"`
	Organization *OrganizationSummary `json:"organization,omitempty"`
	Person       *PersonSummary       `json:"person,omitempty"`
	Affiliations []AffiliationSummary `json:"affiliations,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	SearchText   string               `json:"-"`
}

// OrganizationSummary is embedded in organization search records.
type OrganizationSummary struct {
	Name     string           `json:"name"`
	Type     OrganizationType `json:"type,omitempty"`
	Email    string           `json:"email,omitempty"`
	City     string           `json:"city,omitempty"`
	IsClient bool             `json:"isClient"`
}

// PersonSummary is embedded in person search records.
type PersonSummary struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
}

// AffiliationSummary names an organization an affiliated person works for.
type AffiliationSummary struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Role           string `json:"role,omitempty"`
}

// SearchFilters are ANDed structured predicates.
type SearchFilters struct {
	// Tags keeps records carrying at least one of the tags.
	Tags []string `json:"tags,omitempty"`
	// IsClient keeps records whose client flag equals the value. Persons are never clients.
	IsClient *bool `json:"isClient,omitempty"`
	// Fields maps a dotted path of the record's JSON form to the expected value.
	Fields map[string]string `json:"fields,omitempty"`
}

// SearchParams drives one search.
type SearchParams struct {
	Query     string        `json:"query"`
	Filters   SearchFilters `json:"filters"`
	SortField string        `json:"sortField,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Locale    string        `json:"locale,omitempty"`

	ExcludeOrganizations bool `json:"excludeOrganizations,omitempty"`
	ExcludeUnaffiliated  bool `json:"excludeUnaffiliated,omitempty"`
	IncludeAffiliated    bool `json:"includeAffiliated,omitempty"`
}

// SearchResult is one page of search results.
type SearchResult struct {
	Items []SearchRecord `json:"items"`
	// Total counts the projected records before filtering.
	Total int `json:"total"`
	// Matched counts the records that passed every filter, before the limit.
	Matched int `json:"matched"`
}
