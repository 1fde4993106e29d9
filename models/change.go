package models

// Collection names one of the three synchronized entity sets.
type Collection string

const (
	CollectionOrganizations Collection = "organizations"
	CollectionPersons       Collection = "persons"
	CollectionLinks         Collection = "links"
)

// Collections lists every synchronized collection in activation order.
var Collections = []Collection{CollectionOrganizations, CollectionPersons, CollectionLinks}

// ChangeType is the kind of a change feed delivery.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
	// ChangeSynced marks the end of the initial snapshot. It carries no record.
	ChangeSynced ChangeType = "synced"
)

// Operator is a filter comparison supported by every store adapter.
type Operator string

const (
	OpEquals        Operator = "=="
	OpArrayContains Operator = "array-contains"
)

// Condition compares one top-level attribute against a value.
type Condition struct {
	Field string      `json:"field"`
	Op    Operator    `json:"op"`
	Value interface{} `json:"value"`
}

// Filter is a conjunction of conditions.
type Filter []Condition

// TenantFilter restricts a query or a subscription to one tenant.
func TenantFilter(tenantID string) Filter {
	return Filter{{Field: AttrTenantID, Op: OpEquals, Value: tenantID}}
}

// And returns a copy of f with c appended.
func (f Filter) And(c Condition) Filter {
	out := make(Filter, 0, len(f)+1)
	out = append(out, f...)
	return append(out, c)
}

// Eq builds an equality condition.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEquals, Value: value}
}

// Contains builds an array membership condition.
func Contains(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpArrayContains, Value: value}
}

// CollectionStatus is the per-collection state exposed by the live cache.
type CollectionStatus struct {
	Collection Collection `json:"collection"`
	Loading    bool       `json:"loading"`
	Error      string     `json:"error,omitempty"`
	Err        error      `json:"-"`
}
