package models

// AssociateRequest is the body of POST /contacts/links
type AssociateRequest struct {
	OrganizationID string `json:"organizationId" binding:"required"`
	PersonID       string `json:"personId" binding:"required"`
	LinkDetails
}

// PriorityRequest is the body of POST /contacts/organizations/:id/priority
type PriorityRequest struct {
	PersonID string `json:"personId" binding:"required"`
}

// ClientStatusRequest is the body of PUT /contacts/organizations/:id/client
type ClientStatusRequest struct {
	IsClient *bool `json:"isClient" binding:"required"`
}

// TagsRequest replaces the tags of a contact
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// CommentRequest adds a comment to a contact
type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// BulkAssociateRequest is the body of POST /contacts/links/bulk
type BulkAssociateRequest struct {
	Links []AssociateRequest `json:"links" binding:"required,min=1,max=1000,dive"`
}

// BulkResult reports a bulk association item by item. Created ids and errors are
// ordered by the index of their request item.
type BulkResult struct {
	Succeeded int         `json:"succeeded"`
	Created   []string    `json:"created"`
	Errors    []BulkError `json:"errors"`
}

// BulkError is the failure of one bulk item
type BulkError struct {
	Index          int       `json:"index"`
	OrganizationID string    `json:"organizationId"`
	PersonID       string    `json:"personId"`
	Type           ErrorType `json:"type,omitempty"`
	Message        string    `json:"message"`
}

// ActiveContactsFilter narrows the active links of an organization. Nil flags and an
// empty role match everything.
type ActiveContactsFilter struct {
	Priority   *bool  `form:"priority" json:"priority,omitempty"`
	Interested *bool  `form:"interested" json:"interested,omitempty"`
	Role       string `form:"role" json:"role,omitempty"`
}
