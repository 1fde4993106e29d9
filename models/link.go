package models

import "time"

// Link is the many-to-many relationship between one organization and one person.
// Links are never deleted in the normal flow: dissociation clears Active and stamps EndDate.
type Link struct {
	ID             string     `json:"id" dynamodbav:"id"`
	TenantID       string     `json:"tenantId" dynamodbav:"tenantId" validate:"required"`
	OrganizationID string     `json:"organizationId" dynamodbav:"organizationId" validate:"required"`
	PersonID       string     `json:"personId" dynamodbav:"personId" validate:"required"`
	Role           string     `json:"role,omitempty" dynamodbav:"role,omitempty" validate:"omitempty,max=100"`
	Active         bool       `json:"active" dynamodbav:"active"`
	Priority       bool       `json:"priority" dynamodbav:"priority"`
	Interested     bool       `json:"interested" dynamodbav:"interested"`
	StartDate      *time.Time `json:"startDate,omitempty" dynamodbav:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty" dynamodbav:"endDate"`
	Notes          string     `json:"notes,omitempty" dynamodbav:"notes,omitempty" validate:"omitempty,max=500"`
	CreatedAt      time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
	CreatedBy      string     `json:"createdBy" dynamodbav:"createdBy"`
	UpdatedBy      string     `json:"updatedBy,omitempty" dynamodbav:"updatedBy,omitempty"`
}

// Summary returns the relationship fields embedded in join views.
func (l Link) Summary() LinkSummary {
	return LinkSummary{
		ID:         l.ID,
		Role:       l.Role,
		Active:     l.Active,
		Priority:   l.Priority,
		Interested: l.Interested,
		StartDate:  l.StartDate,
		EndDate:    l.EndDate,
		Notes:      l.Notes,
	}
}

// LinkDetails are the caller-supplied fields of a new association.
type LinkDetails struct {
	Role       string     `json:"role,omitempty" validate:"omitempty,max=100"`
	Priority   bool       `json:"priority"`
	Interested bool       `json:"interested"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	Notes      string     `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// LinkPatch updates an existing link. Active is accepted on the wire only to be rejected:
// activation state changes go through associate, dissociate and reactivate.
type LinkPatch struct {
	Role       *string    `json:"role,omitempty"`
	Active     *bool      `json:"active,omitempty"`
	Priority   *bool      `json:"priority,omitempty"`
	Interested *bool      `json:"interested,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// ApplyTo merges the patch into link, ignoring Active.
func (p LinkPatch) ApplyTo(link *Link) {
	if p.Role != nil {
		link.Role = *p.Role
	}
	if p.Priority != nil {
		link.Priority = *p.Priority
	}
	if p.Interested != nil {
		link.Interested = *p.Interested
	}
	if p.StartDate != nil {
		link.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		link.EndDate = p.EndDate
	}
	if p.Notes != nil {
		link.Notes = *p.Notes
	}
}

// Updates returns the store attribute updates for the patch, ignoring Active.
func (p LinkPatch) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	setString(updates, "role", p.Role)
	if p.Priority != nil {
		updates[AttrPriority] = *p.Priority
	}
	if p.Interested != nil {
		updates["interested"] = *p.Interested
	}
	if p.StartDate != nil {
		updates[AttrStartDate] = *p.StartDate
	}
	if p.EndDate != nil {
		updates[AttrEndDate] = *p.EndDate
	}
	setString(updates, "notes", p.Notes)
	return updates
}

// LinkSummary is the relationship summary embedded in join results.
type LinkSummary struct {
	ID         string     `json:"id"`
	Role       string     `json:"role,omitempty"`
	Active     bool       `json:"active"`
	Priority   bool       `json:"priority"`
	Interested bool       `json:"interested"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// ActiveLinkGuard reserves an organization/person pair while one of its links is active.
// It lives in the links table without a tenantId, so tenant queries and subscriptions
// never return it.
type ActiveLinkGuard struct {
	ID     string `json:"id" dynamodbav:"id"`
	LinkID string `json:"linkId" dynamodbav:"linkId"`
}

// ActiveLinkGuardID is the key of the guard of a pair
func ActiveLinkGuardID(tenantID, organizationID, personID string) string {
	return "active#" + tenantID + "#" + organizationID + "#" + personID
}

// PriorityMove hands the priority contact of an organization from one link to another.
// FromLinkID is the organization's current PriorityLinkID, empty when it has none.
type PriorityMove struct {
	OrganizationID string
	FromLinkID     string
	ToLinkID       string
	UpdatedBy      string
}
