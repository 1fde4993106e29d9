package models

import "time"

// Attribute names shared by the store adapters, the repositories and the filters.
const (
	AttrID             = "id"
	AttrTenantID       = "tenantId"
	AttrOrganizationID = "organizationId"
	AttrPersonID       = "personId"
	AttrActive         = "active"
	AttrPriority       = "priority"
	AttrTags           = "tags"
	AttrComments       = "comments"
	AttrIsClient       = "isClient"
	AttrEndDate        = "endDate"
	AttrStartDate      = "startDate"
	AttrUpdatedAt      = "updatedAt"
	AttrUpdatedBy      = "updatedBy"
	AttrPriorityLinkID = "priorityLinkId"
	AttrLinkID         = "linkId"
)

// OrganizationType categorizes an organization
type OrganizationType string

const (
	OrganizationTypeFestival    OrganizationType = "festival"
	OrganizationTypeVenue       OrganizationType = "venue"
	OrganizationTypeLabel       OrganizationType = "label"
	OrganizationTypeMedia       OrganizationType = "media"
	OrganizationTypeInstitution OrganizationType = "institution"
	OrganizationTypeAssociation OrganizationType = "association"
	OrganizationTypeOther       OrganizationType = "other"
)

// Address holds postal address fields
type Address struct {
	Street     string `json:"street,omitempty" dynamodbav:"street,omitempty" validate:"omitempty,max=200"`
	Suite      string `json:"suite,omitempty" dynamodbav:"suite,omitempty" validate:"omitempty,max=200"`
	PostalCode string `json:"postalCode,omitempty" dynamodbav:"postalCode,omitempty" validate:"omitempty,max=20"`
	City       string `json:"city,omitempty" dynamodbav:"city,omitempty" validate:"omitempty,max=100"`
	Region     string `json:"region,omitempty" dynamodbav:"region,omitempty" validate:"omitempty,max=100"`
	Country    string `json:"country,omitempty" dynamodbav:"country,omitempty" validate:"omitempty,max=100"`
}

// Organization is a venue operator, festival, agency or any other legal entity
type Organization struct {
	ID        string           `json:"id" dynamodbav:"id"`
	TenantID  string           `json:"tenantId" dynamodbav:"tenantId" validate:"required"`
	Name      string           `json:"name" dynamodbav:"name" validate:"required,min=2,max=200"`
	Type      OrganizationType `json:"type,omitempty" dynamodbav:"type,omitempty" validate:"omitempty,oneof=festival venue label media institution association other"`
	Source    string           `json:"source,omitempty" dynamodbav:"source,omitempty" validate:"omitempty,max=100"`
	Email     string           `json:"email,omitempty" dynamodbav:"email,omitempty" validate:"omitempty,email"`
	Phone1    string           `json:"phone1,omitempty" dynamodbav:"phone1,omitempty" validate:"omitempty,max=30"`
	Phone2    string           `json:"phone2,omitempty" dynamodbav:"phone2,omitempty" validate:"omitempty,max=30"`
	Fax       string           `json:"fax,omitempty" dynamodbav:"fax,omitempty" validate:"omitempty,max=30"`
	Website   string           `json:"website,omitempty" dynamodbav:"website,omitempty" validate:"omitempty,url"`
	Address   Address          `json:"address" dynamodbav:"address"`
	Tags      []string         `json:"tags" dynamodbav:"tags"`
	IsClient  bool             `json:"isClient" dynamodbav:"isClient"`
	Notes     string           `json:"notes,omitempty" dynamodbav:"notes,omitempty" validate:"omitempty,max=5000"`
	Comments  []Comment        `json:"comments,omitempty" dynamodbav:"comments,omitempty" validate:"dive"`
	CreatedAt time.Time        `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" dynamodbav:"updatedAt"`
	CreatedBy string           `json:"createdBy" dynamodbav:"createdBy"`
	UpdatedBy string           `json:"updatedBy,omitempty" dynamodbav:"updatedBy,omitempty"`

	// PriorityLinkID points at the link last made priority contact. Writes that move
	// the priority are conditioned on its current value.
	PriorityLinkID string `json:"priorityLinkId,omitempty" dynamodbav:"priorityLinkId,omitempty"`
}

// OrganizationPatch is a partial update. Nil fields are left untouched.
type OrganizationPatch struct {
	Name     *string           `json:"name,omitempty"`
	Type     *OrganizationType `json:"type,omitempty"`
	Source   *string           `json:"source,omitempty"`
	Email    *string           `json:"email,omitempty"`
	Phone1   *string           `json:"phone1,omitempty"`
	Phone2   *string           `json:"phone2,omitempty"`
	Fax      *string           `json:"fax,omitempty"`
	Website  *string           `json:"website,omitempty"`
	Address  *Address          `json:"address,omitempty"`
	Tags     *[]string         `json:"tags,omitempty"`
	IsClient *bool             `json:"isClient,omitempty"`
	Notes    *string           `json:"notes,omitempty"`
	Comments *[]Comment        `json:"-"`
}

// IsEmpty reports whether the patch changes nothing.
func (p OrganizationPatch) IsEmpty() bool {
	return len(p.Updates()) == 0
}

// ApplyTo merges the patch into org.
func (p OrganizationPatch) ApplyTo(org *Organization) {
	if p.Name != nil {
		org.Name = *p.Name
	}
	if p.Type != nil {
		org.Type = *p.Type
	}
	if p.Source != nil {
		org.Source = *p.Source
	}
	if p.Email != nil {
		org.Email = *p.Email
	}
	if p.Phone1 != nil {
		org.Phone1 = *p.Phone1
	}
	if p.Phone2 != nil {
		org.Phone2 = *p.Phone2
	}
	if p.Fax != nil {
		org.Fax = *p.Fax
	}
	if p.Website != nil {
		org.Website = *p.Website
	}
	if p.Address != nil {
		org.Address = *p.Address
	}
	if p.Tags != nil {
		org.Tags = *p.Tags
	}
	if p.IsClient != nil {
		org.IsClient = *p.IsClient
	}
	if p.Notes != nil {
		org.Notes = *p.Notes
	}
	if p.Comments != nil {
		org.Comments = *p.Comments
	}
}

// Updates returns the store attribute updates for the patch.
func (p OrganizationPatch) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	setString(updates, "name", p.Name)
	if p.Type != nil {
		updates["type"] = string(*p.Type)
	}
	setString(updates, "source", p.Source)
	setString(updates, "email", p.Email)
	setString(updates, "phone1", p.Phone1)
	setString(updates, "phone2", p.Phone2)
	setString(updates, "fax", p.Fax)
	setString(updates, "website", p.Website)
	if p.Address != nil {
		updates["address"] = *p.Address
	}
	if p.Tags != nil {
		updates[AttrTags] = normalizeTags(*p.Tags)
	}
	if p.IsClient != nil {
		updates[AttrIsClient] = *p.IsClient
	}
	setString(updates, "notes", p.Notes)
	if p.Comments != nil {
		updates[AttrComments] = *p.Comments
	}
	return updates
}

func setString(updates map[string]interface{}, attr string, value *string) {
	if value != nil {
		updates[attr] = *value
	}
}

// normalizeTags never returns nil so an empty tag list is stored as an empty list.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
