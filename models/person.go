package models

import (
	"strings"
	"time"
)

// Person is an individual contact who may or may not work for an organization.
// Whether the person is unaffiliated is derived from the links, never stored.
type Person struct {
	ID            string    `json:"id" dynamodbav:"id"`
	TenantID      string    `json:"tenantId" dynamodbav:"tenantId" validate:"required"`
	Civility      string    `json:"civility,omitempty" dynamodbav:"civility,omitempty" validate:"omitempty,oneof=M Mme Dr Pr"`
	GivenName     string    `json:"givenName" dynamodbav:"givenName" validate:"required,max=100"`
	FamilyName    string    `json:"familyName" dynamodbav:"familyName" validate:"required,max=100"`
	Email         string    `json:"email,omitempty" dynamodbav:"email,omitempty" validate:"omitempty,email"`
	WorkEmail     string    `json:"workEmail,omitempty" dynamodbav:"workEmail,omitempty" validate:"omitempty,email"`
	PersonalEmail string    `json:"personalEmail,omitempty" dynamodbav:"personalEmail,omitempty" validate:"omitempty,email"`
	Phone         string    `json:"phone,omitempty" dynamodbav:"phone,omitempty" validate:"omitempty,max=30"`
	WorkPhone     string    `json:"workPhone,omitempty" dynamodbav:"workPhone,omitempty" validate:"omitempty,max=30"`
	MobilePhone   string    `json:"mobilePhone,omitempty" dynamodbav:"mobilePhone,omitempty" validate:"omitempty,max=30"`
	Address       Address   `json:"address" dynamodbav:"address"`
	Tags          []string  `json:"tags" dynamodbav:"tags"`
	Notes         string    `json:"notes,omitempty" dynamodbav:"notes,omitempty" validate:"omitempty,max=5000"`
	Comments      []Comment `json:"comments,omitempty" dynamodbav:"comments,omitempty" validate:"dive"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
	CreatedBy     string    `json:"createdBy" dynamodbav:"createdBy"`
	UpdatedBy     string    `json:"updatedBy,omitempty" dynamodbav:"updatedBy,omitempty"`
}

// FullName is "Given Family", trimmed.
func (p Person) FullName() string {
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

// SortName is the family-then-given key used to order persons.
func (p Person) SortName() string {
	return strings.TrimSpace(p.FamilyName + " " + p.GivenName)
}

// PersonPatch is a partial update. Nil fields are left untouched.
type PersonPatch struct {
	Civility      *string    `json:"civility,omitempty"`
	GivenName     *string    `json:"givenName,omitempty"`
	FamilyName    *string    `json:"familyName,omitempty"`
	Email         *string    `json:"email,omitempty"`
	WorkEmail     *string    `json:"workEmail,omitempty"`
	PersonalEmail *string    `json:"personalEmail,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	WorkPhone     *string    `json:"workPhone,omitempty"`
	MobilePhone   *string    `json:"mobilePhone,omitempty"`
	Address       *Address   `json:"address,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	Comments      *[]Comment `json:"-"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PersonPatch) IsEmpty() bool {
	return len(p.Updates()) == 0
}

// ApplyTo merges the patch into person.
func (p PersonPatch) ApplyTo(person *Person) {
	if p.Civility != nil {
		person.Civility = *p.Civility
	}
	if p.GivenName != nil {
		person.GivenName = *p.GivenName
	}
	if p.FamilyName != nil {
		person.FamilyName = *p.FamilyName
	}
	if p.Email != nil {
		person.Email = *p.Email
	}
	if p.WorkEmail != nil {
		person.WorkEmail = *p.WorkEmail
	}
	if p.PersonalEmail != nil {
		person.PersonalEmail = *p.PersonalEmail
	}
	if p.Phone != nil {
		person.Phone = *p.Phone
	}
	if p.WorkPhone != nil {
		person.WorkPhone = *p.WorkPhone
	}
	if p.MobilePhone != nil {
		person.MobilePhone = *p.MobilePhone
	}
	if p.Address != nil {
		person.Address = *p.Address
	}
	if p.Tags != nil {
		person.Tags = *p.Tags
	}
	if p.Notes != nil {
		person.Notes = *p.Notes
	}
	if p.Comments != nil {
		person.Comments = *p.Comments
	}
}

// Updates returns the store attribute updates for the patch.
func (p PersonPatch) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	setString(updates, "civility", p.Civility)
	setString(updates, "givenName", p.GivenName)
	setString(updates, "familyName", p.FamilyName)
	setString(updates, "email", p.Email)
	setString(updates, "workEmail", p.WorkEmail)
	setString(updates, "personalEmail", p.PersonalEmail)
	setString(updates, "phone", p.Phone)
	setString(updates, "workPhone", p.WorkPhone)
	setString(updates, "mobilePhone", p.MobilePhone)
	if p.Address != nil {
		updates["address"] = *p.Address
	}
	if p.Tags != nil {
		updates[AttrTags] = normalizeTags(*p.Tags)
	}
	setString(updates, "notes", p.Notes)
	if p.Comments != nil {
		updates[AttrComments] = *p.Comments
	}
	return updates
}
