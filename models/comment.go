package models

import "time"

// Comment is a dated note attached to an organization or a person.
// Comments are persisted on the owning record.
type Comment struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Content   string    `json:"content" dynamodbav:"content" validate:"required,max=2000"`
	Author    string    `json:"author" dynamodbav:"author"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}
