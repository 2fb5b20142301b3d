package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsersCollection is the Mongo collection holding User documents.
const UsersCollection = "users"

// DefaultRole is assigned when a user is created without roles.
const DefaultRole = "user"

// User is the persisted account record for a Clerk identity.
type User struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ClerkID          string             `json:"clerkId" bson:"clerkId"`
	Email            string             `json:"email" bson:"email"`
	FirstName        string             `json:"firstName,omitempty" bson:"firstName,omitempty"`
	LastName         string             `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Roles            []string           `json:"roles" bson:"roles"`
	Metadata         map[string]any     `json:"metadata,omitempty" bson:"metadata,omitempty"`
	StripeCustomerID string             `json:"stripeCustomerId,omitempty" bson:"stripeCustomerId,omitempty"`
	IsActive         bool               `json:"isActive" bson:"isActive"`
	LastLoginAt      *time.Time         `json:"lastLoginAt,omitempty" bson:"lastLoginAt,omitempty"`
	AvatarURL        string             `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName joins first and last name, trimming the gap when either is empty.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
