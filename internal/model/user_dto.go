package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// CreateUserRequest is the payload accepted when creating a user.
type CreateUserRequest struct {
	ClerkID          string         `json:"clerkId" validate:"required" example:"user_2abc123def456"`
	Email            string         `json:"email" validate:"required,email" example:"john.doe@example.com"`
	FirstName        string         `json:"firstName,omitempty" example:"John"`
	LastName         string         `json:"lastName,omitempty" example:"Doe"`
	Roles            []string       `json:"roles,omitempty" validate:"omitempty,dive,required"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StripeCustomerID string         `json:"stripeCustomerId,omitempty" example:"cus_abc123def456"`
}

// UpdateUserRequest is a partial update. Nil fields are left untouched.
type UpdateUserRequest struct {
	ClerkID          *string        `json:"clerkId,omitempty" validate:"omitempty,min=1"`
	Email            *string        `json:"email,omitempty" validate:"omitempty,email"`
	FirstName        *string        `json:"firstName,omitempty"`
	LastName         *string        `json:"lastName,omitempty"`
	Roles            []string       `json:"roles,omitempty" validate:"omitempty,dive,required"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StripeCustomerID *string        `json:"stripeCustomerId,omitempty"`
	IsActive         *bool          `json:"isActive,omitempty"`
	LastLoginAt      *time.Time     `json:"lastLoginAt,omitempty"`
	AvatarURL        *string        `json:"avatarUrl,omitempty"`
}

// SetFields returns the $set document for the provided fields.
func (r UpdateUserRequest) SetFields() bson.M {
	set := bson.M{}
	if r.ClerkID != nil {
		set["clerkId"] = *r.ClerkID
	}
	if r.Email != nil {
		set["email"] = *r.Email
	}
	if r.FirstName != nil {
		set["firstName"] = *r.FirstName
	}
	if r.LastName != nil {
		set["lastName"] = *r.LastName
	}
	if r.Roles != nil {
		set["roles"] = r.Roles
	}
	if r.Metadata != nil {
		set["metadata"] = r.Metadata
	}
	if r.StripeCustomerID != nil {
		set["stripeCustomerId"] = *r.StripeCustomerID
	}
	if r.IsActive != nil {
		set["isActive"] = *r.IsActive
	}
	if r.LastLoginAt != nil {
		set["lastLoginAt"] = *r.LastLoginAt
	}
	if r.AvatarURL != nil {
		set["avatarUrl"] = *r.AvatarURL
	}
	return set
}

// ProfileUpdateRequest is the subset of fields a user may change on their own
// record. Identity, roles, activation and billing stay admin-only.
type ProfileUpdateRequest struct {
	Email     *string        `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string        `json:"firstName,omitempty"`
	LastName  *string        `json:"lastName,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UserUpdate widens the profile change to a full update request.
func (r ProfileUpdateRequest) UserUpdate() UpdateUserRequest {
	return UpdateUserRequest{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Metadata:  r.Metadata,
	}
}
