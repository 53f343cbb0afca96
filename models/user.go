// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
	RoleAlumni  UserRole = "alumni"
)

const (
	UserStatusInactive = 0
	UserStatusActive   = 1
)

// User is a verified student linked to a Discord account
type User struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	Name      string             `json:"name" bson:"name"`
	DiscordID string             `json:"discordId,omitempty" bson:"discord_id,omitempty"`
	Role      UserRole           `json:"role" bson:"role"`
	Batch     int                `json:"batch,omitempty" bson:"batch,omitempty"`
	Term      string             `json:"term,omitempty" bson:"term,omitempty"`
	Status    int                `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// IsActive reports whether the account finished verification.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Response is the JSON envelope used by the HTTP endpoints
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
