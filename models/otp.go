// models/otp.go
package models

import (
	"errors"
	"time"
)

// ErrDuplicateActiveOTP is returned by an OTP store when the requester
// already holds a live code at insert time.
var ErrDuplicateActiveOTP = errors.New("an active otp already exists for this requester")

// OTP represents a one-time code issued to a Discord user for a student email.
type OTP struct {
	ID        string    `json:"id" bson:"_id"`
	Code      string    `json:"-" bson:"code"`
	Email     string    `json:"email" bson:"email"`
	DiscordID string    `json:"discordId" bson:"discord_id"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expires_at"`
}

// Active reports whether the code is still usable at now.
func (o *OTP) Active(now time.Time) bool {
	return o.ExpiresAt.After(now)
}

// OTPIssuance records when a code was issued to a requester. It outlives the
// OTP itself for the length of the cooldown window.
type OTPIssuance struct {
	ID        string    `json:"id" bson:"_id"`
	DiscordID string    `json:"discordId" bson:"discord_id"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
