// models/auth.go

package models

// LoginRequest carries the options of /auth login.
type LoginRequest struct {
	Email string `validate:"required,min=9,max=20,kuetprefix"`
}

// VerifyRequest carries the options of /auth verify. The code length is
// checked against the configured OTP length separately.
type VerifyRequest struct {
	Code string `validate:"required"`
	Name string `validate:"required,min=2,max=50"`
}

// AcknowledgeRequest carries the options of /auth acknowledge.
type AcknowledgeRequest struct {
	UserID string `validate:"required,numeric"`
}
