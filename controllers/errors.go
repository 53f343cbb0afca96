package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kminds/kuet-auth-bot/repositories"
	"github.com/kminds/kuet-auth-bot/services"
	"github.com/kminds/kuet-auth-bot/utils"
)

type userMessager interface {
	UserMessage() string
}

// userMessage maps err onto the text shown to the user. Faults without a
// known mapping fall back to fallback so internals never leak.
func userMessage(err error, fallback string) string {
	var um userMessager
	switch {
	case errors.As(err, &um):
		return um.UserMessage()
	case errors.Is(err, services.ErrInvalidOrExpired):
		return "Invalid or expired OTP"
	case errors.Is(err, services.ErrNotificationFailed):
		return "Failed to send verification email. Please try again later."
	case errors.Is(err, repositories.ErrEmailAlreadyLinked):
		return "This email is already linked to another Discord account."
	}
	return fallback
}

// ValidationError lists the problems found in a command's options.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) UserMessage() string {
	return "Validation error:\n" + strings.Join(e.Messages, "\n")
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("kuetprefix", func(fl validator.FieldLevel) bool {
		return utils.IsStudentPrefix(fl.Field().String())
	})
	return v
}

func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Messages: []string{"Invalid command options."}}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &ValidationError{Messages: msgs}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "Email.required":
		return "Email prefix is required."
	case "Email.min":
		return "Email prefix is too short. It should be at least 9 characters long."
	case "Email.max":
		return "Email prefix is too long. It should be at most 20 characters."
	case "Email.kuetprefix":
		return "Invalid KUET student email format. It should be in the format: nameid (e.g., zihad2107071)"
	case "Code.required":
		return "Verification code is required."
	case "Name.required", "Name.min", "Name.max":
		return "Name must be between 2 and 50 characters."
	case "UserID.required", "UserID.numeric":
		return "A valid server member is required."
	}
	return fe.Field() + " is invalid."
}
