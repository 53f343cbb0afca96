package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidOrExpired covers a wrong code, a wrong requester and an
	// already consumed or expired OTP.
	ErrInvalidOrExpired = errors.New("invalid or expired otp")
	// ErrNotificationFailed means the code could not be delivered; the
	// stored OTP has been rolled back.
	ErrNotificationFailed = errors.New("failed to send verification email")
)

// ActiveOTPError is returned when the requester still holds a live OTP.
type ActiveOTPError struct {
	Remaining time.Duration
}

func (e *ActiveOTPError) Error() string {
	return fmt.Sprintf("active otp exists, expires in %s", FormatMinutesSeconds(e.Remaining))
}

func (e *ActiveOTPError) UserMessage() string {
	return fmt.Sprintf("You already have an active OTP. Please wait %s for it to expire.", FormatMinutesSeconds(e.Remaining))
}

// CooldownError is returned when the requester asked for a code within the
// cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

// Seconds is the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int64 {
	return CeilSeconds(e.Remaining)
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp cooldown active for %ds", e.Seconds())
}

func (e *CooldownError) UserMessage() string {
	return fmt.Sprintf("Please wait %d seconds before requesting a new OTP", e.Seconds())
}

// CeilSeconds rounds d up to whole seconds. A window that is still open is
// never reported as zero seconds.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64((d + time.Second - 1) / time.Second)
}

// FormatMinutesSeconds renders d as "Xm Ys" with whole minutes and seconds
// rounded up. A remainder that rounds up to 60s is folded into the minutes.
func FormatMinutesSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	seconds := CeilSeconds(d % time.Minute)
	if d%time.Minute == 0 {
		seconds = 0
	}
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
