package security

import "fmt"

// DirectMessageChannel is the channel id used for invocations that arrive
// outside a guild.
const DirectMessageChannel = "DM"

// IDSet is a set of Discord ids (users, roles or channels).
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, ignoring empty strings.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Intersects reports whether any of ids is in the set.
func (s IDSet) Intersects(ids []string) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// Rule constrains one dimension of an invocation. A nil Allowed set means
// "anything not forbidden"; a non-nil empty Allowed set admits nothing.
type Rule struct {
	Allowed   IDSet
	Forbidden IDSet
}

// Policy is the declarative permission set attached to a command. A nil
// dimension places no constraint on it.
type Policy struct {
	Channels *Rule
	Roles    *Rule
	Users    *Rule
}

// Invocation is the snapshot a policy is evaluated against.
type Invocation struct {
	UserID    string
	ChannelID string
	RoleIDs   []string
}

type DenyReason string

const (
	ReasonChannelForbidden  DenyReason = "channel-forbidden"
	ReasonChannelNotAllowed DenyReason = "channel-not-allowed"
	ReasonUserBlocked       DenyReason = "user-blocked"
	ReasonUserNotAllowed    DenyReason = "user-not-allowed"
	ReasonRoleBlocked       DenyReason = "role-blocked"
	ReasonRoleNotAllowed    DenyReason = "role-not-allowed"
)

var denyMessages = map[DenyReason]string{
	ReasonChannelForbidden:  "This command is disabled in this channel",
	ReasonChannelNotAllowed: "You are not allowed to use this command (channel)",
	ReasonUserBlocked:       "You are blocked from using this command",
	ReasonUserNotAllowed:    "You are not allowed to use this command",
	ReasonRoleBlocked:       "You are blocked from using this command (role)",
	ReasonRoleNotAllowed:    "You are not allowed to use this command (role)",
}

// Message is the text shown to the user for the reason.
func (r DenyReason) Message() string {
	if msg, ok := denyMessages[r]; ok {
		return msg
	}
	return "You are not allowed to use this command"
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Err returns a *PermissionDeniedError for a denial and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PermissionDeniedError{Reason: d.Reason}
}

// PermissionDeniedError is the typed failure for a denied invocation.
type PermissionDeniedError struct {
	Reason DenyReason
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// UserMessage implements the controllers' user-facing message contract.
func (e *PermissionDeniedError) UserMessage() string {
	return e.Reason.Message()
}

func allow() Decision { return Decision{Allowed: true} }
func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Evaluate decides whether inv may run under p. Checks run in a fixed order
// and the first failing one wins: channel, user block, user allow, role
// block, role allow.
func Evaluate(p Policy, inv Invocation) Decision {
	if c := p.Channels; c != nil {
		if c.Forbidden.Has(inv.ChannelID) {
			return deny(ReasonChannelForbidden)
		}
		if c.Allowed != nil && !c.Allowed.Has(inv.ChannelID) {
			return deny(ReasonChannelNotAllowed)
		}
	}

	if u := p.Users; u != nil {
		if u.Forbidden.Has(inv.UserID) {
			return deny(ReasonUserBlocked)
		}
		if u.Allowed != nil && !u.Allowed.Has(inv.UserID) {
			return deny(ReasonUserNotAllowed)
		}
	}

	if r := p.Roles; r != nil {
		if r.Forbidden.Intersects(inv.RoleIDs) {
			return deny(ReasonRoleBlocked)
		}
		if r.Allowed != nil && !r.Allowed.Intersects(inv.RoleIDs) {
			return deny(ReasonRoleNotAllowed)
		}
	}

	return allow()
}
