package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kminds/kuet-auth-bot/security"
)

// Command names that carry a permission policy.
const (
	ActionLogin       = "login"
	ActionVerify      = "verify"
	ActionStatus      = "status"
	ActionAcknowledge = "acknowledge"
)

// AuthPermissions builds the default policy for each auth command from the
// guild configuration.
func AuthPermissions(g GuildConfig) map[string]security.Policy {
	blocked := &security.Rule{Forbidden: security.NewIDSet(g.BlockedUserIDs...)}
	blockedRoles := &security.Rule{Forbidden: security.NewIDSet(g.BlockedRoleIDs...)}

	login := security.Policy{Users: blocked, Roles: blockedRoles}
	verify := security.Policy{Users: blocked, Roles: blockedRoles}
	if g.VerificationChannelID != "" {
		login.Channels = &security.Rule{Allowed: security.NewIDSet(g.VerificationChannelID)}
		verify.Channels = &security.Rule{
			Allowed: security.NewIDSet(g.VerificationChannelID, security.DirectMessageChannel),
		}
	}

	return map[string]security.Policy{
		ActionLogin:  login,
		ActionVerify: verify,
		ActionStatus: {},
		// No moderator roles configured means nobody may acknowledge.
		ActionAcknowledge: {
			Roles: &security.Rule{Allowed: security.NewIDSet(g.ModeratorRoleIDs...)},
		},
	}
}

type ruleFile struct {
	Allowed   []string `yaml:"allowed"`
	Forbidden []string `yaml:"forbidden"`
}

type policyFile struct {
	Channels *ruleFile `yaml:"channels"`
	Roles    *ruleFile `yaml:"roles"`
	Users    *ruleFile `yaml:"users"`
}

// LoadPermissionsFile reads a YAML document of the form
//
//	login:
//	  channels:
//	    allowed: ["123"]
//	acknowledge:
//	  roles:
//	    allowed: ["456"]
//
// and overlays each listed action onto base. Actions missing from the file
// keep their base policy.
func LoadPermissionsFile(path string, base map[string]security.Policy) (map[string]security.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}
	return ParsePermissions(data, base)
}

// ParsePermissions is LoadPermissionsFile over an in-memory document.
func ParsePermissions(data []byte, base map[string]security.Policy) (map[string]security.Policy, error) {
	var doc map[string]policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse permissions file: %w", err)
	}

	out := make(map[string]security.Policy, len(base)+len(doc))
	for action, p := range base {
		out[action] = p
	}
	for action, p := range doc {
		out[action] = security.Policy{
			Channels: p.Channels.rule(),
			Roles:    p.Roles.rule(),
			Users:    p.Users.rule(),
		}
	}
	return out, nil
}

func (r *ruleFile) rule() *security.Rule {
	if r == nil {
		return nil
	}
	rule := &security.Rule{}
	// An explicit "allowed: []" is kept as an empty, deny-all set.
	if r.Allowed != nil {
		rule.Allowed = security.NewIDSet(r.Allowed...)
	}
	if r.Forbidden != nil {
		rule.Forbidden = security.NewIDSet(r.Forbidden...)
	}
	return rule
}
