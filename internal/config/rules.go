package config

import (
	"github.com/haasonsaas/sage/internal/permission"
)

// ToRules converts configured permission rules into engine rules.
func (p PermissionConfig) ToRules() []permission.Rule {
	rules := make([]permission.Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, permission.Rule{
			Behavior:       parseBehavior(r.Behavior),
			ToolPattern:    r.Tool,
			PathPattern:    r.Path,
			CommandPattern: r.Command,
			Source:         parseSource(r.Source),
			Enabled:        !r.Disabled,
			Reason:         r.Reason,
		})
	}
	return rules
}

func parseBehavior(s string) permission.Behavior {
	switch s {
	case "allow":
		return permission.Allow
	case "deny":
		return permission.Deny
	case "passthrough":
		return permission.Passthrough
	default:
		return permission.Ask
	}
}

func parseSource(s string) permission.RuleSource {
	switch s {
	case "cli":
		return permission.SourceCliArg
	case "session":
		return permission.SourceSessionSettings
	case "local":
		return permission.SourceLocalSettings
	case "project":
		return permission.SourceProjectSettings
	case "user":
		return permission.SourceUserSettings
	default:
		return permission.SourceBuiltin
	}
}
