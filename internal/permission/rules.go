// Package permission implements multi-source rule evaluation, risk gating,
// and cached user decisions for tool calls.
package permission

import (
	"regexp"
	"sort"
)

// Behavior is the action a rule prescribes.
type Behavior string

const (
	// Allow admits the call without asking.
	Allow Behavior = "allow"
	// Deny rejects the call without asking.
	Deny Behavior = "deny"
	// Ask defers the call to the permission handler.
	Ask Behavior = "ask"
	// Passthrough skips the rule; evaluation continues with the next one.
	Passthrough Behavior = "passthrough"
)

// RuleSource identifies where a rule came from. Lower values take priority.
type RuleSource int

const (
	SourceCliArg RuleSource = iota
	SourceSessionSettings
	SourceLocalSettings
	SourceProjectSettings
	SourceUserSettings
	SourceBuiltin
)

func (s RuleSource) String() string {
	switch s {
	case SourceCliArg:
		return "cli"
	case SourceSessionSettings:
		return "session"
	case SourceLocalSettings:
		return "local"
	case SourceProjectSettings:
		return "project"
	case SourceUserSettings:
		return "user"
	default:
		return "builtin"
	}
}

// Rule is a pattern-based predicate over tool calls.
type Rule struct {
	// Behavior is the prescribed action when the rule matches.
	Behavior Behavior

	// ToolPattern is a regular expression matched against the tool name.
	ToolPattern string

	// PathPattern optionally constrains the call's path argument.
	PathPattern string

	// CommandPattern optionally constrains the call's command argument.
	CommandPattern string

	// Source is the configuration layer the rule came from.
	Source RuleSource

	// Enabled gates the rule without removing it.
	Enabled bool

	// Reason is an optional human-readable explanation.
	Reason string

	toolRe    *regexp.Regexp
	pathRe    *regexp.Regexp
	commandRe *regexp.Regexp
}

// compile prepares the rule's regular expressions. Invalid patterns disable
// the rule.
func (r *Rule) compile() {
	var err error
	if r.ToolPattern != "" {
		if r.toolRe, err = regexp.Compile(r.ToolPattern); err != nil {
			r.Enabled = false
			return
		}
	}
	if r.PathPattern != "" {
		if r.pathRe, err = regexp.Compile(r.PathPattern); err != nil {
			r.Enabled = false
			return
		}
	}
	if r.CommandPattern != "" {
		if r.commandRe, err = regexp.Compile(r.CommandPattern); err != nil {
			r.Enabled = false
			return
		}
	}
}

// Matches reports whether the rule applies to the given call attributes.
func (r *Rule) Matches(tool, path, command string) bool {
	if !r.Enabled {
		return false
	}
	if r.toolRe == nil || !r.toolRe.MatchString(tool) {
		return false
	}
	if r.pathRe != nil && !r.pathRe.MatchString(path) {
		return false
	}
	if r.commandRe != nil && !r.commandRe.MatchString(command) {
		return false
	}
	return true
}

// RuleSet holds rules in priority order. Evaluation is a pure function of
// the rules and the call attributes.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet compiles and orders the given rules by source priority,
// preserving relative order within a source.
func NewRuleSet(rules []Rule) *RuleSet {
	compiled := make([]Rule, len(rules))
	copy(compiled, rules)
	for i := range compiled {
		compiled[i].compile()
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Source < compiled[j].Source
	})
	return &RuleSet{rules: compiled}
}

// Evaluate scans the rules in priority order and returns the first matching
// rule whose behavior is not Passthrough. When no rule wins, the default
// behavior is Ask.
func (rs *RuleSet) Evaluate(tool, path, command string) (Behavior, *Rule) {
	for i := range rs.rules {
		rule := &rs.rules[i]
		if !rule.Matches(tool, path, command) {
			continue
		}
		if rule.Behavior == Passthrough {
			continue
		}
		return rule.Behavior, rule
	}
	return Ask, nil
}

// Rules returns the ordered rules, for inspection.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}
