package permission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/sage/pkg/models"
)

// RiskLevel is an advisory classification attached to a request by the loop.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Request asks the engine whether a tool call may run.
type Request struct {
	// ToolName is the tool being invoked.
	ToolName string

	// Call is the full tool call.
	Call models.ToolCall

	// Reason explains why the call was requested.
	Reason string

	// Risk is the advisory risk level.
	Risk RiskLevel

	// Context carries additional attributes for the handler.
	Context map[string]string
}

// Decision is the user's answer to a permission prompt.
type Decision string

const (
	DecisionAllow       Decision = "allow"
	DecisionAllowAlways Decision = "allow_always"
	DecisionDeny        Decision = "deny"
	DecisionDenyAlways  Decision = "deny_always"
	DecisionModify      Decision = "modify"
)

// Handler resolves Ask outcomes, typically by prompting the user. For
// DecisionModify the handler returns the replacement call.
type Handler interface {
	HandlePermissionRequest(ctx context.Context, req *Request) (Decision, *models.ToolCall, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (Decision, *models.ToolCall, error)

// HandlePermissionRequest implements Handler.
func (f HandlerFunc) HandlePermissionRequest(ctx context.Context, req *Request) (Decision, *models.ToolCall, error) {
	return f(ctx, req)
}

// AutoResponseHandler resolves every prompt from a canned response, for
// non-interactive runs. Affirmative responses allow; everything else denies.
func AutoResponseHandler(response string) Handler {
	return HandlerFunc(func(_ context.Context, _ *Request) (Decision, *models.ToolCall, error) {
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "y", "yes", "allow", "approve":
			return DecisionAllow, nil, nil
		default:
			return DecisionDeny, nil, nil
		}
	})
}

// Outcome is the engine's answer for a single tool call.
type Outcome struct {
	// Allowed reports whether the call may run.
	Allowed bool

	// Reason explains the decision for logging and synthetic results.
	Reason string

	// ModifiedCall replaces the original call when the handler chose Modify.
	ModifiedCall *models.ToolCall
}

// Config configures the permission engine.
type Config struct {
	// Rules are evaluated in source-priority order.
	Rules []Rule

	// ProjectDir roots the persistent settings store. Empty disables
	// persistence.
	ProjectDir string

	// PolicyMode auto-resolves Ask outcomes from the risk level instead of
	// invoking the handler.
	PolicyMode bool

	// Handler resolves Ask outcomes when PolicyMode is off.
	Handler Handler

	// PromptTimeout bounds a single handler prompt. Zero means no bound.
	PromptTimeout time.Duration

	// Logger receives decision logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// Engine evaluates permission requests against rules, the session cache, and
// the persistent settings store.
//
// Lookup order: session cache, persistent store, rules. The first source
// with an opinion wins; otherwise the default behavior is Ask.
type Engine struct {
	rules         *RuleSet
	cache         *Cache
	settings      *SettingsStore
	policy        bool
	handler       Handler
	promptTimeout time.Duration
	logger        *slog.Logger
}

// NewEngine creates a permission engine from the configuration.
func NewEngine(config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var settings *SettingsStore
	if config.ProjectDir != "" {
		settings = NewSettingsStore(config.ProjectDir)
	}
	return &Engine{
		rules:         NewRuleSet(config.Rules),
		cache:         NewCache(),
		settings:      settings,
		policy:        config.PolicyMode,
		handler:       config.Handler,
		promptTimeout: config.PromptTimeout,
		logger:        logger.With("component", "permission"),
	}
}

// Cache returns the session decision cache.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// SettingsStore returns the persistent store, if persistence is enabled.
func (e *Engine) SettingsStore() *SettingsStore {
	return e.settings
}

// Check resolves a permission request to an outcome. It never returns an
// error; handler failures resolve to a denial so the loop can record a
// synthetic failed result.
func (e *Engine) Check(ctx context.Context, req *Request) Outcome {
	key := CacheKey(req.ToolName, req.Call)

	// Session cache first.
	if allowed, ok := e.cache.Get(key); ok {
		return e.cachedOutcome(key, allowed, "session cache")
	}

	// Then the persistent store.
	if e.settings != nil {
		if allowed, ok := e.settings.Lookup(key); ok {
			return e.cachedOutcome(key, allowed, "settings")
		}
	}

	// Then the rules.
	path := req.Call.StringArg("file_path")
	if path == "" {
		path = req.Call.StringArg("path")
	}
	command := req.Call.StringArg("command")

	behavior, rule := e.rules.Evaluate(req.ToolName, path, command)
	switch behavior {
	case Allow:
		return Outcome{Allowed: true, Reason: ruleReason(rule, "allowed by rule")}
	case Deny:
		return Outcome{Allowed: false, Reason: ruleReason(rule, "denied by rule")}
	}

	// Default behavior is Ask.
	return e.resolveAsk(ctx, req, key)
}

func (e *Engine) cachedOutcome(key string, allowed bool, source string) Outcome {
	if allowed {
		return Outcome{Allowed: true, Reason: "allowed by " + source + ": " + key}
	}
	return Outcome{Allowed: false, Reason: "denied by " + source + ": " + key}
}

func ruleReason(rule *Rule, fallback string) string {
	if rule != nil && rule.Reason != "" {
		return rule.Reason
	}
	return fallback
}

// resolveAsk applies policy-mode auto-decisions or defers to the handler.
func (e *Engine) resolveAsk(ctx context.Context, req *Request, key string) Outcome {
	if e.policy {
		// Risk levels are advisory: low and medium auto-allow, high and
		// critical require explicit confirmation, which policy mode cannot
		// give.
		switch req.Risk {
		case RiskHigh, RiskCritical:
			return Outcome{Allowed: false, Reason: "denied: " + string(req.Risk) + " risk requires confirmation"}
		default:
			return Outcome{Allowed: true, Reason: "allowed by policy"}
		}
	}

	if e.handler == nil {
		return Outcome{Allowed: false, Reason: "denied: no permission handler configured"}
	}

	if e.promptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.promptTimeout)
		defer cancel()
	}
	decision, modified, err := e.handler.HandlePermissionRequest(ctx, req)
	if err != nil {
		e.logger.Warn("permission handler failed", "tool", req.ToolName, "error", err)
		return Outcome{Allowed: false, Reason: "denied: permission handler failed"}
	}

	switch decision {
	case DecisionAllow:
		return Outcome{Allowed: true, Reason: "allowed by user"}
	case DecisionAllowAlways:
		e.remember(key, true)
		return Outcome{Allowed: true, Reason: "allowed by user (always)"}
	case DecisionDeny:
		return Outcome{Allowed: false, Reason: "denied by user"}
	case DecisionDenyAlways:
		e.remember(key, false)
		return Outcome{Allowed: false, Reason: "denied by user (always)"}
	case DecisionModify:
		if modified == nil {
			return Outcome{Allowed: false, Reason: "denied: modify decision without replacement call"}
		}
		return Outcome{Allowed: true, Reason: "modified by user", ModifiedCall: modified}
	default:
		return Outcome{Allowed: false, Reason: "denied: unrecognized decision"}
	}
}

// remember writes an "always" decision to the session cache and, when
// persistence is enabled, to the settings file.
func (e *Engine) remember(key string, allowed bool) {
	e.cache.Set(key, allowed)
	if e.settings != nil {
		if err := e.settings.Persist(key, allowed); err != nil {
			e.logger.Warn("failed to persist permission decision", "key", key, "error", err)
		} else {
			e.logger.Info("persisted permission decision", "key", key, "allowed", allowed)
		}
	}
}
