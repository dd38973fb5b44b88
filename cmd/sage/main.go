// Command sage runs the autonomous coding agent from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/sage/internal/agent"
	"github.com/haasonsaas/sage/internal/agent/subagent"
	"github.com/haasonsaas/sage/internal/bus"
	"github.com/haasonsaas/sage/internal/config"
	"github.com/haasonsaas/sage/internal/contextmgr"
	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/llm/providers"
	"github.com/haasonsaas/sage/internal/permission"
	"github.com/haasonsaas/sage/internal/ratelimit"
	"github.com/haasonsaas/sage/internal/retry"
	"github.com/haasonsaas/sage/internal/session"
	"github.com/haasonsaas/sage/internal/shell"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/internal/tools/builtin"
	"github.com/haasonsaas/sage/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sage",
		Short: "Sage is a terminal-based autonomous coding agent",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		workingDir string
		maxSteps   int
		timeout    time.Duration
		planMode   bool
		record     bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run [task description]",
		Short: "Execute a task with the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if workingDir == "" {
				workingDir, _ = os.Getwd()
			}

			client, err := newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			registry := tools.NewRegistry()
			builtin.RegisterAll(registry, workingDir)
			executor := tools.NewExecutor(registry, nil)

			subagent.SetGlobal(subagent.NewRunner(client, executor, logger))
			defer subagent.ResetGlobal()
			defer shell.ResetGlobal()

			ratelimit.Global().Set(cfg.Provider, ratelimit.NewLimiter(cfg.RateLimit))

			permCfg := permission.Config{
				Rules:      cfg.Permission.ToRules(),
				ProjectDir: workingDir,
				Logger:     logger,
			}
			if cfg.Permission.Mode == "non_interactive" {
				permCfg.Handler = permission.AutoResponseHandler(cfg.Permission.AutoResponse)
			} else {
				permCfg.PolicyMode = true
			}
			engine := permission.NewEngine(permCfg)

			watcher, err := permission.NewWatcher(engine.SettingsStore(), logger, func() {
				engine.Cache().Clear()
			})
			if err == nil {
				defer watcher.Close()
			}

			eventBus := bus.New(bus.DefaultBufferSize, logger)
			defer eventBus.Close()

			loop := agent.NewLoop(client, executor, engine, &agent.LoopConfig{
				Pruner: contextmgr.NewPruner(cfg.Context.Pruner),
				RetryPolicy: retry.Policy{
					MaxAttempts:  cfg.Retry.MaxAttempts,
					MaxDuration:  cfg.Retry.MaxDuration.Std(),
					RetryUnknown: cfg.Retry.RetryUnknown,
				},
				Bus:    eventBus,
				Logger: logger,
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mode := agent.ModeBatch
			if cfg.Permission.Mode == "non_interactive" {
				mode = agent.ModeNonInteractive
			} else if cfg.Permission.Mode == "interactive" {
				mode = agent.ModeInteractive
			}

			task := models.NewTask(joinArgs(args), workingDir)
			opts := agent.ExecutionOptions{
				Mode:                mode,
				AutoResponse:        cfg.Permission.AutoResponse,
				MaxSteps:            maxSteps,
				ExecutionTimeout:    timeout,
				RecordTrajectory:    record || cfg.Trajectory.Enabled,
				TrajectoryDir:       cfg.Trajectory.Dir,
				CompressTrajectory:  cfg.Trajectory.Compress,
				WorkingDir:          workingDir,
				ContinueOnError:     cfg.Agent.ContinueOnError,
				PlanMode:            planMode,
				ContextTargetTokens: cfg.Context.TargetTokens,
				SystemPrompt:        cfg.Agent.SystemPrompt,
				Model:               cfg.Model,
			}
			if opts.MaxSteps == 0 {
				opts.MaxSteps = cfg.Agent.MaxSteps
			}
			if opts.ExecutionTimeout == 0 {
				opts.ExecutionTimeout = cfg.Agent.ExecutionTimeout.Std()
			}

			sessionStore, err := newSessionStore(cfg)
			if err != nil {
				return err
			}

			outcome := loop.ExecuteTask(ctx, task, opts)

			// The run context may already be cancelled; the session still
			// gets saved.
			saveSession(context.Background(), sessionStore, eventBus, cfg, workingDir, outcome)

			fmt.Printf("%s %s\n", outcome.StatusIcon(), outcome.StatusMessage())
			if outcome.Execution.FinalResult != "" {
				fmt.Println(outcome.Execution.FinalResult)
			}
			if outcome.Err != nil {
				fmt.Fprintln(os.Stderr, outcome.Err.UserMessage())
			}
			fmt.Printf("steps: %d, tokens: %d\n",
				len(outcome.Execution.Steps),
				outcome.Execution.TotalUsage.TotalTokens)

			if !outcome.IsSuccess() {
				return fmt.Errorf("task did not complete: %s", outcome.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sage.yaml", "config file path")
	cmd.Flags().StringVarP(&workingDir, "dir", "d", "", "working directory (default: cwd)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget (0 = config default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execution timeout (0 = config default)")
	cmd.Flags().BoolVar(&planMode, "plan", false, "start in read-only plan mode")
	cmd.Flags().BoolVar(&record, "trajectory", false, "record the execution trajectory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	apiKey := cfg.APIKey()
	switch cfg.Provider {
	case "anthropic":
		return providers.NewAnthropicClient(providers.AnthropicConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case "openai":
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case "google":
		return providers.NewGoogleClient(ctx, providers.GoogleConfig{
			APIKey: apiKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "file":
		path := cfg.Session.Path
		if path == "" {
			path = filepath.Join(".sage", "sessions")
		}
		return session.NewFileStore(path)
	case "sqlite":
		path := cfg.Session.Path
		if path == "" {
			path = filepath.Join(".sage", "sessions.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return session.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Session.Store)
	}
}

// saveSession records the finished run as a session so it can be listed and
// resumed later.
func saveSession(ctx context.Context, store session.Store, eventBus *bus.Bus, cfg *config.Config, workingDir string, outcome *agent.ExecutionOutcome) {
	sess := models.NewSession(workingDir)
	sess.Model = cfg.Model
	sess.Messages = outcome.Execution.Conversation
	sess.Usage = outcome.Execution.TotalUsage

	switch outcome.Kind {
	case agent.OutcomeSuccess:
		sess.SetState(models.SessionStateCompleted)
	case agent.OutcomeInterrupted:
		sess.SetState(models.SessionStateCancelled)
	default:
		sess.SetState(models.SessionStateFailed)
	}
	if outcome.Err != nil {
		sess.Error = outcome.Err.Error()
	}

	if err := store.Save(ctx, sess); err != nil {
		slog.Warn("failed to save session", "error", err)
		return
	}
	eventBus.Publish(models.AgentEvent{
		Type:    models.EventSessionEnded,
		Session: &models.SessionEventPayload{SessionID: sess.ID, Reason: string(outcome.Kind)},
	})
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
