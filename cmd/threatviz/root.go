package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/cmd/threatviz/internal"
	"github.com/zero-day-ai/threatviz/internal/config"
	"github.com/zero-day-ai/threatviz/internal/observability"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "threatviz",
	Short: "Threatviz - CVE threat modeling with retrieval-grounded LLM analysis",
	Long: `Threatviz turns a CVE identifier into a structured threat report.

It fetches the CVE record, grounds an LLM analysis in a local index of
threat-modeling references (STRIDE, PASTA, Mermaid syntax), draws a
Mermaid threat model, repairs the diagram syntax and emits a six-field
JSON report.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// session holds what setup prepares for the running command.
type session struct {
	flags      *GlobalFlags
	homeDir    string
	configPath string
	cfg        *config.Config

	logger   *slog.Logger
	tracing  *sdktrace.TracerProvider
	metrics  observability.MeterProvider
	closeLog func() error
}

var current = &session{}

// Execute runs the root command with signal handling and flushes telemetry
// once it returns, whether or not the command failed.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer shutdownSession()

	return rootCmd.ExecuteContext(ctx)
}

// skipsConfig lists commands that must work without a readable config file.
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	case "init":
		return cmd.Parent() != nil && cmd.Parent().Name() == "config"
	}
	return false
}

// setup runs before every command: it loads .env, resolves the home
// directory, loads configuration and starts logging, tracing and metrics.
func setup(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	if flags.NoColor {
		color.NoColor = true
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return internal.WrapError(internal.ExitConfigError, "failed to read .env", err)
	}

	homeDir := flags.HomeDir
	if homeDir == "" {
		homeDir = config.DefaultHomeDir()
	}
	configPath := flags.ConfigFile
	if configPath == "" {
		configPath = config.DefaultConfigPath(homeDir)
	}

	*current = session{flags: flags, homeDir: homeDir, configPath: configPath}

	if skipsConfig(cmd) {
		current.cfg = config.DefaultConfigFor(homeDir)
		return nil
	}

	loader := config.NewConfigLoader(config.NewValidator(), homeDir)
	cfg, err := loader.LoadWithDefaults(configPath)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}
	current.cfg = cfg

	return startObservability(cmd.Context(), cfg, flags)
}

func startObservability(ctx context.Context, cfg *config.Config, flags *GlobalFlags) error {
	logCfg := cfg.Logging
	switch {
	case flags.IsVerbose():
		logCfg.Level = "debug"
	case flags.IsQuiet():
		logCfg.Level = "error"
	}

	w, closeLog, err := observability.OpenOutput(logCfg.Output)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to open log output", err)
	}
	logger, err := observability.NewLogger(logCfg, w)
	if err != nil {
		_ = closeLog()
		return internal.WrapError(internal.ExitConfigError, "invalid logging configuration", err)
	}
	slog.SetDefault(logger)
	current.logger = logger
	current.closeLog = closeLog

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to initialize tracing", err)
	}
	current.tracing = tp

	mp, err := observability.InitMetrics(ctx, cfg.Metrics)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to initialize metrics", err)
	}
	current.metrics = mp

	logger.Debug("configuration loaded",
		"home", current.homeDir,
		"config", current.configPath,
		"tracing", cfg.Tracing.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)
	return nil
}

func shutdownSession() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := observability.ShutdownTracing(ctx, current.tracing); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
	current.tracing = nil
	if err := observability.ShutdownMetrics(ctx, current.metrics); err != nil {
		slog.Warn("metrics shutdown failed", "error", err)
	}
	current.metrics = nil
	if current.closeLog != nil {
		_ = current.closeLog()
		current.closeLog = nil
	}
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for threatviz.

To load completions:

Bash:
  $ source <(threatviz completion bash)

Zsh:
  $ threatviz completion zsh > "${fpath[1]}/_threatviz"

Fish:
  $ threatviz completion fish | source

PowerShell:
  PS> threatviz completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}
