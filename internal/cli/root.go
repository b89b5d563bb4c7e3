package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogFormat  string // "text" | "json"; overrides the config file

	// Config is loaded by the root command before any subcommand runs.
	Config *Config
	// Logger is the configured process logger, also installed as the
	// slog default.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the weave CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "weave",
		Short: "weave - declarative method interception",
		Long: `A method interception engine: named operations are dispatched through
ordered before, around, after-returning and after-throwing advice selected
by pointcut rules, with every step recorded as an event.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// setup validates global flags, loads the config file and installs the
// logger. Subcommands built without the root command call it lazily
// through ensure.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	logFormat := cfg.LogFormat
	if o.LogFormat != "" {
		logFormat = o.LogFormat
	}
	if logFormat != "" && !isValidFormat(logFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", logFormat, ValidFormats)
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// Logs go to stderr so they never corrupt JSON output.
	o.Logger = newLogger(cmd.ErrOrStderr(), level, logFormat, o.Verbose)
	slog.SetDefault(o.Logger)
	return nil
}

// ensure runs setup if the root command's pre-run was skipped.
func (o *RootOptions) ensure(cmd *cobra.Command) error {
	if o.Config != nil && o.Logger != nil {
		return nil
	}
	if o.Format == "" {
		o.Format = "text"
	}
	return o.setup(cmd)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
