// Package cli implements the landquant command-line interface.  Most
// subcommands talk to a running API server through the pkg/client SDK; the
// ones that can run self-contained (score, detect, search, profiles, and
// scan run) also offer an offline mode built from the same domain engines
// the server uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/internal/config"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/client"
)

// Build metadata, injected through -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions carries the persistent flag values shared by every subcommand.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext bundles everything a subcommand needs at run time.  It is
// assembled once in the root PersistentPreRun and travels on the command
// context.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Client       *client.Client
	OutputFormat string
	Verbose      bool
	NoColor      bool
}

type cliContextKey struct{}

// GetCLIContext extracts the CLI context installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}
	return cc, nil
}

// NewRootCommand builds the landquant root command with all subcommands and
// persistent flags registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "landquant",
		Short: "Land utilization intelligence toolkit",
		Long: `landquant analyzes land quanta for utilization potential: it scores
feature records against use-case profiles, surfaces cross-source mismatches,
finds similar parcels, and drives region scans on a LandQuant API server.

Commands that accept --offline run the analysis in-process without a server.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initCLIContext(cmd, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a landquant config file")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format: table, json, text")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (implies --log-level debug)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout for API calls")
	pf.StringVar(&opts.ServerAddr, "server", "", "LandQuant API base URL (default from config)")

	rootCmd.AddCommand(
		NewScanCmd(),
		NewScoreCmd(),
		NewDetectCmd(),
		NewSearchCmd(),
		NewProfilesCmd(),
	)

	return rootCmd
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return 1
	}
	return 0
}

// initCLIContext loads configuration, builds the logger and the API client,
// and installs the assembled CLIContext on the command context.
func initCLIContext(cmd *cobra.Command, opts *RootOptions) error {
	format := strings.ToLower(opts.OutputFormat)
	switch format {
	case "table", "json", "text":
	default:
		return fmt.Errorf("unknown output format %q (expected table, json, or text)", opts.OutputFormat)
	}

	cfg, err := initConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
	}

	if c, err := initClient(cfg, opts); err != nil {
		// Offline-capable commands must still work without a reachable
		// server, so a client construction failure only warns.
		logger.Warn("API client unavailable", logging.Err(err))
	} else {
		cc.Client = c
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
	return nil
}

// initConfig resolves configuration: the explicit --config path wins, then
// the conventional search locations, then environment variables over
// defaults.
func initConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ConfigPath, err)
		}
		return cfg, nil
	}

	for _, path := range configSearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: no config file found, using defaults (%v)\n", err)
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg, nil
}

func configSearchPaths() []string {
	paths := []string{"landquant.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".landquant", "config.yaml"))
	}
	paths = append(paths, "/etc/landquant/config.yaml")
	return paths
}

// initLogger builds a console logger on stderr so structured output on
// stdout stays machine-readable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := opts.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// initClient constructs the SDK client against --server or the configured
// server address.
func initClient(cfg *config.Config, opts *RootOptions) (*client.Client, error) {
	addr := opts.ServerAddr
	if addr == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		addr = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}
	return client.NewClient(addr, client.WithTimeout(opts.Timeout))
}

// tableProvider lets a result type render itself as a plain-text table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult renders result on stdout in the requested format.  Table
// format falls back to text when the result cannot provide rows.
func PrintResult(cmd *cobra.Command, result interface{}, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return printJSON(cmd, result)
	case "table":
		if tp, ok := result.(tableProvider); ok {
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
			return nil
		}
		return printText(cmd, result)
	case "text", "":
		return printText(cmd, result)
	default:
		return fmt.Errorf("unknown output format %q (expected table, json, or text)", format)
	}
}

func printJSON(cmd *cobra.Command, result interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printText(cmd *cobra.Command, result interface{}) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", result)
	return err
}

// PrintError writes err to stderr in red.
func PrintError(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err)
}

// PrintSuccess writes a green confirmation line to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

// FormatTable renders headers and rows as aligned plain text with a dashed
// separator, the house style for --output table when tablewriter's layout
// is too heavy (single-column lists, report footers).
func FormatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(padRight(h, widths[i]))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")
	for i, w := range widths {
		b.WriteString(strings.Repeat("-", w))
		if i < len(widths)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString(padRight(cell, widths[i]))
			if i < len(row)-1 && i < len(widths)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
