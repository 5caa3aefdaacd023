// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/taskctx-service/internal/platform/config"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

// options are the flags shared by every command.
type options struct {
	configDir string
	profile   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	serve := newServeCmd(opts)

	root := &cobra.Command{
		Use:   "taskctx-service",
		Short: "Task context service",
		Long: `taskctx-service runs every HTTP request and dispatched work item in its
own execution unit with exactly one task context (HTTP, IIOP or JMS).

Run without a subcommand to start the HTTP server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "configs", "directory holding base.yaml and profile files")
	root.PersistentFlags().StringVar(&opts.profile, "profile", defaultProfile(), "configuration profile (defaults to $APP_ENVIRONMENT or local)")

	root.AddCommand(serve, newConfigCmd(opts), newVersionCmd())

	return root
}

func defaultProfile() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the validated configuration",
		Long: `Loads defaults, base.yaml, the profile file and APP_ environment variables,
validates the result, and prints the merged configuration as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(opts); err != nil {
				return err
			}

			out, err := config.Dump(opts.configDir, opts.profile)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "version:    %s\ncommit:     %s\nbuild time: %s\ngo:         %s\n",
		Version, Commit, BuildTime, runtime.Version())
}

// loadConfig loads and validates configuration (fail fast).
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadFrom(opts.configDir, opts.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
