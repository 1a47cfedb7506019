// Package cli implements the motionphoto command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/maauso/motionphoto/internal/bootstrap"
	"github.com/maauso/motionphoto/internal/config"
)

// ErrFilesFailed is returned when at least one file could not be processed.
// The per-file errors are printed in the command's table.
var ErrFilesFailed = errors.New("one or more files failed")

// app carries what every subcommand needs. It is filled in by the root's
// PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *bootstrap.Dependencies
}

// NewRootCmd builds the motionphoto command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "motionphoto",
		Short: "Detect and extract videos embedded in motion photos",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		a.newDetectCmd(),
		a.newInfoCmd(),
		a.newExtractCmd(),
		a.newScanCmd(),
		a.newWatchCmd(),
		a.newServeCmd(),
	)

	return root
}

// init loads the configuration, applies flag overrides and builds the
// dependencies. Logs go to stderr so tables on stdout stay clean.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if f := cmd.Flags().Lookup("collision"); f != nil && f.Changed {
		cfg.CollisionPolicy = f.Value.String()
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("workers")
		cfg.ScanWorkers = n
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.NewLoggerTo(cmd.ErrOrStderr())

	deps, err := bootstrap.NewDependencies(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	a.deps = deps
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
