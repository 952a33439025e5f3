// Package commands defines all Cobra CLI commands for the docsage binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/audit"
	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docsage",
		Short: "DocSage — a local-first assistant that answers from your documents",
		Long: `DocSage is a local-first AI assistant that answers questions grounded in
documents you upload.

Uploaded documents are chunked, embedded, and indexed in Qdrant. At query
time the most relevant passages are retrieved and the model answers with
citations, falling back to its own knowledge only when your documents are
silent.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.docsage/config.yaml).
See 'docsage --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docsage/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
