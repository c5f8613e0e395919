// Package cli provides the command-line interface for passerelle.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"passerelle/internal/config"
	"passerelle/internal/governance"
	"passerelle/internal/index"
	"passerelle/internal/journal"
	"passerelle/internal/memory"
	"passerelle/internal/metrics"
	"passerelle/internal/provider"
	"passerelle/internal/router"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string

	// Global config and wired services, built in the pre-run hook.
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	vecIndex  *index.Index
	convStore *memory.Store
	gate      *governance.Gate
	events    *journal.EventStore
	collector *metrics.Collector
	chatR     *router.Router
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "passerelle",
	Short: "Local-first sovereign conversational gateway",
	Long: `Passerelle is a local-first conversational gateway for public-sector use.

Answers come from a local model enriched with TF-IDF retrieval over your
own corpus and a bounded conversation memory. Escalation to an external
provider only happens under the configured policy, and every flagged
action passes through a hash-sealed governance audit trail.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip wiring for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if configFile != "" {
			if err := cfg.ApplyFile(configFile); err != nil {
				return fmt.Errorf("apply config file: %w", err)
			}
		}

		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		vecIndex = index.New(cfg.IndexFile(), logger)
		convStore = memory.NewStore(cfg.MemoryFile(), logger)
		gate = governance.NewGate(cfg.Region, cfg.AuditDir, cfg.AuditRetained)
		events = journal.NewEventStore(cfg.EventsRetained, journal.NewWriter(cfg.JournalDir), logger)
		collector = metrics.NewCollector()

		local, err := provider.NewLocal(cfg)
		if err != nil {
			// Template fallback keeps the gateway usable without Ollama.
			logger.Warn("local provider unavailable, using template generator", "error", err)
		}

		var external provider.Provider
		if cfg.ExternalEnabled() {
			ext, err := provider.NewExternal(cfg)
			if err != nil {
				logger.Warn("external provider disabled", "error", err)
			} else {
				external = ext
			}
		}

		deps := router.Deps{
			Index:   vecIndex,
			Memory:  convStore,
			Events:  events,
			Metrics: collector,
			Logger:  logger,
		}
		if local != nil {
			deps.Local = local
		}
		if external != nil {
			deps.External = external
		}
		chatR = router.New(cfg, deps)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logClose != nil {
			if err := logClose(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config overlay")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
