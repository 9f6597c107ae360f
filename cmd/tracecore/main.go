// Command tracecore builds provenance traces for laboratory experiment
// plans, repairs them with protocol heuristics, validates the result, and
// exports or uploads the provenance documents.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "tracecore",
	Short: "Provenance trace builder for laboratory workflows",
	Long: `tracecore reconstructs the provenance graph of an executed experiment
plan from the laboratory inventory system: which items and files were
produced by which operations, and what each derived from. Heuristic repair
rules fill the gaps the inventory does not record, a consistency checker
reports what remains unresolved, and the finished trace is exported as a
JSON provenance document, an SBOL document, or uploaded to object storage
alongside its files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRACECORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("lims-url", "", "inventory API base URL")
	rootCmd.PersistentFlags().String("lims-token", "", "inventory API token")
	rootCmd.PersistentFlags().String("cache", "", "record cache database path (empty disables caching)")
	rootCmd.PersistentFlags().String("lab", "biofab", "lab name tagged onto plans")
	rootCmd.PersistentFlags().String("profile", "", "experiment profile tag (yg, nc, ps)")
	rootCmd.PersistentFlags().String("metrics-listen", "", "serve prometheus metrics on this address for the run")
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity")
	for _, name := range []string{"lims-url", "lims-token", "cache", "lab", "profile", "metrics-listen", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(sbolCmd())
	rootCmd.AddCommand(plateCmd())
	rootCmd.AddCommand(archiveCmd())
}

// setupLogging installs a text handler on stderr, leveled by the repeated
// -v flag, with a fresh run ID on every invocation.
func setupLogging() {
	level := slog.LevelWarn
	switch viper.GetInt("verbose") {
	case 0:
	case 1:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("run", uuid.NewString()))
}
