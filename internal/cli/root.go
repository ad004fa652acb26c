// Package cli provides the command-line interface for tincture.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/tincture/internal/config"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/version"
)

var (
	// Global flags
	globalConfigFile string
	globalEnvFile    string

	// Effective configuration and root logger, set before any subcommand runs.
	cfg    = config.Default()
	logger = hclog.NewNullLogger()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "tincture",
		Short: "Extract colour palettes from images",
		Long: `Tincture extracts small, ordered colour palettes from images.

Palettes are computed with k-means clustering or a hue histogram, ordered
from brightest to darkest, and can be saved to a local palette library.
Directories can be watched so that new wallpapers get a palette as soon as
they appear.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&globalConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/tincture/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalEnvFile, "env-file", "", "dotenv file with TINCTURE_* overrides (default: .env)")

	// Set version template
	rootCmd.SetVersionTemplate(version.String() + "\n")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup loads configuration and builds the root logger.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	paths, err := config.ResolvePaths(config.AppSlug)
	if err != nil {
		return err
	}

	loaded, err := config.Load(config.LoadOptions{
		ConfigFile: globalConfigFile,
		EnvFile:    globalEnvFile,
		Paths:      paths,
	})
	if err != nil {
		return err
	}
	cfg = loaded

	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	logger = newLogger(cfg.LogLevel, verbose, quiet)
	logger.Debug("configuration loaded", "library", cfg.LibraryPath, "cache", cfg.CacheDir)

	return nil
}

// newLogger builds the root logger. --verbose and --quiet override the configured level.
func newLogger(level string, verbose, quiet bool) hclog.Logger {
	lvl := hclog.LevelFromString(strings.ToLower(level))
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}
	switch {
	case verbose:
		lvl = hclog.Debug
	case quiet:
		lvl = hclog.Error
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   version.Name,
		Output: os.Stderr,
		Level:  lvl,
	})
}

// newEngine builds an extraction engine from the effective configuration.
func newEngine(mode engine.SeedMode, seed int64) *engine.Engine {
	return engine.New(engine.Options{
		Decoder:         cfg.Decoder(),
		ExtractStride:   cfg.ExtractStride,
		HistogramStride: cfg.HistogramStride,
		MaxIterations:   cfg.MaxIterations,
		SeedMode:        mode,
		Seed:            seed,
		Logger:          logger.Named("engine"),
	})
}

// isQuiet reports whether informational output should be suppressed.
func isQuiet(cmd *cobra.Command) bool {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return quiet
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including build date, commit hash, and Go version.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
