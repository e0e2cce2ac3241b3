// Package main provides the tabload CLI: load delimited record sets into
// typed, linked records and inspect them from the shell or over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabload/internal/config"
	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/loader"
	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/schema"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// dataDir and manifestPath override TABLOAD_DATA_DIR and TABLOAD_MANIFEST.
	dataDir      string
	manifestPath string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tabload",
	Short: "Load delimited record sets into typed, linked records",
	Long: `tabload reads delimited text files into typed records, converts every
cell by the destination field type, and links records across sets through
declared relationships.

Configuration comes from the environment (optionally a .env file) and the
--data-dir and --manifest flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding record set files (default: $TABLOAD_DATA_DIR or data)")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "YAML manifest of set files and delimiters (default: $TABLOAD_MANIFEST)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tabload", version)
	},
}

// initConfig loads .env, configuration and logging before every command.
func initConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	// Overload overwrites existing env vars
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if dataDir != "" {
		c.Data.Dir = dataDir
	}
	if manifestPath != "" {
		c.Data.Manifest = manifestPath
	}

	logging.Setup(c.Logging.Level, c.Logging.Format)
	slog.Debug("configuration loaded", "config", c.String())

	cfg = c
	return nil
}

// newLoader builds the schema registry, converters and Loader from cfg.
func newLoader(c *config.Config) (*loader.Loader, error) {
	logger := slog.Default()

	conv := core.NewConverters(logger)
	schemas := core.NewSchemaRegistry()
	if err := schema.Register(schemas, conv); err != nil {
		return nil, fmt.Errorf("register schemas: %w", err)
	}

	delim, err := loader.DelimiterRune(c.Data.Delimiter)
	if err != nil {
		return nil, err
	}
	tok := core.Tokenizer{Delimiter: delim, Quote: '"', CommentPrefix: c.Data.CommentPrefix}

	var manifest *loader.Manifest
	if c.Data.Manifest != "" {
		manifest, err = loader.ReadManifest(c.Data.Manifest)
		if err != nil {
			return nil, err
		}
	}

	return loader.New(loader.Options{
		DataDir:            c.Data.Dir,
		Manifest:           manifest,
		Tokenizer:          tok,
		Schemas:            schemas,
		Converters:         conv,
		PreloadConcurrency: c.Data.PreloadConcurrency,
		Logger:             logger,
	})
}
