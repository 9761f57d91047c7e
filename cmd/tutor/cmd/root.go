// Package cmd implements the tutor command tree.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tutor/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

var (
	// configPath is the config file path
	configPath string
	// debug enables development logging
	debug bool
	// serverURL is the running server; empty means work on local storage directly
	serverURL string
	// outputFormat is text or json
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Course-material tutor backed by a local RAG index",
	Long: `tutor indexes course documents (PDF, DOCX, PPTX, XLSX, ODP, ODS, Markdown, text)
into a local vector index and answers student questions grounded in them.

Examples:
  # Start the HTTP API (auto-builds the index from the corpus on first use)
  tutor serve

  # Add lecture notes to the index
  tutor ingest lectures/week3.pdf
  tutor ingest ./data

  # Show the chunks a question would be answered from
  tutor retrieve "what is Bayes rule"

  # Ask a question, continuing a conversation
  tutor ask --session s1 "and how does it relate to priors?"`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Config file path (falls back to ./config.yaml, then built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, `Server URL; use --server "" to work on local storage directly`)
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text or json")
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if neither exists the
// built-in defaults are used with paths relative to the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("get working directory: %w", err)
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds a logger honoring --debug and cfg.Debug.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, nil
}

func format() (cli.OutputFormat, error) {
	return cli.ParseFormat(outputFormat)
}
