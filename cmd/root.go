// Package cmd implements the command-line interface for the catalog and
// price pipeline.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdhttpd "github.com/scottaicode/seoul-sister/cmd/httpd"
	cmdlink "github.com/scottaicode/seoul-sister/cmd/link"
	cmdprices "github.com/scottaicode/seoul-sister/cmd/prices"
	cmdprocess "github.com/scottaicode/seoul-sister/cmd/process"
	cmdruns "github.com/scottaicode/seoul-sister/cmd/runs"
	cmdscheduler "github.com/scottaicode/seoul-sister/cmd/scheduler"
	cmdscrape "github.com/scottaicode/seoul-sister/cmd/scrape"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "seoul-sister",
		Short: "K-beauty catalog and price pipeline",
		Long: `Scrapes K-beauty retailers into a staging buffer, normalizes records
into a canonical catalog with AI-assisted extraction, links INCI
ingredients, and reconciles prices across retailers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to viper.
	_ = godotenv.Load()

	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("seoul-sister version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(cmdscrape.Command())
	rootCmd.AddCommand(cmdprocess.Command())
	rootCmd.AddCommand(cmdlink.Command())
	rootCmd.AddCommand(cmdprices.Command())
	rootCmd.AddCommand(cmdruns.Command())
	rootCmd.AddCommand(cmdhttpd.Command())
	rootCmd.AddCommand(cmdscheduler.Command())
}

// initConfig reads the config file and environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional; env vars and defaults cover everything.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	if debug {
		viper.Set("logging.level", "debug")
	}

	return nil
}

// bindEnvVars maps well-known environment variables to config keys.
func bindEnvVars() error {
	bindings := map[string][]string{
		"anthropic.api_key": {"ANTHROPIC_API_KEY"},
		"database.host":     {"DATABASE_HOST", "PGHOST"},
		"database.port":     {"DATABASE_PORT", "PGPORT"},
		"database.user":     {"DATABASE_USER", "PGUSER"},
		"database.password": {"DATABASE_PASSWORD", "PGPASSWORD"},
		"database.database": {"DATABASE_NAME", "PGDATABASE"},
		"logging.level":     {"LOG_LEVEL"},
	}

	for key, envs := range bindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets production-safe default configuration values.
func setDefaults() {
	viper.SetDefault("database", map[string]any{
		"host":     "localhost",
		"port":     5432,
		"user":     "postgres",
		"database": "seoul_sister",
		"sslmode":  "disable",
	})

	viper.SetDefault("fetch", map[string]any{
		"concurrency":     3,
		"min_delay":       "2s",
		"max_retries":     3,
		"timeout":         "30s",
		"retry_after_cap": "60s",
	})

	viper.SetDefault("anthropic", map[string]any{
		"model":      "claude-sonnet-4-5",
		"max_tokens": 2048,
		"timeout":    "120s",
	})

	viper.SetDefault("pipeline", map[string]any{
		"batch_size":        25,
		"chunk_concurrency": 5,
		"link_batch_size":   50,
	})

	viper.SetDefault("prices", map[string]any{
		"min_confidence": 0.5,
		"staleness":      "24h",
		"batch_size":     20,
	})

	viper.SetDefault("server", map[string]any{
		"address": ":8085",
	})

	viper.SetDefault("logging", map[string]any{
		"level":       "info",
		"development": false,
	})
}
