package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/cdrload/internal/config"
	"github.com/gyeh/cdrload/internal/exitcode"
	"github.com/gyeh/cdrload/internal/logging"
)

var (
	cfg config.Config
	log zerolog.Logger

	configPath string
	dsn        string
	driver     string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cdrload",
	Short: "Telecom CDR file intake → database loader",
	Long: "Polls an input directory for pipe-delimited call detail record files, parses them,\n" +
		"bulk-loads the records in parallel chunks and moves each file to a processed or error directory.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&dsn, "dsn", os.Getenv("CDRLOAD_DB_URL"), "Postgres connection string (or set CDRLOAD_DB_URL)")
	pf.StringVar(&driver, "driver", "", "Store driver: sqlite or postgres (overrides config)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// loadConfig builds cfg from defaults, the config file and flag overrides.
func loadConfig(cmd *cobra.Command, args []string) error {
	log = logging.Setup(logFormat, logLevel)

	c, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("config load failed")
		os.Exit(exitcode.ConfigError)
	}
	if dsn != "" {
		c.Store.DSN = dsn
		if driver == "" && c.Store.Driver == config.DriverSQLite && cmd.Flags().Changed("dsn") {
			c.Store.Driver = config.DriverPostgres
		}
	}
	if driver != "" {
		c.Store.Driver = driver
	}
	c.LogFormat, c.LogLevel = logFormat, logLevel
	cfg = c
	return nil
}
