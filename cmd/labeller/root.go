package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kinetrace/labeller/internal/config"
	"github.com/kinetrace/labeller/internal/database"
	"github.com/kinetrace/labeller/internal/logging"
)

// rootCommand builds the CLI tree. Configuration is loaded once in the
// persistent pre-run so every subcommand sees the same viper state.
func rootCommand() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:     "labeller",
		Short:   "Annotation engine for multi-camera capture trials",
		Version: fmt.Sprintf("%s (built %s)", CurrentVersion, BuildDate),
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.Load(configDir); err != nil {
			return err
		}
		// Flags override the config file.
		return viper.BindPFlags(rootCmd.PersistentFlags())
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing "+config.ConfigFileName)
	rootCmd.PersistentFlags().String("db.file", "", "Path to the sqlite label database")
	rootCmd.PersistentFlags().String("logLevel", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		annotateCommand(),
		initdbCommand(),
		landmarksCommand(),
	)

	return rootCmd
}

// openDatabase connects and migrates using the resolved configuration.
func openDatabase() (*database.Manager, error) {
	dbLog := logging.NewZerolog(os.Stderr, config.GetString("logLevel"))
	manager := database.NewManager(dbLog)
	if err := manager.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", err)
	}
	if err := manager.Setup(); err != nil {
		manager.Close()
		return nil, fmt.Errorf("failed to set up database: %s", err)
	}
	return manager, nil
}

// openLogFile creates the per-run log file under logsDir. A nil file (with
// no error) means file logging is disabled.
func openLogFile(start time.Time) (io.WriteCloser, error) {
	logsDir := config.GetString("logsDir")
	if logsDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir %s: %s", logsDir, err)
	}
	path := logging.LogFilePath(logsDir, start)
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %s", path, err)
	}
	return f, nil
}
