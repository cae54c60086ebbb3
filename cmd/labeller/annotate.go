package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinetrace/labeller/internal/catalog"
	"github.com/kinetrace/labeller/internal/config"
	"github.com/kinetrace/labeller/internal/logging"
	"github.com/kinetrace/labeller/internal/metrics"
	"github.com/kinetrace/labeller/internal/session"
	"github.com/kinetrace/labeller/internal/store"
	"github.com/kinetrace/labeller/internal/telemetry"
)

// runner drives an open session until the operator is done. The default is
// the line-oriented console runner; a graphical frontend replaces it by
// swapping this hook.
var runner func(*session.Session) error = runConsole

func annotateCommand() *cobra.Command {
	var (
		input   string
		subject string
		trial   int
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Open an annotation session over one (subject, trial)",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			logFile, err := openLogFile(start)
			if err != nil {
				return err
			}
			if logFile != nil {
				defer logFile.Close()
			}
			slogManager := logging.NewSlogManager()
			slogManager.Setup(logFile, config.GetString("logLevel"))
			logger := slogManager.Logger()

			cat, err := catalog.Load(input)
			if err != nil {
				return fmt.Errorf("failed to load frame log %s: %s", input, err)
			}

			manager, err := openDatabase()
			if err != nil {
				return err
			}
			defer manager.Close()

			provider, err := metrics.New(metrics.Config{
				Enabled:        config.GetBool("otel.enabled"),
				ServiceName:    config.GetString("otel.serviceName"),
				ExportInterval: config.GetDuration("otel.exportInterval"),
				Writer:         os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("failed to set up metrics: %s", err)
			}
			defer provider.Shutdown(context.Background())

			recorder, err := metrics.NewRecorder(provider.MeterProvider())
			if err != nil {
				return fmt.Errorf("failed to create metric recorder: %s", err)
			}

			influx := telemetry.NewManager(logging.NewZerolog(os.Stderr, config.GetString("logLevel")))
			if err := influx.Connect(); err != nil {
				// telemetry is best effort, annotation continues without it
				logger.Warn("Telemetry unavailable", "error", err)
			}
			defer influx.Close()

			sess, err := session.New(session.Config{
				Subject:   subject,
				Trial:     trial,
				Store:     store.New(manager.DB),
				Catalog:   cat,
				Logger:    logger,
				Metrics:   recorder,
				Telemetry: influx,
			})
			if err != nil {
				return fmt.Errorf("failed to open session: %s", err)
			}

			if err := runner(sess); err != nil {
				return err
			}
			return sess.Close()
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Path to the frame log CSV")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier")
	cmd.Flags().IntVar(&trial, "trial", 0, "Trial number within the subject")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("trial")

	return cmd
}
