package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/bglane/internal/app"
	"github.com/harun/bglane/internal/config"
	"github.com/harun/bglane/internal/logger"
	"github.com/spf13/cobra"
)

var (
	runMonitor     bool
	runMonitorAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Start an interactive session reading shell lines from stdin.
Background mode is on by default (lanes.auto_load). At end of input the session
waits for every lane to drain before exiting.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&runMonitor, "monitor", false, "serve the HTTP monitor (metrics, lanes, events)")
	runCmd.Flags().StringVar(&runMonitorAddr, "monitor-addr", "", "monitor listen address (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Console,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	a, err := app.New(cfg, log, app.Options{
		ConfigPath:    configPath,
		EnableMonitor: runMonitor || runMonitorAddr != "",
		MonitorAddr:   runMonitorAddr,
		Stdout:        cmd.OutOrStdout(),
		Stderr:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	if err := a.Start(); err != nil {
		_ = a.Stop(context.Background())
		return err
	}

	if addr := a.MonitorAddr(); addr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "monitor listening on %s\n", addr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.Run(ctx, cmd.InOrStdin())
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// A second signal while lanes drain kills the process the usual way.
	stop()

	if err := a.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	}
	return runErr
}

// loadConfig reads the config file (checked against the schema when it
// exists), applies env overrides and validates the result. It also returns the
// resolved path so the session can watch it.
func loadConfig(path string) (*config.Config, string, error) {
	loader := config.NewLoader(path)
	resolved := loader.GetConfigPath()

	if resolved != "" {
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := config.ValidateDocument(data); err != nil {
				return nil, "", fmt.Errorf("%s: %w", resolved, err)
			}
		case !os.IsNotExist(err):
			return nil, "", fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, resolved, nil
}
