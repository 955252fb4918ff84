package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/config"
	"github.com/mescon/arrfinalize/internal/crypto"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/hook"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/metrics"
	"github.com/mescon/arrfinalize/internal/notifier"
)

// The workflow is not cancellable: runtime is bounded by the rescan retry and
// delay settings alone, so main runs it on a background context.
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, so the CLI surface can be tested.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("postradarr", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Configuration flags - all can also be set via environment variables (ARRFINALIZE_*)
	flagHost := fs.String("radarr-host", "", "Radarr host (env: ARRFINALIZE_RADARR_HOST, default: localhost)")
	flagPort := fs.Int("radarr-port", 0, "Radarr port (env: ARRFINALIZE_RADARR_PORT, default: 7878)")
	flagWebroot := fs.String("radarr-webroot", "", "Radarr URL base (env: ARRFINALIZE_RADARR_WEBROOT)")
	flagSSL := fs.Bool("radarr-ssl", false, "Use https for Radarr (env: ARRFINALIZE_RADARR_SSL)")
	flagLogLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (env: ARRFINALIZE_LOG_LEVEL, default: info)")
	flagLogDir := fs.String("log-dir", "", "Directory for rotating log files (env: ARRFINALIZE_LOG_DIR)")
	flagRescanRetries := fs.Int("rescan-retries", -1, "Polls per rescan before giving up (env: ARRFINALIZE_RESCAN_RETRIES, default: 6)")
	flagRescanDelay := fs.Duration("rescan-delay", 0, "Wait between rescan polls (env: ARRFINALIZE_RESCAN_DELAY, default: 10s)")
	flagProcessCommand := fs.String("process-command", "", "Command run on the imported file (env: ARRFINALIZE_PROCESS_COMMAND)")

	// One-shot utilities
	encryptValue := fs.String("encrypt-apikey", "", "Print the API key encrypted with ARRFINALIZE_ENCRYPTION_KEY and exit")
	testNotify := fs.Bool("test-notify", false, "Send a test notification to every ARRFINALIZE_NOTIFY_URLS service and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return hook.ExitSuccess
		}
		return hook.ExitFailure
	}

	if *showVersion {
		fmt.Fprintf(stdout, "arrfinalize %s\n", config.Version)
		return hook.ExitSuccess
	}

	// Radarr's connection test must succeed whatever the configuration holds,
	// so it is answered before any setting is read.
	env := hook.EnvFromOS()
	if env.IsTest() && *encryptValue == "" && !*testNotify {
		logger.New(stdout, "info").Infof("Test event received, nothing to do")
		return hook.ExitSuccess
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return hook.ExitFailure
	}
	cfg.ApplyFlags(config.FlagOverrides{
		RadarrHost:     flagHost,
		RadarrPort:     flagPort,
		RadarrWebroot:  flagWebroot,
		RadarrSSL:      flagSSL,
		LogLevel:       flagLogLevel,
		LogDir:         flagLogDir,
		RescanRetries:  flagRescanRetries,
		RescanDelay:    flagRescanDelay,
		ProcessCommand: flagProcessCommand,
	})

	if *encryptValue != "" {
		return encryptAPIKey(cfg, *encryptValue, stdout, stderr)
	}

	runID := uuid.NewString()[:8]
	base, err := logger.NewWithFile(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		// Keep going on stdout; losing the log file must not block the import
		base.Warnf("File logging disabled: %v", err)
	}
	defer base.Close()
	log := base.With(runID)
	if dir := base.LogDir(); dir != "" {
		log.Debugf("Logging to %s", dir)
	}

	bus := eventbus.NewEventBus(log, runID)

	notify, err := notifier.NewNotifier(cfg.NotifyURLs, cfg.NotifyEvents, log)
	if err != nil {
		log.Errorf("Invalid notification settings: %v", err)
		return hook.ExitFailure
	}
	if *testNotify {
		if err := notify.SendTestNotification(); err != nil {
			log.Errorf("Test notification failed: %v", err)
			return hook.ExitFailure
		}
		log.Infof("Test notification sent")
		return hook.ExitSuccess
	}
	notify.Start(bus)

	var metricsSvc *metrics.MetricsService
	if cfg.MetricsTextfile != "" {
		metricsSvc = metrics.NewMetricsService(log)
		metricsSvc.Start(bus)
	}

	log.Infof("arrfinalize %s (run %s)", config.Version, runID)
	log.Debugf("Radarr: %s, rescan retries %d every %s", cfg.RadarrBaseURL(), cfg.RescanRetries, cfg.RescanDelay)

	runner, err := hook.Build(cfg, log, bus, clock.NewRealClock())
	if err != nil {
		log.Errorf("Startup failed: %v", err)
		return hook.ExitFailure
	}

	code := runner.Run(ctx, env)

	if metricsSvc != nil {
		if err := metricsSvc.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warnf("%v", err)
		}
	}
	return code
}

func encryptAPIKey(cfg *config.Config, value string, stdout, stderr io.Writer) int {
	km := crypto.NewKeyManager(cfg.EncryptionKey)
	if !km.HasKey() {
		fmt.Fprintln(stderr, "ARRFINALIZE_ENCRYPTION_KEY must be set to encrypt a value")
		return hook.ExitFailure
	}
	encrypted, err := km.Encrypt(value)
	if err != nil {
		fmt.Fprintf(stderr, "Encryption failed: %v\n", err)
		return hook.ExitFailure
	}
	fmt.Fprintln(stdout, encrypted)
	return hook.ExitSuccess
}
