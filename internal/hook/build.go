package hook

import (
	"fmt"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/config"
	"github.com/mescon/arrfinalize/internal/crypto"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/integration"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/processor"
	"github.com/mescon/arrfinalize/internal/sidecar"
	"github.com/mescon/arrfinalize/internal/workflow"
)

// ResolveAPIKey returns the plaintext Radarr API key, decrypting an "enc:v1:"
// value with the configured encryption key.
func ResolveAPIKey(cfg *config.Config) (string, error) {
	key, err := crypto.NewKeyManager(cfg.EncryptionKey).Decrypt(cfg.RadarrAPIKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt Radarr API key: %w", err)
	}
	return key, nil
}

// Build wires the production collaborators described by cfg.
func Build(cfg *config.Config, log logger.Sink, bus eventbus.Publisher, clk clock.Clock) (*Runner, error) {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	apiKey, err := ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	client := integration.NewArrClient(integration.ArrClientOptions{
		BaseURL:    cfg.RadarrBaseURL(),
		APIKey:     apiKey,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.HTTPMaxRetries,
		Clock:      clk,
		Logger:     log,
	})
	validator := processor.NewSubtitleValidator(cfg.FFprobePath, cfg.SubtitleExtensions, log)

	reconciler := workflow.NewReconciler(workflow.Deps{
		Client: client,
		Guard:  sidecar.NewGuard(validator, bus, log),
		Clock:  clk,
		Bus:    bus,
		Logger: log,
	}, workflow.Options{
		APIKeyConfigured: apiKey != "",
		RescanRetries:    cfg.RescanRetries,
		RescanDelay:      cfg.RescanDelay,
	})

	return NewRunner(Deps{
		Config:     cfg,
		Processor:  processor.NewCommandProcessor(cfg.ProcessCommand, log),
		Reconciler: reconciler,
		Paths:      integration.NewPathMapper(cfg.PathMappings),
		Clock:      clk,
		Bus:        bus,
		Logger:     log,
	}), nil
}
