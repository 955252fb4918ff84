package integration

import (
	"context"
	"time"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/logger"
)

// Rescan wait defaults: six re-polls ten seconds apart, roughly a minute per rescan.
const (
	DefaultPollRetries = 6
	DefaultPollDelay   = 10 * time.Second
)

// CommandPoller waits for Radarr commands to finish.
type CommandPoller struct {
	client CommandFetcher
	clock  clock.Clock
	log    logger.Sink
}

// NewCommandPoller creates a poller that sleeps through clk between fetches.
func NewCommandPoller(client CommandFetcher, clk clock.Clock, log logger.Sink) *CommandPoller {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &CommandPoller{client: client, clock: clk, log: log}
}

// AwaitCompletion re-fetches the command every delay until it reaches a terminal
// state or retries re-fetches have been spent. The handle's State is refreshed in place.
//
// A false result with a nil error is a timeout, not a failure: the caller decides
// how bad that is. Errors are reserved for transport or decoding problems.
func (p *CommandPoller) AwaitCompletion(ctx context.Context, handle *CommandHandle, retries int, delay time.Duration) (bool, error) {
	attempts := 0
	for !handle.IsTerminal() && attempts < retries {
		p.log.Debugf("Command %d state: %s", handle.ID, handle.State)
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return false, err
		}
		current, err := p.client.GetCommand(ctx, handle.ID)
		if err != nil {
			return false, err
		}
		handle.State = current.State
		attempts++
	}

	p.log.Infof("Command %d final state: %s after %d poll(s)", handle.ID, handle.State, attempts)
	return handle.IsTerminal(), nil
}
