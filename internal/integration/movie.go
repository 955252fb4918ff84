package integration

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/logger"
)

// MovieRecord is Radarr's movie resource as decoded JSON. Only "monitored" is
// ever changed by the hook; every other field is written back exactly as read.
type MovieRecord map[string]interface{}

// HasFile reports Radarr's hasFile flag. Missing or non-bool counts as false.
func (m MovieRecord) HasFile() bool {
	v, _ := m["hasFile"].(bool)
	return v
}

// Monitored reports Radarr's monitored flag.
func (m MovieRecord) Monitored() bool {
	v, _ := m["monitored"].(bool)
	return v
}

// Title returns the movie title, or "" when absent.
func (m MovieRecord) Title() string {
	v, _ := m["title"].(string)
	return v
}

// SetMonitored flips the monitored flag in place.
func (m MovieRecord) SetMonitored(monitored bool) {
	m["monitored"] = monitored
}

// MovieUpdater reads and writes movie records and queues rename commands.
type MovieUpdater struct {
	client ArrClient
	bus    eventbus.Publisher
	log    logger.Sink
}

// NewMovieUpdater builds an updater. bus may be nil.
func NewMovieUpdater(client ArrClient, bus eventbus.Publisher, log logger.Sink) *MovieUpdater {
	return &MovieUpdater{client: client, bus: bus, log: log}
}

// Fetch gets a fresh copy of the movie record.
func (u *MovieUpdater) Fetch(ctx context.Context, movieID int64) (MovieRecord, error) {
	u.log.Infof("Requesting updated information from Radarr for movie ID %d", movieID)
	return u.client.GetMovie(ctx, movieID)
}

// Push writes rec back. Radarr echoes the stored record; its title confirms the write.
func (u *MovieUpdater) Push(ctx context.Context, movieID int64, rec MovieRecord) (MovieRecord, error) {
	u.log.Debugf("Sending PUT for movie %d with %d field(s)", movieID, len(rec))
	saved, err := u.client.PutMovie(ctx, movieID, rec)
	if err != nil {
		return nil, err
	}
	if saved.Title() == "" {
		return saved, fmt.Errorf("failed to update movie %d: %w: response has no title", movieID, ErrMalformedResponse)
	}
	return saved, nil
}

// TriggerRename queues a RenameMovie command and returns without waiting.
// Renaming is cosmetic, so failures are logged and published but never returned.
func (u *MovieUpdater) TriggerRename(ctx context.Context, movieID int64) {
	aggregateID := strconv.FormatInt(movieID, 10)
	handle, err := u.client.DispatchCommand(ctx, CommandRenameMovie, map[string]interface{}{
		"movieIds": []int64{movieID},
	})
	if err != nil {
		u.log.Warnf("Rename command for movie %d failed: %v", movieID, err)
		eventbus.Emit(u.bus, u.log, domain.RenameFailed, aggregateID, map[string]interface{}{
			"movie_id": movieID,
			"error":    err.Error(),
		})
		return
	}
	u.log.Infof("Radarr response Rename command: ID %d %s", handle.ID, handle.State)
	eventbus.Emit(u.bus, u.log, domain.RenameTriggered, aggregateID, map[string]interface{}{
		"movie_id":   movieID,
		"command_id": handle.ID,
		"state":      handle.State,
	})
}
