// Package workflow reconciles Radarr's view of a movie with a file that was
// just finalized on disk.
package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/integration"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/sidecar"
)

// Outcome is the terminal state of one reconciliation.
type Outcome string

const (
	// OutcomeSuccess: the movie is monitored again and a rename was queued.
	OutcomeSuccess Outcome = "success"
	// OutcomeSkipped: no API key, nothing was sent to Radarr.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRescanTimeout: a required rescan never reached a terminal state.
	OutcomeRescanTimeout Outcome = "rescan_timeout"
	// OutcomeFileStillMissing: Radarr saw no file after two rescans; monitored is left alone.
	OutcomeFileStillMissing Outcome = "file_still_missing"
	// OutcomeDegraded: an unexpected remote error. Local processing still stands.
	OutcomeDegraded Outcome = "degraded"
)

// IsFailure reports whether the outcome should fail the hook.
func (o Outcome) IsFailure() bool {
	return o == OutcomeRescanTimeout || o == OutcomeFileStillMissing
}

// Result describes how a reconciliation ended.
type Result struct {
	Outcome Outcome
	Title   string // movie title confirmed by Radarr on success
	Err     error  // set for OutcomeDegraded
}

// SidecarGuard is the backup/restore pair wrapped around Radarr rescans.
type SidecarGuard interface {
	Backup(mediaPath string) (*sidecar.BackupSet, error)
	Restore(set *sidecar.BackupSet)
}

// Deps are the collaborators a Reconciler drives.
type Deps struct {
	Client integration.ArrClient
	Guard  SidecarGuard
	Clock  clock.Clock
	Bus    eventbus.Publisher
	Logger logger.Sink
}

// Options tune a Reconciler.
type Options struct {
	APIKeyConfigured bool
	RescanRetries    int
	RescanDelay      time.Duration
}

// Reconciler runs the rescan / verify / monitor / rename sequence for one movie.
type Reconciler struct {
	client  integration.ArrClient
	poller  *integration.CommandPoller
	movies  *integration.MovieUpdater
	guard   SidecarGuard
	bus     eventbus.Publisher
	log     logger.Sink
	opts    Options
	movieID int64
}

// NewReconciler creates a Reconciler. A nil Logger discards output.
func NewReconciler(deps Deps, opts Options) *Reconciler {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &Reconciler{
		client: deps.Client,
		poller: integration.NewCommandPoller(deps.Client, deps.Clock, deps.Logger),
		movies: integration.NewMovieUpdater(deps.Client, deps.Bus, deps.Logger),
		guard:  deps.Guard,
		bus:    deps.Bus,
		log:    deps.Logger,
		opts:   opts,
	}
}

// Reconcile brings Radarr in line with the finalized file at mediaPath.
//
// Sidecar backups taken here are always restored before returning, whichever
// way the run ends. Unexpected remote errors do not escape: they become
// OutcomeDegraded so the caller can still report local success.
func (r *Reconciler) Reconcile(ctx context.Context, movieID int64, mediaPath string) Result {
	r.movieID = movieID
	if !r.opts.APIKeyConfigured {
		r.log.Errorf("Your Radarr API key is blank. Set ARRFINALIZE_RADARR_APIKEY to enable status updates.")
		r.emit(domain.ReconciliationSkipped, map[string]interface{}{"reason": "missing_api_key"})
		return Result{Outcome: OutcomeSkipped}
	}

	subs, err := r.guard.Backup(mediaPath)
	if err != nil {
		r.log.Warnf("Subtitle backup incomplete: %v", err)
	}
	defer func() {
		if subs.Len() > 0 {
			r.log.Infof("Restoring %d subtitle backup(s) before exit", subs.Len())
			r.guard.Restore(subs)
		}
	}()

	result, err := r.run(ctx, subs)
	if err != nil {
		r.log.Errorf("Radarr monitor status update failed: %v", err)
		r.emit(domain.ReconciliationFailed, map[string]interface{}{"error": err.Error()})
		return Result{Outcome: OutcomeDegraded, Err: err}
	}
	return result
}

func (r *Reconciler) run(ctx context.Context, subs *sidecar.BackupSet) (Result, error) {
	done, err := r.rescanAndWait(ctx, 1)
	if err != nil {
		return Result{}, err
	}
	if !done {
		r.log.Errorf("Rescan command timed out")
		return Result{Outcome: OutcomeRescanTimeout}, nil
	}
	r.log.Infof("Rescan command completed")

	movie, err := r.movies.Fetch(ctx, r.movieID)
	if err != nil {
		return Result{}, err
	}

	if !movie.HasFile() {
		r.log.Warnf("Rescanned movie does not have a file, attempting second rescan")
		done, err := r.rescanAndWait(ctx, 2)
		if err != nil {
			return Result{}, err
		}
		if !done {
			r.log.Errorf("Second rescan command timed out")
			return Result{Outcome: OutcomeRescanTimeout}, nil
		}
		if movie, err = r.movies.Fetch(ctx, r.movieID); err != nil {
			return Result{}, err
		}
		if !movie.HasFile() {
			r.log.Warnf("Rescanned movie still does not have a file, will not set to monitored to prevent endless loop")
			r.emit(domain.FileMissing, map[string]interface{}{"title": movie.Title()})
			return Result{Outcome: OutcomeFileStillMissing}, nil
		}
		r.log.Infof("File found after second rescan")
		r.emit(domain.FileFoundAfterRetry, map[string]interface{}{"title": movie.Title()})
	}

	if subs.Len() > 0 {
		r.log.Debugf("Restoring %d subs and triggering a final rescan", subs.Len())
		r.guard.Restore(subs)
		// Best effort: the monitored update goes ahead whatever happens here.
		if done, err := r.rescanAndWait(ctx, 3); err != nil {
			r.log.Warnf("Final rescan after restoring subtitles failed: %v", err)
		} else if !done {
			r.log.Warnf("Final rescan after restoring subtitles did not complete in time")
		}
	}

	movie.SetMonitored(true)
	saved, err := r.movies.Push(ctx, r.movieID, movie)
	if err != nil {
		return Result{}, err
	}
	r.log.Infof("Radarr monitoring information updated for movie %s", saved.Title())
	r.emit(domain.MonitoredUpdated, map[string]interface{}{"title": saved.Title()})

	r.movies.TriggerRename(ctx, r.movieID)
	return Result{Outcome: OutcomeSuccess, Title: saved.Title()}, nil
}

// rescanAndWait queues a RescanMovie and polls it. attempt only labels events.
func (r *Reconciler) rescanAndWait(ctx context.Context, attempt int) (bool, error) {
	handle, err := r.client.DispatchCommand(ctx, integration.CommandRescanMovie, map[string]interface{}{
		"movieId": r.movieID,
	})
	if err != nil {
		return false, err
	}
	r.log.Infof("Radarr response from RescanMovie command: ID %d %s", handle.ID, handle.State)
	data := domain.RescanEventData{MovieID: r.movieID, CommandID: handle.ID, State: handle.State, Attempt: attempt}
	r.emit(domain.RescanQueued, data.ToMap())

	done, err := r.poller.AwaitCompletion(ctx, handle, r.opts.RescanRetries, r.opts.RescanDelay)
	if err != nil {
		return false, err
	}
	data.State = handle.State
	if done {
		r.emit(domain.RescanCompleted, data.ToMap())
	} else {
		r.emit(domain.RescanTimedOut, data.ToMap())
	}
	return done, nil
}

func (r *Reconciler) emit(eventType domain.EventType, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["movie_id"] = r.movieID
	eventbus.Emit(r.bus, r.log, eventType, strconv.FormatInt(r.movieID, 10), data)
}
