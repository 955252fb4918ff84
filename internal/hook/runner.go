// Package hook is the Radarr post-import entry point: it finalizes the
// imported file and reconciles Radarr, then maps the result to an exit code.
package hook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/config"
	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/fsx"
	"github.com/mescon/arrfinalize/internal/integration"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/processor"
	"github.com/mescon/arrfinalize/internal/workflow"
)

// Exit codes returned to Radarr.
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitDegraded = 2 // processed locally, Radarr reconciliation hit an unexpected error
)

// Outcomes reported on RunCompleted that have no workflow counterpart.
const (
	OutcomeTest             = "test"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeProcessingFailed = "processing_failed"
)

// PathResolver maps a path Radarr reported to one this process can open.
type PathResolver interface {
	Resolve(arrPath string) string
}

// Reconciler is the remote half of the run.
type Reconciler interface {
	Reconcile(ctx context.Context, movieID int64, mediaPath string) workflow.Result
}

// Deps are the collaborators a Runner needs.
type Deps struct {
	Config     *config.Config
	Processor  processor.Processor
	Reconciler Reconciler
	Paths      PathResolver
	Clock      clock.Clock
	Bus        eventbus.Publisher
	Logger     logger.Sink
}

// Runner executes one hook invocation.
type Runner struct {
	cfg        *config.Config
	processor  processor.Processor
	reconciler Reconciler
	paths      PathResolver
	clock      clock.Clock
	bus        eventbus.Publisher
	log        logger.Sink
}

// NewRunner creates a Runner from its collaborators.
func NewRunner(deps Deps) *Runner {
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Paths == nil {
		deps.Paths = integration.NewPathMapper(nil)
	}
	return &Runner{
		cfg:        deps.Config,
		processor:  deps.Processor,
		reconciler: deps.Reconciler,
		paths:      deps.Paths,
		clock:      deps.Clock,
		bus:        deps.Bus,
		log:        deps.Logger,
	}
}

// Run handles one invocation and returns the process exit code.
func (r *Runner) Run(ctx context.Context, env Env) int {
	start := r.clock.Now()
	r.log.Infof("Radarr extra script post processing started")
	eventbus.Emit(r.bus, r.log, domain.RunStarted, env.MovieID, map[string]interface{}{
		"event_type": env.EventType,
		"file_path":  env.FilePath,
	})

	outcome, code, target, title := r.run(ctx, env)

	duration := r.clock.Now().Sub(start)
	r.log.Infof("Finished with outcome %s (exit %d) in %s", outcome, code, duration.Round(time.Millisecond))
	data := domain.RunCompletedEventData{
		Outcome:         outcome,
		ExitCode:        code,
		FilePath:        target,
		Title:           title,
		DurationSeconds: duration.Seconds(),
	}
	eventbus.Emit(r.bus, r.log, domain.RunCompleted, env.MovieID, data.ToMap())
	return code
}

func (r *Runner) run(ctx context.Context, env Env) (outcome string, code int, target, title string) {
	if env.IsTest() {
		r.log.Infof("Test event received, nothing to do")
		eventbus.Emit(r.bus, r.log, domain.TestEventReceived, "", nil)
		return OutcomeTest, ExitSuccess, "", ""
	}

	r.logInputs(env)

	if strings.TrimSpace(env.FilePath) == "" {
		r.log.Errorf("No input file: radarr_moviefile_path is empty")
		return OutcomeInvalidInput, ExitFailure, "", ""
	}
	inputPath := r.paths.Resolve(env.FilePath)
	if inputPath != env.FilePath {
		r.log.Debugf("Mapped %s to local path %s", env.FilePath, inputPath)
	}

	if r.cfg.RenameBeforeProcessing {
		inputPath = r.quarantine(env.MovieID, inputPath)
	}

	outputs, err := r.processor.Process(ctx, inputPath, processor.MediaInfo{
		OriginalName: env.SceneName,
		IMDbID:       env.IMDbID,
		TMDbID:       env.TMDbID,
		MovieID:      env.MovieID,
	})
	if err == nil && len(outputs) == 0 {
		err = processor.ErrNoOutput
	}
	if err != nil {
		r.log.Errorf("Error processing file %s: %v", inputPath, err)
		eventbus.Emit(r.bus, r.log, domain.ProcessingFailed, env.MovieID, map[string]interface{}{
			"file_path": inputPath,
			"error":     err.Error(),
		})
		return OutcomeProcessingFailed, ExitFailure, inputPath, ""
	}
	target = outputs[0]
	r.log.Infof("Processing completed: %s", target)
	eventbus.Emit(r.bus, r.log, domain.ProcessingCompleted, env.MovieID, map[string]interface{}{
		"file_path": target,
		"outputs":   len(outputs),
	})

	movieID, err := parseMovieID(env.MovieID)
	if err != nil {
		// Local processing stands; Radarr just cannot be told about it.
		r.log.Errorf("Radarr monitor status update failed: %v", err)
		eventbus.Emit(r.bus, r.log, domain.ReconciliationFailed, env.MovieID, map[string]interface{}{
			"error": err.Error(),
		})
		return string(workflow.OutcomeDegraded), ExitDegraded, target, ""
	}

	res := r.reconciler.Reconcile(ctx, movieID, target)
	return string(res.Outcome), exitCode(res.Outcome), target, res.Title
}

func (r *Runner) quarantine(movieID, path string) string {
	moved, err := fsx.Quarantine(path)
	if err != nil {
		r.log.Warnf("Error renaming input file, processing in place: %v", err)
		eventbus.Emit(r.bus, r.log, domain.QuarantineFailed, movieID, map[string]interface{}{
			"file_path":    path,
			"error":        err.Error(),
			"cross_device": fsx.IsCrossDevice(err),
		})
		return path
	}
	r.log.Infof("Renamed %s to %s", path, moved)
	eventbus.Emit(r.bus, r.log, domain.FileQuarantined, movieID, map[string]interface{}{
		"from": path,
		"to":   moved,
	})
	return moved
}

func (r *Runner) logInputs(env Env) {
	r.log.Debugf("Input file: %s", env.FilePath)
	r.log.Debugf("Original name: %s", env.SceneName)
	r.log.Debugf("IMDB ID: %s", env.IMDbID)
	r.log.Debugf("TMDB ID: %s", env.TMDbID)
	r.log.Debugf("Radarr Movie ID: %s", env.MovieID)
	r.log.Debugf("Radarr URL: %s", r.cfg.RadarrBaseURL())
	r.log.Debugf("Radarr API key: %s", logger.MaskSecret(r.cfg.RadarrAPIKey))
}

func parseMovieID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid Radarr movie id %q", raw)
	}
	return id, nil
}

func exitCode(outcome workflow.Outcome) int {
	switch {
	case outcome == workflow.OutcomeDegraded:
		return ExitDegraded
	case outcome.IsFailure():
		return ExitFailure
	default:
		return ExitSuccess
	}
}
