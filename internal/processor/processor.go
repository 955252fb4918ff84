// Package processor runs the local finalization step on an imported file and
// answers subtitle questions for the sidecar guard.
package processor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mescon/arrfinalize/internal/logger"
)

// DefaultProcessTimeout bounds one run of the external process command.
const DefaultProcessTimeout = 6 * time.Hour

// ErrNoOutput is returned when processing finished but produced no usable file.
var ErrNoOutput = errors.New("processing produced no output file")

// MediaInfo is what Radarr told us about the imported file.
type MediaInfo struct {
	OriginalName string
	IMDbID       string
	TMDbID       string
	MovieID      string
}

// Processor turns an imported file into its final form. The returned paths are
// the output files; the first one is the file Radarr should end up tracking.
type Processor interface {
	Process(ctx context.Context, inputPath string, info MediaInfo) ([]string, error)
}

// validateMediaPath ensures a file path is safe to pass to subprocess commands.
// exec.Command does not go through a shell, so only null bytes and line breaks
// need rejecting on top of requiring an absolute path.
func validateMediaPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null byte: %s", path)
	}
	if strings.Contains(path, "\n") || strings.Contains(path, "\r") {
		return fmt.Errorf("path contains newline: %s", path)
	}
	return nil
}

// PassthroughProcessor accepts the imported file as already final.
type PassthroughProcessor struct{}

func (PassthroughProcessor) Process(_ context.Context, inputPath string, _ MediaInfo) ([]string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file unavailable: %w", err)
	}
	return []string{inputPath}, nil
}

// CommandProcessor runs an external command with the input path as its last
// argument. Every stdout line naming an existing file is an output; when the
// command prints none, the input path itself is the output.
type CommandProcessor struct {
	Command []string
	Timeout time.Duration
	log     logger.Sink
}

// NewCommandProcessor splits command on whitespace. An empty command yields a
// PassthroughProcessor.
func NewCommandProcessor(command string, log logger.Sink) Processor {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return PassthroughProcessor{}
	}
	return &CommandProcessor{Command: fields, Timeout: DefaultProcessTimeout, log: log}
}

func (p *CommandProcessor) Process(ctx context.Context, inputPath string, info MediaInfo) ([]string, error) {
	if err := validateMediaPath(inputPath); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append(append([]string{}, p.Command[1:]...), inputPath)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	cmd.Env = append(os.Environ(),
		"ARRFINALIZE_ORIGINAL_NAME="+info.OriginalName,
		"ARRFINALIZE_IMDB_ID="+info.IMDbID,
		"ARRFINALIZE_TMDB_ID="+info.TMDbID,
		"ARRFINALIZE_MOVIE_ID="+info.MovieID,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.Infof("Running %s on %s", p.Command[0], inputPath)
	start := time.Now()
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %v", p.Command[0], p.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", p.Command[0], err, strings.TrimSpace(stderr.String()))
	}
	p.log.Debugf("%s finished in %s", p.Command[0], time.Since(start).Round(time.Millisecond))

	outputs := parseOutputs(stdout.String())
	if len(outputs) == 0 {
		if _, err := os.Stat(inputPath); err != nil {
			return nil, ErrNoOutput
		}
		outputs = []string{inputPath}
	}
	return outputs, nil
}

// parseOutputs keeps stdout lines that are absolute paths to existing regular files.
func parseOutputs(stdout string) []string {
	var outputs []string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !filepath.IsAbs(line) {
			continue
		}
		if info, err := os.Stat(line); err == nil && info.Mode().IsRegular() {
			outputs = append(outputs, line)
		}
	}
	return outputs
}
