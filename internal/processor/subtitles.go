package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mescon/arrfinalize/internal/logger"
)

// probeTimeout bounds a single ffprobe call on a subtitle file.
const probeTimeout = 30 * time.Second

var versionPattern = regexp.MustCompile(`version\s+(\S+)`)

// ToolStatus represents the availability status of an external tool.
type ToolStatus struct {
	Name      string
	Available bool
	Path      string
	Version   string
}

// resolveBinaryPath resolves a binary path, handling both absolute paths and PATH lookup.
func resolveBinaryPath(binaryPath string) (string, error) {
	if filepath.IsAbs(binaryPath) {
		if _, err := os.Stat(binaryPath); err != nil {
			return "", err
		}
		return binaryPath, nil
	}
	return exec.LookPath(binaryPath)
}

// CheckTool resolves binaryPath and reads its version banner.
func CheckTool(name, binaryPath string) ToolStatus {
	status := ToolStatus{Name: name}
	path, err := resolveBinaryPath(binaryPath)
	if err != nil {
		return status
	}
	status.Available = true
	status.Path = path

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = &out
	if cmd.Run() == nil {
		// First line looks like "ffprobe version 6.1.1 Copyright..."
		firstLine := strings.SplitN(out.String(), "\n", 2)[0]
		if m := versionPattern.FindStringSubmatch(firstLine); len(m) > 1 {
			status.Version = m[1]
		}
	}
	return status
}

// ProbeFunc returns the codec_type of every stream in path.
type ProbeFunc func(ctx context.Context, path string) ([]string, error)

// FFprobeSubtitleValidator accepts a file when its extension is a subtitle
// extension and, if ffprobe is available, every stream ffprobe reports in it
// is a subtitle stream. Without ffprobe the extension alone decides.
type FFprobeSubtitleValidator struct {
	extensions map[string]bool
	probe      ProbeFunc
	log        logger.Sink
}

// NewSubtitleValidator builds a validator. When ffprobePath cannot be resolved
// validation falls back to extensions only.
func NewSubtitleValidator(ffprobePath string, extensions []string, log logger.Sink) *FFprobeSubtitleValidator {
	v := &FFprobeSubtitleValidator{extensions: make(map[string]bool, len(extensions)), log: log}
	for _, ext := range extensions {
		v.extensions[strings.ToLower(ext)] = true
	}

	status := CheckTool("ffprobe", ffprobePath)
	if status.Available {
		log.Debugf("Using ffprobe %s at %s for subtitle validation", status.Version, status.Path)
		v.probe = ffprobeStreams(status.Path)
	} else {
		log.Warnf("ffprobe not found at %s, validating subtitles by extension only", ffprobePath)
	}
	return v
}

// WithProbe swaps the stream probe; nil disables probing.
func (v *FFprobeSubtitleValidator) WithProbe(probe ProbeFunc) *FFprobeSubtitleValidator {
	v.probe = probe
	return v
}

func (v *FFprobeSubtitleValidator) IsValidSubtitleSource(path string) bool {
	if !v.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	if v.probe == nil {
		return true
	}
	if err := validateMediaPath(path); err != nil {
		v.log.Debugf("Not probing %s: %v", path, err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	codecTypes, err := v.probe(ctx, path)
	if err != nil {
		v.log.Debugf("ffprobe rejected %s: %v", path, err)
		return false
	}
	if len(codecTypes) == 0 {
		return false
	}
	for _, ct := range codecTypes {
		if ct != "subtitle" {
			return false
		}
	}
	return true
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func ffprobeStreams(binary string) ProbeFunc {
	return func(ctx context.Context, path string) ([]string, error) {
		cmd := exec.CommandContext(ctx, binary, "-v", "error", "-show_streams", "-of", "json", path)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, &probeError{err: err, stderr: strings.TrimSpace(stderr.String())}
		}
		var out ffprobeOutput
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			return nil, err
		}
		types := make([]string, 0, len(out.Streams))
		for _, s := range out.Streams {
			types = append(types, s.CodecType)
		}
		return types, nil
	}
}

type probeError struct {
	err    error
	stderr string
}

func (e *probeError) Error() string {
	if e.stderr == "" {
		return "ffprobe failed: " + e.err.Error()
	}
	return "ffprobe failed: " + e.stderr
}

func (e *probeError) Unwrap() error { return e.err }
