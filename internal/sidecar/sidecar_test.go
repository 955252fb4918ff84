package sidecar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/testutil"
)

// extValidator accepts files by extension.
type extValidator struct {
	exts  []string
	calls []string
}

func (v *extValidator) IsValidSubtitleSource(path string) bool {
	v.calls = append(v.calls, filepath.Base(path))
	for _, ext := range v.exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func newGuard() (*Guard, *extValidator, *testutil.EventRecorder) {
	v := &extValidator{exts: []string{".srt", ".ass"}}
	events := testutil.NewEventRecorder()
	return NewGuard(v, events, logger.Discard()), v, events
}

func TestBackup_CopiesOnlyMatchingValidSubtitles(t *testing.T) {
	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat (1995).mkv", "video")
	testutil.WriteFile(t, dir, "Heat (1995).en.srt", "english")
	testutil.WriteFile(t, dir, "Heat (1995).de.ass", "german")
	testutil.WriteFile(t, dir, "Heat (1995).nfo", "metadata")
	testutil.WriteFile(t, dir, "Other.en.srt", "other movie")
	testutil.WriteFile(t, dir, "Heat (1995).fr.srt.backup", "stale")
	testutil.WriteFile(t, dir, "Subs/Heat (1995).es.srt", "nested")

	guard, validator, events := newGuard()
	set, err := guard.Backup(media)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, [][2]string{
		{filepath.Join(dir, "Heat (1995).de.ass.backup"), filepath.Join(dir, "Heat (1995).de.ass")},
		{filepath.Join(dir, "Heat (1995).en.srt.backup"), filepath.Join(dir, "Heat (1995).en.srt")},
	}, set.Pairs())

	assert.Equal(t, "english", testutil.ReadFile(t, filepath.Join(dir, "Heat (1995).en.srt.backup")))
	assert.NotContains(t, validator.calls, "Heat (1995).mkv")
	assert.NotContains(t, validator.calls, "Other.en.srt")
	assert.NotContains(t, validator.calls, "Heat (1995).fr.srt.backup")

	evt, ok := events.Find(domain.SidecarsBackedUp)
	require.True(t, ok)
	assert.Equal(t, int64(2), evt.GetInt64Or("count", 0))
}

func TestBackup_NoSidecars(t *testing.T) {
	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat.mkv", "video")

	guard, _, events := newGuard()
	set, err := guard.Backup(media)
	require.NoError(t, err)

	assert.Equal(t, 0, set.Len())
	assert.Empty(t, events.Events())
	assert.Equal(t, []string{"Heat.mkv"}, testutil.ListDir(t, dir))
}

func TestBackup_MissingDirectory(t *testing.T) {
	guard, _, _ := newGuard()
	set, err := guard.Backup(filepath.Join(t.TempDir(), "gone", "Heat.mkv"))
	require.Error(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestBackupRestore_RoundTripLeavesNoBackups(t *testing.T) {
	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat.mkv", "video")
	testutil.WriteFile(t, dir, "Heat.en.srt", "english")
	testutil.WriteFile(t, dir, "Heat.de.srt", "german")
	testutil.WriteFile(t, dir, "Heat.forced.ass", "forced")

	guard, _, events := newGuard()
	set, err := guard.Backup(media)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	// Radarr's rescan may delete or rename the originals in the meantime.
	require.NoError(t, os.Remove(filepath.Join(dir, "Heat.en.srt")))

	guard.Restore(set)

	assert.Equal(t, 0, set.Len())
	assert.Equal(t, []string{"Heat.de.srt", "Heat.en.srt", "Heat.forced.ass", "Heat.mkv"}, testutil.ListDir(t, dir))
	assert.Equal(t, "english", testutil.ReadFile(t, filepath.Join(dir, "Heat.en.srt")))
	assert.Len(t, filterTypes(events.Types(), domain.SidecarRestored), 3)
}

func TestRestore_FailedRenameDeletesBackup(t *testing.T) {
	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat.mkv", "video")
	original := testutil.WriteFile(t, dir, "Heat.en.srt", "english")

	guard, _, events := newGuard()
	set, err := guard.Backup(media)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	// Replace the original with a non-empty directory so the rename back fails.
	require.NoError(t, os.Remove(original))
	testutil.WriteFile(t, dir, "Heat.en.srt/blocker", "x")

	guard.Restore(set)

	assert.Equal(t, 0, set.Len())
	assert.NoFileExists(t, original+BackupSuffix)
	_, ok := events.Find(domain.SidecarDiscarded)
	assert.True(t, ok)
}

func TestRestore_BackupAlreadyGone(t *testing.T) {
	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat.mkv", "video")
	original := testutil.WriteFile(t, dir, "Heat.en.srt", "english")

	guard, _, _ := newGuard()
	set, err := guard.Backup(media)
	require.NoError(t, err)
	require.NoError(t, os.Remove(original+BackupSuffix))

	assert.NotPanics(t, func() { guard.Restore(set) })
	assert.Equal(t, 0, set.Len())
	assert.FileExists(t, original)
}

func TestRestore_NilAndEmptySets(t *testing.T) {
	guard, _, events := newGuard()
	assert.NotPanics(t, func() { guard.Restore(nil) })
	assert.NotPanics(t, func() { guard.Restore(newBackupSet()) })
	assert.Empty(t, events.Events())
}

func filterTypes(types []domain.EventType, want domain.EventType) []domain.EventType {
	var out []domain.EventType
	for _, tt := range types {
		if tt == want {
			out = append(out, tt)
		}
	}
	return out
}
