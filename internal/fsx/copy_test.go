package fsx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/arrfinalize/internal/testutil"
)

func TestCopyFile_PreservesContentModeAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Heat.en.srt", "1\n00:00:01,000 --> 00:00:02,000\nHi\n")
	require.NoError(t, os.Chmod(src, 0o640))
	mtime := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	dst := src + ".backup"
	require.NoError(t, CopyFile(src, dst))

	assert.Equal(t, testutil.ReadFile(t, src), testutil.ReadFile(t, dst))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestCopyFile_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "a.srt", "new")
	dst := testutil.WriteFile(t, dir, "a.srt.backup", "old")

	err := CopyFile(src, dst)
	require.Error(t, err)
	assert.Equal(t, "old", testutil.ReadFile(t, dst))
}

func TestCopyFile_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(dir, filepath.Join(dir, "out"))
	assert.Error(t, err)
}

func TestCopyFile_RemovesDestinationWhenMetadataFails(t *testing.T) {
	orig := chtimesFunc
	t.Cleanup(func() { chtimesFunc = orig })
	chtimesFunc = func(string, time.Time, time.Time) error { return os.ErrPermission }

	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Heat.en.srt", "subs")

	err := CopyFile(src, src+".backup")
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, []string{"Heat.en.srt"}, testutil.ListDir(t, dir))
}
