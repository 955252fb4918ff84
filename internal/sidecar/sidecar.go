// Package sidecar shields subtitle files next to a media file from Radarr's
// rescan and puts them back afterwards.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/fsx"
	"github.com/mescon/arrfinalize/internal/logger"
)

// BackupSuffix is appended to a sidecar's path to form its backup copy.
const BackupSuffix = ".backup"

// SubtitleValidator decides whether a file is a usable subtitle source.
type SubtitleValidator interface {
	IsValidSubtitleSource(path string) bool
}

// BackupSet maps backup path to original path.
type BackupSet struct {
	entries map[string]string
}

func newBackupSet() *BackupSet {
	return &BackupSet{entries: make(map[string]string)}
}

// Len returns the number of pending backups. A nil set is empty.
func (s *BackupSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Pairs returns the backup→original mapping in backup-path order.
func (s *BackupSet) Pairs() [][2]string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, s.entries[k]})
	}
	return pairs
}

// Guard copies sidecars aside before a rescan and restores them afterwards.
type Guard struct {
	validator SubtitleValidator
	bus       eventbus.Publisher
	log       logger.Sink
}

// NewGuard builds a Guard. bus may be nil.
func NewGuard(validator SubtitleValidator, bus eventbus.Publisher, log logger.Sink) *Guard {
	return &Guard{validator: validator, bus: bus, log: log}
}

// Backup copies every valid subtitle sitting next to mediaPath and sharing its
// base name to "<path>.backup". Files that fail to copy are logged and left out
// of the set; only a failure to read the directory is returned.
func (g *Guard) Backup(mediaPath string) (*BackupSet, error) {
	set := newBackupSet()
	dir := filepath.Dir(mediaPath)
	mediaName := filepath.Base(mediaPath)
	prefix := strings.TrimSuffix(mediaName, filepath.Ext(mediaName))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return set, fmt.Errorf("failed to list %s for sidecars: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == mediaName {
			continue
		}
		if !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, BackupSuffix) {
			continue
		}

		original := filepath.Join(dir, name)
		if !g.validator.IsValidSubtitleSource(original) {
			g.log.Debugf("Skipping %s: not a valid subtitle source", original)
			continue
		}

		backup := original + BackupSuffix
		if err := fsx.CopyFile(original, backup); err != nil {
			g.log.Warnf("Unable to back up %s: %v", original, err)
			continue
		}
		set.entries[backup] = original
		g.log.Infof("Copying %s to %s", original, backup)
	}

	if set.Len() > 0 {
		eventbus.Emit(g.bus, g.log, domain.SidecarsBackedUp, "", map[string]interface{}{
			"media_path": mediaPath,
			"count":      set.Len(),
		})
	}
	return set, nil
}

// Restore renames every backup over its original. When that rename fails the
// backup is deleted instead, so no backup copy outlives the call either way.
// The set is emptied and Restore never fails.
func (g *Guard) Restore(set *BackupSet) {
	for _, pair := range set.Pairs() {
		backup, original := pair[0], pair[1]
		delete(set.entries, backup)

		err := fsx.Rename(backup, original)
		if err == nil {
			g.log.Infof("Restoring %s to %s", backup, original)
			eventbus.Emit(g.bus, g.log, domain.SidecarRestored, "", map[string]interface{}{
				"backup":   backup,
				"original": original,
			})
			continue
		}
		g.log.Errorf("Unable to restore %s, deleting: %v", backup, err)

		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			g.log.Errorf("Unable to delete backup %s: %v", backup, err)
		}
		eventbus.Emit(g.bus, g.log, domain.SidecarDiscarded, "", map[string]interface{}{
			"backup":   backup,
			"original": original,
		})
	}
}
