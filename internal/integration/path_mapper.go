package integration

import (
	"fmt"
	"strings"

	"github.com/mescon/arrfinalize/internal/config"
)

// StaticPathMapper translates between the paths Radarr reports and the paths
// visible to this process, for setups where the two mount media differently.
type StaticPathMapper struct {
	mappings []config.PathMapping
}

var _ PathMapper = (*StaticPathMapper)(nil)

// NewPathMapper normalizes trailing slashes on every mapping.
func NewPathMapper(mappings []config.PathMapping) *StaticPathMapper {
	normalized := make([]config.PathMapping, 0, len(mappings))
	for _, m := range mappings {
		// Ensure paths don't have trailing slashes for consistent matching
		normalized = append(normalized, config.PathMapping{
			ArrPath:   strings.TrimRight(m.ArrPath, "/"),
			LocalPath: strings.TrimRight(m.LocalPath, "/"),
		})
	}
	return &StaticPathMapper{mappings: normalized}
}

// ToArrPath converts a local path to the path Radarr knows.
func (pm *StaticPathMapper) ToArrPath(localPath string) (string, error) {
	m := longestPrefix(pm.mappings, localPath, func(m config.PathMapping) string { return m.LocalPath })
	if m == nil {
		return "", fmt.Errorf("no mapping found for local path: %s", localPath)
	}
	return m.ArrPath + strings.TrimPrefix(localPath, m.LocalPath), nil
}

// ToLocalPath converts a Radarr path to the local one.
func (pm *StaticPathMapper) ToLocalPath(arrPath string) (string, error) {
	m := longestPrefix(pm.mappings, arrPath, func(m config.PathMapping) string { return m.ArrPath })
	if m == nil {
		return "", fmt.Errorf("no mapping found for arr path: %s", arrPath)
	}
	return m.LocalPath + strings.TrimPrefix(arrPath, m.ArrPath), nil
}

// Resolve maps a Radarr path to local when a mapping applies and returns it unchanged otherwise.
func (pm *StaticPathMapper) Resolve(arrPath string) string {
	if local, err := pm.ToLocalPath(arrPath); err == nil {
		return local
	}
	return arrPath
}

// longestPrefix finds the most specific mapping whose prefix matches path on a
// directory boundary, so /data/movies does not match /data/movies-archive.
func longestPrefix(mappings []config.PathMapping, path string, prefixOf func(config.PathMapping) string) *config.PathMapping {
	var best *config.PathMapping
	bestLen := -1
	for i := range mappings {
		prefix := prefixOf(mappings[i])
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		remainder := path[len(prefix):]
		if remainder != "" && !strings.HasPrefix(remainder, "/") {
			continue
		}
		if len(prefix) > bestLen {
			bestLen = len(prefix)
			best = &mappings[i]
		}
	}
	return best
}
