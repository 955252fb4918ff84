package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/arrfinalize/internal/config"
)

func TestPathMapper_ToLocalPath(t *testing.T) {
	pm := NewPathMapper([]config.PathMapping{
		{ArrPath: "/movies/", LocalPath: "/mnt/media/movies/"},
		{ArrPath: "/movies/4k", LocalPath: "/mnt/uhd"},
	})

	tests := []struct {
		name    string
		arrPath string
		want    string
		wantErr bool
	}{
		{"simple", "/movies/Heat (1995)/Heat.mkv", "/mnt/media/movies/Heat (1995)/Heat.mkv", false},
		{"longest prefix wins", "/movies/4k/Heat/Heat.mkv", "/mnt/uhd/Heat/Heat.mkv", false},
		{"exact root", "/movies", "/mnt/media/movies", false},
		{"no directory boundary", "/movies-archive/Heat.mkv", "", true},
		{"unmapped", "/tv/show.mkv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pm.ToLocalPath(tt.arrPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathMapper_ToArrPath(t *testing.T) {
	pm := NewPathMapper([]config.PathMapping{
		{ArrPath: "/movies", LocalPath: "/mnt/media/movies"},
	})

	got, err := pm.ToArrPath("/mnt/media/movies/Heat/Heat.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/movies/Heat/Heat.mkv", got)

	_, err = pm.ToArrPath("/srv/other.mkv")
	assert.Error(t, err)
}

func TestPathMapper_Resolve(t *testing.T) {
	pm := NewPathMapper([]config.PathMapping{
		{ArrPath: "/movies", LocalPath: "/mnt/media/movies"},
	})

	assert.Equal(t, "/mnt/media/movies/Heat.mkv", pm.Resolve("/movies/Heat.mkv"))
	assert.Equal(t, "/data/Heat.mkv", pm.Resolve("/data/Heat.mkv"))

	empty := NewPathMapper(nil)
	assert.Equal(t, "/movies/Heat.mkv", empty.Resolve("/movies/Heat.mkv"))
}
