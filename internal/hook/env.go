package hook

import "os"

// TestEventType is what Radarr sends when the user presses "Test" on the connection.
const TestEventType = "Test"

// Env is the slice of Radarr's Custom Script environment the hook reads.
type Env struct {
	EventType string
	FilePath  string
	SceneName string
	IMDbID    string
	TMDbID    string
	MovieID   string
}

// EnvFrom reads the Radarr variables through getenv.
func EnvFrom(getenv func(string) string) Env {
	return Env{
		EventType: getenv("radarr_eventtype"),
		FilePath:  getenv("radarr_moviefile_path"),
		SceneName: getenv("radarr_moviefile_scenename"),
		IMDbID:    getenv("radarr_movie_imdbid"),
		TMDbID:    getenv("radarr_movie_tmdbid"),
		MovieID:   getenv("radarr_movie_id"),
	}
}

// EnvFromOS reads the Radarr variables from the process environment.
func EnvFromOS() Env {
	return EnvFrom(os.Getenv)
}

// IsTest reports whether this invocation is Radarr's connection test.
func (e Env) IsTest() bool {
	return e.EventType == TestEventType
}
