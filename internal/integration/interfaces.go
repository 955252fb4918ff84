package integration

import "context"

// CommandFetcher re-reads a command's state by id.
type CommandFetcher interface {
	GetCommand(ctx context.Context, id int64) (*CommandHandle, error)
}

// ArrClient defines the slice of the Radarr API the hook needs.
type ArrClient interface {
	CommandFetcher

	// Commands
	DispatchCommand(ctx context.Context, name string, params map[string]interface{}) (*CommandHandle, error)

	// Movies
	GetMovie(ctx context.Context, movieID int64) (MovieRecord, error)
	PutMovie(ctx context.Context, movieID int64, rec MovieRecord) (MovieRecord, error)
}

// PathMapper defines the interface for translating paths
type PathMapper interface {
	ToArrPath(localPath string) (string, error)
	ToLocalPath(arrPath string) (string, error)
}
