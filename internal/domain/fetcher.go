package domain

import "context"

// Fetcher is the external fetch library. Fetch blocks until the file is written or the fetch
// fails. Progress and log lines go to sink in order; sink is never called concurrently.
type Fetcher interface {
	Fetch(ctx context.Context, cfg JobConfig, sink ProgressSink) (savedPath string, err error)
}

// ToolLocator finds the transcoder. Absence is a normal outcome, not an error.
type ToolLocator interface {
	Locate() ToolLocation
}
