package models

// Event is a locally recorded inspection event awaiting upload. The audio
// file name is kept in metadata because historical clients wrote an
// unresolved extension placeholder that has to be normalized before
// packaging.
type Event struct {
	// EventUID identifies the event and names its directory on disk.
	EventUID string

	// ProjectUID is the project the event was recorded for.
	ProjectUID string

	// Title is the inspector-entered summary.
	Title string

	// AudioName is the recorded audio file name inside the event
	// directory, empty when no audio was captured.
	AudioName string

	// Synced is set once the event reached remote storage and the server
	// confirmed ingestion.
	Synced bool

	// CreatedAt is the recording time in unix seconds.
	CreatedAt int64
}
