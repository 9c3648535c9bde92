package models

// NodeKind classifies an asset tree node.
type NodeKind string

const (
	NodeKindFolder NodeKind = "folder"
	NodeKindFile   NodeKind = "file"
)

// DownloadStatus is the lifecycle state of a file node's cached payload.
// Folders never leave DownloadPending.
type DownloadStatus string

const (
	DownloadPending    DownloadStatus = "pending"
	DownloadInProgress DownloadStatus = "downloading"
	DownloadCompleted  DownloadStatus = "completed"
	DownloadFailed     DownloadStatus = "failed"
)

// AssetNode is one node of the content-addressed asset cache. File nodes
// are deduplicated across projects on RemoteID; ownership lives in a
// separate join set, so the struct itself carries no project reference.
type AssetNode struct {
	// NodeID is the stable local identifier (explicit remote id when the
	// payload provides one, otherwise derived deterministically).
	NodeID string

	// ParentID links to the containing folder node, nil at the root.
	ParentID *string

	// Name is the display name within the tree.
	Name string

	// Kind separates folder placeholders from downloadable files.
	Kind NodeKind

	// RemoteID is the content-addressed identifier used to resolve a
	// download URL. Nil for folder placeholders, which are never fetched.
	RemoteID *string

	// SizeBytes is the remote-reported payload size, when known.
	SizeBytes *int64

	// DownloadStatus tracks the cache state machine for file nodes.
	DownloadStatus DownloadStatus

	// LocalPath is the cached file location. Non-nil only once a download
	// completed; a non-nil path whose file has vanished is treated as
	// failed and re-downloaded.
	LocalPath *string
}

// IsFile reports whether the node carries a downloadable payload.
func (n *AssetNode) IsFile() bool {
	return n.Kind == NodeKindFile && n.RemoteID != nil
}
