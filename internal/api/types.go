package api

import "encoding/json"

// ProjectSummary is one row of the remote project listing.
type ProjectSummary struct {
	ProjectUID  string `json:"projectUid"`
	Name        string `json:"name"`
	ContentHash string `json:"contentHash"`
	DefectCount int    `json:"defectCount"`
	EventCount  int    `json:"eventCount"`
}

// ProjectDetail is the full project payload fetched when the content hash
// moved. The asset tree is kept raw: its shape varies between backend
// versions and is parsed by the assets package.
type ProjectDetail struct {
	Project   ProjectSummary  `json:"project"`
	AssetTree json.RawMessage `json:"assetTree"`
	Defects   []DefectPayload `json:"defects"`
}

// DefectPayload is the defect slice the engine consumes: identity plus the
// image ids to keep cached.
type DefectPayload struct {
	DefectUID      string   `json:"defectUid"`
	Title          string   `json:"title"`
	ImageRemoteIDs []string `json:"imageRemoteIds"`
}

// ResolvedURL maps a remote id to a short-lived download location.
type ResolvedURL struct {
	RemoteID string `json:"remoteId"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// PackageDescriptor announces one upload package when creating a task.
type PackageDescriptor struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	SizeBytes int64  `json:"sizeBytes"`
}

// UploadTicket is a single-use storage grant for the package with the
// matching digest. Policy, signature and access id are opaque and must be
// forwarded to the storage host verbatim.
type UploadTicket struct {
	Digest    string `json:"digest"`
	ObjectID  string `json:"objectId"`
	Host      string `json:"host"`
	Directory string `json:"directory"`
	Policy    string `json:"policy"`
	Signature string `json:"signature"`
	AccessID  string `json:"accessId"`
}
