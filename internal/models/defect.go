package models

// Defect is the slice of the remote defect payload the engine cares
// about: which images to keep cached for offline viewing. Business
// fields beyond that pass through untouched.
type Defect struct {
	DefectUID  string
	ProjectUID string
	Title      string

	// ImageRemoteIDs lists the content-addressed ids of the defect's
	// photos, in display order.
	ImageRemoteIDs []string
}
