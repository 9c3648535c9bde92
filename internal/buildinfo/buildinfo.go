// Package buildinfo exposes the version data stamped into the binary at
// build time via -ldflags, e.g.:
//
//	go build -ldflags "-X github.com/dmitrijs2005/fieldsync/internal/buildinfo.buildVersion=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// PrintBuildData writes the stamped build data to w, substituting "N/A" for
// values the build did not set.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(buildCommit))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
