package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory
//	-a string   base URL of the inspection backend
//	-t string   API bearer token
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-a", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the inspection backend")
	fs.StringVar(&cfg.APIToken, "t", cfg.APIToken, "API bearer token")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
