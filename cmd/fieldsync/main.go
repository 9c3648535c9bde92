package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/buildinfo"
	"github.com/dmitrijs2005/fieldsync/internal/config"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
	"github.com/dmitrijs2005/fieldsync/internal/service"
)

const usage = `usage: fieldsync <command> [flags]

commands:
  sync [project-uid]               synchronize all projects, or one
  upload -project uid event...     upload recorded events to a project
  retry project-uid                retry the project's failed asset downloads
  events [-project uid]            list events awaiting upload
  status                           show local project records

common flags (accepted by every command):
  -d dir     data directory
  -a url     backend base URL
  -t token   API bearer token
  -c file    JSON config file
`

func main() {
	buildinfo.PrintBuildData(os.Stdout)
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := service.NewEngine(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
		return 1
	}
	defer eng.Close()

	switch os.Args[1] {
	case "sync":
		return cmdSync(ctx, eng, os.Args[2:])
	case "upload":
		return cmdUpload(ctx, eng, os.Args[2:])
	case "retry":
		return cmdRetry(ctx, eng, os.Args[2:])
	case "events":
		return cmdEvents(ctx, eng, os.Args[2:])
	case "status":
		return cmdStatus(ctx, eng)
	default:
		fmt.Fprintf(os.Stderr, "fieldsync: unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// registerConfigFlags makes subcommand flag sets accept the common config
// flags. Their values were already consumed by config.LoadConfig; here they
// only need to parse cleanly.
func registerConfigFlags(fs *flag.FlagSet) {
	var sink string
	fs.StringVar(&sink, "d", "", "data directory")
	fs.StringVar(&sink, "a", "", "backend base URL")
	fs.StringVar(&sink, "t", "", "API bearer token")
	fs.StringVar(&sink, "c", "", "JSON config file")
	fs.StringVar(&sink, "config", "", "JSON config file")
}

func cmdSync(ctx context.Context, eng service.Engine, args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	registerConfigFlags(fs)
	_ = fs.Parse(args)

	stopWatch := watchProgress(eng.Progress())
	var ok bool
	var msg string
	if uid := fs.Arg(0); uid != "" {
		ok, msg = eng.SyncProject(ctx, uid)
	} else {
		ok, msg = eng.SyncAllProjects(ctx)
	}
	stopWatch()

	fmt.Println(msg)
	if !ok {
		return 1
	}
	return 0
}

func cmdUpload(ctx context.Context, eng service.Engine, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	project := fs.String("project", "", "target project uid")
	registerConfigFlags(fs)
	_ = fs.Parse(args)

	events := fs.Args()
	if *project == "" || len(events) == 0 {
		fmt.Fprintln(os.Stderr, "usage: fieldsync upload -project uid event...")
		return 2
	}

	stopWatch := watchProgress(eng.Progress())
	var ok bool
	var msg string
	if len(events) == 1 {
		ok, msg = eng.UploadEvent(ctx, events[0], *project)
	} else {
		ok, msg = eng.UploadEvents(ctx, events, *project)
	}
	stopWatch()

	fmt.Println(msg)
	if !ok {
		return 1
	}
	return 0
}

func cmdRetry(ctx context.Context, eng service.Engine, args []string) int {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	registerConfigFlags(fs)
	_ = fs.Parse(args)

	uid := fs.Arg(0)
	if uid == "" {
		fmt.Fprintln(os.Stderr, "usage: fieldsync retry project-uid")
		return 2
	}

	stopWatch := watchProgress(eng.Progress())
	ok, msg := eng.RetryFailedAssets(ctx, uid)
	stopWatch()

	fmt.Println(msg)
	if !ok {
		return 1
	}
	return 0
}

func cmdEvents(ctx context.Context, eng service.Engine, args []string) int {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	project := fs.String("project", "", "only list events of this project")
	registerConfigFlags(fs)
	_ = fs.Parse(args)

	var uids []string
	if *project != "" {
		uids = []string{*project}
	} else {
		projects, err := eng.Projects(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
			return 1
		}
		for _, p := range projects {
			uids = append(uids, p.ProjectUID)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tPROJECT\tCREATED\tTITLE")
	total := 0
	for _, uid := range uids {
		events, err := eng.UnsyncedEvents(ctx, uid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
			return 1
		}
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.EventUID, e.ProjectUID, unixTime(e.CreatedAt), e.Title)
			total++
		}
	}
	w.Flush()
	fmt.Printf("%d event(s) awaiting upload\n", total)
	return 0
}

func cmdStatus(ctx context.Context, eng service.Engine) int {
	projects, err := eng.Projects(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tNAME\tDEFECTS\tEVENTS\tLOCAL\tPENDING\tLAST SYNC")
	for _, p := range projects {
		local, err := eng.LocalEventCount(ctx, p.ProjectUID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
			return 1
		}
		pending, err := eng.UnsyncedEvents(ctx, p.ProjectUID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
			return 1
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			p.ProjectUID, p.Name, p.DefectCount, p.EventCount, local, len(pending), unixTime(p.SyncedAt))
	}
	w.Flush()
	return 0
}

func unixTime(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format("2006-01-02 15:04")
}

// watchProgress prints the live state of the running operation on one
// rewritten terminal line. The returned stop func unsubscribes and clears
// the line.
func watchProgress(tracker *progress.Tracker) func() {
	snaps, cancel := tracker.Watch()
	done := make(chan struct{})

	go func() {
		defer close(done)
		last := ""
		for s := range snaps {
			if !s.Running {
				continue
			}
			line := fmt.Sprintf("%s %d/%d", s.Phase, s.Completed, s.Total)
			if s.Label != "" {
				line += " " + s.Label
			}
			if line == last {
				continue
			}
			last = line
			fmt.Printf("\r\033[K%s", line)
		}
	}()

	return func() {
		cancel()
		<-done
		fmt.Print("\r\033[K")
	}
}
