// Command backupd is a scheduled backup daemon: it loads a YAML
// configuration, snapshots a set of sources into a streaming
// tar→xz→age-encrypted archive on a cron schedule, and enforces a GFS
// retention policy after each run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/distr1/backupd"
	"github.com/distr1/backupd/internal/config"
	"github.com/distr1/backupd/internal/pipeline"
	"github.com/distr1/backupd/internal/retention"
	"github.com/distr1/backupd/internal/scheduler"
)

var (
	configPath = flag.String("config", "", "path to the backupd YAML configuration file")
	debug      = flag.Bool("debug", false, "format error messages with additional detail")
)

func funcmain() error {
	flag.Parse()

	if *configPath == "" {
		return fmt.Errorf("-config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return xerrors.Errorf("loading config: %w", err)
	}
	pipelineCfg, policy, notifiers, err := cfg.ToModel()
	if err != nil {
		return xerrors.Errorf("converting config: %w", err)
	}

	if err := pipeline.ReapStalePartials(cfg.OutDir, cfg.ArchiveBaseName); err != nil {
		log.Printf("reaping stale partial archives: %v", err)
	}

	ctx, canc := backupd.InterruptibleContext()
	defer canc()

	runFn := func(ctx context.Context) {
		report := pipeline.Run(ctx, pipelineCfg)
		log.Printf("run finished: wrote %d bytes (%d entries), partial=%v failed=%v",
			report.BytesWritten, report.EntriesWritten, report.Partial(), report.Failed())
		for _, n := range notifiers {
			n.Notify(report)
		}
	}
	retentionFn := func(ctx context.Context) {
		deleted, nonFatal, err := retention.Sweep(cfg.OutDir, cfg.ArchiveBaseName, policy, time.Now().UTC())
		if err != nil {
			log.Printf("retention sweep failed: %v", err)
			return
		}
		for _, e := range nonFatal {
			log.Printf("retention: %v", e)
		}
		if len(deleted) > 0 {
			log.Printf("retention: deleted %d archive(s)", len(deleted))
		}
	}

	if err := scheduler.Serve(ctx, cfg.Cron, runFn, retentionFn); err != nil {
		if *debug {
			return fmt.Errorf("serve: %+v", err)
		}
		return fmt.Errorf("serve: %v", err)
	}

	return backupd.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
