package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tubeq/tubeq/internal/config"
	"github.com/tubeq/tubeq/internal/fetch"
	"github.com/tubeq/tubeq/internal/mux"
	"github.com/tubeq/tubeq/internal/progress"
	"github.com/tubeq/tubeq/internal/queue"
	"github.com/tubeq/tubeq/internal/tui"
	"github.com/tubeq/tubeq/internal/youtube"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config file")
		videoDir = flag.String("dir", "", "directory for finished downloads (overrides config)")
		ffmpeg   = flag.String("ffmpeg", "", "path to the ffmpeg binary (overrides config)")
		interval = flag.Duration("interval", 0, "queue drain interval (overrides config)")
		logLevel = flag.String("log-level", "info", "log level: debug, info, warn, error")
		withTUI  = flag.Bool("tui", false, "show a live queue status view")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	if level, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	}

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <url> [url...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	if *videoDir != "" {
		cfg.SetVideoDir(*videoDir)
	}
	if *ffmpeg != "" {
		cfg.FFmpegPath = *ffmpeg
	}
	if *interval > 0 {
		cfg.DrainInterval = *interval
	}
	if err := cfg.Prepare(logger); err != nil {
		logger.Fatal("preparing directories", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tracker := &progress.Tracker{}
	catalog := youtube.New(cfg.RequestTimeout, logger)
	muxer := mux.New(cfg.FFmpegPath, logger)
	orch := fetch.New(catalog, muxer, logger, tracker)
	mgr := queue.NewManager(catalog, orch, cfg, logger)

	type pending struct {
		url  string
		done <-chan queue.Result
	}
	var waits []pending
	for _, url := range urls {
		item, err := mgr.Enqueue(ctx, url)
		if err != nil {
			logger.Error("enqueue failed", "url", url, "err", err)
			continue
		}
		// The selector puts the best candidate first: a fused pair when one
		// beats every pre-muxed variant, otherwise the first manifest entry.
		best := item.Streams()[0]
		done, err := mgr.MarkForDownload(item.ID(), best.ID())
		if err != nil {
			logger.Error("marking stream failed", "url", url, "err", err)
			continue
		}
		logger.Info("queued", "url", url, "stream", best.Title())
		waits = append(waits, pending{url: url, done: done})
	}
	if len(waits) == 0 {
		os.Exit(1)
	}

	sched := queue.NewScheduler(mgr, cfg.DrainInterval, logger)
	sched.Start(ctx)
	defer sched.Stop()

	results := make(chan error, len(waits))
	go func() {
		for _, w := range waits {
			select {
			case res := <-w.done:
				if res.Err != nil {
					logger.Error("failed", "url", w.url, "err", res.Err)
					results <- res.Err
				} else {
					logger.Info("saved", "url", w.url, "path", res.Path)
					results <- nil
				}
			case <-ctx.Done():
				results <- ctx.Err()
			}
		}
	}()

	if *withTUI {
		allDone := func() bool {
			for _, item := range mgr.Items() {
				for _, s := range item.Streams() {
					if st := s.State(); st == queue.StateWait || st == queue.StateInProcess {
						return false
					}
				}
			}
			return true
		}
		if err := tui.Run(mgr, tracker, allDone); err != nil {
			logger.Error("status view failed", "err", err)
		}
	}

	failures := 0
	for range waits {
		if err := <-results; err != nil {
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}
