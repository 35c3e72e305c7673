// Package fetch executes a single download stream: one transfer for muxed
// variants, or two parallel transfers plus an ffmpeg fusion for split pairs.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tubeq/tubeq/internal/media"
	"github.com/tubeq/tubeq/internal/progress"
	"github.com/tubeq/tubeq/internal/queue"
	"github.com/tubeq/tubeq/internal/tags"
)

// Transfer thresholds observed per call site: per-leg and single transfers
// log every 2% of progress, fusion every 5%.
const (
	transferThreshold = 0.02
	fuseThreshold     = 0.05
)

// Transferrer streams one descriptor's payload to a local file.
type Transferrer interface {
	Transfer(ctx context.Context, desc media.StreamDescriptor, dst string, sink progress.Sink) error
}

// Muxer combines separately downloaded video and audio elementary streams
// into one container without re-encoding.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string, sink progress.Sink) error
}

// Orchestrator implements queue.Executor on top of a transfer primitive and
// an external multiplexer. It performs I/O only; lifecycle transitions stay
// with the queue.
type Orchestrator struct {
	transfer Transferrer
	muxer    Muxer
	logger   *log.Logger
	tracker  *progress.Tracker // optional, for the status view
}

// New builds an orchestrator. tracker may be nil.
func New(transfer Transferrer, muxer Muxer, logger *log.Logger, tracker *progress.Tracker) *Orchestrator {
	return &Orchestrator{
		transfer: transfer,
		muxer:    muxer,
		logger:   logger,
		tracker:  tracker,
	}
}

var _ queue.Executor = (*Orchestrator)(nil)

// Execute fetches the stream and publishes its final file. Any failure is
// returned to the caller (the queue drain), which owns the Error transition.
func (o *Orchestrator) Execute(ctx context.Context, item *queue.Item, stream *queue.Stream) error {
	defer o.tracker.Clear()
	if stream.Fused() {
		return o.executePair(ctx, item, stream)
	}
	return o.executeSingle(ctx, item, stream)
}

func (o *Orchestrator) executeSingle(ctx context.Context, item *queue.Item, stream *queue.Stream) error {
	desc := *stream.Single()
	sink := o.transferSink(desc.Kind.String(), item.Video().Title, desc.SizeBytes)

	if err := o.transfer.Transfer(ctx, desc, stream.TempPath(), sink); err != nil {
		return fmt.Errorf("transferring %s: %w", desc.Summary(), err)
	}

	if err := publish(stream.TempPath(), stream.FinalPath()); err != nil {
		return fmt.Errorf("publishing %s: %w", stream.FinalPath(), err)
	}
	o.logger.Debug("published", "from", stream.TempPath(), "to", stream.FinalPath())

	o.applyTags(item, desc, stream.FinalPath())
	return nil
}

func (o *Orchestrator) executePair(ctx context.Context, item *queue.Item, stream *queue.Stream) error {
	audio := *stream.Audio()
	video := *stream.Video()
	// Both leg files take the video container's extension; ffmpeg probes the
	// real codec anyway and the startup purge removes them later.
	audioPath := addPathSuffix(stream.TempPath(), "audio")
	videoPath := addPathSuffix(stream.TempPath(), "video")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sink := o.transferSink("audio", item.Video().Title, audio.SizeBytes)
		if err := o.transfer.Transfer(gctx, audio, audioPath, sink); err != nil {
			return fmt.Errorf("transferring audio leg: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sink := o.transferSink("video", item.Video().Title, video.SizeBytes)
		if err := o.transfer.Transfer(gctx, video, videoPath, sink); err != nil {
			return fmt.Errorf("transferring video leg: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	o.logger.Debug("fusing", "video", videoPath, "audio", audioPath, "out", stream.FinalPath())
	throttled := progress.NewThrottler(fuseThreshold, func(fraction float64) {
		o.tracker.Set("fusing "+item.Video().Title, fraction)
		o.logger.Debug("fusing", "progress", fmt.Sprintf("%.0f%%", fraction*100), "title", item.Video().Title)
	})
	if err := o.muxer.Mux(ctx, videoPath, audioPath, stream.FinalPath(), throttled.Sink()); err != nil {
		return fmt.Errorf("fusing streams: %w", err)
	}
	return nil
}

// transferSink builds the throttled progress sink for one transfer, logging
// the fraction and an estimated byte rate.
func (o *Orchestrator) transferSink(label, title string, size int64) progress.Sink {
	meter := progress.NewMeter(size)
	throttled := progress.NewThrottler(transferThreshold, func(fraction float64) {
		o.tracker.Set(label+" "+title, fraction)
		_, rate := meter.Observe(fraction)
		o.logger.Debug(label,
			"progress", fmt.Sprintf("%.0f%%", fraction*100),
			"rate_mb_s", fmt.Sprintf("%.3f", rate/1024/1024),
			"title", title)
	})
	return throttled.Sink()
}

// applyTags embeds ID3 metadata into audio-only results where the container
// supports it. Best effort: a tagging failure never fails the download.
func (o *Orchestrator) applyTags(item *queue.Item, desc media.StreamDescriptor, path string) {
	if desc.Kind != media.KindAudioOnly {
		return
	}
	video := item.Video()
	if err := tags.Apply(path, video.Title, video.Author); err != nil {
		o.logger.Warn("metadata tag embedding failed", "path", path, "err", err)
	}
}

// publish moves the finished temp file to its final location. The temp dir
// lives under the video dir by default, so the rename stays on one
// filesystem and a half-written file is never visible at the final path.
func publish(tempPath, finalPath string) error {
	return os.Rename(tempPath, finalPath)
}

// addPathSuffix inserts _suffix before the file extension.
func addPathSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "_" + suffix + ext
}
