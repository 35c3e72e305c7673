// Package mux drives the external ffmpeg process that fuses separately
// downloaded audio and video elementary streams into one container. Codecs
// are copied, never re-encoded; progress is derived from ffmpeg's stderr.
package mux

import (
	"context"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/tubeq/tubeq/internal/progress"
)

// FFmpeg invokes the ffmpeg binary for stream-copy fusion.
type FFmpeg struct {
	path    string
	threads int
	logger  *log.Logger
}

// New builds a muxer. An empty path resolves ffmpeg from $PATH.
func New(path string, logger *log.Logger) *FFmpeg {
	return &FFmpeg{
		path:    path,
		threads: runtime.NumCPU(),
		logger:  logger,
	}
}

// Mux combines videoPath and audioPath into outPath, copying both streams.
// ffmpeg's stderr is parsed for Duration/time markers and fed into sink as a
// 0..1 ratio; stderr without recognizable markers simply yields no progress.
// Cancelling the context kills the process.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string, sink progress.Sink) error {
	parser := newStderrParser(sink)

	inputs := []*ffmpeg.Stream{
		ffmpeg.Input(videoPath),
		ffmpeg.Input(audioPath),
	}
	stream := ffmpeg.Output(inputs, outPath, ffmpeg.KwArgs{
		"c":        "copy",
		"loglevel": "info",
		"threads":  f.threads,
	}).
		GlobalArgs("-hide_banner", "-nostdin", "-stats").
		OverWriteOutput().
		Silent(true)
	if f.path != "" {
		stream = stream.SetFfmpegPath(f.path)
	}

	cmd := stream.Compile()
	cmd.Stderr = parser
	cmd.Stdout = nil

	f.logger.Debug("running ffmpeg", "args", cmd.Args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return ctx.Err()
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg failed: %w\nstderr tail:\n%s", err, parser.Tail())
		}
	}
	return nil
}
