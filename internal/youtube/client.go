// Package youtube adapts the upstream catalog client to the queue's Catalog
// boundary and provides the transfer primitive used by the orchestrator.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	yt "github.com/kkdai/youtube/v2"

	"github.com/tubeq/tubeq/internal/media"
	"github.com/tubeq/tubeq/internal/progress"
)

// Client wraps the catalog API client. Videos fetched during enqueue are
// cached by ID so later transfers can re-resolve their format descriptors
// without a second metadata round-trip.
type Client struct {
	client *yt.Client
	logger *log.Logger

	mu     sync.Mutex
	videos map[string]*yt.Video
}

// New builds a catalog adapter. The timeout applies to individual catalog
// HTTP requests, not to whole transfers.
func New(timeout time.Duration, logger *log.Logger) *Client {
	yt.DefaultClient = yt.AndroidClient
	return &Client{
		client: &yt.Client{
			HTTPClient: &http.Client{Timeout: timeout},
		},
		logger: logger,
		videos: make(map[string]*yt.Video),
	}
}

// Video fetches the metadata snapshot for a URL.
func (c *Client) Video(ctx context.Context, url string) (media.Video, error) {
	v, err := c.resolve(ctx, url)
	if err != nil {
		return media.Video{}, err
	}
	return media.Video{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Author:      v.Author,
		Duration:    v.Duration,
		PublishDate: v.PublishDate,
	}, nil
}

// Manifest fetches the available encoded variants for a URL.
func (c *Client) Manifest(ctx context.Context, url string) (media.Manifest, error) {
	v, err := c.resolve(ctx, url)
	if err != nil {
		return media.Manifest{}, err
	}

	streams := make([]media.StreamDescriptor, 0, len(v.Formats))
	for i := range v.Formats {
		d, ok := descriptorFor(v.ID, &v.Formats[i])
		if !ok {
			continue
		}
		streams = append(streams, d)
	}
	return media.Manifest{Streams: streams}, nil
}

// Transfer streams the descriptor's payload to dst, reporting fractional
// progress into sink. It carries no deadline of its own; cancel the context
// to abort.
func (c *Client) Transfer(ctx context.Context, desc media.StreamDescriptor, dst string, sink progress.Sink) error {
	video, format, err := c.lookup(desc)
	if err != nil {
		return err
	}

	stream, size, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("opening destination file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	if sink != nil && size > 0 {
		writer = io.MultiWriter(file, &fractionWriter{size: size, sink: sink})
	}

	written, err := copyWithContext(ctx, writer, stream)
	if err != nil {
		return fmt.Errorf("download failed after %d bytes: %w", written, err)
	}
	c.logger.Debug("transfer complete", "itag", desc.Itag, "bytes", written, "dst", dst)
	return nil
}

func (c *Client) resolve(ctx context.Context, url string) (*yt.Video, error) {
	v, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	c.mu.Lock()
	c.videos[v.ID] = v
	c.mu.Unlock()
	return v, nil
}

func (c *Client) lookup(desc media.StreamDescriptor) (*yt.Video, *yt.Format, error) {
	c.mu.Lock()
	video := c.videos[desc.SourceID]
	c.mu.Unlock()
	if video == nil {
		return nil, nil, fmt.Errorf("video %s was never resolved through this client", desc.SourceID)
	}
	for i := range video.Formats {
		if video.Formats[i].ItagNo == desc.Itag {
			return video, &video.Formats[i], nil
		}
	}
	return nil, nil, fmt.Errorf("itag %d not present in manifest for video %s", desc.Itag, desc.SourceID)
}

// descriptorFor maps a catalog format onto the tagged descriptor union.
// Formats that carry neither audio nor video dimensions are skipped.
func descriptorFor(videoID string, f *yt.Format) (media.StreamDescriptor, bool) {
	hasAudio := f.AudioChannels > 0
	hasVideo := f.Width > 0 || f.Height > 0

	var kind media.StreamKind
	switch {
	case hasAudio && hasVideo:
		kind = media.KindMuxed
	case hasVideo:
		kind = media.KindVideoOnly
	case hasAudio:
		kind = media.KindAudioOnly
	default:
		return media.StreamDescriptor{}, false
	}

	return media.StreamDescriptor{
		Kind:      kind,
		SourceID:  videoID,
		Itag:      f.ItagNo,
		Container: mimeToExt(f.MimeType),
		MimeType:  f.MimeType,
		Height:    f.Height,
		Bitrate:   bitrateFor(f),
		SizeBytes: int64(f.ContentLength),
	}, true
}

func bitrateFor(f *yt.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		switch parts[1] {
		case "3gpp":
			return "3gp"
		default:
			return parts[1]
		}
	}
	return "bin"
}

// fractionWriter converts a byte stream into fractional progress reports.
type fractionWriter struct {
	size    int64
	written int64
	sink    progress.Sink
}

func (w *fractionWriter) Write(b []byte) (int, error) {
	w.written += int64(len(b))
	w.sink(float64(w.written) / float64(w.size))
	return len(b), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
		return r.r.Read(p)
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, &contextReader{ctx: ctx, r: src})
}
