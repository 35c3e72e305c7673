package fetch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/tubeq/tubeq/internal/config"
	"github.com/tubeq/tubeq/internal/media"
	"github.com/tubeq/tubeq/internal/progress"
	"github.com/tubeq/tubeq/internal/queue"
)

// fakeTransferrer writes a small payload to dst and drives the sink through
// a full transfer, optionally failing for one stream kind.
type fakeTransferrer struct {
	mu       sync.Mutex
	dsts     []string
	failKind media.StreamKind
	fail     bool
	err      error
}

func (f *fakeTransferrer) Transfer(ctx context.Context, desc media.StreamDescriptor, dst string, sink progress.Sink) error {
	if f.fail && desc.Kind == f.failKind {
		if f.err != nil {
			return f.err
		}
		return errors.New("transfer refused")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte("payload"), 0o644); err != nil {
		return err
	}
	if sink != nil {
		sink(0.5)
		sink(1.0)
	}
	f.mu.Lock()
	f.dsts = append(f.dsts, dst)
	f.mu.Unlock()
	return nil
}

// fakeMuxer records its inputs and writes the output file.
type fakeMuxer struct {
	mu         sync.Mutex
	calls      int
	videoPath  string
	audioPath  string
	outPath    string
	err        error
	reportedAt []float64
}

func (f *fakeMuxer) Mux(ctx context.Context, videoPath, audioPath, outPath string, sink progress.Sink) error {
	f.mu.Lock()
	f.calls++
	f.videoPath, f.audioPath, f.outPath = videoPath, audioPath, outPath
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if sink != nil {
		sink(0.5)
		sink(1.0)
	}
	return os.WriteFile(outPath, []byte("fused"), 0o644)
}

// noopExecutor satisfies queue.Executor for manager construction; the tests
// call the orchestrator directly.
type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, item *queue.Item, stream *queue.Stream) error {
	return nil
}

type itemCatalog struct {
	video    media.Video
	manifest media.Manifest
}

func (c itemCatalog) Video(ctx context.Context, url string) (media.Video, error) {
	return c.video, nil
}

func (c itemCatalog) Manifest(ctx context.Context, url string) (media.Manifest, error) {
	return c.manifest, nil
}

// buildItem enqueues one item through a manager so its streams carry real
// temp and final paths under dir.
func buildItem(t *testing.T, dir string, manifest media.Manifest) *queue.Item {
	t.Helper()
	cfg := config.Default()
	cfg.SetVideoDir(dir)
	logger := log.New(io.Discard)
	if err := cfg.Prepare(logger); err != nil {
		t.Fatalf("preparing directories: %v", err)
	}

	catalog := itemCatalog{
		video:    media.Video{ID: "vid1", Title: "Demo", Author: "Author"},
		manifest: manifest,
	}
	mgr := queue.NewManager(catalog, noopExecutor{}, cfg, logger)
	item, err := mgr.Enqueue(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return item
}

func TestExecuteSinglePublishesFile(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindMuxed, Container: "mp4", Height: 720, SizeBytes: 7},
	}})
	stream := item.Streams()[0]

	transfer := &fakeTransferrer{}
	muxer := &fakeMuxer{}
	orch := New(transfer, muxer, log.New(io.Discard), nil)

	if err := orch.Execute(context.Background(), item, stream); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(stream.FinalPath()); err != nil {
		t.Errorf("final file missing: %v", err)
	}
	if _, err := os.Stat(stream.TempPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file still present after publish: %v", err)
	}
	if muxer.calls != 0 {
		t.Error("single transfer must not invoke the muxer")
	}
}

func TestExecuteSingleTransferFailure(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindMuxed, Container: "mp4", Height: 720},
	}})
	stream := item.Streams()[0]

	transfer := &fakeTransferrer{fail: true, failKind: media.KindMuxed}
	orch := New(transfer, &fakeMuxer{}, log.New(io.Discard), nil)

	err := orch.Execute(context.Background(), item, stream)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, statErr := os.Stat(stream.FinalPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("failed transfer must not publish a final file")
	}
}

func TestExecuteSinglePublishFailure(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindMuxed, Container: "mp4", Height: 720},
	}})
	stream := item.Streams()[0]

	// A directory squatting on the final path makes the rename fail.
	if err := os.Mkdir(stream.FinalPath(), 0o755); err != nil {
		t.Fatalf("occupying final path: %v", err)
	}

	transfer := &fakeTransferrer{}
	orch := New(transfer, &fakeMuxer{}, log.New(io.Discard), nil)

	err := orch.Execute(context.Background(), item, stream)
	if err == nil {
		t.Fatal("expected a publish error")
	}
	if !strings.Contains(err.Error(), "publishing") {
		t.Errorf("error = %v, want a publish failure", err)
	}
}

func TestExecutePairFusesLegs(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindVideoOnly, Container: "webm", Height: 1080, SizeBytes: 30},
		{Kind: media.KindAudioOnly, Container: "webm", SizeBytes: 10},
	}})
	stream := item.Streams()[0]
	if !stream.Fused() {
		t.Fatal("expected the fused pair to lead the stream list")
	}

	transfer := &fakeTransferrer{}
	muxer := &fakeMuxer{}
	tracker := &progress.Tracker{}
	orch := New(transfer, muxer, log.New(io.Discard), tracker)

	if err := orch.Execute(context.Background(), item, stream); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if muxer.calls != 1 {
		t.Fatalf("muxer invoked %d times, want 1", muxer.calls)
	}
	if !strings.HasSuffix(muxer.videoPath, "_video.webm") {
		t.Errorf("video leg path = %q, want a _video suffix", muxer.videoPath)
	}
	if !strings.HasSuffix(muxer.audioPath, "_audio.webm") {
		t.Errorf("audio leg path = %q, want an _audio suffix", muxer.audioPath)
	}
	if muxer.outPath != stream.FinalPath() {
		t.Errorf("mux output = %q, want %q", muxer.outPath, stream.FinalPath())
	}
	if len(transfer.dsts) != 2 {
		t.Errorf("transferred %d legs, want 2", len(transfer.dsts))
	}
	if _, err := os.Stat(stream.FinalPath()); err != nil {
		t.Errorf("fused file missing: %v", err)
	}
	if _, _, active := tracker.Current(); active {
		t.Error("tracker should be cleared after execution")
	}
}

func TestExecutePairLegFailureSkipsMux(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindVideoOnly, Container: "webm", Height: 1080},
		{Kind: media.KindAudioOnly, Container: "webm", SizeBytes: 10},
	}})
	stream := item.Streams()[0]

	legErr := errors.New("audio source gone")
	transfer := &fakeTransferrer{fail: true, failKind: media.KindAudioOnly, err: legErr}
	muxer := &fakeMuxer{}
	orch := New(transfer, muxer, log.New(io.Discard), nil)

	err := orch.Execute(context.Background(), item, stream)
	if !errors.Is(err, legErr) {
		t.Fatalf("got %v, want the leg failure", err)
	}
	if muxer.calls != 0 {
		t.Error("mux must not run when a leg failed")
	}
}

func TestExecutePairMuxFailure(t *testing.T) {
	dir := t.TempDir()
	item := buildItem(t, dir, media.Manifest{Streams: []media.StreamDescriptor{
		{Kind: media.KindVideoOnly, Container: "webm", Height: 1080},
		{Kind: media.KindAudioOnly, Container: "webm", SizeBytes: 10},
	}})
	stream := item.Streams()[0]

	muxErr := errors.New("codec mismatch")
	orch := New(&fakeTransferrer{}, &fakeMuxer{err: muxErr}, log.New(io.Discard), nil)

	if err := orch.Execute(context.Background(), item, stream); !errors.Is(err, muxErr) {
		t.Fatalf("got %v, want the mux failure", err)
	}
}

func TestAddPathSuffix(t *testing.T) {
	cases := []struct {
		path, suffix, want string
	}{
		{"/tmp/a/vid__0.webm", "audio", "/tmp/a/vid__0_audio.webm"},
		{"/tmp/a/vid__0.webm", "video", "/tmp/a/vid__0_video.webm"},
		{"/tmp/a/noext", "audio", "/tmp/a/noext_audio"},
	}
	for _, tc := range cases {
		if got := addPathSuffix(tc.path, tc.suffix); got != tc.want {
			t.Errorf("addPathSuffix(%q, %q) = %q, want %q", tc.path, tc.suffix, got, tc.want)
		}
	}
}
