package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tubeq/tubeq/internal/config"
	"github.com/tubeq/tubeq/internal/media"
)

// Catalog resolves a URL into video metadata and a stream manifest. The
// upstream provider sits behind this boundary; the queue never talks to the
// network itself.
type Catalog interface {
	Video(ctx context.Context, url string) (media.Video, error)
	Manifest(ctx context.Context, url string) (media.Manifest, error)
}

// Executor performs the fetch (and fusion, for pairs) of a single stream.
// It surfaces failures by returning an error; state transitions stay with
// the Manager.
type Executor interface {
	Execute(ctx context.Context, item *Item, stream *Stream) error
}

// Manager owns the set of download items and advances at most one waiting
// stream per Drain call. Enqueue and state polling may race with the drain
// goroutine, so the collection is mutex-guarded.
type Manager struct {
	catalog Catalog
	exec    Executor
	cfg     *config.Config
	logger  *log.Logger

	mu    sync.Mutex
	items []*Item

	drainMu sync.Mutex
}

// NewManager wires the queue with its catalog, executor and configuration.
func NewManager(catalog Catalog, exec Executor, cfg *config.Config, logger *log.Logger) *Manager {
	return &Manager{
		catalog: catalog,
		exec:    exec,
		cfg:     cfg,
		logger:  logger,
	}
}

// Enqueue resolves the URL through the catalog and creates a download item
// with its candidate streams. Re-enqueueing a known URL returns the
// existing item, identity included.
func (m *Manager) Enqueue(ctx context.Context, url string) (*Item, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	if item := m.findByURL(url); item != nil {
		m.logger.Debug("already queued", "id", item.ID(), "url", url)
		return item, nil
	}

	m.logger.Debug("resolving", "url", url)
	video, err := m.catalog.Video(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching video metadata: %w", err)
	}
	manifest, err := m.catalog.Manifest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching stream manifest: %w", err)
	}

	streams, err := m.buildStreams(video, manifest)
	if err != nil {
		return nil, err
	}
	item, err := NewItem(url, video, streams)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The catalog round-trip dropped the lock; someone may have raced us.
	for _, existing := range m.items {
		if existing.URL() == url {
			m.logger.Debug("already queued", "id", existing.ID(), "url", url)
			return existing, nil
		}
	}
	m.items = append(m.items, item)
	m.logger.Debug("queued", "id", item.ID(), "url", url, "streams", len(streams))
	return item, nil
}

func (m *Manager) buildStreams(video media.Video, manifest media.Manifest) ([]*Stream, error) {
	picks := media.SelectStreams(manifest)
	streams := make([]*Stream, 0, len(picks))
	for i, pick := range picks {
		s, err := newStream(i, pick, video, m.cfg.TempDir, m.cfg.VideoDir)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// FindItem returns the item with the given ID.
func (m *Manager) FindItem(id uuid.UUID) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID() == id {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// GetStream returns the stream with the given IDs.
func (m *Manager) GetStream(itemID uuid.UUID, streamID int) (*Stream, error) {
	item, err := m.FindItem(itemID)
	if err != nil {
		return nil, err
	}
	return item.Stream(streamID)
}

// MarkForDownload arms a stream for the next drain and returns a one-shot
// channel that receives the terminal result exactly once. Marking a stream
// that is already queued, running or finished is a no-op that returns the
// existing channel; marking a failed stream re-arms it.
func (m *Manager) MarkForDownload(itemID uuid.UUID, streamID int) (<-chan Result, error) {
	stream, err := m.GetStream(itemID, streamID)
	if err != nil {
		return nil, err
	}
	done := stream.markWait()
	m.logger.Debug("marked for download", "item", itemID, "stream", streamID, "title", stream.Title())
	return done, nil
}

// Items returns a snapshot of the queue in insertion order.
func (m *Manager) Items() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Item, len(m.items))
	copy(out, m.items)
	return out
}

// HasWaiting reports whether any stream anywhere is queued for download.
func (m *Manager) HasWaiting() bool {
	for _, item := range m.Items() {
		if item.HasWaiting() {
			return true
		}
	}
	return false
}

// Drain advances at most one waiting stream to a terminal state: the first
// waiting stream of the first item (insertion order) that has one. A drain
// with nothing to do returns immediately. Execution failures are logged and
// recorded on the stream; Drain itself never fails, so the periodic trigger
// cannot be destabilized by a bad stream.
func (m *Manager) Drain(ctx context.Context) {
	item, stream := m.claimNext()
	if stream == nil {
		return
	}

	m.logger.Debug("downloading", "item", item.ID(), "stream", stream.ID(), "title", stream.Title())
	if err := m.exec.Execute(ctx, item, stream); err != nil {
		stream.finish(StateError, err)
		m.logger.Error("download failed", "item", item.ID(), "stream", stream.ID(), "err", err)
		return
	}
	stream.finish(StateReady, nil)
	m.logger.Info("download finished", "item", item.ID(), "stream", stream.ID(), "path", stream.FinalPath())
}

// TryDrain runs Drain unless one is already in flight, in which case the
// call is dropped entirely. This is the reentrancy guard for the periodic
// trigger: a skipped tick costs nothing, the next one resumes draining.
func (m *Manager) TryDrain(ctx context.Context) {
	if !m.drainMu.TryLock() {
		m.logger.Debug("drain in progress; tick skipped")
		return
	}
	defer m.drainMu.Unlock()
	m.Drain(ctx)
}

func (m *Manager) findByURL(url string) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.URL() == url {
			return item
		}
	}
	return nil
}

// claimNext picks the next waiting stream and transitions it to InProcess
// under the collection lock, so only one drain can ever claim a stream.
func (m *Manager) claimNext() (*Item, *Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		for s := range item.Waiting() {
			if s.takeWait() {
				return item, s
			}
		}
	}
	return nil, nil
}
