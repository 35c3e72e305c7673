package queue

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/tubeq/tubeq/internal/media"
)

var (
	// ErrEmptyURL rejects item creation with a blank source URL.
	ErrEmptyURL = errors.New("url must not be empty")
	// ErrNoStreams rejects item creation with an empty stream list.
	ErrNoStreams = errors.New("item must have at least one stream")
	// ErrItemNotFound is returned for unknown item IDs.
	ErrItemNotFound = errors.New("download item not found")
	// ErrStreamNotFound is returned for unknown stream IDs within an item.
	ErrStreamNotFound = errors.New("download stream not found")
)

// Item aggregates a source URL, its video metadata snapshot and the streams
// derived from the catalog manifest. The shell is immutable after creation;
// only per-stream state transitions happen later.
type Item struct {
	id      uuid.UUID
	url     string
	video   media.Video
	streams []*Stream
}

// NewItem validates and builds a download item. An item is never created
// with an empty URL or zero streams.
func NewItem(url string, video media.Video, streams []*Stream) (*Item, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	if len(streams) == 0 {
		return nil, ErrNoStreams
	}
	return &Item{
		id:      uuid.New(),
		url:     url,
		video:   video,
		streams: streams,
	}, nil
}

// ID is the item's external handle.
func (it *Item) ID() uuid.UUID { return it.id }

// URL is the source identifier the item was enqueued with.
func (it *Item) URL() string { return it.url }

// Video is the metadata snapshot captured at creation.
func (it *Item) Video() media.Video { return it.video }

// Streams returns the item's streams in selection order.
func (it *Item) Streams() []*Stream {
	out := make([]*Stream, len(it.streams))
	copy(out, it.streams)
	return out
}

// Stream returns the stream with the given ID.
func (it *Item) Stream(id int) (*Stream, error) {
	for _, s := range it.streams {
		if s.id == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: item %s stream %d", ErrStreamNotFound, it.id, id)
}

// Waiting iterates the streams currently in Wait, in selection order. The
// sequence is restartable and evaluates state lazily on each pass.
func (it *Item) Waiting() iter.Seq[*Stream] {
	return func(yield func(*Stream) bool) {
		for _, s := range it.streams {
			if s.State() != StateWait {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// HasWaiting reports whether any stream is queued for download.
func (it *Item) HasWaiting() bool {
	for range it.Waiting() {
		return true
	}
	return false
}
