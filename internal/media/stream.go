package media

import (
	"fmt"
	"time"
)

// StreamKind discriminates the three variant shapes a catalog manifest can
// carry. Every StreamDescriptor has exactly one kind; code that compares
// quality switches on it exhaustively.
type StreamKind int

const (
	// KindMuxed is a single file already containing audio and video.
	KindMuxed StreamKind = iota
	// KindVideoOnly is a video elementary stream without audio.
	KindVideoOnly
	// KindAudioOnly is an audio elementary stream without video.
	KindAudioOnly
)

func (k StreamKind) String() string {
	switch k {
	case KindMuxed:
		return "muxed"
	case KindVideoOnly:
		return "video"
	case KindAudioOnly:
		return "audio"
	}
	return "unknown"
}

// StreamDescriptor is one encoded variant from a stream manifest.
type StreamDescriptor struct {
	Kind      StreamKind
	SourceID  string // catalog video ID this variant belongs to
	Itag      int    // catalog format identifier
	Container string // container kind, e.g. "mp4", "webm"
	MimeType  string
	Height    int // vertical resolution; 0 for audio-only
	Bitrate   int
	SizeBytes int64
}

// Summary renders a short human label for the descriptor.
func (d StreamDescriptor) Summary() string {
	if d.Kind == KindAudioOnly {
		return fmt.Sprintf("audio (%s)", d.Container)
	}
	return fmt.Sprintf("%s (%d | %s)", d.Kind, d.Height, d.Container)
}

// Video is the metadata snapshot captured once when an item is created.
type Video struct {
	ID          string
	Title       string
	Description string
	Author      string
	Duration    time.Duration
	PublishDate time.Time
}

// Manifest is the set of encoded variants a remote video exposes.
type Manifest struct {
	Streams []StreamDescriptor
}

// Empty reports whether the manifest carries no variants at all.
func (m Manifest) Empty() bool { return len(m.Streams) == 0 }
