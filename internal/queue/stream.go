package queue

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tubeq/tubeq/internal/media"
)

var errBadPick = errors.New("pick must hold either one stream or an audio/video pair")

// Result is delivered exactly once on the channel returned by
// Manager.MarkForDownload, after the stream reached a terminal state.
type Result struct {
	State State
	Path  string // final path, set on success
	Err   error
}

// Stream is one downloadable unit of an item: either a single transfer of a
// manifest variant, or a fused pair combined by ffmpeg after download.
// Identity, descriptors and paths are fixed at creation; only the state and
// the completion channel change afterwards.
type Stream struct {
	id        int
	single    *media.StreamDescriptor
	audio     *media.StreamDescriptor
	video     *media.StreamDescriptor
	tempPath  string
	finalPath string

	mu    sync.Mutex
	state State
	done  chan Result

	titleOnce sync.Once
	title     string
}

func newStream(id int, pick media.Pick, video media.Video, tempDir, videoDir string) (*Stream, error) {
	single := pick.Single != nil
	pair := pick.Audio != nil && pick.Video != nil
	if single == pair {
		return nil, errBadPick
	}

	s := &Stream{
		id:     id,
		single: pick.Single,
		audio:  pick.Audio,
		video:  pick.Video,
		state:  StateAdded,
	}

	container := s.Container()
	tempName := fmt.Sprintf("%s__%d.%s", video.ID, id, container)
	finalName := fmt.Sprintf("%s.%s", sanitizeFileName(video.Title), container)
	s.tempPath = filepath.Join(tempDir, tempName)
	s.finalPath = filepath.Join(videoDir, finalName)
	return s, nil
}

// ID is the stream's index, unique within its parent item.
func (s *Stream) ID() int { return s.id }

// Fused reports whether this stream needs audio/video fusion after download.
func (s *Stream) Fused() bool { return s.single == nil }

// Single returns the descriptor of a single-transfer stream, nil for pairs.
func (s *Stream) Single() *media.StreamDescriptor { return s.single }

// Audio returns the audio leg of a fused pair, nil for single transfers.
func (s *Stream) Audio() *media.StreamDescriptor { return s.audio }

// Video returns the video leg of a fused pair, nil for single transfers.
func (s *Stream) Video() *media.StreamDescriptor { return s.video }

// TempPath is the working location of the in-flight download.
func (s *Stream) TempPath() string { return s.tempPath }

// FinalPath is where the published file lands. A half-finished file is never
// visible here; publishing is a rename from TempPath.
func (s *Stream) FinalPath() string { return s.finalPath }

// Container is the container kind of the resulting file. For fused pairs the
// video leg decides.
func (s *Stream) Container() string {
	if s.Fused() {
		return s.video.Container
	}
	return s.single.Container
}

// SizeBytes estimates the total transfer size.
func (s *Stream) SizeBytes() int64 {
	if s.Fused() {
		return s.audio.SizeBytes + s.video.SizeBytes
	}
	return s.single.SizeBytes
}

// SizeMB is SizeBytes in megabytes, rounded to two decimals.
func (s *Stream) SizeMB() float64 {
	return math.Round(float64(s.SizeBytes())/1024/1024*100) / 100
}

// Title renders presentation metadata for the stream. Computed on first use
// and cached; descriptors never change after creation.
func (s *Stream) Title() string {
	s.titleOnce.Do(func() {
		if s.Fused() {
			s.title = fmt.Sprintf("Muxed (custom) (%d | %s) ~%.2fMB",
				s.video.Height, s.video.Container, s.SizeMB())
			return
		}
		s.title = fmt.Sprintf("%s ~%.2fMB", s.single.Summary(), s.SizeMB())
	})
	return s.title
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// markWait arms the stream for download and returns its completion channel.
// Arming an Added or Error stream transitions it to Wait; any other state is
// left untouched and the existing channel is reused, so repeated calls are
// idempotent.
func (s *Stream) markWait() <-chan Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAdded, StateError:
		s.state = StateWait
		s.done = make(chan Result, 1)
	default:
		if s.done == nil {
			s.done = make(chan Result, 1)
		}
	}
	return s.done
}

// takeWait claims a waiting stream for processing. Returns false when the
// stream is not in Wait.
func (s *Stream) takeWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWait {
		return false
	}
	s.state = StateInProcess
	return true
}

// finish records the terminal state and delivers the one-shot result. The
// channel is buffered, so delivery never blocks the drain; a consumer that
// already went away simply leaves the value behind.
func (s *Stream) finish(state State, err error) {
	s.mu.Lock()
	s.state = state
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return
	}
	res := Result{State: state, Err: err}
	if state == StateReady {
		res.Path = s.finalPath
	}
	select {
	case done <- res:
	default:
	}
}

var invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

func sanitizeFileName(name string) string {
	clean := invalidFileChars.ReplaceAllString(name, "-")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "video"
	}
	return clean
}
