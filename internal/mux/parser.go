package mux

import (
	"bytes"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/tubeq/tubeq/internal/progress"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	timeRe     = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

const tailLines = 12

// stderrParser is an io.Writer fed with ffmpeg's stderr. It captures the
// input duration from the banner, converts time= stats lines into a clamped
// 0..1 ratio, and keeps a short tail for error reporting. ffmpeg terminates
// stats lines with \r, so both \r and \n end a line.
type stderrParser struct {
	mu      sync.Mutex
	sink    progress.Sink
	partial []byte
	total   time.Duration
	tail    [][]byte
}

func newStderrParser(sink progress.Sink) *stderrParser {
	return &stderrParser{sink: sink}
}

func (p *stderrParser) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexAny(p.partial, "\r\n")
		if i < 0 {
			break
		}
		line := p.partial[:i]
		p.partial = p.partial[i+1:]
		p.handleLine(line)
	}
	return len(b), nil
}

func (p *stderrParser) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}

	p.tail = append(p.tail, append([]byte(nil), line...))
	if len(p.tail) > tailLines {
		p.tail = p.tail[1:]
	}

	if p.total == 0 {
		if m := durationRe.FindSubmatch(line); m != nil {
			p.total = parseClock(m)
		}
		return
	}

	m := timeRe.FindSubmatch(line)
	if m == nil {
		return
	}
	processed := parseClock(m)
	ratio := float64(processed) / float64(p.total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	if p.sink != nil {
		p.sink(ratio)
	}
}

// Tail returns the last stderr lines seen, newline-joined.
func (p *stderrParser) Tail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(bytes.Join(p.tail, []byte("\n")))
}

func parseClock(m [][]byte) time.Duration {
	hours, _ := strconv.Atoi(string(m[1]))
	minutes, _ := strconv.Atoi(string(m[2]))
	seconds, _ := strconv.ParseFloat(string(m[3]), 64)
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}
