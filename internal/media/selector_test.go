package media

import (
	"testing"
)

func muxed(container string, height int) StreamDescriptor {
	return StreamDescriptor{Kind: KindMuxed, Container: container, Height: height}
}

func videoOnly(container string, height int) StreamDescriptor {
	return StreamDescriptor{Kind: KindVideoOnly, Container: container, Height: height}
}

func audioOnly(container string, size int64) StreamDescriptor {
	return StreamDescriptor{Kind: KindAudioOnly, Container: container, SizeBytes: size}
}

func TestSelectStreamsEmptyManifest(t *testing.T) {
	picks := SelectStreams(Manifest{})
	if len(picks) != 0 {
		t.Fatalf("expected no picks for an empty manifest, got %d", len(picks))
	}
}

func TestSelectStreamsEveryEntryBecomesSingle(t *testing.T) {
	m := Manifest{Streams: []StreamDescriptor{
		muxed("mp4", 360),
		audioOnly("mp4", 100),
		videoOnly("webm", 720),
	}}

	picks := SelectStreams(m)

	var singles []Pick
	for _, p := range picks {
		if !p.Fused() {
			singles = append(singles, p)
		}
	}
	if len(singles) != len(m.Streams) {
		t.Fatalf("expected %d single picks, got %d", len(m.Streams), len(singles))
	}
	// Singles keep manifest order.
	for i, p := range singles {
		if *p.Single != m.Streams[i] {
			t.Errorf("single %d: got %+v, want %+v", i, *p.Single, m.Streams[i])
		}
	}
}

func TestSelectStreamsSynthesizesPairWhenSplitBeatsMuxed(t *testing.T) {
	m := Manifest{Streams: []StreamDescriptor{
		muxed("mp4", 360),
		videoOnly("mp4", 1080),
		audioOnly("mp4", 5000),
	}}

	picks := SelectStreams(m)
	if len(picks) != 4 {
		t.Fatalf("expected 4 picks (3 singles + 1 pair), got %d", len(picks))
	}

	pair := picks[0]
	if !pair.Fused() {
		t.Fatalf("expected the pair at the front of the list, got %+v", pair)
	}
	if pair.Video.Height != 1080 {
		t.Errorf("pair video height = %d, want 1080", pair.Video.Height)
	}
	if pair.Audio.SizeBytes != 5000 {
		t.Errorf("pair audio size = %d, want 5000", pair.Audio.SizeBytes)
	}
}

func TestSelectStreamsNoPairWhenMuxedAlreadyBest(t *testing.T) {
	m := Manifest{Streams: []StreamDescriptor{
		muxed("mp4", 1080),
		videoOnly("mp4", 1080),
		audioOnly("mp4", 5000),
	}}

	for _, p := range SelectStreams(m) {
		if p.Fused() {
			t.Fatalf("no pair expected when the split height does not exceed the muxed height, got %+v", p)
		}
	}
}

func TestSelectStreamsNoPairWithoutBothLegs(t *testing.T) {
	cases := []struct {
		name    string
		streams []StreamDescriptor
	}{
		{"video only", []StreamDescriptor{videoOnly("webm", 2160)}},
		{"audio only", []StreamDescriptor{audioOnly("webm", 9000)}},
		{"legs in different containers", []StreamDescriptor{
			videoOnly("webm", 2160),
			audioOnly("mp4", 9000),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, p := range SelectStreams(Manifest{Streams: tc.streams}) {
				if p.Fused() {
					t.Fatalf("unexpected pair %+v", p)
				}
			}
		})
	}
}

func TestSelectStreamsPairPerContainer(t *testing.T) {
	m := Manifest{Streams: []StreamDescriptor{
		videoOnly("webm", 1080),
		audioOnly("webm", 3000),
		videoOnly("mp4", 720),
		audioOnly("mp4", 2000),
	}}

	picks := SelectStreams(m)

	var pairs []Pick
	for _, p := range picks {
		if p.Fused() {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) != 2 {
		t.Fatalf("expected one pair per container, got %d", len(pairs))
	}
	// Pairs are prepended, so the later-synthesized mp4 pair comes first.
	if pairs[0].Video.Container != "mp4" || pairs[1].Video.Container != "webm" {
		t.Errorf("pair order = %s, %s; want mp4, webm",
			pairs[0].Video.Container, pairs[1].Video.Container)
	}
	// All pairs precede all singles.
	for i, p := range picks {
		if p.Fused() && i >= len(pairs) {
			t.Errorf("pair found at index %d after singles started", i)
		}
	}
}

func TestSelectStreamsTieKeepsFirstCandidate(t *testing.T) {
	first := videoOnly("webm", 1080)
	first.Itag = 1
	second := videoOnly("webm", 1080)
	second.Itag = 2

	m := Manifest{Streams: []StreamDescriptor{
		first,
		second,
		audioOnly("webm", 4000),
	}}

	picks := SelectStreams(m)
	if !picks[0].Fused() {
		t.Fatalf("expected a pair at the front, got %+v", picks[0])
	}
	if picks[0].Video.Itag != 1 {
		t.Errorf("tie on height picked itag %d, want the first-encountered itag 1", picks[0].Video.Itag)
	}
}
