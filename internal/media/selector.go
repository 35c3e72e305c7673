package media

// pairContainers are the container kinds considered for fused pairs, in the
// order their candidates are synthesized. Each synthesized pair is inserted
// at the front of the pick list, so the last kind here ends up first.
var pairContainers = []string{"webm", "mp4"}

// Pick is one downloadable choice derived from a manifest: either a single
// transfer of one descriptor, or a fused pair of separate audio and video
// descriptors that must be combined after download. Exactly one of the two
// shapes is populated.
type Pick struct {
	Single *StreamDescriptor
	Audio  *StreamDescriptor
	Video  *StreamDescriptor
}

// Fused reports whether the pick requires post-download fusion.
func (p Pick) Fused() bool { return p.Single == nil }

// SelectStreams turns a manifest into the ordered pick list for a download
// item. Every manifest entry becomes a single-transfer pick in manifest
// order. Then, per container kind, a fused pair is synthesized from the best
// video-only and best audio-only variants when that pair would beat the best
// pre-muxed variant of the same kind; pairs go to the front of the list so
// a selecting caller sees them first.
//
// Ties in resolution keep the first-encountered candidate: manifest order is
// stable and no further quality heuristics are applied.
func SelectStreams(m Manifest) []Pick {
	picks := make([]Pick, 0, len(m.Streams)+len(pairContainers))
	for i := range m.Streams {
		picks = append(picks, Pick{Single: &m.Streams[i]})
	}

	for _, container := range pairContainers {
		var bestMuxed, bestVideo, bestAudio *StreamDescriptor

		for i := range m.Streams {
			d := &m.Streams[i]
			if d.Container != container {
				continue
			}
			switch d.Kind {
			case KindMuxed:
				if bestMuxed == nil || d.Height > bestMuxed.Height {
					bestMuxed = d
				}
			case KindVideoOnly:
				if bestVideo == nil || d.Height > bestVideo.Height {
					bestVideo = d
				}
			case KindAudioOnly:
				if bestAudio == nil || d.SizeBytes > bestAudio.SizeBytes {
					bestAudio = d
				}
			}
		}

		if bestVideo == nil || bestAudio == nil {
			continue
		}

		muxedHeight := 0
		if bestMuxed != nil {
			muxedHeight = bestMuxed.Height
		}
		if bestVideo.Height <= muxedHeight {
			continue
		}

		pair := Pick{Audio: bestAudio, Video: bestVideo}
		picks = append([]Pick{pair}, picks...)
	}

	return picks
}
