package queue

// State is the lifecycle position of a single download stream.
//
// Added -> Wait -> InProcess -> Ready | Error. Error may be re-armed back to
// Wait by the caller; Ready is final.
type State string

const (
	// StateAdded means the stream exists but nobody asked to download it.
	StateAdded State = "Added"

	// StateWait means the caller requested the download and the stream is
	// queued for the next drain.
	StateWait State = "Wait"

	// StateInProcess means the stream is being fetched or fused right now.
	// At most one stream across the whole queue holds this state.
	StateInProcess State = "InProcess"

	// StateReady means the final file was published.
	StateReady State = "Ready"

	// StateError means the fetch or fusion failed. The caller may retry by
	// marking the stream for download again.
	StateError State = "Error"
)

func (s State) String() string { return string(s) }

// Terminal reports whether the stream reached an end state.
func (s State) Terminal() bool { return s == StateReady || s == StateError }
