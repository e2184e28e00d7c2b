package entities

// TranscriptUpdate is one hypothesis surfaced by a recognition stream.
// Text carries the full transcript so far, not a delta; consumers render
// it in place of the previous update.
type TranscriptUpdate struct {
	Text       string
	Final      bool
	DurationMS int
	Additions  map[string]string
}
