package stt

import "time"

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the provider detected or was told to use.
	// May be empty.
	Language string

	// Duration is the length of the recording. May be zero if the provider
	// does not report it.
	Duration time.Duration

	// Words contains per-word detail in spoken order when available. May be
	// nil for providers that don't support word-level output.
	Words []WordDetail
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// FromSeconds converts fractional seconds to a Duration.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
