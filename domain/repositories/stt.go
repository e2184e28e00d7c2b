package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/telinga/domain/entities"
)

// ChunkDuration is how much audio one streamed chunk carries. The service
// expects audio in 200 ms frames.
const ChunkDuration = 200 * time.Millisecond

// AudioFormat represents the audio layout pushed into a recognizer
type AudioFormat struct {
	Format     string `json:"format"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Bits       int    `json:"bits"`
	Channels   int    `json:"channels"`
}

// DefaultAudioFormat returns the 16 kHz 16-bit mono PCM layout the hosted
// recognition models accept.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Format:     "pcm",
		Codec:      "pcm",
		SampleRate: 16000,
		Bits:       16,
		Channels:   1,
	}
}

// BytesPerSecond returns the raw PCM byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Bits / 8 * f.Channels
}

// ChunkBytes returns the PCM byte length of one ChunkDuration chunk:
// 6400 bytes for the default layout.
func (f AudioFormat) ChunkBytes() int {
	return f.BytesPerSecond() * int(ChunkDuration.Milliseconds()) / 1000
}

// Duration reports the play time of a PCM byte slice in this format.
func (f AudioFormat) Duration(pcmBytes int) time.Duration {
	rate := f.BytesPerSecond()
	if rate == 0 {
		return 0
	}
	return time.Duration(pcmBytes) * time.Second / time.Duration(rate)
}

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// StartRecognition opens one recognition session over one connection
	StartRecognition(ctx context.Context, format AudioFormat) (RecognitionStream, error)
}

// RecognitionStream is one live transcription session
type RecognitionStream interface {
	// Stream pushes one chunk of raw PCM audio
	Stream(data []byte) error
	// End signals end of audio and waits for the final transcript
	End() (string, error)
	// Updates surfaces incremental hypotheses and is closed when the
	// session reaches a terminal state
	Updates() <-chan entities.TranscriptUpdate
	// Close aborts the session and releases the connection
	Close() error
}
