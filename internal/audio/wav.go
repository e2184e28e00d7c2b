// Package audio loads WAV recordings into the raw little-endian PCM the
// recognition service streams, and cuts PCM into fixed-duration chunks.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/satriahrh/telinga/domain/repositories"
)

// DecodeWAV reads a WAV stream and returns its raw PCM bytes. The
// recording must already match the expected format; resampling is out of
// scope, callers record at the service rate instead.
func DecodeWAV(r io.ReadSeeker, format repositories.AudioFormat) ([]byte, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	if int(decoder.SampleRate) != format.SampleRate {
		return nil, fmt.Errorf("expected %d Hz, got %d Hz", format.SampleRate, decoder.SampleRate)
	}
	if int(decoder.BitDepth) != format.Bits {
		return nil, fmt.Errorf("expected %d-bit samples, got %d-bit", format.Bits, decoder.BitDepth)
	}
	if int(decoder.NumChans) != format.Channels {
		return nil, fmt.Errorf("expected %d channel(s), got %d", format.Channels, decoder.NumChans)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, nil
}

// ReadWAVFile loads a WAV recording from disk. See DecodeWAV.
func ReadWAVFile(path string, format repositories.AudioFormat) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pcm, err := DecodeWAV(f, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, nil
}
