package audio

import (
	"errors"
	"io"
)

// Chunker cuts a PCM stream into fixed-size chunks. The final chunk keeps
// whatever remains and may be shorter; the service accepts a trailing
// partial chunk.
type Chunker struct {
	r    io.Reader
	size int
}

// NewChunker wraps a PCM source. Size is the chunk length in bytes,
// typically AudioFormat.ChunkBytes().
func NewChunker(r io.Reader, size int) *Chunker {
	return &Chunker{r: r, size: size}
}

// Next returns the next chunk, or io.EOF once the source is drained.
func (c *Chunker) Next() ([]byte, error) {
	chunk := make([]byte, c.size)
	n, err := io.ReadFull(c.r, chunk)
	switch {
	case err == nil:
		return chunk, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return chunk[:n], nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, err
	}
}

// Chunks splits a PCM slice eagerly. Chunks alias the input.
func Chunks(pcm []byte, size int) [][]byte {
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(pcm)+size-1)/size)
	for start := 0; start < len(pcm); start += size {
		end := start + size
		if end > len(pcm) {
			end = len(pcm)
		}
		chunks = append(chunks, pcm[start:end])
	}
	return chunks
}
