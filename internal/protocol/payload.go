package protocol

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
)

// PackJSON marshals v to JSON and gzip-compresses the result. Structured
// client payloads such as the initial request go through here.
func PackJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Reason: fmt.Sprintf("marshal payload: %v", err)}
	}
	return PackRaw(raw)
}

// PackRaw gzip-compresses opaque bytes. Audio chunks and the empty
// terminal payload go through here.
func PackRaw(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, &EncodeError{Reason: fmt.Sprintf("compress payload: %v", err)}
	}
	if err := zw.Close(); err != nil {
		return nil, &EncodeError{Reason: fmt.Sprintf("compress payload: %v", err)}
	}
	return buf.Bytes(), nil
}

// Unpack reverses the frame's compression and returns the payload body.
// Frames without a recognized compression nibble pass through untouched,
// matching how lenient the service is about the field.
func Unpack(f Frame) ([]byte, error) {
	if f.Compression != CompressionGZIP {
		return f.Payload, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(f.Payload))
	if err != nil {
		return nil, &PayloadDecodeError{Stage: "decompress", Err: err}
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, &PayloadDecodeError{Stage: "decompress", Err: err}
	}
	return body, nil
}
