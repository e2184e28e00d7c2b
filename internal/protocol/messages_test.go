package protocol

import (
	"errors"
	"testing"
)

func gzipBody(t *testing.T, body string) []byte {
	t.Helper()
	packed, err := PackRaw([]byte(body))
	if err != nil {
		t.Fatalf("Expected no error compressing body, got %v", err)
	}
	return packed
}

func TestParseServerFrameResultObject(t *testing.T) {
	body := `{"audio_info":{"duration":1968},"result":{"text":"halo dunia","additions":{"log_id":"abc123"}}}`
	frame := Frame{
		Type:          MessageTypeServerFullResponse,
		Flags:         FlagNone,
		Serialization: SerializationJSON,
		Compression:   CompressionGZIP,
		Payload:       gzipBody(t, body),
	}

	result, err := ParseServerFrame(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result, got nil")
	}
	if result.Text != "halo dunia" {
		t.Errorf("Expected text %q, got %q", "halo dunia", result.Text)
	}
	if result.DurationMS != 1968 {
		t.Errorf("Expected duration 1968, got %d", result.DurationMS)
	}
	if result.Additions["log_id"] != "abc123" {
		t.Errorf("Expected log_id %q, got %q", "abc123", result.Additions["log_id"])
	}
	if result.Final {
		t.Error("Expected a non-final result")
	}
}

func TestParseServerFrameResultList(t *testing.T) {
	body := `{"result":[{"text":"halo "},{"text":"dunia"}]}`
	frame := Frame{
		Type:          MessageTypeServerFullResponse,
		Serialization: SerializationJSON,
		Compression:   CompressionGZIP,
		Payload:       gzipBody(t, body),
	}

	result, err := ParseServerFrame(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Text != "halo dunia" {
		t.Errorf("Expected concatenated text %q, got %q", "halo dunia", result.Text)
	}
}

func TestParseServerFrameFinalFlag(t *testing.T) {
	frame := Frame{
		Type:          MessageTypeServerFullResponse,
		Flags:         FlagIsLastPacket,
		Serialization: SerializationJSON,
		Compression:   CompressionGZIP,
		Payload:       gzipBody(t, `{"result":{"text":"selesai"}}`),
	}

	result, err := ParseServerFrame(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Final {
		t.Error("Expected a final result")
	}
	if result.Text != "selesai" {
		t.Errorf("Expected text %q, got %q", "selesai", result.Text)
	}
}

func TestParseServerFrameAck(t *testing.T) {
	frame := Frame{Type: MessageTypeServerAck}

	result, err := ParseServerFrame(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected ack to yield no result, got %+v", result)
	}
}

func TestParseServerFrameError(t *testing.T) {
	body := `{"error":"invalid audio format"}`
	frame := Frame{
		Type:          MessageTypeServerError,
		Serialization: SerializationJSON,
		Compression:   CompressionGZIP,
		ErrorCode:     45000001,
		Payload:       gzipBody(t, body),
	}

	_, err := ParseServerFrame(frame)
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected ServerError, got %T", err)
	}
	if serverErr.Code != 45000001 {
		t.Errorf("Expected code 45000001, got %d", serverErr.Code)
	}
	if serverErr.Message != body {
		t.Errorf("Expected message %q, got %q", body, serverErr.Message)
	}
}

func TestParseServerFrameUnexpectedType(t *testing.T) {
	frame := Frame{Type: MessageTypeClientAudioOnly}

	_, err := ParseServerFrame(frame)
	if err == nil {
		t.Fatal("Expected error for unexpected message type, got none")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError, got %T", err)
	}
}

func TestParseServerFrameMalformedJSON(t *testing.T) {
	frame := Frame{
		Type:          MessageTypeServerFullResponse,
		Serialization: SerializationJSON,
		Compression:   CompressionGZIP,
		Payload:       gzipBody(t, `{nope`),
	}

	_, err := ParseServerFrame(frame)
	if err == nil {
		t.Fatal("Expected error for malformed JSON, got none")
	}
	var payloadErr *PayloadDecodeError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("Expected PayloadDecodeError, got %T", err)
	}
	if payloadErr.Stage != "deserialize" {
		t.Errorf("Expected stage %q, got %q", "deserialize", payloadErr.Stage)
	}
}
