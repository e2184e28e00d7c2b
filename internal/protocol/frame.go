// Package protocol implements the binary framing spoken by the Volcengine
// streaming speech recognition service: a 4-byte descriptor, an optional
// big-endian signed sequence number, and a length-prefixed payload that is
// usually gzip-compressed JSON.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Version is the only wire format version this client speaks.
const Version = 0b0001

const (
	// defaultHeaderWords is the header length in 4-byte words for frames
	// this client produces. Servers may declare a larger header; the extra
	// words are skipped on decode.
	defaultHeaderWords = 0b0001

	headerLen    = 4
	sequenceLen  = 4
	errorCodeLen = 4
	sizeFieldLen = 4
)

// MessageType occupies the high nibble of header byte 1.
type MessageType uint8

const (
	MessageTypeClientFullRequest  MessageType = 0b0001
	MessageTypeClientAudioOnly    MessageType = 0b0010
	MessageTypeServerFullResponse MessageType = 0b1001
	MessageTypeServerAck          MessageType = 0b1011
	MessageTypeServerError        MessageType = 0b1111
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeClientFullRequest:
		return "ClientFullRequest"
	case MessageTypeClientAudioOnly:
		return "ClientAudioOnly"
	case MessageTypeServerFullResponse:
		return "ServerFullResponse"
	case MessageTypeServerAck:
		return "ServerAck"
	case MessageTypeServerError:
		return "ServerError"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Flags occupies the low nibble of header byte 1.
type Flags uint8

const (
	FlagNone         Flags = 0b0000
	FlagHasSequence  Flags = 0b0001
	FlagIsLastPacket Flags = 0b0010
)

// Serialization occupies the high nibble of header byte 2.
type Serialization uint8

const (
	SerializationNone Serialization = 0b0000
	SerializationJSON Serialization = 0b0001
)

// Compression occupies the low nibble of header byte 2.
type Compression uint8

const (
	CompressionNone Compression = 0b0000
	CompressionGZIP Compression = 0b0001
)

// Frame is one protocol message in either direction.
type Frame struct {
	Type          MessageType
	Flags         Flags
	Serialization Serialization
	Compression   Compression

	// Sequence is meaningful only when Flags carries FlagHasSequence.
	// Client frames count up from 1; the terminal audio frame sends the
	// value it consumed negated.
	Sequence int32

	// ErrorCode is populated only when decoding a ServerError frame,
	// which carries a status code between the sequence and the payload
	// size field.
	ErrorCode int32

	Payload []byte
}

// HasSequence reports whether the frame carries a sequence number.
func (f Frame) HasSequence() bool {
	return f.Flags&FlagHasSequence != 0
}

// IsLast reports whether the frame closes its direction of the stream.
func (f Frame) IsLast() bool {
	return f.Flags&FlagIsLastPacket != 0
}

// EncodeFrame serializes a frame into wire bytes. ServerError frames get
// their status code written between the sequence and the size field, the
// same spot DecodeFrame reads it from.
func EncodeFrame(f Frame) ([]byte, error) {
	if uint64(len(f.Payload)) > math.MaxUint32 {
		return nil, &EncodeError{Reason: fmt.Sprintf("payload of %d bytes exceeds the size field", len(f.Payload))}
	}

	size := headerLen + sizeFieldLen + len(f.Payload)
	if f.HasSequence() {
		size += sequenceLen
	}
	if f.Type == MessageTypeServerError {
		size += errorCodeLen
	}

	buf := make([]byte, 0, size)
	buf = append(buf,
		Version<<4|defaultHeaderWords,
		byte(f.Type)<<4|byte(f.Flags),
		byte(f.Serialization)<<4|byte(f.Compression),
		0x00,
	)
	if f.HasSequence() {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Sequence))
	}
	if f.Type == MessageTypeServerError {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.ErrorCode))
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf, nil
}

// DecodeFrame parses wire bytes into a Frame. The returned payload slice
// aliases data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < headerLen {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("expected at least %d header bytes, got %d", headerLen, len(data))}
	}

	if version := data[0] >> 4; version != Version {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("unsupported protocol version %d", version)}
	}
	headerWords := int(data[0] & 0x0F)
	if headerWords == 0 {
		return Frame{}, &DecodeError{Reason: "header size field is zero"}
	}

	f := Frame{
		Type:          MessageType(data[1] >> 4),
		Flags:         Flags(data[1] & 0x0F),
		Serialization: Serialization(data[2] >> 4),
		Compression:   Compression(data[2] & 0x0F),
	}

	offset := headerWords * 4
	if len(data) < offset {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("header declares %d bytes, got %d", offset, len(data))}
	}
	rest := data[offset:]

	if f.HasSequence() {
		if len(rest) < sequenceLen {
			return Frame{}, &DecodeError{Reason: fmt.Sprintf("expected %d sequence bytes, got %d", sequenceLen, len(rest))}
		}
		f.Sequence = int32(binary.BigEndian.Uint32(rest))
		rest = rest[sequenceLen:]
	}

	if f.Type == MessageTypeServerError {
		if len(rest) < errorCodeLen {
			return Frame{}, &DecodeError{Reason: fmt.Sprintf("expected %d error code bytes, got %d", errorCodeLen, len(rest))}
		}
		f.ErrorCode = int32(binary.BigEndian.Uint32(rest))
		rest = rest[errorCodeLen:]
	}

	if len(rest) < sizeFieldLen {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("expected %d payload size bytes, got %d", sizeFieldLen, len(rest))}
	}
	payloadSize := binary.BigEndian.Uint32(rest)
	rest = rest[sizeFieldLen:]

	if uint64(len(rest)) < uint64(payloadSize) {
		return Frame{}, &DecodeError{Reason: fmt.Sprintf("payload size %d runs past the remaining %d bytes", payloadSize, len(rest))}
	}
	f.Payload = rest[:payloadSize]
	return f, nil
}
