package protocol

import "fmt"

// EncodeError reports a frame or payload that could not be serialized
// into wire bytes.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode frame: %s", e.Reason)
}

// DecodeError reports wire bytes that could not be parsed as a frame.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %s", e.Reason)
}

// PayloadDecodeError reports a structurally valid frame whose payload
// failed to decompress or deserialize. Stage is "decompress" or
// "deserialize".
type PayloadDecodeError struct {
	Stage string
	Err   error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("%s payload: %v", e.Stage, e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

// ServerError is an error frame returned by the recognition service.
// Message carries the server's payload text verbatim.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}
