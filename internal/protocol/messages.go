package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// User identifies the caller inside the initial request payload.
type User struct {
	UID string `json:"uid"`
}

// AudioRequest describes the audio the client is about to stream.
type AudioRequest struct {
	Format  string `json:"format"`
	Codec   string `json:"codec"`
	Rate    int    `json:"rate"`
	Bits    int    `json:"bits"`
	Channel int    `json:"channel"`
}

// RecognitionRequest selects the model and its post-processing options.
type RecognitionRequest struct {
	ModelName  string `json:"model_name"`
	EnablePunc bool   `json:"enable_punc"`
	EnableITN  bool   `json:"enable_itn"`
	ResultType string `json:"result_type"`
}

// InitialRequest is the JSON payload of the first client frame.
type InitialRequest struct {
	User    User               `json:"user"`
	Audio   AudioRequest       `json:"audio"`
	Request RecognitionRequest `json:"request"`
}

// RecognitionResult is one decoded server hypothesis. Every result
// carries the full transcript so far, not a delta.
type RecognitionResult struct {
	Text       string
	Additions  map[string]string
	DurationMS int
	Final      bool
}

// serverResponse mirrors the JSON body of a full server response. Result
// stays raw because old deployments send a list where current ones send
// an object.
type serverResponse struct {
	AudioInfo struct {
		Duration int `json:"duration"`
	} `json:"audio_info"`
	Result json.RawMessage `json:"result"`
}

type resultBody struct {
	Text      string            `json:"text"`
	Additions map[string]string `json:"additions"`
}

// ParseServerFrame interprets a decoded server frame. Ack frames yield
// (nil, nil) and are meant to be skipped. Error frames yield a
// *ServerError carrying the payload text verbatim. Any other message
// type fails the session.
func ParseServerFrame(f Frame) (*RecognitionResult, error) {
	switch f.Type {
	case MessageTypeServerAck:
		return nil, nil

	case MessageTypeServerError:
		body, err := Unpack(f)
		if err != nil {
			return nil, err
		}
		return nil, &ServerError{Code: f.ErrorCode, Message: string(body)}

	case MessageTypeServerFullResponse:
		body, err := Unpack(f)
		if err != nil {
			return nil, err
		}
		if f.Serialization != SerializationJSON {
			return nil, &PayloadDecodeError{Stage: "deserialize", Err: fmt.Errorf("unexpected serialization 0b%04b", uint8(f.Serialization))}
		}
		var resp serverResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &PayloadDecodeError{Stage: "deserialize", Err: err}
		}
		result := &RecognitionResult{
			DurationMS: resp.AudioInfo.Duration,
			Final:      f.IsLast(),
		}
		if err := decodeResult(resp.Result, result); err != nil {
			return nil, &PayloadDecodeError{Stage: "deserialize", Err: err}
		}
		return result, nil

	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected message type %s", f.Type)}
	}
}

// decodeResult accepts both result shapes: the current single object and
// the legacy list, whose texts are concatenated.
func decodeResult(raw json.RawMessage, out *RecognitionResult) error {
	if len(raw) == 0 {
		return nil
	}

	var obj resultBody
	if err := json.Unmarshal(raw, &obj); err == nil {
		out.Text = obj.Text
		out.Additions = obj.Additions
		return nil
	}

	var list []resultBody
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("result is neither an object nor a list: %w", err)
	}
	var text strings.Builder
	for _, item := range list {
		text.WriteString(item.Text)
	}
	out.Text = text.String()
	return nil
}
