package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingData is returned when a successful response carries no data.
var ErrMissingData = errors.New("response has no data")

// Response is the envelope every engine reply is wrapped in. On success Data
// holds the payload; on failure ErrorMessage explains why.
type Response[T any] struct {
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	Data         *T      `json:"data,omitempty"`
}

type wireResponse[T any] struct {
	Success      *bool   `json:"success"`
	ErrorMessage *string `json:"errorMessage"`
	Data         *T      `json:"data"`
}

// DecodeResponse parses a response envelope. The success flag is required;
// data and errorMessage may be absent.
func DecodeResponse[T any](s string) (*Response[T], error) {
	var w wireResponse[T]
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if w.Success == nil {
		return nil, errors.New("response is missing the success field")
	}
	return &Response[T]{
		Success:      *w.Success,
		ErrorMessage: w.ErrorMessage,
		Data:         w.Data,
	}, nil
}

// DecodePayload parses the data member of a response into T.
func DecodePayload[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrMissingData
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &v, nil
}

// EncodeResponse builds the wire envelope for the outcome of a command. A
// non-nil err produces a failure envelope carrying err's message. It never
// fails: a payload that cannot be serialized becomes a failure envelope.
func EncodeResponse(data interface{}, err error) string {
	var resp Response[json.RawMessage]
	if err != nil {
		msg := err.Error()
		resp.ErrorMessage = &msg
	} else {
		raw, merr := json.Marshal(data)
		if merr != nil {
			msg := fmt.Sprintf("failed to marshal response: %v", merr)
			resp.ErrorMessage = &msg
		} else {
			r := json.RawMessage(raw)
			resp.Success = true
			resp.Data = &r
		}
	}

	out, merr := json.Marshal(resp)
	if merr != nil {
		return `{"success":false,"errorMessage":"failed to marshal response"}`
	}
	return string(out)
}
