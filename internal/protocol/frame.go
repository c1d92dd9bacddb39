package protocol

import (
	"encoding/json"
	"fmt"
)

// FaultMessage is the error text sent for infrastructure failures
const FaultMessage = "internal error"

// Frame is the envelope for every message on the wire. Broadcasts use ID 0.
type Frame struct {
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DecodeFrame parses a client frame
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Method == "" {
		return Frame{}, fmt.Errorf("decode frame: missing method")
	}
	return f, nil
}

// Encode builds and serialises a frame carrying payload
func Encode(id int64, method string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", method, err)
	}
	return json.Marshal(Frame{ID: id, Method: method, Payload: raw})
}

// EncodeFault serialises an error frame answering request id
func EncodeFault(id int64, method string) []byte {
	data, _ := json.Marshal(Frame{ID: id, Method: method, Error: FaultMessage})
	return data
}

// DecodePayload unmarshals a request payload into T. An absent payload gives the zero value.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
