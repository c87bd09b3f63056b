package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope carries a ROS message and its schema over MQTT.
type envelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// wrap encodes payload with its schema.
func wrap(schema string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not JSON", ErrPublishFailed)
	}
	return json.Marshal(envelope{Type: schema, Msg: payload})
}

// unwrap returns the message JSON from an inbound payload. Payloads
// without an envelope are returned unchanged.
func unwrap(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Type == "" || len(env.Msg) == 0 {
		return data
	}
	return env.Msg
}
