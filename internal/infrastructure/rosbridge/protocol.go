package rosbridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// rosbridge operation names.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opAdvertise   = "advertise"
	opUnadvertise = "unadvertise"
	opPublish     = "publish"
	opStatus      = "status"
)

// operation is one rosbridge protocol frame. Msg is a message object for
// publish and a string for status.
type operation struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`
	Level string          `json:"level,omitempty"`
}

// newOpID builds an operation ID in the "op:topic:n" form used by roslib,
// with a UUID in place of the counter.
func newOpID(op, topic string) string {
	return fmt.Sprintf("%s:%s:%s", op, topic, uuid.NewString())
}

func subscribeOp(topic, schema string) operation {
	return operation{Op: opSubscribe, ID: newOpID(opSubscribe, topic), Topic: topic, Type: schema}
}

func unsubscribeOp(topic string) operation {
	return operation{Op: opUnsubscribe, ID: newOpID(opUnsubscribe, topic), Topic: topic}
}

func advertiseOp(topic, schema string) operation {
	return operation{Op: opAdvertise, ID: newOpID(opAdvertise, topic), Topic: topic, Type: schema}
}

func unadvertiseOp(topic string) operation {
	return operation{Op: opUnadvertise, ID: newOpID(opUnadvertise, topic), Topic: topic}
}

func publishOp(topic string, payload []byte) operation {
	return operation{Op: opPublish, ID: newOpID(opPublish, topic), Topic: topic, Msg: json.RawMessage(payload)}
}

// statusText extracts the human-readable text of a status operation.
func (o operation) statusText() string {
	var text string
	if err := json.Unmarshal(o.Msg, &text); err != nil {
		return string(o.Msg)
	}
	return text
}
