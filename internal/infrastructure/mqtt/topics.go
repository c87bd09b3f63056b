package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "trailobot"

// Topics maps ROS topic names onto the broker's topic tree.
//
//	topics := mqtt.Topics{Prefix: "trailobot"}
//	topics.ToMQTT("/weight")            // "trailobot/weight"
//	topics.FromMQTT("trailobot/weight") // "/weight", true
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// ToMQTT returns the broker topic for a ROS topic name. It returns "" for
// names that cannot be mapped: empty names and names containing MQTT
// wildcards.
func (t Topics) ToMQTT(rosTopic string) string {
	name := strings.Trim(rosTopic, "/")
	if name == "" || strings.ContainsAny(name, "+#") {
		return ""
	}
	return t.prefix() + "/" + name
}

// FromMQTT returns the ROS topic for a broker topic, reporting false when
// the topic is outside the prefix.
func (t Topics) FromMQTT(mqttTopic string) (string, bool) {
	rest, ok := strings.CutPrefix(mqttTopic, t.prefix()+"/")
	if !ok || rest == "" {
		return "", false
	}
	return "/" + rest, true
}

// Status returns the retained online/offline status topic of the core.
//
// Example: trailobot/core/status
func (t Topics) Status() string {
	return t.prefix() + "/core/status"
}
