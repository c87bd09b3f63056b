package mqtt

import "fmt"

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends one enveloped message to the broker topic mapped from
// topic, without the retained flag.
//
// Example:
//
//	// /cmd_vel → trailobot/cmd_vel
//	// {"type":"geometry_msgs/Twist","msg":{...}}
//	err := link.Publish("/cmd_vel", "geometry_msgs/Twist", twistJSON)
func (c *Client) Publish(topic, schema string, payload []byte) error {
	mqttTopic := c.d.topics.ToMQTT(topic)
	if mqttTopic == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	data, err := wrap(schema, payload)
	if err != nil {
		return err
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(data), maxPayloadSize)
	}
	if err := c.ready(); err != nil {
		return err
	}

	token := c.client.Publish(mqttTopic, c.qos, false, data)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// ready reports why the link cannot carry traffic, if it cannot.
func (c *Client) ready() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
