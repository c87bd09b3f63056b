package mqtt

import "fmt"

// Subscribe subscribes to the broker topic mapped from topic. The schema
// travels in each message's envelope, so it is not sent to the broker.
//
// The handler runs on paho's delivery goroutine; with ordered delivery
// enabled, messages for one topic arrive in order.
func (c *Client) Subscribe(topic, _ string) error {
	mqttTopic := c.d.topics.ToMQTT(topic)
	if mqttTopic == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if err := c.ready(); err != nil {
		return err
	}

	token := c.client.Subscribe(mqttTopic, c.qos, c.wrapHandler())
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe stops delivery for topic. Messages in flight may still be
// delivered.
func (c *Client) Unsubscribe(topic string) error {
	mqttTopic := c.d.topics.ToMQTT(topic)
	if mqttTopic == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if err := c.ready(); err != nil {
		return err
	}

	token := c.client.Unsubscribe(mqttTopic)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}
