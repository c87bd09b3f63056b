// Package mqtt provides the MQTT session transport for Trailobot Core.
//
// Some robots expose their ROS topics through an MQTT bridge instead of
// rosbridge. This package lets the session Manager talk to such a broker
// through the same session.Dialer/session.Link surface.
//
// # Topic mapping
//
// ROS topic names are mapped under a configurable prefix:
//
//	/weight       ↔ trailobot/weight
//	/amcl_pose    ↔ trailobot/amcl_pose
//
// # Payloads
//
// Outbound messages are wrapped in an envelope carrying the ROS schema:
//
//	{"type":"std_msgs/Float32","msg":{"data":12.5}}
//
// Inbound payloads may use the same envelope or be the bare message JSON.
//
// # Reconnection
//
// paho's own auto-reconnect is disabled. A lost connection is reported to
// the session Manager, which owns the fixed-delay retry policy and creates
// a fresh link (and paho client) for every attempt.
//
// # Security Considerations
//
//   - TLS is enabled with cfg.Broker.TLS=true (ssl:// endpoint)
//   - Credentials should come from TRAILOBOT_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	dialer := mqtt.NewDialer(cfg.MQTT, log)
//	mgr := session.NewManager(dialer)
//	mgr.Open(cfg.MQTT.Broker.URL())
package mqtt
