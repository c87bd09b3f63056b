// Package telemetry tracks the robot state the dashboard displays.
//
// A Monitor subscribes to the robot's telemetry topics on every new
// session Connection and keeps the latest values: a rolling window of
// chatter message lengths, the payload weight, the AMCL pose and the Nav2
// status. Each update can also be recorded (InfluxDB) and broadcast
// (dashboard WebSocket).
package telemetry
