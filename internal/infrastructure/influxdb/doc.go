// Package influxdb records Trailobot telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writes and health monitoring.
//
// # Measurements
//
//   - robot_weight: kg
//   - robot_pose: x, y, heading_deg
//   - nav_status: status
//   - chatter: length
//
// All points are tagged with robot_id.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Robot.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordWeight(12.5, time.Now())
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
