// Package messages defines the ROS message payloads and well-known topics
// Trailobot Core exchanges with the robot.
//
// Payload structs mirror the rosbridge JSON encoding of the corresponding
// ROS message types. Each topic is a session.Topic bound to its payload
// type, so session.Subscribe and session.Publish are type-checked:
//
//	session.Subscribe(conn, messages.WeightTopic, func(w messages.Float32) {
//	    fmt.Println(w.Data)
//	})
package messages
