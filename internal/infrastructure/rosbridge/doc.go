// Package rosbridge implements the session transport for rosbridge_server
// (rosbridge protocol v2, JSON over WebSocket).
//
// A Dialer hands the session Manager one link per connection attempt. Each
// link owns a single gorilla/websocket connection and translates between
// session calls and rosbridge operations:
//
//	Subscribe   → {"op":"subscribe","topic":...,"type":...}
//	Unsubscribe → {"op":"unsubscribe","topic":...}
//	Publish     → {"op":"advertise",...} once per topic, then {"op":"publish",...}
//
// Inbound "publish" operations are delivered as session messages; "status"
// operations from the server are logged.
//
// Links never reconnect. A failed handshake is reported as an error event
// and a dropped socket as a close event; the session Manager decides what
// happens next.
package rosbridge
