// Package session manages one reconnecting publish/subscribe session to the
// robot's message bridge.
//
// A Manager owns at most one live Connection to a single broker endpoint.
// Connections move through Disconnected → Connecting → Connected →
// Disconnected and never come back: when the transport reports an error or
// a close, the Manager schedules exactly one reconnect after a fixed delay
// (3s by default) and that attempt is a brand new Connection. Retries never
// give up and never back off; they stop on Close, Reconfigure or Shutdown.
//
// Subscriptions are children of a Connection. They are released with it and
// are never restored after a reconnect: callers watch state changes and
// subscribe again on every Connected transition.
//
//	m := session.NewManager(rosbridge.NewDialer(cfg), session.WithLogger(log))
//	m.Watch(func(ch session.StateChange) {
//	    if ch.To == session.Connected {
//	        session.Subscribe(ch.Connection, messages.WeightTopic, onWeight)
//	    }
//	})
//	m.Open("ws://robot:9090")
//	defer m.Shutdown()
//
// Publishing and subscribing on a Connection that is not Connected is a
// silent no-op: publishes are dropped, subscriptions come back inert.
//
// Thread Safety: all methods are safe for concurrent use. One mutex guards
// every state transition and the subscription registry.
package session
