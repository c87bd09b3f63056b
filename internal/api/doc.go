// Package api provides the HTTP REST API and WebSocket server for Trailobot
// Core.
//
// It exposes the bridge session state, live telemetry, operator commands
// (greeting, goals, navigation cancel) and manual teleoperation to the
// browser dashboard. Telemetry updates and session state changes are pushed
// over a WebSocket hub on the channels telemetry.* and session.state.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// When security.jwt.secret is set, command routes require an HS256 bearer
// token and the WebSocket requires a single-use ticket.
package api
