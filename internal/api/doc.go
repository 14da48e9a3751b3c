// Package api provides the HTTP REST API and WebSocket server for the
// garage door bridge.
//
// Endpoints (all under /api/v1):
//
//	GET  /health          bridge and door health
//	GET  /door            current door snapshot
//	POST /door/commands   run a door action (202, 400 or 409)
//	GET  /door/history    recent door events, newest first
//	GET  /ws              WebSocket stream of door.state and door.command events
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
