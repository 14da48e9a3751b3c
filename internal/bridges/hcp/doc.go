// Package hcp connects the door engine to MQTT.
//
// The bridge runs between the Hörmann engine and the broker:
//
//	Drive ──RS-485── modbus.Server ── hoermann.Engine ── hcp.Bridge ── MQTT
//	                                                          │
//	                                          StateObservers ─┘ (InfluxDB,
//	                                          history, WebSocket, HomeKit)
//
// It handles:
//   - Commands from graylogic/command/hcp/{door_id}, acknowledged on
//     graylogic/ack/hcp/{door_id}
//   - State read-back requests on graylogic/request/hcp/{door_id}
//   - A publisher loop that drains the engine every poll interval and
//     publishes the retained state when it changed
//   - Periodic retained health on graylogic/health/hcp
//
// # Acknowledgements
//
// Every command is answered with one ack:
//
//	armed     → accepted
//	skipped   → accepted, skipped=true (door already there)
//	dropped   → failed, code BUSY (another command in flight)
//	bad input → failed, code INVALID_COMMAND or INVALID_PARAMETERS
//
// Thread Safety: All exported methods are safe for concurrent use.
package hcp
