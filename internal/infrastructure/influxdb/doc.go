// Package influxdb writes door telemetry to InfluxDB v2.
//
// Every published door snapshot becomes a door_state point and every
// command outcome a door_command point:
//
//	door_state    tags: door_id, motion
//	              fields: current_position, target_position, goto_position,
//	                      light_on, relay_on, valid
//	door_command  tags: door_id, command, source
//	              fields: result
//
// Writes are batched and never block. Batch failures are counted and
// handed to the SetOnError callback; HealthCheck pings the server for the
// bridge's dependency checks.
package influxdb
