// Package modbus serves the door's register bank as a Modbus RTU slave.
//
// The drive is the bus master. It reads the command registers and writes
// its status, position and counter registers to the bridge, which answers
// as a slave on the RS-485 line. Frames are read from a
// github.com/goburrow/serial port, the line timeout delimiting them, and
// decoded and encoded with github.com/tbrandon/mbserver's RTU framer.
//
// Supported function codes:
//
//	0x03  read holding registers
//	0x06  write single register
//	0x10  write multiple registers
//	0x17  read/write multiple registers (write applied first)
//
// Every other function code is answered with exception 1. Accesses outside
// the bank's declared ranges get exception 2, malformed requests exception 3.
//
// Only frames addressed to the configured slave ID are answered. Frames
// for other slaves are counted and dropped, and broadcasts (address 0) are
// executed without a reply.
package modbus
