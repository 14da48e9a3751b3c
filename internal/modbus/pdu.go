package modbus

import (
	"encoding/binary"
	"fmt"
)

// Function codes served by the bridge.
const (
	FuncReadHoldingRegisters   uint8 = 0x03
	FuncWriteSingleRegister    uint8 = 0x06
	FuncWriteMultipleRegisters uint8 = 0x10
	FuncReadWriteMultiple      uint8 = 0x17
)

// Quantity limits from the Modbus application protocol.
const (
	maxReadQuantity      = 125
	maxWriteQuantity     = 123
	maxReadWriteQuantity = 121
)

// Bank is the register store behind the slave.
// hoermann.RegisterBank satisfies it.
type Bank interface {
	Apply(addr, value uint16) error
	ApplyMany(start uint16, values []uint16) error
	ReadRange(start, count uint16) ([]uint16, error)
}

// ReadHoldingRegisters serves fc 0x03.
//
// Request: start(2) quantity(2). Response: byte count(1) values(2*n).
func ReadHoldingRegisters(bank Bank, data []byte) ([]byte, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("%w: read request of %d bytes", ErrIllegalData, len(data))
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])

	return readRegisters(bank, start, qty)
}

// WriteSingleRegister serves fc 0x06. The response echoes the request.
func WriteSingleRegister(bank Bank, data []byte) ([]byte, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("%w: write request of %d bytes", ErrIllegalData, len(data))
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if err := bank.Apply(addr, value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}
	return append([]byte(nil), data...), nil
}

// WriteMultipleRegisters serves fc 0x10.
//
// Request: start(2) quantity(2) byte count(1) values(2*n).
// Response: start(2) quantity(2).
func WriteMultipleRegisters(bank Bank, data []byte) ([]byte, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: write request of %d bytes", ErrIllegalData, len(data))
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])

	values, err := decodeValues(qty, maxWriteQuantity, data[4], data[5:])
	if err != nil {
		return nil, err
	}
	if err := bank.ApplyMany(start, values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}
	return append([]byte(nil), data[0:4]...), nil
}

// ReadWriteMultipleRegisters serves fc 0x17. The write is applied before
// the read, so a read overlapping the written block returns the new values.
//
// Request: read start(2) read qty(2) write start(2) write qty(2)
// byte count(1) values(2*n). Response: byte count(1) values(2*read qty).
func ReadWriteMultipleRegisters(bank Bank, data []byte) ([]byte, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("%w: read/write request of %d bytes", ErrIllegalData, len(data))
	}
	readStart := binary.BigEndian.Uint16(data[0:2])
	readQty := binary.BigEndian.Uint16(data[2:4])
	writeStart := binary.BigEndian.Uint16(data[4:6])
	writeQty := binary.BigEndian.Uint16(data[6:8])

	if readQty == 0 || readQty > maxReadQuantity {
		return nil, fmt.Errorf("%w: read quantity %d", ErrIllegalData, readQty)
	}
	values, err := decodeValues(writeQty, maxReadWriteQuantity, data[8], data[9:])
	if err != nil {
		return nil, err
	}

	if err := bank.ApplyMany(writeStart, values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}
	return readRegisters(bank, readStart, readQty)
}

func readRegisters(bank Bank, start, qty uint16) ([]byte, error) {
	if qty == 0 || qty > maxReadQuantity {
		return nil, fmt.Errorf("%w: read quantity %d", ErrIllegalData, qty)
	}

	values, err := bank.ReadRange(start, qty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}

	out := make([]byte, 1+2*len(values))
	out[0] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[1+2*i:], v)
	}
	return out, nil
}

// decodeValues checks the quantity and byte count of a write block and
// returns its register values.
func decodeValues(qty uint16, maxQty int, byteCount byte, payload []byte) ([]uint16, error) {
	if qty == 0 || int(qty) > maxQty {
		return nil, fmt.Errorf("%w: write quantity %d", ErrIllegalData, qty)
	}
	if int(byteCount) != 2*int(qty) || len(payload) != int(byteCount) {
		return nil, fmt.Errorf("%w: byte count %d for %d registers with %d payload bytes",
			ErrIllegalData, byteCount, qty, len(payload))
	}

	values := make([]uint16, qty)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(payload[2*i:])
	}
	return values, nil
}
