package modbus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// newTestBank declares 0x1000..0x1007 and preloads 0x1000..0x1001.
func newTestBank() *hoermann.RegisterBank {
	bank := hoermann.NewRegisterBank()
	bank.Declare(hoermann.Range{Start: 0x1000, Count: 8})
	bank.Write(0x1000, 0x0001)
	bank.Write(0x1001, 0xABCD)
	return bank
}

func TestReadHoldingRegisters(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr error
	}{
		{"two registers", []byte{0x10, 0x00, 0x00, 0x02}, []byte{0x04, 0x00, 0x01, 0xAB, 0xCD}, nil},
		{"undeclared", []byte{0x20, 0x00, 0x00, 0x01}, nil, ErrIllegalAddress},
		{"runs past range", []byte{0x10, 0x06, 0x00, 0x03}, nil, ErrIllegalAddress},
		{"zero quantity", []byte{0x10, 0x00, 0x00, 0x00}, nil, ErrIllegalData},
		{"quantity too large", []byte{0x10, 0x00, 0x00, 0x7E}, nil, ErrIllegalData},
		{"short request", []byte{0x10, 0x00, 0x00}, nil, ErrIllegalData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadHoldingRegisters(newTestBank(), tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("response = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestWriteSingleRegister(t *testing.T) {
	bank := newTestBank()
	req := []byte{0x10, 0x03, 0x12, 0x34}

	got, err := WriteSingleRegister(bank, req)
	if err != nil {
		t.Fatalf("WriteSingleRegister() error = %v", err)
	}
	if !bytes.Equal(got, req) {
		t.Errorf("response = % X, want echo % X", got, req)
	}
	if v := bank.Read(0x1003); v != 0x1234 {
		t.Errorf("register = 0x%04X, want 0x1234", v)
	}

	if _, err := WriteSingleRegister(bank, []byte{0x30, 0x00, 0x00, 0x01}); !errors.Is(err, ErrIllegalAddress) {
		t.Errorf("undeclared write error = %v, want ErrIllegalAddress", err)
	}
	if _, err := WriteSingleRegister(bank, []byte{0x10, 0x00}); !errors.Is(err, ErrIllegalData) {
		t.Errorf("short write error = %v, want ErrIllegalData", err)
	}
}

func TestWriteMultipleRegisters(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr error
	}{
		{
			"two registers",
			[]byte{0x10, 0x04, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x00, 0x0B},
			[]byte{0x10, 0x04, 0x00, 0x02},
			nil,
		},
		{"byte count mismatch", []byte{0x10, 0x04, 0x00, 0x02, 0x03, 0x00, 0x0A, 0x00}, nil, ErrIllegalData},
		{"payload shorter than count", []byte{0x10, 0x04, 0x00, 0x02, 0x04, 0x00, 0x0A}, nil, ErrIllegalData},
		{"zero quantity", []byte{0x10, 0x04, 0x00, 0x00, 0x00}, nil, ErrIllegalData},
		{"straddles range end", []byte{0x10, 0x07, 0x00, 0x02, 0x04, 0x00, 0x01, 0x00, 0x02}, nil, ErrIllegalAddress},
		{"header only", []byte{0x10, 0x04, 0x00}, nil, ErrIllegalData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := newTestBank()
			got, err := WriteMultipleRegisters(bank, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("response = % X, want % X", got, tt.want)
			}
			if tt.wantErr == nil {
				if bank.Read(0x1004) != 0x000A || bank.Read(0x1005) != 0x000B {
					t.Error("registers not written")
				}
			}
		})
	}
}

func TestWriteMultipleRegisters_AllOrNothing(t *testing.T) {
	bank := newTestBank()
	// 0x1007 is declared, 0x1008 is not.
	_, err := WriteMultipleRegisters(bank, []byte{0x10, 0x07, 0x00, 0x02, 0x04, 0x00, 0x09, 0x00, 0x09})
	if !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("error = %v, want ErrIllegalAddress", err)
	}
	if v := bank.Read(0x1007); v != 0 {
		t.Errorf("0x1007 = 0x%04X, want untouched 0", v)
	}
}

func TestReadWriteMultipleRegisters(t *testing.T) {
	bank := newTestBank()
	// Read 0x1000..0x1002 after writing 0x1002 = 0x0077.
	req := []byte{
		0x10, 0x00, 0x00, 0x03,
		0x10, 0x02, 0x00, 0x01,
		0x02, 0x00, 0x77,
	}

	got, err := ReadWriteMultipleRegisters(bank, req)
	if err != nil {
		t.Fatalf("ReadWriteMultipleRegisters() error = %v", err)
	}
	want := []byte{0x06, 0x00, 0x01, 0xAB, 0xCD, 0x00, 0x77}
	if !bytes.Equal(got, want) {
		t.Errorf("response = % X, want % X", got, want)
	}
}

func TestReadWriteMultipleRegisters_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"short", []byte{0x10, 0x00, 0x00, 0x01}, ErrIllegalData},
		{"zero read quantity", []byte{0x10, 0x00, 0x00, 0x00, 0x10, 0x02, 0x00, 0x01, 0x02, 0x00, 0x01}, ErrIllegalData},
		{"write out of range", []byte{0x10, 0x00, 0x00, 0x01, 0x30, 0x00, 0x00, 0x01, 0x02, 0x00, 0x01}, ErrIllegalAddress},
		{"read out of range", []byte{0x30, 0x00, 0x00, 0x01, 0x10, 0x02, 0x00, 0x01, 0x02, 0x00, 0x01}, ErrIllegalAddress},
		{"write quantity too large", []byte{0x10, 0x00, 0x00, 0x01, 0x10, 0x02, 0x00, 0x7A, 0x02, 0x00, 0x01}, ErrIllegalData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadWriteMultipleRegisters(newTestBank(), tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestWriteTriggersHandler checks that bus writes reach the bank's write
// handlers, which is how the engine decodes drive reports.
func TestWriteTriggersHandler(t *testing.T) {
	bank := newTestBank()
	var seen uint16
	bank.OnWrite(0x1006, func(_, _, next uint16) uint16 {
		seen = next
		return next
	})

	if _, err := WriteSingleRegister(bank, []byte{0x10, 0x06, 0xC8, 0x64}); err != nil {
		t.Fatalf("WriteSingleRegister() error = %v", err)
	}
	if seen != 0xC864 {
		t.Errorf("handler saw 0x%04X, want 0xC864", seen)
	}
}
