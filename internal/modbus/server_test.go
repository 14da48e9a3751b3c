package modbus

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/tbrandon/mbserver"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

func testModbusConfig() config.ModbusConfig {
	return config.ModbusConfig{
		Enabled:  true,
		Device:   "/dev/null",
		BaudRate: 57600,
		DataBits: 8,
		Parity:   "e",
		StopBits: 1,
		SlaveID:  2,
		Timeout:  500,
	}
}

func TestNewServer_Errors(t *testing.T) {
	if _, err := NewServer(nil, testModbusConfig(), nil); !errors.Is(err, ErrNoBank) {
		t.Errorf("nil bank: %v, want ErrNoBank", err)
	}

	cfg := testModbusConfig()
	cfg.Enabled = false
	if _, err := NewServer(newTestBank(), cfg, nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("disabled: %v, want ErrDisabled", err)
	}
}

func TestServer_Handlers(t *testing.T) {
	s, err := NewServer(newTestBank(), testModbusConfig(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer s.Close()

	tests := []struct {
		name     string
		function uint8
		data     []byte
		wantData []byte
		wantExc  *mbserver.Exception
	}{
		{"read", FuncReadHoldingRegisters, []byte{0x10, 0x01, 0x00, 0x01}, []byte{0x02, 0xAB, 0xCD}, &mbserver.Success},
		{"read unmapped", FuncReadHoldingRegisters, []byte{0x00, 0x00, 0x00, 0x01}, []byte{}, &mbserver.IllegalDataAddress},
		{"write", FuncWriteSingleRegister, []byte{0x10, 0x02, 0x00, 0x05}, []byte{0x10, 0x02, 0x00, 0x05}, &mbserver.Success},
		{"write malformed", FuncWriteMultipleRegisters, []byte{0x10, 0x02, 0x00, 0x01, 0x05, 0x00}, []byte{}, &mbserver.IllegalDataValue},
		{"coils unsupported", 0x01, []byte{0x00, 0x00, 0x00, 0x01}, []byte{}, &mbserver.IllegalFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				data []byte
				exc  *mbserver.Exception
			)
			frame := &mbserver.RTUFrame{Address: 2, Function: tt.function, Data: tt.data}
			if tt.function == 0x01 {
				data, exc = s.illegalFunction(frame)
			} else {
				handler := map[uint8]pduHandler{
					FuncReadHoldingRegisters:   ReadHoldingRegisters,
					FuncWriteSingleRegister:    WriteSingleRegister,
					FuncWriteMultipleRegisters: WriteMultipleRegisters,
				}[tt.function]
				data, exc = s.wrap(tt.function, handler)(frame)
			}

			if exc != tt.wantExc {
				t.Errorf("exception = %v, want %v", *exc, *tt.wantExc)
			}
			if string(data) != string(tt.wantData) {
				t.Errorf("data = % X, want % X", data, tt.wantData)
			}
		})
	}

	st := s.Stats()
	if st.Requests != 5 {
		t.Errorf("Requests = %d, want 5", st.Requests)
	}
	if st.Exceptions != 3 {
		t.Errorf("Exceptions = %d, want 3", st.Exceptions)
	}
	if st.LastRequest.IsZero() {
		t.Error("LastRequest should be set")
	}
}

func TestExceptionFor(t *testing.T) {
	tests := []struct {
		err  error
		want *mbserver.Exception
	}{
		{ErrIllegalAddress, &mbserver.IllegalDataAddress},
		{ErrIllegalData, &mbserver.IllegalDataValue},
		{errors.New("bank exploded"), &mbserver.SlaveDeviceFailure},
	}
	for _, tt := range tests {
		if got := exceptionFor(tt.err); got != tt.want {
			t.Errorf("exceptionFor(%v) = %v, want %v", tt.err, *got, *tt.want)
		}
	}
}

func TestSerialConfig(t *testing.T) {
	sc := serialConfig(testModbusConfig())
	if sc.Address != "/dev/null" || sc.BaudRate != 57600 || sc.DataBits != 8 || sc.StopBits != 1 {
		t.Errorf("serialConfig = %+v", sc)
	}
	if sc.Parity != "E" {
		t.Errorf("Parity = %q, want E", sc.Parity)
	}
	if sc.Timeout.Milliseconds() != 500 {
		t.Errorf("Timeout = %v, want 500ms", sc.Timeout)
	}
}

func rtuFrame(addr, function uint8, data ...byte) []byte {
	return (&mbserver.RTUFrame{Address: addr, Function: function, Data: data}).Bytes()
}

func TestServer_HandleFrame(t *testing.T) {
	tests := []struct {
		name      string
		packet    []byte
		wantReply []byte
		wantOK    bool
	}{
		{
			name:      "own address",
			packet:    rtuFrame(2, FuncReadHoldingRegisters, 0x10, 0x01, 0x00, 0x01),
			wantReply: rtuFrame(2, FuncReadHoldingRegisters, 0x02, 0xAB, 0xCD),
			wantOK:    true,
		},
		{
			name:      "own address exception",
			packet:    rtuFrame(2, FuncReadHoldingRegisters, 0x00, 0x00, 0x00, 0x01),
			wantReply: rtuFrame(2, FuncReadHoldingRegisters|0x80, 0x02),
			wantOK:    true,
		},
		{
			name:      "unknown function",
			packet:    rtuFrame(2, 0x2B, 0x0E, 0x01, 0x00),
			wantReply: rtuFrame(2, 0x2B|0x80, 0x01),
			wantOK:    true,
		},
		{
			name:   "other slave",
			packet: rtuFrame(7, FuncReadHoldingRegisters, 0x10, 0x01, 0x00, 0x01),
		},
		{
			name:   "bad crc",
			packet: []byte{0x02, 0x03, 0x10, 0x01, 0x00, 0x01, 0x00, 0x00},
		},
		{
			name:   "too short",
			packet: []byte{0x02, 0x03},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(newTestBank(), testModbusConfig(), nil)
			if err != nil {
				t.Fatalf("NewServer() error = %v", err)
			}

			reply, ok := s.handleFrame(tt.packet)
			if ok != tt.wantOK {
				t.Fatalf("handleFrame() ok = %v, want %v", ok, tt.wantOK)
			}
			if !bytes.Equal(reply, tt.wantReply) {
				t.Errorf("reply = % X, want % X", reply, tt.wantReply)
			}
		})
	}
}

func TestServer_HandleFrame_OtherSlaveLeavesBankAlone(t *testing.T) {
	bank := newTestBank()
	s, err := NewServer(bank, testModbusConfig(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if _, ok := s.handleFrame(rtuFrame(9, FuncWriteSingleRegister, 0x10, 0x02, 0x00, 0x05)); ok {
		t.Error("answered a frame for slave 9")
	}
	if v := bank.Read(0x1002); v != 0 {
		t.Errorf("0x1002 = 0x%04X, want untouched 0", v)
	}

	st := s.Stats()
	if st.Ignored != 1 || st.Requests != 0 {
		t.Errorf("Ignored/Requests = %d/%d, want 1/0", st.Ignored, st.Requests)
	}
}

func TestServer_HandleFrame_Broadcast(t *testing.T) {
	bank := newTestBank()
	s, err := NewServer(bank, testModbusConfig(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if _, ok := s.handleFrame(rtuFrame(0, FuncWriteSingleRegister, 0x10, 0x02, 0x00, 0x05)); ok {
		t.Error("answered a broadcast frame")
	}
	if v := bank.Read(0x1002); v != 0x0005 {
		t.Errorf("0x1002 = 0x%04X, want broadcast write applied", v)
	}
}

// fakePort delivers queued packets one per Read and records writes.
type fakePort struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakePort() *fakePort {
	return &fakePort{in: make(chan []byte, 4), closed: make(chan struct{})}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case pkt := <-p.in:
		return copy(b, pkt), nil
	case <-p.closed:
		return 0, io.EOF
	case <-time.After(10 * time.Millisecond):
		return 0, serial.ErrTimeout
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes...)
}

func TestServer_ListenAnswersOwnAddressOnly(t *testing.T) {
	port := newFakePort()
	s, err := NewServer(newTestBank(), testModbusConfig(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	s.open = func(*serial.Config) (io.ReadWriteCloser, error) { return port, nil }

	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer s.Close()

	port.in <- rtuFrame(5, FuncReadHoldingRegisters, 0x10, 0x01, 0x00, 0x01)
	port.in <- rtuFrame(2, FuncReadHoldingRegisters, 0x10, 0x01, 0x00, 0x01)

	deadline := time.Now().Add(2 * time.Second)
	for len(port.written()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	writes := port.written()
	if len(writes) != 1 {
		t.Fatalf("got %d replies, want 1", len(writes))
	}
	if writes[0][0] != 2 {
		t.Errorf("reply address = %d, want 2", writes[0][0])
	}
	if got := s.Stats().Ignored; got != 1 {
		t.Errorf("Ignored = %d, want 1", got)
	}
}

func TestServer_ListenOpenError(t *testing.T) {
	s, err := NewServer(newTestBank(), testModbusConfig(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	openErr := errors.New("no such device")
	s.open = func(*serial.Config) (io.ReadWriteCloser, error) { return nil, openErr }

	if err := s.Listen(); !errors.Is(err, openErr) {
		t.Errorf("Listen() error = %v, want %v", err, openErr)
	}
	s.Close()
}
