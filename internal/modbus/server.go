package modbus

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"
	"github.com/tbrandon/mbserver"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

// pduHandler is the shape of the pure request handlers in pdu.go.
type pduHandler func(bank Bank, data []byte) ([]byte, error)

// frameHandler answers one decoded request frame.
type frameHandler func(frame mbserver.Framer) ([]byte, *mbserver.Exception)

// unsupportedFunctions are answered with exception 1.
var unsupportedFunctions = []uint8{0x01, 0x02, 0x04, 0x05, 0x0F}

// broadcastAddress frames are executed but never answered.
const broadcastAddress = 0

// frameBufferSize holds the largest RTU frame.
const frameBufferSize = 256

// Logger is the logging interface used by the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Stats counts requests served since start.
type Stats struct {
	Requests    uint64    `json:"requests"`
	Exceptions  uint64    `json:"exceptions"`
	Ignored     uint64    `json:"ignored"`
	LastRequest time.Time `json:"last_request,omitempty"`
}

// Server is the RTU slave endpoint of the bridge.
//
// Frames are decoded with mbserver's RTU framer and only those addressed
// to the configured slave ID are answered. The bus is shared, so a reply
// to another slave's request would collide with that slave's own reply.
//
// Thread Safety:
//   - Requests are served from a single goroutine; Bank implementations
//     must still be safe for concurrent use because the engine touches
//     the bank from its own goroutines.
type Server struct {
	bank     Bank
	cfg      config.ModbusConfig
	logger   Logger
	handlers map[uint8]frameHandler
	open     func(*serial.Config) (io.ReadWriteCloser, error)

	port io.ReadWriteCloser
	done chan struct{}
	wg   sync.WaitGroup

	requests    atomic.Uint64
	exceptions  atomic.Uint64
	ignored     atomic.Uint64
	lastRequest atomic.Int64 // unix nanos

	closeOnce sync.Once
}

// NewServer creates a slave serving bank. Call Listen to open the port.
//
// Parameters:
//   - bank: Register store, normally the engine's hoermann.RegisterBank
//   - cfg: Modbus section of config.yaml
//   - logger: Optional
//
// Returns:
//   - *Server: Server with handlers registered
//   - error: ErrNoBank or ErrDisabled
func NewServer(bank Bank, cfg config.ModbusConfig, logger Logger) (*Server, error) {
	if bank == nil {
		return nil, ErrNoBank
	}
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	s := &Server{
		bank:     bank,
		cfg:      cfg,
		logger:   logger,
		open:     openSerial,
		done:     make(chan struct{}),
		handlers: make(map[uint8]frameHandler),
	}

	s.handlers[FuncReadHoldingRegisters] = s.wrap(FuncReadHoldingRegisters, ReadHoldingRegisters)
	s.handlers[FuncWriteSingleRegister] = s.wrap(FuncWriteSingleRegister, WriteSingleRegister)
	s.handlers[FuncWriteMultipleRegisters] = s.wrap(FuncWriteMultipleRegisters, WriteMultipleRegisters)
	s.handlers[FuncReadWriteMultiple] = s.wrap(FuncReadWriteMultiple, ReadWriteMultipleRegisters)
	for _, fc := range unsupportedFunctions {
		s.handlers[fc] = s.illegalFunction
	}

	return s, nil
}

func openSerial(cfg *serial.Config) (io.ReadWriteCloser, error) {
	return serial.Open(cfg)
}

// Listen opens the serial port and starts serving. It returns once the
// port is open; requests are served in the background until Close.
func (s *Server) Listen() error {
	port, err := s.open(serialConfig(s.cfg))
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.cfg.Device, err)
	}
	s.port = port

	s.wg.Add(1)
	go s.acceptFrames(port)

	s.logInfo("modbus slave listening",
		"device", s.cfg.Device,
		"baud", s.cfg.BaudRate,
		"format", fmt.Sprintf("%d%s%d", s.cfg.DataBits, s.cfg.Parity, s.cfg.StopBits),
		"slave_id", s.cfg.SlaveID,
	)
	return nil
}

// Close stops serving and closes the serial port.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.port != nil {
			if err := s.port.Close(); err != nil {
				s.logWarn("closing modbus port", "error", err)
			}
		}
		s.wg.Wait()
	})
}

// Stats returns request counters.
func (s *Server) Stats() Stats {
	st := Stats{
		Requests:   s.requests.Load(),
		Exceptions: s.exceptions.Load(),
		Ignored:    s.ignored.Load(),
	}
	if ns := s.lastRequest.Load(); ns != 0 {
		st.LastRequest = time.Unix(0, ns)
	}
	return st
}

// acceptFrames reads one RTU frame per read, the line timeout delimiting
// frames, and writes back the reply if there is one.
func (s *Server) acceptFrames(port io.ReadWriter) {
	defer s.wg.Done()

	buf := make([]byte, frameBufferSize)
	for {
		n, err := port.Read(buf)
		select {
		case <-s.done:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				continue
			}
			s.logWarn("modbus port read failed, slave stopped", "error", err)
			return
		}
		if n == 0 {
			continue
		}

		reply, ok := s.handleFrame(buf[:n])
		if !ok {
			continue
		}
		if _, err := port.Write(reply); err != nil {
			s.logWarn("modbus reply failed", "error", err)
		}
	}
}

// handleFrame decodes packet and serves it when it is addressed to this
// slave. It returns the encoded reply and whether one must be sent.
func (s *Server) handleFrame(packet []byte) ([]byte, bool) {
	frame, err := mbserver.NewRTUFrame(packet)
	if err != nil {
		s.logDebug("modbus frame dropped", "error", err, "length", len(packet))
		return nil, false
	}

	addr := frame.Address
	if addr != broadcastAddress && int(addr) != s.cfg.SlaveID {
		s.ignored.Add(1)
		return nil, false
	}

	h, ok := s.handlers[frame.Function]
	if !ok {
		h = s.illegalFunction
	}
	data, exc := h(frame)

	if addr == broadcastAddress {
		return nil, false
	}
	reply := frame.Copy()
	reply.SetData(data)
	if exc != &mbserver.Success {
		reply.SetException(exc)
	}
	return reply.Bytes(), true
}

// wrap adapts a pure PDU handler to a frame handler.
func (s *Server) wrap(fc uint8, h pduHandler) frameHandler {
	return func(frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		return s.serve(fc, h, frame.GetData())
	}
}

func (s *Server) serve(fc uint8, h pduHandler, data []byte) ([]byte, *mbserver.Exception) {
	s.requests.Add(1)
	s.lastRequest.Store(time.Now().UnixNano())

	resp, err := h(s.bank, data)
	if err != nil {
		s.exceptions.Add(1)
		s.logDebug("modbus request rejected", "function", fc, "error", err)
		return []byte{}, exceptionFor(err)
	}
	return resp, &mbserver.Success
}

func (s *Server) illegalFunction(frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	s.requests.Add(1)
	s.exceptions.Add(1)
	s.logDebug("modbus function not supported", "function", frame.GetFunction())
	return []byte{}, &mbserver.IllegalFunction
}

// exceptionFor maps handler errors to Modbus exceptions. mbserver compares
// exceptions by pointer, so the package-level values must be returned.
func exceptionFor(err error) *mbserver.Exception {
	switch {
	case errors.Is(err, ErrIllegalData):
		return &mbserver.IllegalDataValue
	case errors.Is(err, ErrIllegalAddress):
		return &mbserver.IllegalDataAddress
	default:
		return &mbserver.SlaveDeviceFailure
	}
}

func serialConfig(cfg config.ModbusConfig) *serial.Config {
	return &serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   strings.ToUpper(cfg.Parity),
		Timeout:  time.Duration(cfg.Timeout) * time.Millisecond,
	}
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
