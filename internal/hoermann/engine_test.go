package hoermann

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func newTestEngine(t *testing.T) (*Engine, *RegisterBank, *fakeClock) {
	t.Helper()

	bank := NewRegisterBank()
	clock := newFakeClock()
	e, err := NewEngine(EngineOptions{
		Registers: bank,
		Clock:     clock.Now,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	e.Setup()
	return e, bank, clock
}

// driveWrite simulates the drive writing a register.
func driveWrite(t *testing.T, bank *RegisterBank, addr, value uint16) {
	t.Helper()
	if err := bank.Apply(addr, value); err != nil {
		t.Fatalf("Apply(0x%04X, 0x%04X) error = %v", addr, value, err)
	}
}

func TestNewEngine_Errors(t *testing.T) {
	badProfile := DefaultProfile()
	badProfile.KeypressDelay = 0

	tests := []struct {
		name    string
		opts    EngineOptions
		wantErr error
	}{
		{"no registers", EngineOptions{}, ErrNoRegisterService},
		{"bad profile", EngineOptions{Registers: NewRegisterBank(), Profile: &badProfile}, ErrInvalidProfile},
		{"overlapping map", EngineOptions{
			Registers: NewRegisterBank(),
			Map:       RegisterMap{CommandBase: 0x10, Counter: 0x11, StatusBase: 0x40},
		}, ErrInvalidRegisterMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewEngine() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_SetupDeclaresRegisters(t *testing.T) {
	e, bank, _ := newTestEngine(t)
	m := e.RegisterMap()

	for _, r := range m.Ranges() {
		if _, err := bank.ReadRange(r.Start, r.Count); err != nil {
			t.Errorf("ReadRange(0x%04X, %d) error = %v", r.Start, r.Count, err)
		}
	}
	if got := bank.Read(m.CommandA()); got != 0 {
		t.Errorf("command A = 0x%04X, want idle 0", got)
	}

	e.Setup()
	if _, err := bank.ReadRange(m.CommandBase, commandBlockSize); err != nil {
		t.Errorf("second Setup() broke the bank: %v", err)
	}
}

func TestEngine_DecodesDriveWrites(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Status(), 0x1020)
	driveWrite(t, bank, m.Position(), 0xC8C8)

	snap := e.Snapshot()
	if snap.Motion != Open {
		t.Errorf("Motion = %v, want open", snap.Motion)
	}
	if !snap.LightOn {
		t.Error("LightOn = false, want true")
	}
	if snap.CurrentPosition != 100 {
		t.Errorf("CurrentPosition = %v, want 100", snap.CurrentPosition)
	}
	if !snap.Valid || !snap.Changed {
		t.Errorf("Valid/Changed = %v/%v, want true/true", snap.Valid, snap.Changed)
	}
	if !snap.LastResponse.Equal(clock.Now()) {
		t.Errorf("LastResponse = %v, want %v", snap.LastResponse, clock.Now())
	}
}

func TestEngine_IgnoresUnknownAddresses(t *testing.T) {
	e, bank, _ := newTestEngine(t)
	before := e.Snapshot()

	if err := bank.Apply(0x0001, 0xFFFF); !errors.Is(err, ErrUnmappedRegister) {
		t.Errorf("Apply(undeclared) error = %v, want ErrUnmappedRegister", err)
	}
	driveWrite(t, bank, e.RegisterMap().StatusBase, 0xFFFF)

	after := e.Snapshot()
	if after != before {
		t.Errorf("state changed on unmodeled write: %+v -> %+v", before, after)
	}
}

func TestEngine_OpenDoorPressRelease(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()
	open := OpenDoor.Command()

	if got := e.OpenDoor(); got != Armed {
		t.Fatalf("OpenDoor() = %v, want armed", got)
	}
	if bank.Read(m.CommandA()) != open.PressA || bank.Read(m.CommandB()) != open.PressB {
		t.Fatalf("command registers = 0x%04X/0x%04X, want press values", bank.Read(m.CommandA()), bank.Read(m.CommandB()))
	}

	e.Tick(clock.Advance(50 * time.Millisecond))
	if !e.Busy() {
		t.Fatal("released after 50ms")
	}

	e.Tick(clock.Advance(50 * time.Millisecond))
	if e.Busy() {
		t.Fatal("not released after 100ms")
	}
	if bank.Read(m.CommandA()) != open.ReleaseA || bank.Read(m.CommandB()) != open.ReleaseB {
		t.Errorf("command registers = 0x%04X/0x%04X, want release values", bank.Read(m.CommandA()), bank.Read(m.CommandB()))
	}
}

func TestEngine_Conditions(t *testing.T) {
	tests := []struct {
		name   string
		status uint16
		call   func(e *Engine) RequestResult
		want   RequestResult
	}{
		{"open when closed", 0x0040, (*Engine).OpenDoor, Armed},
		{"open when open", 0x0020, (*Engine).OpenDoor, Armed},
		{"open when opening", 0x0001, (*Engine).OpenDoor, Armed},
		{"close when open", 0x0020, (*Engine).CloseDoor, Armed},
		{"close when closing", 0x0002, (*Engine).CloseDoor, Armed},
		{"close when closed", 0x0040, (*Engine).CloseDoor, Armed},
		{"stop when closed", 0x0040, (*Engine).StopDoor, Skipped},
		{"stop when opening", 0x0001, (*Engine).StopDoor, Armed},
		{"stop when moving to vent", 0x0009, (*Engine).StopDoor, Armed},
		{"impulse always", 0x0040, (*Engine).ImpulseDoor, Armed},
		{"half when half", 0x0080, (*Engine).HalfPositionDoor, Armed},
		{"half when closed", 0x0040, (*Engine).HalfPositionDoor, Armed},
		{"vent when vent", 0x0010, (*Engine).VentilationPositionDoor, Armed},
		{"vent when open", 0x0020, (*Engine).VentilationPositionDoor, Armed},
		{"toggle light", 0x0040, (*Engine).ToggleLight, Armed},
		{"light on when off", 0x0040, func(e *Engine) RequestResult { return e.TurnLight(true) }, Armed},
		{"light on when on", 0x1040, func(e *Engine) RequestResult { return e.TurnLight(true) }, Skipped},
		{"light off when on", 0x1040, func(e *Engine) RequestResult { return e.TurnLight(false) }, Armed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, bank, _ := newTestEngine(t)
			driveWrite(t, bank, e.RegisterMap().Status(), tt.status)
			if got := tt.call(e); got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_DropsWhileBusy(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	e.ToggleLight()
	if got := e.ImpulseDoor(); got != Dropped {
		t.Errorf("ImpulseDoor() while busy = %v, want dropped", got)
	}
	if got := bank.Read(m.CommandB()); got != ToggleLamp.Command().PressB {
		t.Errorf("command B = 0x%04X, want lamp press to remain", got)
	}

	e.Tick(clock.Advance(DefaultKeypressDelay))
	if got := e.ImpulseDoor(); got != Armed {
		t.Errorf("ImpulseDoor() after release = %v, want armed", got)
	}
}

func TestEngine_Staleness(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Status(), 0x0040)

	e.Tick(clock.Advance(DefaultDeadReportTimeout))
	if !e.Snapshot().Valid {
		t.Fatal("invalid at exactly the timeout")
	}

	e.Tick(clock.Advance(time.Millisecond))
	snap := e.Snapshot()
	if snap.Valid {
		t.Fatal("still valid after the timeout")
	}

	driveWrite(t, bank, m.LightRelay(), 0)
	snap = e.Snapshot()
	if !snap.Valid {
		t.Error("not valid after a fresh drive write")
	}
	if !snap.LastResponse.Equal(clock.Now()) {
		t.Errorf("LastResponse = %v, want %v", snap.LastResponse, clock.Now())
	}
}

func TestEngine_RemoteCounterCommand(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Counter, 0x0601)
	if e.Busy() {
		t.Fatal("first counter value dispatched a command")
	}

	driveWrite(t, bank, m.Counter, 0x0703)
	if got := bank.Read(m.CommandB()); got != Impulse.Command().PressB {
		t.Fatalf("command B = 0x%04X, want impulse press", got)
	}

	e.Tick(clock.Advance(DefaultKeypressDelay))
	driveWrite(t, bank, m.Counter, 0x0703)
	if e.Busy() {
		t.Error("duplicate counter dispatched again")
	}

	driveWrite(t, bank, m.Counter, 0x0803)
	if !e.Busy() {
		t.Error("new counter did not dispatch")
	}
}

func TestEngine_SetPositionSeek(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Status(), 0x0040)
	e.ClearChanged()
	if got := e.SetPosition(50); got != Armed {
		t.Fatalf("SetPosition(50) = %v, want armed", got)
	}
	if got := bank.Read(m.CommandB()); got != OpenDoor.Command().PressB {
		t.Fatalf("command B = 0x%04X, want open press", got)
	}
	if target, ok := e.Seeking(); !ok || target != 50 {
		t.Fatalf("Seeking() = %v/%v, want 50/true", target, ok)
	}
	snap := e.Snapshot()
	if snap.GotoPosition != 50 || !snap.Changed {
		t.Errorf("GotoPosition/Changed = %v/%v, want 50/true", snap.GotoPosition, snap.Changed)
	}

	e.Tick(clock.Advance(DefaultKeypressDelay))
	driveWrite(t, bank, m.Status(), 0x0001)
	driveWrite(t, bank, m.Position(), 0xC850) // 40 %
	if e.Busy() {
		t.Fatal("stopped before reaching the target")
	}

	driveWrite(t, bank, m.Position(), 0xC862) // 49 %
	if got := bank.Read(m.CommandB()); got != Impulse.Command().PressB {
		t.Errorf("command B = 0x%04X, want impulse press at target", got)
	}
	if _, ok := e.Seeking(); ok {
		t.Error("seek still active after stop")
	}
}

func TestEngine_SetPositionEdges(t *testing.T) {
	tests := []struct {
		name   string
		status uint16
		pos    uint16
		target float64
		want   RequestResult
		wantB  uint16
		goTo   float64
	}{
		{"zero closes", 0x0020, 0xC8C8, 0, Armed, CloseDoor.Command().PressB, 0},
		{"zero when closed", 0x0040, 0x0000, 0, Armed, CloseDoor.Command().PressB, 0},
		{"hundred opens", 0x0040, 0x0000, 100, Armed, OpenDoor.Command().PressB, 100},
		{"hundred when open", 0x0020, 0xC8C8, 100, Armed, OpenDoor.Command().PressB, 100},
		{"clamped above", 0x0040, 0x0000, 180, Armed, OpenDoor.Command().PressB, 100},
		{"within tolerance", 0x0000, 0x0050, 41, Skipped, 0, 41},
		{"below current closes", 0x0000, 0x0050, 10, Armed, CloseDoor.Command().PressB, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, bank, _ := newTestEngine(t)
			m := e.RegisterMap()
			driveWrite(t, bank, m.Status(), tt.status)
			driveWrite(t, bank, m.Position(), tt.pos)

			if got := e.SetPosition(tt.target); got != tt.want {
				t.Fatalf("SetPosition(%v) = %v, want %v", tt.target, got, tt.want)
			}
			if got := bank.Read(m.CommandB()); got != tt.wantB {
				t.Errorf("command B = 0x%04X, want 0x%04X", got, tt.wantB)
			}
			if got := e.Snapshot().GotoPosition; got != tt.goTo {
				t.Errorf("GotoPosition = %v, want %v", got, tt.goTo)
			}
		})
	}
}

func TestEngine_CommandsBeforeFirstStatus(t *testing.T) {
	tests := []struct {
		name  string
		call  func(e *Engine) RequestResult
		wantB uint16
	}{
		{"close", (*Engine).CloseDoor, CloseDoor.Command().PressB},
		{"open", (*Engine).OpenDoor, OpenDoor.Command().PressB},
		{"half", (*Engine).HalfPositionDoor, OpenHalf.Command().PressB},
		{"vent", (*Engine).VentilationPositionDoor, VentPosition.Command().PressB},
		{"position zero", func(e *Engine) RequestResult { return e.SetPosition(0) }, CloseDoor.Command().PressB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, bank, _ := newTestEngine(t)
			if e.Snapshot().Valid {
				t.Fatal("fresh engine reports valid state")
			}
			if got := tt.call(e); got != Armed {
				t.Fatalf("result = %v, want armed", got)
			}
			if got := bank.Read(e.RegisterMap().CommandB()); got != tt.wantB {
				t.Errorf("command B = 0x%04X, want 0x%04X", got, tt.wantB)
			}
		})
	}
}

func TestEngine_StopCancelsSeek(t *testing.T) {
	e, bank, clock := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Status(), 0x0040)
	e.SetPosition(60)
	e.Tick(clock.Advance(DefaultKeypressDelay))
	driveWrite(t, bank, m.Status(), 0x0001)

	if got := e.StopDoor(); got != Armed {
		t.Fatalf("StopDoor() = %v, want armed", got)
	}
	if _, ok := e.Seeking(); ok {
		t.Error("seek still active after StopDoor")
	}
}

func TestEngine_Drain(t *testing.T) {
	e, bank, _ := newTestEngine(t)
	m := e.RegisterMap()

	driveWrite(t, bank, m.Status(), 0x0077)
	snap := e.Drain()
	if !snap.DebugPending {
		t.Error("Drain() snapshot lost the debug latch")
	}

	snap = e.Snapshot()
	if snap.Changed || snap.DebugPending {
		t.Errorf("latches after Drain = %v/%v, want cleared", snap.Changed, snap.DebugPending)
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	bank := NewRegisterBank()
	e, err := NewEngine(EngineOptions{Registers: bank, TickInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	e.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.OpenDoor()
	deadline := time.After(2 * time.Second)
	for e.Busy() {
		select {
		case <-deadline:
			t.Fatal("Run did not release the command")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
