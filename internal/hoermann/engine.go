package hoermann

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultTickInterval is how often Run advances the sequencer and checks
// for staleness.
const DefaultTickInterval = 50 * time.Millisecond

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	// Registers is the bus-facing register service. Required.
	Registers RegisterService

	// Map locates the modeled registers. Zero value means DefaultRegisterMap.
	Map RegisterMap

	// Profile holds the decoding parameters. Nil means DefaultProfile.
	Profile *Profile

	// TickInterval is the Run loop period. Default: 50ms.
	TickInterval time.Duration

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time

	// Logger is optional.
	Logger Logger
}

// seek tracks an in-progress SetPosition.
type seek struct {
	active  bool
	target  float64
	opening bool
	started bool
}

// Engine owns the door state, the decoder and the command sequencer.
//
// Bus callbacks, Tick and the door API all run under one mutex.
type Engine struct {
	mu sync.Mutex

	regs    RegisterService
	regMap  RegisterMap
	profile Profile
	state   *DoorState
	decoder *Decoder
	seq     *Sequencer
	seek    seek

	tickInterval time.Duration
	now          func() time.Time
	logger       Logger
	setupOnce    sync.Once
}

// NewEngine creates an Engine. Call Setup before the transport starts.
//
// Parameters:
//   - opts: Engine configuration
//
// Returns:
//   - *Engine: Engine ready for Setup
//   - error: If the register service is missing or the map/profile is invalid
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Registers == nil {
		return nil, ErrNoRegisterService
	}

	regMap := opts.Map
	if regMap == (RegisterMap{}) {
		regMap = DefaultRegisterMap()
	}
	if err := regMap.Validate(); err != nil {
		return nil, err
	}

	profile := DefaultProfile()
	if opts.Profile != nil {
		profile = *opts.Profile
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		regs:         opts.Registers,
		regMap:       regMap,
		profile:      profile,
		state:        NewDoorState(),
		decoder:      NewDecoder(profile),
		seq:          NewSequencer(opts.Registers, regMap.CommandA(), regMap.CommandB(), profile.KeypressDelay),
		tickInterval: tick,
		now:          clock,
		logger:       opts.Logger,
	}, nil
}

// Setup declares the modeled registers and binds the write handlers.
// It is safe to call more than once.
func (e *Engine) Setup() {
	e.setupOnce.Do(func() {
		for _, r := range e.regMap.Ranges() {
			e.regs.Declare(r)
		}
		idle := Waiting.Command()
		e.regs.Write(e.regMap.CommandA(), idle.PressA)
		e.regs.Write(e.regMap.CommandB(), idle.PressB)

		e.regs.OnWrite(e.regMap.Position(), e.onPositionWrite)
		e.regs.OnWrite(e.regMap.Status(), e.onStatusWrite)
		e.regs.OnWrite(e.regMap.LightRelay(), e.onLightRelayWrite)
		e.regs.OnWrite(e.regMap.Counter, e.onCounterWrite)
	})
}

func (e *Engine) onPositionWrite(_, _, next uint16) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.decoder.DecodePosition(e.state, next, now)
	e.evaluateSeekLocked(now)
	return next
}

func (e *Engine) onStatusWrite(_, _, next uint16) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	before := e.state.Motion()
	e.decoder.DecodeStatus(e.state, next, now)
	if after := e.state.Motion(); after != before {
		e.logDebug("door motion changed", "from", before.String(), "to", after.String(), "raw", next)
	}
	e.evaluateSeekLocked(now)
	return next
}

func (e *Engine) onLightRelayWrite(_, _, next uint16) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.decoder.DecodeLightRelay(e.state, next, e.now())
	return next
}

func (e *Engine) onCounterWrite(_, _, next uint16) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	id, dispatch := e.decoder.DecodeCounter(e.state, next, now)
	if dispatch {
		result := e.seq.Request(true, id, now)
		e.logInfo("remote command", "command", id.String(), "result", result.String())
	}
	return next
}

// request arms id under the engine lock and logs the outcome.
func (e *Engine) request(cond bool, id CommandID) RequestResult {
	result := e.seq.Request(cond, id, e.now())
	if result == Dropped {
		e.logWarn("command dropped, another command in flight", "command", id.String())
	} else {
		e.logDebug("command requested", "command", id.String(), "result", result.String())
	}
	return result
}

// OpenDoor presses open. The press is sent whatever the reported motion,
// since that may be stale or not yet known.
func (e *Engine) OpenDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(true, OpenDoor)
}

// CloseDoor presses close.
func (e *Engine) CloseDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(true, CloseDoor)
}

// StopDoor stops a moving door with an impulse. A door at rest is left alone.
func (e *Engine) StopDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(e.state.Motion().Moving(), Impulse)
}

// ImpulseDoor sends an unconditional impulse.
func (e *Engine) ImpulseDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(true, Impulse)
}

// HalfPositionDoor moves the door to the half-open position.
func (e *Engine) HalfPositionDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(true, OpenHalf)
}

// VentilationPositionDoor moves the door to the ventilation position.
func (e *Engine) VentilationPositionDoor() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek = seek{}
	return e.request(true, VentPosition)
}

// ToggleLight toggles the drive's lamp.
func (e *Engine) ToggleLight() RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.request(true, ToggleLamp)
}

// TurnLight switches the lamp to on. Nothing is sent if it already is.
func (e *Engine) TurnLight(on bool) RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.request(on != e.state.LightOn(), ToggleLamp)
}

// SetPosition moves the door to pct percent.
//
// The clamped target is stored as the goto position. 0 and 100 map to
// CloseDoor and OpenDoor. Other targets open or close the door and stop it
// with an impulse once the reported position reaches the target.
func (e *Engine) SetPosition(pct float64) RequestResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	pct = clampPercent(pct)
	e.state.SetGotoPosition(pct)
	switch {
	case pct <= 0:
		e.seek = seek{}
		return e.request(true, CloseDoor)
	case pct >= 100:
		e.seek = seek{}
		return e.request(true, OpenDoor)
	}

	cur := e.state.CurrentPosition()
	if math.Abs(cur-pct) <= e.profile.SeekTolerance {
		e.seek = seek{}
		return Skipped
	}

	opening := pct > cur
	id := CloseDoor
	if opening {
		id = OpenDoor
	}
	result := e.request(true, id)
	if result == Armed {
		e.seek = seek{active: true, target: pct, opening: opening}
		e.logInfo("position seek started", "target", pct, "from", cur)
	}
	return result
}

// evaluateSeekLocked stops the door once a seek reaches its target.
func (e *Engine) evaluateSeekLocked(now time.Time) {
	if !e.seek.active {
		return
	}

	moving := e.state.Motion().Moving()
	if moving {
		e.seek.started = true
	}

	cur := e.state.CurrentPosition()
	var reached bool
	if e.seek.opening {
		reached = cur >= e.seek.target-e.profile.SeekTolerance
	} else {
		reached = cur <= e.seek.target+e.profile.SeekTolerance
	}

	switch {
	case reached && moving:
		if e.seq.Request(true, Impulse, now) == Armed {
			e.logInfo("position seek reached target", "target", e.seek.target, "position", cur)
			e.seek = seek{}
		}
	case reached, e.seek.started && !moving:
		e.seek = seek{}
	}
}

// Tick releases expired keypresses, checks staleness and advances a seek.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seq.Tick(now) {
		e.logDebug("command released")
	}

	if e.state.Valid() && e.state.ResponseAge(now) > e.profile.DeadReportTimeout {
		e.state.SetValid(false)
		e.logWarn("no report from drive, door state is stale",
			"timeout", e.profile.DeadReportTimeout.String())
	}

	e.evaluateSeekLocked(now)
}

// Run calls Tick every TickInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(e.now())
		}
	}
}

// Snapshot returns a copy of the door state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// Drain returns a copy of the door state and clears both latches.
func (e *Engine) Drain() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state.Snapshot()
	e.state.ClearChanged()
	e.state.ClearDebug()
	return s
}

// ClearChanged acknowledges the changed latch.
func (e *Engine) ClearChanged() {
	e.mu.Lock()
	e.state.ClearChanged()
	e.mu.Unlock()
}

// ClearDebug acknowledges the debug latch.
func (e *Engine) ClearDebug() {
	e.mu.Lock()
	e.state.ClearDebug()
	e.mu.Unlock()
}

// Busy reports whether a command is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.Busy()
}

// Seeking reports whether a SetPosition is in progress and its target.
func (e *Engine) Seeking() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seek.target, e.seek.active
}

// RegisterMap returns the register layout in use.
func (e *Engine) RegisterMap() RegisterMap {
	return e.regMap
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
