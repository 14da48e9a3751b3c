package hoermann

import "time"

// RequestResult reports what happened to a command request.
type RequestResult uint8

// Request outcomes.
const (
	// Armed means the press values were written.
	Armed RequestResult = iota + 1

	// Skipped means the request's precondition was false.
	Skipped

	// Dropped means another command was still in flight.
	Dropped
)

// String returns a lower-case name of the result.
func (r RequestResult) String() string {
	switch r {
	case Armed:
		return "armed"
	case Skipped:
		return "skipped"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// RegisterWriter is the subset of RegisterService the Sequencer needs.
type RegisterWriter interface {
	Write(addr uint16, value uint16)
}

// Sequencer turns a Command into a press followed by a delayed release on
// the two command registers. At most one command is armed at a time.
type Sequencer struct {
	regs  RegisterWriter
	regA  uint16
	regB  uint16
	delay time.Duration

	armed   bool
	current CommandID
	armedAt time.Time
}

// NewSequencer creates a Sequencer writing to regA and regB.
func NewSequencer(regs RegisterWriter, regA, regB uint16, delay time.Duration) *Sequencer {
	if delay <= 0 {
		delay = DefaultKeypressDelay
	}
	return &Sequencer{
		regs:  regs,
		regA:  regA,
		regB:  regB,
		delay: delay,
	}
}

// Request arms id if cond holds and nothing is in flight.
func (q *Sequencer) Request(cond bool, id CommandID, now time.Time) RequestResult {
	if !cond || id == Waiting || !id.Valid() {
		return Skipped
	}
	if q.armed {
		return Dropped
	}

	cmd := id.Command()
	q.regs.Write(q.regA, cmd.PressA)
	q.regs.Write(q.regB, cmd.PressB)

	q.armed = true
	q.current = id
	q.armedAt = now
	return Armed
}

// Tick releases the armed command once the keypress delay has elapsed.
// It returns true when a release was written.
func (q *Sequencer) Tick(now time.Time) bool {
	if !q.armed || now.Sub(q.armedAt) < q.delay {
		return false
	}

	cmd := q.current.Command()
	q.regs.Write(q.regA, cmd.ReleaseA)
	q.regs.Write(q.regB, cmd.ReleaseB)

	q.armed = false
	q.current = Waiting
	return true
}

// Busy reports whether a command is armed.
func (q *Sequencer) Busy() bool {
	return q.armed
}

// Armed returns the armed command, if any.
func (q *Sequencer) Armed() (CommandID, bool) {
	return q.current, q.armed
}
