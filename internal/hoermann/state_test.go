package hoermann

import (
	"math"
	"testing"
	"time"
)

func TestNewDoorState(t *testing.T) {
	s := NewDoorState().Snapshot()

	if s.Motion != Closed {
		t.Errorf("Motion = %v, want closed", s.Motion)
	}
	if s.Valid {
		t.Error("Valid = true, want false")
	}
	if s.Changed {
		t.Error("Changed = true, want false")
	}
	if s.DebugMessage != "initial" {
		t.Errorf("DebugMessage = %q, want %q", s.DebugMessage, "initial")
	}
	if s.DebugPending {
		t.Error("DebugPending = true, want false")
	}
	if s.CurrentPosition != 0 || s.TargetPosition != 0 || s.GotoPosition != 0 {
		t.Errorf("positions = %v/%v/%v, want 0/0/0", s.CurrentPosition, s.TargetPosition, s.GotoPosition)
	}
}

func TestDoorState_PositionClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{150, 100},
		{math.NaN(), 0},
		{math.Inf(1), 100},
	}

	for _, tt := range tests {
		s := NewDoorState()
		s.SetCurrentPosition(tt.in)
		s.SetTargetPosition(tt.in)
		s.SetGotoPosition(tt.in)
		snap := s.Snapshot()
		if snap.CurrentPosition != tt.want {
			t.Errorf("SetCurrentPosition(%v) stored %v, want %v", tt.in, snap.CurrentPosition, tt.want)
		}
		if snap.TargetPosition != tt.want {
			t.Errorf("SetTargetPosition(%v) stored %v, want %v", tt.in, snap.TargetPosition, tt.want)
		}
		if snap.GotoPosition != tt.want {
			t.Errorf("SetGotoPosition(%v) stored %v, want %v", tt.in, snap.GotoPosition, tt.want)
		}
	}
}

func TestDoorState_ChangedOnlyOnRealChange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *DoorState)
		want   bool
	}{
		{"same motion", func(s *DoorState) { s.SetMotion(Closed) }, false},
		{"new motion", func(s *DoorState) { s.SetMotion(Opening) }, true},
		{"same light", func(s *DoorState) { s.SetLight(false) }, false},
		{"light on", func(s *DoorState) { s.SetLight(true) }, true},
		{"relay on", func(s *DoorState) { s.SetRelay(true) }, true},
		{"same position", func(s *DoorState) { s.SetCurrentPosition(0) }, false},
		{"clamped to same", func(s *DoorState) { s.SetCurrentPosition(-10) }, false},
		{"new position", func(s *DoorState) { s.SetCurrentPosition(10) }, true},
		{"same goto", func(s *DoorState) { s.SetGotoPosition(0) }, false},
		{"goto clamped to same", func(s *DoorState) { s.SetGotoPosition(-3) }, false},
		{"new goto", func(s *DoorState) { s.SetGotoPosition(40) }, true},
		{"valid", func(s *DoorState) { s.SetValid(true) }, false},
		{"response", func(s *DoorState) { s.RecordResponse(time.Now()) }, false},
		{"debug", func(s *DoorState) { s.SetDebug("x") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDoorState()
			tt.mutate(s)
			if got := s.Changed(); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoorState_ClearLatches(t *testing.T) {
	s := NewDoorState()
	s.SetMotion(Open)
	s.SetDebug("bus hiccup")

	snap := s.Snapshot()
	if !snap.Changed || !snap.DebugPending {
		t.Fatalf("latches = %v/%v, want both raised", snap.Changed, snap.DebugPending)
	}

	s.ClearChanged()
	s.ClearDebug()
	snap = s.Snapshot()
	if snap.Changed || snap.DebugPending {
		t.Errorf("latches = %v/%v, want both cleared", snap.Changed, snap.DebugPending)
	}
	if snap.DebugMessage != "bus hiccup" {
		t.Errorf("DebugMessage = %q, want it kept after clear", snap.DebugMessage)
	}
}

func TestDoorState_ResponseAge(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewDoorState()
	s.RecordResponse(base)

	if got := s.ResponseAge(base.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("ResponseAge() = %v, want 1.5s", got)
	}
	if got := s.ResponseAge(base.Add(-time.Second)); got != 0 {
		t.Errorf("ResponseAge() with clock behind = %v, want 0", got)
	}
}

func TestMotionState_Names(t *testing.T) {
	for m := Closed; m < motionStateCount; m++ {
		parsed, err := ParseMotionState(m.String())
		if err != nil {
			t.Fatalf("ParseMotionState(%q) error = %v", m.String(), err)
		}
		if parsed != m {
			t.Errorf("ParseMotionState(%q) = %v, want %v", m.String(), parsed, m)
		}
	}
	if _, err := ParseMotionState("levitating"); err == nil {
		t.Error("ParseMotionState(levitating) error = nil, want error")
	}
}

func TestMotionState_Moving(t *testing.T) {
	moving := map[MotionState]bool{
		Opening:      true,
		Closing:      true,
		MovingToHalf: true,
		MovingToVent: true,
	}
	for m := Closed; m < motionStateCount; m++ {
		if got := m.Moving(); got != moving[m] {
			t.Errorf("%v.Moving() = %v, want %v", m, got, moving[m])
		}
	}
}
