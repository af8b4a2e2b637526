// Package jointstate defines JointState (spec §3), the per-cycle feedback
// snapshot exclusively owned and written by the cyclic executor.
package jointstate

import "time"

// JointState is the per-cycle feedback snapshot: position (rad), velocity
// (rad/s), and torque (Nm) vectors of equal length N, plus a strictly
// monotonic timestamp.
type JointState struct {
	Position  []float64
	Velocity  []float64
	Torque    []float64
	Timestamp time.Time
}

// New returns a zeroed JointState for n joints.
func New(n int) JointState {
	return JointState{
		Position: make([]float64, n),
		Velocity: make([]float64, n),
		Torque:   make([]float64, n),
	}
}

// Clone returns a deep copy, used when a cycle reuses the last good state
// on a bus read error (spec §4.13) without aliasing the slices of the
// state being replaced.
func (j JointState) Clone() JointState {
	out := JointState{
		Position:  append([]float64(nil), j.Position...),
		Velocity:  append([]float64(nil), j.Velocity...),
		Torque:    append([]float64(nil), j.Torque...),
		Timestamp: j.Timestamp,
	}
	return out
}
