// Package limits implements the per-joint limit envelope of spec §4.2:
// position/velocity/acceleration/torque checks, clamping, uniform velocity
// scaling, and bound margin. Check failures are reports, not exceptions;
// the caller (safety.Monitor) composes them into a verdict.
package limits

import (
	"fmt"
	"math"

	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
)

// Limits is one joint's static bound set.
type Limits struct {
	PosMin    float64
	PosMax    float64
	VelMax    float64
	AccMax    float64
	TorqueMax float64
	JerkMax   float64
}

// FromConfig builds a per-joint Limits table from the config tree.
func FromConfig(rows []config.JointLimits) []Limits {
	out := make([]Limits, len(rows))
	for i, r := range rows {
		out[i] = Limits{
			PosMin: r.PosMin, PosMax: r.PosMax, VelMax: r.VelMax,
			AccMax: r.AccMax, TorqueMax: r.TorqueMax, JerkMax: r.JerkMax,
		}
	}
	return out
}

// Envelope holds the full per-joint limit table.
type Envelope struct {
	Limits []Limits
}

// NewEnvelope builds an Envelope over the given per-joint limits.
func NewEnvelope(limits []Limits) *Envelope {
	return &Envelope{Limits: limits}
}

func (e *Envelope) n() int { return len(e.Limits) }

// CheckPosition reports, per joint, whether pos is within bounds. ok is
// true only if every joint is within bounds; msg joins any violation
// messages with "; ".
func (e *Envelope) CheckPosition(pos []float64) (ok bool, msg string) {
	return e.checkEach(pos, func(l Limits, v float64) (bool, string) {
		if v < l.PosMin {
			return false, fmt.Sprintf("position %.6f below min %.6f", v, l.PosMin)
		}
		if v > l.PosMax {
			return false, fmt.Sprintf("position %.6f above max %.6f", v, l.PosMax)
		}
		return true, ""
	})
}

// CheckVelocity reports whether vel respects each joint's |v| <= VelMax.
func (e *Envelope) CheckVelocity(vel []float64) (ok bool, msg string) {
	return e.checkEach(vel, func(l Limits, v float64) (bool, string) {
		if math.Abs(v) > l.VelMax {
			return false, fmt.Sprintf("velocity %.6f exceeds max %.6f", v, l.VelMax)
		}
		return true, ""
	})
}

// CheckAcceleration reports whether acc respects each joint's |a| <= AccMax.
func (e *Envelope) CheckAcceleration(acc []float64) (ok bool, msg string) {
	return e.checkEach(acc, func(l Limits, v float64) (bool, string) {
		if math.Abs(v) > l.AccMax {
			return false, fmt.Sprintf("acceleration %.6f exceeds max %.6f", v, l.AccMax)
		}
		return true, ""
	})
}

// CheckTorque reports whether torque respects each joint's |tau| <= TorqueMax.
func (e *Envelope) CheckTorque(torque []float64) (ok bool, msg string) {
	return e.checkEach(torque, func(l Limits, v float64) (bool, string) {
		if math.Abs(v) > l.TorqueMax {
			return false, fmt.Sprintf("torque %.6f exceeds max %.6f", v, l.TorqueMax)
		}
		return true, ""
	})
}

// PositionBreach is one joint's position bound violation: exactly one of
// Min/Max, never both, so callers can distinguish a PositionMin breach from
// a PositionMax breach instead of collapsing both into one kind.
type PositionBreach struct {
	Joint    int
	Min      bool // true: pos < PosMin; false: pos > PosMax
	Measured float64
	Limit    float64
}

// CheckPositionBreaches returns one PositionBreach per joint outside
// [PosMin, PosMax], preserving joint index so callers (safety.Monitor) can
// build a per-joint SafetyViolation instead of a joined string.
func (e *Envelope) CheckPositionBreaches(pos []float64) []PositionBreach {
	var out []PositionBreach
	for i, v := range pos {
		if i >= e.n() {
			break
		}
		l := e.Limits[i]
		switch {
		case v < l.PosMin:
			out = append(out, PositionBreach{Joint: i, Min: true, Measured: v, Limit: l.PosMin})
		case v > l.PosMax:
			out = append(out, PositionBreach{Joint: i, Min: false, Measured: v, Limit: l.PosMax})
		}
	}
	return out
}

func (e *Envelope) checkEach(values []float64, check func(Limits, float64) (bool, string)) (bool, string) {
	allOK := true
	msg := ""
	for i, v := range values {
		if i >= e.n() {
			break
		}
		ok, m := check(e.Limits[i], v)
		if !ok {
			allOK = false
			if msg != "" {
				msg += "; "
			}
			msg += fmt.Sprintf("joint %d: %s", i, m)
		}
	}
	return allOK, msg
}

// ClampPosition saturates each joint of pos to [PosMin, PosMax].
func (e *Envelope) ClampPosition(pos []float64) []float64 {
	out := make([]float64, len(pos))
	for i, v := range pos {
		if i >= e.n() {
			out[i] = v
			continue
		}
		l := e.Limits[i]
		out[i] = math.Min(math.Max(v, l.PosMin), l.PosMax)
	}
	return out
}

// ScaleVelocity uniformly scales vel by the smallest factor needed so every
// joint's |v'_i|/VelMax_i <= 1, preserving direction (v' = alpha*v, alpha in
// (0,1]).
func (e *Envelope) ScaleVelocity(vel []float64) []float64 {
	alpha := 1.0
	for i, v := range vel {
		if i >= e.n() || e.Limits[i].VelMax <= 0 {
			continue
		}
		ratio := math.Abs(v) / e.Limits[i].VelMax
		if ratio > 1 && 1/ratio < alpha {
			alpha = 1 / ratio
		}
	}
	out := make([]float64, len(vel))
	for i, v := range vel {
		out[i] = alpha * v
	}
	return out
}

// Margin returns, per joint, the minimum distance from pos to either bound.
func (e *Envelope) Margin(pos []float64) []float64 {
	out := make([]float64, len(pos))
	for i, v := range pos {
		if i >= e.n() {
			out[i] = math.Inf(1)
			continue
		}
		l := e.Limits[i]
		out[i] = math.Min(v-l.PosMin, l.PosMax-v)
	}
	return out
}
