// Package trajectory implements the quintic point-to-point and waypoint
// trajectory generator of spec §4.8.
package trajectory

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/Benergy80/Kuka-Jetson-Conversion/ctlerr"
)

// SampleInterval is the fixed 1ms sample spacing named in spec §3.
const SampleInterval = time.Millisecond

// Point is one sampled trajectory point (spec §3 TrajectoryPoint).
type Point struct {
	Position     []float64
	Velocity     []float64
	Acceleration []float64
	TimeFromStart time.Duration
}

// quinticS evaluates the quintic smooth-step s(tau) = tau^3*(10-15*tau+6*tau^2)
// and its first two derivatives with respect to tau; callers divide by the
// duration (and its square) to get derivatives with respect to real time.
func quinticS(tau float64) (s, sdot, sddot float64) {
	s = tau * tau * tau * (10 - 15*tau + 6*tau*tau)
	sdot = 30 * tau * tau * (1 - 2*tau + tau*tau)
	sddot = 60 * tau * (1 - 3*tau + 2*tau*tau)
	return
}

// estimateDuration computes t = max_i(|delta_i|/v_max_i + v_max_i/a_max_i)
// per spec §4.8, used when no duration is supplied.
func estimateDuration(start, end, vMax, aMax []float64) float64 {
	var t float64
	for i := range start {
		if i >= len(vMax) || i >= len(aMax) {
			continue
		}
		delta := math.Abs(end[i] - start[i])
		if vMax[i] <= 0 || aMax[i] <= 0 {
			continue
		}
		candidate := delta/vMax[i] + vMax[i]/aMax[i]
		if candidate > t {
			t = candidate
		}
	}
	if t <= 0 {
		t = 1.0
	}
	return t
}

// PointToPoint generates a quintic-profile trajectory from start to end. If
// duration <= 0, it is estimated from vMax/aMax (spec §4.8).
func PointToPoint(start, end []float64, duration time.Duration, vMax, aMax []float64) ([]Point, error) {
	if len(start) != len(end) {
		return nil, ctlerr.New(ctlerr.InvalidArgument, "start and end must have equal length")
	}
	n := len(start)

	durSec := duration.Seconds()
	if durSec <= 0 {
		durSec = estimateDuration(start, end, vMax, aMax)
		duration = time.Duration(durSec * float64(time.Second))
	}
	if durSec <= 0 {
		return nil, errors.New("trajectory: non-positive duration")
	}

	numSamples := int(duration/SampleInterval) + 1
	points := make([]Point, 0, numSamples)

	delta := make([]float64, n)
	for i := range start {
		delta[i] = end[i] - start[i]
	}

	for k := 0; k < numSamples; k++ {
		t := time.Duration(k) * SampleInterval
		if t > duration {
			t = duration
		}
		tau := t.Seconds() / durSec

		s, sdot, sddot := quinticS(tau)

		pos := make([]float64, n)
		vel := make([]float64, n)
		acc := make([]float64, n)
		for i := range start {
			pos[i] = start[i] + s*delta[i]
			vel[i] = (sdot / durSec) * delta[i]
			acc[i] = (sddot / (durSec * durSec)) * delta[i]
		}
		points = append(points, Point{Position: pos, Velocity: vel, Acceleration: acc, TimeFromStart: t})
		if t == duration {
			break
		}
	}
	return points, nil
}

// ArcChordCount is the number of linear chords used to approximate one
// G2/G3 arc, the simplest discretization consistent with delegating arc
// interpolation to the trajectory generator (spec.md §9 Open Question).
const ArcChordCount = 16

// ArcToWaypoints expands a G2/G3 arc on the X/Y plane into a sequence of
// ArcChordCount+1 intermediate waypoints (including both endpoints),
// center offset i/j given relative to start per G-code convention,
// linearly interpolating any remaining axes. start and end must carry at
// least X/Y.
func ArcToWaypoints(start, end []float64, i, j float64, clockwise bool) ([][]float64, error) {
	if len(start) < 2 || len(end) < 2 {
		return nil, ctlerr.New(ctlerr.InvalidArgument, "arc requires at least X/Y axes")
	}

	cx, cy := start[0]+i, start[1]+j
	r := math.Hypot(start[0]-cx, start[1]-cy)
	if r <= 0 {
		return nil, ctlerr.New(ctlerr.InvalidArgument, "degenerate arc radius")
	}

	startAngle := math.Atan2(start[1]-cy, start[0]-cx)
	endAngle := math.Atan2(end[1]-cy, end[0]-cx)

	var sweep float64
	if clockwise {
		sweep = startAngle - endAngle
		if sweep <= 0 {
			sweep += 2 * math.Pi
		}
		sweep = -sweep
	} else {
		sweep = endAngle - startAngle
		if sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}

	n := len(start)
	points := make([][]float64, 0, ArcChordCount+1)
	for k := 0; k <= ArcChordCount; k++ {
		frac := float64(k) / float64(ArcChordCount)
		angle := startAngle + sweep*frac

		p := make([]float64, n)
		p[0] = cx + r*math.Cos(angle)
		p[1] = cy + r*math.Sin(angle)
		for axis := 2; axis < n; axis++ {
			a := start[axis]
			b := a
			if axis < len(end) {
				b = end[axis]
			}
			p[axis] = a + frac*(b-a)
		}
		points = append(points, p)
	}
	return points, nil
}

// Waypoints concatenates point-to-point segments between successive
// waypoints, each segment given its own duration (or estimated). At least
// two waypoints are required.
func Waypoints(waypoints [][]float64, durations []time.Duration, vMax, aMax []float64) ([]Point, error) {
	if len(waypoints) < 2 {
		return nil, ctlerr.New(ctlerr.InvalidArgument, "at least two waypoints are required")
	}

	var out []Point
	var offset time.Duration
	for i := 0; i+1 < len(waypoints); i++ {
		var d time.Duration
		if i < len(durations) {
			d = durations[i]
		}
		seg, err := PointToPoint(waypoints[i], waypoints[i+1], d, vMax, aMax)
		if err != nil {
			return nil, err
		}
		for j, p := range seg {
			// Avoid duplicating the junction sample shared by consecutive
			// segments (intermediate points have zero velocity at
			// junctions, simple not blended, per spec §4.8).
			if i > 0 && j == 0 {
				continue
			}
			p.TimeFromStart += offset
			out = append(out, p)
		}
		offset += seg[len(seg)-1].TimeFromStart
	}
	return out, nil
}
