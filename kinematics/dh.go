// Package kinematics implements forward and inverse kinematics for a
// serial manipulator defined by a Denavit-Hartenberg parameter table
// (spec §4.1).
package kinematics

import (
	"math"

	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
)

// Joint is one row of the DH chain: a, d, alpha, theta offset.
type Joint struct {
	A        float64
	D        float64
	Alpha    float64
	ThetaOff float64
}

// Chain is the fixed DH parameter table for the manipulator.
type Chain struct {
	Joints []Joint
}

// NewChain builds a Chain from configuration DH rows.
func NewChain(rows []config.DHJoint) *Chain {
	joints := make([]Joint, len(rows))
	for i, r := range rows {
		joints[i] = Joint{A: r.A, D: r.D, Alpha: r.Alpha, ThetaOff: r.ThetaOff}
	}
	return &Chain{Joints: joints}
}

// N is the number of joints in the chain.
func (c *Chain) N() int { return len(c.Joints) }

// Transform4 is a 4x4 homogeneous transform stored row-major.
type Transform4 [4][4]float64

// Identity4 returns the 4x4 identity transform.
func Identity4() Transform4 {
	var t Transform4
	for i := 0; i < 4; i++ {
		t[i][i] = 1
	}
	return t
}

// mul multiplies two 4x4 homogeneous transforms.
func mul(a, b Transform4) Transform4 {
	var out Transform4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// jointTransform builds the standard DH homogeneous transform for one
// joint given its current joint angle theta (added to the fixed offset).
func jointTransform(j Joint, theta float64) Transform4 {
	t := theta + j.ThetaOff
	ct, st := math.Cos(t), math.Sin(t)
	ca, sa := math.Cos(j.Alpha), math.Sin(j.Alpha)
	return Transform4{
		{ct, -st * ca, st * sa, j.A * ct},
		{st, ct * ca, -ct * sa, j.A * st},
		{0, sa, ca, j.D},
		{0, 0, 0, 1},
	}
}

// FK computes the base-to-flange transform for a joint vector q, whose
// length must equal c.N().
func (c *Chain) FK(q []float64) Transform4 {
	t := Identity4()
	for i, j := range c.Joints {
		t = mul(t, jointTransform(j, q[i]))
	}
	return t
}

// Position extracts the 3-vector translation from a homogeneous transform.
func (t Transform4) Position() [3]float64 {
	return [3]float64{t[0][3], t[1][3], t[2][3]}
}

// Rotation extracts the 3x3 rotation block from a homogeneous transform.
func (t Transform4) Rotation() [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = t[i][j]
		}
	}
	return r
}
