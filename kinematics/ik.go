package kinematics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// IKParams tunes the inverse-kinematics iteration (spec §4.1).
type IKParams struct {
	MaxIterations int
	PosTolerance  float64
	StepSize      float64
}

// DefaultIKParams returns the spec-mandated defaults.
func DefaultIKParams() IKParams {
	return IKParams{MaxIterations: 100, PosTolerance: 1e-6, StepSize: 0.1}
}

const fdStep = 1e-6

// jacobian computes the 3xN position Jacobian at q by central finite
// difference.
func (c *Chain) jacobian(q []float64) *mat.Dense {
	n := len(q)
	j := mat.NewDense(3, n, nil)
	qPlus := make([]float64, n)
	qMinus := make([]float64, n)
	copy(qPlus, q)
	copy(qMinus, q)
	for col := 0; col < n; col++ {
		qPlus[col] = q[col] + fdStep
		qMinus[col] = q[col] - fdStep
		pPlus := c.FK(qPlus).Position()
		pMinus := c.FK(qMinus).Position()
		for row := 0; row < 3; row++ {
			j.Set(row, col, (pPlus[row]-pMinus[row])/(2*fdStep))
		}
		qPlus[col] = q[col]
		qMinus[col] = q[col]
	}
	return j
}

// IK solves for a joint vector whose flange position matches target,
// starting from seed, by Jacobian least-squares (pseudo-inverse) iteration
// with each step scaled by p.StepSize; a singular Jacobian ends the
// iteration with ok=false. It does
// not fail: a non-converged result is returned with ok=false and the
// caller decides what to do (spec §4.1).
func (c *Chain) IK(target [3]float64, seed []float64, p IKParams) (q []float64, ok bool) {
	n := c.N()
	q = make([]float64, n)
	copy(q, seed)

	for iter := 0; iter < p.MaxIterations; iter++ {
		cur := c.FK(q).Position()
		errVec := mat.NewVecDense(3, []float64{
			target[0] - cur[0],
			target[1] - cur[1],
			target[2] - cur[2],
		})
		if norm3(errVec) < p.PosTolerance {
			return q, true
		}

		j := c.jacobian(q)
		var dq mat.VecDense
		if err := dq.SolveVec(j, errVec); err != nil {
			// Singular Jacobian at this configuration; report
			// non-convergence rather than failing, per spec.
			return q, false
		}
		for i := 0; i < n; i++ {
			q[i] += p.StepSize * dq.AtVec(i)
		}
	}

	final := c.FK(q).Position()
	converged := math.Hypot(math.Hypot(target[0]-final[0], target[1]-final[1]), target[2]-final[2]) < p.PosTolerance
	return q, converged
}

func norm3(v *mat.VecDense) float64 {
	return math.Sqrt(v.AtVec(0)*v.AtVec(0) + v.AtVec(1)*v.AtVec(1) + v.AtVec(2)*v.AtVec(2))
}
