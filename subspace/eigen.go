package subspace

import "math"

// Sym3 is a symmetric 3x3 matrix stored by its upper triangle.
type Sym3 struct {
	A11, A12, A13 float64
	A22, A23      float64
	A33           float64
}

// Eigenvalues returns the three eigenvalues of the matrix in descending
// order using the closed-form trigonometric method for symmetric 3x3
// matrices. No iterative solver is involved, so the cost is constant,
// which keeps the monitor cheap enough to run on every anchor arrival.
func (m Sym3) Eigenvalues() [3]float64 {
	p1 := m.A12*m.A12 + m.A13*m.A13 + m.A23*m.A23
	if p1 == 0 {
		// Already diagonal
		return sortDesc(m.A11, m.A22, m.A33)
	}

	q := (m.A11 + m.A22 + m.A33) / 3
	p2 := (m.A11-q)*(m.A11-q) + (m.A22-q)*(m.A22-q) + (m.A33-q)*(m.A33-q) + 2*p1
	p := math.Sqrt(p2 / 6)

	// B = (A - qI) / p
	b11 := (m.A11 - q) / p
	b22 := (m.A22 - q) / p
	b33 := (m.A33 - q) / p
	b12 := m.A12 / p
	b13 := m.A13 / p
	b23 := m.A23 / p

	// det(B) / 2, clamped against rounding drift outside [-1, 1]
	r := (b11*(b22*b33-b23*b23) - b12*(b12*b33-b23*b13) + b13*(b12*b23-b22*b13)) / 2
	if r < -1 {
		r = -1
	} else if r > 1 {
		r = 1
	}

	phi := math.Acos(r) / 3
	e1 := q + 2*p*math.Cos(phi)
	e3 := q + 2*p*math.Cos(phi+2*math.Pi/3)
	e2 := 3*q - e1 - e3

	return sortDesc(e1, e2, e3)
}

// Eigenvector returns a unit eigenvector for the given eigenvalue. For a
// symmetric matrix the rows of A - lambda*I span the plane orthogonal to the
// eigenvector, so the cross product of two independent rows recovers it.
// Degenerate (repeated-eigenvalue) cases fall back to a coordinate axis,
// which is adequate for reporting: the signal-strength score only depends on
// the eigenvalues.
func (m Sym3) Eigenvector(lambda float64) [3]float64 {
	r0 := [3]float64{m.A11 - lambda, m.A12, m.A13}
	r1 := [3]float64{m.A12, m.A22 - lambda, m.A23}
	r2 := [3]float64{m.A13, m.A23, m.A33 - lambda}

	c01 := cross(r0, r1)
	c02 := cross(r0, r2)
	c12 := cross(r1, r2)

	best := c01
	if norm(c02) > norm(best) {
		best = c02
	}
	if norm(c12) > norm(best) {
		best = c12
	}

	n := norm(best)
	if n < 1e-12 {
		return [3]float64{1, 0, 0}
	}
	return [3]float64{best[0] / n, best[1] / n, best[2] / n}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func sortDesc(a, b, c float64) [3]float64 {
	if a < b {
		a, b = b, a
	}
	if b < c {
		b, c = c, b
	}
	if a < b {
		a, b = b, a
	}
	return [3]float64{a, b, c}
}
