package mathx

import "math"

// Matrix is a 4x4 row-major transform matrix.
type Matrix [16]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// MatrixFromSlice converts a decoded slice. Anything that is not 16 values yields identity.
func MatrixFromSlice(values []float64) Matrix {
	if len(values) != 16 {
		return Identity()
	}
	var m Matrix
	copy(m[:], values)
	return m
}

// Slice returns a copy of the matrix values.
func (m Matrix) Slice() []float64 {
	out := make([]float64, 16)
	copy(out, m[:])
	return out
}

// Mul returns m * o. For world matrices: child.World = child.Local.Mul(parent.World).
func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Translation is the last row of the matrix.
func (m Matrix) Translation() Vector3 {
	return Vector3{m[12], m[13], m[14]}
}

// WithTranslation returns a copy with the translation row replaced.
func (m Matrix) WithTranslation(t Vector3) Matrix {
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// Row returns the first three components of a row.
func (m Matrix) Row(r int) Vector3 {
	return Vector3{m[r*4], m[r*4+1], m[r*4+2]}
}

func (m Matrix) setRow(r int, v Vector3) Matrix {
	m[r*4], m[r*4+1], m[r*4+2] = v[0], v[1], v[2]
	return m
}

// Determinant of the full 4x4 matrix.
func (m Matrix) Determinant() float64 {
	_, det := m.adjugate()
	return det
}

// Inverse returns the inverse matrix. Singular matrices return identity and false.
func (m Matrix) Inverse() (Matrix, bool) {
	inv, det := m.adjugate()
	if math.Abs(det) < 1e-12 {
		return Identity(), false
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, true
}

// MustInverse is Inverse for matrices known to be invertible (transforms with non-zero scale).
func (m Matrix) MustInverse() Matrix {
	inv, _ := m.Inverse()
	return inv
}

func (m Matrix) adjugate() (Matrix, float64) {
	var inv Matrix
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]
	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	return inv, det
}

// ApproxEqual compares every element with the given tolerance.
func (m Matrix) ApproxEqual(o Matrix, tol float64) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// IsIdentity reports whether m is the identity within Epsilon.
func (m Matrix) IsIdentity() bool {
	return m.ApproxEqual(Identity(), Epsilon)
}

// RotationMatrix builds a rotation from XYZ Euler angles in degrees (X applied first).
func RotationMatrix(euler Vector3) Matrix {
	x, y, z := DegToRad(euler[0]), DegToRad(euler[1]), DegToRad(euler[2])
	sx, cx := math.Sincos(x)
	sy, cy := math.Sincos(y)
	sz, cz := math.Sincos(z)
	return Matrix{
		cy * cz, cy * sz, -sy, 0,
		sx*sy*cz - cx*sz, sx*sy*sz + cx*cz, sx * cy, 0,
		cx*sy*cz + sx*sz, cx*sy*sz - sx*cz, cx * cy, 0,
		0, 0, 0, 1,
	}
}

// Compose builds S * R * T from translate, XYZ Euler rotation (degrees) and scale.
func Compose(translate, rotate, scale Vector3) Matrix {
	m := RotationMatrix(rotate)
	for r := 0; r < 3; r++ {
		m = m.setRow(r, m.Row(r).Scale(scale[r]))
	}
	return m.WithTranslation(translate)
}

// Decompose splits m into translation, XYZ Euler rotation in degrees and scale.
func (m Matrix) Decompose() (translate, rotate, scale Vector3) {
	translate = m.Translation()
	rows := [3]Vector3{m.Row(0), m.Row(1), m.Row(2)}
	for i := range rows {
		scale[i] = rows[i].Length()
	}
	if rows[0].Cross(rows[1]).Dot(rows[2]) < 0 {
		scale[0] = -scale[0]
	}
	rot := Identity()
	for i := range rows {
		if math.Abs(scale[i]) > Epsilon {
			rot = rot.setRow(i, rows[i].Scale(1/scale[i]))
		}
	}
	return translate, rot.EulerXYZ(), scale
}

// EulerXYZ extracts XYZ Euler angles (degrees) from the rotation part of m.
// m is expected to be orthonormal.
func (m Matrix) EulerXYZ() Vector3 {
	sy := -m[2]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y := math.Asin(sy)
	var x, z float64
	if math.Abs(math.Cos(y)) > Epsilon {
		x = math.Atan2(m[6], m[10])
		z = math.Atan2(m[1], m[0])
	} else {
		x = math.Atan2(-m[9], m[5])
		z = 0
	}
	return Vector3{RadToDeg(x), RadToDeg(y), RadToDeg(z)}
}

// RotationOnly strips translation and scale from m.
func (m Matrix) RotationOnly() Matrix {
	_, r, _ := m.Decompose()
	return RotationMatrix(r)
}

// ScaleOnly returns a matrix carrying just m's scale. Used for pick-matrix style
// passthroughs in live link chains.
func (m Matrix) ScaleOnly() Matrix {
	_, _, s := m.Decompose()
	return Compose(Vector3{}, Vector3{}, s)
}

// LookAt returns the rotation matrix that points the local aimAxis along direction
// and the local upAxis as close as possible to up. aimAxis and upAxis must not be parallel.
func LookAt(direction, up, aimAxis, upAxis Vector3) Matrix {
	d := direction.Normalize()
	if d.IsZero() {
		return Identity()
	}
	u := up.Normalize()
	if u.IsZero() || math.Abs(d.Dot(u)) > 1-Epsilon {
		// pick any up that is not parallel to the aim direction
		u = YAxis
		if math.Abs(d.Dot(u)) > 1-Epsilon {
			u = ZAxis
		}
	}
	side := d.Cross(u).Normalize()
	upOrtho := side.Cross(d).Normalize()

	a := aimAxis.Normalize()
	b := upAxis.Sub(a.Scale(upAxis.Dot(a))).Normalize()
	c := a.Cross(b)

	local := Identity().setRow(0, a).setRow(1, b).setRow(2, c)
	world := Identity().setRow(0, d).setRow(1, upOrtho).setRow(2, d.Cross(upOrtho))
	return local.Transpose().Mul(world)
}

// Transpose returns the transpose of m.
func (m Matrix) Transpose() Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = m[r*4+c]
		}
	}
	return out
}

// TranslationMatrix is identity with the given translation.
func TranslationMatrix(t Vector3) Matrix {
	return Identity().WithTranslation(t)
}
