package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tol = 1e-6

func TestComposeDecompose(t *testing.T) {
	tr := Vec3(1, 2, 3)
	rot := Vec3(10, 20, 30)
	sc := Vec3(1, 2, 0.5)

	m := Compose(tr, rot, sc)
	gotT, gotR, gotS := m.Decompose()

	assert.True(t, tr.ApproxEqual(gotT, tol), "translate %v", gotT)
	assert.True(t, rot.ApproxEqual(gotR, 1e-4), "rotate %v", gotR)
	assert.True(t, sc.ApproxEqual(gotS, tol), "scale %v", gotS)
}

func TestInverse(t *testing.T) {
	m := Compose(Vec3(4, -2, 7), Vec3(45, 0, 90), Vec3(2, 2, 2))
	inv, ok := m.Inverse()
	assert.True(t, ok)
	assert.True(t, m.Mul(inv).IsIdentity())

	_, ok = Matrix{}.Inverse()
	assert.False(t, ok)
}

func TestWorldComposition(t *testing.T) {
	parent := Compose(Vec3(10, 0, 0), Vec3(0, 0, 90), One)
	local := TranslationMatrix(Vec3(1, 0, 0))
	world := local.Mul(parent)

	// rotating the parent 90 degrees around Z moves local +X onto world +Y
	assert.True(t, Vec3(10, 1, 0).ApproxEqual(world.Translation(), tol), "%v", world.Translation())

	// local = world * parentInverse recovers the offset
	back := world.Mul(parent.MustInverse())
	assert.True(t, back.ApproxEqual(local, tol))
}

func TestLookAt(t *testing.T) {
	rot := LookAt(Vec3(0, 0, 5), YAxis, XAxis, YAxis)
	assert.True(t, ZAxis.ApproxEqual(XAxis.MulDirection(rot), tol))
	assert.True(t, YAxis.ApproxEqual(YAxis.MulDirection(rot), tol))

	// parallel up vector falls back instead of producing NaNs
	rot = LookAt(YAxis, YAxis, XAxis, YAxis)
	assert.True(t, YAxis.ApproxEqual(XAxis.MulDirection(rot), tol))
}

func TestPlaneProject(t *testing.T) {
	plane, ok := PlaneFromPoints(Vec3(0, 0, 0), Vec3(1, 0, 0), Vec3(0, 1, 0))
	assert.True(t, ok)
	assert.True(t, Vec3(3, 4, 0).ApproxEqual(plane.Project(Vec3(3, 4, 9)), tol))
	assert.InDelta(t, 9, plane.Distance(Vec3(3, 4, 9)), tol)

	_, ok = PlaneFromPoints(Vec3(0, 0, 0), Vec3(1, 0, 0), Vec3(2, 0, 0))
	assert.False(t, ok)
}
