package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/pkg/mathx"
)

const tol = 1e-6

func translation(t *testing.T, g *Memory, id NodeID) mathx.Vector3 {
	t.Helper()
	return g.WorldMatrix(id).Translation()
}

func TestHierarchyAndWorldMatrix(t *testing.T) {
	g := NewMemory()

	root, err := g.CreateNode(TypeTransform, "root", "")
	require.NoError(t, err)
	child, err := g.CreateNode(TypeJoint, "child", root)
	require.NoError(t, err)

	require.NoError(t, g.Set(root, AttrNameTranslate, mathx.Vec3(10, 0, 0)))
	require.NoError(t, g.Set(child, AttrNameTranslate, []float64{0, 1, 0}))

	assert.True(t, mathx.Vec3(10, 1, 0).ApproxEqual(translation(t, g, child), tol))
	assert.Equal(t, []NodeID{child}, g.Children(root))
	assert.Equal(t, root, g.Parent(child))

	// unparenting keeps the world position
	require.NoError(t, g.SetParent(child, "", true))
	assert.True(t, mathx.Vec3(10, 1, 0).ApproxEqual(translation(t, g, child), tol))
	assert.Empty(t, g.Children(root))

	// a node cannot move under its own descendant
	require.NoError(t, g.SetParent(child, root, false))
	assert.ErrorIs(t, g.SetParent(root, child, false), ErrInvalidParent)

	net, err := g.CreateNode(TypeNetwork, "meta", "")
	require.NoError(t, err)
	_, err = g.CreateNode(TypeTransform, "bad", net)
	assert.ErrorIs(t, err, ErrInvalidParent)
}

func TestLockedNodes(t *testing.T) {
	g := NewMemory()
	a, _ := g.CreateNode(TypeTransform, "a", "")
	b, _ := g.CreateNode(TypeTransform, "b", "")

	require.NoError(t, g.SetLocked(a, true))
	assert.ErrorIs(t, g.Rename(a, "renamed"), ErrNodeLocked)
	assert.ErrorIs(t, g.DeleteNodes(a), ErrNodeLocked)
	assert.ErrorIs(t, g.SetParent(a, b, true), ErrNodeLocked)

	require.NoError(t, g.SetLocked(a, false))
	require.NoError(t, g.Rename(a, "renamed"))
	assert.Equal(t, []NodeID{a}, g.FindByName("renamed"))
}

func TestAttributes(t *testing.T) {
	g := NewMemory()
	n, _ := g.CreateNode(TypeTransform, "ctrl", "")

	lo, hi := 0.0, 1.0
	require.NoError(t, g.AddAttribute(n, AttributeSpec{Name: "blend", Type: AttrFloat, Min: &lo, Max: &hi, Default: 0.5}))
	require.NoError(t, g.AddAttribute(n, AttributeSpec{Name: "space", Type: AttrEnum, Enums: []string{"world", "local"}}))
	assert.ErrorIs(t, g.AddAttribute(n, AttributeSpec{Name: "blend", Type: AttrFloat}), ErrAttributeExists)
	assert.ErrorIs(t, g.AddAttribute(n, AttributeSpec{Name: AttrNameTranslate, Type: AttrVector3}), ErrAttributeExists)

	v, err := g.Get(n, "blend")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	require.NoError(t, g.Set(n, "blend", 4))
	v, _ = g.Get(n, "blend")
	assert.Equal(t, 1.0, v)

	require.NoError(t, g.Set(n, "space", "local"))
	v, _ = g.Get(n, "space")
	assert.Equal(t, 1, v)

	assert.ErrorIs(t, g.Set(n, "blend", "nope"), ErrInvalidValue)
	assert.ErrorIs(t, g.Set(n, AttrNameWorldMatrix, mathx.Identity()), ErrReadOnlyAttribute)

	require.NoError(t, g.SetAttributeLocked(n, "blend", true))
	assert.ErrorIs(t, g.Set(n, "blend", 0.2), ErrAttributeLocked)

	require.NoError(t, g.SetAttributeLocked(n, AttrNameTranslate, true))
	assert.ErrorIs(t, g.Set(n, AttrNameTranslate, mathx.Vec3(1, 1, 1)), ErrAttributeLocked)
	// channel locks only guard the channel, not the full matrix
	require.NoError(t, g.SetLocalMatrix(n, mathx.TranslationMatrix(mathx.Vec3(2, 0, 0))))

	assert.Equal(t, []string{"blend", "space"}, g.Attributes(n))
	assert.Equal(t, []NodeID{n}, g.NodesWithAttribute("space", 1))
	assert.Empty(t, g.NodesWithAttribute("space", 0))
}

func TestConnectionsPropagateValues(t *testing.T) {
	g := NewMemory()
	src, _ := g.CreateNode(TypeTransform, "src", "")
	dst, _ := g.CreateNode(TypeTransform, "dst", "")
	require.NoError(t, g.AddAttribute(src, AttributeSpec{Name: "out", Type: AttrFloat, Value: 3.0}))
	require.NoError(t, g.AddAttribute(dst, AttributeSpec{Name: "in", Type: AttrFloat}))

	from, to := Plug{Node: src, Attr: "out"}, Plug{Node: dst, Attr: "in"}
	require.NoError(t, g.Connect(from, to))

	v, err := g.Get(dst, "in")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	got, ok := g.Source(to)
	assert.True(t, ok)
	assert.Equal(t, from, got)
	assert.Equal(t, []Plug{to}, g.Destinations(from))
	assert.Len(t, g.Connections(dst), 1)

	require.NoError(t, g.Disconnect(from, to))
	assert.ErrorIs(t, g.Disconnect(from, to), ErrNotConnected)
	v, _ = g.Get(dst, "in")
	assert.Equal(t, 0.0, v)

	assert.ErrorIs(t, g.Connect(from, from), ErrInvalidValue)
}

func TestUtilityChainDrivesOffsetParent(t *testing.T) {
	g := NewMemory()
	driver, _ := g.CreateNode(TypeLocator, "driver", "")
	driven, _ := g.CreateNode(TypeTransform, "driven", "")
	require.NoError(t, g.Set(driver, AttrNameTranslate, mathx.Vec3(0, 2, 0)))
	require.NoError(t, g.Set(driver, AttrNameRotate, mathx.Vec3(0, 0, 45)))

	mult, err := NewMultMatrix(g, "mult")
	require.NoError(t, err)
	pick, err := NewPickMatrix(g, "pick", true, false, false)
	require.NoError(t, err)

	require.NoError(t, g.Set(mult, ElementAttr(AttrNameMatrixIn, 0), mathx.TranslationMatrix(mathx.Vec3(1, 0, 0))))
	require.NoError(t, g.Connect(Plug{Node: driver, Attr: AttrNameWorldMatrix}, Plug{Node: mult, Attr: ElementAttr(AttrNameMatrixIn, 1)}))
	require.NoError(t, g.Connect(Plug{Node: mult, Attr: AttrNameMatrixSum}, Plug{Node: pick, Attr: AttrNameInputMatrix}))
	require.NoError(t, g.Connect(Plug{Node: pick, Attr: AttrNameOutputMatrix}, Plug{Node: driven, Attr: AttrNameOffsetParentMatrix}))

	sum, err := g.Get(mult, AttrNameMatrixSum)
	require.NoError(t, err)
	want := mathx.TranslationMatrix(mathx.Vec3(1, 0, 0)).Mul(g.WorldMatrix(driver))
	assert.True(t, want.ApproxEqual(sum.(mathx.Matrix), tol))

	// only translation passes the pick node
	world := g.WorldMatrix(driven)
	assert.True(t, want.Translation().ApproxEqual(world.Translation(), tol))
	_, rot, _ := world.Decompose()
	assert.True(t, rot.ApproxEqual(mathx.Vector3{}, 1e-4))
}

func TestParentConstraint(t *testing.T) {
	g := NewMemory()
	driver, _ := g.CreateNode(TypeTransform, "driver", "")
	driven, _ := g.CreateNode(TypeTransform, "driven", "")
	require.NoError(t, g.Set(driver, AttrNameTranslate, mathx.Vec3(5, 0, 0)))

	cid, err := g.CreateConstraint(ConstraintSpec{
		Type:           ConstraintParent,
		Driven:         driven,
		Drivers:        []ConstraintDriver{{Label: "driver", Node: driver}},
		MaintainOffset: true,
	})
	require.NoError(t, err)
	assert.True(t, mathx.Vector3{}.ApproxEqual(translation(t, g, driven), tol))

	require.NoError(t, g.Set(driver, AttrNameTranslate, mathx.Vec3(6, 0, 0)))
	assert.True(t, mathx.Vec3(1, 0, 0).ApproxEqual(translation(t, g, driven), tol))

	c, err := g.Constraint(cid)
	require.NoError(t, err)
	assert.Equal(t, 0, c.DriverIndex("driver"))
	assert.Len(t, g.Constraints(driven), 1)

	// deleting the driver bakes the constrained pose
	require.NoError(t, g.DeleteNodes(driver))
	assert.Empty(t, g.Constraints(driven))
	assert.False(t, g.Exists(cid))
	assert.True(t, mathx.Vec3(1, 0, 0).ApproxEqual(translation(t, g, driven), tol))

	_, err = g.CreateConstraint(ConstraintSpec{Type: ConstraintParent, Driven: driven})
	assert.ErrorIs(t, err, ErrNoDrivers)
}

func TestSwitchedConstraint(t *testing.T) {
	g := NewMemory()
	a, _ := g.CreateNode(TypeTransform, "a", "")
	b, _ := g.CreateNode(TypeTransform, "b", "")
	driven, _ := g.CreateNode(TypeTransform, "driven", "")
	require.NoError(t, g.Set(a, AttrNameTranslate, mathx.Vec3(1, 0, 0)))
	require.NoError(t, g.Set(b, AttrNameTranslate, mathx.Vec3(0, 3, 0)))
	require.NoError(t, g.AddAttribute(driven, AttributeSpec{Name: "space", Type: AttrEnum, Enums: []string{"a", "b"}}))

	_, err := g.CreateConstraint(ConstraintSpec{
		Type:       ConstraintPoint,
		Driven:     driven,
		Drivers:    []ConstraintDriver{{Label: "a", Node: a}, {Label: "b", Node: b}},
		SwitchAttr: Plug{Node: driven, Attr: "space"},
	})
	require.NoError(t, err)
	assert.True(t, mathx.Vec3(1, 0, 0).ApproxEqual(translation(t, g, driven), tol))

	require.NoError(t, g.Set(driven, "space", "b"))
	assert.True(t, mathx.Vec3(0, 3, 0).ApproxEqual(translation(t, g, driven), tol))
}

func TestDeleteConstraintBakes(t *testing.T) {
	g := NewMemory()
	driver, _ := g.CreateNode(TypeTransform, "driver", "")
	driven, _ := g.CreateNode(TypeTransform, "driven", "")
	require.NoError(t, g.Set(driver, AttrNameTranslate, mathx.Vec3(0, 0, 4)))

	cid, err := g.CreateConstraint(ConstraintSpec{Type: ConstraintMatrix, Driven: driven, Drivers: []ConstraintDriver{{Label: "d", Node: driver}}})
	require.NoError(t, err)
	require.NoError(t, g.DeleteConstraint(cid))

	assert.True(t, mathx.Vec3(0, 0, 4).ApproxEqual(g.LocalMatrix(driven).Translation(), tol))
	assert.ErrorIs(t, g.DeleteConstraint(cid), ErrConstraintNotFound)
}

func TestContainers(t *testing.T) {
	g := NewMemory()
	box, err := g.CreateNode(TypeContainer, "box", "")
	require.NoError(t, err)

	require.NoError(t, g.SetCurrentContainer(box))
	inside, _ := g.CreateNode(TypeTransform, "inside", "")
	require.NoError(t, g.SetCurrentContainer(""))
	outside, _ := g.CreateNode(TypeTransform, "outside", "")

	assert.Equal(t, box, g.ContainerOf(inside))
	assert.Equal(t, NodeID(""), g.ContainerOf(outside))
	assert.Equal(t, []NodeID{inside}, g.ContainerMembers(box))

	require.NoError(t, g.PublishAttribute(box, Plug{Node: inside, Attr: AttrNameTranslate}, "pos"))
	require.NoError(t, g.PublishNode(box, inside, "anchor"))
	assert.Equal(t, []PublishedAttribute{{Alias: "pos", Plug: Plug{Node: inside, Attr: AttrNameTranslate}}}, g.PublishedAttributes(box))
	assert.ErrorIs(t, g.UnpublishNode(box, "missing"), ErrNotPublished)

	require.NoError(t, g.SetBlackBox(box, true))
	assert.True(t, g.IsBlackBox(box))
	assert.ErrorIs(t, g.SetBlackBox(outside, true), ErrNotContainer)

	// deleting a member clears what it published
	require.NoError(t, g.DeleteNodes(inside))
	assert.Empty(t, g.PublishedAttributes(box))
	assert.Empty(t, g.PublishedNodes(box))
	assert.Empty(t, g.ContainerMembers(box))
}

func TestMetaGraph(t *testing.T) {
	g := NewMemory()
	rig, _ := g.CreateNode(TypeNetwork, "rig", "")
	c1, _ := g.CreateNode(TypeNetwork, "c1", "")
	c2, _ := g.CreateNode(TypeNetwork, "c2", "")

	require.NoError(t, g.ConnectMeta(rig, c1))
	require.NoError(t, g.ConnectMeta(rig, c2))
	require.NoError(t, g.ConnectMeta(rig, c1))
	assert.Equal(t, []NodeID{c1, c2}, g.MetaChildren(rig))
	assert.Equal(t, []NodeID{rig}, g.MetaParents(c2))

	require.NoError(t, g.DeleteNodes(c1))
	assert.Equal(t, []NodeID{c2}, g.MetaChildren(rig))

	require.NoError(t, g.DisconnectMeta(rig, c2))
	assert.ErrorIs(t, g.DisconnectMeta(rig, c2), ErrNotConnected)
}

func TestModifierJoinsErrors(t *testing.T) {
	g := NewMemory()
	a, _ := g.CreateNode(TypeTransform, "a", "")
	b, _ := g.CreateNode(TypeTransform, "b", "")
	locked, _ := g.CreateNode(TypeTransform, "locked", "")
	require.NoError(t, g.SetLocked(locked, true))

	mod := NewModifier(g).
		Rename(a, "a_renamed").
		Rename(locked, "nope").
		Reparent(b, a).
		SetAttribute(b, AttrNameVisibility, false)
	assert.Equal(t, 4, mod.Len())

	err := mod.DoIt()
	assert.ErrorIs(t, err, ErrNodeLocked)
	assert.Equal(t, "a_renamed", g.Name(a))
	assert.Equal(t, a, g.Parent(b))
	assert.False(t, g.IsVisible(b))
	assert.Zero(t, mod.Len())
}
