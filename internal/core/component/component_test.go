package component

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

const tol = 1e-6

type testHost struct {
	graph *scene.Memory
	namer naming.Namer
	opts  Options
	root  scene.NodeID
	layer scene.NodeID
	comps []*Component
}

func newHost(t *testing.T) *testHost {
	t.Helper()
	g := scene.NewMemory()
	root, err := g.CreateNode(scene.TypeTransform, "rig_components_hrc", "")
	require.NoError(t, err)
	layer, err := g.CreateNode(scene.TypeNetwork, "rig_components_meta", "")
	require.NoError(t, err)
	return &testHost{graph: g, namer: naming.NewManager().Namer(""), root: root, layer: layer}
}

func (h *testHost) Graph() scene.Graph { return h.graph }
func (h *testHost) Logger() log.Log { return log.Nop() }
func (h *testHost) Metrics() metrics.Recorder { return metrics.Nop() }
func (h *testHost) Namer() naming.Namer { return h.namer }
func (h *testHost) Options() Options { return h.opts }
func (h *testHost) ComponentRoot() scene.NodeID { return h.root }
func (h *testHost) ComponentLayerMeta() scene.NodeID { return h.layer }

func (h *testHost) FindComponent(name, side string) (*Component, error) {
	for _, c := range h.comps {
		if c.Name() == name && c.Side() == side {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s:%s", ErrComponentNotFound, name, side)
}

func (h *testHost) add(t *testing.T, def *definition.ComponentDefinition, behavior Behavior) *Component {
	t.Helper()
	c := New(h, behavior, def)
	require.NoError(t, c.Create())
	h.comps = append(h.comps, c)
	return c
}

func chainDef(name, side string) *definition.ComponentDefinition {
	def := &definition.ComponentDefinition{Name: name, Side: side, Type: "chain"}
	def.GuideLayer.DAG = []*definition.NodeDefinition{
		{ID: definition.RootID, Translate: []float64{0, 0, 0}},
		{ID: "upr", Parent: definition.RootID, Translate: []float64{2, 0, 0}},
		{ID: "lwr", Parent: "upr", Translate: []float64{4, 0, 0}},
	}
	def.GuideLayer.Settings = []*definition.AttributeDefinition{{Name: "jointCount", Type: "int", Value: 2}}
	return def
}

// chainBehavior builds one control per joint, each parented to the previous one.
type chainBehavior struct{ BaseBehavior }

func (chainBehavior) SetupRig(c *Component, _ scene.NodeID) error {
	rig, err := c.RigLayer()
	if err != nil {
		return err
	}
	deform, err := c.DeformLayer()
	if err != nil {
		return err
	}
	var parent scene.NodeID
	for _, j := range deform.Joints() {
		def := j.Serialize()
		def.Type = definition.NodeControl
		def.Parent = ""
		ctl, err := rig.CreateControl(c.ObjectName(j.ID(), naming.TypeControl), def, parent)
		if err != nil {
			return err
		}
		parent = ctl.Node()
	}
	return nil
}

func translation(n hivenodes.DagNode) mathx.Vector3 { return n.WorldMatrix().Translation() }

func TestCreate(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.add(t, chainDef("arm", "L"), nil)

	assert.True(t, c.Exists())
	assert.Equal(t, "arm:L", c.Token())
	assert.Equal(t, "arm_L_meta", g.Name(c.Meta()))
	root := c.RootTransform()
	assert.Equal(t, "arm_L_hrc", g.Name(root))
	assert.Equal(t, h.root, g.Parent(root))
	assert.True(t, g.IsLocked(root))
	assert.Contains(t, g.MetaParents(c.Meta()), h.layer)
	assert.True(t, g.HasAttribute(c.Meta(), definition.AttrInfo))
	assert.False(t, c.HasGuide())
	assert.False(t, c.HasSkeleton())
	assert.Nil(t, c.Parent())

	assert.ErrorIs(t, c.Create(), ErrComponentExists)

	unnamed := New(h, nil, &definition.ComponentDefinition{})
	assert.ErrorIs(t, unnamed.Create(), ErrInvalidName)

	missing := New(h, nil, chainDef("leg", "R"))
	assert.ErrorIs(t, missing.BuildGuide(), ErrMissingMetaNode)
}

func TestCreateDefaultsSide(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("spine", ""), nil)
	assert.Equal(t, definition.DefaultSide, c.Side())
	assert.Equal(t, "spine_M_meta", h.graph.Name(c.Meta()))
}

func TestBuildGuideIsIdempotent(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.add(t, chainDef("arm", "L"), nil)

	require.NoError(t, c.BuildGuide())
	assert.True(t, c.HasGuide())
	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "upr", "lwr"}, guides.GuideIDs())
	assert.Equal(t, "arm_L_guideLayer_hrc", g.Name(guides.RootTransform()))

	upr, err := guides.Guide("upr")
	require.NoError(t, err)
	assert.Equal(t, "arm_L_upr_guid", upr.Name())
	assert.Equal(t, "arm_L_upr_guid_srt", g.Name(upr.SRT()))
	assert.True(t, g.IsLocked(upr.Node()))
	assert.True(t, mathx.Vec3(2, 0, 0).ApproxEqual(translation(upr.DagNode), tol))
	assert.Len(t, hivenodes.Annotations(g, guides.RootTransform()), 2)

	published := g.PublishedNodes(c.Container())
	require.Len(t, published, 1)
	assert.Equal(t, "arm_L_root_guid", published[0].Name)
	var aliases []string
	for _, p := range g.PublishedAttributes(c.Container()) {
		aliases = append(aliases, p.Alias)
	}
	assert.Contains(t, aliases, "jointCount")

	nodes := len(g.Nodes())
	require.NoError(t, c.BuildGuide())
	assert.Equal(t, nodes, len(g.Nodes()))
	assert.Equal(t, []string{"root", "upr", "lwr"}, guides.GuideIDs())
	again, err := guides.Guide("upr")
	require.NoError(t, err)
	assert.Equal(t, upr.Node(), again.Node())
	assert.Equal(t, "root", again.GuideParent().ID())
	assert.Len(t, hivenodes.Annotations(g, guides.RootTransform()), 2)
}

func TestBuildGuidePurgesUndeclaredGuides(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, c.BuildGuide())

	c.Definition().GuideLayer.DeleteNode("lwr")
	require.NoError(t, c.BuildGuide())
	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "upr"}, guides.GuideIDs())
	assert.Equal(t, []string{"root", "upr"}, c.Definition().GuideLayer.NodeIDs())
	assert.Len(t, hivenodes.Annotations(h.graph, guides.RootTransform()), 1)
}

func TestBuildGuideKeepsInternalGuides(t *testing.T) {
	h := newHost(t)
	def := chainDef("arm", "L")
	def.GuideLayer.Node("lwr").Internal = true
	c := h.add(t, def, nil)
	require.NoError(t, c.BuildGuide())

	c.Definition().GuideLayer.DeleteNode("lwr")
	require.NoError(t, c.BuildGuide())
	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.Contains(t, guides.GuideIDs(), "lwr")
	assert.Contains(t, c.Definition().GuideLayer.NodeIDs(), "lwr")
}

func TestBuildDeform(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.add(t, chainDef("arm", "L"), nil)

	err := c.BuildDeform("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeformBuild)
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.False(t, c.HasSkeleton())

	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	assert.True(t, c.HasSkeleton())

	deform, err := c.DeformLayer()
	require.NoError(t, err)
	joints := deform.Joints()
	require.Len(t, joints, 2)
	assert.Equal(t, "upr", joints[0].ID())
	assert.Equal(t, "arm_L_upr_jnt", joints[0].Name())
	assert.Equal(t, "lwr", joints[1].ID())
	assert.Equal(t, "upr", joints[1].JointParent().ID())
	assert.True(t, mathx.Vec3(4, 0, 0).ApproxEqual(translation(joints[1].DagNode), tol))

	inputs, err := c.InputLayer()
	require.NoError(t, err)
	require.Len(t, inputs.Inputs(), 1)
	assert.Equal(t, definition.RootID, inputs.Inputs()[0].ID())

	outputs, err := c.OutputLayer()
	require.NoError(t, err)
	require.Len(t, outputs.Outputs(), 2)
	for _, out := range outputs.Outputs() {
		cns := g.Constraints(out.Node())
		require.Len(t, cns, 1)
		assert.Equal(t, out.ID(), cns[0].Metadata[metaOutputFollow])
	}

	assert.Equal(t, []string{"upr", "lwr"}, c.Definition().DeformLayer.NodeIDs())
	assert.Equal(t, []string{"upr", "lwr"}, c.Definition().OutputLayer.NodeIDs())

	require.NoError(t, c.BuildDeform(""))
	assert.Len(t, deform.Joints(), 2)
	assert.Equal(t, joints[0].Node(), deform.Joints()[0].Node())
}

func TestBuildRigWithoutSetupFails(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))

	err := c.BuildRig("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRigBuild)
	assert.ErrorIs(t, err, ErrNotImplemented)
	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageRig, stage)
	assert.False(t, c.HasRig())
	_, err = c.RigLayer()
	assert.NoError(t, err, "a failed rig stage leaves the partial layer")

	err = c.Polish()
	assert.ErrorIs(t, err, ErrPolishBuild)
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.False(t, c.HasPolished())
}

func TestStageFlagsAreIndependent(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.add(t, chainDef("arm", "L"), chainBehavior{})
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.BuildRig(""))
	assert.True(t, c.HasRig())

	rig, err := c.RigLayer()
	require.NoError(t, err)
	controls := rig.Controls()
	require.Len(t, controls, 2)
	assert.Equal(t, "arm_L_upr_anim", controls[0].Name())
	tag := hivenodes.ControllerTagOf(g, controls[1].Node())
	require.NotNil(t, tag)
	require.NotNil(t, tag.Parent())
	assert.Equal(t, hivenodes.ControllerTagOf(g, controls[0].Node()).Node(), tag.Parent().Node())

	deform, err := c.DeformLayer()
	require.NoError(t, err)
	for _, j := range deform.Joints() {
		assert.False(t, g.IsVisible(j.Node()))
	}

	// a second build leaves the rig alone
	require.NoError(t, c.BuildRig(""))
	assert.Len(t, rig.Controls(), 2)

	require.NoError(t, c.Polish())
	assert.True(t, c.HasPolished())
	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.False(t, g.IsVisible(guides.RootTransform()))

	require.NoError(t, c.DeleteRig())
	assert.False(t, c.HasRig())
	assert.False(t, c.HasPolished())
	assert.True(t, c.HasSkeleton())
	assert.True(t, c.HasGuide())
	for _, j := range deform.Joints() {
		assert.True(t, g.IsVisible(j.Node()))
	}

	require.NoError(t, c.DeleteDeform())
	assert.False(t, c.HasSkeleton())
	assert.True(t, c.HasGuide())
	_, err = c.DeformLayer()
	assert.ErrorIs(t, err, ErrLayerNotFound)

	require.NoError(t, c.DeleteGuide())
	assert.False(t, c.HasGuide())
	assert.True(t, c.Exists())
}

func TestBuildGuideClearsLaterStages(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.BuildGuide())
	assert.True(t, c.HasGuide())
	assert.False(t, c.HasSkeleton())
}

func TestSetParent(t *testing.T) {
	h := newHost(t)
	g := h.graph
	parent := h.add(t, chainDef("spine", "M"), nil)
	child := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, parent.BuildGuide())
	require.NoError(t, child.BuildGuide())

	assert.ErrorIs(t, child.SetParent(child, ""), ErrSelfParent)
	assert.ErrorIs(t, child.SetParent(parent, definition.RootID), ErrNoDeformJoint)

	require.NoError(t, child.SetParent(parent, "lwr"))
	assert.Equal(t, parent, child.Parent())
	assert.Equal(t, []*Component{child}, parent.Children())
	assert.Equal(t, "spine:M", child.Definition().Parent)
	assert.Contains(t, g.MetaParents(child.Meta()), parent.Meta())
	assert.NotContains(t, g.MetaParents(child.Meta()), h.layer)

	require.Len(t, child.Definition().Connections, 1)
	conn := child.Definition().Connections[0]
	assert.Equal(t, definition.RootID, conn.Driven)
	require.Len(t, conn.Drivers, 1)
	assert.Equal(t, "spine:M", conn.Drivers[0].Component)
	assert.Equal(t, "lwr", conn.Drivers[0].ID)
	assert.NotNil(t, child.Definition().GuideLayer.Meta(MetaSourceGuides))

	guides, err := child.GuideLayer()
	require.NoError(t, err)
	root, err := guides.RootGuide()
	require.NoError(t, err)
	assert.Len(t, g.Constraints(root.SRT()), 2)
	assert.True(t, mathx.Vec3(0, 0, 0).ApproxEqual(translation(root.DagNode), tol), "binding keeps the offset")

	parentGuides, err := parent.GuideLayer()
	require.NoError(t, err)
	driver, err := parentGuides.Guide("lwr")
	require.NoError(t, err)
	require.NoError(t, driver.SetWorldMatrix(mathx.TranslationMatrix(mathx.Vec3(4, 1, 0))))
	assert.True(t, mathx.Vec3(0, 1, 0).ApproxEqual(translation(root.DagNode), tol))

	// rebuilding the child guides keeps the binding annotation
	require.NoError(t, child.BuildGuide())
	assert.Len(t, hivenodes.AnnotationsFrom(g, guides.RootTransform(), root.Node()), 1)

	require.NoError(t, parent.BuildDeform(""))
	require.NoError(t, child.BuildDeform(""))
	parentDeform, err := parent.DeformLayer()
	require.NoError(t, err)
	lwr, err := parentDeform.Joint("lwr")
	require.NoError(t, err)
	assert.Equal(t, lwr.Node(), child.ComponentParentJoint(""))

	inputs, err := child.InputLayer()
	require.NoError(t, err)
	in, err := inputs.Input(definition.RootID)
	require.NoError(t, err)
	assert.Len(t, in.Constraints(), 1)
	assert.Equal(t, "spine:M", scene.MustString(g, in.Node(), AttrSourceComponent))

	require.NoError(t, child.RemoveParent())
	assert.Nil(t, child.Parent())
	assert.Empty(t, parent.Children())
	assert.Contains(t, g.MetaParents(child.Meta()), h.layer)
	assert.Empty(t, child.Definition().Connections)
	assert.Empty(t, child.Definition().Parent)
	assert.Nil(t, child.Definition().GuideLayer.Meta(MetaSourceGuides))
	assert.Empty(t, g.Constraints(root.SRT()))
	assert.Empty(t, in.Constraints())
	assert.Equal(t, scene.NodeID("x"), child.ComponentParentJoint("x"))
}

func TestSetParentRejectsCycles(t *testing.T) {
	h := newHost(t)
	a := h.add(t, chainDef("a", "M"), nil)
	b := h.add(t, chainDef("b", "M"), nil)
	c := h.add(t, chainDef("c", "M"), nil)
	require.NoError(t, b.SetParent(a, ""))
	require.NoError(t, c.SetParent(b, ""))

	assert.ErrorIs(t, a.SetParent(b, ""), ErrComponentCycle)
	assert.ErrorIs(t, a.SetParent(c, ""), ErrComponentCycle)
	assert.Nil(t, a.Parent())
	assert.Contains(t, h.graph.MetaParents(a.Meta()), h.layer)
	assert.Empty(t, a.Definition().Parent)

	// moving a subtree sideways is fine
	require.NoError(t, c.SetParent(a, ""))
	assert.Equal(t, a, c.Parent())
}

func TestBuildGuidePurgeKeepsInternalChildren(t *testing.T) {
	h := newHost(t)
	def := chainDef("arm", "L")
	def.GuideLayer.DAG = append(def.GuideLayer.DAG,
		&definition.NodeDefinition{ID: "extra", Parent: "upr", Translate: []float64{2, 2, 0}},
		&definition.NodeDefinition{ID: "helper", Parent: "extra", Translate: []float64{2, 3, 0}, Internal: true},
	)
	c := h.add(t, def, nil)
	require.NoError(t, c.BuildGuide())

	dag := c.Definition().GuideLayer.DAG
	c.Definition().GuideLayer.DAG = slices.DeleteFunc(dag, func(n *definition.NodeDefinition) bool { return n.ID == "extra" })
	require.NoError(t, c.BuildGuide())

	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"root", "upr", "lwr", "helper"}, guides.GuideIDs())
	helper, err := guides.Guide("helper")
	require.NoError(t, err)
	require.NotNil(t, helper.GuideParent())
	assert.Equal(t, "upr", helper.GuideParent().ID())
}

func TestSetParentDefaultsToFirstJointGuide(t *testing.T) {
	h := newHost(t)
	parent := h.add(t, chainDef("spine", "M"), nil)
	child := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, parent.BuildGuide())
	require.NoError(t, child.BuildGuide())

	require.NoError(t, child.SetParent(parent, ""))
	require.Len(t, child.Definition().Connections, 1)
	assert.Equal(t, "upr", child.Definition().Connections[0].Drivers[0].ID)
}

func TestComponentParentJointFallbacks(t *testing.T) {
	h := newHost(t)
	child := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, child.BuildGuide())
	assert.Equal(t, scene.NodeID("fallback"), child.ComponentParentJoint("fallback"))

	neckDef := &definition.ComponentDefinition{Name: "neck", Side: "M", Type: "chain"}
	neckDef.GuideLayer.DAG = []*definition.NodeDefinition{
		{ID: definition.RootID},
		{ID: "base", Parent: definition.RootID, Translate: []float64{0, 3, 0}},
	}
	neck := h.add(t, neckDef, nil)
	require.NoError(t, neck.BuildGuide())
	require.NoError(t, child.SetParent(neck, "base"))
	assert.Equal(t, scene.NodeID("fallback"), child.ComponentParentJoint("fallback"), "parent without skeleton")

	require.NoError(t, neck.BuildDeform(""))
	neckDeform, err := neck.DeformLayer()
	require.NoError(t, err)
	base, err := neckDeform.Joint("base")
	require.NoError(t, err)

	child.Definition().Connections[0].Drivers[0].ID = "ghost"
	assert.Equal(t, base.Node(), child.ComponentParentJoint(""), "single joint parent")

	spineDef := chainDef("spine", "M")
	spineDef.OutputLayer.DAG = []*definition.NodeDefinition{{ID: "tip", Parent: "lwr", Type: definition.NodeOutput}}
	spine := h.add(t, spineDef, nil)
	require.NoError(t, spine.BuildGuide())
	require.NoError(t, spine.BuildDeform(""))
	require.NoError(t, child.SetParent(spine, "lwr"))
	child.Definition().Connections[0].Drivers[0].ID = "tip"

	spineDeform, err := spine.DeformLayer()
	require.NoError(t, err)
	lwr, err := spineDeform.Joint("lwr")
	require.NoError(t, err)
	assert.Equal(t, lwr.Node(), child.ComponentParentJoint(""), "walks up the output hierarchy")
}

func TestRename(t *testing.T) {
	h := newHost(t)
	g := h.graph
	parent := h.add(t, chainDef("spine", "M"), nil)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, parent.BuildGuide())
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.SetParent(parent, "lwr"))

	assert.ErrorIs(t, c.Rename(""), ErrInvalidName)
	require.NoError(t, c.Rename("leg"))
	assert.Equal(t, "leg:L", c.Token())
	assert.Equal(t, "leg_L_meta", g.Name(c.Meta()))
	assert.Equal(t, "leg_L_hrc", g.Name(c.RootTransform()))
	assert.Equal(t, "leg_L_asset", g.Name(c.Container()))

	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.Equal(t, "leg_L_guideLayer_hrc", g.Name(guides.RootTransform()))
	upr, err := guides.Guide("upr")
	require.NoError(t, err)
	assert.Equal(t, "leg_L_upr_guid", upr.Name())
	assert.Equal(t, "leg_L_upr_guid_srt", g.Name(upr.SRT()))
	assert.Equal(t, "leg_L_upr_guid_snap", g.Name(upr.SnapLocator()))
	assert.True(t, g.IsLocked(upr.Node()))

	deform, err := c.DeformLayer()
	require.NoError(t, err)
	j, err := deform.Joint("lwr")
	require.NoError(t, err)
	assert.Equal(t, "leg_L_lwr_jnt", j.Name())

	assert.Equal(t, "leg", scene.MustString(g, c.Meta(), AttrComponentName))
	assert.Equal(t, parent, c.Parent())

	require.NoError(t, parent.Rename("torso"))
	assert.Equal(t, "torso:M", c.Definition().Parent)
	assert.Equal(t, "torso:M", c.Definition().Connections[0].Drivers[0].Component)
	assert.Equal(t, parent, c.Parent())

	require.NoError(t, c.SetSide("R"))
	assert.Equal(t, "leg_R_meta", g.Name(c.Meta()))
	assert.Equal(t, "leg_R_upr_guid", upr.Name())

	other := h.add(t, chainDef("leg", "L"), nil)
	assert.ErrorIs(t, other.SetSide("R"), ErrComponentExists)
	assert.Equal(t, "leg:L", other.Token())
}

func TestDelete(t *testing.T) {
	h := newHost(t)
	g := h.graph
	parent := h.add(t, chainDef("spine", "M"), chainBehavior{})
	child := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, parent.BuildGuide())
	require.NoError(t, child.BuildGuide())
	require.NoError(t, child.SetParent(parent, "lwr"))
	require.NoError(t, parent.BuildDeform(""))
	require.NoError(t, parent.BuildRig(""))

	root := parent.RootTransform()
	meta := parent.Meta()
	require.NoError(t, parent.Delete())
	assert.False(t, parent.Exists())
	assert.False(t, g.Exists(root))
	assert.False(t, g.Exists(meta))

	assert.True(t, child.Exists())
	assert.Nil(t, child.Parent())
	assert.Contains(t, g.MetaParents(child.Meta()), h.layer)
	assert.Empty(t, child.Definition().Connections)
	guides, err := child.GuideLayer()
	require.NoError(t, err)
	rootGuide, err := guides.RootGuide()
	require.NoError(t, err)
	assert.Empty(t, g.Constraints(rootGuide.SRT()))

	assert.ErrorIs(t, parent.Delete(), ErrMissingMetaNode)
}

func TestSaveDefinitionSkipsUnchangedSections(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.add(t, chainDef("arm", "L"), nil)

	dag := definition.SceneAttrName(definition.GuideLayerType, definition.SectionDAG)
	settings := definition.SceneAttrName(definition.GuideLayerType, definition.SectionSettings)
	require.NoError(t, g.Set(c.Meta(), dag, "tampered"))
	require.NoError(t, c.SaveDefinition())
	assert.Equal(t, "tampered", scene.MustString(g, c.Meta(), dag))

	c.Definition().GuideLayer.SetSetting("extra", 1.5)
	require.NoError(t, c.SaveDefinition())
	assert.Contains(t, scene.MustString(g, c.Meta(), settings), "extra")
	assert.Equal(t, "tampered", scene.MustString(g, c.Meta(), dag))
}

func TestSerializeFromScene(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, c.BuildGuide())

	guides, err := c.GuideLayer()
	require.NoError(t, err)
	lwr, err := guides.Guide("lwr")
	require.NoError(t, err)
	require.NoError(t, lwr.SetWorldMatrix(mathx.TranslationMatrix(mathx.Vec3(5, 1, 0))))

	def := c.SerializeFromScene(definition.GuideLayerType)
	assert.InDeltaSlice(t, []float64{5, 1, 0}, def.GuideLayer.Node("lwr").Translate, tol)
	assert.Empty(t, def.DeformLayer.DAG, "unbuilt layers are left alone")
}

func TestLoad(t *testing.T) {
	h := newHost(t)
	c := h.add(t, chainDef("arm", "L"), nil)
	require.NoError(t, c.BuildGuide())

	loaded, err := Load(h, nil, c.Meta(), nil)
	require.NoError(t, err)
	assert.Equal(t, "arm", loaded.Name())
	assert.Equal(t, "L", loaded.Side())
	assert.Equal(t, "chain", loaded.Type())
	assert.True(t, loaded.HasGuide())
	assert.Equal(t, c.Definition().GuideLayer.NodeIDs(), loaded.Definition().GuideLayer.NodeIDs())

	_, err = Load(h, nil, h.layer, nil)
	assert.ErrorIs(t, err, ErrMissingMetaNode)
}
