package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/components/fkchain"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/registry"
	"github.com/zeusync/hive/internal/core/scene"
)

const testComp = "testComp"

func testTemplate() *definition.ComponentDefinition {
	def := &definition.ComponentDefinition{Name: testComp, Type: testComp, Version: definition.LatestVersion}
	def.GuideLayer.DAG = []*definition.NodeDefinition{
		{ID: definition.RootID, Translate: []float64{0, 0, 0}},
		{ID: "upr", Parent: definition.RootID, Translate: []float64{2, 0, 0}},
		{ID: "lwr", Parent: "upr", Translate: []float64{4, 0, 0}},
	}
	return def
}

// recorder logs every hook it sees as "hook:token,token".
type recorder struct{ calls []string }

func (rec *recorder) script() buildscript.Script {
	handle := func(ctx *buildscript.Context) error {
		rec.calls = append(rec.calls, string(ctx.Hook)+":"+joinTokens(ctx.Components))
		return nil
	}
	hooks := make(map[buildscript.Hook]buildscript.Handler, len(buildscript.Hooks))
	for _, h := range buildscript.Hooks {
		hooks[h] = handle
	}
	return &buildscript.Func{Name: "recorder", Defaults: buildscript.Properties{"tag": "default"}, OnHook: hooks}
}

func joinTokens(comps []*component.Component) string {
	out := ""
	for i, c := range comps {
		if i > 0 {
			out += ","
		}
		out += c.Token()
	}
	return out
}

type fixture struct {
	graph    *scene.Memory
	registry *registry.Registry
	factory  *Factory
	rec      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := scene.NewMemory()
	reg := registry.New(log.Nop())
	reg.RegisterComponentType(testComp, testTemplate(), nil)
	reg.RegisterComponentType(fkchain.Type, fkchain.Template(), fkchain.New)
	rec := &recorder{}
	reg.RegisterBuildScript("recorder", rec.script)
	return &fixture{graph: g, registry: reg, factory: NewFactory(g, reg, nil, log.Nop(), nil), rec: rec}
}

func (f *fixture) rig(t *testing.T) *Rig {
	t.Helper()
	r, err := f.factory.Create("TestRig", "")
	require.NoError(t, err)
	return r
}

func TestCreateRig(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	g := f.graph

	assert.True(t, r.Exists())
	assert.Equal(t, "TestRig", r.FullName())
	root := r.RootTransform()
	require.NotEmpty(t, root)
	assert.Equal(t, "TestRig_hrc", g.Name(root))
	assert.True(t, g.IsLocked(root))
	assert.Equal(t, root, g.Parent(r.ComponentRoot()))
	assert.NotEmpty(t, r.ComponentLayerMeta())
	_, err := r.GeometryLayer()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), r.Configuration())
	assert.Empty(t, r.Components())
}

func TestCreateRigValidatesName(t *testing.T) {
	f := newFixture(t)
	_, err := f.factory.Create("", "")
	assert.ErrorIs(t, err, ErrInvalidRigName)
	_, err = f.factory.Create("a:b", "")
	assert.ErrorIs(t, err, ErrInvalidRigName)

	f.rig(t)
	_, err = f.factory.Create("TestRig", "")
	assert.ErrorIs(t, err, ErrRigExists)
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	_, err := f.factory.Find("TestRig")
	assert.ErrorIs(t, err, ErrRigNotFound)

	a, err := f.factory.Create("TestRig", "a")
	require.NoError(t, err)
	found, err := f.factory.Find("TestRig")
	require.NoError(t, err)
	assert.Same(t, a, found)

	_, err = f.factory.Create("TestRig", "b")
	require.NoError(t, err)
	_, err = f.factory.Find("TestRig")
	assert.ErrorIs(t, err, ErrDuplicateRigName)

	found, err = f.factory.Find("b:TestRig")
	require.NoError(t, err)
	assert.Equal(t, "b", found.Namespace())
	assert.Len(t, f.factory.Rigs(), 2)

	started, err := f.factory.Start("c:Other")
	require.NoError(t, err)
	assert.Equal(t, "c:Other", started.FullName())
	again, err := f.factory.Start("c:Other")
	require.NoError(t, err)
	assert.Same(t, started, again)
}

// The generic component has guides and joints but no rig of its own.
func TestBuildPassesOnGenericComponent(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	c, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	assert.Equal(t, "arm:L", c.Token())
	assert.True(t, r.HasComponent("arm", "L"))

	require.NoError(t, r.BuildGuides())
	assert.True(t, c.HasGuide())
	guides, err := c.GuideLayer()
	require.NoError(t, err)
	assert.ElementsMatch(t, testTemplate().GuideLayer.NodeIDs(), guides.GuideIDs())

	require.NoError(t, r.BuildDeform())
	assert.True(t, c.HasSkeleton())
	deform, err := c.DeformLayer()
	require.NoError(t, err)
	want := 0
	for _, id := range c.IDMapping()[definition.DeformLayerType] {
		if id != "" {
			want++
		}
	}
	assert.Len(t, deform.Joints(), want)

	err = r.BuildRigs()
	require.Error(t, err)
	assert.ErrorIs(t, err, component.ErrRigBuild)
	assert.ErrorIs(t, err, component.ErrNotImplemented)
	assert.False(t, c.HasRig())
	_, err = c.RigLayer()
	assert.NoError(t, err, "a failed rig build leaves its layer behind")
	assert.True(t, c.HasSkeleton())
}

func TestBuildGuidesBuildsAncestorsFirst(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	require.NoError(t, r.AddBuildScript("recorder", nil))

	a, err := r.CreateComponent(testComp, "a", "M")
	require.NoError(t, err)
	b, err := r.CreateComponent(testComp, "b", "M")
	require.NoError(t, err)
	c, err := r.CreateComponent(testComp, "c", "M")
	require.NoError(t, err)
	require.NoError(t, b.SetParent(a, ""))
	require.NoError(t, c.SetParent(b, ""))

	require.NoError(t, r.BuildGuides(c))
	assert.True(t, a.HasGuide())
	assert.True(t, b.HasGuide())
	assert.True(t, c.HasGuide())
	assert.Equal(t, []string{
		"preGuideBuild:a:M,b:M,c:M",
		"postGuideBuild:a:M,b:M,c:M",
	}, f.rec.calls)

	// built ancestors are not built again
	f.rec.calls = nil
	require.NoError(t, r.BuildDeform(c))
	assert.Equal(t, []string{
		"preDeformBuild:a:M,b:M,c:M",
		"postDeformBuild:a:M,b:M,c:M",
	}, f.rec.calls)
	assert.True(t, a.HasSkeleton())

	f.rec.calls = nil
	require.NoError(t, r.BuildGuides(c))
	assert.Equal(t, []string{"preGuideBuild:c:M", "postGuideBuild:c:M"}, f.rec.calls)
}

func TestParentCycleIsRejected(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	a, err := r.CreateComponent(testComp, "a", "M")
	require.NoError(t, err)
	b, err := r.CreateComponent(testComp, "b", "M")
	require.NoError(t, err)
	require.NoError(t, b.SetParent(a, ""))

	assert.ErrorIs(t, a.SetParent(b, ""), ErrComponentCycle)
	assert.True(t, r.HasComponent("a", "M"))
	assert.True(t, r.HasComponent("b", "M"))
	assert.Equal(t, []*component.Component{a, b}, r.Components())
	require.NoError(t, r.BuildGuides())
	assert.True(t, a.HasGuide())
	assert.True(t, b.HasGuide())
}

func TestDeformBuildsMissingGuides(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	c, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)

	require.NoError(t, r.BuildDeform(c))
	assert.True(t, c.HasGuide())
	assert.True(t, c.HasSkeleton())
}

func TestOrderParentsFirst(t *testing.T) {
	parents := map[string]string{"b": "a", "c": "b", "d": "a"}
	parent := func(s string) (string, bool) {
		p, ok := parents[s]
		return p, ok
	}
	ordered, cyclic := orderParentsFirst([]string{"c", "d", "b", "a"}, parent)
	assert.Empty(t, cyclic)
	assert.Equal(t, []string{"a", "d", "b", "c"}, ordered)

	// parents outside the set do not block
	ordered, cyclic = orderParentsFirst([]string{"c", "d"}, parent)
	assert.Empty(t, cyclic)
	assert.Equal(t, []string{"c", "d"}, ordered)

	parents["a"] = "c"
	ordered, cyclic = orderParentsFirst([]string{"a", "b", "c", "e"}, parent)
	assert.Equal(t, []string{"e"}, ordered)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cyclic)
}

func TestFKChainPipeline(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	require.NoError(t, r.AddBuildScript("recorder", buildscript.Properties{"tag": "pipeline"}))
	c, err := r.CreateComponent(fkchain.Type, "tail", "L")
	require.NoError(t, err)

	require.NoError(t, r.BuildRigs())
	assert.True(t, c.HasGuide())
	assert.True(t, c.HasSkeleton())
	assert.True(t, c.HasRig())
	rig, err := c.RigLayer()
	require.NoError(t, err)
	assert.Len(t, rig.Controls(), 3)
	_, err = rig.SpaceSwitch(fkchain.SpaceSwitchLabel)
	assert.NoError(t, err, "space switches are set up after the rig pass")

	ok, err := r.Polish()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.HasPolished())
	assert.Contains(t, f.rec.calls, "postPolishBuild:tail:L")

	f.rec.calls = nil
	require.NoError(t, r.DeleteRigs())
	assert.False(t, c.HasRig())
	assert.True(t, c.HasSkeleton())
	assert.True(t, c.HasGuide())
	assert.Equal(t, []string{"preDeleteRigLayer:tail:L"}, f.rec.calls)

	require.NoError(t, r.DeleteDeform())
	assert.False(t, c.HasSkeleton())
	require.NoError(t, r.DeleteGuides())
	assert.False(t, c.HasGuide())
}

func TestPolishToleratesFailures(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	tail, err := r.CreateComponent(fkchain.Type, "tail", "L")
	require.NoError(t, err)
	require.NoError(t, r.BuildRigs(tail))
	arm, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)

	// the generic component cannot get a rig; the chain is polished anyway
	ok, err := r.Polish()
	assert.True(t, ok)
	assert.ErrorIs(t, err, component.ErrRigBuild)
	assert.True(t, tail.HasPolished())
	assert.False(t, arm.HasPolished())
	assert.True(t, arm.HasSkeleton(), "the on demand rig pass built the skeleton first")
}

func TestBuildScripts(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)

	assert.ErrorIs(t, r.AddBuildScript("missing", nil), ErrUnknownScriptID)
	require.NoError(t, r.AddBuildScript("recorder", buildscript.Properties{"tag": "rig"}))
	assert.Equal(t, []string{"recorder"}, r.Scripts().Scripts())
	sc, ok := r.Configuration().Script("recorder")
	require.True(t, ok)
	assert.Equal(t, "rig", sc.Properties["tag"])

	var seen []string
	f.registry.RegisterBuildScript("props", func() buildscript.Script {
		return &buildscript.Func{
			Name:     "props",
			Defaults: buildscript.Properties{"tag": "default", "other": "kept"},
			OnHook: map[buildscript.Hook]buildscript.Handler{
				buildscript.PreDeleteComponent: func(ctx *buildscript.Context) error {
					seen = append(seen, ctx.Component.Token(), ctx.Properties["tag"].(string), ctx.Properties["other"].(string))
					return nil
				},
			},
		}
	})
	require.NoError(t, r.AddBuildScript("props", buildscript.Properties{"tag": "set"}))
	_, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, r.DeleteComponent("arm", "L"))
	assert.Equal(t, []string{"arm:L", "set", "kept"}, seen)
	assert.Contains(t, f.rec.calls, "preDeleteComponent:arm:L")
}

func TestConfigurationPersists(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	_, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)

	cfg := r.Configuration().WithScript("recorder", buildscript.Properties{"tag": "saved"})
	cfg.BlackBox = true
	require.NoError(t, r.SetConfiguration(cfg))
	assert.True(t, r.Options().BlackBox)

	// a fresh factory reads everything back from the scene
	other := NewFactory(f.graph, f.registry, nil, log.Nop(), nil)
	loaded, err := other.Find("TestRig")
	require.NoError(t, err)
	assert.NotSame(t, r, loaded)
	assert.Equal(t, cfg, loaded.Configuration())
	assert.Equal(t, []string{"recorder"}, loaded.Scripts().Scripts())
	comps := loaded.Components()
	require.Len(t, comps, 1)
	assert.Equal(t, "arm:L", comps[0].Token())
	assert.Equal(t, testComp, comps[0].Type())
}

func TestMalformedConfigurationFallsBack(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	require.NoError(t, f.graph.Set(r.Meta(), AttrConfiguration, "{not json"))

	other := NewFactory(f.graph, f.registry, nil, log.Nop(), nil)
	loaded, err := other.Find("TestRig")
	require.NoError(t, err)
	assert.Equal(t, other.Defaults, loaded.Configuration())
}

func TestComponentLookup(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	c, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)

	found, err := r.Component("arm", "L")
	require.NoError(t, err)
	assert.Same(t, c, found)
	_, err = r.Component("arm", "R")
	assert.ErrorIs(t, err, component.ErrComponentNotFound)

	_, err = r.CreateComponent(testComp, "arm", "L")
	assert.ErrorIs(t, err, component.ErrComponentExists)
	_, err = r.CreateComponent("nope", "arm", "R")
	assert.ErrorIs(t, err, registry.ErrUnknownComponentType)

	r.ClearCache()
	found, err = r.Component("arm", "L")
	require.NoError(t, err)
	assert.Equal(t, c.Meta(), found.Meta())
}

func TestCreateComponentFromDefinitionLinksParent(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	spine, err := r.CreateComponent(testComp, "spine", "M")
	require.NoError(t, err)

	def := testTemplate().Duplicate("arm", "L")
	def.Parent = "spine:M"
	arm, err := r.CreateComponentFromDefinition(def)
	require.NoError(t, err)
	assert.Same(t, spine, arm.Parent())
	assert.Equal(t, []*component.Component{spine, arm}, r.Components())

	// a missing parent is remembered but not linked
	orphanDef := testTemplate().Duplicate("leg", "L")
	orphanDef.Parent = "hips:M"
	orphan, err := r.CreateComponentFromDefinition(orphanDef)
	require.NoError(t, err)
	assert.Nil(t, orphan.Parent())
	assert.Equal(t, "hips:M", orphan.Definition().Parent)
}

func TestDuplicateComponent(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	c, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, r.BuildGuides(c))

	dup, err := r.DuplicateComponent(c, "arm2", "")
	require.NoError(t, err)
	assert.Equal(t, "arm2:L", dup.Token())
	assert.True(t, dup.HasGuide())
	assert.Equal(t, testComp, dup.Type())
	assert.Len(t, r.Components(), 2)

	_, err = r.DuplicateComponent(c, "arm2", "L")
	assert.ErrorIs(t, err, component.ErrComponentExists)
}

func TestMirrorComponent(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	spine, err := r.CreateComponent(testComp, "spine", "M")
	require.NoError(t, err)
	arm, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, arm.SetParent(spine, ""))
	require.NoError(t, r.BuildGuides())

	_, err = r.MirrorComponent(spine)
	assert.ErrorIs(t, err, ErrMirrorSide)

	mirror, err := r.MirrorComponent(arm)
	require.NoError(t, err)
	assert.Equal(t, "arm:R", mirror.Token())
	assert.True(t, mirror.HasGuide())
	assert.Same(t, spine, mirror.Parent())
	upr := mirror.Definition().GuideLayer.Node("upr")
	require.NotNil(t, upr)
	assert.InDelta(t, -2, upr.Translate[0], 1e-6)
}

func TestDeleteComponentKeepsChildren(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	spine, err := r.CreateComponent(testComp, "spine", "M")
	require.NoError(t, err)
	arm, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, arm.SetParent(spine, ""))
	require.NoError(t, r.BuildDeform())

	require.NoError(t, r.DeleteComponent("spine", "M"))
	assert.False(t, spine.Exists())
	assert.False(t, r.HasComponent("spine", "M"))
	assert.Nil(t, arm.Parent())
	assert.Contains(t, f.graph.MetaParents(arm.Meta()), r.ComponentLayerMeta())
	assert.Equal(t, []*component.Component{arm}, r.Components())
}

func TestDeleteRig(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	require.NoError(t, r.AddBuildScript("recorder", nil))
	spine, err := r.CreateComponent(testComp, "spine", "M")
	require.NoError(t, err)
	arm, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, arm.SetParent(spine, ""))
	require.NoError(t, r.BuildDeform())

	f.rec.calls = nil
	require.NoError(t, r.Delete())
	assert.False(t, r.Exists())
	assert.Equal(t, []string{
		"preDeleteRig:spine:M,arm:L",
		"preDeleteComponent:arm:L",
		"preDeleteComponent:spine:M",
	}, f.rec.calls)
	assert.Empty(t, f.graph.NodesWithAttribute(hivenodes.AttrHiveType, component.KindComponent))
	_, err = f.factory.Find("TestRig")
	assert.ErrorIs(t, err, ErrRigNotFound)
	assert.ErrorIs(t, r.BuildGuides(), ErrMissingRigNode)
}

func TestBindGeometry(t *testing.T) {
	f := newFixture(t)
	r := f.rig(t)
	_, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, r.BuildDeform())

	skin, err := r.BindGeometry("body_skinCluster")
	require.NoError(t, err)
	assert.True(t, f.graph.Exists(skin))
}

func TestNamingPresetChangeRenames(t *testing.T) {
	f := newFixture(t)
	f.registry.Naming().Register(&naming.Preset{
		Name:   "compact",
		Parent: naming.DefaultPresetName,
		Rules:  map[string]string{naming.RuleContainer: "{componentName}{side}_{type}"},
	})
	r := f.rig(t)
	c, err := r.CreateComponent(testComp, "arm", "L")
	require.NoError(t, err)
	require.NoError(t, r.BuildGuides())
	assert.Equal(t, "arm_L_hrc", f.graph.Name(c.RootTransform()))

	cfg := r.Configuration()
	cfg.NamingPreset = "compact"
	require.NoError(t, r.SetConfiguration(cfg))
	assert.Equal(t, "armL_hrc", f.graph.Name(c.RootTransform()))
	assert.Equal(t, "armL_meta", f.graph.Name(c.Meta()))
	assert.True(t, f.graph.IsLocked(c.RootTransform()))
	assert.True(t, c.HasGuide())
}
