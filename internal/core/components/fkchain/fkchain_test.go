package fkchain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

type host struct {
	graph *scene.Memory
	namer naming.Namer
	root  scene.NodeID
	layer scene.NodeID
	comps []*component.Component
}

func newHost(t *testing.T) *host {
	t.Helper()
	g := scene.NewMemory()
	root, err := g.CreateNode(scene.TypeTransform, "rig_components_hrc", "")
	require.NoError(t, err)
	layer, err := g.CreateNode(scene.TypeNetwork, "rig_components_meta", "")
	require.NoError(t, err)
	return &host{graph: g, namer: naming.NewManager().Namer(""), root: root, layer: layer}
}

func (h *host) Graph() scene.Graph { return h.graph }
func (h *host) Logger() log.Log { return log.Nop() }
func (h *host) Metrics() metrics.Recorder { return metrics.Nop() }
func (h *host) Namer() naming.Namer { return h.namer }
func (h *host) Options() component.Options { return component.Options{} }
func (h *host) ComponentRoot() scene.NodeID { return h.root }
func (h *host) ComponentLayerMeta() scene.NodeID { return h.layer }

func (h *host) FindComponent(name, side string) (*component.Component, error) {
	for _, c := range h.comps {
		if c.Name() == name && c.Side() == side {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s:%s", component.ErrComponentNotFound, name, side)
}

func (h *host) create(t *testing.T, def *definition.ComponentDefinition) *component.Component {
	t.Helper()
	c := component.New(h, New(), def)
	require.NoError(t, c.Create())
	h.comps = append(h.comps, c)
	return c
}

func tail() *definition.ComponentDefinition {
	def := Template().Duplicate("tail", "L")
	return def
}

func TestBuildRig(t *testing.T) {
	h := newHost(t)
	g := h.graph
	c := h.create(t, tail())

	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.BuildRig(""))
	require.NoError(t, c.SetupSpaceSwitches())

	rig, err := c.RigLayer()
	require.NoError(t, err)
	controls := rig.Controls()
	require.Len(t, controls, 3)
	assert.Equal(t, "tail_L_fk01_anim", controls[0].Name())
	assert.Equal(t, "circle", controls[0].Shape())
	assert.Equal(t, controls[0].Node(), controls[1].ControlParent().Node())

	panel, err := rig.ControlPanel()
	require.NoError(t, err)
	assert.True(t, g.HasAttribute(panel.Node(), SpaceSwitchLabel))

	sw, err := rig.SpaceSwitch(SpaceSwitchLabel)
	require.NoError(t, err)
	assert.Len(t, sw.Drivers, 2)

	deform, err := c.DeformLayer()
	require.NoError(t, err)
	fk01, err := deform.Joint("fk01")
	require.NoError(t, err)
	fk02, err := deform.Joint("fk02")
	require.NoError(t, err)
	assert.True(t, fk02.Translation().ApproxEqual(mathx.Vec3(3, 0, 0), 1e-6))

	require.NoError(t, controls[0].SetWorldMatrix(mathx.TranslationMatrix(mathx.Vec3(1, 2, 0))))
	assert.True(t, fk01.Translation().ApproxEqual(mathx.Vec3(1, 2, 0), 1e-6))
	assert.True(t, fk02.Translation().ApproxEqual(mathx.Vec3(3, 2, 0), 1e-6))
}

func TestRebuildKeepsControlShape(t *testing.T) {
	h := newHost(t)
	c := h.create(t, tail())
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.BuildRig(""))

	c.Definition().RigLayer.Node("fk02").Shape = "square"
	require.NoError(t, c.DeleteRig())
	require.NoError(t, c.BuildRig(""))

	rig, err := c.RigLayer()
	require.NoError(t, err)
	ctl, err := rig.Control("fk02")
	require.NoError(t, err)
	assert.Equal(t, "square", ctl.Shape())
}

func TestBuildRigWithoutJoints(t *testing.T) {
	h := newHost(t)
	def := tail()
	def.GuideLayer.DAG = def.GuideLayer.DAG[:1]
	def.SpaceSwitching = nil
	c := h.create(t, def)
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))

	err := c.BuildRig("")
	require.Error(t, err)
	assert.ErrorIs(t, err, component.ErrRigBuild)
	assert.ErrorIs(t, err, ErrNoJoints)
	assert.False(t, c.HasRig())
}

func TestSpaceSwitchUIData(t *testing.T) {
	h := newHost(t)
	c := h.create(t, tail())
	require.NoError(t, c.BuildGuide())
	require.NoError(t, c.BuildDeform(""))
	require.NoError(t, c.BuildRig(""))

	data := c.SpaceSwitchUIData()
	require.Len(t, data.Driven, 3)
	assert.Equal(t, "fk01", data.Driven[0].Label)
	assert.Equal(t, "@{self.rigLayer.fk01}", data.Driven[0].Expression)
}
