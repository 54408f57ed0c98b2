package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/hive/internal/core/observability/log"
)

func protectedDriver(label, driver string, rename bool) *SpaceSwitchDriverDefinition {
	return &SpaceSwitchDriverDefinition{
		Label:       label,
		Driver:      driver,
		Permissions: Permissions{AllowDelete: BoolPtr(false), AllowRename: BoolPtr(rename)},
	}
}

func testDefinition() *ComponentDefinition {
	return &ComponentDefinition{
		Name:    "arm",
		Side:    "L",
		Type:    "testComp",
		Version: LatestVersion,
		Parent:  "spine:M",
		GuideLayer: GuideLayerDefinition{LayerDefinition: LayerDefinition{
			DAG: []*NodeDefinition{
				{ID: "root", Name: "root", Type: NodeGuide, Translate: []float64{0, 0, 0}, PivotShape: "cube", PivotColor: []float64{1, 1, 0}},
				{ID: "upr", Name: "upr", Parent: "root", Type: NodeGuide, Translate: []float64{1, 0, 0}, PivotShape: "sphere", PivotColor: []float64{0, 1, 0}},
				{ID: "lwr", Name: "lwr", Parent: "upr", Type: NodeGuide, Translate: []float64{3, 0, 0}, Rotate: []float64{0, 10, 0}},
				{ID: "world", Name: "world", Type: NodeGuide, Internal: true},
			},
			Settings: []*AttributeDefinition{{Name: "manualOrient", Type: "bool", Value: false}},
			Metadata: []*AttributeDefinition{{Name: "upstream", Type: "string", Value: "{}"}},
		}},
		DeformLayer: DeformLayerDefinition{LayerDefinition: LayerDefinition{
			DAG: []*NodeDefinition{
				{ID: "upr", Name: "upr", Type: NodeJoint},
				{ID: "lwr", Name: "lwr", Parent: "upr", Type: NodeJoint},
			},
		}},
		RigLayer: RigLayerDefinition{
			Settings: map[string][]*AttributeDefinition{
				ControlPanelName: {{Name: "ikFk", Type: "float", Value: 0.0, Default: 0.0}},
			},
		},
		SpaceSwitching: []*SpaceSwitchDefinition{
			{
				Label:  "parentSpace",
				Driven: "upr",
				Type:   "parent",
				Drivers: []*SpaceSwitchDriverDefinition{
					protectedDriver("parent", "@{self.inputLayer.upr}", true),
					protectedDriver("world", "@{self.inputLayer.world}", false),
					{Label: "root", Driver: "@{root:M.rigLayer.godNode}"},
				},
				ControlPanelFilter: ControlPanelFilter{Group: "spaces", Default: "parent"},
			},
		},
	}
}

func TestSceneDataRoundTrip(t *testing.T) {
	d := testDefinition()
	d.SetOriginal(d.Clone())

	raw := d.ToSceneData()
	for _, name := range SceneAttributeNames() {
		assert.Contains(t, raw, name)
	}

	loaded := FromSceneData(raw, d, log.Nop())
	assert.True(t, Equal(d, loaded))
	assert.Same(t, d, loaded.Original())
}

func TestSceneDataStoresSwitchDelta(t *testing.T) {
	original := testDefinition()
	d := original.Clone()
	d.SetOriginal(original)
	d.SpaceSwitching[0].Drivers[2].Driver = "@{self.inputLayer.other}"

	raw := d.ToSceneData()
	assert.NotContains(t, raw[AttrSpaceSwitching], "godNode")

	loaded := FromSceneData(raw, original, log.Nop())
	require.Len(t, loaded.SpaceSwitching, 1)
	assert.Equal(t, "@{self.inputLayer.other}", loaded.SpaceSwitching[0].Driver("root").Driver)
	assert.Equal(t, "@{self.inputLayer.upr}", loaded.SpaceSwitching[0].Driver("parent").Driver)
}

func TestParseRawDefinitionToleratesMalformedJSON(t *testing.T) {
	raw := testDefinition().ToSceneData()
	raw[SceneAttrName(GuideLayerType, SectionDAG)] = "{not json"

	def := ParseRawDefinition(raw, log.Nop())
	assert.Empty(t, def.GuideLayer.DAG)
	assert.Equal(t, "arm", def.Name)
	assert.Len(t, def.DeformLayer.DAG, 2)
}

func TestGuideUpdatePreservesUntouchedFields(t *testing.T) {
	d := testDefinition()
	before := d.Clone()

	d.GuideLayer.Update(&GuideLayerDefinition{LayerDefinition: LayerDefinition{
		DAG: []*NodeDefinition{
			{ID: "root"},
			{ID: "upr", Translate: []float64{2, 0, 0}},
			{ID: "lwr"},
			{ID: "world"},
		},
	}})

	upr := d.GuideLayer.Node("upr")
	assert.Equal(t, []float64{2, 0, 0}, upr.Translate)
	assert.Equal(t, "sphere", upr.PivotShape)
	assert.Equal(t, []float64{0, 1, 0}, upr.PivotColor)
	assert.Equal(t, "root", upr.Parent)

	for _, id := range []string{"root", "lwr", "world"} {
		assert.Equal(t, before.GuideLayer.Node(id), d.GuideLayer.Node(id), id)
	}
}

func TestGuideUpdatePurgeSkipsInternal(t *testing.T) {
	d := testDefinition()

	d.GuideLayer.Update(&GuideLayerDefinition{LayerDefinition: LayerDefinition{
		DAG: []*NodeDefinition{
			{ID: "root"},
			{ID: "upr"},
			{ID: "hand", Parent: "upr", Type: NodeGuide},
		},
		Settings: []*AttributeDefinition{{Name: "manualOrient", Value: true}, {Name: "mirror", Type: "bool", Value: true}},
	}})

	assert.Equal(t, []string{"root", "upr", "world", "hand"}, d.GuideLayer.NodeIDs())
	assert.Equal(t, true, d.GuideLayer.Setting("manualOrient").Value)
	assert.Equal(t, "bool", d.GuideLayer.Setting("manualOrient").Type)
	assert.NotNil(t, d.GuideLayer.Setting("mirror"))
}

func TestGuideUpdateReparents(t *testing.T) {
	d := testDefinition()
	d.GuideLayer.Update(&GuideLayerDefinition{LayerDefinition: LayerDefinition{
		DAG: []*NodeDefinition{{ID: "root"}, {ID: "upr"}, {ID: "lwr", Parent: "root"}},
	}})
	assert.Equal(t, "root", d.GuideLayer.Node("lwr").Parent)
}

func TestDeleteNodeMovesChildrenUp(t *testing.T) {
	d := testDefinition()
	require.True(t, d.GuideLayer.DeleteNode("upr"))
	assert.Equal(t, "root", d.GuideLayer.Node("lwr").Parent)
	assert.False(t, d.GuideLayer.DeleteNode("upr"))
}

func TestOrderedPutsParentsFirst(t *testing.T) {
	l := LayerDefinition{DAG: []*NodeDefinition{
		{ID: "c", Parent: "b"},
		{ID: "b", Parent: "a"},
		{ID: "a"},
	}}
	var ids []string
	for _, n := range l.Ordered() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestSpaceSwitchDifference(t *testing.T) {
	base := testDefinition().SpaceSwitching[0]

	assert.Empty(t, base.Clone().Difference(base))

	// order change: renameable protected drivers keep only their label, the
	// protected non-renameable one is dropped, the rest is written in full
	reordered := base.Clone()
	d := reordered.Drivers
	reordered.Drivers = []*SpaceSwitchDriverDefinition{d[2], d[1], d[0]}

	diff := reordered.Difference(base)
	drivers, ok := diff["drivers"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, drivers, 2)
	assert.Equal(t, map[string]any{"label": "root", "driver": "@{root:M.rigLayer.godNode}"}, drivers[0])
	assert.Equal(t, map[string]any{"label": "parent"}, drivers[1])

	// a baseline without drivers yields no delta at all
	empty := base.Clone()
	empty.Drivers = nil
	assert.Empty(t, reordered.Difference(empty))
	moved := reordered.Clone()
	moved.Driven = "other"
	moved.Type = "orient"
	assert.Empty(t, moved.Difference(empty))

	// same order, changed driver: full list
	changed := base.Clone()
	changed.Drivers[2].Driver = "@{self.inputLayer.x}"
	full := changed.Difference(base)["drivers"].([]map[string]any)
	assert.Len(t, full, 3)
}

func TestApplyDifferenceRestoresProtectedDrivers(t *testing.T) {
	base := testDefinition().SpaceSwitching[0]
	reordered := base.Clone()
	d := reordered.Drivers
	reordered.Drivers = []*SpaceSwitchDriverDefinition{d[2], d[0], d[1]}
	reordered.ControlPanelFilter.Default = "root"

	out, err := ApplyDifference(base, reordered.Difference(base))
	require.NoError(t, err)
	// world is put back at its base position
	assert.Equal(t, []string{"root", "world", "parent"}, out.Labels())
	assert.Equal(t, "@{self.inputLayer.upr}", out.Driver("parent").Driver)
	assert.Equal(t, "root", out.ControlPanelFilter.Default)
	assert.False(t, out.Driver("world").Permissions.CanRename())
}

func TestSpaceSwitchValidate(t *testing.T) {
	s := testDefinition().SpaceSwitching[0]
	require.NoError(t, s.Validate())

	s.ControlPanelFilter.Default = "missing"
	assert.ErrorIs(t, s.Validate(), ErrInvalidDefaultDriver)

	s.ControlPanelFilter.Default = ""
	s.Drivers = append(s.Drivers, &SpaceSwitchDriverDefinition{Label: "root"})
	assert.ErrorIs(t, s.Validate(), ErrDuplicateDriver)
}

func TestMergeAttributesWithSpaceSwitches(t *testing.T) {
	switches := []*SpaceSwitchDefinition{
		{Label: "ikSpace", Drivers: []*SpaceSwitchDriverDefinition{{Label: "world"}, {Label: "root"}}, ControlPanelFilter: ControlPanelFilter{Default: "root", InsertAfter: "ikFk"}},
		{Label: "fkSpace", Drivers: []*SpaceSwitchDriverDefinition{{Label: "parent"}, {Label: "world"}}},
		{Label: "aimSpace", Drivers: []*SpaceSwitchDriverDefinition{{Label: "a"}}},
		{Label: "old", Drivers: []*SpaceSwitchDriverDefinition{{Label: "a"}}, Active: BoolPtr(false)},
	}
	attrs := []*AttributeDefinition{
		{Name: "ikFk", Type: "float"},
		{Name: "stretch", Type: "float"},
		{Name: "old", Type: "enum"},
	}

	out := MergeAttributesWithSpaceSwitches(attrs, switches, true)
	var names []string
	for _, a := range out {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"ikFk", "ikSpace", "stretch", "spaces", "fkSpace", "aimSpace"}, names)

	ik := findAttr(out, "ikSpace")
	assert.Equal(t, []string{"world", "root"}, ik.Enums)
	assert.Equal(t, 1, ik.Value)

	// existing attributes keep their value and position
	ik.Value = 0
	again := MergeAttributesWithSpaceSwitches(out, switches, false)
	assert.Equal(t, 0, findAttr(again, "ikSpace").Value)
	assert.NotNil(t, findAttr(again, "old"))
	assert.Len(t, attrs, 3)
}

func TestMergeAttributesCopiesExistingAttributes(t *testing.T) {
	switches := []*SpaceSwitchDefinition{
		{Label: "ikSpace", Drivers: []*SpaceSwitchDriverDefinition{{Label: "world"}, {Label: "root"}}, ControlPanelFilter: ControlPanelFilter{Default: "root"}},
	}
	stale := &AttributeDefinition{Name: "ikSpace", Type: "float", Value: 7}
	attrs := []*AttributeDefinition{stale}

	out := MergeAttributesWithSpaceSwitches(attrs, switches, false)
	merged := findAttr(out, "ikSpace")
	require.NotNil(t, merged)
	assert.NotSame(t, stale, merged)
	assert.Equal(t, "enum", merged.Type)
	assert.Equal(t, []string{"world", "root"}, merged.Enums)
	assert.Equal(t, 1, merged.Value)

	assert.Same(t, stale, attrs[0])
	assert.Equal(t, "float", stale.Type)
	assert.Equal(t, 7, stale.Value)
	assert.Nil(t, stale.Enums)
}

func TestMigrateOverridesRigSettings(t *testing.T) {
	original := testDefinition()
	stale := original.Clone()
	stale.Version = "0.3.0"
	stale.RigLayer.Settings = map[string][]*AttributeDefinition{ControlPanelName: {{Name: "legacy"}}}
	stale.GuideLayer.Settings = nil

	out := MigrateToLatestVersion(stale, original)
	assert.Equal(t, LatestVersion, out.Version)
	assert.NotNil(t, out.RigLayer.Setting(ControlPanelName, "ikFk"))
	assert.Nil(t, out.RigLayer.Setting(ControlPanelName, "legacy"))
	assert.Empty(t, out.GuideLayer.Settings)
	assert.Equal(t, "0.3.0", stale.Version)

	future := original.Clone()
	future.Version = "9.0.0"
	assert.Equal(t, "9.0.0", MigrateToLatestVersion(future, nil).Version)
	assert.True(t, NeedsMigration("garbage"))
}

func TestLoadDefinitionMergesTemplate(t *testing.T) {
	template := testDefinition()
	template.GuideLayer.Settings = append(template.GuideLayer.Settings, &AttributeDefinition{Name: "newSetting", Type: "int", Value: 2.0})
	template.SpaceSwitching = append(template.SpaceSwitching, &SpaceSwitchDefinition{Label: "newSwitch"})

	data := testDefinition()
	data.GuideLayer.Settings[0].Value = true

	out := LoadDefinition(data, template)
	assert.Equal(t, true, out.GuideLayer.Setting("manualOrient").Value)
	assert.NotNil(t, out.GuideLayer.Setting("newSetting"))
	assert.NotNil(t, out.SpaceSwitch("newSwitch"))
	assert.Same(t, template, out.Original())
}

func TestMirrorAndDuplicate(t *testing.T) {
	d := testDefinition()
	d.SpaceSwitching[0].Drivers[2].Driver = "@{arm:L.rigLayer.fk01}"
	d.Connections = []*ConnectionDefinition{{Driven: "root", Type: "parent", Drivers: []ConnectionDriver{{Component: "spine:M", ID: "chest"}}}}

	m := d.Mirror(MirrorSide(d.Side))
	assert.Equal(t, "R", m.Side)
	assert.Equal(t, []float64{-3, 0, 0}, m.GuideLayer.Node("lwr").Translate)
	assert.Equal(t, []float64{0, -10, 0}, m.GuideLayer.Node("lwr").Rotate)
	assert.Equal(t, "@{arm:R.rigLayer.fk01}", m.SpaceSwitching[0].Driver("root").Driver)
	assert.Equal(t, "spine:M", m.Connections[0].Drivers[0].Component)
	assert.Equal(t, []float64{3, 0, 0}, d.GuideLayer.Node("lwr").Translate)

	dup := d.Duplicate("arm1", "L")
	assert.Equal(t, "arm1:L", dup.Token())
	assert.Equal(t, "@{arm1:L.rigLayer.fk01}", dup.SpaceSwitching[0].Driver("root").Driver)
}

func TestParseYAMLTemplate(t *testing.T) {
	def, err := Parse([]byte(`
name: arm
side: L
type: testComp
guideLayer:
  dag:
    - id: root
      translate: [0, 0, 0]
    - id: upr
      parent: root
      translate: [1, 0, 0]
  settings:
    - name: count
      type: int
      value: 3
rigLayer:
  settings:
    controlPanel:
      - name: ikFk
        type: float
        value: 0
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "upr"}, def.GuideLayer.NodeIDs())
	assert.Equal(t, 3.0, def.GuideLayer.Setting("count").Value)
	assert.NotNil(t, def.RigLayer.Setting(ControlPanelName, "ikFk"))

	_, err = Parse([]byte(`{"name": `))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestFingerprints(t *testing.T) {
	a := Fingerprints(map[string]string{"x": "1", "y": "2"})
	b := Fingerprints(map[string]string{"x": "1", "y": "3"})
	assert.Equal(t, a["x"], b["x"])
	assert.NotEqual(t, a["y"], b["y"])
}
