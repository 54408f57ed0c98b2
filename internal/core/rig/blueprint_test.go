package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/components/fkchain"
	"github.com/zeusync/hive/internal/core/registry"
)

const heroBlueprint = `
name: Hero
namespace: chars
configuration:
  blackBox: true
  buildScripts:
    - id: recorder
      properties:
        tag: blueprint
components:
  - type: fkchain
    name: tail
    side: L
    parent: "spine:M"
    driverGuide: fk03
    guides:
      fk01: [1, 1, 0]
  - type: fkchain
    name: spine
`

func TestParseBlueprint(t *testing.T) {
	b, err := ParseBlueprint([]byte(heroBlueprint))
	require.NoError(t, err)
	assert.Equal(t, "Hero", b.Name)
	assert.Equal(t, "chars", b.Namespace)
	require.Len(t, b.Components, 2)
	assert.Equal(t, []float64{1, 1, 0}, b.Components[0].Guides["fk01"])

	cfg, err := b.ConfigurationOver(DefaultConfiguration())
	require.NoError(t, err)
	assert.True(t, cfg.BlackBox)
	assert.True(t, cfg.UseProxyAttributes, "unlisted fields keep the base value")
	sc, ok := cfg.Script("recorder")
	require.True(t, ok)
	assert.Equal(t, "blueprint", sc.Properties["tag"])

	_, err = ParseBlueprint([]byte("components: {"))
	assert.ErrorIs(t, err, ErrInvalidBlueprint)
}

func TestBlueprintWithoutConfiguration(t *testing.T) {
	b, err := ParseBlueprint([]byte("name: Plain\n"))
	require.NoError(t, err)
	base := DefaultConfiguration()
	base.NamingPreset = "studio"
	cfg, err := b.ConfigurationOver(base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestBlueprintValidate(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		bp   Blueprint
		want error
	}{
		{
			name: "valid",
			bp: Blueprint{Name: "ok", Components: []ComponentBlueprint{
				{Type: testComp, Name: "spine", Side: "M"},
				{Type: testComp, Name: "arm", Side: "L", Parent: "spine:M"},
			}},
		},
		{
			name: "missing name",
			bp:   Blueprint{},
			want: ErrInvalidBlueprint,
		},
		{
			name: "unknown type",
			bp:   Blueprint{Name: "x", Components: []ComponentBlueprint{{Type: "nope"}}},
			want: registry.ErrUnknownComponentType,
		},
		{
			name: "duplicate token",
			bp: Blueprint{Name: "x", Components: []ComponentBlueprint{
				{Type: testComp, Name: "arm", Side: "L"},
				{Type: testComp, Name: "arm", Side: "L"},
			}},
			want: ErrInvalidBlueprint,
		},
		{
			name: "unknown parent",
			bp: Blueprint{Name: "x", Components: []ComponentBlueprint{
				{Type: testComp, Name: "arm", Side: "L", Parent: "spine:M"},
			}},
			want: ErrInvalidBlueprint,
		},
		{
			name: "unknown guide",
			bp: Blueprint{Name: "x", Components: []ComponentBlueprint{
				{Type: testComp, Name: "arm", Side: "L", Guides: map[string][]float64{"elbow": {0, 0, 0}}},
			}},
			want: ErrInvalidBlueprint,
		},
		{
			name: "cycle",
			bp: Blueprint{Name: "x", Components: []ComponentBlueprint{
				{Type: testComp, Name: "a", Side: "M", Parent: "b:M"},
				{Type: testComp, Name: "b", Side: "M", Parent: "a:M"},
			}},
			want: ErrComponentCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bp.Validate(f.registry)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApplyBlueprint(t *testing.T) {
	f := newFixture(t)
	b, err := ParseBlueprint([]byte(heroBlueprint))
	require.NoError(t, err)

	r, err := f.factory.Apply(b)
	require.NoError(t, err)
	assert.Equal(t, "chars:Hero", r.FullName())
	assert.True(t, r.Configuration().BlackBox)
	assert.Equal(t, []string{"recorder"}, r.Scripts().Scripts())

	comps := r.Components()
	require.Len(t, comps, 2)
	spine, tail := comps[0], comps[1]
	assert.Equal(t, "spine:M", spine.Token())
	assert.Equal(t, "tail:L", tail.Token())
	assert.Equal(t, fkchain.Type, tail.Type())
	assert.Same(t, spine, tail.Parent())
	require.Len(t, tail.Definition().Connections, 1)
	assert.Equal(t, "fk03", tail.Definition().Connections[0].Drivers[0].ID)
	assert.Equal(t, []float64{1, 1, 0}, tail.Definition().GuideLayer.Node("fk01").Translate)

	require.NoError(t, r.BuildRigs())
	assert.True(t, spine.HasRig())
	assert.True(t, tail.HasRig())

	_, err = f.factory.Apply(b)
	assert.ErrorIs(t, err, ErrRigExists)
}
