package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/observability/log"
)

const armYAML = `
name: arm
side: L
type: arm
guideLayer:
  dag:
    - id: root
    - id: upr
      parent: root
      translate: [2, 0, 0]
`

const legJSON = `{"name": "leg", "side": "L", "guideLayer": {"dag": [{"id": "root"}]}}`

const studioNaming = `
name: studio
suffixes:
  control: ctl
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type armBehavior struct{ component.BaseBehavior }

func TestLoadDiscoversTemplates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "limbs", "arm.definition.yaml"), armYAML)
	writeFile(t, filepath.Join(dir, "leg.definition.json"), legJSON)
	writeFile(t, filepath.Join(dir, "notes.yaml"), "name: notes")
	writeFile(t, filepath.Join(dir, "presets", "studio.naming.yaml"), studioNaming)

	r := New(log.Nop(), dir, filepath.Join(dir, "missing"))
	r.RegisterBehavior("arm", func() component.Behavior { return armBehavior{} })
	require.NoError(t, r.Load(context.Background()))

	assert.Equal(t, []string{"arm", "leg"}, r.ComponentTypes())
	arm, err := r.ComponentType("arm")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "limbs", "arm.definition.yaml"), arm.Path)
	assert.Equal(t, definition.LatestVersion, arm.Template.Version)
	require.NotNil(t, arm.Template.GuideLayer.Node("upr"))
	assert.IsType(t, armBehavior{}, r.NewBehavior("arm"))

	leg, err := r.Template("leg")
	require.NoError(t, err)
	assert.Equal(t, "leg", leg.Type)
	assert.IsType(t, component.BaseBehavior{}, r.NewBehavior("leg"))

	assert.Contains(t, r.Naming().Presets(), "studio")
	assert.Equal(t, "ctl", r.Naming().Suffix("studio", "control"))
	assert.Equal(t, "jnt", r.Naming().Suffix("studio", "joint"))
}

func TestTemplatesAreCopies(t *testing.T) {
	r := New(log.Nop())
	r.RegisterComponentType("chain", &definition.ComponentDefinition{Name: "chain", Side: "M"}, nil)
	a, err := r.Template("chain")
	require.NoError(t, err)
	a.Name = "changed"
	b, err := r.Template("chain")
	require.NoError(t, err)
	assert.Equal(t, "chain", b.Name)
	assert.Equal(t, "chain", b.Type)
}

func TestBrokenFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "arm.definition.yaml"), armYAML)
	writeFile(t, filepath.Join(dir, "broken.definition.json"), `{"name": `)
	writeFile(t, filepath.Join(dir, "bad.naming.yaml"), "suffixes: [1, 2]")

	r := New(log.Nop(), dir)
	err := r.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	assert.ErrorIs(t, err, ErrInvalidPreset)
	assert.Equal(t, []string{"arm"}, r.ComponentTypes())
}

func TestReloadKeepsBuiltins(t *testing.T) {
	dir := t.TempDir()
	r := New(log.Nop(), dir)
	r.RegisterComponentType("chain", &definition.ComponentDefinition{Name: "chain", Side: "M", Description: "builtin"}, nil)
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, []string{"chain"}, r.ComponentTypes())

	// a file template replaces the builtin one
	writeFile(t, filepath.Join(dir, "chain.definition.yaml"), "name: chain\ndescription: file\n")
	require.NoError(t, r.Load(context.Background()))
	tmpl, err := r.Template("chain")
	require.NoError(t, err)
	assert.Equal(t, "file", tmpl.Description)

	require.NoError(t, os.Remove(filepath.Join(dir, "chain.definition.yaml")))
	require.NoError(t, r.Load(context.Background()))
	tmpl, err = r.Template("chain")
	require.NoError(t, err)
	assert.Equal(t, "builtin", tmpl.Description)
}

func TestUnknownLookups(t *testing.T) {
	r := New(log.Nop())
	_, err := r.ComponentType("nope")
	assert.ErrorIs(t, err, ErrUnknownComponentType)
	_, err = r.BuildScript("nope")
	assert.ErrorIs(t, err, ErrUnknownBuildScript)

	r.RegisterBuildScript("hello", func() buildscript.Script { return &buildscript.Func{Name: "hello"} })
	s, err := r.BuildScript("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", s.ID())
	assert.Equal(t, []string{"hello"}, r.BuildScripts())
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	r := New(log.Nop(), dir)
	require.NoError(t, r.Load(context.Background()))

	w, err := NewWatcher(r, 20*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	writeFile(t, filepath.Join(dir, "arm.definition.yaml"), armYAML)
	select {
	case err := <-w.Reloaded():
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registry was not reloaded")
	}
	assert.Equal(t, []string{"arm"}, r.ComponentTypes())
}

func TestIsRegistryFile(t *testing.T) {
	assert.True(t, isRegistryFile("/x/arm.definition.yaml"))
	assert.True(t, isRegistryFile("leg.definition.json"))
	assert.True(t, isRegistryFile("studio.naming.yml"))
	assert.False(t, isRegistryFile("arm.yaml"))
	assert.False(t, isRegistryFile("arm.definition.txt"))
}
