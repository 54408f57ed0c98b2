package component

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

var kindNameType = map[string]string{
	hivenodes.KindGuide:      naming.TypeGuide,
	hivenodes.KindJoint:      naming.TypeJoint,
	hivenodes.KindControl:    naming.TypeControl,
	hivenodes.KindInput:      naming.TypeInput,
	hivenodes.KindOutput:     naming.TypeOutput,
	hivenodes.KindAnnotation: naming.TypeAnnotation,
}

// Rename changes the component name and renames every node it owns.
func (c *Component) Rename(name string) error {
	return c.rename(name, c.def.Side)
}

// SetSide changes the component side and renames every node it owns.
func (c *Component) SetSide(side string) error {
	return c.rename(c.def.Name, side)
}

func (c *Component) rename(name, side string) error {
	if name == "" || side == "" {
		return ErrInvalidName
	}
	if name == c.def.Name && side == c.def.Side {
		return nil
	}
	if other, err := c.host.FindComponent(name, side); err == nil && other != c && other.Exists() {
		return fmt.Errorf("%w: %s:%s", ErrComponentExists, name, side)
	}
	oldToken := c.Token()
	c.def.Name, c.def.Side = name, side
	c.logger = c.host.Logger().With(log.Component(name, side))
	if !c.Exists() {
		return nil
	}

	mod := scene.NewModifier(c.graph)
	relock, err := c.UpdateNaming(mod)
	if err != nil {
		return err
	}
	err = mod.DoIt()
	relock()
	if err != nil {
		return fmt.Errorf("rename %s: %w", oldToken, err)
	}

	var errs []error
	for _, child := range c.Children() {
		errs = append(errs, child.RemapConnections(map[string]string{oldToken: c.Token()}))
	}
	errs = append(errs, c.SaveDefinition())
	c.logger.Debug("component renamed", log.String("from", oldToken))
	return errors.Join(errs...)
}

// UpdateNaming queues on mod the renames that bring every node of the
// component in line with the current name, side and naming preset. The nodes
// are unlocked so the batch can run; the returned function locks them again
// and must be called once mod has run.
func (c *Component) UpdateNaming(mod *scene.Modifier) (relock func(), err error) {
	if err := c.requireExists(); err != nil {
		return func() {}, err
	}
	g := c.graph
	names := make(map[scene.NodeID]string)
	set := func(id scene.NodeID, name string) {
		if id != "" && g.Name(id) != name {
			names[id] = name
		}
	}

	set(c.meta, c.nodeName(naming.RuleContainer, naming.TypeMeta, nil))
	set(c.RootTransform(), c.nodeName(naming.RuleContainer, naming.TypeHrc, nil))
	set(c.Container(), c.nodeName(naming.RuleContainer, naming.TypeContainer, nil))

	for _, l := range c.layerList() {
		root := c.layerRootName(l.Type())
		set(l.RootTransform(), root)
		set(l.Meta(), root+"_meta")
		for _, s := range l.SettingsNodes() {
			section := s.ID()
			if section == layers.DefaultSettingsID {
				section = string(l.Type())
			}
			set(s.Node(), c.SettingsName(section))
		}
		c.layerNodeNames(l, set)
	}

	ids := make([]scene.NodeID, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	relock = hivenodes.Unlock(g, ids...)
	for _, id := range ids {
		mod.Rename(id, names[id])
	}
	return relock, nil
}

// layerNodeNames names the hive nodes of l from their ids. Helper nodes named
// after a hive node (buffers, shapes, snap locators) follow their owner, as do
// controller tags.
func (c *Component) layerNodeNames(l *layers.Layer, set func(scene.NodeID, string)) {
	g := c.graph
	root := l.RootTransform()
	if root == "" {
		return
	}
	type rename struct{ from, to string }
	var owners []rename
	var helpers []scene.NodeID

	for _, n := range scene.Descendants(g, root) {
		kind := hivenodes.Kind(g, n)
		typ, ok := kindNameType[kind]
		if !ok {
			helpers = append(helpers, n)
			continue
		}
		id := hivenodes.ID(g, n)
		if kind == hivenodes.KindAnnotation {
			a := hivenodes.AsAnnotation(g, n)
			if a == nil || a.Start() == "" {
				continue
			}
			id = hivenodes.ID(g, a.Start())
		}
		if id == "" {
			continue
		}
		name := c.ObjectName(id, typ)
		owners = append(owners, rename{from: g.Name(n), to: name})
		set(n, name)
		if tag := hivenodes.ControllerTagOf(g, n); tag != nil {
			set(tag.Node(), c.ObjectName(id, naming.TypeControllerTag))
		}
	}

	// longest names first so a helper goes to its closest owner
	slices.SortFunc(owners, func(a, b rename) int { return len(b.from) - len(a.from) })
	for _, n := range helpers {
		current := g.Name(n)
		for _, o := range owners {
			if rest, ok := strings.CutPrefix(current, o.from+"_"); ok {
				set(n, o.to+"_"+rest)
				break
			}
		}
	}
}

// layerRootName is the root transform name of a layer of typ.
func (c *Component) layerRootName(typ definition.LayerType) string {
	return c.host.Namer().Resolve(naming.RuleLayerRoot, c.tokens(map[string]string{
		"layerType": string(typ),
		"type":      naming.TypeHrc,
	}))
}
