package component

import (
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// SaveDefinition writes the definition onto the meta node. Attributes whose
// payload hashes to the value written last time are left untouched.
func (c *Component) SaveDefinition() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	g := c.graph
	if c.fingerprints == nil {
		c.fingerprints = make(map[string]uint64)
	}

	data := c.def.ToSceneData()
	written := 0
	for _, name := range slices.Sorted(maps.Keys(data)) {
		value := data[name]
		sum := xxhash.Sum64String(value)
		if prev, ok := c.fingerprints[name]; ok && prev == sum && g.HasAttribute(c.meta, name) {
			continue
		}
		if err := scene.EnsureAttribute(g, c.meta, scene.AttributeSpec{Name: name, Type: scene.AttrString, Value: value}); err != nil {
			return err
		}
		c.fingerprints[name] = sum
		written++
	}

	for attr, value := range map[string]string{
		AttrComponentName: c.def.Name,
		AttrComponentSide: c.def.Side,
		AttrComponentType: c.def.Type,
	} {
		if scene.MustString(g, c.meta, attr) == value {
			continue
		}
		if err := scene.EnsureAttribute(g, c.meta, scene.AttributeSpec{Name: attr, Type: scene.AttrString, Value: value}); err != nil {
			return err
		}
	}
	c.logger.Debug("definition saved", log.Int("written", written), log.Int("total", len(data)))
	return nil
}

// SerializeFromScene reads the given layers back into the definition, every
// layer when none are given. Layers that are not built are left as they are.
// The guide layer is merged so internal guides and unset fields survive; the
// other layers are replaced by what the scene holds.
func (c *Component) SerializeFromScene(layerTypes ...definition.LayerType) *definition.ComponentDefinition {
	if len(layerTypes) == 0 {
		layerTypes = definition.LayerTypes
	}
	for _, typ := range layerTypes {
		switch typ {
		case definition.GuideLayerType:
			if l, err := c.GuideLayer(); err == nil {
				c.def.GuideLayer.Update(l.SerializeFromScene())
			}
		case definition.InputLayerType:
			if l, err := c.InputLayer(); err == nil {
				c.def.InputLayer = *l.SerializeFromScene()
			}
		case definition.OutputLayerType:
			if l, err := c.OutputLayer(); err == nil {
				c.def.OutputLayer = *l.SerializeFromScene()
			}
		case definition.DeformLayerType:
			if l, err := c.DeformLayer(); err == nil {
				c.def.DeformLayer = *l.SerializeFromScene()
			}
		case definition.RigLayerType:
			if l, err := c.RigLayer(); err == nil {
				graphs := c.def.RigLayer.Graphs
				c.def.RigLayer = *l.SerializeFromScene()
				c.def.RigLayer.Graphs = graphs
			}
		}
	}
	return c.def
}
