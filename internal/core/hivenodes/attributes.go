package hivenodes

import (
	"errors"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

// SpecFromDefinition converts a definition attribute to a scene attribute spec.
// An empty type is inferred from the value.
func SpecFromDefinition(def *definition.AttributeDefinition) scene.AttributeSpec {
	typ, err := scene.ParseAttrType(def.Type)
	if err != nil || def.Type == "" {
		typ = inferAttrType(def)
	}
	return scene.AttributeSpec{
		Name:       def.Name,
		Type:       typ,
		Value:      def.Value,
		Default:    def.Default,
		Min:        def.Min,
		Max:        def.Max,
		Enums:      slices.Clone(def.Enums),
		Keyable:    def.Keyable,
		ChannelBox: def.ChannelBox,
		Locked:     def.Locked,
	}
}

func inferAttrType(def *definition.AttributeDefinition) scene.AttrType {
	if len(def.Enums) > 0 {
		return scene.AttrEnum
	}
	v := def.Value
	if v == nil {
		v = def.Default
	}
	switch t := v.(type) {
	case bool:
		return scene.AttrBool
	case int, int64:
		return scene.AttrInt
	case float64, float32:
		return scene.AttrFloat
	case []float64:
		if len(t) == 16 {
			return scene.AttrMatrix
		}
		return scene.AttrVector3
	case []any:
		if len(t) == 16 {
			return scene.AttrMatrix
		}
		return scene.AttrVector3
	}
	return scene.AttrString
}

// DefinitionFromSpec converts a scene attribute back to its definition form with
// JSON friendly values.
func DefinitionFromSpec(spec scene.AttributeSpec) *definition.AttributeDefinition {
	return &definition.AttributeDefinition{
		Name:       spec.Name,
		Type:       spec.Type.String(),
		Value:      plainValue(spec.Value),
		Default:    plainValue(spec.Default),
		Min:        spec.Min,
		Max:        spec.Max,
		Enums:      slices.Clone(spec.Enums),
		Keyable:    spec.Keyable,
		ChannelBox: spec.ChannelBox,
		Locked:     spec.Locked,
	}
}

func plainValue(v any) any {
	switch t := v.(type) {
	case mathx.Vector3:
		return t.Slice()
	case mathx.Matrix:
		return t.Slice()
	case scene.NodeID:
		return string(t)
	}
	return v
}

// ApplyAttributes adds or updates attributes on node. Attributes whose type or
// enum labels changed are recreated; the rest only get their value written.
func ApplyAttributes(g scene.Graph, node scene.NodeID, defs []*definition.AttributeDefinition) error {
	var errs []error
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		if err := applyAttribute(g, node, SpecFromDefinition(def)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func applyAttribute(g scene.Graph, node scene.NodeID, spec scene.AttributeSpec) error {
	if !g.HasAttribute(node, spec.Name) {
		return g.AddAttribute(node, spec)
	}
	current, err := g.AttributeSpec(node, spec.Name)
	if err != nil {
		// built-in channel
		if spec.Value == nil {
			return nil
		}
		return g.Set(node, spec.Name, spec.Value)
	}
	if current.Type != spec.Type || !slices.Equal(current.Enums, spec.Enums) {
		if spec.Value == nil {
			spec.Value = current.Value
		}
		_ = g.SetAttributeLocked(node, spec.Name, false)
		if err := g.DeleteAttribute(node, spec.Name); err != nil {
			return err
		}
		if err := g.AddAttribute(node, spec); err == nil {
			return nil
		}
		// the old value does not fit the new type
		spec.Value = nil
		return g.AddAttribute(node, spec)
	}
	if spec.Value != nil {
		if current.Locked {
			_ = g.SetAttributeLocked(node, spec.Name, false)
		}
		if err := g.Set(node, spec.Name, spec.Value); err != nil {
			return err
		}
	}
	return g.SetAttributeLocked(node, spec.Name, spec.Locked)
}

// SerializeAttributes reads the dynamic attributes of node in creation order,
// skipping the reserved names.
func SerializeAttributes(g scene.Graph, node scene.NodeID, reserved ...string) []*definition.AttributeDefinition {
	var out []*definition.AttributeDefinition
	for _, name := range g.Attributes(node) {
		if name == AttrID || name == AttrHiveType || slices.Contains(reserved, name) {
			continue
		}
		spec, err := g.AttributeSpec(node, name)
		if err != nil {
			continue
		}
		out = append(out, DefinitionFromSpec(spec))
	}
	return out
}
