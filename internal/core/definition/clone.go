package definition

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/zeusync/hive/internal/core/exprutils"
)

// Clone deep copies the definition. The baseline pointer is shared.
func (d *ComponentDefinition) Clone() *ComponentDefinition {
	if d == nil {
		return nil
	}
	out := *d
	out.Connections = make([]*ConnectionDefinition, 0, len(d.Connections))
	for _, c := range d.Connections {
		cc := *c
		cc.Drivers = slices.Clone(c.Drivers)
		out.Connections = append(out.Connections, &cc)
	}
	if len(out.Connections) == 0 {
		out.Connections = nil
	}
	out.GuideLayer = GuideLayerDefinition{
		LayerDefinition: d.GuideLayer.LayerDefinition.Clone(),
		Graphs:          cloneGraphs(d.GuideLayer.Graphs),
	}
	out.InputLayer = InputLayerDefinition{LayerDefinition: d.InputLayer.LayerDefinition.Clone()}
	out.OutputLayer = OutputLayerDefinition{LayerDefinition: d.OutputLayer.LayerDefinition.Clone()}
	out.DeformLayer = DeformLayerDefinition{LayerDefinition: d.DeformLayer.LayerDefinition.Clone()}
	out.RigLayer = d.RigLayer.Clone()
	out.SpaceSwitching = nil
	for _, s := range d.SpaceSwitching {
		out.SpaceSwitching = append(out.SpaceSwitching, s.Clone())
	}
	return &out
}

func (l LayerDefinition) Clone() LayerDefinition {
	return LayerDefinition{
		DAG:      cloneDAG(l.DAG),
		Settings: cloneAttrs(l.Settings),
		Metadata: cloneAttrs(l.Metadata),
	}
}

func (r RigLayerDefinition) Clone() RigLayerDefinition {
	out := RigLayerDefinition{
		DAG:      cloneDAG(r.DAG),
		Metadata: cloneAttrs(r.Metadata),
		Graphs:   cloneGraphs(r.Graphs),
		Settings: cloneRigSettings(r.Settings),
	}
	return out
}

func cloneRigSettings(settings map[string][]*AttributeDefinition) map[string][]*AttributeDefinition {
	if settings == nil {
		return nil
	}
	out := make(map[string][]*AttributeDefinition, len(settings))
	for k, v := range settings {
		out[k] = cloneAttrs(v)
	}
	return out
}

func (n *NodeDefinition) Clone() *NodeDefinition {
	out := *n
	out.Translate = slices.Clone(n.Translate)
	out.Rotate = slices.Clone(n.Rotate)
	out.Scale = slices.Clone(n.Scale)
	out.Color = slices.Clone(n.Color)
	out.PivotColor = slices.Clone(n.PivotColor)
	out.AimVector = slices.Clone(n.AimVector)
	out.UpVector = slices.Clone(n.UpVector)
	out.ShapeTransform = n.ShapeTransform.Clone()
	if n.AutoAlign != nil {
		out.AutoAlign = BoolPtr(*n.AutoAlign)
	}
	out.Attributes = cloneAttrs(n.Attributes)
	return &out
}

func (t *TransformDefinition) Clone() *TransformDefinition {
	if t == nil {
		return nil
	}
	return &TransformDefinition{
		Translate: slices.Clone(t.Translate),
		Rotate:    slices.Clone(t.Rotate),
		Scale:     slices.Clone(t.Scale),
	}
}

func (a *AttributeDefinition) Clone() *AttributeDefinition {
	out := *a
	out.Value = cloneAny(a.Value)
	out.Default = cloneAny(a.Default)
	if a.Min != nil {
		v := *a.Min
		out.Min = &v
	}
	if a.Max != nil {
		v := *a.Max
		out.Max = &v
	}
	out.Enums = slices.Clone(a.Enums)
	return &out
}

func cloneDAG(dag []*NodeDefinition) []*NodeDefinition {
	if dag == nil {
		return nil
	}
	out := make([]*NodeDefinition, 0, len(dag))
	for _, n := range dag {
		out = append(out, n.Clone())
	}
	return out
}

func cloneAttrs(attrs []*AttributeDefinition) []*AttributeDefinition {
	if attrs == nil {
		return nil
	}
	out := make([]*AttributeDefinition, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Clone())
	}
	return out
}

func cloneGraphs(graphs []*GraphDefinition) []*GraphDefinition {
	if graphs == nil {
		return nil
	}
	out := make([]*GraphDefinition, 0, len(graphs))
	for _, g := range graphs {
		out = append(out, &GraphDefinition{Name: g.Name, Data: cloneAny(g.Data).(map[string]any)})
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneAny(e)
		}
		return out
	case []float64:
		return slices.Clone(t)
	case []string:
		return slices.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}

// Equal reports semantic equality: both documents encode to the same JSON.
func Equal(a, b *ComponentDefinition) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	var va, vb any
	if json.Unmarshal(ja, &va) != nil || json.Unmarshal(jb, &vb) != nil {
		return false
	}
	return jsonEqual(va, vb)
}

func jsonEqual(a, b any) bool {
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return string(ea) == string(eb)
}

// MirrorSide returns the opposite side label. Centre and unknown sides map to
// themselves.
func MirrorSide(side string) string {
	switch side {
	case "L":
		return "R"
	case "R":
		return "L"
	case "l":
		return "r"
	case "r":
		return "l"
	default:
		return side
	}
}

// Mirror returns a copy moved to side and reflected across the YZ plane.
func (d *ComponentDefinition) Mirror(side string) *ComponentDefinition {
	out := d.Duplicate(d.Name, side)
	flip := func(dag []*NodeDefinition) {
		for _, n := range dag {
			mirrorTransform(n.Translate, n.Rotate)
			if n.ShapeTransform != nil {
				mirrorTransform(n.ShapeTransform.Translate, n.ShapeTransform.Rotate)
			}
		}
	}
	flip(out.GuideLayer.DAG)
	flip(out.InputLayer.DAG)
	flip(out.OutputLayer.DAG)
	flip(out.DeformLayer.DAG)
	flip(out.RigLayer.DAG)
	return out
}

func mirrorTransform(translate, rotate []float64) {
	if len(translate) == 3 {
		translate[0] = -translate[0]
	}
	if len(rotate) == 3 {
		rotate[1] = -rotate[1]
		rotate[2] = -rotate[2]
	}
}

// Duplicate returns a copy renamed to name:side. References to the old component
// token in driver expressions and connections follow the rename.
func (d *ComponentDefinition) Duplicate(name, side string) *ComponentDefinition {
	out := d.Clone()
	from, to := d.Token(), name+":"+side
	out.Name, out.Side = name, side
	for _, s := range out.SpaceSwitching {
		for _, drv := range s.Drivers {
			drv.Driver = exprutils.Rebind(drv.Driver, from, to)
		}
		s.Driven = exprutils.Rebind(s.Driven, from, to)
	}
	for _, c := range out.Connections {
		for i := range c.Drivers {
			if c.Drivers[i].Component == from {
				c.Drivers[i].Component = to
			}
		}
	}
	return out
}
