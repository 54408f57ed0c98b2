package definition

import "slices"

// Update merges newState into the guide layer.
//
// Settings and metadata are a keyed union where a non-nil incoming value wins.
// Nodes present in both are updated in place and keep every field the incoming
// node leaves unset. Missing nodes are created. Nodes absent from newState are
// deleted unless flagged internal.
func (g *GuideLayerDefinition) Update(newState *GuideLayerDefinition) {
	if newState == nil {
		return
	}
	g.Settings = unionAttrs(g.Settings, newState.Settings)
	g.Metadata = unionAttrs(g.Metadata, newState.Metadata)

	incoming := make(map[string]bool, len(newState.DAG))
	for _, n := range newState.DAG {
		incoming[n.ID] = true
		if cur := g.Node(n.ID); cur != nil {
			cur.MergeFrom(n)
			continue
		}
		g.DAG = append(g.DAG, n.Clone())
	}

	for _, id := range g.NodeIDs() {
		if incoming[id] {
			continue
		}
		if n := g.Node(id); n != nil && !n.Internal {
			g.DeleteNode(id)
		}
	}

	if newState.Graphs != nil {
		g.Graphs = cloneGraphs(newState.Graphs)
	}
}

// MergeFrom copies every field set on src onto n. The id never changes. A
// non-empty parent reparents n.
func (n *NodeDefinition) MergeFrom(src *NodeDefinition) {
	if src.Name != "" {
		n.Name = src.Name
	}
	if src.Parent != "" && src.Parent != n.Parent {
		n.Parent = src.Parent
	}
	if src.Type != "" {
		n.Type = src.Type
	}
	if src.Translate != nil {
		n.Translate = slices.Clone(src.Translate)
	}
	if src.Rotate != nil {
		n.Rotate = slices.Clone(src.Rotate)
	}
	if src.Scale != nil {
		n.Scale = slices.Clone(src.Scale)
	}
	if src.Shape != "" {
		n.Shape = src.Shape
	}
	if src.Color != nil {
		n.Color = slices.Clone(src.Color)
	}
	if src.ShapeTransform != nil {
		n.ShapeTransform = src.ShapeTransform.Clone()
	}
	if src.PivotShape != "" {
		n.PivotShape = src.PivotShape
	}
	if src.PivotColor != nil {
		n.PivotColor = slices.Clone(src.PivotColor)
	}
	if src.AutoAlign != nil {
		n.AutoAlign = BoolPtr(*src.AutoAlign)
	}
	if src.AimVector != nil {
		n.AimVector = slices.Clone(src.AimVector)
	}
	if src.UpVector != nil {
		n.UpVector = slices.Clone(src.UpVector)
	}
	if src.Internal {
		n.Internal = true
	}
	n.Attributes = unionAttrs(n.Attributes, src.Attributes)
}

func unionAttrs(cur, incoming []*AttributeDefinition) []*AttributeDefinition {
	for _, a := range incoming {
		existing := findAttr(cur, a.Name)
		if existing == nil {
			cur = append(cur, a.Clone())
			continue
		}
		if a.Value != nil {
			existing.Value = cloneAny(a.Value)
		}
		if a.Type != "" {
			existing.Type = a.Type
		}
		if a.Enums != nil {
			existing.Enums = slices.Clone(a.Enums)
		}
	}
	return cur
}
