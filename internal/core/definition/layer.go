package definition

import (
	"fmt"
	"slices"
)

// Node returns the node with id, or nil.
func (l *LayerDefinition) Node(id string) *NodeDefinition {
	return findNode(l.DAG, id)
}

// NodeIDs lists every node id in DAG order.
func (l *LayerDefinition) NodeIDs() []string {
	return nodeIDs(l.DAG)
}

// Children returns the direct children of id ("" for roots).
func (l *LayerDefinition) Children(id string) []*NodeDefinition {
	return children(l.DAG, id)
}

// Roots returns nodes with no parent or with a parent missing from the layer.
func (l *LayerDefinition) Roots() []*NodeDefinition {
	var out []*NodeDefinition
	for _, n := range l.DAG {
		if n.Parent == "" || l.Node(n.Parent) == nil {
			out = append(out, n)
		}
	}
	return out
}

// Ordered returns the DAG with every parent ahead of its children.
func (l *LayerDefinition) Ordered() []*NodeDefinition {
	return ordered(l.DAG)
}

// AddNode appends a node. Ids are unique within a layer.
func (l *LayerDefinition) AddNode(n *NodeDefinition) error {
	if n.ID == "" {
		return ErrMissingID
	}
	if l.Node(n.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	l.DAG = append(l.DAG, n)
	return nil
}

// DeleteNode removes id and moves its children up to its parent.
func (l *LayerDefinition) DeleteNode(id string) bool {
	var ok bool
	l.DAG, ok = deleteNode(l.DAG, id)
	return ok
}

// Setting returns the named setting, or nil.
func (l *LayerDefinition) Setting(name string) *AttributeDefinition {
	return findAttr(l.Settings, name)
}

// SetSetting updates or appends a setting value.
func (l *LayerDefinition) SetSetting(name string, value any) {
	l.Settings = setAttr(l.Settings, name, value)
}

// Meta returns the named metadata attribute, or nil.
func (l *LayerDefinition) Meta(name string) *AttributeDefinition {
	return findAttr(l.Metadata, name)
}

// SetMeta updates or appends a metadata value.
func (l *LayerDefinition) SetMeta(name string, value any) {
	l.Metadata = setAttr(l.Metadata, name, value)
}

// Node returns the rig layer node with id, or nil.
func (r *RigLayerDefinition) Node(id string) *NodeDefinition {
	return findNode(r.DAG, id)
}

func (r *RigLayerDefinition) NodeIDs() []string {
	return nodeIDs(r.DAG)
}

func (r *RigLayerDefinition) Ordered() []*NodeDefinition {
	return ordered(r.DAG)
}

func (r *RigLayerDefinition) AddNode(n *NodeDefinition) error {
	if n.ID == "" {
		return ErrMissingID
	}
	if r.Node(n.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	r.DAG = append(r.DAG, n)
	return nil
}

func (r *RigLayerDefinition) DeleteNode(id string) bool {
	var ok bool
	r.DAG, ok = deleteNode(r.DAG, id)
	return ok
}

// SettingsNodes lists the settings node names, control panel first.
func (r *RigLayerDefinition) SettingsNodes() []string {
	var out []string
	if _, ok := r.Settings[ControlPanelName]; ok {
		out = append(out, ControlPanelName)
	}
	var rest []string
	for name := range r.Settings {
		if name != ControlPanelName {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Setting returns one setting of a settings node, or nil.
func (r *RigLayerDefinition) Setting(node, name string) *AttributeDefinition {
	return findAttr(r.Settings[node], name)
}

// SetSetting updates or appends a setting value on a settings node.
func (r *RigLayerDefinition) SetSetting(node, name string, value any) {
	if r.Settings == nil {
		r.Settings = make(map[string][]*AttributeDefinition)
	}
	r.Settings[node] = setAttr(r.Settings[node], name, value)
}

func (r *RigLayerDefinition) Meta(name string) *AttributeDefinition {
	return findAttr(r.Metadata, name)
}

func (r *RigLayerDefinition) SetMeta(name string, value any) {
	r.Metadata = setAttr(r.Metadata, name, value)
}

func findNode(dag []*NodeDefinition, id string) *NodeDefinition {
	for _, n := range dag {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func nodeIDs(dag []*NodeDefinition) []string {
	out := make([]string, 0, len(dag))
	for _, n := range dag {
		out = append(out, n.ID)
	}
	return out
}

func children(dag []*NodeDefinition, id string) []*NodeDefinition {
	var out []*NodeDefinition
	for _, n := range dag {
		if n.Parent == id {
			out = append(out, n)
		}
	}
	return out
}

func ordered(dag []*NodeDefinition) []*NodeDefinition {
	out := make([]*NodeDefinition, 0, len(dag))
	placed := make(map[string]bool, len(dag))
	known := make(map[string]bool, len(dag))
	for _, n := range dag {
		known[n.ID] = true
	}
	for len(out) < len(dag) {
		progressed := false
		for _, n := range dag {
			if placed[n.ID] {
				continue
			}
			if n.Parent == "" || !known[n.Parent] || placed[n.Parent] {
				out = append(out, n)
				placed[n.ID] = true
				progressed = true
			}
		}
		if !progressed {
			// parent cycle, keep the remaining nodes in declaration order
			for _, n := range dag {
				if !placed[n.ID] {
					out = append(out, n)
					placed[n.ID] = true
				}
			}
		}
	}
	return out
}

func deleteNode(dag []*NodeDefinition, id string) ([]*NodeDefinition, bool) {
	target := findNode(dag, id)
	if target == nil {
		return dag, false
	}
	for _, n := range dag {
		if n.Parent == id {
			n.Parent = target.Parent
		}
	}
	return slices.DeleteFunc(dag, func(n *NodeDefinition) bool { return n.ID == id }), true
}

func findAttr(attrs []*AttributeDefinition, name string) *AttributeDefinition {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func setAttr(attrs []*AttributeDefinition, name string, value any) []*AttributeDefinition {
	if a := findAttr(attrs, name); a != nil {
		a.Value = value
		return attrs
	}
	return append(attrs, &AttributeDefinition{Name: name, Type: inferType(value), Value: value})
}

func inferType(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case int, int64, int32:
		return "int"
	case float64, float32:
		return "float"
	case []float64:
		return "vector3"
	default:
		return "string"
	}
}
