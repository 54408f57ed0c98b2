package hivenodes

import (
	"github.com/zeusync/hive/internal/core/scene"
)

const (
	AttrControllerObject = "controllerObject"
	AttrControllerParent = "controllerParent"
)

// ControllerTag marks a node as pickable for animation tools and chains it to
// a parent tag so pick-walking follows the component hierarchy.
type ControllerTag struct {
	graph scene.Graph
	node  scene.NodeID
}

// CreateControllerTag tags object. An existing tag is returned unchanged.
func CreateControllerTag(g scene.Graph, name string, object scene.NodeID, parent *ControllerTag) (*ControllerTag, error) {
	if tag := ControllerTagOf(g, object); tag != nil {
		return tag, nil
	}
	id, err := createTransform(g, scene.TypeNetwork, name, "", KindControllerTag, "")
	if err != nil {
		return nil, err
	}
	tag := &ControllerTag{graph: g, node: id}
	if err := SetMessage(g, id, AttrControllerObject, object); err != nil {
		return nil, err
	}
	if err := SetMessage(g, object, AttrControllerTag, id); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := tag.SetParent(parent); err != nil {
			return nil, err
		}
	}
	return tag, nil
}

// ControllerTagOf returns the tag attached to object, or nil.
func ControllerTagOf(g scene.Graph, object scene.NodeID) *ControllerTag {
	tag := MessageTarget(g, object, AttrControllerTag)
	if tag == "" {
		return nil
	}
	return &ControllerTag{graph: g, node: tag}
}

func (t *ControllerTag) Node() scene.NodeID { return t.node }

// Object returns the tagged node.
func (t *ControllerTag) Object() scene.NodeID {
	return MessageTarget(t.graph, t.node, AttrControllerObject)
}

func (t *ControllerTag) Parent() *ControllerTag {
	p := MessageTarget(t.graph, t.node, AttrControllerParent)
	if p == "" {
		return nil
	}
	return &ControllerTag{graph: t.graph, node: p}
}

// SetParent chains the tag below parent. A nil parent clears the link.
func (t *ControllerTag) SetParent(parent *ControllerTag) error {
	var target scene.NodeID
	if parent != nil {
		target = parent.node
	}
	return SetMessage(t.graph, t.node, AttrControllerParent, target)
}

// Delete removes the tag and clears the link on the tagged object.
func (t *ControllerTag) Delete() error {
	if !t.graph.Exists(t.node) {
		return nil
	}
	if obj := t.Object(); obj != "" && t.graph.HasAttribute(obj, AttrControllerTag) {
		_ = t.graph.Set(obj, AttrControllerTag, scene.NodeID(""))
	}
	Unlock(t.graph, t.node)
	return t.graph.DeleteNodes(t.node)
}
