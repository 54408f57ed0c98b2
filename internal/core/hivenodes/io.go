package hivenodes

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
)

// InputNode is the entry point other components drive through constraints.
type InputNode struct {
	DagNode
}

// OutputNode exposes a transform of the component to its children.
type OutputNode struct {
	DagNode
}

func AsInput(g scene.Graph, node scene.NodeID) (*InputNode, error) {
	if !IsInput(g, node) {
		return nil, fmt.Errorf("%w: %s is not an input", ErrWrongKind, g.Name(node))
	}
	return &InputNode{DagNode: NewDagNode(g, node)}, nil
}

func AsOutput(g scene.Graph, node scene.NodeID) (*OutputNode, error) {
	if !IsOutput(g, node) {
		return nil, fmt.Errorf("%w: %s is not an output", ErrWrongKind, g.Name(node))
	}
	return &OutputNode{DagNode: NewDagNode(g, node)}, nil
}

// CreateInput builds an input node under parent from def.
func CreateInput(g scene.Graph, name string, parent scene.NodeID, def *definition.NodeDefinition) (*InputNode, error) {
	id, err := createTransform(g, scene.TypeTransform, name, parent, KindInput, def.ID)
	if err != nil {
		return nil, err
	}
	n := &InputNode{DagNode: NewDagNode(g, id)}
	if err := n.Update(def); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateOutput builds an output node under parent from def.
func CreateOutput(g scene.Graph, name string, parent scene.NodeID, def *definition.NodeDefinition) (*OutputNode, error) {
	id, err := createTransform(g, scene.TypeTransform, name, parent, KindOutput, def.ID)
	if err != nil {
		return nil, err
	}
	n := &OutputNode{DagNode: NewDagNode(g, id)}
	if err := n.Update(def); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *InputNode) Update(def *definition.NodeDefinition) error {
	return errors.Join(n.setInternal(def), ApplyAttributes(n.graph, n.node, def.Attributes), n.applyTransform(def))
}

func (n *OutputNode) Update(def *definition.NodeDefinition) error {
	return errors.Join(n.setInternal(def), ApplyAttributes(n.graph, n.node, def.Attributes), n.applyTransform(def))
}

func (n *InputNode) InputParent() *InputNode {
	p := kindParent(n.graph, n.node, KindInput)
	if p == "" {
		return nil
	}
	return &InputNode{DagNode: NewDagNode(n.graph, p)}
}

func (n *OutputNode) OutputParent() *OutputNode {
	p := kindParent(n.graph, n.node, KindOutput)
	if p == "" {
		return nil
	}
	return &OutputNode{DagNode: NewDagNode(n.graph, p)}
}

func (n *InputNode) ChildInputs(recursive bool) []*InputNode {
	var out []*InputNode
	for _, c := range kindChildren(n.graph, n.node, KindInput, recursive) {
		out = append(out, &InputNode{DagNode: NewDagNode(n.graph, c)})
	}
	return out
}

func (n *OutputNode) ChildOutputs(recursive bool) []*OutputNode {
	var out []*OutputNode
	for _, c := range kindChildren(n.graph, n.node, KindOutput, recursive) {
		out = append(out, &OutputNode{DagNode: NewDagNode(n.graph, c)})
	}
	return out
}

// Constraints returns the constraints driving the input.
func (n *InputNode) Constraints() []scene.Constraint {
	return n.graph.Constraints(n.node)
}

// ClearConstraints deletes every constraint driving the input.
func (n *InputNode) ClearConstraints() error {
	var errs []error
	for _, c := range n.Constraints() {
		errs = append(errs, n.graph.DeleteConstraint(c.ID))
	}
	return errors.Join(errs...)
}

func (n *InputNode) Serialize() *definition.NodeDefinition {
	def := &definition.NodeDefinition{
		ID:         n.ID(),
		Name:       n.Name(),
		Type:       definition.NodeInput,
		Internal:   n.Internal(),
		Attributes: SerializeAttributes(n.graph, n.node, AttrInternal),
	}
	if p := n.InputParent(); p != nil {
		def.Parent = p.ID()
	}
	n.serializeTransform(def)
	return def
}

func (n *OutputNode) Serialize() *definition.NodeDefinition {
	def := &definition.NodeDefinition{
		ID:         n.ID(),
		Name:       n.Name(),
		Type:       definition.NodeOutput,
		Internal:   n.Internal(),
		Attributes: SerializeAttributes(n.graph, n.node, AttrInternal),
	}
	if p := n.OutputParent(); p != nil {
		def.Parent = p.ID()
	}
	n.serializeTransform(def)
	return def
}
