package hivenodes

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
)

// Joint is a deform joint.
type Joint struct {
	DagNode
}

func AsJoint(g scene.Graph, node scene.NodeID) (*Joint, error) {
	if !IsJoint(g, node) {
		return nil, fmt.Errorf("%w: %s is not a joint", ErrWrongKind, g.Name(node))
	}
	return &Joint{DagNode: NewDagNode(g, node)}, nil
}

// CreateJoint builds a joint under parent from def.
func CreateJoint(g scene.Graph, name string, parent scene.NodeID, def *definition.NodeDefinition) (*Joint, error) {
	id, err := createTransform(g, scene.TypeJoint, name, parent, KindJoint, def.ID)
	if err != nil {
		return nil, err
	}
	j := &Joint{DagNode: NewDagNode(g, id)}
	if err := j.Update(def); err != nil {
		return nil, err
	}
	return j, nil
}

// JointParent returns the nearest ancestor joint, or nil.
func (j *Joint) JointParent() *Joint {
	p := kindParent(j.graph, j.node, KindJoint)
	if p == "" {
		return nil
	}
	return &Joint{DagNode: NewDagNode(j.graph, p)}
}

func (j *Joint) ChildJoints(recursive bool) []*Joint {
	var out []*Joint
	for _, n := range kindChildren(j.graph, j.node, KindJoint, recursive) {
		out = append(out, &Joint{DagNode: NewDagNode(j.graph, n)})
	}
	return out
}

// Update writes attributes and world transform from def.
func (j *Joint) Update(def *definition.NodeDefinition) error {
	return errors.Join(
		j.setInternal(def),
		ApplyAttributes(j.graph, j.node, def.Attributes),
		j.applyTransform(def),
	)
}

func (j *Joint) Serialize() *definition.NodeDefinition {
	def := &definition.NodeDefinition{
		ID:         j.ID(),
		Name:       j.Name(),
		Type:       definition.NodeJoint,
		Internal:   j.Internal(),
		Attributes: SerializeAttributes(j.graph, j.node, AttrInternal),
	}
	if p := j.JointParent(); p != nil {
		def.Parent = p.ID()
	}
	j.serializeTransform(def)
	return def
}
