// Package hivenodes gives identity and typed relationships to generic scene
// nodes. Every node the build pipeline creates is stamped with a locked "id"
// attribute and a "hiveType" kind marker.
package hivenodes

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

var (
	ErrWrongKind      = errors.New("node has a different hive kind")
	ErrLengthMismatch = errors.New("guides and matrices differ in length")
	ErrNoChildGuide   = errors.New("guide has no child guide")
)

// Attributes stamped on every hive node.
const (
	AttrID       = "id"
	AttrHiveType = "hiveType"
	AttrInternal = "internal"
)

// Kinds stored in AttrHiveType.
const (
	KindGuide         = definition.NodeGuide
	KindJoint         = definition.NodeJoint
	KindControl       = definition.NodeControl
	KindInput         = definition.NodeInput
	KindOutput        = definition.NodeOutput
	KindSrt           = "srt"
	KindGuideShape    = "guideShape"
	KindSnapLocator   = "snapLocator"
	KindAnnotation    = "annotation"
	KindSettings      = "settings"
	KindControllerTag = "controllerTag"
)

// Kind returns the hive kind of id, "" for plain scene nodes.
func Kind(g scene.Graph, id scene.NodeID) string {
	return scene.MustString(g, id, AttrHiveType)
}

// ID returns the hive id of a node, "" when it carries none.
func ID(g scene.Graph, id scene.NodeID) string {
	return scene.MustString(g, id, AttrID)
}

func IsGuide(g scene.Graph, id scene.NodeID) bool   { return Kind(g, id) == KindGuide }
func IsJoint(g scene.Graph, id scene.NodeID) bool   { return Kind(g, id) == KindJoint }
func IsControl(g scene.Graph, id scene.NodeID) bool { return Kind(g, id) == KindControl }
func IsInput(g scene.Graph, id scene.NodeID) bool   { return Kind(g, id) == KindInput }
func IsOutput(g scene.Graph, id scene.NodeID) bool  { return Kind(g, id) == KindOutput }

// Stamp marks node as a hive node of kind with the given id. Both attributes are
// locked so that renames never touch identity.
func Stamp(g scene.Graph, node scene.NodeID, kind, hiveID string) error {
	specs := []scene.AttributeSpec{
		{Name: AttrHiveType, Type: scene.AttrString, Value: kind, Locked: true},
	}
	if hiveID != "" {
		specs = append(specs, scene.AttributeSpec{Name: AttrID, Type: scene.AttrString, Value: hiveID, Locked: true})
	}
	for _, s := range specs {
		if g.HasAttribute(node, s.Name) {
			continue
		}
		if err := g.AddAttribute(node, s); err != nil {
			return err
		}
	}
	return nil
}

// Unlock unlocks every locked node in ids and returns a function restoring the
// previous lock state. Callers defer the returned function.
func Unlock(g scene.Graph, ids ...scene.NodeID) (relock func()) {
	var locked []scene.NodeID
	for _, id := range ids {
		if g.IsLocked(id) {
			_ = g.SetLocked(id, false)
			locked = append(locked, id)
		}
	}
	return func() {
		for _, id := range locked {
			if g.Exists(id) {
				_ = g.SetLocked(id, true)
			}
		}
	}
}

// UnlockTree is Unlock over id and all its dag descendants.
func UnlockTree(g scene.Graph, id scene.NodeID) (relock func()) {
	return Unlock(g, append([]scene.NodeID{id}, scene.Descendants(g, id)...)...)
}

// kindParent walks up from id and returns the nearest ancestor of kind.
func kindParent(g scene.Graph, id scene.NodeID, kind string) scene.NodeID {
	for cur := g.Parent(id); cur != ""; cur = g.Parent(cur) {
		if Kind(g, cur) == kind {
			return cur
		}
	}
	return ""
}

// kindChildren returns the nearest descendants of kind below id. Nodes of other
// kinds are looked through. With recursive every matching descendant is returned.
func kindChildren(g scene.Graph, id scene.NodeID, kind string, recursive bool) []scene.NodeID {
	var out []scene.NodeID
	for _, c := range g.Children(id) {
		typ, err := g.Type(c)
		if err != nil || typ == scene.TypeConstraint {
			continue
		}
		if Kind(g, c) == kind {
			out = append(out, c)
			if !recursive {
				continue
			}
		}
		out = append(out, kindChildren(g, c, kind, recursive)...)
	}
	return out
}

// NodesOfKind lists every node of kind below root in depth first order.
func NodesOfKind(g scene.Graph, root scene.NodeID, kind string) []scene.NodeID {
	return kindChildren(g, root, kind, true)
}

// FindByID searches the hierarchy below root for a node of kind with hive id.
func FindByID(g scene.Graph, root scene.NodeID, kind, hiveID string) scene.NodeID {
	for _, n := range kindChildren(g, root, kind, true) {
		if ID(g, n) == hiveID {
			return n
		}
	}
	return ""
}

// DagNode is the part every wrapped transform shares.
type DagNode struct {
	graph scene.Graph
	node  scene.NodeID
}

func NewDagNode(g scene.Graph, node scene.NodeID) DagNode {
	return DagNode{graph: g, node: node}
}

func (n DagNode) Graph() scene.Graph { return n.graph }

// Node returns the scene handle.
func (n DagNode) Node() scene.NodeID { return n.node }

func (n DagNode) Exists() bool { return n.node != "" && n.graph.Exists(n.node) }

// ID returns the stable hive id.
func (n DagNode) ID() string { return ID(n.graph, n.node) }

func (n DagNode) Kind() string { return Kind(n.graph, n.node) }

func (n DagNode) Name() string { return n.graph.Name(n.node) }

func (n DagNode) IsGuide() bool   { return IsGuide(n.graph, n.node) }
func (n DagNode) IsJoint() bool   { return IsJoint(n.graph, n.node) }
func (n DagNode) IsControl() bool { return IsControl(n.graph, n.node) }
func (n DagNode) IsInput() bool   { return IsInput(n.graph, n.node) }
func (n DagNode) IsOutput() bool  { return IsOutput(n.graph, n.node) }

// Rename renames the node, unlocking it for the edit.
func (n DagNode) Rename(name string) error {
	if n.Name() == name {
		return nil
	}
	defer Unlock(n.graph, n.node)()
	return n.graph.Rename(n.node, name)
}

// SetParent reparents the node keeping its world matrix.
func (n DagNode) SetParent(parent scene.NodeID) error {
	defer Unlock(n.graph, n.node)()
	return n.graph.SetParent(n.node, parent, true)
}

func (n DagNode) Parent() scene.NodeID { return n.graph.Parent(n.node) }

func (n DagNode) WorldMatrix() mathx.Matrix { return n.graph.WorldMatrix(n.node) }

func (n DagNode) SetWorldMatrix(m mathx.Matrix) error { return n.graph.SetWorldMatrix(n.node, m) }

func (n DagNode) LocalMatrix() mathx.Matrix { return n.graph.LocalMatrix(n.node) }

func (n DagNode) SetLocalMatrix(m mathx.Matrix) error { return n.graph.SetLocalMatrix(n.node, m) }

// Translation returns the world position.
func (n DagNode) Translation() mathx.Vector3 { return n.WorldMatrix().Translation() }

func (n DagNode) Lock(state bool) error { return n.graph.SetLocked(n.node, state) }

func (n DagNode) Internal() bool { return scene.MustBool(n.graph, n.node, AttrInternal) }

// Delete removes the node and everything below it.
func (n DagNode) Delete() error {
	if !n.Exists() {
		return nil
	}
	UnlockTree(n.graph, n.node)
	return n.graph.DeleteNodes(n.node)
}

// hasLockedTransform reports whether any transform channel of the node is locked.
func (n DagNode) hasLockedTransform() bool {
	for _, ch := range []string{scene.AttrNameTranslate, scene.AttrNameRotate, scene.AttrNameScale} {
		if n.graph.IsAttributeLocked(n.node, ch) {
			return true
		}
	}
	return false
}

// serializeTransform fills the world transform fields of def.
func (n DagNode) serializeTransform(def *definition.NodeDefinition) {
	t, r, s := n.WorldMatrix().Decompose()
	def.Translate = round(t)
	def.Rotate = round(r)
	def.Scale = round(s)
}

// applyTransform moves the node to the world transform declared by def. Missing
// channels keep their current world value.
func (n DagNode) applyTransform(def *definition.NodeDefinition) error {
	if def.Translate == nil && def.Rotate == nil && def.Scale == nil {
		return nil
	}
	t, r, s := n.WorldMatrix().Decompose()
	t = mathx.Vec3FromSlice(def.Translate, t)
	r = mathx.Vec3FromSlice(def.Rotate, r)
	s = mathx.Vec3FromSlice(def.Scale, s)
	return n.SetWorldMatrix(mathx.Compose(t, r, s))
}

func (n DagNode) setInternal(def *definition.NodeDefinition) error {
	if !def.Internal {
		return nil
	}
	return scene.EnsureAttribute(n.graph, n.node, scene.AttributeSpec{Name: AttrInternal, Type: scene.AttrBool, Value: true})
}

// round trims float noise so serialized transforms compare cleanly.
func round(v mathx.Vector3) []float64 {
	out := v.Slice()
	for i, f := range out {
		// adding 0 turns -0 into 0
		out[i] = math.Round(f*1e6)/1e6 + 0
	}
	return out
}

// createTransform creates a stamped node of the given type.
func createTransform(g scene.Graph, typ scene.NodeType, name string, parent scene.NodeID, kind, hiveID string) (scene.NodeID, error) {
	id, err := g.CreateNode(typ, name, parent)
	if err != nil {
		return "", fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	if err := Stamp(g, id, kind, hiveID); err != nil {
		return "", err
	}
	return id, nil
}

func vectorAttr(g scene.Graph, node scene.NodeID, name string, def mathx.Vector3) mathx.Vector3 {
	v, err := g.Get(node, name)
	if err != nil {
		return def
	}
	if vec, ok := v.(mathx.Vector3); ok {
		return vec
	}
	return def
}

func setString(g scene.Graph, node scene.NodeID, name, value string) error {
	return scene.EnsureAttribute(g, node, scene.AttributeSpec{Name: name, Type: scene.AttrString, Value: value})
}

func setVector(g scene.Graph, node scene.NodeID, name string, value []float64) error {
	if len(value) != 3 {
		return nil
	}
	return scene.EnsureAttribute(g, node, scene.AttributeSpec{Name: name, Type: scene.AttrVector3, Value: slices.Clone(value)})
}

func vectorSlice(g scene.Graph, node scene.NodeID, name string) []float64 {
	if !g.HasAttribute(node, name) {
		return nil
	}
	return vectorAttr(g, node, name, mathx.Vector3{}).Slice()
}

// MessageTarget reads a message attribute. Targets that no longer exist read as "".
func MessageTarget(g scene.Graph, node scene.NodeID, name string) scene.NodeID {
	v, err := g.Get(node, name)
	if err != nil {
		return ""
	}
	id, _ := v.(scene.NodeID)
	if id != "" && !g.Exists(id) {
		return ""
	}
	return id
}

// SetMessage points a message attribute at target, adding it when missing.
func SetMessage(g scene.Graph, node scene.NodeID, name string, target scene.NodeID) error {
	return scene.EnsureAttribute(g, node, scene.AttributeSpec{Name: name, Type: scene.AttrMessage, Value: target})
}
