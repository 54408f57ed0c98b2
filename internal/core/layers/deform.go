package layers

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/scene"
)

// Skin cluster array attributes.
const (
	AttrSkinMatrix        = "matrix"
	AttrSkinBindPreMatrix = "bindPreMatrix"
)

// DeformLayer owns the deform joints of a component.
type DeformLayer struct {
	*Layer
}

// Joint returns the joint with hive id.
func (l *DeformLayer) Joint(id string) (*hivenodes.Joint, error) {
	n := l.find(hivenodes.KindJoint, id)
	if n == "" {
		return nil, fmt.Errorf("%w: %s", ErrJointNotFound, id)
	}
	return hivenodes.AsJoint(l.graph, n)
}

// Joints lists every joint in hierarchy order.
func (l *DeformLayer) Joints() []*hivenodes.Joint {
	var out []*hivenodes.Joint
	for _, n := range l.nodes(hivenodes.KindJoint) {
		if j, err := hivenodes.AsJoint(l.graph, n); err == nil {
			out = append(out, j)
		}
	}
	return out
}

// JointMap indexes the joints by hive id.
func (l *DeformLayer) JointMap() map[string]*hivenodes.Joint {
	out := make(map[string]*hivenodes.Joint)
	for _, j := range l.Joints() {
		out[j.ID()] = j
	}
	return out
}

// CreateJoint creates a joint below its declared parent joint. A joint whose
// parent is not part of the layer is placed under parent.
func (l *DeformLayer) CreateJoint(name string, def *definition.NodeDefinition, parent scene.NodeID) (*hivenodes.Joint, error) {
	if def.ID == "" {
		return nil, definition.ErrMissingID
	}
	p := l.find(hivenodes.KindJoint, def.Parent)
	if p == "" {
		p = parent
	}
	if p == "" {
		p = l.RootTransform()
	}
	return hivenodes.CreateJoint(l.graph, name, p, def)
}

// DeleteJoints deletes the joints with the given ids. Child joints move up to
// the deleted joint's parent.
func (l *DeformLayer) DeleteJoints(ids ...string) error {
	var errs []error
	for _, id := range ids {
		j, err := l.Joint(id)
		if err != nil {
			continue
		}
		for _, c := range j.ChildJoints(false) {
			errs = append(errs, c.SetParent(j.Parent()))
		}
		errs = append(errs, j.Delete())
	}
	return errors.Join(errs...)
}

func (l *DeformLayer) SerializeFromScene() *definition.DeformLayerDefinition {
	out := &definition.DeformLayerDefinition{}
	for _, j := range l.Joints() {
		out.DAG = append(out.DAG, j.Serialize())
	}
	l.serializeBase(&out.LayerDefinition)
	return out
}

// SkinClusters lists the skin clusters fed by the layer's joints.
func (l *DeformLayer) SkinClusters() []scene.NodeID {
	var out []scene.NodeID
	for _, j := range l.Joints() {
		for _, dst := range l.graph.Destinations(scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldMatrix}) {
			if typ, err := l.graph.Type(dst.Node); err == nil && typ == scene.TypeSkinCluster && !slices.Contains(out, dst.Node) {
				out = append(out, dst.Node)
			}
		}
	}
	return out
}

// SetLiveLink lets the joints move without displacing the bound skin: every
// joint's worldInverseMatrix is connected to the bindPreMatrix slot matching
// its matrix slot. Deactivation writes the current value of each slot before
// disconnecting so the skin does not pop.
func (l *DeformLayer) SetLiveLink(skinClusters []scene.NodeID, state bool) error {
	g := l.graph
	var errs []error
	for _, skin := range skinClusters {
		for _, j := range l.Joints() {
			for _, dst := range g.Destinations(scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldMatrix}) {
				if dst.Node != skin {
					continue
				}
				idx, ok := elementIndex(dst.Attr, AttrSkinMatrix)
				if !ok {
					continue
				}
				bind := scene.Plug{Node: skin, Attr: scene.ElementAttr(AttrSkinBindPreMatrix, idx)}
				src := scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldInverseMatrix}
				if state {
					errs = append(errs, g.Connect(src, bind))
					continue
				}
				errs = append(errs, bakeConnection(g, bind))
			}
		}
	}
	return errors.Join(errs...)
}

// bakeConnection disconnects dst and keeps the value it had while connected.
func bakeConnection(g scene.Graph, dst scene.Plug) error {
	src, ok := g.Source(dst)
	if !ok {
		return nil
	}
	value, err := g.Get(dst.Node, dst.Attr)
	if err != nil {
		return err
	}
	if err := g.Disconnect(src, dst); err != nil {
		return err
	}
	return g.Set(dst.Node, dst.Attr, value)
}

// DisconnectSkins breaks every joint -> skin cluster connection, keeping the
// bind pre-matrices at their current values.
func (l *DeformLayer) DisconnectSkins() error {
	g := l.graph
	var errs []error
	for _, j := range l.Joints() {
		for _, dst := range g.Destinations(scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldInverseMatrix}) {
			if typ, err := g.Type(dst.Node); err == nil && typ == scene.TypeSkinCluster {
				errs = append(errs, bakeConnection(g, dst))
			}
		}
		for _, dst := range g.Destinations(scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldMatrix}) {
			if typ, err := g.Type(dst.Node); err == nil && typ == scene.TypeSkinCluster {
				errs = append(errs, bakeConnection(g, dst))
			}
		}
	}
	return errors.Join(errs...)
}

func elementIndex(attr, array string) (int, bool) {
	var idx int
	if _, err := fmt.Sscanf(attr, array+"[%d]", &idx); err != nil {
		return 0, false
	}
	return idx, true
}
