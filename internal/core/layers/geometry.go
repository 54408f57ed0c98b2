package layers

import (
	"fmt"

	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/scene"
)

// TagSkinCluster marks skin clusters owned by a geometry layer.
const TagSkinCluster = "skinCluster"

// GeometryLayer holds the rig level geometry and the skin clusters binding it
// to deform joints.
type GeometryLayer struct {
	*Layer
}

// CreateSkinCluster binds joints to a new skin cluster. Slot i receives the
// joint's worldMatrix and its bind pre-matrix is the joint's current world inverse.
func (l *GeometryLayer) CreateSkinCluster(name string, joints []*hivenodes.Joint) (scene.NodeID, error) {
	if len(joints) == 0 {
		return "", fmt.Errorf("%w: skin cluster %s has no joints", ErrInvalidLayerArg, name)
	}
	g := l.graph
	skin, err := g.CreateNode(scene.TypeSkinCluster, name, "")
	if err != nil {
		return "", err
	}
	for i, j := range joints {
		if err := g.Connect(scene.Plug{Node: j.Node(), Attr: scene.AttrNameWorldMatrix}, scene.Plug{Node: skin, Attr: scene.ElementAttr(AttrSkinMatrix, i)}); err != nil {
			return "", err
		}
		inv, ok := j.WorldMatrix().Inverse()
		if !ok {
			return "", fmt.Errorf("%w: %s has a singular world matrix", ErrInvalidLayerArg, j.Name())
		}
		if err := g.Set(skin, scene.ElementAttr(AttrSkinBindPreMatrix, i), inv); err != nil {
			return "", err
		}
	}
	if err := l.AddExtraNodes(TagSkinCluster, skin); err != nil {
		return "", err
	}
	return skin, nil
}

// SkinClusters lists the skin clusters created by the layer.
func (l *GeometryLayer) SkinClusters() []scene.NodeID {
	return l.ExtraNodes(TagSkinCluster)
}

// SkinJoints returns the joints feeding the matrix slots of skin, by slot.
func SkinJoints(g scene.Graph, skin scene.NodeID) map[int]scene.NodeID {
	out := make(map[int]scene.NodeID)
	for _, c := range g.Connections(skin) {
		if c.Destination.Node != skin {
			continue
		}
		if idx, ok := elementIndex(c.Destination.Attr, AttrSkinMatrix); ok {
			out[idx] = c.Source.Node
		}
	}
	return out
}
