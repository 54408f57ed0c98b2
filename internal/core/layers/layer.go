// Package layers groups the nodes of one component by purpose. Every layer is a
// network meta node linked to a root transform; settings nodes and auxiliary
// ("extra") nodes hang off the meta node, layer metadata lives on it as dynamic
// attributes.
package layers

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/scene"
)

// Meta attributes and kinds owned by layers.
const (
	AttrRootTransform = "rootTransform"
	AttrExtraTag      = "extraTag"

	KindLayerRoot = "layerRoot"
	KindExtra     = "extra"

	// DefaultSettingsID is the settings node id of every layer but the rig layer.
	DefaultSettingsID = "settings"
)

var metaReserved = []string{AttrRootTransform, AttrSpaceSwitches}

// Layer is the part every layer shares.
type Layer struct {
	graph scene.Graph
	meta  scene.NodeID
	typ   definition.LayerType
}

// Create builds an empty layer of typ whose root transform sits under parent.
func Create(g scene.Graph, typ definition.LayerType, rootName string, parent scene.NodeID) (*Layer, error) {
	meta, err := g.CreateNode(scene.TypeNetwork, rootName+"_meta", "")
	if err != nil {
		return nil, err
	}
	if err := hivenodes.Stamp(g, meta, string(typ), ""); err != nil {
		return nil, err
	}
	root, err := g.CreateNode(scene.TypeTransform, rootName, parent)
	if err != nil {
		return nil, fmt.Errorf("create %s root: %w", typ, err)
	}
	if err := hivenodes.Stamp(g, root, KindLayerRoot, string(typ)); err != nil {
		return nil, err
	}
	if err := hivenodes.SetMessage(g, meta, AttrRootTransform, root); err != nil {
		return nil, err
	}
	if err := g.SetLocked(root, true); err != nil {
		return nil, err
	}
	return &Layer{graph: g, meta: meta, typ: typ}, nil
}

// Wrap returns the layer behind a meta node.
func Wrap(g scene.Graph, meta scene.NodeID) (*Layer, error) {
	typ := definition.LayerType(hivenodes.Kind(g, meta))
	if !IsLayerType(typ) {
		return nil, fmt.Errorf("%w: %s", ErrNotLayer, g.Name(meta))
	}
	return &Layer{graph: g, meta: meta, typ: typ}, nil
}

// IsLayerType reports whether typ names a layer.
func IsLayerType(typ definition.LayerType) bool {
	return slices.Contains(definition.LayerTypes, typ) || typ == definition.GeometryLayerType
}

func (l *Layer) Graph() scene.Graph { return l.graph }

// Meta returns the layer meta node.
func (l *Layer) Meta() scene.NodeID { return l.meta }

func (l *Layer) Type() definition.LayerType { return l.typ }

func (l *Layer) Exists() bool { return l.meta != "" && l.graph.Exists(l.meta) }

// RootTransform returns the layer root, "" when it was deleted.
func (l *Layer) RootTransform() scene.NodeID {
	return hivenodes.MessageTarget(l.graph, l.meta, AttrRootTransform)
}

// SetVisible shows or hides the whole layer.
func (l *Layer) SetVisible(state bool) error {
	root := l.RootTransform()
	if root == "" {
		return ErrMissingRoot
	}
	return l.graph.SetVisible(root, state)
}

// Rename renames the root transform and the meta node.
func (l *Layer) Rename(rootName string) error {
	var errs []error
	if root := l.RootTransform(); root != "" {
		relock := hivenodes.Unlock(l.graph, root)
		errs = append(errs, l.graph.Rename(root, rootName))
		relock()
	}
	errs = append(errs, l.graph.Rename(l.meta, rootName+"_meta"))
	return errors.Join(errs...)
}

// SettingsNodes lists the settings nodes in creation order.
func (l *Layer) SettingsNodes() []*hivenodes.SettingsNode {
	var out []*hivenodes.SettingsNode
	for _, c := range l.graph.MetaChildren(l.meta) {
		if s := hivenodes.AsSettingsNode(l.graph, c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SettingsNode returns the settings node with the given id.
func (l *Layer) SettingsNode(id string) (*hivenodes.SettingsNode, error) {
	for _, s := range l.SettingsNodes() {
		if s.ID() == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrSettingsNotFound, l.typ, id)
}

// CreateSettingsNode returns the settings node with id, creating it when missing.
func (l *Layer) CreateSettingsNode(name, id string) (*hivenodes.SettingsNode, error) {
	if s, err := l.SettingsNode(id); err == nil {
		return s, nil
	}
	s, err := hivenodes.CreateSettingsNode(l.graph, name, id)
	if err != nil {
		return nil, err
	}
	if err := l.graph.ConnectMeta(l.meta, s.Node()); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSettings writes settings onto the settings node with id.
func (l *Layer) UpdateSettings(name, id string, settings []*definition.AttributeDefinition) error {
	if len(settings) == 0 {
		return nil
	}
	s, err := l.CreateSettingsNode(name, id)
	if err != nil {
		return err
	}
	return s.Apply(settings)
}

// ExtraNodes lists auxiliary nodes with tag, every extra node when tag is "".
func (l *Layer) ExtraNodes(tag string) []scene.NodeID {
	var out []scene.NodeID
	for _, c := range l.graph.MetaChildren(l.meta) {
		if hivenodes.Kind(l.graph, c) != KindExtra {
			continue
		}
		if tag == "" || scene.MustString(l.graph, c, AttrExtraTag) == tag {
			out = append(out, c)
		}
	}
	return out
}

// AddExtraNodes registers auxiliary nodes so they are cleaned up with the layer.
func (l *Layer) AddExtraNodes(tag string, nodes ...scene.NodeID) error {
	for _, n := range nodes {
		if err := hivenodes.Stamp(l.graph, n, KindExtra, ""); err != nil {
			return err
		}
		if err := scene.EnsureAttribute(l.graph, n, scene.AttributeSpec{Name: AttrExtraTag, Type: scene.AttrString, Value: tag}); err != nil {
			return err
		}
		if err := l.graph.ConnectMeta(l.meta, n); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExtraNodes removes the extra nodes with tag.
func (l *Layer) DeleteExtraNodes(tag string) error {
	nodes := l.ExtraNodes(tag)
	if len(nodes) == 0 {
		return nil
	}
	hivenodes.Unlock(l.graph, nodes...)
	return l.graph.DeleteNodes(nodes...)
}

// Metadata reads the layer metadata attributes.
func (l *Layer) Metadata() []*definition.AttributeDefinition {
	return hivenodes.SerializeAttributes(l.graph, l.meta, metaReserved...)
}

// UpdateMetadata adds or updates metadata attributes.
func (l *Layer) UpdateMetadata(metadata []*definition.AttributeDefinition) error {
	return hivenodes.ApplyAttributes(l.graph, l.meta, metadata)
}

// MetaString reads one string metadata value, "" when missing.
func (l *Layer) MetaString(name string) string {
	return scene.MustString(l.graph, l.meta, name)
}

// SetMetaString writes one string metadata value.
func (l *Layer) SetMetaString(name, value string) error {
	return scene.EnsureAttribute(l.graph, l.meta, scene.AttributeSpec{Name: name, Type: scene.AttrString, Value: value})
}

// nodes lists the hive nodes of kind below the layer root.
func (l *Layer) nodes(kind string) []scene.NodeID {
	root := l.RootTransform()
	if root == "" {
		return nil
	}
	return hivenodes.NodesOfKind(l.graph, root, kind)
}

func (l *Layer) find(kind, id string) scene.NodeID {
	root := l.RootTransform()
	if root == "" || id == "" {
		return ""
	}
	return hivenodes.FindByID(l.graph, root, kind, id)
}

// parentFor resolves the scene parent for a node declared with parent id.
func (l *Layer) parentFor(kind, parentID string) scene.NodeID {
	if n := l.find(kind, parentID); n != "" {
		return n
	}
	return l.RootTransform()
}

// serializeBase fills the settings and metadata sections.
func (l *Layer) serializeBase(out *definition.LayerDefinition) {
	if s, err := l.SettingsNode(DefaultSettingsID); err == nil {
		out.Settings = s.Serialize()
	}
	out.Metadata = l.Metadata()
}

// Delete removes extra nodes, settings nodes, the root hierarchy and the meta node.
func (l *Layer) Delete() error {
	if !l.Exists() {
		return nil
	}
	var doomed []scene.NodeID
	for _, c := range l.graph.MetaChildren(l.meta) {
		switch hivenodes.Kind(l.graph, c) {
		case KindExtra, hivenodes.KindSettings:
			doomed = append(doomed, c)
		}
	}
	if root := l.RootTransform(); root != "" {
		hivenodes.UnlockTree(l.graph, root)
		doomed = append(doomed, root)
	}
	doomed = append(doomed, l.meta)
	hivenodes.Unlock(l.graph, doomed...)
	return l.graph.DeleteNodes(doomed...)
}
