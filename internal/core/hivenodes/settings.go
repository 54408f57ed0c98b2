package hivenodes

import (
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
)

// SettingsNode stores layer settings as dynamic attributes on a network node.
// Its hive id is the settings name ("settings", "controlPanel", ...).
type SettingsNode struct {
	graph scene.Graph
	node  scene.NodeID
}

// CreateSettingsNode creates an empty settings node.
func CreateSettingsNode(g scene.Graph, name, settingsID string) (*SettingsNode, error) {
	id, err := createTransform(g, scene.TypeNetwork, name, "", KindSettings, settingsID)
	if err != nil {
		return nil, err
	}
	return &SettingsNode{graph: g, node: id}, nil
}

func AsSettingsNode(g scene.Graph, node scene.NodeID) *SettingsNode {
	if Kind(g, node) != KindSettings {
		return nil
	}
	return &SettingsNode{graph: g, node: node}
}

func (s *SettingsNode) Node() scene.NodeID { return s.node }

func (s *SettingsNode) ID() string { return ID(s.graph, s.node) }

func (s *SettingsNode) Name() string { return s.graph.Name(s.node) }

// Apply adds or updates the given settings.
func (s *SettingsNode) Apply(settings []*definition.AttributeDefinition) error {
	return ApplyAttributes(s.graph, s.node, settings)
}

// Value returns the current value of one setting.
func (s *SettingsNode) Value(name string) (any, error) {
	return s.graph.Get(s.node, name)
}

func (s *SettingsNode) Plug(name string) scene.Plug {
	return scene.Plug{Node: s.node, Attr: name}
}

// Serialize lists the settings in creation order.
func (s *SettingsNode) Serialize() []*definition.AttributeDefinition {
	return SerializeAttributes(s.graph, s.node)
}

func (s *SettingsNode) Delete() error {
	if !s.graph.Exists(s.node) {
		return nil
	}
	Unlock(s.graph, s.node)
	return s.graph.DeleteNodes(s.node)
}
