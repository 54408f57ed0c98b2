package component

import (
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/scene"
)

// Behavior is what a component type adds to the generic build state machine.
// The component runs the shared part of every stage and calls these hooks at
// fixed points. Types embed BaseBehavior and override what they need.
type Behavior interface {
	// SetupGuide runs after the guides of the definition exist.
	SetupGuide(c *Component) error
	// SetupInputs runs after the input nodes exist.
	SetupInputs(c *Component) error
	// SetupDeformLayer runs after the joints exist.
	SetupDeformLayer(c *Component, parentJoint scene.NodeID) error
	// SetupOutputs runs after the output nodes exist.
	SetupOutputs(c *Component) error
	PostSetupDeform(c *Component, parentJoint scene.NodeID) error
	// SetupRig builds the controls. There is no generic implementation.
	SetupRig(c *Component, parentNode scene.NodeID) error
	PostSetupRig(c *Component, parentNode scene.NodeID) error
	// IDMapping maps every guide id to the node id it becomes in each layer. An
	// empty id means the guide has no counterpart in that layer.
	IDMapping(c *Component) IDMapping
	SpaceSwitchUIData(c *Component) SpaceSwitchUIData
	Polish(c *Component) error
}

// IDMapping is layer -> guide id -> layer node id.
type IDMapping map[definition.LayerType]map[string]string

// Reverse maps layer node ids back to guide ids for one layer.
func (m IDMapping) Reverse(layer definition.LayerType) map[string]string {
	out := make(map[string]string, len(m[layer]))
	for guideID, id := range m[layer] {
		if id != "" {
			out[id] = guideID
		}
	}
	return out
}

// UIEntry is one selectable item of the space switch editor.
type UIEntry struct {
	Label      string `json:"label"`
	Expression string `json:"expression"`
}

// SpaceSwitchUIData lists what a component offers to the space switch editor.
type SpaceSwitchUIData struct {
	Driven  []UIEntry `json:"driven"`
	Drivers []UIEntry `json:"drivers"`
}

// BaseBehavior provides the defaults: no extra guide or deform logic, 1:1 id
// mapping, outputs offered as space switch drivers, and no rig.
type BaseBehavior struct{}

var _ Behavior = BaseBehavior{}

func (BaseBehavior) SetupGuide(*Component) error { return nil }
func (BaseBehavior) SetupInputs(*Component) error { return nil }
func (BaseBehavior) SetupDeformLayer(*Component, scene.NodeID) error { return nil }
func (BaseBehavior) SetupOutputs(*Component) error { return nil }
func (BaseBehavior) PostSetupDeform(*Component, scene.NodeID) error { return nil }
func (BaseBehavior) PostSetupRig(*Component, scene.NodeID) error { return nil }
func (BaseBehavior) Polish(*Component) error { return nil }

func (BaseBehavior) SetupRig(*Component, scene.NodeID) error {
	return ErrNotImplemented
}

func (BaseBehavior) IDMapping(c *Component) IDMapping {
	return DefaultIDMapping(c.Definition())
}

func (BaseBehavior) SpaceSwitchUIData(c *Component) SpaceSwitchUIData {
	var data SpaceSwitchUIData
	for _, n := range c.Definition().OutputLayer.DAG {
		data.Drivers = append(data.Drivers, UIEntry{
			Label:      n.ID,
			Expression: exprutils.Expression{
				Component: exprutils.Self,
				Layer:     string(definition.OutputLayerType),
				Node:      n.ID,
			}.String(),
		})
	}
	return data
}

// DefaultIDMapping maps every non-root guide id to itself in the input, output,
// deform and rig layers. The root guide has no counterpart.
func DefaultIDMapping(def *definition.ComponentDefinition) IDMapping {
	out := make(IDMapping)
	for _, layer := range []definition.LayerType{
		definition.InputLayerType, definition.OutputLayerType,
		definition.DeformLayerType, definition.RigLayerType,
	} {
		ids := make(map[string]string, len(def.GuideLayer.DAG))
		for _, n := range def.GuideLayer.DAG {
			if n.ID == definition.RootID {
				ids[n.ID] = ""
				continue
			}
			ids[n.ID] = n.ID
		}
		out[layer] = ids
	}
	return out
}
