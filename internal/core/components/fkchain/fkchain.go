// Package fkchain implements a forward kinematics chain component: one control
// per deform joint, each parented to the previous control, with a parent space
// switch on the first control.
package fkchain

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/scene"
)

// Type is the component type name the registry knows the chain under.
const Type = "fkchain"

const (
	// SpaceSwitchLabel is the label of the parent space switch.
	SpaceSwitchLabel = "space"
	// WorldInput is the input that stays at the origin.
	WorldInput = "world"

	metaFollowInput = "fkFollow"
	controlShape    = "circle"
)

var ErrNoJoints = errors.New("fk chain has no joints")

// Behavior builds the fk controls.
type Behavior struct {
	component.BaseBehavior
}

var _ component.Behavior = Behavior{}

// New is the behavior factory the registry calls.
func New() component.Behavior { return Behavior{} }

// Template returns the default fk chain: a root guide and three chain guides
// along +X, a root and a world input, and a space switch on the first control.
func Template() *definition.ComponentDefinition {
	def := &definition.ComponentDefinition{
		Name:        Type,
		Side:        definition.DefaultSide,
		Type:        Type,
		Version:     definition.LatestVersion,
		Description: "Forward kinematics chain",
	}
	def.GuideLayer.DAG = []*definition.NodeDefinition{
		{ID: definition.RootID, Translate: []float64{0, 0, 0}},
		{ID: "fk01", Parent: definition.RootID, Translate: []float64{1, 0, 0}},
		{ID: "fk02", Parent: "fk01", Translate: []float64{3, 0, 0}},
		{ID: "fk03", Parent: "fk02", Translate: []float64{5, 0, 0}},
	}
	def.InputLayer.DAG = []*definition.NodeDefinition{
		{ID: definition.RootID, Type: definition.NodeInput},
		{ID: WorldInput, Type: definition.NodeInput},
	}
	def.RigLayer.Settings = map[string][]*definition.AttributeDefinition{
		definition.ControlPanelName: {},
	}
	def.SpaceSwitching = []*definition.SpaceSwitchDefinition{{
		Label:  SpaceSwitchLabel,
		Driven: "fk01",
		Type:   string(scene.ConstraintParent),
		Drivers: []*definition.SpaceSwitchDriverDefinition{
			{Label: "parent", Driver: selfInput(definition.RootID)},
			{Label: WorldInput, Driver: selfInput(WorldInput)},
		},
	}}
	return def
}

func selfInput(id string) string {
	return exprutils.Expression{
		Component: exprutils.Self,
		Layer:     string(definition.InputLayerType),
		Node:      id,
	}.String()
}

// SetupRig creates one control per joint and constrains every joint to its
// control. The rig layer root follows the root input.
func (Behavior) SetupRig(c *component.Component, _ scene.NodeID) error {
	rig, err := c.RigLayer()
	if err != nil {
		return err
	}
	deform, err := c.DeformLayer()
	if err != nil {
		return err
	}
	joints := deform.Joints()
	if len(joints) == 0 {
		return fmt.Errorf("%w: %s", ErrNoJoints, c.Token())
	}

	g := c.Graph()
	var parent scene.NodeID
	for _, j := range joints {
		ctl, err := rig.CreateControl(c.ObjectName(j.ID(), naming.TypeControl), controlDefinition(c.Definition(), j), parent)
		if err != nil {
			return fmt.Errorf("create control %s: %w", j.ID(), err)
		}
		_, err = g.CreateConstraint(scene.ConstraintSpec{
			Type:           scene.ConstraintParent,
			Name:           j.Name() + "_" + naming.TypeConstraint,
			Driven:         j.Node(),
			Drivers:        []scene.ConstraintDriver{{Label: ctl.ID(), Node: ctl.Node()}},
			MaintainOffset: true,
		})
		if err != nil {
			return err
		}
		parent = ctl.Node()
	}

	root, err := c.LayerNode(definition.InputLayerType, definition.RootID)
	if err != nil {
		return err
	}
	_, err = g.CreateConstraint(scene.ConstraintSpec{
		Type:           scene.ConstraintParent,
		Name:           g.Name(rig.RootTransform()) + "_" + naming.TypeConstraint,
		Driven:         rig.RootTransform(),
		Drivers:        []scene.ConstraintDriver{{Label: definition.RootID, Node: root}},
		MaintainOffset: true,
		Metadata:       map[string]string{metaFollowInput: definition.RootID},
	})
	return err
}

// controlDefinition is the persisted control of joint j when the rig was
// built before, otherwise a circle at the joint.
func controlDefinition(def *definition.ComponentDefinition, j *hivenodes.Joint) *definition.NodeDefinition {
	src := j.Serialize()
	out := &definition.NodeDefinition{
		ID:        j.ID(),
		Type:      definition.NodeControl,
		Shape:     controlShape,
		Translate: src.Translate,
		Rotate:    src.Rotate,
		Scale:     src.Scale,
	}
	if saved := def.RigLayer.Node(j.ID()); saved != nil {
		if saved.Shape != "" {
			out.Shape = saved.Shape
		}
		out.Color = saved.Color
		out.ShapeTransform = saved.ShapeTransform
		out.Attributes = saved.Attributes
	}
	return out
}

// SpaceSwitchUIData offers every control as a driven node on top of the
// default output drivers.
func (b Behavior) SpaceSwitchUIData(c *component.Component) component.SpaceSwitchUIData {
	data := b.BaseBehavior.SpaceSwitchUIData(c)
	rig, err := c.RigLayer()
	if err != nil {
		return data
	}
	for _, ctl := range rig.Controls() {
		data.Driven = append(data.Driven, component.UIEntry{
			Label: ctl.ID(),
			Expression: exprutils.Expression{
				Component: exprutils.Self,
				Layer:     string(definition.RigLayerType),
				Node:      ctl.ID(),
			}.String(),
		})
	}
	return data
}
