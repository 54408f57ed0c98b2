package component

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// AttrParentJoint is the deform meta message attribute recording the joint of
// the parent component this component's skeleton hangs from.
const AttrParentJoint = "parentJoint"

// metaOutputFollow tags the constraints binding outputs to their joints.
const metaOutputFollow = "outputFollow"

// BuildDeform builds the input, deform and output layers. parentNode is the
// fallback parent joint when the parent component offers none.
func (c *Component) BuildDeform(parentNode scene.NodeID) error {
	if err := c.requireExists(); err != nil {
		return err
	}
	return c.runStage(StageDeform, AttrHasSkeleton, &c.buildingSkeleton, func() error {
		if err := c.setFlag(AttrHasPolished, false); err != nil {
			return err
		}
		guides, err := c.GuideLayer()
		if err != nil {
			return err
		}
		restore, err := c.enterContainer()
		if err != nil {
			return err
		}
		defer restore()

		// deform always reads the live guide state
		c.def.GuideLayer.Update(guides.SerializeFromScene())
		mapping := c.behavior.IDMapping(c)

		inputs, err := c.buildInputs(guides, mapping)
		if err != nil {
			return err
		}
		if err := c.behavior.SetupInputs(c); err != nil {
			return fmt.Errorf("setup inputs: %w", err)
		}
		if err := c.DeserializeComponentConnections(definition.InputLayerType); err != nil {
			return err
		}

		l, err := c.createLayer(definition.DeformLayerType)
		if err != nil {
			return err
		}
		deform := &layers.DeformLayer{Layer: l}
		parentJoint := c.ComponentParentJoint(parentNode)
		if parentJoint != "" {
			if err := hivenodes.SetMessage(c.graph, deform.Meta(), AttrParentJoint, parentJoint); err != nil {
				return err
			}
		}
		if err := c.buildJoints(deform, guides, mapping); err != nil {
			return err
		}
		if err := c.behavior.SetupDeformLayer(c, parentJoint); err != nil {
			return fmt.Errorf("setup deform layer: %w", err)
		}

		outputs, err := c.buildOutputs(guides, mapping)
		if err != nil {
			return err
		}
		if err := c.behavior.SetupOutputs(c); err != nil {
			return fmt.Errorf("setup outputs: %w", err)
		}
		if err := c.bindOutputs(outputs, deform, mapping); err != nil {
			return err
		}
		if err := c.behavior.PostSetupDeform(c, parentJoint); err != nil {
			return fmt.Errorf("post setup deform: %w", err)
		}
		if err := c.postSetupDeform(deform); err != nil {
			return err
		}

		if err := c.setFlag(AttrHasSkeleton, true); err != nil {
			return err
		}
		c.def.InputLayer = *inputs.SerializeFromScene()
		c.def.OutputLayer = *outputs.SerializeFromScene()
		c.def.DeformLayer = *deform.SerializeFromScene()
		return c.SaveDefinition()
	})
}

// guidePose copies the world transform of the guide with id onto def.
func guidePose(guides *layers.GuideLayer, id string, def *definition.NodeDefinition) {
	gd, err := guides.Guide(id)
	if err != nil {
		return
	}
	src := gd.Serialize()
	def.Translate, def.Rotate, def.Scale = src.Translate, src.Rotate, src.Scale
}

// layerDefinitions returns the node definitions of a layer built from guides:
// every declared node, plus, when derive is set, one node per guide that ids
// maps to something. Derived nodes follow the guide hierarchy. Nodes matching
// a guide take its pose.
func layerDefinitions(guides *layers.GuideLayer, declared []*definition.NodeDefinition, ids map[string]string, typ string, derive bool) []*definition.NodeDefinition {
	reverse := make(map[string]string, len(ids))
	for guideID, id := range ids {
		if id != "" {
			reverse[id] = guideID
		}
	}
	var out definition.LayerDefinition
	for _, n := range declared {
		d := n.Clone()
		if guideID, ok := reverse[d.ID]; ok {
			guidePose(guides, guideID, d)
		} else if d.ID == definition.RootID {
			guidePose(guides, definition.RootID, d)
		}
		_ = out.AddNode(d)
	}
	if derive {
		for _, gd := range guides.Guides() {
			id := ids[gd.ID()]
			if id == "" || out.Node(id) != nil {
				continue
			}
			d := &definition.NodeDefinition{ID: id, Type: typ}
			for p := gd.GuideParent(); p != nil; p = p.GuideParent() {
				if pid := ids[p.ID()]; pid != "" {
					d.Parent = pid
					break
				}
			}
			guidePose(guides, gd.ID(), d)
			_ = out.AddNode(d)
		}
	}
	return out.Ordered()
}

// buildInputs creates the declared inputs. A component that declares none gets
// a single root input at the root guide.
func (c *Component) buildInputs(guides *layers.GuideLayer, mapping IDMapping) (*layers.InputLayer, error) {
	l, err := c.createLayer(definition.InputLayerType)
	if err != nil {
		return nil, err
	}
	inputs := &layers.InputLayer{Layer: l}
	declared := c.def.InputLayer.DAG
	if len(declared) == 0 {
		declared = []*definition.NodeDefinition{{ID: definition.RootID, Type: definition.NodeInput}}
	}
	defs := layerDefinitions(guides, declared, mapping[definition.InputLayerType], definition.NodeInput, false)

	keep := make([]string, 0, len(defs))
	for _, d := range defs {
		keep = append(keep, d.ID)
		name := c.ObjectName(d.ID, naming.TypeInput)
		in, err := inputs.Input(d.ID)
		if err != nil {
			if _, err := inputs.CreateInput(name, d); err != nil {
				return nil, fmt.Errorf("create input %s: %w", d.ID, err)
			}
			continue
		}
		// incoming constraints are rebuilt from the definition connections
		if err := in.ClearConstraints(); err != nil {
			return nil, err
		}
		if err := errors.Join(in.Rename(name), in.Update(d)); err != nil {
			return nil, fmt.Errorf("update input %s: %w", d.ID, err)
		}
	}
	for _, in := range inputs.Inputs() {
		if !slices.Contains(keep, in.ID()) && !in.Internal() {
			if err := in.Delete(); err != nil {
				return nil, err
			}
		}
	}
	if err := inputs.UpdateSettings(c.SettingsName(string(definition.InputLayerType)), layers.DefaultSettingsID, c.def.InputLayer.Settings); err != nil {
		return nil, err
	}
	return inputs, inputs.UpdateMetadata(c.def.InputLayer.Metadata)
}

// buildJoints creates or updates one joint per deform definition and deletes
// joints nothing declares anymore.
func (c *Component) buildJoints(deform *layers.DeformLayer, guides *layers.GuideLayer, mapping IDMapping) error {
	defs := layerDefinitions(guides, c.def.DeformLayer.DAG, mapping[definition.DeformLayerType], definition.NodeJoint, true)
	keep := make([]string, 0, len(defs))
	for _, d := range defs {
		keep = append(keep, d.ID)
		name := c.ObjectName(d.ID, naming.TypeJoint)
		j, err := deform.Joint(d.ID)
		if err != nil {
			if _, err := deform.CreateJoint(name, d, ""); err != nil {
				return fmt.Errorf("create joint %s: %w", d.ID, err)
			}
			continue
		}
		parent := deform.RootTransform()
		if d.Parent != "" {
			if p, err := deform.Joint(d.Parent); err == nil {
				parent = p.Node()
			}
		}
		var errs []error
		if j.Parent() != parent {
			errs = append(errs, j.SetParent(parent))
		}
		errs = append(errs, j.Rename(name), j.Update(d))
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("update joint %s: %w", d.ID, err)
		}
	}
	var purge []string
	for _, j := range deform.Joints() {
		if !slices.Contains(keep, j.ID()) && !j.Internal() {
			purge = append(purge, j.ID())
		}
	}
	if len(purge) > 0 {
		c.logger.Debug("purging joints", log.Strings("ids", purge))
		if err := deform.DeleteJoints(purge...); err != nil {
			return err
		}
	}
	if err := deform.UpdateSettings(c.SettingsName(string(definition.DeformLayerType)), layers.DefaultSettingsID, c.def.DeformLayer.Settings); err != nil {
		return err
	}
	return deform.UpdateMetadata(c.def.DeformLayer.Metadata)
}

// buildOutputs creates the declared outputs plus one per guide the output
// mapping names.
func (c *Component) buildOutputs(guides *layers.GuideLayer, mapping IDMapping) (*layers.OutputLayer, error) {
	l, err := c.createLayer(definition.OutputLayerType)
	if err != nil {
		return nil, err
	}
	outputs := &layers.OutputLayer{Layer: l}
	defs := layerDefinitions(guides, c.def.OutputLayer.DAG, mapping[definition.OutputLayerType], definition.NodeOutput, true)

	keep := make([]string, 0, len(defs))
	for _, d := range defs {
		keep = append(keep, d.ID)
		name := c.ObjectName(d.ID, naming.TypeOutput)
		out, err := outputs.Output(d.ID)
		if err != nil {
			if _, err := outputs.CreateOutput(name, d); err != nil {
				return nil, fmt.Errorf("create output %s: %w", d.ID, err)
			}
			continue
		}
		var errs []error
		for _, cns := range c.graph.Constraints(out.Node()) {
			if cns.Metadata[metaOutputFollow] != "" {
				errs = append(errs, c.graph.DeleteConstraint(cns.ID))
			}
		}
		errs = append(errs, out.Rename(name), out.Update(d))
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("update output %s: %w", d.ID, err)
		}
	}
	for _, out := range outputs.Outputs() {
		if !slices.Contains(keep, out.ID()) && !out.Internal() {
			if err := out.Delete(); err != nil {
				return nil, err
			}
		}
	}
	if err := outputs.UpdateSettings(c.SettingsName(string(definition.OutputLayerType)), layers.DefaultSettingsID, c.def.OutputLayer.Settings); err != nil {
		return nil, err
	}
	return outputs, outputs.UpdateMetadata(c.def.OutputLayer.Metadata)
}

// bindOutputs makes every output follow the joint built from the same guide.
func (c *Component) bindOutputs(outputs *layers.OutputLayer, deform *layers.DeformLayer, mapping IDMapping) error {
	guideOf := mapping.Reverse(definition.OutputLayerType)
	joints := mapping[definition.DeformLayerType]
	var errs []error
	for _, out := range outputs.Outputs() {
		guideID, ok := guideOf[out.ID()]
		if !ok {
			continue
		}
		j, err := deform.Joint(joints[guideID])
		if err != nil {
			continue
		}
		_, err = c.graph.CreateConstraint(scene.ConstraintSpec{
			Type:           scene.ConstraintParent,
			Name:           out.Name() + "_" + naming.TypeConstraint,
			Driven:         out.Node(),
			Drivers:        []scene.ConstraintDriver{{Label: j.ID(), Node: j.Node()}},
			MaintainOffset: true,
			Metadata:       map[string]string{metaOutputFollow: j.ID()},
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Component) postSetupDeform(deform *layers.DeformLayer) error {
	if err := c.publishSettings(c.Container(), deform.Layer); err != nil {
		return err
	}
	if c.host.Options().BuildDeformationMarkingMenu {
		return c.registerMarkingMenu(deform.Layer, c.def.MarkingMenus.Deform)
	}
	return nil
}

// parentJointRecord returns the parent joint recorded by the last deform build.
func (c *Component) parentJointRecord(deform *layers.DeformLayer) scene.NodeID {
	return hivenodes.MessageTarget(c.graph, deform.Meta(), AttrParentJoint)
}

// ComponentParentJoint returns the joint of the parent component that this
// component's skeleton hangs from. The parent output the root input is bound
// to is matched against the parent's joints: first by id, then, when the
// parent has a single joint, that joint, then by walking up the parent's output
// hierarchy. defaultNode is returned when nothing matches.
func (c *Component) ComponentParentJoint(defaultNode scene.NodeID) scene.NodeID {
	parent := c.Parent()
	if parent == nil {
		return defaultNode
	}
	deform, err := parent.DeformLayer()
	if err != nil {
		return defaultNode
	}
	joints := deform.JointMap()
	if len(joints) == 0 {
		return defaultNode
	}

	parentMapping := parent.behavior.IDMapping(parent)
	jointFor := func(outputID string) (*hivenodes.Joint, bool) {
		if j, ok := joints[outputID]; ok {
			return j, true
		}
		if guideID, ok := parentMapping.Reverse(definition.OutputLayerType)[outputID]; ok {
			j, ok := joints[parentMapping[definition.DeformLayerType][guideID]]
			return j, ok
		}
		return nil, false
	}

	outputID := c.boundOutputID(parent)
	if outputID != "" {
		if j, ok := jointFor(outputID); ok {
			return j.Node()
		}
	}
	if len(joints) == 1 {
		for _, j := range joints {
			return j.Node()
		}
	}
	if outputID != "" {
		if outputs, err := parent.OutputLayer(); err == nil {
			if out, err := outputs.Output(outputID); err == nil {
				for p := out.OutputParent(); p != nil; p = p.OutputParent() {
					if j, ok := jointFor(p.ID()); ok {
						return j.Node()
					}
				}
			}
		}
	}
	return defaultNode
}

// DeleteDeform removes the input, deform and output layers. Live links are
// baked, the joints go back to the guide pose and only then are the skin
// connections baked, so bound geometry keeps its bind shape.
func (c *Component) DeleteDeform() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	var errs []error
	if deform, err := c.DeformLayer(); err == nil {
		joints := deform.Joints()
		errs = append(errs, deform.SetLiveLink(deform.SkinClusters(), false))
		if guides, err := c.GuideLayer(); err == nil {
			errs = append(errs, guides.SetLiveLink("", joints, false))
			guideOf := c.behavior.IDMapping(c).Reverse(definition.DeformLayerType)
			for _, j := range joints {
				guideID, ok := guideOf[j.ID()]
				if !ok {
					continue
				}
				if gd, err := guides.Guide(guideID); err == nil {
					errs = append(errs, j.SetWorldMatrix(gd.WorldMatrix()))
				}
			}
		}
		errs = append(errs, deform.DisconnectSkins())
	}
	errs = append(errs,
		c.deleteLayer(definition.OutputLayerType),
		c.deleteLayer(definition.DeformLayerType),
		c.deleteLayer(definition.InputLayerType),
		c.setFlag(AttrHasSkeleton, false),
		c.setFlag(AttrHasPolished, false),
	)
	return errors.Join(errs...)
}

// SetDeformLiveLink lets the joints move without deforming bound geometry.
func (c *Component) SetDeformLiveLink(state bool) error {
	deform, err := c.DeformLayer()
	if err != nil {
		return err
	}
	return deform.SetLiveLink(deform.SkinClusters(), state)
}
