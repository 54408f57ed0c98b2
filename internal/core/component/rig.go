package component

import (
	"errors"
	"fmt"
	"maps"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// AttrControlPanel links every control to the control panel when proxy
// attributes are disabled.
const AttrControlPanel = "controlPanel"

// IDMapping returns the behavior's guide id mapping.
func (c *Component) IDMapping() IDMapping { return c.behavior.IDMapping(c) }

// SpaceSwitchUIData returns what the component offers to the space switch editor.
func (c *Component) SpaceSwitchUIData() SpaceSwitchUIData { return c.behavior.SpaceSwitchUIData(c) }

// BuildRig builds the animation rig. A component that already has a rig is
// left alone. A failing SetupRig leaves the partial rig layer in the scene.
func (c *Component) BuildRig(parentNode scene.NodeID) error {
	if err := c.requireExists(); err != nil {
		return err
	}
	if c.HasRig() {
		c.skipStage(StageRig)
		return nil
	}
	return c.runStage(StageRig, AttrHasRig, &c.buildingRig, func() error {
		restore, err := c.enterContainer()
		if err != nil {
			return err
		}
		defer restore()

		c.SerializeFromScene(definition.GuideLayerType, definition.InputLayerType, definition.OutputLayerType, definition.DeformLayerType)
		if err := c.resetJointsToGuides(); err != nil {
			return err
		}

		l, err := c.createLayer(definition.RigLayerType)
		if err != nil {
			return err
		}
		rig := &layers.RigLayer{Layer: l}
		settings := maps.Clone(c.def.RigLayer.Settings)
		if settings == nil {
			settings = make(map[string][]*definition.AttributeDefinition)
		}
		settings[definition.ControlPanelName] = definition.MergeAttributesWithSpaceSwitches(settings[definition.ControlPanelName], c.def.SpaceSwitching, true)
		if err := rig.ApplySettings(settings, c.SettingsName); err != nil {
			return err
		}
		if err := rig.UpdateMetadata(c.def.RigLayer.Metadata); err != nil {
			return err
		}

		parentJoint := c.ComponentParentJoint(parentNode)
		if err := c.behavior.SetupRig(c, parentJoint); err != nil {
			return fmt.Errorf("setup rig: %w", err)
		}
		if err := c.postSetupRig(rig, parentJoint); err != nil {
			return err
		}
		if err := c.setFlag(AttrHasRig, true); err != nil {
			return err
		}
		c.SerializeFromScene(definition.RigLayerType)
		return c.SaveDefinition()
	})
}

// resetJointsToGuides moves every joint back onto the guide it was built from.
func (c *Component) resetJointsToGuides() error {
	deform, err := c.DeformLayer()
	if err != nil {
		return nil
	}
	guides, err := c.GuideLayer()
	if err != nil {
		return nil
	}
	guideOf := c.IDMapping().Reverse(definition.DeformLayerType)
	var errs []error
	for _, j := range deform.Joints() {
		if gd, err := guides.Guide(guideOf[j.ID()]); err == nil {
			errs = append(errs, j.SetWorldMatrix(gd.WorldMatrix()))
		}
	}
	return errors.Join(errs...)
}

// postSetupRig chains the controller tags in control order, publishes the
// controls and the control panel, and hides the joints.
func (c *Component) postSetupRig(rig *layers.RigLayer, parentJoint scene.NodeID) error {
	g := c.graph
	container := c.Container()
	controls := rig.Controls()

	var prev *hivenodes.ControllerTag
	var errs []error
	for _, ctl := range controls {
		tag, err := hivenodes.CreateControllerTag(g, c.ObjectName(ctl.ID(), naming.TypeControllerTag), ctl.Node(), prev)
		if err != nil {
			return err
		}
		if prev != nil {
			errs = append(errs, tag.SetParent(prev))
		}
		prev = tag
		errs = append(errs, g.PublishNode(container, ctl.Node(), ctl.Name()))
	}

	if panel, err := rig.ControlPanel(); err == nil {
		errs = append(errs, c.publishSettings(container, rig.Layer))
		for _, ctl := range controls {
			if c.host.Options().UseProxyAttributes {
				errs = append(errs, proxyAttributes(g, panel, ctl.Node()))
				continue
			}
			errs = append(errs, hivenodes.SetMessage(g, ctl.Node(), AttrControlPanel, panel.Node()))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if deform, err := c.DeformLayer(); err == nil {
		for _, j := range deform.Joints() {
			if err := g.SetVisible(j.Node(), false); err != nil {
				return err
			}
		}
	}
	if err := c.registerMarkingMenu(rig.Layer, c.def.MarkingMenus.Rig); err != nil {
		return err
	}
	if err := c.behavior.PostSetupRig(c, parentJoint); err != nil {
		return fmt.Errorf("post setup rig: %w", err)
	}
	return nil
}

// proxyAttributes mirrors every control panel attribute onto node.
func proxyAttributes(g scene.Graph, panel *hivenodes.SettingsNode, node scene.NodeID) error {
	var errs []error
	for _, a := range panel.Serialize() {
		spec, err := g.AttributeSpec(panel.Node(), a.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !g.HasAttribute(node, a.Name) {
			errs = append(errs, g.AddAttribute(node, spec))
		}
		dst := scene.Plug{Node: node, Attr: a.Name}
		if _, ok := g.Source(dst); !ok {
			errs = append(errs, g.Connect(panel.Plug(a.Name), dst))
		}
	}
	return errors.Join(errs...)
}

// SetupSpaceSwitches builds the space switch constraints of the definition. It
// runs once every requested rig is built since a driver may live in another
// component. Inactive switches, switches without drivers and switches whose
// driven control does not exist are skipped. A rebuilt switch reuses the
// buffer of the switch it replaces.
func (c *Component) SetupSpaceSwitches() error {
	rig, err := c.RigLayer()
	if err != nil {
		return err
	}
	var errs []error
	for _, sw := range c.def.SpaceSwitching {
		if !sw.IsActive() || len(sw.Drivers) == 0 {
			continue
		}
		control, err := rig.Control(sw.Driven)
		if err != nil {
			c.logger.Debug("space switch driven control missing", log.String("label", sw.Label), log.String("driven", sw.Driven))
			continue
		}

		drivers := make([]scene.ConstraintDriver, 0, len(sw.Drivers))
		var resolveErrs []error
		for _, d := range sw.Drivers {
			plug, err := c.ResolveExpression(d.Driver)
			if err != nil {
				resolveErrs = append(resolveErrs, fmt.Errorf("space switch %s driver %s: %w", sw.Label, d.Label, err))
				continue
			}
			drivers = append(drivers, scene.ConstraintDriver{Label: d.Label, Node: plug.Node})
		}
		if len(resolveErrs) > 0 {
			errs = append(errs, resolveErrs...)
			continue
		}

		var srt scene.NodeID
		if existing, err := rig.SpaceSwitch(sw.Label); err == nil {
			srt = existing.Driven
		} else if srt = control.SRT(sw.Label); srt == "" {
			if srt, err = control.AddSRT(sw.Label); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		attr, err := c.switchAttribute(rig, control.Node(), sw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = rig.CreateSpaceSwitch(layers.SpaceSwitchSpec{
			Label:          sw.Label,
			Driven:         srt,
			Type:           scene.ConstraintType(sw.Type),
			Drivers:        drivers,
			MaintainOffset: true,
			SwitchAttr:     attr,
			DefaultDriver:  sw.DefaultIndex(),
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// switchAttribute returns the enum plug selecting the active driver: the
// control panel attribute when there is one, otherwise an enum on the control.
func (c *Component) switchAttribute(rig *layers.RigLayer, control scene.NodeID, sw *definition.SpaceSwitchDefinition) (scene.Plug, error) {
	if panel, err := rig.ControlPanel(); err == nil && c.graph.HasAttribute(panel.Node(), sw.Label) {
		return panel.Plug(sw.Label), nil
	}
	def := sw.DefaultIndex()
	err := scene.EnsureAttribute(c.graph, control, scene.AttributeSpec{
		Name:    sw.Label,
		Type:    scene.AttrEnum,
		Enums:   sw.Labels(),
		Value:   def,
		Default: def,
		Keyable: true,
	})
	return scene.Plug{Node: control, Attr: sw.Label}, err
}

// DeleteRig removes the rig layer. The guide and skeleton flags are untouched.
func (c *Component) DeleteRig() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	var errs []error
	errs = append(errs, c.deleteLayer(definition.RigLayerType))
	if deform, err := c.DeformLayer(); err == nil {
		for _, j := range deform.Joints() {
			errs = append(errs, c.graph.SetVisible(j.Node(), true))
		}
	}
	if container := c.Container(); container != "" {
		errs = append(errs, c.graph.SetBlackBox(container, false))
	}
	errs = append(errs, c.setFlag(AttrHasRig, false), c.setFlag(AttrHasPolished, false))
	return errors.Join(errs...)
}

// Polish runs the behavior's finishing pass and applies the rig options.
func (c *Component) Polish() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	var polishing bool
	return c.runStage(StagePolish, AttrHasPolished, &polishing, func() error {
		if !c.HasRig() {
			return fmt.Errorf("%w: %s has no rig", ErrLayerNotFound, c.Token())
		}
		if err := c.behavior.Polish(c); err != nil {
			return err
		}
		opts := c.host.Options()
		if opts.DeleteStaticGuideNodes {
			if err := c.DeleteGuide(); err != nil {
				return err
			}
		} else if guides, err := c.GuideLayer(); err == nil {
			if err := guides.SetVisible(false); err != nil {
				return err
			}
		}
		if opts.BlackBox {
			if err := c.graph.SetBlackBox(c.Container(), true); err != nil {
				return err
			}
		}
		return c.setFlag(AttrHasPolished, true)
	})
}
