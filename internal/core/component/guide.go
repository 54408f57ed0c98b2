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

// BuildGuide creates or updates the guide layer from the definition. Existing
// guides are updated in place, so building twice leaves the same guides. The
// skeleton and polish flags are cleared since guide edits invalidate them.
func (c *Component) BuildGuide() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	return c.runStage(StageGuide, AttrHasGuide, &c.buildingGuide, func() error {
		if err := errors.Join(c.setFlag(AttrHasPolished, false), c.setFlag(AttrHasSkeleton, false)); err != nil {
			return err
		}
		restore, err := c.enterContainer()
		if err != nil {
			return err
		}
		defer restore()

		l, err := c.createLayer(definition.GuideLayerType)
		if err != nil {
			return err
		}
		guides := &layers.GuideLayer{Layer: l}
		if err := guides.SetVisible(true); err != nil {
			return err
		}
		if err := c.preSetupGuide(guides); err != nil {
			return err
		}
		if err := c.behavior.SetupGuide(c); err != nil {
			return fmt.Errorf("setup guide: %w", err)
		}
		if err := c.postSetupGuide(guides); err != nil {
			return err
		}
		if err := c.setFlag(AttrHasGuide, true); err != nil {
			return err
		}
		c.def.GuideLayer.Update(guides.SerializeFromScene())
		return c.SaveDefinition()
	})
}

type pendingParent struct {
	guide  *hivenodes.Guide
	parent string
}

// preSetupGuide reconciles the live guides with the definition. Reparenting is
// deferred until every guide exists since the definition is not guaranteed to
// list parents before children.
func (c *Component) preSetupGuide(l *layers.GuideLayer) error {
	var pending []pendingParent
	for _, n := range c.def.GuideLayer.Ordered() {
		name := c.ObjectName(n.ID, naming.TypeGuide)
		gd, err := l.Guide(n.ID)
		if err != nil {
			gd, err = l.CreateGuide(name, n)
			if err != nil {
				return fmt.Errorf("create guide %s: %w", n.ID, err)
			}
		} else {
			if err := gd.Rename(name); err != nil {
				return fmt.Errorf("rename guide %s: %w", n.ID, err)
			}
			if err := gd.Update(n); err != nil {
				return fmt.Errorf("update guide %s: %w", n.ID, err)
			}
		}
		current := ""
		if p := gd.GuideParent(); p != nil {
			current = p.ID()
		}
		if current != n.Parent {
			pending = append(pending, pendingParent{guide: gd, parent: n.Parent})
		}
	}

	for _, p := range pending {
		target := l.RootTransform()
		if p.parent != "" {
			parent, err := l.Guide(p.parent)
			if err != nil {
				return fmt.Errorf("parent of guide %s: %w", p.guide.ID(), err)
			}
			target = parent.Node()
		}
		if err := p.guide.SetGuideParent(target); err != nil {
			return fmt.Errorf("reparent guide %s: %w", p.guide.ID(), err)
		}
	}

	if err := l.UpdateSettings(c.SettingsName(string(definition.GuideLayerType)), layers.DefaultSettingsID, c.def.GuideLayer.Settings); err != nil {
		return err
	}
	return l.UpdateMetadata(c.def.GuideLayer.Metadata)
}

// postSetupGuide purges guides the definition no longer declares, publishes the
// settings, draws an annotation from every guide to its parent guide and locks
// the guides.
func (c *Component) postSetupGuide(l *layers.GuideLayer) error {
	g := c.graph
	declared := c.def.GuideLayer.NodeIDs()
	var purge []string
	for _, gd := range l.Guides() {
		if !slices.Contains(declared, gd.ID()) && !gd.Internal() {
			purge = append(purge, gd.ID())
		}
	}
	if len(purge) > 0 {
		c.logger.Debug("purging guides", log.Strings("ids", purge))
		if err := l.DeleteGuides(purge...); err != nil {
			return err
		}
	}

	container := c.Container()
	if err := c.publishSettings(container, l.Layer); err != nil {
		return err
	}

	root := l.RootTransform()
	var errs []error
	for _, gd := range l.Guides() {
		errs = append(errs, c.syncAnnotation(root, gd))
		if err := gd.Lock(true); err != nil {
			errs = append(errs, err)
		}
		if gd.ID() == definition.RootID {
			errs = append(errs, g.PublishNode(container, gd.Node(), gd.Name()))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.host.Options().AutoAlignGuides {
		if err := c.AlignGuides(); err != nil {
			return err
		}
	}
	return c.registerMarkingMenu(l.Layer, c.def.MarkingMenus.Guide)
}

// syncAnnotation keeps exactly one annotation from gd to its parent guide.
// Annotations to nodes outside the layer belong to component parenting and are
// left alone.
func (c *Component) syncAnnotation(layerRoot scene.NodeID, gd *hivenodes.Guide) error {
	var parent scene.NodeID
	if p := gd.GuideParent(); p != nil {
		parent = p.Node()
	}
	found := false
	var errs []error
	for _, a := range hivenodes.AnnotationsFrom(c.graph, layerRoot, gd.Node()) {
		end := a.End()
		if end != "" && !scene.IsDescendantOf(c.graph, end, layerRoot) {
			continue
		}
		if end == parent && parent != "" && !found {
			found = true
			continue
		}
		errs = append(errs, a.Delete())
	}
	if !found && parent != "" {
		name := c.ObjectName(gd.ID(), naming.TypeAnnotation)
		_, err := hivenodes.CreateAnnotation(c.graph, name, gd.Node(), gd.Node(), parent)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Component) registerMarkingMenu(l *layers.Layer, layout string) error {
	if layout == "" {
		return nil
	}
	return l.SetMetaString(AttrMarkingMenu, layout)
}

// AlignGuides aims every auto aligned guide at its first child guide.
func (c *Component) AlignGuides() error {
	l, err := c.GuideLayer()
	if err != nil {
		return err
	}
	var errs []error
	for _, gd := range l.Guides() {
		if gd.AutoAlign() {
			errs = append(errs, gd.AimToChild())
		}
	}
	return errors.Join(errs...)
}

// BuildGuideControls tags every guide for pick walking, chained along the
// guide hierarchy.
func (c *Component) BuildGuideControls() error {
	if !c.HasGuide() {
		if err := c.BuildGuide(); err != nil {
			return err
		}
	}
	l, err := c.GuideLayer()
	if err != nil {
		return err
	}
	for _, gd := range l.Guides() {
		var parent *hivenodes.ControllerTag
		if p := gd.GuideParent(); p != nil {
			parent = p.ControllerTag()
		}
		name := c.ObjectName(gd.ID(), naming.TypeControllerTag)
		if _, err := hivenodes.CreateControllerTag(c.graph, name, gd.Node(), parent); err != nil {
			return err
		}
	}
	return c.setFlag(AttrHasGuideControls, true)
}

// DeleteGuide removes the guide layer. Later stages are left as they are.
func (c *Component) DeleteGuide() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	if err := c.deleteLayer(definition.GuideLayerType); err != nil {
		return err
	}
	return errors.Join(c.setFlag(AttrHasGuide, false), c.setFlag(AttrHasGuideControls, false))
}

// SetGuideLiveLink makes the guides drive the joints so skinning previews guide
// edits. Turning it off bakes the joints where they are.
func (c *Component) SetGuideLiveLink(state bool) error {
	guides, err := c.GuideLayer()
	if err != nil {
		return err
	}
	deform, err := c.DeformLayer()
	if err != nil {
		return err
	}
	return guides.SetLiveLink(c.parentJointRecord(deform), deform.Joints(), state)
}

// IsGuideLiveLinked reports whether the guide live link is active.
func (c *Component) IsGuideLiveLinked() bool {
	guides, err := c.GuideLayer()
	return err == nil && guides.IsLiveLinked()
}
