package component

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/encoding"
)

const (
	// MetaSourceGuides is the guide layer metadata mapping a guide id to the
	// "name:side:id" tokens of the guides driving it from other components.
	MetaSourceGuides = "sourceGuides"

	// metaBinding tags the constraints SetParent creates.
	metaBinding          = "binding"
	bindingParent        = "componentParent"
	parentConnectionName = "parent"
)

// SetParent makes parent the parent component. driverGuide is the parent guide
// the root guide follows; it must have a deform joint counterpart. When empty,
// the first parent guide with a joint is used.
func (c *Component) SetParent(parent *Component, driverGuide string) error {
	if parent == nil {
		return c.RemoveParent()
	}
	if parent == c || parent.Token() == c.Token() {
		return fmt.Errorf("%w: %s", ErrSelfParent, c.Token())
	}
	if err := errors.Join(c.requireExists(), parent.requireExists()); err != nil {
		return err
	}
	if parent.descendsFrom(c) {
		return fmt.Errorf("%w: %s is below %s", ErrComponentCycle, parent.Token(), c.Token())
	}

	jointOf := parent.IDMapping()[definition.DeformLayerType]
	if driverGuide != "" {
		if jointOf[driverGuide] == "" {
			return fmt.Errorf("%w: %s.%s", ErrNoDeformJoint, parent.Token(), driverGuide)
		}
	} else {
		driverGuide = parent.defaultDriverGuide()
	}

	if err := c.relinkMeta(parent.meta); err != nil {
		return err
	}
	c.def.Parent = parent.Token()

	var errs []error
	if driverGuide != "" {
		errs = append(errs, c.bindGuides(parent, driverGuide))
	}
	c.upsertParentConnection(parent, driverGuide)
	if c.HasSkeleton() {
		errs = append(errs, c.rebindParent())
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.logger.Debug("parent set", log.String("parent", parent.Token()), log.String("driverGuide", driverGuide))
	return c.SaveDefinition()
}

// descendsFrom reports whether ancestor is c or one of the ancestors of c.
func (c *Component) descendsFrom(ancestor *Component) bool {
	seen := make(map[string]bool)
	for p := c; p != nil && !seen[p.Token()]; p = p.Parent() {
		if p == ancestor || p.Token() == ancestor.Token() {
			return true
		}
		seen[p.Token()] = true
	}
	return false
}

// RemoveParent unlinks the parent component. The component moves back under
// the component layer and every binding to the parent is dropped.
func (c *Component) RemoveParent() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	parent := c.Parent()
	token := c.def.Parent
	if parent != nil {
		token = parent.Token()
	}
	if err := c.relinkMeta(c.host.ComponentLayerMeta()); err != nil {
		return err
	}
	c.def.Parent = ""
	if token == "" {
		return c.SaveDefinition()
	}

	var errs []error
	c.def.Connections = slices.DeleteFunc(c.def.Connections, func(conn *definition.ConnectionDefinition) bool {
		conn.Drivers = slices.DeleteFunc(conn.Drivers, func(d definition.ConnectionDriver) bool {
			return d.Component == token
		})
		return len(conn.Drivers) == 0
	})

	if guides, err := c.GuideLayer(); err == nil {
		errs = append(errs, c.unbindGuides(guides))
	}
	c.def.GuideLayer.Metadata = slices.DeleteFunc(c.def.GuideLayer.Metadata, func(a *definition.AttributeDefinition) bool {
		return a.Name == MetaSourceGuides
	})

	if inputs, err := c.InputLayer(); err == nil {
		if in, err := inputs.Input(c.rootInput()); err == nil && scene.MustString(c.graph, in.Node(), AttrSourceComponent) == token {
			errs = append(errs, in.ClearConstraints())
			for _, attr := range []string{AttrSourceComponent, AttrSourceLayer, AttrSourceID} {
				errs = append(errs, c.graph.Set(in.Node(), attr, ""))
			}
		}
	}
	if deform, err := c.DeformLayer(); err == nil && c.parentJointRecord(deform) != "" {
		errs = append(errs, hivenodes.SetMessage(c.graph, deform.Meta(), AttrParentJoint, ""))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.logger.Debug("parent removed", log.String("parent", token))
	return c.SaveDefinition()
}

// relinkMeta moves the meta node under a new meta parent.
func (c *Component) relinkMeta(to scene.NodeID) error {
	g := c.graph
	for _, p := range g.MetaParents(c.meta) {
		if p == to {
			continue
		}
		if IsComponent(g, p) || p == c.host.ComponentLayerMeta() {
			if err := g.DisconnectMeta(p, c.meta); err != nil {
				return err
			}
		}
	}
	return g.ConnectMeta(to, c.meta)
}

// defaultDriverGuide returns the first guide, in hierarchy order, that has a
// joint.
func (c *Component) defaultDriverGuide() string {
	jointOf := c.IDMapping()[definition.DeformLayerType]
	for _, n := range c.def.GuideLayer.Ordered() {
		if jointOf[n.ID] != "" {
			return n.ID
		}
	}
	return ""
}

// outputFor returns the output id built from guideID, falling back to the
// first output.
func (c *Component) outputFor(guideID string) string {
	mapping := c.IDMapping()[definition.OutputLayerType]
	if id := mapping[guideID]; id != "" {
		return id
	}
	if roots := c.def.OutputLayer.Ordered(); len(roots) > 0 {
		return roots[0].ID
	}
	for _, n := range c.def.GuideLayer.Ordered() {
		if id := mapping[n.ID]; id != "" {
			return id
		}
	}
	return ""
}

// bindGuides constrains the root guide to the parent's driver guide. The
// constraints keep their offset so the guide does not move when they go live.
func (c *Component) bindGuides(parent *Component, driverGuide string) error {
	guides, err := c.GuideLayer()
	if err != nil {
		return nil
	}
	parentGuides, err := parent.GuideLayer()
	if err != nil {
		return nil
	}
	driver, err := parentGuides.Guide(driverGuide)
	if err != nil {
		return fmt.Errorf("%w: %s.%s", ErrNodeNotFound, parent.Token(), driverGuide)
	}
	root, err := guides.RootGuide()
	if err != nil {
		return err
	}
	if err := c.unbindGuides(guides); err != nil {
		return err
	}

	g := c.graph
	driven := root.SRT()
	if driven == "" {
		driven = root.Node()
	}
	for _, typ := range []scene.ConstraintType{scene.ConstraintParent, scene.ConstraintScale} {
		_, err := g.CreateConstraint(scene.ConstraintSpec{
			Type:           typ,
			Name:           fmt.Sprintf("%s_%s_%s", g.Name(driven), typ, naming.TypeConstraint),
			Driven:         driven,
			Drivers:        []scene.ConstraintDriver{{Label: parentConnectionName, Node: driver.Node()}},
			MaintainOffset: true,
			Metadata:       map[string]string{metaBinding: bindingParent},
		})
		if err != nil {
			return fmt.Errorf("bind %s to %s: %w", c.Token(), parent.Token(), err)
		}
	}

	if _, err := hivenodes.CreateAnnotation(g, c.ObjectName(root.ID(), naming.TypeAnnotation), root.Node(), root.Node(), driver.Node()); err != nil {
		return err
	}

	sources := map[string][]string{
		root.ID(): {exprutils.NodeToken(parent.Name(), parent.Side(), driverGuide)},
	}
	value, err := encoding.EncodeString(sources)
	if err != nil {
		return err
	}
	c.def.GuideLayer.SetMeta(MetaSourceGuides, value)
	return guides.SetMetaString(MetaSourceGuides, value)
}

// unbindGuides drops the parent constraints of the root guide and the
// annotations pointing out of the layer.
func (c *Component) unbindGuides(guides *layers.GuideLayer) error {
	root, err := guides.RootGuide()
	if err != nil {
		return nil
	}
	g := c.graph
	var errs []error
	for _, n := range []scene.NodeID{root.SRT(), root.Node()} {
		if n == "" {
			continue
		}
		for _, cns := range g.Constraints(n) {
			if cns.Metadata[metaBinding] == bindingParent {
				errs = append(errs, g.DeleteConstraint(cns.ID))
			}
		}
	}
	layerRoot := guides.RootTransform()
	for _, a := range hivenodes.AnnotationsFrom(g, layerRoot, root.Node()) {
		if end := a.End(); end == "" || !scene.IsDescendantOf(g, end, layerRoot) {
			errs = append(errs, a.Delete())
		}
	}
	if g.HasAttribute(guides.Meta(), MetaSourceGuides) {
		errs = append(errs, g.DeleteAttribute(guides.Meta(), MetaSourceGuides))
	}
	return errors.Join(errs...)
}

// upsertParentConnection records the binding of the root input to the parent
// output built from driverGuide.
func (c *Component) upsertParentConnection(parent *Component, driverGuide string) {
	driven := c.rootInput()
	driver := definition.ConnectionDriver{
		Label:     parentConnectionName,
		Component: parent.Token(),
		Layer:     string(definition.OutputLayerType),
		ID:        parent.outputFor(driverGuide),
	}
	for _, conn := range c.def.Connections {
		if conn.Driven != driven {
			continue
		}
		conn.Type = string(scene.ConstraintParent)
		conn.Drivers = []definition.ConnectionDriver{driver}
		conn.MaintainOffset = true
		return
	}
	c.def.Connections = append(c.def.Connections, &definition.ConnectionDefinition{
		Driven:         driven,
		Type:           string(scene.ConstraintParent),
		Drivers:        []definition.ConnectionDriver{driver},
		MaintainOffset: true,
	})
}

// rebindParent rebuilds the input constraints and the recorded parent joint of
// a built skeleton.
func (c *Component) rebindParent() error {
	if err := c.DeserializeComponentConnections(definition.InputLayerType); err != nil {
		return err
	}
	deform, err := c.DeformLayer()
	if err != nil {
		return nil
	}
	joint := c.ComponentParentJoint("")
	return hivenodes.SetMessage(c.graph, deform.Meta(), AttrParentJoint, joint)
}
