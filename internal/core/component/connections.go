package component

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// Attributes written on a bound input node so the binding can be walked
// without parsing the definition again.
const (
	AttrSourceComponent = "sourceComponent"
	AttrSourceLayer     = "sourceLayer"
	AttrSourceID        = "sourceId"
)

// DeserializeComponentConnections rebuilds the constraints the definition
// connections describe. Only the input layer carries connections. A driver
// whose component has not built the driving layer yet is skipped.
func (c *Component) DeserializeComponentConnections(layer definition.LayerType) error {
	if layer != definition.InputLayerType || len(c.def.Connections) == 0 {
		return nil
	}
	inputs, err := c.InputLayer()
	if err != nil {
		return err
	}
	var errs []error
	for _, conn := range c.def.Connections {
		in, err := inputs.Input(conn.Driven)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNodeNotFound, err))
			continue
		}
		var drivers []scene.ConstraintDriver
		var bound *definition.ConnectionDriver
		for i := range conn.Drivers {
			d := conn.Drivers[i]
			node, err := c.resolveDriver(d)
			if errors.Is(err, ErrDriverNotBuilt) {
				c.logger.Warn("connection driver not built", log.String("driven", conn.Driven), log.String("driver", d.Component))
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			label := d.Label
			if label == "" {
				label = d.ID
			}
			drivers = append(drivers, scene.ConstraintDriver{Label: label, Node: node})
			if bound == nil {
				bound = &d
			}
		}
		if len(drivers) == 0 {
			continue
		}
		if err := in.ClearConstraints(); err != nil {
			errs = append(errs, err)
			continue
		}
		typ := scene.ConstraintType(conn.Type)
		if typ == "" {
			typ = scene.ConstraintParent
		}
		_, err = c.graph.CreateConstraint(scene.ConstraintSpec{
			Type:           typ,
			Name:           in.Name() + "_" + naming.TypeConstraint,
			Driven:         in.Node(),
			Drivers:        drivers,
			MaintainOffset: conn.MaintainOffset,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("connect %s: %w", conn.Driven, err))
			continue
		}
		errs = append(errs, c.recordBinding(in.Node(), *bound))
	}
	return errors.Join(errs...)
}

func (c *Component) recordBinding(input scene.NodeID, d definition.ConnectionDriver) error {
	token := d.Component
	if token == "" || token == exprutils.Self {
		token = c.Token()
	}
	layer := d.Layer
	if layer == "" {
		layer = string(definition.OutputLayerType)
	}
	var errs []error
	for name, value := range map[string]string{
		AttrSourceComponent: token,
		AttrSourceLayer:     layer,
		AttrSourceID:        d.ID,
	} {
		errs = append(errs, scene.EnsureAttribute(c.graph, input, scene.AttributeSpec{Name: name, Type: scene.AttrString, Value: value}))
	}
	return errors.Join(errs...)
}

// driverComponent resolves a component token, "" and "self" being c.
func (c *Component) driverComponent(token string) (*Component, error) {
	if token == "" || token == exprutils.Self || token == c.Token() {
		return c, nil
	}
	name, side, err := exprutils.SplitComponentToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDriver, err)
	}
	comp, err := c.host.FindComponent(name, side)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDriver, token, err)
	}
	return comp, nil
}

func (c *Component) resolveDriver(d definition.ConnectionDriver) (scene.NodeID, error) {
	comp, err := c.driverComponent(d.Component)
	if err != nil {
		return "", err
	}
	layer := definition.LayerType(d.Layer)
	if layer == "" {
		layer = definition.OutputLayerType
	}
	return comp.LayerNode(layer, d.ID)
}

// LayerNode returns the scene node with hive id in layer. A missing layer is
// ErrDriverNotBuilt, a missing node ErrNodeNotFound.
func (c *Component) LayerNode(layer definition.LayerType, id string) (scene.NodeID, error) {
	if _, err := c.Layer(layer); err != nil {
		return "", fmt.Errorf("%w: %s.%s", ErrDriverNotBuilt, c.Token(), layer)
	}
	var (
		node scene.NodeID
		err  error
	)
	switch layer {
	case definition.GuideLayerType:
		l, _ := c.GuideLayer()
		var gd *hivenodes.Guide
		if gd, err = l.Guide(id); err == nil {
			node = gd.Node()
		}
	case definition.InputLayerType:
		l, _ := c.InputLayer()
		var in *hivenodes.InputNode
		if in, err = l.Input(id); err == nil {
			node = in.Node()
		}
	case definition.OutputLayerType:
		l, _ := c.OutputLayer()
		var out *hivenodes.OutputNode
		if out, err = l.Output(id); err == nil {
			node = out.Node()
		}
	case definition.DeformLayerType:
		l, _ := c.DeformLayer()
		var j *hivenodes.Joint
		if j, err = l.Joint(id); err == nil {
			node = j.Node()
		}
	case definition.RigLayerType:
		l, _ := c.RigLayer()
		if s, serr := l.SettingsNode(id); serr == nil {
			return s.Node(), nil
		}
		var ctl *hivenodes.ControlNode
		if ctl, err = l.Control(id); err == nil {
			node = ctl.Node()
		}
	default:
		err = fmt.Errorf("%w: %s", ErrLayerNotFound, layer)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s.%s.%s: %w", ErrNodeNotFound, c.Token(), layer, id, err)
	}
	return node, nil
}

// ResolveExpression turns a driver expression such as "@{self.inputLayer.upr}"
// or "@{arm:L.rigLayer.controlPanel.ikfk}" into a plug. The plug attribute is
// empty for node references.
func (c *Component) ResolveExpression(expr string) (scene.Plug, error) {
	e, err := exprutils.Parse(expr)
	if err != nil {
		return scene.Plug{}, err
	}
	comp, err := c.driverComponent(e.Component)
	if err != nil {
		return scene.Plug{}, err
	}
	node, err := comp.LayerNode(definition.LayerType(e.Layer), e.Node)
	if err != nil {
		return scene.Plug{}, err
	}
	return scene.Plug{Node: node, Attr: e.Attr}, nil
}

// rootInput returns the input the parent binding lands on.
func (c *Component) rootInput() string {
	if c.def.InputLayer.Node(definition.RootID) == nil {
		if roots := c.def.InputLayer.Roots(); len(roots) > 0 {
			return roots[0].ID
		}
	}
	return definition.RootID
}

// boundOutputID returns the id of the parent output the root input is bound to.
func (c *Component) boundOutputID(parent *Component) string {
	if inputs, err := c.InputLayer(); err == nil {
		if in, err := inputs.Input(c.rootInput()); err == nil {
			if scene.MustString(c.graph, in.Node(), AttrSourceComponent) == parent.Token() {
				return scene.MustString(c.graph, in.Node(), AttrSourceID)
			}
		}
	}
	for _, conn := range c.def.Connections {
		for _, d := range conn.Drivers {
			if d.Component == parent.Token() {
				return d.ID
			}
		}
	}
	return ""
}

// RemapConnections rewrites component tokens in the parent link, the
// connections and the space switch driver expressions. tokens maps old
// "name:side" tokens to new ones.
func (c *Component) RemapConnections(tokens map[string]string) error {
	if to, ok := tokens[c.def.Parent]; ok {
		c.def.Parent = to
	}
	for _, conn := range c.def.Connections {
		for i := range conn.Drivers {
			if to, ok := tokens[conn.Drivers[i].Component]; ok {
				conn.Drivers[i].Component = to
			}
		}
	}
	for _, sw := range c.def.SpaceSwitching {
		for _, d := range sw.Drivers {
			e, err := exprutils.Parse(d.Driver)
			if err != nil {
				continue
			}
			if to, ok := tokens[e.Component]; ok {
				d.Driver = exprutils.Rebind(d.Driver, e.Component, to)
			}
		}
	}
	if !c.Exists() {
		return nil
	}
	return c.SaveDefinition()
}
