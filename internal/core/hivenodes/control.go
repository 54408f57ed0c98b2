package hivenodes

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

const (
	KindControlSrt = "controlSrt"
	// AttrSrtName is the buffer label stored on control srt nodes.
	AttrSrtName = "srtName"
)

var controlReserved = []string{AttrShape, AttrColor, AttrInternal, AttrControllerTag}

// ControlNode is an animator facing control curve. Buffer transforms ("srts")
// can be stacked directly above it.
type ControlNode struct {
	DagNode
}

func AsControl(g scene.Graph, node scene.NodeID) (*ControlNode, error) {
	if !IsControl(g, node) {
		return nil, fmt.Errorf("%w: %s is not a control", ErrWrongKind, g.Name(node))
	}
	return &ControlNode{DagNode: NewDagNode(g, node)}, nil
}

// CreateControl builds a control under parent from def.
func CreateControl(g scene.Graph, name string, parent scene.NodeID, def *definition.NodeDefinition) (*ControlNode, error) {
	id, err := createTransform(g, scene.TypeCurve, name, parent, KindControl, def.ID)
	if err != nil {
		return nil, err
	}
	c := &ControlNode{DagNode: NewDagNode(g, id)}
	if err := c.Update(def); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ControlNode) Update(def *definition.NodeDefinition) error {
	var errs []error
	if def.Shape != "" {
		errs = append(errs, setString(c.graph, c.node, AttrShape, def.Shape))
	}
	errs = append(errs,
		setVector(c.graph, c.node, AttrColor, def.Color),
		c.setInternal(def),
		ApplyAttributes(c.graph, c.node, def.Attributes),
		c.applyTransform(def),
	)
	return errors.Join(errs...)
}

func (c *ControlNode) Shape() string { return scene.MustString(c.graph, c.node, AttrShape) }

func (c *ControlNode) Color() mathx.Vector3 {
	return vectorAttr(c.graph, c.node, AttrColor, mathx.Vector3{})
}

// SRTs returns the buffers directly above the control, outermost first.
func (c *ControlNode) SRTs() []scene.NodeID {
	var out []scene.NodeID
	for p := c.Parent(); p != "" && Kind(c.graph, p) == KindControlSrt; p = c.graph.Parent(p) {
		out = append(out, p)
	}
	slices.Reverse(out)
	return out
}

// AddSRT inserts a buffer transform between the control and its current parent.
// The buffer takes the control's world matrix and the control is zeroed below it.
func (c *ControlNode) AddSRT(label string) (scene.NodeID, error) {
	g := c.graph
	parent := c.Parent()
	srt, err := createTransform(g, scene.TypeTransform, c.Name()+"_"+label+"_srt", parent, KindControlSrt, "")
	if err != nil {
		return "", err
	}
	if err := g.AddAttribute(srt, scene.AttributeSpec{Name: AttrSrtName, Type: scene.AttrString, Value: label}); err != nil {
		return "", err
	}
	if err := g.SetWorldMatrix(srt, c.WorldMatrix()); err != nil {
		return "", err
	}
	defer Unlock(g, c.node)()
	if err := g.SetParent(c.node, srt, true); err != nil {
		return "", err
	}
	return srt, nil
}

// SRT returns the buffer with the given label, or "".
func (c *ControlNode) SRT(label string) scene.NodeID {
	for _, s := range c.SRTs() {
		if scene.MustString(c.graph, s, AttrSrtName) == label {
			return s
		}
	}
	return ""
}

// ControlParent returns the nearest ancestor control, or nil.
func (c *ControlNode) ControlParent() *ControlNode {
	p := kindParent(c.graph, c.node, KindControl)
	if p == "" {
		return nil
	}
	return &ControlNode{DagNode: NewDagNode(c.graph, p)}
}

func (c *ControlNode) ChildControls(recursive bool) []*ControlNode {
	var out []*ControlNode
	for _, n := range kindChildren(c.graph, c.node, KindControl, recursive) {
		out = append(out, &ControlNode{DagNode: NewDagNode(c.graph, n)})
	}
	return out
}

// ControllerTag returns the control's controller tag, or nil.
func (c *ControlNode) ControllerTag() *ControllerTag {
	tag := MessageTarget(c.graph, c.node, AttrControllerTag)
	if tag == "" {
		return nil
	}
	return &ControllerTag{graph: c.graph, node: tag}
}

// Delete removes the control, its buffers and its controller tag.
func (c *ControlNode) Delete() error {
	if !c.Exists() {
		return nil
	}
	if tag := c.ControllerTag(); tag != nil {
		if err := tag.Delete(); err != nil {
			return err
		}
	}
	top := c.node
	if srts := c.SRTs(); len(srts) > 0 {
		top = srts[0]
	}
	UnlockTree(c.graph, top)
	return c.graph.DeleteNodes(top)
}

func (c *ControlNode) Serialize() *definition.NodeDefinition {
	def := &definition.NodeDefinition{
		ID:         c.ID(),
		Name:       c.Name(),
		Type:       definition.NodeControl,
		Shape:      c.Shape(),
		Color:      vectorSlice(c.graph, c.node, AttrColor),
		Internal:   c.Internal(),
		Attributes: SerializeAttributes(c.graph, c.node, controlReserved...),
	}
	if p := c.ControlParent(); p != nil {
		def.Parent = p.ID()
	}
	c.serializeTransform(def)
	return def
}
