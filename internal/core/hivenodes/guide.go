package hivenodes

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

// Guide attributes.
const (
	AttrShape         = "shape"
	AttrColor         = "color"
	AttrPivotShape    = "pivotShape"
	AttrPivotColor    = "pivotColor"
	AttrAutoAlign     = "autoAlign"
	AttrAimVector     = "autoAlignAimVector"
	AttrUpVector      = "autoAlignUpVector"
	AttrShapeNode     = "shapeNode"
	AttrSnapLocator   = "snapLocator"
	AttrControllerTag = "controllerTag"
)

var guideReserved = []string{
	AttrShape, AttrColor, AttrPivotShape, AttrPivotColor, AttrAutoAlign, AttrAimVector,
	AttrUpVector, AttrShapeNode, AttrSnapLocator, AttrControllerTag, AttrInternal,
}

// Default auto-align axes.
var (
	DefaultAimVector = mathx.XAxis
	DefaultUpVector  = mathx.YAxis
)

// Guide is a placement proxy. The pivot transform is the guide itself. It sits
// below an srt buffer and owns an optional shape transform and a non-selectable
// snap locator.
type Guide struct {
	DagNode
}

// AsGuide wraps node, failing when it is not a guide.
func AsGuide(g scene.Graph, node scene.NodeID) (*Guide, error) {
	if !IsGuide(g, node) {
		return nil, fmt.Errorf("%w: %s is not a guide", ErrWrongKind, g.Name(node))
	}
	return &Guide{DagNode: NewDagNode(g, node)}, nil
}

// CreateGuide builds a guide under parent from def.
func CreateGuide(g scene.Graph, name string, parent scene.NodeID, def *definition.NodeDefinition) (*Guide, error) {
	srt, err := createTransform(g, scene.TypeTransform, name+"_srt", parent, KindSrt, "")
	if err != nil {
		return nil, err
	}
	pivot, err := createTransform(g, scene.TypeTransform, name, srt, KindGuide, def.ID)
	if err != nil {
		return nil, err
	}
	gd := &Guide{DagNode: NewDagNode(g, pivot)}

	locator, err := createTransform(g, scene.TypeLocator, name+"_snap", pivot, KindSnapLocator, "")
	if err != nil {
		return nil, err
	}
	if err := g.SetSelectable(locator, false); err != nil {
		return nil, err
	}
	if err := SetMessage(g, pivot, AttrSnapLocator, locator); err != nil {
		return nil, err
	}

	defaults := []scene.AttributeSpec{
		{Name: AttrAutoAlign, Type: scene.AttrBool, Value: true},
		{Name: AttrAimVector, Type: scene.AttrVector3, Value: DefaultAimVector},
		{Name: AttrUpVector, Type: scene.AttrVector3, Value: DefaultUpVector},
	}
	for _, s := range defaults {
		if err := g.AddAttribute(pivot, s); err != nil {
			return nil, err
		}
	}
	if err := gd.Update(def); err != nil {
		return nil, err
	}
	return gd, nil
}

// SRT returns the buffer transform above the pivot.
func (gd *Guide) SRT() scene.NodeID {
	if p := gd.Parent(); p != "" && Kind(gd.graph, p) == KindSrt {
		return p
	}
	return ""
}

// top is the highest node owned by the guide.
func (gd *Guide) top() scene.NodeID {
	if srt := gd.SRT(); srt != "" {
		return srt
	}
	return gd.node
}

func (gd *Guide) ShapeNode() scene.NodeID { return MessageTarget(gd.graph, gd.node, AttrShapeNode) }

func (gd *Guide) SnapLocator() scene.NodeID { return MessageTarget(gd.graph, gd.node, AttrSnapLocator) }

// GuideParent returns the nearest ancestor guide, or nil.
func (gd *Guide) GuideParent() *Guide {
	p := kindParent(gd.graph, gd.node, KindGuide)
	if p == "" {
		return nil
	}
	return &Guide{DagNode: NewDagNode(gd.graph, p)}
}

// ChildGuides returns the nearest guides below this one, or every descendant
// guide when recursive.
func (gd *Guide) ChildGuides(recursive bool) []*Guide {
	var out []*Guide
	for _, n := range kindChildren(gd.graph, gd.node, KindGuide, recursive) {
		out = append(out, &Guide{DagNode: NewDagNode(gd.graph, n)})
	}
	return out
}

// SetGuideParent moves the guide below parent keeping its world matrix.
func (gd *Guide) SetGuideParent(parent scene.NodeID) error {
	top := gd.top()
	if gd.graph.Parent(top) == parent {
		return nil
	}
	defer Unlock(gd.graph, top, gd.node)()
	return gd.graph.SetParent(top, parent, true)
}

// Rename renames the pivot and the nodes derived from it.
func (gd *Guide) Rename(name string) error {
	if gd.Name() == name {
		return nil
	}
	var errs []error
	rename := func(id scene.NodeID, n string) {
		if id == "" {
			return
		}
		defer Unlock(gd.graph, id)()
		errs = append(errs, gd.graph.Rename(id, n))
	}
	rename(gd.SRT(), name+"_srt")
	rename(gd.ShapeNode(), name+"_shape")
	rename(gd.SnapLocator(), name+"_snap")
	rename(gd.node, name)
	return errors.Join(errs...)
}

func (gd *Guide) AutoAlign() bool { return scene.MustBool(gd.graph, gd.node, AttrAutoAlign) }

func (gd *Guide) AimVector() mathx.Vector3 {
	return vectorAttr(gd.graph, gd.node, AttrAimVector, DefaultAimVector)
}

func (gd *Guide) UpVector() mathx.Vector3 {
	return vectorAttr(gd.graph, gd.node, AttrUpVector, DefaultUpVector)
}

// Update writes def onto the guide. Fields def leaves unset keep their value.
func (gd *Guide) Update(def *definition.NodeDefinition) error {
	g := gd.graph
	var errs []error
	if def.Shape != "" {
		errs = append(errs, setString(g, gd.node, AttrShape, def.Shape))
	}
	if def.PivotShape != "" {
		errs = append(errs, setString(g, gd.node, AttrPivotShape, def.PivotShape))
	}
	errs = append(errs,
		setVector(g, gd.node, AttrColor, def.Color),
		setVector(g, gd.node, AttrPivotColor, def.PivotColor),
		setVector(g, gd.node, AttrAimVector, def.AimVector),
		setVector(g, gd.node, AttrUpVector, def.UpVector),
		gd.setInternal(def),
	)
	if def.AutoAlign != nil {
		errs = append(errs, g.Set(gd.node, AttrAutoAlign, *def.AutoAlign))
	}
	errs = append(errs, ApplyAttributes(g, gd.node, def.Attributes))

	if def.Shape != "" || def.ShapeTransform != nil {
		errs = append(errs, gd.updateShapeNode(def))
	}
	errs = append(errs, gd.applyTransform(def))
	return errors.Join(errs...)
}

func (gd *Guide) updateShapeNode(def *definition.NodeDefinition) error {
	shape := gd.ShapeNode()
	if shape == "" {
		var err error
		shape, err = createTransform(gd.graph, scene.TypeCurve, gd.Name()+"_shape", gd.node, KindGuideShape, "")
		if err != nil {
			return err
		}
		if err := SetMessage(gd.graph, gd.node, AttrShapeNode, shape); err != nil {
			return err
		}
	}
	st := def.ShapeTransform
	if st == nil {
		return nil
	}
	t, r, s := gd.graph.LocalMatrix(shape).Decompose()
	local := mathx.Compose(
		mathx.Vec3FromSlice(st.Translate, t),
		mathx.Vec3FromSlice(st.Rotate, r),
		mathx.Vec3FromSlice(st.Scale, s),
	)
	return gd.graph.SetLocalMatrix(shape, local)
}

// Serialize reads the guide back into a node definition.
func (gd *Guide) Serialize() *definition.NodeDefinition {
	g := gd.graph
	def := &definition.NodeDefinition{
		ID:         gd.ID(),
		Name:       gd.Name(),
		Type:       definition.NodeGuide,
		Shape:      scene.MustString(g, gd.node, AttrShape),
		Color:      vectorSlice(g, gd.node, AttrColor),
		PivotShape: scene.MustString(g, gd.node, AttrPivotShape),
		PivotColor: vectorSlice(g, gd.node, AttrPivotColor),
		AutoAlign:  definition.BoolPtr(gd.AutoAlign()),
		AimVector:  gd.AimVector().Slice(),
		UpVector:   gd.UpVector().Slice(),
		Internal:   gd.Internal(),
		Attributes: SerializeAttributes(g, gd.node, guideReserved...),
	}
	if p := gd.GuideParent(); p != nil {
		def.Parent = p.ID()
	}
	gd.serializeTransform(def)
	if shape := gd.ShapeNode(); shape != "" {
		t, r, s := g.LocalMatrix(shape).Decompose()
		def.ShapeTransform = &definition.TransformDefinition{Translate: round(t), Rotate: round(r), Scale: round(s)}
	}
	return def
}

// ControllerTag returns the guide's controller tag, or nil.
func (gd *Guide) ControllerTag() *ControllerTag {
	tag := MessageTarget(gd.graph, gd.node, AttrControllerTag)
	if tag == "" {
		return nil
	}
	return &ControllerTag{graph: gd.graph, node: tag}
}

// Delete removes the guide with its srt, shape, snap locator and controller tag.
// Child guides are deleted with it.
func (gd *Guide) Delete() error {
	if !gd.Exists() {
		return nil
	}
	if tag := gd.ControllerTag(); tag != nil {
		if err := tag.Delete(); err != nil {
			return err
		}
	}
	top := gd.top()
	UnlockTree(gd.graph, top)
	return gd.graph.DeleteNodes(top)
}

// AimToGuide rotates the guide so its aim vector points at target and its up
// vector stays as close as possible to its current world direction. Child
// guides keep their world matrix and the shape transform keeps its world
// position.
func (gd *Guide) AimToGuide(target *Guide) error {
	world := gd.WorldMatrix()
	t, r, s := world.Decompose()
	dir := target.Translation().Sub(t)
	if dir.IsZero() {
		return nil
	}
	up := gd.UpVector()
	upWorld := up.MulDirection(mathx.RotationMatrix(r))
	rot := mathx.LookAt(dir, upWorld, gd.AimVector(), up)
	return gd.reorient(mathx.Compose(t, rot.EulerXYZ(), s))
}

// AimToChild aims at the first child guide. A leaf guide is zeroed against its
// parent guide instead.
func (gd *Guide) AimToChild() error {
	children := gd.ChildGuides(false)
	if len(children) > 0 {
		return gd.AimToGuide(children[0])
	}
	t, _, s := gd.WorldMatrix().Decompose()
	var r mathx.Vector3
	if p := gd.GuideParent(); p != nil {
		_, r, _ = p.WorldMatrix().Decompose()
	}
	return gd.reorient(mathx.Compose(t, r, s))
}

func (gd *Guide) reorient(world mathx.Matrix) error {
	shape := gd.ShapeNode()
	var shapeWorld mathx.Matrix
	if shape != "" {
		shapeWorld = gd.graph.WorldMatrix(shape)
	}
	if err := SetGuidesWorldMatrix(gd.graph, []*Guide{gd}, []mathx.Matrix{world}, false); err != nil {
		return err
	}
	if shape == "" {
		return nil
	}
	local := shapeWorld.Mul(gd.WorldMatrix().MustInverse())
	return gd.graph.SetLocalMatrix(shape, local)
}
