package layers

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

// Extra node tags.
const (
	TagLiveLink = "liveLink"
)

// GuideLayer owns the guides of a component.
type GuideLayer struct {
	*Layer
}

// Guide returns the guide with hive id.
func (l *GuideLayer) Guide(id string) (*hivenodes.Guide, error) {
	n := l.find(hivenodes.KindGuide, id)
	if n == "" {
		return nil, fmt.Errorf("%w: %s", ErrGuideNotFound, id)
	}
	return hivenodes.AsGuide(l.graph, n)
}

// RootGuide returns the guide with the root id.
func (l *GuideLayer) RootGuide() (*hivenodes.Guide, error) {
	return l.Guide(definition.RootID)
}

// Guides lists every guide in hierarchy order.
func (l *GuideLayer) Guides() []*hivenodes.Guide {
	var out []*hivenodes.Guide
	for _, n := range l.nodes(hivenodes.KindGuide) {
		if gd, err := hivenodes.AsGuide(l.graph, n); err == nil {
			out = append(out, gd)
		}
	}
	return out
}

// GuideIDs lists the ids of every guide.
func (l *GuideLayer) GuideIDs() []string {
	var out []string
	for _, gd := range l.Guides() {
		out = append(out, gd.ID())
	}
	return out
}

// CreateGuide creates a guide below its declared parent guide, or below the
// layer root when the parent does not exist yet.
func (l *GuideLayer) CreateGuide(name string, def *definition.NodeDefinition) (*hivenodes.Guide, error) {
	if def.ID == "" {
		return nil, definition.ErrMissingID
	}
	return hivenodes.CreateGuide(l.graph, name, l.parentFor(hivenodes.KindGuide, def.Parent), def)
}

// DeleteGuides deletes the guides with the given ids together with every
// annotation that points at them. Child guides move up to the parent guide of
// the deleted one, or to the layer root.
func (l *GuideLayer) DeleteGuides(ids ...string) error {
	root := l.RootTransform()
	var errs []error
	for _, id := range ids {
		gd, err := l.Guide(id)
		if err != nil {
			continue
		}
		target := root
		if p := gd.GuideParent(); p != nil {
			target = p.Node()
		}
		for _, child := range gd.ChildGuides(false) {
			errs = append(errs, child.SetGuideParent(target))
		}
		for _, a := range hivenodes.AnnotationsTo(l.graph, root, gd.Node()) {
			errs = append(errs, a.Delete())
		}
		for _, a := range hivenodes.AnnotationsFrom(l.graph, root, gd.Node()) {
			errs = append(errs, a.Delete())
		}
		errs = append(errs, gd.Delete())
	}
	return errors.Join(errs...)
}

// SerializeFromScene reads the live guides back into a layer document.
func (l *GuideLayer) SerializeFromScene() *definition.GuideLayerDefinition {
	out := &definition.GuideLayerDefinition{}
	for _, gd := range l.Guides() {
		out.DAG = append(out.DAG, gd.Serialize())
	}
	l.serializeBase(&out.LayerDefinition)
	return out
}

// IsLiveLinked reports whether the live link wiring exists.
func (l *GuideLayer) IsLiveLinked() bool {
	return len(l.ExtraNodes(TagLiveLink)) > 0
}

// SetLiveLink makes guides drive the joints with the same id so deformation
// previews guide edits. Each joint gets
//
//	offsetParent = pickScale(guide.worldMatrix) * pick(guide.worldMatrix) * inverse(pick(parentGuide.worldMatrix))
//
// where pick keeps translate and rotate, with the joint local reset, the root joint using offsetNode's world inverse
// instead. Activation replaces stale wiring. Deactivation bakes the joints at
// their current world matrix.
func (l *GuideLayer) SetLiveLink(offsetNode scene.NodeID, joints []*hivenodes.Joint, state bool) error {
	if err := l.unlink(joints); err != nil {
		return err
	}
	if !state {
		return nil
	}

	picks := make(map[string]scene.NodeID)
	pick := func(gd *hivenodes.Guide) (scene.NodeID, error) {
		if p, ok := picks[gd.ID()]; ok {
			return p, nil
		}
		p, err := scene.NewPickMatrix(l.graph, gd.Name()+"_liveLink_pick", true, true, false)
		if err != nil {
			return "", err
		}
		if err := l.graph.Connect(scene.Plug{Node: gd.Node(), Attr: scene.AttrNameWorldMatrix}, scene.Plug{Node: p, Attr: scene.AttrNameInputMatrix}); err != nil {
			return "", err
		}
		picks[gd.ID()] = p
		return p, l.AddExtraNodes(TagLiveLink, p)
	}

	var errs []error
	for _, j := range joints {
		gd, err := l.Guide(j.ID())
		if err != nil {
			continue
		}
		if err := l.linkJoint(j, gd, offsetNode, pick); err != nil {
			errs = append(errs, fmt.Errorf("live link %s: %w", j.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (l *GuideLayer) linkJoint(j *hivenodes.Joint, gd *hivenodes.Guide, offsetNode scene.NodeID, pick func(*hivenodes.Guide) (scene.NodeID, error)) error {
	g := l.graph
	child, err := pick(gd)
	if err != nil {
		return err
	}
	mult, err := scene.NewMultMatrix(g, j.Name()+"_liveLink_mult")
	if err != nil {
		return err
	}
	if err := l.AddExtraNodes(TagLiveLink, mult); err != nil {
		return err
	}
	scale, err := scene.NewPickMatrix(g, gd.Name()+"_liveLink_scale", false, false, true)
	if err != nil {
		return err
	}
	if err := l.AddExtraNodes(TagLiveLink, scale); err != nil {
		return err
	}
	if err := g.Connect(scene.Plug{Node: gd.Node(), Attr: scene.AttrNameWorldMatrix}, scene.Plug{Node: scale, Attr: scene.AttrNameInputMatrix}); err != nil {
		return err
	}
	if err := g.Connect(scene.Plug{Node: scale, Attr: scene.AttrNameOutputMatrix}, scene.Plug{Node: mult, Attr: scene.ElementAttr(scene.AttrNameMatrixIn, 0)}); err != nil {
		return err
	}
	if err := g.Connect(scene.Plug{Node: child, Attr: scene.AttrNameOutputMatrix}, scene.Plug{Node: mult, Attr: scene.ElementAttr(scene.AttrNameMatrixIn, 1)}); err != nil {
		return err
	}

	var space scene.Plug
	if parentJoint := j.JointParent(); parentJoint != nil {
		if parentGuide, err := l.Guide(parentJoint.ID()); err == nil {
			parentPick, err := pick(parentGuide)
			if err != nil {
				return err
			}
			inv, err := scene.NewInverseMatrix(g, j.Name()+"_liveLink_inv")
			if err != nil {
				return err
			}
			if err := l.AddExtraNodes(TagLiveLink, inv); err != nil {
				return err
			}
			if err := g.Connect(scene.Plug{Node: parentPick, Attr: scene.AttrNameOutputMatrix}, scene.Plug{Node: inv, Attr: scene.AttrNameInputMatrix}); err != nil {
				return err
			}
			space = scene.Plug{Node: inv, Attr: scene.AttrNameOutputMatrix}
		}
	}
	if space.IsZero() {
		parent := offsetNode
		if parent == "" {
			parent = j.Parent()
		}
		if parent != "" {
			space = scene.Plug{Node: parent, Attr: scene.AttrNameWorldInverseMatrix}
		}
	}
	if !space.IsZero() {
		if err := g.Connect(space, scene.Plug{Node: mult, Attr: scene.ElementAttr(scene.AttrNameMatrixIn, 2)}); err != nil {
			return err
		}
	}

	if err := j.SetLocalMatrix(mathx.Identity()); err != nil {
		return err
	}
	return g.Connect(scene.Plug{Node: mult, Attr: scene.AttrNameMatrixSum}, scene.Plug{Node: j.Node(), Attr: scene.AttrNameOffsetParentMatrix})
}

// unlink bakes linked joints and removes the live link utilities.
func (l *GuideLayer) unlink(joints []*hivenodes.Joint) error {
	g := l.graph
	var errs []error
	for _, j := range joints {
		dst := scene.Plug{Node: j.Node(), Attr: scene.AttrNameOffsetParentMatrix}
		src, ok := g.Source(dst)
		if !ok {
			continue
		}
		world := j.WorldMatrix()
		errs = append(errs,
			g.Disconnect(src, dst),
			g.Set(j.Node(), scene.AttrNameOffsetParentMatrix, mathx.Identity()),
			j.SetWorldMatrix(world),
		)
	}
	errs = append(errs, l.DeleteExtraNodes(TagLiveLink))
	return errors.Join(errs...)
}
