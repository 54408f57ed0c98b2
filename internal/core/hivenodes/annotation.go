package hivenodes

import (
	"github.com/zeusync/hive/internal/core/scene"
)

const (
	AttrAnnotationStart = "annotationStart"
	AttrAnnotationEnd   = "annotationEnd"
)

// Annotation is a guide helper line drawn from one node to another.
type Annotation struct {
	graph scene.Graph
	node  scene.NodeID
}

// CreateAnnotation creates an annotation from start to end under parent.
func CreateAnnotation(g scene.Graph, name string, parent, start, end scene.NodeID) (*Annotation, error) {
	id, err := createTransform(g, scene.TypeCurve, name, parent, KindAnnotation, "")
	if err != nil {
		return nil, err
	}
	a := &Annotation{graph: g, node: id}
	if err := SetMessage(g, id, AttrAnnotationStart, start); err != nil {
		return nil, err
	}
	if err := SetMessage(g, id, AttrAnnotationEnd, end); err != nil {
		return nil, err
	}
	if err := g.SetSelectable(id, false); err != nil {
		return nil, err
	}
	return a, nil
}

func AsAnnotation(g scene.Graph, node scene.NodeID) *Annotation {
	if Kind(g, node) != KindAnnotation {
		return nil
	}
	return &Annotation{graph: g, node: node}
}

func (a *Annotation) Node() scene.NodeID { return a.node }

func (a *Annotation) Start() scene.NodeID { return MessageTarget(a.graph, a.node, AttrAnnotationStart) }

func (a *Annotation) End() scene.NodeID { return MessageTarget(a.graph, a.node, AttrAnnotationEnd) }

// Delete removes the annotation.
func (a *Annotation) Delete() error {
	if !a.graph.Exists(a.node) {
		return nil
	}
	Unlock(a.graph, a.node)
	return a.graph.DeleteNodes(a.node)
}

// Annotations lists the annotations stored below root.
func Annotations(g scene.Graph, root scene.NodeID) []*Annotation {
	var out []*Annotation
	for _, n := range kindChildren(g, root, KindAnnotation, true) {
		out = append(out, &Annotation{graph: g, node: n})
	}
	return out
}

// AnnotationsTo lists the annotations below root that end at node.
func AnnotationsTo(g scene.Graph, root, node scene.NodeID) []*Annotation {
	var out []*Annotation
	for _, a := range Annotations(g, root) {
		if a.End() == node {
			out = append(out, a)
		}
	}
	return out
}

// AnnotationsFrom lists the annotations below root that start at node.
func AnnotationsFrom(g scene.Graph, root, node scene.NodeID) []*Annotation {
	var out []*Annotation
	for _, a := range Annotations(g, root) {
		if a.Start() == node {
			out = append(out, a)
		}
	}
	return out
}
