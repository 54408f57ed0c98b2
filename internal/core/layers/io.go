package layers

import (
	"fmt"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
)

// InputLayer owns the nodes other components drive.
type InputLayer struct {
	*Layer
}

func (l *InputLayer) Input(id string) (*hivenodes.InputNode, error) {
	n := l.find(hivenodes.KindInput, id)
	if n == "" {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, id)
	}
	return hivenodes.AsInput(l.graph, n)
}

// Inputs lists every input in hierarchy order.
func (l *InputLayer) Inputs() []*hivenodes.InputNode {
	var out []*hivenodes.InputNode
	for _, n := range l.nodes(hivenodes.KindInput) {
		if in, err := hivenodes.AsInput(l.graph, n); err == nil {
			out = append(out, in)
		}
	}
	return out
}

func (l *InputLayer) CreateInput(name string, def *definition.NodeDefinition) (*hivenodes.InputNode, error) {
	if def.ID == "" {
		return nil, definition.ErrMissingID
	}
	return hivenodes.CreateInput(l.graph, name, l.parentFor(hivenodes.KindInput, def.Parent), def)
}

func (l *InputLayer) SerializeFromScene() *definition.InputLayerDefinition {
	out := &definition.InputLayerDefinition{}
	for _, in := range l.Inputs() {
		out.DAG = append(out.DAG, in.Serialize())
	}
	l.serializeBase(&out.LayerDefinition)
	return out
}

// OutputLayer owns the nodes a component exposes to its children.
type OutputLayer struct {
	*Layer
}

func (l *OutputLayer) Output(id string) (*hivenodes.OutputNode, error) {
	n := l.find(hivenodes.KindOutput, id)
	if n == "" {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotFound, id)
	}
	return hivenodes.AsOutput(l.graph, n)
}

// Outputs lists every output in hierarchy order.
func (l *OutputLayer) Outputs() []*hivenodes.OutputNode {
	var out []*hivenodes.OutputNode
	for _, n := range l.nodes(hivenodes.KindOutput) {
		if o, err := hivenodes.AsOutput(l.graph, n); err == nil {
			out = append(out, o)
		}
	}
	return out
}

func (l *OutputLayer) CreateOutput(name string, def *definition.NodeDefinition) (*hivenodes.OutputNode, error) {
	if def.ID == "" {
		return nil, definition.ErrMissingID
	}
	return hivenodes.CreateOutput(l.graph, name, l.parentFor(hivenodes.KindOutput, def.Parent), def)
}

func (l *OutputLayer) SerializeFromScene() *definition.OutputLayerDefinition {
	out := &definition.OutputLayerDefinition{}
	for _, o := range l.Outputs() {
		out.DAG = append(out.DAG, o.Serialize())
	}
	l.serializeBase(&out.LayerDefinition)
	return out
}
