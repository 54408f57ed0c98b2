package scene

import (
	"errors"
	"fmt"
)

type opKind uint8

const (
	opRename opKind = iota
	opReparent
	opSetAttribute
)

type op struct {
	kind   opKind
	node   NodeID
	name   string
	parent NodeID
	value  any
}

// Modifier queues scene edits and applies them together. Failed operations do not
// stop the batch; their errors are joined and returned from DoIt.
type Modifier struct {
	graph Graph
	ops   []op
}

func NewModifier(g Graph) *Modifier {
	return &Modifier{graph: g}
}

func (m *Modifier) Rename(id NodeID, name string) *Modifier {
	m.ops = append(m.ops, op{kind: opRename, node: id, name: name})
	return m
}

// Reparent keeps the node's world matrix.
func (m *Modifier) Reparent(id, parent NodeID) *Modifier {
	m.ops = append(m.ops, op{kind: opReparent, node: id, parent: parent})
	return m
}

func (m *Modifier) SetAttribute(id NodeID, attr string, value any) *Modifier {
	m.ops = append(m.ops, op{kind: opSetAttribute, node: id, name: attr, value: value})
	return m
}

// Len returns the number of queued operations.
func (m *Modifier) Len() int { return len(m.ops) }

// DoIt applies and clears the queue.
func (m *Modifier) DoIt() error {
	var errs []error
	for _, o := range m.ops {
		var err error
		switch o.kind {
		case opRename:
			err = m.graph.Rename(o.node, o.name)
		case opReparent:
			err = m.graph.SetParent(o.node, o.parent, true)
		case opSetAttribute:
			err = m.graph.Set(o.node, o.name, o.value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.node, err))
		}
	}
	m.ops = m.ops[:0]
	return errors.Join(errs...)
}
