package scene

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zeusync/hive/pkg/mathx"
)

// CreateConstraint creates a constraint node under the driven node. With
// MaintainOffset each driver stores the offset that keeps the driven world matrix
// where it was.
func (m *Memory) CreateConstraint(spec ConstraintSpec) (NodeID, error) {
	driven, err := m.lookup(spec.Driven)
	if err != nil {
		return "", err
	}
	if !driven.typ.IsDag() {
		return "", fmt.Errorf("%w: %s", ErrNotDagNode, driven.name)
	}
	if len(spec.Drivers) == 0 {
		return "", ErrNoDrivers
	}
	for _, d := range spec.Drivers {
		dn, err := m.lookup(d.Node)
		if err != nil {
			return "", err
		}
		if !dn.typ.IsDag() {
			return "", fmt.Errorf("%w: driver %s", ErrNotDagNode, dn.name)
		}
	}
	if !spec.SwitchAttr.IsZero() && !m.HasAttribute(spec.SwitchAttr.Node, spec.SwitchAttr.Attr) {
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, spec.SwitchAttr)
	}

	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s_%sConstraint", driven.name, spec.Type)
	}

	offsets := make([]mathx.Matrix, len(spec.Drivers))
	drivenWorld := m.WorldMatrix(spec.Driven)
	for i, d := range spec.Drivers {
		offsets[i] = mathx.Identity()
		if spec.MaintainOffset {
			offsets[i] = drivenWorld.Mul(m.WorldMatrix(d.Node).MustInverse())
		}
	}

	id, err := m.CreateNode(TypeConstraint, name, spec.Driven)
	if err != nil {
		return "", err
	}
	c := &constraintData{Constraint: Constraint{
		ID:         id,
		Type:       spec.Type,
		Name:       name,
		Driven:     spec.Driven,
		Drivers:    slices.Clone(spec.Drivers),
		Offsets:    offsets,
		SwitchAttr: spec.SwitchAttr,
		Metadata:   maps.Clone(spec.Metadata),
	}}
	if spec.Trace {
		c.Utilities = []NodeID{id}
	}
	if spec.SwitchAttr.IsZero() && spec.DefaultDriver > 0 && spec.DefaultDriver < len(spec.Drivers) {
		c.Metadata = ensure(c.Metadata)
		c.Metadata["defaultDriver"] = fmt.Sprint(spec.DefaultDriver)
	}
	m.constraints[id] = c
	m.constraintOrder = append(m.constraintOrder, id)
	return id, nil
}

func ensure(md map[string]string) map[string]string {
	if md == nil {
		return make(map[string]string)
	}
	return md
}

func (m *Memory) Constraint(id NodeID) (Constraint, error) {
	c, ok := m.constraints[id]
	if !ok {
		return Constraint{}, fmt.Errorf("%w: %q", ErrConstraintNotFound, id)
	}
	return c.snapshot(), nil
}

// Constraints lists the constraints acting on driven, oldest first.
func (m *Memory) Constraints(driven NodeID) []Constraint {
	var out []Constraint
	for _, cid := range m.constraintOrder {
		if c := m.constraints[cid]; c.Driven == driven {
			out = append(out, c.snapshot())
		}
	}
	return out
}

// DeleteConstraint removes the constraint and bakes the driven node's current
// world matrix into its local transform.
func (m *Memory) DeleteConstraint(id NodeID) error {
	c, ok := m.constraints[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrConstraintNotFound, id)
	}
	world := m.WorldMatrix(c.Driven)
	m.dropConstraint(id)
	if n, ok := m.nodes[id]; ok {
		m.detach(n)
		delete(m.nodes, id)
		m.order = slices.DeleteFunc(m.order, func(nid NodeID) bool { return nid == id })
	}
	if driven, ok := m.nodes[c.Driven]; ok {
		m.setWorld(driven, world)
	}
	return nil
}

func (m *Memory) dropConstraint(id NodeID) {
	delete(m.constraints, id)
	m.constraintOrder = slices.DeleteFunc(m.constraintOrder, func(c NodeID) bool { return c == id })
}

func (c *constraintData) snapshot() Constraint {
	out := c.Constraint
	out.Drivers = slices.Clone(c.Drivers)
	out.Offsets = slices.Clone(c.Offsets)
	out.Utilities = slices.Clone(c.Utilities)
	out.Metadata = maps.Clone(c.Metadata)
	return out
}

func (m *Memory) activeDriver(c *constraintData) int {
	idx := 0
	if !c.SwitchAttr.IsZero() {
		if v, err := m.Get(c.SwitchAttr.Node, c.SwitchAttr.Attr); err == nil {
			switch i := v.(type) {
			case int:
				idx = i
			case float64:
				idx = int(i)
			}
		}
	} else if d, ok := c.Metadata["defaultDriver"]; ok {
		_, _ = fmt.Sscan(d, &idx)
	}
	return max(0, min(idx, len(c.Drivers)-1))
}

func (m *Memory) applyConstraint(c *constraintData, base mathx.Matrix) mathx.Matrix {
	idx := m.activeDriver(c)
	target := c.Offsets[idx].Mul(m.WorldMatrix(c.Drivers[idx].Node))
	switch c.Type {
	case ConstraintParent, ConstraintMatrix:
		return target
	case ConstraintPoint:
		return base.WithTranslation(target.Translation())
	case ConstraintOrient, ConstraintAim:
		t, _, s := base.Decompose()
		_, r, _ := target.Decompose()
		return mathx.Compose(t, r, s)
	case ConstraintScale:
		t, r, _ := base.Decompose()
		_, _, s := target.Decompose()
		return mathx.Compose(t, r, s)
	default:
		return base
	}
}
