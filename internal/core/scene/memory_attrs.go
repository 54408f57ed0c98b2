package scene

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/zeusync/hive/pkg/mathx"
)

// Utility node attribute names.
const (
	AttrNameUtilityType  = "utilityType"
	AttrNameMatrixIn     = "matrixIn"
	AttrNameMatrixSum    = "matrixSum"
	AttrNameInputMatrix  = "inputMatrix"
	AttrNameOutputMatrix = "outputMatrix"
	AttrNameUseTranslate = "useTranslate"
	AttrNameUseRotate    = "useRotate"
	AttrNameUseScale     = "useScale"
)

var builtinAttrs = map[string]bool{
	AttrNameTranslate:           true,
	AttrNameRotate:              true,
	AttrNameScale:               true,
	AttrNameMatrix:              true,
	AttrNameWorldMatrix:         true,
	AttrNameWorldInverseMatrix:  true,
	AttrNameParentInverseMatrix: true,
	AttrNameOffsetParentMatrix:  true,
	AttrNameVisibility:          true,
}

func isElement(name string) bool {
	return strings.HasSuffix(name, "]") && strings.Contains(name, "[")
}

func (m *Memory) AddAttribute(id NodeID, spec AttributeSpec) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if spec.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidValue)
	}
	if _, ok := n.attrs[spec.Name]; ok || (n.typ.IsDag() && builtinAttrs[spec.Name]) {
		return fmt.Errorf("%w: %s.%s", ErrAttributeExists, n.name, spec.Name)
	}
	initial := spec.Value
	if initial == nil {
		initial = spec.Default
	}
	value, err := coerce(spec, initial)
	if err != nil {
		return err
	}
	n.attrs[spec.Name] = &attribute{spec: spec, value: value}
	n.attrOrder = append(n.attrOrder, spec.Name)
	return nil
}

func (m *Memory) HasAttribute(id NodeID, name string) bool {
	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	if _, ok := n.attrs[name]; ok {
		return true
	}
	return n.typ.IsDag() && builtinAttrs[name]
}

func (m *Memory) AttributeSpec(id NodeID, name string) (AttributeSpec, error) {
	n, err := m.lookup(id)
	if err != nil {
		return AttributeSpec{}, err
	}
	a, ok := n.attrs[name]
	if !ok {
		return AttributeSpec{}, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, n.name, name)
	}
	spec := a.spec
	spec.Value = a.value
	return spec, nil
}

// Attributes lists the node's dynamic attributes in creation order.
func (m *Memory) Attributes(id NodeID) []string {
	if n, ok := m.nodes[id]; ok {
		return slices.Clone(n.attrOrder)
	}
	return nil
}

func (m *Memory) DeleteAttribute(id NodeID, name string) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	a, ok := n.attrs[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, n.name, name)
	}
	if a.spec.Locked {
		return fmt.Errorf("%w: %s.%s", ErrAttributeLocked, n.name, name)
	}
	plug := Plug{Node: id, Attr: name}
	if src, ok := m.incoming[plug]; ok {
		m.removeConnection(src, plug)
	}
	for _, dst := range slices.Clone(m.outgoing[plug]) {
		m.removeConnection(plug, dst)
	}
	delete(n.attrs, name)
	n.attrOrder = slices.DeleteFunc(n.attrOrder, func(s string) bool { return s == name })
	return nil
}

// Get reads an attribute. Connected destinations report their source value.
func (m *Memory) Get(id NodeID, name string) (any, error) {
	n, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	plug := Plug{Node: id, Attr: name}
	if src, ok := m.incoming[plug]; ok {
		return m.Get(src.Node, src.Attr)
	}

	if n.typ == TypeUtility {
		if v, ok, err := m.evaluateUtility(n, name); ok || err != nil {
			return v, err
		}
	}

	if a, ok := n.attrs[name]; ok {
		return a.value, nil
	}
	if n.typ.IsDag() {
		switch name {
		case AttrNameTranslate:
			t, _, _ := n.local.Decompose()
			return t, nil
		case AttrNameRotate:
			_, r, _ := n.local.Decompose()
			return r, nil
		case AttrNameScale:
			_, _, s := n.local.Decompose()
			return s, nil
		case AttrNameMatrix:
			return n.local, nil
		case AttrNameWorldMatrix:
			return m.WorldMatrix(id), nil
		case AttrNameWorldInverseMatrix:
			return m.WorldMatrix(id).MustInverse(), nil
		case AttrNameParentInverseMatrix:
			return m.parentWorld(n).MustInverse(), nil
		case AttrNameOffsetParentMatrix:
			return n.offsetParent, nil
		case AttrNameVisibility:
			return !n.hidden, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, n.name, name)
}

func (m *Memory) evaluateUtility(n *node, name string) (any, bool, error) {
	kind := ""
	if a, ok := n.attrs[AttrNameUtilityType]; ok {
		kind, _ = a.value.(string)
	}
	switch {
	case kind == UtilityMultMatrix && name == AttrNameMatrixSum:
		if m.evaluating[n.id] {
			return nil, true, fmt.Errorf("%w: cycle through %s", ErrInvalidValue, n.name)
		}
		m.evaluating[n.id] = true
		defer delete(m.evaluating, n.id)

		sum := mathx.Identity()
		for i := 0; ; i++ {
			el := ElementAttr(AttrNameMatrixIn, i)
			_, stored := n.attrs[el]
			_, connected := m.incoming[Plug{Node: n.id, Attr: el}]
			if !stored && !connected {
				break
			}
			v, err := m.Get(n.id, el)
			if err != nil {
				return nil, true, err
			}
			mat, _ := v.(mathx.Matrix)
			sum = sum.Mul(mat)
		}
		return sum, true, nil
	case kind == UtilityPickMatrix && name == AttrNameOutputMatrix:
		v, err := m.Get(n.id, AttrNameInputMatrix)
		if err != nil {
			return nil, true, err
		}
		in, _ := v.(mathx.Matrix)
		t, r, s := in.Decompose()
		if !m.flag(n, AttrNameUseTranslate) {
			t = mathx.Vector3{}
		}
		if !m.flag(n, AttrNameUseRotate) {
			r = mathx.Vector3{}
		}
		if !m.flag(n, AttrNameUseScale) {
			s = mathx.One
		}
		return mathx.Compose(t, r, s), true, nil
	case kind == UtilityInverseMatrix && name == AttrNameOutputMatrix:
		v, err := m.Get(n.id, AttrNameInputMatrix)
		if err != nil {
			return nil, true, err
		}
		in, _ := v.(mathx.Matrix)
		inv, ok := in.Inverse()
		if !ok {
			return nil, true, fmt.Errorf("%w: %s input is singular", ErrInvalidValue, n.name)
		}
		return inv, true, nil
	}
	return nil, false, nil
}

func (m *Memory) flag(n *node, name string) bool {
	v, err := m.Get(n.id, name)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Set writes an attribute. Built-in transform channels recompose the local matrix.
func (m *Memory) Set(id NodeID, name string, value any) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if a, ok := n.attrs[name]; ok {
		if a.spec.Locked {
			return fmt.Errorf("%w: %s.%s", ErrAttributeLocked, n.name, name)
		}
		v, err := coerce(a.spec, value)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", n.name, name, err)
		}
		a.value = v
		return nil
	}
	if isElement(name) && (n.typ == TypeUtility || n.typ == TypeSkinCluster) {
		return m.AddAttribute(id, AttributeSpec{Name: name, Type: AttrMatrix, Value: value})
	}
	if !n.typ.IsDag() || !builtinAttrs[name] {
		return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, n.name, name)
	}

	switch name {
	case AttrNameTranslate, AttrNameRotate, AttrNameScale:
		if n.lockedChannels[name] {
			return fmt.Errorf("%w: %s.%s", ErrAttributeLocked, n.name, name)
		}
		v, err := coerce(AttributeSpec{Type: AttrVector3}, value)
		if err != nil {
			return err
		}
		vec := v.(mathx.Vector3)
		t, r, s := n.local.Decompose()
		switch name {
		case AttrNameTranslate:
			t = vec
		case AttrNameRotate:
			r = vec
		default:
			s = vec
		}
		n.local = mathx.Compose(t, r, s)
	case AttrNameMatrix, AttrNameOffsetParentMatrix:
		v, err := coerce(AttributeSpec{Type: AttrMatrix}, value)
		if err != nil {
			return err
		}
		if name == AttrNameMatrix {
			n.local = v.(mathx.Matrix)
		} else {
			n.offsetParent = v.(mathx.Matrix)
		}
	case AttrNameVisibility:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: visibility expects bool", ErrInvalidValue)
		}
		n.hidden = !b
	default:
		return fmt.Errorf("%w: %s.%s", ErrReadOnlyAttribute, n.name, name)
	}
	return nil
}

func (m *Memory) SetAttributeLocked(id NodeID, name string, locked bool) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if a, ok := n.attrs[name]; ok {
		a.spec.Locked = locked
		return nil
	}
	if n.typ.IsDag() && builtinAttrs[name] {
		if n.lockedChannels == nil {
			n.lockedChannels = make(map[string]bool)
		}
		n.lockedChannels[name] = locked
		return nil
	}
	return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, n.name, name)
}

func (m *Memory) IsAttributeLocked(id NodeID, name string) bool {
	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	if a, ok := n.attrs[name]; ok {
		return a.spec.Locked
	}
	return n.lockedChannels[name]
}

// NodesWithAttribute returns nodes carrying the dynamic attribute. A non-nil value
// also filters on the stored value.
func (m *Memory) NodesWithAttribute(name string, value any) []NodeID {
	var out []NodeID
	for _, id := range m.order {
		a, ok := m.nodes[id].attrs[name]
		if !ok {
			continue
		}
		if value != nil && !valuesEqual(a.value, value) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Connect wires src into dst, replacing any existing source of dst.
func (m *Memory) Connect(src, dst Plug) error {
	if src == dst {
		return fmt.Errorf("%w: %s connected to itself", ErrInvalidValue, src)
	}
	sn, err := m.lookup(src.Node)
	if err != nil {
		return err
	}
	dn, err := m.lookup(dst.Node)
	if err != nil {
		return err
	}
	if !m.readable(sn, src.Attr) {
		return fmt.Errorf("%w: %s", ErrAttributeNotFound, src)
	}
	if _, ok := dn.attrs[dst.Attr]; !ok {
		switch {
		case dn.typ.IsDag() && builtinAttrs[dst.Attr]:
			if dst.Attr == AttrNameWorldMatrix || dst.Attr == AttrNameWorldInverseMatrix || dst.Attr == AttrNameParentInverseMatrix {
				return fmt.Errorf("%w: %s", ErrReadOnlyAttribute, dst)
			}
		case isElement(dst.Attr) && (dn.typ == TypeUtility || dn.typ == TypeSkinCluster):
		default:
			return fmt.Errorf("%w: %s", ErrAttributeNotFound, dst)
		}
	}
	if old, ok := m.incoming[dst]; ok {
		m.removeConnection(old, dst)
	}
	m.incoming[dst] = src
	m.outgoing[src] = append(m.outgoing[src], dst)
	return nil
}

func (m *Memory) readable(n *node, attr string) bool {
	if _, ok := n.attrs[attr]; ok {
		return true
	}
	if n.typ.IsDag() && builtinAttrs[attr] {
		return true
	}
	return n.typ == TypeUtility && (attr == AttrNameMatrixSum || attr == AttrNameOutputMatrix)
}

func (m *Memory) Disconnect(src, dst Plug) error {
	if cur, ok := m.incoming[dst]; !ok || cur != src {
		return fmt.Errorf("%w: %s -> %s", ErrNotConnected, src, dst)
	}
	m.removeConnection(src, dst)
	return nil
}

func (m *Memory) removeConnection(src, dst Plug) {
	delete(m.incoming, dst)
	outs := slices.DeleteFunc(m.outgoing[src], func(p Plug) bool { return p == dst })
	if len(outs) == 0 {
		delete(m.outgoing, src)
	} else {
		m.outgoing[src] = outs
	}
}

func (m *Memory) Source(dst Plug) (Plug, bool) {
	src, ok := m.incoming[dst]
	return src, ok
}

func (m *Memory) Destinations(src Plug) []Plug {
	return slices.Clone(m.outgoing[src])
}

// Connections lists every edge touching the node, incoming first.
func (m *Memory) Connections(id NodeID) []Connection {
	var in, out []Connection
	for dst, src := range m.incoming {
		if dst.Node == id {
			in = append(in, Connection{Source: src, Destination: dst})
		}
		if src.Node == id && dst.Node != id {
			out = append(out, Connection{Source: src, Destination: dst})
		}
	}
	sortConnections(in)
	sortConnections(out)
	return append(in, out...)
}

func sortConnections(c []Connection) {
	slices.SortFunc(c, func(a, b Connection) int {
		return strings.Compare(a.Destination.String()+a.Source.String(), b.Destination.String()+b.Source.String())
	})
}

// coerce normalises a value to the attribute's type. nil yields the zero value.
func coerce(spec AttributeSpec, value any) (any, error) {
	switch spec.Type {
	case AttrString:
		switch v := value.(type) {
		case nil:
			return "", nil
		case string:
			return v, nil
		case NodeID:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case AttrBool:
		switch v := value.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case int:
			return v != 0, nil
		case float64:
			return v != 0, nil
		}
	case AttrInt, AttrEnum:
		switch v := value.(type) {
		case nil:
			return 0, nil
		case int:
			return clampInt(spec, v), nil
		case int32:
			return clampInt(spec, int(v)), nil
		case int64:
			return clampInt(spec, int(v)), nil
		case float64:
			if v == math.Trunc(v) {
				return clampInt(spec, int(v)), nil
			}
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case string:
			if spec.Type == AttrEnum {
				if i := slices.Index(spec.Enums, v); i >= 0 {
					return i, nil
				}
			}
		}
	case AttrFloat:
		switch v := value.(type) {
		case nil:
			return 0.0, nil
		case float64:
			return clampFloat(spec, v), nil
		case float32:
			return clampFloat(spec, float64(v)), nil
		case int:
			return clampFloat(spec, float64(v)), nil
		case int64:
			return clampFloat(spec, float64(v)), nil
		}
	case AttrVector3:
		switch v := value.(type) {
		case nil:
			return mathx.Vector3{}, nil
		case mathx.Vector3:
			return v, nil
		case [3]float64:
			return mathx.Vector3(v), nil
		case []float64:
			if len(v) == 3 {
				return mathx.Vec3(v[0], v[1], v[2]), nil
			}
		case []any:
			if f, ok := floats(v); ok && len(f) == 3 {
				return mathx.Vec3(f[0], f[1], f[2]), nil
			}
		}
	case AttrMatrix:
		switch v := value.(type) {
		case nil:
			return mathx.Identity(), nil
		case mathx.Matrix:
			return v, nil
		case []float64:
			if len(v) == 16 {
				return mathx.MatrixFromSlice(v), nil
			}
		case []any:
			if f, ok := floats(v); ok && len(f) == 16 {
				return mathx.MatrixFromSlice(f), nil
			}
		}
	case AttrMessage:
		switch v := value.(type) {
		case nil:
			return NodeID(""), nil
		case NodeID:
			return v, nil
		case string:
			return NodeID(v), nil
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAttrType, spec.Type)
	}
	return nil, fmt.Errorf("%w: %T for %s attribute %q", ErrInvalidValue, value, spec.Type, spec.Name)
}

func floats(values []any) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		switch f := v.(type) {
		case float64:
			out[i] = f
		case int:
			out[i] = float64(f)
		default:
			return nil, false
		}
	}
	return out, true
}

func clampInt(spec AttributeSpec, v int) int {
	if spec.Type == AttrEnum && len(spec.Enums) > 0 {
		return max(0, min(v, len(spec.Enums)-1))
	}
	return int(clampFloat(spec, float64(v)))
}

func clampFloat(spec AttributeSpec, v float64) float64 {
	if spec.Min != nil && v < *spec.Min {
		v = *spec.Min
	}
	if spec.Max != nil && v > *spec.Max {
		v = *spec.Max
	}
	return v
}
