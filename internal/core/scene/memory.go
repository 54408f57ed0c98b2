package scene

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/zeusync/hive/pkg/mathx"
)

var _ Graph = (*Memory)(nil)

type attribute struct {
	spec  AttributeSpec
	value any
}

type node struct {
	id       NodeID
	typ      NodeType
	name     string
	parent   NodeID
	children []NodeID

	local        mathx.Matrix
	offsetParent mathx.Matrix

	attrs     map[string]*attribute
	attrOrder []string

	locked         bool
	hidden         bool
	unselectable   bool
	lockedChannels map[string]bool

	metaParents  []NodeID
	metaChildren []NodeID
	container    NodeID
}

type containerData struct {
	members  []NodeID
	attrs    []PublishedAttribute
	nodes    []PublishedNode
	blackBox bool
}

type constraintData struct {
	Constraint
}

// Memory is an in-process Graph. It evaluates world matrices, parent/point/orient/
// scale/matrix constraints, and multMatrix/pickMatrix utility chains so that the
// build pipeline can be exercised without a host application.
//
// Memory is not safe for concurrent use.
type Memory struct {
	nodes map[NodeID]*node
	order []NodeID

	incoming map[Plug]Plug
	outgoing map[Plug][]Plug

	constraints     map[NodeID]*constraintData
	constraintOrder []NodeID

	containers map[NodeID]*containerData
	current    NodeID

	evaluating map[NodeID]bool
}

// NewMemory returns an empty scene.
func NewMemory() *Memory {
	return &Memory{
		nodes:       make(map[NodeID]*node),
		incoming:    make(map[Plug]Plug),
		outgoing:    make(map[Plug][]Plug),
		constraints: make(map[NodeID]*constraintData),
		containers:  make(map[NodeID]*containerData),
		evaluating:  make(map[NodeID]bool),
	}
}

func (m *Memory) lookup(id NodeID) (*node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

// CreateNode creates a node under parent ("" for the scene root). Non-dag nodes
// cannot be parented. When a current container is set the node joins it.
func (m *Memory) CreateNode(typ NodeType, name string, parent NodeID) (NodeID, error) {
	if name == "" {
		return "", ErrInvalidNodeName
	}
	if parent != "" {
		p, err := m.lookup(parent)
		if err != nil {
			return "", err
		}
		if !typ.IsDag() || !p.typ.IsDag() {
			return "", fmt.Errorf("%w: %s under %s", ErrInvalidParent, typ, p.typ)
		}
	}
	n := &node{
		id:           NodeID(uuid.NewString()),
		typ:          typ,
		name:         name,
		parent:       parent,
		local:        mathx.Identity(),
		offsetParent: mathx.Identity(),
		attrs:        make(map[string]*attribute),
	}
	m.nodes[n.id] = n
	m.order = append(m.order, n.id)
	if parent != "" {
		p := m.nodes[parent]
		p.children = append(p.children, n.id)
	}
	if typ == TypeContainer {
		m.containers[n.id] = &containerData{}
	} else if m.current != "" {
		_ = m.AddToContainer(m.current, n.id)
	}
	return n.id, nil
}

// DeleteNodes deletes the nodes and their dag descendants. Constraints driven by a
// deleted node are removed and their driven nodes keep their current world matrix.
func (m *Memory) DeleteNodes(ids ...NodeID) error {
	doomed := make(map[NodeID]bool)
	var collect func(id NodeID)
	collect = func(id NodeID) {
		if doomed[id] {
			return
		}
		doomed[id] = true
		for _, c := range m.nodes[id].children {
			collect(c)
		}
	}
	for _, id := range ids {
		n, err := m.lookup(id)
		if err != nil {
			return err
		}
		if n.locked {
			return fmt.Errorf("%w: %s", ErrNodeLocked, n.name)
		}
		collect(id)
	}

	// bake anything still alive that loses a driver
	for _, cid := range slices.Clone(m.constraintOrder) {
		c := m.constraints[cid]
		if doomed[c.Driven] || doomed[cid] {
			m.dropConstraint(cid)
			continue
		}
		for _, d := range c.Drivers {
			if doomed[d.Node] {
				_ = m.DeleteConstraint(cid)
				break
			}
		}
	}

	for _, id := range m.order {
		if !doomed[id] {
			continue
		}
		m.detach(m.nodes[id])
	}
	m.order = slices.DeleteFunc(m.order, func(id NodeID) bool { return doomed[id] })
	for id := range doomed {
		delete(m.nodes, id)
	}
	return nil
}

func (m *Memory) detach(n *node) {
	for _, c := range m.Connections(n.id) {
		m.removeConnection(c.Source, c.Destination)
	}
	for _, p := range n.metaParents {
		if pn, ok := m.nodes[p]; ok {
			pn.metaChildren = slices.DeleteFunc(pn.metaChildren, func(id NodeID) bool { return id == n.id })
		}
	}
	for _, c := range n.metaChildren {
		if cn, ok := m.nodes[c]; ok {
			cn.metaParents = slices.DeleteFunc(cn.metaParents, func(id NodeID) bool { return id == n.id })
		}
	}
	if n.container != "" {
		if cd, ok := m.containers[n.container]; ok {
			m.forgetMember(cd, n.id)
		}
	}
	if n.parent != "" {
		if p, ok := m.nodes[n.parent]; ok {
			p.children = slices.DeleteFunc(p.children, func(id NodeID) bool { return id == n.id })
		}
	}
	if cd, ok := m.containers[n.id]; ok {
		for _, member := range cd.members {
			if mn, ok := m.nodes[member]; ok {
				mn.container = ""
			}
		}
		delete(m.containers, n.id)
		if m.current == n.id {
			m.current = ""
		}
	}
}

func (m *Memory) Exists(id NodeID) bool {
	_, ok := m.nodes[id]
	return ok
}

func (m *Memory) Type(id NodeID) (NodeType, error) {
	n, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return n.typ, nil
}

func (m *Memory) Name(id NodeID) string {
	if n, ok := m.nodes[id]; ok {
		return n.name
	}
	return ""
}

func (m *Memory) Rename(id NodeID, name string) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if name == "" {
		return ErrInvalidNodeName
	}
	if n.locked {
		return fmt.Errorf("%w: %s", ErrNodeLocked, n.name)
	}
	n.name = name
	return nil
}

func (m *Memory) FindByName(name string) []NodeID {
	var out []NodeID
	for _, id := range m.order {
		if m.nodes[id].name == name {
			out = append(out, id)
		}
	}
	return out
}

// Nodes returns every node in creation order.
func (m *Memory) Nodes() []NodeID {
	return slices.Clone(m.order)
}

func (m *Memory) Parent(id NodeID) NodeID {
	if n, ok := m.nodes[id]; ok {
		return n.parent
	}
	return ""
}

func (m *Memory) Children(id NodeID) []NodeID {
	if n, ok := m.nodes[id]; ok {
		return slices.Clone(n.children)
	}
	return nil
}

func (m *Memory) SetParent(id, parent NodeID, maintainWorld bool) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !n.typ.IsDag() {
		return fmt.Errorf("%w: %s", ErrNotDagNode, n.name)
	}
	if n.locked {
		return fmt.Errorf("%w: %s", ErrNodeLocked, n.name)
	}
	if n.parent == parent {
		return nil
	}
	if parent != "" {
		p, err := m.lookup(parent)
		if err != nil {
			return err
		}
		if !p.typ.IsDag() || m.isDescendant(parent, id) {
			return fmt.Errorf("%w: %s under %s", ErrInvalidParent, n.name, p.name)
		}
	}
	world := m.WorldMatrix(id)
	if n.parent != "" {
		if old, ok := m.nodes[n.parent]; ok {
			old.children = slices.DeleteFunc(old.children, func(c NodeID) bool { return c == id })
		}
	}
	n.parent = parent
	if parent != "" {
		p := m.nodes[parent]
		p.children = append(p.children, id)
	}
	if maintainWorld {
		m.setWorld(n, world)
	}
	return nil
}

// isDescendant reports whether candidate is root or lives below it.
func (m *Memory) isDescendant(candidate, root NodeID) bool {
	for cur := candidate; cur != ""; cur = m.nodes[cur].parent {
		if cur == root {
			return true
		}
	}
	return false
}

func (m *Memory) SetLocked(id NodeID, locked bool) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	n.locked = locked
	return nil
}

func (m *Memory) IsLocked(id NodeID) bool {
	n, ok := m.nodes[id]
	return ok && n.locked
}

func (m *Memory) SetVisible(id NodeID, visible bool) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	n.hidden = !visible
	return nil
}

func (m *Memory) IsVisible(id NodeID) bool {
	n, ok := m.nodes[id]
	return ok && !n.hidden
}

func (m *Memory) SetSelectable(id NodeID, selectable bool) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	n.unselectable = !selectable
	return nil
}

func (m *Memory) IsSelectable(id NodeID) bool {
	n, ok := m.nodes[id]
	return ok && !n.unselectable
}

// LocalMatrix returns the node's local transform.
func (m *Memory) LocalMatrix(id NodeID) mathx.Matrix {
	if n, ok := m.nodes[id]; ok {
		return n.local
	}
	return mathx.Identity()
}

// WorldMatrix evaluates local * offsetParent * parentWorld and applies constraints.
func (m *Memory) WorldMatrix(id NodeID) mathx.Matrix {
	n, ok := m.nodes[id]
	if !ok || !n.typ.IsDag() {
		return mathx.Identity()
	}
	if m.evaluating[id] {
		return n.local
	}
	m.evaluating[id] = true
	defer delete(m.evaluating, id)

	world := m.baseWorld(n)
	for _, cid := range m.constraintOrder {
		c := m.constraints[cid]
		if c.Driven == id {
			world = m.applyConstraint(c, world)
		}
	}
	return world
}

func (m *Memory) baseWorld(n *node) mathx.Matrix {
	return n.local.Mul(m.offsetParentMatrix(n)).Mul(m.parentWorld(n))
}

func (m *Memory) parentWorld(n *node) mathx.Matrix {
	if n.parent == "" {
		return mathx.Identity()
	}
	return m.WorldMatrix(n.parent)
}

func (m *Memory) offsetParentMatrix(n *node) mathx.Matrix {
	if src, ok := m.incoming[Plug{Node: n.id, Attr: AttrNameOffsetParentMatrix}]; ok {
		if v, err := m.Get(src.Node, src.Attr); err == nil {
			if mat, ok := v.(mathx.Matrix); ok {
				return mat
			}
		}
	}
	return n.offsetParent
}

func (m *Memory) SetLocalMatrix(id NodeID, mat mathx.Matrix) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !n.typ.IsDag() {
		return fmt.Errorf("%w: %s", ErrNotDagNode, n.name)
	}
	n.local = mat
	return nil
}

// SetWorldMatrix solves the local matrix so the unconstrained world equals mat.
func (m *Memory) SetWorldMatrix(id NodeID, mat mathx.Matrix) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !n.typ.IsDag() {
		return fmt.Errorf("%w: %s", ErrNotDagNode, n.name)
	}
	m.setWorld(n, mat)
	return nil
}

func (m *Memory) setWorld(n *node, world mathx.Matrix) {
	space := m.offsetParentMatrix(n).Mul(m.parentWorld(n))
	n.local = world.Mul(space.MustInverse())
}

// Stats counts nodes per type.
func (m *Memory) Stats() map[NodeType]int {
	out := make(map[NodeType]int)
	for _, n := range m.nodes {
		out[n.typ]++
	}
	return out
}
