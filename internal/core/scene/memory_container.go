package scene

import (
	"fmt"
	"slices"
)

func (m *Memory) container(id NodeID) (*containerData, error) {
	if _, err := m.lookup(id); err != nil {
		return nil, err
	}
	cd, ok := m.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, m.Name(id))
	}
	return cd, nil
}

// AddToContainer moves the nodes into container. A node belongs to at most one
// container at a time.
func (m *Memory) AddToContainer(container NodeID, ids ...NodeID) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	for _, id := range ids {
		n, err := m.lookup(id)
		if err != nil {
			return err
		}
		if id == container || n.container == container {
			continue
		}
		if n.container != "" {
			if old, ok := m.containers[n.container]; ok {
				m.forgetMember(old, id)
			}
		}
		n.container = container
		cd.members = append(cd.members, id)
	}
	return nil
}

func (m *Memory) RemoveFromContainer(container NodeID, ids ...NodeID) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok && n.container == container {
			n.container = ""
			m.forgetMember(cd, id)
		}
	}
	return nil
}

func (m *Memory) forgetMember(cd *containerData, id NodeID) {
	cd.members = slices.DeleteFunc(cd.members, func(n NodeID) bool { return n == id })
	cd.attrs = slices.DeleteFunc(cd.attrs, func(p PublishedAttribute) bool { return p.Plug.Node == id })
	cd.nodes = slices.DeleteFunc(cd.nodes, func(p PublishedNode) bool { return p.Node == id })
}

func (m *Memory) ContainerMembers(container NodeID) []NodeID {
	if cd, ok := m.containers[container]; ok {
		return slices.Clone(cd.members)
	}
	return nil
}

func (m *Memory) ContainerOf(id NodeID) NodeID {
	if n, ok := m.nodes[id]; ok {
		return n.container
	}
	return ""
}

// PublishAttribute exposes plug under alias. Re-publishing an alias rebinds it.
func (m *Memory) PublishAttribute(container NodeID, plug Plug, alias string) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	if !m.HasAttribute(plug.Node, plug.Attr) {
		return fmt.Errorf("%w: %s", ErrAttributeNotFound, plug)
	}
	if alias == "" {
		alias = plug.Attr
	}
	cd.attrs = slices.DeleteFunc(cd.attrs, func(p PublishedAttribute) bool { return p.Alias == alias })
	cd.attrs = append(cd.attrs, PublishedAttribute{Alias: alias, Plug: plug})
	return nil
}

func (m *Memory) UnpublishAttribute(container NodeID, alias string) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	before := len(cd.attrs)
	cd.attrs = slices.DeleteFunc(cd.attrs, func(p PublishedAttribute) bool { return p.Alias == alias })
	if len(cd.attrs) == before {
		return fmt.Errorf("%w: attribute %q", ErrNotPublished, alias)
	}
	return nil
}

func (m *Memory) PublishedAttributes(container NodeID) []PublishedAttribute {
	if cd, ok := m.containers[container]; ok {
		return slices.Clone(cd.attrs)
	}
	return nil
}

func (m *Memory) PublishNode(container NodeID, node NodeID, name string) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	n, err := m.lookup(node)
	if err != nil {
		return err
	}
	if name == "" {
		name = n.name
	}
	cd.nodes = slices.DeleteFunc(cd.nodes, func(p PublishedNode) bool { return p.Name == name })
	cd.nodes = append(cd.nodes, PublishedNode{Name: name, Node: node})
	return nil
}

func (m *Memory) UnpublishNode(container NodeID, name string) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	before := len(cd.nodes)
	cd.nodes = slices.DeleteFunc(cd.nodes, func(p PublishedNode) bool { return p.Name == name })
	if len(cd.nodes) == before {
		return fmt.Errorf("%w: node %q", ErrNotPublished, name)
	}
	return nil
}

func (m *Memory) PublishedNodes(container NodeID) []PublishedNode {
	if cd, ok := m.containers[container]; ok {
		return slices.Clone(cd.nodes)
	}
	return nil
}

func (m *Memory) SetBlackBox(container NodeID, state bool) error {
	cd, err := m.container(container)
	if err != nil {
		return err
	}
	cd.blackBox = state
	return nil
}

// IsBlackBox reports the container's black box flag.
func (m *Memory) IsBlackBox(container NodeID) bool {
	cd, ok := m.containers[container]
	return ok && cd.blackBox
}

// SetCurrentContainer makes new nodes join container. "" clears it.
func (m *Memory) SetCurrentContainer(container NodeID) error {
	if container != "" {
		if _, err := m.container(container); err != nil {
			return err
		}
	}
	m.current = container
	return nil
}

func (m *Memory) CurrentContainer() NodeID { return m.current }

// ConnectMeta links parent -> child in the meta-node graph. Edges keep insertion order.
func (m *Memory) ConnectMeta(parent, child NodeID) error {
	p, err := m.lookup(parent)
	if err != nil {
		return err
	}
	c, err := m.lookup(child)
	if err != nil {
		return err
	}
	if parent == child {
		return fmt.Errorf("%w: meta link to self", ErrInvalidParent)
	}
	if slices.Contains(p.metaChildren, child) {
		return nil
	}
	p.metaChildren = append(p.metaChildren, child)
	c.metaParents = append(c.metaParents, parent)
	return nil
}

func (m *Memory) DisconnectMeta(parent, child NodeID) error {
	p, err := m.lookup(parent)
	if err != nil {
		return err
	}
	c, err := m.lookup(child)
	if err != nil {
		return err
	}
	if !slices.Contains(p.metaChildren, child) {
		return fmt.Errorf("%w: %s -> %s", ErrNotConnected, p.name, c.name)
	}
	p.metaChildren = slices.DeleteFunc(p.metaChildren, func(id NodeID) bool { return id == child })
	c.metaParents = slices.DeleteFunc(c.metaParents, func(id NodeID) bool { return id == parent })
	return nil
}

func (m *Memory) MetaParents(id NodeID) []NodeID {
	if n, ok := m.nodes[id]; ok {
		return slices.Clone(n.metaParents)
	}
	return nil
}

func (m *Memory) MetaChildren(id NodeID) []NodeID {
	if n, ok := m.nodes[id]; ok {
		return slices.Clone(n.metaChildren)
	}
	return nil
}
