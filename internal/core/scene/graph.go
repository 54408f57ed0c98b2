// Package scene defines the host scene-graph capabilities the rig build pipeline
// consumes, and Memory, an in-process reference implementation of them.
//
// The build core never talks to a host application directly. Everything it needs
// from one (node lifecycle, attributes, transform math, constraints, containers and
// the meta-node graph) goes through Graph.
package scene

import "github.com/zeusync/hive/pkg/mathx"

// Graph is the scene-graph collaborator used by the build pipeline.
// Implementations are expected to be used from a single goroutine, the same way
// host applications only allow scene edits from their main thread.
type Graph interface {
	// Node lifecycle

	CreateNode(typ NodeType, name string, parent NodeID) (NodeID, error)
	DeleteNodes(ids ...NodeID) error
	Exists(id NodeID) bool
	Type(id NodeID) (NodeType, error)
	Name(id NodeID) string
	Rename(id NodeID, name string) error
	FindByName(name string) []NodeID
	Nodes() []NodeID

	// Hierarchy

	Parent(id NodeID) NodeID
	Children(id NodeID) []NodeID
	SetParent(id, parent NodeID, maintainWorld bool) error

	// State

	SetLocked(id NodeID, locked bool) error
	IsLocked(id NodeID) bool
	SetVisible(id NodeID, visible bool) error
	IsVisible(id NodeID) bool
	SetSelectable(id NodeID, selectable bool) error
	IsSelectable(id NodeID) bool

	// Attributes

	AddAttribute(id NodeID, spec AttributeSpec) error
	HasAttribute(id NodeID, name string) bool
	AttributeSpec(id NodeID, name string) (AttributeSpec, error)
	Attributes(id NodeID) []string
	DeleteAttribute(id NodeID, name string) error
	Get(id NodeID, name string) (any, error)
	Set(id NodeID, name string, value any) error
	SetAttributeLocked(id NodeID, name string, locked bool) error
	IsAttributeLocked(id NodeID, name string) bool
	NodesWithAttribute(name string, value any) []NodeID

	// Connections

	Connect(src, dst Plug) error
	Disconnect(src, dst Plug) error
	Source(dst Plug) (Plug, bool)
	Destinations(src Plug) []Plug
	Connections(id NodeID) []Connection

	// Transforms

	LocalMatrix(id NodeID) mathx.Matrix
	WorldMatrix(id NodeID) mathx.Matrix
	SetLocalMatrix(id NodeID, m mathx.Matrix) error
	SetWorldMatrix(id NodeID, m mathx.Matrix) error

	// Constraints

	CreateConstraint(spec ConstraintSpec) (NodeID, error)
	Constraint(id NodeID) (Constraint, error)
	Constraints(driven NodeID) []Constraint
	DeleteConstraint(id NodeID) error

	// Container boundary

	AddToContainer(container NodeID, ids ...NodeID) error
	RemoveFromContainer(container NodeID, ids ...NodeID) error
	ContainerMembers(container NodeID) []NodeID
	ContainerOf(id NodeID) NodeID
	PublishAttribute(container NodeID, plug Plug, alias string) error
	UnpublishAttribute(container NodeID, alias string) error
	PublishedAttributes(container NodeID) []PublishedAttribute
	PublishNode(container NodeID, node NodeID, name string) error
	UnpublishNode(container NodeID, name string) error
	PublishedNodes(container NodeID) []PublishedNode
	SetBlackBox(container NodeID, state bool) error
	SetCurrentContainer(container NodeID) error
	CurrentContainer() NodeID

	// Meta-node graph

	ConnectMeta(parent, child NodeID) error
	DisconnectMeta(parent, child NodeID) error
	MetaParents(id NodeID) []NodeID
	MetaChildren(id NodeID) []NodeID
}
