package scene

import (
	"fmt"
	"strings"

	"github.com/zeusync/hive/pkg/mathx"
)

// NodeID identifies a node inside one Graph. IDs are opaque and never reused.
type NodeID string

// String implements fmt.Stringer.
func (id NodeID) String() string { return string(id) }

// NodeType enumerates the kinds of nodes the build pipeline creates.
type NodeType uint8

const (
	TypeTransform NodeType = iota
	TypeJoint
	TypeLocator
	TypeCurve
	TypeNetwork
	TypeContainer
	TypeUtility
	TypeSkinCluster
	TypeConstraint
)

func (t NodeType) String() string {
	switch t {
	case TypeTransform:
		return "transform"
	case TypeJoint:
		return "joint"
	case TypeLocator:
		return "locator"
	case TypeCurve:
		return "curve"
	case TypeNetwork:
		return "network"
	case TypeContainer:
		return "container"
	case TypeUtility:
		return "utility"
	case TypeSkinCluster:
		return "skinCluster"
	case TypeConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// IsDag reports whether nodes of this type live in the transform hierarchy.
func (t NodeType) IsDag() bool {
	switch t {
	case TypeTransform, TypeJoint, TypeLocator, TypeCurve, TypeConstraint:
		return true
	default:
		return false
	}
}

// AttrType is the value type of a node attribute.
type AttrType uint8

const (
	AttrString AttrType = iota
	AttrBool
	AttrInt
	AttrFloat
	AttrVector3
	AttrMatrix
	AttrEnum
	AttrMessage
)

func (t AttrType) String() string {
	switch t {
	case AttrString:
		return "string"
	case AttrBool:
		return "bool"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrVector3:
		return "vector3"
	case AttrMatrix:
		return "matrix"
	case AttrEnum:
		return "enum"
	case AttrMessage:
		return "message"
	default:
		return "unknown"
	}
}

// ParseAttrType converts the string form back to an AttrType.
func ParseAttrType(s string) (AttrType, error) {
	switch strings.ToLower(s) {
	case "string", "":
		return AttrString, nil
	case "bool", "boolean":
		return AttrBool, nil
	case "int", "long", "short":
		return AttrInt, nil
	case "float", "double":
		return AttrFloat, nil
	case "vector3", "double3", "float3":
		return AttrVector3, nil
	case "matrix":
		return AttrMatrix, nil
	case "enum":
		return AttrEnum, nil
	case "message":
		return AttrMessage, nil
	default:
		return AttrString, fmt.Errorf("%w: %s", ErrUnknownAttrType, s)
	}
}

// AttributeSpec describes a dynamic attribute to add to a node.
type AttributeSpec struct {
	Name       string
	Type       AttrType
	Value      any
	Default    any
	Min        *float64
	Max        *float64
	Enums      []string
	Keyable    bool
	ChannelBox bool
	Locked     bool
}

// Plug addresses one attribute on one node, e.g. joint.worldInverseMatrix.
// Array elements are addressed with an index suffix in Attr: "bindPreMatrix[3]".
type Plug struct {
	Node NodeID
	Attr string
}

func (p Plug) String() string { return string(p.Node) + "." + p.Attr }

// IsZero reports whether the plug is unset.
func (p Plug) IsZero() bool { return p.Node == "" && p.Attr == "" }

// ElementAttr formats an array element attribute name.
func ElementAttr(attr string, index int) string {
	return fmt.Sprintf("%s[%d]", attr, index)
}

// Connection is one src -> dst plug edge.
type Connection struct {
	Source      Plug
	Destination Plug
}

// Built-in attribute names every DAG node exposes.
const (
	AttrNameTranslate           = "translate"
	AttrNameRotate              = "rotate"
	AttrNameScale               = "scale"
	AttrNameMatrix              = "matrix"
	AttrNameWorldMatrix         = "worldMatrix"
	AttrNameWorldInverseMatrix  = "worldInverseMatrix"
	AttrNameParentInverseMatrix = "parentInverseMatrix"
	AttrNameOffsetParentMatrix  = "offsetParentMatrix"
	AttrNameVisibility          = "visibility"
)

// Utility node kinds evaluated by the reference graph.
const (
	UtilityMultMatrix    = "multMatrix"
	UtilityPickMatrix    = "pickMatrix"
	UtilityInverseMatrix = "inverseMatrix"
)

// ConstraintType enumerates supported constraint kinds.
type ConstraintType string

const (
	ConstraintParent ConstraintType = "parent"
	ConstraintScale  ConstraintType = "scale"
	ConstraintPoint  ConstraintType = "point"
	ConstraintOrient ConstraintType = "orient"
	ConstraintMatrix ConstraintType = "matrix"
	ConstraintAim    ConstraintType = "aim"
)

// ConstraintDriver is one labelled driver of a constraint.
type ConstraintDriver struct {
	Label string `json:"label"`
	Node  NodeID `json:"node"`
}

// ConstraintSpec is the request to build a constraint.
type ConstraintSpec struct {
	Type           ConstraintType
	Name           string
	Driven         NodeID
	Drivers        []ConstraintDriver
	MaintainOffset bool
	// Trace records the created bookkeeping nodes on the constraint for later cleanup.
	Trace bool
	// SwitchAttr, when set, is an enum plug whose value selects the active driver.
	SwitchAttr    Plug
	DefaultDriver int
	// Metadata is free form data kept with the constraint (e.g. space switch label).
	Metadata map[string]string
}

// Constraint is an existing constraint.
type Constraint struct {
	ID         NodeID
	Type       ConstraintType
	Name       string
	Driven     NodeID
	Drivers    []ConstraintDriver
	Offsets    []mathx.Matrix
	SwitchAttr Plug
	Utilities  []NodeID
	Metadata   map[string]string
}

// DriverIndex returns the index of the driver with the given label or -1.
func (c Constraint) DriverIndex(label string) int {
	for i, d := range c.Drivers {
		if d.Label == label {
			return i
		}
	}
	return -1
}

// PublishedAttribute is one attribute exposed at a container boundary.
type PublishedAttribute struct {
	Alias string
	Plug  Plug
}

// PublishedNode is one node exposed at a container boundary.
type PublishedNode struct {
	Name string
	Node NodeID
}
