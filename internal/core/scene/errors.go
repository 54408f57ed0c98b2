package scene

import "errors"

var (
	// Node errors

	ErrNodeNotFound    = errors.New("node not found")
	ErrNodeLocked      = errors.New("node is locked")
	ErrInvalidParent   = errors.New("invalid parent")
	ErrNotDagNode      = errors.New("node is not a dag node")
	ErrInvalidNodeName = errors.New("invalid node name")

	// Attribute errors

	ErrAttributeNotFound = errors.New("attribute not found")
	ErrAttributeExists   = errors.New("attribute already exists")
	ErrAttributeLocked   = errors.New("attribute is locked")
	ErrInvalidValue      = errors.New("invalid attribute value")
	ErrUnknownAttrType   = errors.New("unknown attribute type")
	ErrReadOnlyAttribute = errors.New("attribute is read only")

	// Connection errors

	ErrNotConnected = errors.New("plugs are not connected")

	// Constraint errors

	ErrConstraintNotFound = errors.New("constraint not found")
	ErrNoDrivers          = errors.New("constraint requires at least one driver")

	// Container errors

	ErrNotContainer = errors.New("node is not a container")
	ErrNotPublished = errors.New("not published")
)
