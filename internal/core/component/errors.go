package component

import "errors"

var (
	// Stage errors

	ErrGuideBuild  = errors.New("guide build failed")
	ErrDeformBuild = errors.New("deform build failed")
	ErrRigBuild    = errors.New("rig build failed")
	ErrPolishBuild = errors.New("polish failed")

	// ErrNotImplemented is returned by hooks a component type must provide.
	ErrNotImplemented = errors.New("not implemented")

	// Precondition errors

	ErrComponentNotFound = errors.New("component not found")
	ErrMissingMetaNode   = errors.New("component has no meta node")
	ErrComponentExists   = errors.New("component already exists in the scene")
	ErrInvalidName       = errors.New("invalid component name")

	// Lookup errors

	ErrLayerNotFound = errors.New("layer not found")
	ErrNodeNotFound  = errors.New("node not found")

	// Hierarchy errors

	ErrSelfParent     = errors.New("component cannot parent to itself")
	ErrComponentCycle = errors.New("component hierarchy has a cycle")
	ErrNoDeformJoint  = errors.New("driver guide has no deform joint")
	ErrInvalidDriver  = errors.New("invalid connection driver")
	ErrDriverNotBuilt = errors.New("driver component has not been built")
)
