package rig

import (
	"errors"

	"github.com/zeusync/hive/internal/core/component"
)

var (
	// Lookup errors

	ErrRigNotFound       = errors.New("rig not found")
	ErrDuplicateRigName  = errors.New("several rigs share the name, a namespace is required")
	ErrRigExists         = errors.New("rig already exists")
	ErrMissingRigNode    = errors.New("rig meta node missing")
	ErrInvalidRigName    = errors.New("invalid rig name")
	ErrUnknownScriptID   = errors.New("unknown build script")
	ErrInvalidConfigData = errors.New("invalid rig configuration")

	// Build errors

	ErrComponentCycle = component.ErrComponentCycle
	ErrMirrorSide     = errors.New("component side has no mirror")

	// Blueprint errors

	ErrInvalidBlueprint = errors.New("invalid rig blueprint")
)
