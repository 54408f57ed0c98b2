package layers

import "errors"

var (
	// Structure errors

	ErrNotLayer        = errors.New("node is not a layer meta node")
	ErrMissingRoot     = errors.New("layer has no root transform")
	ErrInvalidLayerArg = errors.New("invalid layer argument")

	// Lookup errors

	ErrGuideNotFound       = errors.New("guide not found")
	ErrJointNotFound       = errors.New("joint not found")
	ErrControlNotFound     = errors.New("control not found")
	ErrInputNotFound       = errors.New("input not found")
	ErrOutputNotFound      = errors.New("output not found")
	ErrSettingsNotFound    = errors.New("settings node not found")
	ErrSpaceSwitchNotFound = errors.New("space switch not found")
)
